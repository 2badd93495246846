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

package config

import (
	"strconv"
	"strings"
	"unicode"

	"github.com/c2h5oh/datasize"

	"github.com/graphd/graphd/internal/gerrors"
)

// tok is one lexed unit of the config-file grammar: a bareword, a
// quoted string (with quotes stripped), or a brace.
type tok struct {
	text   string
	quoted bool
	brace  byte // '{', '}', or 0
}

func lex(src string) ([]tok, error) {
	var toks []tok
	i, n := 0, len(src)
	for i < n {
		c := src[i]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			i++
		case c == '#':
			for i < n && src[i] != '\n' {
				i++
			}
		case c == '{' || c == '}':
			toks = append(toks, tok{brace: c})
			i++
		case c == '"':
			j := i + 1
			for j < n && src[j] != '"' {
				j++
			}
			if j >= n {
				return nil, gerrors.New(gerrors.Syntax, "config: unterminated string")
			}
			toks = append(toks, tok{text: src[i+1 : j], quoted: true})
			i = j + 1
		default:
			j := i
			for j < n && !unicode.IsSpace(rune(src[j])) && src[j] != '{' && src[j] != '}' && src[j] != '#' {
				j++
			}
			toks = append(toks, tok{text: src[i:j]})
			i = j
		}
	}
	return toks, nil
}

// Parse parses the configuration-file grammar of spec.md §6: one of
// each top-level clause, order-independent. Deprecated tokens are
// silently consumed.
func Parse(src string) (*Config, error) {
	toks, err := lex(src)
	if err != nil {
		return nil, err
	}
	p := &cparser{toks: toks}
	cfg := &Config{Cost: map[string]int64{}}

	for !p.done() {
		word := p.next()
		if word.brace != 0 {
			return nil, gerrors.New(gerrors.Syntax, "config: unexpected brace at top level")
		}
		switch word.text {
		case "database":
			if err := p.parseDatabase(&cfg.Database); err != nil {
				return nil, err
			}
		case "replica":
			ep, err := p.parseEndpoint()
			if err != nil {
				return nil, err
			}
			cfg.Replica = ep
		case "archive":
			ep, err := p.parseEndpoint()
			if err != nil {
				return nil, err
			}
			cfg.Archive = ep
		case "request-size-max":
			v, err := p.wordOrFail("request-size-max")
			if err != nil {
				return nil, err
			}
			size, err := parseSize(v)
			if err != nil {
				return nil, err
			}
			cfg.RequestSizeMax = size
		case "leader-socket":
			v, err := p.wordOrFail("leader-socket")
			if err != nil {
				return nil, err
			}
			cfg.LeaderSocket = v
		case "instance-id":
			v, err := p.wordOrFail("instance-id")
			if err != nil {
				return nil, err
			}
			cfg.InstanceID = v
		case "cost":
			if err := p.parseCost(cfg.Cost); err != nil {
				return nil, err
			}
		default:
			if isDeprecatedToken(word.text) {
				p.skipDeprecatedValue()
				continue
			}
			return nil, gerrors.New(gerrors.Syntax, "config: unknown token "+word.text)
		}
	}

	if err := validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

type cparser struct {
	toks []tok
	pos  int
}

func (p *cparser) done() bool { return p.pos >= len(p.toks) }

func (p *cparser) next() tok {
	if p.done() {
		return tok{}
	}
	t := p.toks[p.pos]
	p.pos++
	return t
}

func (p *cparser) peek() tok {
	if p.done() {
		return tok{}
	}
	return p.toks[p.pos]
}

func (p *cparser) wordOrFail(ctx string) (string, error) {
	if p.done() || p.peek().brace != 0 {
		return "", gerrors.New(gerrors.Syntax, "config: expected value after "+ctx)
	}
	return p.next().text, nil
}

func (p *cparser) expectBrace(b byte) error {
	if p.done() || p.next().brace != b {
		return gerrors.New(gerrors.Syntax, "config: expected '"+string(b)+"'")
	}
	return nil
}

func (p *cparser) skipDeprecatedValue() {
	if !p.done() && p.peek().brace == 0 {
		p.next()
	}
}

func (p *cparser) parseDatabase(db *Database) error {
	if err := p.expectBrace('{'); err != nil {
		return err
	}
	for {
		t := p.next()
		if t.brace == '}' {
			return nil
		}
		if t.brace != 0 {
			return gerrors.New(gerrors.Syntax, "config: unexpected brace in database{}")
		}
		switch t.text {
		case "path":
			v, err := p.wordOrFail("path")
			if err != nil {
				return err
			}
			db.Path = v
		case "id":
			v, err := p.wordOrFail("id")
			if err != nil {
				return err
			}
			db.ID = v
		case "type":
			v, err := p.wordOrFail("type")
			if err != nil {
				return err
			}
			db.Type = v
		case "sync":
			v, err := p.boolOrFail("sync")
			if err != nil {
				return err
			}
			db.Sync = v
		case "transactional":
			v, err := p.boolOrFail("transactional")
			if err != nil {
				return err
			}
			db.Transactional = v
		case "must-exist":
			v, err := p.boolOrFail("must-exist")
			if err != nil {
				return err
			}
			db.MustExist = v
		case "snapshot":
			v, err := p.wordOrFail("snapshot")
			if err != nil {
				return err
			}
			db.Snapshot = v
		case "gmap-split-thr":
			v, err := p.intOrFail("gmap-split-thr")
			if err != nil {
				return err
			}
			db.GMapSplitThr = v
		case "gmap-max-lf":
			v, err := p.intOrFail("gmap-max-lf")
			if err != nil {
				return err
			}
			db.GMapMaxLF = v
		case "enable_bgmaps":
			v, err := p.boolOrFail("enable_bgmaps")
			if err != nil {
				return err
			}
			db.EnableBGMaps = v
		default:
			if isDeprecatedToken(t.text) {
				p.skipDeprecatedValue()
				continue
			}
			return gerrors.New(gerrors.Syntax, "config: unknown database{} token "+t.text)
		}
	}
}

func (p *cparser) parseEndpoint() (*Endpoint, error) {
	if err := p.expectBrace('{'); err != nil {
		return nil, err
	}
	ep := &Endpoint{}
	for {
		t := p.next()
		if t.brace == '}' {
			return ep, nil
		}
		switch t.text {
		case "host":
			v, err := p.wordOrFail("host")
			if err != nil {
				return nil, err
			}
			ep.Host = v
		case "port":
			v, err := p.wordOrFail("port")
			if err != nil {
				return nil, err
			}
			ep.Port = v
		default:
			return nil, gerrors.New(gerrors.Syntax, "config: unknown endpoint token "+t.text)
		}
	}
}

func (p *cparser) parseCost(cost map[string]int64) error {
	if err := p.expectBrace('{'); err != nil {
		return err
	}
	for {
		t := p.next()
		if t.brace == '}' {
			return nil
		}
		if t.brace != 0 || !costTokens[t.text] {
			return gerrors.New(gerrors.Syntax, "config: unknown cost token "+t.text)
		}
		eq := p.next()
		if eq.text != "=" {
			return gerrors.New(gerrors.Syntax, "config: expected '=' in cost{}")
		}
		v, err := p.intOrFail(t.text)
		if err != nil {
			return err
		}
		cost[t.text] = v
	}
}

func (p *cparser) boolOrFail(ctx string) (bool, error) {
	v, err := p.wordOrFail(ctx)
	if err != nil {
		return false, err
	}
	switch strings.ToLower(v) {
	case "true", "yes", "1":
		return true, nil
	case "false", "no", "0":
		return false, nil
	default:
		return false, gerrors.New(gerrors.Syntax, "config: bad bool for "+ctx+": "+v)
	}
}

func (p *cparser) intOrFail(ctx string) (int64, error) {
	v, err := p.wordOrFail(ctx)
	if err != nil {
		return 0, err
	}
	n, perr := strconv.ParseInt(v, 10, 64)
	if perr != nil {
		return 0, gerrors.New(gerrors.Syntax, "config: bad integer for "+ctx+": "+v)
	}
	return n, nil
}

func parseSize(s string) (int64, error) {
	var v datasize.ByteSize
	if err := v.UnmarshalText([]byte(s)); err != nil {
		return 0, gerrors.Wrap(gerrors.Syntax, "config: bad size "+s, err)
	}
	return int64(v.Bytes()), nil
}
