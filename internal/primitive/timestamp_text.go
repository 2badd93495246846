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

package primitive

import (
	"fmt"
	"strconv"
	"strings"
	"time"
)

// ParseTimestampText accepts the three textual forms spec.md §6 names:
// "YYYY-MM-DDTHH:MM:SS.SSSSZ", compact "YYYYMMDDHHMMSS[.NNNN][Z]", or a
// bare decimal Unix-seconds integer.
func ParseTimestampText(s string) (Timestamp, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("timestamp: empty text")
	}

	if sec, err := strconv.ParseUint(s, 10, 64); err == nil {
		return NewTimestamp(sec, 0), nil
	}

	if strings.Contains(s, "-") {
		return parseExpanded(s)
	}
	return parseCompact(s)
}

func parseExpanded(s string) (Timestamp, error) {
	body := strings.TrimSuffix(s, "Z")
	main, serial, err := splitSerial(body)
	if err != nil {
		return 0, err
	}
	t, err := time.Parse("2006-01-02T15:04:05", main)
	if err != nil {
		return 0, fmt.Errorf("timestamp: bad expanded form %q: %w", s, err)
	}
	return NewTimestamp(uint64(t.Unix()), serial), nil
}

func parseCompact(s string) (Timestamp, error) {
	body := strings.TrimSuffix(s, "Z")
	main, serial, err := splitSerial(body)
	if err != nil {
		return 0, err
	}
	if len(main) != 14 {
		return 0, fmt.Errorf("timestamp: bad compact form %q", s)
	}
	t, err := time.Parse("20060102150405", main)
	if err != nil {
		return 0, fmt.Errorf("timestamp: bad compact form %q: %w", s, err)
	}
	return NewTimestamp(uint64(t.Unix()), serial), nil
}

// splitSerial peels off an optional ".NNNN" serial suffix.
func splitSerial(body string) (main string, serial uint16, err error) {
	if i := strings.IndexByte(body, '.'); i >= 0 {
		main = body[:i]
		frac := body[i+1:]
		v, perr := strconv.ParseUint(frac, 10, 16)
		if perr != nil {
			return "", 0, fmt.Errorf("timestamp: bad serial %q: %w", frac, perr)
		}
		return main, uint16(v), nil
	}
	return body, 0, nil
}

// FormatTimestampText renders the expanded textual form, inverse of
// parseExpanded.
func FormatTimestampText(t Timestamp) string {
	when := time.Unix(int64(t.Seconds()), 0).UTC()
	return fmt.Sprintf("%s.%04dZ", when.Format("2006-01-02T15:04:05"), t.Serial())
}
