// RatedStats-Achiev - PvP Achievement Sync and Alt Account Clustering
// Copyright 2026 Liam N. (liamnap)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/liamnap/RatedStats-Achiev

package luatable

import (
	"bytes"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/liamnap/RatedStats-Achiev/internal/models"
)

// Entry is one character row of a published or partial region table: the
// identity key, its recorded alt keys, the numeric GUID and the achievement
// set. Parsed achievements always carry a nil completion timestamp because
// the file format does not record one; the merge rule relies on that.
type Entry struct {
	Character    string
	Alts         []string
	GUID         int64
	Achievements map[int]models.AchievementRecord
}

// Snapshot converts the entry into store form.
func (e *Entry) Snapshot() *models.CharacterSnapshot {
	return &models.CharacterSnapshot{GUID: e.GUID, Achievements: e.Achievements}
}

// Parse reads every character entry from a region table file.
//
// The input is the table-constructor subset the writer emits, but Parse is
// a real scanner rather than a pattern match: it tolerates a region-guard
// preamble, line and block comments, arbitrary whitespace, escaped quotes
// inside names, and unknown fields. It locates the first table assignment
// (`local achievements={` or `local entries={`), then walks the entry list
// structurally. Anything after the closing brace, such as the trailing
// variable assignment, is ignored.
//
// Entries without a character field are a hard error; a GUID is optional
// and defaults to zero. id/name attribute pairs are matched by their
// numeric suffix and incomplete pairs are dropped.
func Parse(data []byte) ([]Entry, error) {
	s := &scanner{data: data}
	if !s.seekTableStart() {
		return nil, errors.New("no table constructor found")
	}

	var entries []Entry
	for {
		s.skipTrivia()
		switch {
		case s.eof():
			return nil, errors.New("unterminated entry table")
		case s.peek() == '}':
			s.pos++
			return entries, nil
		case s.peek() == ',':
			s.pos++
		case s.peek() == '{':
			entry, err := s.parseEntry()
			if err != nil {
				return nil, fmt.Errorf("entry %d: %w", len(entries), err)
			}
			entries = append(entries, entry)
		default:
			return nil, fmt.Errorf("unexpected byte %q at offset %d", s.peek(), s.pos)
		}
	}
}

type scanner struct {
	data []byte
	pos  int
}

func (s *scanner) eof() bool {
	return s.pos >= len(s.data)
}

func (s *scanner) peek() byte {
	return s.data[s.pos]
}

// skipTrivia advances past whitespace, line comments and [[ ]] block
// comments.
func (s *scanner) skipTrivia() {
	for !s.eof() {
		c := s.data[s.pos]
		switch {
		case c == ' ' || c == '\t' || c == '\r' || c == '\n':
			s.pos++
		case c == '-' && s.pos+1 < len(s.data) && s.data[s.pos+1] == '-':
			s.pos += 2
			if s.pos+1 < len(s.data) && s.data[s.pos] == '[' && s.data[s.pos+1] == '[' {
				end := bytes.Index(s.data[s.pos+2:], []byte("]]"))
				if end < 0 {
					s.pos = len(s.data)
					return
				}
				s.pos += 2 + end + 2
			} else {
				for !s.eof() && s.data[s.pos] != '\n' {
					s.pos++
				}
			}
		default:
			return
		}
	}
}

// seekTableStart scans forward to the first `= {` assignment and consumes
// the opening brace. The region-guard line contains `~=` which must not
// trigger, so inequality is consumed as one unit.
func (s *scanner) seekTableStart() bool {
	for {
		s.skipTrivia()
		if s.eof() {
			return false
		}
		switch s.peek() {
		case '"':
			if _, err := s.readString(); err != nil {
				return false
			}
		case '~':
			s.pos++
			if !s.eof() && s.peek() == '=' {
				s.pos++
			}
		case '=':
			s.pos++
			s.skipTrivia()
			if !s.eof() && s.peek() == '{' {
				s.pos++
				return true
			}
		default:
			s.pos++
		}
	}
}

func (s *scanner) parseEntry() (Entry, error) {
	s.pos++ // consume '{'
	entry := Entry{Achievements: make(map[int]models.AchievementRecord)}
	ids := make(map[int]int)
	names := make(map[int]string)

	for {
		s.skipTrivia()
		if s.eof() {
			return entry, errors.New("unterminated entry")
		}
		if s.peek() == '}' {
			s.pos++
			break
		}
		if s.peek() == ',' {
			s.pos++
			continue
		}

		key, err := s.readIdent()
		if err != nil {
			return entry, err
		}
		s.skipTrivia()
		if s.eof() || s.peek() != '=' {
			return entry, fmt.Errorf("missing '=' after field %q", key)
		}
		s.pos++
		s.skipTrivia()

		switch {
		case key == "character":
			v, err := s.readString()
			if err != nil {
				return entry, fmt.Errorf("field character: %w", err)
			}
			entry.Character = strings.ToLower(v)
		case key == "alts":
			v, err := s.readStringList()
			if err != nil {
				return entry, fmt.Errorf("field alts: %w", err)
			}
			entry.Alts = v
		case key == "guid":
			v, err := s.readInt()
			if err != nil {
				return entry, fmt.Errorf("field guid: %w", err)
			}
			entry.GUID = v
		default:
			if idx, ok := fieldIndex(key, "id"); ok {
				v, err := s.readInt()
				if err != nil {
					return entry, fmt.Errorf("field %s: %w", key, err)
				}
				ids[idx] = int(v)
			} else if idx, ok := fieldIndex(key, "name"); ok {
				v, err := s.readString()
				if err != nil {
					return entry, fmt.Errorf("field %s: %w", key, err)
				}
				names[idx] = v
			} else if err := s.skipValue(); err != nil {
				return entry, fmt.Errorf("field %s: %w", key, err)
			}
		}
	}

	if entry.Character == "" {
		return entry, errors.New("entry missing character field")
	}

	indices := make([]int, 0, len(ids))
	for idx := range ids {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	for _, idx := range indices {
		name, ok := names[idx]
		if !ok {
			continue
		}
		id := ids[idx]
		entry.Achievements[id] = models.AchievementRecord{ID: id, Name: name}
	}
	return entry, nil
}

// fieldIndex splits attribute names like "id12" or "name3" into their
// numeric suffix.
func fieldIndex(key, prefix string) (int, bool) {
	if !strings.HasPrefix(key, prefix) || len(key) == len(prefix) {
		return 0, false
	}
	idx, err := strconv.Atoi(key[len(prefix):])
	if err != nil {
		return 0, false
	}
	return idx, true
}

func (s *scanner) readString() (string, error) {
	if s.eof() || s.peek() != '"' {
		return "", fmt.Errorf("expected string at offset %d", s.pos)
	}
	s.pos++
	var b strings.Builder
	for {
		if s.eof() {
			return "", errors.New("unterminated string")
		}
		c := s.data[s.pos]
		s.pos++
		switch c {
		case '"':
			return b.String(), nil
		case '\\':
			if s.eof() {
				return "", errors.New("unterminated escape")
			}
			esc := s.data[s.pos]
			s.pos++
			switch esc {
			case 'n':
				b.WriteByte('\n')
			case 't':
				b.WriteByte('\t')
			default:
				// Covers \" and \\; unknown escapes pass through raw.
				b.WriteByte(esc)
			}
		default:
			b.WriteByte(c)
		}
	}
}

func (s *scanner) readInt() (int64, error) {
	start := s.pos
	if !s.eof() && s.peek() == '-' {
		s.pos++
	}
	for !s.eof() && s.data[s.pos] >= '0' && s.data[s.pos] <= '9' {
		s.pos++
	}
	if s.pos == start || (s.pos == start+1 && s.data[start] == '-') {
		return 0, fmt.Errorf("expected number at offset %d", start)
	}
	return strconv.ParseInt(string(s.data[start:s.pos]), 10, 64)
}

func (s *scanner) readIdent() (string, error) {
	start := s.pos
	for !s.eof() {
		c := s.data[s.pos]
		if (c >= 'a' && c <= 'z') || (c >= 'A' && c <= 'Z') || c == '_' ||
			(s.pos > start && c >= '0' && c <= '9') {
			s.pos++
			continue
		}
		break
	}
	if s.pos == start {
		return "", fmt.Errorf("expected identifier at offset %d", start)
	}
	return string(s.data[start:s.pos]), nil
}

// readStringList parses an alts-style table of quoted strings.
func (s *scanner) readStringList() ([]string, error) {
	if s.eof() || s.peek() != '{' {
		return nil, fmt.Errorf("expected table at offset %d", s.pos)
	}
	s.pos++
	var out []string
	for {
		s.skipTrivia()
		if s.eof() {
			return nil, errors.New("unterminated string table")
		}
		switch s.peek() {
		case '}':
			s.pos++
			return out, nil
		case ',':
			s.pos++
		case '"':
			v, err := s.readString()
			if err != nil {
				return nil, err
			}
			out = append(out, strings.ToLower(v))
		default:
			return nil, fmt.Errorf("unexpected byte %q in string table at offset %d", s.peek(), s.pos)
		}
	}
}

// skipValue consumes one value of any supported shape: string, number,
// nested table, or bare word (true/false/nil).
func (s *scanner) skipValue() error {
	if s.eof() {
		return errors.New("expected value")
	}
	switch c := s.peek(); {
	case c == '"':
		_, err := s.readString()
		return err
	case c == '{':
		return s.skipTable()
	case c == '-' || (c >= '0' && c <= '9'):
		_, err := s.readInt()
		return err
	default:
		_, err := s.readIdent()
		return err
	}
}

// skipTable consumes a balanced table, string-aware.
func (s *scanner) skipTable() error {
	s.pos++ // consume '{'
	depth := 1
	for depth > 0 {
		s.skipTrivia()
		if s.eof() {
			return errors.New("unterminated table value")
		}
		switch s.peek() {
		case '{':
			depth++
			s.pos++
		case '}':
			depth--
			s.pos++
		case '"':
			if _, err := s.readString(); err != nil {
				return err
			}
		default:
			s.pos++
		}
	}
	return nil
}
