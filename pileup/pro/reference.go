// Copyright 2020 Grail Inc.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//    http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
package pro

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"io"
	"strconv"

	gunsafe "github.com/grailbio/base/unsafe"
)

// ErrInvalidRef is returned when a reference-site line cannot be parsed.
var ErrInvalidRef = errors.New("invalid reference-site line")

// RefSite is one row of the reference-site table.
type RefSite struct {
	Scaffold string
	// Pos is 1-based.
	Pos int
	// Base is copied verbatim to the ref_nuc column of the output.
	Base string
}

// RefScanner reads the reference-site table: a header line, followed by
// whitespace-separated "scaffold position base" lines.  Columns after the
// third are ignored, as are blank lines.
type RefScanner struct {
	b      *bufio.Scanner
	site   RefSite
	line   int
	header bool
	err    error
}

// NewRefScanner constructs a RefScanner reading from r.
func NewRefScanner(r io.Reader) *RefScanner {
	return &RefScanner{b: bufio.NewScanner(r)}
}

// Scan advances to the next reference site, which is then available through
// Site.  Once Scan returns false, it never returns true again; check Err to
// tell the end of the table from an error.
func (s *RefScanner) Scan() bool {
	if s.err != nil {
		return false
	}
	if !s.header {
		s.header = true
		if !s.next() {
			return false
		}
	}
	for s.next() {
		line := s.b.Bytes()
		fields := bytes.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if err := s.parse(fields); err != nil {
			s.err = fmt.Errorf("line %d: %w", s.line, err)
			return false
		}
		return true
	}
	return false
}

func (s *RefScanner) next() bool {
	if s.b.Scan() {
		s.line++
		return true
	}
	if s.err = s.b.Err(); s.err == nil {
		s.err = io.EOF
	}
	return false
}

func (s *RefScanner) parse(fields [][]byte) error {
	if len(fields) < 3 {
		return fmt.Errorf("%w: %d columns, expected at least 3", ErrInvalidRef, len(fields))
	}
	pos, err := strconv.ParseUint(gunsafe.BytesToString(fields[1]), 10, 31)
	if err != nil {
		return fmt.Errorf("%w: position: %v", ErrInvalidRef, err)
	}
	if pos == 0 {
		return fmt.Errorf("%w: position must be 1-based", ErrInvalidRef)
	}
	// Scaffold names repeat on every line; only allocate when they change.
	if gunsafe.BytesToString(fields[0]) != s.site.Scaffold {
		s.site.Scaffold = string(fields[0])
	}
	if gunsafe.BytesToString(fields[2]) != s.site.Base {
		s.site.Base = string(fields[2])
	}
	s.site.Pos = int(pos)
	return nil
}

// Site returns the most recently scanned reference site.  The pointee is
// overwritten by the next call to Scan.
func (s *RefScanner) Site() *RefSite {
	return &s.site
}

// Line returns the 1-based line number of the most recently scanned site,
// counting the header.
func (s *RefScanner) Line() int {
	return s.line
}

// Err returns the scanning error, if any.
func (s *RefScanner) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}
