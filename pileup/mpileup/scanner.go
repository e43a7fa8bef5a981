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
package mpileup

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
)

// MaxLineLen is the longest pileup line a Scanner accepts.  Deep multi-sample
// pileups easily exceed bufio's 64 KiB default.
const MaxLineLen = 1 << 30

// Scanner reads multi-sample pileup records from a text stream, one record
// per line.  Blank lines are skipped.  Scanners are not threadsafe.
type Scanner struct {
	b       *bufio.Scanner
	nSample int
	line    int
	err     error
}

// NewScanner constructs a Scanner that expects nSample individuals on every
// line.
func NewScanner(r io.Reader, nSample int) *Scanner {
	b := bufio.NewScanner(r)
	b.Buffer(make([]byte, 0, 64<<10), MaxLineLen)
	return &Scanner{b: b, nSample: nSample}
}

// Scan parses the next line into rec.  Scan returns a boolean indicating
// whether the scan succeeded. Once Scan returns false, it never returns true
// again.  Upon completion, the user should check the Err method to determine
// whether scanning stopped because of an error or because the end of the
// stream was reached.
//
// The byte slices in rec.Samples are only valid until the next call to Scan.
func (s *Scanner) Scan(rec *Record) bool {
	if s.err != nil {
		return false
	}
	for s.b.Scan() {
		s.line++
		line := s.b.Bytes()
		if len(bytes.TrimSpace(line)) == 0 {
			continue
		}
		if err := ParseLine(line, s.nSample, rec); err != nil {
			s.err = fmt.Errorf("line %d: %w", s.line, err)
			return false
		}
		return true
	}
	s.err = s.b.Err()
	if s.err == nil {
		s.err = io.EOF
	}
	return false
}

// Line returns the 1-based line number of the most recently scanned line.
func (s *Scanner) Line() int {
	return s.line
}

// Err returns the scanning error, if any.
func (s *Scanner) Err() error {
	if s.err == io.EOF {
		return nil
	}
	return s.err
}
