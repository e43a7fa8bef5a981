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
	"bytes"
	"errors"
	"fmt"
	"strconv"

	gunsafe "github.com/grailbio/base/unsafe"
)

// ErrInvalid is returned when a pileup line cannot be parsed.
var ErrInvalid = errors.New("invalid mpileup line")

const (
	// nSiteFields is the number of leading scaffold/position/ref columns.
	nSiteFields = 3
	// nSampleFields is the number of depth/reads/quals columns per individual.
	nSampleFields = 3
)

// Sample is one individual's entry in a pileup line.
type Sample struct {
	Depth int
	// Reads is the encoded read string, e.g. "..,^]A$+2ac".
	Reads []byte
	// Quals is the base-quality string.  It is carried along but not
	// interpreted.
	Quals []byte
}

// Record is a parsed multi-sample pileup line.
//
// Reads and Quals alias the buffer the line was parsed from; when the record
// is filled by Scanner.Scan, they are only valid until the next call to Scan.
type Record struct {
	Scaffold string
	// Pos is 1-based.
	Pos int
	// RefBase is the reference base as seen by the pileup caller.
	RefBase byte
	Samples []Sample
}

// Decode runs Decode on the i-th individual's entry.
func (r *Record) Decode(i int) (BaseCounts, error) {
	s := &r.Samples[i]
	return Decode(r.RefBase, s.Depth, s.Reads)
}

// ParseLine parses a whitespace-separated pileup line with exactly nSample
// individuals into rec.  rec.Samples is reused when it has enough capacity.
func ParseLine(line []byte, nSample int, rec *Record) error {
	fields := bytes.Fields(line)
	if want := nSiteFields + nSampleFields*nSample; len(fields) != want {
		return fmt.Errorf("%w: %d columns, expected %d for %d individual(s)", ErrInvalid, len(fields), want, nSample)
	}
	// Reuse the previous scaffold string when it hasn't changed; consecutive
	// lines almost always share it.
	if gunsafe.BytesToString(fields[0]) != rec.Scaffold {
		rec.Scaffold = string(fields[0])
	}
	pos, err := parseCount(fields[1], 1)
	if err != nil {
		return fmt.Errorf("%w: column 2 (position): %v", ErrInvalid, err)
	}
	rec.Pos = pos
	if len(fields[2]) != 1 {
		return fmt.Errorf("%w: column 3 (reference base) %q is not a single base", ErrInvalid, fields[2])
	}
	rec.RefBase = fields[2][0]

	if cap(rec.Samples) < nSample {
		rec.Samples = make([]Sample, nSample)
	}
	rec.Samples = rec.Samples[:nSample]
	for i := range rec.Samples {
		col := nSiteFields + nSampleFields*i
		depth, err := parseCount(fields[col], 0)
		if err != nil {
			return fmt.Errorf("%w: column %d (depth of individual %d): %v", ErrInvalid, col+1, i+1, err)
		}
		rec.Samples[i] = Sample{
			Depth: depth,
			Reads: fields[col+1],
			Quals: fields[col+2],
		}
	}
	return nil
}

// parseCount parses a non-negative decimal integer no smaller than min that
// fits in 32 bits.
func parseCount(b []byte, min int) (int, error) {
	v, err := strconv.ParseUint(gunsafe.BytesToString(b), 10, 32)
	if err != nil {
		return 0, err
	}
	if int(v) < min {
		return 0, fmt.Errorf("%d is smaller than %d", v, min)
	}
	return int(v), nil
}
