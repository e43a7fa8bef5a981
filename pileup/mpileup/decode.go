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
	"errors"
	"fmt"
	"strconv"

	"github.com/grailbio/pro/pileup"
)

// ErrMalformedIndel is returned when a '+'/'-' indel marker or its length
// is the last thing in the read string, or when the indel sequence runs past
// the end of the read string.
var ErrMalformedIndel = errors.New("malformed indel in read string")

// BaseCounts is the number of reads supporting each regular base at one site,
// for one individual.
type BaseCounts struct {
	A, C, G, T uint32
}

// add increments the counter for the given pileup.Base... enum value.
// pileup.BaseX is silently dropped.
func (c *BaseCounts) add(base byte) {
	switch base {
	case pileup.BaseA:
		c.A++
	case pileup.BaseC:
		c.C++
	case pileup.BaseG:
		c.G++
	case pileup.BaseT:
		c.T++
	}
}

// Total returns the number of reads counted across all four bases.
func (c BaseCounts) Total() uint32 {
	return c.A + c.C + c.G + c.T
}

// AppendQuartet appends the "A/C/G/T" rendering of c to dst.
func (c BaseCounts) AppendQuartet(dst []byte) []byte {
	dst = strconv.AppendUint(dst, uint64(c.A), 10)
	dst = append(dst, '/')
	dst = strconv.AppendUint(dst, uint64(c.C), 10)
	dst = append(dst, '/')
	dst = strconv.AppendUint(dst, uint64(c.G), 10)
	dst = append(dst, '/')
	return strconv.AppendUint(dst, uint64(c.T), 10)
}

func (c BaseCounts) String() string {
	return string(c.AppendQuartet(nil))
}

// Decode counts the base calls in one individual's pileup read string.
//
// refBase is the reference base reported in the pileup line; '.' and ','
// (forward/reverse match) are credited to it, and dropped when it is not one
// of the upper-case bases A/C/G/T.  Explicit base calls are counted
// case-insensitively.  Inserted or deleted sequence following a "+<n>" /
// "-<n>" marker is skipped, as is the mapping-quality byte following each
// '^' read-start marker.  A marker with no length skips nothing, and a '^'
// ending the string is ignored.  Everything else ('$', '*', 'N', '>', '<',
// ...) is ignored.
//
// When depth < 1, reads is not inspected at all.
func Decode(refBase byte, depth int, reads []byte) (counts BaseCounts, err error) {
	if depth < 1 {
		return
	}
	refEnum := pileup.BaseX
	if refBase >= 'A' && refBase <= 'Z' {
		refEnum = pileup.ASCIIToEnumTable[refBase]
	}
	nReads := len(reads)
	for i := 0; i < nReads; i++ {
		switch c := reads[i]; c {
		case '.', ',':
			counts.add(refEnum)
		case '^':
			i++
		case '+', '-':
			var end int
			if end, err = skipIndel(reads, i); err != nil {
				return BaseCounts{}, err
			}
			i = end - 1
		default:
			counts.add(pileup.ASCIIToEnumTable[c])
		}
	}
	return
}

// skipIndel parses the indel marker at reads[start] and returns the offset
// just past its sequence.  The sequence length is measured in bytes of the
// read string.
func skipIndel(reads []byte, start int) (int, error) {
	pos := start + 1
	size := 0
	for ; pos < len(reads); pos++ {
		d := reads[pos]
		if d < '0' || d > '9' {
			break
		}
		size = size*10 + int(d-'0')
		if size > len(reads) {
			return 0, fmt.Errorf("%w: indel length at offset %d exceeds read string length %d", ErrMalformedIndel, start, len(reads))
		}
	}
	if pos == len(reads) {
		return 0, fmt.Errorf("%w: '%c' at offset %d has nothing after its length", ErrMalformedIndel, reads[start], start)
	}
	end := pos + size
	if end > len(reads) {
		return 0, fmt.Errorf("%w: %d-base indel at offset %d runs past end of %d-byte read string", ErrMalformedIndel, size, start, len(reads))
	}
	return end, nil
}
