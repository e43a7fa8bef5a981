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
	"encoding/binary"
	"fmt"
	"hash"

	"blainsmith.com/go/seahash"
	"github.com/grailbio/base/log"
	"github.com/grailbio/pro/pileup/mpileup"
)

// progressInterval is the number of reference sites between progress log
// lines.
const progressInterval = 1 << 20

// ScaffoldStats summarizes the rows emitted for one scaffold.
type ScaffoldStats struct {
	// Name is the scaffold name.
	Name string
	// Sites is the number of rows emitted.
	Sites int64
	// CoveredSites is the number of rows backed by a pileup record.
	CoveredSites int64
	// Reads is the sum of all counts over all individuals.
	Reads int64
	// Checksum is the sum of per-row seahash digests.  It is a quick
	// order-independent fingerprint of the scaffold's rows, independent of the
	// output format.
	Checksum uint64
}

// Stats summarizes a conversion run.
type Stats struct {
	// Sites is the number of reference sites, i.e. output data rows.
	Sites int64
	// CoveredSites is the number of reference sites found in the pileup.
	CoveredSites int64
	// PileupRecords is the number of pileup lines consumed.
	PileupRecords int64
	// RefMismatches counts covered sites whose pileup reference base differs
	// from the reference table's.  The pileup's base is used for decoding.
	RefMismatches int64
	// FirstRefMismatch describes the first such site, if any.
	FirstRefMismatch string
	// Scaffolds has one entry per scaffold, in reference order.
	Scaffolds []ScaffoldStats

	h   hash.Hash64
	buf []byte
}

func newStats() Stats {
	return Stats{h: seahash.New()}
}

func (s *Stats) add(site *RefSite, counts []mpileup.BaseCounts, covered bool) {
	n := len(s.Scaffolds)
	if n == 0 || s.Scaffolds[n-1].Name != site.Scaffold {
		if n > 0 {
			s.Scaffolds[n-1].log()
		}
		s.Scaffolds = append(s.Scaffolds, ScaffoldStats{Name: site.Scaffold})
		n++
	}
	cur := &s.Scaffolds[n-1]
	s.Sites++
	cur.Sites++
	if covered {
		s.CoveredSites++
		cur.CoveredSites++
	}
	for _, c := range counts {
		cur.Reads += int64(c.Total())
	}
	cur.Checksum += s.hashRow(site, counts)
}

// hashRow digests the position, reference base and counts of one row.
func (s *Stats) hashRow(site *RefSite, counts []mpileup.BaseCounts) uint64 {
	b := s.buf[:0]
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], uint32(site.Pos))
	b = append(b, tmp[:]...)
	b = append(b, site.Base...)
	for _, c := range counts {
		for _, v := range [...]uint32{c.A, c.C, c.G, c.T} {
			binary.LittleEndian.PutUint32(tmp[:], v)
			b = append(b, tmp[:]...)
		}
	}
	s.buf = b
	s.h.Reset()
	s.h.Write(b)
	return s.h.Sum64()
}

func (s *Stats) noteRefMismatch(site *RefSite, pileupBase byte) {
	if s.RefMismatches == 0 {
		s.FirstRefMismatch = fmt.Sprintf("%s:%d (reference %s, pileup %c)", site.Scaffold, site.Pos, site.Base, pileupBase)
	}
	s.RefMismatches++
}

// finish logs the last scaffold's summary.
func (s *Stats) finish() {
	if n := len(s.Scaffolds); n > 0 {
		s.Scaffolds[n-1].log()
	}
}

func (s *ScaffoldStats) log() {
	log.Debug.Printf("pro: scaffold %s: %d sites, %d covered, %d reads, checksum %016x", s.Name, s.Sites, s.CoveredSites, s.Reads, s.Checksum)
}

// Checksum combines the per-scaffold checksums.
func (s *Stats) Checksum() uint64 {
	var sum uint64
	for _, sc := range s.Scaffolds {
		sum += sc.Checksum
	}
	return sum
}
