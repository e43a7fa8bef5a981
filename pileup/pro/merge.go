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
	"errors"
	"fmt"

	"github.com/grailbio/base/log"
	"github.com/grailbio/pro/pileup/mpileup"
)

var (
	// ErrDesync is returned when the pileup stream is not an ordered
	// subsequence of the reference-site stream.
	ErrDesync = errors.New("pileup and reference are out of sync")
	// ErrUnsortedRef is returned when the reference-site table is not sorted
	// by position within contiguous scaffold blocks.
	ErrUnsortedRef = errors.New("reference sites are not sorted")
)

// RefSource yields reference sites in file order.  RefScanner implements it.
type RefSource interface {
	Scan() bool
	Site() *RefSite
	Err() error
}

// RecordSource yields pileup records in file order.  mpileup.Scanner
// implements it.
type RecordSource interface {
	Scan(rec *mpileup.Record) bool
	Err() error
}

// RowWriter receives the header and one row per reference site.
type RowWriter interface {
	// WriteHeader is called once, before any row, with the individual IDs.
	WriteHeader(ids []string) error
	// WriteRow writes one site.  counts has one entry per individual.
	WriteRow(site *RefSite, counts []mpileup.BaseCounts) error
	// Close flushes buffered rows.  It does not close the underlying file.
	Close() error
}

// merger walks the reference stream and the pileup stream in lock-step.
//
// The reference determines the output rows: every reference site produces
// exactly one row, in reference order.  Pileup records must name a subset of
// the reference sites, in the same order.
type merger struct {
	refs RefSource
	recs RecordSource
	w    RowWriter
	ids  []string

	zero   []mpileup.BaseCounts
	counts []mpileup.BaseCounts

	// scaffolds records every scaffold the reference has entered so far.
	scaffolds map[string]struct{}
	lastRef   RefSite

	stats *Stats
}

// Merge writes one row per reference site in refs to w, filling in counts for
// the sites present in recs and zeros elsewhere.  ids is the individual
// roster; every pileup record must carry exactly len(ids) individuals.
//
// Merge fails with ErrDesync if a pileup record names a site the reference
// has already passed or never reaches, and with ErrUnsortedRef if the
// reference itself goes backwards.  Decode errors abort the merge and name
// the offending site and individual.
func Merge(refs RefSource, recs RecordSource, ids []string, w RowWriter) (Stats, error) {
	stats := newStats()
	m := merger{
		refs:      refs,
		recs:      recs,
		w:         w,
		ids:       ids,
		zero:      make([]mpileup.BaseCounts, len(ids)),
		counts:    make([]mpileup.BaseCounts, len(ids)),
		scaffolds: make(map[string]struct{}),
		stats:     &stats,
	}
	err := m.run()
	stats.finish()
	return stats, err
}

func (m *merger) run() error {
	if err := m.w.WriteHeader(m.ids); err != nil {
		return err
	}
	var rec mpileup.Record
	for m.recs.Scan(&rec) {
		m.stats.PileupRecords++
		if err := m.advanceTo(&rec); err != nil {
			return err
		}
	}
	if err := m.recs.Err(); err != nil {
		return err
	}
	// Trailing reference sites have no pileup data.
	for m.refs.Scan() {
		site := m.refs.Site()
		if err := m.enter(site); err != nil {
			return err
		}
		if err := m.emit(site, m.zero, false); err != nil {
			return err
		}
	}
	return m.refs.Err()
}

// advanceTo emits zero rows for the reference sites preceding rec, then the
// row for rec itself.
func (m *merger) advanceTo(rec *mpileup.Record) error {
	for {
		if !m.refs.Scan() {
			if err := m.refs.Err(); err != nil {
				return err
			}
			return fmt.Errorf("%w: reference ended before pileup site %s:%d", ErrDesync, rec.Scaffold, rec.Pos)
		}
		site := m.refs.Site()
		if err := m.enter(site); err != nil {
			return err
		}
		if site.Scaffold == rec.Scaffold {
			if site.Pos == rec.Pos {
				return m.emitRecord(site, rec)
			}
			if site.Pos > rec.Pos {
				return fmt.Errorf("%w: pileup site %s:%d is not in the reference (reference is at %s:%d)", ErrDesync, rec.Scaffold, rec.Pos, site.Scaffold, site.Pos)
			}
		} else if _, ok := m.scaffolds[rec.Scaffold]; ok {
			return fmt.Errorf("%w: pileup site %s:%d comes after the end of scaffold %s in the reference (reference is at %s:%d)", ErrDesync, rec.Scaffold, rec.Pos, rec.Scaffold, site.Scaffold, site.Pos)
		}
		if err := m.emit(site, m.zero, false); err != nil {
			return err
		}
	}
}

// enter checks that site follows the previous reference site.
func (m *merger) enter(site *RefSite) error {
	if site.Scaffold == m.lastRef.Scaffold {
		if site.Pos <= m.lastRef.Pos {
			return fmt.Errorf("%w: %s:%d follows %s:%d", ErrUnsortedRef, site.Scaffold, site.Pos, m.lastRef.Scaffold, m.lastRef.Pos)
		}
	} else {
		if _, ok := m.scaffolds[site.Scaffold]; ok {
			return fmt.Errorf("%w: scaffold %s appears in more than one block", ErrUnsortedRef, site.Scaffold)
		}
		m.scaffolds[site.Scaffold] = struct{}{}
		m.lastRef.Scaffold = site.Scaffold
	}
	m.lastRef.Pos = site.Pos
	return nil
}

func (m *merger) emitRecord(site *RefSite, rec *mpileup.Record) error {
	if len(site.Base) != 1 || site.Base[0]|0x20 != rec.RefBase|0x20 {
		m.stats.noteRefMismatch(site, rec.RefBase)
	}
	for i := range m.counts {
		c, err := rec.Decode(i)
		if err != nil {
			return fmt.Errorf("%s:%d, individual %d (%s): %w", rec.Scaffold, rec.Pos, i+1, m.ids[i], err)
		}
		m.counts[i] = c
	}
	return m.emit(site, m.counts, true)
}

func (m *merger) emit(site *RefSite, counts []mpileup.BaseCounts, covered bool) error {
	m.stats.add(site, counts, covered)
	if m.stats.Sites%progressInterval == 0 {
		log.Printf("pro.Merge: %dMi reference sites, at %s:%d", m.stats.Sites>>20, site.Scaffold, site.Pos)
	}
	return m.w.WriteRow(site, counts)
}
