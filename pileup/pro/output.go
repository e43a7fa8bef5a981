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
	"io"

	"github.com/grailbio/base/tsv"
	gunsafe "github.com/grailbio/base/unsafe"
	"github.com/grailbio/hts/bgzf"
	"github.com/grailbio/pro/pileup/mpileup"
)

// HeaderPrefix holds the fixed leading columns of the .pro header row.
const HeaderPrefix = "scaffold\tsite\tref_nuc"

// tsvRowWriter renders the .pro text format:
//
//   scaffold <TAB> site <TAB> ref_nuc <TAB> q_1 <TAB> ... <TAB> q_N
//
// where q_i = "countA/countC/countG/countT".  Fields are not quoted.
type tsvRowWriter struct {
	tsvw *tsv.Writer
	// bgzfw is non-nil iff the output is BGZF-compressed.
	bgzfw *bgzf.Writer
	buf   []byte
}

// NewTSVRowWriter returns a RowWriter producing the .pro text format on w.
// When bgzip is true, the output is BGZF-compressed with the given number of
// compression goroutines.
func NewTSVRowWriter(w io.Writer, bgzip bool, parallelism int) RowWriter {
	rw := &tsvRowWriter{buf: make([]byte, 0, 64)}
	if bgzip {
		rw.bgzfw = bgzf.NewWriter(w, parallelism)
		w = rw.bgzfw
	}
	rw.tsvw = tsv.NewWriter(w)
	return rw
}

// writeSiteColumns appends the scaffold/site/ref_nuc columns common to every
// row.
func writeSiteColumns(tsvw *tsv.Writer, site *RefSite) {
	tsvw.WriteString(site.Scaffold)
	tsvw.WriteUint32(uint32(site.Pos))
	tsvw.WriteString(site.Base)
}

func (w *tsvRowWriter) WriteHeader(ids []string) error {
	w.tsvw.WriteString(HeaderPrefix)
	for _, id := range ids {
		w.tsvw.WriteString(id)
	}
	return w.tsvw.EndLine()
}

func (w *tsvRowWriter) WriteRow(site *RefSite, counts []mpileup.BaseCounts) error {
	writeSiteColumns(w.tsvw, site)
	for _, c := range counts {
		w.buf = c.AppendQuartet(w.buf[:0])
		w.tsvw.WriteString(gunsafe.BytesToString(w.buf))
	}
	return w.tsvw.EndLine()
}

func (w *tsvRowWriter) Close() (err error) {
	err = w.tsvw.Flush()
	if w.bgzfw != nil {
		if e := w.bgzfw.Close(); e != nil && err == nil {
			err = e
		}
	}
	return
}
