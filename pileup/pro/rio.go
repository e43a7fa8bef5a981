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
	"bytes"
	"encoding/binary"
	"io"
	"math"
	"strings"

	"github.com/grailbio/base/recordio"
	"github.com/grailbio/base/recordio/recordiozstd"
	"github.com/grailbio/pro/pileup/mpileup"
	"github.com/pkg/errors"
)

const (
	sampleIDsHeader = "SampleIDs"
	trailerVersion  = 1
)

// ProRow is one .pro row in the recordio format.
type ProRow struct {
	Scaffold string
	// Pos is 1-based, as in the text format.
	Pos     uint32
	RefBase string
	// Counts has one entry per individual, in roster order.
	Counts []mpileup.BaseCounts
}

// rioRowWriter writes zstd-compressed recordio.  The individual IDs are
// stored in the SampleIDs header (NUL-separated), and the trailer holds the
// row count.
type rioRowWriter struct {
	rw      recordio.Writer
	nRows   int
	started bool
}

// NewRioRowWriter returns a RowWriter producing the .pro.rio format on w.
func NewRioRowWriter(w io.Writer) RowWriter {
	// recordiozstd.Init() is called in singleton.go's init().
	return &rioRowWriter{
		rw: recordio.NewWriter(w, recordio.WriterOpts{
			Marshal:      marshalProRow,
			Transformers: []string{recordiozstd.Name},
		}),
	}
}

func (w *rioRowWriter) WriteHeader(ids []string) error {
	if w.started {
		return errors.New("pro: WriteHeader called twice")
	}
	w.started = true
	w.rw.AddHeader(sampleIDsHeader, strings.Join(ids, "\000"))
	w.rw.AddHeader(recordio.KeyTrailer, true)
	return nil
}

func (w *rioRowWriter) WriteRow(site *RefSite, counts []mpileup.BaseCounts) error {
	// counts is reused by the caller, and recordio may marshal lazily.
	row := &ProRow{
		Scaffold: site.Scaffold,
		Pos:      uint32(site.Pos),
		RefBase:  site.Base,
		Counts:   append([]mpileup.BaseCounts(nil), counts...),
	}
	w.rw.Append(row)
	w.nRows++
	// Write errors are reported by Finish.
	return nil
}

func (w *rioRowWriter) Close() error {
	w.rw.SetTrailer(proRioTrailer(w.nRows))
	return w.rw.Finish()
}

func proRioTrailer(nRows int) []byte {
	var buffer bytes.Buffer
	if err := binary.Write(&buffer, binary.LittleEndian, int64(trailerVersion)); err != nil {
		panic("couldn't write trailer version")
	}
	if err := binary.Write(&buffer, binary.LittleEndian, int64(nRows)); err != nil {
		panic("couldn't write nRows to trailer")
	}
	return buffer.Bytes()
}

func parseProRioTrailer(trailer []byte) (int64, error) {
	r := bytes.NewReader(trailer)
	var version, nRows int64
	if err := binary.Read(r, binary.LittleEndian, &version); err != nil {
		return 0, err
	}
	if version != trailerVersion {
		return 0, errors.Errorf("unrecognized trailer version: got %d, want %d", version, trailerVersion)
	}
	if err := binary.Read(r, binary.LittleEndian, &nRows); err != nil {
		return 0, err
	}
	return nRows, nil
}

// cutAndAdvance returns s[offset:offset+pieceLen], and increments offset by
// pieceLen.
func cutAndAdvance(offset *int, s []byte, pieceLen int) []byte {
	tmpSlice := s[(*offset):]
	*offset += pieceLen
	return tmpSlice[:pieceLen]
}

// Serialized format:
//   [0..4): pos
//   [4..6): len(scaffold), then the scaffold bytes
//   next 2 bytes: len(refBase), then the refBase bytes
//   next 4 bytes: number of individuals n
//   next 16*n bytes: A, C, G, T counts of each individual
// The zstd transformer takes care of the repeated scaffold names.
func marshalProRow(scratch []byte, p interface{}) ([]byte, error) {
	row := p.(*ProRow)
	if len(row.Scaffold) > math.MaxUint16 || len(row.RefBase) > math.MaxUint16 {
		return nil, errors.Errorf("pro: scaffold or reference base too long at %s:%d", row.Scaffold, row.Pos)
	}
	bytesReq := 12 + len(row.Scaffold) + len(row.RefBase) + 16*len(row.Counts)
	t := scratch
	if len(t) < bytesReq {
		t = make([]byte, bytesReq)
	}
	t = t[:bytesReq]

	offset := 0
	binary.LittleEndian.PutUint32(cutAndAdvance(&offset, t, 4), row.Pos)
	binary.LittleEndian.PutUint16(cutAndAdvance(&offset, t, 2), uint16(len(row.Scaffold)))
	copy(cutAndAdvance(&offset, t, len(row.Scaffold)), row.Scaffold)
	binary.LittleEndian.PutUint16(cutAndAdvance(&offset, t, 2), uint16(len(row.RefBase)))
	copy(cutAndAdvance(&offset, t, len(row.RefBase)), row.RefBase)
	binary.LittleEndian.PutUint32(cutAndAdvance(&offset, t, 4), uint32(len(row.Counts)))
	for _, c := range row.Counts {
		dst := cutAndAdvance(&offset, t, 16)
		binary.LittleEndian.PutUint32(dst[:4], c.A)
		binary.LittleEndian.PutUint32(dst[4:8], c.C)
		binary.LittleEndian.PutUint32(dst[8:12], c.G)
		binary.LittleEndian.PutUint32(dst[12:16], c.T)
	}
	return t, nil
}

func unmarshalProRow(in []byte) (out interface{}, err error) {
	defer func() {
		// A short record makes cutAndAdvance panic.
		if r := recover(); r != nil {
			out, err = nil, errors.Errorf("pro: corrupt .pro.rio record: %v", r)
		}
	}()
	offset := 0
	row := &ProRow{}
	row.Pos = binary.LittleEndian.Uint32(cutAndAdvance(&offset, in, 4))
	n := int(binary.LittleEndian.Uint16(cutAndAdvance(&offset, in, 2)))
	row.Scaffold = string(cutAndAdvance(&offset, in, n))
	n = int(binary.LittleEndian.Uint16(cutAndAdvance(&offset, in, 2)))
	row.RefBase = string(cutAndAdvance(&offset, in, n))
	n = int(binary.LittleEndian.Uint32(cutAndAdvance(&offset, in, 4)))
	if n > (len(in)-offset)/16 {
		return nil, errors.Errorf("pro: corrupt .pro.rio record: %d individuals in %d bytes", n, len(in)-offset)
	}
	row.Counts = make([]mpileup.BaseCounts, n)
	for i := range row.Counts {
		src := cutAndAdvance(&offset, in, 16)
		row.Counts[i] = mpileup.BaseCounts{
			A: binary.LittleEndian.Uint32(src[:4]),
			C: binary.LittleEndian.Uint32(src[4:8]),
			G: binary.LittleEndian.Uint32(src[8:12]),
			T: binary.LittleEndian.Uint32(src[12:16]),
		}
	}
	return row, nil
}

// ReadProRio reads rows written in the .pro.rio format, along with the
// individual IDs.
func ReadProRio(rs io.ReadSeeker) (rows []ProRow, ids []string, err error) {
	scanner := recordio.NewScanner(rs, recordio.ScannerOpts{
		Unmarshal: unmarshalProRow,
	})
	if len(scanner.Trailer()) != 0 {
		var nRows int64
		if nRows, err = parseProRioTrailer(scanner.Trailer()); err != nil {
			err = errors.Wrap(err, "couldn't read .pro.rio trailer")
			return
		}
		rows = make([]ProRow, 0, nRows)
	}
	for _, kv := range scanner.Header() {
		switch kv.Key {
		case sampleIDsHeader:
			ids = strings.Split(kv.Value.(string), "\000")
			// Cannot return an error on unrecognized key since recordio can write its own.
		}
	}
	for scanner.Scan() {
		rows = append(rows, *scanner.Get().(*ProRow))
	}
	if err = scanner.Err(); err != nil {
		err = errors.Wrap(err, "couldn't read .pro.rio rows")
	}
	return
}
