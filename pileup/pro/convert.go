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
	"context"
	"fmt"
	"io"
	"runtime"

	"github.com/grailbio/base/compress"
	"github.com/grailbio/base/errors"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/log"
	"github.com/grailbio/pro/pileup/mpileup"
)

type Opts struct {
	// Commandline options.
	RefPath     string
	IDPath      string
	PileupPath  string
	OutPath     string
	Format      string
	Parallelism int
}

var DefaultOpts = Opts{
	RefPath:     "RefNuc.txt",
	OutPath:     "Out.pro",
	Format:      "pro",
	Parallelism: 0,
}

type outputFormat int

const (
	formatPro outputFormat = iota
	formatProBgz
	formatProRio
)

var formatNames = map[string]outputFormat{
	"pro":     formatPro,
	"pro-bgz": formatProBgz,
	"pro-rio": formatProRio,
}

// ValidateOpts checks the options that can be checked without touching any
// file.
func ValidateOpts(opts *Opts) error {
	if opts.IDPath == "" {
		return fmt.Errorf("pro: individual ID list path (-id) is required")
	}
	if opts.PileupPath == "" {
		return fmt.Errorf("pro: mpileup path (-mp) is required")
	}
	if opts.RefPath == "" {
		return fmt.Errorf("pro: reference path (-ref) is required")
	}
	if opts.OutPath == "" {
		return fmt.Errorf("pro: output path (-out) is required")
	}
	if _, ok := formatNames[opts.Format]; !ok {
		return fmt.Errorf("pro: unrecognized format %q; 'pro', 'pro-bgz' and 'pro-rio' supported", opts.Format)
	}
	return nil
}

// input is an opened, possibly decompressed, input file.
type input struct {
	f file.File
	r io.Reader
}

// openInput opens path for reading.  gzip, bzip2 and zstd inputs are
// decompressed transparently.
func openInput(ctx context.Context, path string) (*input, error) {
	f, err := file.Open(ctx, path)
	if err != nil {
		return nil, errors.E(err, "cannot open for reading:", path)
	}
	var r io.Reader = f.Reader(ctx)
	if u := compress.NewReaderPath(r, f.Name()); u != nil {
		r = u
	}
	return &input{f: f, r: r}, nil
}

func (in *input) close(ctx context.Context) error {
	return in.f.Close(ctx)
}

// Convert writes the .pro file described by opts, and returns statistics
// about the run.  On error the output file is removed.
func Convert(ctx context.Context, opts *Opts) (stats Stats, err error) {
	if err = ValidateOpts(opts); err != nil {
		return
	}
	format := formatNames[opts.Format]
	parallelism := opts.Parallelism
	if parallelism <= 0 {
		parallelism = runtime.NumCPU()
	}

	ids, err := readRosterPath(ctx, opts.IDPath)
	if err != nil {
		return
	}
	log.Printf("%d individuals analyzed", len(ids))

	refIn, err := openInput(ctx, opts.RefPath)
	if err != nil {
		return
	}
	defer func() {
		if e := refIn.close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	pileupIn, err := openInput(ctx, opts.PileupPath)
	if err != nil {
		return
	}
	defer func() {
		if e := pileupIn.close(ctx); e != nil && err == nil {
			err = e
		}
	}()

	var dst file.File
	if dst, err = file.Create(ctx, opts.OutPath); err != nil {
		err = errors.E(err, "cannot open for writing:", opts.OutPath)
		return
	}
	defer func() {
		file.CloseAndReport(ctx, dst, &err)
		if err != nil {
			// Never leave a truncated .pro behind.
			if e := file.Remove(ctx, opts.OutPath); e != nil {
				log.Error.Printf("pro.Convert: could not remove %s: %v", opts.OutPath, e)
			}
		}
	}()

	var w RowWriter
	switch format {
	case formatPro:
		w = NewTSVRowWriter(dst.Writer(ctx), false, parallelism)
	case formatProBgz:
		w = NewTSVRowWriter(dst.Writer(ctx), true, parallelism)
	case formatProRio:
		w = NewRioRowWriter(dst.Writer(ctx))
	}

	refs := NewRefScanner(refIn.r)
	recs := mpileup.NewScanner(pileupIn.r, len(ids))
	stats, err = Merge(refs, recs, ids, w)
	if e := w.Close(); e != nil && err == nil {
		err = e
	}
	if err != nil {
		err = errors.E(err, fmt.Sprintf("pro.Convert: %s (reference line %d, mpileup line %d)", opts.PileupPath, refs.Line(), recs.Line()))
		return
	}
	if stats.RefMismatches > 0 {
		log.Printf("pro.Convert: warning: %d site(s) have a different reference base in %s than in %s; first is %s",
			stats.RefMismatches, opts.PileupPath, opts.RefPath, stats.FirstRefMismatch)
	}
	log.Printf("pro.Convert: done, %d sites (%d covered by %d mpileup records) written to %s, checksum %016x",
		stats.Sites, stats.CoveredSites, stats.PileupRecords, opts.OutPath, stats.Checksum())
	return
}

func readRosterPath(ctx context.Context, path string) (ids []string, err error) {
	in, err := openInput(ctx, path)
	if err != nil {
		return nil, err
	}
	defer func() {
		if e := in.close(ctx); e != nil && err == nil {
			err = e
		}
	}()
	if ids, err = ReadRoster(in.r); err != nil {
		err = errors.E(err, path)
	}
	return
}
