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
package main

/*
bio-mpileup2pro converts a multi-sample mpileup into a .pro file of
per-individual nucleotide-read counts.
*/

import (
	"flag"
	"fmt"
	"os"

	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/grailbio/base/file"
	"github.com/grailbio/base/file/s3file"
	"github.com/grailbio/base/grail"
	"github.com/grailbio/base/log"
	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/pro/pileup/pro"
)

var (
	refPath     = flag.String("ref", pro.DefaultOpts.RefPath, "Reference-site table: a header line, then 'scaffold position base' lines")
	idPath      = flag.String("id", pro.DefaultOpts.IDPath, "List of individual IDs, one per line, in mpileup column order (required)")
	pileupPath  = flag.String("mp", pro.DefaultOpts.PileupPath, "Multi-sample mpileup path (required)")
	outPath     = flag.String("out", pro.DefaultOpts.OutPath, "Output path")
	format      = flag.String("format", pro.DefaultOpts.Format, "Output format; 'pro', 'pro-bgz' and 'pro-rio' supported")
	parallelism = flag.Int("parallelism", pro.DefaultOpts.Parallelism, "Number of compression goroutines for -format=pro-bgz; 0 = runtime.NumCPU()")
)

func mpileup2proUsage() {
	fmt.Fprintf(os.Stderr, "Usage: %s {<options>}\n", os.Args[0])
	fmt.Fprintf(os.Stderr, "Options:\n")
	flag.PrintDefaults()
}

// parseFlags parses the command line, exiting with status 1 (rather than the
// flag package's 0 or 2) on -h or an unknown flag.
func parseFlags() {
	flag.CommandLine.Init(os.Args[0], flag.ContinueOnError)
	if err := flag.CommandLine.Parse(os.Args[1:]); err != nil {
		// The flag package has already printed the error and usage.
		os.Exit(1)
	}
	if flag.NArg() != 0 {
		fmt.Fprintf(os.Stderr, "unexpected positional arguments: %v\n", flag.Args())
		mpileup2proUsage()
		os.Exit(1)
	}
}

func main() {
	flag.Usage = mpileup2proUsage
	parseFlags()
	shutdown := grail.Init()
	defer shutdown()

	file.RegisterImplementation("s3", func() file.Implementation {
		return s3file.NewImplementation(s3file.NewDefaultProvider(session.Options{}), s3file.Options{})
	})

	opts := pro.Opts{
		RefPath:     *refPath,
		IDPath:      *idPath,
		PileupPath:  *pileupPath,
		OutPath:     *outPath,
		Format:      *format,
		Parallelism: *parallelism,
	}
	if err := pro.ValidateOpts(&opts); err != nil {
		fmt.Fprintln(os.Stderr, err)
		mpileup2proUsage()
		os.Exit(1)
	}
	ctx := vcontext.Background()
	if _, err := pro.Convert(ctx, &opts); err != nil {
		log.Fatalf("%v", err)
	}
	log.Debug.Printf("exiting")
}
