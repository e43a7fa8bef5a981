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
package pro_test

import (
	"bytes"
	"io/ioutil"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"testing"

	"github.com/grailbio/base/vcontext"
	"github.com/grailbio/pro/pileup/mpileup"
	"github.com/grailbio/pro/pileup/pro"
	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
	"github.com/klauspost/compress/gzip"
)

const (
	scenarioRef    = "scaffold position base\nchr1 5 A\n"
	scenarioPileup = "chr1 5 A 2 .. ZZ 1 A X\n"
	scenarioIDs    = "S1\nS2\n"
	scenarioPro    = "scaffold\tsite\tref_nuc\tS1\tS2\n" +
		"chr1\t5\tA\t2/0/0/0\t1/0/0/0\n"
)

func writeFile(t *testing.T, dir, name, data string) string {
	path := filepath.Join(dir, name)
	assert.NoError(t, ioutil.WriteFile(path, []byte(data), 0644))
	return path
}

func writeGzipFile(t *testing.T, dir, name, data string) string {
	var buf bytes.Buffer
	w := gzip.NewWriter(&buf)
	_, err := w.Write([]byte(data))
	assert.NoError(t, err)
	assert.NoError(t, w.Close())
	return writeFile(t, dir, name, buf.String())
}

func scenarioOpts(t *testing.T, dir string) pro.Opts {
	opts := pro.DefaultOpts
	opts.RefPath = writeFile(t, dir, "RefNuc.txt", scenarioRef)
	opts.IDPath = writeFile(t, dir, "ids.txt", scenarioIDs)
	opts.PileupPath = writeFile(t, dir, "in.mpileup", scenarioPileup)
	opts.OutPath = filepath.Join(dir, "Out.pro")
	return opts
}

func TestConvert(t *testing.T) {
	ctx := vcontext.Background()
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)

	opts := scenarioOpts(t, tmpdir)
	stats, err := pro.Convert(ctx, &opts)
	assert.NoError(t, err)
	got, err := ioutil.ReadFile(opts.OutPath)
	assert.NoError(t, err)
	expect.EQ(t, string(got), scenarioPro)
	expect.EQ(t, stats.Sites, int64(1))
	expect.EQ(t, stats.PileupRecords, int64(1))
}

func TestConvertGzipInputs(t *testing.T) {
	ctx := vcontext.Background()
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)

	var ref, pileup strings.Builder
	ref.WriteString("scaffold\tposition\tbase\n")
	const nSite = 1000
	for pos := 1; pos <= nSite; pos++ {
		ref.WriteString("scaffold_7\t")
		ref.WriteString(strconv.Itoa(pos))
		ref.WriteString("\tT\n")
		if pos%3 == 0 {
			pileup.WriteString("scaffold_7\t")
			pileup.WriteString(strconv.Itoa(pos))
			pileup.WriteString("\tT\t2\t.a\tII\n")
		}
	}
	opts := pro.DefaultOpts
	opts.RefPath = writeGzipFile(t, tmpdir, "RefNuc.txt.gz", ref.String())
	opts.IDPath = writeFile(t, tmpdir, "ids.txt", "x\n")
	opts.PileupPath = writeGzipFile(t, tmpdir, "in.mpileup.gz", pileup.String())
	opts.OutPath = filepath.Join(tmpdir, "Out.pro")
	stats, err := pro.Convert(ctx, &opts)
	assert.NoError(t, err)
	expect.EQ(t, stats.Sites, int64(nSite))
	expect.EQ(t, stats.CoveredSites, int64(nSite/3))

	got, err := ioutil.ReadFile(opts.OutPath)
	assert.NoError(t, err)
	lines := strings.Split(strings.TrimSuffix(string(got), "\n"), "\n")
	assert.EQ(t, len(lines), nSite+1)
	expect.EQ(t, lines[1], "scaffold_7\t1\tT\t0/0/0/0")
	expect.EQ(t, lines[3], "scaffold_7\t3\tT\t1/0/0/1")
}

func TestConvertFormats(t *testing.T) {
	ctx := vcontext.Background()
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)

	opts := scenarioOpts(t, tmpdir)
	opts.Format = "pro-bgz"
	opts.OutPath = filepath.Join(tmpdir, "Out.pro.gz")
	_, err := pro.Convert(ctx, &opts)
	assert.NoError(t, err)
	f, err := os.Open(opts.OutPath)
	assert.NoError(t, err)
	r, err := gzip.NewReader(f)
	assert.NoError(t, err)
	got, err := ioutil.ReadAll(r)
	assert.NoError(t, err)
	assert.NoError(t, f.Close())
	expect.EQ(t, string(got), scenarioPro)

	opts.Format = "pro-rio"
	opts.OutPath = filepath.Join(tmpdir, "Out.pro.rio")
	_, err = pro.Convert(ctx, &opts)
	assert.NoError(t, err)
	f, err = os.Open(opts.OutPath)
	assert.NoError(t, err)
	rows, ids, err := pro.ReadProRio(f)
	assert.NoError(t, err)
	assert.NoError(t, f.Close())
	expect.EQ(t, ids, []string{"S1", "S2"})
	expect.EQ(t, rows, []pro.ProRow{{
		Scaffold: "chr1",
		Pos:      5,
		RefBase:  "A",
		Counts:   []mpileup.BaseCounts{{A: 2}, {A: 1}},
	}})
}

func TestConvertErrors(t *testing.T) {
	ctx := vcontext.Background()
	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)

	// Missing input.
	opts := scenarioOpts(t, tmpdir)
	opts.PileupPath = filepath.Join(tmpdir, "nonexistent.mpileup")
	_, err := pro.Convert(ctx, &opts)
	assert.True(t, err != nil)
	assert.HasSubstr(t, err.Error(), "nonexistent.mpileup")

	// Empty roster.
	opts = scenarioOpts(t, tmpdir)
	opts.IDPath = writeFile(t, tmpdir, "empty_ids.txt", "")
	_, err = pro.Convert(ctx, &opts)
	assert.True(t, err != nil)
	assert.HasSubstr(t, err.Error(), "empty")

	// Bad format.
	opts = scenarioOpts(t, tmpdir)
	opts.Format = "vcf"
	_, err = pro.Convert(ctx, &opts)
	assert.True(t, err != nil)
	assert.HasSubstr(t, err.Error(), "unrecognized format")

	// A pileup site missing from the reference leaves no output behind.
	opts = scenarioOpts(t, tmpdir)
	opts.OutPath = filepath.Join(tmpdir, "desync.pro")
	opts.PileupPath = writeFile(t, tmpdir, "desync.mpileup", "chr1 6 A 1 . I 1 . I\n")
	_, err = pro.Convert(ctx, &opts)
	assert.True(t, err != nil)
	assert.HasSubstr(t, err.Error(), "mpileup line 1")
	_, err = os.Stat(opts.OutPath)
	expect.True(t, os.IsNotExist(err), "%v", err)
}

func TestValidateOpts(t *testing.T) {
	opts := pro.DefaultOpts
	assert.True(t, pro.ValidateOpts(&opts) != nil)
	opts.IDPath = "ids.txt"
	assert.True(t, pro.ValidateOpts(&opts) != nil)
	opts.PileupPath = "in.mpileup"
	assert.NoError(t, pro.ValidateOpts(&opts))
	opts.OutPath = ""
	assert.True(t, pro.ValidateOpts(&opts) != nil)
}
