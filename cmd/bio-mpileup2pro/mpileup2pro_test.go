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

import (
	"bytes"
	"os"
	"os/exec"
	"path/filepath"
	"testing"

	"github.com/grailbio/testutil"
	"github.com/grailbio/testutil/assert"
	"github.com/grailbio/testutil/expect"
)

// run executes bin and returns its exit status and stderr.
func run(t *testing.T, bin string, args ...string) (int, string) {
	cmd := exec.Command(bin, args...)
	stderr := bytes.NewBuffer(nil)
	cmd.Stderr = stderr
	err := cmd.Run()
	if err == nil {
		return 0, stderr.String()
	}
	exitErr, ok := err.(*exec.ExitError)
	assert.True(t, ok, "Command '%s %s' failed to start: %v", bin, args, err)
	return exitErr.ExitCode(), stderr.String()
}

func TestMpileup2pro(t *testing.T) {
	executable := testutil.GoExecutable(t, "//go/src/github.com/grailbio/pro/cmd/bio-mpileup2pro/bio-mpileup2pro")

	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)

	outPath := filepath.Join(tmpdir, "small.pro")
	status, stderr := run(t, executable,
		"-ref", filepath.Join("testdata", "RefNuc.txt"),
		"-id", filepath.Join("testdata", "ids.txt"),
		"-mp", filepath.Join("testdata", "small.mpileup"),
		"-out", outPath)
	assert.EQ(t, status, 0, stderr)
	assert.HasSubstr(t, stderr, "3 individuals analyzed")
	testutil.CompareFiles(t, outPath, filepath.Join("testdata", "small.pro.expected"), nil)
}

func TestMpileup2proUsageErrors(t *testing.T) {
	executable := testutil.GoExecutable(t, "//go/src/github.com/grailbio/pro/cmd/bio-mpileup2pro/bio-mpileup2pro")

	tmpdir, cleanup := testutil.TempDir(t, "", "")
	defer testutil.NoCleanupOnError(t, cleanup, tmpdir)
	outPath := filepath.Join(tmpdir, "never.pro")

	for _, args := range [][]string{
		{"-h"},
		{"-bogus"},
		{"-id", filepath.Join("testdata", "ids.txt"), "-out", outPath},
		{"-id", filepath.Join("testdata", "ids.txt"), "-mp", filepath.Join("testdata", "small.mpileup"), "-out", outPath, "extra"},
		{"-id", filepath.Join("testdata", "ids.txt"), "-mp", filepath.Join("testdata", "small.mpileup"), "-out", outPath, "-format", "vcf"},
	} {
		status, stderr := run(t, executable, args...)
		expect.EQ(t, status, 1, "%v: %s", args, stderr)
		assert.HasSubstr(t, stderr, "Usage:")
	}
	_, err := os.Stat(outPath)
	expect.True(t, os.IsNotExist(err), "%v", err)
}
