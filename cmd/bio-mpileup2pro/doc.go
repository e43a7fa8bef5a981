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

/*
Given a reference-site table, a list of individual IDs, and a multi-sample
mpileup file (as produced by "samtools mpileup" with one BAM per individual),
bio-mpileup2pro writes a .pro file: one row per reference site, with the
number of reads supporting A, C, G and T in each individual.

	scaffold	site	ref_nuc	ind1	ind2
	chr1	5	A	2/0/0/0	1/0/0/0
	chr1	6	C	0/0/0/0	0/0/0/0

Reference sites missing from the mpileup get 0/0/0/0 for every individual.
Indel sequence and the mapping-quality byte after each '^' read-start marker
are not counted.  The mpileup must list a subset of the reference sites, in
reference order; anything else aborts the run.

Inputs may be gzip/bzip2/zstd-compressed, and any path may be an s3:// URL.

Sample usage:
bio-mpileup2pro \
    -ref RefNuc.txt \
    -id ids.txt \
    -mp samples.mpileup.gz \
    -out samples.pro
*/
package main
