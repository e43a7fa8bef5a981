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
package pileup

// Common pileup components.

// These constants index the four regular bases in count arrays and in the
// serialized .pro.rio records.  BaseX is the catch-all for everything else
// (N, IUPAC ambiguity codes, '*', etc.).
const (
	// BaseA represents an A base.
	BaseA byte = iota
	// BaseC represents an C base.
	BaseC
	// BaseG represents an G base.
	BaseG
	// BaseT represents an T base.
	BaseT
	// BaseX is a catch-all.
	BaseX
)

// NBase is the number of regular base types.
const NBase = 4

// EnumToASCIITable is the A/C/G/T/X -> ASCII mapping, with X rendered as 'N'.
var EnumToASCIITable = [...]byte{'A', 'C', 'G', 'T', 'N'}

// ASCIIToEnumTable is the ASCII -> A/C/G/T/X mapping.  Both cases map to the
// same enum value; pileup read strings use lower case for reverse-strand
// calls.
var ASCIIToEnumTable [256]byte

func init() {
	for i := range ASCIIToEnumTable {
		ASCIIToEnumTable[i] = BaseX
	}
	for e, c := range EnumToASCIITable[:NBase] {
		ASCIIToEnumTable[c] = byte(e)
		ASCIIToEnumTable[c|0x20] = byte(e)
	}
}
