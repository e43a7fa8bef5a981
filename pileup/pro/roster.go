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
	"io"

	"github.com/grailbio/base/tsv"
)

// ErrEmptyRoster is returned when the individual ID list has no entries.
var ErrEmptyRoster = errors.New("individual ID list is empty")

type rosterRow struct {
	ID string
}

// ReadRoster reads the individual ID list, one ID per line, in output-column
// order.  Blank lines are skipped.  An ID wrapped in double quotes is
// unquoted.  A line with a tab is an error.
func ReadRoster(r io.Reader) ([]string, error) {
	tsvReader := tsv.NewReader(r)
	tsvReader.LazyQuotes = true
	tsvReader.RequireParseAllColumns = true
	var ids []string
	for {
		var row rosterRow
		if err := tsvReader.Read(&row); err != nil {
			if err == io.EOF {
				break
			}
			return nil, fmt.Errorf("individual %d: %v", len(ids)+1, err)
		}
		ids = append(ids, row.ID)
	}
	if len(ids) == 0 {
		return nil, ErrEmptyRoster
	}
	return ids, nil
}
