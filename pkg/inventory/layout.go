/*
 * Copyright 2025 Carver Automation Corporation.
 *
 * Licensed under the Apache License, Version 2.0 (the "License");
 * you may not use this file except in compliance with the License.
 * You may obtain a copy of the License at
 *
 *     http://www.apache.org/licenses/LICENSE-2.0
 *
 * Unless required by applicable law or agreed to in writing, software
 * distributed under the License is distributed on an "AS IS" BASIS,
 * WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
 * See the License for the specific language governing permissions and
 * limitations under the License.
 */

package inventory

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/carverauto/guardpost/pkg/models"
)

var errBadRange = errors.New("invalid A1 range")

// layout locates identity fields inside the fetched data range.
type layout struct {
	sheet    string
	firstRow int
	reported string
	idx      struct {
		addr, reported, asset, model, owner, contact, alias, mac int
	}
}

// newLayout parses a range such as RF!A2:K351 and resolves the column letters of cols
// into offsets from the first column of that range.
func newLayout(dataRange string, cols models.ColumnLayout) (*layout, error) {
	sheet, cells, ok := strings.Cut(dataRange, "!")
	if !ok || sheet == "" {
		return nil, fmt.Errorf("%w: %q has no sheet name", errBadRange, dataRange)
	}

	start, _, _ := strings.Cut(cells, ":")

	startCol, startRow, err := splitCell(start)
	if err != nil {
		return nil, fmt.Errorf("%w: %q: %w", errBadRange, dataRange, err)
	}

	l := &layout{sheet: sheet, firstRow: startRow, reported: strings.ToUpper(cols.ReportedID)}

	base := columnIndex(startCol)
	fields := []struct {
		letter string
		dst    *int
	}{
		{cols.NetworkAddress, &l.idx.addr},
		{cols.ReportedID, &l.idx.reported},
		{cols.AssetTag, &l.idx.asset},
		{cols.Model, &l.idx.model},
		{cols.Owner, &l.idx.owner},
		{cols.Contact, &l.idx.contact},
		{cols.Alias, &l.idx.alias},
		{cols.MACAddress, &l.idx.mac},
	}

	for _, f := range fields {
		if f.letter == "" {
			*f.dst = -1
			continue
		}

		col := columnIndex(strings.ToUpper(f.letter))
		if col < base {
			return nil, fmt.Errorf("%w: column %s is left of range start %s", errBadRange, f.letter, startCol)
		}

		*f.dst = col - base
	}

	if l.idx.addr < 0 || l.idx.reported < 0 {
		return nil, fmt.Errorf("%w: network address and reported id columns are required", errBadRange)
	}

	return l, nil
}

// splitCell splits "A2" into ("A", 2).
func splitCell(cell string) (string, int, error) {
	i := strings.IndexFunc(cell, func(r rune) bool { return r >= '0' && r <= '9' })
	if i <= 0 {
		return "", 0, fmt.Errorf("cell %q needs a column and a row", cell)
	}

	row, err := strconv.Atoi(cell[i:])
	if err != nil || row < 1 {
		return "", 0, fmt.Errorf("cell %q has an invalid row", cell)
	}

	return strings.ToUpper(cell[:i]), row, nil
}

// columnIndex converts A..Z, AA.. into a zero-based index.
func columnIndex(letters string) int {
	n := 0
	for _, r := range letters {
		n = n*26 + int(r-'A'+1)
	}

	return n - 1
}

func cell(row []interface{}, idx int) string {
	if idx < 0 || idx >= len(row) || row[idx] == nil {
		return ""
	}

	return strings.TrimSpace(fmt.Sprint(row[idx]))
}

// identities converts fetched rows into identities, keeping source order.
func (l *layout) identities(values [][]interface{}) []models.DeviceIdentity {
	out := make([]models.DeviceIdentity, 0, len(values))

	for i, row := range values {
		addr := cell(row, l.idx.addr)
		if addr == "" {
			continue
		}

		out = append(out, models.DeviceIdentity{
			RowIndex:       l.firstRow + i,
			NetworkAddress: addr,
			ReportedID:     cell(row, l.idx.reported),
			Attributes: models.IdentityAttributes{
				Owner:      cell(row, l.idx.owner),
				AssetTag:   cell(row, l.idx.asset),
				Model:      cell(row, l.idx.model),
				Contact:    cell(row, l.idx.contact),
				Alias:      cell(row, l.idx.alias),
				MACAddress: cell(row, l.idx.mac),
			},
		})
	}

	return out
}

// reportedCell returns the A1 address of the reported id cell in rowIndex.
func (l *layout) reportedCell(rowIndex int) string {
	return fmt.Sprintf("%s!%s%d", l.sheet, l.reported, rowIndex)
}
