// Package importer turns spreadsheet exports into ledger players.
package importer

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"

	"github.com/jensholdgaard/cpl-auction/internal/ledger"
)

// Column labels recognised in the header row, compared case-insensitively.
const (
	ColumnName         = "player name"
	ColumnRole         = "role"
	ColumnMobile       = "mobile number"
	ColumnImageURL     = "image url"
	ColumnCricheroesID = "cricheroes id"
)

// ErrMissingNameColumn is returned when the header has no "Player Name" column.
var ErrMissingNameColumn = errors.New(`header has no "Player Name" column`)

// ParseCSV reads players from CSV text. The first non-blank row is the
// header. Rows with a blank name are dropped. Returned players carry no id;
// the ledger assigns one on import.
func ParseCSV(r io.Reader) ([]ledger.Player, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true
	cr.TrimLeadingSpace = true

	var cols map[string]int
	var players []ledger.Player
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("reading csv: %w", err)
		}
		if blank(rec) {
			continue
		}
		if cols == nil {
			cols = header(rec)
			if _, ok := cols[ColumnName]; !ok {
				return nil, ErrMissingNameColumn
			}
			continue
		}

		name := field(rec, cols, ColumnName)
		if name == "" {
			continue
		}
		players = append(players, ledger.Player{
			Name:         name,
			Role:         field(rec, cols, ColumnRole),
			Mobile:       field(rec, cols, ColumnMobile),
			ImageURL:     field(rec, cols, ColumnImageURL),
			CricheroesID: field(rec, cols, ColumnCricheroesID),
		})
	}
	return players, nil
}

// header maps lowercased labels to column positions. The first occurrence
// of a label wins.
func header(rec []string) map[string]int {
	cols := make(map[string]int, len(rec))
	for i, h := range rec {
		if i == 0 {
			h = strings.TrimPrefix(h, "\ufeff")
		}
		label := strings.ToLower(strings.TrimSpace(h))
		if _, ok := cols[label]; !ok {
			cols[label] = i
		}
	}
	return cols
}

func field(rec []string, cols map[string]int, label string) string {
	i, ok := cols[label]
	if !ok || i >= len(rec) {
		return ""
	}
	return strings.TrimSpace(rec[i])
}

func blank(rec []string) bool {
	for _, f := range rec {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
