package csvimport

import (
	"strings"

	"github.com/ksred/options-tracker/internal/types"
)

type target struct {
	field    string
	column   *string
	keywords []string
	required bool
}

// targets lists the mapped fields in auto-detection order. A column claimed
// by an earlier field is not offered to later ones, so "Strike Price" goes
// to strike before price looks for "price".
func (m *ColumnMapping) targets() []target {
	return []target{
		{field: "ticker", column: &m.Ticker, keywords: []string{"option", "ticker", "symbol"}, required: true},
		{field: "action", column: &m.Action, keywords: []string{"action"}, required: true},
		{field: "strike", column: &m.Strike, keywords: []string{"strike"}},
		{field: "expired_flag", column: &m.ExpiredFlag, keywords: []string{"expired"}},
		{field: "expiration", column: &m.Expiration, keywords: []string{"expir", "exp"}},
		{field: "trade_date", column: &m.TradeDate, keywords: []string{"transaction", "trade date", "date"}, required: true},
		{field: "quantity", column: &m.Quantity, keywords: []string{"contract", "quantity", "#"}, required: true},
		{field: "price", column: &m.Price, keywords: []string{"price"}, required: true},
		{field: "fees", column: &m.Fees, keywords: []string{"fee", "commission"}},
		{field: "notes", column: &m.Notes, keywords: []string{"remark", "note"}},
	}
}

// DetectMapping matches header names against each field's keywords,
// case-insensitively by substring. Keywords are tried in order and, for
// each keyword, columns in header order; the first unclaimed hit wins.
func DetectMapping(columns []string) ColumnMapping {
	var m ColumnMapping
	claimed := make(map[int]bool, len(columns))

	for _, t := range m.targets() {
	keywords:
		for _, kw := range t.keywords {
			for i, col := range columns {
				if claimed[i] {
					continue
				}
				if strings.Contains(strings.ToLower(col), kw) {
					*t.column = col
					claimed[i] = true
					break keywords
				}
			}
		}
	}
	return m
}

// validate checks that required fields are mapped and every mapped column
// exists in the header.
func (m ColumnMapping) validate(columns []string) error {
	present := make(map[string]bool, len(columns))
	for _, c := range columns {
		present[c] = true
	}

	ve := &types.ValidationError{}
	for _, t := range m.targets() {
		col := *t.column
		switch {
		case col == "" && t.required:
			ve.Add("mapping."+t.field, "a column is required")
		case col != "" && !present[col]:
			ve.Add("mapping."+t.field, "column %q is not in the file header", col)
		}
	}
	return ve.Err()
}

// isEmpty reports whether no field is mapped at all.
func (m ColumnMapping) isEmpty() bool {
	return m == ColumnMapping{}
}
