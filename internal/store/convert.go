package store

// convert.go turns validated cell text into pgtype values.
//
// Rows reaching the store have already passed field validation, so each
// converter only has to handle the one accepted format for its kind. Empty
// or unparseable input yields Valid=false and is written as NULL.

import (
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgtype"

	"github.com/JonMunkholm/CrewImport/internal/schema"
	"github.com/JonMunkholm/CrewImport/internal/validate"
)

// ToPgText converts a string to pgtype.Text.
// Returns invalid if the string is empty or only whitespace.
func ToPgText(s string) pgtype.Text {
	s = strings.TrimSpace(s)
	if s == "" {
		return pgtype.Text{Valid: false}
	}
	return pgtype.Text{String: s, Valid: true}
}

// ToPgDate converts a YYYY-MM-DD string to pgtype.Date.
func ToPgDate(s string) pgtype.Date {
	t, err := time.Parse(schema.DateLayout, strings.TrimSpace(s))
	if err != nil {
		return pgtype.Date{Valid: false}
	}
	return pgtype.Date{Time: t, Valid: true}
}

// ToPgInt8 converts an integral number to pgtype.Int8. "12" and "12.0" are
// accepted; fractional values are invalid.
func ToPgInt8(s string) pgtype.Int8 {
	n, ok := validate.ParseID(s)
	if !ok {
		return pgtype.Int8{Valid: false}
	}
	return pgtype.Int8{Int64: n, Valid: true}
}

// toPg picks the converter for a column kind. Number columns are all
// identifiers in the current schema and are stored as bigint.
func toPg(kind schema.Kind, s string) any {
	switch kind {
	case schema.KindDate:
		return ToPgDate(s)
	case schema.KindNumber:
		return ToPgInt8(s)
	default:
		return ToPgText(s)
	}
}
