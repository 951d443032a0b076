// Package schema describes the columns of every importable entity.
//
// The field tables here are the single source of truth for the template
// generator, the decoder's hint-row detection and the field validator. Column
// order is significant: it is the order written to the downloadable template
// and the order in which validators walk a row.
package schema

import (
	"errors"
	"fmt"
	"strings"
)

// EntityType selects which field table and store table an import targets.
type EntityType string

const (
	Crew        EntityType = "crew"
	Certificate EntityType = "certificate"
)

// ErrUnknownEntity is returned for any entity type string other than crew or certificate.
var ErrUnknownEntity = errors.New("unknown import type")

// Parse converts a request value to an EntityType.
func Parse(s string) (EntityType, error) {
	switch EntityType(s) {
	case Crew:
		return Crew, nil
	case Certificate:
		return Certificate, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnknownEntity, s)
}

// Label returns the localized entity name used in messages and file names.
func (e EntityType) Label() string {
	switch e {
	case Crew:
		return "船员"
	case Certificate:
		return "证书"
	default:
		return string(e)
	}
}

// Kind is the value kind a column must hold.
type Kind int

const (
	KindString Kind = iota
	KindNumber
	KindDate
	KindEnum
	KindPhone
	KindEmail
)

// String returns the kind's name.
func (k Kind) String() string {
	switch k {
	case KindString:
		return "string"
	case KindNumber:
		return "number"
	case KindDate:
		return "date"
	case KindEnum:
		return "enum"
	case KindPhone:
		return "phone"
	case KindEmail:
		return "email"
	default:
		return "value"
	}
}

// DateLayout is the only accepted date format, in both the template and uploads.
const DateLayout = "2006-01-02"

// FieldSpec defines validation rules for a single column.
type FieldSpec struct {
	Name       string   // Column header name (must match the template exactly)
	Required   bool     // Empty or whitespace-only values are rejected
	Kind       Kind     // Expected value kind
	MaxLength  int      // Maximum rune count for KindString; 0 means unbounded
	EnumValues []string // Allowed values for KindEnum, case-sensitive
}

// Hint prefixes written to the template's second row.
const (
	HintRequired = "必填"
	HintOptional = "可选"
)

// Hint returns the human-readable requirement/format hint for a column.
func Hint(spec FieldSpec) string {
	desc := HintOptional
	if spec.Required {
		desc = HintRequired
	}

	switch spec.Kind {
	case KindEnum:
		desc += " (" + strings.Join(spec.EnumValues, "/") + ")"
	case KindDate:
		desc += " (YYYY-MM-DD)"
	case KindPhone:
		desc += " (手机号码)"
	case KindEmail:
		desc += " (邮箱地址)"
	}
	return desc
}

// IsHintRow reports whether a decoded line is the template's hint row, i.e.
// every non-empty cell starts with a hint prefix. Blank lines are not hint rows.
func IsHintRow(cells []string) bool {
	seen := false
	for _, c := range cells {
		c = strings.TrimSpace(c)
		if c == "" {
			continue
		}
		if !strings.HasPrefix(c, HintRequired) && !strings.HasPrefix(c, HintOptional) {
			return false
		}
		seen = true
	}
	return seen
}
