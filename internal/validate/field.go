// Package validate applies field specs and entity business rules to decoded rows.
//
// Validators never touch the store; duplicate and reference checks live in
// core. Every check is row-local, so rows can be validated in parallel.
package validate

import (
	"fmt"
	"math"
	"regexp"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/JonMunkholm/CrewImport/internal/schema"
)

// Code classifies an issue for clients that need more than the message.
type Code string

const (
	CodeRequired  Code = "required"
	CodeType      Code = "type"
	CodeFormat    Code = "format"
	CodeBusiness  Code = "business"
	CodeDuplicate Code = "duplicate"
	CodeReference Code = "reference"
	CodeImport    Code = "import"
)

// Issue is one problem found on a row. Value is the raw cell text, or nil
// when the cell was null.
type Issue struct {
	Field   string
	Code    Code
	Message string
	Value   any
}

var (
	dateRe  = regexp.MustCompile(`^\d{4}-\d{2}-\d{2}$`)
	phoneRe = regexp.MustCompile(`^1[3-9]\d{9}$`)
	emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)
)

// checkFunc inspects a non-empty value. It returns ok=false with a code and
// message when the value does not satisfy the field spec.
type checkFunc func(spec schema.FieldSpec, value string) (code Code, msg string, ok bool)

var checks = map[schema.Kind]checkFunc{
	schema.KindString: checkString,
	schema.KindNumber: checkNumber,
	schema.KindDate:   checkDate,
	schema.KindEnum:   checkEnum,
	schema.KindPhone:  checkPhone,
	schema.KindEmail:  checkEmail,
}

// Fields checks a row against every field spec in order and returns all issues found.
// A required column that is null, empty or whitespace yields exactly one issue
// and is not type checked.
func Fields(row schema.Row, specs []schema.FieldSpec) []Issue {
	var issues []Issue
	for _, spec := range specs {
		raw, present := row.Value(spec.Name)
		blank := !present || strings.TrimSpace(raw) == ""

		if blank {
			if spec.Required {
				issues = append(issues, Issue{
					Field:   spec.Name,
					Code:    CodeRequired,
					Message: fmt.Sprintf("%s为必填字段", spec.Name),
					Value:   nullable(raw, present),
				})
			}
			continue
		}

		check, ok := checks[spec.Kind]
		if !ok {
			continue
		}
		if code, msg, ok := check(spec, raw); !ok {
			issues = append(issues, Issue{Field: spec.Name, Code: code, Message: msg, Value: raw})
		}
	}
	return issues
}

func nullable(raw string, present bool) any {
	if !present {
		return nil
	}
	return raw
}

// Every decoded cell is text, so a string column only enforces its length.
func checkString(spec schema.FieldSpec, value string) (Code, string, bool) {
	if spec.MaxLength > 0 && utf8.RuneCountInString(strings.TrimSpace(value)) > spec.MaxLength {
		return CodeFormat, fmt.Sprintf("%s长度不能超过%d个字符", spec.Name, spec.MaxLength), false
	}
	return "", "", true
}

func checkNumber(spec schema.FieldSpec, value string) (Code, string, bool) {
	if _, ok := ParseNumber(value); !ok {
		return CodeType, fmt.Sprintf("%s必须是数字", spec.Name), false
	}
	return "", "", true
}

func checkDate(spec schema.FieldSpec, value string) (Code, string, bool) {
	if !dateRe.MatchString(value) {
		return CodeFormat, fmt.Sprintf("%s必须是YYYY-MM-DD格式的日期", spec.Name), false
	}
	if _, err := time.Parse(schema.DateLayout, value); err != nil {
		return CodeFormat, fmt.Sprintf("%s不是有效的日期", spec.Name), false
	}
	return "", "", true
}

func checkEnum(spec schema.FieldSpec, value string) (Code, string, bool) {
	for _, v := range spec.EnumValues {
		if value == v {
			return "", "", true
		}
	}
	return CodeFormat, fmt.Sprintf("%s必须是以下值之一: %s", spec.Name, strings.Join(spec.EnumValues, ", ")), false
}

func checkPhone(spec schema.FieldSpec, value string) (Code, string, bool) {
	if !phoneRe.MatchString(value) {
		return CodeFormat, fmt.Sprintf("%s必须是有效的手机号码", spec.Name), false
	}
	return "", "", true
}

func checkEmail(spec schema.FieldSpec, value string) (Code, string, bool) {
	if !emailRe.MatchString(value) {
		return CodeFormat, fmt.Sprintf("%s必须是有效的邮箱地址", spec.Name), false
	}
	return "", "", true
}

// ParseNumber parses a cell as a finite number, ignoring surrounding whitespace.
func ParseNumber(value string) (float64, bool) {
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return f, true
}

// ParseDate parses a cell in the template date layout.
func ParseDate(value string) (time.Time, bool) {
	if !dateRe.MatchString(value) {
		return time.Time{}, false
	}
	t, err := time.Parse(schema.DateLayout, value)
	if err != nil {
		return time.Time{}, false
	}
	return t, true
}

// ParseID parses a cell as a whole-number identifier. Spreadsheet tools may
// render integers as "1.0", which is accepted; "1.5" is not.
func ParseID(value string) (int64, bool) {
	f, ok := ParseNumber(value)
	if !ok || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, false
	}
	return int64(f), true
}
