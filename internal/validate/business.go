package validate

import (
	"time"

	"github.com/JonMunkholm/CrewImport/internal/schema"
)

// MinHiringAge is the youngest age, by calendar year, at which crew may join.
const MinHiringAge = 16

type businessRule func(row schema.Row, failed map[string]bool) []Issue

var businessRules = map[schema.EntityType][]businessRule{
	schema.Crew:        {minHiringAge},
	schema.Certificate: {expiryAfterIssue},
}

// Business runs the entity's cross-field rules. fieldIssues are the row's
// field-level issues; a rule that depends on a field with an issue is skipped.
func Business(entity schema.EntityType, row schema.Row, fieldIssues []Issue) []Issue {
	failed := make(map[string]bool, len(fieldIssues))
	for _, is := range fieldIssues {
		failed[is.Field] = true
	}

	var issues []Issue
	for _, rule := range businessRules[entity] {
		issues = append(issues, rule(row, failed)...)
	}
	return issues
}

type timeValue struct {
	t   time.Time
	raw string
}

func parseDateCell(row schema.Row, column string) (timeValue, bool) {
	raw, ok := row.Value(column)
	if !ok {
		return timeValue{}, false
	}
	t, ok := ParseDate(raw)
	return timeValue{t: t, raw: raw}, ok
}

// dates returns both parsed dates, or ok=false if either is absent or failed
// field validation.
func dates(row schema.Row, failed map[string]bool, a, b string) (ta, tb timeValue, ok bool) {
	if failed[a] || failed[b] {
		return ta, tb, false
	}
	ta, okA := parseDateCell(row, a)
	tb, okB := parseDateCell(row, b)
	return ta, tb, okA && okB
}

func minHiringAge(row schema.Row, failed map[string]bool) []Issue {
	birth, join, ok := dates(row, failed, "birth_date", "join_date")
	if !ok {
		return nil
	}
	if join.t.Year()-birth.t.Year() < MinHiringAge {
		return []Issue{{
			Field:   "birth_date",
			Code:    CodeBusiness,
			Message: "入职年龄不能小于16岁",
			Value:   birth.raw,
		}}
	}
	return nil
}

func expiryAfterIssue(row schema.Row, failed map[string]bool) []Issue {
	issue, expiry, ok := dates(row, failed, "issue_date", "expiry_date")
	if !ok {
		return nil
	}
	if !expiry.t.After(issue.t) {
		return []Issue{{
			Field:   "expiry_date",
			Code:    CodeBusiness,
			Message: "到期日期必须晚于签发日期",
			Value:   expiry.raw,
		}}
	}
	return nil
}
