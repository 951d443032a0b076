package core

import (
	"context"
	"fmt"

	"github.com/JonMunkholm/CrewImport/internal/schema"
	"github.com/JonMunkholm/CrewImport/internal/validate"
)

// Checker finds rows that collide with persisted data or reference missing
// crew. It runs after field and business validation, on one connection, with
// one query per uniqueness dimension.
type Checker struct {
	store Store

	// batchDuplicates also rejects rows repeating a unique key of an earlier
	// row in the same upload. The first occurrence is kept.
	batchDuplicates bool
}

// NewChecker creates a checker over store.
func NewChecker(store Store, batchDuplicates bool) *Checker {
	return &Checker{store: store, batchDuplicates: batchDuplicates}
}

// Check returns one FieldError per hit, grouped by row in input order.
// Store errors are pipeline-fatal and returned as err.
func (c *Checker) Check(ctx context.Context, entity schema.EntityType, rows []schema.Row) ([]FieldError, error) {
	if _, err := schema.Get(entity); err != nil {
		return nil, err
	}
	if len(rows) == 0 {
		return nil, nil
	}

	conn, err := c.store.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	switch entity {
	case schema.Crew:
		return c.checkCrew(ctx, conn, rows)
	default:
		return c.checkCertificates(ctx, conn, rows)
	}
}

func (c *Checker) checkCrew(ctx context.Context, conn Lookup, rows []schema.Row) ([]FieldError, error) {
	existingIDs, err := conn.ExistingIDNumbers(ctx, distinctText(rows, "id_number"))
	if err != nil {
		return nil, fmt.Errorf("look up id numbers: %w", err)
	}
	existingPhones, err := conn.ExistingPhones(ctx, distinctText(rows, "phone"))
	if err != nil {
		return nil, fmt.Errorf("look up phones: %w", err)
	}

	seenID := make(map[string]int)
	seenPhone := make(map[string]int)

	var errs []FieldError
	for _, row := range rows {
		id := row.Text("id_number")
		if existingIDs[id] {
			errs = append(errs, duplicate(row, "id_number", "身份证号已存在"))
		} else if first, ok := c.seen(seenID, id, row.Index); ok {
			errs = append(errs, duplicate(row, "id_number", fmt.Sprintf("身份证号与第%d行重复", first)))
		}

		phone := row.Text("phone")
		if existingPhones[phone] {
			errs = append(errs, duplicate(row, "phone", "手机号码已存在"))
		} else if first, ok := c.seen(seenPhone, phone, row.Index); ok {
			errs = append(errs, duplicate(row, "phone", fmt.Sprintf("手机号码与第%d行重复", first)))
		}
	}
	return errs, nil
}

func (c *Checker) checkCertificates(ctx context.Context, conn Lookup, rows []schema.Row) ([]FieldError, error) {
	crewIDs := make([]int64, 0, len(rows))
	keys := make([]CertificateKey, 0, len(rows))
	seenCrew := make(map[int64]bool)
	seenKey := make(map[CertificateKey]bool)
	for _, row := range rows {
		id, ok := validate.ParseID(row.Text("crew_id"))
		if !ok {
			continue
		}
		if !seenCrew[id] {
			seenCrew[id] = true
			crewIDs = append(crewIDs, id)
		}
		key := CertificateKey{Number: row.Text("certificate_number"), CrewID: id}
		if !seenKey[key] {
			seenKey[key] = true
			keys = append(keys, key)
		}
	}

	existingCrew, err := conn.ExistingCrewIDs(ctx, crewIDs)
	if err != nil {
		return nil, fmt.Errorf("look up crew: %w", err)
	}
	existingCerts, err := conn.ExistingCertificates(ctx, keys)
	if err != nil {
		return nil, fmt.Errorf("look up certificates: %w", err)
	}

	batch := make(map[CertificateKey]int)

	var errs []FieldError
	for _, row := range rows {
		id, ok := validate.ParseID(row.Text("crew_id"))
		if !ok || !existingCrew[id] {
			errs = append(errs, FieldError{
				Row:     row.Index,
				Field:   "crew_id",
				Message: "船员ID不存在",
				Value:   rawValue(row, "crew_id"),
				Code:    validate.CodeReference,
			})
		}
		if !ok {
			continue
		}

		key := CertificateKey{Number: row.Text("certificate_number"), CrewID: id}
		if existingCerts[key] {
			errs = append(errs, duplicate(row, "certificate_number", "证书编号已存在"))
		} else if c.batchDuplicates {
			if first, dup := batch[key]; dup {
				errs = append(errs, duplicate(row, "certificate_number", fmt.Sprintf("证书编号与第%d行重复", first)))
			} else {
				batch[key] = row.Index
			}
		}
	}
	return errs, nil
}

// seen records the first row carrying value and reports the earlier row when
// value repeats. It always reports false when batch checks are off.
func (c *Checker) seen(first map[string]int, value string, row int) (int, bool) {
	if !c.batchDuplicates {
		return 0, false
	}
	if at, ok := first[value]; ok {
		return at, true
	}
	first[value] = row
	return 0, false
}

func duplicate(row schema.Row, field, msg string) FieldError {
	return FieldError{
		Row:     row.Index,
		Field:   field,
		Message: msg,
		Value:   rawValue(row, field),
		Code:    validate.CodeDuplicate,
	}
}

func rawValue(row schema.Row, column string) any {
	v, ok := row.Value(column)
	if !ok {
		return nil
	}
	return v
}

// distinctText returns the trimmed non-empty values of column in first-seen order.
func distinctText(rows []schema.Row, column string) []string {
	seen := make(map[string]bool, len(rows))
	out := make([]string, 0, len(rows))
	for _, row := range rows {
		v := row.Text(column)
		if v == "" || seen[v] {
			continue
		}
		seen[v] = true
		out = append(out, v)
	}
	return out
}
