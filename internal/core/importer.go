package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/JonMunkholm/CrewImport/internal/logging"
	"github.com/JonMunkholm/CrewImport/internal/schema"
	"github.com/JonMunkholm/CrewImport/internal/validate"
)

// RowImportMessage is the entity-agnostic message recorded for a failed insert.
const RowImportMessage = "数据导入失败"

// Importer writes validated rows in one transaction.
type Importer struct {
	store Store
}

// NewImporter creates an importer over store.
func NewImporter(store Store) *Importer {
	return &Importer{store: store}
}

// Import inserts every row inside one transaction, each in its own savepoint.
// A row whose insert fails is rolled back to its savepoint and reported in
// ImportResult.Errors; the remaining rows are still attempted and the
// transaction commits. The transaction is rolled back only when an error
// escapes the loop (begin, savepoint or commit failure, cancellation).
func (im *Importer) Import(ctx context.Context, entity schema.EntityType, rows []schema.Row) (result *ImportResult, err error) {
	if _, err := schema.Get(entity); err != nil {
		return nil, err
	}

	conn, err := im.store.Acquire(ctx)
	if err != nil {
		return nil, fmt.Errorf("acquire connection: %w", err)
	}
	defer conn.Release()

	tx, err := conn.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if err != nil {
			if rbErr := tx.Rollback(context.WithoutCancel(ctx)); rbErr != nil {
				logging.FromContext(ctx).Error("rollback failed", slog.Any("error", rbErr))
			}
		}
	}()

	result = &ImportResult{
		TotalCount: len(rows),
		Errors:     []FieldError{},
		Duplicates: []schema.Row{},
	}

	for _, row := range rows {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if insertErr := insertRow(ctx, tx, entity, row); insertErr != nil {
			if isFatal(insertErr) {
				return nil, insertErr
			}
			result.Errors = append(result.Errors, FieldError{
				Row:     row.Index,
				Field:   "general",
				Message: RowImportMessage,
				Value:   insertErr.Error(),
				Code:    validate.CodeImport,
			})
			continue
		}
		result.ImportedCount++
	}

	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit: %w", err)
	}

	result.Success = true
	result.Message = fmt.Sprintf("成功导入 %d 条%s数据", result.ImportedCount, entity.Label())
	return result, nil
}

// savepointError marks failures of the savepoint itself, which leave the
// outer transaction in an unknown state.
type savepointError struct{ err error }

func (e *savepointError) Error() string { return "savepoint: " + e.err.Error() }
func (e *savepointError) Unwrap() error { return e.err }

func isFatal(err error) bool {
	var sp *savepointError
	return errors.As(err, &sp)
}

func insertRow(ctx context.Context, tx Tx, entity schema.EntityType, row schema.Row) error {
	sp, err := tx.Begin(ctx)
	if err != nil {
		return &savepointError{err}
	}

	if err := sp.Insert(ctx, entity, row); err != nil {
		if rbErr := sp.Rollback(ctx); rbErr != nil {
			return &savepointError{rbErr}
		}
		return err
	}

	if err := sp.Commit(ctx); err != nil {
		return &savepointError{err}
	}
	return nil
}
