package core

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/JonMunkholm/CrewImport/internal/schema"
	"github.com/JonMunkholm/CrewImport/internal/validate"
)

// FieldError is one row-level problem reported back to the uploader.
type FieldError struct {
	Row     int           `json:"row"`
	Field   string        `json:"field"`
	Message string        `json:"message"`
	Value   any           `json:"value"`
	Code    validate.Code `json:"code,omitempty"`
}

func newFieldError(row int, is validate.Issue) FieldError {
	return FieldError{
		Row:     row,
		Field:   is.Field,
		Message: is.Message,
		Value:   is.Value,
		Code:    is.Code,
	}
}

// ValidationResult is the full accounting of one validation pass.
// IsValid holds iff Errors is empty. ValidRows holds only rows with no errors
// from any stage.
type ValidationResult struct {
	IsValid    bool         `json:"isValid"`
	Errors     []FieldError `json:"errors"`
	Warnings   []FieldError `json:"warnings"`
	ValidRows  []schema.Row `json:"validRows"`
	TotalRows  int          `json:"totalRows"`
	ValidCount int          `json:"validCount"`
}

// ImportResult is produced by the batch importer after a commit attempt.
type ImportResult struct {
	Success       bool         `json:"success"`
	Message       string       `json:"message"`
	ImportedCount int          `json:"importedCount"`
	TotalCount    int          `json:"totalCount"`
	Errors        []FieldError `json:"errors"`
	Duplicates    []schema.Row `json:"duplicates"`
}

// PreviewRow is a decoded row tagged with whether it passed validation.
type PreviewRow struct {
	Row   schema.Row
	Valid bool
}

// MarshalJSON renders the row's cells followed by _rowIndex and _valid.
func (p PreviewRow) MarshalJSON() ([]byte, error) {
	return p.Row.AnnotatedJSON(map[string]any{"_valid": p.Valid}, "_valid")
}

var _ json.Marshaler = PreviewRow{}

// Validation is the outcome of a dry run: the result plus a short preview.
type Validation struct {
	Entity  schema.EntityType
	Format  string
	Result  *ValidationResult
	Preview []PreviewRow
}

// Phase is the pipeline state recorded in logs and metrics.
type Phase string

const (
	PhaseUploaded  Phase = "uploaded"
	PhaseDecoded   Phase = "decoded"
	PhaseValidated Phase = "validated"
	PhaseRejected  Phase = "rejected"
	PhasePreviewed Phase = "previewed"
	PhaseCommitted Phase = "committed"
	PhaseFailed    Phase = "failed"
)

// ErrValidationFailed is matched by errors.Is for a *ValidationFailedError.
var ErrValidationFailed = errors.New("data validation failed")

// ValidationFailedError is returned by Import when the upload has any error.
// Nothing is written to the store in that case.
type ValidationFailedError struct {
	Result *ValidationResult
}

func (e *ValidationFailedError) Error() string {
	return fmt.Sprintf("data validation failed: %d errors in %d rows", len(e.Result.Errors), e.Result.TotalRows)
}

func (e *ValidationFailedError) Is(target error) bool {
	return target == ErrValidationFailed
}
