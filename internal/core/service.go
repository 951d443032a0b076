package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/JonMunkholm/CrewImport/internal/logging"
	"github.com/JonMunkholm/CrewImport/internal/schema"
	"github.com/JonMunkholm/CrewImport/internal/sheet"
	"github.com/JonMunkholm/CrewImport/internal/validate"
)

// DefaultPreviewRows is how many decoded rows a dry run echoes back.
const DefaultPreviewRows = 5

// DefaultPipelineTimeout bounds one validate or import pipeline.
const DefaultPipelineTimeout = 5 * time.Minute

// Options configures a Service. Zero values pick the defaults.
type Options struct {
	ValidateWorkers      int            // Row validation goroutines; 0 uses GOMAXPROCS
	CheckBatchDuplicates bool           // Reject unique keys repeated within one upload
	PreviewRows          int            // Rows returned by Validate
	Timeout              time.Duration  // Per-pipeline deadline
	Limiter              *ImportLimiter // Optional concurrency bound
}

// Service runs the import pipeline: decode, validate, check against the
// store and, on request, commit.
type Service struct {
	store    Store
	checker  *Checker
	importer *Importer
	limiter  *ImportLimiter

	workers     int
	previewRows int
	timeout     time.Duration
}

// NewService creates a Service over store.
func NewService(store Store, opts Options) *Service {
	if opts.PreviewRows <= 0 {
		opts.PreviewRows = DefaultPreviewRows
	}
	if opts.Timeout <= 0 {
		opts.Timeout = DefaultPipelineTimeout
	}
	return &Service{
		store:       store,
		checker:     NewChecker(store, opts.CheckBatchDuplicates),
		importer:    NewImporter(store),
		limiter:     opts.Limiter,
		workers:     opts.ValidateWorkers,
		previewRows: opts.PreviewRows,
		timeout:     opts.Timeout,
	}
}

// Template returns the example workbook and its download name.
func (s *Service) Template(entity schema.EntityType) ([]byte, string, error) {
	data, err := sheet.Template(entity)
	if err != nil {
		return nil, "", err
	}
	return data, sheet.TemplateFilename(entity), nil
}

// Validate is a dry run. It never writes to the store, so repeated calls on
// the same buffer return the same result while the store is unchanged.
func (s *Service) Validate(ctx context.Context, entity schema.EntityType, data []byte) (*Validation, error) {
	ctx, done, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	started := time.Now()
	log := pipelineLogger(ctx, entity, "validate")

	v, err := s.validate(ctx, log, entity, data)
	if err != nil {
		s.finish(log, entity, "validate", PhaseFailed, started, err)
		return nil, err
	}

	s.finish(log, entity, "validate", PhasePreviewed, started, nil,
		slog.Bool("valid", v.Result.IsValid),
		slog.Int("errors", len(v.Result.Errors)),
	)
	return v, nil
}

// Import validates data again and commits it when there are no errors.
// An upload with any error returns *ValidationFailedError and writes nothing.
func (s *Service) Import(ctx context.Context, entity schema.EntityType, data []byte) (*ImportResult, error) {
	ctx, done, err := s.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer done()

	started := time.Now()
	log := pipelineLogger(ctx, entity, "import")

	v, err := s.validate(ctx, log, entity, data)
	if err != nil {
		s.finish(log, entity, "import", PhaseFailed, started, err)
		return nil, err
	}
	if !v.Result.IsValid {
		s.finish(log, entity, "import", PhaseRejected, started, nil, slog.Int("errors", len(v.Result.Errors)))
		return nil, &ValidationFailedError{Result: v.Result}
	}

	result, err := s.importer.Import(ctx, entity, v.Result.ValidRows)
	if err != nil {
		err = fmt.Errorf("import %s rows: %w", entity, err)
		s.finish(log, entity, "import", PhaseFailed, started, err)
		return nil, err
	}

	getMetrics().observeImport(string(entity), result)
	s.finish(log, entity, "import", PhaseCommitted, started, nil,
		slog.Int("imported", result.ImportedCount),
		slog.Int("failed", len(result.Errors)),
	)
	return result, nil
}

// HistoryEntry describes one past import.
type HistoryEntry struct {
	Entity        schema.EntityType `json:"type"`
	ImportedCount int               `json:"importedCount"`
	CreatedAt     time.Time         `json:"createdAt"`
}

// History lists previous imports. Imports are not recorded yet, so the list is always empty.
func (s *Service) History(ctx context.Context) []HistoryEntry {
	return []HistoryEntry{}
}

// Ping checks that the store is reachable.
func (s *Service) Ping(ctx context.Context) error {
	return s.store.Ping(ctx)
}

// LimiterStatus reports the concurrency limiter state, or false without a limiter.
func (s *Service) LimiterStatus() (LimiterStatus, bool) {
	if s.limiter == nil {
		return LimiterStatus{}, false
	}
	return s.limiter.Status(), true
}

// begin applies the pipeline deadline and takes a limiter slot.
func (s *Service) begin(ctx context.Context) (context.Context, func(), error) {
	ctx, cancel := context.WithTimeout(ctx, s.timeout)
	if s.limiter == nil {
		return ctx, cancel, nil
	}
	if err := s.limiter.Acquire(ctx); err != nil {
		cancel()
		return nil, nil, err
	}
	return ctx, func() {
		s.limiter.Release()
		cancel()
	}, nil
}

func (s *Service) validate(ctx context.Context, log *slog.Logger, entity schema.EntityType, data []byte) (*Validation, error) {
	def, err := schema.Get(entity)
	if err != nil {
		return nil, err
	}
	log.Debug("pipeline phase", slog.String("phase", string(PhaseUploaded)), slog.Int("bytes", len(data)))

	decoded, err := sheet.Decode(data, sheet.DecodeOptions{SkipRow: schema.IsHintRow})
	if err != nil {
		return nil, fmt.Errorf("decode upload: %w", err)
	}
	rows := decoded.Rows
	log.Debug("pipeline phase",
		slog.String("phase", string(PhaseDecoded)),
		slog.String("format", decoded.Format),
		slog.Int("rows", len(rows)),
	)

	issues, err := validate.Rows(ctx, entity, rows, s.workers)
	if err != nil {
		return nil, fmt.Errorf("validate rows: %w", err)
	}

	result := &ValidationResult{
		Errors:    []FieldError{},
		Warnings:  unknownColumns(def, decoded.Header),
		ValidRows: []schema.Row{},
		TotalRows: len(rows),
	}

	rejected := make(map[int]bool)
	candidates := make([]schema.Row, 0, len(rows))
	for i, row := range rows {
		if len(issues[i]) == 0 {
			candidates = append(candidates, row)
			continue
		}
		rejected[row.Index] = true
		for _, is := range issues[i] {
			result.Errors = append(result.Errors, newFieldError(row.Index, is))
		}
	}

	conflicts, err := s.checker.Check(ctx, entity, candidates)
	if err != nil {
		return nil, fmt.Errorf("check duplicates: %w", err)
	}
	for _, fe := range conflicts {
		rejected[fe.Row] = true
		result.Errors = append(result.Errors, fe)
	}

	for _, row := range candidates {
		if !rejected[row.Index] {
			result.ValidRows = append(result.ValidRows, row)
		}
	}
	result.ValidCount = len(result.ValidRows)
	result.IsValid = len(result.Errors) == 0

	getMetrics().observeValidation(string(entity), result)
	log.Debug("pipeline phase",
		slog.String("phase", string(PhaseValidated)),
		slog.Int("rows", result.TotalRows),
		slog.Int("valid", result.ValidCount),
		slog.Int("errors", len(result.Errors)),
	)

	n := min(s.previewRows, len(rows))
	preview := make([]PreviewRow, n)
	for i := range n {
		preview[i] = PreviewRow{Row: rows[i], Valid: !rejected[rows[i].Index]}
	}

	return &Validation{
		Entity:  entity,
		Format:  decoded.Format,
		Result:  result,
		Preview: preview,
	}, nil
}

// unknownColumns warns about header names the entity does not define.
// Those columns are ignored rather than rejected.
func unknownColumns(def schema.Definition, header []string) []FieldError {
	known := make(map[string]bool, len(def.Fields))
	for _, f := range def.Fields {
		known[f.Name] = true
	}

	warnings := []FieldError{}
	for _, h := range header {
		if known[h] {
			continue
		}
		warnings = append(warnings, FieldError{
			Field:   h,
			Message: fmt.Sprintf("未知列%s将被忽略", h),
			Code:    validate.CodeFormat,
		})
	}
	return warnings
}

func pipelineLogger(ctx context.Context, entity schema.EntityType, operation string) *slog.Logger {
	args := []any{"entity", string(entity), "operation", operation}
	if actor := ActorFromContext(ctx); actor != "" {
		args = append(args, "actor", actor)
	}
	if ip := ClientIPFromContext(ctx); ip != "" {
		args = append(args, "client_ip", ip)
	}
	return logging.WithFields(ctx, args...)
}

func (s *Service) finish(log *slog.Logger, entity schema.EntityType, operation string, phase Phase, started time.Time, err error, attrs ...any) {
	getMetrics().observePipeline(string(entity), operation, phase, started)

	attrs = append(attrs,
		slog.String("phase", string(phase)),
		slog.Duration("duration", time.Since(started)),
	)
	if err != nil {
		log.Warn("pipeline failed", append(attrs, slog.Any("error", err))...)
		return
	}
	log.Info("pipeline finished", attrs...)
}
