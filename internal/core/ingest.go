package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
)

// DefaultRunTimeout bounds a single ingestion run.
const DefaultRunTimeout = 10 * time.Minute

// ContextCheckInterval is how often (in rows) the run checks for cancellation.
const ContextCheckInterval = 100

// RunObserver receives run and row outcomes, e.g. for metrics.
type RunObserver interface {
	RowProcessed(outcome Outcome, warnings int)
	RunFinished(report *Report, err error)
}

// Options configures a Service.
type Options struct {
	CountryCode         string
	MaxHeaderSearchRows int
	RunTimeout          time.Duration
	MaxConcurrentRuns   int
	MaxWaitTime         time.Duration
	Observer            RunObserver
	Logger              *slog.Logger
}

// IngestRequest is one uploaded roster.
type IngestRequest struct {
	FileName string
	Data     []byte
	DryRun   bool
}

// Service drives the pipeline: parse, then per row transform, resolve
// and commit.
type Service struct {
	store       Store
	limiter     *RunLimiter
	transformer *Transformer
	opts        Options
	logger      *slog.Logger
}

// NewService returns a Service backed by store.
func NewService(store Store, opts Options) *Service {
	if opts.RunTimeout <= 0 {
		opts.RunTimeout = DefaultRunTimeout
	}
	if opts.MaxHeaderSearchRows <= 0 {
		opts.MaxHeaderSearchRows = MaxHeaderSearchRows
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}
	return &Service{
		store:       store,
		limiter:     NewRunLimiter(opts.MaxConcurrentRuns, opts.MaxWaitTime),
		transformer: NewTransformer(opts.CountryCode),
		opts:        opts,
		logger:      logger,
	}
}

// Limiter exposes the run limiter for health checks and shutdown.
func (s *Service) Limiter() *RunLimiter {
	return s.limiter
}

// Ingest processes one file. It returns an error only when no report can
// be produced: an *UnreadableFileError, ErrIngestBusy, or context
// cancellation. Row failures are reported, never returned.
func (s *Service) Ingest(ctx context.Context, req IngestRequest) (*Report, error) {
	report := &Report{
		RunID:     uuid.New().String(),
		FileName:  req.FileName,
		DryRun:    req.DryRun,
		StartedAt: time.Now(),
		RowErrors: []RowError{},
		Warnings:  []FieldWarning{},
	}
	logger := s.logger.With("run_id", report.RunID, "file", req.FileName, "dry_run", req.DryRun)

	err := s.run(ctx, report, req, logger)
	report.Duration = time.Since(report.StartedAt)
	if s.opts.Observer != nil {
		s.opts.Observer.RunFinished(report, err)
	}
	if err != nil {
		return nil, err
	}
	return report, nil
}

func (s *Service) run(ctx context.Context, report *Report, req IngestRequest, logger *slog.Logger) error {
	if err := s.limiter.Acquire(ctx); err != nil {
		logger.Warn("ingest rejected", "error", err)
		return err
	}
	defer s.limiter.Release()

	ctx, cancel := context.WithTimeout(ctx, s.opts.RunTimeout)
	defer cancel()

	parsed, err := ParseFile(req.FileName, req.Data, ParseOptions{MaxHeaderSearchRows: s.opts.MaxHeaderSearchRows})
	if err != nil {
		logger.Warn("ingest rejected", "error", err)
		return err
	}
	logger.Info("ingest started",
		"format", parsed.Format,
		"encoding", parsed.Encoding,
		"rows", len(parsed.Rows),
		"unmapped_columns", parsed.Unmapped,
	)

	for _, m := range parsed.Malformed {
		report.TotalRows++
		report.RowErrors = append(report.RowErrors, m)
		s.observe(OutcomeFailed, 0)
	}

	resolver := NewResolver(s.store)
	for i, row := range parsed.Rows {
		if i%ContextCheckInterval == 0 {
			if err := ctx.Err(); err != nil {
				logger.Warn("ingest cancelled", "row", row.Number, "error", err)
				return fmt.Errorf("ingest cancelled at row %d: %w", row.Number, err)
			}
		}

		report.TotalRows++
		outcome, warnings, rowErr := s.processRow(ctx, resolver, report.RunID, row, req.DryRun)
		report.Warnings = append(report.Warnings, warnings...)
		if rowErr != nil {
			report.RowErrors = append(report.RowErrors, *rowErr)
			logger.Debug("row rejected", "row", rowErr.Row, "code", rowErr.Kind, "error", rowErr.Message)
		} else {
			report.count(outcome)
		}
		s.observe(outcome, len(warnings))
	}

	sortRowErrors(report.RowErrors)
	report.Duration = time.Since(report.StartedAt)

	if !req.DryRun {
		if err := s.store.RecordRun(ctx, report); err != nil {
			logger.Error("record ingestion run", "error", err)
		}
	}

	logger.Info("ingest finished",
		"total", report.TotalRows,
		"created", report.Created,
		"updated", report.Updated,
		"unchanged", report.Unchanged,
		"failed", report.Failed(),
		"warnings", len(report.Warnings),
		"duration", report.Duration,
	)
	return nil
}

// processRow runs transform, resolve and commit for one row. A unique
// violation at commit means another writer claimed the key after we
// looked; the row is resolved again and retried once.
func (s *Service) processRow(ctx context.Context, resolver *Resolver, runID string, row RawRow, dryRun bool) (Outcome, []FieldWarning, *RowError) {
	rec, warnings, rowErr := s.transformer.Transform(row)
	if rowErr != nil {
		return OutcomeFailed, nil, rowErr
	}

	const attempts = 2
	for attempt := 1; ; attempt++ {
		plan, err := resolver.Resolve(ctx, row.Number, rec)
		if err != nil {
			return OutcomeFailed, warnings, asRowError(row.Number, "resolve", err)
		}
		plan.RunID = runID

		if dryRun {
			resolver.Stage(plan, true)
			return plan.Outcome(), warnings, nil
		}

		if plan.Outcome() == OutcomeUnchanged {
			resolver.Stage(plan, false)
			return OutcomeUnchanged, warnings, nil
		}

		err = s.store.Apply(ctx, plan)
		if err == nil {
			resolver.Stage(plan, false)
			return plan.Outcome(), warnings, nil
		}
		if errors.Is(err, ErrConflict) && attempt < attempts {
			s.logger.Debug("commit conflict, resolving again", "run_id", runID, "row", row.Number, "error", err)
			continue
		}
		return OutcomeFailed, warnings, asRowError(row.Number, "commit", err)
	}
}

func (s *Service) observe(outcome Outcome, warnings int) {
	if s.opts.Observer != nil {
		s.opts.Observer.RowProcessed(outcome, warnings)
	}
}

func asRowError(row int, op string, err error) *RowError {
	var re *RowError
	if errors.As(err, &re) {
		return re
	}
	return storageRowError(row, op, err)
}

func sortRowErrors(errs []RowError) {
	for i := 1; i < len(errs); i++ {
		for j := i; j > 0 && errs[j].Row < errs[j-1].Row; j-- {
			errs[j], errs[j-1] = errs[j-1], errs[j]
		}
	}
}
