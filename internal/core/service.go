package core

import (
	"context"
	"fmt"
	"io"
	"time"

	"github.com/google/uuid"

	"github.com/JonMunkholm/sheetdiff/internal/config"
	"github.com/JonMunkholm/sheetdiff/internal/logging"
	"github.com/JonMunkholm/sheetdiff/internal/table"
)

// Loader parses a named input into a table.
// Satisfied by sheet.Loader.
type Loader interface {
	Load(name string, r io.Reader) (table.Table, error)
}

// Source is one side of a comparison: a file name and its content.
type Source struct {
	Name   string
	Reader io.Reader
}

// Service runs comparisons. It holds no per-comparison state: every call
// loads its own tables and discards them when it returns, so concurrent
// requests never share data.
type Service struct {
	loader  Loader
	limiter *CompareLimiter
	timeout time.Duration
}

// NewService creates a service that loads inputs with loader and applies the
// concurrency and timeout settings from cfg.
func NewService(loader Loader, cfg config.CompareConfig) *Service {
	return &Service{
		loader:  loader,
		limiter: NewCompareLimiter(cfg.MaxConcurrent, cfg.MaxWaitTime),
		timeout: cfg.Timeout,
	}
}

// CompareSources loads both inputs and reports the reference rows missing
// from the subset.
//
// A source that cannot be parsed yields a *ReadError and the comparison does
// not start. Mismatched columns yield a *SchemaMismatchError. No partial
// report is returned with an error.
func (s *Service) CompareSources(ctx context.Context, ref, sub Source) (*Report, error) {
	if ref.Reader == nil || sub.Reader == nil {
		return nil, ErrNoFile
	}

	if s.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, s.timeout)
		defer cancel()
	}

	logger := logging.WithFields(ctx,
		"comparison_id", uuid.NewString(),
		"reference", ref.Name,
		"subset", sub.Name,
		"ip", GetIPAddressFromContext(ctx),
		"user_agent", GetUserAgentFromContext(ctx),
	)

	if err := s.limiter.Acquire(ctx); err != nil {
		logger.Warn("comparison rejected", "error", err)
		return nil, err
	}
	defer s.limiter.Release()

	start := time.Now()

	refTable, err := s.load(ref)
	if err != nil {
		logger.Warn("reference unreadable", "error", err)
		return nil, err
	}
	subTable, err := s.load(sub)
	if err != nil {
		logger.Warn("subset unreadable", "error", err)
		return nil, err
	}

	report, err := s.compare(ctx, refTable, subTable)
	if err != nil {
		logger.Warn("comparison failed", "error", err)
		return nil, err
	}

	logger.Info("comparison complete",
		"reference_rows", report.ReferenceRows,
		"subset_rows", report.SubsetRows,
		"missing", report.Count,
		"duration_ms", time.Since(start).Milliseconds(),
	)
	return report, nil
}

// CompareTables compares two already loaded tables. It takes a limiter slot
// like CompareSources.
func (s *Service) CompareTables(ctx context.Context, ref, sub table.Table) (*Report, error) {
	if err := s.limiter.Acquire(ctx); err != nil {
		return nil, err
	}
	defer s.limiter.Release()

	report, err := s.compare(ctx, ref, sub)
	if err != nil {
		return nil, err
	}

	logging.FromContext(ctx).Debug("tables compared",
		"reference_rows", report.ReferenceRows,
		"subset_rows", report.SubsetRows,
		"missing", report.Count,
	)
	return report, nil
}

// LimiterStatus returns the comparison slot usage.
func (s *Service) LimiterStatus() LimiterStatus {
	return s.limiter.Status()
}

// WaitForComparisons blocks until running comparisons finish or ctx is done.
func (s *Service) WaitForComparisons(ctx context.Context) error {
	return s.limiter.WaitForDrain(ctx)
}

func (s *Service) load(src Source) (table.Table, error) {
	t, err := s.loader.Load(src.Name, src.Reader)
	if err != nil {
		return table.Table{}, &ReadError{Source: src.Name, Err: err}
	}
	return t, nil
}

// compare checks ctx once before starting; a comparison is not interrupted
// once it runs.
func (s *Service) compare(ctx context.Context, ref, sub table.Table) (*Report, error) {
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("comparison not started: %w", err)
	}
	return Compare(ref, sub)
}
