package pipeline

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/FranksOps/bingscrape/internal/metrics"
	"github.com/FranksOps/bingscrape/internal/report"
	"github.com/FranksOps/bingscrape/internal/serp"
	"github.com/google/uuid"
)

// Pipeline runs one search end to end: it tags the run with an id, calls the
// provider, records metrics, and renders the results to Out.
type Pipeline struct {
	Provider serp.Provider
	// Out receives the rendered report. Nil skips rendering.
	Out    io.Writer
	Format string
	Logger *slog.Logger
}

// Run executes a single search. Provider errors are returned unchanged so
// callers can still match the serp failure kinds.
func (p *Pipeline) Run(ctx context.Context, query string, limit int) (report.Summary, error) {
	if p.Provider == nil {
		return report.Summary{}, errors.New("pipeline: provider is nil")
	}
	write, err := report.ForFormat(p.Format)
	if err != nil {
		return report.Summary{}, fmt.Errorf("pipeline: %w", err)
	}

	logger := p.Logger
	if logger == nil {
		logger = slog.Default()
	}
	id := uuid.NewString()
	logger = logger.With("search_id", id)

	logger.Info("search started", "query", query, "limit", limit)
	start := time.Now()

	results, err := p.Provider.Search(ctx, query, limit)
	elapsed := time.Since(start)
	metrics.RecordSearch(Outcome(err), elapsed, len(results))

	if err != nil {
		logger.Error("search failed", "duration", elapsed, "err", err)
		return report.Summary{}, err
	}
	logger.Info("search finished", "results", len(results), "duration", elapsed)

	summary := report.NewSummary(id, query, limit, start, elapsed, results)
	if p.Out != nil {
		if err := write(p.Out, summary); err != nil {
			return summary, fmt.Errorf("pipeline: render: %w", err)
		}
	}
	return summary, nil
}

// Outcome maps a search error to its metrics label.
func Outcome(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, serp.ErrInvalidInput):
		return "invalid_input"
	case errors.Is(err, serp.ErrConnection):
		return "connection"
	case errors.Is(err, serp.ErrParsing):
		return "parsing"
	default:
		return "unknown"
	}
}
