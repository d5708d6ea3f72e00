package pipeline

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/FranksOps/bingscrape/internal/serp"
	"github.com/google/uuid"
)

// mockSERP implements serp.Provider for testing.
type mockSERP struct {
	results []serp.Result
	err     error
	calls   int
}

func (m *mockSERP) Search(ctx context.Context, query string, limit int) ([]serp.Result, error) {
	m.calls++
	if m.err != nil {
		return nil, m.err
	}
	if len(m.results) > limit {
		return m.results[:limit], nil
	}
	return m.results, nil
}

func TestPipeline_Run(t *testing.T) {
	provider := &mockSERP{results: []serp.Result{
		{Title: "Example", URL: "https://example.com/", Description: "An example"},
		{Title: "Other", URL: "https://other.example/"},
	}}

	var out bytes.Buffer
	p := Pipeline{Provider: provider, Out: &out, Format: "json"}

	summary, err := p.Run(context.Background(), "test query", 1)
	if err != nil {
		t.Fatalf("pipeline run failed: %v", err)
	}

	if summary.Count != 1 || summary.Query != "test query" {
		t.Errorf("unexpected summary %+v", summary)
	}
	if _, err := uuid.Parse(summary.SearchID); err != nil {
		t.Errorf("expected uuid search id, got %q", summary.SearchID)
	}

	var decoded struct {
		SearchID string        `json:"search_id"`
		Results  []serp.Result `json:"results"`
	}
	if err := json.Unmarshal(out.Bytes(), &decoded); err != nil {
		t.Fatalf("rendered output is not json: %v", err)
	}
	if decoded.SearchID != summary.SearchID || len(decoded.Results) != 1 {
		t.Errorf("unexpected rendered report %+v", decoded)
	}
}

func TestPipeline_ErrorPassesThrough(t *testing.T) {
	cause := fmt.Errorf("wrapped: %w", serp.ErrConnection)
	p := Pipeline{Provider: &mockSERP{err: cause}}

	_, err := p.Run(context.Background(), "q", 5)
	if !errors.Is(err, serp.ErrConnection) {
		t.Fatalf("expected ErrConnection, got %v", err)
	}
}

func TestPipeline_MissingProvider(t *testing.T) {
	p := Pipeline{}
	if _, err := p.Run(context.Background(), "q", 1); err == nil {
		t.Fatal("expected error for nil provider")
	}
}

func TestPipeline_UnknownFormat(t *testing.T) {
	provider := &mockSERP{}
	p := Pipeline{Provider: provider, Format: "pdf"}
	if _, err := p.Run(context.Background(), "q", 1); err == nil {
		t.Fatal("expected error for unknown format")
	}
	if provider.calls != 0 {
		t.Errorf("format errors should be caught before searching")
	}
}

func TestOutcome(t *testing.T) {
	cases := map[string]error{
		"ok":            nil,
		"invalid_input": serp.ErrInvalidInput,
		"connection":    fmt.Errorf("x: %w", serp.ErrConnection),
		"parsing":       serp.ErrParsing,
		"unknown":       errors.New("other"),
	}
	for want, err := range cases {
		if got := Outcome(err); got != want {
			t.Errorf("Outcome(%v) = %q, want %q", err, got, want)
		}
	}
}
