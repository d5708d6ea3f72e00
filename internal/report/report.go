package report

import (
	"encoding/csv"
	"encoding/json"
	"fmt"
	"io"
	"text/template"
	"time"

	"github.com/FranksOps/bingscrape/internal/serp"
	"gopkg.in/yaml.v3"
)

// Summary is one completed search, ready for rendering.
type Summary struct {
	SearchID  string        `json:"search_id" yaml:"search_id"`
	Query     string        `json:"query" yaml:"query"`
	Limit     int           `json:"limit" yaml:"limit"`
	Count     int           `json:"count" yaml:"count"`
	StartTime time.Time     `json:"start_time" yaml:"start_time"`
	Duration  time.Duration `json:"-" yaml:"-"`
	ElapsedMS int64         `json:"elapsed_ms" yaml:"elapsed_ms"`
	Results   []serp.Result `json:"results" yaml:"results"`
}

// NewSummary builds a Summary for results, copying the slice.
func NewSummary(id, query string, limit int, start time.Time, duration time.Duration, results []serp.Result) Summary {
	copied := make([]serp.Result, len(results))
	copy(copied, results)
	return Summary{
		SearchID:  id,
		Query:     query,
		Limit:     limit,
		Count:     len(copied),
		StartTime: start,
		Duration:  duration,
		ElapsedMS: duration.Milliseconds(),
		Results:   copied,
	}
}

// Writer renders a Summary in one output format.
type Writer func(w io.Writer, summary Summary) error

// ForFormat returns the writer for a format name.
func ForFormat(format string) (Writer, error) {
	switch format {
	case "text", "":
		return WriteText, nil
	case "json":
		return WriteJSON, nil
	case "csv":
		return WriteCSV, nil
	case "yaml":
		return WriteYAML, nil
	default:
		return nil, fmt.Errorf("report: unknown format %q", format)
	}
}

// WriteJSON writes the summary to the provided writer in JSON format.
func WriteJSON(w io.Writer, summary Summary) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

// WriteYAML writes the summary as a YAML document.
func WriteYAML(w io.Writer, summary Summary) error {
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(summary); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

// WriteCSV writes one row per result with a rank column.
func WriteCSV(w io.Writer, summary Summary) error {
	cw := csv.NewWriter(w)
	if err := cw.Write([]string{"rank", "title", "url", "description"}); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	for i, r := range summary.Results {
		if err := cw.Write([]string{fmt.Sprint(i + 1), r.Title, r.URL, r.Description}); err != nil {
			return fmt.Errorf("report: %w", err)
		}
	}
	cw.Flush()
	if err := cw.Error(); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}

var textTmpl = template.Must(template.New("textReport").Funcs(template.FuncMap{
	"inc": func(i int) int { return i + 1 },
}).Parse(
	`Results for "{{.Query}}" ({{.Count}} of {{.Limit}} requested, {{.Duration}})
{{- range $i, $r := .Results}}

{{inc $i}}. {{$r.Title}}
   {{$r.URL}}
{{- if $r.HasDescription}}
   {{$r.Description}}
{{- end}}
{{- else}}

No results.
{{- end}}
`))

// WriteText writes a human-readable listing of the results.
func WriteText(w io.Writer, summary Summary) error {
	if err := textTmpl.Execute(w, summary); err != nil {
		return fmt.Errorf("report: %w", err)
	}
	return nil
}
