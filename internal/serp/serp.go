package serp

import "context"

// Result is one organic search result. Values are built by the extractor and
// never modified afterwards.
type Result struct {
	Title string `json:"title" yaml:"title"`
	URL   string `json:"url" yaml:"url"`
	// Description is the result snippet; empty means the page had none.
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
}

// HasDescription reports whether the result carried a snippet.
func (r Result) HasDescription() bool {
	return r.Description != ""
}

// Provider abstracts a search engine that returns results for a query. The
// limit parameter caps the number of results returned.
type Provider interface {
	Search(ctx context.Context, query string, limit int) ([]Result, error)
}
