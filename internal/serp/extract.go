package serp

import (
	"io"
	"strings"

	"github.com/FranksOps/bingscrape/internal/dom"
)

// Selectors locating the parts of an organic result block.
const (
	resultSelector      = "li.b_algo"
	headingSelector     = "h2"
	anchorSelector      = "a"
	descriptionSelector = "p"
)

// Extract returns the organic results of a parsed results page in document
// order. Blocks without a heading link, with an empty title, or whose link
// fails Clean are dropped without error.
func Extract(doc dom.Node) []Result {
	containers := doc.Find(resultSelector)
	results := make([]Result, 0, len(containers))

	for _, c := range containers {
		r, ok := extractOne(c)
		if !ok {
			continue
		}
		results = append(results, r)
	}
	return results
}

// ExtractHTML parses r and extracts its results. Only parse failures are
// returned as errors.
func ExtractHTML(r io.Reader, contentType string) ([]Result, error) {
	doc, err := dom.Parse(r, contentType)
	if err != nil {
		return nil, err
	}
	return Extract(doc), nil
}

func extractOne(container dom.Node) (Result, bool) {
	heading, ok := container.First(headingSelector)
	if !ok {
		return Result{}, false
	}
	anchor, ok := heading.First(anchorSelector)
	if !ok {
		return Result{}, false
	}

	title := strings.TrimSpace(anchor.Text())
	if title == "" {
		return Result{}, false
	}

	href, _ := anchor.Attr("href")
	link, ok := Clean(href)
	if !ok {
		return Result{}, false
	}

	r := Result{Title: title, URL: link}
	if p, ok := container.First(descriptionSelector); ok {
		r.Description = strings.TrimSpace(p.Text())
	}
	return r, true
}
