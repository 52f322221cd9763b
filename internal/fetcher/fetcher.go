// Package fetcher retrieves search pages over HTTP and reads and writes the
// tabular files (CSV, XLSX) the pipeline consumes and produces.
package fetcher

import "context"

// Fetcher retrieves the text of a page.
type Fetcher interface {
	// FetchText GETs rawURL and returns the decoded body. Anti-bot pages are
	// reported as errors of kind blocked.
	FetchText(ctx context.Context, rawURL string) (string, error)
}
