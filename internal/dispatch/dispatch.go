// Package dispatch fans page fetches out concurrently and gathers the
// outcomes back into candidate order.
package dispatch

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/hyperifyio/goscrape/internal/fetch"
)

// Fetcher resolves one URL to a page or to absent. Implementations must not
// block past their own timeout.
type Fetcher interface {
	Fetch(ctx context.Context, url string) (fetch.Page, bool)
}

// Result is one slot of a dispatch. OK is false when the page is absent.
type Result struct {
	URL  string
	Page fetch.Page
	OK   bool
}

// Options tunes FetchAll. Limit caps the number of goroutines fetching at
// once; zero launches every fetch immediately.
type Options struct {
	Limit int
}

// FetchAll fetches every URL concurrently and blocks until all of them have
// resolved. Slot i of the result always belongs to urls[i], regardless of
// completion order, and one fetch failing never affects another slot.
func FetchAll(ctx context.Context, f Fetcher, urls []string, opt Options) []Result {
	out := make([]Result, len(urls))
	// Tasks never return an error, so the group context is never cancelled
	// on behalf of a sibling; only the caller's ctx can stop the batch.
	var g errgroup.Group
	if opt.Limit > 0 {
		g.SetLimit(opt.Limit)
	}
	for i, u := range urls {
		i, u := i, u
		g.Go(func() error {
			page, ok := f.Fetch(ctx, u)
			out[i] = Result{URL: u, Page: page, OK: ok}
			return nil
		})
	}
	_ = g.Wait()
	return out
}

// Pages returns the present pages in slot order.
func Pages(results []Result) []fetch.Page {
	pages := make([]fetch.Page, 0, len(results))
	for _, r := range results {
		if r.OK {
			pages = append(pages, r.Page)
		}
	}
	return pages
}
