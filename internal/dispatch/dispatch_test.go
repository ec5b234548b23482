package dispatch

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/hyperifyio/goscrape/internal/fetch"
)

// stubFetcher answers from a table and sleeps per URL so completion order
// differs from input order.
type stubFetcher struct {
	pages  map[string]string
	delays map[string]time.Duration

	inFlight    int32
	maxInFlight int32
}

func (s *stubFetcher) Fetch(ctx context.Context, url string) (fetch.Page, bool) {
	cur := atomic.AddInt32(&s.inFlight, 1)
	defer atomic.AddInt32(&s.inFlight, -1)
	for {
		prev := atomic.LoadInt32(&s.maxInFlight)
		if cur <= prev || atomic.CompareAndSwapInt32(&s.maxInFlight, prev, cur) {
			break
		}
	}
	if d := s.delays[url]; d > 0 {
		select {
		case <-ctx.Done():
			return fetch.Page{}, false
		case <-time.After(d):
		}
	}
	body, ok := s.pages[url]
	if !ok {
		return fetch.Page{}, false
	}
	return fetch.Page{URL: url, Body: []byte(body)}, true
}

func TestFetchAll_PreservesOrderWithFailures(t *testing.T) {
	f := &stubFetcher{
		pages:  map[string]string{"A": "contentA", "C": "contentC"},
		delays: map[string]time.Duration{"A": 60 * time.Millisecond, "B": 5 * time.Millisecond, "C": 0},
	}
	got := FetchAll(context.Background(), f, []string{"A", "B", "C"}, Options{})
	if len(got) != 3 {
		t.Fatalf("expected 3 slots, got %d", len(got))
	}
	if !got[0].OK || string(got[0].Page.Body) != "contentA" {
		t.Fatalf("slot 0: %+v", got[0])
	}
	if got[1].OK || got[1].URL != "B" {
		t.Fatalf("slot 1 should be absent B: %+v", got[1])
	}
	if !got[2].OK || string(got[2].Page.Body) != "contentC" {
		t.Fatalf("slot 2: %+v", got[2])
	}

	pages := Pages(got)
	if len(pages) != 2 || pages[0].URL != "A" || pages[1].URL != "C" {
		t.Fatalf("unexpected pages: %+v", pages)
	}
}

func TestFetchAll_RunsConcurrently(t *testing.T) {
	urls := make([]string, 8)
	delays := map[string]time.Duration{}
	pages := map[string]string{}
	for i := range urls {
		urls[i] = fmt.Sprintf("u%d", i)
		delays[urls[i]] = 100 * time.Millisecond
		pages[urls[i]] = "x"
	}
	f := &stubFetcher{pages: pages, delays: delays}

	start := time.Now()
	got := FetchAll(context.Background(), f, urls, Options{})
	elapsed := time.Since(start)

	if len(Pages(got)) != len(urls) {
		t.Fatalf("expected all pages present")
	}
	if elapsed > 500*time.Millisecond {
		t.Fatalf("fetches look sequential: %v", elapsed)
	}
	if f.maxInFlight < 2 {
		t.Fatalf("expected concurrent fetches, max in flight %d", f.maxInFlight)
	}
}

func TestFetchAll_Limit(t *testing.T) {
	urls := make([]string, 6)
	delays := map[string]time.Duration{}
	for i := range urls {
		urls[i] = fmt.Sprintf("u%d", i)
		delays[urls[i]] = 30 * time.Millisecond
	}
	f := &stubFetcher{delays: delays}
	_ = FetchAll(context.Background(), f, urls, Options{Limit: 2})
	if f.maxInFlight > 2 {
		t.Fatalf("expected at most 2 in flight, got %d", f.maxInFlight)
	}
}

func TestFetchAll_Empty(t *testing.T) {
	got := FetchAll(context.Background(), &stubFetcher{}, nil, Options{})
	if len(got) != 0 {
		t.Fatalf("expected no results, got %d", len(got))
	}
}

func TestFetchAll_WithHTTPClient(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/slow":
			time.Sleep(50 * time.Millisecond)
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("slow"))
		case "/pdf":
			w.Header().Set("Content-Type", "application/pdf")
		default:
			w.Header().Set("Content-Type", "text/html")
			_, _ = w.Write([]byte("fast"))
		}
	}))
	defer srv.Close()

	c := &fetch.Client{PerRequestTimeout: 2 * time.Second}
	got := FetchAll(context.Background(), c, []string{srv.URL + "/slow", srv.URL + "/pdf", srv.URL + "/fast"}, Options{})
	if !got[0].OK || string(got[0].Page.Body) != "slow" {
		t.Fatalf("slot 0: %+v", got[0])
	}
	if got[1].OK {
		t.Fatalf("slot 1 should be absent")
	}
	if !got[2].OK || string(got[2].Page.Body) != "fast" {
		t.Fatalf("slot 2: %+v", got[2])
	}
}
