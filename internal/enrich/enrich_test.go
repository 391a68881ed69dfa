package enrich

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/example/shiki-proxy/internal/catalog"
	"github.com/example/shiki-proxy/internal/ratelimit"
	"github.com/example/shiki-proxy/internal/retryhttp"
)

func newTestEnricher(client Lookup) *Enricher {
	return New(nil, NewCache(), ratelimit.New(1, 0), client)
}

type stubLookup struct {
	calls    int32
	services []catalog.StreamingService
	err      error
}

func (s *stubLookup) Streaming(context.Context, int) ([]catalog.StreamingService, error) {
	atomic.AddInt32(&s.calls, 1)
	return s.services, s.err
}

func TestEnrich_ReturnsEmptyOnFailure(t *testing.T) {
	e := newTestEnricher(&stubLookup{err: errors.New("retry exhausted")})

	got := e.Enrich(context.Background(), 42)
	if got == nil {
		t.Fatal("expected empty slice, got nil")
	}
	if len(got) != 0 {
		t.Fatalf("expected no services, got %v", got)
	}
}

func TestEnrich_CachesSuccessfulLookups(t *testing.T) {
	stub := &stubLookup{services: []catalog.StreamingService{{Name: "Netflix", URL: "https://netflix.com"}}}
	e := newTestEnricher(stub)

	first := e.Enrich(context.Background(), 7)
	second := e.Enrich(context.Background(), 7)

	if len(first) != 1 || len(second) != 1 {
		t.Fatalf("expected one service on both calls, got %v / %v", first, second)
	}
	if n := atomic.LoadInt32(&stub.calls); n != 1 {
		t.Fatalf("expected a single API call, got %d", n)
	}
}

func TestEnrich_FailuresAreNotCached(t *testing.T) {
	stub := &stubLookup{err: errors.New("down")}
	e := newTestEnricher(stub)

	_ = e.Enrich(context.Background(), 9)
	_ = e.Enrich(context.Background(), 9)

	if n := atomic.LoadInt32(&stub.calls); n != 2 {
		t.Fatalf("failed lookups must stay uncached, got %d calls", n)
	}
}

func jikanClient(t *testing.T, body string) (*Client, func()) {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(body))
	}))
	rc := retryhttp.New(nil, time.Second, 1, time.Millisecond)
	return NewClient(srv.URL, rc), srv.Close
}

func TestStreaming_ListShape(t *testing.T) {
	c, done := jikanClient(t, `{"data":[{"name":"Crunchyroll","url":"https://crunchyroll.com"},{"name":"","url":"x"}]}`)
	defer done()

	got, err := c.Streaming(context.Background(), 1)
	if err != nil {
		t.Fatalf("streaming: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Crunchyroll" {
		t.Fatalf("unexpected services: %v", got)
	}
}

func TestStreaming_DetailShape(t *testing.T) {
	c, done := jikanClient(t, `{"data":{"mal_id":1,"streaming":[{"name":"Hulu","url":"https://hulu.com"}]}}`)
	defer done()

	got, err := c.Streaming(context.Background(), 1)
	if err != nil {
		t.Fatalf("streaming: %v", err)
	}
	if len(got) != 1 || got[0].Name != "Hulu" {
		t.Fatalf("unexpected services: %v", got)
	}
}

func TestStreaming_EmptyData(t *testing.T) {
	c, done := jikanClient(t, `{"data":[]}`)
	defer done()

	got, err := c.Streaming(context.Background(), 1)
	if err != nil {
		t.Fatalf("streaming: %v", err)
	}
	if got == nil || len(got) != 0 {
		t.Fatalf("expected empty slice, got %v", got)
	}
}

func TestPopularity(t *testing.T) {
	c, done := jikanClient(t, `{"data":{"mal_id":1,"popularity":321}}`)
	defer done()

	got, err := c.Popularity(context.Background(), 1)
	if err != nil {
		t.Fatalf("popularity: %v", err)
	}
	if got != 321 {
		t.Fatalf("expected 321, got %d", got)
	}
}
