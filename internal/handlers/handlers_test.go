package handlers

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"github.com/example/shiki-proxy/internal/backfill"
	"github.com/example/shiki-proxy/internal/cache"
	"github.com/example/shiki-proxy/internal/catalog"
	"github.com/example/shiki-proxy/internal/mal"
	"github.com/example/shiki-proxy/internal/platform/api"
	"github.com/example/shiki-proxy/internal/refresher"
	"github.com/example/shiki-proxy/internal/store"
)

type stubProvider struct {
	pages       []*mal.SeasonPage
	seasonErr   error
	blockDetail bool
	seasonCalls atomic.Int32
}

func (s *stubProvider) SeasonPage(_ context.Context, _ int, _ string, limit, offset int) (*mal.SeasonPage, error) {
	s.seasonCalls.Add(1)
	if s.seasonErr != nil {
		return nil, s.seasonErr
	}
	idx := offset / limit
	if idx >= len(s.pages) {
		return &mal.SeasonPage{}, nil
	}
	return s.pages[idx], nil
}

func (s *stubProvider) AnimeDetail(ctx context.Context, id int, _ string) (*mal.AnimeNode, error) {
	if s.blockDetail {
		<-ctx.Done()
		return nil, ctx.Err()
	}
	m := 8.5
	return &mal.AnimeNode{ID: id, Mean: &m, Status: "currently_airing"}, nil
}

func makePage(ids []int, scores []float64) *mal.SeasonPage {
	p := &mal.SeasonPage{}
	for i, id := range ids {
		s := scores[i]
		var raw struct {
			Node mal.AnimeNode `json:"node"`
		}
		raw.Node = mal.AnimeNode{ID: id, Title: "title", Mean: &s}
		p.Data = append(p.Data, raw)
	}
	return p
}

func testRouter(t *testing.T, p mal.Provider, st store.Store, secret string) chi.Router {
	t.Helper()
	log := zap.NewNop()
	norm := catalog.NewNormalizer(7, nil)

	orch := backfill.New(log, mal.NewPageFetcher(p, 100), norm, st)
	orch.InitialRetryDelay = time.Millisecond
	orch.PageDelay = 0
	orch.MaxAttempts = 2

	scores := refresher.NewScoreRefresher(log, p, st)
	scores.BatchDelay = time.Millisecond
	scores.RetryDelay = time.Millisecond
	scores.Timeout = 30 * time.Millisecond

	r := chi.NewRouter()
	Mount(r, Deps{
		Log:          log,
		Catalog:      p,
		Normalizer:   norm,
		Orchestrator: orch,
		Scores:       scores,
		Popularity:   refresher.NewPopularityRefresher(log, popStub{}, st),
		Store:        st,
		Cache:        cache.NewMemoryCache(time.Minute, nil, ""),
		PageSize:     100,
		AdminSecret:  secret,
	})
	return r
}

type popStub struct{}

func (popStub) Popularity(_ context.Context, id int) (int, error) { return id, nil }

func doGet(t *testing.T, r chi.Router, path string) *httptest.ResponseRecorder {
	t.Helper()
	rr := httptest.NewRecorder()
	r.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, path, nil))
	return rr
}

func TestGetSeasonFiltersAndSorts(t *testing.T) {
	p := &stubProvider{pages: []*mal.SeasonPage{makePage([]int{1, 2, 3}, []float64{6.5, 8.0, 7.0})}}
	r := testRouter(t, p, store.NewInMemoryStore(), "")

	rr := doGet(t, r, "/api/anime/2024/winter")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	var entries []catalog.Entry
	if err := json.NewDecoder(rr.Body).Decode(&entries); err != nil {
		t.Fatal(err)
	}
	if len(entries) != 2 {
		t.Fatalf("expected 2 entries, got %d", len(entries))
	}
	if entries[0].ID != 2 || entries[1].ID != 3 {
		t.Fatalf("expected descending score order [2 3], got [%d %d]", entries[0].ID, entries[1].ID)
	}
}

func TestGetSeasonInvalidSeason(t *testing.T) {
	r := testRouter(t, &stubProvider{}, store.NewInMemoryStore(), "")
	rr := doGet(t, r, "/api/anime/2024/monsoon")
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
	var resp api.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error == "" {
		t.Fatal("expected error message in body")
	}
}

func TestGetSeasonEmptyPartitionReturnsEmptyArray(t *testing.T) {
	r := testRouter(t, &stubProvider{}, store.NewInMemoryStore(), "")
	rr := doGet(t, r, "/api/anime/1999/summer")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if body := rr.Body.String(); body != "[]\n" {
		t.Fatalf("expected empty JSON array, got %q", body)
	}
}

func TestGetSeasonServedFromCache(t *testing.T) {
	p := &stubProvider{pages: []*mal.SeasonPage{makePage([]int{1}, []float64{8.0})}}
	r := testRouter(t, p, store.NewInMemoryStore(), "")

	doGet(t, r, "/api/anime/2024/fall")
	doGet(t, r, "/api/anime/2024/fall")
	if got := p.seasonCalls.Load(); got != 1 {
		t.Fatalf("expected a single upstream call, got %d", got)
	}
}

func TestGetSeasonUpstreamFailure(t *testing.T) {
	p := &stubProvider{seasonErr: errors.New("upstream unavailable")}
	r := testRouter(t, p, store.NewInMemoryStore(), "")

	rr := doGet(t, r, "/api/anime/2024/winter")
	if rr.Code != http.StatusInternalServerError {
		t.Fatalf("expected 500, got %d", rr.Code)
	}
	var resp api.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Details == "" {
		t.Fatal("expected details in 500 body")
	}
}

func TestUnknownRouteFallback(t *testing.T) {
	r := testRouter(t, &stubProvider{}, store.NewInMemoryStore(), "")
	rr := doGet(t, r, "/api/nope")
	if rr.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rr.Code)
	}
	var resp api.ErrorResponse
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp.Error != "NOT_FOUND" || resp.Route != "/api/nope" {
		t.Fatalf("unexpected fallback body: %+v", resp)
	}
}

func TestPopulatePartitionPersists(t *testing.T) {
	p := &stubProvider{pages: []*mal.SeasonPage{makePage([]int{1, 2}, []float64{8.0, 7.5})}}
	st := store.NewInMemoryStore()
	r := testRouter(t, p, st, "")

	rr := doGet(t, r, "/api/populate/2024/winter")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	if st.Len() != 2 {
		t.Fatalf("expected 2 persisted rows, got %d", st.Len())
	}
}

func TestPopulateInvalidSeason(t *testing.T) {
	r := testRouter(t, &stubProvider{}, store.NewInMemoryStore(), "")
	if rr := doGet(t, r, "/api/populate/2024/monsoon"); rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400, got %d", rr.Code)
	}
}

func TestUpdateScoresTimeoutMapsTo504(t *testing.T) {
	st := store.NewInMemoryStore()
	s := 7.5
	if err := st.UpsertEntries(context.Background(), []catalog.Entry{
		{ID: 1, Mean: &s, Status: "currently_airing"},
	}); err != nil {
		t.Fatal(err)
	}
	p := &stubProvider{blockDetail: true}
	r := testRouter(t, p, st, "")

	rr := doGet(t, r, "/api/update-scores")
	if rr.Code != http.StatusGatewayTimeout {
		t.Fatalf("expected 504, got %d: %s", rr.Code, rr.Body.String())
	}
}

func TestUpdateScoresCompletes(t *testing.T) {
	st := store.NewInMemoryStore()
	s := 7.5
	if err := st.UpsertEntries(context.Background(), []catalog.Entry{
		{ID: 1, Mean: &s, Status: "currently_airing"},
	}); err != nil {
		t.Fatal(err)
	}
	r := testRouter(t, &stubProvider{}, st, "")

	rr := doGet(t, r, "/api/update-scores")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d: %s", rr.Code, rr.Body.String())
	}
	e, _ := st.Get(1)
	if e.Mean == nil || *e.Mean != 8.5 {
		t.Fatalf("expected refreshed mean 8.5, got %+v", e.Mean)
	}
}

func TestKeepAlive(t *testing.T) {
	r := testRouter(t, &stubProvider{}, store.NewInMemoryStore(), "")
	rr := doGet(t, r, "/api/keepalive")
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(rr.Body).Decode(&resp); err != nil {
		t.Fatal(err)
	}
	if resp["status"] != "alive" {
		t.Fatalf("unexpected body: %v", resp)
	}
}

func TestPopulateRequiresAdminToken(t *testing.T) {
	r := testRouter(t, &stubProvider{}, store.NewInMemoryStore(), "sekrit")
	if rr := doGet(t, r, "/api/populate"); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 without token, got %d", rr.Code)
	}
	// Public reads stay open.
	if rr := doGet(t, r, "/api/keepalive"); rr.Code != http.StatusOK {
		t.Fatalf("expected keepalive to stay public, got %d", rr.Code)
	}
}
