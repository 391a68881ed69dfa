package store

import (
	"context"
	"testing"

	"github.com/example/shiki-proxy/internal/catalog"
)

func entry(id int, mean float64, status string) catalog.Entry {
	return catalog.Entry{ID: id, Title: "t", Mean: &mean, Status: status, Streaming: []catalog.StreamingService{}}
}

func TestUpsert_Idempotent(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	batch := []catalog.Entry{entry(1, 8.0, "finished_airing"), entry(2, 7.5, "currently_airing")}
	if err := s.UpsertEntries(ctx, batch); err != nil {
		t.Fatalf("first upsert: %v", err)
	}
	if err := s.UpsertEntries(ctx, batch); err != nil {
		t.Fatalf("second upsert: %v", err)
	}

	if s.Len() != 2 {
		t.Fatalf("expected 2 rows after double upsert, got %d", s.Len())
	}
}

func TestUpsert_ReplacesAllFields(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	_ = s.UpsertEntries(ctx, []catalog.Entry{entry(1, 8.0, "currently_airing")})

	updated := entry(1, 8.4, "finished_airing")
	updated.Title = "renamed"
	_ = s.UpsertEntries(ctx, []catalog.Entry{updated})

	got, ok := s.Get(1)
	if !ok {
		t.Fatal("row missing")
	}
	if got.Title != "renamed" || *got.Mean != 8.4 || got.Status != "finished_airing" {
		t.Fatalf("expected full overwrite, got %+v", got)
	}
}

func TestAiringIDs_FiltersAndLimits(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	_ = s.UpsertEntries(ctx, []catalog.Entry{
		entry(1, 8, "currently_airing"),
		entry(2, 8, "finished_airing"),
		entry(3, 8, "currently_airing"),
		entry(4, 8, "currently_airing"),
	})

	ids, err := s.AiringIDs(ctx, 2)
	if err != nil {
		t.Fatalf("airing ids: %v", err)
	}
	if len(ids) != 2 {
		t.Fatalf("expected limit 2, got %v", ids)
	}
	for _, id := range ids {
		e, _ := s.Get(id)
		if e.Status != "currently_airing" {
			t.Fatalf("id %d is not airing", id)
		}
	}
}

func TestUpdateScore_KeepsRowBelowThreshold(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	_ = s.UpsertEntries(ctx, []catalog.Entry{entry(1, 7.2, "currently_airing")})

	dropped := 6.4
	if err := s.UpdateScore(ctx, 1, &dropped, "currently_airing"); err != nil {
		t.Fatalf("update: %v", err)
	}

	// A refreshed score below the backfill threshold never evicts the row.
	got, ok := s.Get(1)
	if !ok {
		t.Fatal("row evicted after score drop")
	}
	if *got.Mean != 6.4 {
		t.Fatalf("expected mean 6.4, got %v", *got.Mean)
	}
}

func TestMissingPopularityIDs(t *testing.T) {
	s := NewInMemoryStore()
	ctx := context.Background()

	withPop := entry(1, 8, "finished_airing")
	pop := 12
	withPop.Popularity = &pop
	_ = s.UpsertEntries(ctx, []catalog.Entry{withPop, entry(2, 8, "finished_airing")})

	ids, err := s.MissingPopularityIDs(ctx)
	if err != nil {
		t.Fatalf("missing popularity: %v", err)
	}
	if len(ids) != 1 || ids[0] != 2 {
		t.Fatalf("expected [2], got %v", ids)
	}
}
