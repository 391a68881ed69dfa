package cache

import (
	"context"
	"testing"
	"time"
)

type payload struct {
	Title string  `json:"title"`
	Score float64 `json:"score"`
}

func TestMemoryCacheRoundTrip(t *testing.T) {
	c := NewMemoryCache(time.Minute, nil, "")
	ctx := context.Background()

	var miss payload
	if ok, err := c.Get(ctx, "catalog:2024:winter", &miss); err != nil || ok {
		t.Fatalf("Get on empty cache = (%v, %v), want miss", ok, err)
	}

	want := payload{Title: "frieren", Score: 9.1}
	if err := c.Set(ctx, "catalog:2024:winter", want); err != nil {
		t.Fatalf("Set: %v", err)
	}

	var got payload
	ok, err := c.Get(ctx, "catalog:2024:winter", &got)
	if err != nil || !ok {
		t.Fatalf("Get after Set = (%v, %v), want hit", ok, err)
	}
	if got != want {
		t.Fatalf("Get = %+v, want %+v", got, want)
	}
}

func TestMemoryCacheExpiry(t *testing.T) {
	c := NewMemoryCache(10*time.Millisecond, nil, "")
	ctx := context.Background()

	if err := c.Set(ctx, "k", payload{Title: "fleeting"}); err != nil {
		t.Fatalf("Set: %v", err)
	}
	time.Sleep(25 * time.Millisecond)

	var got payload
	if ok, err := c.Get(ctx, "k", &got); err != nil || ok {
		t.Fatalf("Get after expiry = (%v, %v), want miss", ok, err)
	}
}

func TestMemoryCacheStoresCopies(t *testing.T) {
	c := NewMemoryCache(time.Minute, nil, "")
	ctx := context.Background()

	list := []payload{{Title: "a", Score: 8}}
	if err := c.Set(ctx, "k", list); err != nil {
		t.Fatalf("Set: %v", err)
	}
	list[0].Title = "mutated"

	var got []payload
	if ok, _ := c.Get(ctx, "k", &got); !ok {
		t.Fatal("expected hit")
	}
	if got[0].Title != "a" {
		t.Fatalf("cached value shares memory with caller: %+v", got[0])
	}
}
