// Package enrich looks up streaming availability for catalog titles on the
// Jikan API. Enrichment is best-effort: a failed lookup degrades to an empty
// list and never aborts the backfill that requested it.
package enrich

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/example/shiki-proxy/internal/catalog"
	"github.com/example/shiki-proxy/internal/retryhttp"
)

type Client struct {
	BaseURL string
	HTTP    *retryhttp.Client
}

func NewClient(baseURL string, hc *retryhttp.Client) *Client {
	if baseURL == "" {
		baseURL = "https://api.jikan.moe/v4"
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), HTTP: hc}
}

// Streaming fetches the streaming services for one title. Two response
// shapes exist in the wild: a bare list `{"data":[{name,url},...]}` from the
// /streaming endpoint, and an entity-detail object with an embedded
// `streaming` array. Both normalize to the same slice.
func (c *Client) Streaming(ctx context.Context, id int) ([]catalog.StreamingService, error) {
	u := fmt.Sprintf("%s/anime/%d/streaming", c.BaseURL, id)
	b, err := c.HTTP.Get(ctx, u, nil)
	if err != nil {
		return nil, err
	}

	var envelope struct {
		Data json.RawMessage `json:"data"`
	}
	if err := json.Unmarshal(b, &envelope); err != nil {
		return nil, fmt.Errorf("enrich: decode envelope for %d: %w", id, err)
	}
	if len(envelope.Data) == 0 {
		return []catalog.StreamingService{}, nil
	}

	var list []catalog.StreamingService
	if err := json.Unmarshal(envelope.Data, &list); err == nil {
		return compact(list), nil
	}

	var detail struct {
		Streaming []catalog.StreamingService `json:"streaming"`
	}
	if err := json.Unmarshal(envelope.Data, &detail); err != nil {
		return nil, fmt.Errorf("enrich: unexpected response shape for %d", id)
	}
	return compact(detail.Streaming), nil
}

// Popularity fetches the popularity rank for one title from the entity
// detail endpoint.
func (c *Client) Popularity(ctx context.Context, id int) (int, error) {
	u := fmt.Sprintf("%s/anime/%d", c.BaseURL, id)
	b, err := c.HTTP.Get(ctx, u, nil)
	if err != nil {
		return 0, err
	}
	var out struct {
		Data struct {
			Popularity int `json:"popularity"`
		} `json:"data"`
	}
	if err := json.Unmarshal(b, &out); err != nil {
		return 0, fmt.Errorf("enrich: decode anime %d: %w", id, err)
	}
	return out.Data.Popularity, nil
}

func compact(in []catalog.StreamingService) []catalog.StreamingService {
	out := make([]catalog.StreamingService, 0, len(in))
	for _, s := range in {
		if strings.TrimSpace(s.Name) == "" {
			continue
		}
		out = append(out, s)
	}
	return out
}
