package catalog

import (
	"context"
	"sort"

	"github.com/example/shiki-proxy/internal/mal"
)

// EnrichFunc looks up streaming availability for one title. Implementations
// are best-effort: they return an empty slice on failure, never an error.
type EnrichFunc func(ctx context.Context, id int) []StreamingService

// Normalizer turns a raw upstream page into store-ready entries:
// dedupe by id (first occurrence wins), drop titles scoring below MinScore,
// enrich each survivor, then stable-sort by descending score.
type Normalizer struct {
	MinScore float64
	Enrich   EnrichFunc
}

func NewNormalizer(minScore float64, enrich EnrichFunc) *Normalizer {
	return &Normalizer{MinScore: minScore, Enrich: enrich}
}

func (n *Normalizer) Normalize(ctx context.Context, page *mal.SeasonPage, year int, season string) []Entry {
	if page == nil || len(page.Data) == 0 {
		return nil
	}

	seen := make(map[int]struct{}, len(page.Data))
	entries := make([]Entry, 0, len(page.Data))
	for _, raw := range page.Data {
		node := raw.Node
		if node.ID <= 0 {
			continue
		}
		if _, dup := seen[node.ID]; dup {
			continue
		}
		seen[node.ID] = struct{}{}

		e := Project(node, year, season)
		if e.Score() < n.MinScore {
			continue
		}

		// Sequential on purpose: the limiter inside Enrich bounds global
		// concurrency, and one page must not flood its queue.
		if n.Enrich != nil {
			e.Streaming = n.Enrich(ctx, e.ID)
		}
		if e.Streaming == nil {
			e.Streaming = []StreamingService{}
		}
		entries = append(entries, e)
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].Score() > entries[j].Score()
	})
	return entries
}

// Project maps the upstream node onto the persisted shape.
func Project(node mal.AnimeNode, year int, season string) Entry {
	e := Entry{
		ID:          node.ID,
		Title:       node.Title,
		MediaType:   node.MediaType,
		NumEpisodes: node.NumEpisodes,
		Synopsis:    node.Synopsis,
		Status:      node.Status,
		StartDate:   node.StartDate,
		EndDate:     node.EndDate,
		Mean:        node.Mean,
		Popularity:  node.Popularity,
		Members:     node.Members,
		Genres:      idNames(node.Genres),
		Studios:     idNames(node.Studios),
		Streaming:   []StreamingService{},
		Season:      season,
		Year:        year,
	}
	if node.Broadcast != nil {
		if node.Broadcast.DayOfTheWeek != "" {
			day := node.Broadcast.DayOfTheWeek
			e.BroadcastDay = &day
		}
		if node.Broadcast.StartTime != "" {
			t := node.Broadcast.StartTime
			e.BroadcastTime = &t
		}
	}
	if node.MainPicture != nil {
		e.MainPicture = &Picture{
			ImageURL:      node.MainPicture.Large,
			SmallImageURL: node.MainPicture.Medium,
			LargeImageURL: node.MainPicture.Large,
		}
		if e.MainPicture.ImageURL == "" {
			e.MainPicture.ImageURL = node.MainPicture.Medium
		}
	}
	if node.AlternativeTitles != nil {
		e.AlternativeTitles = &AlternativeTitles{
			Synonyms: node.AlternativeTitles.Synonyms,
			En:       node.AlternativeTitles.En,
			Ja:       node.AlternativeTitles.Ja,
		}
	}
	return e
}

func idNames(in []mal.IDName) []IDName {
	out := make([]IDName, 0, len(in))
	for _, v := range in {
		out = append(out, IDName{ID: v.ID, Name: v.Name})
	}
	return out
}
