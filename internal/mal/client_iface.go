package mal

import "context"

// Provider is the port for fetching catalog data from the MAL API.
type Provider interface {
	SeasonPage(ctx context.Context, year int, season string, limit, offset int) (*SeasonPage, error)
	AnimeDetail(ctx context.Context, id int, fields string) (*AnimeNode, error)
}
