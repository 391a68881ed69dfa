package mal

import "context"

// PageFetcher walks one (year, season) partition page by page. The upstream
// has no total-count header, so the first empty page is treated as the
// authoritative end of data.
type PageFetcher struct {
	Catalog  Provider
	PageSize int
}

func NewPageFetcher(p Provider, pageSize int) *PageFetcher {
	if pageSize <= 0 {
		pageSize = 100
	}
	return &PageFetcher{Catalog: p, PageSize: pageSize}
}

// Partition opens a cursor at offset 0. Each cursor owns its offset state;
// concurrent partitions never interfere.
func (f *PageFetcher) Partition(year int, season string) *PartitionCursor {
	return &PartitionCursor{fetcher: f, year: year, season: season}
}

type PartitionCursor struct {
	fetcher *PageFetcher
	year    int
	season  string
	offset  int
	done    bool
}

// Next returns the next non-empty page, or (nil, nil) once the partition is
// exhausted. Pages are fetched strictly in increasing offset order.
func (c *PartitionCursor) Next(ctx context.Context) (*SeasonPage, error) {
	if c.done {
		return nil, nil
	}
	page, err := c.fetcher.Catalog.SeasonPage(ctx, c.year, c.season, c.fetcher.PageSize, c.offset)
	if err != nil {
		return nil, err
	}
	if len(page.Data) == 0 {
		c.done = true
		return nil, nil
	}
	c.offset += c.fetcher.PageSize
	return page, nil
}

// Offset reports the next offset the cursor would request.
func (c *PartitionCursor) Offset() int { return c.offset }
