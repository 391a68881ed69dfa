// Package catalog holds the persisted representation of a seasonal anime
// title and the normalization pipeline that produces it from upstream pages.
package catalog

import "strings"

// Seasons in upstream order; together with a year each names one backfill
// partition.
var Seasons = []string{"winter", "spring", "summer", "fall"}

func ValidSeason(s string) bool {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, v := range Seasons {
		if s == v {
			return true
		}
	}
	return false
}

type IDName struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type StreamingService struct {
	Name string `json:"name"`
	URL  string `json:"url"`
}

type Picture struct {
	ImageURL      string `json:"image_url,omitempty"`
	SmallImageURL string `json:"small_image_url,omitempty"`
	LargeImageURL string `json:"large_image_url,omitempty"`
}

type AlternativeTitles struct {
	Synonyms []string `json:"synonyms,omitempty"`
	En       string   `json:"en,omitempty"`
	Ja       string   `json:"ja,omitempty"`
}

// Entry is one row of the anime table: one title per (season, year) it is
// cataloged under, keyed by the upstream id.
type Entry struct {
	ID                int                `json:"id"`
	Title             string             `json:"title"`
	MediaType         string             `json:"media_type"`
	NumEpisodes       int                `json:"num_episodes"`
	Synopsis          string             `json:"synopsis"`
	Status            string             `json:"status"`
	StartDate         string             `json:"start_date"`
	EndDate           string             `json:"end_date"`
	Mean              *float64           `json:"mean"`
	Popularity        *int               `json:"popularity"`
	Members           *int               `json:"members"`
	Genres            []IDName           `json:"genres"`
	Studios           []IDName           `json:"studios"`
	BroadcastDay      *string            `json:"broadcast_day"`
	BroadcastTime     *string            `json:"broadcast_time"`
	Streaming         []StreamingService `json:"streaming_services"`
	MainPicture       *Picture           `json:"main_picture"`
	AlternativeTitles *AlternativeTitles `json:"alternative_titles"`
	Season            string             `json:"season"`
	Year              int                `json:"year"`
}

// Score is the sort/filter view of the mean: absent scores count as zero but
// are stored as null.
func (e Entry) Score() float64 {
	if e.Mean != nil {
		return *e.Mean
	}
	return 0
}
