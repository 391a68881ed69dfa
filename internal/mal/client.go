package mal

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/example/shiki-proxy/internal/retryhttp"
)

// SeasonFields is the field list requested for seasonal pages, matching the
// columns the store persists.
const SeasonFields = "mean,main_picture,title,media_type,genres,studios,num_episodes,broadcast,popularity,alternative_titles,start_date,end_date,synopsis,status,members"

// ScoreFields is the minimal field list the score refresher needs.
const ScoreFields = "mean,status"

type Client struct {
	BaseURL  string
	ClientID string
	HTTP     *retryhttp.Client
}

func New(baseURL, clientID string, hc *retryhttp.Client) *Client {
	if baseURL == "" {
		baseURL = "https://api.myanimelist.net/v2"
	}
	return &Client{BaseURL: strings.TrimRight(baseURL, "/"), ClientID: clientID, HTTP: hc}
}

// AnimeNode is the upstream per-title payload shared by the seasonal and
// single-anime endpoints.
type AnimeNode struct {
	ID                int                `json:"id"`
	Title             string             `json:"title"`
	MainPicture       *Picture           `json:"main_picture"`
	AlternativeTitles *AlternativeTitles `json:"alternative_titles"`
	StartDate         string             `json:"start_date"`
	EndDate           string             `json:"end_date"`
	Synopsis          string             `json:"synopsis"`
	Mean              *float64           `json:"mean"`
	Status            string             `json:"status"`
	Genres            []IDName           `json:"genres"`
	Studios           []IDName           `json:"studios"`
	MediaType         string             `json:"media_type"`
	NumEpisodes       int                `json:"num_episodes"`
	Broadcast         *Broadcast         `json:"broadcast"`
	Popularity        *int               `json:"popularity"`
	Members           *int               `json:"members"`
}

type Picture struct {
	Medium string `json:"medium"`
	Large  string `json:"large"`
}

type AlternativeTitles struct {
	Synonyms []string `json:"synonyms"`
	En       string   `json:"en"`
	Ja       string   `json:"ja"`
}

type IDName struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type Broadcast struct {
	DayOfTheWeek string `json:"day_of_the_week"`
	StartTime    string `json:"start_time"`
}

// SeasonPage is one page of /anime/season/{year}/{season}; an empty Data
// slice is the only end-of-data signal the endpoint provides.
type SeasonPage struct {
	Data []struct {
		Node AnimeNode `json:"node"`
	} `json:"data"`
}

func (c *Client) header() http.Header {
	h := http.Header{}
	h.Set("X-MAL-CLIENT-ID", c.ClientID)
	return h
}

func (c *Client) SeasonPage(ctx context.Context, year int, season string, limit, offset int) (*SeasonPage, error) {
	q := url.Values{}
	q.Set("limit", strconv.Itoa(limit))
	q.Set("offset", strconv.Itoa(offset))
	q.Set("fields", SeasonFields)
	u := fmt.Sprintf("%s/anime/season/%d/%s?%s", c.BaseURL, year, url.PathEscape(season), q.Encode())

	b, err := c.HTTP.Get(ctx, u, c.header())
	if err != nil {
		return nil, err
	}
	var out SeasonPage
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("mal: decode season page: %w body=%q", err, excerpt(b))
	}
	return &out, nil
}

// AnimeDetail fetches a single title restricted to the given field list.
func (c *Client) AnimeDetail(ctx context.Context, id int, fields string) (*AnimeNode, error) {
	if id <= 0 {
		return nil, fmt.Errorf("mal: anime id required")
	}
	u := fmt.Sprintf("%s/anime/%d?fields=%s", c.BaseURL, id, url.QueryEscape(fields))

	b, err := c.HTTP.Get(ctx, u, c.header())
	if err != nil {
		return nil, err
	}
	var out AnimeNode
	if err := json.Unmarshal(b, &out); err != nil {
		return nil, fmt.Errorf("mal: decode anime %d: %w body=%q", id, err, excerpt(b))
	}
	return &out, nil
}

func excerpt(b []byte) string {
	if len(b) > 200 {
		b = b[:200]
	}
	return string(b)
}
