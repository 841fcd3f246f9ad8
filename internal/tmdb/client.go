package tmdb

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

const (
	BaseURL      = "https://api.themoviedb.org/3"
	ImageBaseURL = "https://image.tmdb.org/t/p"

	// GenreAnimation is TMDB's genre id for animation.
	GenreAnimation = 16
)

type Client struct {
	client    *resty.Client
	baseURL   string
	imageBase string
	language  string
}

// NewClient accepts either a v3 api key or a v4 read access token (a JWT).
func NewClient(apiKey, language, proxyURL string) *Client {
	c := resty.New()
	c.SetTimeout(15 * time.Second)
	if proxyURL != "" {
		c.SetProxy(proxyURL)
	}
	if isReadAccessToken(apiKey) {
		c.SetHeader("Authorization", "Bearer "+apiKey)
	} else if apiKey != "" {
		c.SetQueryParam("api_key", apiKey)
	}
	c.SetHeader("Accept", "application/json")

	if language == "" {
		language = "en-US"
	}
	return &Client{
		client:    c,
		baseURL:   BaseURL,
		imageBase: ImageBaseURL,
		language:  language,
	}
}

// SetBaseURL points the client at another host. Used by tests.
func (c *Client) SetBaseURL(u string) {
	c.baseURL = strings.TrimRight(u, "/")
}

func isReadAccessToken(key string) bool {
	return strings.Count(key, ".") == 2 && len(key) > 100
}

type Genre struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type TVShow struct {
	ID               int      `json:"id"`
	Name             string   `json:"name"`
	OriginalName     string   `json:"original_name"`
	OriginalLanguage string   `json:"original_language"`
	Overview         string   `json:"overview"`
	PosterPath       string   `json:"poster_path"`
	BackdropPath     string   `json:"backdrop_path"`
	FirstAirDate     string   `json:"first_air_date"`
	VoteAverage      float64  `json:"vote_average"`
	Popularity       float64  `json:"popularity"`
	GenreIDs         []int    `json:"genre_ids,omitempty"`
	OriginCountry    []string `json:"origin_country,omitempty"`
}

// Year returns the first air year or 0.
func (s TVShow) Year() int {
	if len(s.FirstAirDate) < 4 {
		return 0
	}
	y, _ := strconv.Atoi(s.FirstAirDate[:4])
	return y
}

type SearchResponse struct {
	Page         int      `json:"page"`
	Results      []TVShow `json:"results"`
	TotalPages   int      `json:"total_pages"`
	TotalResults int      `json:"total_results"`
}

type Season struct {
	ID           int    `json:"id"`
	Name         string `json:"name"`
	SeasonNumber int    `json:"season_number"`
	EpisodeCount int    `json:"episode_count"`
	AirDate      string `json:"air_date"`
	PosterPath   string `json:"poster_path"`
}

type Network struct {
	ID   int    `json:"id"`
	Name string `json:"name"`
}

type CastCredit struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	Character   string `json:"character"`
	ProfilePath string `json:"profile_path"`
	Order       int    `json:"order"`
}

type Credits struct {
	Cast []CastCredit `json:"cast"`
}

type Video struct {
	Key      string `json:"key"`
	Name     string `json:"name"`
	Site     string `json:"site"`
	Type     string `json:"type"`
	Official bool   `json:"official"`
}

type Videos struct {
	Results []Video `json:"results"`
}

type TVDetails struct {
	TVShow
	Status              string    `json:"status"`
	NumberOfEpisodes    int       `json:"number_of_episodes"`
	NumberOfSeasons     int       `json:"number_of_seasons"`
	EpisodeRunTime      []int     `json:"episode_run_time"`
	Genres              []Genre   `json:"genres"`
	Seasons             []Season  `json:"seasons"`
	Networks            []Network `json:"networks"`
	ProductionCompanies []Network `json:"production_companies"`
	Credits             Credits   `json:"credits"`
	Videos              Videos    `json:"videos"`
}

type Episode struct {
	ID            int     `json:"id"`
	Name          string  `json:"name"`
	Overview      string  `json:"overview"`
	EpisodeNumber int     `json:"episode_number"`
	SeasonNumber  int     `json:"season_number"`
	StillPath     string  `json:"still_path"`
	AirDate       string  `json:"air_date"`
	Runtime       int     `json:"runtime"`
	VoteAverage   float64 `json:"vote_average"`
}

type SeasonDetails struct {
	ID           int       `json:"id"`
	Name         string    `json:"name"`
	SeasonNumber int       `json:"season_number"`
	Episodes     []Episode `json:"episodes"`
}

// SearchTV searches TV shows by name.
func (c *Client) SearchTV(ctx context.Context, query string, page int) (*SearchResponse, error) {
	var result SearchResponse
	err := c.get(ctx, "/search/tv", map[string]string{
		"query":         query,
		"page":          strconv.Itoa(max(page, 1)),
		"include_adult": "false",
	}, &result)
	if err != nil {
		return nil, err
	}
	c.fixShows(result.Results)
	return &result, nil
}

// DiscoverAnime lists Japanese animated series by popularity.
func (c *Client) DiscoverAnime(ctx context.Context, page int) (*SearchResponse, error) {
	var result SearchResponse
	err := c.get(ctx, "/discover/tv", map[string]string{
		"with_genres":            strconv.Itoa(GenreAnimation),
		"with_original_language": "ja",
		"sort_by":                "popularity.desc",
		"page":                   strconv.Itoa(max(page, 1)),
	}, &result)
	if err != nil {
		return nil, err
	}
	c.fixShows(result.Results)
	return &result, nil
}

// GetTVDetails fetches a show together with its credits and videos.
func (c *Client) GetTVDetails(ctx context.Context, id int) (*TVDetails, error) {
	var show TVDetails
	err := c.get(ctx, fmt.Sprintf("/tv/%d", id), map[string]string{
		"append_to_response": "credits,videos",
	}, &show)
	if err != nil {
		return nil, err
	}

	show.PosterPath = c.ImageURL("w500", show.PosterPath)
	show.BackdropPath = c.ImageURL("original", show.BackdropPath)
	for i := range show.Credits.Cast {
		show.Credits.Cast[i].ProfilePath = c.ImageURL("w185", show.Credits.Cast[i].ProfilePath)
	}
	return &show, nil
}

// GetSeasonDetails fetches the episode list of one season.
func (c *Client) GetSeasonDetails(ctx context.Context, id, season int) (*SeasonDetails, error) {
	var details SeasonDetails
	if err := c.get(ctx, fmt.Sprintf("/tv/%d/season/%d", id, season), nil, &details); err != nil {
		return nil, err
	}
	for i := range details.Episodes {
		details.Episodes[i].StillPath = c.ImageURL("w300", details.Episodes[i].StillPath)
	}
	return &details, nil
}

func (c *Client) get(ctx context.Context, path string, params map[string]string, out interface{}) error {
	req := c.client.R().
		SetContext(ctx).
		SetQueryParam("language", c.language)
	if len(params) > 0 {
		req.SetQueryParams(params)
	}

	resp, err := req.Get(c.baseURL + path)
	if err != nil {
		return fmt.Errorf("TMDB request %s failed: %w", path, err)
	}
	if resp.IsError() {
		return &StatusError{
			Path:       path,
			Code:       resp.StatusCode(),
			Status:     resp.Status(),
			RetryAfter: parseRetryAfter(resp.Header().Get("Retry-After")),
		}
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("failed to parse TMDB response: %w", err)
	}
	return nil
}

// StatusError is returned for non-2xx responses.
type StatusError struct {
	Path       string
	Code       int
	Status     string
	RetryAfter time.Duration
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("TMDB Error: %s (%s)", e.Status, e.Path)
}

// NotFound reports whether TMDB answered 404.
func (e *StatusError) NotFound() bool {
	return e.Code == 404
}

// Temporary reports whether the request may succeed if repeated: rate limits, timeouts and 5xx.
func (e *StatusError) Temporary() bool {
	return e.Code == 408 || e.Code == 429 || e.Code >= 500
}

// parseRetryAfter reads a Retry-After header given in seconds. HTTP dates and garbage yield zero.
func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func (c *Client) fixShows(shows []TVShow) {
	for i := range shows {
		shows[i].PosterPath = c.ImageURL("w500", shows[i].PosterPath)
		shows[i].BackdropPath = c.ImageURL("original", shows[i].BackdropPath)
	}
}

// ImageURL resolves a TMDB image path. Absolute URLs are returned untouched.
func (c *Client) ImageURL(size, path string) string {
	if path == "" {
		return ""
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return c.imageBase + "/" + size + path
}
