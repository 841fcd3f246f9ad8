package anilist

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
	GraphQLEndpoint = "https://graphql.anilist.co"
)

type Client struct {
	client   *resty.Client
	endpoint string
}

// NewClient builds an AniList client. The token is optional, public queries work anonymously.
func NewClient(token string, proxyURL string) *Client {
	c := resty.New()
	c.SetTimeout(15 * time.Second)
	if proxyURL != "" {
		c.SetProxy(proxyURL)
	}
	if token != "" {
		c.SetHeader("Authorization", "Bearer "+token)
	}
	c.SetHeader("Content-Type", "application/json")
	c.SetHeader("Accept", "application/json")

	return &Client{
		client:   c,
		endpoint: GraphQLEndpoint,
	}
}

// SetEndpoint points the client at another GraphQL endpoint. Used by tests.
func (c *Client) SetEndpoint(u string) {
	c.endpoint = u
}

type MediaTitle struct {
	Romaji  string `json:"romaji"`
	English string `json:"english"`
	Native  string `json:"native"`
}

// Preferred returns the english title when there is one.
func (t MediaTitle) Preferred() string {
	if t.English != "" {
		return t.English
	}
	if t.Romaji != "" {
		return t.Romaji
	}
	return t.Native
}

type CoverImage struct {
	ExtraLarge string `json:"extraLarge"`
	Large      string `json:"large"`
	Medium     string `json:"medium"`
}

type FuzzyDate struct {
	Year  int `json:"year"`
	Month int `json:"month"`
	Day   int `json:"day"`
}

type Trailer struct {
	ID   string `json:"id"`
	Site string `json:"site"` // youtube or dailymotion
}

type Studio struct {
	Name              string `json:"name"`
	IsAnimationStudio bool   `json:"isAnimationStudio"`
}

type StudioConnection struct {
	Nodes []Studio `json:"nodes"`
}

type Name struct {
	Full string `json:"full"`
}

type Image struct {
	Large  string `json:"large"`
	Medium string `json:"medium"`
}

type Person struct {
	ID    int    `json:"id"`
	Name  Name   `json:"name"`
	Image Image  `json:"image"`
	Lang  string `json:"languageV2"`
}

type CharacterEdge struct {
	Role        string   `json:"role"` // MAIN, SUPPORTING, BACKGROUND
	Node        Person   `json:"node"`
	VoiceActors []Person `json:"voiceActors"`
}

type CharacterConnection struct {
	Edges []CharacterEdge `json:"edges"`
}

type NextAiringEpisode struct {
	Episode  int   `json:"episode"`
	AiringAt int64 `json:"airingAt"`
}

type Media struct {
	ID                int                 `json:"id"`
	IDMal             int                 `json:"idMal"`
	Title             MediaTitle          `json:"title"`
	CoverImage        CoverImage          `json:"coverImage"`
	BannerImage       string              `json:"bannerImage"`
	Description       string              `json:"description"`
	AverageScore      int                 `json:"averageScore"`
	Popularity        int                 `json:"popularity"`
	Status            string              `json:"status"` // FINISHED, RELEASING, NOT_YET_RELEASED, CANCELLED, HIATUS
	Format            string              `json:"format"` // TV, TV_SHORT, MOVIE, SPECIAL, OVA, ONA, MUSIC
	Episodes          int                 `json:"episodes"`
	Duration          int                 `json:"duration"` // minutes per episode
	Season            string              `json:"season"`
	SeasonYear        int                 `json:"seasonYear"`
	StartDate         FuzzyDate           `json:"startDate"`
	Genres            []string            `json:"genres"`
	Synonyms          []string            `json:"synonyms"`
	Trailer           *Trailer            `json:"trailer"`
	Studios           StudioConnection    `json:"studios"`
	Characters        CharacterConnection `json:"characters"`
	NextAiringEpisode *NextAiringEpisode  `json:"nextAiringEpisode"`
}

// Year returns the season year, falling back to the start date.
func (m Media) Year() int {
	if m.SeasonYear != 0 {
		return m.SeasonYear
	}
	return m.StartDate.Year
}

// MainStudio returns the first animation studio.
func (m Media) MainStudio() string {
	for _, s := range m.Studios.Nodes {
		if s.IsAnimationStudio {
			return s.Name
		}
	}
	if len(m.Studios.Nodes) > 0 {
		return m.Studios.Nodes[0].Name
	}
	return ""
}

type PageInfo struct {
	Total       int  `json:"total"`
	CurrentPage int  `json:"currentPage"`
	LastPage    int  `json:"lastPage"`
	HasNextPage bool `json:"hasNextPage"`
}

type Page struct {
	PageInfo PageInfo `json:"pageInfo"`
	Media    []Media  `json:"media"`
}

type graphQLError struct {
	Message string `json:"message"`
	Status  int    `json:"status"`
}

type pageResponse struct {
	Data struct {
		Page Page `json:"Page"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

type mediaResponse struct {
	Data struct {
		Media *Media `json:"Media"`
	} `json:"data"`
	Errors []graphQLError `json:"errors"`
}

const listFields = `
	id
	title { romaji english native }
	coverImage { extraLarge large }
	bannerImage
	averageScore
	popularity
	status
	format
	episodes
	seasonYear
	startDate { year }
	genres
`

const searchQuery = `
query ($search: String, $page: Int, $perPage: Int) {
  Page(page: $page, perPage: $perPage) {
    pageInfo { total currentPage lastPage hasNextPage }
    media(search: $search, type: ANIME, sort: SEARCH_MATCH, isAdult: false) {` + listFields + `}
  }
}`

const trendingQuery = `
query ($page: Int, $perPage: Int) {
  Page(page: $page, perPage: $perPage) {
    pageInfo { total currentPage lastPage hasNextPage }
    media(type: ANIME, sort: TRENDING_DESC, isAdult: false) {` + listFields + `}
  }
}`

const detailsQuery = `
query ($id: Int) {
  Media(id: $id, type: ANIME) {
    id
    idMal
    title { romaji english native }
    coverImage { extraLarge large }
    bannerImage
    description(asHtml: false)
    averageScore
    popularity
    status
    format
    episodes
    duration
    season
    seasonYear
    startDate { year month day }
    genres
    synonyms
    trailer { id site }
    studios { nodes { name isAnimationStudio } }
    characters(sort: [ROLE, RELEVANCE], perPage: 15) {
      edges {
        role
        node { id name { full } image { large } }
        voiceActors(language: JAPANESE) { id name { full } image { large } languageV2 }
      }
    }
    nextAiringEpisode { episode airingAt }
  }
}`

// SearchAnime returns one page of search matches.
func (c *Client) SearchAnime(ctx context.Context, query string, page, perPage int) (*Page, error) {
	var result pageResponse
	err := c.do(ctx, searchQuery, map[string]interface{}{
		"search":  query,
		"page":    max(page, 1),
		"perPage": clampPerPage(perPage),
	}, &result)
	if err != nil {
		return nil, err
	}
	if err := firstError(result.Errors); err != nil {
		return nil, err
	}
	return &result.Data.Page, nil
}

// Trending returns the currently trending anime.
func (c *Client) Trending(ctx context.Context, page, perPage int) (*Page, error) {
	var result pageResponse
	err := c.do(ctx, trendingQuery, map[string]interface{}{
		"page":    max(page, 1),
		"perPage": clampPerPage(perPage),
	}, &result)
	if err != nil {
		return nil, err
	}
	if err := firstError(result.Errors); err != nil {
		return nil, err
	}
	return &result.Data.Page, nil
}

// GetAnimeDetails fetches everything an import needs in one query.
func (c *Client) GetAnimeDetails(ctx context.Context, id int) (*Media, error) {
	var result mediaResponse
	if err := c.do(ctx, detailsQuery, map[string]interface{}{"id": id}, &result); err != nil {
		return nil, err
	}
	if err := firstError(result.Errors); err != nil {
		return nil, err
	}
	if result.Data.Media == nil {
		return nil, &GraphQLError{Message: "Not Found.", Status: 404}
	}
	return result.Data.Media, nil
}

func (c *Client) do(ctx context.Context, query string, variables map[string]interface{}, out interface{}) error {
	payload := map[string]interface{}{
		"query":     query,
		"variables": variables,
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetBody(payload).
		Post(c.endpoint)
	if err != nil {
		return fmt.Errorf("AniList request failed: %w", err)
	}

	// AniList answers GraphQL errors with a 4xx status and an errors body; prefer the body.
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		if resp.IsError() {
			return &GraphQLError{
				Message:    resp.Status(),
				Status:     resp.StatusCode(),
				RetryAfter: parseRetryAfter(resp.Header().Get("Retry-After")),
			}
		}
		return fmt.Errorf("failed to parse AniList response: %w", err)
	}
	if resp.IsError() {
		if ge := errorsOf(out); ge != nil {
			ge.RetryAfter = parseRetryAfter(resp.Header().Get("Retry-After"))
			if ge.Status == 0 {
				ge.Status = resp.StatusCode()
			}
			return ge
		}
		return &GraphQLError{
			Message:    resp.Status(),
			Status:     resp.StatusCode(),
			RetryAfter: parseRetryAfter(resp.Header().Get("Retry-After")),
		}
	}
	return nil
}

// GraphQLError is the first error reported by the AniList API.
type GraphQLError struct {
	Message    string
	Status     int
	RetryAfter time.Duration
}

func (e *GraphQLError) Error() string {
	return "AniList GraphQL Error: " + e.Message
}

func (e *GraphQLError) NotFound() bool {
	return e.Status == 404
}

// Temporary reports whether the query may succeed if repeated. AniList rate limits with 429.
func (e *GraphQLError) Temporary() bool {
	return e.Status == 408 || e.Status == 429 || e.Status >= 500
}

func firstError(errs []graphQLError) error {
	if len(errs) == 0 {
		return nil
	}
	return &GraphQLError{Message: errs[0].Message, Status: errs[0].Status}
}

func errorsOf(out interface{}) *GraphQLError {
	var errs []graphQLError
	switch r := out.(type) {
	case *pageResponse:
		errs = r.Errors
	case *mediaResponse:
		errs = r.Errors
	}
	if len(errs) == 0 {
		return nil
	}
	return &GraphQLError{Message: errs[0].Message, Status: errs[0].Status}
}

func parseRetryAfter(v string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(v))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func clampPerPage(n int) int {
	if n <= 0 {
		return 20
	}
	if n > 50 {
		return 50
	}
	return n
}
