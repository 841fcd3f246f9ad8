package tmdb

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestServer(t *testing.T, handler http.HandlerFunc) (*Client, *httptest.Server) {
	t.Helper()
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	c := NewClient("test-key", "en-US", "")
	c.SetBaseURL(srv.URL)
	return c, srv
}

func TestSearchTV(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/search/tv", r.URL.Path)
		assert.Equal(t, "Frieren", r.URL.Query().Get("query"))
		assert.Equal(t, "test-key", r.URL.Query().Get("api_key"))
		assert.Equal(t, "en-US", r.URL.Query().Get("language"))
		assert.Equal(t, "1", r.URL.Query().Get("page"))
		w.Write([]byte(`{"page":1,"total_pages":1,"total_results":1,"results":[
			{"id":209867,"name":"Frieren: Beyond Journey's End","poster_path":"/p.jpg","first_air_date":"2023-09-29"}]}`))
	})

	res, err := c.SearchTV(context.Background(), "Frieren", 0)
	require.NoError(t, err)
	require.Len(t, res.Results, 1)
	show := res.Results[0]
	assert.Equal(t, 209867, show.ID)
	assert.Equal(t, ImageBaseURL+"/w500/p.jpg", show.PosterPath)
	assert.Equal(t, "", show.BackdropPath)
	assert.Equal(t, 2023, show.Year())
}

func TestDiscoverAnimeFilters(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/discover/tv", r.URL.Path)
		assert.Equal(t, "16", r.URL.Query().Get("with_genres"))
		assert.Equal(t, "ja", r.URL.Query().Get("with_original_language"))
		assert.Equal(t, "3", r.URL.Query().Get("page"))
		w.Write([]byte(`{"page":3,"results":[]}`))
	})

	res, err := c.DiscoverAnime(context.Background(), 3)
	require.NoError(t, err)
	assert.Equal(t, 3, res.Page)
}

func TestGetTVDetails(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tv/42", r.URL.Path)
		assert.Equal(t, "credits,videos", r.URL.Query().Get("append_to_response"))
		w.Write([]byte(`{
			"id":42,"name":"Show","status":"Returning Series","number_of_episodes":24,
			"genres":[{"id":16,"name":"Animation"}],
			"seasons":[{"season_number":0,"episode_count":2},{"season_number":1,"episode_count":12}],
			"credits":{"cast":[{"name":"Actor","character":"Hero","profile_path":"/a.jpg","order":0}]},
			"videos":{"results":[{"key":"abc","site":"YouTube","type":"Trailer","name":"PV"}]}
		}`))
	})

	show, err := c.GetTVDetails(context.Background(), 42)
	require.NoError(t, err)
	assert.Equal(t, "Show", show.Name)
	assert.Len(t, show.Seasons, 2)
	assert.Equal(t, ImageBaseURL+"/w185/a.jpg", show.Credits.Cast[0].ProfilePath)
	assert.Equal(t, "abc", show.Videos.Results[0].Key)
}

func TestGetSeasonDetails(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/tv/42/season/2", r.URL.Path)
		w.Write([]byte(`{"season_number":2,"episodes":[{"episode_number":1,"name":"Start","still_path":"/s.jpg","runtime":24}]}`))
	})

	season, err := c.GetSeasonDetails(context.Background(), 42, 2)
	require.NoError(t, err)
	require.Len(t, season.Episodes, 1)
	assert.Equal(t, ImageBaseURL+"/w300/s.jpg", season.Episodes[0].StillPath)
}

func TestStatusError(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
		w.Write([]byte(`{"status_message":"not found"}`))
	})

	_, err := c.GetTVDetails(context.Background(), 1)
	require.Error(t, err)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.True(t, se.NotFound())
}

func TestBearerTokenAuth(t *testing.T) {
	token := "eyJhbGciOiJIUzI1NiJ9." + strings.Repeat("a", 120) + ".signature"
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer "+token, r.Header.Get("Authorization"))
		assert.Empty(t, r.URL.Query().Get("api_key"))
		w.Write([]byte(`{"results":[]}`))
	}))
	defer srv.Close()

	c := NewClient(token, "", "")
	c.SetBaseURL(srv.URL)
	_, err := c.SearchTV(context.Background(), "x", 1)
	require.NoError(t, err)
}

func TestImageURL(t *testing.T) {
	c := NewClient("", "", "")
	assert.Equal(t, "", c.ImageURL("w500", ""))
	assert.Equal(t, "https://cdn/x.jpg", c.ImageURL("w500", "https://cdn/x.jpg"))
}

func TestStatusErrorRetryHints(t *testing.T) {
	c, _ := newTestServer(t, func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Retry-After", "3")
		w.WriteHeader(http.StatusTooManyRequests)
	})

	_, err := c.GetTVDetails(context.Background(), 1)
	var se *StatusError
	require.True(t, errors.As(err, &se))
	assert.True(t, se.Temporary())
	assert.Equal(t, 3*time.Second, se.RetryAfter)

	assert.False(t, (&StatusError{Code: 404}).Temporary())
	assert.True(t, (&StatusError{Code: 502}).Temporary())
	assert.Zero(t, parseRetryAfter("Wed, 21 Oct 2015 07:28:00 GMT"))
}
