package api

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/gin-gonic/gin"
	"github.com/pokerjest/animestream/internal/config"
	"github.com/pokerjest/animestream/internal/db"
	"github.com/pokerjest/animestream/internal/event"
	"github.com/pokerjest/animestream/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMail struct {
	to, subject, body string
}

type fakeMailer struct {
	mu   sync.Mutex
	sent []sentMail
	err  error
}

func (f *fakeMailer) Send(to, subject, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.sent = append(f.sent, sentMail{to, subject, body})
	return nil
}

type testEnv struct {
	srv    *Server
	router *gin.Engine
	bus    *event.InMemoryBus
	mail   *fakeMailer
}

func testConfig() *config.Config {
	return &config.Config{
		Server: config.ServerConfig{
			Port:          8306,
			CORSOrigins:   []string{"http://localhost:3000"},
			SessionSecret: "test-session-secret",
		},
		Auth: config.AuthConfig{
			JWTSecret:     "test-jwt-secret",
			TokenTTL:      time.Hour,
			ResetTokenTTL: time.Hour,
		},
		Mail: config.MailConfig{ResetURL: "http://localhost:3000/reset-password"},
	}
}

func setupEnv(t *testing.T, cfg *config.Config, opts Options) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)

	conn, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})

	mail := &fakeMailer{}
	if opts.Mailer == nil {
		opts.Mailer = mail
	}
	bus := event.NewInMemoryBus()
	srv := NewServer(cfg, conn, bus, opts)
	return &testEnv{srv: srv, router: NewRouter(srv), bus: bus, mail: mail}
}

func newEnv(t *testing.T) *testEnv {
	return setupEnv(t, testConfig(), Options{})
}

func (e *testEnv) do(t *testing.T, method, path string, body interface{}, token string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(t, err)
		reader = bytes.NewReader(b)
	}
	req := httptest.NewRequest(method, path, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	return w
}

// login creates an account with the given role and returns a bearer token for it.
func (e *testEnv) login(t *testing.T, username string, admin bool) string {
	t.Helper()
	var err error
	if admin {
		_, err = e.srv.Auth.CreateAdmin(username, username+"@example.com", "secret123")
	} else {
		_, err = e.srv.Auth.Register(username, username+"@example.com", "secret123")
	}
	require.NoError(t, err)

	w := e.do(t, http.MethodPost, "/api/auth/login", map[string]string{"identifier": username, "password": "secret123"}, "")
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	return decode[authResponse](t, w).Token
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &v), w.Body.String())
	return v
}

type idSlug struct {
	ID   uint   `json:"id"`
	Slug string `json:"slug"`
}

func TestHealth(t *testing.T) {
	e := newEnv(t)
	w := e.do(t, http.MethodGet, "/api/health", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "ok", decode[map[string]string](t, w)["status"])
	assert.NotEmpty(t, w.Header().Get("X-Request-ID"))
}

func TestRegisterAndTokenAuth(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodPost, "/api/auth/register", RegisterRequest{Username: "mika", Email: "mika@example.com", Password: "secret123"}, "")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	resp := decode[authResponse](t, w)
	require.NotEmpty(t, resp.Token)
	assert.Equal(t, "mika", resp.User.Username)

	w = e.do(t, http.MethodPost, "/api/auth/register", RegisterRequest{Username: "mika", Email: "other@example.com", Password: "secret123"}, "")
	assert.Equal(t, http.StatusConflict, w.Code)

	w = e.do(t, http.MethodGet, "/api/me", nil, resp.Token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"mika"`)
	assert.NotContains(t, w.Body.String(), "password")

	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/api/me", nil, "").Code)
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/api/me", nil, "garbage").Code)
	// a bad token is rejected even on public routes
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/api/anime", nil, "garbage").Code)

	w = e.do(t, http.MethodPost, "/api/auth/login", map[string]string{"identifier": "mika", "password": "wrong"}, "")
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestSessionCookieLogin(t *testing.T) {
	e := newEnv(t)
	_, err := e.srv.Auth.Register("nana", "nana@example.com", "secret123")
	require.NoError(t, err)

	w := e.do(t, http.MethodPost, "/api/auth/login", map[string]string{"username": "nana@example.com", "password": "secret123"}, "")
	require.Equal(t, http.StatusOK, w.Code)
	cookies := w.Result().Cookies()
	require.NotEmpty(t, cookies)

	req := httptest.NewRequest(http.MethodGet, "/api/me", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"username":"nana"`)

	req = httptest.NewRequest(http.MethodPost, "/api/auth/logout", nil)
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusOK, w.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/me", nil)
	for _, ck := range w.Result().Cookies() {
		req.AddCookie(ck)
	}
	w = httptest.NewRecorder()
	e.router.ServeHTTP(w, req)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestPasswordEndpoints(t *testing.T) {
	e := newEnv(t)
	token := e.login(t, "rin", false)

	w := e.do(t, http.MethodPut, "/api/me/password", ChangePasswordRequest{OldPassword: "nope", NewPassword: "another1"}, token)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
	w = e.do(t, http.MethodPut, "/api/me/password", ChangePasswordRequest{OldPassword: "secret123", NewPassword: "another1"}, token)
	assert.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "nobody@example.com"}, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Empty(t, e.mail.sent)

	w = e.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "rin@example.com"}, "")
	assert.Equal(t, http.StatusOK, w.Code)
	require.Len(t, e.mail.sent, 1)

	w = e.do(t, http.MethodPost, "/api/auth/reset-password", map[string]string{"token": "bogus", "password": "another2"}, "")
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPut, "/api/me", map[string]string{"display_name": "Rin S."}, token)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Rin S.")
}

func TestForgotPasswordSameAnswerWhenMailFails(t *testing.T) {
	e := newEnv(t)
	e.login(t, "rin", false)
	e.mail.err = errors.New("smtp down")

	known := e.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "rin@example.com"}, "")
	unknown := e.do(t, http.MethodPost, "/api/auth/forgot-password", map[string]string{"email": "nobody@example.com"}, "")
	assert.Equal(t, http.StatusOK, known.Code)
	assert.Equal(t, unknown.Code, known.Code)
	assert.Equal(t, unknown.Body.String(), known.Body.String())
}

func TestAdminRoutesRequireAdmin(t *testing.T) {
	e := newEnv(t)
	userToken := e.login(t, "viewer", false)
	adminToken := e.login(t, "boss", true)

	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodGet, "/api/admin/dashboard", nil, "").Code)
	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodGet, "/api/admin/dashboard", nil, userToken).Code)

	w := e.do(t, http.MethodGet, "/api/admin/dashboard", nil, adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 2, decode[map[string]interface{}](t, w)["users"])

	w = e.do(t, http.MethodGet, "/api/admin/users?q=view", nil, adminToken)
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]interface{}](t, w)["total"])
}

func TestListAnimePageBounds(t *testing.T) {
	e := newEnv(t)

	w := e.do(t, http.MethodGet, "/api/anime?page_size=1000&page=0", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	page := decode[map[string]interface{}](t, w)
	assert.EqualValues(t, 100, page["page_size"])
	assert.EqualValues(t, 1, page["page"])

	w = e.do(t, http.MethodGet, "/api/anime", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 24, decode[map[string]interface{}](t, w)["page_size"])
}

func TestCatalogWatchFlow(t *testing.T) {
	e := newEnv(t)
	admin := e.login(t, "boss", true)
	viewer := e.login(t, "viewer", false)

	w := e.do(t, http.MethodPost, "/api/admin/categories", map[string]string{"name": "Fantasy"}, admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	cat := decode[idSlug](t, w)
	assert.Equal(t, "fantasy", cat.Slug)

	w = e.do(t, http.MethodPost, "/api/admin/anime", map[string]interface{}{
		"title":        "Frieren: Beyond Journey's End",
		"release_year": 2023,
		"category_ids": []uint{cat.ID},
	}, admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	anime := decode[idSlug](t, w)
	require.NotEmpty(t, anime.Slug)

	w = e.do(t, http.MethodPost, fmt.Sprintf("/api/admin/anime/%d/episodes", anime.ID), map[string]interface{}{
		"number":   1,
		"title":    "The Journey's End",
		"duration": 1440,
		"sources": []map[string]string{
			{"quality": "1080p", "url": "https://cdn.example.com/e1/1080.m3u8"},
			{"quality": "720", "url": "https://cdn.example.com/e1/720.mp4"},
		},
		"subtitles": []map[string]interface{}{
			{"language": "en", "url": "https://cdn.example.com/e1/en.vtt", "is_default": true},
			{"language": "ja", "url": "https://cdn.example.com/e1/ja.vtt"},
		},
	}, admin)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	ep := decode[idSlug](t, w)

	// public catalog
	w = e.do(t, http.MethodGet, "/api/anime?q=frieren&category=fantasy", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]interface{}](t, w)["total"])

	w = e.do(t, http.MethodGet, "/api/anime/"+anime.Slug, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Fantasy")

	w = e.do(t, http.MethodGet, fmt.Sprintf("/api/anime/%d/episodes", anime.ID), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]interface{}](t, w)["items"], 1)

	w = e.do(t, http.MethodGet, "/api/categories", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"anime_count":1`)

	// watch
	type watchView struct {
		Source struct {
			Quality string `json:"quality"`
			Format  string `json:"format"`
		} `json:"source"`
		Subtitle *struct {
			Language string `json:"language"`
		} `json:"subtitle"`
		Qualities      []string `json:"qualities"`
		ResumePosition int      `json:"resume_position"`
	}
	w = e.do(t, http.MethodGet, fmt.Sprintf("/api/episodes/%d/watch", ep.ID), nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[watchView](t, w)
	assert.Equal(t, "1080p", view.Source.Quality)
	assert.Equal(t, "hls", view.Source.Format)
	require.NotNil(t, view.Subtitle)
	assert.Equal(t, "en", view.Subtitle.Language)
	assert.ElementsMatch(t, []string{"1080p", "720p"}, view.Qualities)

	w = e.do(t, http.MethodGet, fmt.Sprintf("/api/episodes/%d/watch?quality=720p&subtitle=ja-JP", ep.ID), nil, "")
	view = decode[watchView](t, w)
	assert.Equal(t, "720p", view.Source.Quality)
	assert.Equal(t, "ja", view.Subtitle.Language)

	w = e.do(t, http.MethodGet, fmt.Sprintf("/api/episodes/%d/watch?subtitle=off", ep.ID), nil, "")
	assert.Nil(t, decode[watchView](t, w).Subtitle)

	// progress and resume
	w = e.do(t, http.MethodPost, fmt.Sprintf("/api/episodes/%d/progress", ep.ID), map[string]int{"position": 600}, viewer)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, http.StatusUnauthorized, e.do(t, http.MethodPost, fmt.Sprintf("/api/episodes/%d/progress", ep.ID), map[string]int{"position": 1}, "").Code)

	w = e.do(t, http.MethodGet, fmt.Sprintf("/api/episodes/%d/watch", ep.ID), nil, viewer)
	assert.Equal(t, 600, decode[watchView](t, w).ResumePosition)

	w = e.do(t, http.MethodGet, "/api/me/continue", nil, viewer)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[map[string][]interface{}](t, w)["items"], 1)

	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, "/api/me/history", nil, viewer).Code)
	w = e.do(t, http.MethodGet, "/api/me/history", nil, viewer)
	assert.Empty(t, decode[map[string][]interface{}](t, w)["items"])

	// admin maintenance
	w = e.do(t, http.MethodPut, fmt.Sprintf("/api/admin/anime/%d/featured", anime.ID), map[string]bool{"featured": true}, admin)
	require.Equal(t, http.StatusOK, w.Code)
	w = e.do(t, http.MethodGet, "/api/anime/featured", nil, "")
	assert.Len(t, decode[map[string][]interface{}](t, w)["items"], 1)

	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, fmt.Sprintf("/api/admin/anime/%d", anime.ID), nil, admin).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/anime/"+anime.Slug, nil, "").Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, fmt.Sprintf("/api/episodes/%d/watch", ep.ID), nil, "").Code)
}

func TestRatingsAndComments(t *testing.T) {
	e := newEnv(t)
	admin := e.login(t, "boss", true)
	alice := e.login(t, "alice", false)
	bob := e.login(t, "bobby", false)

	w := e.do(t, http.MethodPost, "/api/admin/anime", map[string]string{"title": "Mushishi"}, admin)
	require.Equal(t, http.StatusCreated, w.Code)
	anime := decode[idSlug](t, w)
	ratingPath := "/api/anime/" + anime.Slug + "/rating"

	w = e.do(t, http.MethodPut, ratingPath, map[string]int{"score": 11}, alice)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = e.do(t, http.MethodPut, ratingPath, map[string]int{"score": 9}, alice)
	require.Equal(t, http.StatusOK, w.Code)
	w = e.do(t, http.MethodPut, ratingPath, map[string]int{"score": 6}, bob)
	require.Equal(t, http.StatusOK, w.Code)
	summary := decode[map[string]interface{}](t, w)
	assert.EqualValues(t, 7.5, summary["rating"])
	assert.EqualValues(t, 2, summary["rating_count"])

	w = e.do(t, http.MethodGet, ratingPath, nil, alice)
	assert.EqualValues(t, 9, decode[map[string]interface{}](t, w)["user_score"])

	assert.Equal(t, http.StatusOK, e.do(t, http.MethodDelete, ratingPath, nil, bob).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodDelete, ratingPath, nil, bob).Code)

	commentsPath := "/api/anime/" + anime.Slug + "/comments"
	w = e.do(t, http.MethodPost, commentsPath, map[string]string{"content": "A quiet masterpiece."}, alice)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	comment := decode[idSlug](t, w)
	assert.Contains(t, w.Body.String(), `"username":"alice"`)

	w = e.do(t, http.MethodGet, commentsPath, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]interface{}](t, w)["total"])

	commentPath := fmt.Sprintf("/api/comments/%d", comment.ID)
	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodPut, commentPath, map[string]string{"content": "hijacked"}, bob).Code)
	assert.Equal(t, http.StatusOK, e.do(t, http.MethodPut, commentPath, map[string]string{"content": "Edited."}, alice).Code)
	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodDelete, commentPath, nil, bob).Code)
	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, commentPath, nil, admin).Code)
}

func TestForumFlow(t *testing.T) {
	e := newEnv(t)
	admin := e.login(t, "boss", true)
	alice := e.login(t, "alice", false)

	w := e.do(t, http.MethodPost, "/api/forum/topics", topicRequest{Title: "Best OP of the season?", Content: "Go.", Section: "Music"}, alice)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	topic := decode[idSlug](t, w)
	topicPath := fmt.Sprintf("/api/forum/topics/%d", topic.ID)

	w = e.do(t, http.MethodPost, topicPath+"/replies", map[string]string{"content": "Easily this one."}, admin)
	require.Equal(t, http.StatusCreated, w.Code)

	w = e.do(t, http.MethodGet, "/api/forum/topics?section=music", nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.EqualValues(t, 1, decode[map[string]interface{}](t, w)["total"])

	w = e.do(t, http.MethodGet, topicPath, nil, "")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "Easily this one.")

	lockPath := fmt.Sprintf("/api/admin/forum/topics/%d/lock", topic.ID)
	assert.Equal(t, http.StatusForbidden, e.do(t, http.MethodPut, lockPath, map[string]bool{"value": true}, alice).Code)
	w = e.do(t, http.MethodPut, lockPath, map[string]bool{"value": true}, admin)
	require.Equal(t, http.StatusOK, w.Code)

	w = e.do(t, http.MethodPost, topicPath+"/replies", map[string]string{"content": "too late"}, alice)
	assert.Equal(t, http.StatusForbidden, w.Code)

	assert.Equal(t, http.StatusNoContent, e.do(t, http.MethodDelete, topicPath, nil, alice).Code)
	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, topicPath, nil, "").Code)
}

func TestErrorMapping(t *testing.T) {
	e := newEnv(t)
	admin := e.login(t, "boss", true)

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/anime/does-not-exist", nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/episodes/abc/watch", nil, "").Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodPost, "/api/admin/anime", map[string]string{"title": "x", "status": "paused"}, admin).Code)

	// no provider configured
	w := e.do(t, http.MethodPost, "/api/admin/import/tmdb/1396", nil, admin)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Equal(t, http.StatusServiceUnavailable, e.do(t, http.MethodGet, "/api/admin/import/anilist/trending", nil, admin).Code)
	assert.Equal(t, http.StatusBadRequest, e.do(t, http.MethodGet, "/api/admin/import/tmdb/search", nil, admin).Code)

	// no bucket configured
	assert.Equal(t, http.StatusServiceUnavailable, e.do(t, http.MethodPost, "/api/admin/uploads", nil, admin).Code)

	w = e.do(t, http.MethodGet, "/api/nowhere", nil, "")
	assert.Equal(t, http.StatusNotFound, w.Code)
	assert.Contains(t, w.Body.String(), "not found")
}

func TestCORSPreflight(t *testing.T) {
	e := newEnv(t)
	req := httptest.NewRequest(http.MethodOptions, "/api/anime", nil)
	req.Header.Set("Origin", "http://localhost:3000")
	req.Header.Set("Access-Control-Request-Method", http.MethodGet)
	w := httptest.NewRecorder()
	e.router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.Equal(t, "http://localhost:3000", w.Header().Get("Access-Control-Allow-Origin"))
	assert.Equal(t, "true", w.Header().Get("Access-Control-Allow-Credentials"))
}

func TestStaticFallback(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "index.html"), []byte("<html>app</html>"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "app.js"), []byte("console.log(1)"), 0o644))

	cfg := testConfig()
	cfg.Server.StaticDir = dir
	e := setupEnv(t, cfg, Options{})

	w := e.do(t, http.MethodGet, "/app.js", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "console.log")

	w = e.do(t, http.MethodGet, "/anime/frieren", nil, "")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "app")

	assert.Equal(t, http.StatusNotFound, e.do(t, http.MethodGet, "/api/missing", nil, "").Code)
}

type fakeS3 struct {
	mu   sync.Mutex
	keys []string
}

func (f *fakeS3) PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.keys = append(f.keys, *params.Key)
	return &s3.PutObjectOutput{}, nil
}

func TestUpload(t *testing.T) {
	fake := &fakeS3{}
	e := setupEnv(t, testConfig(), Options{Store: storage.NewWithClient(fake, "media", "https://cdn.example.com")})
	admin := e.login(t, "boss", true)

	upload := func(kind, filename string) *httptest.ResponseRecorder {
		var body bytes.Buffer
		mw := multipart.NewWriter(&body)
		require.NoError(t, mw.WriteField("kind", kind))
		fw, err := mw.CreateFormFile("file", filename)
		require.NoError(t, err)
		fw.Write([]byte("payload"))
		require.NoError(t, mw.Close())

		req := httptest.NewRequest(http.MethodPost, "/api/admin/uploads", &body)
		req.Header.Set("Content-Type", mw.FormDataContentType())
		req.Header.Set("Authorization", "Bearer "+admin)
		w := httptest.NewRecorder()
		e.router.ServeHTTP(w, req)
		return w
	}

	w := upload("posters", "cover.png")
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	url := decode[map[string]string](t, w)["url"]
	assert.True(t, strings.HasPrefix(url, "https://cdn.example.com/posters/"), url)
	assert.True(t, strings.HasSuffix(url, ".png"))
	require.Len(t, fake.keys, 1)

	assert.Equal(t, http.StatusBadRequest, upload("posters", "cover.gif").Code)
	assert.Equal(t, http.StatusBadRequest, upload("videos", "ep1.mp4").Code)
	assert.Len(t, fake.keys, 1)
}

// streamRecorder is a ResponseWriter that can be read while the handler is still writing.
type streamRecorder struct {
	mu     sync.Mutex
	header http.Header
	buf    bytes.Buffer
	code   int
}

func newStreamRecorder() *streamRecorder {
	return &streamRecorder{header: http.Header{}}
}

func (r *streamRecorder) Header() http.Header { return r.header }

func (r *streamRecorder) Write(p []byte) (int, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.Write(p)
}

func (r *streamRecorder) WriteHeader(code int) {
	r.mu.Lock()
	r.code = code
	r.mu.Unlock()
}

func (r *streamRecorder) Flush() {}

func (r *streamRecorder) String() string {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.buf.String()
}

func TestSSEStreamsCatalogEvents(t *testing.T) {
	e := newEnv(t)
	admin := e.login(t, "boss", true)

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/events", nil).WithContext(ctx)
	req.Header.Set("Authorization", "Bearer "+admin)
	rec := newStreamRecorder()

	done := make(chan struct{})
	go func() {
		e.router.ServeHTTP(rec, req)
		close(done)
	}()

	require.Eventually(t, func() bool { return e.bus.Subscribers(event.EventCatalogChanged) == 1 }, time.Second, 5*time.Millisecond)
	_, err := e.srv.Categories.Create("Mecha", "")
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		return strings.Contains(rec.String(), "event:catalog_changed")
	}, time.Second, 10*time.Millisecond)
	assert.Contains(t, rec.String(), `"entity":"category"`)
	assert.Contains(t, rec.String(), "connected")

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("SSE handler did not return after the client went away")
	}
	assert.Equal(t, 0, e.bus.Subscribers(event.EventCatalogChanged))
}
