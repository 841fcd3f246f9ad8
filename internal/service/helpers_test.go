package service

import (
	"testing"

	"github.com/pokerjest/animestream/internal/db"
	"github.com/pokerjest/animestream/internal/model"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	conn, err := db.OpenMemory()
	require.NoError(t, err)
	t.Cleanup(func() {
		if sqlDB, err := conn.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return conn
}

func ptr[T any](v T) *T {
	return &v
}

func seedAnime(t *testing.T, conn *gorm.DB, title string) *model.Anime {
	t.Helper()
	a, err := NewAnimeService(conn, nil).Create(AnimeInput{Title: ptr(title)})
	require.NoError(t, err)
	return a
}

func seedEpisode(t *testing.T, conn *gorm.DB, animeID uint, season, number int) *model.Episode {
	t.Helper()
	ep, err := NewEpisodeService(conn, nil).Create(animeID, EpisodeInput{
		SeasonNumber: ptr(season),
		Number:       ptr(number),
		Duration:     ptr(1440),
	})
	require.NoError(t, err)
	return ep
}

func seedUser(t *testing.T, conn *gorm.DB, username, role string) *model.User {
	t.Helper()
	u := model.User{Username: username, Email: username + "@example.com", Role: role, DisplayName: username}
	require.NoError(t, conn.Create(&u).Error)
	return &u
}
