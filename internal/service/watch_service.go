package service

import (
	"github.com/pokerjest/animestream/internal/logger"
	"github.com/pokerjest/animestream/internal/model"
	"github.com/pokerjest/animestream/internal/playback"
	"github.com/samber/lo"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// WatchView is everything the player page needs for one episode.
type WatchView struct {
	Episode        *model.Episode         `json:"episode"`
	Source         *model.VideoSource     `json:"source"`
	Qualities      []string               `json:"qualities"`
	Subtitle       *model.Subtitle        `json:"subtitle"`
	Subtitles      []model.Subtitle       `json:"subtitles"`
	ResumePosition int                    `json:"resume_position"`
	Progress       *playback.ProgressInfo `json:"progress,omitempty"`
	PrevEpisodeID  *uint                  `json:"prev_episode_id"`
	NextEpisodeID  *uint                  `json:"next_episode_id"`
}

type WatchService struct {
	DB       *gorm.DB
	Episodes *EpisodeService
}

func NewWatchService(db *gorm.DB, episodes *EpisodeService) *WatchService {
	return &WatchService{DB: db, Episodes: episodes}
}

// Watch resolves the stream and subtitle for an episode. userID 0 means anonymous.
func (s *WatchService) Watch(episodeID, userID uint, quality, subtitle string) (*WatchView, error) {
	ep, err := s.Episodes.Get(episodeID)
	if err != nil {
		return nil, err
	}

	view := &WatchView{
		Episode:   ep,
		Source:    playback.SelectSource(ep.Sources, quality),
		Qualities: playback.Qualities(ep.Sources),
		Subtitle:  playback.SelectSubtitle(ep.Subtitles, subtitle),
		Subtitles: ep.Subtitles,
	}
	if view.Subtitles == nil {
		view.Subtitles = []model.Subtitle{}
	}

	prev, next, err := s.Episodes.Neighbors(ep)
	if err != nil {
		return nil, err
	}
	if prev != nil {
		view.PrevEpisodeID = &prev.ID
	}
	if next != nil {
		view.NextEpisodeID = &next.ID
	}

	if userID != 0 {
		var h model.WatchHistory
		err := s.DB.Where("user_id = ? AND episode_id = ?", userID, episodeID).Take(&h).Error
		switch {
		case err == nil:
			view.ResumePosition = playback.ResumePosition(&h)
			p := playback.Progress(h.Position, h.Duration)
			view.Progress = &p
		case !isNotFound(err):
			return nil, err
		}
	}

	if err := s.Episodes.IncrementViews(ep); err != nil {
		logger.L().Warn("failed to count episode view", zap.Uint("episode_id", ep.ID), zap.Error(err))
	}
	return view, nil
}

// SaveProgress upserts the user's position. duration 0 falls back to the episode's own duration.
func (s *WatchService) SaveProgress(userID, episodeID uint, position, duration int) (*model.WatchHistory, error) {
	var ep model.Episode
	if err := s.DB.Select("id", "anime_id", "duration").First(&ep, episodeID).Error; err != nil {
		return nil, notFound(err, "episode")
	}
	if duration <= 0 {
		duration = ep.Duration
	}
	p := playback.Progress(position, duration)

	h := model.WatchHistory{
		UserID:    userID,
		EpisodeID: episodeID,
		AnimeID:   ep.AnimeID,
		Position:  p.Position,
		Duration:  p.Duration,
		Completed: p.Completed,
	}
	err := s.DB.Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "user_id"}, {Name: "episode_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"position", "duration", "completed", "updated_at"}),
	}).Create(&h).Error
	if err != nil {
		return nil, err
	}

	var stored model.WatchHistory
	if err := s.DB.Where("user_id = ? AND episode_id = ?", userID, episodeID).Take(&stored).Error; err != nil {
		return nil, err
	}
	return &stored, nil
}

// History lists the user's watch entries, most recent first.
func (s *WatchService) History(userID uint, limit int) ([]model.WatchHistory, error) {
	var items []model.WatchHistory
	err := s.DB.Preload("Anime").Preload("Episode").
		Where("user_id = ?", userID).
		Order("updated_at desc, id desc").
		Limit(clampLimit(limit, 50)).
		Find(&items).Error
	return items, err
}

// ContinueWatching returns the latest unfinished entry of each anime.
func (s *WatchService) ContinueWatching(userID uint, limit int) ([]model.WatchHistory, error) {
	var items []model.WatchHistory
	err := s.DB.Preload("Anime").Preload("Episode").
		Where("user_id = ? AND completed = ?", userID, false).
		Order("updated_at desc, id desc").
		Find(&items).Error
	if err != nil {
		return nil, err
	}
	items = lo.UniqBy(items, func(h model.WatchHistory) uint { return h.AnimeID })
	if n := clampLimit(limit, 12); len(items) > n {
		items = items[:n]
	}
	return items, nil
}

func (s *WatchService) ClearHistory(userID uint) error {
	return s.DB.Where("user_id = ?", userID).Delete(&model.WatchHistory{}).Error
}
