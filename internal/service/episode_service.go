package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/pokerjest/animestream/internal/event"
	"github.com/pokerjest/animestream/internal/model"
	"github.com/pokerjest/animestream/internal/playback"
	"golang.org/x/text/language"
	"golang.org/x/text/language/display"
	"gorm.io/gorm"
)

type SourceInput struct {
	Quality string `json:"quality"`
	URL     string `json:"url"`
	Format  string `json:"format"`
}

type SubtitleInput struct {
	Language  string `json:"language"`
	Label     string `json:"label"`
	URL       string `json:"url"`
	IsDefault bool   `json:"is_default"`
}

// EpisodeInput is shared by create and partial update. Sources and Subtitles replace the
// existing lists when non-nil.
type EpisodeInput struct {
	SeasonNumber *int            `json:"season_number"`
	Number       *int            `json:"number"`
	Title        *string         `json:"title"`
	Synopsis     *string         `json:"synopsis"`
	ThumbnailURL *string         `json:"thumbnail_url"`
	Duration     *int            `json:"duration"`
	AirDate      *time.Time      `json:"air_date"`
	Sources      []SourceInput   `json:"sources"`
	Subtitles    []SubtitleInput `json:"subtitles"`
}

type EpisodeService struct {
	DB  *gorm.DB
	Bus event.Bus
}

func NewEpisodeService(db *gorm.DB, bus event.Bus) *EpisodeService {
	return &EpisodeService{DB: db, Bus: bus}
}

func (s *EpisodeService) ListByAnime(animeID uint) ([]model.Episode, error) {
	var eps []model.Episode
	err := s.DB.Where("anime_id = ?", animeID).
		Order("season_number asc, number asc").
		Find(&eps).Error
	return eps, err
}

func (s *EpisodeService) Get(id uint) (*model.Episode, error) {
	var ep model.Episode
	err := s.DB.Preload("Sources").Preload("Subtitles").Preload("Anime").First(&ep, id).Error
	if err != nil {
		return nil, notFound(err, "episode")
	}
	return &ep, nil
}

func (s *EpisodeService) Create(animeID uint, in EpisodeInput) (*model.Episode, error) {
	if in.Number == nil || *in.Number <= 0 {
		return nil, invalid("episode number must be positive")
	}
	ep := model.Episode{AnimeID: animeID, SeasonNumber: 1}
	if err := applyEpisodeInput(&ep, in); err != nil {
		return nil, err
	}
	sources, err := buildSources(in.Sources)
	if err != nil {
		return nil, err
	}
	subs, err := buildSubtitles(in.Subtitles)
	if err != nil {
		return nil, err
	}

	var anime model.Anime
	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&anime, animeID).Error; err != nil {
			return notFound(err, "anime")
		}
		if err := tx.Omit("Anime", "Sources", "Subtitles").Create(&ep).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("episode %d of season %d %w", ep.Number, ep.SeasonNumber, ErrConflict)
			}
			return err
		}
		if err := replaceMedia(tx, ep.ID, sources, subs); err != nil {
			return err
		}
		return bumpTotalEpisodes(tx, &anime)
	})
	if err != nil {
		return nil, err
	}

	s.publish("created", &ep, anime.Title)
	return s.Get(ep.ID)
}

func (s *EpisodeService) Update(id uint, in EpisodeInput) (*model.Episode, error) {
	var ep model.Episode
	if err := s.DB.First(&ep, id).Error; err != nil {
		return nil, notFound(err, "episode")
	}
	if in.Number != nil && *in.Number <= 0 {
		return nil, invalid("episode number must be positive")
	}
	if err := applyEpisodeInput(&ep, in); err != nil {
		return nil, err
	}

	var sources []model.VideoSource
	var subs []model.Subtitle
	var err error
	if in.Sources != nil {
		if sources, err = buildSources(in.Sources); err != nil {
			return nil, err
		}
	}
	if in.Subtitles != nil {
		if subs, err = buildSubtitles(in.Subtitles); err != nil {
			return nil, err
		}
	}

	err = s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Omit("Anime", "Sources", "Subtitles").Save(&ep).Error; err != nil {
			if isUniqueViolation(err) {
				return fmt.Errorf("episode %d of season %d %w", ep.Number, ep.SeasonNumber, ErrConflict)
			}
			return err
		}
		if in.Sources != nil {
			if err := tx.Where("episode_id = ?", ep.ID).Delete(&model.VideoSource{}).Error; err != nil {
				return err
			}
			if err := replaceMedia(tx, ep.ID, sources, nil); err != nil {
				return err
			}
		}
		if in.Subtitles != nil {
			if err := tx.Where("episode_id = ?", ep.ID).Delete(&model.Subtitle{}).Error; err != nil {
				return err
			}
			if err := replaceMedia(tx, ep.ID, nil, subs); err != nil {
				return err
			}
		}
		var anime model.Anime
		if err := tx.First(&anime, ep.AnimeID).Error; err != nil {
			return err
		}
		return bumpTotalEpisodes(tx, &anime)
	})
	if err != nil {
		return nil, err
	}

	s.publish("updated", &ep, "")
	return s.Get(ep.ID)
}

func (s *EpisodeService) Delete(id uint) error {
	var ep model.Episode
	if err := s.DB.First(&ep, id).Error; err != nil {
		return notFound(err, "episode")
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("episode_id = ?", id).Delete(&model.VideoSource{}).Error; err != nil {
			return err
		}
		if err := tx.Where("episode_id = ?", id).Delete(&model.Subtitle{}).Error; err != nil {
			return err
		}
		if err := tx.Where("episode_id = ?", id).Delete(&model.WatchHistory{}).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&ep).Error
	})
	if err != nil {
		return err
	}
	s.publish("deleted", &ep, "")
	return nil
}

// Neighbors returns the episodes before and after ep in (season, number) order.
func (s *EpisodeService) Neighbors(ep *model.Episode) (prev, next *model.Episode, err error) {
	var p, n model.Episode
	err = s.DB.Where("anime_id = ? AND (season_number < ? OR (season_number = ? AND number < ?))",
		ep.AnimeID, ep.SeasonNumber, ep.SeasonNumber, ep.Number).
		Order("season_number desc, number desc").
		Take(&p).Error
	switch {
	case err == nil:
		prev = &p
	case !isNotFound(err):
		return nil, nil, err
	}

	err = s.DB.Where("anime_id = ? AND (season_number > ? OR (season_number = ? AND number > ?))",
		ep.AnimeID, ep.SeasonNumber, ep.SeasonNumber, ep.Number).
		Order("season_number asc, number asc").
		Take(&n).Error
	switch {
	case err == nil:
		next = &n
	case !isNotFound(err):
		return nil, nil, err
	}
	return prev, next, nil
}

func (s *EpisodeService) IncrementViews(ep *model.Episode) error {
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&model.Episode{}).Where("id = ?", ep.ID).
			UpdateColumn("views", gorm.Expr("views + 1")).Error; err != nil {
			return err
		}
		return tx.Model(&model.Anime{}).Where("id = ?", ep.AnimeID).
			UpdateColumn("views", gorm.Expr("views + 1")).Error
	})
}

func applyEpisodeInput(ep *model.Episode, in EpisodeInput) error {
	if in.SeasonNumber != nil {
		if *in.SeasonNumber < 0 {
			return invalid("season number cannot be negative")
		}
		ep.SeasonNumber = *in.SeasonNumber
	}
	if in.Number != nil {
		ep.Number = *in.Number
	}
	if in.Duration != nil {
		if *in.Duration < 0 {
			return invalid("duration cannot be negative")
		}
		ep.Duration = *in.Duration
	}
	if in.AirDate != nil {
		ep.AirDate = in.AirDate
	}
	setString(&ep.Title, in.Title)
	setString(&ep.Synopsis, in.Synopsis)
	setString(&ep.ThumbnailURL, in.ThumbnailURL)
	return nil
}

func buildSources(in []SourceInput) ([]model.VideoSource, error) {
	out := make([]model.VideoSource, 0, len(in))
	for _, src := range in {
		url := strings.TrimSpace(src.URL)
		if url == "" {
			return nil, invalid("source url is required")
		}
		format := strings.ToLower(strings.TrimSpace(src.Format))
		if format == "" {
			format = playback.SourceFormat(url)
		}
		out = append(out, model.VideoSource{
			Quality: playback.NormalizeQuality(src.Quality),
			URL:     url,
			Format:  format,
		})
	}
	return out, nil
}

func buildSubtitles(in []SubtitleInput) ([]model.Subtitle, error) {
	out := make([]model.Subtitle, 0, len(in))
	hasDefault := false
	for _, sub := range in {
		url := strings.TrimSpace(sub.URL)
		if url == "" {
			return nil, invalid("subtitle url is required")
		}
		tag, err := language.Parse(strings.TrimSpace(sub.Language))
		if err != nil {
			return nil, invalid("unknown subtitle language %q", sub.Language)
		}
		label := strings.TrimSpace(sub.Label)
		if label == "" {
			label = display.Self.Name(tag)
		}
		isDefault := sub.IsDefault && !hasDefault
		hasDefault = hasDefault || isDefault
		out = append(out, model.Subtitle{
			Language:  tag.String(),
			Label:     label,
			URL:       url,
			IsDefault: isDefault,
		})
	}
	return out, nil
}

func replaceMedia(tx *gorm.DB, episodeID uint, sources []model.VideoSource, subs []model.Subtitle) error {
	for i := range sources {
		sources[i].EpisodeID = episodeID
	}
	for i := range subs {
		subs[i].EpisodeID = episodeID
	}
	if len(sources) > 0 {
		if err := tx.Create(&sources).Error; err != nil {
			return err
		}
	}
	if len(subs) > 0 {
		if err := tx.Create(&subs).Error; err != nil {
			return err
		}
	}
	return nil
}

// bumpTotalEpisodes raises the anime's episode total when the stored episodes exceed it.
func bumpTotalEpisodes(tx *gorm.DB, anime *model.Anime) error {
	var count int64
	if err := tx.Model(&model.Episode{}).Where("anime_id = ?", anime.ID).Count(&count).Error; err != nil {
		return err
	}
	if int(count) <= anime.TotalEpisodes {
		return nil
	}
	anime.TotalEpisodes = int(count)
	return tx.Model(&model.Anime{}).Where("id = ?", anime.ID).
		UpdateColumn("total_episodes", anime.TotalEpisodes).Error
}

func (s *EpisodeService) publish(action string, ep *model.Episode, title string) {
	if s.Bus == nil {
		return
	}
	if title == "" {
		title = fmt.Sprintf("episode %d", ep.Number)
	}
	s.Bus.Publish(event.EventCatalogChanged, event.CatalogChange{
		Entity: "episode", Action: action, ID: ep.ID, Title: title,
	})
}
