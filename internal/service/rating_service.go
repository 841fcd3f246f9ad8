package service

import (
	"math"

	"github.com/pokerjest/animestream/internal/model"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	MinScore = 1
	MaxScore = 10
)

// RatingSummary is the anime's aggregate after a rating change.
type RatingSummary struct {
	AnimeID     uint    `json:"anime_id"`
	Rating      float64 `json:"rating"`
	RatingCount int64   `json:"rating_count"`
	UserScore   int     `json:"user_score,omitempty"`
}

type RatingService struct {
	DB *gorm.DB
}

func NewRatingService(db *gorm.DB) *RatingService {
	return &RatingService{DB: db}
}

// Rate stores or replaces the user's score and refreshes the anime aggregate.
func (s *RatingService) Rate(userID, animeID uint, score int) (*RatingSummary, error) {
	if score < MinScore || score > MaxScore {
		return nil, invalid("score must be between %d and %d", MinScore, MaxScore)
	}

	var summary *RatingSummary
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Select("id").First(&model.Anime{}, animeID).Error; err != nil {
			return notFound(err, "anime")
		}
		r := model.Rating{UserID: userID, AnimeID: animeID, Score: score}
		err := tx.Clauses(clause.OnConflict{
			Columns:   []clause.Column{{Name: "user_id"}, {Name: "anime_id"}},
			DoUpdates: clause.AssignmentColumns([]string{"score", "updated_at"}),
		}).Create(&r).Error
		if err != nil {
			return err
		}
		summary, err = recomputeRating(tx, animeID)
		return err
	})
	if err != nil {
		return nil, err
	}
	summary.UserScore = score
	return summary, nil
}

func (s *RatingService) Remove(userID, animeID uint) (*RatingSummary, error) {
	var summary *RatingSummary
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		res := tx.Where("user_id = ? AND anime_id = ?", userID, animeID).Delete(&model.Rating{})
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return notFound(gorm.ErrRecordNotFound, "rating")
		}
		var err error
		summary, err = recomputeRating(tx, animeID)
		return err
	})
	return summary, err
}

// UserRating returns the user's score for the anime, 0 when unrated.
func (s *RatingService) UserRating(userID, animeID uint) (int, error) {
	var r model.Rating
	err := s.DB.Where("user_id = ? AND anime_id = ?", userID, animeID).Take(&r).Error
	if isNotFound(err) {
		return 0, nil
	}
	return r.Score, err
}

func recomputeRating(tx *gorm.DB, animeID uint) (*RatingSummary, error) {
	var agg struct {
		Avg   float64
		Count int64
	}
	err := tx.Model(&model.Rating{}).
		Select("COALESCE(AVG(score), 0) AS avg, COUNT(*) AS count").
		Where("anime_id = ?", animeID).
		Scan(&agg).Error
	if err != nil {
		return nil, err
	}
	avg := math.Round(agg.Avg*100) / 100
	err = tx.Model(&model.Anime{}).Where("id = ?", animeID).
		UpdateColumns(map[string]interface{}{"rating": avg, "rating_count": agg.Count}).Error
	if err != nil {
		return nil, err
	}
	return &RatingSummary{AnimeID: animeID, Rating: avg, RatingCount: agg.Count}, nil
}
