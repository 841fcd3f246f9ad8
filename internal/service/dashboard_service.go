package service

import (
	"github.com/pokerjest/animestream/internal/model"
	"gorm.io/gorm"
)

type DashboardStats struct {
	Anime      int64         `json:"anime"`
	Episodes   int64         `json:"episodes"`
	Categories int64         `json:"categories"`
	Users      int64         `json:"users"`
	Topics     int64         `json:"topics"`
	Comments   int64         `json:"comments"`
	TotalViews int64         `json:"total_views"`
	TopAnime   []model.Anime `json:"top_anime"`
}

type DashboardService struct {
	DB *gorm.DB
}

func NewDashboardService(db *gorm.DB) *DashboardService {
	return &DashboardService{DB: db}
}

func (s *DashboardService) Stats() (*DashboardStats, error) {
	stats := &DashboardStats{}
	counts := []struct {
		model interface{}
		dst   *int64
	}{
		{&model.Anime{}, &stats.Anime},
		{&model.Episode{}, &stats.Episodes},
		{&model.Category{}, &stats.Categories},
		{&model.User{}, &stats.Users},
		{&model.ForumTopic{}, &stats.Topics},
		{&model.Comment{}, &stats.Comments},
	}
	for _, c := range counts {
		if err := s.DB.Model(c.model).Count(c.dst).Error; err != nil {
			return nil, err
		}
	}

	if err := s.DB.Model(&model.Anime{}).Select("COALESCE(SUM(views), 0)").Scan(&stats.TotalViews).Error; err != nil {
		return nil, err
	}
	if err := s.DB.Order("views desc, id asc").Limit(10).Find(&stats.TopAnime).Error; err != nil {
		return nil, err
	}
	return stats, nil
}

type ActivityService struct {
	DB *gorm.DB
}

func NewActivityService(db *gorm.DB) *ActivityService {
	return &ActivityService{DB: db}
}

func (s *ActivityService) Record(level, action, message string) error {
	return s.DB.Create(&model.ActivityLog{Level: level, Action: action, Message: message}).Error
}

// Recent returns the newest log entries first.
func (s *ActivityService) Recent(limit int) ([]model.ActivityLog, error) {
	var logs []model.ActivityLog
	err := s.DB.Order("created_at desc, id desc").Limit(clampLimit(limit, 50)).Find(&logs).Error
	return logs, err
}

// Prune keeps the newest keep entries.
func (s *ActivityService) Prune(keep int) (int64, error) {
	if keep <= 0 {
		return 0, invalid("keep must be positive")
	}
	var cutoff model.ActivityLog
	err := s.DB.Order("id desc").Offset(keep - 1).Limit(1).Take(&cutoff).Error
	if isNotFound(err) {
		return 0, nil
	}
	if err != nil {
		return 0, err
	}
	res := s.DB.Where("id < ?", cutoff.ID).Delete(&model.ActivityLog{})
	return res.RowsAffected, res.Error
}
