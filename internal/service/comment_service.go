package service

import (
	"fmt"
	"strings"
	"unicode/utf8"

	"github.com/pokerjest/animestream/internal/model"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

const MaxCommentLength = 2000

// CommentView is a comment with its author's public profile.
type CommentView struct {
	model.Comment
	Author model.PublicUser `json:"author"`
}

type CommentService struct {
	DB *gorm.DB
}

func NewCommentService(db *gorm.DB) *CommentService {
	return &CommentService{DB: db}
}

// List returns the comments of an anime, or of one of its episodes when episodeID is set.
func (s *CommentService) List(animeID uint, episodeID *uint, p Paging) (PageResult[CommentView], error) {
	p = p.Normalize()
	q := s.DB.Model(&model.Comment{}).Where("anime_id = ?", animeID)
	if episodeID != nil {
		q = q.Where("episode_id = ?", *episodeID)
	}
	base := q.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return PageResult[CommentView]{}, err
	}
	var comments []model.Comment
	err := base.Preload("User").Order("created_at desc, id desc").
		Limit(p.PageSize).Offset(p.Offset()).Find(&comments).Error
	if err != nil {
		return PageResult[CommentView]{}, err
	}
	return newPageResult(lo.Map(comments, func(c model.Comment, _ int) CommentView {
		return CommentView{Comment: c, Author: c.User.Public()}
	}), total, p), nil
}

func (s *CommentService) Create(userID, animeID uint, episodeID *uint, content string) (*CommentView, error) {
	content, err := validComment(content)
	if err != nil {
		return nil, err
	}
	if err := s.DB.Select("id").First(&model.Anime{}, animeID).Error; err != nil {
		return nil, notFound(err, "anime")
	}
	if episodeID != nil {
		var count int64
		if err := s.DB.Model(&model.Episode{}).Where("id = ? AND anime_id = ?", *episodeID, animeID).Count(&count).Error; err != nil {
			return nil, err
		}
		if count == 0 {
			return nil, fmt.Errorf("episode %w", ErrNotFound)
		}
	}

	c := model.Comment{UserID: userID, AnimeID: animeID, EpisodeID: episodeID, Content: content}
	if err := s.DB.Omit("User").Create(&c).Error; err != nil {
		return nil, err
	}
	return s.get(c.ID)
}

func (s *CommentService) Update(actor *model.User, id uint, content string) (*CommentView, error) {
	content, err := validComment(content)
	if err != nil {
		return nil, err
	}
	var c model.Comment
	if err := s.DB.First(&c, id).Error; err != nil {
		return nil, notFound(err, "comment")
	}
	if actor == nil || c.UserID != actor.ID {
		return nil, ErrForbidden
	}
	if err := s.DB.Model(&c).Update("content", content).Error; err != nil {
		return nil, err
	}
	return s.get(c.ID)
}

// Delete is allowed for the author and for admins.
func (s *CommentService) Delete(actor *model.User, id uint) error {
	var c model.Comment
	if err := s.DB.First(&c, id).Error; err != nil {
		return notFound(err, "comment")
	}
	if actor == nil || (c.UserID != actor.ID && !actor.IsAdmin()) {
		return ErrForbidden
	}
	return s.DB.Delete(&c).Error
}

func (s *CommentService) get(id uint) (*CommentView, error) {
	var c model.Comment
	if err := s.DB.Preload("User").First(&c, id).Error; err != nil {
		return nil, notFound(err, "comment")
	}
	return &CommentView{Comment: c, Author: c.User.Public()}, nil
}

func validComment(content string) (string, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return "", invalid("comment cannot be empty")
	}
	if utf8.RuneCountInString(content) > MaxCommentLength {
		return "", invalid("comment exceeds %d characters", MaxCommentLength)
	}
	return content, nil
}
