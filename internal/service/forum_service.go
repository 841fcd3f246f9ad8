package service

import (
	"strings"
	"time"
	"unicode/utf8"

	"github.com/pokerjest/animestream/internal/model"
	"github.com/samber/lo"
	"gorm.io/gorm"
)

const (
	DefaultSection = "general"

	minTopicTitle = 3
	maxTopicTitle = 200
)

type TopicView struct {
	model.ForumTopic
	Author model.PublicUser `json:"author"`
}

type ReplyView struct {
	model.ForumReply
	Author model.PublicUser `json:"author"`
}

// TopicPage is a topic together with one page of its replies.
type TopicPage struct {
	Topic   TopicView             `json:"topic"`
	Replies PageResult[ReplyView] `json:"replies"`
}

type ForumService struct {
	DB *gorm.DB
}

func NewForumService(db *gorm.DB) *ForumService {
	return &ForumService{DB: db}
}

func (s *ForumService) ListTopics(section string, p Paging) (PageResult[TopicView], error) {
	p = p.Normalize()
	q := s.DB.Model(&model.ForumTopic{})
	if section != "" {
		q = q.Where("section = ?", section)
	}
	base := q.Session(&gorm.Session{})

	var total int64
	if err := base.Count(&total).Error; err != nil {
		return PageResult[TopicView]{}, err
	}
	var topics []model.ForumTopic
	err := base.Preload("User").
		Order("is_pinned desc, last_activity desc, id desc").
		Limit(p.PageSize).Offset(p.Offset()).
		Find(&topics).Error
	if err != nil {
		return PageResult[TopicView]{}, err
	}
	return newPageResult(lo.Map(topics, func(t model.ForumTopic, _ int) TopicView {
		return TopicView{ForumTopic: t, Author: t.User.Public()}
	}), total, p), nil
}

// GetTopic returns the topic with a page of replies, oldest first, and counts the view.
func (s *ForumService) GetTopic(id uint, p Paging) (*TopicPage, error) {
	p = p.Normalize()
	var topic model.ForumTopic
	if err := s.DB.Preload("User").First(&topic, id).Error; err != nil {
		return nil, notFound(err, "topic")
	}
	if err := s.DB.Model(&model.ForumTopic{}).Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + 1")).Error; err != nil {
		return nil, err
	}
	topic.Views++

	base := s.DB.Model(&model.ForumReply{}).Where("topic_id = ?", id).Session(&gorm.Session{})
	var total int64
	if err := base.Count(&total).Error; err != nil {
		return nil, err
	}
	var replies []model.ForumReply
	err := base.Preload("User").Order("created_at asc, id asc").
		Limit(p.PageSize).Offset(p.Offset()).Find(&replies).Error
	if err != nil {
		return nil, err
	}

	return &TopicPage{
		Topic: TopicView{ForumTopic: topic, Author: topic.User.Public()},
		Replies: newPageResult(lo.Map(replies, func(r model.ForumReply, _ int) ReplyView {
			return ReplyView{ForumReply: r, Author: r.User.Public()}
		}), total, p),
	}, nil
}

func (s *ForumService) CreateTopic(userID uint, title, content, section string) (*model.ForumTopic, error) {
	title, content, err := validTopic(title, content)
	if err != nil {
		return nil, err
	}
	section = strings.ToLower(strings.TrimSpace(section))
	if section == "" {
		section = DefaultSection
	}

	topic := model.ForumTopic{
		UserID:       userID,
		Section:      section,
		Title:        title,
		Content:      content,
		LastActivity: time.Now(),
	}
	if err := s.DB.Omit("User").Create(&topic).Error; err != nil {
		return nil, err
	}
	return &topic, nil
}

func (s *ForumService) UpdateTopic(actor *model.User, id uint, title, content string) (*model.ForumTopic, error) {
	title, content, err := validTopic(title, content)
	if err != nil {
		return nil, err
	}
	topic, err := s.ownedTopic(actor, id)
	if err != nil {
		return nil, err
	}
	topic.Title = title
	topic.Content = content
	if err := s.DB.Model(topic).Updates(map[string]interface{}{"title": title, "content": content}).Error; err != nil {
		return nil, err
	}
	return topic, nil
}

// DeleteTopic removes the topic together with its replies.
func (s *ForumService) DeleteTopic(actor *model.User, id uint) error {
	topic, err := s.ownedTopic(actor, id)
	if err != nil {
		return err
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("topic_id = ?", topic.ID).Delete(&model.ForumReply{}).Error; err != nil {
			return err
		}
		return tx.Delete(topic).Error
	})
}

// Reply adds a reply and bumps the topic's activity. Locked topics refuse replies.
func (s *ForumService) Reply(userID, topicID uint, content string) (*ReplyView, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalid("reply cannot be empty")
	}
	if utf8.RuneCountInString(content) > MaxCommentLength*5 {
		return nil, invalid("reply is too long")
	}

	reply := model.ForumReply{TopicID: topicID, UserID: userID, Content: content}
	var author model.User
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.First(&author, userID).Error; err != nil {
			return notFound(err, "user")
		}
		var topic model.ForumTopic
		if err := tx.First(&topic, topicID).Error; err != nil {
			return notFound(err, "topic")
		}
		if topic.IsLocked {
			return ErrForbidden
		}
		if err := tx.Omit("User").Create(&reply).Error; err != nil {
			return err
		}
		return tx.Model(&topic).UpdateColumns(map[string]interface{}{
			"reply_count":   gorm.Expr("reply_count + 1"),
			"last_activity": reply.CreatedAt,
		}).Error
	})
	if err != nil {
		return nil, err
	}

	return &ReplyView{ForumReply: reply, Author: author.Public()}, nil
}

func (s *ForumService) UpdateReply(actor *model.User, id uint, content string) (*model.ForumReply, error) {
	content = strings.TrimSpace(content)
	if content == "" {
		return nil, invalid("reply cannot be empty")
	}
	reply, err := s.ownedReply(actor, id)
	if err != nil {
		return nil, err
	}
	if err := s.DB.Model(reply).Update("content", content).Error; err != nil {
		return nil, err
	}
	reply.Content = content
	return reply, nil
}

func (s *ForumService) DeleteReply(actor *model.User, id uint) error {
	reply, err := s.ownedReply(actor, id)
	if err != nil {
		return err
	}
	return s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Delete(reply).Error; err != nil {
			return err
		}
		return tx.Model(&model.ForumTopic{}).
			Where("id = ? AND reply_count > 0", reply.TopicID).
			UpdateColumn("reply_count", gorm.Expr("reply_count - 1")).Error
	})
}

func (s *ForumService) SetPinned(id uint, pinned bool) (*model.ForumTopic, error) {
	return s.setFlag(id, "is_pinned", pinned)
}

func (s *ForumService) SetLocked(id uint, locked bool) (*model.ForumTopic, error) {
	return s.setFlag(id, "is_locked", locked)
}

func (s *ForumService) setFlag(id uint, column string, value bool) (*model.ForumTopic, error) {
	var topic model.ForumTopic
	if err := s.DB.First(&topic, id).Error; err != nil {
		return nil, notFound(err, "topic")
	}
	if err := s.DB.Model(&topic).UpdateColumn(column, value).Error; err != nil {
		return nil, err
	}
	return &topic, nil
}

func (s *ForumService) ownedTopic(actor *model.User, id uint) (*model.ForumTopic, error) {
	var topic model.ForumTopic
	if err := s.DB.First(&topic, id).Error; err != nil {
		return nil, notFound(err, "topic")
	}
	if actor == nil || (topic.UserID != actor.ID && !actor.IsAdmin()) {
		return nil, ErrForbidden
	}
	return &topic, nil
}

func (s *ForumService) ownedReply(actor *model.User, id uint) (*model.ForumReply, error) {
	var reply model.ForumReply
	if err := s.DB.First(&reply, id).Error; err != nil {
		return nil, notFound(err, "reply")
	}
	if actor == nil || (reply.UserID != actor.ID && !actor.IsAdmin()) {
		return nil, ErrForbidden
	}
	return &reply, nil
}

func validTopic(title, content string) (string, string, error) {
	title = strings.TrimSpace(title)
	content = strings.TrimSpace(content)
	if n := utf8.RuneCountInString(title); n < minTopicTitle || n > maxTopicTitle {
		return "", "", invalid("title must be %d to %d characters", minTopicTitle, maxTopicTitle)
	}
	if content == "" {
		return "", "", invalid("content cannot be empty")
	}
	return title, content, nil
}
