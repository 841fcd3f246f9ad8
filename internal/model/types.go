package model

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

const (
	StatusOngoing   = "ongoing"
	StatusCompleted = "completed"
	StatusUpcoming  = "upcoming"
)

const (
	FormatTV      = "TV"
	FormatMovie   = "MOVIE"
	FormatOVA     = "OVA"
	FormatONA     = "ONA"
	FormatSpecial = "SPECIAL"
)

// User is an account together with its public profile.
type User struct {
	gorm.Model
	Username     string `json:"username" gorm:"uniqueIndex;not null"`
	Email        string `json:"email" gorm:"uniqueIndex;not null"`
	PasswordHash string `json:"-"`
	DisplayName  string `json:"display_name"`
	AvatarURL    string `json:"avatar_url"`
	Bio          string `json:"bio" gorm:"type:text"`
	Role         string `json:"role" gorm:"default:user;index"`
}

func (u *User) IsAdmin() bool {
	return u != nil && u.Role == RoleAdmin
}

// PublicUser is what other users get to see about an author.
type PublicUser struct {
	ID          uint   `json:"id"`
	Username    string `json:"username"`
	DisplayName string `json:"display_name"`
	AvatarURL   string `json:"avatar_url"`
}

func (u User) Public() PublicUser {
	return PublicUser{ID: u.ID, Username: u.Username, DisplayName: u.DisplayName, AvatarURL: u.AvatarURL}
}

type Category struct {
	gorm.Model
	Name        string `json:"name" gorm:"uniqueIndex;not null"`
	Slug        string `json:"slug" gorm:"uniqueIndex;not null"`
	Description string `json:"description"`
}

type Anime struct {
	gorm.Model
	Title         string                      `json:"title" gorm:"not null;index"`
	TitleEnglish  string                      `json:"title_english"`
	TitleNative   string                      `json:"title_native"`
	Slug          string                      `json:"slug" gorm:"uniqueIndex;not null"`
	Synopsis      string                      `json:"synopsis" gorm:"type:text"`
	PosterURL     string                      `json:"poster_url"`
	BannerURL     string                      `json:"banner_url"`
	Status        string                      `json:"status" gorm:"index"`
	Format        string                      `json:"format" gorm:"index"`
	ReleaseYear   int                         `json:"release_year" gorm:"index"`
	Season        string                      `json:"season"`
	TotalEpisodes int                         `json:"total_episodes"`
	Studio        string                      `json:"studio"`
	Rating        float64                     `json:"rating"`
	RatingCount   int64                       `json:"rating_count"`
	Views         int64                       `json:"views" gorm:"index"`
	IsFeatured    bool                        `json:"is_featured" gorm:"index"`
	TMDBID        *int                        `json:"tmdb_id,omitempty" gorm:"column:tmdb_id;uniqueIndex"`
	AniListID     *int                        `json:"anilist_id,omitempty" gorm:"column:anilist_id;uniqueIndex"`
	Synonyms      datatypes.JSONSlice[string] `json:"synonyms"`

	Categories []Category   `json:"categories,omitempty" gorm:"many2many:anime_categories;"`
	Episodes   []Episode    `json:"episodes,omitempty"`
	Cast       []CastMember `json:"cast,omitempty"`
	Trailers   []Trailer    `json:"trailers,omitempty"`
}

func (Anime) TableName() string {
	return "anime"
}

type Episode struct {
	gorm.Model
	AnimeID      uint          `json:"anime_id" gorm:"uniqueIndex:idx_episode_number;not null"`
	SeasonNumber int           `json:"season_number" gorm:"uniqueIndex:idx_episode_number;default:1"`
	Number       int           `json:"number" gorm:"uniqueIndex:idx_episode_number;not null"`
	Title        string        `json:"title"`
	Synopsis     string        `json:"synopsis" gorm:"type:text"`
	ThumbnailURL string        `json:"thumbnail_url"`
	Duration     int           `json:"duration"` // seconds
	AirDate      *time.Time    `json:"air_date,omitempty"`
	Views        int64         `json:"views"`
	Sources      []VideoSource `json:"sources,omitempty"`
	Subtitles    []Subtitle    `json:"subtitles,omitempty"`

	Anime *Anime `json:"anime,omitempty"`
}

type VideoSource struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	EpisodeID uint   `json:"episode_id" gorm:"index;not null"`
	Quality   string `json:"quality"` // "1080p", "720p", ...
	URL       string `json:"url" gorm:"not null"`
	Format    string `json:"format"` // mp4 or hls
}

type Subtitle struct {
	ID        uint   `json:"id" gorm:"primaryKey"`
	EpisodeID uint   `json:"episode_id" gorm:"index;not null"`
	Language  string `json:"language"` // BCP-47 tag
	Label     string `json:"label"`
	URL       string `json:"url" gorm:"not null"`
	IsDefault bool   `json:"is_default"`
}

type CastMember struct {
	ID          uint   `json:"id" gorm:"primaryKey"`
	AnimeID     uint   `json:"anime_id" gorm:"index;not null"`
	Name        string `json:"name"`
	Character   string `json:"character"`
	Role        string `json:"role"`
	ImageURL    string `json:"image_url"`
	VoiceActor  string `json:"voice_actor"`
	DisplayRank int    `json:"order"`
}

type Trailer struct {
	ID      uint   `json:"id" gorm:"primaryKey"`
	AnimeID uint   `json:"anime_id" gorm:"index;not null"`
	Title   string `json:"title"`
	Site    string `json:"site"`
	Key     string `json:"key"`
	URL     string `json:"url"`
}

type Rating struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"uniqueIndex:idx_rating_user_anime;not null"`
	AnimeID   uint      `json:"anime_id" gorm:"uniqueIndex:idx_rating_user_anime;index;not null"`
	Score     int       `json:"score" gorm:"not null"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

type Comment struct {
	gorm.Model
	UserID    uint   `json:"user_id" gorm:"index;not null"`
	AnimeID   uint   `json:"anime_id" gorm:"index;not null"`
	EpisodeID *uint  `json:"episode_id,omitempty" gorm:"index"`
	Content   string `json:"content" gorm:"type:text;not null"`
	User      User   `json:"-"`
}

type ForumTopic struct {
	gorm.Model
	UserID       uint         `json:"user_id" gorm:"index;not null"`
	Section      string       `json:"section" gorm:"index"`
	Title        string       `json:"title" gorm:"not null"`
	Content      string       `json:"content" gorm:"type:text"`
	IsPinned     bool         `json:"is_pinned"`
	IsLocked     bool         `json:"is_locked"`
	Views        int64        `json:"views"`
	ReplyCount   int64        `json:"reply_count"`
	LastActivity time.Time    `json:"last_activity" gorm:"index"`
	User         User         `json:"-"`
	Replies      []ForumReply `json:"-" gorm:"foreignKey:TopicID"`
}

type ForumReply struct {
	gorm.Model
	TopicID uint   `json:"topic_id" gorm:"index;not null"`
	UserID  uint   `json:"user_id" gorm:"index;not null"`
	Content string `json:"content" gorm:"type:text;not null"`
	User    User   `json:"-"`
}

// WatchHistory is the playback position of one user on one episode.
type WatchHistory struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	UserID    uint      `json:"user_id" gorm:"uniqueIndex:idx_history_user_episode;not null"`
	EpisodeID uint      `json:"episode_id" gorm:"uniqueIndex:idx_history_user_episode;not null"`
	AnimeID   uint      `json:"anime_id" gorm:"index;not null"`
	Position  int       `json:"position"` // seconds
	Duration  int       `json:"duration"`
	Completed bool      `json:"completed"`
	UpdatedAt time.Time `json:"updated_at" gorm:"index"`

	Anime   *Anime   `json:"anime,omitempty"`
	Episode *Episode `json:"episode,omitempty"`
}

type PasswordResetToken struct {
	ID        uint      `gorm:"primaryKey"`
	UserID    uint      `gorm:"index;not null"`
	Token     string    `gorm:"uniqueIndex;not null"`
	ExpiresAt time.Time `gorm:"not null"`
	Used      bool
	CreatedAt time.Time
}

const (
	LogLevelInfo    = "INFO"
	LogLevelError   = "ERROR"
	LogLevelSuccess = "SUCCESS"
)

// ActivityLog is the admin-facing audit trail of catalog changes and imports.
type ActivityLog struct {
	ID        uint      `json:"id" gorm:"primaryKey"`
	Level     string    `json:"level"`
	Action    string    `json:"action" gorm:"index"`
	Message   string    `json:"message"`
	CreatedAt time.Time `json:"created_at" gorm:"index"`
}

// AllModels is the migration set.
func AllModels() []interface{} {
	return []interface{}{
		&User{}, &Category{}, &Anime{}, &Episode{}, &VideoSource{}, &Subtitle{},
		&CastMember{}, &Trailer{}, &Rating{}, &Comment{}, &ForumTopic{}, &ForumReply{},
		&WatchHistory{}, &PasswordResetToken{}, &ActivityLog{},
	}
}
