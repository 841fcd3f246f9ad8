package service

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/pokerjest/animestream/internal/event"
	"github.com/pokerjest/animestream/internal/model"
	"github.com/pokerjest/animestream/internal/parser"
	"github.com/samber/lo"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// AnimeFilter drives catalog listing and search.
type AnimeFilter struct {
	Query    string `form:"q"`
	Category string `form:"category"` // category slug
	Status   string `form:"status"`
	Format   string `form:"format"`
	Year     int    `form:"year"`
	Featured *bool  `form:"featured"`
	Sort     string `form:"sort"` // latest, popular, rating, title
	Paging
}

// AnimeInput is used for both create and partial update; nil fields are left untouched.
type AnimeInput struct {
	Title         *string  `json:"title"`
	TitleEnglish  *string  `json:"title_english"`
	TitleNative   *string  `json:"title_native"`
	Slug          *string  `json:"slug"`
	Synopsis      *string  `json:"synopsis"`
	PosterURL     *string  `json:"poster_url"`
	BannerURL     *string  `json:"banner_url"`
	Status        *string  `json:"status"`
	Format        *string  `json:"format"`
	ReleaseYear   *int     `json:"release_year"`
	Season        *string  `json:"season"`
	TotalEpisodes *int     `json:"total_episodes"`
	Studio        *string  `json:"studio"`
	IsFeatured    *bool    `json:"is_featured"`
	Synonyms      []string `json:"synonyms"`
	CategoryIDs   []uint   `json:"category_ids"`
}

var validStatuses = map[string]bool{
	model.StatusOngoing: true, model.StatusCompleted: true, model.StatusUpcoming: true,
}

var validFormats = map[string]bool{
	model.FormatTV: true, model.FormatMovie: true, model.FormatOVA: true,
	model.FormatONA: true, model.FormatSpecial: true,
}

type AnimeService struct {
	DB  *gorm.DB
	Bus event.Bus
}

func NewAnimeService(db *gorm.DB, bus event.Bus) *AnimeService {
	return &AnimeService{DB: db, Bus: bus}
}

func (s *AnimeService) List(f AnimeFilter) (PageResult[model.Anime], error) {
	p := f.Paging.Normalize()
	q := s.DB.Model(&model.Anime{})

	if term := strings.TrimSpace(f.Query); term != "" {
		like := "%" + strings.ToLower(term) + "%"
		q = q.Where("LOWER(title) LIKE ? OR LOWER(title_english) LIKE ? OR LOWER(title_native) LIKE ?", like, like, like)
	}
	if f.Category != "" {
		sub := s.DB.Table("anime_categories").
			Select("anime_categories.anime_id").
			Joins("JOIN categories ON categories.id = anime_categories.category_id").
			Where("categories.slug = ? AND categories.deleted_at IS NULL", f.Category)
		q = q.Where("id IN (?)", sub)
	}
	if f.Status != "" {
		q = q.Where("status = ?", f.Status)
	}
	if f.Format != "" {
		q = q.Where("format = ?", strings.ToUpper(f.Format))
	}
	if f.Year > 0 {
		q = q.Where("release_year = ?", f.Year)
	}
	if f.Featured != nil {
		q = q.Where("is_featured = ?", *f.Featured)
	}

	base := q.Session(&gorm.Session{})
	var total int64
	if err := base.Count(&total).Error; err != nil {
		return PageResult[model.Anime]{}, err
	}

	var items []model.Anime
	err := base.Preload("Categories").
		Order(animeOrder(f.Sort)).
		Limit(p.PageSize).
		Offset(p.Offset()).
		Find(&items).Error
	if err != nil {
		return PageResult[model.Anime]{}, err
	}
	return newPageResult(items, total, p), nil
}

func animeOrder(sort string) string {
	switch sort {
	case "popular":
		return "views desc, id desc"
	case "rating":
		return "rating desc, rating_count desc, id desc"
	case "title":
		return "title asc, id asc"
	default:
		return "created_at desc, id desc"
	}
}

func (s *AnimeService) detailQuery() *gorm.DB {
	return s.DB.
		Preload("Categories").
		Preload("Cast", func(db *gorm.DB) *gorm.DB { return db.Order("display_rank asc, id asc") }).
		Preload("Trailers").
		Preload("Episodes", func(db *gorm.DB) *gorm.DB { return db.Order("season_number asc, number asc") })
}

func (s *AnimeService) Get(id uint) (*model.Anime, error) {
	var anime model.Anime
	if err := s.detailQuery().First(&anime, id).Error; err != nil {
		return nil, notFound(err, "anime")
	}
	return &anime, nil
}

func (s *AnimeService) GetBySlug(slug string) (*model.Anime, error) {
	var anime model.Anime
	if err := s.detailQuery().Where("slug = ?", slug).First(&anime).Error; err != nil {
		return nil, notFound(err, "anime")
	}
	return &anime, nil
}

// Resolve accepts a slug or a numeric id. Slugs win, since a title like "86" is both.
func (s *AnimeService) Resolve(ref string) (*model.Anime, error) {
	anime, err := s.GetBySlug(ref)
	if err == nil {
		return anime, nil
	}
	if id, convErr := strconv.ParseUint(ref, 10, 64); convErr == nil {
		return s.Get(uint(id))
	}
	return nil, err
}

// ResolveID is Resolve without loading the associations.
func (s *AnimeService) ResolveID(ref string) (uint, error) {
	var anime model.Anime
	err := s.DB.Select("id").Where("slug = ?", ref).First(&anime).Error
	if err == nil {
		return anime.ID, nil
	}
	id, convErr := strconv.ParseUint(ref, 10, 64)
	if convErr != nil {
		return 0, notFound(err, "anime")
	}
	if err := s.DB.Select("id").First(&anime, id).Error; err != nil {
		return 0, notFound(err, "anime")
	}
	return anime.ID, nil
}

func (s *AnimeService) Featured(limit int) ([]model.Anime, error) {
	var items []model.Anime
	err := s.DB.Preload("Categories").Where("is_featured = ?", true).
		Order("updated_at desc").Limit(clampLimit(limit, 10)).Find(&items).Error
	return items, err
}

func (s *AnimeService) Trending(limit int) ([]model.Anime, error) {
	var items []model.Anime
	err := s.DB.Preload("Categories").Order("views desc, rating desc").
		Limit(clampLimit(limit, 10)).Find(&items).Error
	return items, err
}

// RecentlyUpdated orders anime by their newest episode.
func (s *AnimeService) RecentlyUpdated(limit int) ([]model.Anime, error) {
	var items []model.Anime
	err := s.DB.Model(&model.Anime{}).
		Select("anime.*").
		Joins("JOIN (SELECT anime_id, MAX(created_at) AS last_episode FROM episodes WHERE deleted_at IS NULL GROUP BY anime_id) le ON le.anime_id = anime.id").
		Order("le.last_episode desc").
		Limit(clampLimit(limit, 10)).
		Find(&items).Error
	return items, err
}

func (s *AnimeService) Create(in AnimeInput) (*model.Anime, error) {
	if in.Title == nil || strings.TrimSpace(*in.Title) == "" {
		return nil, invalid("title is required")
	}
	anime := model.Anime{Status: model.StatusOngoing, Format: model.FormatTV}
	if err := applyAnimeInput(&anime, in); err != nil {
		return nil, err
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		base := anime.Title
		if in.Slug != nil && *in.Slug != "" {
			base = *in.Slug
		}
		slug, err := uniqueSlug(tx, base, 0)
		if err != nil {
			return err
		}
		anime.Slug = slug

		if err := tx.Create(&anime).Error; err != nil {
			return err
		}
		return replaceCategories(tx, &anime, in.CategoryIDs)
	})
	if err != nil {
		return nil, err
	}

	s.publish("created", &anime)
	return s.Get(anime.ID)
}

func (s *AnimeService) Update(id uint, in AnimeInput) (*model.Anime, error) {
	var anime model.Anime
	if err := s.DB.First(&anime, id).Error; err != nil {
		return nil, notFound(err, "anime")
	}
	if err := applyAnimeInput(&anime, in); err != nil {
		return nil, err
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if in.Slug != nil && *in.Slug != anime.Slug {
			slug, err := uniqueSlug(tx, *in.Slug, anime.ID)
			if err != nil {
				return err
			}
			anime.Slug = slug
		}
		if err := tx.Omit("Categories", "Episodes", "Cast", "Trailers").Save(&anime).Error; err != nil {
			return err
		}
		if in.CategoryIDs != nil {
			return replaceCategories(tx, &anime, in.CategoryIDs)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	s.publish("updated", &anime)
	return s.Get(anime.ID)
}

func applyAnimeInput(a *model.Anime, in AnimeInput) error {
	if in.Title != nil {
		t := strings.TrimSpace(*in.Title)
		if t == "" {
			return invalid("title cannot be empty")
		}
		a.Title = t
	}
	if in.Status != nil {
		if !validStatuses[*in.Status] {
			return invalid("unknown status %q", *in.Status)
		}
		a.Status = *in.Status
	}
	if in.Format != nil {
		f := strings.ToUpper(*in.Format)
		if !validFormats[f] {
			return invalid("unknown format %q", *in.Format)
		}
		a.Format = f
	}
	if in.ReleaseYear != nil {
		if *in.ReleaseYear < 0 {
			return invalid("release year cannot be negative")
		}
		a.ReleaseYear = *in.ReleaseYear
	}
	if in.TotalEpisodes != nil {
		if *in.TotalEpisodes < 0 {
			return invalid("total episodes cannot be negative")
		}
		a.TotalEpisodes = *in.TotalEpisodes
	}
	setString(&a.TitleEnglish, in.TitleEnglish)
	setString(&a.TitleNative, in.TitleNative)
	setString(&a.Synopsis, in.Synopsis)
	setString(&a.PosterURL, in.PosterURL)
	setString(&a.BannerURL, in.BannerURL)
	setString(&a.Season, in.Season)
	setString(&a.Studio, in.Studio)
	if in.IsFeatured != nil {
		a.IsFeatured = *in.IsFeatured
	}
	if in.Synonyms != nil {
		a.Synonyms = datatypes.NewJSONSlice(in.Synonyms)
	}
	return nil
}

func setString(dst *string, src *string) {
	if src != nil {
		*dst = strings.TrimSpace(*src)
	}
}

func replaceCategories(tx *gorm.DB, anime *model.Anime, ids []uint) error {
	if ids == nil {
		return nil
	}
	var cats []model.Category
	if len(ids) > 0 {
		if err := tx.Where("id IN ?", ids).Find(&cats).Error; err != nil {
			return err
		}
		if len(cats) != len(lo.Uniq(ids)) {
			return invalid("unknown category id")
		}
	}
	return tx.Model(anime).Association("Categories").Replace(cats)
}

// uniqueSlug derives a slug from base and appends -2, -3 ... until it is free.
func uniqueSlug(tx *gorm.DB, base string, excludeID uint) (string, error) {
	slug := parser.Slugify(base)
	if slug == "" {
		slug = "anime"
	}
	candidate := slug
	for i := 2; ; i++ {
		var count int64
		q := tx.Model(&model.Anime{}).Where("slug = ?", candidate)
		if excludeID != 0 {
			q = q.Where("id <> ?", excludeID)
		}
		if err := q.Count(&count).Error; err != nil {
			return "", err
		}
		if count == 0 {
			return candidate, nil
		}
		candidate = fmt.Sprintf("%s-%d", slug, i)
	}
}

// Delete removes the anime and everything hanging off it.
func (s *AnimeService) Delete(id uint) error {
	var anime model.Anime
	if err := s.DB.First(&anime, id).Error; err != nil {
		return notFound(err, "anime")
	}

	err := s.DB.Transaction(func(tx *gorm.DB) error {
		episodeIDs := tx.Model(&model.Episode{}).Select("id").Where("anime_id = ?", id)
		steps := []func() error{
			func() error { return tx.Where("episode_id IN (?)", episodeIDs).Delete(&model.VideoSource{}).Error },
			func() error { return tx.Where("episode_id IN (?)", episodeIDs).Delete(&model.Subtitle{}).Error },
			func() error { return tx.Where("anime_id = ?", id).Delete(&model.WatchHistory{}).Error },
			func() error { return tx.Unscoped().Where("anime_id = ?", id).Delete(&model.Comment{}).Error },
			func() error { return tx.Where("anime_id = ?", id).Delete(&model.Rating{}).Error },
			func() error { return tx.Unscoped().Where("anime_id = ?", id).Delete(&model.Episode{}).Error },
			func() error { return tx.Where("anime_id = ?", id).Delete(&model.CastMember{}).Error },
			func() error { return tx.Where("anime_id = ?", id).Delete(&model.Trailer{}).Error },
			func() error { return tx.Model(&anime).Association("Categories").Clear() },
			func() error { return tx.Unscoped().Delete(&anime).Error },
		}
		for _, step := range steps {
			if err := step(); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return err
	}

	s.publish("deleted", &anime)
	return nil
}

func (s *AnimeService) SetFeatured(id uint, featured bool) (*model.Anime, error) {
	res := s.DB.Model(&model.Anime{}).Where("id = ?", id).Update("is_featured", featured)
	if res.Error != nil {
		return nil, res.Error
	}
	if res.RowsAffected == 0 {
		return nil, fmt.Errorf("anime %w", ErrNotFound)
	}
	return s.Get(id)
}

func (s *AnimeService) IncrementViews(id uint) error {
	return s.DB.Model(&model.Anime{}).Where("id = ?", id).
		UpdateColumn("views", gorm.Expr("views + 1")).Error
}

func (s *AnimeService) publish(action string, a *model.Anime) {
	if s.Bus == nil {
		return
	}
	s.Bus.Publish(event.EventCatalogChanged, event.CatalogChange{
		Entity: "anime", Action: action, ID: a.ID, Title: a.Title,
	})
}

func clampLimit(limit, def int) int {
	if limit <= 0 {
		return def
	}
	if limit > MaxPageSize {
		return MaxPageSize
	}
	return limit
}
