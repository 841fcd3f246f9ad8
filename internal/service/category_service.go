package service

import (
	"fmt"
	"strings"

	"github.com/pokerjest/animestream/internal/event"
	"github.com/pokerjest/animestream/internal/model"
	"github.com/pokerjest/animestream/internal/parser"
	"github.com/samber/lo"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

// CategoryWithCount is a category plus the number of anime filed under it.
type CategoryWithCount struct {
	model.Category
	AnimeCount int64 `json:"anime_count"`
}

type CategoryService struct {
	DB  *gorm.DB
	Bus event.Bus
}

func NewCategoryService(db *gorm.DB, bus event.Bus) *CategoryService {
	return &CategoryService{DB: db, Bus: bus}
}

func (s *CategoryService) List() ([]CategoryWithCount, error) {
	var out []CategoryWithCount
	err := s.DB.Model(&model.Category{}).
		Select("categories.*, COUNT(anime_categories.anime_id) AS anime_count").
		Joins("LEFT JOIN anime_categories ON anime_categories.category_id = categories.id").
		Group("categories.id").
		Order("categories.name asc").
		Scan(&out).Error
	return out, err
}

func (s *CategoryService) Get(slug string) (*model.Category, error) {
	var cat model.Category
	if err := s.DB.Where("slug = ?", slug).First(&cat).Error; err != nil {
		return nil, notFound(err, "category")
	}
	return &cat, nil
}

func (s *CategoryService) Create(name, description string) (*model.Category, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, invalid("category name is required")
	}
	slug := parser.Slugify(name)
	if slug == "" {
		return nil, invalid("category name %q has no usable characters", name)
	}

	cat := model.Category{Name: name, Slug: slug, Description: strings.TrimSpace(description)}
	if err := s.DB.Create(&cat).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("category %q %w", name, ErrConflict)
		}
		return nil, err
	}
	s.publish("created", &cat)
	return &cat, nil
}

func (s *CategoryService) Update(id uint, name, description *string) (*model.Category, error) {
	var cat model.Category
	if err := s.DB.First(&cat, id).Error; err != nil {
		return nil, notFound(err, "category")
	}
	if name != nil {
		n := strings.TrimSpace(*name)
		if n == "" {
			return nil, invalid("category name is required")
		}
		cat.Name = n
		cat.Slug = parser.Slugify(n)
	}
	if description != nil {
		cat.Description = strings.TrimSpace(*description)
	}
	if err := s.DB.Save(&cat).Error; err != nil {
		if isUniqueViolation(err) {
			return nil, fmt.Errorf("category %q %w", cat.Name, ErrConflict)
		}
		return nil, err
	}
	s.publish("updated", &cat)
	return &cat, nil
}

// Delete detaches the category from every anime before removing it.
func (s *CategoryService) Delete(id uint) error {
	var cat model.Category
	if err := s.DB.First(&cat, id).Error; err != nil {
		return notFound(err, "category")
	}
	err := s.DB.Transaction(func(tx *gorm.DB) error {
		if err := tx.Exec("DELETE FROM anime_categories WHERE category_id = ?", id).Error; err != nil {
			return err
		}
		return tx.Unscoped().Delete(&cat).Error
	})
	if err != nil {
		return err
	}
	s.publish("deleted", &cat)
	return nil
}

// EnsureByNames returns a category for every distinct name, creating the missing ones on tx.
func (s *CategoryService) EnsureByNames(tx *gorm.DB, names []string) ([]model.Category, error) {
	names = lo.Uniq(lo.FilterMap(names, func(n string, _ int) (string, bool) {
		n = strings.TrimSpace(n)
		return n, n != "" && parser.Slugify(n) != ""
	}))
	if len(names) == 0 {
		return nil, nil
	}

	slugs := lo.Map(names, func(n string, _ int) string { return parser.Slugify(n) })
	var existing []model.Category
	if err := tx.Where("slug IN ?", slugs).Find(&existing).Error; err != nil {
		return nil, err
	}
	bySlug := lo.KeyBy(existing, func(c model.Category) string { return c.Slug })

	out := make([]model.Category, 0, len(names))
	for i, name := range names {
		if cat, ok := bySlug[slugs[i]]; ok {
			out = append(out, cat)
			continue
		}
		cat := model.Category{Name: name, Slug: slugs[i]}
		if err := tx.Clauses(clause.OnConflict{DoNothing: true}).Create(&cat).Error; err != nil {
			return nil, err
		}
		if cat.ID == 0 {
			// lost a race, or another name slugified the same way
			if err := tx.Where("slug = ? OR name = ?", cat.Slug, cat.Name).First(&cat).Error; err != nil {
				return nil, err
			}
		}
		bySlug[cat.Slug] = cat
		out = append(out, cat)
	}
	return lo.UniqBy(out, func(c model.Category) uint { return c.ID }), nil
}

func (s *CategoryService) publish(action string, c *model.Category) {
	if s.Bus == nil {
		return
	}
	s.Bus.Publish(event.EventCatalogChanged, event.CatalogChange{
		Entity: "category", Action: action, ID: c.ID, Title: c.Name,
	})
}
