package postgres

import (
	"context"
	"errors"
	"strings"

	"github.com/dom/skillswap/internal/domain"
	"gorm.io/gorm"
)

type categoryRepository struct {
	db *gorm.DB
}

func NewCategoryRepository(db *gorm.DB) *categoryRepository {
	return &categoryRepository{db: db}
}

func (r *categoryRepository) Create(ctx context.Context, category *domain.Category) error {
	return conn(ctx, r.db).Create(category).Error
}

func (r *categoryRepository) GetByID(ctx context.Context, id uint) (*domain.Category, error) {
	var category domain.Category
	if err := conn(ctx, r.db).First(&category, id).Error; err != nil {
		return nil, err
	}
	return &category, nil
}

func (r *categoryRepository) GetAll(ctx context.Context) ([]*domain.Category, error) {
	var categories []*domain.Category
	if err := conn(ctx, r.db).Order("name").Find(&categories).Error; err != nil {
		return nil, err
	}
	return categories, nil
}

type skillRepository struct {
	db *gorm.DB
}

func NewSkillRepository(db *gorm.DB) *skillRepository {
	return &skillRepository{db: db}
}

// GetOrCreate returns the skill with this name in the category, creating it
// when missing. A concurrent insert of the same skill is resolved by reading
// the winner's row.
func (r *skillRepository) GetOrCreate(ctx context.Context, name string, categoryID uint) (*domain.Skill, error) {
	skill := domain.Skill{Name: name, CategoryID: categoryID}
	err := conn(ctx, r.db).
		Where("name = ? AND category_id = ?", name, categoryID).
		FirstOrCreate(&skill).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		err = conn(ctx, r.db).First(&skill, "name = ? AND category_id = ?", name, categoryID).Error
	}
	if err != nil {
		return nil, err
	}
	return &skill, nil
}

func (r *skillRepository) GetByID(ctx context.Context, id uint) (*domain.Skill, error) {
	var skill domain.Skill
	if err := conn(ctx, r.db).Preload("Category").First(&skill, id).Error; err != nil {
		return nil, err
	}
	return &skill, nil
}

func (r *skillRepository) IncrementSearchCounter(ctx context.Context, nameLike string) error {
	return conn(ctx, r.db).
		Model(&domain.Skill{}).
		Where("LOWER(name) LIKE ?", "%"+strings.ToLower(nameLike)+"%").
		UpdateColumn("search_counter", gorm.Expr("search_counter + 1")).Error
}

type locationRepository struct {
	db *gorm.DB
}

func NewLocationRepository(db *gorm.DB) *locationRepository {
	return &locationRepository{db: db}
}

func (r *locationRepository) GetOrCreate(ctx context.Context, location *domain.Location) (*domain.Location, error) {
	found := domain.Location{Address: location.Address, ZipCode: location.ZipCode, City: location.City}
	query := "address = ? AND zip_code = ? AND city = ?"
	err := conn(ctx, r.db).
		Where(query, location.Address, location.ZipCode, location.City).
		FirstOrCreate(&found).Error
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		err = conn(ctx, r.db).First(&found, query, location.Address, location.ZipCode, location.City).Error
	}
	if err != nil {
		return nil, err
	}
	return &found, nil
}
