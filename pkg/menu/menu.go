// Package menu manages food items and their images.
package menu

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/example/foodcart/pkg/models"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"
)

var (
	ErrNotFound    = errors.New("food item not found")
	ErrInvalidItem = errors.New("invalid food item")
)

// ItemInput carries the editable fields of a food item. Nil pointers leave
// a field unchanged on update.
type ItemInput struct {
	Name        *string          `json:"name"`
	Description *string          `json:"description"`
	Category    *string          `json:"category"`
	BasePrice   *decimal.Decimal `json:"base_price"`
	ImageURL    *string          `json:"image_url"`
	Available   *bool            `json:"available"`
}

func (in ItemInput) apply(item *models.FoodItem) {
	if in.Name != nil {
		item.Name = strings.TrimSpace(*in.Name)
	}
	if in.Description != nil {
		item.Description = *in.Description
	}
	if in.Category != nil {
		item.Category = strings.TrimSpace(*in.Category)
	}
	if in.BasePrice != nil {
		item.BasePrice = *in.BasePrice
	}
	if in.ImageURL != nil {
		item.ImageURL = *in.ImageURL
	}
	if in.Available != nil {
		item.Available = *in.Available
	}
}

func validate(item *models.FoodItem) error {
	if item.Name == "" {
		return fmt.Errorf("%w: name is required", ErrInvalidItem)
	}
	if !item.BasePrice.IsPositive() {
		return fmt.Errorf("%w: base price must be positive", ErrInvalidItem)
	}
	return nil
}

type ListOptions struct {
	Category      string
	AvailableOnly bool
}

// GormStore keeps the menu in the food_items table.
type GormStore struct {
	db    *gorm.DB
	newID func() string
}

func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{db: db, newID: uuid.NewString}
}

func (s *GormStore) List(ctx context.Context, opts ListOptions) ([]models.FoodItem, error) {
	q := s.db.WithContext(ctx).Model(&models.FoodItem{})
	if opts.Category != "" {
		q = q.Where("category = ?", opts.Category)
	}
	if opts.AvailableOnly {
		q = q.Where("available = ?", true)
	}
	var items []models.FoodItem
	if err := q.Order("category").Order("name").Find(&items).Error; err != nil {
		return nil, err
	}
	return items, nil
}

func (s *GormStore) Get(ctx context.Context, id string) (*models.FoodItem, error) {
	var item models.FoodItem
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, err
	}
	return &item, nil
}

// Create adds an item. New items are available unless the input says otherwise.
func (s *GormStore) Create(ctx context.Context, in ItemInput) (*models.FoodItem, error) {
	item := &models.FoodItem{ID: s.newID(), Available: true}
	in.apply(item)
	if err := validate(item); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Create(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

func (s *GormStore) Update(ctx context.Context, id string, in ItemInput) (*models.FoodItem, error) {
	item, err := s.Get(ctx, id)
	if err != nil {
		return nil, err
	}
	in.apply(item)
	if err := validate(item); err != nil {
		return nil, err
	}
	if err := s.db.WithContext(ctx).Save(item).Error; err != nil {
		return nil, err
	}
	return item, nil
}

func (s *GormStore) Delete(ctx context.Context, id string) error {
	res := s.db.WithContext(ctx).Where("id = ?", id).Delete(&models.FoodItem{})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}
