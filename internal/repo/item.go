package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/storefront/storeapi/internal/models"
)

var ErrItemAlreadyExists = errors.New("item already exists")

type ItemRepo struct {
	DB *gorm.DB
}

func NewItemRepo(db *gorm.DB) *ItemRepo { return &ItemRepo{DB: db} }

func (r *ItemRepo) FindByName(ctx context.Context, name string) (*models.Item, error) {
	var item models.Item
	if err := r.DB.WithContext(ctx).Where("name = ?", name).First(&item).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find item: %w", err)
	}
	return &item, nil
}

func (r *ItemRepo) FindAll(ctx context.Context) ([]models.Item, error) {
	var items []models.Item
	if err := r.DB.WithContext(ctx).Order("id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list items: %w", err)
	}
	return items, nil
}

// FindItemsByStore is the explicit replacement for relationship traversal;
// a store's items are always fetched through this query.
func (r *ItemRepo) FindItemsByStore(ctx context.Context, storeID uint) ([]models.Item, error) {
	var items []models.Item
	if err := r.DB.WithContext(ctx).Where("store_id = ?", storeID).Order("id ASC").Find(&items).Error; err != nil {
		return nil, fmt.Errorf("list store items: %w", err)
	}
	return items, nil
}

func (r *ItemRepo) Create(ctx context.Context, item *models.Item) error {
	if err := r.DB.WithContext(ctx).Create(item).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrItemAlreadyExists
		}
		return fmt.Errorf("create item: %w", err)
	}
	return nil
}

func (r *ItemRepo) Save(ctx context.Context, item *models.Item) error {
	if err := r.DB.WithContext(ctx).Save(item).Error; err != nil {
		return fmt.Errorf("save item: %w", err)
	}
	return nil
}

func (r *ItemRepo) Delete(ctx context.Context, name string) error {
	return r.DB.WithContext(ctx).Where("name = ?", name).Delete(&models.Item{}).Error
}
