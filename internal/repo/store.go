package repo

import (
	"context"
	"errors"
	"fmt"

	"gorm.io/gorm"

	"github.com/storefront/storeapi/internal/models"
)

var ErrStoreAlreadyExists = errors.New("store already exists")

type StoreRepo struct {
	DB *gorm.DB
}

func NewStoreRepo(db *gorm.DB) *StoreRepo { return &StoreRepo{DB: db} }

func (r *StoreRepo) FindByName(ctx context.Context, name string) (*models.Store, error) {
	var store models.Store
	if err := r.DB.WithContext(ctx).Where("name = ?", name).First(&store).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, fmt.Errorf("find store: %w", err)
	}
	return &store, nil
}

func (r *StoreRepo) FindAll(ctx context.Context) ([]models.Store, error) {
	var stores []models.Store
	if err := r.DB.WithContext(ctx).Order("id ASC").Find(&stores).Error; err != nil {
		return nil, fmt.Errorf("list stores: %w", err)
	}
	return stores, nil
}

func (r *StoreRepo) Create(ctx context.Context, store *models.Store) error {
	if err := r.DB.WithContext(ctx).Create(store).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrStoreAlreadyExists
		}
		return fmt.Errorf("create store: %w", err)
	}
	return nil
}

func (r *StoreRepo) Delete(ctx context.Context, name string) error {
	return r.DB.WithContext(ctx).Where("name = ?", name).Delete(&models.Store{}).Error
}
