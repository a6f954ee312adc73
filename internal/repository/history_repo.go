package repository

import (
	"context"
	"fmt"

	"go-inventory-tracker/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// HistoryRepository is append-only: there is no update or delete.
type HistoryRepository interface {
	Create(ctx context.Context, entry *model.InventoryHistory) error
	FindByProductID(ctx context.Context, productID uuid.UUID) ([]model.InventoryHistory, error)
}

type historyRepo struct {
	db *gorm.DB
}

func NewHistoryRepo(db *gorm.DB) HistoryRepository {
	return &historyRepo{db}
}

func (r *historyRepo) Create(ctx context.Context, entry *model.InventoryHistory) error {
	if err := r.db.WithContext(ctx).Create(entry).Error; err != nil {
		return fmt.Errorf("create inventory history: %w", err)
	}
	return nil
}

// FindByProductID returns newest first; equal timestamps fall back to insertion order.
func (r *historyRepo) FindByProductID(ctx context.Context, productID uuid.UUID) ([]model.InventoryHistory, error) {
	entries := []model.InventoryHistory{}
	err := r.db.WithContext(ctx).
		Where("product_id = ?", productID).
		Order("change_date DESC").
		Order("id DESC").
		Find(&entries).Error
	if err != nil {
		return nil, fmt.Errorf("find inventory history: %w", err)
	}
	return entries, nil
}
