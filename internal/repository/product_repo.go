package repository

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"go-inventory-tracker/internal/model"

	"github.com/google/uuid"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// sortColumns whitelists the columns a listing may be ordered by.
var sortColumns = map[string]string{
	"name":       "name",
	"unit":       "unit",
	"category":   "category",
	"brand":      "brand",
	"stock":      "stock",
	"status":     "status",
	"created_at": "created_at",
}

// ProductQuery describes one page of the product listing.
type ProductQuery struct {
	Name      string `json:"name,omitempty"`
	Category  string `json:"category,omitempty"`
	SortBy    string `json:"sort_by"`
	SortOrder string `json:"sort_order"`
	Page      int    `json:"page"`
	Limit     int    `json:"limit"`
}

// Normalize fills defaults and clamps the page size to maxLimit.
func (q ProductQuery) Normalize(maxLimit int) ProductQuery {
	if _, ok := sortColumns[q.SortBy]; !ok {
		q.SortBy = "name"
	}
	if strings.ToLower(q.SortOrder) == "desc" {
		q.SortOrder = "desc"
	} else {
		q.SortOrder = "asc"
	}
	if q.Page < 1 {
		q.Page = DefaultPage
	}
	if q.Limit < 1 {
		q.Limit = DefaultLimit
	}
	if maxLimit > 0 && q.Limit > maxLimit {
		q.Limit = maxLimit
	}
	return q
}

func (q ProductQuery) Offset() int {
	return (q.Page - 1) * q.Limit
}

type ProductRepository interface {
	Create(ctx context.Context, product *model.Product) error
	FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error)
	FindByName(ctx context.Context, name string) (*model.Product, error)
	NameTakenByOther(ctx context.Context, name string, id uuid.UUID) (bool, error)
	List(ctx context.Context, q ProductQuery) ([]model.Product, error)
	FindAll(ctx context.Context) ([]model.Product, error)
	Update(ctx context.Context, product *model.Product) error
	Delete(ctx context.Context, id uuid.UUID) error
	Count(ctx context.Context) (int64, error)
	SeedSamples(ctx context.Context) error
}

type productRepo struct {
	db *gorm.DB
}

func NewProductRepo(db *gorm.DB) ProductRepository {
	return &productRepo{db}
}

func (r *productRepo) Create(ctx context.Context, product *model.Product) error {
	if err := r.db.WithContext(ctx).Create(product).Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return fmt.Errorf("create product: %w", err)
	}
	return nil
}

func (r *productRepo) FindByID(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).First(&product, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find product: %w", err)
	}
	return &product, nil
}

func (r *productRepo) FindByName(ctx context.Context, name string) (*model.Product, error) {
	var product model.Product
	if err := r.db.WithContext(ctx).First(&product, "name = ?", name).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("find product by name: %w", err)
	}
	return &product, nil
}

// NameTakenByOther reports whether a product other than id already uses name.
func (r *productRepo) NameTakenByOther(ctx context.Context, name string, id uuid.UUID) (bool, error) {
	var count int64
	err := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("name = ? AND id <> ?", name, id).
		Count(&count).Error
	if err != nil {
		return false, fmt.Errorf("check product name: %w", err)
	}
	return count > 0, nil
}

// List applies filters, then sort, then offset/limit. q must be normalized.
func (r *productRepo) List(ctx context.Context, q ProductQuery) ([]model.Product, error) {
	tx := r.db.WithContext(ctx).Model(&model.Product{})

	if q.Name != "" {
		// both sides are folded by the database so they agree on which letters fold
		tx = tx.Where("LOWER(name) LIKE LOWER(?) ESCAPE '\\'", "%"+escapeLike(q.Name)+"%")
	}
	if q.Category != "" {
		tx = tx.Where("category = ?", q.Category)
	}

	column := sortColumns[q.SortBy]
	if column == "" {
		column = "name"
	}
	tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: column}, Desc: q.SortOrder == "desc"})
	if column != "name" {
		// names are unique, so this makes pagination deterministic
		tx = tx.Order(clause.OrderByColumn{Column: clause.Column{Name: "name"}})
	}

	products := []model.Product{}
	if err := tx.Offset(q.Offset()).Limit(q.Limit).Find(&products).Error; err != nil {
		return nil, fmt.Errorf("list products: %w", err)
	}
	return products, nil
}

func (r *productRepo) FindAll(ctx context.Context) ([]model.Product, error) {
	products := []model.Product{}
	if err := r.db.WithContext(ctx).Order("name ASC").Find(&products).Error; err != nil {
		return nil, fmt.Errorf("find products: %w", err)
	}
	return products, nil
}

// Update overwrites every editable column, including zero values.
func (r *productRepo) Update(ctx context.Context, product *model.Product) error {
	result := r.db.WithContext(ctx).Model(&model.Product{}).
		Where("id = ?", product.ID).
		Updates(map[string]interface{}{
			"name":       product.Name,
			"unit":       product.Unit,
			"category":   product.Category,
			"brand":      product.Brand,
			"stock":      product.Stock,
			"status":     product.Status,
			"image":      product.Image,
			"updated_by": product.UpdatedBy,
		})
	if err := result.Error; err != nil {
		if errors.Is(err, gorm.ErrDuplicatedKey) {
			return ErrDuplicate
		}
		return fmt.Errorf("update product: %w", err)
	}
	if result.RowsAffected == 0 {
		return ErrNotFound
	}
	return nil
}

// Delete removes the row permanently. Missing rows are not an error.
func (r *productRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Delete(&model.Product{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete product: %w", err)
	}
	return nil
}

func (r *productRepo) Count(ctx context.Context) (int64, error) {
	var count int64
	if err := r.db.WithContext(ctx).Model(&model.Product{}).Count(&count).Error; err != nil {
		return 0, fmt.Errorf("count products: %w", err)
	}
	return count, nil
}

// SeedSamples inserts the sample catalogue when the table is empty.
func (r *productRepo) SeedSamples(ctx context.Context) error {
	count, err := r.Count(ctx)
	if err != nil {
		return err
	}
	if count > 0 {
		return nil
	}
	samples := make([]model.Product, len(model.SampleProducts))
	copy(samples, model.SampleProducts)
	for i := range samples {
		samples[i].CreatedBy = "system"
		samples[i].UpdatedBy = "system"
	}
	return r.db.WithContext(ctx).Create(&samples).Error
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}
