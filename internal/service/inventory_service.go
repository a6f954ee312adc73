package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"go-inventory-tracker/internal/csvio"
	"go-inventory-tracker/internal/model"
	"go-inventory-tracker/internal/repository"
	"go-inventory-tracker/internal/ws"
	"go-inventory-tracker/pkg/apperror"
	"go-inventory-tracker/pkg/metrics"
	"go-inventory-tracker/pkg/validator"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

const listCachePattern = "products:list:*"

// Actor identifies the authenticated caller for audit columns and events.
type Actor struct {
	UserID   string
	Username string
}

// ProductRequest is the full field set for create and update.
type ProductRequest struct {
	Name     string     `json:"name" validate:"required,notblank"`
	Unit     string     `json:"unit"`
	Category string     `json:"category"`
	Brand    string     `json:"brand"`
	Stock    StockValue `json:"stock"`
	Status   string     `json:"status"`
	Image    string     `json:"image"`
	UserInfo *string    `json:"user_info"`
}

// ImportResult partitions the imported names. Order is not input order.
type ImportResult struct {
	Added   []string `json:"added"`
	Skipped []string `json:"skipped"`
	Failed  []string `json:"failed"`
}

// EventPublisher receives product change notifications.
type EventPublisher interface {
	Publish(ev ws.Event)
}

// ListCache is the cache-aside store for listing pages.
type ListCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}) error
	DeletePattern(ctx context.Context, pattern string) error
}

type InventoryOptions struct {
	MaxPageSize       int
	ImportConcurrency int
}

type InventoryService interface {
	CreateProduct(ctx context.Context, req *ProductRequest, actor Actor) (*model.Product, error)
	UpdateProduct(ctx context.Context, id uuid.UUID, req *ProductRequest, actor Actor) (*model.Product, error)
	DeleteProduct(ctx context.Context, id uuid.UUID, actor Actor) error
	GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error)
	ListProducts(ctx context.Context, q repository.ProductQuery) ([]model.Product, error)
	GetProductHistory(ctx context.Context, id uuid.UUID) ([]model.InventoryHistory, error)
	ImportProducts(ctx context.Context, records []csvio.Record, actor Actor) (*ImportResult, error)
	ExportProducts(ctx context.Context, w io.Writer) error
}

type inventoryService struct {
	productRepo repository.ProductRepository
	historyRepo repository.HistoryRepository
	cache       ListCache
	events      EventPublisher
	log         *slog.Logger
	opts        InventoryOptions
	now         func() time.Time
}

func NewInventoryService(pRepo repository.ProductRepository, hRepo repository.HistoryRepository, cache ListCache, events EventPublisher, log *slog.Logger, opts InventoryOptions) InventoryService {
	if opts.MaxPageSize <= 0 {
		opts.MaxPageSize = 100
	}
	if opts.ImportConcurrency <= 0 {
		opts.ImportConcurrency = 1
	}
	if cache == nil {
		cache = noopCache{}
	}
	if events == nil {
		events = noopPublisher{}
	}
	return &inventoryService{
		productRepo: pRepo,
		historyRepo: hRepo,
		cache:       cache,
		events:      events,
		log:         log,
		opts:        opts,
		now:         time.Now,
	}
}

func (s *inventoryService) CreateProduct(ctx context.Context, req *ProductRequest, actor Actor) (*model.Product, error) {
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return nil, apperror.Validation("Product name is required")
	}
	stock := 0
	if req.Stock.Supplied() {
		n, err := req.Stock.Parse()
		if err != nil {
			return nil, apperror.Validation("Stock must be a number")
		}
		stock = n
	}

	if _, err := s.productRepo.FindByName(ctx, req.Name); err == nil {
		return nil, apperror.Conflict("Product name must be unique")
	} else if !errors.Is(err, repository.ErrNotFound) {
		return nil, apperror.Internal("Failed to create product", err)
	}

	product := &model.Product{
		Name:     req.Name,
		Unit:     req.Unit,
		Category: req.Category,
		Brand:    req.Brand,
		Stock:    stock,
		Status:   model.StatusOrDefault(req.Status, stock),
		Image:    req.Image,
	}
	product.CreatedBy = actor.Username
	product.UpdatedBy = actor.Username

	if err := s.productRepo.Create(ctx, product); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			return nil, apperror.Conflict("Product name must be unique")
		}
		return nil, apperror.Internal("Failed to create product", err)
	}

	s.invalidateListings(ctx)
	s.events.Publish(ws.Event{
		Action:  ws.ActionProductCreated,
		Data:    product,
		User:    actor.Username,
		Message: fmt.Sprintf("%s created product '%s'", actor.Username, product.Name),
	})
	return product, nil
}

// UpdateProduct overwrites the product and appends a history entry when the
// submitted stock differs from the stored one. The two writes are not atomic:
// a failed history insert is logged and the update still succeeds. Concurrent
// updates race; each records the transition from the stock it read.
func (s *inventoryService) UpdateProduct(ctx context.Context, id uuid.UUID, req *ProductRequest, actor Actor) (*model.Product, error) {
	newStock := 0
	if req.Stock.Supplied() {
		n, err := req.Stock.Parse()
		if err != nil {
			return nil, apperror.Validation("Stock must be a number")
		}
		newStock = n
	}
	if errs := validator.ValidateStruct(req); len(errs) > 0 {
		return nil, apperror.Validation("Product name is required")
	}

	taken, err := s.productRepo.NameTakenByOther(ctx, req.Name, id)
	if err != nil {
		return nil, apperror.Internal("Failed to update product", err)
	}
	if taken {
		return nil, apperror.Conflict("Product name must be unique")
	}

	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("Product not found")
		}
		return nil, apperror.Internal("Failed to update product", err)
	}
	oldStock := product.Stock

	product.Name = req.Name
	product.Unit = req.Unit
	product.Category = req.Category
	product.Brand = req.Brand
	if req.Stock.Supplied() {
		product.Stock = newStock
	}
	product.Status = model.StatusOrDefault(req.Status, product.Stock)
	product.Image = req.Image
	product.UpdatedBy = actor.Username

	if err := s.productRepo.Update(ctx, product); err != nil {
		switch {
		case errors.Is(err, repository.ErrNotFound):
			return nil, apperror.NotFound("Product not found")
		case errors.Is(err, repository.ErrDuplicate):
			return nil, apperror.Conflict("Product name must be unique")
		}
		return nil, apperror.Internal("Failed to update product", err)
	}

	if req.Stock.Supplied() && newStock != oldStock {
		s.recordStockChange(ctx, product.ID, oldStock, newStock, req.UserInfo)
	}

	s.invalidateListings(ctx)
	s.events.Publish(ws.Event{
		Action: ws.ActionProductUpdated,
		Data: map[string]interface{}{
			"id":        product.ID,
			"name":      product.Name,
			"old_stock": oldStock,
			"new_stock": product.Stock,
			"status":    product.Status,
		},
		User:    actor.Username,
		Message: fmt.Sprintf("%s updated product '%s'", actor.Username, product.Name),
	})
	return product, nil
}

// recordStockChange never fails the caller. It detaches from request
// cancellation so a client disconnect cannot drop the audit row.
func (s *inventoryService) recordStockChange(ctx context.Context, productID uuid.UUID, oldQty, newQty int, userInfo *string) {
	entry := &model.InventoryHistory{
		ProductID:   productID,
		OldQuantity: oldQty,
		NewQuantity: newQty,
		ChangeDate:  s.now().UTC(),
		UserInfo:    userInfo,
	}
	if err := s.historyRepo.Create(context.WithoutCancel(ctx), entry); err != nil {
		metrics.HistoryWrites.WithLabelValues("failed").Inc()
		s.log.Error("inventory history write failed",
			"product_id", productID, "old_quantity", oldQty, "new_quantity", newQty, "error", err)
		return
	}
	metrics.HistoryWrites.WithLabelValues("ok").Inc()
}

// DeleteProduct hard-deletes the row. History is kept.
func (s *inventoryService) DeleteProduct(ctx context.Context, id uuid.UUID, actor Actor) error {
	if err := s.productRepo.Delete(ctx, id); err != nil {
		return apperror.Internal("Failed to delete product", err)
	}
	s.invalidateListings(ctx)
	s.events.Publish(ws.Event{
		Action:  ws.ActionProductDeleted,
		Data:    map[string]interface{}{"id": id},
		User:    actor.Username,
		Message: fmt.Sprintf("%s deleted a product", actor.Username),
	})
	return nil
}

func (s *inventoryService) GetProduct(ctx context.Context, id uuid.UUID) (*model.Product, error) {
	product, err := s.productRepo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return nil, apperror.NotFound("Product not found")
		}
		return nil, apperror.Internal("Failed to fetch product", err)
	}
	return product, nil
}

func (s *inventoryService) ListProducts(ctx context.Context, q repository.ProductQuery) ([]model.Product, error) {
	q = q.Normalize(s.opts.MaxPageSize)
	key := listCacheKey(q)

	var cached []model.Product
	hit, err := s.cache.Get(ctx, key, &cached)
	switch {
	case err != nil:
		metrics.CacheLookups.WithLabelValues("error").Inc()
		s.log.Warn("product list cache read failed", "error", err)
	case hit:
		metrics.CacheLookups.WithLabelValues("hit").Inc()
		return cached, nil
	default:
		metrics.CacheLookups.WithLabelValues("miss").Inc()
	}

	products, err := s.productRepo.List(ctx, q)
	if err != nil {
		return nil, apperror.Internal("Failed to fetch products", err)
	}
	if err := s.cache.Set(ctx, key, products); err != nil {
		s.log.Warn("product list cache write failed", "error", err)
	}
	return products, nil
}

func (s *inventoryService) GetProductHistory(ctx context.Context, id uuid.UUID) ([]model.InventoryHistory, error) {
	entries, err := s.historyRepo.FindByProductID(ctx, id)
	if err != nil {
		return nil, apperror.Internal("Failed to fetch history", err)
	}
	return entries, nil
}

type importOutcome int

const (
	outcomeAdded importOutcome = iota
	outcomeSkipped
	outcomeFailed
)

func (o importOutcome) String() string {
	return [...]string{"added", "skipped", "failed"}[o]
}

// ImportProducts classifies every record as added, skipped (name already
// present) or failed (storage error or empty name). Records are processed
// concurrently; the result is returned only once all are classified.
func (s *inventoryService) ImportProducts(ctx context.Context, records []csvio.Record, actor Actor) (*ImportResult, error) {
	if len(records) == 0 {
		return nil, apperror.Validation("CSV file is empty")
	}

	result := &ImportResult{Added: []string{}, Skipped: []string{}, Failed: []string{}}
	var mu sync.Mutex
	classify := func(name string, o importOutcome) {
		mu.Lock()
		defer mu.Unlock()
		switch o {
		case outcomeAdded:
			result.Added = append(result.Added, name)
		case outcomeSkipped:
			result.Skipped = append(result.Skipped, name)
		default:
			result.Failed = append(result.Failed, name)
		}
		metrics.ImportRecords.WithLabelValues(o.String()).Inc()
	}

	var g errgroup.Group
	g.SetLimit(s.opts.ImportConcurrency)
	seen := make(map[string]bool, len(records))

	for _, rec := range records {
		if rec.Name == "" {
			s.log.Warn("import record without name", "record", rec)
			classify(rec.Name, outcomeFailed)
			continue
		}
		// later duplicates within the batch lose to the first occurrence
		if seen[rec.Name] {
			classify(rec.Name, outcomeSkipped)
			continue
		}
		seen[rec.Name] = true

		rec := rec
		g.Go(func() error {
			classify(rec.Name, s.importOne(ctx, rec, actor))
			return nil
		})
	}
	_ = g.Wait()

	if len(result.Added) > 0 {
		s.invalidateListings(ctx)
		s.events.Publish(ws.Event{
			Action:  ws.ActionProductsImported,
			Data:    result,
			User:    actor.Username,
			Message: fmt.Sprintf("%s imported %d products", actor.Username, len(result.Added)),
		})
	}
	return result, nil
}

func (s *inventoryService) importOne(ctx context.Context, rec csvio.Record, actor Actor) importOutcome {
	_, err := s.productRepo.FindByName(ctx, rec.Name)
	if err == nil {
		return outcomeSkipped
	}
	if !errors.Is(err, repository.ErrNotFound) {
		s.log.Error("import lookup failed", "name", rec.Name, "error", err)
		return outcomeFailed
	}

	stock := importStock(rec.Stock)
	product := &model.Product{
		Name:     rec.Name,
		Unit:     rec.Unit,
		Category: rec.Category,
		Brand:    rec.Brand,
		Stock:    stock,
		Status:   model.StatusOrDefault(rec.Status, stock),
		Image:    rec.Image,
	}
	product.CreatedBy = actor.Username
	product.UpdatedBy = actor.Username

	if err := s.productRepo.Create(ctx, product); err != nil {
		if errors.Is(err, repository.ErrDuplicate) {
			// created by a concurrent request since the lookup
			return outcomeSkipped
		}
		s.log.Error("import insert failed", "name", rec.Name, "error", err)
		return outcomeFailed
	}
	return outcomeAdded
}

func (s *inventoryService) ExportProducts(ctx context.Context, w io.Writer) error {
	products, err := s.productRepo.FindAll(ctx)
	if err != nil {
		return apperror.Internal("Failed to export products", err)
	}
	if err := csvio.Write(w, products); err != nil {
		return apperror.Internal("Failed to export products", err)
	}
	return nil
}

func (s *inventoryService) invalidateListings(ctx context.Context) {
	if err := s.cache.DeletePattern(context.WithoutCancel(ctx), listCachePattern); err != nil {
		s.log.Warn("product list cache invalidation failed", "error", err)
	}
}

func listCacheKey(q repository.ProductQuery) string {
	raw, _ := json.Marshal(q)
	sum := sha256.Sum256(raw)
	return "products:list:" + hex.EncodeToString(sum[:12])
}

type noopCache struct{}

func (noopCache) Get(context.Context, string, interface{}) (bool, error) { return false, nil }
func (noopCache) Set(context.Context, string, interface{}) error         { return nil }
func (noopCache) DeletePattern(context.Context, string) error            { return nil }

type noopPublisher struct{}

func (noopPublisher) Publish(ws.Event) {}
