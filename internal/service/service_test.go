package service

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"testing"

	"go-inventory-tracker/internal/model"
	"go-inventory-tracker/internal/repository"
	"go-inventory-tracker/internal/ws"
	"go-inventory-tracker/pkg/database"
	"go-inventory-tracker/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/require"
	"gorm.io/gorm"
)

func setupTestDB(t *testing.T) *gorm.DB {
	t.Helper()

	db, err := database.OpenMemory()
	require.NoError(t, err)
	require.NoError(t, model.AutoMigrate(db))
	t.Cleanup(func() {
		if sqlDB, err := db.DB(); err == nil {
			sqlDB.Close()
		}
	})
	return db
}

// recordingPublisher keeps every published event.
type recordingPublisher struct {
	mu     sync.Mutex
	events []ws.Event
}

func (p *recordingPublisher) Publish(ev ws.Event) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.events = append(p.events, ev)
}

func (p *recordingPublisher) actions() []string {
	p.mu.Lock()
	defer p.mu.Unlock()
	out := make([]string, len(p.events))
	for i, ev := range p.events {
		out[i] = ev.Action
	}
	return out
}

// failingHistoryRepo simulates an audit table that rejects writes.
type failingHistoryRepo struct {
	repository.HistoryRepository
}

func (failingHistoryRepo) Create(context.Context, *model.InventoryHistory) error {
	return errors.New("disk I/O error")
}

// brokenProductRepo passes reads through and fails the writes that are set.
type brokenProductRepo struct {
	repository.ProductRepository
	createErr error
	updateErr error
}

func (r brokenProductRepo) Create(ctx context.Context, p *model.Product) error {
	if r.createErr != nil {
		return r.createErr
	}
	return r.ProductRepository.Create(ctx, p)
}

func (r brokenProductRepo) Update(ctx context.Context, p *model.Product) error {
	if r.updateErr != nil {
		return r.updateErr
	}
	return r.ProductRepository.Update(ctx, p)
}

// memoryCache is an in-process ListCache.
type memoryCache struct {
	mu   sync.Mutex
	data map[string][]byte
}

func newMemoryCache() *memoryCache { return &memoryCache{data: map[string][]byte{}} }

func (c *memoryCache) Get(_ context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.data[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *memoryCache) Set(_ context.Context, key string, value interface{}) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data[key] = raw
	return nil
}

func (c *memoryCache) DeletePattern(context.Context, string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.data = map[string][]byte{}
	return nil
}

func (c *memoryCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.data)
}

type fixture struct {
	db       *gorm.DB
	products repository.ProductRepository
	history  repository.HistoryRepository
	events   *recordingPublisher
	cache    *memoryCache
	svc      InventoryService
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	db := setupTestDB(t)
	f := &fixture{
		db:       db,
		products: repository.NewProductRepo(db),
		history:  repository.NewHistoryRepo(db),
		events:   &recordingPublisher{},
		cache:    newMemoryCache(),
	}
	f.svc = NewInventoryService(f.products, f.history, f.cache, f.events, logger.Discard(), InventoryOptions{
		MaxPageSize:       100,
		ImportConcurrency: 4,
	})
	return f
}

var tester = Actor{UserID: uuid.NewString(), Username: "tester"}

func strPtr(s string) *string { return &s }

func (f *fixture) create(t *testing.T, name string, stock int) *model.Product {
	t.Helper()
	p, err := f.svc.CreateProduct(context.Background(), &ProductRequest{Name: name, Stock: NewStockValue(stock)}, tester)
	require.NoError(t, err)
	return p
}
