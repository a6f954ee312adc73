package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"sort"
	"testing"

	"go-inventory-tracker/internal/csvio"
	"go-inventory-tracker/internal/model"
	"go-inventory-tracker/internal/repository"
	"go-inventory-tracker/internal/ws"
	"go-inventory-tracker/pkg/apperror"
	"go-inventory-tracker/pkg/logger"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCreateProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p := f.create(t, "Apple", 5)
	assert.Equal(t, model.StatusInStock, p.Status)
	assert.Equal(t, "tester", p.CreatedBy)

	t.Run("status derived when omitted", func(t *testing.T) {
		p, err := f.svc.CreateProduct(ctx, &ProductRequest{Name: "Milk"}, tester)
		require.NoError(t, err)
		assert.Equal(t, 0, p.Stock)
		assert.Equal(t, model.StatusOutOfStock, p.Status)
	})

	t.Run("caller status trusted", func(t *testing.T) {
		p, err := f.svc.CreateProduct(ctx, &ProductRequest{Name: "Pear", Status: "Seasonal"}, tester)
		require.NoError(t, err)
		assert.Equal(t, "Seasonal", p.Status)
	})

	t.Run("name required", func(t *testing.T) {
		_, err := f.svc.CreateProduct(ctx, &ProductRequest{Name: "  "}, tester)
		assert.True(t, apperror.Is(err, apperror.KindValidation))
	})

	t.Run("bad stock", func(t *testing.T) {
		var req ProductRequest
		require.NoError(t, req.Stock.UnmarshalText([]byte("many")))
		req.Name = "Kiwi"
		_, err := f.svc.CreateProduct(ctx, &req, tester)
		assert.True(t, apperror.Is(err, apperror.KindValidation))
	})

	t.Run("duplicate name rejected and row unchanged", func(t *testing.T) {
		_, err := f.svc.CreateProduct(ctx, &ProductRequest{Name: "Apple", Stock: NewStockValue(99)}, tester)
		assert.True(t, apperror.Is(err, apperror.KindConflict))

		got, err := f.products.FindByName(ctx, "Apple")
		require.NoError(t, err)
		assert.Equal(t, 5, got.Stock)
	})

	assert.Contains(t, f.events.actions(), ws.ActionProductCreated)
}

func TestUpdateProduct_RecordsStockHistory(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	apple := f.create(t, "Apple", 5)

	_, err := f.svc.UpdateProduct(ctx, apple.ID, &ProductRequest{
		Name:     "Apple",
		Stock:    NewStockValue(8),
		UserInfo: strPtr("alice"),
	}, tester)
	require.NoError(t, err)

	history, err := f.svc.GetProductHistory(ctx, apple.ID)
	require.NoError(t, err)
	require.Len(t, history, 1)
	assert.Equal(t, 5, history[0].OldQuantity)
	assert.Equal(t, 8, history[0].NewQuantity)
	require.NotNil(t, history[0].UserInfo)
	assert.Equal(t, "alice", *history[0].UserInfo)
	assert.False(t, history[0].ChangeDate.IsZero())

	// same stock again: no new entry
	_, err = f.svc.UpdateProduct(ctx, apple.ID, &ProductRequest{Name: "Apple", Stock: NewStockValue(8)}, tester)
	require.NoError(t, err)

	history, err = f.svc.GetProductHistory(ctx, apple.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1)
}

func TestUpdateProduct_HistoryNewestFirst(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apple := f.create(t, "Apple", 1)

	for _, n := range []int{2, 3, 4} {
		_, err := f.svc.UpdateProduct(ctx, apple.ID, &ProductRequest{Name: "Apple", Stock: NewStockValue(n)}, tester)
		require.NoError(t, err)
	}

	history, err := f.svc.GetProductHistory(ctx, apple.ID)
	require.NoError(t, err)
	require.Len(t, history, 3)
	assert.Equal(t, []int{4, 3, 2}, []int{history[0].NewQuantity, history[1].NewQuantity, history[2].NewQuantity})
	assert.Nil(t, history[0].UserInfo)
}

func TestUpdateProduct_OverwritesFields(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	p, err := f.svc.CreateProduct(ctx, &ProductRequest{Name: "Apple", Brand: "FreshFarm", Unit: "kg", Stock: NewStockValue(5)}, tester)
	require.NoError(t, err)

	updated, err := f.svc.UpdateProduct(ctx, p.ID, &ProductRequest{Name: "Green Apple", Category: "Fruits"}, tester)
	require.NoError(t, err)

	got, err := f.products.FindByID(ctx, p.ID)
	require.NoError(t, err)
	assert.Equal(t, "Green Apple", got.Name)
	assert.Equal(t, "", got.Brand, "omitted text fields are overwritten")
	assert.Equal(t, "Fruits", got.Category)
	assert.Equal(t, 5, got.Stock, "omitted stock is left alone")
	assert.Equal(t, updated.Status, got.Status)

	history, err := f.svc.GetProductHistory(ctx, p.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestUpdateProduct_Failures(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apple := f.create(t, "Apple", 5)
	f.create(t, "Banana", 3)

	t.Run("stock not a number", func(t *testing.T) {
		var req ProductRequest
		require.NoError(t, req.Stock.UnmarshalText([]byte("abc")))
		req.Name = "Apple"
		_, err := f.svc.UpdateProduct(ctx, apple.ID, &req, tester)
		assert.True(t, apperror.Is(err, apperror.KindValidation))
	})

	t.Run("duplicate name leaves rows unchanged", func(t *testing.T) {
		_, err := f.svc.UpdateProduct(ctx, apple.ID, &ProductRequest{Name: "Banana", Stock: NewStockValue(1)}, tester)
		assert.True(t, apperror.Is(err, apperror.KindConflict))

		got, err := f.products.FindByID(ctx, apple.ID)
		require.NoError(t, err)
		assert.Equal(t, "Apple", got.Name)
		assert.Equal(t, 5, got.Stock)

		history, err := f.svc.GetProductHistory(ctx, apple.ID)
		require.NoError(t, err)
		assert.Empty(t, history)
	})

	t.Run("not found", func(t *testing.T) {
		_, err := f.svc.UpdateProduct(ctx, uuid.New(), &ProductRequest{Name: "Ghost"}, tester)
		assert.True(t, apperror.Is(err, apperror.KindNotFound))
	})
}

func TestUpdateProduct_HistoryFailureIsSwallowed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apple := f.create(t, "Apple", 5)

	svc := NewInventoryService(f.products, failingHistoryRepo{f.history}, nil, nil, logger.Discard(), InventoryOptions{})

	updated, err := svc.UpdateProduct(ctx, apple.ID, &ProductRequest{Name: "Apple", Stock: NewStockValue(9)}, tester)
	require.NoError(t, err)
	assert.Equal(t, 9, updated.Stock)

	got, err := f.products.FindByID(ctx, apple.ID)
	require.NoError(t, err)
	assert.Equal(t, 9, got.Stock, "stock is updated even though the audit write failed")

	history, err := f.history.FindByProductID(ctx, apple.ID)
	require.NoError(t, err)
	assert.Empty(t, history)
}

func TestDeleteProduct(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apple := f.create(t, "Apple", 5)
	_, err := f.svc.UpdateProduct(ctx, apple.ID, &ProductRequest{Name: "Apple", Stock: NewStockValue(6)}, tester)
	require.NoError(t, err)

	require.NoError(t, f.svc.DeleteProduct(ctx, apple.ID, tester))

	_, err = f.svc.GetProduct(ctx, apple.ID)
	assert.True(t, apperror.Is(err, apperror.KindNotFound))

	history, err := f.svc.GetProductHistory(ctx, apple.ID)
	require.NoError(t, err)
	assert.Len(t, history, 1, "delete does not cascade into history")

	// the name can be reused
	f.create(t, "Apple", 1)
	assert.Contains(t, f.events.actions(), ws.ActionProductDeleted)
}

func TestListProducts_PaginationAndCache(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	for i := 1; i <= 15; i++ {
		f.create(t, fmt.Sprintf("Item %02d", i), i)
	}

	page, err := f.svc.ListProducts(ctx, repository.ProductQuery{Page: 2, Limit: 10})
	require.NoError(t, err)
	require.Len(t, page, 5)
	assert.Equal(t, "Item 11", page[0].Name)
	assert.Equal(t, "Item 15", page[4].Name)
	assert.Equal(t, 1, f.cache.len())

	// a cached page is served until a mutation invalidates it
	again, err := f.svc.ListProducts(ctx, repository.ProductQuery{Page: 2, Limit: 10})
	require.NoError(t, err)
	assert.Equal(t, names(page), names(again))

	f.create(t, "Item 16", 16)
	assert.Equal(t, 0, f.cache.len())

	page, err = f.svc.ListProducts(ctx, repository.ProductQuery{Page: 2, Limit: 10})
	require.NoError(t, err)
	assert.Len(t, page, 6)
}

func TestListProducts_ClampsLimit(t *testing.T) {
	f := newFixture(t)
	svc := NewInventoryService(f.products, f.history, nil, nil, logger.Discard(), InventoryOptions{MaxPageSize: 3})
	for i := 1; i <= 5; i++ {
		f.create(t, fmt.Sprintf("Item %d", i), i)
	}

	got, err := svc.ListProducts(context.Background(), repository.ProductQuery{Limit: 1000})
	require.NoError(t, err)
	assert.Len(t, got, 3)
}

func TestImportProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "Apple", 5)
	f.create(t, "Banana", 2)

	records := []csvio.Record{
		{Name: "Apple", Stock: "100"},
		{Name: "Cherry", Stock: "12", Category: "Fruits"},
		{Name: "Banana"},
		{Name: "Durian", Stock: "lots"},
		{Name: "Elderberry", Status: "Seasonal"},
	}
	result, err := f.svc.ImportProducts(ctx, records, tester)
	require.NoError(t, err)

	sort.Strings(result.Added)
	sort.Strings(result.Skipped)
	assert.Equal(t, []string{"Cherry", "Durian", "Elderberry"}, result.Added)
	assert.Equal(t, []string{"Apple", "Banana"}, result.Skipped)
	assert.Empty(t, result.Failed)

	apple, err := f.products.FindByName(ctx, "Apple")
	require.NoError(t, err)
	assert.Equal(t, 5, apple.Stock, "skipped rows are not modified")

	durian, err := f.products.FindByName(ctx, "Durian")
	require.NoError(t, err)
	assert.Equal(t, 0, durian.Stock)
	assert.Equal(t, model.StatusOutOfStock, durian.Status)

	cherry, err := f.products.FindByName(ctx, "Cherry")
	require.NoError(t, err)
	assert.Equal(t, 12, cherry.Stock)
	assert.Equal(t, model.StatusInStock, cherry.Status)

	elder, err := f.products.FindByName(ctx, "Elderberry")
	require.NoError(t, err)
	assert.Equal(t, "Seasonal", elder.Status)

	assert.Contains(t, f.events.actions(), ws.ActionProductsImported)
}

func TestImportProducts_PartitionsInput(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	const n, k = 40, 10
	for i := 0; i < k; i++ {
		f.create(t, fmt.Sprintf("P%02d", i), 1)
	}
	records := make([]csvio.Record, n)
	for i := range records {
		records[i] = csvio.Record{Name: fmt.Sprintf("P%02d", i), Stock: "3"}
	}

	result, err := f.svc.ImportProducts(ctx, records, tester)
	require.NoError(t, err)
	assert.Len(t, result.Added, n-k)
	assert.Len(t, result.Skipped, k)
	assert.Empty(t, result.Failed)

	all := append(append([]string{}, result.Added...), result.Skipped...)
	sort.Strings(all)
	for i, name := range all {
		assert.Equal(t, fmt.Sprintf("P%02d", i), name)
	}
}

func TestImportProducts_EdgeCases(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.svc.ImportProducts(ctx, nil, tester)
	assert.True(t, apperror.Is(err, apperror.KindValidation))

	result, err := f.svc.ImportProducts(ctx, []csvio.Record{
		{Name: "Fig"},
		{Name: ""},
		{Name: "Fig", Stock: "9"},
	}, tester)
	require.NoError(t, err)
	assert.Equal(t, []string{"Fig"}, result.Added)
	assert.Equal(t, []string{"Fig"}, result.Skipped)
	assert.Equal(t, []string{""}, result.Failed)

	fig, err := f.products.FindByName(ctx, "Fig")
	require.NoError(t, err)
	assert.Equal(t, 0, fig.Stock, "first occurrence wins")
}

func TestExportProducts(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	_, err := f.svc.CreateProduct(ctx, &ProductRequest{Name: "Nuts, mixed", Unit: "bag", Stock: NewStockValue(4)}, tester)
	require.NoError(t, err)
	f.create(t, "Apple", 5)

	var buf bytes.Buffer
	require.NoError(t, f.svc.ExportProducts(ctx, &buf))

	want := "name,unit,category,brand,stock,status,image\n" +
		"Apple,,,,5,In Stock,\n" +
		"\"Nuts, mixed\",bag,,,4,In Stock,\n"
	assert.Equal(t, want, buf.String())
}

func names(products []model.Product) []string {
	out := make([]string, len(products))
	for i, p := range products {
		out[i] = p.Name
	}
	return out
}

func TestImportProducts_StorageFailuresAreReportedAsFailed(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	f.create(t, "Apple", 5)

	broken := brokenProductRepo{ProductRepository: f.products, createErr: errors.New("database is locked")}
	svc := NewInventoryService(broken, f.history, nil, f.events, logger.Discard(), InventoryOptions{ImportConcurrency: 2})

	result, err := svc.ImportProducts(ctx, []csvio.Record{{Name: "A"}, {Name: "Apple"}, {Name: "B", Stock: "3"}}, tester)
	require.NoError(t, err)
	assert.Empty(t, result.Added)
	assert.Equal(t, []string{"Apple"}, result.Skipped)
	assert.ElementsMatch(t, []string{"A", "B"}, result.Failed)

	count, err := f.products.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, int64(1), count)
	assert.NotContains(t, f.events.actions(), ws.ActionProductsImported)
}

func TestUpdateProduct_StorageFailureIsInternal(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apple := f.create(t, "Apple", 5)

	broken := brokenProductRepo{ProductRepository: f.products, updateErr: errors.New("disk I/O error")}
	svc := NewInventoryService(broken, f.history, nil, nil, logger.Discard(), InventoryOptions{})

	_, err := svc.UpdateProduct(ctx, apple.ID, &ProductRequest{Name: "Apple", Stock: NewStockValue(9)}, tester)
	require.Error(t, err)
	assert.True(t, apperror.Is(err, apperror.KindInternal))
	assert.Equal(t, "Failed to update product", apperror.Message(err))

	history, err := f.history.FindByProductID(ctx, apple.ID)
	require.NoError(t, err)
	assert.Empty(t, history)

	got, err := f.products.FindByID(ctx, apple.ID)
	require.NoError(t, err)
	assert.Equal(t, 5, got.Stock)
}

func TestBlankNameRejectedOnCreateAndUpdate(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	apple := f.create(t, "Apple", 5)

	for _, name := range []string{"", "   ", "\t"} {
		_, err := f.svc.CreateProduct(ctx, &ProductRequest{Name: name}, tester)
		assert.True(t, apperror.Is(err, apperror.KindValidation), "create %q", name)
		assert.Equal(t, "Product name is required", apperror.Message(err))

		_, err = f.svc.UpdateProduct(ctx, apple.ID, &ProductRequest{Name: name}, tester)
		assert.True(t, apperror.Is(err, apperror.KindValidation), "update %q", name)
		assert.Equal(t, "Product name is required", apperror.Message(err))
	}
}
