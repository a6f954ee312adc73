package handler

import (
	"bytes"
	"errors"
	"log/slog"

	"go-inventory-tracker/internal/csvio"
	"go-inventory-tracker/internal/repository"
	"go-inventory-tracker/internal/service"
	"go-inventory-tracker/pkg/apperror"

	"github.com/gofiber/fiber/v2"
)

// importFields are the multipart field names accepted for the upload.
var importFields = []string{"csvFile", "file"}

type InventoryHandler struct {
	service service.InventoryService
	log     *slog.Logger
}

func NewInventoryHandler(s service.InventoryService, log *slog.Logger) *InventoryHandler {
	return &InventoryHandler{service: s, log: log}
}

// GetProducts lists one page of products.
// GET /api/products?name=&category=&sortBy=&sortOrder=&page=&limit=
func (h *InventoryHandler) GetProducts(c *fiber.Ctx) error {
	q := repository.ProductQuery{
		Name:      c.Query("name"),
		Category:  c.Query("category"),
		SortBy:    c.Query("sortBy"),
		SortOrder: c.Query("sortOrder"),
		Page:      c.QueryInt("page", repository.DefaultPage),
		Limit:     c.QueryInt("limit", repository.DefaultLimit),
	}

	products, err := h.service.ListProducts(c.UserContext(), q)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(products)
}

func (h *InventoryHandler) GetProduct(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	product, err := h.service.GetProduct(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(product)
}

func (h *InventoryHandler) CreateProduct(c *fiber.Ctx) error {
	var req service.ProductRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	product, err := h.service.CreateProduct(c.UserContext(), &req, actorFrom(c))
	if err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(fiber.Map{"message": "Product added successfully", "id": product.ID})
}

func (h *InventoryHandler) UpdateProduct(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	var req service.ProductRequest
	if err := c.BodyParser(&req); err != nil {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid JSON"})
	}

	if _, err := h.service.UpdateProduct(c.UserContext(), id, &req, actorFrom(c)); err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(fiber.Map{"message": "Product updated successfully"})
}

func (h *InventoryHandler) DeleteProduct(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	if err := h.service.DeleteProduct(c.UserContext(), id, actorFrom(c)); err != nil {
		return respondError(c, h.log, err)
	}

	return c.JSON(fiber.Map{"message": "Product deleted successfully"})
}

// GetHistory returns every stock change of a product, newest first.
// GET /api/products/:id/history
func (h *InventoryHandler) GetHistory(c *fiber.Ctx) error {
	id, err := parseID(c)
	if err != nil {
		return respondError(c, h.log, err)
	}

	entries, err := h.service.GetProductHistory(c.UserContext(), id)
	if err != nil {
		return respondError(c, h.log, err)
	}
	return c.JSON(entries)
}

// ImportProducts reads a multipart CSV upload.
// POST /api/products/import
func (h *InventoryHandler) ImportProducts(c *fiber.Ctx) error {
	var (
		records []csvio.Record
		found   bool
	)
	for _, field := range importFields {
		fh, err := c.FormFile(field)
		if err != nil {
			continue
		}
		found = true

		f, err := fh.Open()
		if err != nil {
			return respondError(c, h.log, apperror.Internal("Failed to read upload", err))
		}
		records, err = csvio.Read(f)
		f.Close()
		if err != nil {
			if errors.Is(err, csvio.ErrNoNameColumn) {
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "CSV must contain a name column"})
			}
			return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "Invalid CSV file"})
		}
		break
	}
	if !found {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": "No file uploaded"})
	}

	result, err := h.service.ImportProducts(c.UserContext(), records, actorFrom(c))
	if err != nil {
		return respondError(c, h.log, err)
	}

	h.log.Info("products imported",
		"user", actorFrom(c).Username,
		"added", len(result.Added), "skipped", len(result.Skipped), "failed", len(result.Failed))
	return c.JSON(result)
}

// ExportProducts streams the catalogue as a CSV attachment.
// GET /api/products/export
func (h *InventoryHandler) ExportProducts(c *fiber.Ctx) error {
	var buf bytes.Buffer
	if err := h.service.ExportProducts(c.UserContext(), &buf); err != nil {
		return respondError(c, h.log, err)
	}

	c.Attachment("products.csv")
	c.Set(fiber.HeaderContentType, "text/csv; charset=utf-8")
	return c.Send(buf.Bytes())
}
