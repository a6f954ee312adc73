// Package csvio reads and writes the product CSV format:
//
//	name,unit,category,brand,stock,status,image
//
// Import is header-driven, so columns may come in any order and unknown
// columns are ignored. Export always writes the canonical header.
package csvio

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"go-inventory-tracker/internal/model"
)

var ErrNoNameColumn = errors.New("csv header has no name column")

// Record is one raw import row. Stock is left unparsed.
type Record struct {
	Name     string
	Unit     string
	Category string
	Brand    string
	Stock    string
	Status   string
	Image    string
}

// Read parses every data row. An input with only a header (or nothing at
// all) yields an empty slice and no error.
func Read(r io.Reader) ([]Record, error) {
	cr := csv.NewReader(r)
	cr.FieldsPerRecord = -1
	cr.TrimLeadingSpace = true

	header, err := cr.Read()
	if errors.Is(err, io.EOF) {
		return []Record{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}

	index := make(map[string]int, len(header))
	for i, h := range header {
		h = strings.ToLower(strings.TrimSpace(strings.TrimPrefix(h, "\ufeff")))
		if _, dup := index[h]; !dup {
			index[h] = i
		}
	}
	if _, ok := index["name"]; !ok {
		return nil, ErrNoNameColumn
	}

	field := func(row []string, col string) string {
		i, ok := index[col]
		if !ok || i >= len(row) {
			return ""
		}
		return strings.TrimSpace(row[i])
	}

	records := []Record{}
	for {
		row, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		if isBlank(row) {
			continue
		}
		records = append(records, Record{
			Name:     field(row, "name"),
			Unit:     field(row, "unit"),
			Category: field(row, "category"),
			Brand:    field(row, "brand"),
			Stock:    field(row, "stock"),
			Status:   field(row, "status"),
			Image:    field(row, "image"),
		})
	}
	return records, nil
}

// Write emits the canonical header and one row per product. Fields are
// quoted when they contain commas, quotes or newlines.
func Write(w io.Writer, products []model.Product) error {
	cw := csv.NewWriter(w)
	if err := cw.Write(model.CSVHeader); err != nil {
		return err
	}
	for _, p := range products {
		row := []string{p.Name, p.Unit, p.Category, p.Brand, strconv.Itoa(p.Stock), p.Status, p.Image}
		if err := cw.Write(row); err != nil {
			return err
		}
	}
	cw.Flush()
	return cw.Error()
}

func isBlank(row []string) bool {
	for _, f := range row {
		if strings.TrimSpace(f) != "" {
			return false
		}
	}
	return true
}
