package service

import (
	"bytes"
	"encoding/json"
	"errors"
	"math"
	"strconv"
	"strings"
)

var errInvalidStock = errors.New("stock must be a number")

// StockValue is an optional stock quantity as submitted by a client. It
// accepts a JSON number or a numeric string and defers validation to Parse,
// so a malformed value becomes a validation error rather than a decode error.
type StockValue struct {
	raw string
	set bool
}

func NewStockValue(n int) StockValue {
	return StockValue{raw: strconv.Itoa(n), set: true}
}

func (s *StockValue) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		*s = StockValue{}
		return nil
	}
	if len(b) > 0 && b[0] == '"' {
		var str string
		if err := json.Unmarshal(b, &str); err != nil {
			return err
		}
		return s.UnmarshalText([]byte(str))
	}
	*s = StockValue{raw: string(b), set: true}
	return nil
}

func (s *StockValue) UnmarshalText(b []byte) error {
	*s = StockValue{raw: string(b), set: true}
	return nil
}

func (s StockValue) MarshalJSON() ([]byte, error) {
	if !s.set {
		return []byte("null"), nil
	}
	n, err := s.Parse()
	if err != nil {
		return json.Marshal(s.raw)
	}
	return []byte(strconv.Itoa(n)), nil
}

// Supplied reports whether the client sent a stock value at all.
func (s StockValue) Supplied() bool { return s.set }

// Parse returns the quantity. Integral floats such as 5.0 are accepted;
// fractions, negatives and non-numbers are not.
func (s StockValue) Parse() (int, error) {
	return parseQuantity(s.raw)
}

// maxStock keeps quantities inside a 32-bit INTEGER column on every driver.
const maxStock = math.MaxInt32

func parseQuantity(raw string) (int, error) {
	raw = strings.TrimSpace(raw)
	if n, err := strconv.ParseInt(raw, 10, 64); err == nil {
		if n < 0 || n > maxStock {
			return 0, errInvalidStock
		}
		return int(n), nil
	}
	f, err := strconv.ParseFloat(raw, 64)
	if err != nil || math.IsNaN(f) || math.IsInf(f, 0) || f != math.Trunc(f) || f < 0 || f > maxStock {
		return 0, errInvalidStock
	}
	return int(f), nil
}

// importStock is lenient: absent or unparseable values become 0.
func importStock(raw string) int {
	n, err := parseQuantity(raw)
	if err != nil {
		return 0
	}
	return n
}
