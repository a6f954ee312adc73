package metrics

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMiddleware_MixedMethodsOnOneRoute(t *testing.T) {
	app := fiber.New()
	app.Use(Middleware())
	app.Get("/metrics", Handler())
	app.Get("/items/:id", func(c *fiber.Ctx) error { return c.SendString("get") })
	app.Put("/items/:id", func(c *fiber.Ctx) error { return c.SendString("put") })

	for _, method := range []string{http.MethodPut, http.MethodGet, http.MethodPut, http.MethodGet} {
		resp, err := app.Test(httptest.NewRequest(method, "/items/42", nil), -1)
		require.NoError(t, err)
		require.Equal(t, http.StatusOK, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/metrics", nil), -1)
	require.NoError(t, err)
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.Equal(t, http.StatusOK, resp.StatusCode, string(body))

	text := string(body)
	assert.True(t, strings.Contains(text, `inventory_http_requests_total{method="PUT",route="/items/:id",status="200"} 2`), text)
	assert.True(t, strings.Contains(text, `inventory_http_requests_total{method="GET",route="/items/:id",status="200"} 2`), text)
}
