package middleware

import (
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/stretchr/testify/require"
)

func TestRateLimitBlocksAfterMax(t *testing.T) {
	app := fiber.New()
	app.Post("/submit", RateLimit("training_submit", 2, time.Minute), func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	})

	for i := 0; i < 2; i++ {
		resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/submit", nil))
		require.NoError(t, err)
		require.Equal(t, fiber.StatusCreated, resp.StatusCode)
	}

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/submit", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode)

	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())

	var payload struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	require.NoError(t, json.Unmarshal(body, &payload))
	require.False(t, payload.OK)
	require.Equal(t, "too many requests", payload.Error)
}

func TestRateLimitKeysAuthenticatedUsersSeparately(t *testing.T) {
	// One limiter instance shared by both routes, so only the key separates
	// the buckets.
	limit := RateLimit("training_submit", 1, time.Minute)
	asUser := func(id uint) fiber.Handler {
		return func(c *fiber.Ctx) error {
			c.Locals("user_id", id)
			return c.Next()
		}
	}
	created := func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusCreated)
	}

	app := fiber.New()
	app.Post("/submit", asUser(1), limit, created)
	app.Post("/other", asUser(2), limit, created)

	resp, err := app.Test(httptest.NewRequest(http.MethodPost, "/submit", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/submit", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusTooManyRequests, resp.StatusCode, "user 1 exhausted their bucket")

	resp, err = app.Test(httptest.NewRequest(http.MethodPost, "/other", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusCreated, resp.StatusCode, "user 2 still has theirs")
}
