package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

const jwtTestSecret = "test-secret"

func signToken(t *testing.T, claims jwt.MapClaims, secret string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func jwtApp() *fiber.App {
	app := fiber.New()
	app.Use(JWTProtected(jwtTestSecret))
	app.Get("/protected", func(c *fiber.Ctx) error {
		return c.SendStatus(fiber.StatusOK)
	})
	return app
}

func TestJWTProtectedAcceptsValidToken(t *testing.T) {
	app := jwtApp()
	token := signToken(t, jwt.MapClaims{"sub": float64(42), "role": "Admin"}, jwtTestSecret)

	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
}

func TestJWTProtectedExtractsClaims(t *testing.T) {
	var gotUserID interface{}
	var gotRole interface{}

	app := fiber.New()
	app.Use(JWTProtected(jwtTestSecret))
	app.Get("/protected", func(c *fiber.Ctx) error {
		gotUserID = c.Locals("user_id")
		gotRole = c.Locals("user_role")
		return c.SendStatus(fiber.StatusOK)
	})

	token := signToken(t, jwt.MapClaims{"sub": "42", "roles": []interface{}{"trainer", "viewer"}}, jwtTestSecret)
	req := httptest.NewRequest(http.MethodGet, "/protected", nil)
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, uint(42), gotUserID, "string subjects are parsed")
	require.Equal(t, "trainer", gotRole, "the first role in a list wins")
}

func TestJWTProtectedRejections(t *testing.T) {
	cases := []struct {
		name  string
		setup func(t *testing.T, req *http.Request)
	}{
		{name: "missing header", setup: func(t *testing.T, req *http.Request) {}},
		{name: "wrong scheme", setup: func(t *testing.T, req *http.Request) {
			req.Header.Set("Authorization", "Basic dXNlcjpwYXNz")
		}},
		{name: "empty token", setup: func(t *testing.T, req *http.Request) {
			req.Header.Set("Authorization", "Bearer   ")
		}},
		{name: "wrong signature", setup: func(t *testing.T, req *http.Request) {
			req.Header.Set("Authorization", "Bearer "+signToken(t, jwt.MapClaims{"sub": float64(1)}, "other-secret"))
		}},
		{name: "garbage token", setup: func(t *testing.T, req *http.Request) {
			req.Header.Set("Authorization", "Bearer not.a.jwt")
		}},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			app := jwtApp()
			req := httptest.NewRequest(http.MethodGet, "/protected", nil)
			tc.setup(t, req)

			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, fiber.StatusUnauthorized, resp.StatusCode)
		})
	}
}
