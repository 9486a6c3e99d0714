package handler_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/require"

	"github.com/sigap-app/sigap-api/internal/dto"
	"github.com/sigap-app/sigap-api/internal/handler"
	"github.com/sigap-app/sigap-api/internal/service"
)

type mockProductService struct {
	listResp     dto.ProductListResponse
	listErr      error
	lastSearch   string
	lastCategory string
	lastPage     int
	lastPageSize int
	getResp      dto.ProductResponse
	getErr       error
	lastSKU      string
	seedResp     dto.ProductSeedResponse
	seedErr      error
	lastToken    string
	lastSeed     dto.ProductSeedRequest
}

func (m *mockProductService) List(_ context.Context, search, category string, page, pageSize int) (dto.ProductListResponse, error) {
	m.lastSearch = search
	m.lastCategory = category
	m.lastPage = page
	m.lastPageSize = pageSize
	if m.listErr != nil {
		return dto.ProductListResponse{}, m.listErr
	}
	return m.listResp, nil
}

func (m *mockProductService) GetBySKU(_ context.Context, sku string) (dto.ProductResponse, error) {
	m.lastSKU = sku
	if m.getErr != nil {
		return dto.ProductResponse{}, m.getErr
	}
	return m.getResp, nil
}

func (m *mockProductService) Seed(_ context.Context, token string, req dto.ProductSeedRequest) (dto.ProductSeedResponse, error) {
	m.lastToken = token
	m.lastSeed = req
	if m.seedErr != nil {
		return dto.ProductSeedResponse{}, m.seedErr
	}
	return m.seedResp, nil
}

func newProductApp(svc *mockProductService) *fiber.App {
	app := fiber.New()
	handler.NewProductHandler(svc, zerolog.New(io.Discard)).Register(app.Group("/api/v1/products"))
	return app
}

func TestProductHandler_ListSetsCacheHeader(t *testing.T) {
	cases := []struct {
		name     string
		cacheHit bool
		header   string
	}{
		{name: "miss", cacheHit: false, header: "false"},
		{name: "hit", cacheHit: true, header: "true"},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockProductService{listResp: dto.ProductListResponse{
				Items:    []dto.ProductResponse{{SKU: "PMP-001", Name: "Hand Pump"}},
				CacheHit: tc.cacheHit,
			}}
			app := newProductApp(svc)

			resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/products", nil))
			require.NoError(t, err)
			require.Equal(t, fiber.StatusOK, resp.StatusCode)
			require.Equal(t, tc.header, resp.Header.Get("X-Cache-Hit"))

			var response struct {
				OK   bool `json:"ok"`
				Data struct {
					Items []struct {
						SKU string `json:"sku"`
					} `json:"items"`
				} `json:"data"`
			}
			decodeResponse(t, resp, &response)
			require.True(t, response.OK)
			require.Len(t, response.Data.Items, 1)
		})
	}
}

func TestProductHandler_ListForwardsQuery(t *testing.T) {
	svc := &mockProductService{}
	app := newProductApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/products?search=pump&category=pumps&page=2&pageSize=5", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "pump", svc.lastSearch)
	require.Equal(t, "pumps", svc.lastCategory)
	require.Equal(t, 2, svc.lastPage)
	require.Equal(t, 5, svc.lastPageSize)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/products?page=two", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestProductHandler_GetBySKU(t *testing.T) {
	svc := &mockProductService{getResp: dto.ProductResponse{SKU: "VLV-002", Name: "Check Valve"}}
	app := newProductApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/products/VLV-002", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "VLV-002", svc.lastSKU)

	svc.getErr = service.ErrProductNotFound
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/products/GONE-404", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var response struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	decodeResponse(t, resp, &response)
	require.Equal(t, "product not found", response.Error)

	svc.getErr = errors.New("db down")
	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/products/VLV-002", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusInternalServerError, resp.StatusCode)
}
