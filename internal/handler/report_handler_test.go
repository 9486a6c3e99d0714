package handler_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
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

type mockReportService struct {
	upsertResp    dto.ReportUpsertResponse
	upsertErr     error
	lastUpsert    dto.ReportUpsertRequest
	getResp       dto.ReportResponse
	getErr        error
	getCalled     bool
	lookupResp    dto.ReportResponse
	lookupErr     error
	lookupKind    string
	lookupDate    string
	listResp      dto.ReportListResponse
	listErr       error
	listKind      string
	listLimit     int
	listLite      bool
	deleteErr     error
	deletedID     uint
	deleteKeyResp dto.ReportDeleteResponse
	deleteKeyErr  error
}

func (m *mockReportService) Upsert(_ context.Context, req dto.ReportUpsertRequest) (dto.ReportUpsertResponse, error) {
	m.lastUpsert = req
	if m.upsertErr != nil {
		return dto.ReportUpsertResponse{}, m.upsertErr
	}
	return m.upsertResp, nil
}

func (m *mockReportService) Get(_ context.Context, id uint) (dto.ReportResponse, error) {
	m.getCalled = true
	if m.getErr != nil {
		return dto.ReportResponse{}, m.getErr
	}
	return m.getResp, nil
}

func (m *mockReportService) Lookup(_ context.Context, kind, date string) (dto.ReportResponse, error) {
	m.lookupKind = kind
	m.lookupDate = date
	if m.lookupErr != nil {
		return dto.ReportResponse{}, m.lookupErr
	}
	return m.lookupResp, nil
}

func (m *mockReportService) List(_ context.Context, kind string, limit int, lite bool) (dto.ReportListResponse, error) {
	m.listKind = kind
	m.listLimit = limit
	m.listLite = lite
	if m.listErr != nil {
		return dto.ReportListResponse{}, m.listErr
	}
	return m.listResp, nil
}

func (m *mockReportService) DeleteByID(_ context.Context, id uint) error {
	m.deletedID = id
	return m.deleteErr
}

func (m *mockReportService) DeleteByNaturalKey(_ context.Context, kind, date string) (dto.ReportDeleteResponse, error) {
	if m.deleteKeyErr != nil {
		return dto.ReportDeleteResponse{}, m.deleteKeyErr
	}
	return m.deleteKeyResp, nil
}

func newReportApp(svc *mockReportService) *fiber.App {
	app := fiber.New()
	handler.NewReportHandler(svc, zerolog.New(io.Discard)).Register(app.Group("/api/v1/reports"))
	return app
}

func jsonRequest(t *testing.T, method, target string, payload interface{}) *http.Request {
	t.Helper()
	body, err := json.Marshal(payload)
	require.NoError(t, err)
	req := httptest.NewRequest(method, target, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	return req
}

func decodeResponse(t *testing.T, resp *http.Response, target interface{}) {
	t.Helper()
	body, err := io.ReadAll(resp.Body)
	require.NoError(t, err)
	require.NoError(t, resp.Body.Close())
	require.NoError(t, json.Unmarshal(body, target))
}

func TestReportHandler_UpsertStatusByBranch(t *testing.T) {
	cases := []struct {
		branch string
		status int
	}{
		{branch: "created", status: fiber.StatusCreated},
		{branch: "updated", status: fiber.StatusOK},
	}

	for _, tc := range cases {
		t.Run(tc.branch, func(t *testing.T) {
			svc := &mockReportService{upsertResp: dto.ReportUpsertResponse{
				Report: dto.ReportResponse{ID: 7, Kind: "daily-activity"},
				Branch: tc.branch,
			}}
			app := newReportApp(svc)

			req := jsonRequest(t, http.MethodPost, "/api/v1/reports", map[string]interface{}{
				"kind": "daily-activity",
				"body": map[string]interface{}{"reportDate": "2026-01-10", "notes": "ok"},
			})
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.status, resp.StatusCode)

			var response struct {
				OK   bool `json:"ok"`
				Data struct {
					Branch string `json:"branch"`
					Report struct {
						ID uint `json:"id"`
					} `json:"report"`
				} `json:"data"`
			}
			decodeResponse(t, resp, &response)
			require.True(t, response.OK)
			require.Equal(t, tc.branch, response.Data.Branch)
			require.Equal(t, uint(7), response.Data.Report.ID)
			require.Equal(t, "daily-activity", svc.lastUpsert.Kind)
			require.Equal(t, "2026-01-10", svc.lastUpsert.Body["reportDate"])
		})
	}
}

func TestReportHandler_UpsertErrorMapping(t *testing.T) {
	cases := []struct {
		name       string
		err        error
		statusCode int
	}{
		{name: "invalid", err: fmt.Errorf("%w: kind is required", service.ErrReportInvalid), statusCode: fiber.StatusBadRequest},
		{name: "conflict", err: fmt.Errorf("%w: kind=daily key=2026-01-10", service.ErrUpsertConflict), statusCode: fiber.StatusConflict},
		{name: "generic", err: errors.New("boom"), statusCode: fiber.StatusInternalServerError},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			svc := &mockReportService{upsertErr: tc.err}
			app := newReportApp(svc)

			req := jsonRequest(t, http.MethodPost, "/api/v1/reports", map[string]interface{}{
				"kind": "daily-activity",
				"body": map[string]interface{}{"reportDate": "2026-01-10"},
			})
			resp, err := app.Test(req)
			require.NoError(t, err)
			require.Equal(t, tc.statusCode, resp.StatusCode)

			var response struct {
				OK    bool   `json:"ok"`
				Error string `json:"error"`
			}
			decodeResponse(t, resp, &response)
			require.False(t, response.OK)
			require.NotEmpty(t, response.Error)
		})
	}
}

func TestReportHandler_UpsertRejectsMalformedJSON(t *testing.T) {
	svc := &mockReportService{}
	app := newReportApp(svc)

	req := httptest.NewRequest(http.MethodPost, "/api/v1/reports", bytes.NewReader([]byte("not json")))
	req.Header.Set("Content-Type", "application/json")

	resp, err := app.Test(req)
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
	require.Empty(t, svc.lastUpsert.Kind)
}

func TestReportHandler_LookupPrecedesWildcard(t *testing.T) {
	svc := &mockReportService{lookupResp: dto.ReportResponse{ID: 3, Kind: "daily-activity"}}
	app := newReportApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/reports/lookup?kind=daily-activity&date=2026-01-10", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "daily-activity", svc.lookupKind)
	require.Equal(t, "2026-01-10", svc.lookupDate)
	require.False(t, svc.getCalled, "the literal route must not fall through to :id")
}

func TestReportHandler_LookupNotFound(t *testing.T) {
	svc := &mockReportService{lookupErr: service.ErrReportNotFound}
	app := newReportApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/reports/lookup?kind=daily-activity&date=2026-09-01", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)

	var response struct {
		OK    bool   `json:"ok"`
		Error string `json:"error"`
	}
	decodeResponse(t, resp, &response)
	require.Equal(t, "report not found", response.Error)
}

func TestReportHandler_GetByID(t *testing.T) {
	svc := &mockReportService{getResp: dto.ReportResponse{ID: 12, Kind: "stock-opname"}}
	app := newReportApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/reports/12", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/reports/abc", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestReportHandler_ListForwardsQuery(t *testing.T) {
	svc := &mockReportService{listResp: dto.ReportListResponse{Count: 2, Limit: 5}}
	app := newReportApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/reports?kind=daily-activity&limit=5&view=lite", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, "daily-activity", svc.listKind)
	require.Equal(t, 5, svc.listLimit)
	require.True(t, svc.listLite)

	resp, err = app.Test(httptest.NewRequest(http.MethodGet, "/api/v1/reports?limit=five", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}

func TestReportHandler_DeleteByID(t *testing.T) {
	svc := &mockReportService{}
	app := newReportApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/reports/9", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)
	require.Equal(t, uint(9), svc.deletedID)

	svc.deleteErr = service.ErrReportNotFound
	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/reports/9", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusNotFound, resp.StatusCode)
}

func TestReportHandler_DeleteByNaturalKey(t *testing.T) {
	svc := &mockReportService{deleteKeyResp: dto.ReportDeleteResponse{Removed: 1}}
	app := newReportApp(svc)

	resp, err := app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/reports?kind=daily-activity&date=2026-01-10", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusOK, resp.StatusCode)

	var response struct {
		Data struct {
			Removed int64 `json:"removed"`
		} `json:"data"`
	}
	decodeResponse(t, resp, &response)
	require.Equal(t, int64(1), response.Data.Removed)

	svc.deleteKeyErr = fmt.Errorf("%w: kind is required", service.ErrReportInvalid)
	resp, err = app.Test(httptest.NewRequest(http.MethodDelete, "/api/v1/reports", nil))
	require.NoError(t, err)
	require.Equal(t, fiber.StatusBadRequest, resp.StatusCode)
}
