// Fleetglass - Vehicle Fleet Tracking and Telemetry
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/fleetglass

package api

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/goccy/go-json"

	"github.com/tomtom215/fleetglass/internal/config"
	"github.com/tomtom215/fleetglass/internal/models"
	"github.com/tomtom215/fleetglass/internal/store"
	syncpkg "github.com/tomtom215/fleetglass/internal/sync"
)

// stubClient implements sync.ClientInterface for API tests.
type stubClient struct {
	devicesFn func(ctx context.Context, limit, minutes int) (map[string]map[string]any, error)
	status    int
}

func (s *stubClient) GetDevices(ctx context.Context, limit, minutes int) (map[string]map[string]any, error) {
	if s.devicesFn == nil {
		return map[string]map[string]any{}, nil
	}
	return s.devicesFn(ctx, limit, minutes)
}

func (s *stubClient) GetZones(context.Context) (map[string]string, error) {
	return map[string]string{}, nil
}

func (s *stubClient) TestConnection(ctx context.Context) error {
	_, err := s.GetDevices(ctx, 1, 1)
	return err
}

func (s *stubClient) LastHTTPStatus() int { return s.status }

func testServerConfig() *config.Config {
	return &config.Config{
		Upstream: config.UpstreamConfig{MinutesWindow: 60, PointLimit: 1},
		Poll: config.PollConfig{
			Interval:       time.Second,
			InitialBackoff: 5 * time.Second,
			MaxBackoff:     300 * time.Second,
			ZoneCacheTTL:   10 * time.Minute,
		},
		Server: config.ServerConfig{
			CORSOrigins:     []string{"*"},
			RateLimitReqs:   1000,
			RateLimitWindow: time.Minute,
		},
	}
}

// newTestAPI builds the full routing tree over a stub upstream.
func newTestAPI(client *stubClient) (http.Handler, *store.Store, *syncpkg.Coordinator) {
	cfg := testServerConfig()
	st := store.New()
	zones := syncpkg.NewZoneResolver(client, cfg.Poll.ZoneCacheTTL)
	coordinator := syncpkg.NewCoordinator(client, zones, st, cfg)
	handler := NewHandler(coordinator, st, nil, cfg)
	router := NewRouter(handler, NewChiMiddlewareFromConfig(cfg.Server))
	return router.Setup(), st, coordinator
}

func decodeResponse(t *testing.T, rec *httptest.ResponseRecorder) models.APIResponse {
	t.Helper()
	var resp models.APIResponse
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("invalid response JSON: %v\n%s", err, rec.Body.String())
	}
	return resp
}

func TestVehiclesEmpty(t *testing.T) {
	h, _, _ := newTestAPI(&stubClient{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/vehicles", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	if data["count"].(float64) != 0 {
		t.Errorf("count = %v, want 0", data["count"])
	}
}

func TestVehiclesSortedByID(t *testing.T) {
	h, st, _ := newTestAPI(&stubClient{})
	st.Publish(models.Snapshot{
		"v2": &models.VehicleReading{ID: "v2", Name: "Bravo"},
		"v1": &models.VehicleReading{ID: "v1", Name: "Alpha"},
	}, true)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/vehicles", nil))

	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	vehicles := data["vehicles"].([]any)
	if len(vehicles) != 2 {
		t.Fatalf("vehicles = %v, want 2", vehicles)
	}
	first := vehicles[0].(map[string]any)
	if first["id"] != "v1" {
		t.Errorf("first vehicle = %v, want v1", first["id"])
	}
	if resp.Metadata.SnapshotVersion != st.Version() {
		t.Errorf("snapshot version = %q, want %q", resp.Metadata.SnapshotVersion, st.Version())
	}
}

func TestVehicleByID(t *testing.T) {
	h, st, _ := newTestAPI(&stubClient{})
	st.Publish(models.Snapshot{
		"v1": &models.VehicleReading{ID: "v1", Name: "Alpha"},
	}, true)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/vehicles/v1", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp.Data.(map[string]any)["name"] != "Alpha" {
		t.Errorf("data = %v, want Alpha", resp.Data)
	}
}

func TestVehicleNotFound(t *testing.T) {
	h, _, _ := newTestAPI(&stubClient{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/vehicles/ghost", nil))

	if rec.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want 404", rec.Code)
	}
	resp := decodeResponse(t, rec)
	if resp.Error == nil || resp.Error.Code != "NOT_FOUND" {
		t.Errorf("error = %+v, want NOT_FOUND", resp.Error)
	}
}

func TestStatusEndpoint(t *testing.T) {
	h, _, _ := newTestAPI(&stubClient{status: 200})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	resp := decodeResponse(t, rec)
	data := resp.Data.(map[string]any)
	if data["throttled"].(bool) {
		t.Error("fresh coordinator should not report throttled")
	}
	if data["last_http_status"].(float64) != 200 {
		t.Errorf("last_http_status = %v, want 200", data["last_http_status"])
	}
}

func TestRefreshSuccess(t *testing.T) {
	client := &stubClient{
		devicesFn: func(context.Context, int, int) (map[string]map[string]any, error) {
			return map[string]map[string]any{
				"1": {"id": "v1", "name": "Alpha"},
			}, nil
		},
	}
	h, st, _ := newTestAPI(client)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/refresh", nil))

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200\n%s", rec.Code, rec.Body.String())
	}
	if st.Count() != 1 {
		t.Errorf("store count = %d, want 1", st.Count())
	}
}

func TestRefreshErrorMapping(t *testing.T) {
	tests := []struct {
		name       string
		err        error
		wantStatus int
		wantCode   string
	}{
		{"auth", &syncpkg.AuthError{StatusCode: 401, Reason: "credentials rejected"}, http.StatusBadGateway, "UPSTREAM_AUTH"},
		{"endpoint", &syncpkg.EndpointError{StatusCode: 404, URL: "https://x"}, http.StatusBadGateway, "UPSTREAM_ENDPOINT"},
		{"connection", &syncpkg.ConnectionError{Err: errors.New("refused")}, http.StatusBadGateway, "UPSTREAM_UNAVAILABLE"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			client := &stubClient{
				devicesFn: func(context.Context, int, int) (map[string]map[string]any, error) {
					return nil, tt.err
				},
			}
			h, _, _ := newTestAPI(client)

			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/refresh", nil))

			if rec.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			resp := decodeResponse(t, rec)
			if resp.Error == nil || resp.Error.Code != tt.wantCode {
				t.Errorf("error = %+v, want code %s", resp.Error, tt.wantCode)
			}
		})
	}
}

func TestRefreshThrottled(t *testing.T) {
	client := &stubClient{
		devicesFn: func(context.Context, int, int) (map[string]map[string]any, error) {
			return nil, &syncpkg.ThrottleError{
				ObservedAt: time.Now().UTC(),
				Hint:       30 * time.Second,
				HasHint:    true,
			}
		},
	}
	h, _, _ := newTestAPI(client)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodPost, "/api/v1/refresh", nil))

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want 429\n%s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("Retry-After") == "" {
		t.Error("throttled refresh should carry Retry-After")
	}
	resp := decodeResponse(t, rec)
	if resp.Error == nil || resp.Error.Code != "UPSTREAM_THROTTLED" {
		t.Errorf("error = %+v, want UPSTREAM_THROTTLED", resp.Error)
	}
}

func TestHealthReadyLifecycle(t *testing.T) {
	client := &stubClient{
		devicesFn: func(context.Context, int, int) (map[string]map[string]any, error) {
			return map[string]map[string]any{"1": {"id": "v1", "name": "Alpha"}}, nil
		},
	}
	h, _, coordinator := newTestAPI(client)

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("ready before first success = %d, want 503", rec.Code)
	}

	if _, err := coordinator.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh() error: %v", err)
	}

	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health/ready", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("ready after success = %d, want 200", rec.Code)
	}
}

func TestHealthLiveAlwaysOK(t *testing.T) {
	h, _, _ := newTestAPI(&stubClient{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/health/live", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
}

func TestMetricsEndpoint(t *testing.T) {
	h, _, _ := newTestAPI(&stubClient{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/metrics", nil))
	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", rec.Code)
	}
	if !strings.Contains(rec.Body.String(), "fleetglass_") {
		t.Error("metrics output should contain fleetglass collectors")
	}
}

func TestRequestIDHeaderOnAPIRoutes(t *testing.T) {
	h, _, _ := newTestAPI(&stubClient{})

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/v1/status", nil))
	if rec.Header().Get("X-Request-ID") == "" {
		t.Error("responses should carry X-Request-ID")
	}
}
