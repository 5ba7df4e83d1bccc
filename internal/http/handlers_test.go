package httpapi

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/micro-ha/netduma-telemetry/internal/aggregator"
	"github.com/micro-ha/netduma-telemetry/internal/model"
	"github.com/micro-ha/netduma-telemetry/internal/poller"
	"github.com/micro-ha/netduma-telemetry/internal/service"
	"github.com/micro-ha/netduma-telemetry/internal/state"
	"github.com/micro-ha/netduma-telemetry/internal/storage"
)

type stubRouter struct{}

func (s stubRouter) GetAllDevices(context.Context) ([]map[string]any, error) {
	return []map[string]any{
		{
			"devid": "1",
			"uhost": "laptop",
			"interfaces": []any{
				map[string]any{"mac": "AA:BB:CC:DD:EE:01"},
			},
		},
	}, nil
}

func (s stubRouter) GetValidOnlineInterfaces(context.Context) ([]map[string]any, error) {
	return []map[string]any{{"mac": "AA:BB:CC:DD:EE:01"}}, nil
}

func (s stubRouter) GetDHCPLeases(context.Context) ([]map[string]any, error) {
	return []map[string]any{{"ip": "10.0.0.5", "mac": "AA:BB:CC:DD:EE:01"}}, nil
}

func (s stubRouter) GetUploadTree(context.Context) (map[string]any, error) {
	return map[string]any{}, nil
}

func (s stubRouter) GetDownloadTree(context.Context) (map[string]any, error) {
	return map[string]any{}, nil
}

func (s stubRouter) GetThrotPercentage(context.Context) ([]int, error) {
	return []int{100}, nil
}

func (s stubRouter) GetSystemInfo(context.Context) (map[string]any, error) {
	return map[string]any{"version": "3.0.179"}, nil
}

type stubConfig struct{ configured bool }

func (s stubConfig) Get() (model.RouterConfig, bool) {
	if !s.configured {
		return model.RouterConfig{}, false
	}
	return model.RouterConfig{Version: 1, Host: "192.168.1.1"}, true
}

type fixture struct {
	handler http.Handler
	service *service.Service
}

func newFixture(t *testing.T, configured bool) fixture {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	repo, err := storage.New(context.Background(), filepath.Join(t.TempDir(), "devices.db"), logger)
	if err != nil {
		t.Fatalf("open repository: %v", err)
	}
	t.Cleanup(func() { _ = repo.Close() })

	provider := stubConfig{configured: configured}
	svc := service.New(state.New(), repo, aggregator.New(), provider, nil, logger, func(model.RouterConfig) service.RouterClient {
		return stubRouter{}
	})
	p := poller.New(svc, provider, logger)
	return fixture{handler: NewRouter(New(svc, p, logger)), service: svc}
}

func doRequest(t *testing.T, handler http.Handler, method, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	var reader io.Reader
	if body != "" {
		reader = strings.NewReader(body)
	}
	req := httptest.NewRequest(method, path, reader)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)
	return rec
}

func TestHealthz(t *testing.T) {
	fx := newFixture(t, true)
	rec := doRequest(t, fx.handler, http.MethodGet, "/healthz", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("healthz status %d", rec.Code)
	}
	var body map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["status"] != "ok" || body["primed"] != false {
		t.Fatalf("unexpected health body: %v", body)
	}
}

func TestStateAlwaysHasFourSections(t *testing.T) {
	fx := newFixture(t, true)
	rec := doRequest(t, fx.handler, http.MethodGet, "/api/state", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("state status %d", rec.Code)
	}
	var body map[string]json.RawMessage
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	for _, key := range []string{"devices", "presence", "traffic", "system"} {
		raw, ok := body[key]
		if !ok || string(raw) == "null" {
			t.Fatalf("missing section %q: %s", key, rec.Body.String())
		}
	}
}

func TestDeviceEndpointsAfterRefresh(t *testing.T) {
	fx := newFixture(t, true)
	if err := fx.service.RefreshFull(context.Background()); err != nil {
		t.Fatalf("RefreshFull: %v", err)
	}

	rec := doRequest(t, fx.handler, http.MethodGet, "/api/devices", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("list status %d: %s", rec.Code, rec.Body.String())
	}
	var views []model.DeviceView
	if err := json.Unmarshal(rec.Body.Bytes(), &views); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(views) != 1 || views[0].Name != "laptop" || !views[0].Online {
		t.Fatalf("unexpected views: %+v", views)
	}

	rec = doRequest(t, fx.handler, http.MethodPatch, "/api/devices/1", `{"name":"work laptop"}`)
	if rec.Code != http.StatusOK {
		t.Fatalf("patch status %d: %s", rec.Code, rec.Body.String())
	}
	var view model.DeviceView
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Name != "work laptop" {
		t.Fatalf("patch not reflected: %+v", view)
	}

	rec = doRequest(t, fx.handler, http.MethodGet, "/api/devices/1", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("get status %d", rec.Code)
	}

	rec = doRequest(t, fx.handler, http.MethodDelete, "/api/devices/1", "")
	if rec.Code != http.StatusNoContent {
		t.Fatalf("delete status %d: %s", rec.Code, rec.Body.String())
	}
	rec = doRequest(t, fx.handler, http.MethodGet, "/api/devices/1", "")
	if err := json.Unmarshal(rec.Body.Bytes(), &view); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if view.Name != "laptop" {
		t.Fatalf("expected router name restored after registry delete: %+v", view)
	}

	rec = doRequest(t, fx.handler, http.MethodDelete, "/api/devices/1", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("second delete should be 404, got %d", rec.Code)
	}
}

func TestGetDeviceNotFound(t *testing.T) {
	fx := newFixture(t, true)
	rec := doRequest(t, fx.handler, http.MethodGet, "/api/devices/99", "")
	if rec.Code != http.StatusNotFound {
		t.Fatalf("expected 404, got %d", rec.Code)
	}
}

func TestPatchDeviceValidation(t *testing.T) {
	fx := newFixture(t, true)
	if err := fx.service.RefreshFull(context.Background()); err != nil {
		t.Fatalf("RefreshFull: %v", err)
	}

	rec := doRequest(t, fx.handler, http.MethodPatch, "/api/devices/1", `{}`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("empty patch should be 400, got %d", rec.Code)
	}
	rec = doRequest(t, fx.handler, http.MethodPatch, "/api/devices/1", `not json`)
	if rec.Code != http.StatusBadRequest {
		t.Fatalf("malformed body should be 400, got %d", rec.Code)
	}
	rec = doRequest(t, fx.handler, http.MethodPatch, "/api/devices/99", `{"name":"ghost"}`)
	if rec.Code != http.StatusNotFound {
		t.Fatalf("unknown id should be 404, got %d", rec.Code)
	}
}

func TestLeasesWhenNotConfigured(t *testing.T) {
	fx := newFixture(t, false)
	rec := doRequest(t, fx.handler, http.MethodGet, "/api/leases", "")
	if rec.Code != http.StatusServiceUnavailable {
		t.Fatalf("expected 503, got %d: %s", rec.Code, rec.Body.String())
	}
	var body map[string]map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &body); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if body["error"]["code"] != "not_configured" {
		t.Fatalf("unexpected error envelope: %v", body)
	}
}

func TestLeasesWhenConfigured(t *testing.T) {
	fx := newFixture(t, true)
	rec := doRequest(t, fx.handler, http.MethodGet, "/api/leases", "")
	if rec.Code != http.StatusOK {
		t.Fatalf("leases status %d: %s", rec.Code, rec.Body.String())
	}
	var leases []map[string]any
	if err := json.Unmarshal(rec.Body.Bytes(), &leases); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if len(leases) != 1 || leases[0]["ip"] != "10.0.0.5" {
		t.Fatalf("unexpected leases: %v", leases)
	}
}

func TestRefreshIsAccepted(t *testing.T) {
	fx := newFixture(t, true)
	rec := doRequest(t, fx.handler, http.MethodPost, "/api/refresh", "")
	if rec.Code != http.StatusAccepted {
		t.Fatalf("expected 202, got %d", rec.Code)
	}
}

func TestIngressPrefixStripped(t *testing.T) {
	fx := newFixture(t, true)
	req := httptest.NewRequest(http.MethodGet, "/hassio/ingress/abc123/healthz", nil)
	req.Header.Set("X-Ingress-Path", "/hassio/ingress/abc123")
	rec := httptest.NewRecorder()
	fx.handler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("expected ingress-prefixed path routed, got %d", rec.Code)
	}
}
