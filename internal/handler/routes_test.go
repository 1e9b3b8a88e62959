package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/labstack/echo/v4"

	"coi-proxy-go/internal/client"
	"coi-proxy-go/internal/isolation"
	"coi-proxy-go/internal/metrics"
	"coi-proxy-go/internal/service"
)

func TestRegisterRoutes_Wiring(t *testing.T) {
	var originHits []string
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		originHits = append(originHits, r.URL.Path)
		w.Header().Set("Content-Type", "text/plain")
		_, _ = w.Write([]byte("from origin"))
	}))
	defer origin.Close()

	cfg := newTestConfig(origin.URL)
	cfg.Metrics.Enabled = true
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	m := metrics.New()
	oc := client.NewOriginClient(cfg, logger, m)
	svc, err := service.NewProxyService(oc, cfg, logger, m)
	if err != nil {
		t.Fatalf("NewProxyService: %v", err)
	}

	proxy := NewProxyHandler(svc, logger)
	health := NewHealthHandler(cfg, "test")

	e := echo.New()
	RegisterRoutes(e, cfg, m, proxy, health)

	tests := []struct {
		name        string
		method      string
		path        string
		wantStatus  int
		wantProxied bool
	}{
		{"GET /healthz", http.MethodGet, "/healthz", http.StatusOK, false},
		{"GET /proxy/status", http.MethodGet, "/proxy/status", http.StatusOK, false},
		{"GET /metrics", http.MethodGet, "/metrics", http.StatusOK, false},
		{"GET /", http.MethodGet, "/", http.StatusOK, true},
		{"GET /index.html", http.MethodGet, "/index.html", http.StatusOK, true},
		{"POST /api/upload", http.MethodPost, "/api/upload", http.StatusOK, true},
		{"GET /healthz/deep", http.MethodGet, "/healthz/deep", http.StatusOK, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			originHits = nil
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
			proxied := len(originHits) == 1
			if proxied != tt.wantProxied {
				t.Errorf("proxied = %v, want %v", proxied, tt.wantProxied)
			}
			hasPolicy := rec.Header().Get(isolation.HeaderOpenerPolicy) != ""
			if hasPolicy != tt.wantProxied {
				t.Errorf("isolation headers present = %v, want %v", hasPolicy, tt.wantProxied)
			}
		})
	}
}

func TestRegisterRoutes_MetricsDisabledIsProxied(t *testing.T) {
	var hit bool
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hit = true
	}))
	defer origin.Close()

	cfg := newTestConfig(origin.URL)
	cfg.Metrics.Enabled = false

	e := echo.New()
	RegisterRoutes(e, cfg, metrics.New(), newTestProxyHandler(t, cfg), NewHealthHandler(cfg, "test"))

	req := httptest.NewRequest(http.MethodGet, "/metrics", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if !hit {
		t.Error("expected /metrics to reach the origin when metrics are disabled")
	}
}

func TestRegisterRoutes_MetricsExposition(t *testing.T) {
	cfg := newTestConfig("http://127.0.0.1:1")
	cfg.Metrics.Enabled = true
	cfg.Metrics.Path = "/internal/metrics"
	m := metrics.New()
	m.PolicyOverrides.WithLabelValues(isolation.HeaderEmbedderPolicy).Inc()

	e := echo.New()
	RegisterRoutes(e, cfg, m, newTestProxyHandler(t, cfg), NewHealthHandler(cfg, "test"))

	req := httptest.NewRequest(http.MethodGet, "/internal/metrics", http.NoBody)
	rec := httptest.NewRecorder()
	e.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
	}
	if !strings.Contains(rec.Body.String(), "coi_proxy_policy_overrides_total") {
		t.Error("expected coi_proxy_policy_overrides_total in exposition output")
	}
}

func TestRegisterRoutes_NonStandardMethodsProxied(t *testing.T) {
	var gotMethod, gotPath string
	origin := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotMethod, gotPath = r.Method, r.URL.Path
		w.WriteHeader(http.StatusCreated)
	}))
	defer origin.Close()

	cfg := newTestConfig(origin.URL)
	e := echo.New()
	e.HTTPErrorHandler = ErrorHandler(slog.New(slog.NewTextHandler(io.Discard, nil)))
	RegisterRoutes(e, cfg, nil, newTestProxyHandler(t, cfg), NewHealthHandler(cfg, "test"))

	tests := []struct {
		method string
		path   string
	}{
		{"PURGE", "/x"},
		{"MKCOL", "/dav/"},
		{"PROPFIND", "/"},
		{"PURGE", "/healthz"},
	}

	for _, tt := range tests {
		t.Run(tt.method+" "+tt.path, func(t *testing.T) {
			gotMethod, gotPath = "", ""
			req := httptest.NewRequest(tt.method, tt.path, http.NoBody)
			rec := httptest.NewRecorder()
			e.ServeHTTP(rec, req)

			if rec.Code != http.StatusCreated {
				t.Errorf("status = %d, want %d", rec.Code, http.StatusCreated)
			}
			if gotMethod != tt.method || gotPath != tt.path {
				t.Errorf("origin saw %s %s, want %s %s", gotMethod, gotPath, tt.method, tt.path)
			}
			if rec.Header().Get(isolation.HeaderOpenerPolicy) != isolation.OpenerPolicySameOrigin {
				t.Error("missing isolation headers")
			}
		})
	}
}
