package handler

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/hitoshi/notescope/internal/middleware"
)

func newTestRouter(t *testing.T, svc SearchServiceInterface, prefs PrefServiceInterface) http.Handler {
	t.Helper()

	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	return NewRouter(&RouterDeps{
		Logger:            slog.New(slog.NewJSONHandler(io.Discard, nil)),
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		SearchService:     svc,
		UserResolver:      &mockUserResolver{},
		ActivityProvider:  &mockActivityProvider{},
		PrefService:       prefs,
	})
}

func TestRouter_HealthCheck(t *testing.T) {
	router := newTestRouter(t, &mockSearchService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Result().StatusCode)
	}
}

func TestRouter_RoutesAreRegistered(t *testing.T) {
	router := newTestRouter(t, &mockSearchService{}, &mockPrefService{})

	tests := []struct {
		name   string
		method string
		path   string
	}{
		{"検索", http.MethodGet, "/api/notes/search"},
		{"検索キャンセル", http.MethodPost, "/api/notes/search/cancel"},
		{"検索状態", http.MethodGet, "/api/notes/search/status"},
		{"ノート取得", http.MethodGet, "/api/notes/123"},
		{"アクティビティ", http.MethodGet, "/api/activity"},
		{"設定一覧", http.MethodGet, "/api/prefs"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(tt.method, tt.path, nil)
			w := httptest.NewRecorder()

			router.ServeHTTP(w, req)

			// ルートが存在すれば404/405にはならない
			status := w.Result().StatusCode
			if status == http.StatusNotFound && tt.path != "/api/notes/123" {
				t.Errorf("%s %s: status = 404, route not registered", tt.method, tt.path)
			}
			if status == http.StatusMethodNotAllowed {
				t.Errorf("%s %s: status = 405, method not registered", tt.method, tt.path)
			}
		})
	}
}

func TestRouter_PrefsRoutesAbsentWithoutService(t *testing.T) {
	router := newTestRouter(t, &mockSearchService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/api/prefs", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", w.Result().StatusCode)
	}
}

func TestRouter_CORSHeadersApplied(t *testing.T) {
	router := newTestRouter(t, &mockSearchService{}, nil)

	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if got := w.Result().Header.Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
		t.Errorf("Access-Control-Allow-Origin = %q, want %q", got, "http://localhost:3000")
	}
}

func TestRouter_MetricsRouteOptional(t *testing.T) {
	rl := middleware.NewRateLimiter(middleware.DefaultRateLimiterConfig())
	t.Cleanup(rl.Stop)

	router := NewRouter(&RouterDeps{
		Logger:            slog.New(slog.NewJSONHandler(io.Discard, nil)),
		CORSAllowedOrigin: "http://localhost:3000",
		RateLimiter:       rl,
		SearchService:     &mockSearchService{},
		UserResolver:      &mockUserResolver{},
		ActivityProvider:  &mockActivityProvider{},
		MetricsHandler: http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
		}),
	})

	req := httptest.NewRequest(http.MethodGet, "/metrics", nil)
	w := httptest.NewRecorder()

	router.ServeHTTP(w, req)

	if w.Result().StatusCode != http.StatusOK {
		t.Errorf("status = %d, want 200", w.Result().StatusCode)
	}
}
