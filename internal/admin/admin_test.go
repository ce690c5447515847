package admin

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/go-chi/chi/v5"
)

type fakeStats []string

func (f fakeStats) Collections() []string { return f }

func newRouter(h *Handler) http.Handler {
	r := chi.NewRouter()
	h.Routes(r)
	return r
}

func TestHandleHealth(t *testing.T) {
	h := NewHandler(fakeStats{"games"}, nil, slog.Default())

	w := httptest.NewRecorder()
	h.HandleHealth(w, httptest.NewRequest("GET", "/health", nil))

	if w.Code != http.StatusOK {
		t.Errorf("expected status 200, got %d", w.Code)
	}
	var resp map[string]string
	if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
		t.Fatalf("failed to decode response: %v", err)
	}
	if resp["status"] != "ok" {
		t.Errorf("expected status=ok, got %s", resp["status"])
	}
	if ct := w.Header().Get("Content-Type"); ct != "application/json" {
		t.Errorf("expected Content-Type application/json, got %s", ct)
	}
}

func TestHandleReady(t *testing.T) {
	tests := []struct {
		name            string
		store           Stats
		wantStatus      int
		wantCollections float64
	}{
		{"store wired", fakeStats{"games", "comments"}, http.StatusOK, 2},
		{"empty store", fakeStats{}, http.StatusOK, 0},
		{"no store", nil, http.StatusServiceUnavailable, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			h := NewHandler(tt.store, nil, nil)

			w := httptest.NewRecorder()
			h.HandleReady(w, httptest.NewRequest("GET", "/ready", nil))

			if w.Code != tt.wantStatus {
				t.Errorf("expected status %d, got %d", tt.wantStatus, w.Code)
			}
			var resp map[string]any
			if err := json.NewDecoder(w.Body).Decode(&resp); err != nil {
				t.Fatalf("failed to decode response: %v", err)
			}
			if tt.wantStatus == http.StatusOK && resp["collections"] != tt.wantCollections {
				t.Errorf("collections = %v, want %v", resp["collections"], tt.wantCollections)
			}
		})
	}
}

func TestHandleSetLogLevel(t *testing.T) {
	tests := []struct {
		name       string
		admin      bool
		body       string
		wantStatus int
		wantLevel  slog.Level
	}{
		{"debug", true, `{"level":"debug"}`, http.StatusOK, slog.LevelDebug},
		{"error", true, `{"level":"error"}`, http.StatusOK, slog.LevelError},
		{"unknown level", true, `{"level":"trace"}`, http.StatusBadRequest, slog.LevelInfo},
		{"invalid json", true, `{`, http.StatusBadRequest, slog.LevelInfo},
		{"no admin header", false, `{"level":"debug"}`, http.StatusForbidden, slog.LevelInfo},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			level := new(slog.LevelVar)
			router := newRouter(NewHandler(fakeStats{}, level, nil))

			req := httptest.NewRequest("POST", "/admin/api/loglevel", strings.NewReader(tt.body))
			if tt.admin {
				req.Header.Set(HeaderAdmin, "1")
			}
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			if w.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", w.Code, tt.wantStatus, w.Body.String())
			}
			if level.Level() != tt.wantLevel {
				t.Errorf("level = %v, want %v", level.Level(), tt.wantLevel)
			}
		})
	}
}

func TestRequireAdmin_EmptyHeaderValueCounts(t *testing.T) {
	called := false
	h := RequireAdmin(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) { called = true }))

	req := httptest.NewRequest("POST", "/admin/api/loglevel", nil)
	req.Header[HeaderAdmin] = []string{""}
	h.ServeHTTP(httptest.NewRecorder(), req)

	if !called {
		t.Error("X-Admin with an empty value should be accepted")
	}
}

func TestHandleRedirect(t *testing.T) {
	router := newRouter(NewHandler(nil, nil, nil))

	req := httptest.NewRequest("GET", "/admin", nil)
	req.Host = "localhost:3030"
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	if w.Code != http.StatusFound {
		t.Fatalf("status = %d, want 302", w.Code)
	}
	if loc := w.Header().Get("Location"); loc != "http://localhost:3030/admin/" {
		t.Errorf("Location = %q", loc)
	}
}

func TestHandlePanel_Embedded(t *testing.T) {
	router := newRouter(NewHandler(nil, nil, nil))

	for _, path := range []string{"/admin/", "/admin/collections/games"} {
		w := httptest.NewRecorder()
		router.ServeHTTP(w, httptest.NewRequest("GET", path, nil))

		if w.Code != http.StatusOK {
			t.Errorf("GET %s status = %d, want 200", path, w.Code)
		}
		if !strings.Contains(w.Body.String(), "Admin Panel") {
			t.Errorf("GET %s did not serve the panel", path)
		}
	}

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/admin/app.js", nil))
	if w.Code != http.StatusNotFound {
		t.Errorf("script outside dev mode: status = %d, want 404", w.Code)
	}
}

func TestHandlePanel_DevMode(t *testing.T) {
	dir := t.TempDir()
	if err := os.WriteFile(filepath.Join(dir, "index.html"), []byte("<p>dev panel</p>"), 0o600); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(filepath.Join(dir, "app.js"), []byte("start();"), 0o600); err != nil {
		t.Fatal(err)
	}
	router := newRouter(NewHandler(nil, nil, nil, WithDevMode(dir)))

	tests := []struct {
		path       string
		wantStatus int
		wantType   string
		wantBody   string
	}{
		{"/admin/", http.StatusOK, "text/html; charset=utf-8", "<p>dev panel</p>"},
		{"/admin/app.js", http.StatusOK, "application/javascript", "start();"},
		{"/admin/missing.js", http.StatusNotFound, "", ""},
		{"/admin/../../etc/passwd.js", http.StatusNotFound, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.path, func(t *testing.T) {
			w := httptest.NewRecorder()
			router.ServeHTTP(w, httptest.NewRequest("GET", tt.path, nil))

			if w.Code != tt.wantStatus {
				t.Fatalf("status = %d, want %d", w.Code, tt.wantStatus)
			}
			if tt.wantStatus != http.StatusOK {
				return
			}
			if ct := w.Header().Get("Content-Type"); ct != tt.wantType {
				t.Errorf("Content-Type = %q, want %q", ct, tt.wantType)
			}
			if w.Body.String() != tt.wantBody {
				t.Errorf("body = %q, want %q", w.Body.String(), tt.wantBody)
			}
		})
	}
}

func TestHandleFavicon(t *testing.T) {
	router := newRouter(NewHandler(nil, nil, nil))

	w := httptest.NewRecorder()
	router.ServeHTTP(w, httptest.NewRequest("GET", "/favicon.ico", nil))

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200", w.Code)
	}
	if ct := w.Header().Get("Content-Type"); ct != "image/png" {
		t.Errorf("Content-Type = %q, want image/png", ct)
	}
	if w.Header().Get("Content-Length") == "" || w.Body.Len() == 0 {
		t.Error("favicon should have a body and Content-Length")
	}
}
