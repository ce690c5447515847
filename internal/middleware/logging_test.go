package middleware

import (
	"bytes"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/sipico/practice-server/internal/logging"
)

func debugLogger(buf *bytes.Buffer) *slog.Logger {
	return slog.New(slog.NewJSONHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func TestHTTPLogging_DebugMode(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`[{"_id":"g1"}]`)) //nolint:errcheck
	})

	req := httptest.NewRequest("GET", "/data/games?sortBy=title", nil)
	HTTPLogging(debugLogger(&buf), nil)(handler).ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	for _, want := range []string{`"msg":"HTTP Request"`, `"msg":"HTTP Response"`, "/data/games", "sortBy=title", `"status_code":200`} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %s: %s", want, out)
		}
	}
}

func TestHTTPLogging_InfoMode_NoLogs(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, &slog.HandlerOptions{Level: slog.LevelInfo}))
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})

	HTTPLogging(logger, logging.SensitiveFields)(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/", nil))

	if buf.Len() != 0 {
		t.Errorf("Expected no logs in INFO mode, got: %s", buf.String())
	}
}

func TestHTTPLogging_MasksAccessToken(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.Header.Get("X-Authorization"); got != "9f3c2a7b4e1d" {
			t.Errorf("handler saw X-Authorization = %q, want the raw token", got)
		}
	})

	req := httptest.NewRequest("GET", "/users/me", nil)
	req.Header.Set("X-Authorization", "9f3c2a7b4e1d")
	HTTPLogging(debugLogger(&buf), logging.SensitiveFields)(handler).ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	if strings.Contains(out, "9f3c2a7b4e1d") {
		t.Errorf("log output contains raw token: %s", out)
	}
	if !strings.Contains(out, "****4e1d") {
		t.Errorf("log output missing masked token: %s", out)
	}
}

func TestHTTPLogging_RedactsSensitiveFields(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"_id":"u1","email":"peter@abv.bg","accessToken":"tok-abc123"}`)) //nolint:errcheck
	})

	body := `{"email":"peter@abv.bg","password":"hunter22"}`
	req := httptest.NewRequest("POST", "/users/login", strings.NewReader(body))
	HTTPLogging(debugLogger(&buf), logging.SensitiveFields)(handler).ServeHTTP(httptest.NewRecorder(), req)

	out := buf.String()
	if strings.Contains(out, "hunter22") {
		t.Errorf("request password leaked into log: %s", out)
	}
	if strings.Contains(out, "tok-abc123") {
		t.Errorf("response accessToken leaked into log: %s", out)
	}
	if !strings.Contains(out, "peter@abv.bg") {
		t.Errorf("non-sensitive field should be logged: %s", out)
	}
}

func TestHTTPLogging_IncludesRequestID(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := HTTPLogging(debugLogger(&buf), nil)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest("GET", "/data", nil)
	req.Header.Set("X-Request-ID", "req-42")
	RequestID(handler).ServeHTTP(httptest.NewRecorder(), req)

	if strings.Count(buf.String(), `"request_id":"req-42"`) != 2 {
		t.Errorf("expected request id on both log lines: %s", buf.String())
	}
}

func TestHTTPLogging_CapturesStatusCode(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	})

	HTTPLogging(debugLogger(&buf), nil)(handler).ServeHTTP(httptest.NewRecorder(), httptest.NewRequest("GET", "/data/missing/1", nil))

	if !strings.Contains(buf.String(), `"status_code":404`) {
		t.Errorf("expected status 404 in log: %s", buf.String())
	}
}

func TestHTTPLogging_BinaryBody(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {})

	req := httptest.NewRequest("POST", "/data/files", bytes.NewReader([]byte{0xff, 0xfe, 0x00, 0x01}))
	HTTPLogging(debugLogger(&buf), logging.SensitiveFields)(handler).ServeHTTP(httptest.NewRecorder(), req)

	if !strings.Contains(buf.String(), "[BINARY: 4 bytes]") {
		t.Errorf("expected binary marker in log: %s", buf.String())
	}
}

func TestHTTPLogging_RequestBodyRestored(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	body := `{"title":"Pong","password":"x"}`
	var seen string
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		seen = string(b)
	})

	req := httptest.NewRequest("POST", "/data/games", strings.NewReader(body))
	HTTPLogging(debugLogger(&buf), logging.SensitiveFields)(handler).ServeHTTP(httptest.NewRecorder(), req)

	if seen != body {
		t.Errorf("handler body = %q, want %q", seen, body)
	}
}

func TestHTTPLogging_ResponsePassedThrough(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"_id":"abc"}`)) //nolint:errcheck
	})

	rec := httptest.NewRecorder()
	HTTPLogging(debugLogger(&buf), nil)(handler).ServeHTTP(rec, httptest.NewRequest("POST", "/data/games", nil))

	if rec.Code != http.StatusCreated {
		t.Errorf("status = %d, want %d", rec.Code, http.StatusCreated)
	}
	if rec.Body.String() != `{"_id":"abc"}` {
		t.Errorf("body = %q, want it written once", rec.Body.String())
	}
}

func TestHTTPLogging_LargeBodyNotBuffered(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	body := `{"password":"` + strings.Repeat("a", maxLoggedBody) + `"}`
	var seen int
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, err := io.ReadAll(r.Body)
		if err != nil {
			t.Fatalf("read body: %v", err)
		}
		seen = len(b)
	})

	req := httptest.NewRequest("POST", "/data/games", strings.NewReader(body))
	HTTPLogging(debugLogger(&buf), logging.SensitiveFields)(handler).ServeHTTP(httptest.NewRecorder(), req)

	if seen != len(body) {
		t.Errorf("handler read %d bytes, want %d", seen, len(body))
	}
	if !strings.Contains(buf.String(), "[TRUNCATED:") {
		t.Errorf("expected truncation marker in log: %.200s", buf.String())
	}
	if strings.Contains(buf.String(), "aaaa") {
		t.Error("oversized body should not be logged")
	}
}

func TestHTTPLogging_BodyLimitStillApplies(t *testing.T) {
	t.Parallel()

	var buf bytes.Buffer
	var readErr error
	handler := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, readErr = io.ReadAll(r.Body)
	})

	req := httptest.NewRequest("POST", "/data/games", strings.NewReader(strings.Repeat("x", 100)))
	chain := MaxBodySize(10)(HTTPLogging(debugLogger(&buf), nil)(handler))
	chain.ServeHTTP(httptest.NewRecorder(), req)

	if !IsBodyTooLarge(readErr) {
		t.Errorf("handler read error = %v, want body too large", readErr)
	}
}
