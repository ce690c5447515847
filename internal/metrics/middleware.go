package metrics

import (
	"net/http"
	"regexp"
	"strings"
	"time"
)

// idSegment matches numeric and uuid-shaped path segments.
var idSegment = regexp.MustCompile(`^(\d+|[0-9a-fA-F]{8}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{4}-[0-9a-fA-F]{12})$`)

// knownRoots are the first path segments kept verbatim in the path label.
var knownRoots = map[string]bool{
	"data":        true,
	"users":       true,
	"jsonstore":   true,
	"util":        true,
	"admin":       true,
	"health":      true,
	"ready":       true,
	"favicon.ico": true,
}

type statusRecorder struct {
	http.ResponseWriter
	statusCode int
	written    bool
}

func (r *statusRecorder) WriteHeader(code int) {
	if !r.written {
		r.statusCode = code
		r.written = true
		r.ResponseWriter.WriteHeader(code)
	}
}

func (r *statusRecorder) Write(b []byte) (int, error) {
	if !r.written {
		r.statusCode = http.StatusOK
		r.written = true
	}
	return r.ResponseWriter.Write(b)
}

// Middleware records the request counter and latency histogram. It must sit
// outside the panic recoverer so recovered panics are counted as 500s.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		rec := &statusRecorder{ResponseWriter: w, statusCode: http.StatusOK}
		start := time.Now()

		next.ServeHTTP(rec, r)

		status := http.StatusText(rec.statusCode)
		if status == "" {
			status = "UNKNOWN"
		}
		path := normalizePath(r.URL.Path)
		RecordRequest(r.Method, path, status)
		RecordRequestDuration(r.Method, path, status, time.Since(start).Seconds())
	})
}

// normalizePath maps a request path onto a bounded label.
//
//	/data/games/ff436770-76c5-40e2-b231-77409eda7a61 -> /data/games/:id
//	/jsonstore/todos/a/b -> /jsonstore/todos/:id/:id
//	/admin/collections/games -> /admin/*
//	/nothing/here -> /:service
func normalizePath(path string) string {
	segments := strings.Split(path, "/")
	kept := 0
	for i, seg := range segments {
		if seg == "" {
			continue
		}
		kept++
		switch {
		case kept == 1 && seg == "admin" && i < len(segments)-1:
			return "/admin/*"
		case kept == 1 && !knownRoots[seg]:
			return "/:service"
		case kept > 2 || idSegment.MatchString(seg):
			segments[i] = ":id"
		}
	}
	return strings.Join(segments, "/")
}
