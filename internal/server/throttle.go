package server

import (
	"math/rand/v2"
	"net/http"
	"sync"
	"time"

	"github.com/sipico/practice-server/internal/metrics"
)

// throttleDelay is 500ms plus up to 500ms of jitter.
func throttleDelay() time.Duration {
	return 500*time.Millisecond + rand.N(500*time.Millisecond)
}

// throttle holds back every response while the throttle flag is on. The
// flag is read once the handler starts writing, so the request that turns
// throttling on is itself delayed.
func (a *App) throttle(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		tw := &throttledWriter{ResponseWriter: w, wait: func() {
			if !a.Flags.Throttle() {
				return
			}
			metrics.RecordThrottled()
			select {
			case <-time.After(a.delay()):
			case <-r.Context().Done():
			}
		}}
		next.ServeHTTP(tw, r)
		tw.once.Do(tw.wait)
	})
}

type throttledWriter struct {
	http.ResponseWriter
	wait func()
	once sync.Once
}

func (w *throttledWriter) WriteHeader(code int) {
	w.once.Do(w.wait)
	w.ResponseWriter.WriteHeader(code)
}

func (w *throttledWriter) Write(b []byte) (int, error) {
	w.once.Do(w.wait)
	return w.ResponseWriter.Write(b)
}
