package middleware

import (
	"net/http"
	"time"

	"github.com/chatify/internal/logger"
)

// RequestLog логирует время каждого запроса; ответы 5xx пишутся как ошибки.
func RequestLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		sw := wrapWriter(w)
		next.ServeHTTP(sw, r)
		if sw.status >= http.StatusInternalServerError {
			logger.Errorf("http %s %s -> %d (%d ms)", r.Method, r.URL.Path, sw.status, time.Since(start).Milliseconds())
			return
		}
		logger.LogDuration("http "+r.Method+" "+r.URL.Path, start)
	})
}
