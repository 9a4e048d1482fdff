package middleware

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// SecurityHeaders sets conservative browser security headers.
func SecurityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h := w.Header()
		h.Set("X-Content-Type-Options", "nosniff")
		h.Set("X-Frame-Options", "DENY")
		h.Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

type statusWriter struct {
	http.ResponseWriter
	status int
}

func (w *statusWriter) WriteHeader(code int) {
	w.status = code
	w.ResponseWriter.WriteHeader(code)
}

func (w *statusWriter) Unwrap() http.ResponseWriter {
	return w.ResponseWriter
}

// Logging logs one line per request. Websocket upgrades are logged when
// they start, since the handler does not return until the socket closes.
func Logging(log logrus.FieldLogger) func(http.Handler) http.Handler {
	log = log.WithField("component", "http")
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			fields := logrus.Fields{"method": r.Method, "path": r.URL.Path, "remote": r.RemoteAddr}
			if r.Header.Get("Upgrade") == "websocket" {
				log.WithFields(fields).Info("websocket upgrade")
				next.ServeHTTP(w, r)
				return
			}
			sw := &statusWriter{ResponseWriter: w, status: http.StatusOK}
			start := time.Now()
			next.ServeHTTP(sw, r)
			fields["status"] = sw.status
			fields["duration"] = time.Since(start).String()
			log.WithFields(fields).Info("request")
		})
	}
}
