package httpapi

import (
	"net/http"
	"time"

	"github.com/sirupsen/logrus"
)

// NewHandler returns the production handler (mux + observability middleware).
//
// Tests can still use NewMux directly to avoid noisy logs unless needed.
func NewHandler(opt Options) (http.Handler, error) {
	opt = opt.withDefaults()
	mux, err := NewMux(opt)
	if err != nil {
		return nil, err
	}
	return withObservability(mux, opt.Logger), nil
}

type statusWriter struct {
	http.ResponseWriter
	status int
	bytes  int
}

func (w *statusWriter) Unwrap() http.ResponseWriter { return w.ResponseWriter }

func (w *statusWriter) WriteHeader(statusCode int) {
	w.status = statusCode
	w.ResponseWriter.WriteHeader(statusCode)
}

func (w *statusWriter) Write(p []byte) (int, error) {
	if w.status == 0 {
		w.status = http.StatusOK
	}
	n, err := w.ResponseWriter.Write(p)
	w.bytes += n
	return n, err
}

func withObservability(next http.Handler, log logrus.FieldLogger) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()

		sw := &statusWriter{ResponseWriter: w}
		next.ServeHTTP(sw, r)

		status := sw.status
		if status == 0 {
			status = http.StatusOK
		}

		pattern := r.Pattern
		if pattern == "" {
			// Keep it low-cardinality; the query string may carry subscription tokens.
			pattern = r.Method + " " + r.URL.Path
		}

		metricsIncRequest(pattern, status)

		if r.URL.Path != "/healthz" && r.URL.Path != "/metrics" {
			log.WithFields(logrus.Fields{
				"method":  r.Method,
				"path":    r.URL.Path,
				"pattern": pattern,
				"status":  status,
				"dur":     time.Since(start).Round(time.Millisecond),
				"bytes":   sw.bytes,
			}).Info("http")
		}
	})
}
