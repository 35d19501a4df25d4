package handlers

import (
	"net/http"
	"time"

	"github.com/gorilla/mux"

	"photo-library/internal/logging"
	"photo-library/internal/metrics"
)

type statusRecorder struct {
	http.ResponseWriter
	status int
}

func (r *statusRecorder) WriteHeader(status int) {
	r.status = status
	r.ResponseWriter.WriteHeader(status)
}

// Instrument wraps every route with request logging and metrics. The route
// template, not the raw URL, labels the metrics so ids do not explode the
// cardinality.
func Instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		recorder := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		next.ServeHTTP(recorder, r)

		path := r.URL.Path
		if route := mux.CurrentRoute(r); route != nil {
			if template, err := route.GetPathTemplate(); err == nil {
				path = template
			}
		}

		duration := time.Since(start)
		metrics.HTTPRequestsTotal.WithLabelValues(r.Method, path, http.StatusText(recorder.status)).Inc()
		metrics.HTTPRequestDuration.WithLabelValues(r.Method, path).Observe(duration.Seconds())
		logging.Debug("%s %s -> %d (%s)", r.Method, r.URL.Path, recorder.status, duration.Round(time.Millisecond))
	})
}
