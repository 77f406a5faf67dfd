package api

import (
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/okian/nutriplan/pkg/logger"
	"github.com/okian/nutriplan/pkg/metrics"
)

var errPanic = errors.New("handler panicked")

// instrument records request count and latency for endpoint, classifies
// failed responses and turns handler panics into a 500 logged on log.
func instrument(log logger.Logger, endpoint string, next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		rec := &statusRecorder{ResponseWriter: w, status: http.StatusOK}

		defer func() {
			if v := recover(); v != nil {
				log.Error(r.Context(), "panic in http handler",
					logger.String("endpoint", endpoint),
					logger.Any("panic", v))
				if !rec.wrote {
					writeError(rec, http.StatusInternalServerError, "internal_error", errPanic)
				} else {
					rec.status = http.StatusInternalServerError
				}
			}

			status := strconv.Itoa(rec.status)
			ms := float64(time.Since(start).Microseconds()) / 1000
			metrics.RecordHTTPRequest(endpoint, r.Method, status)
			metrics.RecordHTTPRequestDuration(endpoint, r.Method, status, ms)
			if class := errorClass(rec.status); class != "" {
				metrics.RecordErrorByEndpoint(endpoint, r.Method, class)
			}
		}()

		next(rec, r)
	}
}

// errorClass buckets a response status for the error counters; "" means success.
func errorClass(status int) string {
	switch {
	case status < http.StatusBadRequest:
		return ""
	case status == http.StatusTooManyRequests:
		return "backpressure"
	case status == http.StatusNotFound:
		return "not_found"
	case status == http.StatusConflict:
		return "in_progress"
	case status == http.StatusServiceUnavailable:
		return "unavailable"
	case status >= http.StatusInternalServerError:
		return "server_error"
	default:
		return "client_error"
	}
}

type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (rw *statusRecorder) WriteHeader(code int) {
	if rw.wrote {
		return
	}
	rw.status = code
	rw.wrote = true
	rw.ResponseWriter.WriteHeader(code)
}

func (rw *statusRecorder) Write(b []byte) (int, error) {
	rw.wrote = true
	return rw.ResponseWriter.Write(b)
}
