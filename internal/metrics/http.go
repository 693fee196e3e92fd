package metrics

import (
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
)

// routes lists the path shapes reported as route labels. Anything else is
// reported as "other" so scanners cannot inflate label cardinality.
var routes = map[string]bool{
	"/":                      true,
	"/health":                true,
	"/help":                  true,
	"/inspections":           true,
	"/reports":               true,
	"/reports/{id}":          true,
	"/reports/{id}/download": true,
	"/reports/{id}/image":    true,
	"/settings/api-key":      true,
	"/static/*":              true,
}

// statusRecorder remembers the first status written through it.
type statusRecorder struct {
	http.ResponseWriter
	status int
	wrote  bool
}

func (sr *statusRecorder) WriteHeader(code int) {
	if !sr.wrote {
		sr.status = code
		sr.wrote = true
	}
	sr.ResponseWriter.WriteHeader(code)
}

func (sr *statusRecorder) Write(b []byte) (int, error) {
	if !sr.wrote {
		sr.status = http.StatusOK
		sr.wrote = true
	}
	return sr.ResponseWriter.Write(b)
}

func (sr *statusRecorder) Unwrap() http.ResponseWriter {
	return sr.ResponseWriter
}

// routeLabel maps a request path onto one of the known route shapes.
func routeLabel(path string) string {
	if strings.HasPrefix(path, "/static/") {
		return "/static/*"
	}

	segments := strings.Split(strings.Trim(path, "/"), "/")
	if len(segments) >= 2 && segments[0] == "reports" {
		if _, err := uuid.Parse(segments[1]); err == nil {
			segments[1] = "{id}"
		}
	}

	label := "/" + strings.Join(segments, "/")
	if routes[label] {
		return label
	}
	return "other"
}

// Middleware records request count, latency and in-flight requests per
// route. Scrapes of /metrics are not counted.
func Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/metrics" {
			next.ServeHTTP(w, r)
			return
		}

		HTTPRequestsInFlight.Inc()
		defer HTTPRequestsInFlight.Dec()

		start := time.Now()
		sr := &statusRecorder{ResponseWriter: w, status: http.StatusOK}
		next.ServeHTTP(sr, r)

		route := routeLabel(r.URL.Path)
		HTTPRequestsTotal.WithLabelValues(r.Method, route, strconv.Itoa(sr.status)).Inc()
		HTTPRequestDuration.WithLabelValues(r.Method, route).Observe(time.Since(start).Seconds())
	})
}
