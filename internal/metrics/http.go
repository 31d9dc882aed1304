package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpprom "github.com/slok/go-http-metrics/metrics/prometheus"
	httpmw "github.com/slok/go-http-metrics/middleware"
	"github.com/slok/go-http-metrics/middleware/std"
)

// NewRegistry returns a registry with the Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

// Handler serves reg in the Prometheus exposition format.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg})
}

// HTTP records request latency, size and in-flight counts per handler.
type HTTP struct {
	mdlw httpmw.Middleware
}

// NewHTTP registers the HTTP request collectors with reg.
func NewHTTP(reg prometheus.Registerer) *HTTP {
	return &HTTP{mdlw: httpmw.New(httpmw.Config{
		Recorder:      httpprom.NewRecorder(httpprom.Config{Registry: reg}),
		GroupedStatus: true,
	})}
}

// Middleware labels every request it wraps with handlerID. Use a fixed id
// per route group so path parameters do not explode label cardinality.
func (h *HTTP) Middleware(handlerID string) func(http.Handler) http.Handler {
	if h == nil {
		return func(next http.Handler) http.Handler { return next }
	}
	return std.HandlerProvider(handlerID, h.mdlw)
}
