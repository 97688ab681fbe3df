// Package exporters exposes collected metrics over HTTP.
package exporters

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// HTTPHandler serves every metric registered on the default registry,
// including the promauto metrics of package metrics. OpenMetrics is
// negotiated when the scraper asks for it.
func HTTPHandler() http.Handler {
	return GathererHandler(prometheus.DefaultGatherer)
}

// GathererHandler serves metrics from g.
func GathererHandler(g prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(g, promhttp.HandlerOpts{
		EnableOpenMetrics: true,
		ErrorHandling:     promhttp.ContinueOnError,
	})
}
