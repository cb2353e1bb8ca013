package observability

import (
	"fmt"
	"strconv"

	"github.com/prometheus/client_golang/prometheus"
)

type Prometheus struct {
	lookups       *prometheus.HistogramVec
	httpRequests  *prometheus.HistogramVec
	kafkaMessages *prometheus.HistogramVec
	cacheHits     *prometheus.CounterVec
	cacheMisses   *prometheus.CounterVec
	invalidations *prometheus.CounterVec
}

var msBuckets = []float64{0.1, 0.5, 1, 2.5, 5, 10, 25, 50, 100, 250, 500, 1000}

// NewPrometheus registers the collectors on registerer, or on the default
// registerer when it is nil. Registering twice reuses the existing collectors.
func NewPrometheus(registerer prometheus.Registerer) *Prometheus {
	if registerer == nil {
		registerer = prometheus.DefaultRegisterer
	}
	return &Prometheus{
		lookups: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "orderdesk_lookup_duration_ms",
			Help:    "Duration of cache-aside lookups in milliseconds",
			Buckets: msBuckets,
		}, []string{"scope", "source"}),
		httpRequests: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "orderdesk_http_request_duration_ms",
			Help:    "Duration of HTTP requests in milliseconds",
			Buckets: msBuckets,
		}, []string{"method", "route", "status"}),
		kafkaMessages: registerHistogramVec(registerer, prometheus.HistogramOpts{
			Name:    "orderdesk_feed_message_duration_ms",
			Help:    "Duration of transaction feed message handling in milliseconds",
			Buckets: msBuckets,
		}, []string{"ok"}),
		cacheHits: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderdesk_cache_hits_total",
			Help: "Cache hits per resource",
		}, []string{"scope"}),
		cacheMisses: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderdesk_cache_misses_total",
			Help: "Cache misses per resource",
		}, []string{"scope"}),
		invalidations: registerCounterVec(registerer, prometheus.CounterOpts{
			Name: "orderdesk_cache_invalidations_total",
			Help: "Explicitly forgotten cache keys per resource",
		}, []string{"scope"}),
	}
}

func (p *Prometheus) ObserveLookup(scope, source string, cacheMs, dbMs float64) {
	p.lookups.WithLabelValues(scope, source).Observe(cacheMs + dbMs)
}

func (p *Prometheus) ObserveHTTP(method, route string, status int, durMs float64) {
	p.httpRequests.WithLabelValues(method, route, strconv.Itoa(status)).Observe(durMs)
}

func (p *Prometheus) ObserveKafka(processMs float64, ok bool) {
	p.kafkaMessages.WithLabelValues(strconv.FormatBool(ok)).Observe(processMs)
}

func (p *Prometheus) IncCacheHit(scope string)     { p.cacheHits.WithLabelValues(scope).Inc() }
func (p *Prometheus) IncCacheMiss(scope string)    { p.cacheMisses.WithLabelValues(scope).Inc() }
func (p *Prometheus) IncInvalidation(scope string) { p.invalidations.WithLabelValues(scope).Inc() }

func registerCounterVec(registerer prometheus.Registerer, opts prometheus.CounterOpts, labels []string) *prometheus.CounterVec {
	collector := prometheus.NewCounterVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.CounterVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register counter vec %q: %v", opts.Name, err))
	}
	return collector
}

func registerHistogramVec(registerer prometheus.Registerer, opts prometheus.HistogramOpts, labels []string) *prometheus.HistogramVec {
	collector := prometheus.NewHistogramVec(opts, labels)
	if err := registerer.Register(collector); err != nil {
		if alreadyRegistered, ok := err.(prometheus.AlreadyRegisteredError); ok {
			existing, ok := alreadyRegistered.ExistingCollector.(*prometheus.HistogramVec)
			if !ok {
				panic(fmt.Sprintf("collector %q already registered with unexpected type", opts.Name))
			}
			return existing
		}
		panic(fmt.Sprintf("register histogram vec %q: %v", opts.Name, err))
	}
	return collector
}
