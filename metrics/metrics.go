package metrics

import (
	"net/http"
	"sort"
	"strings"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Namespace prefixes every exported metric.
const Namespace = "pokernet"

// registry holds lazily created collectors keyed by group, name and label names.
// The first call for a metric fixes its label names; calls with a different
// label set are dropped.
type registry struct {
	mu         sync.Mutex
	reg        *prometheus.Registry
	factory    promauto.Factory
	counters   map[string]*prometheus.CounterVec
	gauges     map[string]*prometheus.GaugeVec
	histograms map[string]*prometheus.HistogramVec
	labels     map[string][]string
}

var _registry = newRegistry()

func newRegistry() *registry {
	reg := prometheus.NewRegistry()
	return &registry{
		reg:        reg,
		factory:    promauto.With(reg),
		counters:   make(map[string]*prometheus.CounterVec),
		gauges:     make(map[string]*prometheus.GaugeVec),
		histograms: make(map[string]*prometheus.HistogramVec),
		labels:     make(map[string][]string),
	}
}

func metricKey(group, name string) string {
	return group + "/" + name
}

func labelNames(dims Dimension) []string {
	names := make([]string, 0, len(dims))
	for k := range dims {
		names = append(names, k)
	}
	sort.Strings(names)
	return names
}

func sameLabels(a, b []string) bool {
	return strings.Join(a, ",") == strings.Join(b, ",")
}

// checkLabels records the label names on first use and reports whether dims match them.
func (r *registry) checkLabels(key string, names []string) bool {
	if known, ok := r.labels[key]; ok {
		return sameLabels(known, names)
	}
	r.labels[key] = names
	return true
}

func (r *registry) counter(group, name string, dims Dimension) prometheus.Counter {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := metricKey(group, name)
	names := labelNames(dims)
	if !r.checkLabels(key, names) {
		return nil
	}
	vec, ok := r.counters[key]
	if !ok {
		vec = r.factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: Namespace,
			Subsystem: group,
			Name:      name,
			Help:      group + " " + name,
		}, names)
		r.counters[key] = vec
	}
	return vec.With(prometheus.Labels(dims))
}

func (r *registry) gauge(group, name string, dims Dimension) prometheus.Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := metricKey(group, name)
	names := labelNames(dims)
	if !r.checkLabels(key, names) {
		return nil
	}
	vec, ok := r.gauges[key]
	if !ok {
		vec = r.factory.NewGaugeVec(prometheus.GaugeOpts{
			Namespace: Namespace,
			Subsystem: group,
			Name:      name,
			Help:      group + " " + name,
		}, names)
		r.gauges[key] = vec
	}
	return vec.With(prometheus.Labels(dims))
}

func (r *registry) histogram(group, name string, dims Dimension) prometheus.Observer {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := metricKey(group, name)
	names := labelNames(dims)
	if !r.checkLabels(key, names) {
		return nil
	}
	vec, ok := r.histograms[key]
	if !ok {
		vec = r.factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: Namespace,
			Subsystem: group,
			Name:      name,
			Help:      group + " " + name,
			Buckets:   prometheus.DefBuckets,
		}, names)
		r.histograms[key] = vec
	}
	return vec.With(prometheus.Labels(dims))
}

// IncrCounterWithGroup adds v to the counter group/name.
func IncrCounterWithGroup(group, name string, v Value) {
	IncrCounterWithDimGroup(group, name, v, nil)
}

// IncrCounterWithDimGroup adds v to the counter group/name with the given dimensions.
func IncrCounterWithDimGroup(group, name string, v Value, dims Dimension) {
	if c := _registry.counter(group, name, dims); c != nil {
		c.Add(float64(v))
	}
}

// UpdateGaugeWithGroup sets the gauge group/name to v.
func UpdateGaugeWithGroup(group, name string, v Value) {
	UpdateGaugeWithDimGroup(group, name, v, nil)
}

// UpdateGaugeWithDimGroup sets the gauge group/name with the given dimensions to v.
func UpdateGaugeWithDimGroup(group, name string, v Value, dims Dimension) {
	if g := _registry.gauge(group, name, dims); g != nil {
		g.Set(float64(v))
	}
}

// ObserveWithGroup records v, usually a duration in seconds, in the histogram group/name.
func ObserveWithGroup(group, name string, v Value) {
	if h := _registry.histogram(group, name, nil); h != nil {
		h.Observe(float64(v))
	}
}

// Gatherer exposes the underlying registry, mostly for tests.
func Gatherer() prometheus.Gatherer {
	return _registry.reg
}

// Handler serves the registry in the prometheus text format.
func Handler() http.Handler {
	return promhttp.HandlerFor(_registry.reg, promhttp.HandlerOpts{})
}
