// Package telemetry records HTTP server metrics and domain counters in
// process and serves them in the Prometheus text exposition format.
package telemetry

import (
	"fmt"
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/labstack/echo/v4"
)

var defaultDurationBuckets = []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10}

// histogram keeps non-cumulative bucket counts; cumulative counts are
// computed at export time.
type histogram struct {
	boundaries   []float64
	bucketCounts []int64
	count        int64
	sum          uint64 // math.Float64bits
	mu           sync.Mutex
}

func newHistogram(boundaries []float64) *histogram {
	return &histogram{
		boundaries:   boundaries,
		bucketCounts: make([]int64, len(boundaries)),
	}
}

func (h *histogram) Observe(v float64) {
	atomic.AddInt64(&h.count, 1)
	atomicAddFloat64(&h.sum, v)

	h.mu.Lock()
	defer h.mu.Unlock()
	for i, b := range h.boundaries {
		if v <= b {
			h.bucketCounts[i]++
			return
		}
	}
}

func (h *histogram) Count() int64 {
	return atomic.LoadInt64(&h.count)
}

func (h *histogram) Sum() float64 {
	return math.Float64frombits(atomic.LoadUint64(&h.sum))
}

func (h *histogram) cumulativeBuckets() []int64 {
	h.mu.Lock()
	raw := make([]int64, len(h.bucketCounts))
	copy(raw, h.bucketCounts)
	h.mu.Unlock()

	var running int64
	for i, c := range raw {
		running += c
		raw[i] = running
	}
	return raw
}

func atomicAddFloat64(addr *uint64, delta float64) {
	for {
		old := atomic.LoadUint64(addr)
		next := math.Float64bits(math.Float64frombits(old) + delta)
		if atomic.CompareAndSwapUint64(addr, old, next) {
			return
		}
	}
}

// series is a metric name plus its ordered label pairs, encoded as a map key.
type series struct {
	name   string
	labels string
}

func newSeries(name string, labelPairs ...string) series {
	var b strings.Builder
	for i := 0; i+1 < len(labelPairs); i += 2 {
		if b.Len() > 0 {
			b.WriteByte(',')
		}
		fmt.Fprintf(&b, "%s=%q", labelPairs[i], labelPairs[i+1])
	}
	return series{name: name, labels: b.String()}
}

func (s series) String() string {
	if s.labels == "" {
		return s.name
	}
	return s.name + "{" + s.labels + "}"
}

// Registry holds every metric exported by the process.
type Registry struct {
	mu         sync.RWMutex
	counters   map[series]*int64
	histograms map[series]*histogram
	help       map[string]string
	active     int64
	now        func() time.Time
}

func NewRegistry() *Registry {
	return &Registry{
		counters:   make(map[series]*int64),
		histograms: make(map[series]*histogram),
		help:       make(map[string]string),
		now:        time.Now,
	}
}

// Describe sets the HELP text for a metric name.
func (r *Registry) Describe(name, help string) {
	r.mu.Lock()
	r.help[name] = help
	r.mu.Unlock()
}

// Inc increments a counter. labelPairs alternate label names and values.
func (r *Registry) Inc(name string, labelPairs ...string) {
	key := newSeries(name, labelPairs...)
	r.mu.RLock()
	p, ok := r.counters[key]
	r.mu.RUnlock()
	if !ok {
		r.mu.Lock()
		if p, ok = r.counters[key]; !ok {
			p = new(int64)
			r.counters[key] = p
		}
		r.mu.Unlock()
	}
	atomic.AddInt64(p, 1)
}

// Counter returns the current value of a counter, or 0 if it was never
// incremented.
func (r *Registry) Counter(name string, labelPairs ...string) int64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if p, ok := r.counters[newSeries(name, labelPairs...)]; ok {
		return atomic.LoadInt64(p)
	}
	return 0
}

func (r *Registry) observe(name string, v float64, labelPairs ...string) {
	key := newSeries(name, labelPairs...)
	r.mu.RLock()
	h, ok := r.histograms[key]
	r.mu.RUnlock()
	if !ok {
		r.mu.Lock()
		if h, ok = r.histograms[key]; !ok {
			h = newHistogram(defaultDurationBuckets)
			r.histograms[key] = h
		}
		r.mu.Unlock()
	}
	h.Observe(v)
}

// Middleware records request counts, durations and in-flight requests,
// labelled by the matched route rather than the raw path.
func (r *Registry) Middleware() echo.MiddlewareFunc {
	return func(next echo.HandlerFunc) echo.HandlerFunc {
		return func(c echo.Context) error {
			atomic.AddInt64(&r.active, 1)
			defer atomic.AddInt64(&r.active, -1)

			start := r.now()
			err := next(c)
			elapsed := r.now().Sub(start).Seconds()

			status := c.Response().Status
			if he, ok := err.(*echo.HTTPError); ok {
				status = he.Code
			}
			route := c.Path()
			if route == "" {
				route = "unmatched"
			}
			labels := []string{"method", c.Request().Method, "route", route, "status_code", strconv.Itoa(status)}
			r.Inc("http_server_requests_total", labels...)
			r.observe("http_server_request_duration_seconds", elapsed, labels...)
			return err
		}
	}
}

// Handler serves the registry in Prometheus text format.
func (r *Registry) Handler() echo.HandlerFunc {
	return func(c echo.Context) error {
		return c.String(http.StatusOK, r.Expose())
	}
}

// Expose renders all metrics, sorted by series for stable output.
func (r *Registry) Expose() string {
	r.mu.RLock()
	counters := make(map[series]int64, len(r.counters))
	for k, p := range r.counters {
		counters[k] = atomic.LoadInt64(p)
	}
	hists := make(map[series]*histogram, len(r.histograms))
	for k, h := range r.histograms {
		hists[k] = h
	}
	help := make(map[string]string, len(r.help))
	for k, v := range r.help {
		help[k] = v
	}
	r.mu.RUnlock()

	var b strings.Builder
	header := func(name, typ string) {
		if h, ok := help[name]; ok {
			fmt.Fprintf(&b, "# HELP %s %s\n", name, h)
		}
		fmt.Fprintf(&b, "# TYPE %s %s\n", name, typ)
	}

	for _, group := range groupByName(counters) {
		header(group[0].name, "counter")
		for _, s := range group {
			fmt.Fprintf(&b, "%s %d\n", s, counters[s])
		}
	}

	for _, group := range groupByName(hists) {
		header(group[0].name, "histogram")
		for _, s := range group {
			writeHistogram(&b, s, hists[s])
		}
	}

	header("http_server_active_requests", "gauge")
	fmt.Fprintf(&b, "http_server_active_requests %d\n", atomic.LoadInt64(&r.active))
	return b.String()
}

func groupByName[V any](m map[series]V) [][]series {
	keys := make([]series, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Slice(keys, func(i, j int) bool {
		if keys[i].name != keys[j].name {
			return keys[i].name < keys[j].name
		}
		return keys[i].labels < keys[j].labels
	})

	var groups [][]series
	for i, k := range keys {
		if i == 0 || keys[i-1].name != k.name {
			groups = append(groups, nil)
		}
		groups[len(groups)-1] = append(groups[len(groups)-1], k)
	}
	return groups
}

func writeHistogram(b *strings.Builder, s series, h *histogram) {
	prefix := ""
	if s.labels != "" {
		prefix = s.labels + ","
	}
	cum := h.cumulativeBuckets()
	for i, boundary := range h.boundaries {
		fmt.Fprintf(b, "%s_bucket{%sle=\"%g\"} %d\n", s.name, prefix, boundary, cum[i])
	}
	fmt.Fprintf(b, "%s_bucket{%sle=\"+Inf\"} %d\n", s.name, prefix, h.Count())

	suffix := ""
	if s.labels != "" {
		suffix = "{" + s.labels + "}"
	}
	fmt.Fprintf(b, "%s_sum%s %g\n", s.name, suffix, h.Sum())
	fmt.Fprintf(b, "%s_count%s %d\n", s.name, suffix, h.Count())
}
