package metrics

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
)

// Dependency-free metrics with Prometheus text exposition. Counters and
// gauges are atomics, histograms use fixed cumulative buckets, and the
// registry is mutex-protected. Good enough for a single process; anything
// fancier belongs in a real Prometheus client.

// Counter is a monotonically increasing number.
type Counter struct {
	name string
	help string
	val  int64
}

func (c *Counter) Inc(delta int64) { atomic.AddInt64(&c.val, delta) }
func (c *Counter) Add(delta int64) { c.Inc(delta) }
func (c *Counter) Get() int64      { return atomic.LoadInt64(&c.val) }

// atomicFloat stores a float64 as raw bits so it can be updated atomically.
type atomicFloat struct {
	bits uint64
}

func (f *atomicFloat) store(v float64) { atomic.StoreUint64(&f.bits, math.Float64bits(v)) }
func (f *atomicFloat) load() float64   { return math.Float64frombits(atomic.LoadUint64(&f.bits)) }
func (f *atomicFloat) add(delta float64) {
	for {
		old := atomic.LoadUint64(&f.bits)
		nv := math.Float64frombits(old) + delta
		if atomic.CompareAndSwapUint64(&f.bits, old, math.Float64bits(nv)) {
			return
		}
	}
}

// Gauge is an arbitrary number that can go up and down.
type Gauge struct {
	name string
	help string
	val  atomicFloat
}

func (g *Gauge) SetFloat64(v float64)     { g.val.store(v) }
func (g *Gauge) AddFloat64(delta float64) { g.val.add(delta) }
func (g *Gauge) GetFloat64() float64      { return g.val.load() }

// Histogram counts observations into fixed buckets (cumulative on export)
// and tracks sum/count. The registry always appends a +Inf bucket.
type Histogram struct {
	name    string
	help    string
	buckets []float64 // sorted ascending, last is +Inf
	counts  []uint64
	sum     atomicFloat
	count   uint64
}

func (h *Histogram) Observe(v float64) {
	for i, ub := range h.buckets {
		if v <= ub {
			atomic.AddUint64(&h.counts[i], 1)
			break
		}
	}
	atomic.AddUint64(&h.count, 1)
	h.sum.add(v)
}

// Count returns the total number of observations.
func (h *Histogram) Count() uint64 { return atomic.LoadUint64(&h.count) }

// Sum returns the sum of all observed values.
func (h *Histogram) Sum() float64 { return h.sum.load() }

// Quantile returns an upper-bound estimate for q in [0,1] by walking the
// cumulative buckets. Coarse, but fine for alerting thresholds.
func (h *Histogram) Quantile(q float64) float64 {
	total := atomic.LoadUint64(&h.count)
	if total == 0 {
		return 0
	}
	target := uint64(math.Ceil(q * float64(total)))
	var cum uint64
	for i, ub := range h.buckets {
		cum += atomic.LoadUint64(&h.counts[i])
		if cum >= target {
			if math.IsInf(ub, 1) && i > 0 {
				return h.buckets[i-1]
			}
			return ub
		}
	}
	return h.buckets[len(h.buckets)-1]
}

// Registry holds all metrics.
type Registry struct {
	mu         sync.RWMutex
	counters   map[string]*Counter
	gauges     map[string]*Gauge
	histograms map[string]*Histogram
}

func NewRegistry() *Registry {
	return &Registry{
		counters:   make(map[string]*Counter),
		gauges:     make(map[string]*Gauge),
		histograms: make(map[string]*Histogram),
	}
}

var Default = NewRegistry()

func (r *Registry) Counter(name, help string) *Counter {
	r.mu.Lock()
	defer r.mu.Unlock()
	if c, ok := r.counters[name]; ok {
		return c
	}
	c := &Counter{name: sanitize(name), help: help}
	r.counters[name] = c
	return c
}

func (r *Registry) Gauge(name, help string) *Gauge {
	r.mu.Lock()
	defer r.mu.Unlock()
	if g, ok := r.gauges[name]; ok {
		return g
	}
	g := &Gauge{name: sanitize(name), help: help}
	r.gauges[name] = g
	return g
}

func (r *Registry) Histogram(name, help string, buckets []float64) *Histogram {
	r.mu.Lock()
	defer r.mu.Unlock()
	if h, ok := r.histograms[name]; ok {
		return h
	}
	sorted := append([]float64{}, buckets...)
	sort.Float64s(sorted)
	if len(sorted) == 0 || !math.IsInf(sorted[len(sorted)-1], 1) {
		sorted = append(sorted, math.Inf(1))
	}
	h := &Histogram{name: sanitize(name), help: help, buckets: sorted, counts: make([]uint64, len(sorted))}
	r.histograms[name] = h
	return h
}

// Snapshot returns current counter and gauge values keyed by metric name.
// Used by the alert sampler; histograms are exposed via Quantile instead.
func (r *Registry) Snapshot() map[string]float64 {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make(map[string]float64, len(r.counters)+len(r.gauges))
	for name, c := range r.counters {
		out[name] = float64(c.Get())
	}
	for name, g := range r.gauges {
		out[name] = g.GetFloat64()
	}
	return out
}

// Handler returns an http.Handler that exposes metrics in Prometheus text format.
func (r *Registry) Handler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "text/plain; version=0.0.4")

		r.mu.RLock()
		counters := make([]*Counter, 0, len(r.counters))
		for _, name := range sortedKeys(r.counters) {
			counters = append(counters, r.counters[name])
		}
		gauges := make([]*Gauge, 0, len(r.gauges))
		for _, name := range sortedKeys(r.gauges) {
			gauges = append(gauges, r.gauges[name])
		}
		histograms := make([]*Histogram, 0, len(r.histograms))
		for _, name := range sortedKeys(r.histograms) {
			histograms = append(histograms, r.histograms[name])
		}
		r.mu.RUnlock()

		for _, c := range counters {
			fmt.Fprintf(w, "# HELP %s %s\n", c.name, escapeHelp(c.help))
			fmt.Fprintf(w, "# TYPE %s counter\n", c.name)
			fmt.Fprintf(w, "%s %d\n", c.name, c.Get())
		}
		for _, g := range gauges {
			fmt.Fprintf(w, "# HELP %s %s\n", g.name, escapeHelp(g.help))
			fmt.Fprintf(w, "# TYPE %s gauge\n", g.name)
			fmt.Fprintf(w, "%s %g\n", g.name, g.GetFloat64())
		}
		for _, h := range histograms {
			fmt.Fprintf(w, "# HELP %s %s\n", h.name, escapeHelp(h.help))
			fmt.Fprintf(w, "# TYPE %s histogram\n", h.name)
			var cum uint64
			for i, ub := range h.buckets {
				cum += atomic.LoadUint64(&h.counts[i])
				fmt.Fprintf(w, "%s_bucket{le=%q} %d\n", h.name, bucketLabel(ub), cum)
			}
			fmt.Fprintf(w, "%s_sum %g\n", h.name, h.Sum())
			fmt.Fprintf(w, "%s_count %d\n", h.name, h.Count())
		}
	})
}

// Handler exposes the Default registry.
func Handler() http.Handler { return Default.Handler() }

func bucketLabel(ub float64) string {
	if math.IsInf(ub, 1) {
		return "+Inf"
	}
	return strconv.FormatFloat(ub, 'g', -1, 64)
}

func sanitize(s string) string {
	s = strings.ReplaceAll(s, " ", "_")
	s = strings.ReplaceAll(s, "-", "_")
	return s
}

func escapeHelp(s string) string {
	return strings.ReplaceAll(s, "\n", " ")
}

func sortedKeys[T any](m map[string]T) []string {
	ks := make([]string, 0, len(m))
	for k := range m {
		ks = append(ks, k)
	}
	sort.Strings(ks)
	return ks
}

// Timer measures elapsed seconds into a histogram.
type Timer struct {
	h     *Histogram
	start time.Time
}

func (h *Histogram) Start() Timer { return Timer{h: h, start: time.Now()} }

func (t Timer) Observe() {
	if t.h != nil {
		t.h.Observe(time.Since(t.start).Seconds())
	}
}
