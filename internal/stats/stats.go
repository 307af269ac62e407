package stats

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/load-tester-api/internal/types"
)

// targetStats accumulates counters for one target. Counters are only ever
// written by the worker that finished the corresponding request, under the
// per-target lock; there is no cross-target locking.
type targetStats struct {
	mu            sync.Mutex
	latencies     []float64
	succeeded     int
	failed        int
	proxyErrors   int
	proxyTimeouts int
	sslErrors     int
	errors        []string
}

// Aggregator owns the per-target accumulators for one run. Accumulators are
// created lazily on first observation of a target and are read-only after the
// run completes.
type Aggregator struct {
	mu      sync.RWMutex
	targets map[string]*targetStats
}

func NewAggregator() *Aggregator {
	return &Aggregator{targets: make(map[string]*targetStats)}
}

func (a *Aggregator) target(url string) *targetStats {
	a.mu.RLock()
	ts, ok := a.targets[url]
	a.mu.RUnlock()
	if ok {
		return ts
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if ts, ok = a.targets[url]; ok {
		return ts
	}
	ts = &targetStats{}
	a.targets[url] = ts
	return ts
}

// Record applies exactly one outcome to the target's counters. A latency
// sample is stored only when a response was actually obtained.
func (a *Aggregator) Record(url string, o Outcome) {
	ts := a.target(url)
	ts.mu.Lock()
	defer ts.mu.Unlock()

	switch o.Kind {
	case KindSuccess:
		ts.succeeded++
		ts.latencies = append(ts.latencies, o.Latency)
	case KindHTTPFailure:
		ts.failed++
		ts.latencies = append(ts.latencies, o.Latency)
		ts.errors = append(ts.errors, o.Message)
	case KindProxyError:
		ts.failed++
		ts.proxyErrors++
		ts.errors = append(ts.errors, o.Message)
	case KindConnectTimeout:
		ts.failed++
		if o.ViaProxy {
			ts.proxyTimeouts++
		}
		ts.errors = append(ts.errors, o.Message)
	case KindSSLError:
		ts.failed++
		ts.sslErrors++
		ts.errors = append(ts.errors, o.Message)
	default:
		ts.failed++
		ts.errors = append(ts.errors, o.Message)
	}
}

// Attempted returns succeeded+failed for one target.
func (a *Aggregator) Attempted(url string) int {
	a.mu.RLock()
	ts, ok := a.targets[url]
	a.mu.RUnlock()
	if !ok {
		return 0
	}

	ts.mu.Lock()
	defer ts.mu.Unlock()
	return ts.succeeded + ts.failed
}

// TotalAttempted sums attempted counts across all targets.
func (a *Aggregator) TotalAttempted() int {
	a.mu.RLock()
	defer a.mu.RUnlock()

	total := 0
	for _, ts := range a.targets {
		ts.mu.Lock()
		total += ts.succeeded + ts.failed
		ts.mu.Unlock()
	}
	return total
}

// Report computes the final per-target report. Derived statistics are
// computed here, on demand, from the raw samples; they are never maintained
// incrementally during the run.
func (a *Aggregator) Report(start, end time.Time, requested, completed int) *types.RunReport {
	a.mu.RLock()
	defer a.mu.RUnlock()

	duration := end.Sub(start).Seconds()

	report := &types.RunReport{
		Targets:   make(map[string]types.TargetReport, len(a.targets)),
		StartTime: start,
		EndTime:   end,
		Requested: requested,
		Completed: completed,
	}

	for url, ts := range a.targets {
		ts.mu.Lock()

		tr := types.TargetReport{
			Attempted:      ts.succeeded + ts.failed,
			Succeeded:      ts.succeeded,
			Failed:         ts.failed,
			ProxyErrors:    ts.proxyErrors,
			ProxyTimeouts:  ts.proxyTimeouts,
			SSLErrors:      ts.sslErrors,
			ErrorMessages:  append([]string(nil), ts.errors...),
			LatencySamples: append([]float64(nil), ts.latencies...),
		}
		if tr.Attempted > 0 {
			tr.SuccessRate = float64(tr.Succeeded) / float64(tr.Attempted) * 100.0
		}
		if duration > 0 {
			tr.RequestsPerSecond = float64(tr.Attempted) / duration
		}
		tr.Latency = summarize(tr.LatencySamples)

		ts.mu.Unlock()
		report.Targets[url] = tr
	}

	return report
}

// summarize returns nil for an empty sample set; standard deviation is the
// sample deviation and defined as 0 for fewer than 2 samples.
func summarize(samples []float64) *types.LatencySummary {
	n := len(samples)
	if n == 0 {
		return nil
	}

	sorted := append([]float64(nil), samples...)
	sort.Float64s(sorted)

	sum := 0.0
	for _, s := range sorted {
		sum += s
	}
	mean := sum / float64(n)

	var median float64
	if n%2 == 1 {
		median = sorted[n/2]
	} else {
		median = (sorted[n/2-1] + sorted[n/2]) / 2.0
	}

	stdDev := 0.0
	if n > 1 {
		sq := 0.0
		for _, s := range sorted {
			d := s - mean
			sq += d * d
		}
		stdDev = math.Sqrt(sq / float64(n-1))
	}

	return &types.LatencySummary{
		Mean:   mean,
		Median: median,
		Min:    sorted[0],
		Max:    sorted[n-1],
		StdDev: stdDev,
	}
}
