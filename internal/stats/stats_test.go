package stats

import (
	"fmt"
	"math"
	"sync"
	"testing"
	"time"
)

func TestRecordInvariant(t *testing.T) {
	a := NewAggregator()
	url := "https://example.com"

	a.Record(url, Outcome{Kind: KindSuccess, StatusCode: 200, Latency: 0.1})
	a.Record(url, Outcome{Kind: KindHTTPFailure, StatusCode: 500, Latency: 0.2, Message: "status code: 500"})
	a.Record(url, Outcome{Kind: KindConnectTimeout, Message: "connect timeout", ViaProxy: true})
	a.Record(url, Outcome{Kind: KindProxyError, Message: "proxy error"})
	a.Record(url, Outcome{Kind: KindSSLError, Message: "SSL error"})

	if got := a.Attempted(url); got != 5 {
		t.Errorf("Attempted = %d, want 5", got)
	}

	report := a.Report(time.Now().Add(-time.Second), time.Now(), 5, 5)
	tr := report.Targets[url]

	if tr.Attempted != tr.Succeeded+tr.Failed {
		t.Errorf("attempted %d != succeeded %d + failed %d", tr.Attempted, tr.Succeeded, tr.Failed)
	}
	if tr.Succeeded != 1 || tr.Failed != 4 {
		t.Errorf("succeeded/failed = %d/%d", tr.Succeeded, tr.Failed)
	}
	if tr.ProxyErrors != 1 || tr.ProxyTimeouts != 1 || tr.SSLErrors != 1 {
		t.Errorf("proxy/timeout/ssl = %d/%d/%d", tr.ProxyErrors, tr.ProxyTimeouts, tr.SSLErrors)
	}
	// Only Success and HTTPFailure carry a latency sample
	if len(tr.LatencySamples) != 2 {
		t.Errorf("latency samples = %d, want 2", len(tr.LatencySamples))
	}
	if len(tr.ErrorMessages) != 4 {
		t.Errorf("error messages = %d, want 4", len(tr.ErrorMessages))
	}
}

func TestProxyTimeoutOnlyCountedViaProxy(t *testing.T) {
	a := NewAggregator()
	url := "https://example.com"

	a.Record(url, Outcome{Kind: KindConnectTimeout, ViaProxy: false, Message: "connect timeout"})

	tr := a.Report(time.Now(), time.Now(), 1, 1).Targets[url]
	if tr.ProxyTimeouts != 0 {
		t.Errorf("direct connect timeout must not count as proxy timeout, got %d", tr.ProxyTimeouts)
	}
	if tr.Failed != 1 {
		t.Errorf("Failed = %d, want 1", tr.Failed)
	}
}

func TestSummarySingleSample(t *testing.T) {
	a := NewAggregator()
	url := "https://example.com"
	a.Record(url, Outcome{Kind: KindSuccess, StatusCode: 200, Latency: 0.25})

	tr := a.Report(time.Now(), time.Now(), 1, 1).Targets[url]
	if tr.Latency == nil {
		t.Fatal("expected a latency summary for one sample")
	}
	if tr.Latency.StdDev != 0 {
		t.Errorf("StdDev with one sample = %v, want 0", tr.Latency.StdDev)
	}
	if tr.Latency.Mean != 0.25 || tr.Latency.Median != 0.25 || tr.Latency.Min != 0.25 || tr.Latency.Max != 0.25 {
		t.Errorf("summary = %+v", tr.Latency)
	}
}

func TestSummaryNoSamples(t *testing.T) {
	a := NewAggregator()
	url := "https://example.com"
	a.Record(url, Outcome{Kind: KindDNSFailure, Message: "failed to resolve host"})

	tr := a.Report(time.Now(), time.Now(), 1, 1).Targets[url]
	if tr.Latency != nil {
		t.Errorf("expected absent summary with zero samples, got %+v", tr.Latency)
	}
}

func TestSummaryDerivedMetrics(t *testing.T) {
	a := NewAggregator()
	url := "https://example.com"
	for _, l := range []float64{0.1, 0.2, 0.3, 0.4} {
		a.Record(url, Outcome{Kind: KindSuccess, StatusCode: 200, Latency: l})
	}

	start := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	end := start.Add(2 * time.Second)
	tr := a.Report(start, end, 4, 4).Targets[url]

	s := tr.Latency
	if math.Abs(s.Mean-0.25) > 1e-9 {
		t.Errorf("Mean = %v", s.Mean)
	}
	if math.Abs(s.Median-0.25) > 1e-9 {
		t.Errorf("Median = %v", s.Median)
	}
	if s.Min != 0.1 || s.Max != 0.4 {
		t.Errorf("Min/Max = %v/%v", s.Min, s.Max)
	}
	// sample standard deviation of {.1,.2,.3,.4}
	want := math.Sqrt((0.0225 + 0.0025 + 0.0025 + 0.0225) / 3.0)
	if math.Abs(s.StdDev-want) > 1e-9 {
		t.Errorf("StdDev = %v, want %v", s.StdDev, want)
	}
	if math.Abs(tr.RequestsPerSecond-2.0) > 1e-9 {
		t.Errorf("RequestsPerSecond = %v, want 2", tr.RequestsPerSecond)
	}
	if tr.SuccessRate != 100.0 {
		t.Errorf("SuccessRate = %v", tr.SuccessRate)
	}
}

func TestSuccessRateZeroWhenNothingAttempted(t *testing.T) {
	a := NewAggregator()
	report := a.Report(time.Now(), time.Now(), 0, 0)
	if len(report.Targets) != 0 {
		t.Errorf("expected no targets, got %d", len(report.Targets))
	}
}

func TestOutcomeKindLabels(t *testing.T) {
	labels := map[OutcomeKind]string{
		KindSuccess:           "success",
		KindHTTPFailure:       "http_failure",
		KindInvalidTarget:     "invalid_target",
		KindProxyError:        "proxy_error",
		KindConnectTimeout:    "connect_timeout",
		KindSSLError:          "ssl_error",
		KindDNSFailure:        "dns_failure",
		KindConnectionRefused: "connection_refused",
		KindConnectionReset:   "connection_reset",
		KindNetworkError:      "network_error",
	}
	for kind, want := range labels {
		if got := kind.String(); got != want {
			t.Errorf("%d.String() = %q, want %q", kind, got, want)
		}
	}
}

func TestConcurrentRecording(t *testing.T) {
	a := NewAggregator()

	const workers = 16
	const perWorker = 200
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			url := fmt.Sprintf("https://example.com/%d", w%4)
			for i := 0; i < perWorker; i++ {
				if i%2 == 0 {
					a.Record(url, Outcome{Kind: KindSuccess, StatusCode: 200, Latency: 0.01})
				} else {
					a.Record(url, Outcome{Kind: KindHTTPFailure, StatusCode: 503, Latency: 0.01, Message: "status code: 503"})
				}
			}
		}(w)
	}
	wg.Wait()

	if got := a.TotalAttempted(); got != workers*perWorker {
		t.Errorf("TotalAttempted = %d, want %d (no lost updates)", got, workers*perWorker)
	}

	report := a.Report(time.Now().Add(-time.Second), time.Now(), workers*perWorker, workers*perWorker)
	for url, tr := range report.Targets {
		if tr.Attempted != tr.Succeeded+tr.Failed {
			t.Errorf("%s: attempted %d != %d+%d", url, tr.Attempted, tr.Succeeded, tr.Failed)
		}
	}
}
