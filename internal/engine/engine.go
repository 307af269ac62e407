package engine

import (
	"context"
	"crypto/tls"
	"fmt"
	"net"
	"net/http"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/load-tester-api/internal/metrics"
	"github.com/load-tester-api/internal/rotation"
	"github.com/load-tester-api/internal/stats"
	"github.com/load-tester-api/internal/types"
	"golang.org/x/time/rate"
)

// Status is the run lifecycle state.
type Status string

const (
	StatusIdle      Status = "idle"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusCancelled Status = "cancelled"
	StatusFailed    Status = "failed"
)

// DefaultUserAgents is used when no User-Agent pool is supplied.
var DefaultUserAgents = []string{
	"Mozilla/5.0 (compatible; Baiduspider/2.0; +http://www.baidu.com/search/spider.html)",
	"Mozilla/5.0 (Linux;u;Android 4.2.2;zh-cn;) AppleWebKit/534.46 (KHTML,like Gecko) Version/5.1 Mobile Safari/10600.6.3 (compatible; Baiduspider/2.0; +http://www.baidu.com/search/spider.html)",
	"Mozilla/5.0 (compatible; Baiduspider-render/2.0; +http://www.baidu.com/search/spider.html)",
}

// DefaultReferers is used when no Referer pool is supplied. The empty entry
// means "no referer" and is drawn with the same probability as the literals.
var DefaultReferers = []string{
	"https://www.google.com/",
	"https://www.bing.com/",
	"https://www.baidu.com/",
	"https://www.yahoo.com/",
	"",
}

// Config is the per-run engine configuration. Lists arrive pre-validated and
// in-memory; the engine never touches the filesystem.
type Config struct {
	Method            string
	NumRequests       int
	NumWorkers        int
	Headers           map[string]string
	Body              map[string]interface{}
	Timeout           time.Duration
	ProxyTimeout      time.Duration
	SpoofIdentity     bool
	UserAgents        []string
	Referers          []string
	RequestsPerSecond float64 // per worker; 0 disables the ceiling
	ProxyScheme       rotation.Scheme
	VerifyTLS         bool
}

// RunState tracks one run. The cancellation flag transitions false to true at
// most once and is only ever polled, never awaited.
type RunState struct {
	mu        sync.Mutex
	status    Status
	startTime time.Time
	endTime   time.Time
	requested int
	completed atomic.Int64
	cancelled atomic.Bool
}

func (s *RunState) Status() Status {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.status
}

func (s *RunState) StartTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.startTime
}

func (s *RunState) EndTime() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.endTime
}

func (s *RunState) Completed() int {
	return int(s.completed.Load())
}

func (s *RunState) start(requested int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusRunning
	s.startTime = time.Now()
	s.requested = requested
}

func (s *RunState) fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.status = StatusFailed
	now := time.Now()
	if s.startTime.IsZero() {
		s.startTime = now
	}
	s.endTime = now
}

// finish marks the terminal state. Cancellation intent dominates: a run that
// observed the cancel flag reports Cancelled even if every submitted task
// succeeded.
func (s *RunState) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.endTime = time.Now()
	if s.cancelled.Load() {
		s.status = StatusCancelled
	} else {
		s.status = StatusCompleted
	}
}

// Engine dispatches a configured volume of requests across a bounded worker
// pool and aggregates per-target statistics.
type Engine struct {
	cfg        Config
	targets    *rotation.TargetSelector
	identities *rotation.IdentityRotator
	proxies    *rotation.ProxyRotator
	rnd        *rotation.Rand
	stats      *stats.Aggregator
	state      *RunState
	logger     Logger
	metrics    *metrics.Collector
	transport  *http.Transport
	userAgents []string
	referers   []string
}

func New(cfg Config, targets *rotation.TargetSelector, identities *rotation.IdentityRotator,
	proxies *rotation.ProxyRotator, rnd *rotation.Rand, logger Logger, collector *metrics.Collector) *Engine {

	cfg.Method = strings.ToUpper(cfg.Method)
	if cfg.Method == "" {
		cfg.Method = http.MethodGet
	}
	if cfg.NumWorkers < 1 {
		cfg.NumWorkers = 1
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.ProxyTimeout <= 0 {
		cfg.ProxyTimeout = 3 * time.Second
	}
	if rnd == nil {
		rnd = rotation.NewRand(0)
	}
	if identities == nil {
		identities = rotation.NewIdentityRotator(rnd, nil)
	}
	if proxies == nil {
		proxies = rotation.NewProxyRotator(rnd, nil, nil)
	}
	if logger == nil {
		logger = StdLogger()
	}

	userAgents := cfg.UserAgents
	if len(userAgents) == 0 {
		userAgents = DefaultUserAgents
	}
	referers := cfg.Referers
	if len(referers) == 0 {
		referers = DefaultReferers
	}

	// Shared transport for direct requests; proxied requests get a
	// per-attempt transport since the proxy changes every call.
	transport := &http.Transport{
		DialContext: (&net.Dialer{
			Timeout:   cfg.Timeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:        cfg.NumWorkers,
		MaxIdleConnsPerHost: 100,
		IdleConnTimeout:     90 * time.Second,
		TLSHandshakeTimeout: cfg.Timeout,
		TLSClientConfig: &tls.Config{
			InsecureSkipVerify: !cfg.VerifyTLS,
		},
	}

	return &Engine{
		cfg:        cfg,
		targets:    targets,
		identities: identities,
		proxies:    proxies,
		rnd:        rnd,
		stats:      stats.NewAggregator(),
		state:      &RunState{status: StatusIdle},
		logger:     logger,
		metrics:    collector,
		transport:  transport,
		userAgents: userAgents,
		referers:   referers,
	}
}

// State returns the run state for observation.
func (e *Engine) State() *RunState {
	return e.state
}

// Stats exposes the aggregator, mainly for tests asserting counter
// invariants mid-run.
func (e *Engine) Stats() *stats.Aggregator {
	return e.stats
}

// Report computes the final report from the raw samples. Call after Run has
// returned; the result is read-only thereafter.
func (e *Engine) Report() *types.RunReport {
	return e.stats.Report(e.state.StartTime(), e.state.EndTime(),
		e.state.requested, e.state.Completed())
}

// Run executes NumRequests tasks across NumWorkers workers. The cancellation
// query is polled before each submission; tasks already handed to a worker
// always run to completion. A setup fault (no valid target) fails the run
// before any task is submitted.
func (e *Engine) Run(ctx context.Context, cancelled func() bool) error {
	if cancelled == nil {
		cancelled = func() bool { return false }
	}

	if e.metrics != nil {
		e.metrics.RecordRunStarted()
	}

	if e.targets.Empty() {
		e.state.fail()
		e.logger.Log(LevelError, "no valid target URL configured")
		if e.metrics != nil {
			e.metrics.RecordRunFinished(string(StatusFailed))
		}
		return fmt.Errorf("no valid target URL configured")
	}

	e.state.start(e.cfg.NumRequests)
	e.logger.Log(LevelInfo, fmt.Sprintf("starting run: %d requests across %d workers",
		e.cfg.NumRequests, e.cfg.NumWorkers))

	tasks := make(chan struct{})
	var wg sync.WaitGroup
	for i := 0; i < e.cfg.NumWorkers; i++ {
		wg.Add(1)
		go e.worker(ctx, tasks, &wg)
	}

	progressDone := make(chan struct{})
	go e.reportProgress(progressDone)

	submitted := 0
submission:
	for i := 0; i < e.cfg.NumRequests; i++ {
		if cancelled() || ctx.Err() != nil {
			e.state.cancelled.Store(true)
			e.logger.Log(LevelWarning, fmt.Sprintf("cancellation requested after %d submissions", submitted))
			break
		}

		select {
		case tasks <- struct{}{}:
			submitted++
		case <-ctx.Done():
			e.state.cancelled.Store(true)
			break submission
		}
	}
	close(tasks)

	wg.Wait()
	close(progressDone)

	if cancelled() {
		e.state.cancelled.Store(true)
	}
	e.state.finish()

	status := e.state.Status()
	if e.metrics != nil {
		e.metrics.RecordRunFinished(string(status))
	}
	e.logger.Log(LevelInfo, fmt.Sprintf("run %s: %d/%d tasks completed in %v",
		status, e.state.Completed(), e.cfg.NumRequests,
		e.state.EndTime().Sub(e.state.StartTime()).Round(time.Millisecond)))

	return nil
}

// worker drains the task channel. Each worker carries its own rate limiter
// (burst 1), so elapsed request time consumes the per-request interval and
// aggregate throughput approximates workers x rate.
func (e *Engine) worker(ctx context.Context, tasks <-chan struct{}, wg *sync.WaitGroup) {
	defer wg.Done()

	var limiter *rate.Limiter
	if e.cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(e.cfg.RequestsPerSecond), 1)
	}

	for range tasks {
		if limiter != nil {
			// Wait only fails on context cancellation; the task still
			// runs since it was already submitted.
			_ = limiter.Wait(ctx)
		}
		e.runTask(ctx)
		e.state.completed.Add(1)
	}
}

// runTask isolates one task: a fault here is logged and never aborts
// sibling tasks or the run.
func (e *Engine) runTask(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Log(LevelError, fmt.Sprintf("worker fault: %v", r))
		}
	}()
	e.executeOnce(ctx)
}

func (e *Engine) reportProgress(done <-chan struct{}) {
	ticker := time.NewTicker(5 * time.Second)
	defer ticker.Stop()

	for {
		select {
		case <-done:
			return
		case <-ticker.C:
			current := e.state.Completed()
			percent := float64(current) / float64(e.cfg.NumRequests) * 100.0
			e.logger.Log(LevelInfo, fmt.Sprintf("progress: %d/%d (%.1f%%)",
				current, e.cfg.NumRequests, percent))
		}
	}
}
