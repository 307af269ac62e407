package jobs

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"
	"time"

	"github.com/load-tester-api/internal/config"
	"github.com/load-tester-api/internal/engine"
	"github.com/load-tester-api/internal/listfile"
	"github.com/load-tester-api/internal/metrics"
	"github.com/load-tester-api/internal/rotation"
	"github.com/load-tester-api/internal/storage"
	"github.com/load-tester-api/internal/types"
	log "github.com/sirupsen/logrus"
)

// LogEntry is one captured line of engine output for a job.
type LogEntry struct {
	Timestamp time.Time `json:"timestamp"`
	Level     string    `json:"level"`
	Message   string    `json:"message"`
}

// Submission is a job request as received from the API. List fields are raw
// newline-delimited blobs; blank lines and '#' comments are ignored.
type Submission struct {
	TargetURL  string `json:"url"`
	TargetList string `json:"url_list"`

	Method      string                 `json:"method"`
	NumRequests int                    `json:"num_requests"`
	NumWorkers  int                    `json:"num_workers"`
	Headers     map[string]string      `json:"headers"`
	Data        map[string]interface{} `json:"data"`

	TimeoutSeconds      float64 `json:"timeout"`
	ProxyTimeoutSeconds float64 `json:"proxy_timeout"`

	SpoofIdentity bool   `json:"spoof_identity"`
	IdentityList  string `json:"identity_list"`

	UserAgentList string `json:"user_agent_list"`
	RefererList   string `json:"referer_list"`

	RateLimit float64 `json:"rate_limit"` // requests/sec per worker

	HTTPProxyList    string `json:"http_proxy_list"`
	SOCKS5ProxyList  string `json:"socks5_proxy_list"`
	ProxyScheme      string `json:"proxy_scheme"` // "", "http", "socks5"
	PreflightProxies bool   `json:"preflight_proxies"`

	VerifyTLS *bool `json:"verify_tls"` // default true
}

type job struct {
	mu     sync.Mutex
	record types.JobRecord
	logs   []LogEntry
	cancel atomic.Bool
}

func (j *job) appendLog(level, message string) {
	j.mu.Lock()
	defer j.mu.Unlock()
	j.logs = append(j.logs, LogEntry{Timestamp: time.Now(), Level: level, Message: message})
}

// Manager owns all submitted jobs, runs each in a background goroutine, and
// persists finished records through the storage backend.
type Manager struct {
	mu   sync.RWMutex
	jobs map[string]*job

	store   storage.Storage
	metrics *metrics.Collector
	cfg     config.EngineConfig

	seq       atomic.Int64
	persistMu sync.Mutex

	persistInterval time.Duration
	stopPersist     chan struct{}
	stopOnce        sync.Once
}

func NewManager(store storage.Storage, collector *metrics.Collector,
	cfg config.EngineConfig, persistIntervalSeconds int) *Manager {

	m := &Manager{
		jobs:            make(map[string]*job),
		store:           store,
		metrics:         collector,
		cfg:             cfg,
		persistInterval: time.Duration(persistIntervalSeconds) * time.Second,
		stopPersist:     make(chan struct{}),
	}

	if persistIntervalSeconds > 0 {
		go m.periodicPersist()
	}

	return m
}

// Submit registers a job and starts it in the background. Returns the job id.
func (m *Manager) Submit(sub Submission) (string, error) {
	if sub.TargetURL == "" && sub.TargetList == "" {
		return "", fmt.Errorf("either url or url_list is required")
	}
	if sub.Method != "" && sub.Method != "GET" && sub.Method != "POST" && sub.Method != "get" && sub.Method != "post" {
		return "", fmt.Errorf("method must be GET or POST")
	}
	if sub.NumRequests > m.cfg.MaxRequests {
		return "", fmt.Errorf("num_requests exceeds limit of %d", m.cfg.MaxRequests)
	}
	if sub.NumWorkers > m.cfg.MaxWorkers {
		return "", fmt.Errorf("num_workers exceeds limit of %d", m.cfg.MaxWorkers)
	}

	id := fmt.Sprintf("%s_%03d", time.Now().Format("20060102_150405"), m.seq.Add(1)%1000)
	j := &job{
		record: types.JobRecord{
			ID:          id,
			Status:      types.JobPending,
			SubmittedAt: time.Now(),
		},
	}

	m.mu.Lock()
	m.jobs[id] = j
	m.mu.Unlock()

	log.Infof("Job %s submitted: %d requests, %d workers", id, sub.NumRequests, sub.NumWorkers)
	go m.run(j, sub)

	return id, nil
}

// run executes one job end to end.
func (m *Manager) run(j *job, sub Submission) {
	j.appendLog("info", "initializing test...")

	rnd := rotation.NewRand(m.cfg.RandomSeed)

	targetLines := listfile.ParseString(sub.TargetList)
	targets := rotation.NewTargetSelector(rnd, sub.TargetURL, targetLines)
	j.appendLog("info", fmt.Sprintf("%d target(s) accepted", targets.Size()))

	var identities *rotation.IdentityRotator
	if sub.SpoofIdentity {
		identities = rotation.NewIdentityRotator(rnd, listfile.ParseString(sub.IdentityList))
		j.appendLog("info", "identity spoofing enabled")
	}

	httpProxies := listfile.ParseString(sub.HTTPProxyList)
	socks5Proxies := listfile.ParseString(sub.SOCKS5ProxyList)
	if sub.PreflightProxies && (len(httpProxies) > 0 || len(socks5Proxies) > 0) {
		timeout := time.Duration(m.cfg.PreflightTimeoutMs) * time.Millisecond
		httpProxies = rotation.PreflightFilter(context.Background(), httpProxies, timeout, m.cfg.PreflightConcurrency)
		socks5Proxies = rotation.PreflightFilter(context.Background(), socks5Proxies, timeout, m.cfg.PreflightConcurrency)
		j.appendLog("info", fmt.Sprintf("preflight kept %d http and %d socks5 proxies",
			len(httpProxies), len(socks5Proxies)))
	}
	proxies := rotation.NewProxyRotator(rnd, httpProxies, socks5Proxies)
	if proxies.HasAny() {
		scheme := sub.ProxyScheme
		if scheme == "" {
			scheme = "auto"
		}
		j.appendLog("info", fmt.Sprintf("proxy rotation enabled, scheme: %s", scheme))
	}

	verifyTLS := true
	if sub.VerifyTLS != nil {
		verifyTLS = *sub.VerifyTLS
	}

	engCfg := engine.Config{
		Method:            sub.Method,
		NumRequests:       sub.NumRequests,
		NumWorkers:        sub.NumWorkers,
		Headers:           sub.Headers,
		Body:              sub.Data,
		Timeout:           durationOrDefault(sub.TimeoutSeconds, m.cfg.DefaultTimeoutSeconds),
		ProxyTimeout:      durationOrDefault(sub.ProxyTimeoutSeconds, m.cfg.ProxyTimeoutSeconds),
		SpoofIdentity:     sub.SpoofIdentity,
		UserAgents:        listfile.ParseString(sub.UserAgentList),
		Referers:          listfile.ParseString(sub.RefererList),
		RequestsPerSecond: sub.RateLimit,
		ProxyScheme:       rotation.Scheme(sub.ProxyScheme),
		VerifyTLS:         verifyTLS,
	}
	if engCfg.NumRequests <= 0 {
		engCfg.NumRequests = m.cfg.DefaultRequests
	}
	if engCfg.NumWorkers <= 0 {
		engCfg.NumWorkers = m.cfg.DefaultWorkers
	}

	sink := engine.LoggerFunc(func(level engine.Level, message string) {
		j.appendLog(string(level), message)
	})

	eng := engine.New(engCfg, targets, identities, proxies, rnd, sink, m.metrics)

	now := time.Now()
	j.mu.Lock()
	j.record.Status = types.JobRunning
	j.record.StartedAt = &now
	j.mu.Unlock()

	err := eng.Run(context.Background(), j.cancel.Load)

	finished := time.Now()
	j.mu.Lock()
	j.record.FinishedAt = &finished
	if err != nil {
		j.record.Status = types.JobFailed
		j.record.Error = err.Error()
	} else {
		j.record.Report = eng.Report()
		switch eng.State().Status() {
		case engine.StatusCancelled:
			j.record.Status = types.JobCancelled
		default:
			j.record.Status = types.JobCompleted
		}
	}
	status := j.record.Status
	id := j.record.ID
	j.mu.Unlock()

	log.Infof("Job %s finished with status %s", id, status)
	go m.persist()
}

func durationOrDefault(seconds float64, defaultSeconds int) time.Duration {
	if seconds > 0 {
		return time.Duration(seconds * float64(time.Second))
	}
	return time.Duration(defaultSeconds) * time.Second
}

// Cancel requests cooperative cancellation. In-flight requests finish
// naturally within their own timeouts.
func (m *Manager) Cancel(id string) error {
	m.mu.RLock()
	j, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("job not found: %s", id)
	}

	j.mu.Lock()
	status := j.record.Status
	j.mu.Unlock()
	if status != types.JobRunning && status != types.JobPending {
		return fmt.Errorf("job %s is not running", id)
	}

	j.cancel.Store(true)
	j.appendLog("warning", "cancelling test...")
	log.Warnf("Job %s cancellation requested", id)
	return nil
}

// Get returns a copy of the job record.
func (m *Manager) Get(id string) (types.JobRecord, bool) {
	m.mu.RLock()
	j, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return types.JobRecord{}, false
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	return j.record, true
}

// Logs returns entries after the given cursor plus the new cursor position.
func (m *Manager) Logs(id string, after int) ([]LogEntry, int, bool) {
	m.mu.RLock()
	j, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, 0, false
	}

	j.mu.Lock()
	defer j.mu.Unlock()

	if after < 0 {
		after = 0
	}
	if after > len(j.logs) {
		after = len(j.logs)
	}
	entries := append([]LogEntry(nil), j.logs[after:]...)
	return entries, len(j.logs), true
}

// Results returns the final report of a finished job.
func (m *Manager) Results(id string) (*types.RunReport, bool) {
	m.mu.RLock()
	j, ok := m.jobs[id]
	m.mu.RUnlock()
	if !ok {
		return nil, false
	}

	j.mu.Lock()
	defer j.mu.Unlock()
	if j.record.Report == nil {
		return nil, false
	}
	return j.record.Report, true
}

// List returns all job records, newest first.
func (m *Manager) List() []types.JobRecord {
	m.mu.RLock()
	records := make([]types.JobRecord, 0, len(m.jobs))
	for _, j := range m.jobs {
		j.mu.Lock()
		records = append(records, j.record)
		j.mu.Unlock()
	}
	m.mu.RUnlock()

	sort.Slice(records, func(a, b int) bool {
		return records[a].SubmittedAt.After(records[b].SubmittedAt)
	})
	return records
}

// persist saves finished job records (non-blocking for callers that spawn it)
func (m *Manager) persist() {
	if m.store == nil {
		return
	}

	m.persistMu.Lock()
	defer m.persistMu.Unlock()

	finished := make([]types.JobRecord, 0)
	for _, record := range m.List() {
		switch record.Status {
		case types.JobCompleted, types.JobCancelled, types.JobFailed:
			finished = append(finished, record)
		}
	}
	if len(finished) > m.cfg.MaxFinishedJobsRetained {
		finished = finished[:m.cfg.MaxFinishedJobsRetained]
	}

	archive := &types.Archive{Jobs: finished, Updated: time.Now()}
	if err := m.store.Save(archive); err != nil {
		log.Errorf("Failed to persist job archive: %v", err)
	} else {
		log.Debugf("Job archive persisted: %d records", len(finished))
	}
}

func (m *Manager) periodicPersist() {
	ticker := time.NewTicker(m.persistInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.persist()
		case <-m.stopPersist:
			return
		}
	}
}

// LoadFromStorage restores finished job records from the last archive.
func (m *Manager) LoadFromStorage() error {
	if m.store == nil {
		return nil
	}

	archive, err := m.store.Load()
	if err != nil {
		return err
	}
	if archive == nil {
		return nil
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	restored := 0
	for _, record := range archive.Jobs {
		if _, exists := m.jobs[record.ID]; exists {
			continue
		}
		m.jobs[record.ID] = &job{record: record}
		restored++
	}

	log.Infof("Restored %d job records from storage", restored)
	return nil
}

// Close stops background persistence and writes a final archive.
func (m *Manager) Close() {
	m.stopOnce.Do(func() {
		close(m.stopPersist)
	})
	m.persist()
}
