package types

import "time"

// JobStatus is the lifecycle state of a submitted load test.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobCancelled JobStatus = "cancelled"
	JobFailed    JobStatus = "failed"
)

// LatencySummary holds derived latency metrics in seconds.
type LatencySummary struct {
	Mean   float64 `json:"mean"`
	Median float64 `json:"median"`
	Min    float64 `json:"min"`
	Max    float64 `json:"max"`
	StdDev float64 `json:"std_dev"`
}

// TargetReport is the per-target result block of a finished run.
// Latency is nil when no response was ever obtained for the target.
type TargetReport struct {
	Attempted         int             `json:"attempted"`
	Succeeded         int             `json:"succeeded"`
	Failed            int             `json:"failed"`
	ProxyErrors       int             `json:"proxy_errors"`
	ProxyTimeouts     int             `json:"proxy_timeouts"`
	SSLErrors         int             `json:"ssl_errors"`
	SuccessRate       float64         `json:"success_rate"`
	RequestsPerSecond float64         `json:"requests_per_second"`
	ErrorMessages     []string        `json:"error_messages,omitempty"`
	LatencySamples    []float64       `json:"latency_samples,omitempty"`
	Latency           *LatencySummary `json:"latency,omitempty"`
}

// RunReport is the sole result object a run produces.
type RunReport struct {
	Targets   map[string]TargetReport `json:"targets"`
	StartTime time.Time               `json:"start_time"`
	EndTime   time.Time               `json:"end_time"`
	Requested int                     `json:"requested"`
	Completed int                     `json:"completed"`
}

// JobRecord is the persisted view of a job.
type JobRecord struct {
	ID          string     `json:"id"`
	Status      JobStatus  `json:"status"`
	Error       string     `json:"error,omitempty"`
	SubmittedAt time.Time  `json:"submitted_at"`
	StartedAt   *time.Time `json:"started_at,omitempty"`
	FinishedAt  *time.Time `json:"finished_at,omitempty"`
	Report      *RunReport `json:"report,omitempty"`
}

// Archive is a point-in-time snapshot of finished jobs for persistence.
type Archive struct {
	Jobs    []JobRecord `json:"jobs"`
	Updated time.Time   `json:"updated"`
}
