package stats

// OutcomeKind is the classification of one completed or failed attempt.
// Exactly one kind is produced per attempted request.
type OutcomeKind int

const (
	KindSuccess OutcomeKind = iota
	KindHTTPFailure
	KindInvalidTarget
	KindProxyError
	KindConnectTimeout
	KindSSLError
	KindDNSFailure
	KindConnectionRefused
	KindConnectionReset
	KindNetworkError
)

func (k OutcomeKind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindHTTPFailure:
		return "http_failure"
	case KindInvalidTarget:
		return "invalid_target"
	case KindProxyError:
		return "proxy_error"
	case KindConnectTimeout:
		return "connect_timeout"
	case KindSSLError:
		return "ssl_error"
	case KindDNSFailure:
		return "dns_failure"
	case KindConnectionRefused:
		return "connection_refused"
	case KindConnectionReset:
		return "connection_reset"
	default:
		return "network_error"
	}
}

// Outcome is the result of one request attempt. Latency is meaningful only
// when a response was actually obtained (Success or HTTPFailure); ViaProxy
// is meaningful only for KindConnectTimeout.
type Outcome struct {
	Kind       OutcomeKind
	StatusCode int
	Latency    float64
	Message    string
	ViaProxy   bool
}
