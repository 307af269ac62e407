package engine

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"github.com/load-tester-api/internal/rotation"
	"github.com/load-tester-api/internal/stats"
	"golang.org/x/net/proxy"
)

// executeOnce runs one logical request end-to-end: pick a target, assemble
// headers and proxy, issue the call, and report exactly one outcome to the
// aggregator keyed by the target actually used.
func (e *Engine) executeOnce(ctx context.Context) {
	target, ok := e.targets.Select()
	if !ok {
		// Defensive no-op: Run fails at setup when the set is empty.
		return
	}

	headers := e.buildHeaders()

	var pr *rotation.Proxy
	timeout := e.cfg.Timeout
	if e.proxies.HasAny() {
		pr = e.proxies.Next(e.cfg.ProxyScheme)
		if pr != nil {
			// Proxied calls have their own failure-latency profile.
			timeout = e.cfg.ProxyTimeout
			e.logger.Log(LevelInfo, fmt.Sprintf("using proxy: %s", pr.URL().Redacted()))
		}
	}

	outcome := e.attempt(ctx, target, headers, pr, timeout)
	e.stats.Record(target, outcome)

	if e.metrics != nil {
		e.metrics.RecordOutcome(outcome.Kind.String())
		if outcome.Kind == stats.KindSuccess || outcome.Kind == stats.KindHTTPFailure {
			e.metrics.RecordRequestDuration(outcome.Latency)
		}
	}

	switch outcome.Kind {
	case stats.KindSuccess:
		e.logger.Log(LevelInfo, fmt.Sprintf("request succeeded: %d, took %.2fs",
			outcome.StatusCode, outcome.Latency))
	case stats.KindHTTPFailure:
		e.logger.Log(LevelError, fmt.Sprintf("request failed: %d, took %.2fs",
			outcome.StatusCode, outcome.Latency))
	default:
		e.logger.Log(LevelError, outcome.Message)
	}
}

// attempt issues one request and classifies the result. It always produces
// exactly one outcome, never panics on a malformed target, and records a
// latency only when a response was obtained.
func (e *Engine) attempt(ctx context.Context, target string, headers http.Header,
	pr *rotation.Proxy, timeout time.Duration) stats.Outcome {

	// A re-selected target is normalized again at use; this can only fail
	// when a candidate mutated between selection and use.
	normalized, err := rotation.NormalizeTarget(target)
	if err != nil {
		return stats.Outcome{
			Kind:    stats.KindInvalidTarget,
			Message: fmt.Sprintf("invalid URL: %s", target),
		}
	}

	client, err := e.clientFor(pr, timeout)
	if err != nil {
		return stats.Outcome{
			Kind:    stats.KindProxyError,
			Message: fmt.Sprintf("proxy error: %v", err),
		}
	}

	var body io.Reader
	if e.cfg.Method == http.MethodPost {
		payload, err := json.Marshal(e.cfg.Body)
		if err != nil {
			return stats.Outcome{
				Kind:    stats.KindNetworkError,
				Message: fmt.Sprintf("encode request body: %v", err),
			}
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, e.cfg.Method, normalized, body)
	if err != nil {
		return stats.Outcome{
			Kind:    stats.KindInvalidTarget,
			Message: fmt.Sprintf("invalid URL: %s", target),
		}
	}
	req.Header = headers
	if e.cfg.Method == http.MethodPost {
		req.Header.Set("Content-Type", "application/json")
	}

	start := time.Now()
	resp, err := client.Do(req)
	if err != nil {
		return classifyError(err, normalized, pr != nil)
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, resp.Body)

	elapsed := time.Since(start).Seconds()

	if resp.StatusCode == http.StatusOK {
		return stats.Outcome{
			Kind:       stats.KindSuccess,
			StatusCode: resp.StatusCode,
			Latency:    elapsed,
		}
	}
	// Non-200 is not a network fault: the target was reached, so the
	// latency sample still counts.
	return stats.Outcome{
		Kind:       stats.KindHTTPFailure,
		StatusCode: resp.StatusCode,
		Latency:    elapsed,
		Message:    fmt.Sprintf("status code: %d", resp.StatusCode),
	}
}

// buildHeaders assembles the header set from the caller base, a random
// User-Agent, optional spoofed forwarded-address headers, and an optional
// random Referer.
func (e *Engine) buildHeaders() http.Header {
	h := make(http.Header, len(e.cfg.Headers)+4)
	for k, v := range e.cfg.Headers {
		h.Set(k, v)
	}

	if h.Get("User-Agent") == "" {
		h.Set("User-Agent", e.rnd.Pick(e.userAgents))
	}

	if e.cfg.SpoofIdentity {
		ip := e.identities.Next()
		h.Set("X-Forwarded-For", ip)
		h.Set("X-Real-IP", ip)
	}

	if h.Get("Referer") == "" {
		if ref := e.rnd.Pick(e.referers); ref != "" {
			h.Set("Referer", ref)
		}
	}

	return h
}

// clientFor returns the client for one attempt: the shared transport for
// direct calls, or a per-attempt transport carrying the rotated proxy.
// Redirects are followed either way.
func (e *Engine) clientFor(pr *rotation.Proxy, timeout time.Duration) (*http.Client, error) {
	if pr == nil {
		return &http.Client{Transport: e.transport, Timeout: timeout}, nil
	}

	tlsConfig := &tls.Config{InsecureSkipVerify: !e.cfg.VerifyTLS}

	if pr.Scheme == rotation.SchemeSOCKS5 {
		var auth *proxy.Auth
		if pr.Username != "" {
			auth = &proxy.Auth{User: pr.Username, Password: pr.Password}
		}
		// The dialer hands the hostname to the proxy, so DNS resolves
		// proxy-side (socks5h semantics).
		dialer, err := proxy.SOCKS5("tcp", pr.Addr, auth, proxy.Direct)
		if err != nil {
			return nil, fmt.Errorf("SOCKS5 dialer: %w", err)
		}

		transport := &http.Transport{
			Dial: func(network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			},
			DialContext: func(ctx context.Context, network, addr string) (net.Conn, error) {
				return dialer.Dial(network, addr)
			},
			TLSClientConfig: tlsConfig,
		}
		return &http.Client{Transport: transport, Timeout: timeout}, nil
	}

	transport := &http.Transport{
		Proxy: http.ProxyURL(pr.URL()),
		DialContext: (&net.Dialer{
			Timeout: timeout,
		}).DialContext,
		TLSClientConfig: tlsConfig,
	}
	return &http.Client{Transport: transport, Timeout: timeout}, nil
}
