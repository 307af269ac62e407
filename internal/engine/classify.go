package engine

import (
	"context"
	"crypto/tls"
	"crypto/x509"
	"errors"
	"fmt"
	"net"
	"strings"
	"syscall"

	"github.com/load-tester-api/internal/stats"
)

// classifyError maps a transport-level error to exactly one outcome kind.
// Timeouts are checked first so a proxy connect timeout lands in the
// connect-timeout category with the via-proxy flag set, and proxy markers are
// checked before refused/reset because proxy dial failures wrap those errnos.
func classifyError(err error, target string, viaProxy bool) stats.Outcome {
	msg := err.Error()

	if isTimeout(err) {
		return stats.Outcome{
			Kind:     stats.KindConnectTimeout,
			Message:  fmt.Sprintf("connect timeout: %s", target),
			ViaProxy: viaProxy,
		}
	}

	if isTLSError(err, msg) {
		return stats.Outcome{
			Kind:    stats.KindSSLError,
			Message: fmt.Sprintf("SSL error: %v", err),
		}
	}

	// Go's transport prefixes HTTP proxy dial failures with "proxyconnect";
	// the x/net SOCKS5 dialer prefixes its own with "socks connect".
	if strings.Contains(msg, "proxyconnect") || strings.Contains(msg, "socks connect") {
		return stats.Outcome{
			Kind:    stats.KindProxyError,
			Message: fmt.Sprintf("proxy error: %v", err),
		}
	}

	var dnsErr *net.DNSError
	if errors.As(err, &dnsErr) {
		return stats.Outcome{
			Kind:    stats.KindDNSFailure,
			Message: fmt.Sprintf("failed to resolve host: %s", target),
		}
	}

	if errors.Is(err, syscall.ECONNREFUSED) {
		return stats.Outcome{
			Kind:    stats.KindConnectionRefused,
			Message: fmt.Sprintf("connection refused: %s", target),
		}
	}

	if errors.Is(err, syscall.ECONNRESET) {
		return stats.Outcome{
			Kind:    stats.KindConnectionReset,
			Message: fmt.Sprintf("connection reset: %s", target),
		}
	}

	return stats.Outcome{
		Kind:    stats.KindNetworkError,
		Message: fmt.Sprintf("request error: %s - %v", target, err),
	}
}

func isTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isTLSError(err error, msg string) bool {
	var recordErr tls.RecordHeaderError
	if errors.As(err, &recordErr) {
		return true
	}
	var unknownAuthority x509.UnknownAuthorityError
	if errors.As(err, &unknownAuthority) {
		return true
	}
	var hostnameErr x509.HostnameError
	if errors.As(err, &hostnameErr) {
		return true
	}
	var certInvalid x509.CertificateInvalidError
	if errors.As(err, &certInvalid) {
		return true
	}
	return strings.Contains(msg, "tls:") || strings.Contains(msg, "x509:")
}
