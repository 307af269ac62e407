package rotation

import (
	"context"
	"net"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	log "github.com/sirupsen/logrus"
)

// PreflightFilter performs a TCP-only connect test over raw proxy entries and
// returns the subset that accepted a connection. It is an optional pre-run
// step; the rotator itself never checks reachability.
func PreflightFilter(ctx context.Context, entries []string, timeout time.Duration, concurrency int) []string {
	if len(entries) == 0 {
		return entries
	}
	if concurrency < 1 {
		concurrency = 50
	}

	log.Infof("Starting proxy preflight: %d entries, concurrency=%d, timeout=%v",
		len(entries), concurrency, timeout)

	startTime := time.Now()

	connectable := make([]string, 0, len(entries))
	var mu sync.Mutex

	sem := make(chan struct{}, concurrency)
	var completed atomic.Int64
	var wg sync.WaitGroup

	for _, entry := range entries {
		if ctx.Err() != nil {
			break
		}

		sem <- struct{}{}
		wg.Add(1)

		go func(raw string) {
			defer wg.Done()
			defer func() { <-sem }()

			if testTCPConnection(dialableAddr(raw), timeout) {
				mu.Lock()
				connectable = append(connectable, raw)
				mu.Unlock()
			}
			completed.Add(1)
		}(entry)
	}

	wg.Wait()

	duration := time.Since(startTime)
	log.Infof("Preflight complete: %d/%d connectable in %v",
		len(connectable), len(entries), duration)

	return connectable
}

// dialableAddr strips trailing credentials from "host:port:user:pass".
func dialableAddr(entry string) string {
	if parts := strings.Split(entry, ":"); len(parts) == 4 {
		return parts[0] + ":" + parts[1]
	}
	return entry
}

func testTCPConnection(address string, timeout time.Duration) bool {
	conn, err := net.DialTimeout("tcp", address, timeout)
	if err != nil {
		return false
	}
	conn.Close()
	return true
}
