package rotation

import (
	"fmt"
	"net/url"
	"strings"

	log "github.com/sirupsen/logrus"
)

// TargetSelector holds the validated target set for a run. The set is
// immutable after construction; selection is uniform-random with replacement.
type TargetSelector struct {
	urls     []string
	distinct int
	rnd      *Rand
}

// NormalizeTarget prepends https:// when no scheme is present and rejects
// anything that still lacks a host component.
func NormalizeTarget(raw string) (string, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return "", fmt.Errorf("empty URL")
	}
	if !strings.HasPrefix(s, "http://") && !strings.HasPrefix(s, "https://") {
		s = "https://" + s
	}

	u, err := url.Parse(s)
	if err != nil {
		return "", fmt.Errorf("parse URL: %w", err)
	}
	if u.Host == "" {
		return "", fmt.Errorf("URL has no host: %s", raw)
	}
	return s, nil
}

// NewTargetSelector builds the selectable set from an optional single URL and
// an optional candidate list. Invalid candidates are dropped with a warning.
func NewTargetSelector(rnd *Rand, single string, candidates []string) *TargetSelector {
	s := &TargetSelector{rnd: rnd}

	add := func(raw string) {
		normalized, err := NormalizeTarget(raw)
		if err != nil {
			log.Warnf("Ignoring invalid target URL %q: %v", raw, err)
			return
		}
		s.urls = append(s.urls, normalized)
	}

	if single != "" {
		add(single)
	}
	for _, candidate := range candidates {
		add(candidate)
	}

	seen := make(map[string]struct{}, len(s.urls))
	for _, u := range s.urls {
		seen[u] = struct{}{}
	}
	s.distinct = len(seen)

	return s
}

// Select returns one accepted target chosen uniformly at random. The second
// return value is false when the accepted set is empty; callers must treat
// that as a fatal configuration error at setup time.
func (s *TargetSelector) Select() (string, bool) {
	if len(s.urls) == 0 {
		return "", false
	}
	if len(s.urls) == 1 {
		return s.urls[0], true
	}
	return s.urls[s.rnd.Intn(len(s.urls))], true
}

// Empty reports whether no candidate survived validation.
func (s *TargetSelector) Empty() bool {
	return len(s.urls) == 0
}

// HasMultiple reports whether more than one distinct target exists.
func (s *TargetSelector) HasMultiple() bool {
	return s.distinct > 1
}

// Size returns the number of accepted entries, duplicates included.
func (s *TargetSelector) Size() int {
	return len(s.urls)
}
