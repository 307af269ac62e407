package rotation

import (
	"fmt"
	"net"

	log "github.com/sirupsen/logrus"
)

// IdentityRotator hands out spoofed source addresses for forwarded-address
// headers. It is a best-effort disguise, not a security control: an honest
// origin is free to ignore the headers it feeds.
type IdentityRotator struct {
	pool []string
	rnd  *Rand
}

// NewIdentityRotator validates candidates as IPv4/IPv6 literals and drops
// invalid lines with a warning.
func NewIdentityRotator(rnd *Rand, candidates []string) *IdentityRotator {
	r := &IdentityRotator{rnd: rnd}

	for _, candidate := range candidates {
		if net.ParseIP(candidate) == nil {
			log.Warnf("Ignoring invalid IP address: %s", candidate)
			continue
		}
		r.pool = append(r.pool, candidate)
	}

	return r
}

// Next returns a random pool entry, or synthesizes a random dotted-quad when
// no pool is configured. First and last octets stay in [1,255] to avoid the
// all-zero and broadcast-like edge forms.
func (r *IdentityRotator) Next() string {
	if len(r.pool) > 0 {
		return r.rnd.Pick(r.pool)
	}
	return fmt.Sprintf("%d.%d.%d.%d",
		1+r.rnd.Intn(255), r.rnd.Intn(256), r.rnd.Intn(256), 1+r.rnd.Intn(255))
}

// HasCustom reports whether a user-supplied pool is in use.
func (r *IdentityRotator) HasCustom() bool {
	return len(r.pool) > 0
}
