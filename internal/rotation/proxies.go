package rotation

import (
	"net/url"
	"strings"
)

// Scheme identifies the proxy protocol family.
type Scheme string

const (
	SchemeHTTP   Scheme = "http"
	SchemeSOCKS5 Scheme = "socks5"
)

// Proxy is a scheme-tagged proxy descriptor. Addr is the dialable host:port;
// Username/Password are empty unless the entry carried credentials.
type Proxy struct {
	Scheme   Scheme
	Addr     string
	Username string
	Password string
}

// URL renders the descriptor for http.ProxyURL. SOCKS5 entries use the
// socks5h scheme so DNS resolution happens proxy-side.
func (p *Proxy) URL() *url.URL {
	u := &url.URL{Host: p.Addr}
	switch p.Scheme {
	case SchemeSOCKS5:
		u.Scheme = "socks5h"
	default:
		u.Scheme = "http"
	}
	if p.Username != "" {
		u.User = url.UserPassword(p.Username, p.Password)
	}
	return u
}

// ProxyRotator holds separate HTTP and SOCKS5 pools. Entries are opaque
// "host:port" or "host:port:user:pass" strings; reachability is never
// validated here.
type ProxyRotator struct {
	http   []Proxy
	socks5 []Proxy
	rnd    *Rand
}

func NewProxyRotator(rnd *Rand, httpEntries, socks5Entries []string) *ProxyRotator {
	r := &ProxyRotator{rnd: rnd}
	r.http = parseEntries(httpEntries, SchemeHTTP)
	r.socks5 = parseEntries(socks5Entries, SchemeSOCKS5)
	return r
}

func parseEntries(entries []string, scheme Scheme) []Proxy {
	proxies := make([]Proxy, 0, len(entries))
	for _, entry := range entries {
		entry = strings.TrimSpace(entry)
		if entry == "" || strings.HasPrefix(entry, "#") {
			continue
		}

		p := Proxy{Scheme: scheme, Addr: entry}
		if parts := strings.Split(entry, ":"); len(parts) == 4 {
			p.Addr = parts[0] + ":" + parts[1]
			p.Username = parts[2]
			p.Password = parts[3]
		}
		proxies = append(proxies, p)
	}
	return proxies
}

// Next returns a random proxy of the preferred scheme, or of a uniformly
// chosen non-empty scheme when no preference is given. It returns nil when
// no matching pool has entries.
func (r *ProxyRotator) Next(preferred Scheme) *Proxy {
	switch preferred {
	case SchemeHTTP:
		return pick(r.rnd, r.http)
	case SchemeSOCKS5:
		return pick(r.rnd, r.socks5)
	}

	available := make([]Scheme, 0, 2)
	if len(r.http) > 0 {
		available = append(available, SchemeHTTP)
	}
	if len(r.socks5) > 0 {
		available = append(available, SchemeSOCKS5)
	}
	if len(available) == 0 {
		return nil
	}
	return r.Next(available[r.rnd.Intn(len(available))])
}

func pick(rnd *Rand, pool []Proxy) *Proxy {
	if len(pool) == 0 {
		return nil
	}
	p := pool[rnd.Intn(len(pool))]
	return &p
}

// HasAny reports whether either pool is non-empty.
func (r *ProxyRotator) HasAny() bool {
	return len(r.http) > 0 || len(r.socks5) > 0
}
