// Package tenant maps an inbound Host header to a store subdomain.  The
// mapping is a pure function of the header: no lookup, no failure mode.
package tenant

import (
	"net"
	"strings"
)

// SystemLabels are first labels that address the platform itself rather
// than a store.
var SystemLabels = []string{"www", "api", "admin", "app", "mail", "ftp", "cdn", "static"}

// Resolver extracts the tenant label from host names.
type Resolver struct {
	baseSuffix string // "." + base domain; empty accepts any domain
	devSuffix  string
	reserved   map[string]struct{}
}

// NewResolver builds a Resolver.  Outside local development only hosts
// under baseDomain carry a tenant; an empty baseDomain accepts any domain.
// devSuffix is the local development domain suffix (".local" when empty);
// reserved defaults to SystemLabels.
func NewResolver(baseDomain, devSuffix string, reserved []string) *Resolver {
	if devSuffix == "" {
		devSuffix = ".local"
	}
	if !strings.HasPrefix(devSuffix, ".") {
		devSuffix = "." + devSuffix
	}
	if reserved == nil {
		reserved = SystemLabels
	}
	set := make(map[string]struct{}, len(reserved))
	for _, r := range reserved {
		set[strings.ToLower(strings.TrimSpace(r))] = struct{}{}
	}
	r := &Resolver{devSuffix: strings.ToLower(devSuffix), reserved: set}
	if base := strings.Trim(strings.ToLower(strings.TrimSpace(baseDomain)), "."); base != "" {
		r.baseSuffix = "." + base
	}
	return r
}

// Resolve returns the subdomain addressed by host and whether there is one.
//
//	shop.pasal.com   -> "shop", true
//	pasal.com        -> "", false
//	www.pasal.com    -> "", false
//	localhost:3000   -> "", false
//	shop.pasal.local -> "shop", true
//	shop.elsewhere.io -> "", false (base domain pasal.com)
func (r *Resolver) Resolve(host string) (string, bool) {
	hostname := strings.ToLower(strings.TrimSpace(stripPort(host)))
	hostname = strings.TrimSuffix(hostname, ".")
	if hostname == "" {
		return "", false
	}

	if hostname == "localhost" || net.ParseIP(hostname) != nil {
		return "", false
	}

	parts := strings.Split(hostname, ".")

	if strings.HasSuffix(hostname, r.devSuffix) {
		if len(parts) >= 3 {
			return label(parts[0])
		}
		return "", false
	}

	if r.baseSuffix != "" && !strings.HasSuffix(hostname, r.baseSuffix) {
		return "", false
	}
	if len(parts) <= 2 {
		return "", false
	}
	sub, ok := label(parts[0])
	if !ok {
		return "", false
	}
	if _, reserved := r.reserved[sub]; reserved {
		return "", false
	}
	return sub, true
}

// stripPort removes a trailing :port, handling bracketed IPv6 literals.
func stripPort(host string) string {
	if h, _, err := net.SplitHostPort(host); err == nil {
		return h
	}
	if strings.HasPrefix(host, "[") && strings.HasSuffix(host, "]") {
		return host[1 : len(host)-1]
	}
	if i := strings.LastIndexByte(host, ':'); i >= 0 && strings.Count(host, ":") == 1 {
		return host[:i]
	}
	return host
}

func label(s string) (string, bool) {
	if s == "" {
		return "", false
	}
	return s, true
}
