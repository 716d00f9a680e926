// Package knowledge holds curated site+intent shortcuts and the matcher that
// looks them up. A Store is built once and only read afterwards.
package knowledge

import (
	"fmt"
	"net/url"
	"strings"
)

type matchKind uint8

const (
	matchExact matchKind = iota
	matchPrefix
	matchDomain
	matchAny
)

// SitePattern matches a normalized site host.
//
//	example.com         exact host
//	exact:example.com   exact host
//	prefix:flights.     host starts with the value
//	domain:ctrip.com    host is ctrip.com or any subdomain of it
//	*                   any site
type SitePattern struct {
	kind  matchKind
	value string
}

// ParseSitePattern parses the textual site pattern form.
func ParseSitePattern(s string) (SitePattern, error) {
	s = strings.TrimSpace(s)
	if s == "*" {
		return SitePattern{kind: matchAny}, nil
	}

	kind, value := matchExact, s
	switch {
	case strings.HasPrefix(s, "exact:"):
		value = strings.TrimPrefix(s, "exact:")
	case strings.HasPrefix(s, "prefix:"):
		kind, value = matchPrefix, strings.TrimPrefix(s, "prefix:")
	case strings.HasPrefix(s, "domain:"):
		kind, value = matchDomain, strings.TrimPrefix(s, "domain:")
	}

	value = strings.TrimSpace(value)
	if kind == matchPrefix {
		value = strings.ToLower(value)
	} else {
		value = NormalizeSite(value)
	}
	if value == "" {
		return SitePattern{}, fmt.Errorf("empty site pattern %q", s)
	}
	if strings.ContainsAny(value, " \t/") {
		return SitePattern{}, fmt.Errorf("site pattern %q is not a host", s)
	}
	return SitePattern{kind: kind, value: value}, nil
}

// MustSitePattern is ParseSitePattern for literals.
func MustSitePattern(s string) SitePattern {
	p, err := ParseSitePattern(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Matches reports whether site (a URL or bare host) satisfies the pattern.
func (p SitePattern) Matches(site string) bool {
	if p.kind == matchAny {
		return true
	}
	host := NormalizeSite(site)
	if host == "" {
		return false
	}
	switch p.kind {
	case matchPrefix:
		return strings.HasPrefix(host, p.value)
	case matchDomain:
		return host == p.value || strings.HasSuffix(host, "."+p.value)
	default:
		return host == p.value
	}
}

func (p SitePattern) String() string {
	switch p.kind {
	case matchAny:
		return "*"
	case matchPrefix:
		return "prefix:" + p.value
	case matchDomain:
		return "domain:" + p.value
	default:
		return p.value
	}
}

func (p SitePattern) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

// NormalizeSite reduces a URL or host to a comparable host: lower-cased, without
// scheme, port, path or a leading "www.".
func NormalizeSite(site string) string {
	s := strings.ToLower(strings.TrimSpace(site))
	if s == "" {
		return ""
	}
	if !strings.Contains(s, "://") {
		s = "//" + s
	}
	host := ""
	if u, err := url.Parse(s); err == nil {
		host = u.Hostname()
	}
	if host == "" {
		host = strings.TrimPrefix(s, "//")
		if i := strings.IndexAny(host, "/?#"); i >= 0 {
			host = host[:i]
		}
	}
	host = strings.TrimSuffix(host, ".")
	return strings.TrimPrefix(host, "www.")
}

// IntentPattern matches the action label of a TaskIntent.
//
//	flight_search          exact label
//	exact:flight_search    exact label
//	prefix:flight_         label starts with the value
//	*                      any intent
//
// Labels compare case-insensitively.
type IntentPattern struct {
	kind  matchKind
	value string
}

// ParseIntentPattern parses the textual intent pattern form.
func ParseIntentPattern(s string) (IntentPattern, error) {
	s = strings.TrimSpace(s)
	if s == "*" {
		return IntentPattern{kind: matchAny}, nil
	}

	kind, value := matchExact, s
	switch {
	case strings.HasPrefix(s, "exact:"):
		value = strings.TrimPrefix(s, "exact:")
	case strings.HasPrefix(s, "prefix:"):
		kind, value = matchPrefix, strings.TrimPrefix(s, "prefix:")
	}
	value = normalizeLabel(value)
	if value == "" {
		return IntentPattern{}, fmt.Errorf("empty intent pattern %q", s)
	}
	return IntentPattern{kind: kind, value: value}, nil
}

// MustIntentPattern is ParseIntentPattern for literals.
func MustIntentPattern(s string) IntentPattern {
	p, err := ParseIntentPattern(s)
	if err != nil {
		panic(err)
	}
	return p
}

// Matches reports whether the intent's action satisfies the pattern.
func (p IntentPattern) Matches(intent TaskIntent) bool {
	if p.kind == matchAny {
		return true
	}
	action := normalizeLabel(intent.Action())
	if action == "" {
		return false
	}
	if p.kind == matchPrefix {
		return strings.HasPrefix(action, p.value)
	}
	return action == p.value
}

func (p IntentPattern) String() string {
	switch p.kind {
	case matchAny:
		return "*"
	case matchPrefix:
		return "prefix:" + p.value
	default:
		return p.value
	}
}

func (p IntentPattern) MarshalText() ([]byte, error) { return []byte(p.String()), nil }

func normalizeLabel(s string) string {
	return strings.ToLower(strings.TrimSpace(s))
}
