// Package hostname classifies request hosts into local-development and
// production namespaces and extracts the tenant subdomain label.
package hostname

import (
	"strings"
)

// Classification is the result of inspecting a request host.
type Classification struct {
	IsLocal   bool
	Subdomain string // empty when the host carries no subdomain
}

// Classifier is a pure function bundle over a fixed set of local root
// domains. It performs no I/O.
type Classifier struct {
	localRoots []string
}

func NewClassifier(localRoots []string) *Classifier {
	roots := make([]string, 0, len(localRoots))
	for _, r := range localRoots {
		r = strings.ToLower(strings.TrimSpace(r))
		if r != "" {
			roots = append(roots, r)
		}
	}
	return &Classifier{localRoots: roots}
}

// Normalize lowercases a host and strips any port suffix. Bracketed
// IPv6 literals keep their brackets.
func Normalize(host string) string {
	return stripPort(strings.ToLower(strings.TrimSpace(host)))
}

// Classify strips any port suffix, tests the host against the local
// root domains and extracts the subdomain label. Production hosts need
// at least three dot-separated labels to count as subdomain requests.
func (c *Classifier) Classify(host string) Classification {
	host = Normalize(host)
	if host == "" {
		return Classification{}
	}

	for _, root := range c.localRoots {
		if host == root {
			return Classification{IsLocal: true}
		}
		if strings.HasSuffix(host, "."+root) {
			sub := strings.TrimSuffix(host, "."+root)
			// nested labels like a.b.lvh.me are not tenant hosts
			if sub == "" || strings.Contains(sub, ".") {
				return Classification{IsLocal: true}
			}
			return Classification{IsLocal: true, Subdomain: sub}
		}
	}

	labels := strings.Split(host, ".")
	if len(labels) < 3 {
		return Classification{}
	}
	return Classification{Subdomain: labels[0]}
}

// IsBareLocalRoot reports whether the host is a local root domain with
// no subdomain at all, e.g. plain localhost.
func (c *Classifier) IsBareLocalRoot(host string) bool {
	host = Normalize(host)
	for _, root := range c.localRoots {
		if host == root {
			return true
		}
	}
	return false
}

// CookieScopeFor returns the cookie Domain attribute for the host. A
// host under a known root shares cookies across its sibling subdomains;
// anything else stays host-only.
func (c *Classifier) CookieScopeFor(host string) (domain string, hostOnly bool) {
	host = Normalize(host)
	if host == "" {
		return "", true
	}

	for _, root := range c.localRoots {
		if host == root || strings.HasSuffix(host, "."+root) {
			if root == "localhost" {
				// browsers reject Domain=localhost
				return "", true
			}
			return "." + root, false
		}
	}

	labels := strings.Split(host, ".")
	if len(labels) < 3 {
		return "", true
	}
	return "." + strings.Join(labels[1:], "."), false
}

func stripPort(host string) string {
	if i := strings.LastIndexByte(host, ':'); i >= 0 && !strings.Contains(host[i:], "]") {
		return host[:i]
	}
	return host
}
