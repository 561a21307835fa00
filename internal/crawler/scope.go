package crawler

import (
	"fmt"
	"net/url"
	"strings"

	"golang.org/x/net/publicsuffix"
)

// ScopeManager decides whether a discovered URL belongs to the engagement.
type ScopeManager interface {
	IsInScope(u *url.URL) bool
	RootDomain() string
}

// DomainScope keeps the traversal inside the target's organizational domain
// (eTLD+1), optionally including its subdomains.
type DomainScope struct {
	rootDomain        string
	includeSubdomains bool
}

// NewDomainScope derives the scope from the crawl's start URL. The Public
// Suffix List handles multi-label registries like example.co.uk correctly.
func NewDomainScope(startURL string, includeSubdomains bool) (*DomainScope, error) {
	u, err := url.Parse(startURL)
	if err != nil {
		return nil, err
	}
	hostname := u.Hostname()
	if hostname == "" {
		return nil, fmt.Errorf("start URL must have a hostname: %s", startURL)
	}

	domain, err := publicsuffix.EffectiveTLDPlusOne(hostname)
	if err != nil {
		return nil, fmt.Errorf("could not determine effective TLD+1 for %s: %w", hostname, err)
	}

	return &DomainScope{rootDomain: domain, includeSubdomains: includeSubdomains}, nil
}

// IsInScope reports whether u stays on the target domain. The subdomain
// check requires a full ".root" suffix so "nottarget.com" never matches
// "target.com".
func (s *DomainScope) IsInScope(u *url.URL) bool {
	if scheme := u.Scheme; scheme != "" && scheme != "http" && scheme != "https" {
		return false
	}
	host := u.Hostname()
	if host == s.rootDomain {
		return true
	}
	return s.includeSubdomains && strings.HasSuffix(host, "."+s.rootDomain)
}

// RootDomain returns the eTLD+1 defining the scope.
func (s *DomainScope) RootDomain() string {
	return s.rootDomain
}
