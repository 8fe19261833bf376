package verify

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"landscout/pkg/utils"
)

// Policy errors.
var (
	ErrSchemeNotAllowed = errors.New("only http and https URLs are verified")
	ErrPrivateHost      = errors.New("private or loopback host")
	ErrBlockedDomain    = errors.New("domain is blocked")
)

// Policy decides which URLs may be fetched at all.
type Policy struct {
	blockedDomains []string
	allowPrivate   bool
}

// NewPolicy creates a policy. Private hosts are refused unless allowPrivate is set.
func NewPolicy(blockedDomains []string, allowPrivate bool) *Policy {
	var blocked []string

	for _, d := range blockedDomains {
		if d = strings.ToLower(strings.TrimSpace(d)); d != "" {
			blocked = append(blocked, d)
		}
	}

	return &Policy{blockedDomains: blocked, allowPrivate: allowPrivate}
}

// Check returns nil when rawURL may be fetched.
func (p *Policy) Check(rawURL string) error {
	u, err := url.Parse(strings.TrimSpace(rawURL))
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Hostname() == "" {
		return fmt.Errorf("%w: %q", ErrSchemeNotAllowed, rawURL)
	}

	host := strings.ToLower(u.Hostname())

	if !p.allowPrivate && utils.IsPrivateHost(host) {
		return fmt.Errorf("%w: %s", ErrPrivateHost, host)
	}

	for _, d := range p.blockedDomains {
		if utils.DomainMatches(host, d) {
			return fmt.Errorf("%w: %s", ErrBlockedDomain, host)
		}
	}

	return nil
}
