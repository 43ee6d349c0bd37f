package validate

import (
	"context"
	"net"
	"regexp"
	"strings"
	"time"
)

var emailFormatRe = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)

// EmailResult is the outcome of one email check.
type EmailResult struct {
	Address  string `json:"address"`
	FormatOK bool   `json:"format_ok"`
	DomainOK bool   `json:"domain_ok"`
	Valid    bool   `json:"valid"`
	Reason   string `json:"reason,omitempty"`
}

// EmailChecker validates address format and then confirms the domain
// resolves. The format check gates the DNS lookup so malformed input
// never hits the resolver.
type EmailChecker struct {
	resolver *net.Resolver
	timeout  time.Duration
}

func NewEmailChecker(timeout time.Duration) *EmailChecker {
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	return &EmailChecker{resolver: net.DefaultResolver, timeout: timeout}
}

func (c *EmailChecker) Check(ctx context.Context, address string) EmailResult {
	res := EmailResult{Address: address}
	address = strings.TrimSpace(address)
	if address == "" {
		res.Reason = "empty address"
		return res
	}
	if !emailFormatRe.MatchString(address) {
		res.Reason = "invalid format"
		return res
	}
	res.FormatOK = true

	domain := address[strings.LastIndex(address, "@")+1:]
	lookupCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	// MX first, A/AAAA as fallback: plenty of small businesses point
	// mail at the bare host.
	if mx, err := c.resolver.LookupMX(lookupCtx, domain); err == nil && len(mx) > 0 {
		res.DomainOK = true
	} else if addrs, err := c.resolver.LookupHost(lookupCtx, domain); err == nil && len(addrs) > 0 {
		res.DomainOK = true
	} else {
		res.Reason = "domain does not resolve"
		return res
	}

	res.Valid = true
	return res
}
