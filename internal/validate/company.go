package validate

import (
	"context"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

var titleRe = regexp.MustCompile(`(?is)<title[^>]*>(.*?)</title>`)

// CompanyResult is the outcome of one company check.
type CompanyResult struct {
	Valid      bool   `json:"valid"`
	Source     string `json:"source"` // "website" or "name"
	HasName    bool   `json:"has_company_name,omitempty"`
	StatusCode int    `json:"status_code,omitempty"`
	Title      string `json:"title,omitempty"`
	Reason     string `json:"reason,omitempty"`
}

// CompanyChecker confirms a business exists by probing its website.
// When there is no website, or the website check fails, it falls back
// to a name plausibility check; any website failure detail is kept on
// the result.
type CompanyChecker struct {
	client *http.Client
}

func NewCompanyChecker(timeout time.Duration) *CompanyChecker {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &CompanyChecker{client: &http.Client{Timeout: timeout}}
}

// NewCompanyCheckerWithClient is used by tests to inject a client.
func NewCompanyCheckerWithClient(client *http.Client) *CompanyChecker {
	return &CompanyChecker{client: client}
}

func (c *CompanyChecker) Check(ctx context.Context, name, website string) CompanyResult {
	if website == "" {
		return nameFallback(name, CompanyResult{Source: "name"})
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, website, nil)
	if err != nil {
		return nameFallback(name, CompanyResult{Source: "website", Reason: "bad url: " + err.Error()})
	}
	req.Header.Set("User-Agent", "leads-generator/1.0")

	resp, err := c.client.Do(req)
	if err != nil {
		return nameFallback(name, CompanyResult{Source: "website", Reason: "unreachable: " + err.Error()})
	}
	defer resp.Body.Close()

	res := CompanyResult{Source: "website", StatusCode: resp.StatusCode}
	if resp.StatusCode < 200 || resp.StatusCode >= 400 {
		res.Reason = "non-success status"
		return nameFallback(name, res)
	}
	res.Valid = true

	// Only the head of the page is needed for a title.
	head, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
	if m := titleRe.FindSubmatch(head); m != nil {
		res.Title = strings.TrimSpace(string(m[1]))
	}
	return res
}

// nameFallback accepts a company on name plausibility when the website
// could not confirm it, keeping whatever failure detail was collected.
func nameFallback(name string, res CompanyResult) CompanyResult {
	if len(strings.TrimSpace(name)) > 2 {
		res.Valid = true
		res.HasName = true
		res.Source = "name"
		return res
	}
	if res.Reason == "" {
		res.Reason = "no website and name too short"
	}
	return res
}
