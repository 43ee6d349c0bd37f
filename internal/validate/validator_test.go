package validate

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Marius-prog/Leads-generator/internal/model"
)

func TestEmailCheckerFormatGate(t *testing.T) {
	c := NewEmailChecker(0)
	ctx := context.Background()

	tests := []struct {
		address string
		reason  string
	}{
		{"", "empty address"},
		{"not-an-email", "invalid format"},
		{"missing@tld", "invalid format"},
		{"@nolocal.com", "invalid format"},
	}
	for _, tt := range tests {
		res := c.Check(ctx, tt.address)
		assert.False(t, res.Valid, tt.address)
		assert.False(t, res.FormatOK, tt.address)
		assert.Equal(t, tt.reason, res.Reason)
	}
}

func TestPhoneChecker(t *testing.T) {
	c := NewPhoneChecker("US")

	res := c.Check("(202) 456-1111", "")
	require.True(t, res.Valid)
	assert.Equal(t, "+12024561111", res.E164)
	assert.Equal(t, "+1 202-456-1111", res.International)
	assert.Equal(t, "(202) 456-1111", res.National)

	res = c.Check("123", "")
	assert.False(t, res.Valid)
	assert.Equal(t, "not a valid number", res.Reason)

	// too short to be routable even though it parses
	res = c.Check("+1-555-0100", "")
	assert.False(t, res.Valid)
	assert.NotEmpty(t, res.Reason)

	res = c.Check("", "")
	assert.False(t, res.Valid)
	assert.Equal(t, "empty number", res.Reason)
}

func TestPhoneCheckerUsesLeadCountry(t *testing.T) {
	c := NewPhoneChecker("US")

	// a Berlin landline is only valid when parsed as German
	res := c.Check("030 901820", "DE")
	require.True(t, res.Valid)
	assert.Equal(t, "+4930901820", res.E164)

	res = c.Check("030 901820", "")
	assert.False(t, res.Valid)

	// lowercase and padded codes still count, junk falls back
	res = c.Check("030 901820", " de ")
	assert.True(t, res.Valid)
	res = c.Check("(202) 456-1111", "Germany")
	assert.True(t, res.Valid, "non-code country falls back to the default region")
}

func TestValidateBatchPhoneRegionFromLead(t *testing.T) {
	v := New(WithWorkers(2), WithPhoneRegion("US"))

	results, err := v.ValidateBatch(context.Background(), []model.Lead{
		{ID: 1, Name: "Berliner Kaffee", Country: "DE", Phone: "030 901820"},
		{ID: 2, Name: "Capitol Coffee", Phone: "(202) 456-1111"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.True(t, results[0].Phone.Valid)
	assert.Equal(t, "+4930901820", results[0].Phone.E164)
	assert.True(t, results[1].Phone.Valid)
	assert.Equal(t, "+12024561111", results[1].Phone.E164)
}

func TestCompanyCheckerWebsite(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		switch r.URL.Path {
		case "/ok":
			fmt.Fprint(w, "<html><head><title>Pike Place Chowder</title></head></html>")
		case "/redirect":
			http.Redirect(w, r, "/ok", http.StatusMovedPermanently)
		default:
			http.Error(w, "gone", http.StatusNotFound)
		}
	}))
	defer srv.Close()

	c := NewCompanyCheckerWithClient(srv.Client())
	ctx := context.Background()

	res := c.Check(ctx, "Pike Place Chowder", srv.URL+"/ok")
	assert.True(t, res.Valid)
	assert.Equal(t, http.StatusOK, res.StatusCode)
	assert.Equal(t, "Pike Place Chowder", res.Title)
	assert.Equal(t, "website", res.Source)

	// redirects are followed before judging the status
	res = c.Check(ctx, "Pike Place Chowder", srv.URL+"/redirect")
	assert.True(t, res.Valid)
	assert.Equal(t, http.StatusOK, res.StatusCode)

	// a failing website falls back to the name, keeping the status
	res = c.Check(ctx, "Pike Place Chowder", srv.URL+"/missing")
	assert.True(t, res.Valid)
	assert.Equal(t, "name", res.Source)
	assert.True(t, res.HasName)
	assert.Equal(t, http.StatusNotFound, res.StatusCode)

	res = c.Check(ctx, "x", srv.URL+"/missing")
	assert.False(t, res.Valid)
}

func TestCompanyCheckerUnreachableFallsBackToName(t *testing.T) {
	srv := httptest.NewServer(http.NotFoundHandler())
	url := srv.URL
	srv.Close()

	c := NewCompanyChecker(0)
	res := c.Check(context.Background(), "Emerald City Plumbing", url)
	assert.True(t, res.Valid)
	assert.Equal(t, "name", res.Source)
	assert.True(t, res.HasName)
	assert.Contains(t, res.Reason, "unreachable")

	res = c.Check(context.Background(), "ab", url)
	assert.False(t, res.Valid)
	assert.Contains(t, res.Reason, "unreachable")
}

func TestCompanyCheckerNameFallback(t *testing.T) {
	c := NewCompanyChecker(0)
	ctx := context.Background()

	res := c.Check(ctx, "Canlis", "")
	assert.True(t, res.Valid)
	assert.Equal(t, "name", res.Source)

	res = c.Check(ctx, "ab", "")
	assert.False(t, res.Valid)

	res = c.Check(ctx, "  ", "")
	assert.False(t, res.Valid)
}

func TestValidateBatchPreservesOrder(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "<title>ok</title>")
	}))
	defer srv.Close()

	var leads []model.Lead
	for i := 0; i < 30; i++ {
		leads = append(leads, model.Lead{
			ID:      int64(i + 1),
			Name:    fmt.Sprintf("Business %d", i),
			Website: srv.URL,
		})
	}

	v := New(WithWorkers(8), WithCompanyChecker(NewCompanyCheckerWithClient(srv.Client())))
	results, err := v.ValidateBatch(context.Background(), leads)
	require.NoError(t, err)
	require.Len(t, results, len(leads))

	for i, res := range results {
		assert.Equal(t, int64(i+1), res.Lead.ID)
		assert.True(t, res.Company.Valid)
		assert.False(t, res.Email.Valid) // no email on input
	}
}

func TestValidateBatchIsolatesPanics(t *testing.T) {
	// a nil company checker panics inside validateOne; the batch must
	// survive and mark only that result
	v := New(WithWorkers(2), WithCompanyChecker(nil))

	results, err := v.ValidateBatch(context.Background(), []model.Lead{
		{ID: 1, Name: "A"},
		{ID: 2, Name: "B"},
	})
	require.NoError(t, err)
	require.Len(t, results, 2)
	for _, res := range results {
		require.Error(t, res.Err)
		assert.Contains(t, res.Err.Error(), "panic")
		assert.False(t, res.Valid())
	}
}

func TestValidateBatchCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	v := New(WithWorkers(2), WithRateLimit(1))
	_, err := v.ValidateBatch(ctx, []model.Lead{{ID: 1, Name: "A"}, {ID: 2, Name: "B"}})
	require.Error(t, err)
}

func TestValidateBatchEmpty(t *testing.T) {
	v := New()
	results, err := v.ValidateBatch(context.Background(), nil)
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestWorkerBoundsClamped(t *testing.T) {
	v := New(WithWorkers(0))
	assert.Equal(t, 1, v.workers)

	v = New(WithWorkers(100))
	assert.Equal(t, 20, v.workers)
}

func TestSummarize(t *testing.T) {
	results := []Result{
		{Email: EmailResult{Valid: true}, Phone: PhoneResult{Valid: true}, Company: CompanyResult{Valid: true}},
		{Email: EmailResult{Valid: true}, Phone: PhoneResult{Valid: false}, Company: CompanyResult{Valid: true}},
		{Email: EmailResult{Valid: false}, Phone: PhoneResult{Valid: false}, Company: CompanyResult{Valid: false}},
		{Err: fmt.Errorf("boom")},
	}

	s := Summarize(results)
	assert.Equal(t, 4, s.Total)
	assert.Equal(t, 2, s.ValidEmails)
	assert.Equal(t, 1, s.ValidPhones)
	assert.Equal(t, 2, s.ValidCompanies)
	assert.Equal(t, 2, s.ValidLeads)
	assert.Equal(t, 1, s.Errored)
	// 5 passing checks across 4 leads * 3 checks
	assert.InDelta(t, 5.0/12.0*100, s.QualityScore, 1e-9)
}

func TestSummarizeEmpty(t *testing.T) {
	s := Summarize(nil)
	assert.Zero(t, s.Total)
	assert.Zero(t, s.QualityScore)
}
