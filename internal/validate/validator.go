// Package validate checks lead contact data: email format and DNS,
// phone number validity, and company existence via website probing.
package validate

import (
	"context"
	"fmt"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
	"golang.org/x/time/rate"

	"github.com/Marius-prog/Leads-generator/internal/model"
)

// Result is the combined validation outcome for one lead. The Lead
// field carries the input so callers can match results positionally
// or by ID.
type Result struct {
	Lead    model.Lead    `json:"-"`
	Email   EmailResult   `json:"email"`
	Phone   PhoneResult   `json:"phone"`
	Company CompanyResult `json:"company"`
	Err     error         `json:"-"`
}

// Valid reports whether the lead has a working email. Outreach needs a
// deliverable address, so summaries count these as usable leads.
func (r Result) Valid() bool {
	return r.Err == nil && r.Email.Valid
}

// Validator runs the three contact checks over batches of leads with
// bounded concurrency.
type Validator struct {
	email   *EmailChecker
	phone   *PhoneChecker
	company *CompanyChecker
	workers int
	limiter *rate.Limiter
}

// Option configures a Validator.
type Option func(*Validator)

// WithWorkers bounds batch concurrency. Values are clamped to [1, 20].
func WithWorkers(n int) Option {
	return func(v *Validator) {
		if n < 1 {
			n = 1
		}
		if n > 20 {
			n = 20
		}
		v.workers = n
	}
}

// WithRateLimit paces outbound checks at n per second.
func WithRateLimit(n float64) Option {
	return func(v *Validator) {
		if n > 0 {
			v.limiter = rate.NewLimiter(rate.Limit(n), 1)
		}
	}
}

// WithPhoneRegion sets the default region for phone parsing, used when
// a lead declares no country.
func WithPhoneRegion(region string) Option {
	return func(v *Validator) { v.phone = NewPhoneChecker(region) }
}

// WithCompanyChecker replaces the company checker; used by tests.
func WithCompanyChecker(c *CompanyChecker) Option {
	return func(v *Validator) { v.company = c }
}

// WithEmailChecker replaces the email checker; used by tests.
func WithEmailChecker(c *EmailChecker) Option {
	return func(v *Validator) { v.email = c }
}

func New(opts ...Option) *Validator {
	v := &Validator{
		email:   NewEmailChecker(5 * time.Second),
		phone:   NewPhoneChecker("US"),
		company: NewCompanyChecker(10 * time.Second),
		workers: 5,
	}
	for _, opt := range opts {
		opt(v)
	}
	return v
}

// ValidateBatch checks all leads and returns one Result per input, in
// input order. A failing or panicking check marks its own Result and
// never aborts the batch; only context cancellation stops early.
func (v *Validator) ValidateBatch(ctx context.Context, leads []model.Lead) ([]Result, error) {
	results := make([]Result, len(leads))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(v.workers)

	for i, lead := range leads {
		g.Go(func() error {
			if v.limiter != nil {
				if err := v.limiter.Wait(ctx); err != nil {
					return eris.Wrap(err, "validate: rate limiter")
				}
			}
			results[i] = v.validateOne(ctx, lead)
			return ctx.Err()
		})
	}

	if err := g.Wait(); err != nil {
		return nil, eris.Wrap(err, "validate: batch")
	}
	return results, nil
}

func (v *Validator) validateOne(ctx context.Context, lead model.Lead) (res Result) {
	defer func() {
		if r := recover(); r != nil {
			res.Err = eris.New(fmt.Sprintf("validate: panic checking lead %d: %v", lead.ID, r))
			zap.L().Error("validation panicked",
				zap.Int64("lead_id", lead.ID),
				zap.Any("panic", r))
		}
	}()

	res.Lead = lead
	res.Email = v.email.Check(ctx, lead.Email)
	res.Phone = v.phone.Check(lead.Phone, lead.Country)
	res.Company = v.company.Check(ctx, lead.Name, lead.Website)

	zap.L().Debug("lead validated",
		zap.Int64("lead_id", lead.ID),
		zap.Bool("email_valid", res.Email.Valid),
		zap.Bool("phone_valid", res.Phone.Valid),
		zap.Bool("company_valid", res.Company.Valid))
	return res
}
