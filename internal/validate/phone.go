package validate

import (
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// PhoneResult is the outcome of one phone check.
type PhoneResult struct {
	Input         string `json:"input"`
	Valid         bool   `json:"valid"`
	E164          string `json:"e164,omitempty"`
	International string `json:"international,omitempty"`
	National      string `json:"national,omitempty"`
	NumberType    string `json:"number_type,omitempty"`
	Reason        string `json:"reason,omitempty"`
}

// PhoneChecker validates and normalizes phone numbers. Numbers parse
// against the lead's declared country when one is given, otherwise the
// checker's default region.
type PhoneChecker struct {
	region string
}

func NewPhoneChecker(region string) *PhoneChecker {
	if region == "" {
		region = "US"
	}
	return &PhoneChecker{region: region}
}

// Check parses input against country (an ISO 3166-1 alpha-2 code),
// falling back to the default region when country is empty or not a
// region code.
func (c *PhoneChecker) Check(input, country string) PhoneResult {
	res := PhoneResult{Input: input}
	if strings.TrimSpace(input) == "" {
		res.Reason = "empty number"
		return res
	}

	region := c.region
	if code := strings.ToUpper(strings.TrimSpace(country)); len(code) == 2 {
		region = code
	}

	parsed, err := phonenumbers.Parse(input, region)
	if err != nil {
		res.Reason = "unparseable: " + err.Error()
		return res
	}
	if !phonenumbers.IsValidNumber(parsed) {
		res.Reason = "not a valid number"
		return res
	}

	res.Valid = true
	res.E164 = phonenumbers.Format(parsed, phonenumbers.E164)
	res.International = phonenumbers.Format(parsed, phonenumbers.INTERNATIONAL)
	res.National = phonenumbers.Format(parsed, phonenumbers.NATIONAL)
	res.NumberType = numberTypeName(phonenumbers.GetNumberType(parsed))
	return res
}

func numberTypeName(t phonenumbers.PhoneNumberType) string {
	switch t {
	case phonenumbers.FIXED_LINE:
		return "fixed_line"
	case phonenumbers.MOBILE:
		return "mobile"
	case phonenumbers.FIXED_LINE_OR_MOBILE:
		return "fixed_line_or_mobile"
	case phonenumbers.TOLL_FREE:
		return "toll_free"
	case phonenumbers.PREMIUM_RATE:
		return "premium_rate"
	case phonenumbers.VOIP:
		return "voip"
	default:
		return "unknown"
	}
}
