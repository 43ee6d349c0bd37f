package model

import (
	"regexp"
	"strings"

	"github.com/nyaruka/phonenumbers"
)

// Business is one record returned by the places search, after cleaning.
type Business struct {
	PlaceID    string  `json:"place_id,omitempty"`
	Name       string  `json:"name"`
	Address    string  `json:"address,omitempty"`
	City       string  `json:"city,omitempty"`
	State      string  `json:"state,omitempty"`
	PostalCode string  `json:"postal_code,omitempty"`
	Country    string  `json:"country,omitempty"`
	Phone      string  `json:"phone,omitempty"`
	Email      string  `json:"email,omitempty"`
	Website    string  `json:"website,omitempty"`
	Category   string  `json:"category,omitempty"`
	Rating     float64 `json:"rating,omitempty"`
	Reviews    int     `json:"reviews_count,omitempty"`
	Latitude   float64 `json:"latitude,omitempty"`
	Longitude  float64 `json:"longitude,omitempty"`
}

var (
	whitespaceRe = regexp.MustCompile(`\s+`)
	emailRe      = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	urlRe        = regexp.MustCompile(`(?i)^https?://(?:(?:[A-Z0-9](?:[A-Z0-9\-]{0,61}[A-Z0-9])?\.)+[A-Z]{2,6}\.?|localhost|\d{1,3}\.\d{1,3}\.\d{1,3}\.\d{1,3})(?::\d+)?(?:/?|[/?]\S+)$`)
	stateZipRe   = regexp.MustCompile(`^([A-Z]{2})\s*(\d{5}(?:-\d{4})?)$`)
)

// Clean normalizes all free-text fields in place and parses address
// components when city/state are missing.
func (b *Business) Clean() {
	b.Name = CleanText(b.Name)
	b.Address = CleanText(b.Address)
	b.Category = CleanText(b.Category)
	b.Phone = CleanPhone(b.Phone)
	b.Website = CleanURL(b.Website)
	b.Email = CleanEmail(b.Email)

	if b.Address != "" && b.City == "" && b.State == "" {
		b.parseAddress()
	}
}

// Lead converts the business into a new lead for the given campaign.
func (b Business) Lead(campaignID string) Lead {
	return Lead{
		CampaignID: campaignID,
		PlaceID:    b.PlaceID,
		Name:       b.Name,
		Address:    b.Address,
		City:       b.City,
		State:      b.State,
		PostalCode: b.PostalCode,
		Country:    b.Country,
		Phone:      b.Phone,
		Email:      b.Email,
		Website:    b.Website,
		Category:   b.Category,
		Rating:     b.Rating,
		Reviews:    b.Reviews,
		Latitude:   b.Latitude,
		Longitude:  b.Longitude,
		Status:     LeadStatusNew,
	}
}

// CleanText collapses whitespace and strips control characters.
func CleanText(s string) string {
	s = strings.ReplaceAll(s, "\n", " ")
	s = strings.ReplaceAll(s, "\t", " ")
	return whitespaceRe.ReplaceAllString(strings.TrimSpace(s), " ")
}

// CleanPhone strips junk characters and, when the number parses as a
// valid US-region number, rewrites it in international format.
func CleanPhone(phone string) string {
	if phone == "" {
		return ""
	}
	var sb strings.Builder
	for _, r := range phone {
		if r >= '0' && r <= '9' || r == '+' || r == '-' || r == '(' || r == ')' || r == ' ' {
			sb.WriteRune(r)
		}
	}
	cleaned := strings.TrimSpace(sb.String())

	parsed, err := phonenumbers.Parse(cleaned, "US")
	if err == nil && phonenumbers.IsValidNumber(parsed) {
		return phonenumbers.Format(parsed, phonenumbers.INTERNATIONAL)
	}
	return cleaned
}

// CleanURL defaults the scheme to https and drops strings that do not
// look like a URL at all.
func CleanURL(raw string) string {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return ""
	}
	if !strings.HasPrefix(raw, "http://") && !strings.HasPrefix(raw, "https://") {
		raw = "https://" + raw
	}
	if urlRe.MatchString(raw) {
		return raw
	}
	return ""
}

// CleanEmail lowercases and drops addresses that fail the format check.
func CleanEmail(email string) string {
	email = strings.ToLower(strings.TrimSpace(email))
	if email == "" || !emailRe.MatchString(email) {
		return ""
	}
	return email
}

// parseAddress pulls city/state/postal code out of a comma-separated
// US-style address tail ("City, ST 98101").
func (b *Business) parseAddress() {
	parts := strings.Split(b.Address, ",")
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	if len(parts) < 2 {
		return
	}

	last := parts[len(parts)-1]
	if m := stateZipRe.FindStringSubmatch(last); m != nil {
		b.State = m[1]
		b.PostalCode = m[2]
		if len(parts) >= 3 {
			b.City = parts[len(parts)-2]
		}
		return
	}

	b.City = last
	if len(parts) >= 3 {
		prev := parts[len(parts)-2]
		if len(prev) == 2 && prev == strings.ToUpper(prev) {
			b.State = prev
		}
	}
}
