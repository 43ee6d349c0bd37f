package validate

// Summary aggregates a batch of validation results.
type Summary struct {
	Total          int     `json:"total"`
	ValidEmails    int     `json:"valid_emails"`
	ValidPhones    int     `json:"valid_phones"`
	ValidCompanies int     `json:"valid_companies"`
	ValidLeads     int     `json:"valid_leads"`
	Errored        int     `json:"errored"`
	QualityScore   float64 `json:"quality_score"`
}

// Summarize computes batch totals and a 0-100 quality score: the share
// of passing checks across all three checks for every lead.
func Summarize(results []Result) Summary {
	s := Summary{Total: len(results)}
	if len(results) == 0 {
		return s
	}

	passed := 0
	for _, r := range results {
		if r.Err != nil {
			s.Errored++
			continue
		}
		if r.Email.Valid {
			s.ValidEmails++
			passed++
		}
		if r.Phone.Valid {
			s.ValidPhones++
			passed++
		}
		if r.Company.Valid {
			s.ValidCompanies++
			passed++
		}
		if r.Valid() {
			s.ValidLeads++
		}
	}
	s.QualityScore = float64(passed) / float64(3*len(results)) * 100
	return s
}
