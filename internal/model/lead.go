package model

import "time"

// LeadStatus tracks a lead's progression through the pipeline stages.
// Progression is strictly forward; stages never regress a lead.
type LeadStatus string

const (
	LeadStatusNew          LeadStatus = "new"
	LeadStatusValidated    LeadStatus = "validated"
	LeadStatusEnriched     LeadStatus = "enriched"
	LeadStatusResearched   LeadStatus = "researched"
	LeadStatusPersonalized LeadStatus = "personalized"
)

var leadStatusRank = map[LeadStatus]int{
	LeadStatusNew:          0,
	LeadStatusValidated:    1,
	LeadStatusEnriched:     2,
	LeadStatusResearched:   3,
	LeadStatusPersonalized: 4,
}

// Rank returns the ordinal position of the status in the pipeline, or
// -1 for an unknown status.
func (s LeadStatus) Rank() int {
	r, ok := leadStatusRank[s]
	if !ok {
		return -1
	}
	return r
}

// Lead is one discovered business record owned by a campaign.
type Lead struct {
	ID         int64  `json:"id"`
	CampaignID string `json:"campaign_id"`
	PlaceID    string `json:"place_id,omitempty"`

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

	Status       LeadStatus `json:"status"`
	EmailValid   bool       `json:"email_valid"`
	PhoneValid   bool       `json:"phone_valid"`
	CompanyValid bool       `json:"company_valid"`

	LinkedInProfile *LinkedInProfile     `json:"linkedin_profile,omitempty"`
	ResearchData    *ResearchData        `json:"research_data,omitempty"`
	Personalized    *PersonalizedMessage `json:"personalized_message,omitempty"`

	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// LinkedInProfile is the enrichment stage payload.
type LinkedInProfile struct {
	Inferred    bool    `json:"inferred"`
	CompanyName string  `json:"company_name"`
	Industry    string  `json:"industry,omitempty"`
	Location    string  `json:"location,omitempty"`
	ProfileURL  string  `json:"profile_url,omitempty"`
	Confidence  float64 `json:"confidence_score"`
}

// ResearchData is the research stage payload.
type ResearchData struct {
	CompanyOverview  string    `json:"company_overview"`
	IndustryInsights string    `json:"industry_insights,omitempty"`
	KeyChallenges    []string  `json:"key_challenges,omitempty"`
	RecentNews       []string  `json:"recent_news,omitempty"`
	Source           string    `json:"source,omitempty"`
	ResearchedAt     time.Time `json:"research_timestamp"`
	Confidence       float64   `json:"confidence_score"`
}

// PersonalizedMessage is the personalization stage payload.
type PersonalizedMessage struct {
	Subject      string            `json:"subject"`
	Message      string            `json:"message"`
	TemplateUsed string            `json:"template_used"`
	Elements     map[string]string `json:"personalization_elements,omitempty"`
	CreatedAt    time.Time         `json:"created_at"`
}

// LeadPatch carries one lead's stage update. Nil fields are untouched;
// a stage batches one patch per lead into a single store write.
type LeadPatch struct {
	LeadID int64

	Status       *LeadStatus
	EmailValid   *bool
	PhoneValid   *bool
	CompanyValid *bool

	LinkedInProfile *LinkedInProfile
	ResearchData    *ResearchData
	Personalized    *PersonalizedMessage
}
