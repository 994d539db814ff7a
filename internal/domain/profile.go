package domain

// RatePlan is the tariff category selected on the profile page. It does not
// influence billing.
type RatePlan string

const (
	RatePlanResidential RatePlan = "residential"
	RatePlanCommercial  RatePlan = "commercial"
	RatePlanIndustrial  RatePlan = "industrial"
)

// Valid reports whether p is one of the known plans.
func (p RatePlan) Valid() bool {
	switch p {
	case RatePlanResidential, RatePlanCommercial, RatePlanIndustrial:
		return true
	}
	return false
}

// Profile is stored at users/<uid>/profile and overwritten wholesale on save.
type Profile struct {
	DisplayName  string   `json:"displayName"`
	SerialNumber string   `json:"serialNumber"`
	Email        string   `json:"email"`
	Phone        string   `json:"phone"`
	Address      string   `json:"address"`
	RatePlan     RatePlan `json:"ratePlan"`
	LastUpdated  string   `json:"lastUpdated"`
}

// ProfileUpdateRequest is the body of PUT /v1/profile.
type ProfileUpdateRequest struct {
	DisplayName  string `json:"displayName"`
	SerialNumber string `json:"serialNumber"`
	Email        string `json:"email"`
	Phone        string `json:"phone"`
	Address      string `json:"address"`
	RatePlan     string `json:"ratePlan"`
}

// AccountInfo is the read-only account block of the profile page.
type AccountInfo struct {
	UserID       string `json:"uid"`
	Email        string `json:"email"`
	CreatedAt    string `json:"createdAt"`
	LastSignInAt string `json:"lastSignInAt"`
}

// ProfileView is returned by GET /v1/profile.
type ProfileView struct {
	Profile Profile     `json:"profile"`
	Account AccountInfo `json:"account"`
	Stored  bool        `json:"stored"`
}
