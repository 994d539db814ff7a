package domain

// Hash fragments served by the shell.
const (
	FragmentAuth      = "#auth"
	FragmentDashboard = "#dashboard"
	FragmentProfile   = "#profile"
	FragmentTrends    = "#trends"
	FragmentLogout    = "#logout"
)

// NavigationDecision tells the shell what to do with a fragment: render
// Page, or go to Redirect. SignOut asks for the session to be ended first.
type NavigationDecision struct {
	Fragment string           `json:"fragment"`
	Page     string           `json:"page,omitempty"`
	Redirect string           `json:"redirect,omitempty"`
	SignOut  bool             `json:"signOut,omitempty"`
	Chrome   NavigationChrome `json:"chrome"`
}

// NavigationChrome is the state of the header and sidebar.
type NavigationChrome struct {
	Brand      string `json:"brand"`
	Greeting   string `json:"greeting,omitempty"`
	AuthLabel  string `json:"authLabel"`
	AuthHref   string `json:"authHref"`
	ShowGated  bool   `json:"showGatedLinks"`
	ActiveLink string `json:"activeLink,omitempty"`
}
