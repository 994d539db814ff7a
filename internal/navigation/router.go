// Package navigation decides which page the shell shows for a hash
// fragment, given whether the caller is signed in.
package navigation

import (
	"strings"

	"github.com/boddenberg/electritrack-bfa-go/internal/domain"
)

const brand = "⚡ ElectriTrack"

var gated = map[string]bool{
	domain.FragmentDashboard: true,
	domain.FragmentProfile:   true,
	domain.FragmentTrends:    true,
}

// Resolve maps fragment to a render or redirect decision. user is nil when
// unauthenticated.
func Resolve(fragment string, user *domain.User) domain.NavigationDecision {
	fragment = strings.TrimSpace(fragment)
	authed := user != nil
	d := domain.NavigationDecision{Fragment: fragment}

	switch {
	case fragment == "" || fragment == "#":
		d.Fragment = ""
		if authed {
			d.Redirect = domain.FragmentDashboard
		} else {
			d.Redirect = domain.FragmentAuth
		}
	case gated[fragment]:
		if authed {
			d.Page = fragment
		} else {
			d.Redirect = domain.FragmentAuth
		}
	case fragment == domain.FragmentAuth:
		if authed {
			d.Redirect = domain.FragmentDashboard
		} else {
			d.Page = fragment
		}
	case fragment == domain.FragmentLogout:
		d.SignOut = authed
		d.Redirect = domain.FragmentAuth
	default:
		if authed {
			d.Redirect = domain.FragmentDashboard
		} else {
			d.Redirect = domain.FragmentAuth
		}
	}

	if d.SignOut {
		user = nil
	}
	active := d.Page
	if active == "" {
		active = d.Redirect
	}
	d.Chrome = Chrome(user, active)
	return d
}

// Chrome returns the header state for user (nil when signed out) with the
// active link set to page.
func Chrome(user *domain.User, page string) domain.NavigationChrome {
	if user == nil {
		return domain.NavigationChrome{
			Brand:      brand,
			AuthLabel:  "Sign In",
			AuthHref:   domain.FragmentAuth,
			ActiveLink: page,
		}
	}
	return domain.NavigationChrome{
		Brand:      brand,
		Greeting:   Greeting(user),
		AuthLabel:  "Logout",
		AuthHref:   domain.FragmentLogout,
		ShowGated:  true,
		ActiveLink: page,
	}
}

// Greeting is "Hello, <display name>" falling back to the email local part.
func Greeting(user *domain.User) string {
	name := user.DisplayName
	if name == "" {
		name, _, _ = strings.Cut(user.Email, "@")
	}
	return "Hello, " + name
}
