package auth

import (
	"strings"

	"github.com/markbates/goth"
)

// Identity is what an OAuth provider tells us about a user.
type Identity struct {
	Provider   string
	ProviderID string
	Email      string
	Name       string

	// Set when the provider vouches for the address.
	EmailVerified bool
}

// emailVerified reads the provider's verification claim from the raw profile.
// Facebook only exposes confirmed addresses and sends no claim.
func emailVerified(u goth.User) bool {
	if u.Provider == "facebook" {
		return u.Email != ""
	}
	for _, key := range []string{"email_verified", "verified_email"} {
		switch v := u.RawData[key].(type) {
		case bool:
			if v {
				return true
			}
		case string:
			if strings.EqualFold(v, "true") {
				return true
			}
		}
	}
	return false
}

func IdentityFromGoth(u goth.User) Identity {
	name := strings.TrimSpace(u.Name)
	if name == "" {
		name = strings.TrimSpace(u.FirstName + " " + u.LastName)
	}
	if name == "" {
		name = u.NickName
	}
	return Identity{
		Provider:      u.Provider,
		ProviderID:    u.UserID,
		Email:         u.Email,
		Name:          name,
		EmailVerified: emailVerified(u),
	}
}
