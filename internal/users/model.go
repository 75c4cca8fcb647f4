package users

import (
	"strings"
	"time"
)

// User is a signed-in account. Guests never get a row.
type User struct {
	ID           string    `json:"id"`
	Email        string    `json:"email"`
	FullName     string    `json:"fullName"`
	GivenName    string    `json:"givenName"`
	FamilyName   string    `json:"familyName"`
	PictureURL   string    `json:"pictureUrl"`
	AuthProvider string    `json:"authProvider"`
	CreatedAt    time.Time `json:"createdAt"`
	UpdatedAt    time.Time `json:"updatedAt"`
}

// Profile is what /me returns: the account plus its credit balance.
type Profile struct {
	User
	CreditsRemaining int `json:"creditsRemaining"`
}

// DisplayName prefers the full name, then the given name, then the email's local part.
func (u User) DisplayName() string {
	if name := strings.TrimSpace(u.FullName); name != "" {
		return name
	}
	if name := strings.TrimSpace(u.GivenName); name != "" {
		return name
	}
	local, _, _ := strings.Cut(u.Email, "@")
	return local
}

// authProvider derives the provider from the "<provider>:<subject>" id when unset.
func authProvider(user User) string {
	if user.AuthProvider != "" {
		return user.AuthProvider
	}
	if i := strings.IndexByte(user.ID, ':'); i > 0 {
		return user.ID[:i]
	}
	return "google"
}
