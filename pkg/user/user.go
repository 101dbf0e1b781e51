package user

import (
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jinzhu/copier"
)

// User is the account record. Password always holds a bcrypt hash, never a
// plaintext password. Optional text fields use the empty string for null.
type User struct {
	ID               uuid.UUID
	Email            string
	Password         string
	FirstName        string
	LastName         string
	Username         string
	Avatar           string
	TermsVersion     string
	TwoFactor        bool
	IsActive         bool
	VerifyEmail      bool
	CountLoginFailed int
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// FullName joins first and last name.
func (u *User) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// View is the caller-facing projection of a user. It never carries the
// password hash or the failed-login counter.
type View struct {
	ID           uuid.UUID `json:"id"`
	Email        string    `json:"email"`
	FirstName    string    `json:"firstName,omitempty"`
	LastName     string    `json:"lastName,omitempty"`
	FullName     string    `json:"fullName"`
	Username     string    `json:"username,omitempty"`
	Avatar       string    `json:"avatar,omitempty"`
	TermsVersion string    `json:"termsVersion,omitempty"`
	IsActive     bool      `json:"isActive"`
	VerifyEmail  bool      `json:"verifyEmail"`
	TwoFactor    bool      `json:"twoFactor"`
	CreatedAt    time.Time `json:"createdAt"`
}

// View builds the filtered projection of the user.
func (u *User) View() View {
	var view View
	copier.Copy(&view, u)
	view.FullName = u.FullName()
	return view
}
