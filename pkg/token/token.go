package token

import (
	"time"

	"github.com/google/uuid"

	"github.com/tendant/simple-account/pkg/user"
)

// Type discriminates the token kinds persisted in the tokens table.
type Type string

const (
	TypeAuth                Type = "AUTH"
	TypeResetPassword       Type = "RESET_PASSWORD"
	TypeTwoFactorLogin      Type = "TWO_FACTOR_LOGIN"
	TypeTwoFactorEmailLogin Type = "TWO_FACTOR_EMAIL_LOGIN"
	TypeChangeEmail         Type = "CHANGE_EMAIL"
)

// Token is one issued credential. Value is opaque to callers: a bearer
// secret, an encrypted TOTP secret, or an encrypted pin depending on Type.
// Expiry is always computed from the timestamps plus a type-specific TTL,
// never stored.
type Token struct {
	ID            uuid.UUID
	Value         string
	ExtraValue    string
	UserID        uuid.UUID
	Type          Type
	ClientIp      string
	DeviceID      string
	UserAgentInfo map[string]interface{}
	Suspicious    bool
	Extra         map[string]interface{}
	CreatedAt     time.Time
	UpdatedAt     time.Time

	// User is the owning account, populated by WithUser lookups.
	User *user.User
}

// OlderThan reports whether the token's last update is before now minus ttl.
func (t *Token) OlderThan(ttl time.Duration, now time.Time) bool {
	return t.UpdatedAt.Before(now.Add(-ttl))
}

// RequestInfo captures the client metadata bound to a token at creation.
type RequestInfo struct {
	IP            string
	DeviceID      string
	UserAgentInfo map[string]interface{}
}
