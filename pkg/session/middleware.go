package session

import (
	"context"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/render"

	"github.com/tendant/simple-account/pkg/accounterr"
	"github.com/tendant/simple-account/pkg/token"
	"github.com/tendant/simple-account/pkg/user"
)

type ctxKey int

const (
	userCtxKey ctxKey = iota
	tokenCtxKey
)

// UserFromContext returns the authenticated user placed by the middleware.
func UserFromContext(ctx context.Context) (*user.User, bool) {
	u, ok := ctx.Value(userCtxKey).(*user.User)
	return u, ok
}

// TokenFromContext returns the AUTH token backing the current session.
func TokenFromContext(ctx context.Context) (*token.Token, bool) {
	t, ok := ctx.Value(tokenCtxKey).(*token.Token)
	return t, ok
}

// Middleware authenticates requests against the tokens table. The bearer
// JWT only names an AUTH token; liveness, expiry and device binding are
// decided here against the stored row, so revocation is immediate.
type Middleware struct {
	codec      *Codec
	tokens     *token.Service
	sessionTTL time.Duration
	now        func() time.Time

	requireActive        bool
	requireVerifiedEmail bool
}

// MiddlewareOption configures a Middleware.
type MiddlewareOption func(*Middleware)

// WithMiddlewareClock substitutes the time source, for tests.
func WithMiddlewareClock(now func() time.Time) MiddlewareOption {
	return func(m *Middleware) {
		m.now = now
	}
}

// RequireActive rejects sessions of deactivated accounts.
func RequireActive() MiddlewareOption {
	return func(m *Middleware) {
		m.requireActive = true
	}
}

// RequireVerifiedEmail rejects sessions of accounts that never completed a
// login since signup.
func RequireVerifiedEmail() MiddlewareOption {
	return func(m *Middleware) {
		m.requireVerifiedEmail = true
	}
}

// NewMiddleware builds the session authenticator. sessionTTL is the idle
// window measured from the AUTH token's updated_at.
func NewMiddleware(codec *Codec, tokens *token.Service, sessionTTL time.Duration, opts ...MiddlewareOption) *Middleware {
	m := &Middleware{
		codec:      codec,
		tokens:     tokens,
		sessionTTL: sessionTTL,
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Authenticator is the chi middleware. On success the request context
// carries the user and the AUTH token, and the token's updated_at is
// touched so activity slides the expiry window.
func (m *Middleware) Authenticator(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		u, t, err := m.resolve(r)
		if err != nil {
			renderError(w, r, err)
			return
		}

		ctx := context.WithValue(r.Context(), userCtxKey, u)
		ctx = context.WithValue(ctx, tokenCtxKey, t)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

func (m *Middleware) resolve(r *http.Request) (*user.User, *token.Token, error) {
	ctx := r.Context()

	bearer := bearerFromHeader(r)
	if bearer == "" {
		return nil, nil, accounterr.New(accounterr.ErrCodeInvalidToken)
	}

	value, err := m.codec.DecodeLogin(bearer)
	if err != nil {
		return nil, nil, err
	}

	t, err := m.tokens.FindByTypeAndValueWithUser(ctx, nil, token.TypeAuth, value)
	if err != nil {
		return nil, nil, err
	}
	if t == nil || t.User == nil {
		return nil, nil, accounterr.New(accounterr.ErrCodeInvalidToken)
	}

	if t.OlderThan(m.sessionTTL, m.now().UTC()) {
		if err := m.tokens.RemoveToken(ctx, nil, t.ID); err != nil {
			slog.Error("Failed to remove expired session token", "tokenId", t.ID, "err", err)
		}
		return nil, nil, accounterr.New(accounterr.ErrCodeTokenExpired)
	}

	if t.DeviceID != "" && t.DeviceID != r.Header.Get(DeviceIDHeader) {
		return nil, nil, accounterr.New(accounterr.ErrCodeAccessDenied)
	}

	if m.requireActive && !t.User.IsActive {
		return nil, nil, accounterr.New(accounterr.ErrCodeDisabledAccount)
	}
	if m.requireVerifiedEmail && !t.User.VerifyEmail {
		return nil, nil, accounterr.New(accounterr.ErrCodeAccessDenied)
	}

	if err := m.tokens.TouchUpdatedAt(ctx, nil, t.ID); err != nil {
		slog.Error("Failed to touch session token", "tokenId", t.ID, "err", err)
	}

	return t.User, t, nil
}

func bearerFromHeader(r *http.Request) string {
	header := r.Header.Get("Authorization")
	if len(header) > 7 && strings.EqualFold(header[:7], "Bearer ") {
		return header[7:]
	}
	return ""
}

func renderError(w http.ResponseWriter, r *http.Request, err error) {
	code := accounterr.GetCode(err)
	render.Status(r, accounterr.MapErrorCodeToHTTPStatus(code))
	render.JSON(w, r, map[string]interface{}{"error": string(code)})
}
