package session

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-account/pkg/accounterr"
	"github.com/tendant/simple-account/pkg/token"
	"github.com/tendant/simple-account/pkg/user"
)

const (
	testSecret = "test-jwt-secret"
	testIssuer = "simple-account"
	testTTL    = 7 * 24 * time.Hour
)

type sessionFixture struct {
	codec      *Codec
	middleware *Middleware
	users      *user.InMemoryRepository
	tokens     *token.InMemoryRepository
	tokenSvc   *token.Service
}

func newSessionFixture(t *testing.T, opts ...MiddlewareOption) *sessionFixture {
	t.Helper()

	users := user.NewInMemoryRepository()
	tokens := token.NewInMemoryRepository(users)
	tokenSvc := token.NewService(tokens, "0123456789abcdef0123456789abcdef", testIssuer)
	codec := NewCodec([]byte(testSecret), testIssuer)

	return &sessionFixture{
		codec:      codec,
		middleware: NewMiddleware(codec, tokenSvc, testTTL, opts...),
		users:      users,
		tokens:     tokens,
		tokenSvc:   tokenSvc,
	}
}

func (f *sessionFixture) createSession(t *testing.T, u *user.User, reqInfo token.RequestInfo) (*token.Token, string) {
	t.Helper()

	authToken, err := f.tokenSvc.CreateForLogin(context.Background(), nil, u.ID, reqInfo)
	require.NoError(t, err)
	bearer, err := f.codec.EncodeLogin(authToken.Value, reqInfo)
	require.NoError(t, err)
	return authToken, bearer
}

func (f *sessionFixture) createUser(t *testing.T) *user.User {
	t.Helper()

	u := &user.User{
		Email:       "alice@example.com",
		Password:    "hash",
		IsActive:    true,
		VerifyEmail: true,
	}
	require.NoError(t, f.users.Create(context.Background(), u))
	return u
}

// serve runs one request through the middleware and reports the status plus
// what the next handler saw in the context.
func (f *sessionFixture) serve(t *testing.T, req *http.Request) (int, *user.User, *token.Token) {
	t.Helper()

	var gotUser *user.User
	var gotToken *token.Token
	next := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotUser, _ = UserFromContext(r.Context())
		gotToken, _ = TokenFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	})

	rec := httptest.NewRecorder()
	f.middleware.Authenticator(next).ServeHTTP(rec, req)
	return rec.Code, gotUser, gotToken
}

func authedRequest(bearer string) *http.Request {
	req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
	req.Header.Set("Authorization", "Bearer "+bearer)
	return req
}

func TestCodecRoundTrip(t *testing.T) {
	codec := NewCodec([]byte(testSecret), testIssuer)

	bearer, err := codec.EncodeLogin("token-value", token.RequestInfo{IP: "127.0.0.1"})
	require.NoError(t, err)

	value, err := codec.DecodeLogin(bearer)
	require.NoError(t, err)
	assert.Equal(t, "token-value", value)
}

func TestCodecRejectsTampering(t *testing.T) {
	codec := NewCodec([]byte(testSecret), testIssuer)
	bearer, err := codec.EncodeLogin("token-value", token.RequestInfo{IP: "127.0.0.1"})
	require.NoError(t, err)

	_, err = codec.DecodeLogin(bearer + "x")
	assert.True(t, accounterr.IsCode(err, accounterr.ErrCodeInvalidToken))

	other := NewCodec([]byte("another-secret"), testIssuer)
	_, err = other.DecodeLogin(bearer)
	assert.True(t, accounterr.IsCode(err, accounterr.ErrCodeInvalidToken))
}

func TestCodecRejectsForeignIssuer(t *testing.T) {
	codec := NewCodec([]byte(testSecret), testIssuer)
	foreign := NewCodec([]byte(testSecret), "someone-else")

	bearer, err := foreign.EncodeLogin("token-value", token.RequestInfo{IP: "127.0.0.1"})
	require.NoError(t, err)

	_, err = codec.DecodeLogin(bearer)
	assert.True(t, accounterr.IsCode(err, accounterr.ErrCodeInvalidToken))
}

func TestMiddleware(t *testing.T) {
	reqInfo := token.RequestInfo{IP: "127.0.0.1"}

	t.Run("ValidSession", func(t *testing.T) {
		f := newSessionFixture(t)
		u := f.createUser(t)
		authToken, bearer := f.createSession(t, u, reqInfo)

		status, gotUser, gotToken := f.serve(t, authedRequest(bearer))
		assert.Equal(t, http.StatusOK, status)
		require.NotNil(t, gotUser)
		assert.Equal(t, u.ID, gotUser.ID)
		require.NotNil(t, gotToken)
		assert.Equal(t, authToken.ID, gotToken.ID)
	})

	t.Run("ActivitySlidesExpiry", func(t *testing.T) {
		f := newSessionFixture(t)
		u := f.createUser(t)
		authToken, bearer := f.createSession(t, u, reqInfo)

		stale := time.Now().UTC().Add(-testTTL + time.Hour)
		f.tokens.SetUpdatedAt(authToken.ID, stale)

		status, _, _ := f.serve(t, authedRequest(bearer))
		assert.Equal(t, http.StatusOK, status)

		list, err := f.tokens.FindByUserAndType(context.Background(), u.ID, token.TypeAuth)
		require.NoError(t, err)
		require.Len(t, list, 1)
		assert.True(t, list[0].UpdatedAt.After(stale))
	})

	t.Run("MissingHeader", func(t *testing.T) {
		f := newSessionFixture(t)

		req := httptest.NewRequest(http.MethodGet, "/users/me", nil)
		status, gotUser, _ := f.serve(t, req)
		assert.Equal(t, accounterr.MapErrorCodeToHTTPStatus(accounterr.ErrCodeInvalidToken), status)
		assert.Nil(t, gotUser)
	})

	t.Run("GarbageBearer", func(t *testing.T) {
		f := newSessionFixture(t)

		status, _, _ := f.serve(t, authedRequest("not-a-jwt"))
		assert.Equal(t, accounterr.MapErrorCodeToHTTPStatus(accounterr.ErrCodeInvalidToken), status)
	})

	t.Run("RevokedToken", func(t *testing.T) {
		f := newSessionFixture(t)
		u := f.createUser(t)
		authToken, bearer := f.createSession(t, u, reqInfo)
		require.NoError(t, f.tokens.Delete(context.Background(), authToken.ID))

		status, _, _ := f.serve(t, authedRequest(bearer))
		assert.Equal(t, accounterr.MapErrorCodeToHTTPStatus(accounterr.ErrCodeInvalidToken), status)
	})

	t.Run("ExpiredSessionIsDestroyed", func(t *testing.T) {
		f := newSessionFixture(t)
		u := f.createUser(t)
		authToken, bearer := f.createSession(t, u, reqInfo)
		f.tokens.SetUpdatedAt(authToken.ID, time.Now().UTC().Add(-testTTL-time.Minute))

		status, _, _ := f.serve(t, authedRequest(bearer))
		assert.Equal(t, accounterr.MapErrorCodeToHTTPStatus(accounterr.ErrCodeTokenExpired), status)

		list, err := f.tokens.FindByUserAndType(context.Background(), u.ID, token.TypeAuth)
		require.NoError(t, err)
		assert.Empty(t, list)
	})

	t.Run("DeviceBinding", func(t *testing.T) {
		f := newSessionFixture(t)
		u := f.createUser(t)
		_, bearer := f.createSession(t, u, token.RequestInfo{IP: "127.0.0.1", DeviceID: "device-1"})

		status, _, _ := f.serve(t, authedRequest(bearer))
		assert.Equal(t, accounterr.MapErrorCodeToHTTPStatus(accounterr.ErrCodeAccessDenied), status)

		req := authedRequest(bearer)
		req.Header.Set(DeviceIDHeader, "device-1")
		status, _, _ = f.serve(t, req)
		assert.Equal(t, http.StatusOK, status)
	})

	t.Run("RequireActive", func(t *testing.T) {
		f := newSessionFixture(t, RequireActive())
		u := f.createUser(t)
		u.IsActive = false
		require.NoError(t, f.users.Save(context.Background(), u))
		_, bearer := f.createSession(t, u, reqInfo)

		status, _, _ := f.serve(t, authedRequest(bearer))
		assert.Equal(t, accounterr.MapErrorCodeToHTTPStatus(accounterr.ErrCodeDisabledAccount), status)
	})

	t.Run("RequireVerifiedEmail", func(t *testing.T) {
		f := newSessionFixture(t, RequireVerifiedEmail())
		u := f.createUser(t)
		u.VerifyEmail = false
		require.NoError(t, f.users.Save(context.Background(), u))
		_, bearer := f.createSession(t, u, reqInfo)

		status, _, _ := f.serve(t, authedRequest(bearer))
		assert.Equal(t, accounterr.MapErrorCodeToHTTPStatus(accounterr.ErrCodeAccessDenied), status)
	})
}
