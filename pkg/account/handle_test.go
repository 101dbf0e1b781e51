package account

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-account/pkg/dbtx"
	"github.com/tendant/simple-account/pkg/session"
	"github.com/tendant/simple-account/pkg/token"
	"github.com/tendant/simple-account/pkg/user"
)

type httpFixture struct {
	router   chi.Router
	notifier *recordingNotifier
	users    *user.InMemoryRepository
	tokens   *token.InMemoryRepository
}

func newHTTPFixture(t *testing.T) *httpFixture {
	t.Helper()

	users := user.NewInMemoryRepository()
	tokens := token.NewInMemoryRepository(users)
	tokenSvc := token.NewService(tokens, testCipherKey, "simple-account")
	notifier := &recordingNotifier{}
	codec := session.NewCodec([]byte("test-jwt-secret"), "simple-account")

	service := NewService(dbtx.New(dbtx.NoopBeginner{}), users, tokenSvc, notifier, codec, DefaultConfig())
	authn := session.NewMiddleware(codec, tokenSvc, 7*24*time.Hour)

	router := chi.NewRouter()
	NewHandle(service).RegisterRoutes(router, authn.Authenticator)

	return &httpFixture{router: router, notifier: notifier, users: users, tokens: tokens}
}

func (f *httpFixture) do(t *testing.T, method, path, bearer string, body interface{}) *httptest.ResponseRecorder {
	t.Helper()

	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.RemoteAddr = "127.0.0.1:34567"
	if bearer != "" {
		req.Header.Set("Authorization", "Bearer "+bearer)
	}

	rec := httptest.NewRecorder()
	f.router.ServeHTTP(rec, req)
	return rec
}

func (f *httpFixture) waitForPin(t *testing.T) string {
	t.Helper()

	var pin string
	require.Eventually(t, func() bool {
		c, ok := f.notifier.find("ask_login")
		pin = c.value
		return ok
	}, time.Second, 5*time.Millisecond)
	return pin
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()

	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestSignupLoginAndSessionOverHTTP(t *testing.T) {
	f := newHTTPFixture(t)

	rec := f.do(t, http.MethodPost, "/users", "", map[string]string{
		"email":     "alice@example.com",
		"password":  "hunter2!",
		"firstName": "Alice",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	assert.Equal(t, "email", decodeBody(t, rec)["type"])

	pin := f.waitForPin(t)

	rec = f.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":     "alice@example.com",
		"password":  "hunter2!",
		"twoFaCode": pin,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	bearer, _ := decodeBody(t, rec)["token"].(string)
	require.NotEmpty(t, bearer)

	rec = f.do(t, http.MethodGet, "/users/me", bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "alice@example.com", decodeBody(t, rec)["email"])

	rec = f.do(t, http.MethodPatch, "/users/me", bearer, map[string]string{
		"lastName": "Liddell",
	})
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "Alice Liddell", decodeBody(t, rec)["fullName"])

	rec = f.do(t, http.MethodPost, "/auth/logout", bearer, nil)
	require.Equal(t, http.StatusOK, rec.Code)

	// The session died with its token.
	rec = f.do(t, http.MethodGet, "/users/me", bearer, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestLoginErrorShapeOverHTTP(t *testing.T) {
	f := newHTTPFixture(t)

	rec := f.do(t, http.MethodPost, "/users", "", map[string]string{
		"email":    "alice@example.com",
		"password": "hunter2!",
	})
	require.Equal(t, http.StatusCreated, rec.Code)

	rec = f.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":    "alice@example.com",
		"password": "wrong",
	})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "bad_credentials", body["error"])
	assert.NotEmpty(t, body["message"])
}

func TestChangePasswordRevokesSessionsOverHTTP(t *testing.T) {
	f := newHTTPFixture(t)

	rec := f.do(t, http.MethodPost, "/users", "", map[string]string{
		"email":    "alice@example.com",
		"password": "hunter2!",
	})
	require.Equal(t, http.StatusCreated, rec.Code)
	pin := f.waitForPin(t)

	rec = f.do(t, http.MethodPost, "/auth/login", "", map[string]string{
		"email":     "alice@example.com",
		"password":  "hunter2!",
		"twoFaCode": pin,
	})
	require.Equal(t, http.StatusOK, rec.Code)
	bearer, _ := decodeBody(t, rec)["token"].(string)

	rec = f.do(t, http.MethodPut, "/auth/password", bearer, map[string]string{
		"oldPassword": "hunter2!",
		"newPassword": "n3w-pass!",
	})
	require.Equal(t, http.StatusOK, rec.Code)

	rec = f.do(t, http.MethodGet, "/users/me", bearer, nil)
	assert.Equal(t, http.StatusNotFound, rec.Code)
}

func TestMissingParamsOverHTTP(t *testing.T) {
	f := newHTTPFixture(t)

	rec := f.do(t, http.MethodPost, "/users", "", map[string]string{"email": "a@b.com"})
	assert.Equal(t, http.StatusBadRequest, rec.Code)
	assert.Equal(t, "bad_params", decodeBody(t, rec)["error"])
}
