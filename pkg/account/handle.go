package account

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/render"

	"github.com/tendant/simple-account/pkg/accounterr"
	"github.com/tendant/simple-account/pkg/session"
)

// Handle exposes the account service over HTTP.
type Handle struct {
	service *Service
}

func NewHandle(service *Service) Handle {
	return Handle{service: service}
}

// RegisterRoutes mounts the public and authenticated endpoints. authn is the
// session middleware applied to the authenticated group.
func (h Handle) RegisterRoutes(r chi.Router, authn func(http.Handler) http.Handler) {
	r.Post("/users", h.CreateUser)
	r.Post("/auth/ask-login", h.AskLogin)
	r.Post("/auth/login", h.Login)
	r.Post("/auth/ask-reset-password", h.AskResetPassword)
	r.Post("/auth/reset-password", h.ResetPassword)
	r.Post("/auth/change-email", h.ChangeEmail)

	r.Group(func(r chi.Router) {
		r.Use(authn)
		r.Get("/users/me", h.Me)
		r.Patch("/users/me", h.Update)
		r.Post("/auth/logout", h.Logout)
		r.Put("/auth/password", h.ChangePassword)
		r.Post("/auth/ask-change-email", h.AskChangeEmail)
		r.Post("/auth/2fa", h.AskTwoFactor)
		r.Put("/auth/2fa", h.EnableTwoFactor)
		r.Delete("/auth/2fa", h.DisableTwoFactor)
	})
}

type createUserRequest struct {
	Email        string `json:"email"`
	Password     string `json:"password"`
	FirstName    string `json:"firstName"`
	LastName     string `json:"lastName"`
	Username     string `json:"username"`
	TermsVersion string `json:"termsVersion"`
}

// CreateUser handles signup.
// (POST /users)
func (h Handle) CreateUser(w http.ResponseWriter, r *http.Request) {
	var data createUserRequest
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		renderError(w, r, accounterr.New(accounterr.ErrCodeBadParams))
		return
	}
	if data.Email == "" || data.Password == "" {
		renderError(w, r, accounterr.New(accounterr.ErrCodeBadParams))
		return
	}

	result, err := h.service.CreateUser(r.Context(), SignupParams{
		Email:        data.Email,
		Password:     data.Password,
		FirstName:    data.FirstName,
		LastName:     data.LastName,
		Username:     data.Username,
		TermsVersion: data.TermsVersion,
	}, session.RequestInfoFromHTTP(r))
	if err != nil {
		slog.Error("Failed to create user", "err", err)
		renderError(w, r, err)
		return
	}

	render.Status(r, http.StatusCreated)
	render.JSON(w, r, result)
}

type askLoginRequest struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AskLogin handles the first factor and triggers pin delivery.
// (POST /auth/ask-login)
func (h Handle) AskLogin(w http.ResponseWriter, r *http.Request) {
	var data askLoginRequest
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		renderError(w, r, accounterr.New(accounterr.ErrCodeBadParams))
		return
	}
	if data.Email == "" || data.Password == "" {
		renderError(w, r, accounterr.New(accounterr.ErrCodeBadParams))
		return
	}

	result, err := h.service.AskLogin(r.Context(), AskLoginParams(data), session.RequestInfoFromHTTP(r))
	if err != nil {
		slog.Error("Failed ask login", "err", err)
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

type loginRequest struct {
	Email     string `json:"email"`
	Password  string `json:"password"`
	TwoFaCode string `json:"twoFaCode"`
}

// Login handles the full login.
// (POST /auth/login)
func (h Handle) Login(w http.ResponseWriter, r *http.Request) {
	var data loginRequest
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		renderError(w, r, accounterr.New(accounterr.ErrCodeBadParams))
		return
	}
	if data.Email == "" || data.Password == "" {
		renderError(w, r, accounterr.New(accounterr.ErrCodeBadParams))
		return
	}

	result, err := h.service.Login(r.Context(), LoginParams(data), session.RequestInfoFromHTTP(r))
	if err != nil {
		slog.Warn("Failed login", "err", err)
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

type askResetPasswordRequest struct {
	Email string `json:"email"`
}

// AskResetPassword handles reset-token issuance.
// (POST /auth/ask-reset-password)
func (h Handle) AskResetPassword(w http.ResponseWriter, r *http.Request) {
	var data askResetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil || data.Email == "" {
		renderError(w, r, accounterr.New(accounterr.ErrCodeBadParams))
		return
	}

	ok, err := h.service.AskResetPassword(r.Context(), data.Email, session.RequestInfoFromHTTP(r))
	if err != nil {
		slog.Error("Failed ask reset password", "err", err)
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]bool{"success": ok})
}

type resetPasswordRequest struct {
	Token       string `json:"token"`
	NewPassword string `json:"newPassword"`
}

// ResetPassword consumes a reset token.
// (POST /auth/reset-password)
func (h Handle) ResetPassword(w http.ResponseWriter, r *http.Request) {
	var data resetPasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		renderError(w, r, accounterr.New(accounterr.ErrCodeBadParams))
		return
	}
	if data.Token == "" || data.NewPassword == "" {
		renderError(w, r, accounterr.New(accounterr.ErrCodeBadParams))
		return
	}

	ok, err := h.service.ResetPassword(r.Context(), ResetPasswordParams(data))
	if err != nil {
		slog.Warn("Failed reset password", "err", err)
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]bool{"success": ok})
}

type changeEmailRequest struct {
	Token string `json:"token"`
}

// ChangeEmail consumes a change-email token.
// (POST /auth/change-email)
func (h Handle) ChangeEmail(w http.ResponseWriter, r *http.Request) {
	var data changeEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil || data.Token == "" {
		renderError(w, r, accounterr.New(accounterr.ErrCodeBadParams))
		return
	}

	ok, err := h.service.ChangeEmail(r.Context(), data.Token)
	if err != nil {
		slog.Warn("Failed change email", "err", err)
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]bool{"success": ok})
}

// Me returns the authenticated user's view.
// (GET /users/me)
func (h Handle) Me(w http.ResponseWriter, r *http.Request) {
	u, ok := session.UserFromContext(r.Context())
	if !ok {
		renderError(w, r, accounterr.New(accounterr.ErrCodeAccessDenied))
		return
	}
	render.JSON(w, r, u.View())
}

// Update patches profile fields.
// (PATCH /users/me)
func (h Handle) Update(w http.ResponseWriter, r *http.Request) {
	u, ok := session.UserFromContext(r.Context())
	if !ok {
		renderError(w, r, accounterr.New(accounterr.ErrCodeAccessDenied))
		return
	}

	var params map[string]string
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		renderError(w, r, accounterr.New(accounterr.ErrCodeBadParams))
		return
	}

	view, err := h.service.Update(r.Context(), u, params)
	if err != nil {
		slog.Warn("Failed update user", "userId", u.ID, "err", err)
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, view)
}

// Logout ends the current session.
// (POST /auth/logout)
func (h Handle) Logout(w http.ResponseWriter, r *http.Request) {
	u, okUser := session.UserFromContext(r.Context())
	t, okToken := session.TokenFromContext(r.Context())
	if !okUser || !okToken {
		renderError(w, r, accounterr.New(accounterr.ErrCodeAccessDenied))
		return
	}

	ok, err := h.service.Logout(r.Context(), u, t)
	if err != nil {
		slog.Error("Failed logout", "userId", u.ID, "err", err)
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]bool{"success": ok})
}

type changePasswordRequest struct {
	OldPassword string `json:"oldPassword"`
	NewPassword string `json:"newPassword"`
}

// ChangePassword rotates the password of the authenticated user.
// (PUT /auth/password)
func (h Handle) ChangePassword(w http.ResponseWriter, r *http.Request) {
	u, ok := session.UserFromContext(r.Context())
	if !ok {
		renderError(w, r, accounterr.New(accounterr.ErrCodeAccessDenied))
		return
	}

	var data changePasswordRequest
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		renderError(w, r, accounterr.New(accounterr.ErrCodeBadParams))
		return
	}
	if data.OldPassword == "" || data.NewPassword == "" {
		renderError(w, r, accounterr.New(accounterr.ErrCodeBadParams))
		return
	}

	okResult, err := h.service.ChangePassword(r.Context(), u, ChangePasswordParams(data))
	if err != nil {
		slog.Warn("Failed change password", "userId", u.ID, "err", err)
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]bool{"success": okResult})
}

type askChangeEmailRequest struct {
	NewEmail string `json:"newEmail"`
}

// AskChangeEmail stages an email change for the authenticated user.
// (POST /auth/ask-change-email)
func (h Handle) AskChangeEmail(w http.ResponseWriter, r *http.Request) {
	u, ok := session.UserFromContext(r.Context())
	if !ok {
		renderError(w, r, accounterr.New(accounterr.ErrCodeAccessDenied))
		return
	}

	var data askChangeEmailRequest
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil || data.NewEmail == "" {
		renderError(w, r, accounterr.New(accounterr.ErrCodeBadParams))
		return
	}

	okResult, err := h.service.AskChangeEmail(r.Context(), u, data.NewEmail, session.RequestInfoFromHTTP(r))
	if err != nil {
		slog.Warn("Failed ask change email", "userId", u.ID, "err", err)
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]bool{"success": okResult})
}

// AskTwoFactor mints a TOTP secret for enrollment.
// (POST /auth/2fa)
func (h Handle) AskTwoFactor(w http.ResponseWriter, r *http.Request) {
	u, ok := session.UserFromContext(r.Context())
	if !ok {
		renderError(w, r, accounterr.New(accounterr.ErrCodeAccessDenied))
		return
	}

	result, err := h.service.AskTwoFactor(r.Context(), u, session.RequestInfoFromHTTP(r))
	if err != nil {
		slog.Warn("Failed ask two factor", "userId", u.ID, "err", err)
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, result)
}

type twoFactorCodeRequest struct {
	TwoFaCode string `json:"twoFaCode"`
}

// EnableTwoFactor activates TOTP after code verification.
// (PUT /auth/2fa)
func (h Handle) EnableTwoFactor(w http.ResponseWriter, r *http.Request) {
	u, ok := session.UserFromContext(r.Context())
	if !ok {
		renderError(w, r, accounterr.New(accounterr.ErrCodeAccessDenied))
		return
	}

	var data twoFactorCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		renderError(w, r, accounterr.New(accounterr.ErrCodeBadParams))
		return
	}

	okResult, err := h.service.EnableTwoFactor(r.Context(), u, data.TwoFaCode, session.RequestInfoFromHTTP(r))
	if err != nil {
		slog.Warn("Failed enable two factor", "userId", u.ID, "err", err)
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]bool{"success": okResult})
}

// DisableTwoFactor deactivates TOTP after code verification.
// (DELETE /auth/2fa)
func (h Handle) DisableTwoFactor(w http.ResponseWriter, r *http.Request) {
	u, ok := session.UserFromContext(r.Context())
	if !ok {
		renderError(w, r, accounterr.New(accounterr.ErrCodeAccessDenied))
		return
	}

	var data twoFactorCodeRequest
	if err := json.NewDecoder(r.Body).Decode(&data); err != nil {
		renderError(w, r, accounterr.New(accounterr.ErrCodeBadParams))
		return
	}

	okResult, err := h.service.DisableTwoFactor(r.Context(), u, data.TwoFaCode, session.RequestInfoFromHTTP(r))
	if err != nil {
		slog.Warn("Failed disable two factor", "userId", u.ID, "err", err)
		renderError(w, r, err)
		return
	}
	render.JSON(w, r, map[string]bool{"success": okResult})
}

// renderError writes the structured error shape for a domain error.
func renderError(w http.ResponseWriter, r *http.Request, err error) {
	code := accounterr.GetCode(err)
	render.Status(r, accounterr.MapErrorCodeToHTTPStatus(code))
	render.JSON(w, r, map[string]interface{}{
		"error":   string(code),
		"message": accounterr.New(code).Description(),
	})
}
