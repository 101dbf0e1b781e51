package account

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/tendant/simple-account/pkg/accounterr"
	"github.com/tendant/simple-account/pkg/crypto"
	"github.com/tendant/simple-account/pkg/dbtx"
	"github.com/tendant/simple-account/pkg/token"
	"github.com/tendant/simple-account/pkg/user"
	"github.com/tendant/simple-account/pkg/utils"
)

// Notifier is the consumer-side interface for account event deliveries.
// Implementations must be safe to call from short-lived goroutines; failures
// are logged by the scheduler and never reach the caller.
type Notifier interface {
	AskLogin(u user.View, pin string) error
	Login(u user.View) error
	Logout(u user.View) error
	AskResetPassword(u user.View, tokenValue string) error
	AskChangeEmail(u user.View, newEmail, tokenValue string) error
	EmailChanged(u user.View) error
	PasswordChanged(u user.View) error
	TwoFaDisabled(u user.View) error
	AccountBlocked(u user.View) error
	ValidateEmail(u user.View) error
}

// SessionEncoder turns an AUTH token into the opaque bearer credential
// returned to clients.
type SessionEncoder interface {
	EncodeLogin(tokenValue string, reqInfo token.RequestInfo) (string, error)
}

// Config holds the service knobs.
type Config struct {
	// AllowSignup gates CreateUser globally.
	AllowSignup bool
	// DemoAccount is an email whose logins bypass the second factor.
	DemoAccount string
	// LoginRetryAttempts is the failed-login count that deactivates an account.
	LoginRetryAttempts int
	// ResetPasswordExpiration bounds the age of a usable reset token.
	ResetPasswordExpiration time.Duration
}

// DefaultConfig returns the development defaults.
func DefaultConfig() Config {
	return Config{
		AllowSignup:             true,
		DemoAccount:             "dev@test.com",
		LoginRetryAttempts:      10,
		ResetPasswordExpiration: 12 * time.Hour,
	}
}

// Service orchestrates signup, login, password and email changes, and the
// two-factor flows. Every mutating operation runs inside one serializable
// transaction through the executor; notifications fire after commit.
type Service struct {
	executor *dbtx.Executor
	users    user.Repository
	tokens   *token.Service
	notifier Notifier
	sessions SessionEncoder
	cfg      Config
	now      func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock substitutes the time source, for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// NewService creates the authentication service.
func NewService(executor *dbtx.Executor, users user.Repository, tokens *token.Service, notifier Notifier, sessions SessionEncoder, cfg Config, opts ...ServiceOption) *Service {
	s := &Service{
		executor: executor,
		users:    users,
		tokens:   tokens,
		notifier: notifier,
		sessions: sessions,
		cfg:      cfg,
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// usersFor binds the user repository to the enclosing transaction.
func (s *Service) usersFor(tx *dbtx.TxContext) user.Repository {
	if tx == nil {
		return s.users
	}
	return s.users.WithTx(tx.Tx())
}

// LoginType tells the client which second factor to present next.
type LoginType string

const (
	LoginTypeEmail LoginType = "email"
	LoginType2FA   LoginType = "2fa"
)

// SignupParams is the raw signup input. Password is plaintext here and
// hashed before any persistence.
type SignupParams struct {
	Email        string
	Password     string
	FirstName    string
	LastName     string
	Username     string
	TermsVersion string
}

// LoginTypeResult is the response shape of CreateUser and AskLogin.
type LoginTypeResult struct {
	Type LoginType `json:"type"`
}

// AskLoginParams is the first-factor input.
type AskLoginParams struct {
	Email    string
	Password string
}

// LoginParams is the full login input.
type LoginParams struct {
	Email     string
	Password  string
	TwoFaCode string
}

// LoginResult carries the bearer credential and the user view.
type LoginResult struct {
	Token string    `json:"token"`
	User  user.View `json:"user"`
}

// ResetPasswordParams consumes a reset token.
type ResetPasswordParams struct {
	Token       string
	NewPassword string
}

// ChangePasswordParams rotates the password of an authenticated user.
type ChangePasswordParams struct {
	OldPassword string
	NewPassword string
}

// AskTwoFactorResult carries a fresh TOTP secret and its otpauth:// URI.
type AskTwoFactorResult struct {
	Secret string `json:"secret"`
	QrData string `json:"qrData"`
}

// CreateUser signs up a new account and falls through to AskLogin. Signing
// up an existing email with the matching password behaves as login
// initiation; with a non-matching password it records a failed attempt and
// returns the neutral email shape, so the response alone never reveals
// whether the account existed.
func (s *Service) CreateUser(ctx context.Context, params SignupParams, reqInfo token.RequestInfo) (LoginTypeResult, error) {
	if !s.cfg.AllowSignup {
		return LoginTypeResult{}, accounterr.New(accounterr.ErrCodeSignupDisabled)
	}

	u, err := dbtx.ExecuteTx(ctx, s.executor, func(ctx context.Context, tx *dbtx.TxContext) (*user.User, error) {
		users := s.usersFor(tx)

		existing, err := users.FindByEmail(ctx, params.Email)
		if err != nil {
			return nil, err
		}

		if existing != nil {
			valid, err := crypto.CheckPasswordHash(params.Password, existing.Password)
			if err != nil {
				return nil, err
			}
			if !valid {
				if err := s.checkFailedLoginAttempts(ctx, tx, existing); err != nil {
					return nil, err
				}
				if err := tx.Commit(ctx); err != nil {
					return nil, err
				}
				return nil, nil
			}
			// Duplicate signup with the correct password: no mutation,
			// proceed as a plain ask-login.
			if err := tx.Rollback(ctx); err != nil {
				return nil, err
			}
			return existing, nil
		}

		hash, err := crypto.HashPassword(params.Password)
		if err != nil {
			return nil, err
		}

		newUser := &user.User{
			Email:        utils.NormalizeEmail(params.Email),
			Password:     hash,
			FirstName:    params.FirstName,
			LastName:     params.LastName,
			Username:     params.Username,
			TermsVersion: params.TermsVersion,
			IsActive:     true,
		}
		if err := users.Create(ctx, newUser); err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}

		slog.Info("User created", "userId", newUser.ID)
		return newUser, nil
	})
	if err != nil {
		return LoginTypeResult{}, err
	}

	if u == nil {
		return LoginTypeResult{Type: LoginTypeEmail}, nil
	}

	return s.AskLogin(ctx, AskLoginParams{Email: params.Email, Password: params.Password}, reqInfo)
}

type askLoginOutcome struct {
	user *user.User
	pin  string
}

// AskLogin verifies the first factor and prepares the second. Accounts
// without TOTP get a fresh email pin; accounts with TOTP get nothing minted
// and proceed straight to code entry.
func (s *Service) AskLogin(ctx context.Context, params AskLoginParams, reqInfo token.RequestInfo) (LoginTypeResult, error) {
	outcome, err := dbtx.ExecuteTx(ctx, s.executor, func(ctx context.Context, tx *dbtx.TxContext) (askLoginOutcome, error) {
		u, err := s.loadActiveUser(ctx, tx, params.Email)
		if err != nil {
			return askLoginOutcome{}, err
		}

		if err := s.verifyPasswordWithLockout(ctx, tx, u, params.Password); err != nil {
			return askLoginOutcome{}, err
		}

		if !u.TwoFactor {
			_, pin, err := s.tokens.CreateFor2FAEmail(ctx, tx, u, reqInfo)
			if err != nil {
				return askLoginOutcome{}, err
			}
			if err := tx.Commit(ctx); err != nil {
				return askLoginOutcome{}, err
			}
			return askLoginOutcome{user: u, pin: pin}, nil
		}

		if err := tx.Rollback(ctx); err != nil {
			return askLoginOutcome{}, err
		}
		return askLoginOutcome{user: u}, nil
	})
	if err != nil {
		return LoginTypeResult{}, err
	}

	if outcome.pin != "" {
		view := outcome.user.View()
		pin := outcome.pin
		utils.SetImmediateAsync(func() error {
			return s.notifier.AskLogin(view, pin)
		})
	}

	slog.Debug("User ask login", "userId", outcome.user.ID)

	if outcome.user.TwoFactor {
		return LoginTypeResult{Type: LoginType2FA}, nil
	}
	return LoginTypeResult{Type: LoginTypeEmail}, nil
}

type loginOutcome struct {
	user          *user.User
	bearer        string
	emailVerified bool
}

// Login runs the full first+second factor check and mints a session. A
// second-factor failure counts as a failed login attempt; that accounting is
// committed before the error is surfaced.
func (s *Service) Login(ctx context.Context, params LoginParams, reqInfo token.RequestInfo) (LoginResult, error) {
	outcome, err := dbtx.ExecuteTx(ctx, s.executor, func(ctx context.Context, tx *dbtx.TxContext) (loginOutcome, error) {
		u, err := s.loadActiveUser(ctx, tx, params.Email)
		if err != nil {
			return loginOutcome{}, err
		}

		if err := s.verifyPasswordWithLockout(ctx, tx, u, params.Password); err != nil {
			return loginOutcome{}, err
		}

		if u.Email != s.cfg.DemoAccount {
			if err := s.tokens.Verify2FA(ctx, tx, u, params.TwoFaCode, reqInfo); err != nil {
				if accounterr.IsCode(err, accounterr.ErrCodeTokenExpired) ||
					accounterr.IsCode(err, accounterr.ErrCodeTwoFactorCodeInvalid) {
					if lockoutErr := s.checkFailedLoginAttempts(ctx, tx, u); lockoutErr != nil {
						return loginOutcome{}, lockoutErr
					}
					if commitErr := tx.Commit(ctx); commitErr != nil {
						return loginOutcome{}, commitErr
					}
				}
				return loginOutcome{}, err
			}
		}

		u.CountLoginFailed = 0

		emailVerified := false
		if !u.VerifyEmail {
			u.VerifyEmail = true
			emailVerified = true
		}
		if err := s.usersFor(tx).Save(ctx, u); err != nil {
			return loginOutcome{}, err
		}

		authToken, err := s.tokens.CreateForLogin(ctx, tx, u.ID, reqInfo)
		if err != nil {
			return loginOutcome{}, err
		}
		bearer, err := s.sessions.EncodeLogin(authToken.Value, reqInfo)
		if err != nil {
			return loginOutcome{}, err
		}

		if err := tx.Commit(ctx); err != nil {
			return loginOutcome{}, err
		}
		return loginOutcome{user: u, bearer: bearer, emailVerified: emailVerified}, nil
	})
	if err != nil {
		return LoginResult{}, err
	}

	view := outcome.user.View()
	if outcome.emailVerified {
		utils.SetImmediateAsync(func() error {
			return s.notifier.ValidateEmail(view)
		})
		slog.Debug("User validate email", "userId", outcome.user.ID)
	} else {
		utils.SetImmediateAsync(func() error {
			return s.notifier.Login(view)
		})
		slog.Debug("User login", "userId", outcome.user.ID)
	}

	return LoginResult{Token: outcome.bearer, User: view}, nil
}

// AskResetPassword issues a reset token and schedules its delivery. Unknown
// or inactive accounts silently succeed so the endpoint cannot be used to
// probe for accounts.
func (s *Service) AskResetPassword(ctx context.Context, email string, reqInfo token.RequestInfo) (bool, error) {
	u, err := s.users.FindByEmail(ctx, email)
	if err != nil {
		return false, err
	}
	if u == nil || !u.IsActive {
		return true, nil
	}

	resetToken, err := dbtx.ExecuteTx(ctx, s.executor, func(ctx context.Context, tx *dbtx.TxContext) (*token.Token, error) {
		if err := s.checkFailedLoginAttempts(ctx, tx, u); err != nil {
			return nil, err
		}

		// The counter bump above may have just deactivated the account.
		if !u.IsActive {
			if err := tx.Commit(ctx); err != nil {
				return nil, err
			}
			return nil, nil
		}

		t, err := s.tokens.CreateForResetPassword(ctx, tx, u, reqInfo)
		if err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		return t, nil
	})
	if err != nil {
		return false, err
	}

	if resetToken != nil {
		view := u.View()
		value := resetToken.Value
		utils.SetImmediateAsync(func() error {
			return s.notifier.AskResetPassword(view, value)
		})
	}

	slog.Debug("User send reset mail", "userId", u.ID)
	return true, nil
}

// ResetPassword consumes a reset token, sets the new password and revokes
// every live credential of the account, sessions included.
func (s *Service) ResetPassword(ctx context.Context, params ResetPasswordParams) (bool, error) {
	owner, err := dbtx.ExecuteTx(ctx, s.executor, func(ctx context.Context, tx *dbtx.TxContext) (*user.User, error) {
		tokenDb, err := s.tokens.FindByTypeAndValueWithUser(ctx, tx, token.TypeResetPassword, params.Token)
		if err != nil {
			return nil, err
		}
		if tokenDb == nil {
			return nil, accounterr.New(accounterr.ErrCodeInvalidToken)
		}
		if tokenDb.CreatedAt.Before(s.now().UTC().Add(-s.cfg.ResetPasswordExpiration)) {
			return nil, accounterr.New(accounterr.ErrCodeTokenExpired)
		}

		same, err := crypto.CheckPasswordHash(params.NewPassword, tokenDb.User.Password)
		if err != nil {
			return nil, err
		}
		if same {
			return nil, accounterr.New(accounterr.ErrCodePasswordShouldBeDifferent)
		}

		hash, err := crypto.HashPassword(params.NewPassword)
		if err != nil {
			return nil, err
		}
		tokenDb.User.Password = hash
		if err := s.usersFor(tx).Save(ctx, tokenDb.User); err != nil {
			return nil, err
		}

		if err := s.revokeTokens(ctx, tx, tokenDb.User, token.TypeResetPassword,
			token.TypeTwoFactorEmailLogin, token.TypeChangeEmail, token.TypeAuth); err != nil {
			return nil, err
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		return tokenDb.User, nil
	})
	if err != nil {
		return false, err
	}

	view := owner.View()
	utils.SetImmediateAsync(func() error {
		return s.notifier.PasswordChanged(view)
	})

	slog.Info("User password reset", "userId", owner.ID)
	return true, nil
}

// AskChangeEmail stages an email change: it mints a change-email token
// bound to the requested address and mails the confirmation link to that
// address. The account's email only changes when ChangeEmail consumes the
// token.
func (s *Service) AskChangeEmail(ctx context.Context, u *user.User, newEmail string, reqInfo token.RequestInfo) (bool, error) {
	newEmail = utils.NormalizeEmail(newEmail)
	if newEmail == "" || newEmail == u.Email {
		return false, accounterr.New(accounterr.ErrCodeBadParams)
	}

	changeToken, err := dbtx.ExecuteTx(ctx, s.executor, func(ctx context.Context, tx *dbtx.TxContext) (*token.Token, error) {
		if existing, err := s.usersFor(tx).FindByEmail(ctx, newEmail); err != nil {
			return nil, err
		} else if existing != nil {
			return nil, accounterr.New(accounterr.ErrCodeBadParams).WithDetail("email", newEmail)
		}

		t, err := s.tokens.CreateForChangeEmail(ctx, tx, u, newEmail, reqInfo)
		if err != nil {
			return nil, err
		}
		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		return t, nil
	})
	if err != nil {
		return false, err
	}

	view := u.View()
	value := changeToken.Value
	utils.SetImmediateAsync(func() error {
		return s.notifier.AskChangeEmail(view, newEmail, value)
	})

	slog.Debug("User ask change email", "userId", u.ID)
	return true, nil
}

// ChangeEmail applies the pending address carried by a change-email token
// and revokes every live credential of the account.
func (s *Service) ChangeEmail(ctx context.Context, tokenValue string) (bool, error) {
	owner, err := dbtx.ExecuteTx(ctx, s.executor, func(ctx context.Context, tx *dbtx.TxContext) (*user.User, error) {
		tokenDb, err := s.tokens.FindByTypeAndValueWithUser(ctx, tx, token.TypeChangeEmail, tokenValue)
		if err != nil {
			return nil, err
		}
		if tokenDb == nil {
			return nil, accounterr.New(accounterr.ErrCodeInvalidToken)
		}

		tokenDb.User.Email = utils.NormalizeEmail(tokenDb.ExtraValue)
		if err := s.usersFor(tx).Save(ctx, tokenDb.User); err != nil {
			return nil, err
		}

		if err := s.revokeTokens(ctx, tx, tokenDb.User, token.TypeResetPassword,
			token.TypeTwoFactorEmailLogin, token.TypeChangeEmail, token.TypeAuth); err != nil {
			return nil, err
		}

		if err := tx.Commit(ctx); err != nil {
			return nil, err
		}
		return tokenDb.User, nil
	})
	if err != nil {
		return false, err
	}

	view := owner.View()
	utils.SetImmediateAsync(func() error {
		return s.notifier.EmailChanged(view)
	})

	slog.Info("User email changed", "userId", owner.ID)
	return true, nil
}

// updatableFields whitelists the profile fields Update may touch.
var updatableFields = map[string]func(*user.User, string){
	"firstName":    func(u *user.User, v string) { u.FirstName = v },
	"lastName":     func(u *user.User, v string) { u.LastName = v },
	"username":     func(u *user.User, v string) { u.Username = v },
	"avatar":       func(u *user.User, v string) { u.Avatar = v },
	"termsVersion": func(u *user.User, v string) { u.TermsVersion = v },
}

// Update applies non-empty profile fields. Unknown fields are rejected.
func (s *Service) Update(ctx context.Context, u *user.User, params map[string]string) (user.View, error) {
	cleaned := utils.RemoveEmptyStrings(params)
	if len(cleaned) == 0 {
		return user.View{}, accounterr.New(accounterr.ErrCodeBadParams)
	}

	for field, value := range cleaned {
		apply, ok := updatableFields[field]
		if !ok {
			return user.View{}, accounterr.Newf(accounterr.ErrCodeBadParams, "unknown field %q", field)
		}
		apply(u, value)
	}

	if err := s.users.Save(ctx, u); err != nil {
		return user.View{}, err
	}
	return u.View(), nil
}

// Logout destroys the AUTH token backing this session.
func (s *Service) Logout(ctx context.Context, u *user.User, sessionToken *token.Token) (bool, error) {
	if err := s.tokens.RemoveToken(ctx, nil, sessionToken.ID); err != nil {
		return false, err
	}

	view := u.View()
	utils.SetImmediateAsync(func() error {
		return s.notifier.Logout(view)
	})

	slog.Debug("User logout", "userId", u.ID)
	return true, nil
}

// ChangePassword rotates the password after re-verifying the current one,
// then revokes every live credential of the account.
func (s *Service) ChangePassword(ctx context.Context, u *user.User, params ChangePasswordParams) (bool, error) {
	err := s.executor.ExecuteTx(ctx, func(ctx context.Context, tx *dbtx.TxContext) error {
		fresh, err := s.reloadUser(ctx, tx, u)
		if err != nil {
			return err
		}

		valid, err := crypto.CheckPasswordHash(params.OldPassword, fresh.Password)
		if err != nil {
			return err
		}
		if !valid {
			return accounterr.New(accounterr.ErrCodeBadCredentials)
		}
		if params.OldPassword == params.NewPassword {
			return accounterr.New(accounterr.ErrCodePasswordShouldBeDifferent)
		}

		hash, err := crypto.HashPassword(params.NewPassword)
		if err != nil {
			return err
		}
		fresh.Password = hash
		if err := s.usersFor(tx).Save(ctx, fresh); err != nil {
			return err
		}

		if err := s.revokeTokens(ctx, tx, fresh, token.TypeResetPassword,
			token.TypeTwoFactorEmailLogin, token.TypeChangeEmail, token.TypeAuth); err != nil {
			return err
		}

		return tx.Commit(ctx)
	})
	if err != nil {
		return false, err
	}

	view := u.View()
	utils.SetImmediateAsync(func() error {
		return s.notifier.PasswordChanged(view)
	})
	return true, nil
}

// AskTwoFactor mints a fresh TOTP secret for an account that does not have
// two-factor enabled yet. The secret only becomes binding via EnableTwoFactor.
func (s *Service) AskTwoFactor(ctx context.Context, u *user.User, reqInfo token.RequestInfo) (AskTwoFactorResult, error) {
	return dbtx.ExecuteTx(ctx, s.executor, func(ctx context.Context, tx *dbtx.TxContext) (AskTwoFactorResult, error) {
		fresh, err := s.reloadUser(ctx, tx, u)
		if err != nil {
			return AskTwoFactorResult{}, err
		}
		if fresh.TwoFactor {
			return AskTwoFactorResult{}, accounterr.New(accounterr.ErrCodeTwoFactorAlreadyOn)
		}

		_, secret, otpauthURL, err := s.tokens.CreateFor2Fa(ctx, tx, fresh, reqInfo)
		if err != nil {
			return AskTwoFactorResult{}, err
		}

		if err := tx.Commit(ctx); err != nil {
			return AskTwoFactorResult{}, err
		}
		return AskTwoFactorResult{Secret: secret, QrData: otpauthURL}, nil
	})
}

// EnableTwoFactor activates TOTP after verifying a code against the secret
// minted by AskTwoFactor, then revokes every other live credential.
func (s *Service) EnableTwoFactor(ctx context.Context, u *user.User, code string, reqInfo token.RequestInfo) (bool, error) {
	err := s.executor.ExecuteTx(ctx, func(ctx context.Context, tx *dbtx.TxContext) error {
		fresh, err := s.reloadUser(ctx, tx, u)
		if err != nil {
			return err
		}
		if fresh.TwoFactor {
			return accounterr.New(accounterr.ErrCodeTwoFactorAlreadyOn)
		}

		// Flip the mode first so verification runs against the TOTP secret
		// minted by AskTwoFactor; persist only once the code checks out.
		fresh.TwoFactor = true
		if err := s.tokens.Verify2FA(ctx, tx, fresh, code, reqInfo); err != nil {
			return err
		}

		if err := s.usersFor(tx).Save(ctx, fresh); err != nil {
			return err
		}

		if err := s.revokeTokens(ctx, tx, fresh, token.TypeResetPassword,
			token.TypeTwoFactorEmailLogin, token.TypeChangeEmail, token.TypeAuth); err != nil {
			return err
		}

		u.TwoFactor = true
		return tx.Commit(ctx)
	})
	if err != nil {
		return false, err
	}
	return true, nil
}

// DisableTwoFactor turns TOTP off after verifying a code. A wrong or expired
// code counts as a failed login attempt; the not-enabled precondition does
// not.
func (s *Service) DisableTwoFactor(ctx context.Context, u *user.User, code string, reqInfo token.RequestInfo) (bool, error) {
	err := s.executor.ExecuteTx(ctx, func(ctx context.Context, tx *dbtx.TxContext) error {
		fresh, err := s.reloadUser(ctx, tx, u)
		if err != nil {
			return err
		}
		if !fresh.TwoFactor {
			return accounterr.New(accounterr.ErrCodeTwoFactorNotEnabled)
		}

		if err := s.tokens.Verify2FA(ctx, tx, fresh, code, reqInfo); err != nil {
			if accounterr.IsCode(err, accounterr.ErrCodeTokenExpired) ||
				accounterr.IsCode(err, accounterr.ErrCodeTwoFactorCodeInvalid) {
				if lockoutErr := s.checkFailedLoginAttempts(ctx, tx, fresh); lockoutErr != nil {
					return lockoutErr
				}
				if commitErr := tx.Commit(ctx); commitErr != nil {
					return commitErr
				}
			}
			return err
		}

		fresh.TwoFactor = false
		if err := s.usersFor(tx).Save(ctx, fresh); err != nil {
			return err
		}

		if err := s.revokeTokens(ctx, tx, fresh, token.TypeTwoFactorLogin,
			token.TypeResetPassword, token.TypeChangeEmail, token.TypeAuth); err != nil {
			return err
		}

		u.TwoFactor = false
		return tx.Commit(ctx)
	})
	if err != nil {
		return false, err
	}

	view := u.View()
	utils.SetImmediateAsync(func() error {
		return s.notifier.TwoFaDisabled(view)
	})
	return true, nil
}

// loadActiveUser resolves an account by email for authentication. Absence
// and inactivity both surface as bad_credentials so responses never reveal
// whether the account exists.
func (s *Service) loadActiveUser(ctx context.Context, tx *dbtx.TxContext, email string) (*user.User, error) {
	u, err := s.usersFor(tx).FindByEmail(ctx, email)
	if err != nil {
		return nil, err
	}
	if u == nil || !u.IsActive {
		return nil, accounterr.New(accounterr.ErrCodeBadCredentials).WithDetail("email", email)
	}
	return u, nil
}

// verifyPasswordWithLockout checks the password and, on mismatch, commits
// the failed-attempt accounting before surfacing bad_credentials.
func (s *Service) verifyPasswordWithLockout(ctx context.Context, tx *dbtx.TxContext, u *user.User, password string) error {
	valid, err := crypto.CheckPasswordHash(password, u.Password)
	if err != nil {
		return err
	}
	if valid {
		return nil
	}

	if err := s.checkFailedLoginAttempts(ctx, tx, u); err != nil {
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return err
	}
	return accounterr.New(accounterr.ErrCodeBadCredentials).WithDetail("email", u.Email)
}

// checkFailedLoginAttempts increments the failed-login counter inside the
// caller's transaction. Reaching the threshold deactivates the account and
// schedules the blocked notice; hammering an already-inactive account more
// than threshold+10 times surfaces disabled_account instead of counting
// forever. It never commits on its own.
func (s *Service) checkFailedLoginAttempts(ctx context.Context, tx *dbtx.TxContext, u *user.User) error {
	newCount := u.CountLoginFailed + 1

	if !u.IsActive && newCount > s.cfg.LoginRetryAttempts+10 {
		return accounterr.New(accounterr.ErrCodeDisabledAccount).WithDetail("email", u.Email)
	}

	u.CountLoginFailed = newCount
	if newCount >= s.cfg.LoginRetryAttempts {
		u.IsActive = false
	}

	if err := s.usersFor(tx).Save(ctx, u); err != nil {
		return err
	}

	if newCount == s.cfg.LoginRetryAttempts {
		view := u.View()
		utils.SetImmediateAsync(func() error {
			return s.notifier.AccountBlocked(view)
		})
	}

	return nil
}

// reloadUser fetches the current row for an already-authenticated user so
// the operation sees fresh state under the transaction.
func (s *Service) reloadUser(ctx context.Context, tx *dbtx.TxContext, u *user.User) (*user.User, error) {
	fresh, err := s.usersFor(tx).FindByID(ctx, u.ID)
	if err != nil {
		return nil, err
	}
	if fresh == nil {
		return nil, fmt.Errorf("user %s not found", u.ID)
	}
	return fresh, nil
}

// revokeTokens deletes all tokens of the given types for the user.
func (s *Service) revokeTokens(ctx context.Context, tx *dbtx.TxContext, u *user.User, types ...token.Type) error {
	for _, typ := range types {
		if err := s.tokens.RemoveTokensByType(ctx, tx, u.ID, typ); err != nil {
			return err
		}
	}
	return nil
}
