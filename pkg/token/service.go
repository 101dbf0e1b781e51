package token

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/pquerna/otp"
	"github.com/pquerna/otp/totp"
	"github.com/xlzd/gotp"

	"github.com/tendant/simple-account/pkg/accounterr"
	"github.com/tendant/simple-account/pkg/crypto"
	"github.com/tendant/simple-account/pkg/dbtx"
	"github.com/tendant/simple-account/pkg/user"
	"github.com/tendant/simple-account/pkg/utils"
)

const (
	// SecretLength is the length in base32 characters of generated token
	// values (20 bytes of entropy).
	SecretLength = 32

	// PinLength is the number of digits in an email login pin.
	PinLength = 6

	totpPeriod = 30
	totpSkew   = 1
)

// DefaultPinExpiration bounds how long an email pin stays valid.
const DefaultPinExpiration = 5 * time.Minute

// Service is the token engine: it mints, reads and consumes typed tokens.
// Creating a non-AUTH token supersedes prior tokens of the same type for the
// user; AUTH tokens are additive, one per active session.
type Service struct {
	repo          Repository
	cipher2FAKey  string
	totpIssuer    string
	pinExpiration time.Duration
	now           func() time.Time
}

// ServiceOption configures a Service.
type ServiceOption func(*Service)

// WithClock substitutes the time source, for tests.
func WithClock(now func() time.Time) ServiceOption {
	return func(s *Service) {
		s.now = now
	}
}

// WithPinExpiration overrides the email pin validity window.
func WithPinExpiration(d time.Duration) ServiceOption {
	return func(s *Service) {
		s.pinExpiration = d
	}
}

// NewService creates a token service. cipher2FAKey protects pin and TOTP
// secrets at rest and must be 32 bytes.
func NewService(repo Repository, cipher2FAKey, totpIssuer string, opts ...ServiceOption) *Service {
	s := &Service{
		repo:          repo,
		cipher2FAKey:  cipher2FAKey,
		totpIssuer:    totpIssuer,
		pinExpiration: DefaultPinExpiration,
		now:           time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// repoFor binds the repository to the enclosing transaction, if any.
func (s *Service) repoFor(tx *dbtx.TxContext) Repository {
	if tx == nil {
		return s.repo
	}
	return s.repo.WithTx(tx.Tx())
}

// CreateToken persists a new token capturing the client metadata from
// reqInfo. userID, value, typ and reqInfo.IP are required.
func (s *Service) CreateToken(ctx context.Context, tx *dbtx.TxContext, userID uuid.UUID, value string, typ Type, reqInfo RequestInfo, extraValue string) (*Token, error) {
	if userID == uuid.Nil || value == "" || typ == "" || reqInfo.IP == "" {
		return nil, fmt.Errorf("missing parameters")
	}

	t := &Token{
		Value:         value,
		ExtraValue:    extraValue,
		UserID:        userID,
		Type:          typ,
		ClientIp:      reqInfo.IP,
		DeviceID:      reqInfo.DeviceID,
		UserAgentInfo: reqInfo.UserAgentInfo,
	}

	if err := s.repoFor(tx).Create(ctx, t); err != nil {
		return nil, err
	}
	return t, nil
}

// CreateForLogin mints an AUTH token with a fresh high-entropy secret.
// AUTH tokens are additive: one per active session, prior sessions survive.
func (s *Service) CreateForLogin(ctx context.Context, tx *dbtx.TxContext, userID uuid.UUID, reqInfo RequestInfo) (*Token, error) {
	secret := gotp.RandomSecret(SecretLength)
	return s.CreateToken(ctx, tx, userID, secret, TypeAuth, reqInfo, "")
}

// CreateFor2FAEmail supersedes prior email login pins, mints a fresh one and
// stores it encrypted. The plaintext pin is returned for delivery only.
func (s *Service) CreateFor2FAEmail(ctx context.Context, tx *dbtx.TxContext, u *user.User, reqInfo RequestInfo) (*Token, string, error) {
	repo := s.repoFor(tx)
	if err := repo.DeleteByUserAndType(ctx, u.ID, TypeTwoFactorEmailLogin); err != nil {
		return nil, "", err
	}

	pin, err := utils.RandomDigits(PinLength)
	if err != nil {
		return nil, "", fmt.Errorf("failed to generate pin: %w", err)
	}

	encryptedPin, err := crypto.Encrypt(pin, s.cipher2FAKey)
	if err != nil {
		return nil, "", err
	}

	t, err := s.CreateToken(ctx, tx, u.ID, encryptedPin, TypeTwoFactorEmailLogin, reqInfo, "")
	if err != nil {
		return nil, "", err
	}
	return t, pin, nil
}

// CreateForResetPassword supersedes prior reset tokens and mints a fresh one.
func (s *Service) CreateForResetPassword(ctx context.Context, tx *dbtx.TxContext, u *user.User, reqInfo RequestInfo) (*Token, error) {
	repo := s.repoFor(tx)
	if err := repo.DeleteByUserAndType(ctx, u.ID, TypeResetPassword); err != nil {
		return nil, err
	}

	secret := gotp.RandomSecret(SecretLength)
	return s.CreateToken(ctx, tx, u.ID, secret, TypeResetPassword, reqInfo, "")
}

// CreateFor2Fa supersedes prior TOTP secrets and mints a fresh shared secret.
// The secret is stored encrypted; the plaintext secret and the otpauth:// URL
// are returned for QR and manual entry.
func (s *Service) CreateFor2Fa(ctx context.Context, tx *dbtx.TxContext, u *user.User, reqInfo RequestInfo) (*Token, string, string, error) {
	repo := s.repoFor(tx)
	if err := repo.DeleteByUserAndType(ctx, u.ID, TypeTwoFactorLogin); err != nil {
		return nil, "", "", err
	}

	key, err := totp.Generate(totp.GenerateOpts{
		Issuer:      s.totpIssuer,
		AccountName: u.Email,
	})
	if err != nil {
		return nil, "", "", fmt.Errorf("failed to generate totp secret: %w", err)
	}

	encryptedSecret, err := crypto.Encrypt(key.Secret(), s.cipher2FAKey)
	if err != nil {
		return nil, "", "", err
	}

	t, err := s.CreateToken(ctx, tx, u.ID, encryptedSecret, TypeTwoFactorLogin, reqInfo, "")
	if err != nil {
		return nil, "", "", err
	}
	return t, key.Secret(), key.URL(), nil
}

// CreateForChangeEmail supersedes prior change-email tokens and mints one
// carrying the pending address in ExtraValue.
func (s *Service) CreateForChangeEmail(ctx context.Context, tx *dbtx.TxContext, u *user.User, newEmail string, reqInfo RequestInfo) (*Token, error) {
	repo := s.repoFor(tx)
	if err := repo.DeleteByUserAndType(ctx, u.ID, TypeChangeEmail); err != nil {
		return nil, err
	}

	secret := gotp.RandomSecret(SecretLength)
	return s.CreateToken(ctx, tx, u.ID, secret, TypeChangeEmail, reqInfo, newEmail)
}

// FindByTypeAndValueWithUser resolves a token and eager-loads its owner.
// A miss yields (nil, nil).
func (s *Service) FindByTypeAndValueWithUser(ctx context.Context, tx *dbtx.TxContext, typ Type, value string) (*Token, error) {
	return s.repoFor(tx).FindByTypeAndValueWithUser(ctx, typ, value)
}

// RemoveToken deletes a single token by ID.
func (s *Service) RemoveToken(ctx context.Context, tx *dbtx.TxContext, id uuid.UUID) error {
	return s.repoFor(tx).Delete(ctx, id)
}

// RemoveTokensByType deletes all tokens of one type for a user.
func (s *Service) RemoveTokensByType(ctx context.Context, tx *dbtx.TxContext, userID uuid.UUID, typ Type) error {
	return s.repoFor(tx).DeleteByUserAndType(ctx, userID, typ)
}

// TouchUpdatedAt force-touches a token's updated_at, keeping a session's
// last-seen time accurate even when nothing else changed.
func (s *Service) TouchUpdatedAt(ctx context.Context, tx *dbtx.TxContext, id uuid.UUID) error {
	return s.repoFor(tx).TouchUpdatedAt(ctx, id)
}

// Verify2FA checks the submitted second factor for the user.
//
// TOTP mode (user.TwoFactor on): validates the code against the decrypted
// shared secret with one period of tolerance; success refreshes the token's
// client IP.
//
// Email-pin mode: the pin is single-use. A present-but-wrong pin destroys the
// token and surfaces two_factor_code_invalid; a correct pin also destroys the
// token and then surfaces token_expired when it outlived the pin window.
func (s *Service) Verify2FA(ctx context.Context, tx *dbtx.TxContext, u *user.User, code string, reqInfo RequestInfo) error {
	repo := s.repoFor(tx)

	typ := TypeTwoFactorEmailLogin
	if u.TwoFactor {
		typ = TypeTwoFactorLogin
	}

	tokens, err := repo.FindByUserAndType(ctx, u.ID, typ)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return accounterr.New(accounterr.ErrCodeTwoFactorTokenRequired)
	}
	twoFaToken := tokens[0]

	if code == "" {
		return accounterr.New(accounterr.ErrCodeTwoFactorCodeRequired)
	}

	secret, err := crypto.Decrypt(twoFaToken.Value, s.cipher2FAKey)
	if err != nil {
		return err
	}

	if u.TwoFactor {
		valid, err := totp.ValidateCustom(code, secret, s.now().UTC(), totp.ValidateOpts{
			Period:    totpPeriod,
			Skew:      totpSkew,
			Digits:    otp.DigitsSix,
			Algorithm: otp.AlgorithmSHA1,
		})
		if err != nil {
			slog.Error("failed to validate totp code", "userId", u.ID, "err", err)
			return accounterr.New(accounterr.ErrCodeTwoFactorCodeInvalid)
		}
		if !valid {
			return accounterr.New(accounterr.ErrCodeTwoFactorCodeInvalid)
		}

		if reqInfo.IP != "" {
			twoFaToken.ClientIp = reqInfo.IP
			if err := repo.Save(ctx, &twoFaToken); err != nil {
				return err
			}
		}
		return nil
	}

	// Pin mode: the token is consumed whether the pin is wrong, expired or
	// correct. The expiry check runs after the destroy so an expired pin
	// cannot be retried.
	if secret != code {
		if err := repo.Delete(ctx, twoFaToken.ID); err != nil {
			return err
		}
		return accounterr.New(accounterr.ErrCodeTwoFactorCodeInvalid)
	}

	if err := repo.Delete(ctx, twoFaToken.ID); err != nil {
		return err
	}

	if twoFaToken.OlderThan(s.pinExpiration, s.now().UTC()) {
		return accounterr.New(accounterr.ErrCodeTokenExpired)
	}

	return nil
}
