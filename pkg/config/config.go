package config

import (
	dbutils "github.com/tendant/db-utils/db"
)

// DbConfig holds the postgres connection settings.
type DbConfig struct {
	Host                   string `env:"ACCOUNT_PG_HOST" env-default:"localhost"`
	Port                   uint16 `env:"ACCOUNT_PG_PORT" env-default:"5432"`
	Database               string `env:"ACCOUNT_PG_DATABASE" env-default:"account_db"`
	User                   string `env:"ACCOUNT_PG_USER" env-default:"account"`
	Password               string `env:"ACCOUNT_PG_PASSWORD" env-default:"pwd"`
	RetryConcurrentTimeMs  int    `env:"ACCOUNT_PG_RETRY_CONCURRENT_TIME_MS" env-default:"100"`
}

// ToDbConfig converts to the db-utils pool config.
func (d DbConfig) ToDbConfig() dbutils.DbConfig {
	return dbutils.DbConfig{
		Host:     d.Host,
		Port:     d.Port,
		Database: d.Database,
		User:     d.User,
		Password: d.Password,
	}
}

// AuthConfig holds the knobs consumed by the authentication service and the
// token engine. Cipher keys must be 32 bytes (AES-256).
type AuthConfig struct {
	AllowSignup       bool   `env:"ACCOUNT_ALLOW_SIGNUP" env-default:"true"`
	DemoAccount       string `env:"ACCOUNT_DEMO_ACCOUNT" env-default:"dev@test.com"`
	CipherPasswordKey string `env:"ACCOUNT_CIPHER_PASSWORD" env-default:"1234567890abcdefghijklmnopqrstuv"`
	Cipher2FAKey      string `env:"ACCOUNT_CIPHER_2FA" env-default:"18qh3yav41mjkzv21gfddx0vjrrm86mv"`
	JwtSecret         string `env:"ACCOUNT_JWT_SECRET" env-default:"very-secure-jwt-secret"`
	TotpIssuer        string `env:"ACCOUNT_TOTP_ISSUER" env-default:"simple-account"`

	LoginRetryAttempts             int `env:"ACCOUNT_LOGIN_RETRY_ATTEMPTS" env-default:"10"`
	SessionExpirationDays          int `env:"ACCOUNT_SESSION_EXPIRATION_DAYS" env-default:"7"`
	MailPinExpirationMinutes       int `env:"ACCOUNT_MAIL_PIN_EXPIRATION_MINUTES" env-default:"5"`
	MailResetPasswordExpirationHrs int `env:"ACCOUNT_MAIL_RESET_PASSWORD_EXPIRATION_HOURS" env-default:"12"`
}

// SmtpConfig holds the email notifier settings.
type SmtpConfig struct {
	Host     string `env:"SMTP_HOST" env-default:"localhost"`
	Port     int    `env:"SMTP_PORT" env-default:"587"`
	Username string `env:"SMTP_USERNAME"`
	Password string `env:"SMTP_PASSWORD"`
	From     string `env:"SMTP_FROM" env-default:"no-reply@simple-account.local"`
	BaseURL  string `env:"ACCOUNT_BASE_URL" env-default:"http://localhost:4000"`
}
