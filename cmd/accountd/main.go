package main

import (
	"context"
	"log/slog"
	"os"
	"time"

	"github.com/ilyakaznacheev/cleanenv"
	"github.com/tendant/chi-demo/app"
	dbutils "github.com/tendant/db-utils/db"

	"github.com/tendant/simple-account/pkg/account"
	"github.com/tendant/simple-account/pkg/config"
	"github.com/tendant/simple-account/pkg/dbtx"
	"github.com/tendant/simple-account/pkg/notification"
	"github.com/tendant/simple-account/pkg/session"
	"github.com/tendant/simple-account/pkg/token"
	"github.com/tendant/simple-account/pkg/user"
)

type Config struct {
	DbConfig   config.DbConfig
	AppConfig  app.AppConfig
	AuthConfig config.AuthConfig
	SmtpConfig config.SmtpConfig
	SmtpTLS    bool `env:"SMTP_TLS" env-default:"false"`
}

func main() {

	cfg := Config{}
	cleanenv.ReadEnv(&cfg)

	server := app.DefaultApp()

	app.RoutesHealthz(server.R)
	app.RoutesHealthzReady(server.R)

	dbConfig := cfg.DbConfig.ToDbConfig()
	pool, err := dbutils.NewDbPool(context.Background(), dbConfig)
	if err != nil {
		slog.Error("Failed creating dbpool", "db", dbConfig.Database, "host", dbConfig.Host, "port", dbConfig.Port, "user", dbConfig.User)
		os.Exit(-1)
	}

	executor := dbtx.New(pool,
		dbtx.WithRetryBase(time.Duration(cfg.DbConfig.RetryConcurrentTimeMs)*time.Millisecond),
	)

	userRepo := user.NewPostgresRepository(pool)
	tokenRepo := token.NewPostgresRepository(pool)

	tokenService := token.NewService(tokenRepo,
		cfg.AuthConfig.Cipher2FAKey,
		cfg.AuthConfig.TotpIssuer,
		token.WithPinExpiration(time.Duration(cfg.AuthConfig.MailPinExpirationMinutes)*time.Minute),
	)

	emailNotifier, err := notification.NewEmailNotifier(notification.SMTPConfig{
		Host:     cfg.SmtpConfig.Host,
		Port:     cfg.SmtpConfig.Port,
		TLS:      cfg.SmtpTLS,
		Username: cfg.SmtpConfig.Username,
		Password: cfg.SmtpConfig.Password,
		From:     cfg.SmtpConfig.From,
	})
	if err != nil {
		slog.Error("Failed creating email notifier", "err", err)
		os.Exit(-1)
	}

	manager := notification.NewNotificationManager(emailNotifier)
	if err := notification.RegisterDefaultNotifications(manager); err != nil {
		slog.Error("Failed registering notifications", "err", err)
		os.Exit(-1)
	}
	notifier := notification.NewAccountNotifier(manager, cfg.SmtpConfig.BaseURL)

	codec := session.NewCodec([]byte(cfg.AuthConfig.JwtSecret), cfg.AuthConfig.TotpIssuer)

	sessionTTL := time.Duration(cfg.AuthConfig.SessionExpirationDays) * 24 * time.Hour
	authn := session.NewMiddleware(codec, tokenService, sessionTTL)

	accountService := account.NewService(executor, userRepo, tokenService, notifier, codec, account.Config{
		AllowSignup:             cfg.AuthConfig.AllowSignup,
		DemoAccount:             cfg.AuthConfig.DemoAccount,
		LoginRetryAttempts:      cfg.AuthConfig.LoginRetryAttempts,
		ResetPasswordExpiration: time.Duration(cfg.AuthConfig.MailResetPasswordExpirationHrs) * time.Hour,
	})

	accountHandle := account.NewHandle(accountService)
	accountHandle.RegisterRoutes(server.R, authn.Authenticator)

	server.Run()

}
