package utils

import (
	"crypto/rand"
	"database/sql"
	"log/slog"
	"math/big"
	"strings"
)

func ToNullString(str string) sql.NullString {
	if str == "" {
		return sql.NullString{
			String: str,
			Valid:  false,
		}
	}
	return sql.NullString{
		String: str,
		Valid:  true,
	}
}

func GetValidStrings(nullStrings []sql.NullString) []string {
	var validStrings []string

	for _, ns := range nullStrings {
		if ns.Valid {
			validStrings = append(validStrings, ns.String)
		}
	}

	return validStrings
}

// NormalizeEmail lowercases and trims an email address so lookups are
// case-insensitive.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// RandomDigits returns a random numeric string of the given length with a
// non-zero leading digit, suitable for one-time pins.
func RandomDigits(length int) (string, error) {
	if length <= 0 {
		length = 6
	}

	min := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length-1)), nil)
	max := new(big.Int).Exp(big.NewInt(10), big.NewInt(int64(length)), nil)

	n, err := rand.Int(rand.Reader, new(big.Int).Sub(max, min))
	if err != nil {
		return "", err
	}

	return new(big.Int).Add(n, min).String(), nil
}

// RemoveEmptyStrings drops keys whose value is the empty string.
func RemoveEmptyStrings(data map[string]string) map[string]string {
	cleaned := make(map[string]string, len(data))
	for k, v := range data {
		if v != "" {
			cleaned[k] = v
		}
	}
	return cleaned
}

// SetImmediateAsync runs fn on its own goroutine. Errors and panics are
// logged and swallowed: callers use this for post-commit side effects that
// must never surface to the request.
func SetImmediateAsync(fn func() error) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("async task panicked", "panic", r)
			}
		}()
		if err := fn(); err != nil {
			slog.Error("async task failed", "err", err)
		}
	}()
}
