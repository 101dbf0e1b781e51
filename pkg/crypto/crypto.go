package crypto

import (
	"crypto/aes"
	"crypto/cipher"
	"crypto/hmac"
	"crypto/rand"
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"strings"

	"golang.org/x/crypto/bcrypt"

	"github.com/tendant/simple-account/pkg/accounterr"
)

// SaltRounds is the bcrypt work factor used for password hashes.
const SaltRounds = 8

// HashPassword hashes the plain-text password using bcrypt.
func HashPassword(password string) (string, error) {
	if password == "" {
		return "", fmt.Errorf("password cannot be empty")
	}

	hashedPassword, err := bcrypt.GenerateFromPassword([]byte(password), SaltRounds)
	if err != nil {
		return "", err
	}
	return string(hashedPassword), nil
}

// CheckPasswordHash compares the plain-text password with the stored hashed password.
func CheckPasswordHash(password, hashedPassword string) (bool, error) {
	if password == "" || hashedPassword == "" {
		return false, fmt.Errorf("password and hashed password cannot be empty")
	}

	err := bcrypt.CompareHashAndPassword([]byte(hashedPassword), []byte(password))
	if err != nil {
		if err == bcrypt.ErrMismatchedHashAndPassword {
			return false, nil
		}
		return false, err
	}
	return true, nil
}

// Encrypt encrypts str with AES-256-CBC under key, using a fresh random IV.
// The output is hex(iv) + "$" + hex(ciphertext). The key must be 32 bytes.
func Encrypt(str, key string) (string, error) {
	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return "", accounterr.Wrap(err, accounterr.ErrCodeCrypto, "invalid cipher key")
	}

	iv := make([]byte, aes.BlockSize)
	if _, err := rand.Read(iv); err != nil {
		return "", accounterr.Wrap(err, accounterr.ErrCodeCrypto, "failed to generate iv")
	}

	plaintext := pkcs7Pad([]byte(str), aes.BlockSize)
	ciphertext := make([]byte, len(plaintext))
	cipher.NewCBCEncrypter(block, iv).CryptBlocks(ciphertext, plaintext)

	return hex.EncodeToString(iv) + "$" + hex.EncodeToString(ciphertext), nil
}

// Decrypt is the exact inverse of Encrypt. Any malformed input, wrong key or
// corrupt padding surfaces as a crypto_error.
func Decrypt(str, key string) (string, error) {
	parts := strings.SplitN(str, "$", 2)
	if len(parts) != 2 {
		return "", accounterr.Newf(accounterr.ErrCodeCrypto, "malformed ciphertext")
	}

	iv, err := hex.DecodeString(parts[0])
	if err != nil || len(iv) != aes.BlockSize {
		return "", accounterr.Newf(accounterr.ErrCodeCrypto, "malformed iv")
	}

	ciphertext, err := hex.DecodeString(parts[1])
	if err != nil || len(ciphertext) == 0 || len(ciphertext)%aes.BlockSize != 0 {
		return "", accounterr.Newf(accounterr.ErrCodeCrypto, "malformed ciphertext")
	}

	block, err := aes.NewCipher([]byte(key))
	if err != nil {
		return "", accounterr.Wrap(err, accounterr.ErrCodeCrypto, "invalid cipher key")
	}

	plaintext := make([]byte, len(ciphertext))
	cipher.NewCBCDecrypter(block, iv).CryptBlocks(plaintext, ciphertext)

	unpadded, err := pkcs7Unpad(plaintext, aes.BlockSize)
	if err != nil {
		return "", accounterr.Wrap(err, accounterr.ErrCodeCrypto, "failed to decrypt")
	}

	return string(unpadded), nil
}

// Sha256Hex returns the hex-encoded SHA-256 digest of str.
func Sha256Hex(str string) string {
	sum := sha256.Sum256([]byte(str))
	return hex.EncodeToString(sum[:])
}

// VerifyHmacSha1 checks a hex-encoded HMAC-SHA1 digest in constant time.
func VerifyHmacSha1(str, key, digest string) bool {
	mac := hmac.New(sha1.New, []byte(key))
	mac.Write([]byte(str))
	calculated := hex.EncodeToString(mac.Sum(nil))

	return hmac.Equal([]byte(calculated), []byte(digest))
}

func pkcs7Pad(data []byte, blockSize int) []byte {
	padding := blockSize - len(data)%blockSize
	padded := make([]byte, len(data)+padding)
	copy(padded, data)
	for i := len(data); i < len(padded); i++ {
		padded[i] = byte(padding)
	}
	return padded
}

func pkcs7Unpad(data []byte, blockSize int) ([]byte, error) {
	if len(data) == 0 || len(data)%blockSize != 0 {
		return nil, fmt.Errorf("invalid padded length")
	}
	padding := int(data[len(data)-1])
	if padding == 0 || padding > blockSize {
		return nil, fmt.Errorf("invalid padding")
	}
	for _, b := range data[len(data)-padding:] {
		if int(b) != padding {
			return nil, fmt.Errorf("invalid padding")
		}
	}
	return data[:len(data)-padding], nil
}
