package crypto

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/tendant/simple-account/pkg/accounterr"
)

const testKey = "1234567890abcdefghijklmnopqrstuv"

func TestHashPassword(t *testing.T) {
	t.Run("ValidPassword", func(t *testing.T) {
		password := "validPassword123"
		hashedPassword, err := HashPassword(password)
		assert.NoError(t, err)
		assert.NotEmpty(t, hashedPassword)

		match, err := CheckPasswordHash(password, hashedPassword)
		assert.NoError(t, err)
		assert.True(t, match, "The password should match the hashed password")
	})

	t.Run("EmptyPassword", func(t *testing.T) {
		_, err := HashPassword("")
		assert.Error(t, err)
	})

	t.Run("IncorrectPassword", func(t *testing.T) {
		hashedPassword, err := HashPassword("correctPassword")
		assert.NoError(t, err)

		match, err := CheckPasswordHash("incorrectPassword", hashedPassword)
		assert.NoError(t, err)
		assert.False(t, match, "Incorrect password should not match the hashed password")
	})

	t.Run("EmptyHashedPassword", func(t *testing.T) {
		match, err := CheckPasswordHash("somePassword", "")
		assert.Error(t, err)
		assert.False(t, match)
	})

	t.Run("CorruptedHashedPassword", func(t *testing.T) {
		match, err := CheckPasswordHash("correctPassword", "invalidHash")
		assert.Error(t, err)
		assert.False(t, match)
	})

	t.Run("DifferentHashesForSamePassword", func(t *testing.T) {
		first, err := HashPassword("samePassword")
		require.NoError(t, err)
		second, err := HashPassword("samePassword")
		require.NoError(t, err)
		assert.NotEqual(t, first, second, "bcrypt salts should differ per call")
	})
}

func TestEncryptDecrypt(t *testing.T) {
	t.Run("RoundTrip", func(t *testing.T) {
		plaintexts := []string{
			"123456",
			"JBSWY3DPEHPK3PXP",
			"some longer secret value spanning multiple aes blocks for padding",
			"",
		}
		for _, plaintext := range plaintexts {
			encrypted, err := Encrypt(plaintext, testKey)
			require.NoError(t, err)
			assert.Contains(t, encrypted, "$")

			decrypted, err := Decrypt(encrypted, testKey)
			require.NoError(t, err)
			assert.Equal(t, plaintext, decrypted)
		}
	})

	t.Run("FreshIVPerCall", func(t *testing.T) {
		first, err := Encrypt("123456", testKey)
		require.NoError(t, err)
		second, err := Encrypt("123456", testKey)
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
	})

	t.Run("WrongKey", func(t *testing.T) {
		encrypted, err := Encrypt("123456", testKey)
		require.NoError(t, err)

		_, err = Decrypt(encrypted, "vutsrqponmlkjihgfedcba0987654321")
		assert.Error(t, err)
		assert.True(t, accounterr.IsCode(err, accounterr.ErrCodeCrypto))
	})

	t.Run("InvalidKeyLength", func(t *testing.T) {
		_, err := Encrypt("123456", "short-key")
		assert.Error(t, err)
		assert.True(t, accounterr.IsCode(err, accounterr.ErrCodeCrypto))
	})

	t.Run("MalformedCiphertext", func(t *testing.T) {
		for _, malformed := range []string{
			"no-separator",
			"zz$0011",
			"00112233445566778899aabbccddeeff$not-hex",
			"00112233445566778899aabbccddeeff$0011",
		} {
			_, err := Decrypt(malformed, testKey)
			assert.Error(t, err, "input %q should not decrypt", malformed)
			assert.True(t, accounterr.IsCode(err, accounterr.ErrCodeCrypto))
		}
	})

	t.Run("TamperedCiphertext", func(t *testing.T) {
		encrypted, err := Encrypt("123456", testKey)
		require.NoError(t, err)

		parts := strings.SplitN(encrypted, "$", 2)
		tampered := parts[0] + "$" + strings.Repeat("00", len(parts[1])/2)

		decrypted, err := Decrypt(tampered, testKey)
		if err == nil {
			// CBC without a MAC cannot always detect tampering, but the
			// plaintext must not survive.
			assert.NotEqual(t, "123456", decrypted)
		} else {
			assert.True(t, accounterr.IsCode(err, accounterr.ErrCodeCrypto))
		}
	})
}

func TestSha256Hex(t *testing.T) {
	assert.Equal(t,
		"e3b0c44298fc1c149afbf4c8996fb92427ae41e4649b934ca495991b7852b855",
		Sha256Hex(""))
	assert.Len(t, Sha256Hex("hello"), 64)
}

func TestVerifyHmacSha1(t *testing.T) {
	// echo -n "payload" | openssl dgst -sha1 -hmac "key"
	assert.True(t, VerifyHmacSha1("payload", "key", "2f3902cd1626fa7fdfb67e93109f50412ad71531"))
	assert.False(t, VerifyHmacSha1("payload", "key", "deadbeef"))
	assert.False(t, VerifyHmacSha1("payload", "other-key", "2f3902cd1626fa7fdfb67e93109f50412ad71531"))
}
