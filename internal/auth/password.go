package auth

import (
	"errors"
	"fmt"
	"strings"

	"github.com/GehirnInc/crypt"
	"github.com/GehirnInc/crypt/md5_crypt"
	"github.com/GehirnInc/crypt/sha256_crypt"
	"github.com/GehirnInc/crypt/sha512_crypt"
)

var (
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserInactive       = errors.New("user is inactive")
	ErrUnsupportedHash    = errors.New("unsupported password hash")
)

// HashPassword returns a sha512-crypt ($6$) hash with a random salt.
func HashPassword(password string) (string, error) {
	h, err := sha512_crypt.New().Generate([]byte(password), nil)
	if err != nil {
		return "", fmt.Errorf("hash password: %w", err)
	}
	return h, nil
}

// VerifyPassword checks password against a crypt(3) hash.
// Supported: $6$ (sha512-crypt), $5$ (sha256-crypt), $1$ (md5-crypt).
func VerifyPassword(hash, password string) error {
	if hash == "" || strings.HasPrefix(hash, "!") || strings.HasPrefix(hash, "*") {
		return ErrInvalidCredentials
	}
	var c crypt.Crypter
	switch {
	case strings.HasPrefix(hash, "$6$"):
		c = sha512_crypt.New()
	case strings.HasPrefix(hash, "$5$"):
		c = sha256_crypt.New()
	case strings.HasPrefix(hash, "$1$"):
		c = md5_crypt.New()
	default:
		return ErrUnsupportedHash
	}
	if err := c.Verify(hash, []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

func HumanAuthError(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, ErrInvalidCredentials), errors.Is(err, ErrUserInactive):
		return "No active account found with the given credentials"
	case errors.Is(err, ErrTokenInvalid):
		return "Given token not valid for any token type"
	case errors.Is(err, ErrUnsupportedHash):
		return "This account uses an unsupported password hash format."
	default:
		return fmt.Sprintf("Authentication failed: %v", err)
	}
}
