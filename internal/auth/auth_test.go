package auth

import (
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/agrilink/usermgmt/internal/accounts"
)

func TestHashAndVerify(t *testing.T) {
	h, err := HashPassword("s3cret-pass")
	require.NoError(t, err)
	assert.True(t, strings.HasPrefix(h, "$6$"))

	assert.NoError(t, VerifyPassword(h, "s3cret-pass"))
	assert.ErrorIs(t, VerifyPassword(h, "wrong"), ErrInvalidCredentials)
	assert.ErrorIs(t, VerifyPassword("", "x"), ErrInvalidCredentials)
	assert.ErrorIs(t, VerifyPassword("!locked", "x"), ErrInvalidCredentials)
	assert.ErrorIs(t, VerifyPassword("$y$j9T$abc", "x"), ErrUnsupportedHash)
}

func TestHashesAreSalted(t *testing.T) {
	a, err := HashPassword("same")
	require.NoError(t, err)
	b, err := HashPassword("same")
	require.NoError(t, err)
	assert.NotEqual(t, a, b)
}

func testUser() *accounts.User {
	return &accounts.User{ID: "5d6c6a7e-0000-4000-8000-000000000001", Email: "f@example.com", Role: accounts.RoleFarmer}
}

func TestIssuePairAndParse(t *testing.T) {
	iss := NewIssuer(DecodeSecret("test-secret"), 5*time.Minute, 24*time.Hour)
	pair, err := iss.IssuePair(testUser())
	require.NoError(t, err)

	cl, err := iss.ParseAccess(pair.Access)
	require.NoError(t, err)
	assert.Equal(t, "5d6c6a7e-0000-4000-8000-000000000001", cl.UserID)
	assert.Equal(t, accounts.RoleFarmer, cl.Role)
	assert.Equal(t, "f@example.com", cl.Email)

	_, err = iss.ParseAccess(pair.Refresh)
	assert.ErrorIs(t, err, ErrTokenInvalid)

	rcl, err := iss.ParseRefresh(pair.Refresh)
	require.NoError(t, err)
	assert.Equal(t, TokenTypeRefresh, rcl.TokenType)
	_, err = iss.ParseRefresh(pair.Access)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestExpiredTokenRejected(t *testing.T) {
	iss := NewIssuer(DecodeSecret("test-secret"), time.Minute, time.Hour)
	past := time.Now().Add(-2 * time.Hour)
	iss.now = func() time.Time { return past }
	tok, err := iss.IssueAccess(testUser())
	require.NoError(t, err)

	iss.now = time.Now
	_, err = iss.ParseAccess(tok)
	assert.True(t, errors.Is(err, ErrTokenInvalid))
}

func TestWrongSecretRejected(t *testing.T) {
	a := NewIssuer(DecodeSecret("secret-a"), time.Minute, time.Hour)
	b := NewIssuer(DecodeSecret("secret-b"), time.Minute, time.Hour)
	tok, err := a.IssueAccess(testUser())
	require.NoError(t, err)
	_, err = b.ParseAccess(tok)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestDecodeSecretPadsShortInput(t *testing.T) {
	assert.Len(t, DecodeSecret("ab"), 16)
	s, err := NewRandomSecretB64(32)
	require.NoError(t, err)
	assert.Len(t, DecodeSecret(s), 32)
}

func TestHumanAuthError(t *testing.T) {
	assert.Equal(t, "No active account found with the given credentials", HumanAuthError(ErrInvalidCredentials))
	assert.Equal(t, "", HumanAuthError(nil))
}
