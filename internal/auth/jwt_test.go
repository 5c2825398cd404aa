package auth

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenerateValidate(t *testing.T) {
	svc := NewJWTService("session-secret", time.Hour)

	token, err := svc.Generate(42, "admin@example.com")
	require.NoError(t, err)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, int64(42), claims.AdminID)
	assert.Equal(t, "admin@example.com", claims.Email)
	assert.Equal(t, "42", claims.Subject)
	assert.NotEmpty(t, claims.ID)
}

func TestValidateExpired(t *testing.T) {
	svc := NewJWTService("session-secret", time.Minute)
	issued := time.Unix(1_700_000_000, 0)
	svc.now = func() time.Time { return issued }

	token, err := svc.Generate(1, "a@example.com")
	require.NoError(t, err)

	svc.now = func() time.Time { return issued.Add(2 * time.Minute) }
	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateWrongSecret(t *testing.T) {
	token, err := NewJWTService("one", time.Hour).Generate(1, "a@example.com")
	require.NoError(t, err)

	_, err = NewJWTService("two", time.Hour).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateMalformed(t *testing.T) {
	svc := NewJWTService("session-secret", time.Hour)
	for _, tok := range []string{"", "invalid.token.here", "abc"} {
		_, err := svc.Validate(tok)
		assert.ErrorIs(t, err, ErrInvalidToken, tok)
	}
}

func TestValidateRejectsNoneAlgorithm(t *testing.T) {
	claims := Claims{
		AdminID: 1,
		RegisteredClaims: jwt.RegisteredClaims{
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodNone, claims).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewJWTService("session-secret", time.Hour).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestValidateRequiresExpiry(t *testing.T) {
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{AdminID: 1}).SignedString([]byte("session-secret"))
	require.NoError(t, err)

	_, err = NewJWTService("session-secret", time.Hour).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}
