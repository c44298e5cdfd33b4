package token

import (
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/require"
)

func TestJWT_OperatorToken_Roundtrip(t *testing.T) {
	j := NewJWT("secret", time.Hour)

	tok, err := j.GenerateOperatorToken("ops@kurisync")
	require.NoError(t, err)

	subject, err := j.ParseOperatorToken(tok)
	require.NoError(t, err)
	require.Equal(t, "ops@kurisync", subject)
}

func TestJWT_EmptySubject(t *testing.T) {
	_, err := NewJWT("secret", 0).GenerateOperatorToken("")
	require.Error(t, err)
}

func TestJWT_WrongSecret(t *testing.T) {
	tok, err := NewJWT("secret", time.Hour).GenerateOperatorToken("ops")
	require.NoError(t, err)

	_, err = NewJWT("other", time.Hour).ParseOperatorToken(tok)
	require.Error(t, err)
}

func TestJWT_Expired(t *testing.T) {
	j := NewJWT("secret", time.Minute)
	issued := time.Now().Add(-time.Hour)
	j.now = func() time.Time { return issued }

	tok, err := j.GenerateOperatorToken("ops")
	require.NoError(t, err)

	j.now = time.Now
	_, err = j.ParseOperatorToken(tok)
	require.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestJWT_ScopeMismatch(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   "ops",
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
		},
		Scope: "read",
	})
	signed, err := tok.SignedString([]byte("secret"))
	require.NoError(t, err)

	_, err = NewJWT("secret", time.Hour).ParseOperatorToken(signed)
	require.ErrorContains(t, err, "scope mismatch")
}

func TestJWT_RejectsNoneAlgorithm(t *testing.T) {
	tok := jwt.NewWithClaims(jwt.SigningMethodNone, Claims{Scope: scopeSync})
	signed, err := tok.SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	_, err = NewJWT("secret", time.Hour).ParseOperatorToken(signed)
	require.Error(t, err)
}
