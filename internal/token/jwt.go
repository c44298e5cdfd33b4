package token

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"github.com/dtroode/kurisync/internal/model"
)

// Claims are the claims of an operator token.
type Claims struct {
	jwt.RegisteredClaims
	Scope string `json:"scope"`
}

// JWT implements TokenManager backed by symmetric HMAC.
type JWT struct {
	secretKey string
	ttl       time.Duration
	now       func() time.Time
}

var _ model.TokenManager = (*JWT)(nil)

const (
	issuer     = "kurisync"
	scopeSync  = "sync"
	defaultTTL = 30 * 24 * time.Hour
)

// NewJWT creates a token manager. A non-positive ttl falls back to 30 days.
func NewJWT(secretKey string, ttl time.Duration) *JWT {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	return &JWT{secretKey: secretKey, ttl: ttl, now: time.Now}
}

// GenerateOperatorToken issues a token allowing subject to trigger sync jobs.
func (j *JWT) GenerateOperatorToken(subject string) (string, error) {
	if subject == "" {
		return "", errors.New("token subject is empty")
	}

	now := j.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    issuer,
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(j.ttl)),
		},
		Scope: scopeSync,
	})

	tokenString, err := token.SignedString([]byte(j.secretKey))
	if err != nil {
		return "", fmt.Errorf("failed to sign operator token: %w", err)
	}

	return tokenString, nil
}

// ParseOperatorToken validates a token and returns its subject.
func (j *JWT) ParseOperatorToken(tokenString string) (string, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (interface{}, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("wrong signing method %v", t.Header["alg"])
		}
		return []byte(j.secretKey), nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(j.now))
	if err != nil {
		return "", fmt.Errorf("failed to parse operator token: %w", err)
	}
	if !token.Valid {
		return "", fmt.Errorf("operator token is invalid")
	}
	if claims.Scope != scopeSync {
		return "", fmt.Errorf("token scope mismatch: %s", claims.Scope)
	}
	return claims.Subject, nil
}
