package auth

import (
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Token audiences. A token is only accepted for the purpose it was issued for.
const (
	AudienceAccess = "feedline:auth"
	AudienceReset  = "feedline:reset"
	AudienceVerify = "feedline:verify"
)

// ErrInvalidToken is returned for any token that fails signature, expiry
// or audience checks.
var ErrInvalidToken = errors.New("invalid token")

type claims struct {
	jwt.RegisteredClaims
	Email               string `json:"email,omitempty"`
	PasswordFingerprint string `json:"password_fgpt,omitempty"`
}

// tokenIssuer signs and parses HS256 tokens with a shared secret.
type tokenIssuer struct {
	secret []byte
	now    func() time.Time
}

func newTokenIssuer(secret string) *tokenIssuer {
	return &tokenIssuer{secret: []byte(secret), now: time.Now}
}

func (t *tokenIssuer) issue(c claims, audience string, lifetime time.Duration) (string, error) {
	now := t.now()
	c.Audience = jwt.ClaimStrings{audience}
	c.IssuedAt = jwt.NewNumericDate(now)
	c.ExpiresAt = jwt.NewNumericDate(now.Add(lifetime))

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, c).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

func (t *tokenIssuer) parse(tokenStr, audience string) (*claims, error) {
	c := &claims{}
	token, err := jwt.ParseWithClaims(tokenStr, c,
		func(*jwt.Token) (interface{}, error) { return t.secret, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithAudience(audience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil || !token.Valid || c.Subject == "" {
		return nil, ErrInvalidToken
	}
	return c, nil
}

// passwordFingerprint ties a reset token to the password hash it was issued
// against, so the token stops working once the password changes.
func passwordFingerprint(hashedPassword string) string {
	sum := sha256.Sum256([]byte(hashedPassword))
	return hex.EncodeToString(sum[:8])
}
