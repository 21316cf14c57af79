// Package session carries operator identity between the dashboard and the
// records backend.
package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/simp-lee/hrdesk/internal/domain"
)

const issuer = "hrdesk"

// Claims is the token body. Subject holds the user id.
type Claims struct {
	Name string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

// Signer issues short-lived HS256 tokens attributing requests to a session.
type Signer struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewSigner creates a Signer. The secret must be at least 32 bytes.
func NewSigner(secret string, ttl time.Duration) (*Signer, error) {
	secret = strings.TrimSpace(secret)
	if len(secret) < 32 {
		return nil, errors.New("token secret must be at least 32 characters")
	}
	if ttl <= 0 {
		return nil, fmt.Errorf("invalid token ttl %s: must be greater than 0", ttl)
	}
	return &Signer{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Sign returns a token for the session. Anonymous sessions cannot be signed.
func (s *Signer) Sign(sess domain.Session) (string, error) {
	if sess.Anonymous() {
		return "", errors.New("cannot sign anonymous session")
	}
	now := s.now()
	claims := Claims{
		Name: sess.UserName,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			Subject:   sess.UserID,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(s.ttl)),
		},
	}
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return token, nil
}

// Verifier validates tokens produced by a Signer with the same secret.
type Verifier struct {
	secret []byte
}

// NewVerifier creates a Verifier for the given secret.
func NewVerifier(secret string) (*Verifier, error) {
	secret = strings.TrimSpace(secret)
	if len(secret) < 32 {
		return nil, errors.New("token secret must be at least 32 characters")
	}
	return &Verifier{secret: []byte(secret)}, nil
}

// Verify parses and validates the token and returns the session it carries.
// Any failure is reported as domain.ErrUnauthorized.
func (v *Verifier) Verify(token string) (domain.Session, error) {
	var claims Claims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return domain.Session{}, domain.NewAppError(domain.CodeUnauthorized, "invalid token", err)
	}
	if strings.TrimSpace(claims.Subject) == "" {
		return domain.Session{}, domain.NewAppError(domain.CodeUnauthorized, "token has no subject", nil)
	}
	return domain.Session{UserID: claims.Subject, UserName: claims.Name}, nil
}
