package dashboard

import (
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const (
	confirmIssuer   = "hrdesk-dashboard"
	confirmAudience = "delete"

	// DefaultConfirmTTL bounds how long a delete confirmation stays usable.
	DefaultConfirmTTL = 5 * time.Minute
)

// ErrConfirmInvalid is returned when a delete confirmation token is missing,
// expired or issued for another record.
var ErrConfirmInvalid = errors.New("delete confirmation is invalid or expired")

type confirmClaims struct {
	Entity string `json:"ent"`
	jwt.RegisteredClaims
}

// ConfirmTokens issues the signed token that moves a delete from pending to
// confirmed. A DELETE request without a matching token is refused, so the
// gate cannot be skipped by calling the endpoint directly.
type ConfirmTokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewConfirmTokens creates a token issuer. A non-positive ttl selects
// DefaultConfirmTTL.
func NewConfirmTokens(secret string, ttl time.Duration) (*ConfirmTokens, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("confirm token secret is required")
	}
	if ttl <= 0 {
		ttl = DefaultConfirmTTL
	}
	return &ConfirmTokens{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// Issue returns a token confirming deletion of entity record id.
func (t *ConfirmTokens) Issue(entity, id string) (string, error) {
	now := t.now()
	claims := confirmClaims{
		Entity: entity,
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    confirmIssuer,
			Subject:   id,
			Audience:  jwt.ClaimStrings{confirmAudience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(t.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
}

// Check verifies that token confirms deletion of entity record id.
func (t *ConfirmTokens) Check(token, entity, id string) error {
	if strings.TrimSpace(token) == "" {
		return ErrConfirmInvalid
	}
	var claims confirmClaims
	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(confirmIssuer),
		jwt.WithAudience(confirmAudience),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return errors.Join(ErrConfirmInvalid, err)
	}
	if claims.Entity != entity || claims.Subject != id {
		return ErrConfirmInvalid
	}
	return nil
}
