package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/jwalitptl/clinic-finance/internal/model"
)

var ErrInvalidToken = errors.New("invalid token")

// TokenValidator verifies bearer tokens issued by the clinic's
// authentication provider. Only the shared-secret HS256 scheme is accepted.
type TokenValidator struct {
	secret   []byte
	issuer   string
	audience string
}

type tokenClaims struct {
	Email string   `json:"email"`
	Roles []string `json:"roles"`
	jwt.RegisteredClaims
}

func NewTokenValidator(secret, issuer, audience string) *TokenValidator {
	return &TokenValidator{secret: []byte(secret), issuer: issuer, audience: audience}
}

func (v *TokenValidator) Validate(raw string) (*model.Claims, error) {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		opts = append(opts, jwt.WithAudience(v.audience))
	}

	var claims tokenClaims
	_, err := jwt.ParseWithClaims(raw, &claims, func(t *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return nil, fmt.Errorf("%w: missing subject", ErrInvalidToken)
	}

	return &model.Claims{
		Subject: claims.Subject,
		Email:   claims.Email,
		Roles:   claims.Roles,
	}, nil
}

// Sign issues a token the validator accepts. The API never issues tokens
// itself; this exists for billingctl and tests.
func (v *TokenValidator) Sign(c model.Claims, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		Email: c.Email,
		Roles: c.Roles,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   c.Subject,
			Issuer:    v.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
	}
	if v.audience != "" {
		claims.Audience = jwt.ClaimStrings{v.audience}
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}
