// internal/utils/jwt.go
package utils

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v4"
	"github.com/google/uuid"
)

// ErrInvalidToken is returned for every token failure. Signature, expiry, issuer,
// audience and shape problems are not distinguished to callers.
var ErrInvalidToken = errors.New("invalid token")

type SessionClaims struct {
	UserID string `json:"user_id"`
	Email  string `json:"email"`
	Name   string `json:"name"`
	Role   string `json:"role"`
	jwt.RegisteredClaims
}

type PluginClaims struct {
	LicenseID  string `json:"licenseId"`
	LicenseKey string `json:"licenseKey"`
	Domain     string `json:"domain"`
	jwt.RegisteredClaims
}

type hmacSigner struct {
	secret []byte
}

func (s hmacSigner) sign(claims jwt.Claims) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.secret)
}

func (s hmacSigner) parse(tokenString string, claims jwt.Claims) error {
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return s.secret, nil
	})
	if err != nil || !token.Valid {
		return ErrInvalidToken
	}
	return nil
}

// SessionTokenIssuer signs portal session tokens. Validation checks signature and
// expiry only.
type SessionTokenIssuer struct {
	signer hmacSigner
	ttl    time.Duration
}

func NewSessionTokenIssuer(secret string, ttl time.Duration) *SessionTokenIssuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &SessionTokenIssuer{signer: hmacSigner{secret: []byte(secret)}, ttl: ttl}
}

func (i *SessionTokenIssuer) Issue(userID uuid.UUID, email, name, role string) (string, time.Time, error) {
	now := time.Now()
	expiresAt := now.Add(i.ttl)
	claims := SessionClaims{
		UserID: userID.String(),
		Email:  email,
		Name:   name,
		Role:   role,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Subject:   userID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
			NotBefore: jwt.NewNumericDate(now),
		},
	}

	token, err := i.signer.sign(claims)
	if err != nil {
		return "", time.Time{}, err
	}
	return token, expiresAt, nil
}

func (i *SessionTokenIssuer) Validate(tokenString string) (*SessionClaims, error) {
	claims := &SessionClaims{}
	if err := i.signer.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.ExpiresAt == nil || claims.UserID == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// PluginTokenIssuer signs delegated plugin tokens. Issuer and audience are pinned
// on validation, and a token never outlives its license.
type PluginTokenIssuer struct {
	signer   hmacSigner
	issuer   string
	audience string
}

func NewPluginTokenIssuer(secret, issuer, audience string) *PluginTokenIssuer {
	return &PluginTokenIssuer{
		signer:   hmacSigner{secret: []byte(secret)},
		issuer:   issuer,
		audience: audience,
	}
}

// Issue signs a token for the license that expires exactly at expiresAt.
func (i *PluginTokenIssuer) Issue(licenseID uuid.UUID, licenseKey, domain string, expiresAt time.Time) (string, error) {
	now := time.Now()
	claims := PluginClaims{
		LicenseID:  licenseID.String(),
		LicenseKey: licenseKey,
		Domain:     domain,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.NewString(),
			Issuer:    i.issuer,
			Audience:  jwt.ClaimStrings{i.audience},
			Subject:   licenseID.String(),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			IssuedAt:  jwt.NewNumericDate(now),
		},
	}
	return i.signer.sign(claims)
}

func (i *PluginTokenIssuer) Validate(tokenString string) (*PluginClaims, error) {
	claims := &PluginClaims{}
	if err := i.signer.parse(tokenString, claims); err != nil {
		return nil, err
	}
	if claims.ExpiresAt == nil || claims.LicenseKey == "" {
		return nil, ErrInvalidToken
	}
	if !claims.VerifyIssuer(i.issuer, true) || !claims.VerifyAudience(i.audience, true) {
		return nil, ErrInvalidToken
	}
	return claims, nil
}
