package security

import (
	"crypto"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

var (
	// ErrInvalidToken is returned when a token is malformed, expired or fails issuer/audience checks.
	ErrInvalidToken = errors.New("invalid token")
	// ErrSigningDisabled is returned by Issue when the provider has no private key.
	ErrSigningDisabled = errors.New("token signing disabled")
)

// ValidatorClaims are the JWT claims carried by a validator (agent or cooperative officer) bearer token.
// Subject is the validator id.
type ValidatorClaims struct {
	jwt.RegisteredClaims
	Kind string `json:"kind"`
}

// TokenProvider issues and validates validator bearer tokens using RS256 or ES256.
// A provider built with a nil private key can only validate.
type TokenProvider struct {
	privateKey crypto.Signer
	publicKey  crypto.PublicKey
	issuer     string
	audience   string
	ttl        time.Duration
}

// NewTokenProvider returns a TokenProvider. ttl <= 0 defaults to 12h.
func NewTokenProvider(privateKey crypto.Signer, publicKey crypto.PublicKey, issuer, audience string, ttl time.Duration) *TokenProvider {
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	if publicKey == nil && privateKey != nil {
		publicKey = privateKey.Public()
	}
	return &TokenProvider{
		privateKey: privateKey,
		publicKey:  publicKey,
		issuer:     issuer,
		audience:   audience,
		ttl:        ttl,
	}
}

// IssueValidatorToken signs a token for validatorID of the given kind.
func (p *TokenProvider) IssueValidatorToken(validatorID, kind string) (token string, expiresAt time.Time, err error) {
	if p.privateKey == nil {
		return "", time.Time{}, ErrSigningDisabled
	}
	if strings.TrimSpace(validatorID) == "" {
		return "", time.Time{}, ErrInvalidToken
	}
	method := signingMethod(p.privateKey.Public())
	if method == nil {
		return "", time.Time{}, ErrInvalidKey
	}
	jti, err := generateJTI()
	if err != nil {
		return "", time.Time{}, err
	}
	now := time.Now().UTC()
	expiresAt = now.Add(p.ttl)
	claims := ValidatorClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   validatorID,
			Issuer:    p.issuer,
			Audience:  jwt.ClaimStrings{p.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
		Kind: kind,
	}
	token, err = jwt.NewWithClaims(method, claims).SignedString(p.privateKey)
	return token, expiresAt, err
}

// ValidateValidatorToken verifies signature, expiry, issuer and audience and returns the claims.
func (p *TokenProvider) ValidateValidatorToken(tokenString string) (*ValidatorClaims, error) {
	method := signingMethod(p.publicKey)
	if method == nil {
		return nil, ErrInvalidKey
	}
	claims := &ValidatorClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(*jwt.Token) (interface{}, error) {
		return p.publicKey, nil
	},
		jwt.WithValidMethods([]string{method.Alg()}),
		jwt.WithIssuer(p.issuer),
		jwt.WithAudience(p.audience),
		jwt.WithExpirationRequired(),
	)
	if err != nil || !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

func generateJTI() (string, error) {
	b := make([]byte, 16)
	if _, err := rand.Read(b); err != nil {
		return "", err
	}
	return hex.EncodeToString(b), nil
}
