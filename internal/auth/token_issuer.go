package auth

import (
	"errors"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const defaultTokenTTL = 168 * time.Hour

var (
	errMissingSigningSecret = errors.New("signing secret must be provided")
	errMissingSubjectClaim  = errors.New("subject claim must be provided")
	errMissingEmailClaim    = errors.New("email claim must be provided")
)

// Claims carries the identity embedded in an issued session token.
type Claims struct {
	Subject string
	Email   string
}

// IDProvider issues the unique token identifier (jti) stamped on every
// signed token. Sessions store the token string under a unique index, so
// two logins in the same second must still produce distinct tokens.
type IDProvider interface {
	NewID() (string, error)
}

type uuidProvider struct{}

func (uuidProvider) NewID() (string, error) {
	value, err := uuid.NewRandom()
	if err != nil {
		return "", err
	}
	return value.String(), nil
}

type sessionTokenClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// TokenIssuerConfig configures the session token issuer.
type TokenIssuerConfig struct {
	SigningSecret []byte
	TokenTTL      time.Duration
	Clock         func() time.Time
	IDProvider    IDProvider
}

// TokenIssuer issues HS256-signed session tokens for authenticated identities.
type TokenIssuer struct {
	signingSecret []byte
	tokenTTL      time.Duration
	clock         func() time.Time
	idProvider    IDProvider
}

// NewTokenIssuer constructs a TokenIssuer with sane defaults.
func NewTokenIssuer(cfg TokenIssuerConfig) (*TokenIssuer, error) {
	if len(cfg.SigningSecret) == 0 {
		return nil, errMissingSigningSecret
	}
	ttl := cfg.TokenTTL
	if ttl == 0 {
		ttl = defaultTokenTTL
	}
	clock := cfg.Clock
	if clock == nil {
		clock = time.Now
	}
	idProvider := cfg.IDProvider
	if idProvider == nil {
		idProvider = uuidProvider{}
	}
	return &TokenIssuer{
		signingSecret: append([]byte(nil), cfg.SigningSecret...),
		tokenTTL:      ttl,
		clock:         clock,
		idProvider:    idProvider,
	}, nil
}

// TokenTTL reports the lifetime applied to issued tokens.
func (i *TokenIssuer) TokenTTL() time.Duration {
	return i.tokenTTL
}

// IssueToken signs the provided claims with an expiry of now plus ttl.
// A zero ttl selects the issuer's configured lifetime.
func (i *TokenIssuer) IssueToken(claims Claims, ttl time.Duration) (string, time.Time, error) {
	if claims.Subject == "" {
		return "", time.Time{}, errMissingSubjectClaim
	}
	if claims.Email == "" {
		return "", time.Time{}, errMissingEmailClaim
	}
	if ttl == 0 {
		ttl = i.tokenTTL
	}

	tokenID, err := i.idProvider.NewID()
	if err != nil {
		return "", time.Time{}, err
	}

	now := i.clock().UTC()
	expiresAt := now.Add(ttl)

	payload := sessionTokenClaims{
		Email: claims.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        tokenID,
			Subject:   claims.Subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, payload)
	signed, err := token.SignedString(i.signingSecret)
	if err != nil {
		return "", time.Time{}, err
	}

	return signed, expiresAt, nil
}
