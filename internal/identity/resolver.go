package identity

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/inkpost/backend/internal/auth"
	"github.com/inkpost/backend/internal/users"
	"go.uber.org/zap"
)

var (
	// ErrAuthenticationFailed covers every terminal failure of the callback
	// flow before persistence: bad code exchange, bad profile fetch,
	// untrusted issuer, missing subject.
	ErrAuthenticationFailed = errors.New("identity: authentication failed")

	errMissingProvider  = errors.New("identity: google provider dependency required")
	errMissingVerifier  = errors.New("identity: id token verifier dependency required")
	errMissingIssuer    = errors.New("identity: token issuer dependency required")
	errMissingUserStore = errors.New("identity: user store dependency required")
)

// CodeExchanger runs the provider side of the authorization-code flow.
type CodeExchanger interface {
	Exchange(ctx context.Context, code string) (auth.TokenResponse, error)
	FetchProfile(ctx context.Context, accessToken string) (auth.Profile, error)
}

// IDTokenVerifier validates the provider's ID token offline.
type IDTokenVerifier interface {
	Verify(ctx context.Context, rawToken string) (auth.IDClaims, error)
}

// TokenIssuer signs session tokens for resolved identities.
type TokenIssuer interface {
	IssueToken(claims auth.Claims, ttl time.Duration) (string, time.Time, error)
}

// UserStore persists the login outcome.
type UserStore interface {
	RecordLogin(ctx context.Context, profile users.LoginProfile, token string, expiresAt time.Time) (users.User, error)
}

// ResolverConfig bundles the collaborators of the callback flow.
type ResolverConfig struct {
	Provider  CodeExchanger
	Verifier  IDTokenVerifier
	Issuer    TokenIssuer
	UserStore UserStore
	Logger    *zap.Logger
}

// Resolver orchestrates the login callback: code exchange, identity
// validation, user upsert, session issuance.
type Resolver struct {
	provider  CodeExchanger
	verifier  IDTokenVerifier
	issuer    TokenIssuer
	userStore UserStore
	logger    *zap.Logger
}

// Login is the successful outcome of the callback flow.
type Login struct {
	User      users.User
	Token     string
	ExpiresAt time.Time
}

// NewResolver constructs a Resolver with validated dependencies.
func NewResolver(cfg ResolverConfig) (*Resolver, error) {
	if cfg.Provider == nil {
		return nil, errMissingProvider
	}
	if cfg.Verifier == nil {
		return nil, errMissingVerifier
	}
	if cfg.Issuer == nil {
		return nil, errMissingIssuer
	}
	if cfg.UserStore == nil {
		return nil, errMissingUserStore
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{
		provider:  cfg.Provider,
		verifier:  cfg.Verifier,
		issuer:    cfg.Issuer,
		userStore: cfg.UserStore,
		logger:    logger,
	}, nil
}

// Resolve runs the linear callback flow for the provided authorization code.
// Every pre-persistence failure maps to ErrAuthenticationFailed; persistence
// failures are surfaced as-is so callers can answer with a server error.
func (r *Resolver) Resolve(ctx context.Context, code string) (Login, error) {
	token, err := r.provider.Exchange(ctx, code)
	if err != nil {
		r.logger.Warn("code exchange failed", zap.Error(err))
		return Login{}, fmt.Errorf("%w: code exchange: %v", ErrAuthenticationFailed, err)
	}
	if token.IDToken == "" {
		r.logger.Warn("token response missing id token")
		return Login{}, fmt.Errorf("%w: token response missing id token", ErrAuthenticationFailed)
	}

	idClaims, err := r.verifier.Verify(ctx, token.IDToken)
	if err != nil {
		r.logger.Warn("id token verification failed", zap.Error(err))
		return Login{}, fmt.Errorf("%w: id token verification: %v", ErrAuthenticationFailed, err)
	}

	profile, err := r.provider.FetchProfile(ctx, token.AccessToken)
	if err != nil {
		r.logger.Warn("profile fetch failed", zap.Error(err))
		return Login{}, fmt.Errorf("%w: profile fetch: %v", ErrAuthenticationFailed, err)
	}
	if profile.Subject == "" {
		r.logger.Warn("profile missing subject")
		return Login{}, fmt.Errorf("%w: profile missing subject", ErrAuthenticationFailed)
	}
	if profile.Subject != idClaims.Subject {
		r.logger.Warn("profile subject mismatch",
			zap.String("profile_subject", profile.Subject),
			zap.String("token_subject", idClaims.Subject))
		return Login{}, fmt.Errorf("%w: subject mismatch", ErrAuthenticationFailed)
	}

	email := profile.Email
	if email == "" {
		email = idClaims.Email
	}
	if email == "" {
		r.logger.Warn("profile missing email", zap.String("subject", profile.Subject))
		return Login{}, fmt.Errorf("%w: profile missing email", ErrAuthenticationFailed)
	}

	signed, expiresAt, err := r.issuer.IssueToken(auth.Claims{Subject: profile.Subject, Email: email}, 0)
	if err != nil {
		return Login{}, fmt.Errorf("identity: token issuance: %w", err)
	}

	user, err := r.userStore.RecordLogin(ctx, users.LoginProfile{
		GoogleID:  profile.Subject,
		Email:     email,
		Name:      profile.Name,
		AvatarURL: profile.AvatarURL,
	}, signed, expiresAt)
	if err != nil {
		return Login{}, fmt.Errorf("identity: record login: %w", err)
	}

	r.logger.Info("login resolved",
		zap.String("user_id", user.ID),
		zap.Time("expires_at", expiresAt))

	return Login{User: user, Token: signed, ExpiresAt: expiresAt}, nil
}
