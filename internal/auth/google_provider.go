package auth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
)

const (
	defaultAuthorizeEndpoint = "https://accounts.google.com/o/oauth2/v2/auth"
	defaultTokenEndpoint     = "https://oauth2.googleapis.com/token"
	defaultUserInfoEndpoint  = "https://openidconnect.googleapis.com/v1/userinfo"
)

var (
	errMissingClientID     = errors.New("google provider: client id required")
	errMissingClientSecret = errors.New("google provider: client secret required")
	errMissingRedirectURL  = errors.New("google provider: redirect url required")
	errMissingAuthCode     = errors.New("google provider: authorization code required")
	errMissingAccessToken  = errors.New("google provider: access token required")
)

// GoogleProviderConfig bundles the OAuth client credentials and endpoints.
// Endpoint overrides exist for tests; zero values select Google's endpoints.
type GoogleProviderConfig struct {
	ClientID          string
	ClientSecret      string
	RedirectURL       string
	AuthorizeEndpoint string
	TokenEndpoint     string
	UserInfoEndpoint  string
	HTTPClient        *http.Client
}

// TokenResponse captures the provider's answer to a code exchange.
type TokenResponse struct {
	AccessToken string `json:"access_token"`
	IDToken     string `json:"id_token"`
	TokenType   string `json:"token_type"`
	ExpiresIn   int    `json:"expires_in"`
}

// Profile carries the identity fields returned by the userinfo endpoint.
type Profile struct {
	Subject       string `json:"sub"`
	Email         string `json:"email"`
	EmailVerified bool   `json:"email_verified"`
	Name          string `json:"name"`
	AvatarURL     string `json:"picture"`
}

// GoogleProvider runs the Google authorization-code flow.
type GoogleProvider struct {
	clientID          string
	clientSecret      string
	redirectURL       string
	authorizeEndpoint string
	tokenEndpoint     string
	userInfoEndpoint  string
	httpClient        *http.Client
}

// NewGoogleProvider constructs a provider with validated configuration.
func NewGoogleProvider(cfg GoogleProviderConfig) (*GoogleProvider, error) {
	clientID := strings.TrimSpace(cfg.ClientID)
	if clientID == "" {
		return nil, errMissingClientID
	}
	clientSecret := strings.TrimSpace(cfg.ClientSecret)
	if clientSecret == "" {
		return nil, errMissingClientSecret
	}
	redirectURL := strings.TrimSpace(cfg.RedirectURL)
	if redirectURL == "" {
		return nil, errMissingRedirectURL
	}

	provider := &GoogleProvider{
		clientID:          clientID,
		clientSecret:      clientSecret,
		redirectURL:       redirectURL,
		authorizeEndpoint: cfg.AuthorizeEndpoint,
		tokenEndpoint:     cfg.TokenEndpoint,
		userInfoEndpoint:  cfg.UserInfoEndpoint,
		httpClient:        cfg.HTTPClient,
	}
	if provider.authorizeEndpoint == "" {
		provider.authorizeEndpoint = defaultAuthorizeEndpoint
	}
	if provider.tokenEndpoint == "" {
		provider.tokenEndpoint = defaultTokenEndpoint
	}
	if provider.userInfoEndpoint == "" {
		provider.userInfoEndpoint = defaultUserInfoEndpoint
	}
	if provider.httpClient == nil {
		provider.httpClient = http.DefaultClient
	}
	return provider, nil
}

// AuthCodeURL returns the authorization URL the client is redirected to.
func (g *GoogleProvider) AuthCodeURL(state string) string {
	params := url.Values{}
	params.Set("client_id", g.clientID)
	params.Set("redirect_uri", g.redirectURL)
	params.Set("response_type", "code")
	params.Set("scope", "openid profile email")
	params.Set("state", state)
	return g.authorizeEndpoint + "?" + params.Encode()
}

// Exchange trades the authorization code for provider tokens.
func (g *GoogleProvider) Exchange(ctx context.Context, code string) (TokenResponse, error) {
	if strings.TrimSpace(code) == "" {
		return TokenResponse{}, errMissingAuthCode
	}

	form := url.Values{}
	form.Set("code", code)
	form.Set("client_id", g.clientID)
	form.Set("client_secret", g.clientSecret)
	form.Set("redirect_uri", g.redirectURL)
	form.Set("grant_type", "authorization_code")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, g.tokenEndpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return TokenResponse{}, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return TokenResponse{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return TokenResponse{}, fmt.Errorf("code exchange returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var token TokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return TokenResponse{}, err
	}
	if token.AccessToken == "" {
		return TokenResponse{}, errors.New("code exchange response missing access token")
	}
	return token, nil
}

// FetchProfile retrieves the user's profile from the userinfo endpoint.
func (g *GoogleProvider) FetchProfile(ctx context.Context, accessToken string) (Profile, error) {
	if strings.TrimSpace(accessToken) == "" {
		return Profile{}, errMissingAccessToken
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.userInfoEndpoint, nil)
	if err != nil {
		return Profile{}, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := g.httpClient.Do(req)
	if err != nil {
		return Profile{}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return Profile{}, fmt.Errorf("userinfo returned status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var profile Profile
	if err := json.NewDecoder(resp.Body).Decode(&profile); err != nil {
		return Profile{}, err
	}
	return profile, nil
}
