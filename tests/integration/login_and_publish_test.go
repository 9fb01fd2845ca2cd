package integration_test

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	sqlite "github.com/glebarez/sqlite"
	"github.com/golang-jwt/jwt/v5"
	"github.com/inkpost/backend/internal/auth"
	"github.com/inkpost/backend/internal/comments"
	"github.com/inkpost/backend/internal/identity"
	"github.com/inkpost/backend/internal/posts"
	"github.com/inkpost/backend/internal/security"
	"github.com/inkpost/backend/internal/server"
	"github.com/inkpost/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	integrationSecret = "integration-secret"
	integrationCookie = "access_token"
	clientID          = "integration-client"
	googleSubject     = "google-sub-42"
	googleEmail       = "writer@example.com"
	frontendURL       = "http://127.0.0.1:5173/"
	jsonContentType   = "application/json"
)

// fakeGoogle stands in for the Google OAuth endpoints: token exchange,
// userinfo, and the JWKS document backing the ID token signature.
type fakeGoogle struct {
	privateKey *rsa.PrivateKey
	server     *httptest.Server
}

func newFakeGoogle(testContext *testing.T) *fakeGoogle {
	testContext.Helper()
	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		testContext.Fatalf("failed to generate key: %v", err)
	}

	fake := &fakeGoogle{privateKey: privateKey}
	mux := http.NewServeMux()
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost {
			w.WriteHeader(http.StatusMethodNotAllowed)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"access_token": "upstream-access-token",
			"id_token":     fake.mintIDToken(testContext),
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})
	mux.HandleFunc("/userinfo", func(w http.ResponseWriter, r *http.Request) {
		if r.Header.Get("Authorization") != "Bearer upstream-access-token" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"sub":            googleSubject,
			"email":          googleEmail,
			"email_verified": true,
			"name":           "Integration Writer",
			"picture":        "https://example.com/avatar.png",
		})
	})
	mux.HandleFunc("/jwks", func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{
			"keys": []any{map[string]string{
				"kty": "RSA",
				"alg": "RS256",
				"kid": "integration-key",
				"use": "sig",
				"n":   base64.RawURLEncoding.EncodeToString(privateKey.PublicKey.N.Bytes()),
				"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(privateKey.PublicKey.E)).Bytes()),
			}},
		})
	})

	fake.server = httptest.NewServer(mux)
	testContext.Cleanup(fake.server.Close)
	return fake
}

func (f *fakeGoogle) mintIDToken(testContext *testing.T) string {
	testContext.Helper()
	now := time.Now().UTC()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"aud":     clientID,
		"iss":     "https://accounts.google.com",
		"sub":     googleSubject,
		"email":   googleEmail,
		"name":    "Integration Writer",
		"picture": "https://example.com/avatar.png",
		"exp":     now.Add(5 * time.Minute).Unix(),
		"iat":     now.Unix(),
	})
	token.Header["kid"] = "integration-key"
	signed, err := token.SignedString(f.privateKey)
	if err != nil {
		testContext.Fatalf("failed to sign id token: %v", err)
	}
	return signed
}

func newBackend(testContext *testing.T, google *fakeGoogle) http.Handler {
	testContext.Helper()

	db, err := gorm.Open(sqlite.Open("file:integration?mode=memory&cache=shared"), &gorm.Config{})
	if err != nil {
		testContext.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&users.User{}, &users.Session{}, &posts.Post{}, &comments.Comment{}); err != nil {
		testContext.Fatalf("failed to migrate: %v", err)
	}

	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{SigningSecret: []byte(integrationSecret)})
	if err != nil {
		testContext.Fatalf("failed to build issuer: %v", err)
	}
	verifier, err := auth.NewSessionVerifier(auth.SessionVerifierConfig{
		SigningSecret: []byte(integrationSecret),
		CookieName:    integrationCookie,
	})
	if err != nil {
		testContext.Fatalf("failed to build session verifier: %v", err)
	}
	provider, err := auth.NewGoogleProvider(auth.GoogleProviderConfig{
		ClientID:          clientID,
		ClientSecret:      "integration-client-secret",
		RedirectURL:       "http://127.0.0.1:8000/auth/callback",
		AuthorizeEndpoint: google.server.URL + "/authorize",
		TokenEndpoint:     google.server.URL + "/token",
		UserInfoEndpoint:  google.server.URL + "/userinfo",
		HTTPClient:        google.server.Client(),
	})
	if err != nil {
		testContext.Fatalf("failed to build provider: %v", err)
	}
	idVerifier, err := auth.NewIDTokenVerifier(auth.IDTokenVerifierConfig{
		Audience:   clientID,
		JWKSURL:    google.server.URL + "/jwks",
		HTTPClient: google.server.Client(),
	})
	if err != nil {
		testContext.Fatalf("failed to build id token verifier: %v", err)
	}

	userService, err := users.NewService(users.ServiceConfig{Database: db, IDProvider: users.NewUUIDProvider()})
	if err != nil {
		testContext.Fatalf("failed to build user service: %v", err)
	}
	postService, err := posts.NewService(posts.ServiceConfig{
		Database:   db,
		IDProvider: users.NewUUIDProvider(),
		Sanitizer:  security.NewContentSanitizer(),
	})
	if err != nil {
		testContext.Fatalf("failed to build post service: %v", err)
	}
	commentService, err := comments.NewService(comments.ServiceConfig{
		Database:   db,
		IDProvider: users.NewUUIDProvider(),
		Sanitizer:  security.NewContentSanitizer(),
	})
	if err != nil {
		testContext.Fatalf("failed to build comment service: %v", err)
	}

	resolver, err := identity.NewResolver(identity.ResolverConfig{
		Provider:  provider,
		Verifier:  idVerifier,
		Issuer:    issuer,
		UserStore: userService,
		Logger:    zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build resolver: %v", err)
	}

	handler, err := server.NewHTTPHandler(server.Dependencies{
		Provider:        provider,
		Resolver:        resolver,
		SessionVerifier: verifier,
		Users:           userService,
		Posts:           postService,
		Comments:        commentService,
		Database:        db,
		FrontendURL:     frontendURL,
		Logger:          zap.NewNop(),
	})
	if err != nil {
		testContext.Fatalf("failed to build handler: %v", err)
	}
	return handler
}

func cookieByName(cookies []*http.Cookie, name string) *http.Cookie {
	for _, cookie := range cookies {
		if cookie.Name == name {
			return cookie
		}
	}
	return nil
}

func TestLoginAndPublishFlow(testContext *testing.T) {
	gin.SetMode(gin.TestMode)

	google := newFakeGoogle(testContext)
	handler := newBackend(testContext, google)

	// Step 1: the login redirect plants the state cookie.
	loginRecorder := httptest.NewRecorder()
	handler.ServeHTTP(loginRecorder, httptest.NewRequest(http.MethodGet, "/auth/login", nil))
	if loginRecorder.Code != http.StatusTemporaryRedirect {
		testContext.Fatalf("unexpected login status: %d", loginRecorder.Code)
	}
	stateCookie := cookieByName(loginRecorder.Result().Cookies(), "oauth_state")
	if stateCookie == nil {
		testContext.Fatal("expected state cookie from login")
	}

	// Step 2: the callback exchanges the code and issues the session cookie.
	callbackRequest := httptest.NewRequest(http.MethodGet, "/auth/callback?code=integration-code&state="+stateCookie.Value, nil)
	callbackRequest.AddCookie(stateCookie)
	callbackRecorder := httptest.NewRecorder()
	handler.ServeHTTP(callbackRecorder, callbackRequest)
	if callbackRecorder.Code != http.StatusFound {
		testContext.Fatalf("unexpected callback status: %d: %s", callbackRecorder.Code, callbackRecorder.Body.String())
	}
	if location := callbackRecorder.Header().Get("Location"); location != frontendURL {
		testContext.Fatalf("unexpected post-login redirect: %q", location)
	}
	sessionCookie := cookieByName(callbackRecorder.Result().Cookies(), integrationCookie)
	if sessionCookie == nil || sessionCookie.Value == "" {
		testContext.Fatal("expected session cookie from callback")
	}

	// Step 3: the session resolves to the freshly created user.
	meRequest := httptest.NewRequest(http.MethodGet, "/auth/me", nil)
	meRequest.AddCookie(sessionCookie)
	meRecorder := httptest.NewRecorder()
	handler.ServeHTTP(meRecorder, meRequest)
	if meRecorder.Code != http.StatusOK {
		testContext.Fatalf("unexpected me status: %d: %s", meRecorder.Code, meRecorder.Body.String())
	}
	var whoami struct {
		UserID   string `json:"user_id"`
		GoogleID string `json:"google_id"`
		Email    string `json:"email"`
	}
	if err := json.Unmarshal(meRecorder.Body.Bytes(), &whoami); err != nil {
		testContext.Fatalf("failed to decode me response: %v", err)
	}
	if whoami.GoogleID != googleSubject || whoami.Email != googleEmail || whoami.UserID == "" {
		testContext.Fatalf("unexpected identity: %+v", whoami)
	}

	// Step 4: publish a post with the session cookie.
	postRequest := httptest.NewRequest(http.MethodPost, "/posts", strings.NewReader(`{"title":"Hello, World!","content":"<p>First entry.</p>","tags":["intro"]}`))
	postRequest.Header.Set("Content-Type", jsonContentType)
	postRequest.AddCookie(sessionCookie)
	postRecorder := httptest.NewRecorder()
	handler.ServeHTTP(postRecorder, postRequest)
	if postRecorder.Code != http.StatusOK {
		testContext.Fatalf("unexpected post status: %d: %s", postRecorder.Code, postRecorder.Body.String())
	}
	var created struct {
		ID   string `json:"id"`
		Slug string `json:"slug"`
	}
	if err := json.Unmarshal(postRecorder.Body.Bytes(), &created); err != nil {
		testContext.Fatalf("failed to decode post response: %v", err)
	}
	if created.Slug != "hello-world" {
		testContext.Fatalf("unexpected slug: %q", created.Slug)
	}

	// Step 5: the post is publicly readable by slug.
	readRecorder := httptest.NewRecorder()
	handler.ServeHTTP(readRecorder, httptest.NewRequest(http.MethodGet, "/posts/hello-world", nil))
	if readRecorder.Code != http.StatusOK {
		testContext.Fatalf("unexpected read status: %d", readRecorder.Code)
	}

	// Step 6: comment on the post and read it back with author details.
	commentRequest := httptest.NewRequest(http.MethodPost, "/comments?post_id="+created.ID, strings.NewReader(`{"content":"Looking forward to more."}`))
	commentRequest.Header.Set("Content-Type", jsonContentType)
	commentRequest.AddCookie(sessionCookie)
	commentRecorder := httptest.NewRecorder()
	handler.ServeHTTP(commentRecorder, commentRequest)
	if commentRecorder.Code != http.StatusOK {
		testContext.Fatalf("unexpected comment status: %d: %s", commentRecorder.Code, commentRecorder.Body.String())
	}

	listRecorder := httptest.NewRecorder()
	handler.ServeHTTP(listRecorder, httptest.NewRequest(http.MethodGet, "/comments/"+created.ID, nil))
	if listRecorder.Code != http.StatusOK {
		testContext.Fatalf("unexpected comment list status: %d", listRecorder.Code)
	}
	var views []struct {
		Content   string `json:"content"`
		UserName  string `json:"user_name"`
		UserEmail string `json:"user_email"`
	}
	if err := json.Unmarshal(listRecorder.Body.Bytes(), &views); err != nil {
		testContext.Fatalf("failed to decode comments: %v", err)
	}
	if len(views) != 1 || views[0].UserEmail != googleEmail || views[0].UserName != "Integration Writer" {
		testContext.Fatalf("unexpected comment views: %+v", views)
	}
}
