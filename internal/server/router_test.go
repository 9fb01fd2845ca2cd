package server

import (
	"context"
	"fmt"
	"net/http"
	"testing"
	"time"

	sqlite "github.com/glebarez/sqlite"
	"github.com/gin-gonic/gin"
	"github.com/inkpost/backend/internal/auth"
	"github.com/inkpost/backend/internal/comments"
	"github.com/inkpost/backend/internal/identity"
	"github.com/inkpost/backend/internal/posts"
	"github.com/inkpost/backend/internal/security"
	"github.com/inkpost/backend/internal/users"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"
	"golang.org/x/time/rate"
	"gorm.io/gorm"
)

const (
	testSigningSecret = "unit-test-signing-secret"
	testCookieName    = "access_token"
	testFrontendURL   = "http://127.0.0.1:5173/"
)

type stubAuthorizer struct {
	base string
}

func (s stubAuthorizer) AuthCodeURL(state string) string {
	return s.base + "?state=" + state
}

type stubResolver struct {
	login identity.Login
	err   error
	code  string
}

func (s *stubResolver) Resolve(_ context.Context, code string) (identity.Login, error) {
	s.code = code
	if s.err != nil {
		return identity.Login{}, s.err
	}
	return s.login, nil
}

type routerFixture struct {
	handler  http.Handler
	issuer   *auth.TokenIssuer
	users    *users.Service
	posts    *posts.Service
	comments *comments.Service
	db       *gorm.DB
	resolver *stubResolver
	logs     *observer.ObservedLogs
}

func newRouterFixture(t *testing.T) *routerFixture {
	t.Helper()
	gin.SetMode(gin.TestMode)

	dsn := fmt.Sprintf("file:server_test_%d?mode=memory&cache=shared", time.Now().UnixNano())
	db, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("failed to open sqlite: %v", err)
	}
	if err := db.AutoMigrate(&users.User{}, &users.Session{}, &posts.Post{}, &comments.Comment{}); err != nil {
		t.Fatalf("failed to migrate schema: %v", err)
	}

	issuer, err := auth.NewTokenIssuer(auth.TokenIssuerConfig{SigningSecret: []byte(testSigningSecret)})
	if err != nil {
		t.Fatalf("failed to build issuer: %v", err)
	}
	verifier, err := auth.NewSessionVerifier(auth.SessionVerifierConfig{
		SigningSecret: []byte(testSigningSecret),
		CookieName:    testCookieName,
	})
	if err != nil {
		t.Fatalf("failed to build verifier: %v", err)
	}

	userService, err := users.NewService(users.ServiceConfig{Database: db, IDProvider: users.NewUUIDProvider()})
	if err != nil {
		t.Fatalf("failed to build user service: %v", err)
	}
	postService, err := posts.NewService(posts.ServiceConfig{
		Database:   db,
		IDProvider: users.NewUUIDProvider(),
		Sanitizer:  security.NewContentSanitizer(),
	})
	if err != nil {
		t.Fatalf("failed to build post service: %v", err)
	}
	commentService, err := comments.NewService(comments.ServiceConfig{
		Database:   db,
		IDProvider: users.NewUUIDProvider(),
		Sanitizer:  security.NewContentSanitizer(),
	})
	if err != nil {
		t.Fatalf("failed to build comment service: %v", err)
	}

	observedCore, observedLogs := observer.New(zap.InfoLevel)
	resolver := &stubResolver{}

	handler, err := NewHTTPHandler(Dependencies{
		Provider:        stubAuthorizer{base: "https://accounts.example.com/authorize"},
		Resolver:        resolver,
		SessionVerifier: verifier,
		Users:           userService,
		Posts:           postService,
		Comments:        commentService,
		Database:        db,
		FrontendURL:     testFrontendURL,
		LoginLimiter:    newClientRateLimiter(rate.Inf, 0),
		Logger:          zap.New(observedCore),
	})
	if err != nil {
		t.Fatalf("failed to build handler: %v", err)
	}

	return &routerFixture{
		handler:  handler,
		issuer:   issuer,
		users:    userService,
		posts:    postService,
		comments: commentService,
		db:       db,
		resolver: resolver,
		logs:     observedLogs,
	}
}

// registerUser stores a user record and returns it with a valid session cookie.
func (f *routerFixture) registerUser(t *testing.T, googleID, email string) (users.User, *http.Cookie) {
	t.Helper()
	token, expiresAt, err := f.issuer.IssueToken(auth.Claims{Subject: googleID, Email: email}, 0)
	if err != nil {
		t.Fatalf("failed to issue token: %v", err)
	}
	user, err := f.users.RecordLogin(context.Background(), users.LoginProfile{
		GoogleID: googleID,
		Email:    email,
		Name:     "Test Author",
	}, token, expiresAt)
	if err != nil {
		t.Fatalf("failed to record login: %v", err)
	}
	return user, &http.Cookie{Name: testCookieName, Value: token}
}
