package server

import (
	"context"
	"crypto/rand"
	"encoding/hex"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"
	"github.com/inkpost/backend/internal/auth"
	"github.com/inkpost/backend/internal/comments"
	"github.com/inkpost/backend/internal/identity"
	"github.com/inkpost/backend/internal/posts"
	"github.com/inkpost/backend/internal/users"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	userIDContextKey = "inkpost_user_id"
	claimsContextKey = "inkpost_claims"

	stateCookieName    = "oauth_state"
	redirectCookieName = "post_login_redirect"
	stateCookieMaxAge  = 600
)

var (
	errMissingProvider = errors.New("google provider dependency required")
	errMissingResolver = errors.New("login resolver dependency required")
	errMissingVerifier = errors.New("session verifier dependency required")
	errMissingUsers    = errors.New("user service dependency required")
	errMissingPosts    = errors.New("post service dependency required")
	errMissingComments = errors.New("comment service dependency required")
	errMissingFrontend = errors.New("frontend url required")
)

// GoogleAuthorizer builds the provider authorization URL for the login redirect.
type GoogleAuthorizer interface {
	AuthCodeURL(state string) string
}

// LoginResolver runs the callback flow for an authorization code.
type LoginResolver interface {
	Resolve(ctx context.Context, code string) (identity.Login, error)
}

// SessionVerifier validates the session cookie on protected requests.
type SessionVerifier interface {
	VerifyRequest(r *http.Request) (auth.Claims, error)
	CookieName() string
}

// UserDirectory resolves verified claims to a local user.
type UserDirectory interface {
	LookupByIdentity(ctx context.Context, googleID, email string) (users.User, error)
}

// Dependencies bundles the collaborators of the HTTP layer.
type Dependencies struct {
	Provider        GoogleAuthorizer
	Resolver        LoginResolver
	SessionVerifier SessionVerifier
	Users           UserDirectory
	Posts           *posts.Service
	Comments        *comments.Service
	Database        *gorm.DB
	Metrics         Recorder
	MetricsHandler  http.Handler
	FrontendURL     string
	LoginLimiter    *clientRateLimiter
	Logger          *zap.Logger
}

// NewHTTPHandler wires the gin router for the blog API.
func NewHTTPHandler(deps Dependencies) (http.Handler, error) {
	if deps.Provider == nil {
		return nil, errMissingProvider
	}
	if deps.Resolver == nil {
		return nil, errMissingResolver
	}
	if deps.SessionVerifier == nil {
		return nil, errMissingVerifier
	}
	if deps.Users == nil {
		return nil, errMissingUsers
	}
	if deps.Posts == nil {
		return nil, errMissingPosts
	}
	if deps.Comments == nil {
		return nil, errMissingComments
	}
	if strings.TrimSpace(deps.FrontendURL) == "" {
		return nil, errMissingFrontend
	}

	logger := deps.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	recorder := deps.Metrics
	if recorder == nil {
		recorder = nopRecorder{}
	}
	loginLimiter := deps.LoginLimiter
	if loginLimiter == nil {
		loginLimiter = newClientRateLimiter(defaultLoginRate, defaultLoginBurst)
	}

	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(cors.New(cors.Config{
		AllowOrigins:     []string{"*"},
		AllowMethods:     []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowHeaders:     []string{"Authorization", "Content-Type"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	handler := &httpHandler{
		provider:    deps.Provider,
		resolver:    deps.Resolver,
		verifier:    deps.SessionVerifier,
		users:       deps.Users,
		posts:       deps.Posts,
		comments:    deps.Comments,
		db:          deps.Database,
		metrics:     recorder,
		frontendURL: deps.FrontendURL,
		logger:      logger,
	}

	router.Use(handler.recordRequest)

	router.GET("/", handler.handleHealth)
	if deps.MetricsHandler != nil {
		router.GET("/metrics", gin.WrapH(deps.MetricsHandler))
	}

	authGroup := router.Group("/auth")
	authGroup.Use(loginLimiter.middleware())
	authGroup.GET("/login", handler.handleLogin)
	authGroup.GET("/callback", handler.handleCallback)
	authGroup.GET("/logout", handler.handleLogout)
	authGroup.GET("/me", handler.requireUser, handler.handleMe)

	router.GET("/posts", handler.handleListPosts)
	router.GET("/posts/:slug", handler.handleGetPost)
	router.POST("/posts", handler.requireUser, handler.handleCreatePost)
	router.PUT("/posts/:slug", handler.requireUser, handler.handleUpdatePost)
	router.DELETE("/posts/:slug", handler.requireUser, handler.handleDeletePost)

	// gin allows one wildcard name per segment, so the comment routes share
	// ":id": the post id on reads, the comment id on writes.
	router.GET("/comments/:id", handler.handleListComments)
	router.POST("/comments", handler.requireUser, handler.handleCreateComment)
	router.PUT("/comments/:id", handler.requireUser, handler.handleUpdateComment)
	router.DELETE("/comments/:id", handler.requireUser, handler.handleDeleteComment)

	return router, nil
}

type httpHandler struct {
	provider    GoogleAuthorizer
	resolver    LoginResolver
	verifier    SessionVerifier
	users       UserDirectory
	posts       *posts.Service
	comments    *comments.Service
	db          *gorm.DB
	metrics     Recorder
	frontendURL string
	logger      *zap.Logger
}

// Recorder is the metrics surface consumed by the HTTP layer.
type Recorder interface {
	RecordRequest(statusCode int, duration time.Duration)
	RecordLoginSuccess()
	RecordLoginFailure(reason string)
}

type nopRecorder struct{}

func (nopRecorder) RecordRequest(int, time.Duration) {}
func (nopRecorder) RecordLoginSuccess()              {}
func (nopRecorder) RecordLoginFailure(string)        {}

func (h *httpHandler) recordRequest(c *gin.Context) {
	start := time.Now()
	c.Next()
	h.metrics.RecordRequest(c.Writer.Status(), time.Since(start))
}

func (h *httpHandler) handleHealth(c *gin.Context) {
	response := gin.H{"app": "working", "db": nil}
	if h.db != nil {
		var probe string
		if err := h.db.WithContext(c.Request.Context()).Raw("SELECT 'db working'").Scan(&probe).Error; err != nil {
			response["db"] = err.Error()
		} else {
			response["db"] = probe
		}
	}
	c.JSON(http.StatusOK, response)
}

func newState() (string, error) {
	buf := make([]byte, 16)
	if _, err := rand.Read(buf); err != nil {
		return "", err
	}
	return hex.EncodeToString(buf), nil
}

func (h *httpHandler) handleLogin(c *gin.Context) {
	state, err := newState()
	if err != nil {
		h.logger.Error("failed to generate login state", zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(stateCookieName, state, stateCookieMaxAge, "/", "", true, true)
	if next := c.Query("next"); next != "" {
		c.SetCookie(redirectCookieName, next, stateCookieMaxAge, "/", "", true, true)
	}

	c.Redirect(http.StatusTemporaryRedirect, h.provider.AuthCodeURL(state))
}

func (h *httpHandler) handleCallback(c *gin.Context) {
	stateCookie, err := c.Cookie(stateCookieName)
	if err != nil || stateCookie == "" || c.Query("state") != stateCookie {
		h.logger.Warn("callback state mismatch")
		h.metrics.RecordLoginFailure("state_mismatch")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication_failed"})
		return
	}

	code := c.Query("code")
	if code == "" {
		h.metrics.RecordLoginFailure("missing_code")
		c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication_failed"})
		return
	}

	login, err := h.resolver.Resolve(c.Request.Context(), code)
	if err != nil {
		if errors.Is(err, identity.ErrAuthenticationFailed) {
			h.logger.Warn("login callback rejected", zap.Error(err))
			h.metrics.RecordLoginFailure("authentication_failed")
			c.JSON(http.StatusUnauthorized, gin.H{"error": "authentication_failed"})
			return
		}
		h.logger.Error("login callback failed", zap.Error(err))
		h.metrics.RecordLoginFailure("internal_error")
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	target := h.frontendURL
	if next, err := c.Cookie(redirectCookieName); err == nil && next != "" {
		target = next
	}

	maxAge := int(time.Until(login.ExpiresAt).Seconds())
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.verifier.CookieName(), login.Token, maxAge, "/", "", true, true)
	c.SetCookie(stateCookieName, "", -1, "/", "", true, true)
	c.SetCookie(redirectCookieName, "", -1, "/", "", true, true)

	h.metrics.RecordLoginSuccess()
	c.Redirect(http.StatusFound, target)
}

func (h *httpHandler) handleLogout(c *gin.Context) {
	// Clears the client cookie only; the session row expires naturally.
	c.SetSameSite(http.SameSiteStrictMode)
	c.SetCookie(h.verifier.CookieName(), "", -1, "/", "", true, true)
	c.Redirect(http.StatusFound, h.frontendURL)
}

func (h *httpHandler) requireUser(c *gin.Context) {
	claims, err := h.verifier.VerifyRequest(c.Request)
	if err != nil {
		switch {
		case errors.Is(err, auth.ErrMissingSessionToken):
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not_authenticated"})
		case errors.Is(err, auth.ErrExpiredSessionToken):
			h.logger.Info("session token expired", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "session_expired"})
		default:
			h.logger.Warn("session token invalid", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "not_authenticated"})
		}
		return
	}

	user, err := h.users.LookupByIdentity(c.Request.Context(), claims.Subject, claims.Email)
	if err != nil {
		if errors.Is(err, users.ErrUserNotFound) {
			c.AbortWithStatusJSON(http.StatusNotFound, gin.H{"error": "user_not_found"})
			return
		}
		h.logger.Error("user lookup failed", zap.Error(err))
		c.AbortWithStatusJSON(http.StatusInternalServerError, gin.H{"error": "internal_error"})
		return
	}

	c.Set(userIDContextKey, user.ID)
	c.Set(claimsContextKey, claims)
	c.Next()
}

type currentUserPayload struct {
	UserID   string `json:"user_id"`
	GoogleID string `json:"google_id"`
	Email    string `json:"email"`
}

func (h *httpHandler) handleMe(c *gin.Context) {
	claims, _ := c.Get(claimsContextKey)
	identityClaims, ok := claims.(auth.Claims)
	if !ok {
		c.JSON(http.StatusUnauthorized, gin.H{"error": "not_authenticated"})
		return
	}
	c.JSON(http.StatusOK, currentUserPayload{
		UserID:   c.GetString(userIDContextKey),
		GoogleID: identityClaims.Subject,
		Email:    identityClaims.Email,
	})
}
