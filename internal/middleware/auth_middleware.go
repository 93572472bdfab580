package middleware

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"firebase.google.com/go/v4/auth"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"flashdeck-backend-go/internal/config"
)

const (
	// UserIDKey is the gin context key holding the authenticated uid.
	UserIDKey = "userID"
	// UserIDHeader carries the uid in header auth mode.
	UserIDHeader = "X-User-ID"
)

// ErrorResponse mirrors api.ErrorResponse; it is redeclared here to keep
// middleware free of an api import.
type ErrorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// TokenVerifier verifies Firebase ID tokens. *auth.Client implements it.
type TokenVerifier interface {
	VerifyIDToken(ctx context.Context, idToken string) (*auth.Token, error)
}

// AuthMiddleware resolves the caller's uid and stores it under UserIDKey.
type AuthMiddleware struct {
	verifier TokenVerifier
	logger   *zap.Logger
}

// NewAuthMiddleware creates a bearer-token AuthMiddleware.
func NewAuthMiddleware(verifier TokenVerifier, logger *zap.Logger) *AuthMiddleware {
	if logger == nil {
		logger = zap.NewNop()
	}
	if verifier == nil {
		logger.Fatal("Firebase Auth client is not initialized for AuthMiddleware")
	}
	return &AuthMiddleware{verifier: verifier, logger: logger}
}

// VerifyToken checks the Firebase ID token in the Authorization header.
func (m *AuthMiddleware) VerifyToken() gin.HandlerFunc {
	return func(c *gin.Context) {
		// Get the token from the Authorization header.
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Authorization header is required"})
			return
		}

		// Expect exactly "Bearer <token>"; the scheme is matched case-insensitively.
		parts := strings.Split(authHeader, " ")
		if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Authorization header format must be 'Bearer {token}'"})
			return
		}

		// Use c.Request.Context() for the VerifyIDToken call as it's request-scoped.
		token, err := m.verifier.VerifyIDToken(c.Request.Context(), parts[1])
		if err != nil {
			// The verifier error may describe the token, so it is logged but not returned.
			m.logger.Warn("Error verifying Firebase ID token", zap.Error(err))
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: "Invalid or expired authentication token"})
			return
		}

		// Token is valid. Set the uid in context for downstream handlers.
		c.Set(UserIDKey, token.UID)
		c.Next()
	}
}

// TrustHeader takes the uid from the X-User-ID header without verification.
// Config validation keeps it out of release mode.
func TrustHeader() gin.HandlerFunc {
	return func(c *gin.Context) {
		uid := strings.TrimSpace(c.GetHeader(UserIDHeader))
		if uid == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, ErrorResponse{Error: UserIDHeader + " header is required"})
			return
		}
		c.Set(UserIDKey, uid)
		c.Next()
	}
}

// NewAuthenticator picks the auth handler for mode.
func NewAuthenticator(mode string, verifier TokenVerifier, logger *zap.Logger) (gin.HandlerFunc, error) {
	switch mode {
	case config.AuthModeFirebase:
		if verifier == nil {
			return nil, fmt.Errorf("auth mode %q requires a token verifier", mode)
		}
		return NewAuthMiddleware(verifier, logger).VerifyToken(), nil
	case config.AuthModeHeader:
		return TrustHeader(), nil
	default:
		return nil, fmt.Errorf("unknown auth mode %q", mode)
	}
}

// UserID returns the uid set by the auth middleware.
func UserID(c *gin.Context) (string, bool) {
	uid := c.GetString(UserIDKey)
	return uid, uid != ""
}
