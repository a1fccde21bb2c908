package middleware

import (
	"context"
	"errors"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/huangang/taskboard/internal/models"
	"github.com/huangang/taskboard/internal/utils"
	"github.com/huangang/taskboard/pkg/logger"
	"github.com/huangang/taskboard/pkg/response"
	"gorm.io/gorm"
)

const ContextUser = "current_user"

// UserLookup resolves a token subject to a user. It returns
// gorm.ErrRecordNotFound when the user no longer exists.
type UserLookup interface {
	FindUser(ctx context.Context, id string) (*models.User, error)
}

// AuthRequired authenticates the request from its bearer token and stores
// the user in the context.
func AuthRequired(tokens *utils.TokenManager, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		authenticate(c, tokens, users, bearerToken(c))
	}
}

// StreamAuth is AuthRequired for event streams, which browsers open without
// custom headers: the token may also come from the "token" query parameter.
func StreamAuth(tokens *utils.TokenManager, users UserLookup) gin.HandlerFunc {
	return func(c *gin.Context) {
		token := bearerToken(c)
		if token == "" {
			token = c.Query("token")
		}
		authenticate(c, tokens, users, token)
	}
}

func authenticate(c *gin.Context, tokens *utils.TokenManager, users UserLookup, token string) {
	user, err := Authenticate(c.Request.Context(), tokens, users, token)
	if err != nil {
		response.Error(c, err)
		c.Abort()
		return
	}

	c.Set(ContextUser, user)
	c.Set(logger.ContextUserIDKey, user.ID)
	c.Next()
}

// Authenticate verifies token and loads its user.
func Authenticate(ctx context.Context, tokens *utils.TokenManager, users UserLookup, token string) (*models.User, error) {
	if token == "" {
		return nil, response.NewUnauthorized("Access token required")
	}

	claims, err := tokens.Parse(token)
	if err != nil {
		if errors.Is(err, utils.ErrTokenExpired) {
			return nil, response.NewForbidden("Token expired")
		}
		return nil, response.NewForbidden("Invalid token")
	}

	user, err := users.FindUser(ctx, claims.UserID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, response.NewUnauthorized("User not found")
		}
		return nil, response.NewServerError("failed to load user", err)
	}
	return user, nil
}

func bearerToken(c *gin.Context) string {
	parts := strings.SplitN(c.GetHeader("Authorization"), " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return ""
	}
	return strings.TrimSpace(parts[1])
}

// AdminRequired is a middleware that checks for the global admin role
func AdminRequired() gin.HandlerFunc {
	return func(c *gin.Context) {
		if !CurrentUser(c).IsAdmin() {
			response.Error(c, response.NewForbidden("Admin access required"))
			c.Abort()
			return
		}
		c.Next()
	}
}

// CurrentUser returns the authenticated user, or nil outside the auth gate.
func CurrentUser(c *gin.Context) *models.User {
	if v, exists := c.Get(ContextUser); exists {
		if user, ok := v.(*models.User); ok {
			return user
		}
	}
	return nil
}
