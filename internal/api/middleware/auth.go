package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/codexalpha/blueprint_go_server/internal/pkg/jwt"
	"github.com/codexalpha/blueprint_go_server/internal/pkg/response"
	"github.com/codexalpha/blueprint_go_server/internal/repository"
)

const (
	UserIDKey  = "userID"
	IsAdminKey = "isAdmin"
)

// Auth JWT 认证中间件
func Auth(jwtSecret string) gin.HandlerFunc {
	return func(c *gin.Context) {
		authHeader := c.GetHeader("Authorization")
		if authHeader == "" {
			response.AuthError(c, "missing authorization header")
			c.Abort()
			return
		}

		tokenString := strings.TrimPrefix(authHeader, "Bearer ")
		if tokenString == authHeader {
			response.AuthError(c, "malformed authorization header")
			c.Abort()
			return
		}

		claims, err := jwt.ParseToken(tokenString, jwtSecret)
		if err != nil {
			response.AuthError(c, "invalid or expired token")
			c.Abort()
			return
		}

		c.Set(UserIDKey, claims.UserID)
		c.Next()
	}
}

// AdminAuth 在 Auth 之后使用，校验管理员身份并写入 isAdmin
func AdminAuth(userRepo *repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID, ok := GetUserID(c)
		if !ok {
			response.AuthError(c, "")
			c.Abort()
			return
		}

		user, err := userRepo.GetByID(userID)
		if err != nil || !user.IsAdmin {
			response.PermissionError(c, "admin access required")
			c.Abort()
			return
		}

		c.Set(IsAdminKey, true)
		c.Next()
	}
}

// LoadAdminFlag 在 Auth 之后使用，仅标记管理员身份，不强制
func LoadAdminFlag(userRepo *repository.UserRepository) gin.HandlerFunc {
	return func(c *gin.Context) {
		if userID, ok := GetUserID(c); ok {
			if user, err := userRepo.GetByID(userID); err == nil && user.IsAdmin {
				c.Set(IsAdminKey, true)
			}
		}
		c.Next()
	}
}

// GetUserID 从上下文获取用户 ID
func GetUserID(c *gin.Context) (int64, bool) {
	userID, exists := c.Get(UserIDKey)
	if !exists {
		return 0, false
	}
	id, ok := userID.(int64)
	return id, ok
}

// IsAdmin 从上下文获取管理员标记
func IsAdmin(c *gin.Context) bool {
	isAdmin, exists := c.Get(IsAdminKey)
	if !exists {
		return false
	}
	flag, ok := isAdmin.(bool)
	return ok && flag
}
