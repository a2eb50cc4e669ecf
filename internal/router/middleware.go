package router

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/odhis101/k3c-platform/internal/auth"
	"github.com/odhis101/k3c-platform/internal/model"
)

// authMiddleware 必须携带有效令牌
func authMiddleware(issuer *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := parseBearer(c, issuer)
		if !ok {
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "未登录或令牌无效"})
			return
		}
		c.Set("user_id", claims.UserId)
		c.Set("role", string(claims.Role))
		c.Next()
	}
}

// optionalAuthMiddleware 令牌可选，携带且有效时注入用户信息
func optionalAuthMiddleware(issuer *auth.TokenIssuer) gin.HandlerFunc {
	return func(c *gin.Context) {
		if claims, ok := parseBearer(c, issuer); ok {
			c.Set("user_id", claims.UserId)
			c.Set("role", string(claims.Role))
		}
		c.Next()
	}
}

// requireRole 角色校验，置于 authMiddleware 之后
func requireRole(role model.UserRole) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.GetString("role") != string(role) {
			c.AbortWithStatusJSON(http.StatusForbidden, gin.H{"error": "权限不足"})
			return
		}
		c.Next()
	}
}

// parseBearer 从 Authorization 头解析令牌
func parseBearer(c *gin.Context, issuer *auth.TokenIssuer) (*auth.Claims, bool) {
	header := c.GetHeader("Authorization")
	if !strings.HasPrefix(header, "Bearer ") {
		return nil, false
	}
	claims, err := issuer.Parse(strings.TrimPrefix(header, "Bearer "))
	if err != nil {
		return nil, false
	}
	return claims, true
}
