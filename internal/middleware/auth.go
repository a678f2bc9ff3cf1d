package middleware

import (
	"crypto/subtle"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/user/castcount/internal/utils"
)

// RequireAdminToken 管理接口鉴权，token 为空时不做校验
func RequireAdminToken(token string) gin.HandlerFunc {
	return func(c *gin.Context) {
		if token == "" {
			c.Next()
			return
		}

		provided := extractBearer(c)
		if provided == "" || subtle.ConstantTimeCompare([]byte(provided), []byte(token)) != 1 {
			utils.Unauthorized(c, "需要管理员令牌")
			c.Abort()
			return
		}
		c.Next()
	}
}

// extractBearer 从 Authorization Header 获取令牌
func extractBearer(c *gin.Context) string {
	authHeader := c.GetHeader("Authorization")
	if !strings.HasPrefix(authHeader, "Bearer ") {
		return ""
	}
	return strings.TrimSpace(strings.TrimPrefix(authHeader, "Bearer "))
}
