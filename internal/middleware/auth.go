package middleware

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
)

var (
	// ErrMissingAuthHeader 表示请求中没有携带 Token
	ErrMissingAuthHeader = errors.New("missing Authorization header")
	// ErrMissingUserClaim 表示 Token 中没有有效的 user_id
	ErrMissingUserClaim = errors.New("token has no valid user_id claim")
)

// Auth 返回一个 Gin 中间件，用于验证 JWT token。
// jwtSecret: 用于验证签名的密钥，必须提供。
func Auth(jwtSecret string) gin.HandlerFunc {
	if jwtSecret == "" {
		panic("JWT secret cannot be empty for Auth middleware")
	}

	return func(c *gin.Context) {
		// 1. 从请求头提取 Token
		tokenStr, err := extractToken(c)
		if err != nil {
			if errors.Is(err, ErrMissingAuthHeader) {
				logrus.Warn("Auth middleware: Missing Authorization header")
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Authorization header is required"})
			} else {
				logrus.Warnf("Auth middleware: Malformed token format: %v", err)
				c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid token format"})
			}
			c.Abort()
			return
		}

		// 2. 验证 Token 并取出用户 ID
		userID, err := ParseUserID(tokenStr, jwtSecret)
		if err != nil {
			logValidationError(logrus.WithError(err), err)
			c.JSON(http.StatusUnauthorized, gin.H{"error": "Invalid or expired token"})
			c.Abort()
			return
		}

		// 3. 将 user_id 存储在 Gin 上下文中，供后续处理程序使用
		c.Set("user_id", userID)
		logrus.WithField("user_id", userID).Debug("Auth middleware: User authenticated via JWT")

		c.Next()
	}
}

// TokenFromRequest 先读取 ?token= 查询参数，再读取 Bearer 头。WebSocket 客户端无法自定义请求头时使用查询参数。
func TokenFromRequest(c *gin.Context) (string, error) {
	if token := c.Query("token"); token != "" {
		return token, nil
	}
	return extractToken(c)
}

// extractToken 从 Gin 上下文中提取 Bearer Token
func extractToken(c *gin.Context) (string, error) {
	authHeader := c.GetHeader("Authorization")
	if authHeader == "" {
		return "", ErrMissingAuthHeader
	}
	// Authorization header 格式应为 "Bearer <token>"
	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") || parts[1] == "" {
		return "", jwt.ErrTokenMalformed
	}
	return parts[1], nil
}

// ParseUserID 验证 Token 并返回其中的 user_id
func ParseUserID(tokenStr, secret string) (string, error) {
	claims, err := validateToken(tokenStr, secret)
	if err != nil {
		return "", err
	}
	userID, ok := claims["user_id"].(string)
	if !ok || strings.TrimSpace(userID) == "" {
		return "", ErrMissingUserClaim
	}
	return userID, nil
}

// validateToken 解析并验证 JWT token 字符串
func validateToken(tokenStr string, secret string) (jwt.MapClaims, error) {
	token, err := jwt.Parse(tokenStr, func(token *jwt.Token) (interface{}, error) {
		// 验证签名方法是否为 HMAC (HS256)
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(secret), nil
	})
	if err != nil {
		return nil, fmt.Errorf("token validation failed: %w", err)
	}

	if claims, ok := token.Claims.(jwt.MapClaims); ok && token.Valid {
		return claims, nil
	}
	return nil, errors.New("invalid token or claims type")
}

// logValidationError 记录 Token 无效的具体原因，客户端只看到通用错误
func logValidationError(logCtx *logrus.Entry, err error) {
	logCtx.Warn("Auth middleware: Invalid token")
	var validationError *jwt.ValidationError
	if errors.As(err, &validationError) {
		if validationError.Errors&jwt.ValidationErrorExpired != 0 {
			logCtx.Warn("Reason: Token is expired")
		}
		if validationError.Errors&jwt.ValidationErrorSignatureInvalid != 0 {
			logCtx.Warn("Reason: Token signature is invalid")
		}
	}
	if errors.Is(err, ErrMissingUserClaim) {
		logCtx.Warn("Reason: user_id claim missing")
	}
}

// UserID 读取 Auth 中间件写入的用户 ID
func UserID(c *gin.Context) (string, bool) {
	v, exists := c.Get("user_id")
	if !exists {
		return "", false
	}
	userID, ok := v.(string)
	return userID, ok && userID != ""
}
