package middleware

import (
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-redis/redis/v8"
	"github.com/sirupsen/logrus"
)

// RateLimit 返回一个 Gin 中间件，按客户端 IP 在固定窗口内限流。
// 已认证的请求按 user_id 计数，同一 NAT 后的多个用户互不影响。
// keyPrefix 与看板缓存共用 REDIS_KEY_PREFIX。
func RateLimit(redisClient *redis.Client, keyPrefix string, maxRequests int, window time.Duration) gin.HandlerFunc {
	if redisClient == nil {
		panic("Redis client cannot be nil for RateLimit middleware")
	}
	if maxRequests <= 0 {
		panic("maxRequests must be positive for RateLimit middleware")
	}
	if window <= 0 {
		panic("window duration must be positive for RateLimit middleware")
	}

	return func(c *gin.Context) {
		subject := "ip:" + c.ClientIP()
		if userID, ok := UserID(c); ok {
			subject = "user:" + userID
		}
		key := keyPrefix + "ratelimit:" + subject
		ctx := c.Request.Context()

		// INCR 与 EXPIRE 放在同一个 Pipeline 中
		pipe := redisClient.Pipeline()
		incrCmd := pipe.Incr(ctx, key)
		ttlCmd := pipe.PTTL(ctx, key)
		if _, err := pipe.Exec(ctx); err != nil {
			logrus.WithError(err).Error("RateLimit: Redis Pipeline failed")
			c.JSON(http.StatusInternalServerError, gin.H{"error": "Rate limiting error"})
			c.Abort()
			return
		}

		count := incrCmd.Val()
		// 窗口内的第一次请求负责设置过期时间
		if count == 1 || ttlCmd.Val() < 0 {
			if err := redisClient.PExpire(ctx, key, window).Err(); err != nil {
				logrus.WithError(err).WithField("key", key).Warn("RateLimit: Failed to set window expiry")
			}
		}

		remaining := int64(maxRequests) - count
		if remaining < 0 {
			remaining = 0
		}
		c.Header("X-RateLimit-Limit", strconv.Itoa(maxRequests))
		c.Header("X-RateLimit-Remaining", strconv.FormatInt(remaining, 10))

		if count > int64(maxRequests) {
			logrus.WithFields(logrus.Fields{"subject": subject, "count": count}).Warn("RateLimit: Request rejected")
			c.JSON(http.StatusTooManyRequests, gin.H{"error": "Too many requests"})
			c.Abort()
			return
		}
		c.Next()
	}
}
