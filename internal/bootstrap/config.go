package bootstrap

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sirupsen/logrus"
)

// Config 结构体用于存储从环境变量或文件加载的配置
type Config struct {
	DBDriver          string
	DBUser            string
	DBPassword        string
	DBHost            string
	DBPort            string
	DBName            string
	RedisAddr         string
	RedisPassword     string
	RedisDB           int
	KeyPrefix         string // Redis Key 前缀
	JWTSecret         string
	JWTExpiryHours    int
	ServerPort        string
	LogLevel          string
	AppEnv            string // development/production
	CORSAllowedOrigin string
	RateLimitMax      int
	RateLimitWindow   time.Duration
	BoardCacheTTL     time.Duration
	ActivityAsync     bool // 活动通过 asynq 异步写库
}

// LoadConfig 从环境变量加载配置，.env 文件 (如果存在) 会先被加载
func LoadConfig() (*Config, error) {
	_ = godotenv.Load() // 忽略错误，允许只使用环境变量

	cfg := &Config{
		DBDriver:          os.Getenv("DB_DRIVER"),
		DBUser:            os.Getenv("DB_USER"),
		DBPassword:        os.Getenv("DB_PASSWORD"),
		DBHost:            os.Getenv("DB_HOST"),
		DBPort:            os.Getenv("DB_PORT"),
		DBName:            os.Getenv("DB_NAME"),
		RedisAddr:         os.Getenv("REDIS_ADDR"),
		RedisPassword:     os.Getenv("REDIS_PASSWORD"),
		KeyPrefix:         os.Getenv("REDIS_KEY_PREFIX"),
		JWTSecret:         os.Getenv("JWT_SECRET"),
		ServerPort:        os.Getenv("SERVER_PORT"),
		LogLevel:          os.Getenv("LOG_LEVEL"),
		AppEnv:            os.Getenv("APP_ENV"),
		CORSAllowedOrigin: os.Getenv("CORS_ALLOWED_ORIGIN"),
	}

	var err error
	if cfg.RedisDB, err = intEnv("REDIS_DB", 0); err != nil {
		return nil, err
	}
	if cfg.JWTExpiryHours, err = intEnv("JWT_EXPIRY_HOURS", 168); err != nil {
		return nil, err
	}
	if cfg.RateLimitMax, err = intEnv("RATE_LIMIT_MAX", 100); err != nil {
		return nil, err
	}
	if cfg.RateLimitWindow, err = durationEnv("RATE_LIMIT_WINDOW", time.Second); err != nil {
		return nil, err
	}
	if cfg.BoardCacheTTL, err = durationEnv("BOARD_CACHE_TTL", 60*time.Second); err != nil {
		return nil, err
	}
	if v := os.Getenv("ACTIVITY_ASYNC"); v != "" {
		if cfg.ActivityAsync, err = strconv.ParseBool(v); err != nil {
			return nil, fmt.Errorf("invalid ACTIVITY_ASYNC %q: %w", v, err)
		}
	}

	// --- 默认值和必要检查 ---
	if cfg.DBDriver == "" {
		cfg.DBDriver = "mysql"
	}
	if cfg.ServerPort == "" {
		cfg.ServerPort = "8080"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.AppEnv == "" {
		cfg.AppEnv = "development"
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "kb:"
	}
	if cfg.CORSAllowedOrigin == "" {
		cfg.CORSAllowedOrigin = "http://localhost:3000"
	}
	if cfg.RedisAddr == "" {
		return nil, fmt.Errorf("environment variable REDIS_ADDR must be set")
	}
	if cfg.JWTSecret == "" {
		return nil, fmt.Errorf("environment variable JWT_SECRET must be set")
	}
	if cfg.RateLimitMax <= 0 || cfg.RateLimitWindow <= 0 {
		return nil, fmt.Errorf("RATE_LIMIT_MAX and RATE_LIMIT_WINDOW must be positive")
	}

	// 验证日志级别
	if _, err := logrus.ParseLevel(cfg.LogLevel); err != nil {
		logrus.Warnf("Invalid LOG_LEVEL '%s', using default 'info'", cfg.LogLevel)
		cfg.LogLevel = "info"
	}

	return cfg, nil
}

func intEnv(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return n, nil
}

func durationEnv(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	return d, nil
}
