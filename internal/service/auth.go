package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"

	"collaborative-kanban/internal/domain"
	"collaborative-kanban/internal/repository"

	"github.com/golang-jwt/jwt/v4"
	"github.com/sirupsen/logrus"
	"golang.org/x/crypto/bcrypt"
)

const defaultJWTExpiryHours = 168

var usernamePattern = regexp.MustCompile(`^[a-zA-Z0-9_ ]+$`)

// AuthResult 是注册/登录成功后返回给客户端的内容
type AuthResult struct {
	User  *domain.User `json:"user"`
	Token string       `json:"token"`
}

// AuthService 负责用户认证相关的业务逻辑。
type AuthService struct {
	userRepo  repository.UserRepository
	jwtSecret []byte        // 存储密钥的字节形式
	jwtExpiry time.Duration // JWT 过期时间
}

// NewAuthService 创建 AuthService 实例。
// jwtExpiryHours <= 0 时使用默认的 7 天。
func NewAuthService(userRepo repository.UserRepository, jwtSecretKey string, jwtExpiryHours int) (*AuthService, error) {
	if userRepo == nil {
		panic("UserRepository cannot be nil for AuthService")
	}
	if jwtSecretKey == "" {
		return nil, fmt.Errorf("JWT secret key cannot be empty")
	}
	if jwtExpiryHours <= 0 {
		jwtExpiryHours = defaultJWTExpiryHours
	}
	return &AuthService{
		userRepo:  userRepo,
		jwtSecret: []byte(jwtSecretKey),
		jwtExpiry: time.Duration(jwtExpiryHours) * time.Hour,
	}, nil
}

// Register 处理用户注册，成功后直接签发 token。
func (s *AuthService) Register(ctx context.Context, username, password, email string) (*AuthResult, error) {
	username = strings.TrimSpace(username)
	email = strings.ToLower(strings.TrimSpace(email))
	logCtx := logrus.WithFields(logrus.Fields{"username": username, "email": email})

	// 1. 基本验证
	if err := validateUsername(username); err != nil {
		return nil, err
	}
	if err := validatePassword(password); err != nil {
		return nil, err
	}
	if email == "" {
		return nil, newError(ErrBadRequest, "email is required")
	}

	// 2. 哈希密码
	hashedPassword, err := hashPassword(password)
	if err != nil {
		logCtx.WithError(err).Error("Failed to hash password during registration")
		return nil, ErrInternalServer
	}

	// 3. 保存用户
	user := &domain.User{
		Username: username,
		Password: hashedPassword,
		Email:    email,
	}
	if err := s.userRepo.Save(ctx, user); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			logCtx.WithError(err).Warn("Registration failed: Username or email already exists (repo error)")
			return nil, ErrRegistrationFailed
		}
		logCtx.WithError(err).Error("Database error during user creation")
		return nil, ErrInternalServer
	}

	// 4. 签发 token
	token, err := s.generateJWT(user.ID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to generate JWT token during registration")
		return nil, ErrInternalServer
	}

	logCtx.WithField("user_id", user.ID).Info("User registered successfully")
	user.Password = "" // 清除密码哈希再返回
	return &AuthResult{User: user, Token: token}, nil
}

// Login 按邮箱和密码登录。
func (s *AuthService) Login(ctx context.Context, email, password string) (*AuthResult, error) {
	email = strings.ToLower(strings.TrimSpace(email))
	logCtx := logrus.WithField("email", email)

	// 1. 查找用户
	user, err := s.userRepo.FindByEmail(ctx, email)
	if err != nil {
		if errors.Is(err, repository.ErrUserNotFound) {
			logCtx.WithError(err).Warn("Login attempt failed: User not found")
		} else {
			logCtx.WithError(err).Warn("Login attempt failed: Error finding user")
		}
		return nil, ErrAuthenticationFailed // 对客户端统一返回认证失败
	}
	if user == nil {
		logCtx.Warn("Login attempt failed: User not found (repo returned nil user without error)")
		return nil, ErrAuthenticationFailed
	}

	// 2. 验证密码
	if !checkPassword(password, user.Password) {
		logCtx.Warn("Login attempt failed: Invalid password")
		return nil, ErrAuthenticationFailed
	}

	// 3. 生成 JWT Token
	token, err := s.generateJWT(user.ID)
	if err != nil {
		logCtx.WithError(err).Error("Failed to generate JWT token during login")
		return nil, ErrInternalServer
	}

	logCtx.WithField("user_id", user.ID).Info("User logged in successfully")
	user.Password = ""
	return &AuthResult{User: user, Token: token}, nil
}

// GetUser 返回当前用户资料。
func (s *AuthService) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	user, err := s.userRepo.FindByID(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err, "user")
	}
	user.Password = ""
	return user, nil
}

// ListUsers 返回除当前用户外的所有用户，用于邀请成员。
func (s *AuthService) ListUsers(ctx context.Context, userID string) ([]domain.User, error) {
	users, err := s.userRepo.ListExcept(ctx, userID)
	if err != nil {
		return nil, mapRepoError(err, "user")
	}
	for i := range users {
		users[i].Password = ""
	}
	return users, nil
}

// --- 私有辅助函数 ---

func validateUsername(username string) error {
	if len(username) < 2 || len(username) > 30 {
		return newError(ErrBadRequest, "username must be between 2 and 30 characters")
	}
	if !usernamePattern.MatchString(username) {
		return newError(ErrBadRequest, "username can only contain letters, numbers, underscores, and spaces")
	}
	return nil
}

// validatePassword 要求至少 8 位并包含大写、小写字母和数字
func validatePassword(password string) error {
	if len(password) < 8 {
		return newError(ErrBadRequest, "password must be at least 8 characters")
	}
	var upper, lower, digit bool
	for _, r := range password {
		switch {
		case r >= 'A' && r <= 'Z':
			upper = true
		case r >= 'a' && r <= 'z':
			lower = true
		case r >= '0' && r <= '9':
			digit = true
		}
	}
	if !upper || !lower || !digit {
		return newError(ErrBadRequest, "password must contain an uppercase letter, a lowercase letter and a number")
	}
	return nil
}

// hashPassword 使用 bcrypt 对密码进行哈希处理
func hashPassword(password string) (string, error) {
	bytes, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", fmt.Errorf("failed to generate hash from password: %w", err)
	}
	return string(bytes), nil
}

// checkPassword 验证提供的密码是否与存储的哈希匹配
func checkPassword(password, hash string) bool {
	err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password))
	return err == nil
}

// generateJWT 为指定用户 ID 生成 JWT Token
func (s *AuthService) generateJWT(userID string) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(s.jwtExpiry).Unix(),
		"iat":     time.Now().Unix(),
	})
	tokenString, err := token.SignedString(s.jwtSecret)
	if err != nil {
		return "", fmt.Errorf("failed to sign token: %w", err)
	}
	return tokenString, nil
}
