package service_test // 测试包

import (
	"context"
	"errors"
	"testing"
	"time"

	"collaborative-kanban/internal/domain"
	"collaborative-kanban/internal/repository"
	"collaborative-kanban/internal/repository/mocks"
	"collaborative-kanban/internal/service"

	"github.com/golang-jwt/jwt/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"
)

// --- 测试 Register 方法 ---

func TestAuthService_Register_Success(t *testing.T) {
	// Arrange: 准备 Mock 对象, Service 实例, 和测试数据
	mockUserRepo := new(mocks.UserRepository)
	jwtSecret := "very-secret-key"
	authService, err := service.NewAuthService(mockUserRepo, jwtSecret, 1)
	require.NoError(t, err, "创建 AuthService 不应失败")

	ctx := context.Background()
	username := "newbie"
	password := "StrongPass123"
	email := "Newbie@Example.com"

	// Save 调用时检查参数并模拟数据库填充字段
	mockUserRepo.On("Save", ctx, mock.MatchedBy(func(user *domain.User) bool {
		assert.Equal(t, username, user.Username)
		assert.Equal(t, "newbie@example.com", user.Email, "邮箱应被规范化为小写")
		assert.NoError(t, bcrypt.CompareHashAndPassword([]byte(user.Password), []byte(password)), "密码应被正确哈希")
		return true
	})).
		Run(func(args mock.Arguments) {
			userArg := args.Get(1).(*domain.User)
			userArg.ID = "5d6f9c4e-0000-4000-8000-000000000005"
			userArg.CreatedAt = time.Now().Add(-time.Second)
			userArg.UpdatedAt = time.Now().Add(-time.Second)
		}).
		Return(nil).
		Once()

	// Act
	result, err := authService.Register(ctx, username, password, email)

	// Assert
	require.NoError(t, err, "成功注册时不应有错误")
	require.NotNil(t, result)
	assert.Equal(t, "5d6f9c4e-0000-4000-8000-000000000005", result.User.ID)
	assert.Empty(t, result.User.Password, "返回的用户密码应为空")
	assert.NotEmpty(t, result.Token, "注册成功后应直接签发 token")

	// token 中的 user_id 应为字符串 ID
	parsed, err := jwt.Parse(result.Token, func(token *jwt.Token) (interface{}, error) {
		return []byte(jwtSecret), nil
	})
	require.NoError(t, err)
	claims := parsed.Claims.(jwt.MapClaims)
	assert.Equal(t, result.User.ID, claims["user_id"])

	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_Register_WeakPassword(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "secret", 1)

	for _, password := range []string{"short1A", "alllowercase1", "ALLUPPERCASE1", "NoDigitsHere"} {
		_, err := authService.Register(context.Background(), "someone", password, "someone@example.com")
		require.Error(t, err, password)
		assert.True(t, errors.Is(err, service.ErrBadRequest), "弱密码应返回 BadRequest: %s", password)
	}

	// 预期 Save 不会被调用
	mockUserRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestAuthService_Register_InvalidUsername(t *testing.T) {
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "secret", 1)

	_, err := authService.Register(context.Background(), "bad<name>", "StrongPass123", "x@example.com")
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrBadRequest))
	mockUserRepo.AssertNotCalled(t, "Save", mock.Anything, mock.Anything)
}

func TestAuthService_Register_SaveFails_DuplicateEntry(t *testing.T) {
	// Arrange
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "secret", 1)
	ctx := context.Background()

	// Save 调用时模拟数据库返回唯一约束错误
	mockUserRepo.On("Save", ctx, mock.AnythingOfType("*domain.User")).Return(repository.ErrDuplicateEntry).Once()

	// Act
	_, err := authService.Register(ctx, "anotherNewUser", "StrongPass123", "email2@test.com")

	// Assert
	require.Error(t, err)
	assert.True(t, errors.Is(err, service.ErrRegistrationFailed), "保存冲突时应返回 ErrRegistrationFailed")
	assert.True(t, errors.Is(err, service.ErrConflict), "ErrRegistrationFailed 属于 Conflict 类别")

	mockUserRepo.AssertExpectations(t)
}

// --- 测试 Login 方法 ---

func TestAuthService_Login_Success(t *testing.T) {
	// Arrange
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "test-secret", 24)
	ctx := context.Background()
	email := "testuser@example.com"
	password := "password123"
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte(password), bcrypt.MinCost)
	userInDb := &domain.User{ID: "u-1", Username: "testuser", Email: email, Password: string(hashedPassword)}

	mockUserRepo.On("FindByEmail", ctx, email).Return(userInDb, nil).Once()

	// Act
	result, err := authService.Login(ctx, email, password)

	// Assert
	require.NoError(t, err)
	assert.NotEmpty(t, result.Token)
	assert.Equal(t, "u-1", result.User.ID)
	assert.Empty(t, result.User.Password)

	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_Login_UserNotFound(t *testing.T) {
	// Arrange
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "test-secret", 24)
	ctx := context.Background()
	email := "nonexistent@example.com"

	mockUserRepo.On("FindByEmail", ctx, email).Return(nil, repository.ErrUserNotFound).Once()

	// Act
	result, err := authService.Login(ctx, email, "password")

	// Assert
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, service.ErrAuthenticationFailed))
	assert.True(t, errors.Is(err, service.ErrUnauthorized))

	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_Login_IncorrectPassword(t *testing.T) {
	// Arrange
	mockUserRepo := new(mocks.UserRepository)
	authService, _ := service.NewAuthService(mockUserRepo, "test-secret", 24)
	ctx := context.Background()
	email := "testuser@example.com"
	hashedPassword, _ := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.MinCost)
	userInDb := &domain.User{ID: "u-1", Username: "testuser", Password: string(hashedPassword)}

	mockUserRepo.On("FindByEmail", ctx, email).Return(userInDb, nil).Once()

	// Act
	result, err := authService.Login(ctx, email, "wrongpassword")

	// Assert
	require.Error(t, err)
	assert.Nil(t, result)
	assert.True(t, errors.Is(err, service.ErrAuthenticationFailed))

	mockUserRepo.AssertExpectations(t)
}

func TestAuthService_GetUser(t *testing.T) {
	mockUserRepo := mocks.NewUserRepository(t)
	authService, _ := service.NewAuthService(mockUserRepo, "test-secret", 0)
	ctx := context.Background()

	mockUserRepo.On("FindByID", ctx, "missing").Return(nil, repository.ErrUserNotFound).Once()
	mockUserRepo.On("FindByID", ctx, "u-1").Return(&domain.User{ID: "u-1", Password: "hash"}, nil).Once()

	_, err := authService.GetUser(ctx, "missing")
	assert.True(t, errors.Is(err, service.ErrNotFound))

	user, err := authService.GetUser(ctx, "u-1")
	require.NoError(t, err)
	assert.Empty(t, user.Password)

	_, err = authService.GetUser(ctx, "")
	assert.True(t, errors.Is(err, service.ErrUnauthorized))
}
