package service

import (
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"collaborative-kanban/internal/position"
	"collaborative-kanban/internal/repository"
)

// 错误类别。Service 返回的错误都可以用 errors.Is 归入其中之一，HTTP 层据此映射状态码。
var (
	ErrUnauthorized   = errors.New("unauthorized")
	ErrForbidden      = errors.New("forbidden")
	ErrNotFound       = errors.New("not found")
	ErrBadRequest     = errors.New("bad request")
	ErrConflict       = errors.New("conflict")
	ErrInternalServer = errors.New("internal server error")
)

// Error 是带有面向客户端消息的业务错误，Unwrap 返回其类别。
type Error struct {
	Kind    error
	Message string
}

func (e *Error) Error() string { return e.Message }
func (e *Error) Unwrap() error { return e.Kind }

func newError(kind error, format string, args ...interface{}) error {
	return &Error{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// 常用的具体业务错误
var (
	ErrAuthenticationFailed = &Error{Kind: ErrUnauthorized, Message: "invalid email or password"}
	ErrRegistrationFailed   = &Error{Kind: ErrConflict, Message: "registration failed: username or email already exists"}
	ErrNotAuthenticated     = &Error{Kind: ErrUnauthorized, Message: "authentication required"}
	ErrNotBoardMember       = &Error{Kind: ErrForbidden, Message: "you are not a member of this board"}
)

// mapRepoError 把仓库层错误映射为业务错误。entity 用于拼接未找到时的消息。
func mapRepoError(err error, entity string) error {
	if err == nil {
		return nil
	}
	var svcErr *Error
	switch {
	case errors.As(err, &svcErr):
		return err
	case errors.Is(err, repository.ErrNotFound):
		return newError(ErrNotFound, "%s not found", entity)
	case errors.Is(err, repository.ErrDuplicateEntry):
		return newError(ErrConflict, "%s already exists", entity)
	case errors.Is(err, repository.ErrConcurrentModification):
		return newError(ErrConflict, "%s was modified concurrently, please retry", entity)
	case errors.Is(err, position.ErrInvalidPosition):
		return newError(ErrBadRequest, "position must be a non-negative integer")
	default:
		logrus.WithError(err).WithField("entity", entity).Error("Repository error")
		return fmt.Errorf("%w: %v", ErrInternalServer, err)
	}
}
