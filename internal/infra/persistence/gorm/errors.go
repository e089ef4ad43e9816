package gormpersistence

import (
	"errors"
	"strings"

	"github.com/go-sql-driver/mysql"
	"gorm.io/gorm"

	"collaborative-kanban/internal/position"
	"collaborative-kanban/internal/repository"
)

// isDuplicateEntryError 检查唯一约束冲突。MySQL 按错误码判断，其他驱动按错误信息判断。
func isDuplicateEntryError(err error) bool {
	if err == nil {
		return false
	}
	var mysqlErr *mysql.MySQLError
	if errors.As(err, &mysqlErr) {
		return mysqlErr.Number == 1062
	}
	if errors.Is(err, gorm.ErrDuplicatedKey) {
		return true
	}
	msg := err.Error()
	return strings.Contains(msg, "UNIQUE constraint failed") || // SQLite
		strings.Contains(msg, "Duplicate entry") || // MySQL (被包装后)
		strings.Contains(msg, "duplicate key value violates unique constraint") // PostgreSQL
}

// notFoundOr 把 gorm.ErrRecordNotFound 映射为 notFound，其余错误原样返回
func notFoundOr(err error, notFound error) error {
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return notFound
	}
	return err
}

// passThrough 判断错误是否已经是仓库层错误，事务回滚后应原样返回给调用方
func passThrough(err error) bool {
	return errors.Is(err, repository.ErrNotFound) ||
		errors.Is(err, repository.ErrDuplicateEntry) ||
		errors.Is(err, repository.ErrConcurrentModification) ||
		errors.Is(err, position.ErrInvalidPosition)
}

// likePattern 转义 LIKE 通配符，配合 "ESCAPE '!'" 使用 (MySQL 与 SQLite 通用)
func likePattern(query string) string {
	r := strings.NewReplacer("!", "!!", "%", "!%", "_", "!_")
	return "%" + r.Replace(query) + "%"
}
