package setup

import (
	"fmt"

	"github.com/sirupsen/logrus"
	"gorm.io/gorm"

	"collaborative-kanban/internal/domain"
)

// MigrateDB 自动迁移全部模型。位置列上的唯一索引由模型标签声明。
func MigrateDB(db *gorm.DB) error {
	if db == nil {
		return fmt.Errorf("cannot migrate database with nil DB connection")
	}

	err := db.AutoMigrate(
		&domain.User{},
		&domain.Board{},
		&domain.BoardMember{},
		&domain.List{},
		&domain.Task{},
		&domain.TaskAssignment{},
		&domain.Comment{},
		&domain.Activity{},
	)
	if err != nil {
		logrus.Errorf("Failed to auto-migrate tables: %v", err)
		return fmt.Errorf("failed to auto-migrate tables: %w", err)
	}

	logrus.Info("Database migration completed successfully")
	return nil
}
