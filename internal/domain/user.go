// Package domain 定义看板应用的核心数据结构 (同时作为 GORM 模型)。
package domain

import (
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// User 表示应用程序中的用户。
type User struct {
	ID        string    `gorm:"type:char(36);primaryKey" json:"id"`
	Username  string    `gorm:"type:varchar(191);uniqueIndex:idx_username;not null" json:"username"`
	Email     string    `gorm:"type:varchar(191);uniqueIndex:idx_email;not null" json:"email"`
	Password  string    `gorm:"type:text;not null" json:"-"` // bcrypt 哈希，永不序列化
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// BeforeCreate 在插入前生成 UUID 主键
func (u *User) BeforeCreate(tx *gorm.DB) error {
	if u.ID == "" {
		u.ID = newID()
	}
	return nil
}

// UserSummary 是对外暴露的用户简要信息 (成员列表、负责人等)
type UserSummary struct {
	ID       string `json:"id"`
	Username string `json:"username"`
	Email    string `json:"email"`
}

// Summary 返回不含敏感字段的用户信息
func (u *User) Summary() UserSummary {
	return UserSummary{ID: u.ID, Username: u.Username, Email: u.Email}
}

func newID() string {
	return uuid.NewString()
}
