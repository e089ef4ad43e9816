package domain

import (
	"time"

	"gorm.io/gorm"
)

// Comment 是任务下的一条评论
type Comment struct {
	ID        string    `gorm:"type:char(36);primaryKey" json:"id"`
	TaskID    string    `gorm:"type:char(36);not null;index" json:"taskId"`
	UserID    string    `gorm:"type:char(36);not null;index" json:"userId"`
	User      *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	Content   string    `gorm:"type:text;not null" json:"content"`
	CreatedAt time.Time `gorm:"autoCreateTime;index" json:"createdAt"`
}

// BeforeCreate 在插入前生成 UUID 主键
func (c *Comment) BeforeCreate(tx *gorm.DB) error {
	if c.ID == "" {
		c.ID = newID()
	}
	return nil
}
