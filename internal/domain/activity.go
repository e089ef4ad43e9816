package domain

import (
	"time"

	"gorm.io/datatypes"
	"gorm.io/gorm"
)

// 活动的操作类型
const (
	ActionCreated      = "created"
	ActionUpdated      = "updated"
	ActionDeleted      = "deleted"
	ActionMoved        = "moved"
	ActionAssigned     = "assigned"
	ActionUnassigned   = "unassigned"
	ActionAdded        = "added"
	ActionRemoved      = "removed"
	ActionCommentAdded = "comment_added"
)

// 活动关联的实体类型
const (
	EntityBoard  = "board"
	EntityList   = "list"
	EntityTask   = "task"
	EntityMember = "member"
)

// Activity 是看板的审计日志条目，只追加不修改。
// 仅在看板被删除时随之级联删除。
type Activity struct {
	ID         string         `gorm:"type:char(36);primaryKey" json:"id"`
	BoardID    string         `gorm:"type:char(36);not null;index:idx_activity_board_created" json:"boardId"`
	UserID     string         `gorm:"type:char(36);not null;index" json:"userId"`
	User       *User          `gorm:"foreignKey:UserID" json:"user,omitempty"`
	ActionType string         `gorm:"type:varchar(32);not null" json:"actionType"`
	EntityType string         `gorm:"type:varchar(32);not null" json:"entityType"`
	EntityID   string         `gorm:"type:char(36);not null" json:"entityId"`
	Metadata   datatypes.JSON `json:"metadata"`
	CreatedAt  time.Time      `gorm:"autoCreateTime;index:idx_activity_board_created" json:"createdAt"`
}

// BeforeCreate 在插入前生成 UUID 主键
func (a *Activity) BeforeCreate(tx *gorm.DB) error {
	if a.ID == "" {
		a.ID = newID()
	}
	return nil
}
