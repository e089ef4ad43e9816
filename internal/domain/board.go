package domain

import (
	"time"

	"gorm.io/gorm"
)

// DefaultBoardColor 创建看板时未指定颜色使用的默认值
const DefaultBoardColor = "#6366f1"

// 看板成员角色
const (
	RoleOwner  = "owner"
	RoleMember = "member"
)

// Board 表示一个协作看板。OwnerID 创建后不可变。
type Board struct {
	ID          string        `gorm:"type:char(36);primaryKey" json:"id"`
	Name        string        `gorm:"type:varchar(100);not null" json:"name"`
	Description string        `gorm:"type:varchar(500)" json:"description"`
	Color       string        `gorm:"type:varchar(7);not null" json:"color"`
	OwnerID     string        `gorm:"type:char(36);index;not null" json:"ownerId"`
	Owner       *User         `gorm:"foreignKey:OwnerID" json:"owner,omitempty"`
	Members     []BoardMember `gorm:"foreignKey:BoardID" json:"members,omitempty"`
	Lists       []List        `gorm:"foreignKey:BoardID" json:"lists,omitempty"`
	CreatedAt   time.Time     `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time     `gorm:"autoUpdateTime" json:"updatedAt"`
}

// BeforeCreate 在插入前生成 UUID 主键
func (b *Board) BeforeCreate(tx *gorm.DB) error {
	if b.ID == "" {
		b.ID = newID()
	}
	return nil
}

// BoardMember 记录用户在看板中的成员身份，(board_id, user_id) 唯一。
type BoardMember struct {
	ID       string    `gorm:"type:char(36);primaryKey" json:"id"`
	BoardID  string    `gorm:"type:char(36);not null;uniqueIndex:idx_board_member" json:"boardId"`
	UserID   string    `gorm:"type:char(36);not null;uniqueIndex:idx_board_member;index" json:"userId"`
	Role     string    `gorm:"type:varchar(16);not null" json:"role"`
	User     *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	JoinedAt time.Time `gorm:"autoCreateTime" json:"joinedAt"`
}

// BeforeCreate 在插入前生成 UUID 主键
func (m *BoardMember) BeforeCreate(tx *gorm.DB) error {
	if m.ID == "" {
		m.ID = newID()
	}
	return nil
}

// BoardSummary 是看板列表接口返回的条目
type BoardSummary struct {
	Board
	MemberCount int64 `json:"memberCount"`
	ListCount   int64 `json:"listCount"`
	TaskCount   int64 `json:"taskCount"`
}
