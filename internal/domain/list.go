package domain

import (
	"time"

	"gorm.io/gorm"
)

// List 是看板中的一列。Position 在同一看板内从 0 开始连续且唯一。
type List struct {
	ID        string    `gorm:"type:char(36);primaryKey" json:"id"`
	Name      string    `gorm:"type:varchar(100);not null" json:"name"`
	BoardID   string    `gorm:"type:char(36);not null;uniqueIndex:idx_list_board_position" json:"boardId"`
	Position  int       `gorm:"not null;uniqueIndex:idx_list_board_position" json:"position"`
	Tasks     []Task    `gorm:"foreignKey:ListID" json:"tasks,omitempty"`
	CreatedAt time.Time `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt time.Time `gorm:"autoUpdateTime" json:"updatedAt"`
}

// BeforeCreate 在插入前生成 UUID 主键
func (l *List) BeforeCreate(tx *gorm.DB) error {
	if l.ID == "" {
		l.ID = newID()
	}
	return nil
}
