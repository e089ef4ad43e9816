package domain

import (
	"time"

	"gorm.io/gorm"
)

// 任务优先级
const (
	PriorityLow    = "low"
	PriorityMedium = "medium"
	PriorityHigh   = "high"
)

// 任务状态
const (
	StatusActive    = "active"
	StatusCompleted = "completed"
)

// Task 是列表中的一张卡片。Position 在同一列表内从 0 开始连续且唯一。
// CreatorID 创建后不可变。
type Task struct {
	ID          string           `gorm:"type:char(36);primaryKey" json:"id"`
	Title       string           `gorm:"type:varchar(200);not null" json:"title"`
	Description string           `gorm:"type:text" json:"description"`
	ListID      string           `gorm:"type:char(36);not null;uniqueIndex:idx_task_list_position" json:"listId"`
	Position    int              `gorm:"not null;uniqueIndex:idx_task_list_position" json:"position"`
	Priority    string           `gorm:"type:varchar(16);not null" json:"priority"`
	Status      string           `gorm:"type:varchar(16);not null;index" json:"status"`
	DueDate     *time.Time       `json:"dueDate"`
	CreatorID   string           `gorm:"type:char(36);not null;index" json:"createdBy"`
	Creator     *User            `gorm:"foreignKey:CreatorID" json:"creator,omitempty"`
	Assignees   []TaskAssignment `gorm:"foreignKey:TaskID" json:"assignees"`
	CreatedAt   time.Time        `gorm:"autoCreateTime" json:"createdAt"`
	UpdatedAt   time.Time        `gorm:"autoUpdateTime" json:"updatedAt"`
}

// BeforeCreate 在插入前生成 UUID 主键并补齐默认值
func (t *Task) BeforeCreate(tx *gorm.DB) error {
	if t.ID == "" {
		t.ID = newID()
	}
	if t.Priority == "" {
		t.Priority = PriorityMedium
	}
	if t.Status == "" {
		t.Status = StatusActive
	}
	return nil
}

// TaskAssignment 记录任务负责人，(task_id, user_id) 为复合主键。
type TaskAssignment struct {
	TaskID     string    `gorm:"type:char(36);primaryKey" json:"taskId"`
	UserID     string    `gorm:"type:char(36);primaryKey;index" json:"userId"`
	User       *User     `gorm:"foreignKey:UserID" json:"user,omitempty"`
	AssignedAt time.Time `gorm:"autoCreateTime" json:"assignedAt"`
}

// IsValidPriority 判断优先级取值是否合法
func IsValidPriority(p string) bool {
	return p == PriorityLow || p == PriorityMedium || p == PriorityHigh
}

// IsValidStatus 判断状态取值是否合法
func IsValidStatus(s string) bool {
	return s == StatusActive || s == StatusCompleted
}
