package service

import "collaborative-kanban/internal/domain"

// 看板房间内广播的事件名
const (
	EventTaskCreated    = "task:created"
	EventTaskUpdated    = "task:updated"
	EventTaskDeleted    = "task:deleted"
	EventTaskMoved      = "task:moved"
	EventTaskAssigned   = "task:assigned"
	EventTaskUnassigned = "task:unassigned"
	EventListCreated    = "list:created"
	EventListUpdated    = "list:updated"
	EventListDeleted    = "list:deleted"
	EventBoardUpdated   = "board:updated"
	EventBoardDeleted   = "board:deleted"
	EventMemberAdded    = "member:added"
	EventMemberRemoved  = "member:removed"
	EventCommentAdded   = "comment:added"
)

type TaskCreatedPayload struct {
	Task *domain.Task `json:"task"`
	Cid  string       `json:"cid,omitempty"`
}

type TaskUpdatedPayload struct {
	Task *domain.Task `json:"task"`
}

type TaskDeletedPayload struct {
	TaskID string `json:"taskId"`
	ListID string `json:"listId"`
}

type TaskMovedPayload struct {
	TaskID      string       `json:"taskId"`
	OldListID   string       `json:"oldListId"`
	NewListID   string       `json:"newListId"`
	NewPosition int          `json:"newPosition"`
	Task        *domain.Task `json:"task"`
}

type TaskAssignedPayload struct {
	TaskID     string                 `json:"taskId"`
	UserID     string                 `json:"userId"`
	Assignment *domain.TaskAssignment `json:"assignment"`
}

type TaskUnassignedPayload struct {
	TaskID string `json:"taskId"`
	UserID string `json:"userId"`
}

type ListPayload struct {
	List *domain.List `json:"list"`
}

type ListDeletedPayload struct {
	ListID  string `json:"listId"`
	BoardID string `json:"boardId"`
}

type BoardUpdatedPayload struct {
	Board *domain.Board `json:"board"`
}

type BoardDeletedPayload struct {
	BoardID string `json:"boardId"`
}

type MemberAddedPayload struct {
	Member  *domain.BoardMember `json:"member"`
	BoardID string              `json:"boardId"`
}

type MemberRemovedPayload struct {
	UserID  string `json:"userId"`
	BoardID string `json:"boardId"`
}

type CommentAddedPayload struct {
	Comment *domain.Comment `json:"comment"`
	TaskID  string          `json:"taskId"`
}
