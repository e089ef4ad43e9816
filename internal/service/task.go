package service

import (
	"context"
	"errors"
	"strings"
	"time"

	"collaborative-kanban/internal/domain"
	"collaborative-kanban/internal/repository"

	"github.com/sirupsen/logrus"
)

// CreateTaskInput 是创建任务的参数。Cid 是客户端生成的关联标识，原样回传。
type CreateTaskInput struct {
	Title       string
	Description string
	Priority    string
	DueDate     string
	Position    *int
	Cid         string
}

// UpdateTaskInput 是更新任务的参数，nil 字段表示不修改。DueDate 为空字符串表示清除截止日期。
type UpdateTaskInput struct {
	Title       *string `json:"title,omitempty"`
	Description *string `json:"description,omitempty"`
	Priority    *string `json:"priority,omitempty"`
	Status      *string `json:"status,omitempty"`
	DueDate     *string `json:"dueDate,omitempty"`
	Position    *int    `json:"position,omitempty"`
}

// statusOnly 报告更新是否只包含状态字段
func (in UpdateTaskInput) statusOnly() bool {
	return in.Status != nil && in.Title == nil && in.Description == nil &&
		in.Priority == nil && in.DueDate == nil && in.Position == nil
}

func (in UpdateTaskInput) empty() bool {
	return in.Status == nil && in.Title == nil && in.Description == nil &&
		in.Priority == nil && in.DueDate == nil && in.Position == nil
}

// TaskPage 是分页的任务列表
type TaskPage struct {
	Tasks      []domain.Task `json:"tasks"`
	Pagination Pagination    `json:"pagination"`
}

// TaskService 负责任务的增删改、移动和负责人管理。
type TaskService struct {
	taskRepo repository.TaskRepository
	guard    *AccessGuard
	notifier
}

// NewTaskService 创建 TaskService 实例
func NewTaskService(taskRepo repository.TaskRepository, guard *AccessGuard, recorder ActivityRecorder, cache repository.BoardCache, broadcaster Broadcaster) *TaskService {
	if taskRepo == nil {
		panic("TaskRepository cannot be nil for TaskService")
	}
	if guard == nil {
		panic("AccessGuard cannot be nil for TaskService")
	}
	return &TaskService{
		taskRepo: taskRepo,
		guard:    guard,
		notifier: notifier{recorder: recorder, cache: cache, broadcaster: broadcaster},
	}
}

// GetTask 返回单个任务。
func (s *TaskService) GetTask(ctx context.Context, userID, taskID string) (*domain.Task, error) {
	if _, err := s.guard.RequireMember(ctx, userID, BoardOfTask(taskID)); err != nil {
		return nil, err
	}
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, mapRepoError(err, "task")
	}
	return task, nil
}

// ListTasks 按位置分页返回列表中的任务。
func (s *TaskService) ListTasks(ctx context.Context, userID, listID string, page Page) (*TaskPage, error) {
	if _, err := s.guard.RequireMember(ctx, userID, BoardOfList(listID)); err != nil {
		return nil, err
	}
	tasks, total, err := s.taskRepo.ListByList(ctx, listID, page.Offset(), page.Limit)
	if err != nil {
		return nil, mapRepoError(err, "task")
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return &TaskPage{Tasks: tasks, Pagination: page.Paginate(total)}, nil
}

// SearchTasks 在看板内按标题或描述搜索任务。
func (s *TaskService) SearchTasks(ctx context.Context, userID, boardID, query string) ([]domain.Task, error) {
	if _, err := s.guard.RequireMember(ctx, userID, BoardByID(boardID)); err != nil {
		return nil, err
	}
	query = strings.TrimSpace(query)
	if query == "" || len(query) > 200 {
		return nil, newError(ErrBadRequest, "search query must be between 1 and 200 characters")
	}
	tasks, err := s.taskRepo.Search(ctx, boardID, query, maxSearchResults)
	if err != nil {
		return nil, mapRepoError(err, "task")
	}
	if tasks == nil {
		tasks = []domain.Task{}
	}
	return tasks, nil
}

// CreateTask 在列表的 position 处插入任务，广播中回传 cid。
func (s *TaskService) CreateTask(ctx context.Context, userID, listID string, in CreateTaskInput) (*domain.Task, error) {
	board, err := s.guard.RequireMember(ctx, userID, BoardOfList(listID))
	if err != nil {
		return nil, err
	}
	in.Title = strings.TrimSpace(in.Title)
	if err := validateTitle(in.Title); err != nil {
		return nil, err
	}
	if len(in.Description) > 2000 {
		return nil, newError(ErrBadRequest, "description must be at most 2000 characters")
	}
	if in.Priority != "" && !domain.IsValidPriority(in.Priority) {
		return nil, newError(ErrBadRequest, "priority must be one of low, medium, high")
	}
	due, err := parseDueDate(in.DueDate)
	if err != nil {
		return nil, err
	}

	task := &domain.Task{
		Title:       in.Title,
		Description: in.Description,
		ListID:      listID,
		Priority:    in.Priority,
		DueDate:     due,
		CreatorID:   userID,
	}
	if err := s.taskRepo.Create(ctx, task, in.Position); err != nil {
		return nil, mapRepoError(err, "task")
	}
	logrus.WithFields(logrus.Fields{"board_id": board.ID, "task_id": task.ID, "position": task.Position, "cid": in.Cid}).Info("Service.CreateTask: Task created")

	s.afterCommit(ctx,
		newActivity(board.ID, userID, domain.ActionCreated, domain.EntityTask, task.ID, map[string]string{"title": task.Title, "listId": listID}),
		board.ID, EventTaskCreated, TaskCreatedPayload{Task: task, Cid: in.Cid})
	return task, nil
}

// UpdateTask 更新任务。只改状态时任何成员都可以操作；修改其他字段需要创建者或所有者；
// 带 position 的更新等同于列表内移动，仅所有者可操作。
func (s *TaskService) UpdateTask(ctx context.Context, userID, taskID string, in UpdateTaskInput) (*domain.Task, error) {
	board, err := s.guard.RequireMember(ctx, userID, BoardOfTask(taskID))
	if err != nil {
		return nil, err
	}
	if in.empty() {
		return nil, newError(ErrBadRequest, "no fields to update")
	}
	existing, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, mapRepoError(err, "task")
	}

	isOwner := board.OwnerID == userID
	switch {
	case in.Position != nil && !isOwner:
		return nil, newError(ErrForbidden, "only the board owner can reorder tasks")
	case !in.statusOnly() && !isOwner && existing.CreatorID != userID:
		return nil, newError(ErrForbidden, "only the task creator or board owner can perform this update")
	}

	changes, err := taskChanges(in)
	if err != nil {
		return nil, err
	}
	task, err := s.taskRepo.Update(ctx, taskID, changes)
	if err != nil {
		return nil, mapRepoError(err, "task")
	}

	s.afterCommit(ctx,
		newActivity(board.ID, userID, domain.ActionUpdated, domain.EntityTask, taskID, in),
		board.ID, EventTaskUpdated, TaskUpdatedPayload{Task: task})
	return task, nil
}

// MoveTask 把任务移到同一看板的 listID 列表的 position 处，仅所有者可操作。
func (s *TaskService) MoveTask(ctx context.Context, userID, taskID, listID string, position int) (*domain.Task, error) {
	board, err := s.guard.RequireOwner(ctx, userID, BoardOfTask(taskID))
	if err != nil {
		return nil, err
	}
	targetBoardID, err := s.guard.ResolveBoardID(ctx, BoardOfList(listID))
	if err != nil {
		return nil, err
	}
	if targetBoardID != board.ID {
		return nil, newError(ErrBadRequest, "cannot move task to a list in a different board")
	}

	task, oldListID, err := s.taskRepo.Move(ctx, taskID, listID, &position)
	if err != nil {
		return nil, mapRepoError(err, "task")
	}
	logrus.WithFields(logrus.Fields{
		"board_id": board.ID, "task_id": taskID, "from_list": oldListID, "to_list": listID, "position": task.Position,
	}).Info("Service.MoveTask: Task moved")

	metadata := map[string]interface{}{"fromListId": oldListID, "toListId": listID, "position": task.Position}
	s.afterCommit(ctx,
		newActivity(board.ID, userID, domain.ActionMoved, domain.EntityTask, taskID, metadata),
		board.ID, EventTaskMoved, TaskMovedPayload{
			TaskID:      taskID,
			OldListID:   oldListID,
			NewListID:   listID,
			NewPosition: task.Position,
			Task:        task,
		})
	return task, nil
}

// DeleteTask 删除任务，需要创建者或所有者。
func (s *TaskService) DeleteTask(ctx context.Context, userID, taskID string) error {
	board, existing, err := s.creatorOrOwner(ctx, userID, taskID, "delete this task")
	if err != nil {
		return err
	}
	if _, err := s.taskRepo.Delete(ctx, taskID); err != nil {
		return mapRepoError(err, "task")
	}

	s.afterCommit(ctx,
		newActivity(board.ID, userID, domain.ActionDeleted, domain.EntityTask, taskID, map[string]string{"taskId": taskID, "listId": existing.ListID, "title": existing.Title}),
		board.ID, EventTaskDeleted, TaskDeletedPayload{TaskID: taskID, ListID: existing.ListID})
	return nil
}

// AssignTask 添加负责人。被指派者必须是看板成员，重复指派返回 Conflict。
func (s *TaskService) AssignTask(ctx context.Context, userID, taskID, assigneeID string) (*domain.TaskAssignment, error) {
	board, _, err := s.creatorOrOwner(ctx, userID, taskID, "manage assignees")
	if err != nil {
		return nil, err
	}
	if !hasMember(board, assigneeID) {
		return nil, newError(ErrBadRequest, "user is not a member of this board")
	}

	assignment, err := s.taskRepo.Assign(ctx, taskID, assigneeID)
	if err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return nil, newError(ErrConflict, "user is already assigned to this task")
		}
		return nil, mapRepoError(err, "task")
	}

	s.afterCommit(ctx,
		newActivity(board.ID, userID, domain.ActionAssigned, domain.EntityTask, taskID, map[string]string{"assignedUserId": assigneeID}),
		board.ID, EventTaskAssigned, TaskAssignedPayload{TaskID: taskID, UserID: assigneeID, Assignment: assignment})
	return assignment, nil
}

// UnassignTask 移除负责人，未指派时返回 NotFound。
func (s *TaskService) UnassignTask(ctx context.Context, userID, taskID, assigneeID string) error {
	board, _, err := s.creatorOrOwner(ctx, userID, taskID, "manage assignees")
	if err != nil {
		return err
	}
	if err := s.taskRepo.Unassign(ctx, taskID, assigneeID); err != nil {
		return mapRepoError(err, "assignment")
	}

	s.afterCommit(ctx,
		newActivity(board.ID, userID, domain.ActionUnassigned, domain.EntityTask, taskID, map[string]string{"unassignedUserId": assigneeID}),
		board.ID, EventTaskUnassigned, TaskUnassignedPayload{TaskID: taskID, UserID: assigneeID})
	return nil
}

// creatorOrOwner 校验 userID 是任务创建者或看板所有者，返回看板和任务。
func (s *TaskService) creatorOrOwner(ctx context.Context, userID, taskID, action string) (*domain.Board, *domain.Task, error) {
	board, err := s.guard.RequireMember(ctx, userID, BoardOfTask(taskID))
	if err != nil {
		return nil, nil, err
	}
	task, err := s.taskRepo.FindByID(ctx, taskID)
	if err != nil {
		return nil, nil, mapRepoError(err, "task")
	}
	if task.CreatorID != userID && board.OwnerID != userID {
		return nil, nil, newError(ErrForbidden, "only the task creator or board owner can %s", action)
	}
	return board, task, nil
}

func taskChanges(in UpdateTaskInput) (repository.TaskChanges, error) {
	changes := repository.TaskChanges{
		Description: in.Description,
		Position:    in.Position,
	}
	if in.Title != nil {
		title := strings.TrimSpace(*in.Title)
		if err := validateTitle(title); err != nil {
			return changes, err
		}
		changes.Title = &title
	}
	if in.Description != nil && len(*in.Description) > 2000 {
		return changes, newError(ErrBadRequest, "description must be at most 2000 characters")
	}
	if in.Priority != nil {
		if !domain.IsValidPriority(*in.Priority) {
			return changes, newError(ErrBadRequest, "priority must be one of low, medium, high")
		}
		changes.Priority = in.Priority
	}
	if in.Status != nil {
		if !domain.IsValidStatus(*in.Status) {
			return changes, newError(ErrBadRequest, "status must be one of active, completed")
		}
		changes.Status = in.Status
	}
	if in.DueDate != nil {
		due, err := parseDueDate(*in.DueDate)
		if err != nil {
			return changes, err
		}
		if due == nil {
			changes.ClearDue = true
		} else {
			changes.DueDate = due
		}
	}
	return changes, nil
}

func validateTitle(title string) error {
	if title == "" || len(title) > 200 {
		return newError(ErrBadRequest, "title must be between 1 and 200 characters")
	}
	return nil
}

// parseDueDate 接受 RFC3339 或 YYYY-MM-DD，空字符串返回 nil。
func parseDueDate(value string) (*time.Time, error) {
	value = strings.TrimSpace(value)
	if value == "" {
		return nil, nil
	}
	for _, layout := range []string{time.RFC3339, "2006-01-02"} {
		if t, err := time.Parse(layout, value); err == nil {
			t = t.UTC()
			return &t, nil
		}
	}
	return nil, newError(ErrBadRequest, "dueDate must be an RFC3339 timestamp or YYYY-MM-DD")
}
