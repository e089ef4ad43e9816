package service

import (
	"context"
	"strings"

	"collaborative-kanban/internal/domain"
	"collaborative-kanban/internal/repository"

	"github.com/sirupsen/logrus"
)

// UpdateListInput 是更新列表的参数
type UpdateListInput struct {
	Name     *string `json:"name,omitempty"`
	Position *int    `json:"position,omitempty"`
}

// ListService 负责列表的增删改和排序。
type ListService struct {
	listRepo repository.ListRepository
	guard    *AccessGuard
	notifier
}

// NewListService 创建 ListService 实例
func NewListService(listRepo repository.ListRepository, guard *AccessGuard, recorder ActivityRecorder, cache repository.BoardCache, broadcaster Broadcaster) *ListService {
	if listRepo == nil {
		panic("ListRepository cannot be nil for ListService")
	}
	if guard == nil {
		panic("AccessGuard cannot be nil for ListService")
	}
	return &ListService{
		listRepo: listRepo,
		guard:    guard,
		notifier: notifier{recorder: recorder, cache: cache, broadcaster: broadcaster},
	}
}

// GetLists 按位置返回看板内的列表及任务。
func (s *ListService) GetLists(ctx context.Context, userID, boardID string) ([]domain.List, error) {
	if _, err := s.guard.RequireMember(ctx, userID, BoardByID(boardID)); err != nil {
		return nil, err
	}
	lists, err := s.listRepo.ListByBoard(ctx, boardID)
	if err != nil {
		return nil, mapRepoError(err, "list")
	}
	return lists, nil
}

// CreateList 在 position 处插入列表，position 为 nil 时追加到末尾。
func (s *ListService) CreateList(ctx context.Context, userID, boardID, name string, position *int) (*domain.List, error) {
	if _, err := s.guard.RequireMember(ctx, userID, BoardByID(boardID)); err != nil {
		return nil, err
	}
	name = strings.TrimSpace(name)
	if err := validateListName(name); err != nil {
		return nil, err
	}

	list := &domain.List{Name: name, BoardID: boardID}
	if err := s.listRepo.Create(ctx, list, position); err != nil {
		return nil, mapRepoError(err, "list")
	}
	logrus.WithFields(logrus.Fields{"board_id": boardID, "list_id": list.ID, "position": list.Position}).Info("Service.CreateList: List created")

	s.afterCommit(ctx,
		newActivity(boardID, userID, domain.ActionCreated, domain.EntityList, list.ID, map[string]string{"name": list.Name}),
		boardID, EventListCreated, ListPayload{List: list})
	return list, nil
}

// UpdateList 修改名称和/或位置，位置变化时同看板其他列表随之平移。
func (s *ListService) UpdateList(ctx context.Context, userID, listID string, in UpdateListInput) (*domain.List, error) {
	board, err := s.guard.RequireMember(ctx, userID, BoardOfList(listID))
	if err != nil {
		return nil, err
	}
	if in.Name == nil && in.Position == nil {
		return nil, newError(ErrBadRequest, "no fields to update")
	}
	if in.Name != nil {
		trimmed := strings.TrimSpace(*in.Name)
		if err := validateListName(trimmed); err != nil {
			return nil, err
		}
		in.Name = &trimmed
	}

	list, err := s.listRepo.Update(ctx, listID, in.Name, in.Position)
	if err != nil {
		return nil, mapRepoError(err, "list")
	}

	s.afterCommit(ctx,
		newActivity(board.ID, userID, domain.ActionUpdated, domain.EntityList, list.ID, in),
		board.ID, EventListUpdated, ListPayload{List: list})
	return list, nil
}

// DeleteList 删除列表及其任务，剩余列表位置压缩。
func (s *ListService) DeleteList(ctx context.Context, userID, listID string) error {
	board, err := s.guard.RequireMember(ctx, userID, BoardOfList(listID))
	if err != nil {
		return err
	}
	list, err := s.listRepo.Delete(ctx, listID)
	if err != nil {
		return mapRepoError(err, "list")
	}

	s.afterCommit(ctx,
		newActivity(board.ID, userID, domain.ActionDeleted, domain.EntityList, list.ID, map[string]string{"listId": list.ID, "name": list.Name}),
		board.ID, EventListDeleted, ListDeletedPayload{ListID: list.ID, BoardID: board.ID})
	return nil
}

func validateListName(name string) error {
	if name == "" || len(name) > 100 {
		return newError(ErrBadRequest, "list name must be between 1 and 100 characters")
	}
	return nil
}
