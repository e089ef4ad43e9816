package service

import (
	"context"
	"errors"

	"collaborative-kanban/internal/domain"
	"collaborative-kanban/internal/repository"

	"github.com/sirupsen/logrus"
)

// BoardRef 指向一个看板，或者一个需要解析出所属看板的列表/任务。只应设置其中一个字段。
type BoardRef struct {
	BoardID string
	ListID  string
	TaskID  string
}

func BoardByID(id string) BoardRef { return BoardRef{BoardID: id} }
func BoardOfList(id string) BoardRef { return BoardRef{ListID: id} }
func BoardOfTask(id string) BoardRef { return BoardRef{TaskID: id} }

// AccessGuard 负责看板级别的权限检查，只读不写。
type AccessGuard struct {
	boardRepo repository.BoardRepository
	listRepo  repository.ListRepository
	taskRepo  repository.TaskRepository
}

// NewAccessGuard 创建 AccessGuard 实例
func NewAccessGuard(boardRepo repository.BoardRepository, listRepo repository.ListRepository, taskRepo repository.TaskRepository) *AccessGuard {
	if boardRepo == nil || listRepo == nil || taskRepo == nil {
		panic("Repositories cannot be nil for AccessGuard")
	}
	return &AccessGuard{boardRepo: boardRepo, listRepo: listRepo, taskRepo: taskRepo}
}

// ResolveBoardID 把引用解析为看板 ID，列表或任务不存在时返回 NotFound。
func (g *AccessGuard) ResolveBoardID(ctx context.Context, ref BoardRef) (string, error) {
	switch {
	case ref.BoardID != "":
		return ref.BoardID, nil
	case ref.ListID != "":
		list, err := g.listRepo.FindByID(ctx, ref.ListID)
		if err != nil {
			return "", mapRepoError(err, "list")
		}
		return list.BoardID, nil
	case ref.TaskID != "":
		boardID, err := g.taskRepo.BoardIDOf(ctx, ref.TaskID)
		if err != nil {
			return "", mapRepoError(err, "task")
		}
		return boardID, nil
	default:
		return "", newError(ErrBadRequest, "board reference is empty")
	}
}

// RequireMember 校验 userID 是引用所属看板的成员，返回预加载成员的看板。
func (g *AccessGuard) RequireMember(ctx context.Context, userID string, ref BoardRef) (*domain.Board, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	boardID, err := g.ResolveBoardID(ctx, ref)
	if err != nil {
		return nil, err
	}
	board, err := g.boardRepo.FindByID(ctx, boardID)
	if err != nil {
		return nil, mapRepoError(err, "board")
	}
	if !hasMember(board, userID) {
		logrus.WithFields(logrus.Fields{"board_id": boardID, "user_id": userID}).Warn("AccessGuard: Non-member denied")
		return nil, ErrNotBoardMember
	}
	return board, nil
}

// RequireOwner 校验 userID 是看板所有者。
func (g *AccessGuard) RequireOwner(ctx context.Context, userID string, ref BoardRef) (*domain.Board, error) {
	board, err := g.RequireMember(ctx, userID, ref)
	if err != nil {
		return nil, err
	}
	if board.OwnerID != userID {
		return nil, newError(ErrForbidden, "only the board owner can perform this action")
	}
	return board, nil
}

// IsMember 报告 userID 是否为看板成员，看板不存在时返回 false。
func (g *AccessGuard) IsMember(ctx context.Context, boardID, userID string) (bool, error) {
	_, err := g.boardRepo.FindMember(ctx, boardID, userID)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, repository.ErrNotFound) {
		return false, nil
	}
	return false, err
}

func hasMember(board *domain.Board, userID string) bool {
	for _, m := range board.Members {
		if m.UserID == userID {
			return true
		}
	}
	return false
}
