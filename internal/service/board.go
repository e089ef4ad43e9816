package service

import (
	"context"
	"errors"
	"regexp"
	"strings"
	"time"

	"collaborative-kanban/internal/domain"
	"collaborative-kanban/internal/repository"

	"github.com/sirupsen/logrus"
)

var colorPattern = regexp.MustCompile(`^#[0-9a-fA-F]{6}$`)

// CreateBoardInput 是创建看板的参数
type CreateBoardInput struct {
	Name        string
	Description string
	Color       string
	MemberIDs   []string
}

// UpdateBoardInput 是更新看板的参数，nil 字段表示不修改
type UpdateBoardInput struct {
	Name        *string `json:"name,omitempty"`
	Description *string `json:"description,omitempty"`
	Color       *string `json:"color,omitempty"`
}

// BoardPage 是分页的看板列表
type BoardPage struct {
	Boards     []domain.BoardSummary `json:"boards"`
	Pagination Pagination            `json:"pagination"`
}

// BoardService 负责看板及成员管理。
type BoardService struct {
	boardRepo repository.BoardRepository
	userRepo  repository.UserRepository
	guard     *AccessGuard
	cacheTTL  time.Duration
	notifier
}

// NewBoardService 创建 BoardService 实例。cache 和 broadcaster 可以为 nil。
func NewBoardService(
	boardRepo repository.BoardRepository,
	userRepo repository.UserRepository,
	guard *AccessGuard,
	recorder ActivityRecorder,
	cache repository.BoardCache,
	cacheTTL time.Duration,
	broadcaster Broadcaster,
) *BoardService {
	if boardRepo == nil || userRepo == nil {
		panic("Repositories cannot be nil for BoardService")
	}
	if guard == nil {
		panic("AccessGuard cannot be nil for BoardService")
	}
	return &BoardService{
		boardRepo: boardRepo,
		userRepo:  userRepo,
		guard:     guard,
		cacheTTL:  cacheTTL,
		notifier:  notifier{recorder: recorder, cache: cache, broadcaster: broadcaster},
	}
}

// CreateBoard 创建看板，创建者成为所有者。新看板还没有房间，所以只记录活动不广播。
func (s *BoardService) CreateBoard(ctx context.Context, userID string, in CreateBoardInput) (*domain.Board, error) {
	logCtx := logrus.WithField("user_id", userID)
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	if err := validateBoardFields(&in.Name, &in.Description, &in.Color); err != nil {
		return nil, err
	}
	if in.Color == "" {
		in.Color = domain.DefaultBoardColor
	}

	board := &domain.Board{
		Name:        in.Name,
		Description: in.Description,
		Color:       in.Color,
		OwnerID:     userID,
	}
	if err := s.boardRepo.Create(ctx, board, in.MemberIDs); err != nil {
		logCtx.WithError(err).Error("Service.CreateBoard: Failed to create board")
		return nil, mapRepoError(err, "board")
	}

	if s.recorder != nil {
		activity := newActivity(board.ID, userID, domain.ActionCreated, domain.EntityBoard, board.ID, map[string]string{"name": board.Name})
		if err := s.recorder.Record(ctx, activity); err != nil {
			logCtx.WithError(err).Error("Service.CreateBoard: Failed to record activity")
		}
	}
	logCtx.WithField("board_id", board.ID).Info("Service.CreateBoard: Board created")
	return board, nil
}

// ListBoards 分页返回用户参与的看板，search 非空时按名称或描述过滤。
func (s *BoardService) ListBoards(ctx context.Context, userID, search string, page Page) (*BoardPage, error) {
	if userID == "" {
		return nil, ErrNotAuthenticated
	}
	boards, total, err := s.boardRepo.ListForUser(ctx, repository.BoardQuery{
		UserID: userID,
		Search: strings.TrimSpace(search),
		Offset: page.Offset(),
		Limit:  page.Limit,
	})
	if err != nil {
		return nil, mapRepoError(err, "board")
	}
	if boards == nil {
		boards = []domain.BoardSummary{}
	}
	return &BoardPage{Boards: boards, Pagination: page.Paginate(total)}, nil
}

// GetBoard 返回看板详情 (列表、任务、成员)，优先读取缓存。
func (s *BoardService) GetBoard(ctx context.Context, userID, boardID string) (*domain.Board, error) {
	if _, err := s.guard.RequireMember(ctx, userID, BoardByID(boardID)); err != nil {
		return nil, err
	}
	logCtx := logrus.WithField("board_id", boardID)

	if s.cache != nil {
		cached, err := s.cache.Get(ctx, boardID)
		if err == nil {
			return cached, nil
		}
		if !errors.Is(err, repository.ErrCacheMiss) {
			logCtx.WithError(err).Warn("Service.GetBoard: Cache read failed, falling back to database")
		}
	}

	board, err := s.boardRepo.FindDetail(ctx, boardID)
	if err != nil {
		return nil, mapRepoError(err, "board")
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, board, s.cacheTTL); err != nil {
			logCtx.WithError(err).Warn("Service.GetBoard: Failed to populate cache")
		}
	}
	return board, nil
}

// UpdateBoard 修改看板名称、描述或颜色，仅所有者可操作。
func (s *BoardService) UpdateBoard(ctx context.Context, userID, boardID string, in UpdateBoardInput) (*domain.Board, error) {
	if _, err := s.guard.RequireOwner(ctx, userID, BoardByID(boardID)); err != nil {
		return nil, err
	}
	if err := validateBoardFields(in.Name, in.Description, in.Color); err != nil {
		return nil, err
	}

	fields := map[string]interface{}{}
	if in.Name != nil {
		fields["name"] = *in.Name
	}
	if in.Description != nil {
		fields["description"] = *in.Description
	}
	if in.Color != nil {
		fields["color"] = *in.Color
	}
	if len(fields) == 0 {
		return nil, newError(ErrBadRequest, "no fields to update")
	}

	board, err := s.boardRepo.Update(ctx, boardID, fields)
	if err != nil {
		return nil, mapRepoError(err, "board")
	}

	s.afterCommit(ctx,
		newActivity(boardID, userID, domain.ActionUpdated, domain.EntityBoard, boardID, in),
		boardID, EventBoardUpdated, BoardUpdatedPayload{Board: board})
	return board, nil
}

// DeleteBoard 删除看板及其全部内容，仅所有者可操作。活动记录随看板一起删除，所以不再记录。
func (s *BoardService) DeleteBoard(ctx context.Context, userID, boardID string) error {
	if _, err := s.guard.RequireOwner(ctx, userID, BoardByID(boardID)); err != nil {
		return err
	}
	if err := s.boardRepo.Delete(ctx, boardID); err != nil {
		return mapRepoError(err, "board")
	}
	logrus.WithFields(logrus.Fields{"board_id": boardID, "user_id": userID}).Info("Service.DeleteBoard: Board deleted")
	s.afterCommit(ctx, nil, boardID, EventBoardDeleted, BoardDeletedPayload{BoardID: boardID})
	return nil
}

// ListMembers 返回看板成员。
func (s *BoardService) ListMembers(ctx context.Context, userID, boardID string) ([]domain.BoardMember, error) {
	if _, err := s.guard.RequireMember(ctx, userID, BoardByID(boardID)); err != nil {
		return nil, err
	}
	members, err := s.boardRepo.ListMembers(ctx, boardID)
	if err != nil {
		return nil, mapRepoError(err, "member")
	}
	return members, nil
}

// AddMember 把已注册用户加入看板，仅所有者可操作。
func (s *BoardService) AddMember(ctx context.Context, userID, boardID, newUserID string) (*domain.BoardMember, error) {
	if _, err := s.guard.RequireOwner(ctx, userID, BoardByID(boardID)); err != nil {
		return nil, err
	}
	if _, err := s.userRepo.FindByID(ctx, newUserID); err != nil {
		return nil, mapRepoError(err, "user")
	}

	member := &domain.BoardMember{BoardID: boardID, UserID: newUserID, Role: domain.RoleMember}
	if err := s.boardRepo.AddMember(ctx, member); err != nil {
		if errors.Is(err, repository.ErrDuplicateEntry) {
			return nil, newError(ErrConflict, "user is already a member of this board")
		}
		return nil, mapRepoError(err, "member")
	}

	s.afterCommit(ctx,
		newActivity(boardID, userID, domain.ActionAdded, domain.EntityMember, newUserID, map[string]string{"addedUserId": newUserID}),
		boardID, EventMemberAdded, MemberAddedPayload{Member: member, BoardID: boardID})
	return member, nil
}

// RemoveMember 移除成员。所有者可以移除任何非所有者成员，成员可以移除自己。
func (s *BoardService) RemoveMember(ctx context.Context, userID, boardID, targetID string) error {
	board, err := s.guard.RequireMember(ctx, userID, BoardByID(boardID))
	if err != nil {
		return err
	}
	if board.OwnerID != userID && targetID != userID {
		return newError(ErrForbidden, "only the board owner can remove other members")
	}
	if targetID == board.OwnerID {
		return newError(ErrBadRequest, "cannot remove the board owner")
	}
	if err := s.boardRepo.RemoveMember(ctx, boardID, targetID); err != nil {
		return mapRepoError(err, "member")
	}

	s.afterCommit(ctx,
		newActivity(boardID, userID, domain.ActionRemoved, domain.EntityMember, targetID, map[string]string{"removedUserId": targetID}),
		boardID, EventMemberRemoved, MemberRemovedPayload{UserID: targetID, BoardID: boardID})
	return nil
}

func validateBoardFields(name, description, color *string) error {
	if name != nil {
		*name = strings.TrimSpace(*name)
		if *name == "" || len(*name) > 100 {
			return newError(ErrBadRequest, "board name must be between 1 and 100 characters")
		}
	}
	if description != nil && len(*description) > 500 {
		return newError(ErrBadRequest, "board description must be at most 500 characters")
	}
	if color != nil && *color != "" && !colorPattern.MatchString(*color) {
		return newError(ErrBadRequest, "color must be a hex value like #6366f1")
	}
	return nil
}
