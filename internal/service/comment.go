package service

import (
	"context"
	"strings"
	"unicode/utf8"

	"collaborative-kanban/internal/domain"
	"collaborative-kanban/internal/repository"
)

const commentSnippetLength = 50

// CommentService 负责任务评论。
type CommentService struct {
	commentRepo repository.CommentRepository
	guard       *AccessGuard
	notifier
}

// NewCommentService 创建 CommentService 实例
func NewCommentService(commentRepo repository.CommentRepository, guard *AccessGuard, recorder ActivityRecorder, broadcaster Broadcaster) *CommentService {
	if commentRepo == nil {
		panic("CommentRepository cannot be nil for CommentService")
	}
	if guard == nil {
		panic("AccessGuard cannot be nil for CommentService")
	}
	return &CommentService{
		commentRepo: commentRepo,
		guard:       guard,
		notifier:    notifier{recorder: recorder, broadcaster: broadcaster},
	}
}

// ListComments 按时间倒序返回任务评论。
func (s *CommentService) ListComments(ctx context.Context, userID, taskID string) ([]domain.Comment, error) {
	if _, err := s.guard.RequireMember(ctx, userID, BoardOfTask(taskID)); err != nil {
		return nil, err
	}
	comments, err := s.commentRepo.ListByTask(ctx, taskID)
	if err != nil {
		return nil, mapRepoError(err, "comment")
	}
	if comments == nil {
		comments = []domain.Comment{}
	}
	return comments, nil
}

// AddComment 为任务添加评论，任何成员都可以评论。
func (s *CommentService) AddComment(ctx context.Context, userID, taskID, content string) (*domain.Comment, error) {
	board, err := s.guard.RequireMember(ctx, userID, BoardOfTask(taskID))
	if err != nil {
		return nil, err
	}
	content = strings.TrimSpace(content)
	if content == "" || utf8.RuneCountInString(content) > 1000 {
		return nil, newError(ErrBadRequest, "comment must be between 1 and 1000 characters")
	}

	comment := &domain.Comment{TaskID: taskID, UserID: userID, Content: content}
	if err := s.commentRepo.Create(ctx, comment); err != nil {
		return nil, mapRepoError(err, "comment")
	}

	s.afterCommit(ctx,
		newActivity(board.ID, userID, domain.ActionCommentAdded, domain.EntityTask, taskID, map[string]string{
			"commentId": comment.ID,
			"snippet":   snippet(content),
		}),
		board.ID, EventCommentAdded, CommentAddedPayload{Comment: comment, TaskID: taskID})
	return comment, nil
}

// snippet 截取前 50 个字符，超出部分用 "..." 表示
func snippet(content string) string {
	if utf8.RuneCountInString(content) <= commentSnippetLength {
		return content
	}
	return string([]rune(content)[:commentSnippetLength]) + "..."
}
