package service

import (
	"context"

	"collaborative-kanban/internal/domain"
	"collaborative-kanban/internal/repository"

	"github.com/sirupsen/logrus"
)

// ActivityPage 是分页的活动列表
type ActivityPage struct {
	Activities []domain.Activity `json:"activities"`
	Pagination Pagination        `json:"pagination"`
}

// ActivityService 写入和查询看板活动。它本身实现 ActivityRecorder (同步写库)。
type ActivityService struct {
	activityRepo repository.ActivityRepository
	guard        *AccessGuard
}

// NewActivityService 创建 ActivityService 实例
func NewActivityService(activityRepo repository.ActivityRepository, guard *AccessGuard) *ActivityService {
	if activityRepo == nil {
		panic("ActivityRepository cannot be nil for ActivityService")
	}
	if guard == nil {
		panic("AccessGuard cannot be nil for ActivityService")
	}
	return &ActivityService{activityRepo: activityRepo, guard: guard}
}

// Record 直接保存一条活动记录。
func (s *ActivityService) Record(ctx context.Context, activity *domain.Activity) error {
	if err := s.activityRepo.Save(ctx, activity); err != nil {
		logrus.WithFields(logrus.Fields{
			"board_id": activity.BoardID,
			"action":   activity.ActionType,
			"entity":   activity.EntityType,
		}).WithError(err).Error("Service.RecordActivity: Failed to save activity")
		return err
	}
	return nil
}

// ListActivities 按时间倒序分页返回看板活动。
func (s *ActivityService) ListActivities(ctx context.Context, userID, boardID string, page Page) (*ActivityPage, error) {
	if _, err := s.guard.RequireMember(ctx, userID, BoardByID(boardID)); err != nil {
		return nil, err
	}
	activities, total, err := s.activityRepo.ListByBoard(ctx, boardID, page.Offset(), page.Limit)
	if err != nil {
		return nil, mapRepoError(err, "activity")
	}
	if activities == nil {
		activities = []domain.Activity{}
	}
	return &ActivityPage{Activities: activities, Pagination: page.Paginate(total)}, nil
}
