package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"collaborative-kanban/internal/domain"
	"collaborative-kanban/internal/repository"
	"collaborative-kanban/internal/tasks"
)

// ActivityStore 同步写入活动，由 service.ActivityService 实现
type ActivityStore interface {
	Record(ctx context.Context, activity *domain.Activity) error
}

// RoomSweeper 清理空房间，由 hub.Hub 实现
type RoomSweeper interface {
	PruneEmptyRooms() bool
}

// taskLogCtx 构造带有任务元数据的日志上下文
func taskLogCtx(ctx context.Context, t *asynq.Task) *logrus.Entry {
	taskID := ""
	if rw := t.ResultWriter(); rw != nil {
		taskID = rw.TaskID()
	}
	currentRetry, _ := asynq.GetRetryCount(ctx)
	maxRetry, _ := asynq.GetMaxRetry(ctx)
	return logrus.WithFields(logrus.Fields{
		"task_id":   taskID,
		"task_type": t.Type(),
		"retry":     currentRetry,
		"max_retry": maxRetry,
	})
}

// ActivityRecordHandler 处理活动写库任务
type ActivityRecordHandler struct {
	store ActivityStore
}

// NewActivityRecordHandler 创建 Handler 实例
func NewActivityRecordHandler(store ActivityStore) *ActivityRecordHandler {
	if store == nil {
		panic("ActivityStore cannot be nil for ActivityRecordHandler")
	}
	return &ActivityRecordHandler{store: store}
}

// ProcessTask 实现 asynq.Handler 接口
func (h *ActivityRecordHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	logCtx := taskLogCtx(ctx, t)

	var payload tasks.ActivityRecordPayload
	if err := json.Unmarshal(t.Payload(), &payload); err != nil {
		logCtx.WithError(err).Error("Failed to unmarshal task payload")
		return fmt.Errorf("failed to unmarshal payload: %v: %w", err, asynq.SkipRetry)
	}
	activity := payload.Activity
	logCtx = logCtx.WithFields(logrus.Fields{"board_id": activity.BoardID, "activity_id": activity.ID})

	if err := h.store.Record(ctx, &activity); err != nil {
		// 上一次尝试已经写入
		if errors.Is(err, repository.ErrDuplicateEntry) {
			logCtx.Info("Activity already recorded, skipping")
			return nil
		}
		logCtx.WithError(err).Error("Failed to record activity")
		return fmt.Errorf("failed to record activity %s: %w", activity.ID, err)
	}

	logCtx.Debug("Activity record task processed successfully")
	return nil
}

// RoomSweepHandler 处理定期清理空房间任务
type RoomSweepHandler struct {
	sweeper RoomSweeper
}

func NewRoomSweepHandler(sweeper RoomSweeper) *RoomSweepHandler {
	if sweeper == nil {
		panic("RoomSweeper cannot be nil for RoomSweepHandler")
	}
	return &RoomSweepHandler{sweeper: sweeper}
}

// ProcessTask 实现 asynq.Handler 接口。Hub 队列满时返回错误，等待重试。
func (h *RoomSweepHandler) ProcessTask(ctx context.Context, t *asynq.Task) error {
	if !h.sweeper.PruneEmptyRooms() {
		taskLogCtx(ctx, t).Warn("Hub queue full, room sweep not queued")
		return errors.New("hub queue full")
	}
	return nil
}
