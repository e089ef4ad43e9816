package service

import (
	"context"
	"encoding/json"

	"collaborative-kanban/internal/domain"
	"collaborative-kanban/internal/repository"

	"github.com/sirupsen/logrus"
	"gorm.io/datatypes"
)

// Broadcaster 把事件推送给看板房间内的所有连接，由 hub.Hub 实现。
type Broadcaster interface {
	BroadcastToBoard(boardID, event string, payload interface{}) error
}

// ActivityRecorder 追加一条活动记录。可以直接写库，也可以投递到异步队列。
type ActivityRecorder interface {
	Record(ctx context.Context, activity *domain.Activity) error
}

// notifier 封装每次写操作提交后的副作用：记录活动、失效缓存、广播事件。
// 这些步骤都是尽力而为，失败只记录日志。
type notifier struct {
	recorder    ActivityRecorder
	cache       repository.BoardCache
	broadcaster Broadcaster
}

func (n *notifier) afterCommit(ctx context.Context, activity *domain.Activity, boardID, event string, payload interface{}) {
	logCtx := logrus.WithFields(logrus.Fields{"board_id": boardID, "event": event})

	if activity != nil && n.recorder != nil {
		if err := n.recorder.Record(ctx, activity); err != nil {
			logCtx.WithError(err).Error("Failed to record activity")
		}
	}
	if n.cache != nil {
		if err := n.cache.Invalidate(ctx, boardID); err != nil {
			logCtx.WithError(err).Warn("Failed to invalidate board cache")
		}
	}
	if n.broadcaster == nil {
		logCtx.Debug("No broadcaster configured, skipping realtime event")
		return
	}
	if err := n.broadcaster.BroadcastToBoard(boardID, event, payload); err != nil {
		logCtx.WithError(err).Warn("Failed to broadcast event")
	}
}

// newActivity 构造活动记录，metadata 序列化为 JSON。
func newActivity(boardID, userID, action, entityType, entityID string, metadata interface{}) *domain.Activity {
	raw, err := json.Marshal(metadata)
	if err != nil || metadata == nil {
		raw = []byte("{}")
	}
	return &domain.Activity{
		BoardID:    boardID,
		UserID:     userID,
		ActionType: action,
		EntityType: entityType,
		EntityID:   entityID,
		Metadata:   datatypes.JSON(raw),
	}
}
