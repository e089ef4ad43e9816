package tasks

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"
	"github.com/sirupsen/logrus"

	"collaborative-kanban/internal/domain"
)

// 定义任务类型常量
const (
	TypeActivityRecord = "activity:record" // 活动写库
	TypeRoomSweep      = "hub:room_sweep"  // 定期清理空房间
)

// QueueActivity 是活动写库任务使用的队列
const QueueActivity = "default"

// ActivityRecordPayload 定义了活动写库任务的数据结构
type ActivityRecordPayload struct {
	Activity domain.Activity `json:"activity"`
}

// NewActivityRecordTask 序列化活动写库任务的 payload
func NewActivityRecordTask(activity domain.Activity) ([]byte, error) {
	return json.Marshal(ActivityRecordPayload{Activity: activity})
}

// NewRoomSweepTask 返回房间清理任务的 payload (目前为空对象)
func NewRoomSweepTask() ([]byte, error) {
	return json.Marshal(struct{}{})
}

// Enqueuer 是 asynq.Client 中用到的部分
type Enqueuer interface {
	EnqueueContext(ctx context.Context, task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error)
}

// QueuedActivityRecorder 把活动放入 asynq 队列，由 worker 写库。
// ID 和时间在入队时确定，重试不会产生重复记录，排序也与提交顺序一致。
type QueuedActivityRecorder struct {
	client   Enqueuer
	maxRetry int
}

// NewQueuedActivityRecorder 创建 QueuedActivityRecorder
func NewQueuedActivityRecorder(client Enqueuer) *QueuedActivityRecorder {
	if client == nil {
		panic("asynq client cannot be nil for QueuedActivityRecorder")
	}
	return &QueuedActivityRecorder{client: client, maxRetry: 5}
}

// Record 实现 service.ActivityRecorder
func (r *QueuedActivityRecorder) Record(ctx context.Context, activity *domain.Activity) error {
	if activity.ID == "" {
		activity.ID = uuid.NewString()
	}
	if activity.CreatedAt.IsZero() {
		activity.CreatedAt = time.Now()
	}
	payload, err := NewActivityRecordTask(*activity)
	if err != nil {
		return fmt.Errorf("marshal activity payload: %w", err)
	}

	info, err := r.client.EnqueueContext(ctx, asynq.NewTask(TypeActivityRecord, payload),
		asynq.Queue(QueueActivity),
		asynq.MaxRetry(r.maxRetry),
	)
	if err != nil {
		return fmt.Errorf("enqueue activity: %w", err)
	}
	logrus.WithFields(logrus.Fields{
		"board_id":    activity.BoardID,
		"activity_id": activity.ID,
		"task_id":     info.ID,
	}).Debug("Activity record task enqueued")
	return nil
}
