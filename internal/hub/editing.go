package hub

import (
	"sort"
	"time"
)

// editRegistration 是一次“开始编辑”登记。seq 用于区分同一用户的先后登记。
type editRegistration struct {
	BoardID      string
	TaskID       string
	UserID       string
	ConnectionID string
	seq          uint64
	timer        *time.Timer
}

// EditingTracker 记录每个任务正在被哪些用户编辑。每次登记都会在 ttl 后触发过期回调，
// 过期只移除触发它的那一次登记。不是并发安全的，由 Hub 持锁访问。
type EditingTracker struct {
	ttl     time.Duration
	seq     uint64
	entries map[string]map[string]*editRegistration // taskID -> userID -> 登记
}

func NewEditingTracker(ttl time.Duration) *EditingTracker {
	if ttl <= 0 {
		ttl = DefaultEditingTTL
	}
	return &EditingTracker{ttl: ttl, entries: make(map[string]map[string]*editRegistration)}
}

// Start 登记编辑并安排过期。同一用户重复登记会替换旧登记并重新计时。
// onExpire 在计时器 goroutine 中调用，只应把消息投递回 Hub。
func (t *EditingTracker) Start(boardID, taskID, userID, connID string, onExpire func(seq uint64)) uint64 {
	if old := t.lookup(taskID, userID); old != nil {
		old.timer.Stop()
	}
	t.seq++
	seq := t.seq
	reg := &editRegistration{BoardID: boardID, TaskID: taskID, UserID: userID, ConnectionID: connID, seq: seq}
	reg.timer = time.AfterFunc(t.ttl, func() { onExpire(seq) })

	users, ok := t.entries[taskID]
	if !ok {
		users = make(map[string]*editRegistration)
		t.entries[taskID] = users
	}
	users[userID] = reg
	return seq
}

// Stop 移除用户对任务的编辑登记
func (t *EditingTracker) Stop(taskID, userID string) (*editRegistration, bool) {
	reg := t.lookup(taskID, userID)
	if reg == nil {
		return nil, false
	}
	reg.timer.Stop()
	t.remove(reg)
	return reg, true
}

// Expire 仅当当前登记仍是 seq 对应的那次时才移除
func (t *EditingTracker) Expire(taskID, userID string, seq uint64) (*editRegistration, bool) {
	reg := t.lookup(taskID, userID)
	if reg == nil || reg.seq != seq {
		return nil, false
	}
	t.remove(reg)
	return reg, true
}

// ClearConnection 移除某个连接的登记；boardID 非空时只清理该看板。
func (t *EditingTracker) ClearConnection(connID, boardID string) []*editRegistration {
	var cleared []*editRegistration
	for _, users := range t.entries {
		for _, reg := range users {
			if reg.ConnectionID == connID && (boardID == "" || reg.BoardID == boardID) {
				cleared = append(cleared, reg)
			}
		}
	}
	for _, reg := range cleared {
		reg.timer.Stop()
		t.remove(reg)
	}
	sort.Slice(cleared, func(i, j int) bool { return cleared[i].seq < cleared[j].seq })
	return cleared
}

// Users 返回正在编辑任务的用户 ID
func (t *EditingTracker) Users(taskID string) []string {
	users := make([]string, 0, len(t.entries[taskID]))
	for userID := range t.entries[taskID] {
		users = append(users, userID)
	}
	sort.Strings(users)
	return users
}

// StopAll 停止全部计时器 (Hub 关闭时)
func (t *EditingTracker) StopAll() {
	for _, users := range t.entries {
		for _, reg := range users {
			reg.timer.Stop()
		}
	}
	t.entries = make(map[string]map[string]*editRegistration)
}

func (t *EditingTracker) lookup(taskID, userID string) *editRegistration {
	return t.entries[taskID][userID]
}

func (t *EditingTracker) remove(reg *editRegistration) {
	users := t.entries[reg.TaskID]
	delete(users, reg.UserID)
	if len(users) == 0 {
		delete(t.entries, reg.TaskID)
	}
}
