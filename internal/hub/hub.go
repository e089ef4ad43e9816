package hub

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

// 包级别的 WebSocket 常量，供 hub 和 client 使用
const (
	// Time allowed to write a message to the peer.
	writeWait = 10 * time.Second

	// Time allowed to read the next pong message from the peer.
	pongWait = 60 * time.Second

	// Send pings to peer with this period. Must be less than pongWait.
	pingPeriod = (pongWait * 9) / 10

	// Maximum message size allowed from peer.
	maxMessageSize = 4096

	// DefaultEditingTTL 是编辑指示的自动过期时间
	DefaultEditingTTL = 30 * time.Second

	membershipCheckTimeout = 5 * time.Second
)

// 客户端与服务端之间的实时事件名
const (
	EventJoinBoard          = "join:board"
	EventLeaveBoard         = "leave:board"
	EventUserEditing        = "user:editing"
	EventUserStoppedEditing = "user:stopped_editing"
	EventBoardPresence      = "board:presence"
	EventUserJoined         = "user:joined"
	EventUserLeft           = "user:left"
	EventError              = "error"
)

// Hub 内部消息类型
const (
	msgRegister       = "register"
	msgUnregister     = "unregister"
	msgJoin           = "join"
	msgJoinApproved   = "join_approved"
	msgJoinDenied     = "join_denied"
	msgError          = "error"
	msgLeave          = "leave"
	msgEditing        = "editing"
	msgStopEditing    = "stop_editing"
	msgEditingExpired = "editing_expired"
	msgBroadcast      = "broadcast"
	msgPrune          = "prune"
	msgStop           = "stop"
)

// ErrQueueFull 表示 Hub 队列已满，消息被丢弃
var ErrQueueFull = errors.New("hub: message queue full")

// HubMessage 定义了在 Hub 内部通道传递的消息
type HubMessage struct {
	Type    string
	BoardID string
	TaskID  string
	UserID  string
	Client  *Client // register/unregister/join 等来源连接
	Except  *Client // 广播时排除的连接
	Data    []byte  // 已序列化的出站帧
	Reason  string  // 发给客户端的错误信息
	Seq     uint64  // 编辑过期或加入请求对应的序号
}

// Envelope 是 WebSocket 帧的格式: {"event": "...", "data": {...}}
type Envelope struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data,omitempty"`
}

type outbound struct {
	Event string      `json:"event"`
	Data  interface{} `json:"data"`
}

// MembershipChecker 判断用户是否为看板成员，由 service.AccessGuard 实现
type MembershipChecker interface {
	IsMember(ctx context.Context, boardID, userID string) (bool, error)
}

// Option 配置 Hub
type Option func(*Hub)

// WithEditingTTL 修改编辑指示的过期时间
func WithEditingTTL(ttl time.Duration) Option {
	return func(h *Hub) { h.editing = NewEditingTracker(ttl) }
}

// WithPresenceStore 替换在线记录的存储实现
func WithPresenceStore(store PresenceStore) Option {
	return func(h *Hub) { h.presence = store }
}

// Hub 维护连接、看板房间、在线记录和编辑指示。
// 所有修改都在 Run 的单个 goroutine 中进行；外部只读访问持读锁。
type Hub struct {
	messageChan chan HubMessage
	done        chan struct{}

	mu       sync.RWMutex
	clients  map[*Client]bool
	rooms    *RoomRegistry
	presence PresenceStore
	editing  *EditingTracker

	checker MembershipChecker
	// 等待成员校验结果的加入请求 (client -> boardID -> 序号)，只在 Run 中访问
	pendingJoins map[*Client]map[string]uint64
	joinSeq      uint64
}

// NewHub 创建 Hub。checker 为 nil 时不校验加入房间的权限。
func NewHub(checker MembershipChecker, opts ...Option) *Hub {
	h := &Hub{
		messageChan: make(chan HubMessage, 512),
		done:        make(chan struct{}),
		clients:     make(map[*Client]bool),
		rooms:       NewRoomRegistry(),
		presence:    NewMemoryPresenceStore(),
		editing:     NewEditingTracker(DefaultEditingTTL),
		checker:     checker,

		pendingJoins: make(map[*Client]map[string]uint64),
	}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Run 启动 Hub 的主事件处理循环，应在单独的 goroutine 中运行。
func (h *Hub) Run() {
	log := logrus.WithField("component", "hub")
	log.Info("Hub is running...")

	for msg := range h.messageChan {
		switch msg.Type {
		case msgRegister:
			h.registerClient(msg.Client)
		case msgUnregister:
			h.unregisterClient(msg.Client)
		case msgJoin:
			h.requestJoin(msg.Client, msg.BoardID)
		case msgJoinApproved:
			if h.takePendingJoin(msg.Client, msg.BoardID, msg.Seq) {
				h.joinBoard(msg.Client, msg.BoardID)
			}
		case msgJoinDenied:
			if h.takePendingJoin(msg.Client, msg.BoardID, msg.Seq) {
				h.sendError(msg.Client, msg.Reason)
			}
		case msgError:
			h.sendError(msg.Client, msg.Reason)
		case msgLeave:
			h.leaveBoard(msg.Client, msg.BoardID)
		case msgEditing:
			h.startEditing(msg.Client, msg.BoardID, msg.TaskID)
		case msgStopEditing:
			h.stopEditing(msg.Client, msg.BoardID, msg.TaskID)
		case msgEditingExpired:
			h.expireEditing(msg.TaskID, msg.UserID, msg.Seq)
		case msgBroadcast:
			h.mu.RLock()
			h.deliverLocked(msg.BoardID, msg.Data, msg.Except)
			h.mu.RUnlock()
		case msgPrune:
			h.pruneRooms()
		case msgStop:
			h.shutdown()
			log.Info("Hub is shutting down...")
			return
		default:
			log.Warnf("Hub: Received unknown message type: %s from user %s", msg.Type, msg.UserID)
		}
	}
}

// Stop 让 Run 关闭所有连接并退出，阻塞直到完成或 ctx 结束。
func (h *Hub) Stop(ctx context.Context) error {
	select {
	case h.messageChan <- HubMessage{Type: msgStop}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-h.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// registerClient 处理客户端注册逻辑
func (h *Hub) registerClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to register a nil client")
		return
	}
	h.mu.Lock()
	h.clients[client] = true
	h.mu.Unlock()
	hubConnectionsGauge.Inc()
	client.logCtx().Info("Client registered to Hub")
}

// unregisterClient 清理断开连接的全部房间、在线记录和编辑登记
func (h *Hub) unregisterClient(client *Client) {
	if client == nil {
		logrus.Error("Hub: Attempted to unregister a nil client")
		return
	}
	logCtx := client.logCtx().WithField("action", "unregisterClient")

	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[client] {
		logCtx.Warn("Client not found during unregister")
		return
	}

	delete(h.pendingJoins, client)
	for _, reg := range h.editing.ClearConnection(client.ID(), "") {
		h.deliverLocked(reg.BoardID, frame(EventUserStoppedEditing, stoppedEditingPayload{TaskID: reg.TaskID, UserID: reg.UserID}), client)
	}
	boards := h.rooms.RoomsOf(client)
	for _, boardID := range boards {
		h.leaveLocked(client, boardID)
	}

	delete(h.clients, client)
	// 关闭 send 通道，WritePump 随之退出
	close(client.send)
	hubConnectionsGauge.Dec()
	logCtx.WithField("rooms_left", len(boards)).Info("Client unregistered from Hub")
}

// requestJoin 在 Hub 循环之外检查成员身份，结果再投递回 Hub。
// 结果带着请求序号，期间离开或断开会作废这次请求。
func (h *Hub) requestJoin(client *Client, boardID string) {
	if client == nil || boardID == "" {
		return
	}
	if h.checker == nil {
		h.joinBoard(client, boardID)
		return
	}
	h.joinSeq++
	seq := h.joinSeq
	boards, ok := h.pendingJoins[client]
	if !ok {
		boards = make(map[string]uint64)
		h.pendingJoins[client] = boards
	}
	boards[boardID] = seq

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), membershipCheckTimeout)
		defer cancel()
		logCtx := client.logCtx().WithField("board_id", boardID)

		ok, err := h.checker.IsMember(ctx, boardID, client.UserID())
		msg := HubMessage{Type: msgJoinApproved, BoardID: boardID, Client: client, Seq: seq}
		switch {
		case err != nil:
			logCtx.WithError(err).Error("Hub: Membership check failed")
			msg.Type, msg.Reason = msgJoinDenied, "failed to join board"
		case !ok:
			logCtx.Warn("Hub: Join denied, user is not a board member")
			msg.Type, msg.Reason = msgJoinDenied, "you are not a member of this board"
		}
		h.enqueue(msg)
	}()
}

// takePendingJoin 取出与 seq 匹配的待定加入请求；已作废或被新请求替换时返回 false
func (h *Hub) takePendingJoin(client *Client, boardID string, seq uint64) bool {
	boards := h.pendingJoins[client]
	if current, ok := boards[boardID]; !ok || current != seq {
		client.logCtx().WithField("board_id", boardID).Debug("Hub: Discarding stale join result")
		return false
	}
	delete(boards, boardID)
	if len(boards) == 0 {
		delete(h.pendingJoins, client)
	}
	return true
}

func (h *Hub) cancelPendingJoin(client *Client, boardID string) {
	boards := h.pendingJoins[client]
	delete(boards, boardID)
	if len(boards) == 0 {
		delete(h.pendingJoins, client)
	}
}

// joinBoard 把连接加入房间：通知其他人并给加入者发送在线快照
func (h *Hub) joinBoard(client *Client, boardID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[client] {
		return // 检查期间已断开
	}
	if h.rooms.Join(boardID, client) {
		h.presence.Add(boardID, PresenceEntry{
			ConnectionID: client.ID(),
			UserID:       client.UserID(),
			Username:     client.Username(),
		})
		h.deliverLocked(boardID, frame(EventUserJoined, userJoinedPayload{
			UserID:   client.UserID(),
			Username: client.Username(),
			BoardID:  boardID,
		}), client)
		hubRoomsGauge.Set(float64(h.rooms.Len()))
		client.logCtx().WithField("board_id", boardID).Info("Client joined board room")
	}
	client.trySend(frame(EventBoardPresence, presencePayload{
		BoardID: boardID,
		Users:   presenceUsers(h.presence.List(boardID)),
	}))
}

func (h *Hub) leaveBoard(client *Client, boardID string) {
	h.cancelPendingJoin(client, boardID)
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.clients[client] {
		return
	}
	for _, reg := range h.editing.ClearConnection(client.ID(), boardID) {
		h.deliverLocked(boardID, frame(EventUserStoppedEditing, stoppedEditingPayload{TaskID: reg.TaskID, UserID: reg.UserID}), client)
	}
	h.leaveLocked(client, boardID)
}

// leaveLocked 移出房间、删除在线记录并通知剩余连接。调用方持写锁。
func (h *Hub) leaveLocked(client *Client, boardID string) {
	if !h.rooms.Leave(boardID, client) {
		return
	}
	h.presence.Remove(boardID, client.ID())
	h.deliverLocked(boardID, frame(EventUserLeft, userLeftPayload{UserID: client.UserID(), BoardID: boardID}), client)
	if h.rooms.IsEmpty(boardID) {
		h.rooms.Prune()
	}
	hubRoomsGauge.Set(float64(h.rooms.Len()))
	client.logCtx().WithField("board_id", boardID).Info("Client left board room")
}

func (h *Hub) startEditing(client *Client, boardID, taskID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.rooms.Has(boardID, client) {
		client.trySend(frame(EventError, errorPayload{Message: "join the board before sending editing signals"}))
		return
	}
	userID := client.UserID()
	h.editing.Start(boardID, taskID, userID, client.ID(), func(seq uint64) {
		h.enqueue(HubMessage{Type: msgEditingExpired, TaskID: taskID, UserID: userID, Seq: seq})
	})
	h.deliverLocked(boardID, frame(EventUserEditing, editingPayload{
		TaskID:   taskID,
		UserID:   userID,
		Username: client.Username(),
	}), client)
}

func (h *Hub) stopEditing(client *Client, boardID, taskID string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if !h.rooms.Has(boardID, client) {
		return
	}
	if _, ok := h.editing.Stop(taskID, client.UserID()); !ok {
		return
	}
	h.deliverLocked(boardID, frame(EventUserStoppedEditing, stoppedEditingPayload{TaskID: taskID, UserID: client.UserID()}), client)
}

// expireEditing 移除到期的登记并通知整个房间
func (h *Hub) expireEditing(taskID, userID string, seq uint64) {
	h.mu.Lock()
	defer h.mu.Unlock()
	reg, ok := h.editing.Expire(taskID, userID, seq)
	if !ok {
		return
	}
	hubEditingExpiredTotal.Inc()
	logrus.WithFields(logrus.Fields{"board_id": reg.BoardID, "task_id": taskID, "user_id": userID}).Debug("Editing indicator expired")
	h.deliverLocked(reg.BoardID, frame(EventUserStoppedEditing, stoppedEditingPayload{TaskID: taskID, UserID: userID}), nil)
}

// pruneRooms 清理空房间以及没有对应房间的在线记录
func (h *Hub) pruneRooms() {
	h.mu.Lock()
	defer h.mu.Unlock()
	pruned := h.rooms.Prune()
	stale := 0
	for _, boardID := range h.presence.Boards() {
		if h.rooms.IsEmpty(boardID) {
			h.presence.Drop(boardID)
			stale++
		}
	}
	hubRoomsGauge.Set(float64(h.rooms.Len()))
	if len(pruned) > 0 || stale > 0 {
		logrus.WithFields(logrus.Fields{"rooms": len(pruned), "presence": stale}).Info("Hub: Pruned empty rooms")
	}
}

func (h *Hub) shutdown() {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.editing.StopAll()
	h.pendingJoins = make(map[*Client]map[string]uint64)
	for client := range h.clients {
		delete(h.clients, client)
		close(client.send)
		hubConnectionsGauge.Dec()
	}
	h.rooms = NewRoomRegistry()
	hubRoomsGauge.Set(0)
	close(h.done)
}

// deliverLocked 把帧发送给房间内除 except 外的所有连接。调用方至少持读锁。
func (h *Hub) deliverLocked(boardID string, message []byte, except *Client) {
	if message == nil {
		return
	}
	recipients := h.rooms.Members(boardID, except)
	if len(recipients) == 0 {
		return
	}
	logrus.WithFields(logrus.Fields{
		"board_id":        boardID,
		"message_size":    len(message),
		"recipient_count": len(recipients),
	}).Debug("Broadcasting message to clients")
	for _, client := range recipients {
		client.trySend(message)
	}
}

func (h *Hub) sendError(client *Client, message string) {
	h.mu.RLock()
	defer h.mu.RUnlock()
	if h.clients[client] {
		client.trySend(frame(EventError, errorPayload{Message: message}))
	}
}

// --- 公共方法 ---

// QueueMessage 将消息放入 Hub 的处理队列 (非阻塞)。队列满时返回 false。
func (h *Hub) QueueMessage(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	default:
		hubDroppedMessagesTotal.WithLabelValues("hub").Inc()
		logrus.WithFields(logrus.Fields{
			"message_type": msg.Type,
			"board_id":     msg.BoardID,
			"user_id":      msg.UserID,
		}).Warn("Hub message channel full, dropping message")
		return false
	}
}

// enqueue 阻塞地投递必须送达的消息 (断开清理、编辑过期、加入结果)，Hub 停止后放弃。
func (h *Hub) enqueue(msg HubMessage) bool {
	select {
	case h.messageChan <- msg:
		return true
	case <-h.done:
		return false
	}
}

// Register 排队注册连接
func (h *Hub) Register(client *Client) bool {
	return h.QueueMessage(HubMessage{Type: msgRegister, Client: client, UserID: client.UserID()})
}

// BroadcastToBoard 向看板房间内的所有连接广播事件。消息按调用顺序投递。
func (h *Hub) BroadcastToBoard(boardID, event string, payload interface{}) error {
	data, err := json.Marshal(outbound{Event: event, Data: payload})
	if err != nil {
		return err
	}
	if !h.QueueMessage(HubMessage{Type: msgBroadcast, BoardID: boardID, Data: data}) {
		return ErrQueueFull
	}
	hubBroadcastsTotal.WithLabelValues(event).Inc()
	return nil
}

// PruneEmptyRooms 排队清理空房间，由后台定时任务调用
func (h *Hub) PruneEmptyRooms() bool {
	return h.QueueMessage(HubMessage{Type: msgPrune})
}

// Presence 返回看板当前在线的用户 (每个连接一条)
func (h *Hub) Presence(boardID string) []PresenceUser {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return presenceUsers(h.presence.List(boardID))
}

// ActiveBoardIDs 返回当前有连接的看板
func (h *Hub) ActiveBoardIDs() []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.rooms.BoardIDs()
}

// EditingUsers 返回正在编辑任务的用户 ID
func (h *Hub) EditingUsers(taskID string) []string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.editing.Users(taskID)
}

// --- 出站事件负载 ---

type presencePayload struct {
	BoardID string         `json:"boardId"`
	Users   []PresenceUser `json:"users"`
}

type userJoinedPayload struct {
	UserID   string `json:"userId"`
	Username string `json:"username"`
	BoardID  string `json:"boardId"`
}

type userLeftPayload struct {
	UserID  string `json:"userId"`
	BoardID string `json:"boardId"`
}

type editingPayload struct {
	TaskID   string `json:"taskId"`
	UserID   string `json:"userId"`
	Username string `json:"username"`
}

type stoppedEditingPayload struct {
	TaskID string `json:"taskId"`
	UserID string `json:"userId"`
}

type errorPayload struct {
	Message string `json:"message"`
}

// frame 序列化出站帧，失败时返回 nil
func frame(event string, payload interface{}) []byte {
	data, err := json.Marshal(outbound{Event: event, Data: payload})
	if err != nil {
		logrus.WithError(err).WithField("event", event).Error("Hub: Failed to marshal frame")
		return nil
	}
	return data
}
