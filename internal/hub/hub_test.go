package hub

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type receivedFrame struct {
	Event string          `json:"event"`
	Data  json.RawMessage `json:"data"`
}

func startHub(t *testing.T, checker MembershipChecker, opts ...Option) *Hub {
	t.Helper()
	h := NewHub(checker, opts...)
	go h.Run()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.Stop(ctx)
	})
	return h
}

// connect 注册一个没有真实 WebSocket 的客户端，测试直接读取 send 通道
func connect(t *testing.T, h *Hub, userID, username string) *Client {
	t.Helper()
	c := NewClient(h, nil, userID, username)
	require.True(t, h.Register(c))
	return c
}

func queue(t *testing.T, h *Hub, msgType string, c *Client, boardID, taskID string) {
	t.Helper()
	require.True(t, h.QueueMessage(HubMessage{Type: msgType, Client: c, UserID: c.UserID(), BoardID: boardID, TaskID: taskID}))
}

func nextFrame(t *testing.T, c *Client) receivedFrame {
	t.Helper()
	select {
	case raw, ok := <-c.send:
		require.True(t, ok, "send channel closed unexpectedly")
		var f receivedFrame
		require.NoError(t, json.Unmarshal(raw, &f))
		return f
	case <-time.After(time.Second):
		t.Fatalf("timed out waiting for a frame for %s", c.Username())
		return receivedFrame{}
	}
}

func expectEvent(t *testing.T, c *Client, event string, into interface{}) {
	t.Helper()
	f := nextFrame(t, c)
	require.Equal(t, event, f.Event)
	if into != nil {
		require.NoError(t, json.Unmarshal(f.Data, into))
	}
}

func expectNoFrame(t *testing.T, c *Client) {
	t.Helper()
	select {
	case raw, ok := <-c.send:
		if ok {
			t.Fatalf("unexpected frame for %s: %s", c.Username(), raw)
		}
	case <-time.After(50 * time.Millisecond):
	}
}

func expectClosed(t *testing.T, c *Client) {
	t.Helper()
	select {
	case _, ok := <-c.send:
		assert.False(t, ok, "send channel should be closed")
	case <-time.After(time.Second):
		t.Fatal("send channel was not closed")
	}
}

func TestHub_PresenceSymmetry(t *testing.T) {
	// Arrange
	h := startHub(t, nil)
	alice := connect(t, h, "u-alice", "alice")
	bob := connect(t, h, "u-bob", "bob")

	// Act: alice 先加入，收到只有自己的快照
	queue(t, h, msgJoin, alice, "b1", "")
	var snapshot presencePayload
	expectEvent(t, alice, EventBoardPresence, &snapshot)
	assert.Equal(t, []PresenceUser{{UserID: "u-alice", Username: "alice"}}, snapshot.Users)
	before := len(h.Presence("b1"))

	// bob 加入：alice 恰好收到一次 user:joined，bob 收到完整快照
	queue(t, h, msgJoin, bob, "b1", "")
	var joined userJoinedPayload
	expectEvent(t, alice, EventUserJoined, &joined)
	assert.Equal(t, userJoinedPayload{UserID: "u-bob", Username: "bob", BoardID: "b1"}, joined)
	expectEvent(t, bob, EventBoardPresence, &snapshot)
	assert.Len(t, snapshot.Users, 2)
	expectNoFrame(t, alice)
	assert.Len(t, h.Presence("b1"), 2)

	// bob 断开：alice 恰好收到一次 user:left
	queue(t, h, msgUnregister, bob, "", "")
	var left userLeftPayload
	expectEvent(t, alice, EventUserLeft, &left)
	assert.Equal(t, userLeftPayload{UserID: "u-bob", BoardID: "b1"}, left)
	expectNoFrame(t, alice)
	expectClosed(t, bob)

	// Assert: 在线人数回到 bob 加入前
	assert.Equal(t, before, len(h.Presence("b1")))
}

func TestHub_MultiTabPresenceKeyedByConnection(t *testing.T) {
	h := startHub(t, nil)
	tab1 := connect(t, h, "u-alice", "alice")
	tab2 := connect(t, h, "u-alice", "alice")
	watcher := connect(t, h, "u-bob", "bob")

	queue(t, h, msgJoin, watcher, "b1", "")
	expectEvent(t, watcher, EventBoardPresence, nil)
	queue(t, h, msgJoin, tab1, "b1", "")
	expectEvent(t, tab1, EventBoardPresence, nil)
	queue(t, h, msgJoin, tab2, "b1", "")
	expectEvent(t, tab2, EventBoardPresence, nil)
	expectEvent(t, watcher, EventUserJoined, nil)
	expectEvent(t, watcher, EventUserJoined, nil)
	assert.Len(t, h.Presence("b1"), 3)

	// 关闭一个标签页只移除该连接的记录
	queue(t, h, msgLeave, tab1, "b1", "")
	expectEvent(t, watcher, EventUserLeft, nil)
	require.Eventually(t, func() bool { return len(h.Presence("b1")) == 2 }, time.Second, 10*time.Millisecond)
	assert.Contains(t, h.Presence("b1"), PresenceUser{UserID: "u-alice", Username: "alice"})
}

func TestHub_DisconnectCleansEveryRoom(t *testing.T) {
	// Arrange: carol 同时在 b1 和 b2，并正在编辑 b1 的任务
	h := startHub(t, nil)
	carol := connect(t, h, "u-carol", "carol")
	dave := connect(t, h, "u-dave", "dave")
	erin := connect(t, h, "u-erin", "erin")

	queue(t, h, msgJoin, dave, "b1", "")
	expectEvent(t, dave, EventBoardPresence, nil)
	queue(t, h, msgJoin, erin, "b2", "")
	expectEvent(t, erin, EventBoardPresence, nil)
	queue(t, h, msgJoin, carol, "b1", "")
	expectEvent(t, carol, EventBoardPresence, nil)
	expectEvent(t, dave, EventUserJoined, nil)
	queue(t, h, msgJoin, carol, "b2", "")
	expectEvent(t, carol, EventBoardPresence, nil)
	expectEvent(t, erin, EventUserJoined, nil)

	queue(t, h, msgEditing, carol, "b1", "t1")
	var editing editingPayload
	expectEvent(t, dave, EventUserEditing, &editing)
	assert.Equal(t, editingPayload{TaskID: "t1", UserID: "u-carol", Username: "carol"}, editing)
	assert.Equal(t, []string{"u-carol"}, h.EditingUsers("t1"))

	// Act
	queue(t, h, msgUnregister, carol, "", "")

	// Assert: 两个房间的剩余连接都收到 user:left，编辑登记被清除
	var stopped stoppedEditingPayload
	expectEvent(t, dave, EventUserStoppedEditing, &stopped)
	assert.Equal(t, stoppedEditingPayload{TaskID: "t1", UserID: "u-carol"}, stopped)
	expectEvent(t, dave, EventUserLeft, nil)
	expectEvent(t, erin, EventUserLeft, nil)
	expectClosed(t, carol)

	assert.Empty(t, h.EditingUsers("t1"))
	assert.Equal(t, []PresenceUser{{UserID: "u-dave", Username: "dave"}}, h.Presence("b1"))
	assert.Equal(t, []PresenceUser{{UserID: "u-erin", Username: "erin"}}, h.Presence("b2"))
	assert.Equal(t, []string{"b1", "b2"}, h.ActiveBoardIDs())
}

func TestHub_EmptyRoomsArePruned(t *testing.T) {
	h := startHub(t, nil)
	alice := connect(t, h, "u-alice", "alice")

	queue(t, h, msgJoin, alice, "b1", "")
	expectEvent(t, alice, EventBoardPresence, nil)
	assert.Equal(t, []string{"b1"}, h.ActiveBoardIDs())

	queue(t, h, msgLeave, alice, "b1", "")
	require.Eventually(t, func() bool { return len(h.ActiveBoardIDs()) == 0 }, time.Second, 10*time.Millisecond)
	assert.Empty(t, h.Presence("b1"))
	assert.True(t, h.PruneEmptyRooms())
}

func TestHub_EditingExpiresAutomatically(t *testing.T) {
	// Arrange: 缩短过期时间，代码路径与 30 秒相同
	h := startHub(t, nil, WithEditingTTL(50*time.Millisecond))
	alice := connect(t, h, "u-alice", "alice")
	bob := connect(t, h, "u-bob", "bob")
	queue(t, h, msgJoin, alice, "b1", "")
	expectEvent(t, alice, EventBoardPresence, nil)
	queue(t, h, msgJoin, bob, "b1", "")
	expectEvent(t, bob, EventBoardPresence, nil)
	expectEvent(t, alice, EventUserJoined, nil)

	// Act: alice 开始编辑，之后不再发送 stopped
	queue(t, h, msgEditing, alice, "b1", "t1")
	expectEvent(t, bob, EventUserEditing, nil)

	// Assert: 到期后整个房间都收到 user:stopped_editing
	var stopped stoppedEditingPayload
	expectEvent(t, bob, EventUserStoppedEditing, &stopped)
	assert.Equal(t, stoppedEditingPayload{TaskID: "t1", UserID: "u-alice"}, stopped)
	expectEvent(t, alice, EventUserStoppedEditing, nil)
	assert.Empty(t, h.EditingUsers("t1"))
}

func TestHub_ExplicitStopEditing(t *testing.T) {
	h := startHub(t, nil)
	alice := connect(t, h, "u-alice", "alice")
	bob := connect(t, h, "u-bob", "bob")
	queue(t, h, msgJoin, alice, "b1", "")
	expectEvent(t, alice, EventBoardPresence, nil)
	queue(t, h, msgJoin, bob, "b1", "")
	expectEvent(t, bob, EventBoardPresence, nil)
	expectEvent(t, alice, EventUserJoined, nil)

	queue(t, h, msgEditing, alice, "b1", "t1")
	expectEvent(t, bob, EventUserEditing, nil)
	queue(t, h, msgEditing, bob, "b1", "t1")
	expectEvent(t, alice, EventUserEditing, nil)
	assert.Equal(t, []string{"u-alice", "u-bob"}, h.EditingUsers("t1"))

	queue(t, h, msgStopEditing, alice, "b1", "t1")
	expectEvent(t, bob, EventUserStoppedEditing, nil)
	expectNoFrame(t, alice)
	assert.Equal(t, []string{"u-bob"}, h.EditingUsers("t1"))
}

func TestHub_EditingRequiresRoom(t *testing.T) {
	h := startHub(t, nil)
	alice := connect(t, h, "u-alice", "alice")

	queue(t, h, msgEditing, alice, "b1", "t1")
	var errMsg errorPayload
	expectEvent(t, alice, EventError, &errMsg)
	assert.NotEmpty(t, errMsg.Message)
	assert.Empty(t, h.EditingUsers("t1"))
}

type fakeChecker struct {
	members map[string]bool
	err     error
}

func (f fakeChecker) IsMember(ctx context.Context, boardID, userID string) (bool, error) {
	return f.members[boardID+"/"+userID], f.err
}

func TestHub_JoinRequiresMembership(t *testing.T) {
	h := startHub(t, fakeChecker{members: map[string]bool{"b1/u-alice": true}})
	alice := connect(t, h, "u-alice", "alice")
	mallory := connect(t, h, "u-mallory", "mallory")

	queue(t, h, msgJoin, alice, "b1", "")
	expectEvent(t, alice, EventBoardPresence, nil)

	queue(t, h, msgJoin, mallory, "b1", "")
	var errMsg errorPayload
	expectEvent(t, mallory, EventError, &errMsg)
	assert.Contains(t, errMsg.Message, "not a member")
	expectNoFrame(t, alice)
	assert.Len(t, h.Presence("b1"), 1)
}

func TestHub_JoinDeniedWhenCheckFails(t *testing.T) {
	h := startHub(t, fakeChecker{err: errors.New("db down")})
	alice := connect(t, h, "u-alice", "alice")

	queue(t, h, msgJoin, alice, "b1", "")
	expectEvent(t, alice, EventError, nil)
	assert.Empty(t, h.ActiveBoardIDs())
}

// slowChecker 模拟耗时的成员查询，所有用户都是成员
type slowChecker struct {
	delay time.Duration
}

func (c slowChecker) IsMember(ctx context.Context, boardID, userID string) (bool, error) {
	select {
	case <-time.After(c.delay):
		return true, nil
	case <-ctx.Done():
		return false, ctx.Err()
	}
}

func TestHub_LeaveCancelsPendingJoin(t *testing.T) {
	h := startHub(t, slowChecker{delay: 50 * time.Millisecond})
	alice := connect(t, h, "u-alice", "alice")

	// 成员校验还没返回时就离开
	queue(t, h, msgJoin, alice, "b1", "")
	queue(t, h, msgLeave, alice, "b1", "")
	time.Sleep(200 * time.Millisecond)

	assert.Empty(t, h.Presence("b1"), "presence after join+leave should match presence before join")
	assert.Empty(t, h.ActiveBoardIDs())
	expectNoFrame(t, alice)

	// 之后重新加入仍然有效
	queue(t, h, msgJoin, alice, "b1", "")
	expectEvent(t, alice, EventBoardPresence, nil)
	assert.Len(t, h.Presence("b1"), 1)
}

func TestHub_RejoinDiscardsStaleApproval(t *testing.T) {
	h := startHub(t, slowChecker{delay: 50 * time.Millisecond})
	alice := connect(t, h, "u-alice", "alice")

	queue(t, h, msgJoin, alice, "b1", "")
	queue(t, h, msgLeave, alice, "b1", "")
	queue(t, h, msgJoin, alice, "b1", "")

	expectEvent(t, alice, EventBoardPresence, nil)
	expectNoFrame(t, alice)
	assert.Len(t, h.Presence("b1"), 1)
}

func TestHub_DisconnectCancelsPendingJoin(t *testing.T) {
	h := startHub(t, slowChecker{delay: 50 * time.Millisecond})
	bob := connect(t, h, "u-bob", "bob")

	queue(t, h, msgJoin, bob, "b1", "")
	queue(t, h, msgUnregister, bob, "", "")
	expectClosed(t, bob)
	time.Sleep(200 * time.Millisecond)

	assert.Empty(t, h.Presence("b1"))
	assert.Empty(t, h.ActiveBoardIDs())
}

// fillQueue 在 Run 启动前塞满 Hub 队列
func fillQueue(h *Hub) {
	for h.QueueMessage(HubMessage{Type: msgPrune}) {
	}
}

func TestHub_EditingExpiryDeliveredWhenQueueFull(t *testing.T) {
	h := NewHub(nil, WithEditingTTL(20*time.Millisecond))
	alice := NewClient(h, nil, "u-alice", "alice")
	h.registerClient(alice)
	h.joinBoard(alice, "b1")
	h.startEditing(alice, "b1", "t1")
	require.Equal(t, []string{"u-alice"}, h.EditingUsers("t1"))

	fillQueue(h)
	// 计时器在队列满时触发
	time.Sleep(60 * time.Millisecond)

	go h.Run()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.Stop(ctx)
	})

	require.Eventually(t, func() bool { return len(h.EditingUsers("t1")) == 0 },
		time.Second, 10*time.Millisecond, "editing registration never expired")
}

func TestHub_UnregisterDeliveredWhenQueueFull(t *testing.T) {
	h := NewHub(nil)
	alice := NewClient(h, nil, "u-alice", "alice")
	h.registerClient(alice)
	h.joinBoard(alice, "b1")
	expectEvent(t, alice, EventBoardPresence, nil)

	fillQueue(h)
	delivered := make(chan bool, 1)
	go func() { delivered <- h.enqueue(HubMessage{Type: msgUnregister, Client: alice, UserID: alice.UserID()}) }()
	time.Sleep(1100 * time.Millisecond)

	go h.Run()
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.Stop(ctx)
	})

	select {
	case ok := <-delivered:
		assert.True(t, ok)
	case <-time.After(time.Second):
		t.Fatal("unregister was never delivered")
	}
	expectClosed(t, alice)
	assert.Empty(t, h.Presence("b1"))
}

func TestHub_StopEditingWithoutRegistrationIsSilent(t *testing.T) {
	h := startHub(t, nil)
	alice := connect(t, h, "u-alice", "alice")
	bob := connect(t, h, "u-bob", "bob")
	queue(t, h, msgJoin, alice, "b1", "")
	expectEvent(t, alice, EventBoardPresence, nil)
	queue(t, h, msgJoin, bob, "b1", "")
	expectEvent(t, bob, EventBoardPresence, nil)
	expectEvent(t, alice, EventUserJoined, nil)

	queue(t, h, msgStopEditing, alice, "b1", "t1")
	expectNoFrame(t, bob)
}

func TestHub_BroadcastToBoard(t *testing.T) {
	h := startHub(t, nil)
	alice := connect(t, h, "u-alice", "alice")
	bob := connect(t, h, "u-bob", "bob")
	outsider := connect(t, h, "u-out", "outsider")
	queue(t, h, msgJoin, alice, "b1", "")
	expectEvent(t, alice, EventBoardPresence, nil)
	queue(t, h, msgJoin, bob, "b1", "")
	expectEvent(t, bob, EventBoardPresence, nil)
	expectEvent(t, alice, EventUserJoined, nil)

	// 按调用顺序投递给房间内的所有连接 (包括发起请求的用户)
	require.NoError(t, h.BroadcastToBoard("b1", "task:created", map[string]string{"cid": "cid-1"}))
	require.NoError(t, h.BroadcastToBoard("b1", "task:updated", map[string]string{"id": "t1"}))

	for _, c := range []*Client{alice, bob} {
		var payload map[string]string
		expectEvent(t, c, "task:created", &payload)
		assert.Equal(t, "cid-1", payload["cid"])
		expectEvent(t, c, "task:updated", nil)
	}
	expectNoFrame(t, outsider)
}

func TestHub_ClientFrames(t *testing.T) {
	h := startHub(t, nil)
	alice := connect(t, h, "u-alice", "alice")

	alice.handleFrame([]byte(`{"event":"join:board","data":{"boardId":"b1"}}`))
	expectEvent(t, alice, EventBoardPresence, nil)

	alice.handleFrame([]byte(`not json`))
	expectEvent(t, alice, EventError, nil)

	// 缺少 taskId 的编辑信号被忽略
	alice.handleFrame([]byte(`{"event":"user:editing","data":{"boardId":"b1"}}`))
	alice.handleFrame([]byte(`{"event":"unknown","data":{}}`))
	expectNoFrame(t, alice)

	alice.handleFrame([]byte(`{"event":"user:editing","data":{"boardId":"b1","taskId":"t9"}}`))
	require.Eventually(t, func() bool { return len(h.EditingUsers("t9")) == 1 }, time.Second, 10*time.Millisecond)
}
