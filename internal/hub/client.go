package hub

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
)

// Client 代表一个连接到 Hub 的 WebSocket 客户端。一个连接可以同时在多个看板房间中。
type Client struct {
	hub      *Hub
	conn     *websocket.Conn
	id       string // 连接 ID，同一用户的多个标签页各不相同
	userID   string
	username string
	send     chan []byte // 用于向此客户端发送消息的缓冲通道
}

// NewClient 创建一个新的 Client 实例
func NewClient(hub *Hub, conn *websocket.Conn, userID, username string) *Client {
	return &Client{
		hub:      hub,
		conn:     conn,
		id:       uuid.NewString(),
		userID:   userID,
		username: username,
		send:     make(chan []byte, 256),
	}
}

// Run 启动客户端的读写 goroutine
func (c *Client) Run() {
	go c.WritePump()
	go c.ReadPump()
}

// ReadPump 读取客户端帧并转换为 Hub 消息。它的退出就是断开信号。
func (c *Client) ReadPump() {
	defer func() {
		// 清理操作：请求 Hub 注销此客户端
		if !c.hub.enqueue(HubMessage{Type: msgUnregister, Client: c, UserID: c.userID}) {
			c.logCtx().Debug("Hub stopped before unregister was delivered")
		}
		c.conn.Close()
		c.logCtx().Info("readPump exited, unregistered client")
	}()

	c.conn.SetReadLimit(maxMessageSize)
	_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(string) error {
		_ = c.conn.SetReadDeadline(time.Now().Add(pongWait))
		return nil
	})

	for {
		messageType, message, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure) {
				c.logCtx().WithError(err).Warn("WebSocket read error (unexpected close)")
			} else {
				c.logCtx().Debug("WebSocket connection closed normally or read error")
			}
			break
		}
		if messageType != websocket.TextMessage {
			c.logCtx().Debugf("Received non-text message type: %d", messageType)
			continue
		}
		c.handleFrame(message)
	}
}

// boardSignal 是客户端事件的数据部分
type boardSignal struct {
	BoardID string `json:"boardId"`
	TaskID  string `json:"taskId"`
}

// handleFrame 解析 {"event","data"} 帧并投递到 Hub
func (c *Client) handleFrame(raw []byte) {
	var env Envelope
	if err := json.Unmarshal(raw, &env); err != nil {
		c.logCtx().WithError(err).Debug("Malformed client frame")
		c.hub.QueueMessage(HubMessage{Type: msgError, Client: c, Reason: "malformed message"})
		return
	}
	var sig boardSignal
	if len(env.Data) > 0 {
		if err := json.Unmarshal(env.Data, &sig); err != nil {
			c.hub.QueueMessage(HubMessage{Type: msgError, Client: c, Reason: "malformed event data"})
			return
		}
	}

	msg := HubMessage{Client: c, UserID: c.userID, BoardID: sig.BoardID, TaskID: sig.TaskID}
	switch env.Event {
	case EventJoinBoard:
		msg.Type = msgJoin
	case EventLeaveBoard:
		msg.Type = msgLeave
	case EventUserEditing:
		msg.Type = msgEditing
	case EventUserStoppedEditing:
		msg.Type = msgStopEditing
	default:
		c.logCtx().WithField("event", env.Event).Debug("Ignoring unknown client event")
		return
	}
	if sig.BoardID == "" || ((msg.Type == msgEditing || msg.Type == msgStopEditing) && sig.TaskID == "") {
		return
	}
	c.hub.QueueMessage(msg)
}

// WritePump 将 send 通道中的消息写入 WebSocket 连接，并定期发送 Ping。
func (c *Client) WritePump() {
	ticker := time.NewTicker(pingPeriod)
	defer func() {
		ticker.Stop()
		c.conn.Close()
		c.logCtx().Info("writePump exited")
	}()

	for {
		select {
		case message, ok := <-c.send:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if !ok {
				// send 通道被 Hub 关闭了 (注销或关闭时)
				_ = c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, message); err != nil {
				c.logCtx().WithError(err).Warn("Failed to write message to websocket")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})

		case <-ticker.C:
			_ = c.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				c.logCtx().WithError(err).Warn("Failed to send ping message")
				return
			}
			_ = c.conn.SetWriteDeadline(time.Time{})
		}
	}
}

// trySend 非阻塞地把消息放入发送队列，慢客户端的消息会被丢弃
func (c *Client) trySend(message []byte) {
	if message == nil {
		return
	}
	select {
	case c.send <- message:
	default:
		hubDroppedMessagesTotal.WithLabelValues("client").Inc()
		c.logCtx().Warn("Client send channel full, message dropped")
	}
}

func (c *Client) logCtx() *logrus.Entry {
	return logrus.WithFields(logrus.Fields{"conn_id": c.id, "user_id": c.userID})
}

func (c *Client) ID() string       { return c.id }
func (c *Client) UserID() string   { return c.userID }
func (c *Client) Username() string { return c.username }
func (c *Client) CloseConn()       { c.conn.Close() }
