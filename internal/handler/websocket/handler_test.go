package websocket

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"collaborative-kanban/internal/domain"
	"collaborative-kanban/internal/hub"
	"collaborative-kanban/internal/service"

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v4"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const secret = "ws-test-secret"

type fakeUsers map[string]*domain.User

func (f fakeUsers) GetUser(ctx context.Context, userID string) (*domain.User, error) {
	if u, ok := f[userID]; ok {
		return u, nil
	}
	return nil, &service.Error{Kind: service.ErrNotFound, Message: "user not found"}
}

func tokenFor(t *testing.T, userID string) string {
	t.Helper()
	token, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"user_id": userID,
		"exp":     time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return token
}

func startServer(t *testing.T) (*httptest.Server, *hub.Hub) {
	t.Helper()
	gin.SetMode(gin.TestMode)
	h := hub.NewHub(nil)
	go h.Run()

	handler := NewWebSocketHandler(h, fakeUsers{"u1": {ID: "u1", Username: "alice"}}, secret, "")
	r := gin.New()
	r.GET("/ws", handler.HandleConnection)
	srv := httptest.NewServer(r)
	t.Cleanup(func() {
		srv.Close()
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = h.Stop(ctx)
	})
	return srv, h
}

func wsURL(srv *httptest.Server, query string) string {
	return "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws" + query
}

func TestHandleConnection_RejectsBeforeUpgrade(t *testing.T) {
	srv, _ := startServer(t)
	hook := test.NewGlobal()
	defer hook.Reset()

	tests := []struct {
		name    string
		query   string
		logLine string
	}{
		{"missing credential", "", "WS Handler: Missing credential"},
		{"invalid credential", "?token=garbage", "WS Handler: Invalid credential"},
		{"unknown principal", "?token=" + tokenFor(t, "ghost"), "WS Handler: Unknown principal"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			hook.Reset()
			conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, tt.query), nil)
			if conn != nil {
				conn.Close()
			}
			require.ErrorIs(t, err, websocket.ErrBadHandshake)
			require.NotNil(t, resp)
			assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

			// 三种情况响应相同，日志不同
			var messages []string
			for _, entry := range hook.AllEntries() {
				if entry.Level == logrus.WarnLevel {
					messages = append(messages, entry.Message)
				}
			}
			assert.Contains(t, messages, tt.logLine)
		})
	}
}

func TestHandleConnection_JoinAndPresence(t *testing.T) {
	srv, h := startServer(t)

	header := http.Header{}
	header.Set("Authorization", "Bearer "+tokenFor(t, "u1"))
	conn, resp, err := websocket.DefaultDialer.Dial(wsURL(srv, ""), header)
	require.NoError(t, err)
	defer conn.Close()
	assert.Equal(t, http.StatusSwitchingProtocols, resp.StatusCode)

	require.NoError(t, conn.WriteJSON(map[string]interface{}{
		"event": hub.EventJoinBoard,
		"data":  map[string]string{"boardId": "b1"},
	}))

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var frame struct {
		Event string `json:"event"`
		Data  struct {
			BoardID string              `json:"boardId"`
			Users   []hub.PresenceUser `json:"users"`
		} `json:"data"`
	}
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, &frame))
	assert.Equal(t, hub.EventBoardPresence, frame.Event)
	assert.Equal(t, "b1", frame.Data.BoardID)
	assert.Equal(t, []hub.PresenceUser{{UserID: "u1", Username: "alice"}}, frame.Data.Users)

	// 关闭连接后在线记录被清除
	conn.Close()
	require.Eventually(t, func() bool { return len(h.Presence("b1")) == 0 }, 2*time.Second, 20*time.Millisecond)
}
