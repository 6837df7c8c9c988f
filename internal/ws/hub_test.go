package ws

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/MohdAamirTahir/QuickChatBackend/internal/model"
	"github.com/MohdAamirTahir/QuickChatBackend/internal/presence"
)

// --- モック定義 ---

type mockAuthenticator struct {
	authenticateFn func(ctx context.Context, rawHeaderValue string) (*model.User, error)
}

func (m *mockAuthenticator) Authenticate(ctx context.Context, rawHeaderValue string) (*model.User, error) {
	if m.authenticateFn != nil {
		return m.authenticateFn(ctx, rawHeaderValue)
	}
	return nil, context.Canceled
}

var _ Authenticator = (*mockAuthenticator)(nil)

// --- テストヘルパー ---

// newTestHub はテスト用のHubとWebSocketサーバーを起動する。
func newTestHub(t *testing.T, auth Authenticator) (*Hub, *presence.Registry, *httptest.Server) {
	t.Helper()

	registry := presence.NewRegistry()
	hub := NewHub(registry, nil, 4096)
	go hub.Run()

	handler := NewHandler(hub, auth, "http://localhost:5173", 1024, 1024)
	server := httptest.NewServer(handler)

	t.Cleanup(func() {
		server.Close()
		if err := hub.Shutdown(5 * time.Second); err != nil {
			t.Errorf("hub shutdown: %v", err)
		}
	})

	return hub, registry, server
}

// dial はテストサーバーへWebSocket接続する。
func dial(t *testing.T, server *httptest.Server, query string, header http.Header) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(server.URL, "http") + query
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	if err != nil {
		t.Fatalf("websocket dial failed: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEvent は次のイベントを読み取る。
func readEvent(t *testing.T, conn *websocket.Conn) Event {
	t.Helper()

	if err := conn.SetReadDeadline(time.Now().Add(3 * time.Second)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	_, payload, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read message: %v", err)
	}

	var event Event
	if err := json.Unmarshal(payload, &event); err != nil {
		t.Fatalf("unmarshal event: %v", err)
	}
	return event
}

// readOnlineUsers はgetOnlineUsersイベントを読み取り、ID一覧を返す。
func readOnlineUsers(t *testing.T, conn *websocket.Conn) []string {
	t.Helper()

	event := readEvent(t, conn)
	if event.Event != EventOnlineUsers {
		t.Fatalf("event = %q, want %q", event.Event, EventOnlineUsers)
	}

	raw, err := json.Marshal(event.Data)
	if err != nil {
		t.Fatalf("marshal data: %v", err)
	}
	var ids []string
	if err := json.Unmarshal(raw, &ids); err != nil {
		t.Fatalf("unmarshal online users: %v", err)
	}
	return ids
}

// waitForOnline はユーザーがオンラインになるまで待つ。
func waitForOnline(t *testing.T, registry *presence.Registry, userID string, want bool) {
	t.Helper()

	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if registry.IsOnline(userID) == want {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("user %q online = %v not reached", userID, want)
}

// --- テスト ---

func TestWebSocket_ConnectWithQueryParam_BroadcastsOnlineUsers(t *testing.T) {
	_, registry, server := newTestHub(t, &mockAuthenticator{})

	conn := dial(t, server, "?userId=user-a", nil)

	// 接続者本人にもオンライン一覧がブロードキャストされること
	online := readOnlineUsers(t, conn)
	if len(online) != 1 || online[0] != "user-a" {
		t.Errorf("online = %v, want [user-a]", online)
	}

	waitForOnline(t, registry, "user-a", true)
}

func TestWebSocket_AnonymousConnection_NotInPresence(t *testing.T) {
	_, registry, server := newTestHub(t, &mockAuthenticator{})

	// 申告ユーザーIDなしの接続はプレゼンスに記録されない
	dial(t, server, "", nil)

	// 別のユーザーが接続するとブロードキャストが発生する
	conn := dial(t, server, "?userId=user-b", nil)
	online := readOnlineUsers(t, conn)
	if len(online) != 1 || online[0] != "user-b" {
		t.Errorf("online = %v, want [user-b]", online)
	}
	if registry.Count() != 1 {
		t.Errorf("registry count = %d, want 1", registry.Count())
	}
}

func TestWebSocket_AuthorizationHeader_TakesPrecedenceOverQueryParam(t *testing.T) {
	auth := &mockAuthenticator{
		authenticateFn: func(ctx context.Context, raw string) (*model.User, error) {
			if raw != "Bearer valid-token" {
				t.Errorf("raw header = %q, want %q", raw, "Bearer valid-token")
			}
			return &model.User{ID: "verified-user"}, nil
		},
	}
	_, registry, server := newTestHub(t, auth)

	header := http.Header{}
	header.Set("Authorization", "Bearer valid-token")
	conn := dial(t, server, "?userId=claimed-user", header)

	// 検証済みのヘッダーIDがクエリパラメータの申告値より優先されること
	online := readOnlineUsers(t, conn)
	if len(online) != 1 || online[0] != "verified-user" {
		t.Errorf("online = %v, want [verified-user]", online)
	}
	if registry.IsOnline("claimed-user") {
		t.Error("claimed user must not be in presence")
	}
}

func TestWebSocket_InvalidToken_FallsBackToQueryParam(t *testing.T) {
	auth := &mockAuthenticator{
		authenticateFn: func(ctx context.Context, raw string) (*model.User, error) {
			return nil, context.Canceled
		},
	}
	_, _, server := newTestHub(t, auth)

	// 不正なトークンでも接続は拒否されず、レガシー形式にフォールバックする
	header := http.Header{}
	header.Set("Authorization", "Bearer bad-token")
	conn := dial(t, server, "?userId=legacy-user", header)

	online := readOnlineUsers(t, conn)
	if len(online) != 1 || online[0] != "legacy-user" {
		t.Errorf("online = %v, want [legacy-user]", online)
	}
}

func TestWebSocket_DisconnectRemovesFromPresence(t *testing.T) {
	_, registry, server := newTestHub(t, &mockAuthenticator{})

	conn := dial(t, server, "?userId=user-a", nil)
	readOnlineUsers(t, conn)
	waitForOnline(t, registry, "user-a", true)

	conn.Close()

	waitForOnline(t, registry, "user-a", false)
}

func TestWebSocket_ReconnectThenStaleDisconnect_UserStaysOnline(t *testing.T) {
	_, registry, server := newTestHub(t, &mockAuthenticator{})

	// 1本目の接続
	conn1 := dial(t, server, "?userId=user-a", nil)
	readOnlineUsers(t, conn1)
	waitForOnline(t, registry, "user-a", true)

	// 2本目の接続（last-connection-wins: プレゼンスエントリが置き換わる）
	conn2 := dial(t, server, "?userId=user-a", nil)
	readOnlineUsers(t, conn2)

	connIDAfterReconnect, _ := registry.ConnectionID("user-a")

	// 古い接続の切断はガードによりno-opとなり、ユーザーはオンラインのまま
	conn1.Close()
	time.Sleep(200 * time.Millisecond)

	if !registry.IsOnline("user-a") {
		t.Fatal("user must stay online after stale disconnect")
	}
	currentConnID, _ := registry.ConnectionID("user-a")
	if currentConnID != connIDAfterReconnect {
		t.Errorf("connection id changed: %q -> %q", connIDAfterReconnect, currentConnID)
	}

	// 現在の接続の切断でオフラインになる
	conn2.Close()
	waitForOnline(t, registry, "user-a", false)
}

func TestSendToUser_DeliversToCurrentConnection(t *testing.T) {
	hub, registry, server := newTestHub(t, &mockAuthenticator{})

	conn := dial(t, server, "?userId=receiver", nil)
	readOnlineUsers(t, conn)
	waitForOnline(t, registry, "receiver", true)

	err := hub.SendToUser("receiver", Event{
		Event: EventNewMessage,
		Data:  map[string]any{"text": "hello"},
	})
	if err != nil {
		t.Fatalf("SendToUser() error = %v", err)
	}

	event := readEvent(t, conn)
	if event.Event != EventNewMessage {
		t.Errorf("event = %q, want %q", event.Event, EventNewMessage)
	}
}

func TestSendToUser_OfflineUser_IsNoop(t *testing.T) {
	hub, _, server := newTestHub(t, &mockAuthenticator{})

	// オンラインの観測者
	conn := dial(t, server, "?userId=observer", nil)
	readOnlineUsers(t, conn)

	// オフラインユーザーへの配信はエラーにならない
	if err := hub.SendToUser("offline-user", Event{Event: EventNewMessage}); err != nil {
		t.Fatalf("SendToUser() error = %v", err)
	}

	// 観測者には何も届かないこと
	if err := conn.SetReadDeadline(time.Now().Add(300 * time.Millisecond)); err != nil {
		t.Fatalf("set read deadline: %v", err)
	}
	if _, _, err := conn.ReadMessage(); err == nil {
		t.Error("observer must not receive a direct message for another user")
	}
}
