package ws

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/MohdAamirTahir/QuickChatBackend/internal/presence"
)

// MetricsRecorder はWebSocket関連のメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordWSConnect()
	RecordWSDisconnect()
	RecordBroadcast()
	RecordDirectDelivery()
	SetOnlineUsers(count int)
}

// directDelivery は特定ユーザーの現在のコネクションへの配信要求。
type directDelivery struct {
	userID  string
	payload []byte
}

// Hub は全WebSocketコネクションのライフサイクルとイベント配信を管理する。
//
// クライアントの登録・解除・配信はすべてRunの単一ゴルーチンで
// 逐次処理する（シングルライターのアクター構成）。clientsと
// byConnectionへのアクセスはRunゴルーチンに限定されるため、
// ロックは不要。プレゼンスマップの整合性はpresence.Registryが
// 自身のロックで保証する。
type Hub struct {
	registry *presence.Registry
	metrics  MetricsRecorder

	clients      map[*Client]bool
	byConnection map[string]*Client

	register   chan *Client
	unregister chan *Client
	direct     chan directDelivery

	maxMessageLen int64

	ctx    context.Context
	cancel context.CancelFunc
	done   chan struct{}
}

// NewHub はHubを生成する。metricsはnilでもよい。
func NewHub(registry *presence.Registry, metrics MetricsRecorder, maxMessageLen int64) *Hub {
	ctx, cancel := context.WithCancel(context.Background())
	return &Hub{
		registry:      registry,
		metrics:       metrics,
		clients:       make(map[*Client]bool),
		byConnection:  make(map[string]*Client),
		register:      make(chan *Client),
		unregister:    make(chan *Client),
		direct:        make(chan directDelivery, sendBufferSize),
		maxMessageLen: maxMessageLen,
		ctx:           ctx,
		cancel:        cancel,
		done:          make(chan struct{}),
	}
}

// Register はクライアントをHubに登録する。
// アップグレードハンドラーから呼び出す。
func (h *Hub) Register(client *Client) {
	select {
	case h.register <- client:
	case <-h.ctx.Done():
	}
}

// SendToUser は指定ユーザーの現在のコネクションへイベントを配信する。
// ユーザーがオフラインの場合は何もしない（エラーにしない）。
// 配信はHubのイベントループ経由で非同期に行われ、呼び出し側を
// ブロックしない。
func (h *Hub) SendToUser(userID string, event Event) error {
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("failed to marshal event: %w", err)
	}

	select {
	case h.direct <- directDelivery{userID: userID, payload: payload}:
		return nil
	case <-h.ctx.Done():
		return fmt.Errorf("hub is shut down")
	default:
		return fmt.Errorf("hub delivery queue is full")
	}
}

// Run はHubのメインイベントループを開始する。
// 登録・解除・配信イベントを1本のゴルーチンで逐次処理するため、
// プレゼンスマップの変更とブロードキャストの間に他イベントが
// 割り込むことはない。別ゴルーチンで呼び出すこと。
func (h *Hub) Run() {
	defer close(h.done)

	for {
		select {
		case <-h.ctx.Done():
			h.closeAll()
			return

		case client := <-h.register:
			h.handleRegister(client)

		case client := <-h.unregister:
			h.handleUnregister(client)

		case delivery := <-h.direct:
			h.handleDirect(delivery)
		}
	}
}

// handleRegister はクライアントを登録し、申告ユーザーIDがある場合は
// プレゼンスマップを更新してオンライン一覧をブロードキャストする。
// ブロードキャストには接続してきた本人も含まれる。
func (h *Hub) handleRegister(client *Client) {
	h.clients[client] = true
	h.byConnection[client.connectionID] = client

	go client.writePump()
	go client.readPump()

	slog.Info("websocket client connected",
		slog.String("connection_id", client.connectionID),
		slog.String("user_id", client.userID),
		slog.Int("total_clients", len(h.clients)),
	)
	if h.metrics != nil {
		h.metrics.RecordWSConnect()
	}

	if online, changed := h.registry.Connect(client.userID, client.connectionID); changed {
		h.broadcastOnline(online)
	}
}

// handleUnregister はクライアントを解除する。このコネクションがまだ
// プレゼンスマップに記録されている場合のみエントリを削除して
// ブロードキャストする。より新しいコネクションに置き換えられて
// いた場合、切断イベントはno-opとなる。
func (h *Hub) handleUnregister(client *Client) {
	if _, ok := h.clients[client]; !ok {
		return
	}
	delete(h.clients, client)
	delete(h.byConnection, client.connectionID)
	close(client.send)

	slog.Info("websocket client disconnected",
		slog.String("connection_id", client.connectionID),
		slog.String("user_id", client.userID),
		slog.Int("total_clients", len(h.clients)),
	)
	if h.metrics != nil {
		h.metrics.RecordWSDisconnect()
	}

	online, removed := h.registry.Disconnect(client.userID, client.connectionID)
	if removed {
		h.broadcastOnline(online)
	} else if client.userID != "" {
		// 新しいコネクションが既に登録済み（遅延切断イベント）
		slog.Debug("stale disconnect ignored",
			slog.String("connection_id", client.connectionID),
			slog.String("user_id", client.userID),
		)
	}
}

// handleDirect は宛先ユーザーの現在のコネクションへペイロードを送る。
func (h *Hub) handleDirect(delivery directDelivery) {
	connID, ok := h.registry.ConnectionID(delivery.userID)
	if !ok {
		return
	}
	client, ok := h.byConnection[connID]
	if !ok {
		return
	}
	if h.trySend(client, delivery.payload) && h.metrics != nil {
		h.metrics.RecordDirectDelivery()
	}
}

// broadcastOnline はオンラインユーザーID一覧を全コネクションへ配信する。
// onlineはRegistryがロック保持中に取得したスナップショットなので、
// 半更新状態の集合が配信されることはない。
func (h *Hub) broadcastOnline(online []string) {
	payload, err := json.Marshal(Event{Event: EventOnlineUsers, Data: online})
	if err != nil {
		slog.Error("failed to marshal online users event", slog.String("error", err.Error()))
		return
	}

	for client := range h.clients {
		h.trySend(client, payload)
	}

	if h.metrics != nil {
		h.metrics.RecordBroadcast()
		h.metrics.SetOnlineUsers(len(online))
	}
}

// trySend はクライアントの送信キューへの投入を試みる。
// キューが満杯の場合は投入を諦めてfalseを返す。配信はベストエフォートで、
// 遅いクライアントがイベントループをブロックすることはない。
func (h *Hub) trySend(client *Client, payload []byte) bool {
	select {
	case client.send <- payload:
		return true
	default:
		slog.Warn("dropping event: client send buffer full",
			slog.String("connection_id", client.connectionID),
			slog.String("user_id", client.userID),
		)
		return false
	}
}

// closeAll は全クライアントのコネクションを閉じる。
func (h *Hub) closeAll() {
	for client := range h.clients {
		delete(h.clients, client)
		delete(h.byConnection, client.connectionID)
		close(client.send)
		client.conn.Close()
	}
}

// Shutdown はHubを停止し、イベントループの終了を待つ。
// タイムアウトした場合はエラーを返す。
func (h *Hub) Shutdown(timeout time.Duration) error {
	h.cancel()

	select {
	case <-h.done:
		return nil
	case <-time.After(timeout):
		return context.DeadlineExceeded
	}
}
