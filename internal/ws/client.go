package ws

import (
	"log/slog"
	"time"

	"github.com/gorilla/websocket"
)

const (
	// writeWait は1回の書き込みに許容する時間。
	writeWait = 10 * time.Second
	// pongWait はpong応答を待つ時間。超過した場合は接続を切断する。
	pongWait = 60 * time.Second
	// pingInterval はpingを送る間隔。pongWaitより短くする必要がある。
	pingInterval = 54 * time.Second
	// sendBufferSize はクライアントごとの送信キューのサイズ。
	sendBufferSize = 256
)

// Client は1本のWebSocketコネクションを表す。
// connectionIDはトランスポート層で採番する不透明な識別子、
// userIDはハンドシェイク時に解決した申告ユーザーID（匿名の場合は空）。
type Client struct {
	hub          *Hub
	conn         *websocket.Conn
	send         chan []byte
	connectionID string
	userID       string
	addr         string
	createdAt    time.Time
}

// NewClient はClientを生成する。userIDは匿名コネクションの場合空文字列。
func NewClient(hub *Hub, conn *websocket.Conn, connectionID, userID, addr string) *Client {
	return &Client{
		hub:          hub,
		conn:         conn,
		send:         make(chan []byte, sendBufferSize),
		connectionID: connectionID,
		userID:       userID,
		addr:         addr,
		createdAt:    time.Now(),
	}
}

// ConnectionID はこのコネクションの識別子を返す。
func (c *Client) ConnectionID() string {
	return c.connectionID
}

// UserID はこのコネクションの申告ユーザーIDを返す。匿名の場合は空。
func (c *Client) UserID() string {
	return c.userID
}

// readPump はコネクションからの受信ループ。
// このシステムのクライアントはREST API経由でメッセージを送るため、
// 受信データは読み捨てる。読み取りは切断検知と制御フレーム
// （ping/pong/close）の処理のために必要。
// 終了時にHubへ切断を通知する。
func (c *Client) readPump() {
	defer func() {
		// Hub停止後はイベントループが受信しないため、ブロックを避ける
		select {
		case c.hub.unregister <- c:
		case <-c.hub.ctx.Done():
		}
		c.conn.Close()
	}()

	c.conn.SetReadLimit(c.hub.maxMessageLen)
	if err := c.conn.SetReadDeadline(time.Now().Add(pongWait)); err != nil {
		slog.Warn("failed to set read deadline", slog.String("addr", c.addr), slog.String("error", err.Error()))
		return
	}
	c.conn.SetPongHandler(func(string) error {
		return c.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		if _, _, err := c.conn.ReadMessage(); err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseNormalClosure,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
			) {
				slog.Warn("unexpected websocket close",
					slog.String("addr", c.addr),
					slog.String("error", err.Error()),
				)
			}
			return
		}
	}
}

// writePump は送信キューからコネクションへの書き込みループ。
// 定期的にpingを送り、コネクションの生存を維持する。
func (c *Client) writePump() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case payload, ok := <-c.send:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if !ok {
				// Hubがこのクライアントを閉じた
				c.conn.WriteMessage(websocket.CloseMessage, []byte{})
				return
			}
			if err := c.conn.WriteMessage(websocket.TextMessage, payload); err != nil {
				return
			}

		case <-ticker.C:
			if err := c.conn.SetWriteDeadline(time.Now().Add(writeWait)); err != nil {
				return
			}
			if err := c.conn.WriteMessage(websocket.PingMessage, nil); err != nil {
				return
			}
		}
	}
}
