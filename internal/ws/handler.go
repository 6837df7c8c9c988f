package ws

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/MohdAamirTahir/QuickChatBackend/internal/model"
)

// Authenticator は資格情報からユーザーを解決するインターフェース。
// auth.Serviceの部分集合として定義する。
type Authenticator interface {
	Authenticate(ctx context.Context, rawHeaderValue string) (*model.User, error)
}

// Handler はWebSocketアップグレードとハンドシェイク時の
// ユーザーID解決を行うHTTPハンドラー。
type Handler struct {
	hub      *Hub
	auth     Authenticator
	upgrader websocket.Upgrader
}

// NewHandler はHandlerを生成する。
// allowedOriginにはCORSで許可するフロントエンドのオリジンを指定する。
func NewHandler(hub *Hub, auth Authenticator, allowedOrigin string, readBuffer, writeBuffer int) *Handler {
	return &Handler{
		hub:  hub,
		auth: auth,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  readBuffer,
			WriteBufferSize: writeBuffer,
			CheckOrigin: func(r *http.Request) bool {
				origin := r.Header.Get("Origin")
				// Originなし（非ブラウザクライアント）は許可する
				return origin == "" || origin == allowedOrigin
			},
		},
	}
}

// ServeHTTP はWebSocketハンドシェイクを処理する。
// GET /ws
//
// 申告ユーザーIDは次の2つの形式で受け付ける:
//
//  1. アップグレードリクエストのAuthorization: Bearerヘッダー（正式。
//     認証ゲートで検証し、解決済みユーザーのIDを使用する）
//  2. userIdクエリパラメータ（レガシー互換。申告値をそのまま使用する）
//
// 両方が指定された場合はヘッダーを優先する。クエリ文字列はログに
// 残ることがあるため、ヘッダー形式を正式な方式とする。
// どちらもない場合は匿名コネクションとして扱い、プレゼンスには
// 記録しない。不正なトークンも接続自体は拒否せず、レガシー形式
// または匿名にフォールバックする。
func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	userID := h.resolveHandshakeIdentity(r)

	conn, err := h.upgrader.Upgrade(w, r, nil)
	if err != nil {
		// Upgradeが失敗した時点でレスポンスは書き込み済み
		slog.Warn("websocket upgrade failed",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
		return
	}

	client := NewClient(h.hub, conn, uuid.NewString(), userID, r.RemoteAddr)
	h.hub.Register(client)
}

// resolveHandshakeIdentity はハンドシェイクリクエストから申告ユーザーIDを
// 解決する。解決できない場合は空文字列（匿名）を返す。
func (h *Handler) resolveHandshakeIdentity(r *http.Request) string {
	if raw := r.Header.Get("Authorization"); raw != "" {
		user, err := h.auth.Authenticate(r.Context(), raw)
		if err == nil {
			return user.ID
		}
		// 検証失敗はコネクション自体には致命的でない
		slog.Warn("websocket handshake token rejected",
			slog.String("remote_addr", r.RemoteAddr),
			slog.String("error", err.Error()),
		)
	}

	return r.URL.Query().Get("userId")
}
