// Package ws はWebSocketによるリアルタイム配信層を提供する。
// HubとClientがトランスポートを管理し、プレゼンスの状態遷移は
// presence.Registryに委譲する。
package ws

// イベント名
const (
	// EventOnlineUsers はオンラインユーザーID一覧のブロードキャストイベント。
	EventOnlineUsers = "getOnlineUsers"
	// EventNewMessage は受信者への新着メッセージ配信イベント。
	EventNewMessage = "newMessage"
)

// Event はサーバーからクライアントへ送るWebSocketイベントのJSONフォーマット。
type Event struct {
	Event string `json:"event"`
	Data  any    `json:"data"`
}
