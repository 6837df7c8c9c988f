// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/MohdAamirTahir/QuickChatBackend/internal/middleware"
	"github.com/MohdAamirTahir/QuickChatBackend/internal/model"
)

// userJSON はAPIレスポンス用のユーザー表現。
// 資格情報フィールドは含まない。
type userJSON struct {
	ID         string    `json:"id"`
	Email      string    `json:"email"`
	FullName   string    `json:"fullName"`
	Bio        string    `json:"bio"`
	ProfilePic string    `json:"profilePic"`
	CreatedAt  time.Time `json:"createdAt"`
}

// unseenUserJSON はサイドバー用のユーザーと未読数の表現。
type unseenUserJSON struct {
	userJSON
	UnseenCount int `json:"unseenCount"`
}

// messageJSON はAPIレスポンス用のメッセージ表現。
type messageJSON struct {
	ID         string    `json:"id"`
	SenderID   string    `json:"senderId"`
	ReceiverID string    `json:"receiverId"`
	Text       string    `json:"text"`
	Image      string    `json:"image"`
	Seen       bool      `json:"seen"`
	CreatedAt  time.Time `json:"createdAt"`
}

func toUserJSON(u *model.User) userJSON {
	return userJSON{
		ID:         u.ID,
		Email:      u.Email,
		FullName:   u.FullName,
		Bio:        u.Bio,
		ProfilePic: u.ProfilePic,
		CreatedAt:  u.CreatedAt,
	}
}

func toMessageJSON(m *model.Message) messageJSON {
	return messageJSON{
		ID:         m.ID,
		SenderID:   m.SenderID,
		ReceiverID: m.ReceiverID,
		Text:       m.Text,
		Image:      m.Image,
		Seen:       m.Seen,
		CreatedAt:  m.CreatedAt,
	}
}

// writeJSON は {success: true} を含むJSONレスポンスを書き込む。
// extraのキーはエンベロープ直下にマージされる。
func writeJSON(w http.ResponseWriter, statusCode int, extra map[string]any) {
	body := map[string]any{"success": true}
	for k, v := range extra {
		body[k] = v
	}

	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(body)
}

// writeError はエラーを適切なHTTPステータスと統一エンベロープに変換する。
// model.APIError以外のエラーは詳細をログにのみ記録し、クライアントには
// 一般的な500レスポンスを返す。
func writeError(w http.ResponseWriter, err error) {
	apiErr, ok := err.(*model.APIError)
	if !ok {
		slog.Error("request failed", slog.String("error", err.Error()))
		middleware.WriteInternalServerError(w)
		return
	}

	status := http.StatusBadRequest
	switch apiErr.Code {
	case model.ErrCodeInvalidCredential:
		status = http.StatusUnauthorized
	case model.ErrCodeEmailTaken:
		status = http.StatusConflict
	case model.ErrCodeUserNotFound, model.ErrCodeMessageNotFound:
		status = http.StatusNotFound
	}

	middleware.WriteErrorResponse(w, status, apiErr.Message)
}
