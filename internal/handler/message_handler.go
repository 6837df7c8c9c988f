package handler

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MohdAamirTahir/QuickChatBackend/internal/middleware"
	"github.com/MohdAamirTahir/QuickChatBackend/internal/model"
)

// MessageServiceInterface はメッセージハンドラーが必要とするサービスインターフェース。
type MessageServiceInterface interface {
	ListSidebarUsers(ctx context.Context, userID string) ([]*model.UserWithUnseen, error)
	GetConversation(ctx context.Context, userID, otherID string) ([]*model.Message, error)
	MarkSeen(ctx context.Context, userID, messageID string) error
	Send(ctx context.Context, senderID, receiverID, text, image string) (*model.Message, error)
}

// MessageHandler はメッセージ関連のHTTPハンドラー。
// すべてのエンドポイントは認証ミドルウェアの内側に配置する。
type MessageHandler struct {
	service MessageServiceInterface
}

// NewMessageHandler はMessageHandlerを生成する。
func NewMessageHandler(service MessageServiceInterface) *MessageHandler {
	return &MessageHandler{service: service}
}

// ListUsers はサイドバー表示用のユーザー一覧と未読数を返す。
// GET /api/messages/users
func (h *MessageHandler) ListUsers(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return
	}

	users, err := h.service.ListSidebarUsers(r.Context(), user.ID)
	if err != nil {
		writeError(w, err)
		return
	}

	list := make([]unseenUserJSON, 0, len(users))
	for _, u := range users {
		list = append(list, unseenUserJSON{
			userJSON:    toUserJSON(&u.User),
			UnseenCount: u.UnseenCount,
		})
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"users": list,
	})
}

// GetConversation は指定ユーザーとの会話を返し、未読を既読化する。
// GET /api/messages/{id}
func (h *MessageHandler) GetConversation(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return
	}

	otherID := chi.URLParam(r, "id")

	messages, err := h.service.GetConversation(r.Context(), user.ID, otherID)
	if err != nil {
		writeError(w, err)
		return
	}

	list := make([]messageJSON, 0, len(messages))
	for _, m := range messages {
		list = append(list, toMessageJSON(m))
	}

	writeJSON(w, http.StatusOK, map[string]any{
		"messages": list,
	})
}

// MarkSeen は指定メッセージを既読にする。
// PUT /api/messages/mark/{id}
func (h *MessageHandler) MarkSeen(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return
	}

	messageID := chi.URLParam(r, "id")

	if err := h.service.MarkSeen(r.Context(), user.ID, messageID); err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, nil)
}

// Send はメッセージを送信する。
// POST /api/messages/send/{id}
func (h *MessageHandler) Send(w http.ResponseWriter, r *http.Request) {
	user, err := middleware.UserFromContext(r.Context())
	if err != nil {
		middleware.WriteUnauthorized(w)
		return
	}

	receiverID := chi.URLParam(r, "id")

	var req struct {
		Text  string `json:"text"`
		Image string `json:"image"`
	}
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		middleware.WriteErrorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	msg, err := h.service.Send(r.Context(), user.ID, receiverID, req.Text, req.Image)
	if err != nil {
		writeError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, map[string]any{
		"message": toMessageJSON(msg),
	})
}
