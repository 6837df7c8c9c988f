// Package message はダイレクトメッセージのドメインロジックを提供する。
package message

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/MohdAamirTahir/QuickChatBackend/internal/model"
	"github.com/MohdAamirTahir/QuickChatBackend/internal/repository"
)

// Notifier は新着メッセージのリアルタイム通知インターフェース。
// 受信者がオフラインの場合は何もしない実装を想定する。
type Notifier interface {
	NotifyNewMessage(receiverID string, message *model.Message) error
}

// ContentSanitizer はメッセージ本文のサニタイズインターフェース。
// security.ContentSanitizerServiceの部分集合として定義する。
type ContentSanitizer interface {
	Sanitize(raw string) string
}

// SentRecorder はメッセージ送信のメトリクス記録インターフェース。
type SentRecorder interface {
	RecordMessageSent()
}

// Service はダイレクトメッセージのサービス層。
// 永続化・既読管理・リアルタイム配信の調整を行う。
type Service struct {
	messages  repository.MessageRepository
	users     repository.UserRepository
	sanitizer ContentSanitizer
	notifier  Notifier
	recorder  SentRecorder
}

// NewService はServiceの新しいインスタンスを生成する。
// notifierとrecorderはnilでもよい（リアルタイム配信・メトリクス記録をスキップする）。
func NewService(
	messages repository.MessageRepository,
	users repository.UserRepository,
	sanitizer ContentSanitizer,
	notifier Notifier,
	recorder SentRecorder,
) *Service {
	return &Service{
		messages:  messages,
		users:     users,
		sanitizer: sanitizer,
		notifier:  notifier,
		recorder:  recorder,
	}
}

// ListSidebarUsers はサイドバー表示用に、自分以外の全ユーザーと
// 各ユーザーからの未読メッセージ数を返す。
func (s *Service) ListSidebarUsers(ctx context.Context, userID string) ([]*model.UserWithUnseen, error) {
	users, err := s.users.ListOthers(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to list users: %w", err)
	}

	unseen, err := s.messages.CountUnseenBySender(ctx, userID)
	if err != nil {
		return nil, fmt.Errorf("failed to count unseen messages: %w", err)
	}

	result := make([]*model.UserWithUnseen, 0, len(users))
	for _, u := range users {
		result = append(result, &model.UserWithUnseen{
			User:        *u.WithoutSecret(),
			UnseenCount: unseen[u.ID],
		})
	}
	return result, nil
}

// GetConversation は相手ユーザーとの全メッセージを時系列で返し、
// 相手から自分への未読メッセージを既読にする。
func (s *Service) GetConversation(ctx context.Context, userID, otherID string) ([]*model.Message, error) {
	messages, err := s.messages.ListConversation(ctx, userID, otherID)
	if err != nil {
		return nil, fmt.Errorf("failed to list conversation: %w", err)
	}

	if err := s.messages.MarkConversationSeen(ctx, userID, otherID); err != nil {
		return nil, fmt.Errorf("failed to mark conversation seen: %w", err)
	}

	return messages, nil
}

// MarkSeen は指定メッセージを既読にする。
// 自分宛てのメッセージ以外は既読にできない。
func (s *Service) MarkSeen(ctx context.Context, userID, messageID string) error {
	msg, err := s.messages.FindByID(ctx, messageID)
	if err != nil {
		return fmt.Errorf("failed to find message: %w", err)
	}
	if msg == nil || msg.ReceiverID != userID {
		// 他人宛てのメッセージの存在は漏らさない
		return model.NewMessageNotFoundError(messageID)
	}

	if err := s.messages.MarkSeen(ctx, messageID); err != nil {
		return fmt.Errorf("failed to mark message seen: %w", err)
	}
	return nil
}

// Send はメッセージを永続化し、受信者がオンラインであれば
// リアルタイム配信する。本文と画像の両方が空の場合はエラーを返す。
func (s *Service) Send(ctx context.Context, senderID, receiverID, text, image string) (*model.Message, error) {
	text = s.sanitizer.Sanitize(text)
	if text == "" && image == "" {
		return nil, model.NewEmptyMessageError()
	}

	receiver, err := s.users.FindByID(ctx, receiverID)
	if err != nil {
		return nil, fmt.Errorf("failed to find receiver: %w", err)
	}
	if receiver == nil {
		return nil, model.NewUserNotFoundError()
	}

	msg := &model.Message{
		ID:         uuid.NewString(),
		SenderID:   senderID,
		ReceiverID: receiverID,
		Text:       text,
		Image:      image,
		CreatedAt:  time.Now(),
	}
	if err := s.messages.Create(ctx, msg); err != nil {
		return nil, fmt.Errorf("failed to create message: %w", err)
	}

	if s.recorder != nil {
		s.recorder.RecordMessageSent()
	}

	// リアルタイム配信はベストエフォート。失敗してもメッセージは
	// 永続化済みなので、エラーはログに記録するだけで送信は成功扱い。
	if s.notifier != nil {
		if err := s.notifier.NotifyNewMessage(receiverID, msg); err != nil {
			slog.Warn("realtime delivery failed",
				slog.String("message_id", msg.ID),
				slog.String("receiver_id", receiverID),
				slog.String("error", err.Error()),
			)
		}
	}

	return msg, nil
}
