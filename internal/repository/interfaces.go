// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"

	"github.com/MohdAamirTahir/QuickChatBackend/internal/model"
)

// UserRepository はユーザーデータの永続化インターフェース。
type UserRepository interface {
	// FindByID は指定IDのユーザーを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.User, error)

	// FindByEmail は指定メールアドレスのユーザーを取得する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.User, error)

	// Create はユーザーを作成する。メールアドレスの一意制約違反はエラーを返す。
	Create(ctx context.Context, user *model.User) error

	// UpdateProfile はプロフィール項目（full_name, bio, profile_pic）を更新する。
	UpdateProfile(ctx context.Context, user *model.User) error

	// ListOthers は指定ユーザー以外の全ユーザーを作成日時の昇順で返す。
	// サイドバー表示用。
	ListOthers(ctx context.Context, userID string) ([]*model.User, error)
}

// MessageRepository はメッセージデータの永続化インターフェース。
type MessageRepository interface {
	// FindByID は指定IDのメッセージを取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Message, error)

	// Create はメッセージを作成する。
	Create(ctx context.Context, message *model.Message) error

	// ListConversation は2ユーザー間の全メッセージを作成日時の昇順で返す。
	ListConversation(ctx context.Context, userID, otherID string) ([]*model.Message, error)

	// MarkSeen は指定IDのメッセージを既読にする。
	MarkSeen(ctx context.Context, id string) error

	// MarkConversationSeen はotherIDからuserIDへ送られた全未読メッセージを既読にする。
	MarkConversationSeen(ctx context.Context, userID, otherID string) error

	// CountUnseenBySender はuserID宛ての未読メッセージ数を送信者ごとに集計して返す。
	CountUnseenBySender(ctx context.Context, userID string) (map[string]int, error)
}
