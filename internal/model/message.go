package model

import "time"

// Message は2ユーザー間のダイレクトメッセージを表す。
// TextとImageは片方のみ設定される場合がある（テキストのみ、画像のみの送信）。
type Message struct {
	ID         string
	SenderID   string
	ReceiverID string
	Text       string
	Image      string
	Seen       bool
	CreatedAt  time.Time
}

// UserWithUnseen はサイドバー表示用のユーザーと未読メッセージ数の組。
type UserWithUnseen struct {
	User
	UnseenCount int
}
