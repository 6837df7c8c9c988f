// Package model はドメインモデルを定義する。
package model

import "time"

// User はチャットサービスの利用ユーザーを表す。
// PasswordHashは認証時の照合にのみ使用し、APIレスポンスには含めない。
type User struct {
	ID           string
	Email        string
	FullName     string
	PasswordHash string
	Bio          string
	ProfilePic   string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// WithoutSecret は資格情報フィールドを除いたユーザーのコピーを返す。
// 認証ゲートを通過したユーザーはこの形でリクエストコンテキストに載せる。
func (u *User) WithoutSecret() *User {
	clone := *u
	clone.PasswordHash = ""
	return &clone
}
