package auth

import "errors"

// 認証失敗の内部分類。
// 3種類はログ・メトリクス上でのみ区別し、HTTPレスポンスでは
// 統一の401レスポンスに変換する（ユーザー列挙を防ぐため）。
var (
	// ErrUnauthenticated は資格情報が提示されなかったことを示す。
	ErrUnauthenticated = errors.New("missing credential")

	// ErrInvalidToken はトークンが不正・期限切れ・署名不一致であることを示す。
	ErrInvalidToken = errors.New("invalid token")

	// ErrUserNotFound はトークンは有効だが該当ユーザーが存在しないことを示す。
	ErrUserNotFound = errors.New("user not found")
)

// FailureKind は認証失敗の種別をログ用のラベル文字列に変換する。
// 分類できないエラーは"internal"を返す。
func FailureKind(err error) string {
	switch {
	case errors.Is(err, ErrUnauthenticated):
		return "unauthenticated"
	case errors.Is(err, ErrInvalidToken):
		return "invalid_token"
	case errors.Is(err, ErrUserNotFound):
		return "user_not_found"
	default:
		return "internal"
	}
}
