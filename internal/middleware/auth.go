// Package middleware はHTTPミドルウェアを提供する。
package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/MohdAamirTahir/QuickChatBackend/internal/auth"
	"github.com/MohdAamirTahir/QuickChatBackend/internal/model"
)

// contextKey はコンテキストに値を格納するための型安全なキー。
type contextKey string

// userContextKey はリクエストコンテキストに認証済みユーザーを格納するためのキー。
var userContextKey = contextKey("authenticated_user")

// Authenticator は資格情報からユーザーを解決するインターフェース。
// auth.Serviceの部分集合として定義する。
type Authenticator interface {
	Authenticate(ctx context.Context, rawHeaderValue string) (*model.User, error)
}

// AuthFailureRecorder は認証失敗のメトリクス記録インターフェース。
type AuthFailureRecorder interface {
	RecordAuthFailure(kind string)
}

// NewAuthMiddleware はAuthorizationヘッダーのBearerトークンを検証し、
// 解決した認証済みユーザーをリクエストコンテキストに注入する
// ミドルウェアを返す。
//
// 失敗種別（資格情報なし・トークン不正・ユーザー不在）はログと
// メトリクスでのみ区別し、クライアントには全種別で同一の
// 401レスポンスを返す。ユーザーの存在有無をレスポンスから
// 推測できてはならない。
// recorderはnilでもよい（メトリクス記録をスキップする）。
func NewAuthMiddleware(authenticator Authenticator, recorder AuthFailureRecorder) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			user, err := authenticator.Authenticate(r.Context(), r.Header.Get("Authorization"))
			if err != nil {
				kind := auth.FailureKind(err)
				slog.Warn("authentication failed",
					slog.String("kind", kind),
					slog.String("path", r.URL.Path),
					slog.String("error", err.Error()),
				)
				if recorder != nil {
					recorder.RecordAuthFailure(kind)
				}
				WriteUnauthorized(w)
				return
			}

			ctx := context.WithValue(r.Context(), userContextKey, user)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// UserFromContext はリクエストコンテキストから認証済みユーザーを取得する。
// 認証ミドルウェアを通過したリクエストでのみ有効。
func UserFromContext(ctx context.Context) (*model.User, error) {
	user, ok := ctx.Value(userContextKey).(*model.User)
	if !ok || user == nil {
		return nil, fmt.Errorf("authenticated user not found in context")
	}
	return user, nil
}

// ContextWithUser はコンテキストに認証済みユーザーを注入する。
// テストやミドルウェア以外のコンテキスト生成で使用する。
func ContextWithUser(ctx context.Context, user *model.User) context.Context {
	return context.WithValue(ctx, userContextKey, user)
}
