package handler

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/MohdAamirTahir/QuickChatBackend/internal/middleware"
)

// HealthChecker はDB疎通確認のインターフェース。sql.DBが満たす。
type HealthChecker interface {
	PingContext(ctx context.Context) error
}

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Authenticator       middleware.Authenticator
	AuthFailureRecorder middleware.AuthFailureRecorder
	HTTPStatusRecorder  middleware.HTTPStatusRecorder
	CORSAllowedOrigin   string
	RateLimiter         *middleware.RateLimiter
	Logger              *slog.Logger

	// サービス
	AuthService    AuthServiceInterface
	MessageService MessageServiceInterface

	// リアルタイム
	WSHandler http.Handler

	// 運用
	HealthChecker  HealthChecker
	MetricsHandler http.Handler
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → [認証ルートのみ: Auth → RateLimit]
//
// サインアップ・ログイン・ステータス・WebSocketハンドシェイクは
// 認証ミドルウェアの外に配置する（WebSocketはハンドラー内で
// ハンドシェイク時の任意認証を行う）。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	if deps.Logger != nil {
		r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.HTTPStatusRecorder))
	}

	authHandler := NewAuthHandler(deps.AuthService)
	msgHandler := NewMessageHandler(deps.MessageService)

	// --- 認証不要のルート ---

	r.Get("/api/status", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.Write([]byte("Server is live"))
	})

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if deps.HealthChecker != nil {
			if err := deps.HealthChecker.PingContext(r.Context()); err != nil {
				middleware.WriteErrorResponse(w, http.StatusServiceUnavailable, "database unreachable")
				return
			}
		}
		writeJSON(w, http.StatusOK, nil)
	})

	if deps.MetricsHandler != nil {
		r.Handle("/metrics", deps.MetricsHandler)
	}

	// サインアップ・ログイン
	r.Post("/api/auth/signup", authHandler.Signup)
	r.Post("/api/auth/login", authHandler.Login)

	// WebSocketハンドシェイク（認証はハンドラー内で任意に行う）
	if deps.WSHandler != nil {
		r.Handle("/ws", deps.WSHandler)
	}

	// --- 認証が必要なルート ---
	// ミドルウェアスタック: Auth → RateLimit(General)
	r.Group(func(r chi.Router) {
		r.Use(middleware.NewAuthMiddleware(deps.Authenticator, deps.AuthFailureRecorder))
		r.Use(deps.RateLimiter.GeneralMiddleware())

		// プロフィール
		r.Route("/api/auth", func(r chi.Router) {
			r.Get("/check", authHandler.Check)
			r.Put("/update-profile", authHandler.UpdateProfile)
		})

		// メッセージ
		r.Route("/api/messages", func(r chi.Router) {
			r.Get("/users", msgHandler.ListUsers)
			r.Get("/{id}", msgHandler.GetConversation)
			r.Put("/mark/{id}", msgHandler.MarkSeen)

			// POST /api/messages/send/{id} - 送信専用レート制限を追加
			r.With(deps.RateLimiter.SendMiddleware()).Post("/send/{id}", msgHandler.Send)
		})
	})

	return r
}
