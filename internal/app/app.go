// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"

	"github.com/MohdAamirTahir/QuickChatBackend/internal/auth"
	"github.com/MohdAamirTahir/QuickChatBackend/internal/config"
	"github.com/MohdAamirTahir/QuickChatBackend/internal/database"
	"github.com/MohdAamirTahir/QuickChatBackend/internal/handler"
	"github.com/MohdAamirTahir/QuickChatBackend/internal/logger"
	"github.com/MohdAamirTahir/QuickChatBackend/internal/message"
	"github.com/MohdAamirTahir/QuickChatBackend/internal/metrics"
	"github.com/MohdAamirTahir/QuickChatBackend/internal/middleware"
	"github.com/MohdAamirTahir/QuickChatBackend/internal/model"
	"github.com/MohdAamirTahir/QuickChatBackend/internal/presence"
	"github.com/MohdAamirTahir/QuickChatBackend/internal/repository"
	"github.com/MohdAamirTahir/QuickChatBackend/internal/security"
	"github.com/MohdAamirTahir/QuickChatBackend/internal/ws"
)

// Init はアプリケーションの初期化を行う。
// 環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "5000"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// wsNotifier はws.Hubをmessage.Notifierに適合させるアダプタ。
type wsNotifier struct {
	hub *ws.Hub
}

// NotifyNewMessage は受信者の現在のコネクションへnewMessageイベントを配信する。
func (n *wsNotifier) NotifyNewMessage(receiverID string, msg *model.Message) error {
	return n.hub.SendToUser(receiverID, ws.Event{
		Event: ws.EventNewMessage,
		Data: map[string]any{
			"id":         msg.ID,
			"senderId":   msg.SenderID,
			"receiverId": msg.ReceiverID,
			"text":       msg.Text,
			"image":      msg.Image,
			"seen":       msg.Seen,
			"createdAt":  msg.CreatedAt,
		},
	})
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーと
// WebSocket Hubを起動する。SIGINTまたはSIGTERMシグナルを
// 受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	if err := db.Ping(); err != nil {
		return fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 2. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	messageRepo := repository.NewPostgresMessageRepo(db)

	// 3. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 4. ドメインサービスの初期化
	sanitizer := security.NewContentSanitizer()

	tokenManager, err := auth.NewTokenManager(cfg.JWTSecret, cfg.TokenExpiry)
	if err != nil {
		return fmt.Errorf("failed to create token manager: %w", err)
	}
	authService := auth.NewService(userRepo, tokenManager, sanitizer)

	// 5. プレゼンスとWebSocket Hubの初期化
	// プレゼンスマップはここで生成した単一のRegistryが所有する
	presenceRegistry := presence.NewRegistry()
	hub := ws.NewHub(presenceRegistry, collector, cfg.WSMaxMessageLen)
	go hub.Run()

	wsHandler := ws.NewHandler(hub, authService, cfg.CORSAllowedOrigin, cfg.WSReadBuffer, cfg.WSWriteBuffer)

	messageService := message.NewService(
		messageRepo, userRepo, sanitizer, &wsNotifier{hub: hub}, collector,
	)

	// 6. レート制限の初期化
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	if cfg.RateLimitGeneral > 0 {
		rateLimiterCfg.GeneralRate = rateLimitPerMinute(cfg.RateLimitGeneral)
		rateLimiterCfg.GeneralBurst = cfg.RateLimitGeneral
	}
	if cfg.RateLimitSend > 0 {
		rateLimiterCfg.SendRate = rateLimitPerMinute(cfg.RateLimitSend)
		rateLimiterCfg.SendBurst = cfg.RateLimitSend
	}
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	// 7. ルーターの構築
	deps := &handler.RouterDeps{
		Authenticator:       authService,
		AuthFailureRecorder: collector,
		HTTPStatusRecorder:  collector,
		CORSAllowedOrigin:   cfg.CORSAllowedOrigin,
		RateLimiter:         rateLimiter,
		Logger:              slog.Default(),

		AuthService:    authService,
		MessageService: messageService,

		WSHandler: wsHandler,

		HealthChecker:  db,
		MetricsHandler: metrics.Handler(registry),
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 15 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	if err := hub.Shutdown(10 * time.Second); err != nil {
		slog.Warn("hub shutdown timeout", slog.String("error", err.Error()))
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// rateLimitPerMinute はreq/minの設定値をrate.Limit（req/sec）に変換する。
func rateLimitPerMinute(perMinute int) rate.Limit {
	return rate.Limit(float64(perMinute) / 60.0)
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
