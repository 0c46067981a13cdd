// Package app はアプリケーションの起動・依存関係のワイヤリング・シャットダウンを提供する。
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

	"github.com/hitoshi/notescope/internal/config"
	"github.com/hitoshi/notescope/internal/database"
	"github.com/hitoshi/notescope/internal/handler"
	"github.com/hitoshi/notescope/internal/logger"
	"github.com/hitoshi/notescope/internal/metrics"
	"github.com/hitoshi/notescope/internal/middleware"
	"github.com/hitoshi/notescope/internal/notes"
	"github.com/hitoshi/notescope/internal/osmapi"
	"github.com/hitoshi/notescope/internal/prefs"
	"github.com/hitoshi/notescope/internal/query"
	"github.com/hitoshi/notescope/internal/repository"
	"github.com/hitoshi/notescope/internal/security"
	"github.com/hitoshi/notescope/internal/userdir"
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
			port = "8080"
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
		slog.String("api_base_url", cfg.APIBaseURL),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、フィード監視をバックグラウンドで起動した上で
// HTTPサーバーを起動する。SIGINTまたはSIGTERMシグナルを受信すると
// グレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	// 1. セキュリティサービスの初期化
	ssrfGuard := security.NewSSRFGuard()

	// 起動時にノートAPIのベースURLを事前検証する
	if err := ssrfGuard.ValidateURL(cfg.APIBaseURL); err != nil {
		return fmt.Errorf("API base URL rejected: %w", err)
	}

	httpClient := ssrfGuard.NewSafeClient(cfg.FetchTimeout)
	sanitizer := security.NewCommentSanitizer()

	// 2. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. ノートAPIクライアントの初期化
	apiClient := osmapi.NewClient(httpClient, slog.Default(), cfg.OutboundRate, cfg.OutboundBurst)
	apiClient.SetBaseURL(cfg.APIBaseURL)

	// 4. 検索パイプラインのワイヤリング
	normalizer := notes.NewNormalizer(sanitizer)
	executor := query.NewExecutor(apiClient, normalizer, collector, slog.Default())
	directory := userdir.NewDirectory(apiClient, collector, slog.Default())
	session := notes.NewSession(executor, directory, apiClient, normalizer, collector, slog.Default())

	// 5. フィード監視の初期化
	watcher := osmapi.NewFeedWatcher(httpClient, slog.Default(), cfg.APIBaseURL, cfg.FeedBBox, cfg.FeedInterval)

	// 6. 設定ストアの初期化（DATABASE_URL未設定の場合は無効化）
	var prefService handler.PrefServiceInterface
	if cfg.DatabaseURL != "" {
		db, err := database.Open(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()

		if err := db.Ping(); err != nil {
			return fmt.Errorf("failed to connect to database: %w", err)
		}
		slog.Info("database connection established")

		prefRepo := repository.NewPostgresPrefRepo(db)
		prefService = prefs.NewService(prefRepo)
	} else {
		slog.Info("DATABASE_URL not set, preference store disabled")
	}

	// 7. ルーターの構築
	rateLimiterCfg := middleware.DefaultRateLimiterConfig()
	rateLimiterCfg.SearchRate = middleware.PerMinute(cfg.RateLimitSearch)
	rateLimiterCfg.SearchBurst = cfg.RateLimitSearch
	rateLimiterCfg.CommentRate = middleware.PerMinute(cfg.RateLimitComment)
	rateLimiterCfg.CommentBurst = cfg.RateLimitComment
	rateLimiter := middleware.NewRateLimiter(rateLimiterCfg)
	defer rateLimiter.Stop()

	deps := &handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,

		SearchService:    session,
		UserResolver:     directory,
		ActivityProvider: watcher,
		PrefService:      prefService,

		MetricsHandler: metrics.Handler(registry),
	}

	router := handler.NewRouter(deps)

	// 8. HTTPサーバーの起動
	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 60 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	// フィード監視をバックグラウンドで起動
	go watcher.Start(ctx)

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
	cancel()
	session.Cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	if cfg.DatabaseURL == "" {
		return fmt.Errorf("DATABASE_URL is required for migrate")
	}

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

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
