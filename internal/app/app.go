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
	"strings"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/newswire/client"
	"github.com/hitoshi/newswire/internal/config"
	"github.com/hitoshi/newswire/internal/database"
	"github.com/hitoshi/newswire/internal/handler"
	"github.com/hitoshi/newswire/internal/ingest"
	"github.com/hitoshi/newswire/internal/logger"
	"github.com/hitoshi/newswire/internal/metrics"
	"github.com/hitoshi/newswire/internal/middleware"
	"github.com/hitoshi/newswire/internal/realtime"
	"github.com/hitoshi/newswire/internal/repository"
	"github.com/hitoshi/newswire/internal/security"
	"github.com/hitoshi/newswire/internal/worker/retention"
)

// retentionSweepInterval は保持期間クリーンアップの実行間隔。
const retentionSweepInterval = 24 * time.Hour

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

	// healthcheck と tail はDB設定を必要としない軽量サブコマンドのため、
	// フル初期化をスキップする
	switch cmd {
	case CommandHealthcheck:
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	case CommandTail:
		logger.SetupDefault(w)
		return runTail(os.Stdout)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.Int("source_count", len(cfg.Sources)),
	)

	switch cmd {
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// runServe は取り込みパイプラインとAPIサーバーを1プロセスで起動する。
// DB接続を開き、フェッチスケジューラ・配信ハブ・保持期間クリーン
// アップ・HTTPサーバーをワイヤリングする。SIGINTまたはSIGTERM
// シグナルを受信するとグレースフルシャットダウンを行う。
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

	// 2. メトリクスの初期化
	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	// 3. リポジトリとセキュリティサービスの初期化
	itemRepo := repository.NewPostgresItemRepo(db)
	ssrfGuard := security.NewSSRFGuard()
	sanitizer := security.NewSummarySanitizer()

	// 4. 取り込みパイプラインの初期化
	normalizer := ingest.NewNormalizer(sanitizer)
	detector := ingest.NewFeedDetector()
	fetcher := ingest.NewFetcher(
		itemRepo, normalizer, detector, ssrfGuard, collector,
		slog.Default(), cfg.FetchTimeout, cfg.FetchMaxSize,
	)

	// 5. リアルタイム配信の初期化
	hub := realtime.NewHub(collector, slog.Default())
	dispatcher := realtime.NewDispatcher(
		hub, slog.Default(), cfg.BroadcastFlushSize, cfg.BroadcastFlushInterval,
	)

	// 6. スケジューラと保持期間クリーンアップの初期化
	scheduler := ingest.NewScheduler(cfg.Sources, fetcher, dispatcher, slog.Default())
	retentionJob := retention.NewJob(itemRepo, collector, slog.Default(), cfg.RetentionDays)

	// 7. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(
		middleware.DefaultRateLimiterConfig(cfg.RateLimitPoll),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(handler.RouterDeps{
		ItemHandler:   handler.NewItemHandler(itemRepo, slog.Default(), cfg.ListDefaultLimit, cfg.ListMaxLimit),
		AdminHandler:  handler.NewAdminHandler(scheduler, slog.Default()),
		WSHandler:     handler.NewWSHandler(hub, slog.Default(), cfg.CORSAllowedOrigin),
		HealthHandler: handler.NewHealthHandler(db, slog.Default()),

		RateLimiter: rateLimiter,
		Logger:      slog.Default(),
		Gatherer:    registry,

		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		AdminToken:        cfg.AdminToken,
	})

	// 8. バックグラウンドワーカーの起動
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go dispatcher.Start(ctx)
	go scheduler.Start(ctx, cfg.FetchInterval)
	go retentionJob.Start(ctx, retentionSweepInterval)

	// 9. HTTPサーバーの起動
	server := &http.Server{
		Addr:        ":" + cfg.ServerPort,
		Handler:     router,
		ReadTimeout: 15 * time.Second,
		// WebSocket接続があるためWriteTimeoutは設定しない
		IdleTimeout: 60 * time.Second,
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
	slog.Info("shutting down...")

	// ワーカーを停止してからHTTPサーバーを閉じる
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer shutdownCancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("stopped gracefully")
	return nil
}

// runTail はクライアントモードで起動する。サーバーに接続して
// ポーリングとリアルタイム配信を統合し、表示リストの変化を
// 標準出力へ流し続ける。SIGINTまたはSIGTERMで停止する。
//
// 環境変数:
//   - BASE_URL: 接続先サーバー（デフォルト: http://localhost:8080）
//   - TAIL_SOURCES: 購読するソースIDのカンマ区切りリスト（省略可）
func runTail(out io.Writer) error {
	baseURL := os.Getenv("BASE_URL")
	if baseURL == "" {
		baseURL = "http://localhost:8080"
	}

	var sources []string
	if raw := os.Getenv("TAIL_SOURCES"); raw != "" {
		for _, s := range strings.Split(raw, ",") {
			if s = strings.TrimSpace(s); s != "" {
				sources = append(sources, s)
			}
		}
	}

	var live *client.Live
	live = client.NewLive(client.LiveConfig{
		BaseURL: baseURL,
		Sources: sources,
		OnUpdate: func(items []client.DisplayItem) {
			for _, item := range items {
				if !item.New {
					continue
				}
				fmt.Fprintf(out, "%s  [%s]  %s\n",
					item.PublishedAt.Format(time.RFC3339), item.Source, item.Title)
			}
			// 出力済みの新着を再出力しない
			live.Reconciler().ClearNew()
		},
	}, slog.Default())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-stop
		cancel()
	}()

	slog.Info("tail client starting",
		slog.String("base_url", baseURL),
		slog.Int("source_count", len(sources)),
	)

	return live.Run(ctx)
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
	httpClient := &http.Client{Timeout: 5 * time.Second}

	resp, err := httpClient.Get(url)
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
