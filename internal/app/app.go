package app

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/hitoshi/kakeibo/internal/auth"
	"github.com/hitoshi/kakeibo/internal/config"
	"github.com/hitoshi/kakeibo/internal/database"
	"github.com/hitoshi/kakeibo/internal/events"
	"github.com/hitoshi/kakeibo/internal/expense"
	"github.com/hitoshi/kakeibo/internal/handler"
	"github.com/hitoshi/kakeibo/internal/logger"
	"github.com/hitoshi/kakeibo/internal/metrics"
	"github.com/hitoshi/kakeibo/internal/middleware"
	"github.com/hitoshi/kakeibo/internal/repository"
	"github.com/hitoshi/kakeibo/internal/security"
	"github.com/hitoshi/kakeibo/internal/worker/cleanup"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
)

// dbConnectTimeout は起動時のDB疎通確認に許容する時間。
const dbConnectTimeout = 10 * time.Second

// shutdownTimeout はグレースフルシャットダウンの待ち時間。
const shutdownTimeout = 30 * time.Second

// Init はアプリケーションの初期化を行う。
// .envファイルと環境変数からConfigを読み込み、JSON構造化ログをセットアップする。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w, slog.LevelInfo)

	// 2. .envファイルの読み込み（ファイルがなければ環境変数のみを使う）
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	// 3. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	// 4. 設定されたログレベルで再セットアップ
	logger.SetupDefault(w, logger.ParseLevel(cfg.LogLevel))

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。SIGINTまたはSIGTERMで停止する。
func Run(w io.Writer, args []string) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()
	return run(ctx, w, args)
}

func run(ctx context.Context, w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	if cmd == CommandHelp {
		PrintUsage(w)
		return nil
	}

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(fmt.Sprintf("http://localhost:%s/health", port))
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("log_level", cfg.LogLevel),
	)

	switch cmd {
	case CommandWorker:
		return runWorker(ctx, cfg)
	case CommandMigrate:
		return runMigrate(w, cfg, args[1:])
	default:
		return runServe(ctx, cfg)
	}
}

// openDatabase はDB接続を開き、疎通を確認する。
func openDatabase(ctx context.Context, cfg *config.Config) (*sql.DB, error) {
	db, err := database.Connect(ctx, cfg.DatabaseURL, dbConnectTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	slog.Info("database connection established",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)
	return db, nil
}

// newPublisher はAMQP_URLが設定されていればRabbitMQへ、未設定なら破棄するPublisherを返す。
func newPublisher(cfg *config.Config) (events.Publisher, error) {
	if cfg.AMQPURL == "" {
		slog.Info("event publishing disabled (AMQP_URL not set)")
		return events.NopPublisher{}, nil
	}
	pub, err := events.NewAMQPPublisher(cfg.AMQPURL, cfg.AMQPExchange)
	if err != nil {
		return nil, fmt.Errorf("failed to create event publisher: %w", err)
	}
	slog.Info("event publishing enabled", slog.String("exchange", cfg.AMQPExchange))
	return pub, nil
}

// buildRouter は全依存関係をワイヤリングし、HTTPハンドラーを構築する。
// 返されるRateLimiterは呼び出し側で停止すること。
func buildRouter(cfg *config.Config, db *sql.DB, publisher events.Publisher, collector *metrics.Collector, gatherer prometheus.Gatherer) (http.Handler, *middleware.RateLimiter) {
	// 1. リポジトリの初期化
	userRepo := repository.NewPostgresUserRepo(db)
	expenseRepo := repository.NewPostgresExpenseRepo(db)
	importRepo := repository.NewPostgresImportRepo(db)

	// 2. ドメインサービスの初期化
	tokens := auth.NewTokenManager(cfg.JWTSecret, cfg.JWTTTL)
	authService := auth.NewService(userRepo, tokens, auth.ServiceConfig{BcryptCost: cfg.BcryptCost})
	expenseService := expense.NewService(
		expenseRepo, importRepo, security.NewTextSanitizer(), publisher, collector,
	)

	// 3. ルーターの構築
	rateLimiter := middleware.NewRateLimiter(middleware.PerMinuteRateLimiterConfig(
		cfg.RateLimitGeneral, cfg.RateLimitBulkImport, cfg.RateLimitAuth,
	))

	deps := &handler.RouterDeps{
		TokenVerifier:     tokens,
		RateLimiter:       rateLimiter,
		HTTPRecorder:      collector,
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,

		AuthService: authService,
		UserService: authService,

		ExpenseService: expenseService,
		ExpenseConfig: handler.ExpenseHandlerConfig{
			BulkMaxSize:    cfg.BulkMaxSize,
			MaxListLimit:   cfg.ListMaxLimit,
			ReportLocation: cfg.ReportLocation,
		},

		HealthChecker: db,
		Gatherer:      gatherer,
	}

	return handler.NewRouter(deps), rateLimiter
}

// runServe はAPIサーバーモードで起動する。
// DB接続を開き、全依存関係をワイヤリングし、HTTPサーバーを起動する。
// ctxがキャンセルされるとグレースフルシャットダウンを行う。
func runServe(ctx context.Context, cfg *config.Config) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	publisher, err := newPublisher(cfg)
	if err != nil {
		return err
	}
	defer publisher.Close()

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)
	router, rateLimiter := buildRouter(cfg, db, publisher, collector, prometheus.DefaultGatherer)
	defer rateLimiter.Stop()

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		slog.Info("API server starting", slog.String("addr", server.Addr))
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("server listen error: %w", err)
		}
		return nil
	case <-ctx.Done():
	}

	slog.Info("shutting down API server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runWorker はワーカーモードで起動する。
// 取込ログのクリーンアップジョブを起動直後と24時間ごとに実行し、ctxのキャンセルで停止する。
func runWorker(ctx context.Context, cfg *config.Config) error {
	db, err := openDatabase(ctx, cfg)
	if err != nil {
		return err
	}
	defer db.Close()

	collector := metrics.NewCollector(prometheus.DefaultRegisterer)
	job := cleanup.NewCleanupJob(db, slog.Default(), collector, cfg.ImportLogRetentionDays)

	slog.Info("worker starting",
		slog.Int("retention_days", job.RetentionDays),
		slog.Duration("interval", cleanup.DefaultInterval),
	)

	job.Start(ctx, cleanup.DefaultInterval)

	slog.Info("worker stopped gracefully")
	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// 引数なしまたは"up"で未適用分をすべて適用し、"down [N]"で直近N件（既定1件）を取り消し、
// "version"で現在のバージョンを表示する。
func runMigrate(w io.Writer, cfg *config.Config, args []string) error {
	action := "up"
	if len(args) > 0 {
		action = args[0]
	}

	slog.Info("running database migrations",
		slog.String("action", action),
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	switch action {
	case "up":
		version, err := database.RunMigrations(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("migration failed: %w", err)
		}
		slog.Info("database migrations completed successfully", slog.Uint64("version", uint64(version)))
		return nil

	case "down":
		steps := 1
		if len(args) > 1 {
			n, err := strconv.Atoi(args[1])
			if err != nil || n <= 0 {
				return fmt.Errorf("invalid rollback steps %q: must be a positive integer", args[1])
			}
			steps = n
		}
		version, err := database.RollbackMigrations(cfg.DatabaseURL, steps)
		if err != nil {
			return fmt.Errorf("rollback failed: %w", err)
		}
		slog.Info("database migrations rolled back",
			slog.Int("steps", steps),
			slog.Uint64("version", uint64(version)),
		)
		return nil

	case "version":
		status, err := database.CurrentMigration(cfg.DatabaseURL)
		if err != nil {
			return fmt.Errorf("failed to read migration version: %w", err)
		}
		fmt.Fprintf(w, "version=%d dirty=%t\n", status.Version, status.Dirty)
		return nil

	default:
		return fmt.Errorf("unknown migrate action %q (want up, down or version)", action)
	}
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(healthURL string) error {
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(healthURL)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLのパスワードをマスクする。
// URLとして解釈できない場合は全体を伏せる。
func maskDatabaseURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.Host == "" {
		return "***"
	}
	return u.Redacted()
}
