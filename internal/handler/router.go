package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/hitoshi/kakeibo/internal/metrics"
	"github.com/hitoshi/kakeibo/internal/middleware"
	"github.com/prometheus/client_golang/prometheus"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	TokenVerifier     middleware.TokenVerifier
	RateLimiter       *middleware.RateLimiter
	HTTPRecorder      middleware.HTTPRecorder
	Logger            *slog.Logger
	CORSAllowedOrigin string

	// ユーザー
	AuthService AuthServiceInterface
	UserService UserServiceInterface

	// 支出
	ExpenseService ExpenseServiceInterface
	ExpenseConfig  ExpenseHandlerConfig

	// 運用
	HealthChecker HealthChecker
	Gatherer      prometheus.Gatherer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	RealIP → RequestID → Recovery → Logging → Metrics → SecurityHeaders → CORS
//	  /api/users/register, /api/users/login: AuthAttempt（IP単位）
//	  それ以外の/api: Auth(Bearer) → RateLimit(General) [→ RateLimit(BulkImport)]
func NewRouter(deps *RouterDeps) http.Handler {
	logger := deps.Logger
	if logger == nil {
		logger = slog.Default()
	}

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(middleware.NewRecoveryMiddleware(logger))
	r.Use(middleware.NewLoggingMiddleware(logger))
	if deps.HTTPRecorder != nil {
		r.Use(middleware.NewMetricsMiddleware(deps.HTTPRecorder))
	}
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))

	authHandler := NewAuthHandler(deps.AuthService)
	userHandler := NewUserHandler(deps.UserService)
	expenseHandler := NewExpenseHandler(deps.ExpenseService, deps.ExpenseConfig)

	// --- 認証不要のルート ---
	r.Get("/health", NewHealthHandler(deps.HealthChecker))
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	r.Route("/api", func(r chi.Router) {
		// 登録・ログインはIP単位で試行回数を制限する
		r.Group(func(r chi.Router) {
			r.Use(deps.RateLimiter.AuthAttemptMiddleware())
			r.Post("/users/register", authHandler.Register)
			r.Post("/users/login", authHandler.Login)
		})

		// --- 認証が必要なルート ---
		// ミドルウェアスタック: Auth → RateLimit(General)
		r.Group(func(r chi.Router) {
			r.Use(middleware.NewAuthMiddleware(deps.TokenVerifier))
			r.Use(deps.RateLimiter.GeneralMiddleware())

			r.Get("/users/profile", userHandler.Profile)

			r.Route("/expenses", func(r chi.Router) {
				r.Post("/", expenseHandler.CreateExpense)
				r.Get("/", expenseHandler.ListExpenses)
				r.Delete("/", expenseHandler.DeleteExpenses)

				// POST /api/expenses/bulk - CSV一括登録（一括登録専用レート制限を追加）
				r.With(deps.RateLimiter.BulkImportMiddleware()).Post("/bulk", expenseHandler.BulkCreateExpenses)

				r.Get("/summary", expenseHandler.SummarizeExpenses)
				r.Patch("/{id}", expenseHandler.UpdateExpense)
			})
		})
	})

	return r
}
