package middleware

import (
	"log/slog"
	"math"
	"net"
	"net/http"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// RateLimiterConfig はレート制限の設定を保持する。
type RateLimiterConfig struct {
	GeneralRate     rate.Limit    // API全般のレート（req/sec）。120/60 = 2 req/sec
	GeneralBurst    int           // API全般のバーストサイズ
	BulkImportRate  rate.Limit    // CSV一括登録のレート（req/sec）。10/60
	BulkImportBurst int           // CSV一括登録のバーストサイズ
	AuthRate        rate.Limit    // 登録・ログイン試行のレート（req/sec、IP単位）。20/60
	AuthBurst       int           // 登録・ログイン試行のバーストサイズ
	CleanupInterval time.Duration // 期限切れエントリのクリーンアップ間隔
}

// DefaultRateLimiterConfig はデフォルトのレート制限設定を返す。
// API全般 120 req/min/user、CSV一括登録 10 req/min/user、認証試行 20 req/min/IP
func DefaultRateLimiterConfig() RateLimiterConfig {
	return PerMinuteRateLimiterConfig(120, 10, 20)
}

// PerMinuteRateLimiterConfig は1分あたりのリクエスト数から設定を生成する。
// バーストサイズは1分あたりの上限と同じ値とする。
func PerMinuteRateLimiterConfig(general, bulkImport, authAttempts int) RateLimiterConfig {
	return RateLimiterConfig{
		GeneralRate:     rate.Limit(float64(general) / 60.0),
		GeneralBurst:    general,
		BulkImportRate:  rate.Limit(float64(bulkImport) / 60.0),
		BulkImportBurst: bulkImport,
		AuthRate:        rate.Limit(float64(authAttempts) / 60.0),
		AuthBurst:       authAttempts,
		CleanupInterval: 5 * time.Minute,
	}
}

// keyedLimiter はキーごとのレートリミッターとアクセス時刻を保持する。
type keyedLimiter struct {
	limiter    *rate.Limiter
	lastAccess time.Time
}

// limiterSet は同一設定のリミッターをキー（ユーザーIDまたはIP）ごとに管理する。
type limiterSet struct {
	rate  rate.Limit
	burst int

	mu       sync.Mutex
	limiters map[string]*keyedLimiter
}

func newLimiterSet(r rate.Limit, burst int) *limiterSet {
	return &limiterSet{
		rate:     r,
		burst:    burst,
		limiters: make(map[string]*keyedLimiter),
	}
}

// get はキーのリミッターを取得または作成し、最終アクセス時刻を更新する。
func (s *limiterSet) get(key string, now time.Time) *rate.Limiter {
	s.mu.Lock()
	defer s.mu.Unlock()

	kl, exists := s.limiters[key]
	if !exists {
		kl = &keyedLimiter{limiter: rate.NewLimiter(s.rate, s.burst)}
		s.limiters[key] = kl
	}
	kl.lastAccess = now
	return kl.limiter
}

// evict は最終アクセスからttlを超えたエントリを削除する。
func (s *limiterSet) evict(now time.Time, ttl time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for key, kl := range s.limiters {
		if now.Sub(kl.lastAccess) > ttl {
			delete(s.limiters, key)
		}
	}
}

func (s *limiterSet) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.limiters)
}

// RateLimiter はレート制限を管理する。
// ユーザー単位のAPI全般・CSV一括登録と、IP単位の認証試行の3種類を提供する。
type RateLimiter struct {
	config RateLimiterConfig

	general    *limiterSet
	bulkImport *limiterSet
	auth       *limiterSet

	stopCh   chan struct{}
	stopOnce sync.Once
}

// NewRateLimiter は新しいRateLimiterを生成する。
// バックグラウンドで期限切れエントリのクリーンアップを開始する。
func NewRateLimiter(config RateLimiterConfig) *RateLimiter {
	rl := &RateLimiter{
		config:     config,
		general:    newLimiterSet(config.GeneralRate, config.GeneralBurst),
		bulkImport: newLimiterSet(config.BulkImportRate, config.BulkImportBurst),
		auth:       newLimiterSet(config.AuthRate, config.AuthBurst),
		stopCh:     make(chan struct{}),
	}

	go rl.cleanupLoop()

	return rl
}

// Stop はクリーンアップのバックグラウンドゴルーチンを停止する。複数回呼び出しても安全。
func (rl *RateLimiter) Stop() {
	rl.stopOnce.Do(func() { close(rl.stopCh) })
}

// GeneralMiddleware はAPI全般のレート制限ミドルウェアを返す。
// リクエストコンテキストにユーザーIDが含まれている必要がある（AuthMiddlewareの後に配置）。
func (rl *RateLimiter) GeneralMiddleware() func(next http.Handler) http.Handler {
	return rl.perUser(rl.general, rl.config.GeneralRate, "general")
}

// BulkImportMiddleware はCSV一括登録専用のレート制限ミドルウェアを返す。
// API全般のレート制限とは独立に動作する。
func (rl *RateLimiter) BulkImportMiddleware() func(next http.Handler) http.Handler {
	return rl.perUser(rl.bulkImport, rl.config.BulkImportRate, "bulk_import")
}

// AuthAttemptMiddleware は登録・ログイン試行のレート制限ミドルウェアを返す。
// 未認証のリクエストが対象のため、クライアントIPごとに制限する。
func (rl *RateLimiter) AuthAttemptMiddleware() func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ip := clientIP(r)
			if !rl.auth.get(ip, time.Now()).Allow() {
				writeRateLimitResponse(w, rl.config.AuthRate)
				slog.Warn("rate limit exceeded",
					slog.String("client_ip", ip),
					slog.String("limit_type", "auth_attempt"),
				)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func (rl *RateLimiter) perUser(set *limiterSet, r rate.Limit, limitType string) func(next http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
			userID, err := UserIDFromContext(req.Context())
			if err != nil {
				WriteUnauthorized(w, false)
				return
			}

			if !set.get(userID, time.Now()).Allow() {
				writeRateLimitResponse(w, r)
				slog.Warn("rate limit exceeded",
					slog.String("user_id", userID),
					slog.String("limit_type", limitType),
				)
				return
			}

			next.ServeHTTP(w, req)
		})
	}
}

// GeneralLimiterCount は現在管理されているAPI全般リミッターのエントリ数を返す。
// テストおよびメトリクス用。
func (rl *RateLimiter) GeneralLimiterCount() int {
	return rl.general.len()
}

// BulkImportLimiterCount は現在管理されているCSV一括登録リミッターのエントリ数を返す。
func (rl *RateLimiter) BulkImportLimiterCount() int {
	return rl.bulkImport.len()
}

// AuthLimiterCount は現在管理されている認証試行リミッターのエントリ数を返す。
func (rl *RateLimiter) AuthLimiterCount() int {
	return rl.auth.len()
}

// cleanupLoop はバックグラウンドで期限切れエントリを定期的にクリーンアップする。
func (rl *RateLimiter) cleanupLoop() {
	ticker := time.NewTicker(rl.config.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			rl.cleanup(time.Now())
		case <-rl.stopCh:
			return
		}
	}
}

// cleanup は最終アクセス時刻がCleanupIntervalの2倍を超えたエントリを削除する。
func (rl *RateLimiter) cleanup(now time.Time) {
	ttl := rl.config.CleanupInterval * 2
	rl.general.evict(now, ttl)
	rl.bulkImport.evict(now, ttl)
	rl.auth.evict(now, ttl)
}

// clientIP はRemoteAddrからホスト部分を取り出す。
// プロキシ配下ではchiのRealIPミドルウェアでRemoteAddrを書き換えておく。
func clientIP(r *http.Request) string {
	host, _, err := net.SplitHostPort(r.RemoteAddr)
	if err != nil {
		return r.RemoteAddr
	}
	return host
}

// writeRateLimitResponse は429 Too Many Requestsレスポンスを書き込む。
// Retry-Afterヘッダーにはトークンが補充されるまでの推定秒数を設定する。
func writeRateLimitResponse(w http.ResponseWriter, r rate.Limit) {
	retryAfterSec := 1
	if r > 0 {
		retryAfterSec = int(math.Ceil(1.0 / float64(r)))
	}
	WriteRateLimited(w, retryAfterSec)
}
