// Package metrics はPrometheusメトリクスの収集と公開を提供する。
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// MetricsCollector はメトリクス収集のインターフェース。
// サービス層・ミドルウェア・ワーカーから利用する。
type MetricsCollector interface {
	RecordExpensesCreated(count int)
	RecordExpensesImported(count int)
	RecordImportFailure(reason string)
	RecordExpensesDeleted(count int)
	RecordImportLogsPurged(count int)
	RecordHTTPStatus(statusCode int)
	RecordRequestLatency(duration time.Duration)
}

// Collector はPrometheusメトリクスを収集する実装。
type Collector struct {
	expensesCreated  prometheus.Counter
	expensesImported prometheus.Counter
	importFail       *prometheus.CounterVec
	expensesDeleted  prometheus.Counter
	importLogsPurged prometheus.Counter
	httpStatus       *prometheus.CounterVec
	requestLatency   prometheus.Histogram
}

// NewCollector は新しいCollectorを生成し、指定されたレジストリにメトリクスを登録する。
func NewCollector(reg prometheus.Registerer) *Collector {
	c := &Collector{
		expensesCreated: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kakeibo_expenses_created_total",
			Help: "個別登録された支出の合計数",
		}),
		expensesImported: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kakeibo_expenses_imported_total",
			Help: "CSV一括登録された支出の合計数",
		}),
		importFail: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kakeibo_import_fail_total",
			Help: "CSV一括登録の失敗数（理由別）",
		}, []string{"reason"}),
		expensesDeleted: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kakeibo_expenses_deleted_total",
			Help: "削除された支出の合計数",
		}),
		importLogsPurged: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "kakeibo_import_logs_purged_total",
			Help: "保持期間切れで削除された一括登録履歴の合計数",
		}),
		httpStatus: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "kakeibo_http_status_total",
			Help: "HTTPステータスコード別のレスポンス数",
		}, []string{"status_code"}),
		requestLatency: prometheus.NewHistogram(prometheus.HistogramOpts{
			Name:    "kakeibo_http_request_duration_seconds",
			Help:    "HTTPリクエストの処理時間（秒）",
			Buckets: prometheus.DefBuckets,
		}),
	}

	reg.MustRegister(
		c.expensesCreated,
		c.expensesImported,
		c.importFail,
		c.expensesDeleted,
		c.importLogsPurged,
		c.httpStatus,
		c.requestLatency,
	)

	return c
}

// RecordExpensesCreated は個別登録された支出数を記録する。
func (c *Collector) RecordExpensesCreated(count int) {
	c.expensesCreated.Add(float64(count))
}

// RecordExpensesImported はCSV一括登録された支出数を記録する。
func (c *Collector) RecordExpensesImported(count int) {
	c.expensesImported.Add(float64(count))
}

// RecordImportFailure はCSV一括登録の失敗を記録する。
func (c *Collector) RecordImportFailure(reason string) {
	c.importFail.WithLabelValues(reason).Inc()
}

// RecordExpensesDeleted は削除された支出数を記録する。
func (c *Collector) RecordExpensesDeleted(count int) {
	c.expensesDeleted.Add(float64(count))
}

// RecordImportLogsPurged は削除された一括登録履歴の件数を記録する。
func (c *Collector) RecordImportLogsPurged(count int) {
	c.importLogsPurged.Add(float64(count))
}

// RecordHTTPStatus はHTTPステータスコードを記録する。
func (c *Collector) RecordHTTPStatus(statusCode int) {
	c.httpStatus.WithLabelValues(strconv.Itoa(statusCode)).Inc()
}

// RecordRequestLatency はHTTPリクエストの処理時間を記録する。
func (c *Collector) RecordRequestLatency(duration time.Duration) {
	c.requestLatency.Observe(duration.Seconds())
}

// Handler はPrometheusスクレイプ用のHTTPハンドラーを返す。
func Handler(gatherer prometheus.Gatherer) http.Handler {
	return promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{})
}

// compile-time interface check
var _ MetricsCollector = (*Collector)(nil)
