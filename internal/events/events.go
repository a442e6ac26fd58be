// Package events は支出の変更をドメインイベントとして外部に通知する。
package events

import (
	"context"
	"time"
)

// イベント種別。AMQPのルーティングキーとしても使用する。
const (
	TypeExpenseCreated   = "expense.created"
	TypeExpenseUpdated   = "expense.updated"
	TypeExpensesImported = "expenses.imported"
	TypeExpensesDeleted  = "expenses.deleted"
)

// ExpenseEvent は支出の変更を表すイベントメッセージ。
// 削除イベントでは実際に削除された件数のみが分かるため、ExpenseIDsは要求されたIDとなる。
type ExpenseEvent struct {
	Type       string    `json:"type"`
	UserID     string    `json:"user_id"`
	ExpenseIDs []string  `json:"expense_ids"`
	Count      int       `json:"count"`
	Timestamp  time.Time `json:"timestamp"`
}

// NewExpenseEvent はExpenseEventを生成する。CountはIDの件数で初期化する。
func NewExpenseEvent(eventType, userID string, ids []string, at time.Time) ExpenseEvent {
	if ids == nil {
		ids = []string{}
	}
	return ExpenseEvent{
		Type:       eventType,
		UserID:     userID,
		ExpenseIDs: ids,
		Count:      len(ids),
		Timestamp:  at.UTC(),
	}
}

// Publisher はイベントの送信先のインターフェース。
type Publisher interface {
	// Publish はイベントをルーティングキー付きで送信する。
	Publish(ctx context.Context, event ExpenseEvent) error
	// Close は送信先との接続を閉じる。
	Close() error
}

// NopPublisher はイベントを破棄するPublisher。AMQP_URL未設定時に使用する。
type NopPublisher struct{}

// Publish は何もしない。
func (NopPublisher) Publish(context.Context, ExpenseEvent) error { return nil }

// Close は何もしない。
func (NopPublisher) Close() error { return nil }

var _ Publisher = NopPublisher{}
