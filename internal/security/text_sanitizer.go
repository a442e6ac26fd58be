// Package security はアプリケーションのセキュリティ機能を提供する。
//
// TextSanitizer は支出の説明やカテゴリなど、ユーザーが入力した自由記述テキストから
// HTMLタグを除去する。保存されたテキストはクライアントでそのまま表示されるため、
// bluemondayのStrictPolicyでマークアップを一切通さない。
package security

import (
	"html"
	"strings"
	"unicode"

	"github.com/microcosm-cc/bluemonday"
)

// TextSanitizerService はプレーンテキスト用サニタイズ機能のインターフェースを定義する。
type TextSanitizerService interface {
	// Sanitize はテキストからHTMLタグと制御文字を除去し、前後の空白を取り除いて返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// textSanitizer はTextSanitizerServiceの実装。
// bluemondayのポリシーはスレッドセーフなため、1インスタンスを共有できる。
type textSanitizer struct {
	policy *bluemonday.Policy
}

// NewTextSanitizer はTextSanitizerServiceの新しいインスタンスを生成する。
func NewTextSanitizer() *textSanitizer {
	return &textSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はテキストをサニタイズする。
//
// StrictPolicyはタグを除去した上で & や ' をエンティティに変換するため、
// 最後にエスケープを戻してプレーンテキストとして保存できる形にする。
func (s *textSanitizer) Sanitize(raw string) string {
	if raw == "" {
		return ""
	}
	cleaned := html.UnescapeString(s.policy.Sanitize(raw))
	cleaned = strings.Map(func(r rune) rune {
		if r == '\t' {
			return ' '
		}
		if unicode.IsControl(r) {
			return -1
		}
		return r
	}, cleaned)
	return strings.TrimSpace(cleaned)
}
