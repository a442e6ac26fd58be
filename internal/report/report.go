// Package report は取得済みの支出一覧からカテゴリ別・月別の集計を行う。
// ストアには問い合わせず、渡された支出のみを対象とする。
package report

import (
	"sort"
	"strings"
	"time"

	"github.com/hitoshi/kakeibo/internal/model"
)

// All は絞り込みを行わないことを表す指定値。
const All = "all"

// MonthTotal は1か月分の合計。
type MonthTotal struct {
	Month string      `json:"month"`
	Total model.Money `json:"total"`
}

// CategoryTotal は1カテゴリ分の合計と全体に占める割合（%）。
type CategoryTotal struct {
	Category   string      `json:"category"`
	Total      model.Money `json:"total"`
	Percentage float64     `json:"percentage"`
}

// Summary は支出一覧の集計結果。
type Summary struct {
	Count      int             `json:"count"`
	Total      model.Money     `json:"total"`
	ByCategory []CategoryTotal `json:"byCategory"`
	ByMonth    []MonthTotal    `json:"byMonth"`
}

// ByCategory はカテゴリごとの金額合計を返す。
func ByCategory(expenses []*model.Expense) map[string]model.Money {
	totals := make(map[string]model.Money)
	for _, e := range expenses {
		totals[e.Category] = totals[e.Category].Add(e.Amount)
	}
	return totals
}

// ByMonth は1月から12月までの月ごとの金額合計を返す。
// 支出がない月も0として含め、常に12要素となる。月はlocのタイムゾーンで判定する。
func ByMonth(expenses []*model.Expense, loc *time.Location) []MonthTotal {
	if loc == nil {
		loc = time.Local
	}
	var sums [12]model.Money
	for _, e := range expenses {
		m := e.Date.In(loc).Month()
		sums[m-1] = sums[m-1].Add(e.Amount)
	}

	out := make([]MonthTotal, 12)
	for i := range out {
		out[i] = MonthTotal{Month: time.Month(i + 1).String(), Total: sums[i]}
	}
	return out
}

// Filter はカテゴリと月で支出を絞り込む。
// 空文字列または "all" はその軸で絞り込まないことを表す。月は英語の月名（大文字小文字を区別しない）。
// 月名が不正な場合は何にも一致しない。
func Filter(expenses []*model.Expense, category, month string, loc *time.Location) []*model.Expense {
	if loc == nil {
		loc = time.Local
	}
	category = strings.TrimSpace(category)
	month = strings.TrimSpace(month)
	anyCategory := category == "" || strings.EqualFold(category, All)
	anyMonth := month == "" || strings.EqualFold(month, All)

	var wantMonth time.Month
	if !anyMonth {
		m, ok := ParseMonth(month)
		if !ok {
			return []*model.Expense{}
		}
		wantMonth = m
	}

	out := make([]*model.Expense, 0, len(expenses))
	for _, e := range expenses {
		if !anyCategory && e.Category != category {
			continue
		}
		if !anyMonth && e.Date.In(loc).Month() != wantMonth {
			continue
		}
		out = append(out, e)
	}
	return out
}

// ParseMonth は英語の月名（"March"、"mar"）を解釈する。
func ParseMonth(name string) (time.Month, bool) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return 0, false
	}
	for m := time.January; m <= time.December; m++ {
		full := strings.ToLower(m.String())
		if name == full || (len(name) == 3 && strings.HasPrefix(full, name)) {
			return m, true
		}
	}
	return 0, false
}

// Summarize は合計・カテゴリ別（カテゴリ名順）・月別の集計をまとめて返す。
func Summarize(expenses []*model.Expense, loc *time.Location) Summary {
	var total model.Money
	for _, e := range expenses {
		total = total.Add(e.Amount)
	}

	byCategory := ByCategory(expenses)
	categories := make([]CategoryTotal, 0, len(byCategory))
	for name, sum := range byCategory {
		ct := CategoryTotal{Category: name, Total: sum}
		if total.Cents > 0 {
			ct.Percentage = roundPercent(float64(sum.Cents) * 100 / float64(total.Cents))
		}
		categories = append(categories, ct)
	}
	sort.Slice(categories, func(i, j int) bool {
		return categories[i].Category < categories[j].Category
	})

	return Summary{
		Count:      len(expenses),
		Total:      total,
		ByCategory: categories,
		ByMonth:    ByMonth(expenses, loc),
	}
}

// roundPercent は小数第2位までに丸める。
func roundPercent(v float64) float64 {
	return float64(int64(v*100+0.5)) / 100
}
