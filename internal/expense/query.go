package expense

import (
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/hitoshi/kakeibo/internal/model"
	"github.com/hitoshi/kakeibo/internal/repository"
)

// 一覧取得のページ指定の既定値。
const (
	DefaultPage  = 1
	DefaultLimit = 10
)

// ListQuery は一覧取得の条件。
type ListQuery struct {
	Filter model.ExpenseFilter
	Sort   []model.SortField
	Page   int
	Limit  int
}

// ParseListQuery はクエリパラメータから一覧取得の条件を構築する。
//
// page, limitは正の整数で、limitはmaxLimitで頭打ちにする（maxLimitが0以下なら制限なし）。
// dateFrom/dateToは両方指定された場合のみ条件に含める。日付のみのdateToはその日の終わりまでを含む。
// sortは "-date amount" のように空白またはカンマ区切りで指定し、先頭の - は降順を表す。
func ParseListQuery(values url.Values, maxLimit int) (ListQuery, error) {
	q := ListQuery{
		Filter: model.ExpenseFilter{
			Category:      strings.TrimSpace(values.Get("category")),
			PaymentMethod: strings.TrimSpace(values.Get("paymentMethod")),
		},
		Page:  DefaultPage,
		Limit: DefaultLimit,
	}

	var err error
	if q.Page, err = parsePositive(values, "page", DefaultPage); err != nil {
		return q, err
	}
	if q.Limit, err = parsePositive(values, "limit", DefaultLimit); err != nil {
		return q, err
	}
	if maxLimit > 0 && q.Limit > maxLimit {
		q.Limit = maxLimit
	}

	from, err := parseQueryDate(values, "dateFrom", false)
	if err != nil {
		return q, err
	}
	to, err := parseQueryDate(values, "dateTo", true)
	if err != nil {
		return q, err
	}
	// 片方のみの指定は無視する
	if from != nil && to != nil {
		q.Filter.DateFrom = from
		q.Filter.DateTo = to
	}

	if q.Sort, err = ParseSort(values.Get("sort")); err != nil {
		return q, err
	}

	return q, nil
}

// ParseSort は並び順の指定文字列を解釈する。空文字列の場合は日付の降順となる。
func ParseSort(raw string) ([]model.SortField, error) {
	tokens := strings.FieldsFunc(raw, func(r rune) bool {
		return r == ',' || r == ' '
	})
	if len(tokens) == 0 {
		return model.DefaultSort, nil
	}

	fields := make([]model.SortField, 0, len(tokens))
	for _, tok := range tokens {
		sf := model.SortField{Field: tok}
		switch tok[0] {
		case '-':
			sf.Field, sf.Desc = tok[1:], true
		case '+':
			sf.Field = tok[1:]
		}
		if !repository.IsSortableField(sf.Field) {
			return nil, model.NewInvalidQueryError("sort", raw)
		}
		fields = append(fields, sf)
	}
	return fields, nil
}

func parsePositive(values url.Values, key string, def int) (int, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return def, nil
	}
	n, err := strconv.Atoi(raw)
	if err != nil || n < 1 {
		return 0, model.NewInvalidQueryError(key, raw)
	}
	return n, nil
}

// parseQueryDate は日付パラメータを解釈する。未指定の場合はnilを返す。
// endOfDayがtrueで日付のみが指定された場合は、その日の最終時刻を返す。
func parseQueryDate(values url.Values, key string, endOfDay bool) (*time.Time, error) {
	raw := strings.TrimSpace(values.Get(key))
	if raw == "" {
		return nil, nil
	}
	t, err := model.ParseDate(raw)
	if err != nil {
		return nil, model.NewInvalidQueryError(key, raw)
	}
	if endOfDay && model.IsDateOnly(raw) {
		t = t.Add(24*time.Hour - time.Nanosecond)
	}
	return &t, nil
}
