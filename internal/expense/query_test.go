package expense

import (
	"net/url"
	"testing"
	"time"

	"github.com/hitoshi/kakeibo/internal/model"
)

func TestParseListQuery_Defaults(t *testing.T) {
	q, err := ParseListQuery(url.Values{}, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Page != 1 || q.Limit != 10 {
		t.Errorf("page=%d limit=%d, want 1, 10", q.Page, q.Limit)
	}
	if len(q.Sort) != 1 || q.Sort[0].Field != "date" || !q.Sort[0].Desc {
		t.Errorf("default sort = %+v, want date desc", q.Sort)
	}
	if q.Filter.HasDateRange() || q.Filter.Category != "" || q.Filter.PaymentMethod != "" {
		t.Errorf("unexpected filter: %+v", q.Filter)
	}
}

func TestParseListQuery_FiltersAndPaging(t *testing.T) {
	v := url.Values{
		"category":      {"Food"},
		"paymentMethod": {"Card"},
		"page":          {"3"},
		"limit":         {"25"},
	}
	q, err := ParseListQuery(v, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Filter.Category != "Food" || q.Filter.PaymentMethod != "Card" {
		t.Errorf("filter = %+v", q.Filter)
	}
	if q.Page != 3 || q.Limit != 25 {
		t.Errorf("page=%d limit=%d", q.Page, q.Limit)
	}
}

func TestParseListQuery_LimitCapped(t *testing.T) {
	q, err := ParseListQuery(url.Values{"limit": {"5000"}}, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if q.Limit != 100 {
		t.Errorf("limit = %d, want capped 100", q.Limit)
	}
}

func TestParseListQuery_InvalidPaging_ReturnsInvalidQuery(t *testing.T) {
	for _, v := range []url.Values{
		{"page": {"0"}},
		{"page": {"-1"}},
		{"page": {"abc"}},
		{"limit": {"0"}},
		{"limit": {"1.5"}},
	} {
		_, err := ParseListQuery(v, 100)
		assertAPIErrorCode(t, err, model.ErrCodeInvalidQuery)
	}
}

func TestParseListQuery_SingleDateBound_Ignored(t *testing.T) {
	for _, v := range []url.Values{
		{"dateFrom": {"2024-01-01"}},
		{"dateTo": {"2024-12-31"}},
	} {
		q, err := ParseListQuery(v, 100)
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if q.Filter.HasDateRange() || q.Filter.DateFrom != nil || q.Filter.DateTo != nil {
			t.Errorf("single bound %v must be ignored, got %+v", v, q.Filter)
		}
	}
}

func TestParseListQuery_DateOnlyTo_CoversWholeDay(t *testing.T) {
	q, err := ParseListQuery(url.Values{
		"dateFrom": {"2024-01-01"},
		"dateTo":   {"2024-01-31"},
	}, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !q.Filter.HasDateRange() {
		t.Fatal("expected date range")
	}
	wantFrom := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	if !q.Filter.DateFrom.Equal(wantFrom) {
		t.Errorf("DateFrom = %v, want %v", q.Filter.DateFrom, wantFrom)
	}
	lastMoment := time.Date(2024, 1, 31, 23, 59, 59, 0, time.UTC)
	if q.Filter.DateTo.Before(lastMoment) {
		t.Errorf("DateTo = %v, want end of 2024-01-31", q.Filter.DateTo)
	}
	if !q.Filter.DateTo.Before(time.Date(2024, 2, 1, 0, 0, 0, 0, time.UTC)) {
		t.Errorf("DateTo = %v must stay within 2024-01-31", q.Filter.DateTo)
	}
}

func TestParseListQuery_TimestampTo_Kept(t *testing.T) {
	q, err := ParseListQuery(url.Values{
		"dateFrom": {"2024-01-01T00:00:00Z"},
		"dateTo":   {"2024-01-31T12:00:00Z"},
	}, 100)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	want := time.Date(2024, 1, 31, 12, 0, 0, 0, time.UTC)
	if !q.Filter.DateTo.Equal(want) {
		t.Errorf("DateTo = %v, want %v", q.Filter.DateTo, want)
	}
}

func TestParseListQuery_InvalidDate_ReturnsInvalidQuery(t *testing.T) {
	_, err := ParseListQuery(url.Values{"dateFrom": {"soon"}, "dateTo": {"2024-01-01"}}, 100)
	assertAPIErrorCode(t, err, model.ErrCodeInvalidQuery)
}

func TestParseSort(t *testing.T) {
	tests := []struct {
		raw  string
		want []model.SortField
	}{
		{raw: "-date", want: []model.SortField{{Field: "date", Desc: true}}},
		{raw: "amount", want: []model.SortField{{Field: "amount"}}},
		{raw: "+category", want: []model.SortField{{Field: "category"}}},
		{raw: "-amount date", want: []model.SortField{{Field: "amount", Desc: true}, {Field: "date"}}},
		{raw: "paymentMethod,-createdAt", want: []model.SortField{{Field: "paymentMethod"}, {Field: "createdAt", Desc: true}}},
	}
	for _, tt := range tests {
		t.Run(tt.raw, func(t *testing.T) {
			got, err := ParseSort(tt.raw)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if len(got) != len(tt.want) {
				t.Fatalf("got %+v, want %+v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("[%d] = %+v, want %+v", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestParseSort_UnknownField_ReturnsInvalidQuery(t *testing.T) {
	for _, raw := range []string{"user", "-password_hash", "-", "date;DROP"} {
		_, err := ParseSort(raw)
		assertAPIErrorCode(t, err, model.ErrCodeInvalidQuery)
	}
}
