package report

import (
	"testing"
	"time"

	"github.com/hitoshi/kakeibo/internal/model"
)

func exp(category string, cents int64, date time.Time) *model.Expense {
	return &model.Expense{Category: category, Amount: model.Money{Cents: cents}, Date: date}
}

func day(y int, m time.Month, d int) time.Time {
	return time.Date(y, m, d, 12, 0, 0, 0, time.UTC)
}

func TestByCategory_SumsPerCategory(t *testing.T) {
	got := ByCategory([]*model.Expense{
		exp("Food", 1000, day(2024, 1, 1)),
		exp("Transport", 250, day(2024, 1, 2)),
		exp("Food", 505, day(2024, 2, 1)),
	})

	if len(got) != 2 {
		t.Fatalf("categories = %d, want 2", len(got))
	}
	if got["Food"].Cents != 1505 || got["Transport"].Cents != 250 {
		t.Errorf("unexpected totals: %v", got)
	}
}

func TestByCategory_Empty(t *testing.T) {
	if got := ByCategory(nil); len(got) != 0 {
		t.Errorf("expected empty map, got %v", got)
	}
}

func TestByMonth_AlwaysTwelveEntries(t *testing.T) {
	for _, expenses := range [][]*model.Expense{
		nil,
		{exp("Food", 100, day(2024, 3, 5))},
	} {
		got := ByMonth(expenses, time.UTC)
		if len(got) != 12 {
			t.Fatalf("entries = %d, want 12", len(got))
		}
		for i, mt := range got {
			if mt.Month != time.Month(i+1).String() {
				t.Errorf("entry %d month = %q", i, mt.Month)
			}
		}
	}
}

func TestByMonth_SumsAndZeros(t *testing.T) {
	got := ByMonth([]*model.Expense{
		exp("Food", 100, day(2024, 3, 5)),
		exp("Food", 250, day(2023, 3, 20)),
		exp("Rent", 9000, day(2024, 12, 1)),
	}, time.UTC)

	want := map[string]int64{"March": 350, "December": 9000}
	for _, mt := range got {
		if mt.Total.Cents != want[mt.Month] {
			t.Errorf("%s = %d, want %d", mt.Month, mt.Total.Cents, want[mt.Month])
		}
	}
}

func TestByMonth_UsesLocation(t *testing.T) {
	// UTCでは1月31日15時、JSTでは2月1日0時
	boundary := time.Date(2024, 1, 31, 15, 0, 0, 0, time.UTC)
	jst := time.FixedZone("JST", 9*3600)

	utc := ByMonth([]*model.Expense{exp("Food", 100, boundary)}, time.UTC)
	local := ByMonth([]*model.Expense{exp("Food", 100, boundary)}, jst)

	if utc[0].Total.Cents != 100 || utc[1].Total.Cents != 0 {
		t.Errorf("UTC: January=%d February=%d", utc[0].Total.Cents, utc[1].Total.Cents)
	}
	if local[0].Total.Cents != 0 || local[1].Total.Cents != 100 {
		t.Errorf("JST: January=%d February=%d", local[0].Total.Cents, local[1].Total.Cents)
	}
}

func TestFilter(t *testing.T) {
	expenses := []*model.Expense{
		exp("Food", 100, day(2024, 1, 5)),
		exp("Food", 200, day(2024, 2, 5)),
		exp("Rent", 300, day(2024, 1, 1)),
	}

	tests := []struct {
		name     string
		category string
		month    string
		want     int
	}{
		{name: "no constraint", category: "", month: "", want: 3},
		{name: "all sentinel", category: "all", month: "ALL", want: 3},
		{name: "category only", category: "Food", month: "all", want: 2},
		{name: "month only", category: "all", month: "january", want: 2},
		{name: "short month", category: "", month: "Feb", want: 1},
		{name: "both", category: "Rent", month: "January", want: 1},
		{name: "no match", category: "Travel", month: "", want: 0},
		{name: "unknown month", category: "", month: "Smarch", want: 0},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Filter(expenses, tt.category, tt.month, time.UTC)
			if len(got) != tt.want {
				t.Errorf("len = %d, want %d", len(got), tt.want)
			}
		})
	}
}

func TestSummarize(t *testing.T) {
	s := Summarize([]*model.Expense{
		exp("Food", 750, day(2024, 1, 5)),
		exp("Bills", 250, day(2024, 2, 5)),
	}, time.UTC)

	if s.Count != 2 || s.Total.Cents != 1000 {
		t.Errorf("count=%d total=%d", s.Count, s.Total.Cents)
	}
	if len(s.ByCategory) != 2 || s.ByCategory[0].Category != "Bills" || s.ByCategory[1].Category != "Food" {
		t.Fatalf("categories not sorted by name: %+v", s.ByCategory)
	}
	if s.ByCategory[0].Percentage != 25 || s.ByCategory[1].Percentage != 75 {
		t.Errorf("percentages = %v, %v", s.ByCategory[0].Percentage, s.ByCategory[1].Percentage)
	}
	if len(s.ByMonth) != 12 {
		t.Errorf("byMonth entries = %d, want 12", len(s.ByMonth))
	}
}

func TestSummarize_ZeroTotal_NoDivision(t *testing.T) {
	s := Summarize([]*model.Expense{exp("Free", 0, day(2024, 1, 1))}, time.UTC)
	if s.ByCategory[0].Percentage != 0 {
		t.Errorf("percentage = %v, want 0", s.ByCategory[0].Percentage)
	}
}

func TestSummarize_MaximalAmountsStayPositive(t *testing.T) {
	s := Summarize([]*model.Expense{
		exp("Rent", model.MaxMoneyCents, day(2024, 3, 1)),
		exp("Rent", model.MaxMoneyCents, day(2024, 3, 2)),
		exp("Tax", model.MaxMoneyCents, day(2024, 4, 1)),
	}, time.UTC)

	if s.Total.Cents != 3*model.MaxMoneyCents {
		t.Errorf("total = %d, want %d", s.Total.Cents, 3*model.MaxMoneyCents)
	}
	if s.ByCategory[0].Category != "Rent" || s.ByCategory[0].Total.Cents != 2*model.MaxMoneyCents {
		t.Errorf("Rent = %+v", s.ByCategory[0])
	}
	if s.ByMonth[2].Total.Cents <= 0 {
		t.Errorf("March total = %d, want positive", s.ByMonth[2].Total.Cents)
	}
}

func TestParseMonth(t *testing.T) {
	if m, ok := ParseMonth("  September "); !ok || m != time.September {
		t.Errorf("ParseMonth(September) = %v, %v", m, ok)
	}
	if m, ok := ParseMonth("dec"); !ok || m != time.December {
		t.Errorf("ParseMonth(dec) = %v, %v", m, ok)
	}
	for _, bad := range []string{"", "13", "ju", "mayo"} {
		if _, ok := ParseMonth(bad); ok {
			t.Errorf("ParseMonth(%q) should fail", bad)
		}
	}
}
