package report

import (
	"os"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marllondevsec/pandacell/internal/models"
	"github.com/marllondevsec/pandacell/internal/store"
)

func dec(t *testing.T, s string) decimal.Decimal {
	t.Helper()
	d, err := decimal.NewFromString(s)
	if err != nil {
		t.Fatalf("bad decimal %q: %v", s, err)
	}
	return d
}

func day(t *testing.T, s string) time.Time {
	t.Helper()
	d, err := time.Parse(models.DateLayout, s)
	if err != nil {
		t.Fatalf("bad date %q: %v", s, err)
	}
	return d
}

func newTestAggregator(t *testing.T) (*Aggregator, *store.SalesLog) {
	t.Helper()
	dir := t.TempDir()
	log, err := store.NewSalesLog(dir, "PandaCell")
	if err != nil {
		t.Fatalf("NewSalesLog failed: %v", err)
	}
	return NewAggregator(log, dir, "PandaCell"), log
}

func appendSale(t *testing.T, log *store.SalesLog, date, sku, qty, price string) {
	t.Helper()
	q := dec(t, qty)
	p := dec(t, price)
	rec := models.SaleRecord{
		ID:        models.GenerateSaleID(),
		Timestamp: day(t, date).Add(10 * time.Hour),
		SKU:       sku,
		Quantity:  q,
		UnitPrice: p,
		LineTotal: q.Mul(p).Round(2),
	}
	if err := log.Append(date, rec); err != nil {
		t.Fatalf("Append failed: %v", err)
	}
}

func TestSummarizeExampleDay(t *testing.T) {
	agg, log := newTestAggregator(t)
	const date = "2026-08-20"
	appendSale(t, log, date, "A", "2", "5.00")
	appendSale(t, log, date, "B", "1", "12.50")
	appendSale(t, log, date, "A", "1", "5.00")

	s, err := agg.Summarize("Top sellers - day", day(t, date), day(t, date))
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if want := dec(t, "27.50"); !s.TotalRevenue.Equal(want) {
		t.Errorf("total revenue = %s, want %s", s.TotalRevenue, want)
	}
	if len(s.Top) != 2 {
		t.Fatalf("got %d ranked products, want 2", len(s.Top))
	}
	if s.Top[0].SKU != "A" {
		t.Errorf("top seller = %q, want A", s.Top[0].SKU)
	}
	if want := dec(t, "3"); !s.Top[0].Quantity.Equal(want) {
		t.Errorf("top quantity = %s, want 3", s.Top[0].Quantity)
	}
}

func TestSummarizeToleratesMissingDaysAndBadLines(t *testing.T) {
	agg, log := newTestAggregator(t)
	appendSale(t, log, "2026-08-18", "A", "1", "5.00")
	// 2026-08-19 has no log at all
	appendSale(t, log, "2026-08-20", "A", "1", "5.00")
	f, err := os.OpenFile(log.Path("2026-08-20"), os.O_APPEND|os.O_WRONLY, 0644)
	if err != nil {
		t.Fatalf("open log: %v", err)
	}
	if _, err := f.WriteString("corrupt | line\n"); err != nil {
		t.Fatalf("append corrupt line: %v", err)
	}
	f.Close()

	s, err := agg.Summarize("Top sellers - week", day(t, "2026-08-17"), day(t, "2026-08-21"))
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if want := dec(t, "10.00"); !s.TotalRevenue.Equal(want) {
		t.Errorf("total revenue = %s, want %s", s.TotalRevenue, want)
	}
}

func TestRenderIdempotent(t *testing.T) {
	agg, log := newTestAggregator(t)
	const date = "2026-08-20"
	appendSale(t, log, date, "A", "2", "5.00")
	appendSale(t, log, date, "B", "1", "12.50")

	render := func() string {
		s, err := agg.Summarize("Top sellers - week", day(t, "2026-08-16"), day(t, "2026-08-22"))
		if err != nil {
			t.Fatalf("Summarize failed: %v", err)
		}
		return Render(s)
	}
	first := render()
	second := render()
	if first != second {
		t.Errorf("renders differ:\n%s\n---\n%s", first, second)
	}
	if !strings.Contains(first, "1 | A | 2.00 | 10.00") {
		t.Errorf("unexpected render:\n%s", first)
	}
}

func TestRankingBreaksTiesDeterministically(t *testing.T) {
	agg, log := newTestAggregator(t)
	const date = "2026-08-20"
	// same quantity and revenue: name decides
	appendSale(t, log, date, "zeta", "1", "5.00")
	appendSale(t, log, date, "alpha", "1", "5.00")

	s, err := agg.Summarize("t", day(t, date), day(t, date))
	if err != nil {
		t.Fatalf("Summarize failed: %v", err)
	}
	if s.Top[0].SKU != "alpha" || s.Top[1].SKU != "zeta" {
		t.Errorf("tie order = %s, %s", s.Top[0].SKU, s.Top[1].SKU)
	}
}

func TestRunTriggersWeeklyOnSaturday(t *testing.T) {
	agg, log := newTestAggregator(t)
	saturday := day(t, "2026-08-22")
	appendSale(t, log, "2026-08-20", "A", "2", "5.00")

	if err := agg.RunTriggers(saturday); err != nil {
		t.Fatalf("RunTriggers failed: %v", err)
	}
	path := agg.WeeklyPath(saturday)
	first, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("weekly summary not written: %v", err)
	}

	// second trigger for the same week must not change the file
	if err := agg.RunTriggers(saturday); err != nil {
		t.Fatalf("second RunTriggers failed: %v", err)
	}
	second, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("weekly summary missing after rerun: %v", err)
	}
	if string(first) != string(second) {
		t.Error("weekly summary changed on rerun over unchanged logs")
	}

	// a plain Friday generates nothing
	friday := day(t, "2026-08-21")
	if err := agg.RunTriggers(friday); err != nil {
		t.Fatalf("RunTriggers failed: %v", err)
	}
	if _, err := os.Stat(agg.MonthlyPath(friday)); !os.IsNotExist(err) {
		t.Error("monthly summary generated mid-month")
	}
}

func TestRunTriggersMonthlyOnLastDay(t *testing.T) {
	agg, log := newTestAggregator(t)
	appendSale(t, log, "2026-08-20", "A", "2", "5.00")

	lastDay := day(t, "2026-08-31")
	if err := agg.RunTriggers(lastDay); err != nil {
		t.Fatalf("RunTriggers failed: %v", err)
	}
	data, err := os.ReadFile(agg.MonthlyPath(lastDay))
	if err != nil {
		t.Fatalf("monthly summary not written: %v", err)
	}
	if !strings.Contains(string(data), "2026-08-01 to 2026-08-31") {
		t.Errorf("monthly summary period wrong:\n%s", data)
	}
}
