// Package report computes weekly and monthly top-seller summaries from the
// per-day sale logs.
//
// Summaries are derived data: regenerating one from an unchanged set of logs
// produces byte-identical output, so the date-boundary triggers can safely
// overwrite instead of deduplicating.
package report

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marllondevsec/pandacell/internal/models"
	"github.com/marllondevsec/pandacell/internal/store"
)

// DefaultTopN caps the ranking length in saved summaries.
const DefaultTopN = 50

// Aggregator folds day logs into report summaries and writes summary files.
type Aggregator struct {
	log       *store.SalesLog
	dir       string
	storeName string
	topN      int
}

// NewAggregator returns an aggregator writing summary files into dir.
func NewAggregator(log *store.SalesLog, dir, storeName string) *Aggregator {
	return &Aggregator{log: log, dir: dir, storeName: storeName, topN: DefaultTopN}
}

// Summarize folds every existing day log in [start, end] into one summary.
// Days without a log count as zero sales; malformed lines were already
// skipped during replay. Products rank by quantity, then revenue, then name,
// so the result is fully deterministic.
func (a *Aggregator) Summarize(title string, start, end time.Time) (models.ReportSummary, error) {
	dates, err := a.log.Dates()
	if err != nil {
		return models.ReportSummary{}, err
	}
	type bucket struct {
		sku      string
		quantity decimal.Decimal
		revenue  decimal.Decimal
	}
	buckets := map[string]*bucket{}
	total := decimal.Zero
	for _, date := range dates {
		day, err := time.Parse(models.DateLayout, date)
		if err != nil {
			continue
		}
		if day.Before(start) || day.After(end) {
			continue
		}
		recs, _, err := a.log.Replay(date)
		if err != nil {
			return models.ReportSummary{}, fmt.Errorf("failed to replay %s: %w", date, err)
		}
		for _, rec := range recs {
			key := strings.ToLower(rec.SKU)
			b, ok := buckets[key]
			if !ok {
				b = &bucket{sku: rec.SKU}
				buckets[key] = b
			}
			b.quantity = b.quantity.Add(rec.Quantity)
			b.revenue = b.revenue.Add(rec.LineTotal)
			total = total.Add(rec.LineTotal)
		}
	}

	rows := make([]models.ProductTotal, 0, len(buckets))
	for _, b := range buckets {
		rows = append(rows, models.ProductTotal{
			SKU:      b.sku,
			Quantity: b.quantity,
			Revenue:  b.revenue.Round(2),
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if c := rows[i].Quantity.Cmp(rows[j].Quantity); c != 0 {
			return c > 0
		}
		if c := rows[i].Revenue.Cmp(rows[j].Revenue); c != 0 {
			return c > 0
		}
		return rows[i].SKU < rows[j].SKU
	})
	if len(rows) > a.topN {
		rows = rows[:a.topN]
	}
	return models.ReportSummary{
		Title:        title,
		Start:        start.Format(models.DateLayout),
		End:          end.Format(models.DateLayout),
		TotalRevenue: total.Round(2),
		Top:          rows,
	}, nil
}

// Render produces the summary text. It is a pure function of the summary, so
// regenerating a period rewrites identical bytes.
func Render(s models.ReportSummary) string {
	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n", s.Title)
	fmt.Fprintf(&b, "# Period: %s to %s\n", s.Start, s.End)
	fmt.Fprintf(&b, "# Total revenue: %s\n", models.Money(s.TotalRevenue))
	b.WriteString("# Format: rank | sku | total_qty | total_revenue\n\n")
	if len(s.Top) == 0 {
		b.WriteString("No sales in this period.\n")
		return b.String()
	}
	for i, row := range s.Top {
		fmt.Fprintf(&b, "%d | %s | %s | %s\n", i+1, row.SKU, models.Money(row.Quantity), models.Money(row.Revenue))
	}
	return b.String()
}

// WeekToDate summarizes the trailing seven days ending today.
func (a *Aggregator) WeekToDate(today time.Time) (models.ReportSummary, error) {
	return a.Summarize("Top sellers - week", today.AddDate(0, 0, -6), today)
}

// MonthToDate summarizes today's month up to today.
func (a *Aggregator) MonthToDate(today time.Time) (models.ReportSummary, error) {
	first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
	return a.Summarize("Top sellers - month", first, today)
}

// WriteWeekly generates and saves the weekly summary covering the seven days
// ending today. The file is keyed by ISO week so re-running on the same
// Saturday overwrites rather than duplicates.
func (a *Aggregator) WriteWeekly(today time.Time) (string, error) {
	s, err := a.WeekToDate(today)
	if err != nil {
		return "", err
	}
	path := a.WeeklyPath(today)
	if err := store.WriteFileAtomic(path, []byte(Render(s))); err != nil {
		return "", err
	}
	return path, nil
}

// WriteMonthly generates and saves the summary for today's whole calendar
// month.
func (a *Aggregator) WriteMonthly(today time.Time) (string, error) {
	first := time.Date(today.Year(), today.Month(), 1, 0, 0, 0, 0, today.Location())
	last := first.AddDate(0, 1, -1)
	s, err := a.Summarize("Top sellers - month", first, last)
	if err != nil {
		return "", err
	}
	path := a.MonthlyPath(today)
	if err := store.WriteFileAtomic(path, []byte(Render(s))); err != nil {
		return "", err
	}
	return path, nil
}

// WeeklyPath is the summary file for today's ISO week.
func (a *Aggregator) WeeklyPath(today time.Time) string {
	year, week := today.ISOWeek()
	return filepath.Join(a.dir, fmt.Sprintf("%s_summary_week_%d-W%02d.txt", a.storeName, year, week))
}

// MonthlyPath is the summary file for today's month.
func (a *Aggregator) MonthlyPath(today time.Time) string {
	return filepath.Join(a.dir, fmt.Sprintf("%s_summary_month_%s.txt", a.storeName, today.Format("2006-01")))
}

// RunTriggers performs the date-boundary report checks: the weekly summary is
// generated when today is Saturday and none exists for this ISO week yet, the
// monthly one when today is the last calendar day of its month and none
// exists for this month. The checks are opportunistic (run at close and
// startup), not timer-driven.
func (a *Aggregator) RunTriggers(today time.Time) error {
	if today.Weekday() == time.Saturday {
		path := a.WeeklyPath(today)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			written, err := a.WriteWeekly(today)
			if err != nil {
				return fmt.Errorf("weekly report failed: %w", err)
			}
			slog.Info("Aggregator.RunTriggers: weekly summary generated", "path", written)
		}
	}
	if isLastDayOfMonth(today) {
		path := a.MonthlyPath(today)
		if _, err := os.Stat(path); os.IsNotExist(err) {
			written, err := a.WriteMonthly(today)
			if err != nil {
				return fmt.Errorf("monthly report failed: %w", err)
			}
			slog.Info("Aggregator.RunTriggers: monthly summary generated", "path", written)
		}
	}
	return nil
}

func isLastDayOfMonth(d time.Time) bool {
	return d.AddDate(0, 0, 1).Month() != d.Month()
}
