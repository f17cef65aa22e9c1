package store

import (
	"bufio"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/marllondevsec/pandacell/internal/models"
)

// lineFieldCount is the number of pipe-separated fields in a serialized sale.
const lineFieldCount = 6

// SalesLog is the durable writer and reader for the per-day sale logs.
// Files are append-only text, one serialized sale per line, with '#' header
// and close-out lines that readers skip.
type SalesLog struct {
	dir       string
	storeName string
	dateRE    *regexp.Regexp
}

// NewSalesLog creates the logs directory if needed and returns the log store.
func NewSalesLog(dir, storeName string) (*SalesLog, error) {
	if err := os.MkdirAll(dir, DefaultDirPermissions); err != nil {
		return nil, fmt.Errorf("failed to create logs directory %s: %w", dir, err)
	}
	re := regexp.MustCompile("^" + regexp.QuoteMeta(storeName) + `_(\d{4}-\d{2}-\d{2})\.log$`)
	return &SalesLog{dir: dir, storeName: storeName, dateRE: re}, nil
}

// Path returns the log file path for a session date.
func (l *SalesLog) Path(date string) string {
	return filepath.Join(l.dir, fmt.Sprintf("%s_%s.log", l.storeName, date))
}

// EnsureHeader writes the header block for date's log if the file does not
// exist yet.
func (l *SalesLog) EnsureHeader(date string) error {
	path := l.Path(date)
	if _, err := os.Stat(path); err == nil {
		return nil
	} else if !os.IsNotExist(err) {
		return fmt.Errorf("failed to stat %s: %w", path, err)
	}
	header := fmt.Sprintf(
		"# Sales log - %s\n# Date: %s\n# Format: timestamp | id | sku | qty | unit_price | line_total\n",
		l.storeName, date)
	return WriteFileAtomic(path, []byte(header))
}

// Append durably records one sale in date's log. The write is flushed to
// stable storage before Append returns; on error the sale is not recorded and
// the caller must not update any cached totals.
func (l *SalesLog) Append(date string, rec models.SaleRecord) error {
	if err := rec.Validate(); err != nil {
		return err
	}
	if err := appendLine(l.Path(date), FormatLine(rec)); err != nil {
		slog.Error("SalesLog.Append: write failed", "error", err, "date", date, "id", rec.ID)
		return fmt.Errorf("failed to record sale %s: %w", rec.ID, err)
	}
	slog.Debug("SalesLog.Append: sale recorded", "date", date, "id", rec.ID, "line_total", models.Money(rec.LineTotal))
	return nil
}

// AppendCloseout writes the close-out marker line for date. The marker is a
// comment line, invisible to replay.
func (l *SalesLog) AppendCloseout(date string, total decimal.Decimal) error {
	line := fmt.Sprintf("# CLOSEOUT: %s | TOTAL %s",
		time.Now().Format(models.TimestampLayout), models.Money(total))
	return appendLine(l.Path(date), line)
}

// Replay reads every parsable sale in date's log and returns the records with
// their exact sum. A missing file means zero sales. Malformed lines, including
// a trailing line truncated by a crash, are skipped, never fatal.
func (l *SalesLog) Replay(date string) ([]models.SaleRecord, decimal.Decimal, error) {
	f, err := os.Open(l.Path(date))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, decimal.Zero, nil
		}
		return nil, decimal.Zero, fmt.Errorf("failed to open log for %s: %w", date, err)
	}
	defer f.Close()

	var recs []models.SaleRecord
	total := decimal.Zero
	scanner := bufio.NewScanner(f)
	for scanner.Scan() {
		rec, ok := ParseLine(scanner.Text())
		if !ok {
			continue
		}
		recs = append(recs, rec)
		total = total.Add(rec.LineTotal)
	}
	if err := scanner.Err(); err != nil {
		return nil, decimal.Zero, fmt.Errorf("failed to read log for %s: %w", date, err)
	}
	return recs, total.Round(2), nil
}

// Dates lists the calendar dates that have a log file, ascending.
func (l *SalesLog) Dates() ([]string, error) {
	entries, err := os.ReadDir(l.dir)
	if err != nil {
		return nil, fmt.Errorf("failed to list logs directory %s: %w", l.dir, err)
	}
	var dates []string
	for _, e := range entries {
		m := l.dateRE.FindStringSubmatch(e.Name())
		if m == nil {
			continue
		}
		if _, err := time.Parse(models.DateLayout, m[1]); err != nil {
			continue
		}
		dates = append(dates, m[1])
	}
	// ISO dates sort lexically
	sort.Strings(dates)
	return dates, nil
}

// FormatLine serializes a sale record as one log line with stable field order.
func FormatLine(rec models.SaleRecord) string {
	return strings.Join([]string{
		rec.Timestamp.Format(models.TimestampLayout),
		rec.ID,
		rec.SKU,
		models.Money(rec.Quantity),
		models.Money(rec.UnitPrice),
		models.Money(rec.LineTotal),
	}, " | ")
}

// ParseLine parses one serialized sale line. Blank lines, '#' comments and
// malformed lines report ok=false.
func ParseLine(line string) (models.SaleRecord, bool) {
	line = strings.TrimSpace(line)
	if line == "" || strings.HasPrefix(line, "#") {
		return models.SaleRecord{}, false
	}
	parts := strings.Split(line, "|")
	if len(parts) < lineFieldCount {
		return models.SaleRecord{}, false
	}
	for i := range parts {
		parts[i] = strings.TrimSpace(parts[i])
	}
	ts, err := time.Parse(models.TimestampLayout, parts[0])
	if err != nil {
		return models.SaleRecord{}, false
	}
	qty, err := decimal.NewFromString(parts[3])
	if err != nil {
		return models.SaleRecord{}, false
	}
	price, err := decimal.NewFromString(parts[4])
	if err != nil {
		return models.SaleRecord{}, false
	}
	lineTotal, err := decimal.NewFromString(parts[5])
	if err != nil {
		return models.SaleRecord{}, false
	}
	return models.SaleRecord{
		ID:        parts[1],
		Timestamp: ts,
		SKU:       parts[2],
		Quantity:  qty,
		UnitPrice: price,
		LineTotal: lineTotal,
	}, true
}
