// Package models defines the core data structures for the PandaCell register.
//
// It includes types for sale records, the persisted session state, outbox
// delivery tasks and aggregate report summaries, which are shared across modules.
package models

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// DateLayout is the calendar-date format used for session dates and log file names.
const DateLayout = "2006-01-02"

// TimestampLayout is the format used for sale timestamps inside log lines.
const TimestampLayout = "2006-01-02 15:04:05"

// Error variables for better error handling and testability
var (
	ErrEmptySKU          = errors.New("sku cannot be empty")
	ErrNonPositiveQty    = errors.New("quantity must be greater than zero")
	ErrNegativePrice     = errors.New("unit price cannot be negative")
	ErrNotFound          = errors.New("product not found")
	ErrInsufficientStock = errors.New("insufficient stock")
	ErrNoOpenSession     = errors.New("no open session")
	ErrTaskNotFound      = errors.New("outbox task not found")
)

// SaleRecord represents one recorded sale line. It is immutable once written:
// created at sale time, appended once to the day's log, never mutated or deleted.
type SaleRecord struct {
	ID        string          `json:"id"`
	Timestamp time.Time       `json:"timestamp"`
	SKU       string          `json:"sku"`
	Quantity  decimal.Decimal `json:"quantity"`
	UnitPrice decimal.Decimal `json:"unit_price"`
	LineTotal decimal.Decimal `json:"line_total"`
}

// NewSaleRecord builds a SaleRecord with a fresh ID and the line total
// computed from quantity and unit price.
func NewSaleRecord(sku string, quantity, unitPrice decimal.Decimal) SaleRecord {
	return SaleRecord{
		ID:        GenerateSaleID(),
		Timestamp: time.Now(),
		SKU:       strings.TrimSpace(sku),
		Quantity:  quantity,
		UnitPrice: unitPrice,
		LineTotal: quantity.Mul(unitPrice).Round(2),
	}
}

// Validate rejects a sale before any write happens. A rejected sale must not
// change any persisted state.
func (r SaleRecord) Validate() error {
	if strings.TrimSpace(r.SKU) == "" {
		return ErrEmptySKU
	}
	if !r.Quantity.IsPositive() {
		return ErrNonPositiveQty
	}
	if r.UnitPrice.IsNegative() {
		return ErrNegativePrice
	}
	return nil
}

// SessionState is the persisted singleton describing the register session.
// RunningTotal is a performance cache: the day's log is the system of record
// and the total is re-derivable by replaying it.
type SessionState struct {
	SessionDate  string          `json:"session_date"`
	IsOpen       bool            `json:"is_open"`
	RunningTotal decimal.Decimal `json:"running_total"`
	SaleCount    int             `json:"sale_count"`
}

// OutboxTask represents one pending email delivery. A task exists from the
// moment a close/send is requested until delivery is confirmed; failure only
// increments AttemptCount, it never removes the task.
type OutboxTask struct {
	TaskID       string    `json:"task_id"`
	LogPath      string    `json:"log_path"`
	Recipient    string    `json:"recipient"`
	Subject      string    `json:"subject"`
	Body         string    `json:"body"`
	CreatedAt    time.Time `json:"created_at"`
	AttemptCount int       `json:"attempt_count"`
	LastError    string    `json:"last_error,omitempty"`
}

// ProductTotal is one ranked row of a report summary.
type ProductTotal struct {
	SKU      string
	Quantity decimal.Decimal
	Revenue  decimal.Decimal
}

// ReportSummary is a derived, read-only aggregate over a date range of sale
// records. Regenerating it from the same logs yields identical content.
type ReportSummary struct {
	Title        string
	Start        string
	End          string
	TotalRevenue decimal.Decimal
	Top          []ProductTotal
}

// Product is one catalog entry. Price and Stock are optional: the original
// register allowed ad-hoc products without either.
type Product struct {
	Name  string           `json:"name"`
	Price *decimal.Decimal `json:"price,omitempty"`
	Stock *decimal.Decimal `json:"stock,omitempty"`
}

// GenerateSaleID returns a short sale identifier, collision-resistant within
// a day: "s_" plus the first 8 hex characters of a v4 UUID.
func GenerateSaleID() string {
	u := uuid.New()
	return fmt.Sprintf("s_%x", u[:4])
}

// GenerateTaskID returns a full UUID for an outbox task.
func GenerateTaskID() string {
	return uuid.NewString()
}

// Money renders a decimal amount with exactly two decimal places, rounding
// half up.
func Money(d decimal.Decimal) string {
	return d.StringFixed(2)
}
