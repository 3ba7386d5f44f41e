package core

import (
	"errors"
	"strings"
	"time"
)

// OthersCategory is the escape value that lets users type a free-text
// category instead of picking one of the fixed set.
const OthersCategory = "others"

const (
	INR Currency = "₹"
	USD Currency = "$"
)

// Currencies is the canonical bucket order for per-currency output.
// Records in any other currency are excluded from every bucket but still
// count toward the transaction count.
var Currencies = []Currency{INR, USD}

// Categories is the fixed category set offered by the expense form.
// Aggregation groups on the literal category string, so free-text values
// entered via "others" form their own buckets.
var Categories = []string{
	"food", "transport", "medicine", "groceries", "rent", "gifts",
	"utilities", "entertainment", "education", "household", "clothing",
	"network", "travel", "housing", "emergency", "tuition", "gadgets", "loan",
}

type (
	Currency string

	Date struct {
		time.Time
	}

	// ExpenseRecord is a single expense as entered by its owner. Amount is
	// kept as the raw decimal string and parsed defensively at aggregation
	// time: a non-numeric or missing amount contributes zero instead of
	// failing the whole dashboard.
	ExpenseRecord struct {
		ID        string
		OwnerID   string
		Title     string
		Amount    string
		Currency  Currency
		Category  string
		Date      Date
		Notes     string
		CreatedAt time.Time
	}

	// ShareLink grants read access to one owner's aggregated dashboard to
	// whoever presents its token. Tokens never expire; an owner may hold
	// any number of concurrently valid tokens.
	ShareLink struct {
		ID        string
		OwnerID   string
		Token     string
		CreatedAt time.Time
	}

	// JoinRecord is the persisted fact that a viewer redeemed an owner's
	// token. Unique per (UserID, Token).
	JoinRecord struct {
		ID       string
		UserID   string
		OwnerID  string
		Token    string
		JoinedAt time.Time
	}

	User struct {
		ID           string
		FullName     string
		Phone        string
		Email        string
		PasswordHash string
		CreatedAt    time.Time
	}
)

var (
	ErrInvalidAmount   = errors.New("invalid amount")
	ErrEmptyTitle      = errors.New("empty title")
	ErrEmptyCategory   = errors.New("empty category")
	ErrUnknownCurrency = errors.New("unknown currency")
	ErrInvalidDate     = errors.New("invalid date")
)

// NewDate creates a Date from year, month, day. Dates carry no time
// component; everything is normalized to midnight UTC.
func NewDate(year, month, day int) Date {
	return Date{Time: time.Date(year, time.Month(month), day, 0, 0, 0, 0, time.UTC)}
}

// ParseDate parses a YYYY-MM-DD calendar date.
func ParseDate(s string) (Date, error) {
	t, err := time.Parse("2006-01-02", strings.TrimSpace(s))
	if err != nil {
		return Date{}, ErrInvalidDate
	}
	return Date{Time: t}, nil
}

func (d Date) Validate() error {
	if d.IsZero() {
		return ErrInvalidDate
	}
	return nil
}

// String renders the date in the YYYY-MM-DD wire format.
func (d Date) String() string {
	return d.Format("2006-01-02")
}

func (c Currency) Known() bool {
	for _, cur := range Currencies {
		if c == cur {
			return true
		}
	}
	return false
}

func (e ExpenseRecord) Validate() error {
	if len(strings.TrimSpace(e.Title)) == 0 {
		return ErrEmptyTitle
	}
	if len(e.Title) > 200 {
		return errors.New("title too long (max 200 characters)")
	}
	if _, err := ParseDecimalToCents(e.Amount); err != nil {
		return err
	}
	if !e.Currency.Known() {
		return ErrUnknownCurrency
	}
	if strings.TrimSpace(e.Category) == "" {
		return ErrEmptyCategory
	}
	return e.Date.Validate()
}
