package core

import (
	"testing"
	"time"
)

func TestDateParseAndFormat(t *testing.T) {
	d, err := ParseDate("2025-06-15")
	if err != nil {
		t.Fatalf("expected ok, got %v", err)
	}
	if d.String() != "2025-06-15" {
		t.Fatalf("round trip = %q", d.String())
	}
	if _, err := ParseDate("15/06/2025"); err == nil {
		t.Fatal("expected error for wrong format")
	}
}

func TestCurrencyKnown(t *testing.T) {
	if !USD.Known() || !INR.Known() {
		t.Fatal("enumerated currencies must be known")
	}
	if Currency("€").Known() {
		t.Fatal("unlisted currency must not be known")
	}
}

func TestExpenseRecordValidate(t *testing.T) {
	good := ExpenseRecord{
		Title:    "coffee",
		Amount:   "3.50",
		Currency: USD,
		Category: "food",
		Date:     NewDate(2025, 1, 1),
	}
	if err := good.Validate(); err != nil {
		t.Fatalf("expected ok, got %v", err)
	}

	bads := []ExpenseRecord{
		{Title: "", Amount: "1", Currency: USD, Category: "food", Date: NewDate(2025, 1, 1)},
		{Title: "a", Amount: "nope", Currency: USD, Category: "food", Date: NewDate(2025, 1, 1)},
		{Title: "a", Amount: "1", Currency: "€", Category: "food", Date: NewDate(2025, 1, 1)},
		{Title: "a", Amount: "1", Currency: USD, Category: "", Date: NewDate(2025, 1, 1)},
		{Title: "a", Amount: "1", Currency: USD, Category: "food", Date: Date{Time: time.Time{}}},
	}
	for i, e := range bads {
		if err := e.Validate(); err == nil {
			t.Fatalf("case %d expected error", i)
		}
	}
}
