package core

import "testing"

func TestParseDecimalToCents(t *testing.T) {
	cases := []struct {
		in   string
		want int64
		ok   bool
	}{
		{"12.34", 1234, true},
		{"12,34", 1234, true},
		{"12.344", 1234, true}, // third decimal below half rounds down
		{"12.345", 1235, true}, // half rounds up
		{"12.346", 1235, true},
		{"100", 10000, true},
		{"0", 0, true},
		{".5", 50, true},
		{"", 0, false},
		{"bad", 0, false},
		{"-5", 0, false},
		{"+5", 0, false},
		{"1.2.3", 0, false},
	}
	for _, tc := range cases {
		got, err := ParseDecimalToCents(tc.in)
		if tc.ok && (err != nil || got != tc.want) {
			t.Fatalf("ParseDecimalToCents(%q) = %d, %v; want %d, nil", tc.in, got, err, tc.want)
		}
		if !tc.ok && err == nil {
			t.Fatalf("ParseDecimalToCents(%q) expected error", tc.in)
		}
	}
}

func TestAmountCentsLenient(t *testing.T) {
	if got := AmountCents("bad"); got != 0 {
		t.Fatalf("AmountCents(bad) = %d, want 0", got)
	}
	if got := AmountCents(""); got != 0 {
		t.Fatalf("AmountCents(empty) = %d, want 0", got)
	}
	if got := AmountCents("42.50"); got != 4250 {
		t.Fatalf("AmountCents(42.50) = %d, want 4250", got)
	}
}

func TestFormatCents(t *testing.T) {
	cases := []struct {
		in   int64
		want string
	}{
		{1234, "12.34"},
		{5, "0.05"},
		{0, "0.00"},
		{-150, "-1.50"},
	}
	for _, tc := range cases {
		if got := FormatCents(tc.in); got != tc.want {
			t.Fatalf("FormatCents(%d) = %q, want %q", tc.in, got, tc.want)
		}
	}
}
