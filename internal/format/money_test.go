package format

import (
	"strings"
	"testing"

	"github.com/shopspring/decimal"
)

func TestNewMoney_InvalidInput(t *testing.T) {
	if _, err := NewMoney("en", "NOPE"); err == nil {
		t.Error("expected error for unknown currency")
	}
	if _, err := NewMoney("!!", "USD"); err == nil {
		t.Error("expected error for malformed locale")
	}
}

func TestMoneyFormat_GroupsAndRounds(t *testing.T) {
	m, err := NewMoney("en", "USD")
	if err != nil {
		t.Fatalf("NewMoney: %v", err)
	}

	got := m.Format(decimal.RequireFromString("1234.505"))
	if !strings.Contains(got, "1,234.51") {
		t.Errorf("Format = %q, want it to contain 1,234.51", got)
	}
	if m.Currency() != "USD" {
		t.Errorf("Currency = %q, want USD", m.Currency())
	}
}

func TestMoneyFormat_Zero(t *testing.T) {
	m, err := NewMoney("en", "USD")
	if err != nil {
		t.Fatalf("NewMoney: %v", err)
	}
	if got := m.Format(decimal.Zero); !strings.Contains(got, "0.00") {
		t.Errorf("Format(0) = %q, want it to contain 0.00", got)
	}
}

func TestMoneyNumber(t *testing.T) {
	m, err := NewMoney("en", "EUR")
	if err != nil {
		t.Fatalf("NewMoney: %v", err)
	}
	if got := m.Number(1234567); got != "1,234,567" {
		t.Errorf("Number = %q, want 1,234,567", got)
	}
}

func TestMoneyFormat_KeepsPrecision(t *testing.T) {
	m, err := NewMoney("en", "USD")
	if err != nil {
		t.Fatalf("NewMoney: %v", err)
	}

	tests := []struct {
		amount string
		want   string
	}{
		{"12345678901234567.89", "12,345,678,901,234,567.89"},
		{"123456789012345678901.25", "123,456,789,012,345,678,901.25"},
		{"-1234.5", "-1,234.50"},
	}
	for _, tt := range tests {
		if got := m.Format(decimal.RequireFromString(tt.amount)); !strings.HasSuffix(got, " "+tt.want) {
			t.Errorf("Format(%s) = %q, want suffix %q", tt.amount, got, tt.want)
		}
	}
}

func TestMoneyFormat_LocaleSeparators(t *testing.T) {
	m, err := NewMoney("de", "EUR")
	if err != nil {
		t.Fatalf("NewMoney: %v", err)
	}
	if got := m.Format(decimal.RequireFromString("1234.5")); !strings.Contains(got, "1.234,50") {
		t.Errorf("Format = %q, want it to contain 1.234,50", got)
	}
}
