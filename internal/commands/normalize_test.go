package commands

import (
	"testing"
	"time"
)

func TestParseTransferCharge(t *testing.T) {
	yes := []string{"yes", "Yes", "Y", "true", "1", "include", "INCLUDED", " yes "}
	for _, v := range yes {
		if !ParseTransferCharge(v) {
			t.Fatalf("expected %q to enable the transfer charge", v)
		}
	}
	no := []string{"", "no", "n", "false", "0", "nope", "maybe", "2"}
	for _, v := range no {
		if ParseTransferCharge(v) {
			t.Fatalf("expected %q to disable the transfer charge", v)
		}
	}
}

func TestParseMoneyCents(t *testing.T) {
	cases := map[string]int64{
		"100":      10000,
		"140.00":   14000,
		"140.5":    14050,
		"0.07":     7,
		"€35":      3500,
		"1250,50":  125050,
		"-12.34":   -1234,
		" 1085.00": 108500,
	}
	for input, want := range cases {
		got, err := ParseMoneyCents("amount", input)
		if err != nil {
			t.Fatalf("ParseMoneyCents(%q) failed: %v", input, err)
		}
		if got != want {
			t.Fatalf("ParseMoneyCents(%q) = %d, want %d", input, got, want)
		}
	}
}

func TestParseMoneyCents_Rejects(t *testing.T) {
	for _, input := range []string{"", "abc", "12.345", "10.0.0"} {
		if _, err := ParseMoneyCents("amount", input); err == nil {
			t.Fatalf("expected ParseMoneyCents(%q) to fail", input)
		}
	}
}

func TestParseQuantity(t *testing.T) {
	got, err := ParseQuantity("items", "3,5")
	if err != nil || got != 3.5 {
		t.Fatalf("ParseQuantity(3,5) = %v, %v", got, err)
	}
	for _, input := range []string{"0", "-1", "x"} {
		if _, err := ParseQuantity("items", input); err == nil {
			t.Fatalf("expected ParseQuantity(%q) to fail", input)
		}
	}
}

func TestParseDate_Layouts(t *testing.T) {
	for _, input := range []string{"2025-04-08", "08-04-2025", "08/04/2025", "April 8, 2025", "8 April 2025"} {
		got, err := ParseDate("date", input)
		if err != nil {
			t.Fatalf("ParseDate(%q) failed: %v", input, err)
		}
		if got.Format("2006-01-02") != "2025-04-08" {
			t.Fatalf("ParseDate(%q) = %v", input, got)
		}
	}
}

func TestParseDate_RequiresAValue(t *testing.T) {
	if _, err := ParseDate("paid on", ""); err == nil {
		t.Fatal("expected missing date to fail")
	}
	if _, err := ParseDate("paid on", "soonish"); err == nil {
		t.Fatal("expected unparseable date to fail")
	}
}

func TestParseDateOrDefault(t *testing.T) {
	def := time.Date(2025, 4, 10, 0, 0, 0, 0, time.UTC)

	if got := ParseDateOrDefault("", def); !got.Equal(def) {
		t.Fatalf("empty date should fall back, got %v", got)
	}
	if got := ParseDateOrDefault("not-a-date", def); !got.Equal(def) {
		t.Fatalf("unreadable date should fall back, got %v", got)
	}
	if got := ParseDateOrDefault("2025-04-08", def); got.Format("2006-01-02") != "2025-04-08" {
		t.Fatalf("stated date must win, got %v", got)
	}
}
