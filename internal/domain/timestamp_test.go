package domain

import (
	"encoding/json"
	"errors"
	"testing"
	"time"
)

func TestNormalizeTimestamp_Numeric(t *testing.T) {
	tests := []struct {
		name string
		in   any
		want int64
	}{
		{"seconds int64", int64(1_700_000_000), 1_700_000_000},
		{"seconds int", 1_700_000_000, 1_700_000_000},
		{"milliseconds", int64(1_700_000_000_123), 1_700_000_000},
		{"milliseconds float", float64(1_700_000_000_999), 1_700_000_000},
		{"fractional seconds", 1_700_000_000.75, 1_700_000_000},
		{"threshold itself is seconds", int64(MillisecondThreshold), MillisecondThreshold},
		{"json number", json.Number("1700000000500"), 1_700_000_000},
		{"zero", 0, 0},
		{"numeric string seconds", "1700000000", 1_700_000_000},
		{"numeric string millis", " 1700000000123 ", 1_700_000_000},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeTimestamp(tt.in)
			if err != nil {
				t.Fatalf("NormalizeTimestamp(%v) error: %v", tt.in, err)
			}
			if got != tt.want {
				t.Fatalf("NormalizeTimestamp(%v) = %d, want %d", tt.in, got, tt.want)
			}
		})
	}
}

func TestNormalizeTimestamp_IdempotentOnSeconds(t *testing.T) {
	for _, ts := range []int64{0, 1, 86_400, 1_700_000_000, MillisecondThreshold} {
		once, err := NormalizeTimestamp(ts)
		if err != nil {
			t.Fatal(err)
		}
		twice, err := NormalizeTimestamp(once)
		if err != nil {
			t.Fatal(err)
		}
		if once != ts || twice != ts {
			t.Fatalf("normalize(%d) = %d, normalize twice = %d", ts, once, twice)
		}
	}
}

func TestNormalizeTimestampIn_DateStrings(t *testing.T) {
	want := time.Date(2024, 3, 15, 9, 30, 0, 0, time.UTC).Unix()

	tests := []struct {
		name string
		in   string
	}{
		{"rfc3339", "2024-03-15T09:30:00Z"},
		{"rfc3339 offset", "2024-03-15T11:30:00+02:00"},
		{"rfc3339 nano", "2024-03-15T09:30:00.000000Z"},
		{"space separated", "2024-03-15 09:30:00"},
		{"t separated no zone", "2024-03-15T09:30:00"},
		{"postgres text", "2024-03-15 09:30:00+00"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := NormalizeTimestampIn(tt.in, time.UTC)
			if err != nil {
				t.Fatalf("NormalizeTimestampIn(%q) error: %v", tt.in, err)
			}
			if got != want {
				t.Fatalf("NormalizeTimestampIn(%q) = %d, want %d", tt.in, got, want)
			}
		})
	}
}

func TestNormalizeTimestampIn_ZonelessUsesLocation(t *testing.T) {
	loc := time.FixedZone("UTC+5", 5*3600)
	got, err := NormalizeTimestampIn("2024-03-15", loc)
	if err != nil {
		t.Fatal(err)
	}
	want := time.Date(2024, 3, 15, 0, 0, 0, 0, loc).Unix()
	if got != want {
		t.Fatalf("got %d, want %d", got, want)
	}
}

func TestNormalizeTimestamp_Errors(t *testing.T) {
	for _, in := range []any{nil, "", "   ", "yesterday", "15/03/2024", true, []int{1}} {
		_, err := NormalizeTimestamp(in)
		var vErr *ValidationError
		if !errors.As(err, &vErr) {
			t.Fatalf("NormalizeTimestamp(%#v) error = %v, want *ValidationError", in, err)
		}
	}
}

func TestNormalizeOptionalTimestamp(t *testing.T) {
	got, err := NormalizeOptionalTimestamp(nil, time.UTC)
	if err != nil || got != nil {
		t.Fatalf("nil input: got %v, %v", got, err)
	}

	blank := " "
	got, err = NormalizeOptionalTimestamp(&blank, time.UTC)
	if err != nil || got != nil {
		t.Fatalf("blank input: got %v, %v", got, err)
	}

	ms := "1700000000999"
	got, err = NormalizeOptionalTimestamp(&ms, time.UTC)
	if err != nil {
		t.Fatal(err)
	}
	if got == nil || *got != 1_700_000_000 {
		t.Fatalf("got %v, want 1700000000", got)
	}
}

func TestListQuery_Matches(t *testing.T) {
	out := int64(10)
	inside := &Visitor{Name: "Alice Smith", Company: "Acme", PersonToMeet: "Bob"}
	left := &Visitor{Name: "Carol", Company: "Globex", CheckoutTime: &out}

	tests := []struct {
		name string
		q    ListQuery
		v    *Visitor
		want bool
	}{
		{"empty query matches", ListQuery{}, inside, true},
		{"status checked_in", ListQuery{Status: StatusCheckedIn}, left, false},
		{"status checked_out", ListQuery{Status: StatusCheckedOut}, left, true},
		{"search case insensitive", ListQuery{Search: "acme"}, inside, true},
		{"search person to meet", ListQuery{Search: "BOB"}, inside, true},
		{"search miss", ListQuery{Search: "initech"}, inside, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.q.Matches(tt.v); got != tt.want {
				t.Fatalf("Matches = %v, want %v", got, tt.want)
			}
		})
	}
}
