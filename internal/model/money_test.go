package model

import (
	"encoding/json"
	"errors"
	"testing"
)

func TestParseMoney(t *testing.T) {
	tests := []struct {
		in   string
		want Money
	}{
		{"100", 10000},
		{"12.34", 1234},
		{"12,34", 1234},
		{"12.345", 1235},
		{"12.344", 1234},
		{".5", 50},
		{"  7.1 ", 710},
		{"0.005", 1},
	}
	for _, tt := range tests {
		got, err := ParseMoney(tt.in)
		if err != nil {
			t.Errorf("ParseMoney(%q): %v", tt.in, err)
			continue
		}
		if got != tt.want {
			t.Errorf("ParseMoney(%q) = %d, want %d", tt.in, got, tt.want)
		}
	}
}

func TestParseMoneyRejects(t *testing.T) {
	for _, in := range []string{"", "-5", "+5", "0", "0.00", "0.004", "abc", "1.2.3", "1e3", "NaN", "Inf"} {
		if _, err := ParseMoney(in); !errors.Is(err, ErrInvalidAmount) {
			t.Errorf("ParseMoney(%q) err = %v, want ErrInvalidAmount", in, err)
		}
	}
}

func TestMoneyString(t *testing.T) {
	tests := map[Money]string{
		0:     "0.00",
		5:     "0.05",
		1234:  "12.34",
		18000: "180.00",
		-250:  "-2.50",
	}
	for m, want := range tests {
		if got := m.String(); got != want {
			t.Errorf("Money(%d).String() = %q, want %q", int64(m), got, want)
		}
	}
}

func TestMoneyDivRound(t *testing.T) {
	if got := Money(18000).DivRound(3); got != 6000 {
		t.Errorf("18000/3 = %d, want 6000", got)
	}
	if got := Money(100).DivRound(3); got != 33 {
		t.Errorf("100/3 = %d, want 33", got)
	}
	if got := Money(200).DivRound(3); got != 67 {
		t.Errorf("200/3 = %d, want 67", got)
	}
	if got := Money(500).DivRound(0); got != 0 {
		t.Errorf("500/0 = %d, want 0", got)
	}
}

func TestMoneyJSON(t *testing.T) {
	data, err := json.Marshal(struct {
		Amount Money `json:"amount"`
	}{Amount: 1999})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"amount":19.99}` {
		t.Errorf("json = %s", data)
	}

	var m Money
	if err := json.Unmarshal([]byte(`19.99`), &m); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if m != 1999 {
		t.Errorf("unmarshal = %d, want 1999", m)
	}
}

func TestParseDate(t *testing.T) {
	d, err := ParseDate("2024-02-29")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if d.String() != "2024-02-29" {
		t.Errorf("date = %s", d)
	}
	if got := d.MonthStart().String(); got != "2024-02-01" {
		t.Errorf("month start = %s", got)
	}
	if _, err := ParseDate("2024-13-01"); !errors.Is(err, ErrInvalidDate) {
		t.Errorf("expected ErrInvalidDate, got %v", err)
	}
}

func TestMoneyUnmarshalExact(t *testing.T) {
	tests := []struct {
		in   string
		want Money
	}{
		{`0.285`, 29},
		{`"0.285"`, 29},
		{`-2.5`, -250},
		{`0`, 0},
		{`180`, 18000},
		{`" 12.30 "`, 1230},
	}
	for _, tt := range tests {
		var m Money
		if err := json.Unmarshal([]byte(tt.in), &m); err != nil {
			t.Errorf("Unmarshal(%s): %v", tt.in, err)
			continue
		}
		if m != tt.want {
			t.Errorf("Unmarshal(%s) = %d, want %d", tt.in, m, tt.want)
		}
		if parsed, err := ParseMoney(tt.in); err == nil && parsed != m {
			t.Errorf("Unmarshal(%s) = %d, ParseMoney = %d", tt.in, m, parsed)
		}
	}
}

func TestMoneyUnmarshalRejects(t *testing.T) {
	for _, in := range []string{`"NaN"`, `"1e300"`, `1e3`, `"abc"`, `"--1"`, `"-"`, `""`, `true`} {
		var m Money
		if err := json.Unmarshal([]byte(in), &m); err == nil {
			t.Errorf("Unmarshal(%s) = %d, want error", in, m)
		}
	}
}

func TestMoneyJSONRoundTrip(t *testing.T) {
	for _, m := range []Money{1, 99, 1999, -250, 123456789} {
		data, err := json.Marshal(m)
		if err != nil {
			t.Fatalf("marshal %d: %v", m, err)
		}
		var got Money
		if err := json.Unmarshal(data, &got); err != nil {
			t.Fatalf("unmarshal %s: %v", data, err)
		}
		if got != m {
			t.Errorf("round trip %d -> %s -> %d", m, data, got)
		}
	}
}
