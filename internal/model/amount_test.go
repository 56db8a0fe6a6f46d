package model

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := []struct {
		raw  string
		enc  ValueEncoding
		want string
	}{
		{"0xde0b6b3a7640000", EncodingHexWei, "1"},
		{"0x0", EncodingHexWei, "0"},
		{"0x06f05b59d3b20000", EncodingHexWei, "0.5"},
		{"zz", EncodingHexWei, "0"},
		{"2500000000000000000", EncodingDecimalWei, "2.5"},
		{"-1", EncodingDecimalWei, "0"},
		{"abc", EncodingDecimalWei, "0"},
		{"23529.2", EncodingDecimal, "23529.2"},
		{"1,5", EncodingDecimal, "1.5"},
		{"", EncodingDecimal, "0"},
		{"-3", EncodingDecimal, "0"},
	}

	for _, c := range cases {
		got := ParseAmount(c.raw, c.enc)
		if !got.Equal(decimal.RequireFromString(c.want)) {
			t.Fatalf("ParseAmount(%q, %d) = %s, want %s", c.raw, c.enc, got, c.want)
		}
	}
}

func TestParseTimestamp(t *testing.T) {
	fallback := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)
	want := time.Unix(1700000000, 0).UTC()

	if got := ParseTimestamp("1700000000", fallback); !got.Equal(want) {
		t.Fatalf("unix: got %v", got)
	}
	if got := ParseTimestamp("0x6553f100", fallback); !got.Equal(want) {
		t.Fatalf("hex: got %v", got)
	}
	if got := ParseTimestamp("2023-11-14T22:13:20Z", fallback); !got.Equal(want) {
		t.Fatalf("rfc3339: got %v", got)
	}
	if got := ParseTimestamp("yesterday", fallback); !got.Equal(fallback) {
		t.Fatalf("expected fallback, got %v", got)
	}
	if got := ParseTimestamp("", fallback); !got.Equal(fallback) {
		t.Fatalf("expected fallback for empty, got %v", got)
	}
}

func TestClassifyMethod(t *testing.T) {
	if ClassifyMethod("") != MethodTransfer || ClassifyMethod("0x") != MethodTransfer {
		t.Fatal("empty payload must be TRANSFER")
	}
	if ClassifyMethod("0xa9059cbb") != MethodCall {
		t.Fatal("payload must be CALL")
	}
}

func TestFormatAmount(t *testing.T) {
	if got := FormatAmount(decimal.RequireFromString("10000")); got != "10000" {
		t.Fatalf("got %q", got)
	}
	if got := FormatAmount(decimal.RequireFromString("0.123456789")); got != "0.123456" {
		t.Fatalf("got %q", got)
	}
}
