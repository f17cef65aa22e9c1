package cli

import (
	"testing"

	"github.com/shopspring/decimal"
)

func TestParseAmount(t *testing.T) {
	cases := map[string]string{
		"19.90":    "19.90",
		"19,90":    "19.90",
		"1.234,56": "1234.56",
		"  2 ":     "2",
		"0":        "0",
	}
	for in, want := range cases {
		got, err := parseAmount(in)
		if err != nil {
			t.Errorf("parseAmount(%q) failed: %v", in, err)
			continue
		}
		if !got.Equal(decimal.RequireFromString(want)) {
			t.Errorf("parseAmount(%q) = %s, want %s", in, got, want)
		}
	}
	for _, in := range []string{"", "abc", "1,2,3"} {
		if _, err := parseAmount(in); err == nil {
			t.Errorf("parseAmount(%q) accepted invalid input", in)
		}
	}
}
