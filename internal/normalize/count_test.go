// internal/normalize/count_test.go
package normalize

import "testing"

func TestParseCount(t *testing.T) {
	tests := []struct {
		name  string
		input interface{}
		want  int64
		null  bool
	}{
		{name: "plain integer string", input: "301", want: 301},
		{name: "plain integer", input: 301, want: 301},
		{name: "float64 from json", input: float64(1234), want: 1234},
		{name: "zero", input: "0", want: 0},
		{name: "ten thousand suffix", input: "1.2万", want: 12000},
		{name: "ten thousand latin", input: "1.2w", want: 12000},
		{name: "hundred million suffix", input: "5亿", want: 500000000},
		{name: "hundred million latin", input: "5b", want: 500000000},
		{name: "uppercase latin suffix", input: "3W", want: 30000},
		{name: "whitespace", input: " 42 ", want: 42},
		{name: "full width digits", input: "１.２万", want: 12000},
		{name: "garbage", input: "abc", null: true},
		{name: "suffix only", input: "万", null: true},
		{name: "negative integer", input: -3, null: true},
		{name: "negative string", input: "-3", null: true},
		{name: "empty string", input: "", null: true},
		{name: "nil", input: nil, null: true},
		{name: "unsupported type", input: []string{"1"}, null: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := ParseCount(tt.input)
			if tt.null {
				if got != nil {
					t.Fatalf("ParseCount(%v) = %d, want nil", tt.input, *got)
				}
				return
			}
			if got == nil {
				t.Fatalf("ParseCount(%v) = nil, want %d", tt.input, tt.want)
			}
			if *got != tt.want {
				t.Fatalf("ParseCount(%v) = %d, want %d", tt.input, *got, tt.want)
			}
		})
	}
}

func TestParseCountNeverReturnsZeroForUnparseable(t *testing.T) {
	// "absent/unparseable" must stay distinguishable from "explicitly zero".
	if got := ParseCount("not a number"); got != nil {
		t.Fatalf("unparseable input must yield nil, got %d", *got)
	}
	if got := ParseCount("0"); got == nil || *got != 0 {
		t.Fatal("explicit zero must yield 0, not nil")
	}
}
