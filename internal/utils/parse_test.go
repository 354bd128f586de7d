package utils

import "testing"

func TestAtoiDefault(t *testing.T) {
	cases := []struct {
		s    string
		def  int
		want int
	}{
		{"", 20, 20},
		{"3", 1, 3},
		{"-2", 1, -2},
		{"007", 1, 7},
		{"abc", 5, 5},
		{" 4", 9, 9}, // no trimming
		{"99999999999999999999", 1, 1},
	}
	for _, tc := range cases {
		if got := AtoiDefault(tc.s, tc.def); got != tc.want {
			t.Fatalf("AtoiDefault(%q, %d) = %d; want %d", tc.s, tc.def, got, tc.want)
		}
	}
}

func TestClamp(t *testing.T) {
	cases := []struct{ n, want int }{
		{-5, 1}, {0, 1}, {1, 1}, {50, 50}, {100, 100}, {101, 100},
	}
	for _, tc := range cases {
		if got := Clamp(tc.n, 1, 100); got != tc.want {
			t.Fatalf("Clamp(%d) = %d; want %d", tc.n, got, tc.want)
		}
	}
}

func TestParseID(t *testing.T) {
	good := map[string]uint{"1": 1, "42": 42, "0042": 42}
	for s, want := range good {
		if got, ok := ParseID(s); !ok || got != want {
			t.Fatalf("ParseID(%q) = %d, %v", s, got, ok)
		}
	}
	for _, s := range []string{"", "0", "-1", "x", "1.5", "18446744073709551616"} {
		if _, ok := ParseID(s); ok {
			t.Fatalf("ParseID(%q) should fail", s)
		}
	}
}
