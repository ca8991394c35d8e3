package main

import (
	"reflect"
	"testing"
)

func TestCapitalize(t *testing.T) {
	cases := []struct{ in, want string }{
		{"autumn", "Autumn"},
		{"WINTER", "Winter"},
		{"", ""},
		{"d", "D"},
	}
	for _, c := range cases {
		if got := capitalize(c.in); got != c.want {
			t.Fatalf("capitalize(%q) = %q", c.in, got)
		}
	}
}

func TestTruncate(t *testing.T) {
	cases := []struct {
		in   string
		max  int
		want string
	}{
		{"hello", 10, "hello"},
		{"hello", 5, "hello"},
		{"hello", 4, "hel…"},
		{"hello", 1, "h"},
		{"hello", 0, ""},
	}
	for _, c := range cases {
		if got := truncate(c.in, c.max); got != c.want {
			t.Fatalf("truncate(%q, %d) = %q, want %q", c.in, c.max, got, c.want)
		}
	}
}

func TestLastN(t *testing.T) {
	lines := []string{"a", "b", "c"}
	if got := lastN(lines, 2); !reflect.DeepEqual(got, []string{"b", "c"}) {
		t.Fatalf("lastN = %v", got)
	}
	if got := lastN(lines, 5); !reflect.DeepEqual(got, lines) {
		t.Fatalf("lastN = %v", got)
	}
	if got := lastN(lines, 0); !reflect.DeepEqual(got, lines) {
		t.Fatalf("lastN = %v", got)
	}
}

func TestShellQuote(t *testing.T) {
	if got := shellQuote("plain"); got != "'plain'" {
		t.Fatalf("shellQuote = %q", got)
	}
	if got := shellQuote(`it's`); got != `'it'\''s'` {
		t.Fatalf("shellQuote = %q", got)
	}
}

func TestClampInt(t *testing.T) {
	if got := clampInt(5, 0, 3); got != 3 {
		t.Fatalf("clamp high = %d", got)
	}
	if got := clampInt(-1, 0, 3); got != 0 {
		t.Fatalf("clamp low = %d", got)
	}
	if got := clampInt(2, 0, 3); got != 2 {
		t.Fatalf("clamp mid = %d", got)
	}
}
