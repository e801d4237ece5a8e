package util

import "testing"

func TestFormatBytes(t *testing.T) {
	tests := []struct {
		name     string
		input    int64
		expected string
	}{
		{name: "zero", input: 0, expected: "0 B"},
		{name: "bytes", input: 512, expected: "512 B"},
		{name: "one kibibyte", input: 1024, expected: "1.0 KiB"},
		{name: "fractional", input: 1536, expected: "1.5 KiB"},
		{name: "mebibytes", input: 5 * 1024 * 1024, expected: "5.0 MiB"},
		{name: "gibibytes", input: 3 * 1024 * 1024 * 1024, expected: "3.0 GiB"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := FormatBytes(tt.input); got != tt.expected {
				t.Errorf("FormatBytes(%d) = %q, want %q", tt.input, got, tt.expected)
			}
		})
	}
}

func TestPlural(t *testing.T) {
	if got := Plural(1, "file", "files"); got != "file" {
		t.Errorf("Plural(1) = %q, want file", got)
	}
	for _, n := range []int{0, 2, 10} {
		if got := Plural(n, "file", "files"); got != "files" {
			t.Errorf("Plural(%d) = %q, want files", n, got)
		}
	}
}
