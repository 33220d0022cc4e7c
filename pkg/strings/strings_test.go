package strings

import (
	"testing"
)

func TestFirstLine(t *testing.T) {
	tests := map[string]string{
		"":                          "",
		"single":                    "single",
		"\n\n  device lost \nstack": "device lost",
		"   \n\t\n":                 "",
	}
	for in, want := range tests {
		if got := FirstLine(in); got != want {
			t.Errorf("FirstLine(%q) = %q, want %q", in, got, want)
		}
	}
}

func TestSummary(t *testing.T) {
	tests := []struct {
		name  string
		input string
		width int
		want  string
	}{
		{"short message unchanged", "PASS", 10, "PASS"},
		{"exact width unchanged", "hello", 5, "hello"},
		{"long message cut", "iteration 3/5: adb shell timed out", 15, "iteration 3/..."},
		{"whitespace collapsed", "expected   FAIL:\tgot PASS", 60, "expected FAIL: got PASS"},
		{"only the first line", "boom\ntraceback line", 60, "boom"},
		{"unicode kept whole", "überprüfung fehlgeschlagen", 8, "überp..."},
		{"width clamped", "abcdefgh", 1, "a..."},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Summary(tt.input, tt.width); got != tt.want {
				t.Errorf("Summary(%q, %d) = %q, want %q", tt.input, tt.width, got, tt.want)
			}
		})
	}
}
