package licensing

import (
	"strings"
	"testing"
)

func TestGenerateCode(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 100; i++ {
		code, err := GenerateCode()
		if err != nil {
			t.Fatalf("GenerateCode() error = %v", err)
		}

		if len(code) != 19 {
			t.Errorf("code %q has length %d, want 19", code, len(code))
		}

		groups := strings.Split(code, "-")
		if len(groups) != 4 {
			t.Fatalf("code %q has %d groups, want 4", code, len(groups))
		}
		for _, g := range groups {
			if len(g) != 4 {
				t.Errorf("code %q group %q has length %d, want 4", code, g, len(g))
			}
			if g != strings.ToUpper(g) {
				t.Errorf("code %q group %q is not uppercase", code, g)
			}
		}

		if seen[code] {
			t.Errorf("duplicate code generated: %q", code)
		}
		seen[code] = true
	}
}

func TestNormalizeCode(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{"already normalized", "AAAA-BBBB-CCCC-DDDD", "AAAA-BBBB-CCCC-DDDD"},
		{"lowercase", "aaaa-bbbb-cccc-dddd", "AAAA-BBBB-CCCC-DDDD"},
		{"whitespace", "  AAAA-BBBB-CCCC-DDDD\n", "AAAA-BBBB-CCCC-DDDD"},
		{"empty", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeCode(tt.input); got != tt.want {
				t.Errorf("NormalizeCode(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}
