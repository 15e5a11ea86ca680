package privacy

import (
	"testing"
)

func TestNew_Invalid(t *testing.T) {
	_, err := New([]string{`[invalid`})
	if err == nil {
		t.Fatal("expected error for invalid pattern")
	}
}

func TestNew_EmptyIsNil(t *testing.T) {
	for _, patterns := range [][]string{nil, {}, {"", "  "}} {
		r, err := New(patterns)
		if err != nil {
			t.Fatalf("new: %v", err)
		}
		if r != nil {
			t.Errorf("New(%q) = %v, want nil", patterns, r)
		}
		if r.Len() != 0 {
			t.Errorf("len = %d, want 0", r.Len())
		}
	}
}

func TestApply(t *testing.T) {
	tests := []struct {
		name     string
		patterns []string
		text     string
		want     string
	}{
		{"single", []string{`(?i)token`}, "My API Token is abc123", "My API [REDACTED] is abc123"},
		{"multiple patterns", []string{`(?i)token`, `(?i)secret`}, "Token and Secret values", "[REDACTED] and [REDACTED] values"},
		{"repeated match", []string{`(?i)password`}, "password is password", "[REDACTED] is [REDACTED]"},
		{"email", []string{`[\w.+-]+@[\w-]+\.[\w.]+`}, "write to jane.doe@example.com today", "write to [REDACTED] today"},
		{"no match", []string{`(?i)token`}, "nothing to redact here", "nothing to redact here"},
		{"empty text", []string{`.*`}, "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r, err := New(tt.patterns)
			if err != nil {
				t.Fatalf("new: %v", err)
			}
			if got := r.Apply(tt.text); got != tt.want {
				t.Errorf("Apply(%q) = %q, want %q", tt.text, got, tt.want)
			}
		})
	}
}

func TestApply_NilRedactor(t *testing.T) {
	var r *Redactor
	text := "should not change"
	if got := r.Apply(text); got != text {
		t.Errorf("got %q, want unchanged", got)
	}
}
