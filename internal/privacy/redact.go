// Package privacy masks configured patterns in post excerpts before they are
// printed or archived.
package privacy

import (
	"fmt"
	"regexp"
	"strings"
)

// Placeholder replaces every match.
const Placeholder = "[REDACTED]"

// Redactor replaces regex matches with Placeholder. A nil Redactor is a no-op.
type Redactor struct {
	patterns []*regexp.Regexp
}

// New compiles patterns. Blank patterns are skipped. It returns nil when no
// pattern remains, which redacts nothing.
func New(patterns []string) (*Redactor, error) {
	var compiled []*regexp.Regexp
	for _, p := range patterns {
		if strings.TrimSpace(p) == "" {
			continue
		}
		re, err := regexp.Compile(p)
		if err != nil {
			return nil, fmt.Errorf("compile redact pattern %q: %w", p, err)
		}
		compiled = append(compiled, re)
	}
	if len(compiled) == 0 {
		return nil, nil
	}
	return &Redactor{patterns: compiled}, nil
}

// Len reports the number of active patterns.
func (r *Redactor) Len() int {
	if r == nil {
		return 0
	}
	return len(r.patterns)
}

// Apply returns text with all matches replaced.
func (r *Redactor) Apply(text string) string {
	if r == nil || text == "" {
		return text
	}
	for _, re := range r.patterns {
		text = re.ReplaceAllString(text, Placeholder)
	}
	return text
}
