package digest

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/ppiankov/readdigest/internal/source"
)

// JSONFormatter writes the result as indented JSON with sorted keys.
type JSONFormatter struct{}

// NewJSON creates a JSON formatter.
func NewJSON() *JSONFormatter {
	return &JSONFormatter{}
}

// Format writes r as JSON to w. Object keys are sorted at every level and
// posts without a timestamp carry "published_at": null.
func (f *JSONFormatter) Format(w io.Writer, r Result) error {
	if r.NewPosts == nil {
		r.NewPosts = []Post{}
	}
	r.Sources = append([]SourceReport{}, r.Sources...)
	for i := range r.Sources {
		if r.Sources[i].NewPosts == nil {
			r.Sources[i].NewPosts = []Post{}
		}
	}
	if r.HNTop == nil {
		r.HNTop = []source.Story{}
	}
	r.NewPostsTotal = len(r.NewPosts)
	r.GeneratedAt = r.GeneratedAt.UTC()
	r.WindowStart = r.WindowStart.UTC()

	raw, err := json.Marshal(r)
	if err != nil {
		return fmt.Errorf("encode digest: %w", err)
	}

	// Maps marshal with sorted keys; numbers stay exact through json.Number.
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var generic any
	if err := dec.Decode(&generic); err != nil {
		return fmt.Errorf("encode digest: %w", err)
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(generic)
}
