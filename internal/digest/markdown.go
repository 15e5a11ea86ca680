package digest

import (
	"fmt"
	"io"
	"strings"
)

// MarkdownFormatter renders a plain-text digest suitable for chat or email.
type MarkdownFormatter struct {
	opts Options
}

// NewMarkdown creates a Markdown formatter.
func NewMarkdown(opts Options) *MarkdownFormatter {
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	return &MarkdownFormatter{opts: opts}
}

// Format writes the digest as Markdown to w.
func (f *MarkdownFormatter) Format(w io.Writer, r Result) error {
	var b strings.Builder

	fmt.Fprintf(&b, "%s (%s)\n\n", f.opts.Title, dateLabel(&r.GeneratedAt))

	if f.opts.Layout == LayoutBySource {
		writeBySource(&b, r.NewPosts)
	} else {
		writeTimeline(&b, r.NewPosts)
	}

	if len(r.HNTop) > 0 {
		fmt.Fprintf(&b, "\nHacker News top %d\n", len(r.HNTop))
		for _, s := range r.HNTop {
			fmt.Fprintf(&b, "%d. %s (%d points, %d comments)\n", s.Rank, s.Title, s.Score, s.Comments)
			fmt.Fprintf(&b, "   %s\n", s.URL)
		}
	}

	if failed := r.Failed(); len(failed) > 0 {
		b.WriteString("\nSource errors\n")
		for _, s := range failed {
			fmt.Fprintf(&b, "- %s: %s\n", s.SourceName, s.Error)
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func writeTimeline(b *strings.Builder, posts []Post) {
	fmt.Fprintf(b, "New posts from tracked writers: %d\n", len(posts))
	if len(posts) == 0 {
		b.WriteString("- No new posts since the last run.\n")
		return
	}
	for _, p := range posts {
		fmt.Fprintf(b, "- [%s] %s (%s)\n", p.SourceName, p.Title, dateLabel(p.PublishedAt))
		fmt.Fprintf(b, "  %s\n", p.URL)
		if excerpt := strings.TrimSpace(p.Excerpt); excerpt != "" {
			fmt.Fprintf(b, "  %s\n", excerpt)
		}
	}
}

func writeBySource(b *strings.Builder, posts []Post) {
	if len(posts) == 0 {
		b.WriteString("No new posts this period.\n")
		return
	}
	for i, g := range groupBySource(posts) {
		if i > 0 {
			b.WriteString("\n")
		}
		fmt.Fprintf(b, "From %s:\n", g.name)
		for _, p := range g.posts {
			fmt.Fprintf(b, "  - %s\n", p.Title)
			fmt.Fprintf(b, "    %s\n", p.URL)
			if excerpt := strings.TrimSpace(p.Excerpt); excerpt != "" {
				fmt.Fprintf(b, "    %s\n", excerpt)
			}
		}
	}
}
