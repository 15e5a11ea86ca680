package digest

import (
	"fmt"
	"io"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// TerminalFormatter renders the digest for an interactive terminal.
type TerminalFormatter struct {
	opts   Options
	styles termStyles
}

type termStyles struct {
	header  lipgloss.Style
	section lipgloss.Style
	source  lipgloss.Style
	title   lipgloss.Style
	dim     lipgloss.Style
	err     lipgloss.Style
}

// NewTerminal creates a terminal formatter. With Color unset all styles are
// plain, so output is safe to pipe.
func NewTerminal(opts Options) *TerminalFormatter {
	if opts.Title == "" {
		opts.Title = DefaultTitle
	}
	return &TerminalFormatter{opts: opts, styles: newTermStyles(opts.Color)}
}

func newTermStyles(color bool) termStyles {
	if !color {
		plain := lipgloss.NewStyle()
		return termStyles{plain, plain, plain, plain, plain, plain}
	}
	return termStyles{
		header:  lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#FF79C6")),
		section: lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("#50FA7B")),
		source:  lipgloss.NewStyle().Foreground(lipgloss.Color("#8BE9FD")),
		title:   lipgloss.NewStyle().Bold(true),
		dim:     lipgloss.NewStyle().Foreground(lipgloss.Color("#6272A4")),
		err:     lipgloss.NewStyle().Foreground(lipgloss.Color("#FF5555")),
	}
}

// Format writes the digest to w.
func (f *TerminalFormatter) Format(w io.Writer, r Result) error {
	st := f.styles
	var b strings.Builder

	header := fmt.Sprintf("%s (%s)", f.opts.Title, dateLabel(&r.GeneratedAt))
	fmt.Fprintln(&b, st.header.Render(header))
	fmt.Fprintln(&b, st.dim.Render(fmt.Sprintf("%d new posts from %d sources, window from %s",
		len(r.NewPosts), len(r.Sources), r.WindowStart.UTC().Format("2006-01-02 15:04 MST"))))
	fmt.Fprintln(&b)

	if len(r.NewPosts) == 0 {
		fmt.Fprintln(&b, "No new posts since the last run.")
	} else if f.opts.Layout == LayoutBySource {
		for _, g := range groupBySource(r.NewPosts) {
			fmt.Fprintln(&b, st.section.Render(fmt.Sprintf("--- %s (%d) ---", g.name, len(g.posts))))
			for _, p := range g.posts {
				f.writePost(&b, p, false)
			}
			fmt.Fprintln(&b)
		}
	} else {
		fmt.Fprintln(&b, st.section.Render(fmt.Sprintf("--- New posts (%d) ---", len(r.NewPosts))))
		for _, p := range r.NewPosts {
			f.writePost(&b, p, true)
		}
		fmt.Fprintln(&b)
	}

	if len(r.HNTop) > 0 {
		fmt.Fprintln(&b, st.section.Render(fmt.Sprintf("--- Hacker News top %d ---", len(r.HNTop))))
		for _, s := range r.HNTop {
			fmt.Fprintf(&b, "  %2d. %s %s\n", s.Rank, st.title.Render(s.Title),
				st.dim.Render(fmt.Sprintf("(%d points, %d comments)", s.Score, s.Comments)))
			fmt.Fprintf(&b, "      %s\n", st.dim.Render(s.URL))
		}
		fmt.Fprintln(&b)
	}

	if failed := r.Failed(); len(failed) > 0 {
		fmt.Fprintln(&b, st.err.Render(fmt.Sprintf("--- Source errors (%d) ---", len(failed))))
		for _, s := range failed {
			fmt.Fprintf(&b, "  %s: %s\n", s.SourceName, st.err.Render(s.Error))
		}
	}

	_, err := io.WriteString(w, b.String())
	return err
}

func (f *TerminalFormatter) writePost(b *strings.Builder, p Post, withSource bool) {
	st := f.styles
	line := "  "
	if withSource {
		line += st.source.Render("["+p.SourceName+"]") + " "
	}
	line += st.title.Render(p.Title) + " " + st.dim.Render("("+dateLabel(p.PublishedAt)+")")
	fmt.Fprintln(b, line)
	fmt.Fprintf(b, "      %s\n", st.dim.Render(p.URL))
	if p.Excerpt != "" {
		fmt.Fprintf(b, "      %s\n", p.Excerpt)
	}
}
