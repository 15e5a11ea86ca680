package cli

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sort"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/readdigest/internal/store"
)

var (
	statsSince  string
	statsFormat string
	statsRuns   int
	statsPosts  bool
)

var statsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show per-source history from the run archive",
	RunE:  statsAction,
}

func init() {
	statsCmd.Flags().StringVar(&statsSince, "since", "30d", "time window (e.g. 7d, 48h)")
	statsCmd.Flags().StringVar(&statsFormat, "format", "terminal", "output format: terminal, json")
	statsCmd.Flags().IntVar(&statsRuns, "runs", 0, "also list the N most recent archived runs")
	statsCmd.Flags().BoolVar(&statsPosts, "posts", false, "also list the posts archived in the window")
	rootCmd.AddCommand(statsCmd)
}

const staleDays = 14

func statsAction(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cfg.Archive.Path == "" {
		return fmt.Errorf("archive.path is not set; stats need a run archive")
	}

	db, err := store.Open(cfg.Archive.Path)
	if err != nil {
		return fmt.Errorf("open archive: %w", err)
	}
	defer func() { _ = db.Close() }()

	sinceDur, err := parseDuration(statsSince)
	if err != nil {
		return fmt.Errorf("parse --since: %w", err)
	}
	sinceTime := time.Now().Add(-sinceDur)

	if statsFormat != "json" && statsFormat != "terminal" && statsFormat != "" {
		return fmt.Errorf("unknown format %q (want terminal or json)", statsFormat)
	}

	ctx := cmd.Context()
	stats, err := db.GetSourceStats(ctx, sinceTime)
	if err != nil {
		return fmt.Errorf("get stats: %w", err)
	}

	var runs []store.Run
	if statsRuns > 0 {
		if runs, err = db.RecentRuns(ctx, statsRuns); err != nil {
			return fmt.Errorf("get runs: %w", err)
		}
	}
	var posts []store.Post
	if statsPosts {
		if posts, err = db.PostsSince(ctx, sinceTime); err != nil {
			return fmt.Errorf("get posts: %w", err)
		}
	}

	if statsFormat == "json" {
		return printStatsJSON(os.Stdout, stats, runs, posts)
	}
	if len(stats) == 0 {
		fmt.Fprintln(os.Stdout, "No runs archived. Run 'readdigest run' first.")
		return nil
	}
	printStats(os.Stdout, stats, sinceDur)
	printRuns(os.Stdout, runs)
	printPosts(os.Stdout, posts)
	return nil
}

type jsonStatsOutput struct {
	Sources []jsonSourceStats `json:"sources"`
	Totals  jsonTotals        `json:"totals"`
	Runs    []jsonRun         `json:"runs,omitempty"`
	Posts   []jsonPost        `json:"posts,omitempty"`
}

type jsonSourceStats struct {
	SourceID   string     `json:"source_id"`
	SourceName string     `json:"source_name"`
	Runs       int        `json:"runs"`
	Fetched    int        `json:"fetched"`
	New        int        `json:"new"`
	Errors     int        `json:"errors"`
	LastError  string     `json:"last_error,omitempty"`
	LastPostAt *time.Time `json:"last_post_at"`
}

type jsonTotals struct {
	New    int `json:"new"`
	Errors int `json:"errors"`
}

type jsonRun struct {
	ID            int64     `json:"id"`
	GeneratedAt   time.Time `json:"generated_at"`
	WindowStart   time.Time `json:"window_start"`
	NewPosts      int       `json:"new_posts"`
	Sources       int       `json:"sources"`
	FailedSources int       `json:"failed_sources"`
	HNStories     int       `json:"hn_stories"`
}

type jsonPost struct {
	RunID       int64      `json:"run_id"`
	SourceID    string     `json:"source_id"`
	Title       string     `json:"title"`
	URL         string     `json:"url"`
	PublishedAt *time.Time `json:"published_at"`
}

func printStatsJSON(w io.Writer, stats []store.SourceStats, runs []store.Run, posts []store.Post) error {
	out := jsonStatsOutput{Sources: make([]jsonSourceStats, 0, len(stats))}
	for _, ss := range stats {
		out.Sources = append(out.Sources, jsonSourceStats{
			SourceID:   ss.SourceID,
			SourceName: ss.SourceName,
			Runs:       ss.Runs,
			Fetched:    ss.Fetched,
			New:        ss.New,
			Errors:     ss.Errors,
			LastError:  ss.LastError,
			LastPostAt: ss.LastPostAt,
		})
		out.Totals.New += ss.New
		out.Totals.Errors += ss.Errors
	}
	for _, r := range runs {
		out.Runs = append(out.Runs, jsonRun{
			ID:            r.ID,
			GeneratedAt:   r.GeneratedAt,
			WindowStart:   r.WindowStart,
			NewPosts:      r.NewPosts,
			Sources:       r.Sources,
			FailedSources: r.FailedSources,
			HNStories:     r.HNStories,
		})
	}
	for _, p := range posts {
		out.Posts = append(out.Posts, jsonPost{
			RunID:       p.RunID,
			SourceID:    p.SourceID,
			Title:       p.Title,
			URL:         p.URL,
			PublishedAt: p.PublishedAt,
		})
	}

	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(out)
}

func printStats(w io.Writer, stats []store.SourceStats, since time.Duration) {
	now := time.Now()

	totalNew := 0
	maxRuns := 0
	for _, ss := range stats {
		totalNew += ss.New
		if ss.Runs > maxRuns {
			maxRuns = ss.Runs
		}
	}

	fmt.Fprintf(w, "readdigest stats: %s, %d new posts from %d sources over %d runs\n\n",
		formatStatsDuration(since), totalNew, len(stats), maxRuns)

	// Most productive sources first
	sorted := make([]store.SourceStats, len(stats))
	copy(sorted, stats)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].New > sorted[j].New
	})

	fmt.Fprintln(w, "--- Sources ---")
	fmt.Fprintln(w)

	maxName := 6 // minimum "Source"
	for _, ss := range sorted {
		if len(ss.SourceName) > maxName {
			maxName = len(ss.SourceName)
		}
	}
	if maxName > 40 {
		maxName = 40
	}

	fmt.Fprintf(w, "  %-*s  %4s  %7s  %4s  %6s  %s\n", maxName, "Source", "Runs", "Fetched", "New", "Errors", "Last post")
	for _, ss := range sorted {
		name := ss.SourceName
		if len(name) > maxName {
			name = name[:maxName-1] + "…"
		}
		last := "-"
		if ss.LastPostAt != nil {
			last = ss.LastPostAt.Format("2006-01-02")
		}
		fmt.Fprintf(w, "  %-*s  %4d  %7d  %4d  %6d  %s\n",
			maxName, name, ss.Runs, ss.Fetched, ss.New, ss.Errors, last)
	}
	fmt.Fprintln(w)

	var failing []store.SourceStats
	for _, ss := range stats {
		if ss.Errors > 0 {
			failing = append(failing, ss)
		}
	}
	if len(failing) > 0 {
		fmt.Fprintln(w, "--- Errors ---")
		fmt.Fprintln(w)
		for _, ss := range failing {
			fmt.Fprintf(w, "  %s: %d of %d runs failed, last: %s\n", ss.SourceName, ss.Errors, ss.Runs, ss.LastError)
		}
		fmt.Fprintln(w)
	}

	staleThreshold := now.AddDate(0, 0, -staleDays)
	var quiet []store.SourceStats
	for _, ss := range stats {
		if ss.LastPostAt == nil || ss.LastPostAt.Before(staleThreshold) {
			quiet = append(quiet, ss)
		}
	}
	if len(quiet) > 0 {
		fmt.Fprintf(w, "--- Quiet Sources (no new posts in %d+ days) ---\n\n", staleDays)
		for _, ss := range quiet {
			if ss.LastPostAt == nil {
				fmt.Fprintf(w, "  %s: nothing new in this window\n", ss.SourceName)
				continue
			}
			daysAgo := int(now.Sub(*ss.LastPostAt).Hours() / 24)
			fmt.Fprintf(w, "  %s: last new post %d days ago\n", ss.SourceName, daysAgo)
		}
		fmt.Fprintln(w)
	}
}

func printRuns(w io.Writer, runs []store.Run) {
	if len(runs) == 0 {
		return
	}
	fmt.Fprintln(w, "--- Recent Runs ---")
	fmt.Fprintln(w)
	for _, r := range runs {
		fmt.Fprintf(w, "  #%d  %s  %d new, %d/%d sources failed, %d HN stories\n",
			r.ID, r.GeneratedAt.Local().Format("2006-01-02 15:04"), r.NewPosts, r.FailedSources, r.Sources, r.HNStories)
	}
	fmt.Fprintln(w)
}

func printPosts(w io.Writer, posts []store.Post) {
	if len(posts) == 0 {
		return
	}
	fmt.Fprintf(w, "--- Posts (%d) ---\n\n", len(posts))
	for _, p := range posts {
		fmt.Fprintf(w, "  [%s] %s\n    %s\n", p.SourceName, p.Title, p.URL)
	}
	fmt.Fprintln(w)
}

// parseDuration handles both Go durations and "Nd" day notation.
func parseDuration(s string) (time.Duration, error) {
	if len(s) > 1 && s[len(s)-1] == 'd' {
		var days int
		if _, err := fmt.Sscanf(s, "%dd", &days); err == nil && days > 0 {
			return time.Duration(days) * 24 * time.Hour, nil
		}
	}
	return time.ParseDuration(s)
}

func formatStatsDuration(d time.Duration) string {
	hours := int(d.Hours())
	if hours >= 24 && hours%24 == 0 {
		return fmt.Sprintf("%d days", hours/24)
	}
	return fmt.Sprintf("%dh", hours)
}
