package cli

import (
	"context"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/spf13/cobra"

	"github.com/ppiankov/readdigest/internal/config"
	"github.com/ppiankov/readdigest/internal/feed"
	"github.com/ppiankov/readdigest/internal/source"
	"github.com/ppiankov/readdigest/internal/store"
)

var doctorOffline bool

var doctorCmd = &cobra.Command{
	Use:   "doctor",
	Short: "Check config, state, archive and feed reachability",
	RunE:  doctorAction,
}

func init() {
	doctorCmd.Flags().BoolVar(&doctorOffline, "offline", false, "skip fetching the configured feeds")
	rootCmd.AddCommand(doctorCmd)
}

func doctorAction(cmd *cobra.Command, _ []string) error {
	ok := true
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	// Config dir
	if info, err := os.Stat(configDir); err != nil || !info.IsDir() {
		printCheck(false, "config directory %s", configDir)
		ok = false
	} else {
		printCheck(true, "config directory %s", configDir)
	}

	// Config file
	cfg, err := loadConfig()
	if err != nil {
		printCheck(false, "config.yaml: %v", err)
		return fmt.Errorf("some checks failed")
	}
	printCheck(true, "config.yaml (%d sources, %s state, format %s)",
		len(cfg.Sources), cfg.State.Backend, cfg.Digest.Format)

	// State
	if st, closeState, err := openStateStore(ctx, cfg, ""); err != nil {
		printCheck(false, "state: %v", err)
		ok = false
	} else {
		current, err := st.Load(ctx)
		if err != nil {
			printCheck(false, "state %s: %v", describeState(st), err)
			ok = false
		} else {
			last := "never"
			if current.LastRun != nil {
				last = current.LastRun.Format(time.RFC3339)
			}
			printCheck(true, "state %s (last run %s, %d seen urls)", describeState(st), last, len(current.SeenURLs))
		}
		closeState()
	}

	// Archive
	var db *store.Store
	if cfg.Archive.Path != "" {
		db, err = store.Open(cfg.Archive.Path)
		if err != nil {
			printCheck(false, "archive: %v", err)
			ok = false
		} else {
			defer func() { _ = db.Close() }()
			printCheck(true, "archive %s (%s)", cfg.Archive.Path, lastArchivedRun(ctx, db))
		}
	}

	// Feeds
	if !doctorOffline {
		if !checkFeeds(ctx, cfg) {
			ok = false
		}
	}

	// Source health (info-level, non-fatal)
	if db != nil {
		checkSourceHealth(ctx, db)
	}

	if !ok {
		return fmt.Errorf("some checks failed")
	}
	fmt.Println("\nAll checks passed.")
	return nil
}

func lastArchivedRun(ctx context.Context, db *store.Store) string {
	runs, err := db.RecentRuns(ctx, 1)
	if err != nil {
		return err.Error()
	}
	if len(runs) == 0 {
		return "no runs yet"
	}
	r := runs[0]
	return fmt.Sprintf("last run %s, %d new posts", r.GeneratedAt.Format(time.RFC3339), r.NewPosts)
}

func checkFeeds(ctx context.Context, cfg *config.Config) bool {
	fetcher := source.NewFetcher(cfg.Fetch.Timeout.Duration)
	ok := true
	for _, s := range cfg.Sources {
		body, err := fetcher.Fetch(ctx, s.Feed)
		if err != nil {
			printCheck(false, "feed %s: %v", s.ID, err)
			ok = false
			continue
		}
		entries, err := feed.Decode(body, feed.Options{ExcerptLen: cfg.Digest.ExcerptLen})
		if err != nil {
			if errors.Is(err, feed.ErrUnsupportedFormat) {
				printCheck(false, "feed %s: not an RSS, Atom or JSON feed", s.ID)
			} else {
				printCheck(false, "feed %s: %v", s.ID, err)
			}
			ok = false
			continue
		}
		printCheck(true, "feed %s (%d entries)", s.ID, len(entries))
	}
	return ok
}

func checkSourceHealth(ctx context.Context, db *store.Store) {
	// Look back 30 days for source health assessment
	since := time.Now().AddDate(0, 0, -30)
	stats, err := db.GetSourceStats(ctx, since)
	if err != nil || len(stats) == 0 {
		return // no data yet, skip
	}

	staleThreshold := time.Now().AddDate(0, 0, -staleDays)
	fmt.Println()

	for _, ss := range stats {
		if ss.Runs >= 3 && ss.Errors == ss.Runs {
			printInfo("failing: %s has errored on all %d runs (last: %s)", ss.SourceID, ss.Runs, ss.LastError)
			continue
		}
		if ss.LastPostAt != nil && ss.LastPostAt.Before(staleThreshold) {
			daysAgo := int(time.Since(*ss.LastPostAt).Hours() / 24)
			printInfo("quiet: %s, last new post %d days ago", ss.SourceID, daysAgo)
		}
	}
}

func printCheck(pass bool, format string, args ...any) {
	mark := "FAIL"
	if pass {
		mark = " OK "
	}
	fmt.Printf("[%s] %s\n", mark, fmt.Sprintf(format, args...))
}

func printInfo(format string, args ...any) {
	fmt.Printf("[INFO] %s\n", fmt.Sprintf(format, args...))
}
