package cli

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/spf13/cobra"

	"github.com/ppiankov/readdigest/internal/collect"
	"github.com/ppiankov/readdigest/internal/config"
	"github.com/ppiankov/readdigest/internal/digest"
	"github.com/ppiankov/readdigest/internal/logger"
	"github.com/ppiankov/readdigest/internal/privacy"
	"github.com/ppiankov/readdigest/internal/source"
	"github.com/ppiankov/readdigest/internal/store"
)

var (
	runStateFile    string
	runSince        time.Duration
	runGrace        time.Duration
	runMaxPerSource int
	runHNLimit      int
	runFormat       string
	runLayout       string
	runDryRun       bool
	noColor         bool
	runSchedule     string
)

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch feeds and print the posts that are new since the last run",
	RunE:  runAction,
}

func init() {
	f := runCmd.Flags()
	f.StringVar(&runStateFile, "state-file", "", "state file path (forces the file backend)")
	f.DurationVar(&runSince, "since", 0, "first-run lookback window (e.g. 30h)")
	f.DurationVar(&runGrace, "grace", 0, "overlap subtracted from the last run time")
	f.IntVar(&runMaxPerSource, "max-posts-per-source", 0, "new posts kept per source")
	f.IntVar(&runHNLimit, "hn-limit", 0, "Hacker News top stories to include (0 disables)")
	f.StringVar(&runFormat, "format", "", "output format: json, markdown, terminal")
	f.StringVar(&runLayout, "layout", "", "text layout: timeline, by-source")
	f.BoolVar(&runDryRun, "dry-run", false, "do not persist state or archive the run")
	f.BoolVar(&runDryRun, "no-state-update", false, "alias for --dry-run")
	f.BoolVar(&noColor, "no-color", false, "disable ANSI colors")
	f.StringVar(&runSchedule, "schedule", "", `run repeatedly on a cron schedule (e.g. "@every 6h" or "0 7 * * *")`)
	rootCmd.AddCommand(runCmd)
}

func runAction(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if err := applyRunFlags(cmd, cfg); err != nil {
		return err
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	if runSchedule != "" {
		return runScheduled(ctx, cfg, runSchedule, os.Stdout)
	}
	return runOnce(ctx, cfg, os.Stdout)
}

// applyRunFlags copies explicitly set flags over the loaded config.
func applyRunFlags(cmd *cobra.Command, cfg *config.Config) error {
	f := cmd.Flags()
	if f.Changed("since") {
		if runSince <= 0 {
			return fmt.Errorf("--since must be positive")
		}
		cfg.Window.Since.Duration = runSince
	}
	if f.Changed("grace") {
		if runGrace < 0 {
			return fmt.Errorf("--grace must not be negative")
		}
		cfg.Window.Grace.Duration = runGrace
	}
	if f.Changed("max-posts-per-source") {
		if runMaxPerSource <= 0 {
			return fmt.Errorf("--max-posts-per-source must be positive")
		}
		cfg.Digest.MaxPostsPerSource = runMaxPerSource
	}
	if f.Changed("hn-limit") {
		if runHNLimit < 0 || runHNLimit > config.MaxHNLimit {
			return fmt.Errorf("--hn-limit must be between 0 and %d", config.MaxHNLimit)
		}
		n := runHNLimit
		cfg.Digest.HNLimit = &n
	}
	if runFormat != "" {
		cfg.Digest.Format = runFormat
	}
	if runLayout != "" {
		cfg.Digest.Layout = runLayout
	}
	return nil
}

// runOnce performs one digest pass and writes the rendered digest to w.
func runOnce(ctx context.Context, cfg *config.Config, w io.Writer) error {
	formatter, err := digest.New(cfg.Digest.Format, digest.Options{
		Title:  cfg.Digest.Title,
		Layout: digest.Layout(cfg.Digest.Layout),
		Color:  !noColor,
	})
	if err != nil {
		return err
	}

	var redactor *privacy.Redactor
	if cfg.Privacy.Redact.Enabled {
		redactor, err = privacy.New(cfg.Privacy.Redact.Patterns)
		if err != nil {
			return fmt.Errorf("redact patterns: %w", err)
		}
	}

	st, closeState, err := openStateStore(ctx, cfg, runStateFile)
	if err != nil {
		return err
	}
	defer closeState()

	prior, err := st.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}

	collectCfg := collect.Config{
		Sources:      sourcesFromConfig(cfg),
		Fetcher:      source.NewFetcher(cfg.Fetch.Timeout.Duration),
		Lookback:     cfg.Window.Since.Duration,
		Grace:        cfg.Window.Grace.Duration,
		MaxPerSource: cfg.Digest.MaxPostsPerSource,
		RankLimit:    cfg.Digest.HN(),
		ExcerptLen:   cfg.Digest.ExcerptLen,
		MaxSeen:      cfg.State.MaxSeen,
		Redactor:     redactor,
	}
	if collectCfg.RankLimit > 0 {
		collectCfg.Ranker = source.NewHN(cfg.Fetch.Timeout.Duration)
	}

	result, next := collect.New(collectCfg).Run(ctx, prior)

	if runDryRun {
		logger.Infof("dry run: state not saved")
	} else {
		if err := st.Save(ctx, next); err != nil {
			return fmt.Errorf("save state: %w", err)
		}
		archiveRun(ctx, cfg, result)
	}

	logger.Infof("digest: %d new posts from %d sources (%d failed)",
		result.NewPostsTotal, len(result.Sources), len(result.Failed()))
	return formatter.Format(w, result)
}

// archiveRun records the run when an archive is configured. Archive problems
// never fail the run.
func archiveRun(ctx context.Context, cfg *config.Config, result digest.Result) {
	if cfg.Archive.Path == "" {
		return
	}
	db, err := store.Open(cfg.Archive.Path)
	if err != nil {
		logger.Warnf("archive: %v", err)
		return
	}
	defer func() { _ = db.Close() }()

	id, err := db.RecordRun(ctx, result)
	if err != nil {
		logger.Warnf("archive: %v", err)
		return
	}
	logger.Debugf("archive: recorded run %d", id)

	if n, err := db.PruneOld(ctx, cfg.Archive.RetainDays); err != nil {
		logger.Warnf("archive prune: %v", err)
	} else if n > 0 {
		logger.Infof("archive: pruned %d runs older than %d days", n, cfg.Archive.RetainDays)
	}
}

func sourcesFromConfig(cfg *config.Config) []source.Source {
	out := make([]source.Source, 0, len(cfg.Sources))
	for _, s := range cfg.Sources {
		out = append(out, source.Source{ID: s.ID, Name: s.Name, FeedURL: s.Feed})
	}
	return out
}

// runScheduled runs once immediately, then on every tick of schedule until ctx
// is cancelled or the process receives SIGINT/SIGTERM. Ticks that arrive
// while a run is still going are skipped.
func runScheduled(ctx context.Context, cfg *config.Config, schedule string, w io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	job := func() {
		if err := runOnce(ctx, cfg, w); err != nil {
			logger.Errorf("scheduled run: %v", err)
		}
	}

	c := cron.New(cron.WithChain(cron.SkipIfStillRunning(cronLogger{})), cron.WithLogger(cronLogger{}))
	if _, err := c.AddFunc(schedule, job); err != nil {
		return fmt.Errorf("parse --schedule %q: %w", schedule, err)
	}

	logger.Infof("scheduled: %s", schedule)
	job()
	c.Start()

	<-ctx.Done()
	<-c.Stop().Done()
	return nil
}

// cronLogger routes cron's own messages through the zap logger.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...interface{}) {
	logger.L.Debugw(msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...interface{}) {
	logger.L.Errorw(msg, append(keysAndValues, "error", err)...)
}
