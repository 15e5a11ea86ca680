package cli

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/ppiankov/readdigest/internal/config"
	"github.com/ppiankov/readdigest/internal/state"
)

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "Inspect or reset the seen-URL state",
}

var stateShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the stored state document",
	RunE:  stateShowAction,
}

var stateResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Forget the last run and every seen URL",
	RunE:  stateResetAction,
}

func init() {
	stateCmd.AddCommand(stateShowCmd, stateResetCmd)
	rootCmd.AddCommand(stateCmd)
}

// stateBackend is what the CLI needs from either state backend.
type stateBackend interface {
	state.Store
	Reset(ctx context.Context) error
}

// openStateStore returns the configured backend and a close func. stateFile,
// when set, forces the file backend at that path.
func openStateStore(ctx context.Context, cfg *config.Config, stateFile string) (stateBackend, func(), error) {
	if stateFile != "" || cfg.State.Backend == config.BackendFile {
		path := cfg.State.Path
		if stateFile != "" {
			path = stateFile
		}
		fs, err := state.NewFileStore(path)
		if err != nil {
			return nil, nil, fmt.Errorf("state file: %w", err)
		}
		return fs, func() {}, nil
	}

	rs, err := state.NewRedisStore(ctx, state.RedisOptions{
		Addr:     cfg.State.Redis.Addr,
		Password: cfg.State.Redis.Password,
		DB:       cfg.State.Redis.DB,
		Key:      cfg.State.Redis.Key,
	})
	if err != nil {
		return nil, nil, fmt.Errorf("state redis: %w", err)
	}
	return rs, func() { _ = rs.Close() }, nil
}

func describeState(st stateBackend) string {
	switch s := st.(type) {
	case *state.FileStore:
		return "file " + s.Path()
	case *state.RedisStore:
		return "redis key " + s.Key()
	default:
		return "state"
	}
}

func stateShowAction(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	st, closeState, err := openStateStore(ctx, cfg, "")
	if err != nil {
		return err
	}
	defer closeState()

	current, err := st.Load(ctx)
	if err != nil {
		return fmt.Errorf("load state: %w", err)
	}
	data, err := state.Encode(current)
	if err != nil {
		return err
	}
	_, err = os.Stdout.Write(data)
	return err
}

func stateResetAction(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}

	ctx := cmd.Context()
	st, closeState, err := openStateStore(ctx, cfg, "")
	if err != nil {
		return err
	}
	defer closeState()

	if err := st.Reset(ctx); err != nil {
		return fmt.Errorf("reset state: %w", err)
	}
	fmt.Printf("Reset %s.\n", describeState(st))
	return nil
}
