// cmd/localhist/main.go
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"strconv"
	"strings"
	"syscall"
	"time"

	"localhist/internal/config"
	lherrors "localhist/internal/errors"
	"localhist/internal/history"
	"localhist/internal/logging"
	"localhist/internal/watch"

	"github.com/fatih/color"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

var (
	configPath string
	logLevel   string
	backendArg string
	logger     = zap.NewNop()
)

var rootCmd = &cobra.Command{
	Use:   "localhist",
	Short: "localhist keeps a local revision history of saved files",
	Long: `localhist snapshots a file every time it is saved, keeps a bounded
number of recent revisions, and lets you list, compare against or restore
any of them.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", defaultConfigPath(), "configuration file")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "override the configured log level")
	rootCmd.PersistentFlags().StringVar(&backendArg, "backend", "", "override the configured backend (rcs, embedded)")

	var saveCmd = &cobra.Command{
		Use:   "save [files...]",
		Short: "Record a snapshot of each file",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := activate()
			if err != nil {
				return quiet(err)
			}
			defer h.Close()

			for _, file := range args {
				h.Save(cmd.Context(), file)
			}
			return nil
		},
	}

	var listCmd = &cobra.Command{
		Use:   "list [file]",
		Short: "List the retained revisions of a file, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := activate()
			if err != nil {
				return err
			}
			defer h.Close()

			in, err := begin(cmd.Context(), h, args[0])
			if err != nil {
				return err
			}

			printRevisions(color.Output, in.Revisions(), time.Now())
			return nil
		},
	}

	var revertCmd = &cobra.Command{
		Use:   "revert [file] [revision]",
		Short: "Replace a file with one of its revisions",
		Long:  `The revision is either a menu index as printed by list, or a revision name such as 1.4.`,
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := activate()
			if err != nil {
				return err
			}
			defer h.Close()

			ctx := cmd.Context()
			if isToken(args[1]) {
				if !h.HasHistory(args[0]) {
					return noHistory(args[0])
				}
				err = h.Revert(ctx, args[0], args[1])
			} else {
				err = withIndex(ctx, h, args, (*history.Interaction).Revert)
			}
			if err != nil {
				return err
			}

			fmt.Printf("Restored %s\n", args[0])
			return nil
		},
	}

	var diffCmd = &cobra.Command{
		Use:   "diff [file] [revision]",
		Short: "Compare a revision with the live file",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := activate()
			if err != nil {
				return err
			}
			defer h.Close()

			ctx := cmd.Context()
			if isToken(args[1]) {
				if !h.HasHistory(args[0]) {
					return noHistory(args[0])
				}
				return h.Diff(ctx, args[0], args[1])
			}
			return withIndex(ctx, h, args, (*history.Interaction).Diff)
		},
	}

	var pruneCmd = &cobra.Command{
		Use:   "prune [files...]",
		Short: "Apply the retention policy without saving",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			h, err := activate()
			if err != nil {
				return err
			}
			defer h.Close()

			for _, file := range args {
				if err := h.Prune(cmd.Context(), file); err != nil {
					return fmt.Errorf("pruning %s: %w", file, err)
				}
			}
			return nil
		},
	}

	var watchCmd = &cobra.Command{
		Use:   "watch [dirs...]",
		Short: "Snapshot files as they are written",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			h, err := activateWith(cfg)
			if err != nil {
				return quiet(err)
			}
			defer h.Close()

			w, err := watch.New(h, cfg.HistoryDir, logger)
			if err != nil {
				return err
			}
			defer w.Close()

			for _, dir := range args {
				if err := w.Add(dir); err != nil {
					return fmt.Errorf("watching %s: %w", dir, err)
				}
			}

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			logger.Info("watching for saves", zap.Strings("dirs", args))
			if err := w.Run(ctx); err != nil && ctx.Err() == nil {
				return err
			}
			return nil
		},
	}

	rootCmd.AddCommand(saveCmd, listCmd, revertCmd, diffCmd, pruneCmd, watchCmd)
}

func defaultConfigPath() string {
	if dir, err := os.UserConfigDir(); err == nil {
		return filepath.Join(dir, "localhist", "config.json")
	}
	return ""
}

func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, fmt.Errorf("loading config: %w", err)
	}
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}
	if backendArg != "" {
		cfg.Backend = backendArg
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	l, err := logging.NewLogger(cfg.LogLevel, cfg.Environment)
	if err != nil {
		return nil, fmt.Errorf("initializing logger: %w", err)
	}
	logger = l.Logger
	return cfg, nil
}

func activate() (*history.History, error) {
	cfg, err := loadConfig()
	if err != nil {
		return nil, err
	}
	return activateWith(cfg)
}

func activateWith(cfg *config.Config) (*history.History, error) {
	h, err := history.Activate(cfg, history.Host{
		Viewer:     &terminalViewer{out: color.Output, context: 3},
		Reloader:   logReloader{logger: logger},
		SearchPath: os.Getenv("PATH"),
	}, logger)
	if lherrors.Is(err, lherrors.ErrorTypeBackendUnavailable) {
		return nil, fmt.Errorf("local history unavailable: %w", err)
	}
	return h, err
}

// quiet hides a missing backend from commands that run on every save.
func quiet(err error) error {
	if lherrors.Is(err, lherrors.ErrorTypeBackendUnavailable) {
		logger.Debug("local history disabled", zap.Error(err))
		return nil
	}
	return err
}

func begin(ctx context.Context, h *history.History, file string) (*history.Interaction, error) {
	if !h.HasHistory(file) {
		return nil, noHistory(file)
	}
	return h.Begin(ctx, file)
}

func withIndex(ctx context.Context, h *history.History, args []string,
	act func(*history.Interaction, context.Context, int) error) error {
	index, err := strconv.Atoi(args[1])
	if err != nil {
		return fmt.Errorf("invalid revision %q", args[1])
	}
	in, err := begin(ctx, h, args[0])
	if err != nil {
		return err
	}
	return act(in, ctx, index)
}

func isToken(s string) bool {
	return strings.Contains(s, ".")
}

func noHistory(file string) error {
	return fmt.Errorf("%s: %w", file, history.ErrNoHistory)
}

func main() {
	if err := rootCmd.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
