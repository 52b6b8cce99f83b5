// Command arbor-check type checks .arb declaration files through the
// kernel and optionally exports the resulting environment.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/arbor-lang/arbor/internal/config"
	"github.com/arbor-lang/arbor/internal/export"
	"github.com/arbor-lang/arbor/internal/kernel"
	"github.com/arbor-lang/arbor/internal/parser"
)

var (
	flagConfig  string
	flagVerbose bool
	flagWatch   bool
	flagWorkers int
	flagOut     string
)

func main() {
	root := &cobra.Command{
		Use:           "arbor-check [files...]",
		Short:         "Type check declaration files against the kernel",
		Args:          cobra.MinimumNArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE:          runCheck,
	}

	root.PersistentFlags().StringVar(&flagConfig, "config", "", "path to a limits config file")
	root.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")
	root.PersistentFlags().IntVar(&flagWorkers, "workers", 0, "parallel checking workers (0 = auto)")
	root.Flags().BoolVarP(&flagWatch, "watch", "w", false, "re-check when input files change")

	exportCmd := &cobra.Command{
		Use:   "export [files...]",
		Short: "Check files and write the environment as JSON lines",
		Args:  cobra.MinimumNArgs(1),
		RunE:  runExport,
	}
	exportCmd.Flags().StringVarP(&flagOut, "out", "o", "-", "output path (- for stdout)")
	root.AddCommand(exportCmd)

	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}

func newLogger() (*zap.Logger, error) {
	if flagVerbose {
		return zap.NewDevelopment()
	}

	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zap.WarnLevel)

	return cfg.Build()
}

func loadLimits() (config.Limits, error) {
	if flagConfig != "" {
		return config.Load(flagConfig)
	}

	return config.FromEnv(), nil
}

// checkOnce parses every file and runs one batch check over a fresh
// session, returning the session for further use.
func checkOnce(ctx context.Context, log *zap.Logger, files []string) (*kernel.Session, error) {
	limits, err := loadLimits()
	if err != nil {
		return nil, err
	}

	if flagWorkers > 0 {
		limits.Workers = flagWorkers
	}

	var entries []*kernel.BatchEntry

	for _, f := range files {
		src, err := os.ReadFile(f)
		if err != nil {
			return nil, err
		}

		parsed, err := parser.Parse(string(src))
		if err != nil {
			return nil, fmt.Errorf("%s: %w", f, err)
		}

		entries = append(entries, parsed...)
	}

	session := kernel.NewSession(kernel.WithLogger(log), kernel.WithLimits(limits))

	start := time.Now()
	if err := session.CheckBatch(ctx, entries); err != nil {
		return nil, err
	}

	log.Info("batch checked",
		zap.Int("declarations", len(entries)),
		zap.Int("files", len(files)),
		zap.Duration("elapsed", time.Since(start)))

	return session, nil
}

func runCheck(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if _, err := checkOnce(ctx, log, args); err != nil {
		if !flagWatch {
			return err
		}

		// In watch mode a failing first pass is reported, not fatal.
		fmt.Fprintln(os.Stderr, "error:", err)
	} else {
		fmt.Printf("ok: %d file(s)\n", len(args))
	}

	if !flagWatch {
		return nil
	}

	return watch(ctx, log, args)
}

// watch re-runs the whole check whenever one of the input files
// changes. Events are debounced because editors produce bursts.
func watch(ctx context.Context, log *zap.Logger, files []string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer watcher.Close()

	watched := map[string]bool{}

	for _, f := range files {
		abs, err := filepath.Abs(f)
		if err != nil {
			return err
		}

		watched[abs] = true

		// Watch the directory: editors replace files on save, which
		// drops a watch registered on the file itself.
		if err := watcher.Add(filepath.Dir(abs)); err != nil {
			return err
		}
	}

	log.Info("watching for changes", zap.Int("files", len(files)))

	var (
		debounce *time.Timer
		pending  <-chan time.Time
	)

	for {
		select {
		case <-ctx.Done():
			return nil
		case ev, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			abs, err := filepath.Abs(ev.Name)
			if err != nil || !watched[abs] {
				continue
			}

			if !ev.Has(fsnotify.Write) && !ev.Has(fsnotify.Create) && !ev.Has(fsnotify.Rename) {
				continue
			}

			if debounce == nil {
				debounce = time.NewTimer(200 * time.Millisecond)
			} else {
				debounce.Reset(200 * time.Millisecond)
			}

			pending = debounce.C
		case <-pending:
			pending = nil

			if _, err := checkOnce(ctx, log, files); err != nil {
				fmt.Fprintln(os.Stderr, "error:", err)

				continue
			}

			fmt.Printf("ok: %d file(s)\n", len(files))
		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			log.Warn("watch error", zap.Error(werr))
		}
	}
}

func runExport(cmd *cobra.Command, args []string) error {
	log, err := newLogger()
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	session, err := checkOnce(cmd.Context(), log, args)
	if err != nil {
		return err
	}

	out := os.Stdout

	if flagOut != "-" && flagOut != "" {
		f, err := os.Create(flagOut)
		if err != nil {
			return err
		}
		defer f.Close()

		out = f
	}

	return export.Write(out, session.Snapshot())
}
