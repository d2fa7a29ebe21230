// Package main provides the naromat binary entry point.
// naromat converts plain-text novel manuscripts into the typeset form
// expected by the Narou web-novel platform.
package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"runtime"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/dgallion1/naromat/internal/config"
	"github.com/dgallion1/naromat/internal/metrics"
	"github.com/dgallion1/naromat/internal/pipeline"
)

const (
	Version = "0.1.0"
	appName = "naromat"
)

// errFailed is returned when at least one file could not be formatted.
// The per-file reasons are already logged.
var errFailed = errors.New("some files could not be formatted")

func main() {
	defer func() {
		if r := recover(); r != nil {
			buf := make([]byte, 4096)
			n := runtime.Stack(buf, false)
			_, _ = fmt.Fprintf(os.Stderr, "PANIC: %v\nStack trace:\n%s\n", r, string(buf[:n]))
			os.Exit(2)
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := rootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		stop()
		os.Exit(1)
	}
}

// globalFlags override configuration values when set on the command line.
type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
	encoding   string
	include    []string
	normalize  bool
}

func rootCmd() *cobra.Command {
	var (
		gf   globalFlags
		dest string
	)

	cmd := &cobra.Command{
		Use:   "naromat SOURCE",
		Short: "Typeset plain-text manuscripts for Narou",
		Long: `naromat formats plain-text novel manuscripts for the Narou platform.

It indents narration and dialogue, spaces out exclamations, expands
[base:reading] ruby and [base:.] emphasis notation, and drops comment
lines and [#inline comments].

SOURCE may be a file or a directory. A file without --dest is written to
standard output. A directory is mirrored below --dest, which defaults to
SOURCE_narou.`,
		Args:          cobra.ExactArgs(1),
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, log, err := setup(cmd, gf)
			if err != nil {
				return err
			}
			return run(cmd.Context(), cmd.OutOrStdout(), cfg, log, args[0], dest)
		},
	}

	pf := cmd.PersistentFlags()
	pf.StringVarP(&gf.configPath, "config", "c", "", "Config file path (YAML)")
	pf.StringVar(&gf.logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	pf.StringVar(&gf.logFormat, "log-format", "", "Log format (text, json)")
	pf.StringVar(&gf.encoding, "encoding", "", "Source text encoding (auto, utf-8, shift_jis, euc-jp)")
	pf.StringArrayVar(&gf.include, "include", nil, "Glob of files to format inside a directory (repeatable)")
	pf.BoolVar(&gf.normalize, "normalize", false, "Apply Unicode NFC normalization to input")

	cmd.Flags().StringVarP(&dest, "dest", "d", "", "Destination file or directory")

	cmd.AddCommand(serveCmd(&gf))
	cmd.AddCommand(&cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "%s version %s\n", appName, Version)
		},
	})

	return cmd
}

func run(ctx context.Context, stdout io.Writer, cfg config.Config, log *slog.Logger, source, dest string) error {
	runner := pipeline.NewRunner(pipeline.RunnerConfig{
		Parser:  cfg.ParserOptions(),
		Include: cfg.Include,
		Stdout:  stdout,
	}, metrics.New(), log)

	report, err := runner.Run(ctx, source, dest)
	if err != nil {
		return err
	}
	if !report.OK() {
		return fmt.Errorf("%w: %d of %d", errFailed, report.Failed, len(report.Jobs))
	}
	return nil
}

// setup loads configuration, applies flag overrides and builds the logger.
func setup(cmd *cobra.Command, gf globalFlags) (config.Config, *slog.Logger, error) {
	cfg, err := config.Load(gf.configPath)
	if err != nil {
		return cfg, nil, fmt.Errorf("load config: %w", err)
	}

	flags := cmd.Flags()
	if flags.Changed("log-level") {
		cfg.LogLevel = gf.logLevel
	}
	if flags.Changed("log-format") {
		cfg.LogFormat = gf.logFormat
	}
	if flags.Changed("encoding") {
		cfg.Encoding = gf.encoding
	}
	if flags.Changed("include") {
		cfg.Include = gf.include
	}
	if flags.Changed("normalize") {
		cfg.Normalize = gf.normalize
	}

	if err := cfg.Validate(); err != nil {
		return cfg, nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, newLogger(cmd.ErrOrStderr(), cfg), nil
}

// newLogger writes to w, which is stderr outside tests. Standard output
// carries formatted text.
func newLogger(w io.Writer, cfg config.Config) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(cfg.LogLevel) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	opts := &slog.HandlerOptions{Level: level}
	if strings.EqualFold(cfg.LogFormat, "json") {
		return slog.New(slog.NewJSONHandler(w, opts))
	}
	return slog.New(slog.NewTextHandler(w, opts))
}
