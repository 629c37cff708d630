// Package cli implements the nlpeval command line tool.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"
	"go.opentelemetry.io/otel/trace"
	"go.opentelemetry.io/otel/trace/noop"

	"github.com/ahrav/go-nlpeval/infrastructure/telemetry"
)

// version is set at build time with -ldflags "-X".
var version = "dev"

// app holds the state shared by every subcommand of one invocation.
type app struct {
	v        *viper.Viper
	logger   *slog.Logger
	tp       trace.TracerProvider
	shutdown func(context.Context) error
	getenv   func(string) string
}

func newApp() *app {
	return &app{
		v:        viper.New(),
		logger:   slog.Default(),
		tp:       noop.NewTracerProvider(),
		shutdown: func(context.Context) error { return nil },
		getenv:   os.Getenv,
	}
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:               "nlpeval",
		Short:             "nlpeval evaluates intent and entity classifiers against a labeled corpus",
		Version:           version,
		SilenceUsage:      true,
		SilenceErrors:     true,
		PersistentPreRunE: a.setup,
	}

	pf := root.PersistentFlags()
	pf.String("log-level", "info", "log level: debug, info, warn or error")
	pf.String("log-format", "text", "log format: text or json")
	pf.String("trace-exporter", telemetry.DefaultConfig().TraceExporter, "trace exporter: none or stdout")

	// Flags override NLPEVAL_* environment variables.
	a.v.SetEnvPrefix("NLPEVAL")
	a.v.SetEnvKeyReplacer(strings.NewReplacer("-", "_"))
	a.v.AutomaticEnv()
	for _, name := range []string{"log-level", "log-format", "trace-exporter"} {
		_ = a.v.BindPFlag(name, pf.Lookup(name))
	}

	root.AddCommand(
		newEvaluateCmd(a),
		newGenerateCorpusCmd(a),
		newModelsCmd(a),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
// SIGINT and SIGTERM cancel the running command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := run(ctx, os.Args[1:], os.Stdout, os.Stderr)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, failure("Error:"), err)
		os.Exit(1)
	}
}

// run executes the command line args. Telemetry is flushed after the
// command returns, including when it fails.
func run(ctx context.Context, args []string, stdout, stderr io.Writer) error {
	a := newApp()
	root := newRootCmd(a)
	root.SetArgs(args)
	root.SetOut(stdout)
	root.SetErr(stderr)

	err := root.ExecuteContext(ctx)
	if serr := a.shutdown(context.WithoutCancel(ctx)); serr != nil {
		err = errors.Join(err, fmt.Errorf("shutdown telemetry: %w", serr))
	}
	return err
}

// setup configures logging and tracing from the merged flag and
// environment values.
func (a *app) setup(cmd *cobra.Command, _ []string) error {
	logger, err := newLogger(cmd.ErrOrStderr(), a.v.GetString("log-level"), a.v.GetString("log-format"))
	if err != nil {
		return err
	}
	a.logger = logger

	tcfg := telemetry.DefaultConfig()
	tcfg.ServiceVersion = version
	tcfg.TraceExporter = a.v.GetString("trace-exporter")
	tcfg.Writer = cmd.ErrOrStderr()
	tp, shutdown, err := telemetry.Init(cmd.Context(), tcfg)
	if err != nil {
		return fmt.Errorf("init telemetry: %w", err)
	}
	a.tp = tp
	a.shutdown = shutdown
	return nil
}

// newLogger builds a structured logger writing to w.
func newLogger(w io.Writer, level, format string) (*slog.Logger, error) {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(level)); err != nil {
		return nil, fmt.Errorf("invalid log level %q: %w", level, err)
	}
	opts := &slog.HandlerOptions{Level: lvl}

	switch format {
	case "text":
		return slog.New(slog.NewTextHandler(w, opts)), nil
	case "json":
		return slog.New(slog.NewJSONHandler(w, opts)), nil
	default:
		return nil, fmt.Errorf("invalid log format %q: must be text or json", format)
	}
}
