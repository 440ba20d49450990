package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"necroverse/internal/config"
	"necroverse/internal/observ"
	"necroverse/internal/trace"
)

// env is what every command shares once persistent flags are read.
type env struct {
	cfg     config.Config
	color   bool
	quiet   bool
	timings bool
	timer   *observ.Timer
	cleanup func()
}

type envKey struct{}

func envFrom(cmd *cobra.Command) *env {
	if ctx := cmd.Context(); ctx != nil {
		if e, ok := ctx.Value(envKey{}).(*env); ok {
			return e
		}
	}
	return &env{cfg: config.Default(), timer: observ.NewTimer(), cleanup: func() {}}
}

func preRun(cmd *cobra.Command, _ []string) error {
	pf := cmd.Root().PersistentFlags()
	explicit, err := pf.GetString("config")
	if err != nil {
		return fmt.Errorf("failed to get config flag: %w", err)
	}
	wd, err := os.Getwd()
	if err != nil {
		return err
	}
	cfg, err := config.Resolve(explicit, wd)
	if err != nil {
		return err
	}
	if n, err := pf.GetInt("max-diagnostics"); err != nil {
		return fmt.Errorf("failed to get max-diagnostics flag: %w", err)
	} else if n > 0 {
		cfg.Limits.MaxDiagnostics = n
	}

	colorFlag, err := pf.GetString("color")
	if err != nil {
		return fmt.Errorf("failed to get color flag: %w", err)
	}
	e := &env{cfg: cfg, timer: observ.NewTimer()}
	switch colorFlag {
	case "on":
		e.color = true
	case "off":
		e.color = false
	case "auto":
		e.color = isTerminal(os.Stdout)
	default:
		return fmt.Errorf("invalid --color value %q (expected auto|on|off)", colorFlag)
	}
	color.NoColor = !e.color
	if e.quiet, err = pf.GetBool("quiet"); err != nil {
		return fmt.Errorf("failed to get quiet flag: %w", err)
	}
	if e.timings, err = pf.GetBool("timings"); err != nil {
		return fmt.Errorf("failed to get timings flag: %w", err)
	}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cmd.SetContext(context.WithValue(ctx, envKey{}, e))
	stopTrace, err := setupTracing(cmd, cfg.Trace)
	if err != nil {
		return err
	}
	stopProf, err := setupProfiling(cmd)
	if err != nil {
		stopTrace()
		return err
	}
	e.cleanup = func() {
		stopProf()
		stopTrace()
	}
	return nil
}

func postRun(cmd *cobra.Command, _ []string) error {
	e := envFrom(cmd)
	if e.timings {
		printTimings(cmd.ErrOrStderr(), e.timer)
	}
	e.cleanup()
	return nil
}

func tracerOf(cmd *cobra.Command) trace.Tracer {
	return trace.FromContext(cmd.Context())
}
