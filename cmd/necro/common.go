package main

import (
	"io"

	"github.com/spf13/cobra"

	"necroverse/internal/diagfmt"
	"necroverse/internal/loader"
	"necroverse/internal/observ"
	"necroverse/internal/session"
	"necroverse/internal/source"
)

func loaderOptions(cmd *cobra.Command) loader.Options {
	return loader.Options{Config: envFrom(cmd).cfg, Tracer: tracerOf(cmd)}
}

// openModule loads path and wraps it in a session writing guest output
// to out.
func openModule(cmd *cobra.Command, fs *source.FileSet, path string, out io.Writer) (*session.Session, error) {
	e := envFrom(cmd)
	var mod *loader.Module
	var err error
	e.timer.Measure("load", func() string {
		mod, err = loader.Load(fs, path, loaderOptions(cmd))
		return path
	})
	if err != nil {
		return nil, err
	}
	return session.New(mod, session.Options{Config: e.cfg, Out: out, Tracer: tracerOf(cmd)})
}

func jsonOpts(fullPath bool) diagfmt.JSONOpts {
	mode := diagfmt.PathModeAuto
	if fullPath {
		mode = diagfmt.PathModeAbsolute
	}
	return diagfmt.JSONOpts{PathMode: mode, IncludeNotes: true}
}

func printTimings(out io.Writer, t *observ.Timer) {
	if out == nil || len(t.Report().Phases) == 0 {
		return
	}
	io.WriteString(out, t.Summary())
}
