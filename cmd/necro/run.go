package main

import (
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"necroverse/internal/session"
	"necroverse/internal/source"
)

var runCmd = &cobra.Command{
	Use:   "run [flags] <container> [unit [args...]]",
	Short: "Execute bytecode from a container",
	Long: `Without a unit, play an animation's main timeline for --frames frames
(default: once through). With a unit, invoke it by name: an action unit,
a timeline function, or a class method such as demo/Hello.add(II)I.
Arguments are parsed as integers, floats, true/false, null or strings.
Guest output goes to stdout.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRun,
}

func init() {
	runCmd.Flags().Int("frames", 0, "frames to play (0 = the timeline's length)")
	runCmd.Flags().Bool("list", false, "list the units instead of running")
	runCmd.Flags().Bool("display", false, "print the display list after playing")
}

var errFaulted = errors.New("execution faulted")

func runRun(cmd *cobra.Command, args []string) error {
	frames, err := cmd.Flags().GetInt("frames")
	if err != nil {
		return fmt.Errorf("failed to get frames flag: %w", err)
	}
	list, err := cmd.Flags().GetBool("list")
	if err != nil {
		return fmt.Errorf("failed to get list flag: %w", err)
	}
	display, err := cmd.Flags().GetBool("display")
	if err != nil {
		return fmt.Errorf("failed to get display flag: %w", err)
	}

	e := envFrom(cmd)
	fs := source.NewFileSet()
	s, err := openModule(cmd, fs, args[0], cmd.OutOrStdout())
	if err != nil {
		return err
	}
	errOut := cmd.ErrOrStderr()
	if list {
		for _, u := range s.Units() {
			fmt.Fprintf(cmd.OutOrStdout(), "%-8s %6d  %s\n", u.Kind, u.Size, u.Name)
		}
		return nil
	}

	if len(args) == 1 && s.Module().Movie == nil {
		return fmt.Errorf("%s: name a method to run (see --list)", args[0])
	}

	var results []session.Result
	idx := e.timer.Begin("run")
	if len(args) == 1 {
		if frames <= 0 {
			frames = max(len(s.Module().Movie.Frames), 1)
		}
		results, err = s.PlayFrames(cmd.Context(), frames)
		if display && err == nil {
			for _, pl := range s.DisplayList() {
				fmt.Fprintf(errOut, "depth %d: character %d %q\n", pl.Depth, pl.CharacterID, pl.Name)
			}
		}
		for _, r := range s.Requests() {
			fmt.Fprintf(errOut, "request %s %s %s\n", r.Method, r.URL, r.Window)
		}
	} else {
		var r session.Result
		r, err = s.Invoke(cmd.Context(), args[1], parseArgs(args[2:])...)
		results = []session.Result{r}
		if err == nil && r.Value != "" {
			fmt.Fprintln(cmd.OutOrStdout(), r.Value)
		}
	}
	e.timer.End(idx, fmt.Sprintf("%d units", len(results)))
	if err != nil {
		return err
	}

	faulted := reportFaults(errOut, results, e.quiet)
	if !e.quiet {
		for _, d := range s.Module().Diags.Items() {
			fmt.Fprintf(errOut, "%s %s: %s\n", strings.ToLower(d.Severity.String()), d.Code.ID(), d.Message)
		}
	}
	if faulted {
		return errFaulted
	}
	return nil
}

func reportFaults(w io.Writer, results []session.Result, quiet bool) bool {
	red := color.New(color.FgRed, color.Bold)
	faulted := false
	for _, r := range results {
		if !r.Faulted() && r.Thrown == "" {
			continue
		}
		faulted = faulted || r.Faulted()
		if quiet {
			continue
		}
		switch {
		case r.Err != nil:
			fmt.Fprintf(w, "%s %s: %v\n", red.Sprint("fault"), r.Unit, r.Err)
		case r.Thrown != "":
			fmt.Fprintf(w, "%s %s: uncaught %s\n", red.Sprint("throw"), r.Unit, r.Thrown)
		}
	}
	return faulted
}

// parseArgs turns command-line words into the Go values Invoke accepts.
func parseArgs(words []string) []any {
	out := make([]any, len(words))
	for i, w := range words {
		out[i] = parseArg(w)
	}
	return out
}

func parseArg(w string) any {
	switch w {
	case "null", "nil":
		return nil
	case "true":
		return true
	case "false":
		return false
	}
	if n, err := strconv.ParseInt(w, 0, 64); err == nil {
		if n == int64(int(n)) {
			return int(n)
		}
		return n
	}
	if f, err := strconv.ParseFloat(w, 64); err == nil {
		return f
	}
	if s, err := strconv.Unquote(w); err == nil {
		return s
	}
	return w
}
