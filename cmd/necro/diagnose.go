package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"necroverse/internal/diag"
	"necroverse/internal/diagfmt"
	"necroverse/internal/loader"
	"necroverse/internal/source"
)

var diagCmd = &cobra.Command{
	Use:   "diag [flags] <container>...",
	Short: "Report decoding diagnostics",
	Long: `Decode each container and report structural, symbolic and interpretive
diagnostics. With --probe every unit is also run once so runtime
diagnostics are included. Exits non-zero when any error is reported.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runDiagnose,
}

func init() {
	diagCmd.Flags().String("format", "pretty", "output format (pretty|json|short)")
	diagCmd.Flags().Bool("probe", false, "run every unit once before reporting")
	diagCmd.Flags().Bool("with-notes", false, "include diagnostic notes in output")
	diagCmd.Flags().Bool("fullpath", false, "emit absolute file paths in output")
	diagCmd.Flags().String("min-severity", "info", "lowest severity reported (info|warning|error)")
	diagCmd.Flags().Bool("no-warnings", false, "report errors only (same as --min-severity=error)")
	diagCmd.Flags().Int("context", 8, "bytes of hex context around each span (pretty only)")
}

// errDiagnostics makes the command fail without printing anything more.
var errDiagnostics = errors.New("errors reported")

func runDiagnose(cmd *cobra.Command, args []string) error {
	format, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	probe, err := cmd.Flags().GetBool("probe")
	if err != nil {
		return fmt.Errorf("failed to get probe flag: %w", err)
	}
	withNotes, err := cmd.Flags().GetBool("with-notes")
	if err != nil {
		return fmt.Errorf("failed to get with-notes flag: %w", err)
	}
	fullPath, err := cmd.Flags().GetBool("fullpath")
	if err != nil {
		return fmt.Errorf("failed to get fullpath flag: %w", err)
	}
	minStr, err := cmd.Flags().GetString("min-severity")
	if err != nil {
		return fmt.Errorf("failed to get min-severity flag: %w", err)
	}
	minSev, err := diag.ParseSeverity(minStr)
	if err != nil {
		return err
	}
	noWarnings, err := cmd.Flags().GetBool("no-warnings")
	if err != nil {
		return fmt.Errorf("failed to get no-warnings flag: %w", err)
	}
	if noWarnings {
		minSev = diag.SevError
	}
	context, err := cmd.Flags().GetInt("context")
	if err != nil {
		return fmt.Errorf("failed to get context flag: %w", err)
	}

	e := envFrom(cmd)
	fs := source.NewFileSet()
	all := diag.NewBag(e.cfg.Limits.MaxDiagnostics * len(args))
	failed := false
	for _, path := range args {
		s, err := openModule(cmd, fs, path, nil)
		if err != nil {
			var le *loader.LoadError
			if !errors.As(err, &le) {
				return err
			}
			fmt.Fprintln(cmd.ErrOrStderr(), le.Error())
			failed = true
			continue
		}
		if probe {
			s.Probe(cmd.Context())
		}
		for _, d := range s.Module().Diags.Items() {
			if d.Severity < minSev {
				continue
			}
			all.Add(d)
		}
	}
	all.Sort()
	if all.HasErrors() {
		failed = true
	}

	pathMode := diagfmt.PathModeAuto
	if fullPath {
		pathMode = diagfmt.PathModeAbsolute
	}
	switch format {
	case "pretty":
		diagfmt.Pretty(cmd.OutOrStdout(), all, fs, diagfmt.PrettyOpts{
			Color:     e.color,
			PathMode:  pathMode,
			Context:   context,
			ShowNotes: withNotes,
		})
	case "short":
		if out := diag.FormatShortDiagnostics(all.Items(), fs, withNotes); out != "" {
			fmt.Fprintln(cmd.OutOrStdout(), out)
		}
	case "json":
		opts := jsonOpts(fullPath)
		opts.IncludeNotes = withNotes
		if err := diagfmt.JSON(cmd.OutOrStdout(), all, fs, opts); err != nil {
			return err
		}
	default:
		return fmt.Errorf("unknown format %q (want pretty, json or short)", format)
	}
	if failed {
		if !e.quiet && format == "pretty" {
			fmt.Fprintf(os.Stderr, "%d diagnostics\n", all.Len())
		}
		return errDiagnostics
	}
	return nil
}
