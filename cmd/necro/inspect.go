package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"necroverse/internal/export"
	"necroverse/internal/source"
)

var inspectCmd = &cobra.Command{
	Use:   "inspect [flags] <container>...",
	Short: "Describe decoded containers",
	Long: `Decode each container and print a summary document: header, frames and
characters for animations, members for classes, the invocable units and the
diagnostics raised while decoding.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInspect,
}

func init() {
	inspectCmd.Flags().String("format", "text", "output format (text|json|msgpack|cbor)")
	inspectCmd.Flags().Bool("probe", false, "run every unit once and include the outcomes")
	inspectCmd.Flags().Bool("fullpath", false, "emit absolute file paths in output")
	inspectCmd.Flags().StringP("output", "o", "", "write to a file instead of stdout")
}

func runInspect(cmd *cobra.Command, args []string) error {
	formatStr, err := cmd.Flags().GetString("format")
	if err != nil {
		return fmt.Errorf("failed to get format flag: %w", err)
	}
	format, err := export.ParseFormat(formatStr)
	if err != nil {
		return err
	}
	probe, err := cmd.Flags().GetBool("probe")
	if err != nil {
		return fmt.Errorf("failed to get probe flag: %w", err)
	}
	fullPath, err := cmd.Flags().GetBool("fullpath")
	if err != nil {
		return fmt.Errorf("failed to get fullpath flag: %w", err)
	}
	outPath, err := cmd.Flags().GetString("output")
	if err != nil {
		return fmt.Errorf("failed to get output flag: %w", err)
	}

	out := cmd.OutOrStdout()
	if outPath != "" {
		f, err := os.Create(outPath)
		if err != nil {
			return err
		}
		defer f.Close()
		out = f
	} else if format.Binary() && isTerminal(os.Stdout) {
		return fmt.Errorf("refusing to write %s to a terminal; use -o", format)
	}

	e := envFrom(cmd)
	fs := source.NewFileSet()
	docs := make([]*export.Document, 0, len(args))
	for _, path := range args {
		s, err := openModule(cmd, fs, path, nil)
		if err != nil {
			return err
		}
		var doc *export.Document
		e.timer.Measure("inspect", func() string {
			if probe {
				results := s.Probe(cmd.Context())
				doc = export.Build(s, fs, jsonOpts(fullPath))
				doc.AddProbe(results)
			} else {
				doc = export.Build(s, fs, jsonOpts(fullPath))
			}
			return path
		})
		docs = append(docs, doc)
	}
	return export.Encode(out, format, docs...)
}
