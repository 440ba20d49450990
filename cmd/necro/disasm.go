package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"necroverse/internal/avm1"
	"necroverse/internal/jvm"
	"necroverse/internal/loader"
	"necroverse/internal/source"
)

var disasmCmd = &cobra.Command{
	Use:   "disasm [flags] <container>",
	Short: "List the bytecode of a container",
	Long: `Disassemble every action unit of an animation container, or print a
javap-style listing of a class file with resolved constant-pool references.`,
	Args: cobra.ExactArgs(1),
	RunE: runDisasm,
}

func init() {
	disasmCmd.Flags().StringP("unit", "u", "", "only this action unit (animations)")
}

func runDisasm(cmd *cobra.Command, args []string) error {
	only, err := cmd.Flags().GetString("unit")
	if err != nil {
		return fmt.Errorf("failed to get unit flag: %w", err)
	}
	mod, err := loader.Load(source.NewFileSet(), args[0], loaderOptions(cmd))
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if mod.Class != nil {
		return jvm.Disassemble(out, mod.Class)
	}
	found := false
	for _, u := range mod.Movie.Units() {
		if only != "" && u.Name != only {
			continue
		}
		if found {
			fmt.Fprintln(out)
		}
		found = true
		if err := avm1.Disassemble(out, u.Name, u.Code, mod.Movie.Header.Version); err != nil {
			return err
		}
	}
	if only != "" && !found {
		return fmt.Errorf("%s has no unit %q", args[0], only)
	}
	return nil
}
