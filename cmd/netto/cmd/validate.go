package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/nettolabs/netto/internal/loader"
	"github.com/nettolabs/netto/internal/rules"
)

var validateCmd = &cobra.Command{
	Use:   "validate FILE...",
	Short: "Compile-check rule documents without storing them",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runValidate,
}

func init() {
	rootCmd.AddCommand(validateCmd)
}

func runValidate(cmd *cobra.Command, args []string) error {
	registry := rules.DefaultRegistry()
	failed := 0
	for _, path := range args {
		_, compiled, err := loader.LoadAndCompile(path, registry)
		if err != nil {
			fmt.Printf("FAIL %s: %v\n", path, err)
			failed++
			continue
		}
		fmt.Printf("ok   %s (%d rules)\n", path, len(compiled))
	}
	if failed > 0 {
		return fmt.Errorf("%d of %d documents failed validation", failed, len(args))
	}
	return nil
}
