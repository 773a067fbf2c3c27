package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/nettolabs/netto/internal/core/db"
	"github.com/nettolabs/netto/internal/loader"
	"github.com/nettolabs/netto/internal/rules"
	"github.com/nettolabs/netto/internal/store"
)

var importCmd = &cobra.Command{
	Use:   "import FILE",
	Short: "Validate a rule document and store it for a country/year",
	Args:  cobra.ExactArgs(1),
	RunE:  runImport,
}

func init() {
	rootCmd.AddCommand(importCmd)
	importCmd.Flags().String("country", "", "ISO country code the document applies to")
	importCmd.Flags().Int("year", 0, "calendar year the document applies to")
	importCmd.MarkFlagRequired("country")
	importCmd.MarkFlagRequired("year")
}

func runImport(cmd *cobra.Command, args []string) error {
	country, _ := cmd.Flags().GetString("country")
	year, _ := cmd.Flags().GetInt("year")

	// Compile before storing: a document that does not compile never
	// reaches the database.
	_, compiled, err := loader.LoadAndCompile(args[0], rules.DefaultRegistry())
	if err != nil {
		return err
	}

	raw, err := os.ReadFile(args[0])
	if err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	conn, err := db.Open(cfg.DBURL)
	if err != nil {
		return fmt.Errorf("opening database: %w", err)
	}
	defer conn.Close()

	queries, err := db.LoadQueries(conn)
	if err != nil {
		return fmt.Errorf("loading queries: %w", err)
	}

	rs, err := store.New(queries).Put(country, year, string(raw))
	if err != nil {
		return err
	}

	fmt.Printf("imported %s/%d (%d rules, ruleset %s)\n", rs.Country, rs.Year, len(compiled), rs.RulesetID)
	return nil
}
