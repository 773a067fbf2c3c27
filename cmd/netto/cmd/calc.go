package cmd

import (
	"fmt"
	"os"
	"sort"
	"strconv"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/nettolabs/netto/internal/loader"
	"github.com/nettolabs/netto/internal/rules"
	"github.com/nettolabs/netto/internal/types"
)

var calcCmd = &cobra.Command{
	Use:   "calc FILE",
	Short: "Run a one-off calculation against a rule document",
	Long: `calc compiles the given rule document and evaluates it for a single
scenario without touching the database. Flags referenced by the rules
are supplied with repeated --flag name=value options; values parse as
booleans or numbers where possible and fall back to strings.`,
	Args: cobra.ExactArgs(1),
	RunE: runCalc,
}

func init() {
	rootCmd.AddCommand(calcCmd)
	calcCmd.Flags().Float64("gross", 0, "gross salary for the scenario")
	calcCmd.Flags().String("date", "", "calculation date YYYY-MM-DD (default today)")
	calcCmd.Flags().StringArray("flag", nil, "scenario flag as name=value (repeatable)")
	calcCmd.MarkFlagRequired("gross")
}

func runCalc(cmd *cobra.Command, args []string) error {
	gross, _ := cmd.Flags().GetFloat64("gross")
	if gross < 0 {
		return fmt.Errorf("--gross must be non-negative")
	}

	dateStr, _ := cmd.Flags().GetString("date")
	if dateStr == "" {
		dateStr = time.Now().Format("2006-01-02")
	} else if _, err := time.Parse("2006-01-02", dateStr); err != nil {
		return fmt.Errorf("--date must be YYYY-MM-DD")
	}

	rawFlags, _ := cmd.Flags().GetStringArray("flag")
	flags, err := parseFlags(rawFlags)
	if err != nil {
		return err
	}
	flags["date"] = dateStr

	_, compiled, err := loader.LoadAndCompile(args[0], rules.DefaultRegistry())
	if err != nil {
		return err
	}
	engine := rules.NewEngine(compiled)

	if missing := missingFlags(engine, flags); len(missing) > 0 {
		return fmt.Errorf("missing required flags: %s (pass --flag name=value)", strings.Join(missing, ", "))
	}

	result, err := engine.Run(&types.Scenario{Gross: gross, Flags: flags})
	if err != nil {
		return err
	}

	renderResult(result)
	return nil
}

// parseFlags converts name=value pairs, guessing the value type the way
// the JSON API would receive it: bool, then number, then string.
func parseFlags(pairs []string) (map[string]any, error) {
	flags := make(map[string]any, len(pairs)+1)
	for _, pair := range pairs {
		name, value, ok := strings.Cut(pair, "=")
		if !ok || name == "" {
			return nil, fmt.Errorf("invalid --flag %q, expected name=value", pair)
		}
		switch value {
		case "true":
			flags[name] = true
		case "false":
			flags[name] = false
		default:
			if n, err := strconv.ParseFloat(value, 64); err == nil {
				flags[name] = n
			} else {
				flags[name] = value
			}
		}
	}
	return flags, nil
}

func missingFlags(engine *rules.Engine, flags map[string]any) []string {
	var missing []string
	for _, name := range engine.RequiredFlags() {
		if _, ok := flags[name]; !ok {
			missing = append(missing, name)
		}
	}
	sort.Strings(missing)
	return missing
}

func renderResult(result *rules.Result) {
	tw := table.NewWriter()
	tw.SetOutputMirror(os.Stdout)
	tw.AppendHeader(table.Row{"Rule", "Direction", "Amount"})
	for _, entry := range result.Breakdown {
		tw.AppendRow(table.Row{entry.Label, string(entry.Direction), fmt.Sprintf("%.2f", entry.Amount)})
	}
	tw.AppendFooter(table.Row{"", "net", fmt.Sprintf("%.2f", result.Net)})
	tw.AppendFooter(table.Row{"", "super gross", fmt.Sprintf("%.2f", result.SuperGross)})
	tw.Render()
}
