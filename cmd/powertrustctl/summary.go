package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"powertrust/internal/cli"
	"powertrust/internal/core"
)

var (
	summaryView string
	summaryJSON bool
)

var summaryCmd = &cobra.Command{
	Use:   "summary",
	Short: "Print the KPIs and the totals of one view",
	RunE:  runSummary,
}

func init() {
	summaryCmd.Flags().StringVar(&summaryView, "view", core.ViewCountry.Slug(), "view slug or label")
	summaryCmd.Flags().BoolVar(&summaryJSON, "json", false, "print the view model as JSON")
	addFilterFlags(summaryCmd)
	rootCmd.AddCommand(summaryCmd)
}

func runSummary(cmd *cobra.Command, args []string) error {
	v, err := core.ParseView(summaryView)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	handle, closeSource, err := cli.OpenDataset(cmd.Context(), logger, cfg)
	if err != nil {
		return fmt.Errorf("loading dataset: %w", err)
	}
	defer closeSource()

	vm := handle.Render(v, selectedFilters())
	if summaryJSON {
		enc := json.NewEncoder(cmd.OutOrStdout())
		enc.SetIndent("", "  ")
		return enc.Encode(vm)
	}
	printViewModel(cmd.OutOrStdout(), vm)
	return nil
}

// printViewModel writes the KPIs and the aggregate table of vm.
func printViewModel(w io.Writer, vm core.ViewModel) {
	fmt.Fprintln(w, vm.Title)
	fmt.Fprintln(w, "----------------------------------------")
	fmt.Fprintf(w, "%-24s %14s\n", "Total Value (KWh)", core.FormatNumber(vm.Summary.TotalKWh))
	fmt.Fprintf(w, "%-24s %14s\n", "Average Value (KWh)", core.FormatNumber(vm.Summary.AverageKWh))
	fmt.Fprintf(w, "%-24s %14d\n", "Number of Projects", vm.Summary.Projects)
	fmt.Fprintln(w, "----------------------------------------")

	if vm.Summary.Records == 0 {
		fmt.Fprintln(w, "No rows match the selected filters.")
		return
	}

	switch vm.View {
	case core.ViewCountry:
		printGroups(w, "Country", vm.ByCountry)
	case core.ViewDeveloper:
		printGroups(w, "DevName", vm.ByDeveloper)
	case core.ViewMonthDeveloper:
		if vm.Grid == nil {
			return
		}
		fmt.Fprintf(w, "%-10s", "Month")
		for _, d := range vm.Grid.Developers {
			fmt.Fprintf(w, " %14s", d)
		}
		fmt.Fprintln(w)
		for i, m := range vm.Grid.Months {
			fmt.Fprintf(w, "%-10s", m)
			for j := range vm.Grid.Developers {
				fmt.Fprintf(w, " %14s", core.FormatNumber(vm.Grid.Cells[i][j]))
			}
			fmt.Fprintln(w)
		}
	case core.ViewMonthly:
		for _, m := range vm.Monthly {
			fmt.Fprintf(w, "%-24s %14s\n", m.Label, core.FormatNumber(m.ValueKWh))
		}
	case core.ViewCertification:
		fmt.Fprintf(w, "%d points\n", len(vm.Scatter))
	}
}

func printGroups(w io.Writer, header string, groups []core.GroupTotal) {
	fmt.Fprintf(w, "%-24s %14s\n", header, "Value (KWh)")
	for _, g := range groups {
		fmt.Fprintf(w, "%-24s %14s\n", g.Key, core.FormatNumber(g.ValueKWh))
	}
}
