package main

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"powertrust/internal/amqp"
	"powertrust/internal/chart"
	"powertrust/internal/cli"
	"powertrust/internal/export"
)

var (
	exportView    string
	exportID      string
	exportDir     string
	exportEnqueue bool
	exportWidth   int
	exportHeight  int
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Render chart PNGs for the current selection",
	Long: `Renders one view, or all of them, into the export directory and writes
a JSON manifest next to the images. With --enqueue the job is sent to the
export queue for powertrust-worker instead.`,
	RunE: runExport,
}

func init() {
	exportCmd.Flags().StringVar(&exportView, "view", amqp.AllViews, "view slug, label or \"all\"")
	exportCmd.Flags().StringVar(&exportID, "id", "", "export id (default random)")
	exportCmd.Flags().StringVar(&exportDir, "dir", "", "output directory (default EXPORT_DIR)")
	exportCmd.Flags().BoolVar(&exportEnqueue, "enqueue", false, "queue the export over AMQP instead of rendering locally")
	exportCmd.Flags().IntVar(&exportWidth, "width", 0, "image width in pixels")
	exportCmd.Flags().IntVar(&exportHeight, "height", 0, "image height in pixels")
	addFilterFlags(exportCmd)
	rootCmd.AddCommand(exportCmd)
}

func runExport(cmd *cobra.Command, args []string) error {
	id := exportID
	if id == "" {
		id = export.NewID()
	}
	req := amqp.NewExportRequest(id, exportView, selectedFilters())
	if err := req.Validate(); err != nil {
		return err
	}

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := newLogger(cfg)

	if exportEnqueue {
		if !cfg.AMQPEnabled() {
			return errors.New("--enqueue needs AMQP_URL")
		}
		client, err := cli.ConnectAMQP(logger, cfg)
		if err != nil {
			return err
		}
		defer client.Close()
		if err := client.PublishExportRequest(cmd.Context(), req); err != nil {
			return fmt.Errorf("queueing export: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Queued export %s\n", req.ID)
		return nil
	}

	views, err := req.Views()
	if err != nil {
		return err
	}
	dir := exportDir
	if dir == "" {
		dir = cfg.ExportDir
	}

	handle, closeSource, err := cli.OpenDataset(cmd.Context(), logger, cfg)
	if err != nil {
		return fmt.Errorf("loading dataset: %w", err)
	}
	defer closeSource()

	p := export.NewProcessor(handle, chart.NewRenderer(exportWidth, exportHeight), dir, cfg.ExportConcurrency)
	m, err := p.Export(cmd.Context(), export.Request{ID: req.ID, Views: views, Filters: req.Filters})
	if err != nil {
		return err
	}
	return printManifest(cmd, m)
}

func printManifest(cmd *cobra.Command, m export.Manifest) error {
	out := cmd.OutOrStdout()
	for _, f := range m.Files {
		if f.Skipped {
			fmt.Fprintf(out, "%-22s skipped (no rows)\n", f.View)
			continue
		}
		fmt.Fprintf(out, "%-22s %s\n", f.View, f.Path)
	}
	if len(m.Files) == 0 {
		return nil
	}
	b, err := json.Marshal(m.Filters)
	if err != nil {
		return err
	}
	fmt.Fprintf(out, "Export %s written with filters %s\n", m.ID, b)
	return nil
}
