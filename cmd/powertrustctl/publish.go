package main

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"powertrust/internal/cli"
	"powertrust/internal/core"
)

var publishViews []string

var publishCmd = &cobra.Command{
	Use:   "publish",
	Short: "Publish the KPI snapshot to MQTT",
	Long: `Renders the selected views and publishes their KPIs as retained
messages under <MQTT_TOPIC_PREFIX>/kpi/<view>.`,
	RunE: runPublish,
}

func init() {
	publishCmd.Flags().StringSliceVar(&publishViews, "view", nil, "views to publish (default all)")
	addFilterFlags(publishCmd)
	rootCmd.AddCommand(publishCmd)
}

// summaryPublisher is the part of the MQTT publisher the command uses.
type summaryPublisher interface {
	PublishSummary(ctx context.Context, vm core.ViewModel) error
}

// viewRenderer is satisfied by *dataset.Handle.
type viewRenderer interface {
	Render(v core.View, f core.Filters) core.ViewModel
}

func runPublish(cmd *cobra.Command, args []string) error {
	views, err := parseViews(publishViews)
	if err != nil {
		return err
	}
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if !cfg.MQTTEnabled() {
		return errors.New("MQTT is not configured, set MQTT_BROKER")
	}
	logger := newLogger(cfg)

	handle, closeSource, err := cli.OpenDataset(cmd.Context(), logger, cfg)
	if err != nil {
		return fmt.Errorf("loading dataset: %w", err)
	}
	defer closeSource()

	pub, err := cli.ConnectMQTT(logger, cfg)
	if err != nil {
		return fmt.Errorf("creating publisher: %w", err)
	}
	defer pub.Close()

	n, err := publishSummaries(cmd.Context(), pub, handle, views, selectedFilters())
	fmt.Fprintf(cmd.OutOrStdout(), "Published %d of %d views\n", n, len(views))
	return err
}

// parseViews resolves view names; none means every view.
func parseViews(names []string) ([]core.View, error) {
	if len(names) == 0 {
		return core.AllViews(), nil
	}
	views := make([]core.View, 0, len(names))
	for _, name := range names {
		v, err := core.ParseView(name)
		if err != nil {
			return nil, err
		}
		views = append(views, v)
	}
	return views, nil
}

// publishSummaries sends one message per view and stops at the first failure.
func publishSummaries(ctx context.Context, pub summaryPublisher, r viewRenderer, views []core.View, f core.Filters) (int, error) {
	for i, v := range views {
		if err := pub.PublishSummary(ctx, r.Render(v, f)); err != nil {
			return i, fmt.Errorf("publishing %s: %w", v.Slug(), err)
		}
	}
	return len(views), nil
}
