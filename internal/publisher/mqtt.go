// Package publisher pushes KPI snapshots to an MQTT broker so dashboards
// outside the web UI can follow the figures.
package publisher

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"powertrust/internal/core"
	"powertrust/internal/export"
)

// Config holds the broker settings.
type Config struct {
	Broker      string
	ClientID    string
	Username    string
	Password    string
	TopicPrefix string
}

var ErrNotConnected = errors.New("mqtt client not connected")

const publishTimeout = 5 * time.Second

// client is the subset of mqtt.Client the publisher uses.
type client interface {
	IsConnected() bool
	Publish(topic string, qos byte, retained bool, payload interface{}) mqtt.Token
	Disconnect(quiesce uint)
}

// Publisher publishes retained JSON KPI messages.
type Publisher struct {
	client      client
	topicPrefix string
}

// New connects to the broker. A broker given without a scheme is dialled
// over tcp.
func New(cfg Config) (*Publisher, error) {
	if cfg.Broker == "" {
		return nil, fmt.Errorf("MQTT broker address is required")
	}
	broker := cfg.Broker
	if !strings.Contains(broker, "://") {
		broker = "tcp://" + broker
	}
	clientID := cfg.ClientID
	if clientID == "" {
		clientID = "powertrust"
	}

	opts := mqtt.NewClientOptions()
	opts.AddBroker(broker)
	opts.SetClientID(clientID)
	opts.SetAutoReconnect(true)
	opts.SetConnectRetry(true)
	opts.SetConnectTimeout(10 * time.Second)
	if cfg.Username != "" {
		opts.SetUsername(cfg.Username)
	}
	if cfg.Password != "" {
		opts.SetPassword(cfg.Password)
	}

	c := mqtt.NewClient(opts)
	if token := c.Connect(); token.WaitTimeout(15*time.Second) && token.Error() != nil {
		return nil, fmt.Errorf("connecting to MQTT broker: %w", token.Error())
	}
	return newPublisher(c, cfg.TopicPrefix), nil
}

func newPublisher(c client, prefix string) *Publisher {
	prefix = strings.Trim(prefix, "/")
	if prefix == "" {
		prefix = "powertrust"
	}
	return &Publisher{client: c, topicPrefix: prefix}
}

// SummaryMessage is the payload published for a rendered selection.
type SummaryMessage struct {
	View        string       `json:"view"`
	Filters     core.Filters `json:"filters"`
	TotalKWh    float64      `json:"total_kwh"`
	AverageKWh  float64      `json:"average_kwh"`
	Projects    int          `json:"projects"`
	Records     int          `json:"records"`
	PublishedAt time.Time    `json:"published_at"`
}

// SummaryTopic is <prefix>/kpi/<view slug>.
func (p *Publisher) SummaryTopic(v core.View) string {
	return p.topicPrefix + "/kpi/" + v.Slug()
}

// ExportTopic is <prefix>/exports/<id>.
func (p *Publisher) ExportTopic(id string) string {
	return p.topicPrefix + "/exports/" + id
}

// PublishSummary sends the KPIs of one view model as a retained message.
func (p *Publisher) PublishSummary(ctx context.Context, vm core.ViewModel) error {
	msg := SummaryMessage{
		View:        vm.View.Slug(),
		Filters:     vm.Filters,
		TotalKWh:    vm.Summary.TotalKWh,
		AverageKWh:  vm.Summary.AverageKWh,
		Projects:    vm.Summary.Projects,
		Records:     vm.Summary.Records,
		PublishedAt: time.Now().UTC(),
	}
	return p.publish(ctx, p.SummaryTopic(vm.View), msg)
}

// PublishExport sends the manifest of a finished export.
func (p *Publisher) PublishExport(ctx context.Context, m export.Manifest) error {
	return p.publish(ctx, p.ExportTopic(m.ID), m)
}

func (p *Publisher) publish(ctx context.Context, topic string, v any) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if p.client == nil || !p.client.IsConnected() {
		return ErrNotConnected
	}
	body, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encoding payload: %w", err)
	}
	token := p.client.Publish(topic, 1, true, body)
	if !token.WaitTimeout(publishTimeout) {
		return fmt.Errorf("publish %s: timed out after %s", topic, publishTimeout)
	}
	if err := token.Error(); err != nil {
		return fmt.Errorf("publish %s: %w", topic, err)
	}
	slog.DebugContext(ctx, "MQTT message published", "topic", topic, "bytes", len(body))
	return nil
}

// Close disconnects from the MQTT broker.
func (p *Publisher) Close() {
	if p.client != nil && p.client.IsConnected() {
		p.client.Disconnect(250)
	}
}
