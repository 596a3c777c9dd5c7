package events

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/tphakala/segmentlab/internal/jobstate"
	"github.com/tphakala/segmentlab/internal/mqtt"
)

// MQTTConsumer publishes every event as JSON to <prefix>/jobs/<kind>/<id>.
type MQTTConsumer struct {
	client mqtt.Client
	prefix string
}

// NewMQTTConsumer creates a consumer publishing through client.
func NewMQTTConsumer(client mqtt.Client, prefix string) *MQTTConsumer {
	return &MQTTConsumer{client: client, prefix: strings.TrimSuffix(prefix, "/")}
}

// Name implements Consumer.
func (c *MQTTConsumer) Name() string { return "mqtt" }

// Topic returns the topic for one job.
func (c *MQTTConsumer) Topic(kind jobstate.Kind, id uint) string {
	return fmt.Sprintf("%s/jobs/%s/%d", c.prefix, kind, id)
}

// ProcessEvent implements Consumer. Events are skipped while disconnected.
func (c *MQTTConsumer) ProcessEvent(ctx context.Context, event JobEvent) error {
	if !c.client.IsConnected() {
		return nil
	}
	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshal job event: %w", err)
	}
	return c.client.Publish(ctx, c.Topic(event.Kind, event.ID), payload)
}
