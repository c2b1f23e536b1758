package realtime

import (
	"context"
	"errors"
	"strings"
	"time"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/greenhouse/pkg/broker"
	"github.com/LeonardoBeccarini/greenhouse/pkg/dedup"
	"github.com/LeonardoBeccarini/greenhouse/pkg/logger"
	"github.com/LeonardoBeccarini/greenhouse/pkg/metrics"
)

// ErrNotConnected is returned by writes issued while the broker link is down.
var ErrNotConnected = errors.New("realtime backend not connected")

// MQTT maps logical paths onto broker topics under an optional prefix.
// Values are retained messages; partial updates go to <path>/update and
// are merged by the rig.
type MQTT struct {
	client    mqtt.Client
	publisher *broker.Publisher
	prefix    string
	deduper   *dedup.Deduper
}

func NewMQTT(client mqtt.Client, prefix string) *MQTT {
	prefix = strings.Trim(strings.TrimSpace(prefix), "/")
	if prefix != "" {
		prefix += "/"
	}
	return &MQTT{
		client:    client,
		publisher: broker.NewPublisher(client),
		prefix:    prefix,
		deduper:   dedup.New(2*time.Minute, 10000), // TTL and cap
	}
}

func (b *MQTT) topic(path string) string { return b.prefix + path }

func (b *MQTT) path(topic string) string { return strings.TrimPrefix(topic, b.prefix) }

func (b *MQTT) Subscribe(ctx context.Context, pattern string, h Handler) error {
	log := logger.WithComponent("realtime")
	c := broker.NewConsumer(b.client, b.topic(pattern), func(_ string, m mqtt.Message) error {
		path := b.path(m.Topic())
		// every delivery is recorded so that the first QoS1 redelivery of a
		// processed message hashes to a known key; only flagged copies are dropped
		fresh := b.deduper.ShouldProcess(dedup.Key(m.Topic(), m.Payload()))
		if m.Duplicate() && !fresh {
			metrics.RealtimeMessagesTotal.WithLabelValues(pattern, "duplicate").Inc()
			return nil
		}
		err := h(Message{Path: path, Payload: m.Payload(), Duplicate: m.Duplicate()})
		status := "ok"
		if err != nil {
			status = "invalid"
			log.Warn().Err(err).Str("path", path).Msg("handler rejected message")
		}
		metrics.RealtimeMessagesTotal.WithLabelValues(pattern, status).Inc()
		return nil
	})
	return c.Subscribe(ctx)
}

func (b *MQTT) Update(path string, partial map[string]any) error {
	return b.write("update", b.topic(path)+UpdateSuffix, 1, false, partial)
}

func (b *MQTT) Set(path string, value any) error {
	return b.write("set", b.topic(path), 1, true, value)
}

func (b *MQTT) Remove(path string) error {
	return b.write("remove", b.topic(path), 1, true, nil)
}

func (b *MQTT) Connected() bool {
	return b.publisher.Connected()
}

func (b *MQTT) write(op, topic string, qos byte, retained bool, v any) error {
	if !b.Connected() {
		metrics.RealtimeWritesTotal.WithLabelValues(op, "error").Inc()
		return ErrNotConnected
	}
	if err := b.publisher.PublishJSON(topic, qos, retained, v); err != nil {
		metrics.RealtimeWritesTotal.WithLabelValues(op, "error").Inc()
		return err
	}
	metrics.RealtimeWritesTotal.WithLabelValues(op, "ok").Inc()
	return nil
}
