package broker

import (
	"context"
	"strings"

	mqtt "github.com/eclipse/paho.mqtt.golang"

	"github.com/LeonardoBeccarini/greenhouse/pkg/logger"
)

// Handler processes a single message received on a subscribed topic filter.
type Handler func(filter string, message mqtt.Message) error

// Consumer subscribes one topic filter and feeds its messages to a handler.
type Consumer struct {
	client  mqtt.Client
	handler Handler
	topic   string
}

func NewConsumer(client mqtt.Client, topic string, handler Handler) *Consumer {
	return &Consumer{
		client:  client,
		topic:   topic,
		handler: handler,
	}
}

// QoSFor returns the subscription QoS for a topic: state paths that drive
// alerts and control get at-least-once delivery.
func QoSFor(topic string) byte {
	t := strings.TrimSpace(topic)
	for _, suffix := range []string{"/sensors", "/thresholds", "/alerts", "/relays", "/mode", "commands"} {
		if strings.HasSuffix(t, suffix) {
			return 1
		}
	}
	return 0
}

// Subscribe registers the subscription and returns once the broker acked it.
// The subscription is removed when ctx is cancelled.
func (c *Consumer) Subscribe(ctx context.Context) error {
	log := logger.WithComponent("broker").With().Str("topic", c.topic).Logger()
	token := c.client.Subscribe(c.topic, QoSFor(c.topic), func(_ mqtt.Client, message mqtt.Message) {
		if c.handler == nil {
			log.Warn().Msg("no handler set for topic")
			return
		}
		if err := c.handler(c.topic, message); err != nil {
			log.Error().Err(err).Str("message_topic", message.Topic()).Msg("error handling message")
		}
	})
	if token.Wait() && token.Error() != nil {
		return token.Error()
	}
	log.Info().Msg("subscribed")

	go func() {
		<-ctx.Done()
		if c.client.IsConnected() {
			c.client.Unsubscribe(c.topic).Wait()
		}
	}()
	return nil
}
