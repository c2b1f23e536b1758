package broker

import (
	"encoding/json"
	"fmt"

	mqtt "github.com/eclipse/paho.mqtt.golang"
)

// Publisher writes payloads to arbitrary topics on a shared client.
type Publisher struct {
	client mqtt.Client
}

func NewPublisher(client mqtt.Client) *Publisher {
	return &Publisher{client: client}
}

// PublishJSON marshals v and publishes it. A nil v publishes an empty
// payload, which clears a retained message.
func (p *Publisher) PublishJSON(topic string, qos byte, retained bool, v any) error {
	var payload []byte
	if v != nil {
		b, err := json.Marshal(v)
		if err != nil {
			return fmt.Errorf("marshal payload for %s: %w", topic, err)
		}
		payload = b
	}
	token := p.client.Publish(topic, qos, retained, payload)
	token.Wait()
	if token.Error() != nil {
		return fmt.Errorf("failed to publish to %s: %w", topic, token.Error())
	}
	return nil
}

func (p *Publisher) Connected() bool {
	return p.client != nil && p.client.IsConnectionOpen()
}
