// Package realtime is the push-subscription collaborator: it delivers every
// change of a logical path to subscribers and carries partial writes back.
package realtime

import (
	"context"
	"strings"
)

// Logical paths published by the rig and the camera board.
const (
	PathSensors    = "greenhouse/sensors"
	PathRelays     = "greenhouse/relays"
	PathThresholds = "greenhouse/thresholds"
	PathMode       = "greenhouse/mode"
	PathStatus     = "greenhouse/status"
	PathHistory    = "greenhouse/history"
	PathAlerts     = "greenhouse/alerts"

	PathCameraCommands = "commands"
	PathCameraStatus   = "status"
	PathPhotos         = "photos"
)

// UpdateSuffix is appended to a path to address partial updates to it.
const UpdateSuffix = "/update"

// Message is one value delivered for a path. An empty Payload means the
// value at Path was removed.
type Message struct {
	Path      string
	Payload   []byte
	Duplicate bool
}

func (m Message) Removed() bool { return len(m.Payload) == 0 }

// Handler is called for every message matching a subscription. Handlers run
// on the backend's delivery goroutine and must not block.
type Handler func(msg Message) error

// Backend is the hosted realtime store.
type Backend interface {
	// Subscribe delivers the current value of every path matching pattern,
	// then each later change, until ctx is cancelled. Patterns use MQTT
	// filter syntax ("+" one level, "#" the rest).
	Subscribe(ctx context.Context, pattern string, h Handler) error
	// Update merges the fields of partial into the object at path.
	Update(path string, partial map[string]any) error
	// Set replaces the value at path.
	Set(path string, value any) error
	// Remove deletes the value at path.
	Remove(path string) error
	Connected() bool
}

// All returns the filter matching path and everything below it.
func All(path string) string {
	return strings.TrimRight(path, "/") + "/#"
}

// Child returns path/key.
func Child(path, key string) string {
	return strings.TrimRight(path, "/") + "/" + strings.Trim(key, "/")
}

// Match reports whether topic matches the MQTT style filter.
func Match(filter, topic string) bool {
	fs := strings.Split(filter, "/")
	ts := strings.Split(topic, "/")
	for i, f := range fs {
		if f == "#" {
			// "a/#" also matches "a" itself
			return true
		}
		if i >= len(ts) {
			return false
		}
		if f != "+" && f != ts[i] {
			return false
		}
	}
	return len(fs) == len(ts)
}

// IsUpdate reports whether topic is the partial-update channel of a path and
// returns that path.
func IsUpdate(topic string) (string, bool) {
	return strings.CutSuffix(topic, UpdateSuffix)
}
