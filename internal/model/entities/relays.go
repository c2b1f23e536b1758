package entities

import "strings"

type Relay string

const (
	RelayPump1 Relay = "pump1"
	RelayPump2 Relay = "pump2"
	RelayFan   Relay = "fan"
	RelayLight Relay = "light"
)

var Relays = []Relay{RelayPump1, RelayPump2, RelayFan, RelayLight}

func ParseRelay(s string) (Relay, bool) {
	s = strings.ToLower(strings.TrimSpace(s))
	for _, r := range Relays {
		if string(r) == s {
			return r, true
		}
	}
	return "", false
}

// Title is the relay name with its first letter upper-cased.
func (r Relay) Title() string {
	if r == "" {
		return ""
	}
	return strings.ToUpper(string(r[:1])) + string(r[1:])
}

// RelayStatus is the on/off state of every relay.
type RelayStatus struct {
	Pump1 bool `json:"pump1"`
	Pump2 bool `json:"pump2"`
	Fan   bool `json:"fan"`
	Light bool `json:"light"`
}

func (s RelayStatus) Get(r Relay) bool {
	switch r {
	case RelayPump1:
		return s.Pump1
	case RelayPump2:
		return s.Pump2
	case RelayFan:
		return s.Fan
	case RelayLight:
		return s.Light
	}
	return false
}

// Set returns a copy of s with relay r switched to on.
func (s RelayStatus) Set(r Relay, on bool) RelayStatus {
	switch r {
	case RelayPump1:
		s.Pump1 = on
	case RelayPump2:
		s.Pump2 = on
	case RelayFan:
		s.Fan = on
	case RelayLight:
		s.Light = on
	}
	return s
}

type ModeSettings struct {
	Automatic bool `json:"automatic"`
}
