package monitor

import (
	"time"

	"github.com/LeonardoBeccarini/greenhouse/internal/model"
	"github.com/LeonardoBeccarini/greenhouse/internal/model/entities"
)

// Cooldown is the minimum time between two notifications of one quantity.
const Cooldown = 10 * time.Minute

// ThrottleState maps each quantity to the epoch-ms of its last notification.
type ThrottleState map[model.Quantity]int64

// NewThrottleState returns a state where no quantity has ever notified.
func NewThrottleState() ThrottleState {
	s := make(ThrottleState, len(entities.Quantities))
	for _, q := range entities.Quantities {
		s[q] = 0
	}
	return s
}

func (s ThrottleState) clone() ThrottleState {
	out := make(ThrottleState, len(s))
	for k, v := range s {
		out[k] = v
	}
	return out
}

// MaybeNotify decides whether b may notify at now. The input state is never
// modified; when notify is true the returned state records now for b's
// quantity, otherwise it is the input state.
func MaybeNotify(b Breach, state ThrottleState, now time.Time) (bool, ThrottleState) {
	nowMs := now.UnixMilli()
	if nowMs-state[b.Quantity] <= Cooldown.Milliseconds() {
		return false, state
	}
	next := state.clone()
	next[b.Quantity] = nowMs
	return true, next
}
