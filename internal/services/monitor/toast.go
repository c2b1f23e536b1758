package monitor

import (
	"sync"
	"time"

	"github.com/google/uuid"
)

type ToastLevel string

const (
	ToastSuccess ToastLevel = "success"
	ToastError   ToastLevel = "error"
	ToastWarning ToastLevel = "warning"
	ToastInfo    ToastLevel = "info"
)

const (
	AlertToastDuration   = 8 * time.Second
	DefaultToastDuration = 4 * time.Second
	maxToasts            = 50
)

// Toast is an ephemeral message shown to whoever is watching the dashboard.
type Toast struct {
	ID        string     `json:"id"`
	Level     ToastLevel `json:"level"`
	Text      string     `json:"text"`
	CreatedAt time.Time  `json:"createdAt"`
	ExpiresAt time.Time  `json:"expiresAt"`
}

// ToastFeed keeps the most recent toasts until they expire.
type ToastFeed struct {
	mu     sync.Mutex
	toasts []Toast
	now    func() time.Time
}

func NewToastFeed() *ToastFeed {
	return &ToastFeed{now: time.Now}
}

// WithClock replaces the feed's clock.
func (f *ToastFeed) WithClock(now func() time.Time) *ToastFeed {
	f.now = now
	return f
}

func (f *ToastFeed) Push(level ToastLevel, text string, d time.Duration) Toast {
	if d <= 0 {
		d = DefaultToastDuration
	}
	now := f.now()
	t := Toast{
		ID:        uuid.NewString(),
		Level:     level,
		Text:      text,
		CreatedAt: now,
		ExpiresAt: now.Add(d),
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pruneLocked(now)
	f.toasts = append(f.toasts, t)
	if len(f.toasts) > maxToasts {
		f.toasts = f.toasts[len(f.toasts)-maxToasts:]
	}
	return t
}

func (f *ToastFeed) Success(text string) { f.Push(ToastSuccess, text, DefaultToastDuration) }
func (f *ToastFeed) Error(text string)   { f.Push(ToastError, text, DefaultToastDuration) }
func (f *ToastFeed) Info(text string)    { f.Push(ToastInfo, text, DefaultToastDuration) }

// Active returns the unexpired toasts, oldest first.
func (f *ToastFeed) Active() []Toast {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.pruneLocked(f.now())
	return append([]Toast(nil), f.toasts...)
}

func (f *ToastFeed) pruneLocked(now time.Time) {
	kept := f.toasts[:0]
	for _, t := range f.toasts {
		if now.Before(t.ExpiresAt) {
			kept = append(kept, t)
		}
	}
	f.toasts = kept
}
