package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/LeonardoBeccarini/greenhouse/internal/model"
	"github.com/LeonardoBeccarini/greenhouse/pkg/logger"
	"github.com/LeonardoBeccarini/greenhouse/pkg/metrics"
)

// Alert is a notified breach as handed to the outbound channels.
type Alert struct {
	Quantity  model.Quantity `json:"quantity"`
	Message   string         `json:"message"`
	Current   float64        `json:"current"`
	Threshold float64        `json:"threshold"`
	Email     string         `json:"email,omitempty"`
	At        time.Time      `json:"at"`
}

type Toaster interface {
	Push(level ToastLevel, text string, d time.Duration) Toast
}

type EmailSender interface {
	SendAlert(ctx context.Context, a Alert) error
}

// AlertSink receives a copy of every notified alert (audit stream).
type AlertSink interface {
	Publish(ctx context.Context, a Alert) error
}

// Dispatcher fans a notified breach out to the toast feed, e-mail and sinks.
// Outbound calls run in their own goroutines; the caller never waits on them.
type Dispatcher struct {
	toasts      Toaster
	email       EmailSender
	sinks       []AlertSink
	sendTimeout time.Duration
	wg          sync.WaitGroup
	log         zerolog.Logger
}

func NewDispatcher(toasts Toaster, email EmailSender, sendTimeout time.Duration, sinks ...AlertSink) *Dispatcher {
	if sendTimeout <= 0 {
		sendTimeout = 10 * time.Second
	}
	return &Dispatcher{
		toasts:      toasts,
		email:       email,
		sinks:       sinks,
		sendTimeout: sendTimeout,
		log:         logger.WithComponent("dispatch"),
	}
}

func (d *Dispatcher) Dispatch(b Breach, email string, now time.Time) {
	metrics.AlertsNotifiedTotal.WithLabelValues(string(b.Quantity)).Inc()
	if d.toasts != nil {
		d.toasts.Push(ToastWarning, "Alert: "+b.Message, AlertToastDuration)
	}

	a := Alert{
		Quantity:  b.Quantity,
		Message:   b.Message,
		Current:   b.Current,
		Threshold: b.Threshold,
		Email:     email,
		At:        now,
	}

	if email == "" || d.email == nil {
		d.log.Debug().Str("quantity", string(b.Quantity)).Msg("no email configured for alerts, toast only")
	} else {
		d.goSend("email", func(ctx context.Context) error { return d.email.SendAlert(ctx, a) })
	}
	for _, s := range d.sinks {
		s := s
		d.goSend("sink", func(ctx context.Context) error { return s.Publish(ctx, a) })
	}
}

// goSend runs fn detached from any caller context; the result is only logged.
func (d *Dispatcher) goSend(channel string, fn func(ctx context.Context) error) {
	d.wg.Add(1)
	go func() {
		defer d.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), d.sendTimeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			d.log.Error().Err(err).Str("channel", channel).Msg("alert delivery failed")
			return
		}
		d.log.Info().Str("channel", channel).Msg("alert delivered")
	}()
}

// Drain waits up to timeout for in-flight deliveries. It reports whether
// all of them finished.
func (d *Dispatcher) Drain(timeout time.Duration) bool {
	done := make(chan struct{})
	go func() {
		d.wg.Wait()
		close(done)
	}()
	select {
	case <-done:
		return true
	case <-time.After(timeout):
		return false
	}
}
