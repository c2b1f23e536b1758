package monitor

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/LeonardoBeccarini/greenhouse/internal/model"
)

type fakeEmail struct {
	mu    sync.Mutex
	sent  []Alert
	err   error
	block chan struct{}
}

func (f *fakeEmail) SendAlert(_ context.Context, a Alert) error {
	if f.block != nil {
		<-f.block
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sent = append(f.sent, a)
	return f.err
}

func (f *fakeEmail) Sent() []Alert {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Alert(nil), f.sent...)
}

func TestDispatchToastAndEmail(t *testing.T) {
	toasts := NewToastFeed()
	email := &fakeEmail{}
	d := NewDispatcher(toasts, email, time.Second)

	b := Breach{Quantity: model.QuantityTemperature, Current: 31, Threshold: 30, Message: "Temperature threshold exceeded"}
	now := time.Now()
	d.Dispatch(b, "grower@example.com", now)
	if !d.Drain(time.Second) {
		t.Fatal("send did not finish")
	}

	active := toasts.Active()
	if len(active) != 1 || active[0].Level != ToastWarning || active[0].Text != "Alert: Temperature threshold exceeded" {
		t.Fatalf("toasts = %+v", active)
	}
	if got := active[0].ExpiresAt.Sub(active[0].CreatedAt); got != AlertToastDuration {
		t.Fatalf("toast duration = %v", got)
	}
	sent := email.Sent()
	if len(sent) != 1 || sent[0].Email != "grower@example.com" || !sent[0].At.Equal(now) {
		t.Fatalf("sent = %+v", sent)
	}
}

func TestDispatchWithoutEmailIsToastOnly(t *testing.T) {
	toasts := NewToastFeed()
	email := &fakeEmail{}
	d := NewDispatcher(toasts, email, time.Second)
	d.Dispatch(Breach{Quantity: model.QuantityMoisture, Message: "m"}, "", time.Now())
	d.Drain(time.Second)
	if len(email.Sent()) != 0 {
		t.Fatal("email sent without an address")
	}
	if len(toasts.Active()) != 1 {
		t.Fatal("toast missing")
	}
}

func TestDispatchDoesNotWaitForSend(t *testing.T) {
	email := &fakeEmail{block: make(chan struct{}), err: errors.New("smtp down")}
	d := NewDispatcher(NewToastFeed(), email, time.Second)

	done := make(chan struct{})
	go func() {
		d.Dispatch(Breach{Quantity: model.QuantityHumidity, Message: "h"}, "a@example.com", time.Now())
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Dispatch blocked on the e-mail send")
	}
	if d.Drain(10 * time.Millisecond) {
		t.Fatal("Drain reported completion while the send is blocked")
	}
	close(email.block)
	if !d.Drain(time.Second) {
		t.Fatal("send never finished")
	}
}

func TestToastFeedExpiry(t *testing.T) {
	now := time.Unix(0, 0)
	f := NewToastFeed().WithClock(func() time.Time { return now })
	f.Push(ToastWarning, "Alert: a", AlertToastDuration)
	f.Success("Fan activated")

	if n := len(f.Active()); n != 2 {
		t.Fatalf("active = %d, want 2", n)
	}
	now = now.Add(5 * time.Second)
	active := f.Active()
	if len(active) != 1 || !strings.HasPrefix(active[0].Text, "Alert:") {
		t.Fatalf("active = %+v", active)
	}
	now = now.Add(4 * time.Second)
	if n := len(f.Active()); n != 0 {
		t.Fatalf("active = %d, want 0", n)
	}
}
