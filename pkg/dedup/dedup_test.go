package dedup

import (
	"testing"
	"time"
)

func TestShouldProcessWithinTTL(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	d := New(time.Minute, 10).WithClock(func() time.Time { return now })

	key := Key("greenhouse/sensors", []byte(`{"lastUpdate":1}`))
	if !d.ShouldProcess(key) {
		t.Fatal("first delivery must be processed")
	}
	if d.ShouldProcess(key) {
		t.Fatal("redelivery within TTL must be dropped")
	}

	now = now.Add(61 * time.Second)
	if !d.ShouldProcess(key) {
		t.Fatal("delivery after TTL must be processed again")
	}
}

func TestEmptyKeyAlwaysProcessed(t *testing.T) {
	d := New(time.Minute, 10)
	for i := 0; i < 3; i++ {
		if !d.ShouldProcess("") {
			t.Fatalf("empty key dropped on attempt %d", i)
		}
	}
	if d.Len() != 0 {
		t.Fatalf("empty key should not be stored, got %d entries", d.Len())
	}
}

func TestKeyDistinguishesTopic(t *testing.T) {
	payload := []byte(`{"pump1":true}`)
	if Key("greenhouse/relays", payload) == Key("greenhouse/mode", payload) {
		t.Fatal("same payload on different topics must hash differently")
	}
}

func TestExpiredEntriesPrunedOverCapacity(t *testing.T) {
	now := time.Date(2024, 1, 15, 10, 0, 0, 0, time.UTC)
	d := New(time.Second, 2).WithClock(func() time.Time { return now })
	d.ShouldProcess("a")
	d.ShouldProcess("b")

	now = now.Add(2 * time.Second)
	d.ShouldProcess("c")
	if d.Len() > 2 {
		t.Fatalf("expected expired keys to be pruned, have %d", d.Len())
	}
}
