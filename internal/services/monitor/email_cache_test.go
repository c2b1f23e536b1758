package monitor

import (
	"path/filepath"
	"testing"
)

func TestEmailCache(t *testing.T) {
	c := NewEmailCache(filepath.Join(t.TempDir(), "email"))
	if got, err := c.Load(); err != nil || got != "" {
		t.Fatalf("empty cache = %q, %v", got, err)
	}
	if err := c.Store(" grower@example.com "); err != nil {
		t.Fatal(err)
	}
	if err := c.Store(""); err != nil {
		t.Fatal(err)
	}
	if got, _ := c.Load(); got != "grower@example.com" {
		t.Fatalf("Load = %q", got)
	}

	var disabled *EmailCache
	if err := disabled.Store("x@example.com"); err != nil {
		t.Fatal(err)
	}
	if got, _ := disabled.Load(); got != "" {
		t.Fatalf("nil cache Load = %q", got)
	}
}
