package realtime

import (
	"context"
	"encoding/json"
	"fmt"
	"sort"
	"strings"
	"sync"
)

// Memory is an in-process Backend. It merges partial updates itself, which
// makes it usable both for tests and for running without a broker.
type Memory struct {
	mu     sync.Mutex
	values map[string][]byte
	subs   map[int]memSub
	nextID int
}

type memSub struct {
	pattern string
	h       Handler
}

func NewMemory() *Memory {
	return &Memory{
		values: make(map[string][]byte),
		subs:   make(map[int]memSub),
	}
}

func (m *Memory) Subscribe(ctx context.Context, pattern string, h Handler) error {
	m.mu.Lock()
	id := m.nextID
	m.nextID++
	m.subs[id] = memSub{pattern: pattern, h: h}
	var current []Message
	for p, v := range m.values {
		if Match(pattern, p) {
			current = append(current, Message{Path: p, Payload: v})
		}
	}
	m.mu.Unlock()

	sort.Slice(current, func(i, j int) bool { return current[i].Path < current[j].Path })
	for _, msg := range current {
		_ = h(msg)
	}

	go func() {
		<-ctx.Done()
		m.mu.Lock()
		delete(m.subs, id)
		m.mu.Unlock()
	}()
	return nil
}

func (m *Memory) Update(path string, partial map[string]any) error {
	m.mu.Lock()
	obj := map[string]json.RawMessage{}
	if cur, ok := m.values[path]; ok {
		// a non-object value is replaced by the partial
		_ = json.Unmarshal(cur, &obj)
	}
	for k, v := range partial {
		b, err := json.Marshal(v)
		if err != nil {
			m.mu.Unlock()
			return fmt.Errorf("update %s.%s: %w", path, k, err)
		}
		obj[k] = b
	}
	b, err := json.Marshal(obj)
	if err != nil {
		m.mu.Unlock()
		return fmt.Errorf("update %s: %w", path, err)
	}
	m.values[path] = b
	m.mu.Unlock()

	m.publish(Message{Path: path, Payload: b})
	return nil
}

func (m *Memory) Set(path string, value any) error {
	if value == nil {
		return m.Remove(path)
	}
	b, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("set %s: %w", path, err)
	}
	m.mu.Lock()
	m.values[path] = b
	m.mu.Unlock()

	m.publish(Message{Path: path, Payload: b})
	return nil
}

// Remove deletes path and everything below it.
func (m *Memory) Remove(path string) error {
	m.mu.Lock()
	var removed []string
	for p := range m.values {
		if p == path || strings.HasPrefix(p, path+"/") {
			removed = append(removed, p)
			delete(m.values, p)
		}
	}
	m.mu.Unlock()

	sort.Strings(removed)
	for _, p := range removed {
		m.publish(Message{Path: p})
	}
	return nil
}

func (m *Memory) Connected() bool { return true }

// Get returns the raw value stored at path.
func (m *Memory) Get(path string) ([]byte, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.values[path]
	return b, ok
}

func (m *Memory) publish(msg Message) {
	m.mu.Lock()
	hs := make([]Handler, 0, len(m.subs))
	ids := make([]int, 0, len(m.subs))
	for id := range m.subs {
		ids = append(ids, id)
	}
	sort.Ints(ids)
	for _, id := range ids {
		if s := m.subs[id]; Match(s.pattern, msg.Path) {
			hs = append(hs, s.h)
		}
	}
	m.mu.Unlock()

	for _, h := range hs {
		_ = h(msg)
	}
}
