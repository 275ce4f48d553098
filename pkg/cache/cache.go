// Package cache implements the URL-keyed document store consulted by
// the mirroring engine. The engine treats Has, Get and Put as
// independent, non-transactional calls: two concurrent first requests
// for the same URL may both fetch, and the second Put wins.
package cache

import (
	"sync"
	"time"
)

// Gateway maps a target URL to its previously mirrored, serialized
// document. A hit is always served as stored; the engine never
// bypasses it.
type Gateway interface {
	Has(url string) bool
	Get(url string) (string, bool)
	Put(url, document string)
}

type entry struct {
	body     string
	storedAt time.Time
}

// Memory is an in-process Gateway. A ttl of zero keeps entries
// forever.
type Memory struct {
	mu      sync.RWMutex
	ttl     time.Duration
	entries map[string]entry
}

func NewMemory(ttl time.Duration) *Memory {
	return &Memory{ttl: ttl, entries: make(map[string]entry)}
}

func (m *Memory) Has(url string) bool {
	_, ok := m.Get(url)
	return ok
}

func (m *Memory) Get(url string) (string, bool) {
	m.mu.RLock()
	e, ok := m.entries[url]
	m.mu.RUnlock()
	if !ok {
		return "", false
	}
	if m.ttl > 0 && time.Since(e.storedAt) > m.ttl {
		m.mu.Lock()
		delete(m.entries, url)
		m.mu.Unlock()
		return "", false
	}
	return e.body, true
}

func (m *Memory) Put(url, document string) {
	m.mu.Lock()
	m.entries[url] = entry{body: document, storedAt: time.Now()}
	m.mu.Unlock()
}
