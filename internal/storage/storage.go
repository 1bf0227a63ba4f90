// Package storage provides the two per-browser key/value areas the session
// store reads from: a durable area backed by SQLite and a tab-scoped area
// held in memory.
package storage

import (
	"fmt"
	"sync"
	"time"

	"github.com/dukerupert/sovaehr/internal/store"
)

// Area is one browser's key/value storage.
type Area interface {
	Get(key string) (string, bool, error)
	Set(key, value string) error
	Remove(key string) error
}

// Sealer encrypts values before they are written.
type Sealer interface {
	Seal(plaintext []byte) ([]byte, error)
	Open(sealed []byte) ([]byte, error)
}

// Durable hands out durable areas. Keys listed as sealed are encrypted at
// rest when a Sealer is configured.
type Durable struct {
	items  *store.ClientStorageStore
	sealer Sealer
	sealed map[string]bool
}

func NewDurable(items *store.ClientStorageStore, sealer Sealer, sealedKeys ...string) *Durable {
	d := &Durable{items: items, sealer: sealer, sealed: make(map[string]bool, len(sealedKeys))}
	for _, k := range sealedKeys {
		d.sealed[k] = true
	}
	return d
}

// For returns the durable area of one browser.
func (d *Durable) For(clientID string) Area {
	return &durableArea{d: d, clientID: clientID}
}

// Cleanup drops durable items untouched for longer than maxAge.
func (d *Durable) Cleanup(maxAge time.Duration) (int64, error) {
	return d.items.DeleteStale(time.Now().Add(-maxAge))
}

type durableArea struct {
	d        *Durable
	clientID string
}

func (a *durableArea) Get(key string) (string, bool, error) {
	item, err := a.d.items.Get(a.clientID, key)
	if err != nil {
		return "", false, err
	}
	if item == nil {
		return "", false, nil
	}
	if !item.Sealed {
		return string(item.Value), true, nil
	}
	if a.d.sealer == nil {
		return "", false, fmt.Errorf("read %q: value is sealed but no sealer is configured", key)
	}
	plain, err := a.d.sealer.Open(item.Value)
	if err != nil {
		return "", false, fmt.Errorf("open %q: %w", key, err)
	}
	return string(plain), true, nil
}

func (a *durableArea) Set(key, value string) error {
	if a.d.sealer != nil && a.d.sealed[key] {
		sealed, err := a.d.sealer.Seal([]byte(value))
		if err != nil {
			return fmt.Errorf("seal %q: %w", key, err)
		}
		return a.d.items.Put(a.clientID, key, sealed, true)
	}
	return a.d.items.Put(a.clientID, key, []byte(value), false)
}

func (a *durableArea) Remove(key string) error {
	return a.d.items.Delete(a.clientID, key)
}

// Tab hands out in-memory areas that disappear once a browser goes idle.
type Tab struct {
	mu      sync.Mutex
	clients map[string]*tabEntry
}

type tabEntry struct {
	values   map[string]string
	lastSeen time.Time
}

func NewTab() *Tab {
	return &Tab{clients: make(map[string]*tabEntry)}
}

// For returns the tab-scoped area of one browser.
func (t *Tab) For(clientID string) Area {
	return &tabArea{t: t, clientID: clientID}
}

// Cleanup removes areas idle longer than maxIdle.
func (t *Tab) Cleanup(maxIdle time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	removed := 0
	for id, e := range t.clients {
		if time.Since(e.lastSeen) > maxIdle {
			delete(t.clients, id)
			removed++
		}
	}
	return removed
}

// Len returns the number of live areas.
func (t *Tab) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.clients)
}

type tabArea struct {
	t        *Tab
	clientID string
}

func (a *tabArea) Get(key string) (string, bool, error) {
	a.t.mu.Lock()
	defer a.t.mu.Unlock()

	e, ok := a.t.clients[a.clientID]
	if !ok {
		return "", false, nil
	}
	e.lastSeen = time.Now()
	v, ok := e.values[key]
	return v, ok, nil
}

func (a *tabArea) Set(key, value string) error {
	a.t.mu.Lock()
	defer a.t.mu.Unlock()

	e, ok := a.t.clients[a.clientID]
	if !ok {
		e = &tabEntry{values: make(map[string]string)}
		a.t.clients[a.clientID] = e
	}
	e.values[key] = value
	e.lastSeen = time.Now()
	return nil
}

func (a *tabArea) Remove(key string) error {
	a.t.mu.Lock()
	defer a.t.mu.Unlock()

	e, ok := a.t.clients[a.clientID]
	if !ok {
		return nil
	}
	delete(e.values, key)
	if len(e.values) == 0 {
		delete(a.t.clients, a.clientID)
	}
	return nil
}
