// Package storage provides the key-value tiers askai persists preferences in.
//
// Every tier stores raw JSON values by key. The synchronized tier lives in the
// operating system keychain and the local tier is a JSON file in the user's
// config directory.
package storage

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"sync"
)

const (
	// AreaSync names the synchronized tier.
	AreaSync = "sync"
	// AreaLocal names the local-only tier.
	AreaLocal = "local"
)

var (
	// ErrUnavailable is returned when a tier cannot be reached at all.
	ErrUnavailable = errors.New("storage area unavailable")
	// ErrQuotaExceeded is returned when a value is too large for a tier.
	ErrQuotaExceeded = errors.New("storage quota exceeded")
)

// Area is a single storage tier.
type Area interface {
	// Name returns the tier name reported in change events.
	Name() string
	// Get returns the stored values for keys. Absent keys are omitted from the
	// result. A nil keys slice returns everything the tier holds.
	Get(ctx context.Context, keys []string) (map[string]json.RawMessage, error)
	// Set writes every item, leaving other keys untouched.
	Set(ctx context.Context, items map[string]json.RawMessage) error
	// Clear removes every key.
	Clear(ctx context.Context) error
	// Watch registers fn for change events and returns a function that
	// unregisters it.
	Watch(fn func(Change)) (stop func())
}

// ValueChange holds the previous and current value of a key. A nil New means
// the key was removed.
type ValueChange struct {
	Old json.RawMessage
	New json.RawMessage
}

// Change is a change event emitted by an Area.
type Change struct {
	Area string
	Keys map[string]ValueChange
}

// diff compares two snapshots and returns the keys whose values differ.
func diff(before, after map[string]json.RawMessage) map[string]ValueChange {
	changes := make(map[string]ValueChange)
	for k, nv := range after {
		ov, ok := before[k]
		if !ok || !bytes.Equal(compact(ov), compact(nv)) {
			changes[k] = ValueChange{Old: ov, New: nv}
		}
	}
	for k, ov := range before {
		if _, ok := after[k]; !ok {
			changes[k] = ValueChange{Old: ov}
		}
	}
	return changes
}

func compact(v json.RawMessage) []byte {
	var buf bytes.Buffer
	if err := json.Compact(&buf, v); err != nil {
		return v
	}
	return buf.Bytes()
}

// watchers is the listener registry shared by the tier implementations.
type watchers struct {
	mu   sync.Mutex
	next int
	fns  map[int]func(Change)
}

func (w *watchers) add(fn func(Change)) func() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.fns == nil {
		w.fns = make(map[int]func(Change))
	}
	id := w.next
	w.next++
	w.fns[id] = fn

	var once sync.Once
	return func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.fns, id)
			w.mu.Unlock()
		})
	}
}

func (w *watchers) len() int {
	w.mu.Lock()
	defer w.mu.Unlock()
	return len(w.fns)
}

func (w *watchers) emit(area string, keys map[string]ValueChange) {
	if len(keys) == 0 {
		return
	}
	w.mu.Lock()
	fns := make([]func(Change), 0, len(w.fns))
	for _, fn := range w.fns {
		fns = append(fns, fn)
	}
	w.mu.Unlock()

	for _, fn := range fns {
		fn(Change{Area: area, Keys: keys})
	}
}
