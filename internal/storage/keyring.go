package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"maps"
	"slices"
	"sync"

	"github.com/samber/lo"
	"github.com/zalando/go-keyring"
)

const (
	// KeyringItemQuota is the largest value the sync tier accepts per key.
	KeyringItemQuota = 8192

	keyringIndexKey = "__keys"
)

// Keyring is the synchronized tier. Each key is stored as its own secret in the
// operating system keychain under a shared service name, which is synced
// across machines by the platform where the user has that enabled.
type Keyring struct {
	service string

	mu       sync.Mutex
	watchers watchers
}

// NewKeyring returns the sync tier for the given keychain service name.
func NewKeyring(service string) *Keyring {
	return &Keyring{service: service}
}

func (k *Keyring) Name() string { return AreaSync }

func (k *Keyring) Get(ctx context.Context, keys []string) (map[string]json.RawMessage, error) {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.get(keys)
}

func (k *Keyring) get(keys []string) (map[string]json.RawMessage, error) {
	if keys == nil {
		idx, err := k.index()
		if err != nil {
			return nil, err
		}
		keys = idx
	}

	out := make(map[string]json.RawMessage)
	for _, key := range keys {
		v, err := keyring.Get(k.service, key)
		if errors.Is(err, keyring.ErrNotFound) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("%w: read %s: %v", ErrUnavailable, key, err)
		}
		if !json.Valid([]byte(v)) {
			continue
		}
		out[key] = json.RawMessage(v)
	}
	return out, nil
}

func (k *Keyring) Set(ctx context.Context, items map[string]json.RawMessage) error {
	for key, v := range items {
		if len(v) > KeyringItemQuota {
			return fmt.Errorf("%w: %s is %d bytes", ErrQuotaExceeded, key, len(v))
		}
	}

	k.mu.Lock()
	keys := slices.Sorted(maps.Keys(items))
	before, err := k.get(keys)
	if err != nil {
		k.mu.Unlock()
		return err
	}
	for _, key := range keys {
		if err := keyring.Set(k.service, key, string(items[key])); err != nil {
			k.mu.Unlock()
			if errors.Is(err, keyring.ErrSetDataTooBig) {
				return fmt.Errorf("%w: %s: %v", ErrQuotaExceeded, key, err)
			}
			return fmt.Errorf("%w: write %s: %v", ErrUnavailable, key, err)
		}
	}
	idx, err := k.index()
	if err == nil {
		err = k.writeIndex(lo.Union(idx, keys))
	}
	k.mu.Unlock()
	if err != nil {
		return err
	}

	k.watchers.emit(AreaSync, diff(before, items))
	return nil
}

func (k *Keyring) Clear(ctx context.Context) error {
	k.mu.Lock()
	before, err := k.get(nil)
	if err != nil {
		k.mu.Unlock()
		return err
	}
	if err := keyring.DeleteAll(k.service); err != nil && !errors.Is(err, keyring.ErrNotFound) {
		k.mu.Unlock()
		return fmt.Errorf("%w: clear: %v", ErrUnavailable, err)
	}
	k.mu.Unlock()

	k.watchers.emit(AreaSync, diff(before, nil))
	return nil
}

func (k *Keyring) Watch(fn func(Change)) func() {
	return k.watchers.add(fn)
}

func (k *Keyring) index() ([]string, error) {
	v, err := keyring.Get(k.service, keyringIndexKey)
	if errors.Is(err, keyring.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%w: read index: %v", ErrUnavailable, err)
	}
	var keys []string
	if err := json.Unmarshal([]byte(v), &keys); err != nil {
		return nil, nil
	}
	return keys, nil
}

func (k *Keyring) writeIndex(keys []string) error {
	b, err := json.Marshal(keys)
	if err != nil {
		return err
	}
	if err := keyring.Set(k.service, keyringIndexKey, string(b)); err != nil {
		return fmt.Errorf("%w: write index: %v", ErrUnavailable, err)
	}
	return nil
}
