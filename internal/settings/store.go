package settings

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/kernel/askai/internal/storage"
	"github.com/pterm/pterm"
	"github.com/samber/lo"
)

// DefaultDebounce is the quiescence window SaveSettings waits for before
// writing.
const DefaultDebounce = 300 * time.Millisecond

// Store reads and writes settings and custom platforms. Reads and writes go to
// the synchronized tier first and fall back to the local tier.
type Store struct {
	sync  storage.Area
	local storage.Area

	debounce time.Duration
	newID    func() string

	mu      sync.Mutex
	pending *Patch
	timer   *time.Timer
	gen     uint64
}

// Option configures a Store.
type Option func(*Store)

// WithDebounce overrides the SaveSettings quiescence window.
func WithDebounce(d time.Duration) Option {
	return func(s *Store) { s.debounce = d }
}

// WithIDGenerator overrides how custom platform ids are generated.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) { s.newID = fn }
}

// NewStore returns a Store over the given tiers.
func NewStore(syncArea, localArea storage.Area, opts ...Option) *Store {
	s := &Store{
		sync:     syncArea,
		local:    localArea,
		debounce: DefaultDebounce,
		newID:    newCustomPlatformID,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func newCustomPlatformID() string {
	id, err := uuid.NewV7()
	if err != nil {
		id = uuid.New()
	}
	return "custom-" + id.String()
}

// GetSettings returns the stored settings merged over the defaults. It never
// fails: when neither tier can be read the defaults are returned.
func (s *Store) GetSettings(ctx context.Context) ExtensionSettings {
	items := s.read(ctx, SettingsKeys)
	out := patchFromItems(items).Apply(Defaults())
	out.MaxTextLength = clampTextLength(out.MaxTextLength)
	return out
}

// SaveSettings schedules patch to be written once no further SaveSettings call
// has arrived for the debounce window. A later call replaces the pending patch
// rather than merging with it, so fields set only by an earlier call inside the
// same window are not written.
func (s *Store) SaveSettings(patch Patch) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.pending = &patch
	s.gen++
	gen := s.gen
	if s.timer != nil {
		s.timer.Stop()
	}
	s.timer = time.AfterFunc(s.debounce, func() {
		if err := s.flush(context.Background(), gen); err != nil {
			pterm.Debug.Printf("settings save failed: %v\n", err)
		}
	})
}

// Flush writes the pending patch now, if there is one. The returned error is
// informational; SaveSettings itself never reports failures.
func (s *Store) Flush(ctx context.Context) error {
	return s.flush(ctx, 0)
}

// flush takes and writes the pending patch. A non-zero gen is the SaveSettings
// call whose timer fired; it writes nothing once a later call has superseded it.
func (s *Store) flush(ctx context.Context, gen uint64) error {
	s.mu.Lock()
	if gen != 0 && gen != s.gen {
		s.mu.Unlock()
		return nil
	}
	patch := s.pending
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	if patch == nil {
		return nil
	}
	items := patch.items()
	if len(items) == 0 {
		return nil
	}
	return s.write(ctx, items)
}

// ResetSettings clears both tiers and drops any pending save. Tier failures are
// logged and otherwise ignored.
func (s *Store) ResetSettings(ctx context.Context) {
	s.mu.Lock()
	s.pending = nil
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
	s.mu.Unlock()

	if err := s.sync.Clear(ctx); err != nil {
		pterm.Debug.Printf("clear %s storage: %v\n", s.sync.Name(), err)
	}
	if err := s.local.Clear(ctx); err != nil {
		pterm.Debug.Printf("clear %s storage: %v\n", s.local.Name(), err)
	}
}

// OnSettingsChanged calls fn with the changed settings whenever either tier
// reports a change touching a settings key. Removed keys are reported with
// their default value. The returned function unregisters fn.
func (s *Store) OnSettingsChanged(fn func(Patch)) func() {
	handler := func(c storage.Change) {
		items := make(map[string]json.RawMessage)
		defaults := Defaults().patch().items()
		for key, vc := range c.Keys {
			if !lo.Contains(SettingsKeys, key) {
				continue
			}
			if vc.New == nil {
				items[key] = defaults[key]
				continue
			}
			items[key] = vc.New
		}
		if len(items) == 0 {
			return
		}
		patch := patchFromItems(items)
		if patch.IsEmpty() {
			return
		}
		fn(patch)
	}

	stopSync := s.sync.Watch(handler)
	stopLocal := s.local.Watch(handler)
	return func() {
		stopSync()
		stopLocal()
	}
}

// GetCustomPlatforms returns the stored custom platforms in order.
func (s *Store) GetCustomPlatforms(ctx context.Context) []CustomPlatform {
	items := s.read(ctx, []string{KeyCustomPlatforms})
	v, ok := items[KeyCustomPlatforms]
	if !ok {
		return []CustomPlatform{}
	}
	var list []CustomPlatform
	if err := json.Unmarshal(v, &list); err != nil {
		pterm.Debug.Printf("ignoring unreadable custom platforms: %v\n", err)
		return []CustomPlatform{}
	}
	return list
}

// SaveCustomPlatforms writes list immediately.
func (s *Store) SaveCustomPlatforms(ctx context.Context, list []CustomPlatform) error {
	if list == nil {
		list = []CustomPlatform{}
	}
	b, err := json.Marshal(list)
	if err != nil {
		return fmt.Errorf("encode custom platforms: %w", err)
	}
	return s.write(ctx, map[string]json.RawMessage{KeyCustomPlatforms: b})
}

// AddCustomPlatform assigns a fresh id to p, appends it and persists the list.
// Name uniqueness is not enforced here; see ValidateCustomPlatform.
func (s *Store) AddCustomPlatform(ctx context.Context, p NewCustomPlatform) (CustomPlatform, error) {
	created := CustomPlatform{
		ID:   s.newID(),
		Name: p.Name,
		Icon: p.Icon,
		URL:  p.URL,
	}
	list := append(s.GetCustomPlatforms(ctx), created)
	if err := s.SaveCustomPlatforms(ctx, list); err != nil {
		return created, err
	}
	return created, nil
}

// RemoveCustomPlatform removes the platform with the given id. Unknown ids are
// a no-op.
func (s *Store) RemoveCustomPlatform(ctx context.Context, id string) error {
	list := s.GetCustomPlatforms(ctx)
	kept := lo.Reject(list, func(p CustomPlatform, _ int) bool { return p.ID == id })
	if len(kept) == len(list) {
		return nil
	}
	return s.SaveCustomPlatforms(ctx, kept)
}

// UpdateCustomPlatform merges patch into the platform with the given id.
// Unknown ids are a no-op.
func (s *Store) UpdateCustomPlatform(ctx context.Context, id string, patch CustomPlatformPatch) error {
	list := s.GetCustomPlatforms(ctx)
	_, idx, found := lo.FindIndexOf(list, func(p CustomPlatform) bool { return p.ID == id })
	if !found {
		return nil
	}
	if patch.Name != nil {
		list[idx].Name = *patch.Name
	}
	if patch.Icon != nil {
		list[idx].Icon = *patch.Icon
	}
	if patch.URL != nil {
		list[idx].URL = *patch.URL
	}
	return s.SaveCustomPlatforms(ctx, list)
}

// read returns keys from the sync tier, falling back to the local tier. When
// both fail it returns an empty map.
func (s *Store) read(ctx context.Context, keys []string) map[string]json.RawMessage {
	items, err := s.sync.Get(ctx, keys)
	if err == nil {
		return items
	}
	pterm.Debug.Printf("read %s storage: %v\n", s.sync.Name(), err)

	items, err = s.local.Get(ctx, keys)
	if err == nil {
		return items
	}
	pterm.Debug.Printf("read %s storage: %v\n", s.local.Name(), err)
	return map[string]json.RawMessage{}
}

// write stores items in the sync tier, falling back to the local tier.
func (s *Store) write(ctx context.Context, items map[string]json.RawMessage) error {
	syncErr := s.sync.Set(ctx, items)
	if syncErr == nil {
		return nil
	}
	pterm.Debug.Printf("write %s storage: %v\n", s.sync.Name(), syncErr)

	localErr := s.local.Set(ctx, items)
	if localErr == nil {
		return nil
	}
	pterm.Debug.Printf("write %s storage: %v\n", s.local.Name(), localErr)
	return errors.Join(syncErr, localErr)
}
