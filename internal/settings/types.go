// Package settings persists askai preferences and custom platforms across the
// synchronized and local storage tiers.
package settings

import (
	"encoding/json"

	"github.com/samber/lo"
)

const (
	KeyAutoSend            = "autoSend"
	KeyDefaultInstructions = "defaultInstructions"
	KeyMaxTextLength       = "maxTextLength"
	KeyDefaultModel        = "defaultModel"
	KeyDarkMode            = "darkMode"
	KeySaveInstructions    = "saveInstructions"
	KeyDefaultPlatform     = "defaultPlatform"

	// KeyCustomPlatforms holds the custom platform list, independent of the
	// settings record.
	KeyCustomPlatforms = "customPlatforms"
)

const (
	MinTextLength = 1000
	MaxTextLength = 16384

	// FallbackPlatform is used whenever a referenced platform no longer exists.
	FallbackPlatform = "chatgpt"
)

// SettingsKeys lists every key of ExtensionSettings in declaration order.
var SettingsKeys = []string{
	KeyAutoSend,
	KeyDefaultInstructions,
	KeyMaxTextLength,
	KeyDefaultModel,
	KeyDarkMode,
	KeySaveInstructions,
	KeyDefaultPlatform,
}

// ExtensionSettings is the user's preference record. Every field is always
// populated; values missing from storage take their default.
type ExtensionSettings struct {
	AutoSend            bool   `json:"autoSend"`
	DefaultInstructions string `json:"defaultInstructions"`
	MaxTextLength       int    `json:"maxTextLength"`
	DefaultModel        string `json:"defaultModel"`
	DarkMode            bool   `json:"darkMode"`
	SaveInstructions    bool   `json:"saveInstructions"`
	DefaultPlatform     string `json:"defaultPlatform"`
}

// Defaults returns the built-in settings.
func Defaults() ExtensionSettings {
	return ExtensionSettings{
		AutoSend:            true,
		DefaultInstructions: "",
		MaxTextLength:       MaxTextLength,
		DefaultModel:        "gpt-4o",
		DarkMode:            false,
		SaveInstructions:    true,
		DefaultPlatform:     FallbackPlatform,
	}
}

// patch returns a Patch that sets every field of s.
func (s ExtensionSettings) patch() Patch {
	return Patch{
		AutoSend:            &s.AutoSend,
		DefaultInstructions: &s.DefaultInstructions,
		MaxTextLength:       &s.MaxTextLength,
		DefaultModel:        &s.DefaultModel,
		DarkMode:            &s.DarkMode,
		SaveInstructions:    &s.SaveInstructions,
		DefaultPlatform:     &s.DefaultPlatform,
	}
}

// Patch is a partial settings update. Nil fields are left untouched.
type Patch struct {
	AutoSend            *bool   `json:"autoSend,omitempty"`
	DefaultInstructions *string `json:"defaultInstructions,omitempty"`
	MaxTextLength       *int    `json:"maxTextLength,omitempty"`
	DefaultModel        *string `json:"defaultModel,omitempty"`
	DarkMode            *bool   `json:"darkMode,omitempty"`
	SaveInstructions    *bool   `json:"saveInstructions,omitempty"`
	DefaultPlatform     *string `json:"defaultPlatform,omitempty"`
}

// IsEmpty reports whether the patch sets nothing.
func (p Patch) IsEmpty() bool {
	return len(p.items()) == 0
}

// Keys returns the keys the patch sets, in declaration order.
func (p Patch) Keys() []string {
	items := p.items()
	return lo.Filter(SettingsKeys, func(k string, _ int) bool {
		_, ok := items[k]
		return ok
	})
}

// Apply returns s with the patch applied.
func (p Patch) Apply(s ExtensionSettings) ExtensionSettings {
	if p.AutoSend != nil {
		s.AutoSend = *p.AutoSend
	}
	if p.DefaultInstructions != nil {
		s.DefaultInstructions = *p.DefaultInstructions
	}
	if p.MaxTextLength != nil {
		s.MaxTextLength = *p.MaxTextLength
	}
	if p.DefaultModel != nil {
		s.DefaultModel = *p.DefaultModel
	}
	if p.DarkMode != nil {
		s.DarkMode = *p.DarkMode
	}
	if p.SaveInstructions != nil {
		s.SaveInstructions = *p.SaveInstructions
	}
	if p.DefaultPlatform != nil {
		s.DefaultPlatform = *p.DefaultPlatform
	}
	return s
}

// items encodes the set fields as storage values.
func (p Patch) items() map[string]json.RawMessage {
	out := make(map[string]json.RawMessage)
	put := func(key string, v any) {
		b, err := json.Marshal(v)
		if err == nil {
			out[key] = b
		}
	}
	if p.AutoSend != nil {
		put(KeyAutoSend, *p.AutoSend)
	}
	if p.DefaultInstructions != nil {
		put(KeyDefaultInstructions, *p.DefaultInstructions)
	}
	if p.MaxTextLength != nil {
		put(KeyMaxTextLength, *p.MaxTextLength)
	}
	if p.DefaultModel != nil {
		put(KeyDefaultModel, *p.DefaultModel)
	}
	if p.DarkMode != nil {
		put(KeyDarkMode, *p.DarkMode)
	}
	if p.SaveInstructions != nil {
		put(KeySaveInstructions, *p.SaveInstructions)
	}
	if p.DefaultPlatform != nil {
		put(KeyDefaultPlatform, *p.DefaultPlatform)
	}
	return out
}

// patchFromItems decodes the known settings keys out of a storage payload.
// Unknown keys and values that fail to decode are dropped.
func patchFromItems(items map[string]json.RawMessage) Patch {
	var p Patch
	for _, key := range SettingsKeys {
		v, ok := items[key]
		if !ok {
			continue
		}
		switch key {
		case KeyAutoSend:
			p.AutoSend = decode[bool](v)
		case KeyDefaultInstructions:
			p.DefaultInstructions = decode[string](v)
		case KeyMaxTextLength:
			p.MaxTextLength = decode[int](v)
		case KeyDefaultModel:
			p.DefaultModel = decode[string](v)
		case KeyDarkMode:
			p.DarkMode = decode[bool](v)
		case KeySaveInstructions:
			p.SaveInstructions = decode[bool](v)
		case KeyDefaultPlatform:
			p.DefaultPlatform = decode[string](v)
		}
	}
	return p
}

func decode[T any](v json.RawMessage) *T {
	if len(v) == 0 || string(v) == "null" {
		return nil
	}
	var out T
	if err := json.Unmarshal(v, &out); err != nil {
		return nil
	}
	return &out
}

// clampTextLength keeps n inside [MinTextLength, MaxTextLength].
func clampTextLength(n int) int {
	return lo.Clamp(n, MinTextLength, MaxTextLength)
}

// CustomPlatform is a user-defined destination. It carries no selector
// metadata, so injection falls back to generic heuristics.
type CustomPlatform struct {
	ID   string `json:"id"`
	Name string `json:"name"`
	Icon string `json:"icon"`
	URL  string `json:"url"`
}

// NewCustomPlatform is a custom platform before an id has been assigned.
type NewCustomPlatform struct {
	Name string
	Icon string
	URL  string
}

// CustomPlatformPatch is a partial update of a custom platform. The id is
// immutable.
type CustomPlatformPatch struct {
	Name *string
	Icon *string
	URL  *string
}
