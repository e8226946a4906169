// Package platform resolves delivery destinations: the fixed built-in chat
// platforms and the user's custom platforms.
package platform

import (
	"context"

	"github.com/kernel/askai/internal/settings"
	"github.com/samber/lo"
)

// Kind distinguishes built-in from custom platforms.
type Kind string

const (
	KindBuiltIn Kind = "builtin"
	KindCustom  Kind = "custom"
)

// Platform is the read-only view of a destination used by delivery.
type Platform struct {
	Kind Kind   `json:"kind"`
	ID   string `json:"id"`
	Name string `json:"name"`
	URL  string `json:"url"`
	Icon string `json:"icon"`

	// Selectors are CSS selector candidates for the destination's input,
	// most specific first. Always empty for custom platforms.
	Selectors []string `json:"selectors,omitempty"`

	// DeepLink reports whether URL accepts the message as a query parameter.
	DeepLink bool `json:"deepLink"`

	// DefaultModel is the model the platform uses when none is requested.
	DefaultModel string `json:"defaultModel,omitempty"`
}

// IsCustom reports whether p was defined by the user.
func (p Platform) IsCustom() bool { return p.Kind == KindCustom }

var builtIns = []Platform{
	{
		Kind: KindBuiltIn,
		ID:   "chatgpt",
		Name: "ChatGPT",
		URL:  "https://chatgpt.com/",
		Icon: "🤖",
		Selectors: []string{
			"#prompt-textarea",
			"div#prompt-textarea[contenteditable='true']",
			"textarea[data-id='root']",
			"form textarea",
		},
		DeepLink:     true,
		DefaultModel: "gpt-4o",
	},
	{
		Kind: KindBuiltIn,
		ID:   "claude",
		Name: "Claude",
		URL:  "https://claude.ai/new",
		Icon: "✳️",
		Selectors: []string{
			"div[contenteditable='true'].ProseMirror",
			"fieldset div[contenteditable='true']",
			"div[contenteditable='true']",
			"textarea",
		},
	},
	{
		Kind: KindBuiltIn,
		ID:   "gemini",
		Name: "Gemini",
		URL:  "https://gemini.google.com/app",
		Icon: "✨",
		Selectors: []string{
			"rich-textarea div.ql-editor[contenteditable='true']",
			"div.ql-editor[contenteditable='true']",
			"rich-textarea [contenteditable='true']",
			"textarea",
		},
	},
}

// GenericSelectors are tried on destinations without their own selector list,
// most specific first.
var GenericSelectors = []string{
	"#prompt-textarea",
	"textarea[placeholder*='message' i]",
	"textarea[placeholder*='ask' i]",
	"textarea[placeholder*='prompt' i]",
	"textarea[aria-label*='message' i]",
	"textarea[name='prompt']",
	"textarea[name='message']",
	"div[contenteditable='true'][role='textbox']",
	"div[contenteditable='true'][aria-label*='message' i]",
	"div.ProseMirror[contenteditable='true']",
	"div.ql-editor[contenteditable='true']",
	"[data-testid*='chat-input'] textarea",
	"form textarea",
	"div[contenteditable='true']",
	"textarea",
}

// BuiltIns returns the built-in platforms in their fixed order.
func BuiltIns() []Platform {
	return lo.Map(builtIns, func(p Platform, _ int) Platform { return clone(p) })
}

// BuiltIn returns the built-in platform with the given id, or ChatGPT when the
// id is not a built-in.
func BuiltIn(id string) Platform {
	if p, ok := lookupBuiltIn(id); ok {
		return p
	}
	p, _ := lookupBuiltIn(settings.FallbackPlatform)
	return p
}

// IsBuiltIn reports whether id names a built-in platform.
func IsBuiltIn(id string) bool {
	_, ok := lookupBuiltIn(id)
	return ok
}

func lookupBuiltIn(id string) (Platform, bool) {
	p, ok := lo.Find(builtIns, func(p Platform) bool { return p.ID == id })
	if !ok {
		return Platform{}, false
	}
	return clone(p), true
}

func clone(p Platform) Platform {
	p.Selectors = append([]string(nil), p.Selectors...)
	return p
}

// FromCustom projects a custom platform into a Platform.
func FromCustom(c settings.CustomPlatform) Platform {
	return Platform{
		Kind:      KindCustom,
		ID:        c.ID,
		Name:      c.Name,
		URL:       c.URL,
		Icon:      c.Icon,
		Selectors: []string{},
	}
}

// SelectorCandidates returns the selectors to try when injecting into p.
func SelectorCandidates(p Platform) []string {
	if len(p.Selectors) > 0 {
		return append([]string(nil), p.Selectors...)
	}
	return append([]string(nil), GenericSelectors...)
}

// CustomSource supplies the user's custom platforms.
type CustomSource interface {
	GetCustomPlatforms(ctx context.Context) []settings.CustomPlatform
}

// Registry merges built-in and custom platforms.
type Registry struct {
	custom CustomSource
}

// NewRegistry returns a Registry reading custom platforms from src.
func NewRegistry(src CustomSource) *Registry {
	return &Registry{custom: src}
}

// Get resolves id against the built-ins, then the custom platforms. Unknown
// ids, including custom platforms that have since been removed, resolve to
// ChatGPT.
func (r *Registry) Get(ctx context.Context, id string) Platform {
	if p, ok := lookupBuiltIn(id); ok {
		return p
	}
	if c, ok := lo.Find(r.custom.GetCustomPlatforms(ctx), func(c settings.CustomPlatform) bool {
		return c.ID == id
	}); ok {
		return FromCustom(c)
	}
	return BuiltIn(settings.FallbackPlatform)
}

// All returns the built-ins followed by the custom platforms in stored order.
func (r *Registry) All(ctx context.Context) []Platform {
	custom := lo.Map(r.custom.GetCustomPlatforms(ctx), func(c settings.CustomPlatform, _ int) Platform {
		return FromCustom(c)
	})
	return append(BuiltIns(), custom...)
}
