package delivery

import (
	"context"
	"encoding/json"
	"errors"

	"github.com/kernel/askai/internal/platform"
	"github.com/kernel/askai/internal/settings"
)

// ErrUnsupported is returned by drivers for capabilities they do not have.
var ErrUnsupported = errors.New("not supported by this browser driver")

// TabStatus is the load state of a tab.
type TabStatus string

const (
	TabLoading  TabStatus = "loading"
	TabComplete TabStatus = "complete"
)

// Tab is a handle on a browser tab. ID is empty when the driver cannot address
// the tab after opening it.
type Tab struct {
	ID     string    `json:"id"`
	URL    string    `json:"url"`
	Status TabStatus `json:"status"`
}

// Tabs manages browser tabs.
type Tabs interface {
	Create(ctx context.Context, url string) (Tab, error)
	Get(ctx context.Context, id string) (Tab, error)
	Active(ctx context.Context) (Tab, error)
	Remove(ctx context.Context, id string) error
}

// Executor runs a JavaScript function inside a tab's page. fn is the source of
// a function expression; args are passed to it JSON-encoded. The function's
// (awaited) return value comes back as JSON.
type Executor interface {
	Execute(ctx context.Context, tabID string, fn string, args ...any) (json.RawMessage, error)
}

// Capturer takes a PNG screenshot of a tab's visible area.
type Capturer interface {
	CaptureVisibleTab(ctx context.Context, tabID string) ([]byte, error)
}

// Clipboard writes text to the user's clipboard.
type Clipboard interface {
	WriteText(ctx context.Context, text string) error
}

// Level is a notification severity.
type Level string

const (
	LevelInfo    Level = "info"
	LevelSuccess Level = "success"
	LevelWarning Level = "warning"
	LevelError   Level = "error"
)

// Notification is a fire-and-forget message for the user.
type Notification struct {
	Title   string
	Message string
	Level   Level
}

// Notifier shows notifications.
type Notifier interface {
	Notify(n Notification)
}

// Browser is everything a browser driver provides.
type Browser interface {
	Tabs
	Executor
	Capturer
}

// SettingsSource supplies the current settings.
type SettingsSource interface {
	GetSettings(ctx context.Context) settings.ExtensionSettings
}

// PlatformResolver resolves platform ids.
type PlatformResolver interface {
	Get(ctx context.Context, id string) platform.Platform
}
