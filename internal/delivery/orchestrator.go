// Package delivery hands a formatted message to a chat platform through a deep
// link, the clipboard, or injection into the platform's page.
package delivery

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/kernel/askai/internal/message"
	"github.com/kernel/askai/internal/platform"
	"github.com/pterm/pterm"
)

const (
	// MaxDeepLinkLength is the longest deep-link URL that will be opened.
	MaxDeepLinkLength = 1800

	DefaultSettleDelay      = 3 * time.Second
	DefaultInjectionTimeout = 30 * time.Second
	DefaultLoadPollInterval = 500 * time.Millisecond
	DefaultLoadTimeout      = 10 * time.Second
)

// DefaultRetryDelays is the wait before each injection attempt.
var DefaultRetryDelays = []time.Duration{0, time.Second, 2 * time.Second, 5 * time.Second}

// Method is how a message reached the platform.
type Method string

const (
	MethodDeepLink  Method = "deeplink"
	MethodClipboard Method = "clipboard"
)

// Result is the outcome of SendToAI.
type Result struct {
	Success  bool   `json:"success"`
	Method   Method `json:"method"`
	Error    string `json:"error,omitempty"`
	Platform string `json:"platform"`
}

// Options wires an Orchestrator to its collaborators.
type Options struct {
	Browser   Browser
	Clipboard Clipboard
	Notifier  Notifier
	Settings  SettingsSource
	Platforms PlatformResolver

	// Zero values select the defaults above.
	SettleDelay      time.Duration
	RetryDelays      []time.Duration
	InjectionTimeout time.Duration
	LoadPollInterval time.Duration
	LoadTimeout      time.Duration

	// Sleep replaces the context-aware wait used for every delay.
	Sleep func(ctx context.Context, d time.Duration) error
}

// Orchestrator delivers messages and screenshots.
type Orchestrator struct {
	browser   Browser
	clipboard Clipboard
	notifier  Notifier
	settings  SettingsSource
	platforms PlatformResolver

	settleDelay      time.Duration
	retryDelays      []time.Duration
	injectionTimeout time.Duration
	loadPoll         time.Duration
	loadTimeout      time.Duration
	sleep            func(ctx context.Context, d time.Duration) error

	// lifetime bounds background injection tasks; Close cancels it.
	lifetime context.Context
	cancel   context.CancelFunc
	tasks    sync.WaitGroup
}

// New returns an Orchestrator. It is meant to be created once per process.
func New(opts Options) *Orchestrator {
	o := &Orchestrator{
		browser:          opts.Browser,
		clipboard:        opts.Clipboard,
		notifier:         opts.Notifier,
		settings:         opts.Settings,
		platforms:        opts.Platforms,
		settleDelay:      opts.SettleDelay,
		retryDelays:      opts.RetryDelays,
		injectionTimeout: opts.InjectionTimeout,
		loadPoll:         opts.LoadPollInterval,
		loadTimeout:      opts.LoadTimeout,
		sleep:            opts.Sleep,
	}
	if o.settleDelay == 0 {
		o.settleDelay = DefaultSettleDelay
	}
	if o.retryDelays == nil {
		o.retryDelays = DefaultRetryDelays
	}
	if o.injectionTimeout == 0 {
		o.injectionTimeout = DefaultInjectionTimeout
	}
	if o.loadPoll == 0 {
		o.loadPoll = DefaultLoadPollInterval
	}
	if o.loadTimeout == 0 {
		o.loadTimeout = DefaultLoadTimeout
	}
	if o.sleep == nil {
		o.sleep = sleepContext
	}
	o.lifetime, o.cancel = context.WithCancel(context.Background())
	return o
}

// SendToAI delivers m to the platform with the given id (the message's own
// platform, then the default platform, when empty). It never returns an error;
// failures are reported in the Result.
func (o *Orchestrator) SendToAI(ctx context.Context, m message.Message, autoSend bool, platformID string) Result {
	prefs := o.settings.GetSettings(ctx)
	if platformID == "" {
		platformID = m.Platform
	}
	if platformID == "" {
		platformID = prefs.DefaultPlatform
	}
	if m.Model == "" {
		m.Model = prefs.DefaultModel
	}

	p := o.platforms.Get(ctx, platformID)
	formatted := message.FormatForClipboard(m)
	if strings.TrimSpace(formatted) == "" {
		return Result{Method: MethodClipboard, Error: "No message to send", Platform: p.Name}
	}

	// The clipboard copy is a backup for every path; failures only get logged.
	if err := o.clipboard.WriteText(ctx, formatted); err != nil {
		pterm.Debug.Printf("clipboard copy failed: %v\n", err)
	}

	if autoSend && p.DeepLink {
		link, err := message.BuildDeepLinkURL(p, m)
		switch {
		case err != nil:
			pterm.Debug.Printf("deep link unavailable: %v\n", err)
		case len(link) > MaxDeepLinkLength:
			pterm.Debug.Printf("deep link is %d characters, over the %d limit\n", len(link), MaxDeepLinkLength)
		default:
			_, err := o.browser.Create(ctx, link)
			if err == nil {
				return Result{Success: true, Method: MethodDeepLink, Platform: p.Name}
			}
			pterm.Debug.Printf("opening deep link failed, falling back to clipboard: %v\n", err)
		}
	}

	tab, err := o.browser.Create(ctx, p.URL)
	if err != nil {
		return Result{
			Method:   MethodClipboard,
			Error:    fmt.Sprintf("Failed to open %s: %v", p.Name, err),
			Platform: p.Name,
		}
	}
	o.spawnInjection(tab, p, formatted)
	return Result{Success: true, Method: MethodClipboard, Platform: p.Name}
}

// spawnInjection starts the deferred injection into tab. The task is bound to
// the orchestrator's lifetime and the tab's, never to the caller's context.
func (o *Orchestrator) spawnInjection(tab Tab, p platform.Platform, text string) {
	if tab.ID == "" {
		pterm.Debug.Printf("%s tab cannot be addressed; leaving the message on the clipboard\n", p.Name)
		return
	}

	ctx, cancel := context.WithTimeout(o.lifetime, o.settleDelay+o.injectionTimeout)
	o.tasks.Add(1)
	go func() {
		defer o.tasks.Done()
		defer cancel()

		if err := o.sleep(ctx, o.settleDelay); err != nil {
			return
		}
		if o.Inject(ctx, tab.ID, p, text) {
			o.notify(Notification{Title: p.Name, Message: "Message inserted. Review it and press Enter to send.", Level: LevelSuccess})
			return
		}
		o.notify(Notification{Title: p.Name, Message: "Could not find the message box. Paste the message from your clipboard.", Level: LevelWarning})
	}()
}

// Inject tries to place text into the platform's input inside tabID, scanning
// the selector candidates once per retry delay. It reports whether a field was
// filled and gives up quietly when the tab goes away or the context ends.
func (o *Orchestrator) Inject(ctx context.Context, tabID string, p platform.Platform, text string) bool {
	selectors := platform.SelectorCandidates(p)
	for attempt, delay := range o.retryDelays {
		if err := o.sleep(ctx, delay); err != nil {
			return false
		}
		if _, err := o.browser.Get(ctx, tabID); err != nil {
			pterm.Debug.Printf("tab %s is gone, dropping injection: %v\n", tabID, err)
			return false
		}

		raw, err := o.browser.Execute(ctx, tabID, InjectTextScript, selectors, text)
		if err != nil {
			pterm.Debug.Printf("injection attempt %d failed: %v\n", attempt+1, err)
			continue
		}
		var out struct {
			Injected bool   `json:"injected"`
			Selector string `json:"selector"`
		}
		if err := decodeResult(raw, &out); err != nil {
			pterm.Debug.Printf("injection attempt %d returned %s: %v\n", attempt+1, raw, err)
			continue
		}
		if out.Injected {
			pterm.Debug.Printf("injected into %s using %q\n", p.Name, out.Selector)
			return true
		}
		pterm.Debug.Printf("injection attempt %d: no input found on %s\n", attempt+1, p.Name)
	}
	return false
}

// Wait blocks until every spawned injection task has finished.
func (o *Orchestrator) Wait() {
	o.tasks.Wait()
}

// Close cancels outstanding injection tasks.
func (o *Orchestrator) Close() {
	o.cancel()
}

func (o *Orchestrator) notify(n Notification) {
	if o.notifier != nil {
		o.notifier.Notify(n)
	}
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
