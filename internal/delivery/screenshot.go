package delivery

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/pterm/pterm"
)

// ScreenshotResult is the outcome of SendScreenshot. Copied reports whether the
// image ended up on the clipboard; when it did not, the user has to upload the
// screenshot by hand.
type ScreenshotResult struct {
	Success  bool   `json:"success"`
	Copied   bool   `json:"copied"`
	Platform string `json:"platform"`
	Error    string `json:"error,omitempty"`
}

// SendScreenshot captures the active tab, puts the image on the clipboard and
// opens the destination platform. The copy is first attempted from the
// captured page; pages that refuse it (PDF viewers, for one) get a second
// attempt from the destination tab once it has loaded.
func (o *Orchestrator) SendScreenshot(ctx context.Context, platformID string) ScreenshotResult {
	if platformID == "" {
		platformID = o.settings.GetSettings(ctx).DefaultPlatform
	}
	p := o.platforms.Get(ctx, platformID)

	source, err := o.browser.Active(ctx)
	if err != nil {
		return ScreenshotResult{Platform: p.Name, Error: fmt.Sprintf("No tab to capture: %v", err)}
	}
	png, err := o.browser.CaptureVisibleTab(ctx, source.ID)
	if err != nil {
		return ScreenshotResult{Platform: p.Name, Error: fmt.Sprintf("Failed to capture screenshot: %v", err)}
	}
	encoded := base64.StdEncoding.EncodeToString(png)

	copied := o.writeImage(ctx, source.ID, encoded)

	dest, err := o.browser.Create(ctx, p.URL)
	if err != nil {
		return ScreenshotResult{Copied: copied, Platform: p.Name, Error: fmt.Sprintf("Failed to open %s: %v", p.Name, err)}
	}
	if !copied {
		o.waitForTabLoaded(ctx, dest.ID)
		copied = o.writeImage(ctx, dest.ID, encoded)
	}
	return ScreenshotResult{Success: true, Copied: copied, Platform: p.Name}
}

// CaptureSelection returns the text selected in the active tab.
func (o *Orchestrator) CaptureSelection(ctx context.Context) (string, error) {
	tab, err := o.browser.Active(ctx)
	if err != nil {
		return "", fmt.Errorf("failed to find active tab: %w", err)
	}
	raw, err := o.browser.Execute(ctx, tab.ID, SelectionScript)
	if err != nil {
		return "", fmt.Errorf("failed to read selection: %w", err)
	}
	var text string
	if err := decodeResult(raw, &text); err != nil {
		return "", fmt.Errorf("failed to parse selection: %w", err)
	}
	return text, nil
}

// writeImage asks the page in tabID to put the PNG on the clipboard.
func (o *Orchestrator) writeImage(ctx context.Context, tabID, encoded string) bool {
	if tabID == "" {
		return false
	}
	raw, err := o.browser.Execute(ctx, tabID, ClipboardImageScript, encoded)
	if err != nil {
		pterm.Debug.Printf("clipboard image write in tab %s failed: %v\n", tabID, err)
		return false
	}
	var ok bool
	if err := decodeResult(raw, &ok); err != nil {
		return false
	}
	return ok
}

// waitForTabLoaded polls until the tab reports it has finished loading. It
// gives up after the load timeout and never fails.
func (o *Orchestrator) waitForTabLoaded(ctx context.Context, tabID string) {
	if tabID == "" {
		return
	}
	polls := int(o.loadTimeout / o.loadPoll)
	for i := 0; i < polls; i++ {
		tab, err := o.browser.Get(ctx, tabID)
		if err == nil && tab.Status == TabComplete {
			return
		}
		if err := o.sleep(ctx, o.loadPoll); err != nil {
			return
		}
	}
	pterm.Debug.Printf("tab %s did not finish loading within %s\n", tabID, o.loadTimeout)
}

func decodeResult(raw json.RawMessage, v any) error {
	if len(strings.TrimSpace(string(raw))) == 0 {
		return errors.New("empty result")
	}
	return json.Unmarshal(raw, v)
}
