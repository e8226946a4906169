package browser

import (
	"context"
	"fmt"
	"time"

	"github.com/kernel/kernel-go-sdk"
	"github.com/kernel/kernel-go-sdk/option"
	"github.com/pterm/pterm"
)

// BrowserService defines the subset of the Kernel SDK browser client that we use.
type BrowserService interface {
	New(ctx context.Context, body kernel.BrowserNewParams, opts ...option.RequestOption) (*kernel.BrowserNewResponse, error)
	Get(ctx context.Context, id string, query kernel.BrowserGetParams, opts ...option.RequestOption) (*kernel.BrowserGetResponse, error)
}

// Session identifies the Kernel browser messages are delivered to.
type Session struct {
	ID          string
	LiveViewURL string
	Created     bool
}

// SessionOptions configures a newly created browser.
type SessionOptions struct {
	TimeoutSeconds int
	Stealth        bool
}

const readyAttempts = 10

var readyDelay = 500 * time.Millisecond

// EnsureSession returns the browser with the given id, or creates one when id
// is empty.
func EnsureSession(ctx context.Context, svc BrowserService, id string, opts SessionOptions) (Session, error) {
	if id != "" {
		b, err := svc.Get(ctx, id, kernel.BrowserGetParams{})
		if err != nil {
			return Session{}, fmt.Errorf("failed to get browser: %w", err)
		}
		return Session{ID: b.SessionID, LiveViewURL: b.BrowserLiveViewURL}, nil
	}

	params := kernel.BrowserNewParams{}
	if opts.TimeoutSeconds > 0 {
		params.TimeoutSeconds = kernel.Opt(int64(opts.TimeoutSeconds))
	}
	if opts.Stealth {
		params.Stealth = kernel.Opt(true)
	}
	pterm.Info.Println("Creating browser session...")
	b, err := svc.New(ctx, params)
	if err != nil {
		return Session{}, fmt.Errorf("failed to create browser: %w", err)
	}
	pterm.Info.Printf("Created browser: %s\n", b.SessionID)

	if err := waitForBrowserReady(ctx, svc, b.SessionID); err != nil {
		return Session{}, fmt.Errorf("browser not ready: %w", err)
	}
	return Session{ID: b.SessionID, LiveViewURL: b.BrowserLiveViewURL, Created: true}, nil
}

// waitForBrowserReady polls until the browser is reachable through the API.
func waitForBrowserReady(ctx context.Context, svc BrowserService, id string) error {
	for attempt := 1; attempt <= readyAttempts; attempt++ {
		if _, err := svc.Get(ctx, id, kernel.BrowserGetParams{}); err == nil {
			return nil
		}
		if attempt == readyAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(readyDelay):
		}
	}
	return fmt.Errorf("browser %s not accessible after %d attempts", id, readyAttempts)
}
