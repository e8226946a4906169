package browser

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"

	"github.com/chromedp/cdproto/cdp"
	"github.com/chromedp/cdproto/runtime"
	"github.com/chromedp/cdproto/target"
	"github.com/chromedp/chromedp"
	"github.com/kernel/askai/internal/delivery"
	"github.com/pterm/pterm"
	"github.com/samber/lo"
)

// CDP drives a Chromium browser over the DevTools protocol.
type CDP struct {
	browserCtx context.Context
	targets    func() ([]*target.Info, error)

	mu   sync.Mutex
	// tabs holds the attached chromedp context of each tab, keyed by target
	// id. Cancelling one closes its tab.
	tabs map[string]context.Context
}

// NewCDP connects to the browser listening at wsURL, e.g.
// ws://127.0.0.1:9222. The connection lives until the process exits;
// cancelling it would close every tab the driver attached to.
func NewCDP(ctx context.Context, wsURL string) (*CDP, error) {
	allocCtx, allocCancel := chromedp.NewRemoteAllocator(context.WithoutCancel(ctx), wsURL)
	browserCtx, _ := chromedp.NewContext(allocCtx, chromedp.WithLogf(func(format string, args ...any) {
		pterm.Debug.Printf(format+"\n", args...)
	}))

	c := &CDP{
		browserCtx: browserCtx,
		targets:    func() ([]*target.Info, error) { return chromedp.Targets(browserCtx) },
		tabs:       make(map[string]context.Context),
	}
	if _, err := c.ListTargets(); err != nil {
		allocCancel()
		return nil, fmt.Errorf("failed to connect to %s: %w", wsURL, err)
	}
	return c, nil
}

// ListTargets returns the page targets of the browser.
func (c *CDP) ListTargets() ([]*target.Info, error) {
	targets, err := c.targets()
	if err != nil {
		return nil, err
	}
	return lo.Filter(targets, func(t *target.Info, _ int) bool {
		return t.Type == "page" && !strings.HasPrefix(t.URL, "devtools://")
	}), nil
}

// TabContext returns a chromedp context attached to tabID.
func (c *CDP) TabContext(tabID string) (context.Context, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if ctx, ok := c.tabs[tabID]; ok {
		return ctx, nil
	}
	if _, err := c.lookup(tabID); err != nil {
		return nil, err
	}
	ctx, cancel := chromedp.NewContext(c.browserCtx, chromedp.WithTargetID(target.ID(tabID)))
	// Attach with the long-lived context; the target's event loop is bound
	// to whichever context performs the first Run.
	if err := chromedp.Run(ctx); err != nil {
		cancel()
		return nil, fmt.Errorf("failed to attach to tab %s: %w", tabID, err)
	}
	c.tabs[tabID] = ctx
	return ctx, nil
}

func (c *CDP) lookup(tabID string) (*target.Info, error) {
	pages, err := c.ListTargets()
	if err != nil {
		return nil, err
	}
	for _, t := range pages {
		if string(t.TargetID) == tabID {
			return t, nil
		}
	}
	return nil, fmt.Errorf("tab %s not found", tabID)
}

func (c *CDP) browserExecutor(ctx context.Context) context.Context {
	return cdp.WithExecutor(ctx, chromedp.FromContext(c.browserCtx).Browser)
}

func (c *CDP) Create(ctx context.Context, url string) (delivery.Tab, error) {
	id, err := target.CreateTarget(url).Do(c.browserExecutor(ctx))
	if err != nil {
		return delivery.Tab{}, fmt.Errorf("failed to create tab: %w", err)
	}
	return delivery.Tab{ID: string(id), URL: url, Status: delivery.TabLoading}, nil
}

func (c *CDP) Get(ctx context.Context, id string) (delivery.Tab, error) {
	info, err := c.lookup(id)
	if err != nil {
		return delivery.Tab{}, err
	}
	tab := delivery.Tab{ID: id, URL: info.URL, Status: delivery.TabLoading}

	var state string
	if err := c.run(ctx, id, chromedp.Evaluate(`document.readyState`, &state)); err == nil && state == "complete" {
		tab.Status = delivery.TabComplete
	}
	return tab, nil
}

// Active returns the first page target, which Chromium reports in most
// recently used order.
func (c *CDP) Active(ctx context.Context) (delivery.Tab, error) {
	pages, err := c.ListTargets()
	if err != nil {
		return delivery.Tab{}, err
	}
	if len(pages) == 0 {
		return delivery.Tab{}, fmt.Errorf("no open tabs")
	}
	t := pages[0]
	return delivery.Tab{ID: string(t.TargetID), URL: t.URL, Status: delivery.TabComplete}, nil
}

func (c *CDP) Remove(ctx context.Context, id string) error {
	c.mu.Lock()
	tctx, ok := c.tabs[id]
	delete(c.tabs, id)
	c.mu.Unlock()
	if ok {
		return chromedp.Cancel(tctx)
	}
	return target.CloseTarget(target.ID(id)).Do(c.browserExecutor(ctx))
}

func (c *CDP) Execute(ctx context.Context, tabID string, fn string, args ...any) (json.RawMessage, error) {
	expr, err := callExpression(fn, args)
	if err != nil {
		return nil, err
	}
	var raw []byte
	err = c.run(ctx, tabID, chromedp.Evaluate(expr, &raw, func(p *runtime.EvaluateParams) *runtime.EvaluateParams {
		return p.WithAwaitPromise(true)
	}))
	if err != nil {
		return nil, err
	}
	return json.RawMessage(raw), nil
}

func (c *CDP) CaptureVisibleTab(ctx context.Context, tabID string) ([]byte, error) {
	var png []byte
	if err := c.run(ctx, tabID, chromedp.CaptureScreenshot(&png)); err != nil {
		return nil, fmt.Errorf("failed to capture tab: %w", err)
	}
	return png, nil
}

// run executes actions in tabID, bounded by both ctx and the tab's lifetime.
func (c *CDP) run(ctx context.Context, tabID string, actions ...chromedp.Action) error {
	tctx, err := c.TabContext(tabID)
	if err != nil {
		return err
	}
	runCtx, cancel := context.WithCancel(tctx)
	defer cancel()
	stop := context.AfterFunc(ctx, cancel)
	defer stop()
	return chromedp.Run(runCtx, actions...)
}

// callExpression renders fn applied to the JSON-encoded args.
func callExpression(fn string, args []any) (string, error) {
	if args == nil {
		args = []any{}
	}
	encoded, err := json.Marshal(args)
	if err != nil {
		return "", fmt.Errorf("failed to encode script arguments: %w", err)
	}
	return fmt.Sprintf("(%s)(...%s)", strings.TrimSpace(fn), encoded), nil
}
