// Package browser provides the browser drivers messages are delivered through:
// a Kernel cloud browser, a Chromium reached over the DevTools protocol, and the
// system default browser.
package browser

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/kernel/askai/internal/delivery"
	"github.com/kernel/kernel-go-sdk"
	"github.com/kernel/kernel-go-sdk/option"
	"github.com/samber/lo"
)

// DefaultScriptTimeout bounds a single Playwright script run.
const DefaultScriptTimeout = 30 * time.Second

// PlaywrightService defines the subset of the Kernel SDK Playwright client that we use.
type PlaywrightService interface {
	Execute(ctx context.Context, id string, body kernel.BrowserPlaywrightExecuteParams, opts ...option.RequestOption) (*kernel.BrowserPlaywrightExecuteResponse, error)
}

// Kernel drives a Kernel cloud browser session by running Playwright scripts
// against it. Pages have no stable id in Playwright, so every tab the driver
// touches is tagged with a generated one.
type Kernel struct {
	playwright PlaywrightService
	sessionID  string
	timeout    time.Duration
	newID      func() string
}

func NewKernel(svc PlaywrightService, sessionID string) *Kernel {
	return &Kernel{
		playwright: svc,
		sessionID:  sessionID,
		timeout:    DefaultScriptTimeout,
		newID:      func() string { return "tab-" + uuid.NewString() },
	}
}

type tabResult struct {
	Found  bool   `json:"found"`
	ID     string `json:"id"`
	URL    string `json:"url"`
	Status string `json:"status"`
}

func (r tabResult) tab() delivery.Tab {
	status := delivery.TabLoading
	if r.Status == string(delivery.TabComplete) {
		status = delivery.TabComplete
	}
	return delivery.Tab{ID: r.ID, URL: r.URL, Status: status}
}

func (k *Kernel) Create(ctx context.Context, url string) (delivery.Tab, error) {
	var res tabResult
	env := map[string]string{"ASKAI_TAB_ID": k.newID(), "ASKAI_URL": url}
	if err := k.run(ctx, env, newTabScript, &res); err != nil {
		return delivery.Tab{}, fmt.Errorf("failed to open tab: %w", err)
	}
	return res.tab(), nil
}

func (k *Kernel) Get(ctx context.Context, id string) (delivery.Tab, error) {
	var res tabResult
	if err := k.run(ctx, map[string]string{"ASKAI_TAB_ID": id}, tabStateScript, &res); err != nil {
		return delivery.Tab{}, err
	}
	if !res.Found {
		return delivery.Tab{}, fmt.Errorf("tab %s not found", id)
	}
	return res.tab(), nil
}

func (k *Kernel) Active(ctx context.Context) (delivery.Tab, error) {
	var res tabResult
	if err := k.run(ctx, map[string]string{"ASKAI_TAB_ID": k.newID()}, activeTabScript, &res); err != nil {
		return delivery.Tab{}, err
	}
	if !res.Found {
		return delivery.Tab{}, errors.New("no open tabs")
	}
	return res.tab(), nil
}

func (k *Kernel) Remove(ctx context.Context, id string) error {
	return k.run(ctx, map[string]string{"ASKAI_TAB_ID": id}, closeTabScript, nil)
}

func (k *Kernel) Execute(ctx context.Context, tabID string, fn string, args ...any) (json.RawMessage, error) {
	expr, err := callExpression(fn, args)
	if err != nil {
		return nil, err
	}
	var res struct {
		Value json.RawMessage `json:"value"`
	}
	env := map[string]string{"ASKAI_TAB_ID": tabID, "ASKAI_EXPRESSION": expr}
	if err := k.run(ctx, env, evaluateScript, &res); err != nil {
		return nil, err
	}
	return res.Value, nil
}

func (k *Kernel) CaptureVisibleTab(ctx context.Context, tabID string) ([]byte, error) {
	var res struct {
		PNG string `json:"png"`
	}
	if err := k.run(ctx, map[string]string{"ASKAI_TAB_ID": tabID}, screenshotScript, &res); err != nil {
		return nil, err
	}
	png, err := base64.StdEncoding.DecodeString(res.PNG)
	if err != nil {
		return nil, fmt.Errorf("failed to decode screenshot: %w", err)
	}
	return png, nil
}

// run executes body with env exported through process.env and decodes the
// script's return value into out.
func (k *Kernel) run(ctx context.Context, env map[string]string, body string, out any) error {
	result, err := k.playwright.Execute(ctx, k.sessionID, kernel.BrowserPlaywrightExecuteParams{
		Code:       buildScript(env, body),
		TimeoutSec: kernel.Opt(int64(k.timeout / time.Second)),
	})
	if err != nil {
		return fmt.Errorf("failed to execute script: %w", err)
	}
	if !result.Success {
		if result.Error != "" {
			return fmt.Errorf("script failed: %s", result.Error)
		}
		return errors.New("script failed")
	}
	if out == nil || result.Result == nil {
		return nil
	}

	resultBytes, err := json.Marshal(result.Result)
	if err != nil {
		return fmt.Errorf("failed to parse result: %w", err)
	}
	if err := json.Unmarshal(resultBytes, out); err != nil {
		return fmt.Errorf("failed to parse result: %w", err)
	}
	return nil
}

func buildScript(env map[string]string, body string) string {
	var sb strings.Builder
	keys := lo.Keys(env)
	slices.Sort(keys)
	for _, key := range keys {
		fmt.Fprintf(&sb, "process.env.%s = %s;\n", key, jsonMarshalString(env[key]))
	}
	sb.WriteString("\n")
	sb.WriteString(findTabScript)
	sb.WriteString("\n")
	sb.WriteString(body)
	return sb.String()
}

// jsonMarshalString returns a JSON-encoded string suitable for embedding in JavaScript.
func jsonMarshalString(s string) string {
	b, err := json.Marshal(s)
	if err != nil {
		return fmt.Sprintf(`"%s"`, strings.ReplaceAll(s, `"`, `\"`))
	}
	return string(b)
}
