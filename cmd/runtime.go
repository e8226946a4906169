package cmd

import (
	"context"
	"fmt"
	"os"

	"github.com/kernel/askai/internal/browser"
	"github.com/kernel/askai/internal/config"
	"github.com/kernel/askai/internal/delivery"
	"github.com/kernel/askai/internal/platform"
	"github.com/kernel/askai/internal/settings"
	"github.com/kernel/askai/internal/storage"
	"github.com/kernel/kernel-go-sdk"
	"github.com/kernel/kernel-go-sdk/option"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// openStore builds the settings store for cfg. The returned func releases the
// local tier's file watcher.
func openStore(cfg config.Config) (*settings.Store, func(), error) {
	if cfg.Storage == config.StorageMemory {
		return settings.NewStore(storage.NewMemory(storage.AreaSync), storage.NewMemory(storage.AreaLocal)), func() {}, nil
	}
	if err := os.MkdirAll(cfg.DataDir, 0o700); err != nil {
		return nil, nil, fmt.Errorf("failed to create data directory: %w", err)
	}
	local := storage.NewFile(cfg.SettingsPath())
	store := settings.NewStore(storage.NewKeyring(cfg.KeyringService), local)
	return store, func() { _ = local.Close() }, nil
}

func getStore(cmd *cobra.Command) (*settings.Store, func(), error) {
	return openStore(getConfig(cmd))
}

// browserDriver is what a configured driver provides to delivery.
type browserDriver struct {
	browser   delivery.Browser
	clipboard delivery.Clipboard
}

func openBrowser(ctx context.Context, cfg config.Config) (browserDriver, error) {
	switch cfg.Driver {
	case config.DriverKernel:
		client := getKernelClient(cfg)
		svc := client.Browsers
		session, err := browser.EnsureSession(ctx, &svc, cfg.BrowserID, browser.SessionOptions{})
		if err != nil {
			return browserDriver{}, err
		}
		if session.Created && session.LiveViewURL != "" {
			pterm.Info.Printf("Live view: %s\n", session.LiveViewURL)
		}
		pw := client.Browsers.Playwright
		k := browser.NewKernel(&pw, session.ID)
		return browserDriver{browser: k, clipboard: browser.PageClipboard{Browser: k}}, nil

	case config.DriverCDP:
		c, err := browser.NewCDP(ctx, cfg.CDPURL)
		if err != nil {
			return browserDriver{}, err
		}
		return browserDriver{browser: c, clipboard: browser.SystemClipboard{}}, nil

	default:
		return browserDriver{browser: browser.NewSystem(), clipboard: browser.SystemClipboard{}}, nil
	}
}

func getKernelClient(cfg config.Config) kernel.Client {
	opts := []option.RequestOption{option.WithAPIKey(cfg.KernelAPIKey)}
	if cfg.KernelBaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.KernelBaseURL))
	}
	return kernel.NewClient(opts...)
}

// newOrchestrator wires delivery to the configured browser and store.
func newOrchestrator(ctx context.Context, cfg config.Config, store *settings.Store) (*delivery.Orchestrator, error) {
	drv, err := openBrowser(ctx, cfg)
	if err != nil {
		return nil, err
	}
	return delivery.New(delivery.Options{
		Browser:   drv.browser,
		Clipboard: drv.clipboard,
		Notifier:  browser.TerminalNotifier{},
		Settings:  store,
		Platforms: platform.NewRegistry(store),
	}), nil
}
