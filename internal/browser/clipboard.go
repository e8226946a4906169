package browser

import (
	"context"
	"errors"
	"fmt"

	"github.com/atotto/clipboard"
	"github.com/kernel/askai/internal/delivery"
)

// SystemClipboard writes to the operating system clipboard.
type SystemClipboard struct{}

func (SystemClipboard) WriteText(ctx context.Context, text string) error {
	if clipboard.Unsupported {
		return errors.New("no clipboard utility available")
	}
	if err := clipboard.WriteAll(text); err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	return nil
}

// PageClipboard writes through navigator.clipboard in the browser's active
// tab. It is used when the browser runs remotely and the local clipboard is
// out of the user's reach.
type PageClipboard struct {
	Browser interface {
		delivery.Tabs
		delivery.Executor
	}
}

const writeTextScript = `async (text) => {
  try {
    await navigator.clipboard.writeText(text);
    return true;
  } catch (e) {
    return false;
  }
}`

func (c PageClipboard) WriteText(ctx context.Context, text string) error {
	tab, err := c.Browser.Active(ctx)
	if err != nil {
		return fmt.Errorf("failed to find active tab: %w", err)
	}
	raw, err := c.Browser.Execute(ctx, tab.ID, writeTextScript, text)
	if err != nil {
		return fmt.Errorf("failed to write clipboard: %w", err)
	}
	if string(raw) != "true" {
		return errors.New("page refused clipboard write")
	}
	return nil
}
