package browser

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/kernel/askai/internal/delivery"
	pkgbrowser "github.com/pkg/browser"
)

// System opens URLs in the user's default browser. It cannot address the tabs
// it opens, so messages sent through it stay on the clipboard for the user to
// paste.
type System struct {
	open func(url string) error
}

func NewSystem() *System {
	return &System{open: pkgbrowser.OpenURL}
}

func (s *System) Create(ctx context.Context, url string) (delivery.Tab, error) {
	if err := s.open(url); err != nil {
		return delivery.Tab{}, fmt.Errorf("failed to open browser: %w", err)
	}
	return delivery.Tab{URL: url, Status: delivery.TabLoading}, nil
}

func (s *System) Get(ctx context.Context, id string) (delivery.Tab, error) {
	return delivery.Tab{}, delivery.ErrUnsupported
}

func (s *System) Active(ctx context.Context) (delivery.Tab, error) {
	return delivery.Tab{}, delivery.ErrUnsupported
}

func (s *System) Remove(ctx context.Context, id string) error {
	return delivery.ErrUnsupported
}

func (s *System) Execute(ctx context.Context, tabID string, fn string, args ...any) (json.RawMessage, error) {
	return nil, delivery.ErrUnsupported
}

func (s *System) CaptureVisibleTab(ctx context.Context, tabID string) ([]byte, error) {
	return nil, delivery.ErrUnsupported
}
