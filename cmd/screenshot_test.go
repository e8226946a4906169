package cmd

import (
	"context"
	"testing"

	"github.com/kernel/askai/internal/delivery"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type FakeScreenshotter struct {
	Result     delivery.ScreenshotResult
	PlatformID string
}

func (f *FakeScreenshotter) SendScreenshot(ctx context.Context, platformID string) delivery.ScreenshotResult {
	f.PlatformID = platformID
	return f.Result
}

func TestScreenshot(t *testing.T) {
	tests := []struct {
		name    string
		result  delivery.ScreenshotResult
		wantOut string
		wantErr string
	}{
		{
			name:    "copied",
			result:  delivery.ScreenshotResult{Success: true, Copied: true, Platform: "Claude"},
			wantOut: "paste it into Claude",
		},
		{
			name:    "opened without clipboard",
			result:  delivery.ScreenshotResult{Success: true, Platform: "Claude"},
			wantOut: "could not be placed on the clipboard",
		},
		{
			name:    "capture failed",
			result:  delivery.ScreenshotResult{Platform: "Claude", Error: "Failed to capture screenshot: not supported by this browser driver"},
			wantErr: "Failed to capture screenshot: not supported by this browser driver",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			setupStdoutCapture(t)
			fake := &FakeScreenshotter{Result: tt.result}
			c := ScreenshotCmd{shots: fake}

			err := c.Run(context.Background(), ScreenshotInput{Platform: "claude"})
			assert.Equal(t, "claude", fake.PlatformID)
			if tt.wantErr != "" {
				assert.EqualError(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Contains(t, outBuf.String(), tt.wantOut)
		})
	}
}

func TestScreenshot_JSONOutput(t *testing.T) {
	setupStdoutCapture(t)
	c := ScreenshotCmd{shots: &FakeScreenshotter{Result: delivery.ScreenshotResult{Success: true, Copied: true, Platform: "ChatGPT"}}}

	var err error
	out := captureJSON(t, func() {
		err = c.Run(context.Background(), ScreenshotInput{Output: "json"})
	})
	require.NoError(t, err)
	assert.Contains(t, out, `"copied": true`)
	assert.Contains(t, out, `"platform": "ChatGPT"`)
}
