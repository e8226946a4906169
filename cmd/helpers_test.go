package cmd

import (
	"bytes"
	"io"
	"os"
	"testing"
	"time"

	"github.com/kernel/askai/internal/settings"
	"github.com/kernel/askai/internal/storage"
	"github.com/pterm/pterm"
	"github.com/stretchr/testify/require"
)

var outBuf bytes.Buffer

// setupStdoutCapture sends pterm output to outBuf for the duration of the test.
func setupStdoutCapture(t *testing.T) {
	t.Helper()
	outBuf.Reset()
	redirectPterm(t, &outBuf)
}

// redirectPterm points pterm's default output and its prefix printers at w.
// The prefix printers copy the default writer when the package loads, so
// SetDefaultOutput alone leaves them on os.Stdout.
func redirectPterm(t *testing.T, w io.Writer) {
	t.Helper()
	printers := []*pterm.PrefixPrinter{&pterm.Info, &pterm.Success, &pterm.Warning, &pterm.Error, &pterm.Debug}
	saved := make([]io.Writer, len(printers))
	for i, p := range printers {
		saved[i] = p.Writer
		p.Writer = w
	}
	pterm.SetDefaultOutput(w)
	pterm.DisableStyling()
	t.Cleanup(func() {
		for i, p := range printers {
			p.Writer = saved[i]
		}
		pterm.SetDefaultOutput(os.Stdout)
		pterm.EnableStyling()
	})
}

// captureJSON redirects os.Stdout while fn runs and returns what was written.
func captureJSON(t *testing.T, fn func()) string {
	t.Helper()
	oldStdout := os.Stdout
	r, w, err := os.Pipe()
	require.NoError(t, err)
	os.Stdout = w
	t.Cleanup(func() {
		os.Stdout = oldStdout
	})

	fn()

	w.Close()
	os.Stdout = oldStdout
	var stdoutBuf bytes.Buffer
	_, _ = io.Copy(&stdoutBuf, r)
	return stdoutBuf.String()
}

func newMemoryStore(t *testing.T) *settings.Store {
	t.Helper()
	return settings.NewStore(
		storage.NewMemory(storage.AreaSync),
		storage.NewMemory(storage.AreaLocal),
		settings.WithDebounce(time.Hour),
	)
}
