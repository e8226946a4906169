package browser

import (
	"github.com/kernel/askai/internal/delivery"
	"github.com/pterm/pterm"
)

// TerminalNotifier prints notifications with pterm.
type TerminalNotifier struct{}

func (TerminalNotifier) Notify(n delivery.Notification) {
	msg := n.Message
	if n.Title != "" {
		msg = n.Title + ": " + msg
	}
	switch n.Level {
	case delivery.LevelSuccess:
		pterm.Success.Println(msg)
	case delivery.LevelWarning:
		pterm.Warning.Println(msg)
	case delivery.LevelError:
		pterm.Error.Println(msg)
	default:
		pterm.Info.Println(msg)
	}
}
