package delivery

import (
	_ "embed"
)

// Page scripts run through an Executor inside the target tab. Each file holds
// a single function expression.

//go:embed scripts/inject_text.js
var InjectTextScript string

//go:embed scripts/clipboard_image.js
var ClipboardImageScript string

//go:embed scripts/selection.js
var SelectionScript string
