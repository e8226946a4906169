package browser

import (
	_ "embed"
)

// Playwright scripts run through Kernel's execution API. Each one is prefixed
// with findTabScript and its process.env inputs.

//go:embed scripts/find_tab.js
var findTabScript string

//go:embed scripts/new_tab.js
var newTabScript string

//go:embed scripts/tab_state.js
var tabStateScript string

//go:embed scripts/active_tab.js
var activeTabScript string

//go:embed scripts/close_tab.js
var closeTabScript string

//go:embed scripts/evaluate.js
var evaluateScript string

//go:embed scripts/screenshot.js
var screenshotScript string
