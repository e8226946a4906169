package util

import (
	"strconv"
	"strings"
)

// OrDash returns the string if non-empty, otherwise returns "-".
func OrDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

// JoinOrDash joins the provided strings with ", " as separator.
// If no items are provided, it returns "-".
func JoinOrDash(items ...string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

// YesNo renders a boolean for table output.
func YesNo(b bool) string {
	if b {
		return "yes"
	}
	return "no"
}

// FormatInt renders n, or "-" when it is zero.
func FormatInt(n int) string {
	if n == 0 {
		return "-"
	}
	return strconv.Itoa(n)
}

// TruncateURL truncates a URL to a maximum length, adding "..." if truncated.
func TruncateURL(url string, maxLen int) string {
	if len(url) <= maxLen {
		return url
	}
	return url[:maxLen-3] + "..."
}
