package settings

import (
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/samber/lo"
)

// ValidateCustomPlatform checks a candidate custom platform before it is added.
// existing should not contain the platform being edited when validating an
// update.
func ValidateCustomPlatform(existing []CustomPlatform, candidate NewCustomPlatform) error {
	name := strings.TrimSpace(candidate.Name)
	if name == "" {
		return errors.New("platform name is required")
	}
	if err := validatePlatformURL(candidate.URL); err != nil {
		return err
	}
	if lo.ContainsBy(existing, func(p CustomPlatform) bool {
		return strings.EqualFold(strings.TrimSpace(p.Name), name)
	}) {
		return fmt.Errorf("a platform named %q already exists", name)
	}
	return nil
}

// ValidateMaxTextLength checks n against the allowed truncation bounds.
func ValidateMaxTextLength(n int) error {
	if n < MinTextLength || n > MaxTextLength {
		return fmt.Errorf("max text length must be between %d and %d", MinTextLength, MaxTextLength)
	}
	return nil
}

func validatePlatformURL(raw string) error {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("invalid platform URL %q: must be an absolute URL", raw)
	}
	return nil
}
