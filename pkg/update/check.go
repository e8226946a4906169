// Package update checks GitHub for newer askai releases and works out how the
// running binary was installed.
package update

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/Masterminds/semver/v3"
)

// LatestReleaseURL is the GitHub API endpoint for the newest published release.
var LatestReleaseURL = "https://api.github.com/repos/kernel/askai/releases/latest"

type InstallMethod string

const (
	InstallMethodBrew    InstallMethod = "brew"
	InstallMethodGo      InstallMethod = "go"
	InstallMethodUnknown InstallMethod = "unknown"
)

type release struct {
	TagName string `json:"tag_name"`
	HTMLURL string `json:"html_url"`
}

// FetchLatest returns the tag and release page of the latest release.
func FetchLatest(ctx context.Context) (tag, releaseURL string, err error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, LatestReleaseURL, nil)
	if err != nil {
		return "", "", err
	}
	req.Header.Set("Accept", "application/vnd.github+json")

	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", "", fmt.Errorf("unexpected status: %s", resp.Status)
	}

	var r release
	if err := json.NewDecoder(resp.Body).Decode(&r); err != nil {
		return "", "", fmt.Errorf("invalid release payload: %w", err)
	}
	if r.TagName == "" {
		return "", "", fmt.Errorf("release has no tag")
	}
	return r.TagName, r.HTMLURL, nil
}

// IsNewerVersion reports whether latest is a higher semantic version than
// current. Either may carry a leading "v".
func IsNewerVersion(current, latest string) (bool, error) {
	cur, err := semver.NewVersion(strings.TrimPrefix(current, "v"))
	if err != nil {
		return false, fmt.Errorf("invalid current version %q: %w", current, err)
	}
	lat, err := semver.NewVersion(strings.TrimPrefix(latest, "v"))
	if err != nil {
		return false, fmt.Errorf("invalid latest version %q: %w", latest, err)
	}
	return lat.GreaterThan(cur), nil
}

type installRule struct {
	method InstallMethod
	check  func(path string) bool
}

// installMethodRules is evaluated in order; the first match wins.
func installMethodRules() []installRule {
	return []installRule{
		{method: InstallMethodBrew, check: pathMatchesHomebrew},
		{method: InstallMethodGo, check: pathMatchesGoInstall},
	}
}

func pathMatchesHomebrew(path string) bool {
	p := filepath.ToSlash(path)
	return strings.Contains(p, "/Cellar/") ||
		strings.HasPrefix(p, "/opt/homebrew/") ||
		strings.Contains(p, "/.linuxbrew/")
}

func pathMatchesGoInstall(path string) bool {
	p := filepath.ToSlash(path)
	if gobin := os.Getenv("GOBIN"); gobin != "" && strings.HasPrefix(p, filepath.ToSlash(gobin)+"/") {
		return true
	}
	return strings.Contains(p, "/go/bin/")
}

// DetectInstallMethod inspects the running executable's resolved path.
func DetectInstallMethod() (InstallMethod, string) {
	exe, err := os.Executable()
	if err != nil {
		return InstallMethodUnknown, ""
	}
	if resolved, err := filepath.EvalSymlinks(exe); err == nil {
		exe = resolved
	}
	for _, r := range installMethodRules() {
		if r.check(exe) {
			return r.method, exe
		}
	}
	return InstallMethodUnknown, exe
}

// SuggestUpgradeCommand returns the argv that upgrades an install made with
// method, or nil when it is unknown.
func SuggestUpgradeCommand(method InstallMethod) []string {
	switch method {
	case InstallMethodBrew:
		return []string{"brew", "upgrade", "kernel/tap/askai"}
	case InstallMethodGo:
		return []string{"go", "install", "github.com/kernel/askai@latest"}
	default:
		return nil
	}
}
