package cmd

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strings"
	"time"

	"github.com/kernel/askai/pkg/update"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var upgradeCmd = &cobra.Command{
	Use:     "upgrade",
	Aliases: []string{"update"},
	Short:   "Upgrade askai to the latest release",
	Long: `Upgrade askai to the latest release.

Installs made with Homebrew or 'go install' are upgraded in place. Otherwise the
release page is printed so you can download the new version yourself.`,
	Args:              cobra.NoArgs,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error { return nil },
	RunE:              runUpgrade,
}

func init() {
	upgradeCmd.Flags().Bool("dry-run", false, "Show what would be executed without running")
	rootCmd.AddCommand(upgradeCmd)
}

func runUpgrade(cmd *cobra.Command, args []string) error {
	dryRun, _ := cmd.Flags().GetBool("dry-run")

	ctx, cancel := context.WithTimeout(cmd.Context(), 10*time.Second)
	defer cancel()

	pterm.Info.Println("Checking for updates...")
	latestTag, releaseURL, err := update.FetchLatest(ctx)
	if err != nil {
		return fmt.Errorf("failed to check for updates: %w", err)
	}

	isNewer, err := update.IsNewerVersion(buildVersion, latestTag)
	switch {
	case err != nil:
		pterm.Warning.Printf("Could not compare versions (%s vs %s): %v\n", buildVersion, latestTag, err)
	case !isNewer:
		pterm.Success.Printf("You are already on the latest version (%s)\n", strings.TrimPrefix(buildVersion, "v"))
		return nil
	default:
		pterm.Info.Printf("New version available: %s → %s\n", strings.TrimPrefix(buildVersion, "v"), strings.TrimPrefix(latestTag, "v"))
	}

	method, binaryPath := update.DetectInstallMethod()
	argv := update.SuggestUpgradeCommand(method)
	if argv == nil {
		pterm.Warning.Printf("Could not tell how %s was installed.\n", binaryPath)
		if releaseURL != "" {
			pterm.Info.Printf("Download the new release from %s\n", releaseURL)
		}
		return fmt.Errorf("could not detect installation method")
	}

	if dryRun {
		pterm.Info.Printf("Would run: %s\n", strings.Join(argv, " "))
		return nil
	}

	pterm.Info.Printf("Upgrading via %s...\n", method)
	c := exec.CommandContext(cmd.Context(), argv[0], argv[1:]...)
	c.Stdout = os.Stdout
	c.Stderr = os.Stderr
	c.Stdin = os.Stdin
	return c.Run()
}
