package cmd

import (
	"context"
	"errors"
	"fmt"

	"github.com/kernel/askai/internal/delivery"
	"github.com/kernel/askai/pkg/util"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

type Screenshotter interface {
	SendScreenshot(ctx context.Context, platformID string) delivery.ScreenshotResult
}

// ScreenshotCmd captures the active tab and hands it to a platform.
type ScreenshotCmd struct {
	shots Screenshotter
}

type ScreenshotInput struct {
	Platform string
	Output   string
}

func (c ScreenshotCmd) Run(ctx context.Context, in ScreenshotInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}

	res := c.shots.SendScreenshot(ctx, in.Platform)
	if in.Output == "json" {
		if err := util.PrintPrettyJSON(res); err != nil {
			return err
		}
	} else if res.Success {
		if res.Copied {
			pterm.Success.Printf("Screenshot copied; paste it into %s\n", res.Platform)
		} else {
			pterm.Warning.Printf("Opened %s, but the screenshot could not be placed on the clipboard\n", res.Platform)
		}
	}
	if !res.Success {
		return errors.New(res.Error)
	}
	return nil
}

var screenshotCmd = &cobra.Command{
	Use:   "screenshot",
	Short: "Capture the active tab and open it in an AI chat platform",
	Long: `Capture the visible area of the browser's active tab, open the platform in a
new tab and put the image on that page's clipboard, ready to paste.

Requires the kernel or cdp driver.`,
	Args: cobra.NoArgs,
	RunE: runScreenshot,
}

func init() {
	screenshotCmd.Flags().StringP("platform", "p", "", "Platform id (default: the default platform setting)")
	screenshotCmd.Flags().StringP("output", "o", "", "Output format: json")
	rootCmd.AddCommand(screenshotCmd)
}

func runScreenshot(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfig(cmd)
	platformID, _ := cmd.Flags().GetString("platform")
	output, _ := cmd.Flags().GetString("output")

	store, closeStore, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer closeStore()

	orch, err := newOrchestrator(ctx, cfg, store)
	if err != nil {
		return err
	}
	defer orch.Close()

	c := ScreenshotCmd{shots: orch}
	return c.Run(ctx, ScreenshotInput{Platform: platformID, Output: output})
}
