// Package cmd implements the askai command line.
package cmd

import (
	"context"
	"fmt"

	"github.com/charmbracelet/fang"
	"github.com/kernel/askai/internal/config"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

var rootCmd = &cobra.Command{
	Use:   "askai",
	Short: "Send text and screenshots to AI chat platforms",
	Long: `askai hands text, selections and screenshots to AI chat platforms such as
ChatGPT, Claude and Gemini, or to any custom chat page you register.

Messages are delivered through a prefilled deep link when the platform
supports one. Otherwise askai opens the platform, keeps the message on the
clipboard and types it into the page's input.`,
	SilenceUsage:      true,
	PersistentPreRunE: loadConfig,
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("driver", "", "Browser driver: kernel, cdp or system (default inferred from the environment)")
	pf.String("cdp-url", "", "DevTools websocket URL for the cdp driver (ASKAI_CDP_URL)")
	pf.String("browser-id", "", "Kernel browser session to use instead of creating one (KERNEL_BROWSER_ID)")
	pf.String("data-dir", "", "Directory holding local settings (ASKAI_DATA_DIR)")
	pf.Bool("debug", false, "Print diagnostic logs (ASKAI_DEBUG)")
}

// buildVersion is the version passed to Execute.
var buildVersion = "dev"

// Execute runs the command tree.
func Execute(ctx context.Context, version string) error {
	buildVersion = version
	return fang.Execute(ctx, rootCmd, fang.WithVersion(version))
}

type configKey struct{}

// loadConfig resolves the configuration once per invocation and stores it on
// the command's context.
func loadConfig(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(".")
	if err != nil {
		return err
	}

	flags := cmd.Flags()
	if flags.Changed("driver") {
		v, _ := flags.GetString("driver")
		cfg.Driver = config.Driver(v)
	}
	if flags.Changed("cdp-url") {
		cfg.CDPURL, _ = flags.GetString("cdp-url")
		if !flags.Changed("driver") {
			cfg.Driver = config.DriverCDP
		}
	}
	if flags.Changed("browser-id") {
		cfg.BrowserID, _ = flags.GetString("browser-id")
	}
	if flags.Changed("data-dir") {
		cfg.DataDir, _ = flags.GetString("data-dir")
	}
	if flags.Changed("debug") {
		cfg.Debug, _ = flags.GetBool("debug")
	}

	if cfg.Debug {
		pterm.EnableDebugMessages()
	}
	if err := cfg.Validate(); err != nil {
		return err
	}
	pterm.Debug.Printf("driver=%s data-dir=%s\n", cfg.Driver, cfg.DataDir)

	cmd.SetContext(context.WithValue(cmd.Context(), configKey{}, cfg))
	return nil
}

func getConfig(cmd *cobra.Command) config.Config {
	cfg, ok := cmd.Context().Value(configKey{}).(config.Config)
	if !ok {
		panic(fmt.Sprintf("config not loaded for %q", cmd.CommandPath()))
	}
	return cfg
}
