package cmd

import (
	"context"
	"fmt"

	"github.com/kernel/askai/internal/browser"
	"github.com/kernel/askai/internal/config"
	"github.com/kernel/askai/internal/settings"
	"github.com/kernel/askai/internal/storage"
	"github.com/kernel/askai/pkg/util"
	"github.com/kernel/kernel-go-sdk"
	"github.com/pterm/pterm"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

const (
	statusOperational = "operational"
	statusDegraded    = "degraded"
	statusUnavailable = "unavailable"
)

type statusComponent struct {
	Name   string `json:"name"`
	Status string `json:"status"`
	Detail string `json:"detail,omitempty"`
}

type statusReport struct {
	Status     string            `json:"status"`
	Driver     string            `json:"driver"`
	DataDir    string            `json:"data_dir"`
	Components []statusComponent `json:"components"`
}

// statusCheck probes one component. A nil error with an empty detail is fine.
type statusCheck struct {
	name string
	run  func(ctx context.Context) (string, error)
}

// StatusCmd reports whether askai can reach its storage tiers and browser.
type StatusCmd struct {
	cfg    config.Config
	checks []statusCheck
}

type StatusInput struct {
	Output string
}

func (c StatusCmd) Run(ctx context.Context, in StatusInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}

	report := statusReport{Driver: string(c.cfg.Driver), DataDir: c.cfg.DataDir}
	for _, check := range c.checks {
		detail, err := check.run(ctx)
		comp := statusComponent{Name: check.name, Status: statusOperational, Detail: detail}
		if err != nil {
			comp.Status = statusUnavailable
			comp.Detail = err.Error()
		}
		report.Components = append(report.Components, comp)
	}
	report.Status = overallStatus(report.Components)

	if in.Output == "json" {
		return util.PrintPrettyJSON(report)
	}
	printStatus(report)
	return nil
}

func overallStatus(comps []statusComponent) string {
	failed := lo.CountBy(comps, func(c statusComponent) bool { return c.Status == statusUnavailable })
	switch {
	case failed == 0:
		return statusOperational
	case failed == len(comps):
		return statusUnavailable
	default:
		return statusDegraded
	}
}

var statusDisplay = map[string]struct {
	label string
	rgb   pterm.RGB
}{
	statusOperational: {label: "Operational", rgb: pterm.NewRGB(31, 163, 130)},
	statusDegraded:    {label: "Degraded", rgb: pterm.NewRGB(245, 158, 11)},
	statusUnavailable: {label: "Unavailable", rgb: pterm.NewRGB(239, 68, 68)},
}

func getStatusDisplay(status string) (string, pterm.RGB) {
	if d, ok := statusDisplay[status]; ok {
		return d.label, d.rgb
	}
	return "Unknown", pterm.NewRGB(128, 128, 128)
}

func printStatus(r statusReport) {
	label, rgb := getStatusDisplay(r.Status)
	pterm.Println()
	pterm.Println("  askai: " + rgb.Sprint(label))
	pterm.Printf("  driver %s, data in %s\n", r.Driver, util.OrDash(r.DataDir))
	pterm.Println()
	for _, comp := range r.Components {
		compLabel, compColor := getStatusDisplay(comp.Status)
		pterm.Printf("    %s %-16s %-12s %s\n", compColor.Sprint("●"), comp.Name, compLabel, comp.Detail)
	}
	pterm.Println()
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Check that settings storage and the browser driver are reachable",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	statusCmd.Flags().StringP("output", "o", "", "Output format: json")
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, args []string) error {
	cfg := getConfig(cmd)
	output, _ := cmd.Flags().GetString("output")

	c := StatusCmd{cfg: cfg, checks: append(storageChecks(cfg), browserCheck(cfg))}
	return c.Run(cmd.Context(), StatusInput{Output: output})
}

func storageChecks(cfg config.Config) []statusCheck {
	if cfg.Storage == config.StorageMemory {
		return []statusCheck{{name: "Settings", run: func(ctx context.Context) (string, error) {
			return "in memory, not persisted", nil
		}}}
	}
	probe := func(area storage.Area, where string) func(ctx context.Context) (string, error) {
		return func(ctx context.Context) (string, error) {
			items, err := area.Get(ctx, settings.SettingsKeys)
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%s, %d keys stored", where, len(items)), nil
		}
	}
	return []statusCheck{
		{name: "Sync settings", run: probe(storage.NewKeyring(cfg.KeyringService), "keychain service "+cfg.KeyringService)},
		{name: "Local settings", run: probe(storage.NewFile(cfg.SettingsPath()), cfg.SettingsPath())},
	}
}

func browserCheck(cfg config.Config) statusCheck {
	switch cfg.Driver {
	case config.DriverKernel:
		return statusCheck{name: "Kernel browser", run: func(ctx context.Context) (string, error) {
			if cfg.BrowserID == "" {
				return "a browser session is created on first use", nil
			}
			client := getKernelClient(cfg)
			b, err := client.Browsers.Get(ctx, cfg.BrowserID, kernel.BrowserGetParams{})
			if err != nil {
				return "", fmt.Errorf("browser %s: %w", cfg.BrowserID, err)
			}
			return util.OrDash(b.BrowserLiveViewURL), nil
		}}
	case config.DriverCDP:
		return statusCheck{name: "DevTools browser", run: func(ctx context.Context) (string, error) {
			c, err := browser.NewCDP(ctx, cfg.CDPURL)
			if err != nil {
				return "", err
			}
			targets, err := c.ListTargets()
			if err != nil {
				return "", err
			}
			return fmt.Sprintf("%d tabs open", len(targets)), nil
		}}
	default:
		return statusCheck{name: "System browser", run: func(ctx context.Context) (string, error) {
			return "opens links in the default browser; screenshots unavailable", nil
		}}
	}
}
