package cmd

import (
	"context"
	"errors"
	"fmt"
	"strconv"

	"github.com/kernel/askai/internal/settings"
	"github.com/kernel/askai/pkg/table"
	"github.com/kernel/askai/pkg/util"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
)

// SettingsService defines the subset of the settings store the settings commands use.
type SettingsService interface {
	GetSettings(ctx context.Context) settings.ExtensionSettings
	SaveSettings(patch settings.Patch)
	Flush(ctx context.Context) error
	ResetSettings(ctx context.Context)
	OnSettingsChanged(fn func(settings.Patch)) func()
}

// SettingsCmd handles settings operations independent of cobra.
type SettingsCmd struct {
	store SettingsService
}

type SettingsGetInput struct {
	Output string
}

type SettingsSetInput struct {
	Patch settings.Patch
}

type SettingsResetInput struct {
	SkipConfirm bool
}

type SettingsWatchInput struct {
	Output string
}

func (c SettingsCmd) Get(ctx context.Context, in SettingsGetInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}

	s := c.store.GetSettings(ctx)
	if in.Output == "json" {
		return util.PrintPrettyJSON(s)
	}

	rows := pterm.TableData{{"Setting", "Value"}}
	rows = append(rows, []string{"Auto send", util.YesNo(s.AutoSend)})
	rows = append(rows, []string{"Default platform", s.DefaultPlatform})
	rows = append(rows, []string{"Default model", util.OrDash(s.DefaultModel)})
	rows = append(rows, []string{"Default instructions", util.OrDash(s.DefaultInstructions)})
	rows = append(rows, []string{"Save instructions", util.YesNo(s.SaveInstructions)})
	rows = append(rows, []string{"Max text length", strconv.Itoa(s.MaxTextLength)})
	rows = append(rows, []string{"Dark mode", util.YesNo(s.DarkMode)})
	table.PrintTableNoPad(rows, true)
	return nil
}

func (c SettingsCmd) Set(ctx context.Context, in SettingsSetInput) error {
	if in.Patch.IsEmpty() {
		return errors.New("no settings given; see 'askai settings set --help'")
	}
	if in.Patch.MaxTextLength != nil {
		if err := settings.ValidateMaxTextLength(*in.Patch.MaxTextLength); err != nil {
			return err
		}
	}

	c.store.SaveSettings(in.Patch)
	if err := c.store.Flush(ctx); err != nil {
		return fmt.Errorf("failed to save settings: %w", err)
	}
	pterm.Success.Printf("Saved %s\n", util.JoinOrDash(in.Patch.Keys()...))
	return nil
}

func (c SettingsCmd) Reset(ctx context.Context, in SettingsResetInput) error {
	if !in.SkipConfirm {
		pterm.DefaultInteractiveConfirm.DefaultText = "Reset all settings and remove custom platforms?"
		ok, _ := pterm.DefaultInteractiveConfirm.Show()
		if !ok {
			pterm.Info.Println("Reset cancelled")
			return nil
		}
	}

	c.store.ResetSettings(ctx)
	pterm.Success.Println("Settings reset to defaults")
	return nil
}

// Watch prints every settings change until ctx is cancelled.
func (c SettingsCmd) Watch(ctx context.Context, in SettingsWatchInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}

	changes := make(chan settings.Patch, 16)
	stop := c.store.OnSettingsChanged(func(p settings.Patch) {
		select {
		case changes <- p:
		default:
			pterm.Debug.Println("dropping settings change, watcher is behind")
		}
	})
	defer stop()

	if in.Output != "json" {
		pterm.Info.Println("Watching settings for changes (Ctrl+C to stop)")
	}
	for {
		select {
		case <-ctx.Done():
			return nil
		case p := <-changes:
			if in.Output == "json" {
				if err := util.PrintPrettyJSON(p); err != nil {
					return err
				}
				continue
			}
			pterm.Info.Printf("Changed: %s\n", util.JoinOrDash(p.Keys()...))
		}
	}
}

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "View and change askai settings",
}

var settingsGetCmd = &cobra.Command{
	Use:   "get",
	Short: "Show the current settings",
	Args:  cobra.NoArgs,
	RunE:  runSettingsGet,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set",
	Short: "Change one or more settings",
	Example: `  askai settings set --default-platform claude
  askai settings set --auto-send=false --max-text-length 8000`,
	Args: cobra.NoArgs,
	RunE: runSettingsSet,
}

var settingsResetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Restore default settings and remove custom platforms",
	Args:  cobra.NoArgs,
	RunE:  runSettingsReset,
}

var settingsWatchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Print settings changes as they happen, including edits from other processes",
	Args:  cobra.NoArgs,
	RunE:  runSettingsWatch,
}

func init() {
	settingsGetCmd.Flags().StringP("output", "o", "", "Output format: json")
	settingsWatchCmd.Flags().StringP("output", "o", "", "Output format: json")
	settingsResetCmd.Flags().BoolP("yes", "y", false, "Skip confirmation prompt")

	sf := settingsSetCmd.Flags()
	sf.Bool("auto-send", true, "Open platforms through deep links when possible")
	sf.String("default-platform", "", "Platform id used when none is given")
	sf.String("default-model", "", "Model requested through deep links")
	sf.String("default-instructions", "", "Instructions prepended to every message")
	sf.Bool("save-instructions", true, "Remember instructions passed to 'askai send'")
	sf.Int("max-text-length", settings.MaxTextLength, fmt.Sprintf("Truncate captured text to this many characters (%d-%d)", settings.MinTextLength, settings.MaxTextLength))
	sf.Bool("dark-mode", false, "Dark mode preference")

	settingsCmd.AddCommand(settingsGetCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsResetCmd)
	settingsCmd.AddCommand(settingsWatchCmd)
	rootCmd.AddCommand(settingsCmd)
}

// patchFromFlags builds a patch from the flags the user actually set.
func patchFromFlags(fs *pflag.FlagSet) settings.Patch {
	var p settings.Patch
	if fs.Changed("auto-send") {
		v, _ := fs.GetBool("auto-send")
		p.AutoSend = &v
	}
	if fs.Changed("default-platform") {
		v, _ := fs.GetString("default-platform")
		p.DefaultPlatform = &v
	}
	if fs.Changed("default-model") {
		v, _ := fs.GetString("default-model")
		p.DefaultModel = &v
	}
	if fs.Changed("default-instructions") {
		v, _ := fs.GetString("default-instructions")
		p.DefaultInstructions = &v
	}
	if fs.Changed("save-instructions") {
		v, _ := fs.GetBool("save-instructions")
		p.SaveInstructions = &v
	}
	if fs.Changed("max-text-length") {
		v, _ := fs.GetInt("max-text-length")
		p.MaxTextLength = &v
	}
	if fs.Changed("dark-mode") {
		v, _ := fs.GetBool("dark-mode")
		p.DarkMode = &v
	}
	return p
}

func runSettingsGet(cmd *cobra.Command, args []string) error {
	store, closeStore, err := getStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore()
	output, _ := cmd.Flags().GetString("output")

	c := SettingsCmd{store: store}
	return c.Get(cmd.Context(), SettingsGetInput{Output: output})
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	store, closeStore, err := getStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	c := SettingsCmd{store: store}
	return c.Set(cmd.Context(), SettingsSetInput{Patch: patchFromFlags(cmd.Flags())})
}

func runSettingsReset(cmd *cobra.Command, args []string) error {
	store, closeStore, err := getStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore()
	skip, _ := cmd.Flags().GetBool("yes")

	c := SettingsCmd{store: store}
	return c.Reset(cmd.Context(), SettingsResetInput{SkipConfirm: skip})
}

func runSettingsWatch(cmd *cobra.Command, args []string) error {
	store, closeStore, err := getStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore()
	output, _ := cmd.Flags().GetString("output")

	c := SettingsCmd{store: store}
	return c.Watch(cmd.Context(), SettingsWatchInput{Output: output})
}
