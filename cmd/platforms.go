package cmd

import (
	"context"
	"fmt"

	"github.com/kernel/askai/internal/platform"
	"github.com/kernel/askai/internal/settings"
	"github.com/kernel/askai/pkg/table"
	"github.com/kernel/askai/pkg/util"
	"github.com/pterm/pterm"
	"github.com/samber/lo"
	"github.com/spf13/cobra"
)

// PlatformsService defines the subset of the settings store the platforms
// commands use.
type PlatformsService interface {
	GetSettings(ctx context.Context) settings.ExtensionSettings
	SaveSettings(patch settings.Patch)
	Flush(ctx context.Context) error
	GetCustomPlatforms(ctx context.Context) []settings.CustomPlatform
	AddCustomPlatform(ctx context.Context, p settings.NewCustomPlatform) (settings.CustomPlatform, error)
	RemoveCustomPlatform(ctx context.Context, id string) error
	UpdateCustomPlatform(ctx context.Context, id string, patch settings.CustomPlatformPatch) error
}

// PlatformsCmd handles platform operations independent of cobra.
type PlatformsCmd struct {
	store PlatformsService
}

type PlatformsListInput struct {
	Output string
}

type PlatformsAddInput struct {
	Name   string
	URL    string
	Icon   string
	Output string
}

type PlatformsRemoveInput struct {
	ID          string
	SkipConfirm bool
}

type PlatformsUpdateInput struct {
	ID    string
	Patch settings.CustomPlatformPatch
}

func (c PlatformsCmd) List(ctx context.Context, in PlatformsListInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}

	all := platform.NewRegistry(c.store).All(ctx)
	if in.Output == "json" {
		return util.PrintPrettyJSON(all)
	}

	defaultID := c.store.GetSettings(ctx).DefaultPlatform
	rows := pterm.TableData{{"ID", "Name", "Kind", "URL", "Deep Link", "Default"}}
	for _, p := range all {
		rows = append(rows, []string{
			p.ID,
			p.Name,
			string(p.Kind),
			util.TruncateURL(p.URL, 50),
			util.YesNo(p.DeepLink),
			lo.Ternary(p.ID == defaultID, "*", ""),
		})
	}
	table.PrintTableNoPad(rows, true)
	return nil
}

func (c PlatformsCmd) Add(ctx context.Context, in PlatformsAddInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}

	candidate := settings.NewCustomPlatform{Name: in.Name, URL: in.URL, Icon: in.Icon}
	if err := settings.ValidateCustomPlatform(c.store.GetCustomPlatforms(ctx), candidate); err != nil {
		return err
	}
	created, err := c.store.AddCustomPlatform(ctx, candidate)
	if err != nil {
		return fmt.Errorf("failed to add platform: %w", err)
	}

	if in.Output == "json" {
		return util.PrintPrettyJSON(created)
	}
	pterm.Success.Printf("Added %s (id %s)\n", created.Name, created.ID)
	return nil
}

func (c PlatformsCmd) Remove(ctx context.Context, in PlatformsRemoveInput) error {
	if platform.IsBuiltIn(in.ID) {
		return fmt.Errorf("%s is a built-in platform and cannot be removed", in.ID)
	}
	target, ok := lo.Find(c.store.GetCustomPlatforms(ctx), func(p settings.CustomPlatform) bool { return p.ID == in.ID })
	if !ok {
		return fmt.Errorf("platform %q not found", in.ID)
	}

	if !in.SkipConfirm {
		pterm.DefaultInteractiveConfirm.DefaultText = fmt.Sprintf("Remove platform %s?", target.Name)
		confirmed, _ := pterm.DefaultInteractiveConfirm.Show()
		if !confirmed {
			pterm.Info.Println("Removal cancelled")
			return nil
		}
	}

	if err := c.store.RemoveCustomPlatform(ctx, in.ID); err != nil {
		return fmt.Errorf("failed to remove platform: %w", err)
	}
	pterm.Success.Printf("Removed %s\n", target.Name)

	if c.store.GetSettings(ctx).DefaultPlatform == in.ID {
		fallback := settings.FallbackPlatform
		c.store.SaveSettings(settings.Patch{DefaultPlatform: &fallback})
		if err := c.store.Flush(ctx); err != nil {
			return fmt.Errorf("failed to reset default platform: %w", err)
		}
		pterm.Warning.Printf("%s was the default platform; the default is now %s\n", target.Name, platform.BuiltIn(fallback).Name)
	}
	return nil
}

func (c PlatformsCmd) Update(ctx context.Context, in PlatformsUpdateInput) error {
	if platform.IsBuiltIn(in.ID) {
		return fmt.Errorf("%s is a built-in platform and cannot be changed", in.ID)
	}
	if in.Patch.Name == nil && in.Patch.URL == nil && in.Patch.Icon == nil {
		return fmt.Errorf("nothing to update; pass --name, --url or --icon")
	}

	list := c.store.GetCustomPlatforms(ctx)
	current, ok := lo.Find(list, func(p settings.CustomPlatform) bool { return p.ID == in.ID })
	if !ok {
		return fmt.Errorf("platform %q not found", in.ID)
	}

	merged := settings.NewCustomPlatform{
		Name: lo.FromPtrOr(in.Patch.Name, current.Name),
		URL:  lo.FromPtrOr(in.Patch.URL, current.URL),
		Icon: lo.FromPtrOr(in.Patch.Icon, current.Icon),
	}
	others := lo.Reject(list, func(p settings.CustomPlatform, _ int) bool { return p.ID == in.ID })
	if err := settings.ValidateCustomPlatform(others, merged); err != nil {
		return err
	}

	if err := c.store.UpdateCustomPlatform(ctx, in.ID, in.Patch); err != nil {
		return fmt.Errorf("failed to update platform: %w", err)
	}
	pterm.Success.Printf("Updated %s\n", merged.Name)
	return nil
}

var platformsCmd = &cobra.Command{
	Use:     "platforms",
	Aliases: []string{"platform"},
	Short:   "Manage AI chat platforms",
}

var platformsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List built-in and custom platforms",
	Args:  cobra.NoArgs,
	RunE:  runPlatformsList,
}

var platformsAddCmd = &cobra.Command{
	Use:   "add",
	Short: "Register a custom chat platform",
	Example: `  askai platforms add --name "Local LLM" --url http://localhost:3000/ --icon 🦙`,
	Args:  cobra.NoArgs,
	RunE:  runPlatformsAdd,
}

var platformsRemoveCmd = &cobra.Command{
	Use:   "remove <id>",
	Short: "Remove a custom platform",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlatformsRemove,
}

var platformsUpdateCmd = &cobra.Command{
	Use:   "update <id>",
	Short: "Change a custom platform",
	Args:  cobra.ExactArgs(1),
	RunE:  runPlatformsUpdate,
}

func init() {
	platformsListCmd.Flags().StringP("output", "o", "", "Output format: json")

	platformsAddCmd.Flags().String("name", "", "Display name")
	platformsAddCmd.Flags().String("url", "", "Chat page URL")
	platformsAddCmd.Flags().String("icon", "", "Icon shown next to the name")
	platformsAddCmd.Flags().StringP("output", "o", "", "Output format: json")
	_ = platformsAddCmd.MarkFlagRequired("name")
	_ = platformsAddCmd.MarkFlagRequired("url")

	platformsRemoveCmd.Flags().BoolP("yes", "y", false, "Skip confirmation prompt")

	platformsUpdateCmd.Flags().String("name", "", "Display name")
	platformsUpdateCmd.Flags().String("url", "", "Chat page URL")
	platformsUpdateCmd.Flags().String("icon", "", "Icon shown next to the name")

	platformsCmd.AddCommand(platformsListCmd)
	platformsCmd.AddCommand(platformsAddCmd)
	platformsCmd.AddCommand(platformsRemoveCmd)
	platformsCmd.AddCommand(platformsUpdateCmd)
	rootCmd.AddCommand(platformsCmd)
}

func runPlatformsList(cmd *cobra.Command, args []string) error {
	store, closeStore, err := getStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore()
	output, _ := cmd.Flags().GetString("output")

	c := PlatformsCmd{store: store}
	return c.List(cmd.Context(), PlatformsListInput{Output: output})
}

func runPlatformsAdd(cmd *cobra.Command, args []string) error {
	store, closeStore, err := getStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore()
	name, _ := cmd.Flags().GetString("name")
	url, _ := cmd.Flags().GetString("url")
	icon, _ := cmd.Flags().GetString("icon")
	output, _ := cmd.Flags().GetString("output")

	c := PlatformsCmd{store: store}
	return c.Add(cmd.Context(), PlatformsAddInput{Name: name, URL: url, Icon: icon, Output: output})
}

func runPlatformsRemove(cmd *cobra.Command, args []string) error {
	store, closeStore, err := getStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore()
	skip, _ := cmd.Flags().GetBool("yes")

	c := PlatformsCmd{store: store}
	return c.Remove(cmd.Context(), PlatformsRemoveInput{ID: args[0], SkipConfirm: skip})
}

func runPlatformsUpdate(cmd *cobra.Command, args []string) error {
	store, closeStore, err := getStore(cmd)
	if err != nil {
		return err
	}
	defer closeStore()

	c := PlatformsCmd{store: store}
	return c.Update(cmd.Context(), PlatformsUpdateInput{ID: args[0], Patch: customPatchFromFlags(cmd)})
}

func customPatchFromFlags(cmd *cobra.Command) settings.CustomPlatformPatch {
	var p settings.CustomPlatformPatch
	for name, dst := range map[string]**string{"name": &p.Name, "url": &p.URL, "icon": &p.Icon} {
		if cmd.Flags().Changed(name) {
			v, _ := cmd.Flags().GetString(name)
			*dst = &v
		}
	}
	return p
}
