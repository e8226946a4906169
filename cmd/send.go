package cmd

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/kernel/askai/internal/delivery"
	"github.com/kernel/askai/internal/message"
	"github.com/kernel/askai/internal/settings"
	"github.com/kernel/askai/pkg/util"
	"github.com/pterm/pterm"
	"github.com/spf13/cobra"
)

// Sender is the delivery surface the send command uses.
type Sender interface {
	SendToAI(ctx context.Context, m message.Message, autoSend bool, platformID string) delivery.Result
	CaptureSelection(ctx context.Context) (string, error)
	Wait()
	Close()
}

// SendSettings is the subset of the settings store the send command uses.
type SendSettings interface {
	GetSettings(ctx context.Context) settings.ExtensionSettings
	SaveSettings(patch settings.Patch)
	Flush(ctx context.Context) error
}

// SendCmd handles message delivery independent of cobra.
type SendCmd struct {
	settings SendSettings
	sender   Sender
}

type SendInput struct {
	Text string
	// Instructions replaces the default instructions when InstructionsSet.
	Instructions    string
	InstructionsSet bool
	Platform        string
	Model           string
	AutoSend        *bool
	FromTab         bool
	Output          string
}

// SendOutput is the JSON output of the send command.
type SendOutput struct {
	delivery.Result
	Truncated bool `json:"truncated,omitempty"`
}

func (c SendCmd) Send(ctx context.Context, in SendInput) error {
	if in.Output != "" && in.Output != "json" {
		return fmt.Errorf("unsupported --output value: use 'json'")
	}
	jsonOutput := in.Output == "json"
	prefs := c.settings.GetSettings(ctx)

	text := in.Text
	if in.FromTab {
		selection, err := c.sender.CaptureSelection(ctx)
		if err != nil {
			return fmt.Errorf("failed to capture selection: %w", err)
		}
		if strings.TrimSpace(selection) == "" && !jsonOutput {
			pterm.Warning.Println("No text is selected in the active tab")
		}
		text = strings.TrimSpace(strings.Join([]string{text, selection}, "\n\n"))
	}

	truncated := false
	if message.Length(text) > prefs.MaxTextLength {
		text = message.Truncate(text, prefs.MaxTextLength)
		truncated = true
		if !jsonOutput {
			pterm.Warning.Printf("Text truncated to %d characters\n", prefs.MaxTextLength)
		}
	}

	instructions := prefs.DefaultInstructions
	if in.InstructionsSet {
		instructions = in.Instructions
	}
	m := message.Message{Text: text, Instructions: instructions, Model: in.Model, Platform: in.Platform}
	if v := message.Validate(m); !v.Valid {
		return errors.New(v.Error)
	}

	if in.InstructionsSet && prefs.SaveInstructions && instructions != prefs.DefaultInstructions {
		c.settings.SaveSettings(settings.Patch{DefaultInstructions: &instructions})
		if err := c.settings.Flush(ctx); err != nil {
			pterm.Warning.Printf("Could not remember instructions: %v\n", err)
		}
	}

	autoSend := prefs.AutoSend
	if in.AutoSend != nil {
		autoSend = *in.AutoSend
	}

	res := c.sender.SendToAI(ctx, m, autoSend, in.Platform)
	if res.Success {
		if !jsonOutput {
			printSendResult(res)
		}
		if err := c.waitForInjection(ctx); err != nil {
			return fmt.Errorf("interrupted before the message was inserted: %w", err)
		}
	}

	if jsonOutput {
		if err := util.PrintPrettyJSON(SendOutput{Result: res, Truncated: truncated}); err != nil {
			return err
		}
	}
	if !res.Success {
		return errors.New(res.Error)
	}
	return nil
}

// waitForInjection keeps the process alive until background injection settles.
// Cancelling ctx abandons the injection.
func (c SendCmd) waitForInjection(ctx context.Context) error {
	done := make(chan struct{})
	go func() {
		defer close(done)
		c.sender.Wait()
	}()
	select {
	case <-done:
		return nil
	case <-ctx.Done():
		c.sender.Close()
		<-done
		return ctx.Err()
	}
}

func printSendResult(res delivery.Result) {
	switch res.Method {
	case delivery.MethodDeepLink:
		pterm.Success.Printf("Opened %s with your message\n", res.Platform)
	default:
		pterm.Success.Printf("Opened %s; your message is on the clipboard\n", res.Platform)
	}
}

var sendCmd = &cobra.Command{
	Use:   "send [text...]",
	Short: "Send text to an AI chat platform",
	Long: `Send text to an AI chat platform.

The text can be provided as:
- Command line arguments
- From stdin (piped input)
- From a file (using --file)
- From the selection in the browser's active tab (using --from-tab)

Instructions are placed above the text, which is wrapped in triple quotes.`,
	Example: `  # Ask the default platform about some text
  askai send "What does this error mean?"

  # Pipe a file to Claude with instructions
  cat main.go | askai send -p claude -i "Review this code"

  # Send the current tab's selection without deep linking
  askai send --from-tab --no-auto-send`,
	RunE: runSend,
}

func init() {
	f := sendCmd.Flags()
	f.StringP("instructions", "i", "", "Instructions placed before the text (default: saved instructions)")
	f.StringP("platform", "p", "", "Platform id (default: the default platform setting)")
	f.StringP("model", "m", "", "Model to request through the deep link (default: the default model setting)")
	f.Bool("auto-send", false, "Use a deep link when the platform supports it")
	f.Bool("no-auto-send", false, "Never use a deep link")
	f.StringP("file", "f", "", "Read text from file")
	f.Bool("from-tab", false, "Append the text selected in the browser's active tab")
	f.StringP("output", "o", "", "Output format: json")
	sendCmd.MarkFlagsMutuallyExclusive("auto-send", "no-auto-send")

	rootCmd.AddCommand(sendCmd)
}

func runSend(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	cfg := getConfig(cmd)
	flags := cmd.Flags()

	filePath, _ := flags.GetString("file")
	instructions, _ := flags.GetString("instructions")
	platformID, _ := flags.GetString("platform")
	model, _ := flags.GetString("model")
	fromTab, _ := flags.GetBool("from-tab")
	output, _ := flags.GetString("output")

	var text string
	var err error
	switch {
	case len(args) > 0:
		text = strings.Join(args, " ")
	case filePath != "":
		text, err = util.ReadTextFile(filePath)
	default:
		text, err = util.ReadPipedStdin(os.Stdin)
	}
	if err != nil {
		return err
	}

	var autoSend *bool
	if flags.Changed("auto-send") {
		v, _ := flags.GetBool("auto-send")
		autoSend = &v
	}
	if flags.Changed("no-auto-send") {
		v, _ := flags.GetBool("no-auto-send")
		v = !v
		autoSend = &v
	}

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

	c := SendCmd{settings: store, sender: orch}
	return c.Send(ctx, SendInput{
		Text:            text,
		Instructions:    instructions,
		InstructionsSet: flags.Changed("instructions"),
		Platform:        platformID,
		Model:           model,
		AutoSend:        autoSend,
		FromTab:         fromTab,
		Output:          output,
	})
}
