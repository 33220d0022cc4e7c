package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/chzyer/readline"
	"github.com/spf13/cobra"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/campaign"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/config"
)

// lineReader is the part of readline.Instance the generator uses.
type lineReader interface {
	Readline() (string, error)
	SetPrompt(string)
}

func newCampaignGenerateCmd() *cobra.Command {
	var output string
	cmd := &cobra.Command{
		Use:   "campaign-generate",
		Short: "Write a campaign file interactively",
		Long: `Prompts for the test cases of a new campaign and writes it as campaign XML.

Each line names a test case, optionally followed by KEY=VALUE attributes
that override its tuning (for example TcMaxAttempt=3). A line starting
with @ includes a sub-campaign, optionally followed by its run number.
An empty line ends the list.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			rl, err := newReadline()
			if err != nil {
				return err
			}
			defer rl.Close()
			return generate(cmd.Context(), rl, cmd.OutOrStdout(), output)
		},
	}
	cmd.Flags().StringVarP(&output, "output", "O", "", "campaign file to write (prompted when empty)")
	return cmd
}

func generateInteractive(ctx context.Context, out io.Writer) error {
	rl, err := newReadline()
	if err != nil {
		return err
	}
	defer rl.Close()
	return generate(ctx, rl, out, "")
}

func newReadline() (*readline.Instance, error) {
	rl, err := readline.NewEx(&readline.Config{
		Prompt:            "> ",
		HistoryFile:       filepath.Join(os.TempDir(), ".acs_campaign_history"),
		InterruptPrompt:   "^C",
		EOFPrompt:         "",
		HistorySearchFold: true,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create readline instance: %w", err)
	}
	return rl, nil
}

// generate reads a campaign from rl and writes it to output.
func generate(ctx context.Context, rl lineReader, out io.Writer, output string) error {
	if output == "" {
		rl.SetPrompt("campaign file: ")
		line, err := rl.Readline()
		if err != nil {
			return err
		}
		output = strings.TrimSpace(line)
		if output == "" {
			return api.NewError(api.InvalidParameter, "a campaign file name is required")
		}
	}
	if filepath.Ext(output) == "" {
		output += ".xml"
	}

	rl.SetPrompt("stop on critical failure [y/N]: ")
	answer, err := rl.Readline()
	if err != nil {
		return err
	}

	fmt.Fprintln(out, "Test cases, one per line; @name [runs] for a sub-campaign; empty line to finish.")
	rl.SetPrompt("test case: ")
	var lines []string
	for ctx.Err() == nil {
		line, err := rl.Readline()
		if errors.Is(err, readline.ErrInterrupt) {
			return api.NewError(api.OperationFailed, "campaign generation interrupted")
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return err
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		lines = append(lines, line)
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	doc, err := buildDocument(lines)
	if err != nil {
		return err
	}
	if yes(answer) {
		doc.Parameters[config.ParamStopOnCriticalFailure] = "true"
	}
	if err := campaign.WriteFile(output, doc); err != nil {
		return err
	}
	fmt.Fprintf(out, "Campaign with %d entr(ies) written to %s\n", len(doc.Nodes), output)
	return nil
}

// buildDocument turns generator lines into a campaign document.
func buildDocument(lines []string) (campaign.Document, error) {
	doc := campaign.Document{Parameters: map[string]string{}, Targets: map[string]string{}}
	for _, line := range lines {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		if name, ok := strings.CutPrefix(fields[0], "@"); ok {
			n := campaign.Node{Kind: campaign.NodeSubCampaign, ID: name, RunNumber: 1}
			if len(fields) > 1 {
				runs, err := strconv.Atoi(fields[1])
				if err != nil || runs < 1 {
					return campaign.Document{}, api.NewError(api.InvalidParameter, "sub-campaign %s: run number %q must be a positive integer", name, fields[1])
				}
				n.RunNumber = runs
			}
			doc.Nodes = append(doc.Nodes, n)
			continue
		}
		attrs, err := config.ParseOverrides(fields[1:])
		if err != nil {
			return campaign.Document{}, err
		}
		doc.Nodes = append(doc.Nodes, campaign.Node{Kind: campaign.NodeTestCase, ID: fields[0], Attrs: attrs.Map()})
	}
	return doc, nil
}

func yes(s string) bool {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "y", "yes", "true":
		return true
	}
	return false
}
