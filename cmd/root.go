package cmd

import (
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
)

// Exit codes of a campaign run. The verdict codes are relied on by bench
// automation scripts.
const (
	ExitCodePass         = 0
	ExitCodeFail         = 1
	ExitCodeBlocked      = 2
	ExitCodeInterrupted  = 3
	ExitCodeInconclusive = 4
	// ExitCodeConfigError means the campaign could not be loaded.
	ExitCodeConfigError = 5
	// ExitCodeError is any other failure before a verdict was produced.
	ExitCodeError = 6
	// ExitCodeUnknownVerdict is used for a verdict without its own code.
	ExitCodeUnknownVerdict = 7
)

// rootCmd runs a campaign. It is the entry point when acs is called
// without a subcommand.
var rootCmd *cobra.Command

// runFlags holds the campaign run options bound to the root command.
var runFlags = &campaignFlags{}

// exitCode is set by the root command; Execute returns it.
var exitCode = ExitCodePass

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "acs",
		Short: "Run a device automation campaign",
		Long: `acs loads a campaign XML file and the test cases it references,
initialises the devices of the bench, runs every test case and writes a
report tree. The process exit code follows the campaign verdict.`,
		Args: cobra.NoArgs,
		// The verdict, not usage, explains a failed run.
		SilenceUsage:  true,
		SilenceErrors: true,
		RunE: func(cmd *cobra.Command, _ []string) error {
			code, err := runFlags.run(cmd)
			exitCode = code
			return err
		},
	}
	runFlags.bind(cmd.Flags())
	cmd.Flags().SetNormalizeFunc(normalizeFlag)
	return cmd
}

// normalizeFlag accepts dashes for underscores and the multi-letter short
// forms --rf and --cr.
func normalizeFlag(_ *pflag.FlagSet, name string) pflag.NormalizedName {
	name = strings.ReplaceAll(name, "-", "_")
	switch name {
	case "rf":
		name = "report_folder"
	case "cr":
		name = "creds"
	case "camp_generate", "campaign_generate":
		name = "camp_gen"
	}
	return pflag.NormalizedName(name)
}

// SetVersion sets the version printed by -v and the version subcommand.
func SetVersion(v string) {
	rootCmd.Version = v
}

// GetVersion returns the current version of the application.
func GetVersion() string {
	return rootCmd.Version
}

// Execute runs the command line and returns the process exit code.
func Execute() int {
	rootCmd.SetVersionTemplate(`{{printf "acs version %s\n" .Version}}`)
	if err := rootCmd.Execute(); err != nil {
		if exitCode == ExitCodePass {
			exitCode = codeForError(err)
		}
		fmt.Fprintln(os.Stderr, "Error:", err)
	}
	return exitCode
}

// ExitCodeFor maps a campaign verdict to the process exit code.
func ExitCodeFor(v api.Verdict) int {
	switch v {
	case api.VerdictPass:
		return ExitCodePass
	case api.VerdictFail:
		return ExitCodeFail
	case api.VerdictBlocked:
		return ExitCodeBlocked
	case api.VerdictInterrupted:
		return ExitCodeInterrupted
	case api.VerdictInconclusive:
		return ExitCodeInconclusive
	}
	return ExitCodeUnknownVerdict
}

func codeForError(err error) int {
	if api.IsConfigurationError(err) {
		return ExitCodeConfigError
	}
	return ExitCodeError
}

func init() {
	rootCmd = newRootCmd()
	rootCmd.AddCommand(newVersionCmd())
	rootCmd.AddCommand(newSelfUpdateCmd())
	rootCmd.AddCommand(newCampaignGenerateCmd())
}
