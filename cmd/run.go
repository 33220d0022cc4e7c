package cmd

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/briandowns/spinner"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/spf13/cobra"
	"github.com/spf13/pflag"
	"golang.org/x/term"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/artifact"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/catalog"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/config"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/engine"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/report"
	"github.com/intel/test-framework-and-suites-for-android-sub002/pkg/logging"
)

// campaignFlags are the options of a campaign run.
type campaignFlags struct {
	opts config.Options
}

func (f *campaignFlags) bind(fs *pflag.FlagSet) {
	o := &f.opts
	fs.StringVarP(&o.CampaignPath, "campaign", "c", "", "campaign file, absolute or relative to the execution config folder")
	fs.StringVarP(&o.DeviceModel, "device_model", "d", "", "device model of the primary device, from the device catalog")
	fs.StringVarP(&o.BenchConfigPath, "bench_config", "b", "", "bench configuration file")
	fs.StringVarP(&o.FlashFile, "flash_file", "f", "", "flash file path or URL")
	fs.IntVarP(&o.RunNumber, "run_nb", "n", 1, "number of times the run list is executed")
	fs.BoolVarP(&o.RandomMode, "random_mode", "r", false, "shuffle the run list")
	fs.StringVarP(&o.DeviceID, "device_id", "s", "", "serial number of the primary device")
	fs.StringVar(&o.ReportFolder, "report_folder", "", "root folder of the report tree (also --rf)")
	fs.StringArrayVarP(&o.Overrides, "override_device_parameter", "o", nil, "device parameter override KEY=VALUE, repeatable")
	fs.StringVar(&o.Credentials, "creds", "", "report server credentials user:password (also --cr)")
	fs.BoolVar(&o.CampaignGenerate, "camp_gen", false, "interactively write a campaign file")
	fs.BoolVar(&o.LiveReporting, "live_reporting", false, "stream the campaign to the report server")
	fs.StringVarP(&o.User, "user", "u", "", "user email sent to the report server")
	fs.StringVar(&o.MetacampaignUUID, "metacampaign_uuid", "", "existing remote campaign to attach this run to")
	fs.StringVar(&o.LogLevel, "log_level", "", "DEBUG, INFO, WARNING or ERROR")
	fs.StringVar(&o.EFTPath, "eft", "", "EFT bundle path or URL")
	fs.BoolVar(&o.ListDeviceModels, "device_models", false, "list the device models of the catalog and exit")
}

// run executes the command and returns the exit code.
func (f *campaignFlags) run(cmd *cobra.Command) (int, error) {
	opts := f.opts
	lvl, err := logging.ParseLevel(opts.LogLevel)
	if err != nil {
		return ExitCodeConfigError, api.WrapError(api.InvalidParameter, err, "invalid --log_level")
	}
	logging.InitForCLI(lvl, cmd.ErrOrStderr())

	switch {
	case opts.ListDeviceModels:
		return listDeviceModels(cmd.OutOrStdout(), config.DefaultPaths())
	case opts.CampaignGenerate:
		if err := generateInteractive(cmd.Context(), cmd.OutOrStdout()); err != nil {
			return codeForError(err), err
		}
		return ExitCodePass, nil
	}

	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	cache := artifact.New(config.DefaultPaths().Artifactory)
	if opts.FlashFile, err = cache.Resolve(ctx, opts.FlashFile); err != nil {
		return codeForError(err), err
	}
	if opts.EFTPath, err = cache.Resolve(ctx, opts.EFTPath); err != nil {
		return codeForError(err), err
	}

	out := cmd.OutOrStdout()
	eng := engine.New(engine.Config{
		Options: opts,
		Stdout:  out,
		Version: rootCmd.Version,
		Wait:    spinnerWait(cmd.ErrOrStderr()),
	})
	stopSignals := handleSignals(eng, cancel)
	defer stopSignals()

	verdict, err := eng.Run(ctx)
	if err != nil {
		printOutcome(out, api.Verdict(api.CodeOf(err)))
		return codeForError(err), err
	}
	printOutcome(out, verdict)
	return ExitCodeFor(verdict), nil
}

// printOutcome prints the single ACS OUTCOME line, colored on a terminal.
func printOutcome(w io.Writer, v api.Verdict) {
	if v == "" {
		v = "ERROR"
	}
	outcome := v.String()
	if isTerminal(w) {
		outcome = report.ColorOutcome(v)
	}
	fmt.Fprintf(w, "ACS OUTCOME: %s\n", outcome)
}

func isTerminal(w io.Writer) bool {
	f, ok := w.(*os.File)
	return ok && term.IsTerminal(int(f.Fd()))
}

// handleSignals stops the engine after the current case on the first
// interrupt and cancels the run on the second.
func handleSignals(eng *engine.Engine, cancel context.CancelFunc) (stop func()) {
	ch := make(chan os.Signal, 2)
	signal.Notify(ch, os.Interrupt, syscall.SIGTERM)
	done := make(chan struct{})
	go func() {
		count := 0
		for {
			select {
			case <-done:
				return
			case sig := <-ch:
				count++
				if count == 1 {
					logging.Warn("CLI", "%s received, stopping after the current test case (repeat to abort)", sig)
					eng.Stop()
					continue
				}
				logging.Warn("CLI", "%s received again, aborting", sig)
				cancel()
			}
		}
	}()
	return func() {
		signal.Stop(ch)
		close(done)
	}
}

// spinnerWait shows a spinner on w while the engine waits, when w is a
// terminal.
func spinnerWait(w io.Writer) func(string) func() {
	if !isTerminal(w) {
		return func(msg string) func() {
			logging.Info("CLI", "%s...", msg)
			return func() {}
		}
	}
	return func(msg string) func() {
		s := spinner.New(spinner.CharSets[14], 100*time.Millisecond, spinner.WithWriter(w))
		s.Suffix = " " + msg + "..."
		s.FinalMSG = text.FgGreen.Sprint("✓") + " " + msg + "\n"
		s.Start()
		return s.Stop
	}
}

func listDeviceModels(w io.Writer, paths config.Paths) (int, error) {
	cats, err := catalog.LoadAll(paths.Catalogs)
	if err != nil {
		return codeForError(err), err
	}
	for _, id := range cats.DeviceModels.IDs() {
		m, _ := cats.DeviceModels.Get(id)
		if m.Description != "" {
			fmt.Fprintf(w, "%s\t%s\n", id, m.Description)
			continue
		}
		fmt.Fprintln(w, id)
	}
	return ExitCodePass, nil
}
