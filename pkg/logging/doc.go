// Package logging provides the structured logging used across acs.
//
// It is a thin layer over log/slog. Every record carries a subsystem
// attribute naming the component that emitted it ("CampaignEngine",
// "DeviceManager", "LiveReporting", ...), so a campaign log can be filtered
// per component after the fact.
//
// # Initialization
//
//	level, _ := logging.ParseLevel("DEBUG")
//	logging.InitForCLI(level, os.Stderr)
//
// Once the report tree exists the engine attaches the campaign log file:
//
//	_ = logging.AddFileSink(filepath.Join(reportDir, "campaign.log"))
//	defer logging.CloseFileSink()
//
// # Usage
//
//	logging.Info("CampaignLoader", "Loaded %d test cases", n)
//	logging.Error("DeviceManager", err, "Failed to connect %s", name)
//
// Packages that prefer key/value records (for example the live reporting
// metrics mirror) obtain a *slog.Logger through NewComponentLogger.
package logging
