package engine

import (
	"context"

	"github.com/coreos/go-systemd/v22/daemon"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/report"
	"github.com/intel/test-framework-and-suites-for-android-sub002/pkg/logging"
)

// finish releases the devices and equipment, writes the report tree and
// drains live reporting.
func (e *Engine) finish(ctx context.Context, p *plan, verdict api.Verdict) {
	devices := e.deviceInfo()
	if err := e.devices.CleanupAll(); err != nil {
		logging.Warn("Engine", "Device cleanup: %v", err)
	}
	if err := e.equipment.CloseAll(); err != nil {
		logging.Warn("Engine", "Equipment cleanup: %v", err)
	}

	records := e.Records()
	outcome := report.Outcome{
		Campaign:     p.campaign.Campaign.Name,
		CampaignPath: p.campaign.CampaignPath,
		HwVariant:    p.hwVariant,
		Verdict:      verdict,
		Start:        e.started,
		End:          e.cfg.Now(),
		Cases:        records,
		Metrics:      e.metrics.Snapshot(),
		Devices:      devices,
		RemoteURL:    e.live.RemoteURL(),
	}
	resources := e.tree.WriteAll(outcome, e.metrics)
	resources = append(resources, e.tree.LogFile())
	report.PrintTable(e.cfg.Stdout, outcome)

	if e.live != nil {
		e.live.declare(records)
		done := e.cfg.Wait("Waiting for the report server")
		e.live.close(context.WithoutCancel(ctx), verdict, outcome.End, resources, e.cfg.DrainTimeout)
		done()
	}
	if _, err := e.tree.ArchiveLogs(); err != nil {
		logging.Warn("Engine", "Log archival: %v", err)
	}
	logging.Info("Engine", "Campaign %s: %s, report in %s", outcome.Campaign, verdict, e.tree.Root())
}

// systemdNotify forwards state to the service manager. Outside systemd it
// does nothing.
func systemdNotify(state string) {
	if _, err := daemon.SdNotify(false, state); err != nil {
		logging.Debug("Engine", "sd_notify %q: %v", state, err)
	}
}
