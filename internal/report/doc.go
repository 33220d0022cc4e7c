// Package report owns the on-disk report tree of a campaign run.
//
// A run writes under REPORTS/<hw_variant>/<timestamp>/:
//
//	<campaign>.log            campaign log file (pkg/logging file sink)
//	<index>_<case>/           one directory per executed case
//	metrics.yaml              campaign metrics snapshot
//	campaign_report.xml       per-case verdicts, messages and attempts
//	summary.md, summary.html  human readable summary
//	CampaignReport.html       shortcut to the remote campaign, when known
//
// Per-case logs are compressed with zstd when the tree is archived.
package report
