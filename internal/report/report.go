package report

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/metrics"
	"github.com/intel/test-framework-and-suites-for-android-sub002/pkg/logging"
)

// TimestampLayout names the per-run directory.
const TimestampLayout = "2006-01-02_15h04.05"

// UnknownHwVariant is used when neither the campaign nor the device
// declares a hardware variant.
const UnknownHwVariant = "UNKNOWN"

// File names inside the tree.
const (
	MetricsFile  = "metrics.yaml"
	XMLFile      = "campaign_report.xml"
	SummaryMD    = "summary.md"
	SummaryHTML  = "summary.html"
	ShortcutFile = "CampaignReport.html"
)

var unsafeChars = regexp.MustCompile(`[^A-Za-z0-9._-]+`)

// CaseRecord is the reported outcome of one entry of the run list.
type CaseRecord struct {
	Index    int
	Name     string
	UseCase  string
	Verdict  api.Verdict
	Message  string
	Expected api.Verdict
	Attempts int
	Passes   int
	Critical bool
	Warning  bool
	Start    time.Time
	End      time.Time
	// RemoteID is the live-reporting id of the case, if any.
	RemoteID string
}

// Duration returns End-Start, zero for a case that never started.
func (c CaseRecord) Duration() time.Duration {
	if c.Start.IsZero() || c.End.IsZero() {
		return 0
	}
	return c.End.Sub(c.Start)
}

// Outcome is everything written at the end of a run.
type Outcome struct {
	Campaign     string
	CampaignPath string
	HwVariant    string
	Verdict      api.Verdict
	Start        time.Time
	End          time.Time
	Cases        []CaseRecord
	Metrics      metrics.Summary
	// Devices maps a device name to its properties.
	Devices map[string]map[string]string
	// RemoteURL is the campaign page on the report server.
	RemoteURL string
}

// Counts returns the number of cases per verdict.
func (o Outcome) Counts() map[api.Verdict]int {
	out := make(map[api.Verdict]int)
	for _, c := range o.Cases {
		out[c.Verdict]++
	}
	return out
}

// Tree is the report directory of one run.
type Tree struct {
	root     string
	campaign string
}

// New creates <reports>/<hwVariant>/<timestamp>/ for campaign.
func New(reports, hwVariant, campaign string, now time.Time) (*Tree, error) {
	if hwVariant == "" {
		hwVariant = UnknownHwVariant
	}
	root := filepath.Join(reports, sanitize(hwVariant), now.Format(TimestampLayout))
	// two runs within the same second must not share a tree
	for i := 1; ; i++ {
		if _, err := os.Stat(root); os.IsNotExist(err) {
			break
		}
		root = filepath.Join(reports, sanitize(hwVariant), fmt.Sprintf("%s_%d", now.Format(TimestampLayout), i))
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("failed to create report folder: %w", err)
	}
	logging.Info("Report", "Report folder: %s", root)
	return &Tree{root: root, campaign: sanitize(filepath.Base(campaign))}, nil
}

// Root returns the run directory.
func (t *Tree) Root() string { return t.root }

// Path returns name joined to the run directory.
func (t *Tree) Path(name string) string { return filepath.Join(t.root, name) }

// LogFile returns the path of the campaign log file.
func (t *Tree) LogFile() string { return t.Path(t.campaign + ".log") }

// CaseDir creates and returns the directory of the case at index.
func (t *Tree) CaseDir(index int, name string) (string, error) {
	dir := t.Path(fmt.Sprintf("%03d_%s", index, sanitize(filepath.Base(name))))
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create case folder: %w", err)
	}
	return dir, nil
}

// WriteMetrics stores the metrics snapshot as YAML.
func (t *Tree) WriteMetrics(m *metrics.Campaign) (string, error) {
	out, err := m.Get("yaml")
	if err != nil {
		return "", err
	}
	path := t.Path(MetricsFile)
	if err := os.WriteFile(path, []byte(out.(string)), 0o644); err != nil {
		return "", fmt.Errorf("failed to write metrics: %w", err)
	}
	return path, nil
}

// WriteAll writes every end-of-run document and returns their paths in the
// order they should be uploaded. A failing document is logged and skipped.
func (t *Tree) WriteAll(o Outcome, m *metrics.Campaign) []string {
	var paths []string
	add := func(what string, path string, err error) {
		if err != nil {
			logging.Error("Report", err, "Cannot write %s", what)
			return
		}
		if path != "" {
			paths = append(paths, path)
		}
	}
	if m != nil {
		p, err := t.WriteMetrics(m)
		add("metrics", p, err)
	}
	p, err := t.WriteXML(o)
	add("campaign report", p, err)
	md, html, err := t.WriteSummary(o)
	add("summary", md, err)
	if err == nil {
		paths = append(paths, html)
	}
	p, err = t.WriteShortcut(o)
	add("shortcut", p, err)
	return paths
}

func sanitize(s string) string {
	s = unsafeChars.ReplaceAllString(strings.TrimSpace(s), "_")
	if s == "" {
		return "_"
	}
	return s
}

func sortedKeys[V any](m map[string]V) []string {
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
