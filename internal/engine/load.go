package engine

import (
	"os"
	"path/filepath"
	"strings"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/campaign"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/catalog"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/config"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/device"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/equipment"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/report"
	"github.com/intel/test-framework-and-suites-for-android-sub002/pkg/logging"
)

// plan is the loaded, immutable input of a run.
type plan struct {
	campaign  *campaign.Result
	cases     []campaign.TestCaseConf
	hwVariant string
}

// load builds every configuration record and the run list. Nothing here
// talks to a device.
func (e *Engine) load() (*plan, error) {
	opts := e.cfg.Options
	if err := opts.Validate(); err != nil {
		return nil, err
	}
	paths := config.DefaultPaths()
	if e.cfg.Paths != nil {
		paths = *e.cfg.Paths
	}
	paths = paths.WithReportFolder(opts.ReportFolder)

	cats, err := catalog.LoadAll(paths.Catalogs)
	if err != nil {
		return nil, err
	}
	e.catalogs = cats

	var bench *config.BenchConfig
	if opts.BenchConfigPath != "" {
		if bench, err = config.LoadBenchConfig(e.resolveBench(opts.BenchConfigPath, paths)); err != nil {
			return nil, err
		}
	}

	devices, err := deviceConfigs(opts, bench, cats.DeviceModels)
	if err != nil {
		return nil, err
	}

	loader := &campaign.Loader{
		ExecConfigRoot: paths.ExecutionConfig,
		UseCases:       cats.UseCases,
		Classes:        e.cfg.UseCases,
	}
	res, err := loader.Load(opts.CampaignPath)
	if err != nil {
		return nil, err
	}

	// the command line level wins over the campaign one
	if lvl := res.Campaign.Parameters.GetString(config.ParamLoggingLevel, ""); lvl != "" && opts.LogLevel == "" {
		if l, err := logging.ParseLevel(lvl); err != nil {
			logging.Warn("Engine", "Ignoring campaign logging level %q: %v", lvl, err)
		} else {
			logging.SetLevel(l)
		}
	}

	e.global = config.Global{
		Options:  opts,
		Paths:    paths,
		Campaign: res.Campaign,
		Bench:    bench,
		Devices:  devices,
	}

	e.equipment = equipment.NewManager(bench, cats.Equipments)
	e.devices = device.NewManager(e.equipment, e.metrics, e.cfg.Runner)
	if err := e.devices.Setup(devices, ""); err != nil {
		return nil, err
	}

	cases := repeat(res.TestCases, opts.RunNumber)
	if opts.RandomMode {
		cases = campaign.MarkRandom(cases)
	}
	logging.Info("Engine", "Run list: %d test case(s) (%d x %d)", len(cases), len(res.TestCases), opts.RunNumber)

	return &plan{campaign: res, cases: cases, hwVariant: hwVariant(res.Campaign, devices)}, nil
}

// resolveBench looks for a relative bench config in the working directory
// first, then under the execution-config root.
func (e *Engine) resolveBench(path string, paths config.Paths) string {
	if filepath.IsAbs(path) || fileExists(path) {
		return path
	}
	for _, candidate := range []string{
		filepath.Join(paths.ExecutionConfig, path),
		filepath.Join(paths.ExecutionConfig, "Bench", path),
	} {
		for _, name := range []string{candidate, candidate + ".xml"} {
			if fileExists(name) {
				return name
			}
		}
	}
	return path
}

// deviceConfigs layers the device model defaults, the bench entry and the
// command line overrides of every device. Overrides and the -d/-s/-f/--eft
// options apply to the primary device only.
func deviceConfigs(opts config.Options, bench *config.BenchConfig, models *catalog.Store[catalog.DeviceModelEntry]) ([]config.DeviceConfig, error) {
	overrides, err := config.ParseOverrides(opts.Overrides)
	if err != nil {
		return nil, err
	}
	cli := map[string]string{}
	if opts.DeviceID != "" {
		cli[config.KeySerialNumber] = opts.DeviceID
	}
	if opts.FlashFile != "" {
		cli[config.KeyFlashFile] = opts.FlashFile
	}
	if opts.EFTPath != "" {
		cli[config.KeyEFTPath] = opts.EFTPath
	}
	overrides = config.NewValues(cli).Merge(overrides)

	var entries []config.BenchDevice
	if bench != nil {
		entries = bench.Devices
	}
	if len(entries) == 0 {
		entries = []config.BenchDevice{{Name: config.DefaultPrimaryDevice}}
	}

	out := make([]config.DeviceConfig, 0, len(entries))
	for i, entry := range entries {
		model := entry.Model
		extra := config.Values{}
		if i == 0 {
			if opts.DeviceModel != "" {
				model = opts.DeviceModel
			}
			extra = overrides
		}
		var defaults config.Values
		if model != "" {
			m, err := models.Get(model)
			if err != nil {
				return nil, api.WrapError(api.InvalidParameter, err, "device model %s of %s is not in the device catalog", model, entry.Name)
			}
			defaults = m.Parameters
		} else {
			logging.Warn("Engine", "No device model for %s, using bench and command line values only", entry.Name)
		}
		cfg := config.MergeDeviceConfig(entry.Name, model, defaults, entry.Values, extra)
		logging.Debug("Engine", "Device %s: %d parameter(s)", cfg, cfg.Len())
		out = append(out, cfg)
	}
	return out, nil
}

// hwVariant names the report subdirectory: the campaign parameter wins over
// the primary device value.
func hwVariant(c config.CampaignConfig, devices []config.DeviceConfig) string {
	if v := strings.TrimSpace(c.Parameters.GetString(config.ParamHwVariant, "")); v != "" {
		return v
	}
	if len(devices) > 0 {
		if v := strings.TrimSpace(devices[0].GetString(config.KeyHwVariant, "")); v != "" {
			return v
		}
	}
	return report.UnknownHwVariant
}

func fileExists(path string) bool {
	st, err := os.Stat(path)
	return err == nil && st.Mode().IsRegular()
}

// repeat copies the run list n times. Random groups of each copy get fresh
// ids so that copies never merge into one shuffle unit.
func repeat(cases []campaign.TestCaseConf, n int) []campaign.TestCaseConf {
	groups := 0
	for _, tc := range cases {
		groups = max(groups, tc.GroupID)
	}
	out := make([]campaign.TestCaseConf, 0, len(cases)*n)
	for rep := range n {
		for _, tc := range cases {
			c := tc.Clone()
			if c.GroupID != 0 {
				c.GroupID += rep * groups
			}
			out = append(out, c)
		}
	}
	return out
}

// openReport creates the report tree and tees the log into it.
func (e *Engine) openReport(p *plan) error {
	tree, err := report.New(e.global.Paths.Reports, p.hwVariant, p.campaign.Campaign.Name, e.cfg.Now())
	if err != nil {
		return err
	}
	e.tree = tree
	if err := logging.AddFileSink(tree.LogFile()); err != nil {
		logging.Warn("Engine", "Campaign log disabled: %v", err)
	}
	e.devices.SetLogDir(tree.Root())
	return nil
}
