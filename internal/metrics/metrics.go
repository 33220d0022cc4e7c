package metrics

import (
	"encoding/json"
	"fmt"
	"math"
	"sync"
	"time"

	"sigs.k8s.io/yaml"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/pkg/logging"
)

// Campaign tracks the counters of one campaign run. A single instance is
// owned by the engine and shared by reference with the device manager and
// the use cases; every mutation is serialised by mu.
type Campaign struct {
	mu  sync.Mutex
	now func() time.Time

	start      time.Time
	end        time.Time
	lastUpdate time.Time

	totalBootCount       int64
	bootFailureCount     int64
	connectFailureCount  int64
	successfulBootCount  int64
	criticalFailureCount int64
	tcExecutedCount      int64
	verdicts             map[api.Verdict]int64

	firstCritical time.Time
	mtbfRef       time.Time
	tbf           []time.Duration

	seen map[string]struct{}
}

// New returns campaign metrics using the wall clock.
func New() *Campaign {
	return NewWithClock(time.Now)
}

// NewWithClock returns campaign metrics reading time from now.
func NewWithClock(now func() time.Time) *Campaign {
	return &Campaign{
		now:      now,
		verdicts: make(map[api.Verdict]int64),
		seen:     make(map[string]struct{}),
	}
}

// Start records the campaign start time. It is the reference of the first
// time-between-failure entry.
func (m *Campaign) Start() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.start = m.now()
	m.mtbfRef = m.start
	m.lastUpdate = m.start
}

// Stop freezes the execution time.
func (m *Campaign) Stop() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.end = m.now()
	m.lastUpdate = m.end
}

func (m *Campaign) touch() {
	m.lastUpdate = m.now()
}

// RecordOnce runs fn unless key was already recorded. It makes updates
// driven by externally identified events idempotent. It reports whether fn
// was run.
func (m *Campaign) RecordOnce(key string, fn func()) bool {
	m.mu.Lock()
	if _, done := m.seen[key]; done {
		m.mu.Unlock()
		logging.Debug("CampaignMetrics", "Skipping already recorded event %s", key)
		return false
	}
	m.seen[key] = struct{}{}
	m.mu.Unlock()

	fn()
	return true
}

// RecordBootAttempt counts one boot or connection attempt.
func (m *Campaign) RecordBootAttempt() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.totalBootCount++
	m.touch()
}

// RecordBootFailure counts a device that did not boot.
func (m *Campaign) RecordBootFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.bootFailureCount++
	m.touch()
}

// RecordConnectFailure counts a device that booted but could not be
// connected to.
func (m *Campaign) RecordConnectFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.connectFailureCount++
	m.touch()
}

// RecordSuccessfulBoot counts a transition to CONNECTED.
func (m *Campaign) RecordSuccessfulBoot() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.successfulBootCount++
	m.touch()
}

// RecordCriticalFailure adds a time-between-failure entry measured from the
// previous critical failure (or the campaign start) and moves the MTBF
// reference to now.
func (m *Campaign) RecordCriticalFailure() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := m.now()
	m.criticalFailureCount++
	if m.firstCritical.IsZero() {
		m.firstCritical = now
	}
	ref := m.mtbfRef
	if ref.IsZero() {
		ref = m.start
	}
	if !ref.IsZero() {
		m.tbf = append(m.tbf, now.Sub(ref))
	}
	m.mtbfRef = now
	m.lastUpdate = now

	logging.Warn("CampaignMetrics", "Critical failure #%d recorded", m.criticalFailureCount)
}

// RecordVerdict counts one executed test case with its final verdict.
// INTERRUPTED and NA cases are not executed and are ignored.
func (m *Campaign) RecordVerdict(v api.Verdict) {
	if v == api.VerdictInterrupted || v == api.VerdictNA {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	m.tcExecutedCount++
	m.verdicts[v]++
	m.touch()
}

// Summary is a read-only view of the campaign metrics. Durations are
// expressed in seconds.
type Summary struct {
	TotalBootCount       int64 `json:"total_boot_count"`
	BootFailureCount     int64 `json:"boot_failure_count"`
	ConnectFailureCount  int64 `json:"connect_failure_count"`
	SuccessfulBootCount  int64 `json:"successful_boot_count"`
	CriticalFailureCount int64 `json:"critical_failure_count"`
	TCExecutedCount      int64 `json:"tc_executed_count"`

	PassCount         int64 `json:"pass_count"`
	FailCount         int64 `json:"fail_count"`
	BlockedCount      int64 `json:"blocked_count"`
	ValidCount        int64 `json:"valid_count"`
	InvalidCount      int64 `json:"invalid_count"`
	InconclusiveCount int64 `json:"inconclusive_count"`

	PassRate         float64 `json:"pass_rate"`
	FailRate         float64 `json:"fail_rate"`
	BlockedRate      float64 `json:"blocked_rate"`
	ValidRate        float64 `json:"valid_rate"`
	InvalidRate      float64 `json:"invalid_rate"`
	InconclusiveRate float64 `json:"inconclusive_rate"`

	ExecutionTime       float64   `json:"execution_time"`
	TimeToFirstCritical float64   `json:"time_to_first_critical_failure"`
	TBF                 []float64 `json:"tbf"`
	MTBF                float64   `json:"mtbf"`
}

// Snapshot returns the current metrics. Two snapshots taken without an
// intervening update are equal.
func (m *Campaign) Snapshot() Summary {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Summary{
		TotalBootCount:       m.totalBootCount,
		BootFailureCount:     m.bootFailureCount,
		ConnectFailureCount:  m.connectFailureCount,
		SuccessfulBootCount:  m.successfulBootCount,
		CriticalFailureCount: m.criticalFailureCount,
		TCExecutedCount:      m.tcExecutedCount,
		PassCount:            m.verdicts[api.VerdictPass],
		FailCount:            m.verdicts[api.VerdictFail],
		BlockedCount:         m.verdicts[api.VerdictBlocked],
		ValidCount:           m.verdicts[api.VerdictValid],
		InvalidCount:         m.verdicts[api.VerdictInvalid],
		InconclusiveCount:    m.verdicts[api.VerdictInconclusive],
		TBF:                  []float64{},
	}

	var rated int64
	for _, v := range api.RatedVerdicts {
		rated += m.verdicts[v]
	}
	if rated > 0 {
		s.PassRate = rate(s.PassCount, rated)
		s.FailRate = rate(s.FailCount, rated)
		s.BlockedRate = rate(s.BlockedCount, rated)
		s.ValidRate = rate(s.ValidCount, rated)
		s.InvalidRate = rate(s.InvalidCount, rated)
		s.InconclusiveRate = rate(s.InconclusiveCount, rated)
	}

	if !m.start.IsZero() {
		end := m.end
		if end.IsZero() {
			end = m.lastUpdate
		}
		s.ExecutionTime = seconds(end.Sub(m.start))
		if !m.firstCritical.IsZero() {
			s.TimeToFirstCritical = seconds(m.firstCritical.Sub(m.start))
		}
	}

	var total time.Duration
	for _, d := range m.tbf {
		s.TBF = append(s.TBF, seconds(d))
		total += d
	}
	if len(m.tbf) > 0 {
		s.MTBF = seconds(total / time.Duration(len(m.tbf)))
	}
	return s
}

// Get renders the metrics as "dict" (map[string]any), "json" or "yaml"
// (both returned as string).
func (m *Campaign) Get(format string) (any, error) {
	s := m.Snapshot()
	switch format {
	case "dict":
		return s.Dict(), nil
	case "json":
		data, err := json.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metrics: %w", err)
		}
		return string(data), nil
	case "yaml":
		data, err := yaml.Marshal(s)
		if err != nil {
			return nil, fmt.Errorf("failed to marshal metrics: %w", err)
		}
		return string(data), nil
	}
	return nil, api.NewError(api.InvalidParameter, "unknown metrics format %q", format)
}

// Dict returns s as a generic map keyed by the JSON field names.
func (s Summary) Dict() map[string]any {
	tbf := make([]any, len(s.TBF))
	for i, v := range s.TBF {
		tbf[i] = v
	}
	return map[string]any{
		"total_boot_count":               s.TotalBootCount,
		"boot_failure_count":             s.BootFailureCount,
		"connect_failure_count":          s.ConnectFailureCount,
		"successful_boot_count":          s.SuccessfulBootCount,
		"critical_failure_count":         s.CriticalFailureCount,
		"tc_executed_count":              s.TCExecutedCount,
		"pass_count":                     s.PassCount,
		"fail_count":                     s.FailCount,
		"blocked_count":                  s.BlockedCount,
		"valid_count":                    s.ValidCount,
		"invalid_count":                  s.InvalidCount,
		"inconclusive_count":             s.InconclusiveCount,
		"pass_rate":                      s.PassRate,
		"fail_rate":                      s.FailRate,
		"blocked_rate":                   s.BlockedRate,
		"valid_rate":                     s.ValidRate,
		"invalid_rate":                   s.InvalidRate,
		"inconclusive_rate":              s.InconclusiveRate,
		"execution_time":                 s.ExecutionTime,
		"time_to_first_critical_failure": s.TimeToFirstCritical,
		"tbf":                            tbf,
		"mtbf":                           s.MTBF,
	}
}

// RateSum returns the sum of all verdict rates: 0 before any executed case,
// 100 (within rounding) after.
func (s Summary) RateSum() float64 {
	return s.PassRate + s.FailRate + s.BlockedRate + s.ValidRate + s.InvalidRate + s.InconclusiveRate
}

func rate(n, total int64) float64 {
	return math.Round(float64(n)*10000/float64(total)) / 100
}

func seconds(d time.Duration) float64 {
	return math.Round(d.Seconds()*1000) / 1000
}
