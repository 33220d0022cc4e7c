package engine

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2/clientcredentials"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/api"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/campaign"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/livereport"
	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/report"
	"github.com/intel/test-framework-and-suites-for-android-sub002/pkg/logging"
)

const (
	// EnvReportServerURL is the report server base URL when neither the
	// engine config nor the campaign sets one.
	EnvReportServerURL = "ACS_REPORT_SERVER_URL"
	// ParamReportServerURL is the campaign parameter naming the server.
	ParamReportServerURL = "liveReportingUrl"
	// EnvReportOAuthTokenURL switches the report server auth to OAuth2
	// client credentials; --creds then carries client_id:client_secret.
	EnvReportOAuthTokenURL = "ACS_REPORT_OAUTH_TOKEN_URL"

	// DeadLetterFile collects the events the report server never accepted.
	DeadLetterFile = "deadletters.lz4"
)

// campaignChecker is implemented by adapters that can look a campaign up.
type campaignChecker interface {
	CampaignExists(ctx context.Context, id string) (bool, error)
}

// liveSession is the engine side of live reporting. A nil session drops
// every call.
type liveSession struct {
	reporter  *livereport.Reporter
	remoteURL string
}

func (e *Engine) startLive(ctx context.Context, p *plan) {
	opts := e.global.Options
	if !opts.LiveReporting {
		return
	}
	adapter := e.cfg.Adapter
	base := e.serverURL()
	if adapter == nil {
		if base == "" {
			logging.Warn("LiveReporting", "No report server URL (set %s or the %s campaign parameter), live reporting disabled",
				EnvReportServerURL, ParamReportServerURL)
			return
		}
		rest, err := livereport.NewRESTAdapter(restConfig(base, opts.Username(), opts.Password()))
		if err != nil {
			logging.Error("LiveReporting", err, "Live reporting disabled")
			return
		}
		adapter = rest
	}

	if meta := opts.MetacampaignUUID; meta != "" {
		if c, ok := adapter.(campaignChecker); ok {
			if exists, err := c.CampaignExists(ctx, meta); err != nil {
				logging.Warn("LiveReporting", "Cannot check metacampaign %s: %v", meta, err)
			} else if !exists {
				logging.Warn("LiveReporting", "Metacampaign %s is unknown to the report server", meta)
			}
		}
	}

	r, err := livereport.NewReporter(livereport.Options{
		Adapter:        adapter,
		Sink:           &livereport.FileSink{Path: e.tree.Path(DeadLetterFile)},
		User:           opts.User,
		Version:        e.cfg.Version,
		MetacampaignID: opts.MetacampaignUUID,
	})
	if err != nil {
		logging.Error("LiveReporting", err, "Live reporting disabled")
		return
	}
	s := &liveSession{reporter: r}
	if base != "" {
		s.remoteURL = strings.TrimSuffix(base, "/") + "/campaigns/" + r.CampaignID()
	}
	e.live = s

	r.SendStartCampaignInfo(map[string]any{
		"name":         p.campaign.Campaign.Name,
		"campaignPath": p.campaign.CampaignPath,
		"hwVariant":    p.hwVariant,
		"user":         opts.User,
		"testCount":    len(p.cases),
		"runNumber":    opts.RunNumber,
		"startTime":    e.cfg.Now().UTC().Format(time.RFC3339),
		"parameters":   p.campaign.Campaign.Parameters.Map(),
	})
	logging.Info("LiveReporting", "Campaign %s reported to %s", r.CampaignID(), base)
}

// restConfig uses Basic auth unless EnvReportOAuthTokenURL names a token
// endpoint.
func restConfig(base, user, password string) livereport.RESTConfig {
	tokenURL := strings.TrimSpace(os.Getenv(EnvReportOAuthTokenURL))
	if tokenURL == "" {
		return livereport.RESTConfig{BaseURL: base, User: user, Password: password}
	}
	logging.Debug("LiveReporting", "Using OAuth2 client credentials from %s", tokenURL)
	return livereport.RESTConfig{
		BaseURL: base,
		OAuth2: &clientcredentials.Config{
			ClientID:     user,
			ClientSecret: password,
			TokenURL:     tokenURL,
		},
	}
}

func (e *Engine) serverURL() string {
	if e.cfg.ReportServerURL != "" {
		return e.cfg.ReportServerURL
	}
	if v := e.global.Campaign.Parameters.GetString(ParamReportServerURL, ""); v != "" {
		return v
	}
	return strings.TrimSpace(os.Getenv(EnvReportServerURL))
}

func (s *liveSession) RemoteURL() string {
	if s == nil {
		return ""
	}
	return s.remoteURL
}

func (s *liveSession) startCase(tc campaign.TestCaseConf, index int, at time.Time) string {
	if s == nil {
		return ""
	}
	id := s.reporter.NewTestCaseID()
	s.reporter.SendStartTCInfo(id, map[string]any{
		"name":        tc.Name,
		"useCase":     tc.UseCaseName,
		"order":       index,
		"description": tc.Description(),
		"isCritical":  tc.IsCritical(),
		"startTime":   at.UTC().Format(time.RFC3339),
	})
	return id
}

// updateCase reports the outcome of one attempt of a running case.
func (s *liveSession) updateCase(id string, attempt, budget int, res api.Result) {
	if s == nil || id == "" {
		return
	}
	s.reporter.SendUpdateTCInfo(id, map[string]any{
		"attempt":    attempt,
		"maxAttempt": budget,
		"verdict":    res.Verdict.String(),
		"comment":    res.Message,
	})
}

// attemptChart sends the verdict of every attempt of a retried case.
func (s *liveSession) attemptChart(id string, verdicts []api.Verdict) {
	if s == nil || id == "" || len(verdicts) < 2 {
		return
	}
	points := make([]map[string]any, len(verdicts))
	for i, v := range verdicts {
		pass := 0
		if v.IsSuccess() {
			pass = 1
		}
		points[i] = map[string]any{"x": i + 1, "y": pass, "label": v.String()}
	}
	s.reporter.SendTestCaseChart(id, map[string]any{
		"title":  "Attempts",
		"xLabel": "attempt",
		"yLabel": "passed",
		"series": []map[string]any{{"name": "verdict", "points": points}},
	})
}

func (s *liveSession) stopCase(rec report.CaseRecord, devices map[string]map[string]string) {
	if s == nil || rec.RemoteID == "" {
		return
	}
	s.reporter.SendStopTCInfo(rec.RemoteID, map[string]any{
		"verdict":    rec.Verdict.String(),
		"comment":    rec.Message,
		"attempts":   rec.Attempts,
		"passCount":  rec.Passes,
		"endTime":    rec.End.UTC().Format(time.RFC3339),
		"deviceInfo": devices,
	})
}

// caseResources uploads the files of a case folder.
func (s *liveSession) caseResources(id string, tree *report.Tree, index int, name string) {
	if s == nil || id == "" || tree == nil {
		return
	}
	dir, err := tree.CaseDir(index, name)
	if err != nil {
		return
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		return
	}
	for _, ent := range entries {
		if ent.Type().IsRegular() {
			s.reporter.SendTestCaseResource(id, filepath.Join(dir, ent.Name()), map[string]any{"name": ent.Name()})
		}
	}
}

// declare sends the cases that never started in one bulk request.
func (s *liveSession) declare(records []report.CaseRecord) {
	if s == nil {
		return
	}
	var tests []map[string]any
	for _, r := range records {
		if r.RemoteID != "" {
			continue
		}
		tests = append(tests, map[string]any{
			"id":      s.reporter.NewTestCaseID(),
			"name":    r.Name,
			"order":   r.Index,
			"verdict": r.Verdict.String(),
			"comment": r.Message,
		})
	}
	if len(tests) > 0 {
		s.reporter.SendBulkTCInfo(tests)
	}
}

// close uploads the campaign resources, stops the campaign and waits for
// the queue to drain.
func (s *liveSession) close(ctx context.Context, verdict api.Verdict, end time.Time, resources []string, drain time.Duration) {
	if s == nil {
		return
	}
	for _, path := range resources {
		s.reporter.SendCampaignResource(path, map[string]any{"name": filepath.Base(path)})
	}
	s.reporter.SendStopCampaignInfo(map[string]any{
		"verdict": verdict.String(),
		"endTime": end.UTC().Format(time.RFC3339),
	})
	if err := s.reporter.Close(ctx, drain); err != nil {
		logging.Warn("LiveReporting", "Reporter closed early: %v", err)
	}
	logging.Info("LiveReporting", "%d event(s) delivered", len(s.reporter.Delivered()))
}
