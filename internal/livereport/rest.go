package livereport

import (
	"bytes"
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strings"
	"time"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/intel/test-framework-and-suites-for-android-sub002/pkg/logging"
)

// Adapter delivers one event to the report server.
type Adapter interface {
	Dispatch(ctx context.Context, ev Event) Response
}

// Request timeouts.
const (
	ControlTimeout  = 10 * time.Second
	ResourceTimeout = 300 * time.Second
)

// MD5Header carries the hex MD5 of an uploaded file.
const MD5Header = "X-Content-MD5"

// RESTConfig configures a RESTAdapter.
type RESTConfig struct {
	BaseURL  string
	User     string
	Password string
	// OAuth2 selects client-credentials auth instead of Basic auth.
	OAuth2 *clientcredentials.Config
	// HTTPClient replaces the default transport, mainly for tests.
	HTTPClient *http.Client
}

// RESTAdapter speaks the report server REST API.
type RESTAdapter struct {
	base    *url.URL
	user    string
	pass    string
	client  *http.Client
	metrics *slog.Logger
	methods map[string]restMethod
}

type restMethod struct {
	verb    string
	path    func(Event) string
	timeout time.Duration
	upload  bool
}

// NewRESTAdapter returns an adapter for cfg.BaseURL.
func NewRESTAdapter(cfg RESTConfig) (*RESTAdapter, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/"))
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("invalid report server url %q", cfg.BaseURL)
	}
	client := cfg.HTTPClient
	if client == nil {
		client = &http.Client{}
	}
	if cfg.OAuth2 != nil {
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, client)
		client = cfg.OAuth2.Client(ctx)
	}
	a := &RESTAdapter{
		base:    base,
		user:    cfg.User,
		pass:    cfg.Password,
		client:  client,
		metrics: logging.NewComponentLogger("LiveReportingMetrics"),
	}
	a.methods = map[string]restMethod{
		ActionStartCampaign:    {http.MethodPost, func(Event) string { return "/campaigns" }, ControlTimeout, false},
		ActionStopCampaign:     {http.MethodPut, func(e Event) string { return "/campaigns/" + url.PathEscape(e.Target) }, ControlTimeout, false},
		ActionStartTestCase:    {http.MethodPost, func(Event) string { return "/tests" }, ControlTimeout, false},
		ActionUpdateTestCase:   {http.MethodPut, func(e Event) string { return "/tests/" + url.PathEscape(e.Target) }, ControlTimeout, false},
		ActionStopTestCase:     {http.MethodPut, func(e Event) string { return "/tests/" + url.PathEscape(e.Target) }, ControlTimeout, false},
		ActionBulkTestCases:    {http.MethodPost, func(Event) string { return "/tests/bulk" }, ControlTimeout, false},
		ActionTestCaseChart:    {http.MethodPost, func(e Event) string { return "/tests/" + url.PathEscape(e.Target) + "/charts" }, ControlTimeout, false},
		ActionTestCaseResource: {http.MethodPost, func(e Event) string { return "/tests/" + url.PathEscape(e.Target) + "/attachments" }, ResourceTimeout, true},
		ActionCampaignResource: {http.MethodPost, func(e Event) string { return "/campaigns/" + url.PathEscape(e.Target) + "/attachments" }, ResourceTimeout, true},
	}
	return a, nil
}

// Dispatch sends ev with the method registered for its action.
func (a *RESTAdapter) Dispatch(ctx context.Context, ev Event) Response {
	m, ok := a.methods[ev.Action]
	if !ok {
		return failure(UnexpectedError, fmt.Errorf("no method for action %q", ev.Action))
	}
	ctx, cancel := context.WithTimeout(ctx, m.timeout)
	defer cancel()

	var (
		body        io.Reader
		contentType string
		digest      string
	)
	if m.upload {
		buf, ct, sum, err := multipartBody(ev)
		if err != nil {
			return failure(EmptyData, err)
		}
		body, contentType, digest = buf, ct, sum
	} else {
		data, err := json.Marshal(jsonBody(ev))
		if err != nil {
			return failure(WrongDataFormat, err)
		}
		body, contentType = bytes.NewReader(data), "application/json"
	}

	req, err := http.NewRequestWithContext(ctx, m.verb, a.base.String()+m.path(ev), body)
	if err != nil {
		return failure(UnexpectedError, err)
	}
	req.Header.Set("content-type", contentType)
	req.Header.Set("User-Agent", ev.Header.UserAgent())
	if digest != "" {
		req.Header.Set(MD5Header, digest)
	}
	resp := a.do(req, ev)
	if resp.OK() && digest != "" {
		if echo, _ := resp.Body["md5"].(string); echo != "" && !strings.EqualFold(echo, digest) {
			return failure(WrongDataFormat, fmt.Errorf("server stored md5 %s, sent %s", echo, digest))
		}
	}
	return resp
}

func (a *RESTAdapter) do(req *http.Request, ev Event) Response {
	if a.user != "" {
		req.SetBasicAuth(a.user, a.pass)
	}
	start := time.Now()
	a.metrics.Info("request", "requestId", ev.ID, "action", ev.Action, "method", req.Method, "url", req.URL.String())

	httpResp, err := a.client.Do(req)
	elapsed := time.Since(start)
	if err != nil {
		r := classify(err)
		a.metrics.Warn("response", "requestId", ev.ID, "code", r.Code.String(), "duration", elapsed, "error", err)
		return r
	}
	defer httpResp.Body.Close()

	raw, err := io.ReadAll(httpResp.Body)
	a.metrics.Info("response", "requestId", ev.ID, "status", httpResp.StatusCode, "duration", elapsed, "bytes", len(raw))
	if err != nil {
		return classify(err)
	}
	if httpResp.StatusCode < 200 || httpResp.StatusCode > 299 {
		return Response{Code: HTTPCodeError, Status: httpResp.StatusCode, Err: fmt.Errorf("%s %s: %s", req.Method, req.URL.Path, bytes.TrimSpace(raw))}
	}
	r := Response{Code: NoError, Status: httpResp.StatusCode}
	if len(bytes.TrimSpace(raw)) > 0 {
		if err := json.Unmarshal(raw, &r.Body); err != nil {
			return Response{Code: WrongDataFormat, Status: httpResp.StatusCode, Err: fmt.Errorf("decode response: %w", err)}
		}
	}
	return r
}

// classify maps a transport error to a response code.
func classify(err error) Response {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded), errors.As(err, &netErr) && netErr.Timeout():
		return failure(Timeout, err)
	case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
		return failure(NoResponse, err)
	case errors.Is(err, context.Canceled):
		return failure(UnexpectedError, err)
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) || errors.As(err, &netErr) {
		return failure(ConnectionError, err)
	}
	return failure(UnexpectedError, err)
}

// jsonBody is the request document of control actions. Its field names are
// part of the server contract.
func jsonBody(ev Event) map[string]any {
	body := map[string]any{"header": ev.Header}
	if ev.Payload != nil {
		body["payload"] = ev.Payload
	}
	switch ev.Action {
	case ActionStartCampaign:
		body["id"] = ev.Target
		if ev.Parent != "" {
			body["options"] = map[string]any{"metacampaignId": ev.Parent}
		}
	case ActionStartTestCase:
		body["id"] = ev.Target
		body["parentId"] = ev.Parent
	case ActionBulkTestCases, ActionTestCaseChart:
		body["parentId"] = ev.Parent
	}
	return body
}

func multipartBody(ev Event) (*bytes.Buffer, string, string, error) {
	if ev.File == "" {
		return nil, "", "", errors.New("no file to upload")
	}
	data, err := os.ReadFile(ev.File)
	if err != nil {
		return nil, "", "", fmt.Errorf("read %s: %w", ev.File, err)
	}
	if len(data) == 0 {
		return nil, "", "", fmt.Errorf("%s is empty", ev.File)
	}
	sum := md5.Sum(data)
	digest := hex.EncodeToString(sum[:])

	buf := &bytes.Buffer{}
	w := multipart.NewWriter(buf)
	header, _ := json.Marshal(ev.Header)
	_ = w.WriteField("header", string(header))
	_ = w.WriteField("md5", digest)
	if ev.Payload != nil {
		payload, err := json.Marshal(ev.Payload)
		if err != nil {
			return nil, "", "", err
		}
		_ = w.WriteField("payload", string(payload))
	}
	part, err := w.CreateFormFile("file", filepath.Base(ev.File))
	if err != nil {
		return nil, "", "", err
	}
	if _, err := part.Write(data); err != nil {
		return nil, "", "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", "", err
	}
	return buf, w.FormDataContentType(), digest, nil
}

// CampaignExists checks a campaign id with GET /campaigns/{id}.
func (a *RESTAdapter) CampaignExists(ctx context.Context, id string) (bool, error) {
	resp, err := a.get(ctx, "/campaigns/"+url.PathEscape(id))
	if err != nil {
		return false, err
	}
	switch {
	case resp.OK():
		return true, nil
	case resp.Code == HTTPCodeError && resp.Status == http.StatusNotFound:
		return false, nil
	}
	return false, fmt.Errorf("check campaign %s: %s", id, resp)
}

func (a *RESTAdapter) get(ctx context.Context, path string) (Response, error) {
	ctx, cancel := context.WithTimeout(ctx, ControlTimeout)
	defer cancel()
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, a.base.String()+path, nil)
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("User-Agent", Header{}.UserAgent())
	return a.do(req, Event{Action: "get"}), nil
}
