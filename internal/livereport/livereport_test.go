package livereport

import (
	"context"
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2/clientcredentials"
)

type recordedRequest struct {
	Method string
	Path   string
	At     time.Time
	Body   map[string]any
	Header http.Header
}

// fakeServer answers every request with the next scripted status, 200 once
// the script is exhausted.
type fakeServer struct {
	mu       sync.Mutex
	statuses []int
	requests []recordedRequest
	srv      *httptest.Server
}

func newFakeServer(t *testing.T, statuses ...int) *fakeServer {
	t.Helper()
	f := &fakeServer{statuses: statuses}
	f.srv = httptest.NewServer(http.HandlerFunc(f.handle))
	t.Cleanup(f.srv.Close)
	return f
}

func (f *fakeServer) handle(w http.ResponseWriter, r *http.Request) {
	rec := recordedRequest{Method: r.Method, Path: r.URL.Path, At: time.Now(), Header: r.Header.Clone()}
	reply := map[string]any{}
	if r.Header.Get("content-type") == "application/json" {
		data, _ := io.ReadAll(r.Body)
		_ = json.Unmarshal(data, &rec.Body)
	} else if err := r.ParseMultipartForm(1 << 20); err == nil {
		reply["md5"] = r.FormValue("md5")
	}

	f.mu.Lock()
	f.requests = append(f.requests, rec)
	status := http.StatusOK
	if len(f.statuses) > 0 {
		status, f.statuses = f.statuses[0], f.statuses[1:]
	}
	f.mu.Unlock()

	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(reply)
}

func (f *fakeServer) recorded() []recordedRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]recordedRequest(nil), f.requests...)
}

func newAdapter(t *testing.T, f *fakeServer) *RESTAdapter {
	t.Helper()
	a, err := NewRESTAdapter(RESTConfig{BaseURL: f.srv.URL, User: "bot", Password: "secret"})
	require.NoError(t, err)
	return a
}

func TestQueueAssignsMonotonicIDs(t *testing.T) {
	q := NewQueue()
	for i := 0; i < 3; i++ {
		ev, ok := q.Push(Event{Action: ActionStartTestCase})
		require.True(t, ok)
		assert.EqualValues(t, i+1, ev.ID)
		assert.Equal(t, ev.ID, ev.Header.RequestID)
	}
	head, _ := q.Peek()
	q.Ack(head.ID + 1)
	assert.Equal(t, 3, q.Len(), "only the head can be acknowledged")
	q.Ack(head.ID)
	assert.Equal(t, 2, q.Len())

	q.Close()
	_, ok := q.Push(Event{})
	assert.False(t, ok)

	at := time.Now().Add(time.Minute)
	assert.True(t, q.ArmDeadline(at))
	assert.False(t, q.ArmDeadline(at.Add(time.Hour)))
	assert.Equal(t, at, q.Deadline())
}

func TestResponseRetriable(t *testing.T) {
	cases := map[string]struct {
		resp Response
		want bool
	}{
		"connection":  {Response{Code: ConnectionError}, true},
		"timeout":     {Response{Code: Timeout}, true},
		"no response": {Response{Code: NoResponse}, true},
		"404":         {Response{Code: HTTPCodeError, Status: 404}, true},
		"503":         {Response{Code: HTTPCodeError, Status: 503}, true},
		"500":         {Response{Code: HTTPCodeError, Status: 500}, false},
		"format":      {Response{Code: WrongDataFormat}, false},
		"ok":          {Response{Code: NoError}, false},
	}
	for name, tc := range cases {
		t.Run(name, func(t *testing.T) {
			assert.Equal(t, tc.want, tc.resp.Retriable())
		})
	}
}

func TestRESTAdapterContract(t *testing.T) {
	f := newFakeServer(t)
	a := newAdapter(t, f)
	ctx := context.Background()

	resp := a.Dispatch(ctx, Event{
		ID:      7,
		Action:  ActionStartTestCase,
		Header:  Header{RequestID: 7, Version: "1.2.0", Host: "bench01"},
		Target:  "tc-1",
		Parent:  "camp-1",
		Payload: map[string]any{"name": "TC1"},
	})
	require.True(t, resp.OK(), resp.String())

	reqs := f.recorded()
	require.Len(t, reqs, 1)
	assert.Equal(t, http.MethodPost, reqs[0].Method)
	assert.Equal(t, "/tests", reqs[0].Path)
	assert.Equal(t, "acs/1.2.0 (bench01)", reqs[0].Header.Get("User-Agent"))
	user, pass, ok := (&http.Request{Header: reqs[0].Header}).BasicAuth()
	require.True(t, ok)
	assert.Equal(t, "bot", user)
	assert.Equal(t, "secret", pass)

	want := map[string]any{
		"id":       "tc-1",
		"parentId": "camp-1",
		"payload":  map[string]any{"name": "TC1"},
		"header":   map[string]any{"requestId": float64(7), "host": "bench01", "version": "1.2.0"},
	}
	if diff := cmp.Diff(want, reqs[0].Body); diff != "" {
		t.Errorf("request body mismatch (-want +got):\n%s", diff)
	}

	resp = a.Dispatch(ctx, Event{ID: 8, Action: ActionStopCampaign, Target: "camp-1"})
	require.True(t, resp.OK())
	assert.Equal(t, "/campaigns/camp-1", f.recorded()[1].Path)
	assert.Equal(t, http.MethodPut, f.recorded()[1].Method)
}

func TestRESTAdapterOAuth2ClientCredentials(t *testing.T) {
	var tokenCalls int
	var mu sync.Mutex
	tokens := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		mu.Lock()
		tokenCalls++
		mu.Unlock()
		_ = r.ParseForm()
		id, secret, ok := r.BasicAuth()
		if !ok {
			id, secret = r.FormValue("client_id"), r.FormValue("client_secret")
		}
		if id != "bench" || secret != "s3cret" || r.FormValue("grant_type") != "client_credentials" {
			w.WriteHeader(http.StatusUnauthorized)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"access_token":"tok-1","token_type":"bearer","expires_in":3600}`)
	}))
	t.Cleanup(tokens.Close)

	f := newFakeServer(t)
	a, err := NewRESTAdapter(RESTConfig{
		BaseURL: f.srv.URL,
		OAuth2:  &clientcredentials.Config{ClientID: "bench", ClientSecret: "s3cret", TokenURL: tokens.URL},
	})
	require.NoError(t, err)

	ctx := context.Background()
	require.True(t, a.Dispatch(ctx, Event{ID: 1, Action: ActionStartCampaign, Target: "c"}).OK())
	require.True(t, a.Dispatch(ctx, Event{ID: 2, Action: ActionTestCaseChart, Target: "tc-1", Parent: "c"}).OK())

	reqs := f.recorded()
	require.Len(t, reqs, 2)
	for _, r := range reqs {
		assert.Equal(t, "Bearer tok-1", r.Header.Get("Authorization"))
	}
	assert.Equal(t, "/tests/tc-1/charts", reqs[1].Path)
	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, 1, tokenCalls, "the token is cached")
}

func TestRESTAdapterUpload(t *testing.T) {
	f := newFakeServer(t)
	a := newAdapter(t, f)

	path := filepath.Join(t.TempDir(), "campaign.log")
	content := []byte("log content\n")
	require.NoError(t, os.WriteFile(path, content, 0o644))
	sum := md5.Sum(content)

	resp := a.Dispatch(context.Background(), Event{ID: 1, Action: ActionCampaignResource, Target: "camp-1", File: path})
	require.True(t, resp.OK(), resp.String())
	req := f.recorded()[0]
	assert.Equal(t, "/campaigns/camp-1/attachments", req.Path)
	assert.Equal(t, hex.EncodeToString(sum[:]), req.Header.Get(MD5Header))

	resp = a.Dispatch(context.Background(), Event{ID: 2, Action: ActionTestCaseResource, Target: "tc-1"})
	assert.Equal(t, EmptyData, resp.Code)
}

func TestRESTAdapterConnectionError(t *testing.T) {
	f := newFakeServer(t)
	a := newAdapter(t, f)
	f.srv.Close()

	resp := a.Dispatch(context.Background(), Event{ID: 1, Action: ActionStartCampaign, Target: "c"})
	assert.True(t, resp.Retriable(), resp.String())
}

// Five 503 answers then success: the three events arrive in order and the
// retries of the head are spaced by the linear back-off.
func TestWorkerRetriesInOrder(t *testing.T) {
	if testing.Short() {
		t.Skip("waits for the real back-off")
	}
	f := newFakeServer(t, 503, 503, 503, 503, 503)
	r, err := NewReporter(Options{Adapter: newAdapter(t, f), CampaignID: "camp-1"})
	require.NoError(t, err)

	r.SendStartCampaignInfo(map[string]any{"name": "smoke"})
	r.SendStartTCInfo("tc-1", nil)
	r.SendStopTCInfo("tc-1", map[string]any{"verdict": "PASS"})
	require.NoError(t, r.Close(context.Background(), time.Minute))

	assert.Equal(t, []int64{1, 2, 3}, r.Delivered())
	reqs := f.recorded()
	require.Len(t, reqs, 8)
	for i := 1; i < 6; i++ {
		gap := reqs[i].At.Sub(reqs[i-1].At)
		assert.GreaterOrEqual(t, gap, time.Duration(i)*DefaultBackoffUnit-10*time.Millisecond, "retry %d", i)
	}
	assert.Equal(t, "/campaigns", reqs[5].Path)
	assert.Equal(t, "/tests", reqs[6].Path)
	assert.Equal(t, "/tests/tc-1", reqs[7].Path)
}

func TestDeadlineAbandonsToDeadLetters(t *testing.T) {
	f := newFakeServer(t, 503, 503, 503, 503, 503, 503, 503, 503, 503, 503)
	sink := &FileSink{Path: filepath.Join(t.TempDir(), "report", "deadletters.lz4")}
	r, err := NewReporter(Options{
		Adapter:     newAdapter(t, f),
		Sink:        sink,
		CampaignID:  "camp-1",
		LastChance:  100 * time.Millisecond,
		BackoffUnit: 20 * time.Millisecond,
	})
	require.NoError(t, err)

	path := filepath.Join(t.TempDir(), "summary.html")
	require.NoError(t, os.WriteFile(path, []byte("<html></html>"), 0o644))
	r.SendStartCampaignInfo(nil)
	r.SendCampaignResource(path, map[string]any{"kind": "summary"})
	require.NoError(t, r.Close(context.Background(), time.Minute))

	assert.Empty(t, r.Delivered())
	letters, err := ReadDeadLetters(sink.Path)
	require.NoError(t, err)
	require.Len(t, letters, 2)
	assert.Equal(t, ActionStartCampaign, letters[0].Action)
	assert.Equal(t, ActionCampaignResource, letters[1].Action)
	assert.Equal(t, "summary", letters[1].Payload["kind"])
	assert.Equal(t, path, letters[1].File)
}

func TestNonRetriableFailureIsDeadLettered(t *testing.T) {
	f := newFakeServer(t, 500)
	sink := &FileSink{Path: filepath.Join(t.TempDir(), "dl.lz4")}
	r, err := NewReporter(Options{Adapter: newAdapter(t, f), Sink: sink, PollInterval: 10 * time.Millisecond})
	require.NoError(t, err)

	r.SendStartCampaignInfo(nil)
	r.SendStopCampaignInfo(nil)
	require.NoError(t, r.Close(context.Background(), time.Minute))

	assert.Equal(t, []int64{2}, r.Delivered())
	letters, err := ReadDeadLetters(sink.Path)
	require.NoError(t, err)
	require.Len(t, letters, 1)
	assert.EqualValues(t, 1, letters[0].ID)
	assert.Contains(t, letters[0].Reason, "HTTP_CODE_ERROR(500)")
}

func TestCampaignExists(t *testing.T) {
	f := newFakeServer(t, 404, 200)
	a := newAdapter(t, f)

	ok, err := a.CampaignExists(context.Background(), "meta-1")
	require.NoError(t, err)
	assert.False(t, ok)
	ok, err = a.CampaignExists(context.Background(), "meta-1")
	require.NoError(t, err)
	assert.True(t, ok)
	assert.Equal(t, "/campaigns/meta-1", f.recorded()[0].Path)
}
