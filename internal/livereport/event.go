package livereport

// Actions understood by the adapters.
const (
	ActionStartCampaign    = "start_campaign"
	ActionStopCampaign     = "stop_campaign"
	ActionStartTestCase    = "start_testcase"
	ActionUpdateTestCase   = "update_testcase"
	ActionStopTestCase     = "stop_testcase"
	ActionBulkTestCases    = "bulk_testcases"
	ActionTestCaseResource = "testcase_resource"
	ActionCampaignResource = "campaign_resource"
	ActionTestCaseChart    = "testcase_chart"
)

// Header travels with every request. Its field names are part of the
// server contract.
type Header struct {
	RequestID int64  `json:"requestId"`
	SessionID string `json:"sessionId,omitempty"`
	User      string `json:"user,omitempty"`
	Host      string `json:"host,omitempty"`
	Version   string `json:"version,omitempty"`
}

// UserAgent renders the User-Agent of the requests carrying h.
func (h Header) UserAgent() string {
	ua := "acs"
	if h.Version != "" {
		ua += "/" + h.Version
	}
	if h.Host != "" {
		ua += " (" + h.Host + ")"
	}
	return ua
}

// Event is one queued request.
type Event struct {
	ID     int64
	Action string
	Header Header
	// Target is the id of the resource the event addresses: the campaign
	// for campaign actions, the test case otherwise.
	Target string
	// Parent is the campaign id for test-case actions.
	Parent  string
	Payload map[string]any
	// File is the local path uploaded by resource actions.
	File string
}
