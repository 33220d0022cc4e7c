package cmd

import (
	"bytes"
	"context"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/intel/test-framework-and-suites-for-android-sub002/internal/campaign"
)

// scriptedReader replays lines, then io.EOF.
type scriptedReader struct {
	lines   []string
	prompts []string
}

func (r *scriptedReader) SetPrompt(p string) { r.prompts = append(r.prompts, p) }

func (r *scriptedReader) Readline() (string, error) {
	if len(r.lines) == 0 {
		return "", io.EOF
	}
	line := r.lines[0]
	r.lines = r.lines[1:]
	return line, nil
}

func TestBuildDocument(t *testing.T) {
	doc, err := buildDocument([]string{"TC/boot TcMaxAttempt=3 IsCritical=true", "@smoke 2", "TC/noop"})
	if err != nil {
		t.Fatalf("buildDocument: %v", err)
	}
	if len(doc.Nodes) != 3 {
		t.Fatalf("expected 3 nodes, got %d", len(doc.Nodes))
	}
	if doc.Nodes[0].Attrs["TcMaxAttempt"] != "3" || doc.Nodes[0].Attrs["IsCritical"] != "true" {
		t.Errorf("attributes not kept: %v", doc.Nodes[0].Attrs)
	}
	if doc.Nodes[1].Kind != campaign.NodeSubCampaign || doc.Nodes[1].RunNumber != 2 {
		t.Errorf("sub-campaign not parsed: %+v", doc.Nodes[1])
	}

	if _, err := buildDocument([]string{"@smoke zero"}); err == nil {
		t.Error("expected an error for a bad run number")
	}
	if _, err := buildDocument([]string{"TC/x NoEquals"}); err == nil {
		t.Error("expected an error for an attribute without a value")
	}
}

func TestGenerateWritesCampaign(t *testing.T) {
	dir := t.TempDir()
	r := &scriptedReader{lines: []string{
		filepath.Join(dir, "nightly"),
		"y",
		"TC/boot TcAcceptanceCriteria=2",
		"TC/noop",
		"",
		"ignored after the empty line",
	}}
	var out bytes.Buffer
	if err := generate(context.Background(), r, &out, ""); err != nil {
		t.Fatalf("generate: %v", err)
	}

	data, err := os.ReadFile(filepath.Join(dir, "nightly.xml"))
	if err != nil {
		t.Fatalf("campaign not written: %v", err)
	}
	xml := string(data)
	for _, want := range []string{`Id="TC/boot"`, `TcAcceptanceCriteria="2"`, `Id="TC/noop"`, `stopCampaignOnCriticalFailure="true"`} {
		if !strings.Contains(xml, want) {
			t.Errorf("campaign should contain %s:\n%s", want, xml)
		}
	}
	if strings.Contains(xml, "ignored") {
		t.Error("lines after the empty line must be ignored")
	}
	if !strings.Contains(out.String(), "2 entr(ies)") {
		t.Errorf("unexpected summary %q", out.String())
	}
}

func TestGenerateNeedsAFileName(t *testing.T) {
	r := &scriptedReader{lines: []string{"  "}}
	if err := generate(context.Background(), r, io.Discard, ""); err == nil {
		t.Error("expected an error without a file name")
	}
}
