package logging

import (
	"bytes"
	"errors"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLogLevel_String(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected string
	}{
		{LevelDebug, "DEBUG"},
		{LevelInfo, "INFO"},
		{LevelWarn, "WARN"},
		{LevelError, "ERROR"},
		{LogLevel(999), "UNKNOWN"},
	}

	for _, test := range tests {
		result := test.level.String()
		if result != test.expected {
			t.Errorf("LogLevel(%d).String() = %s, expected %s", test.level, result, test.expected)
		}
	}
}

func TestLogLevel_SlogLevel(t *testing.T) {
	tests := []struct {
		level    LogLevel
		expected slog.Level
	}{
		{LevelDebug, slog.LevelDebug},
		{LevelInfo, slog.LevelInfo},
		{LevelWarn, slog.LevelWarn},
		{LevelError, slog.LevelError},
		{LogLevel(999), slog.LevelInfo},
	}

	for _, test := range tests {
		result := test.level.SlogLevel()
		if result != test.expected {
			t.Errorf("LogLevel(%d).SlogLevel() = %v, expected %v", test.level, result, test.expected)
		}
	}
}

func TestParseLevel(t *testing.T) {
	tests := []struct {
		in      string
		want    LogLevel
		wantErr bool
	}{
		{"debug", LevelDebug, false},
		{"INFO", LevelInfo, false},
		{"", LevelInfo, false},
		{"warning", LevelWarn, false},
		{"WARN", LevelWarn, false},
		{"error", LevelError, false},
		{"verbose", LevelInfo, true},
	}
	for _, tt := range tests {
		got, err := ParseLevel(tt.in)
		if (err != nil) != tt.wantErr {
			t.Errorf("ParseLevel(%q) error = %v, wantErr %v", tt.in, err, tt.wantErr)
		}
		if got != tt.want {
			t.Errorf("ParseLevel(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestInitForCLI(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelInfo, &buf)

	Info("test-subsystem", "test message %d", 42)

	output := buf.String()
	if !strings.Contains(output, "test message 42") {
		t.Errorf("Expected log message in output, got %q", output)
	}
	if !strings.Contains(output, "test-subsystem") {
		t.Error("Expected subsystem to appear in CLI output")
	}
}

func TestLevelFiltering(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelWarn, &buf)

	Debug("sub", "debug line")
	Info("sub", "info line")
	Warn("sub", "warn line")
	Error("sub", errors.New("boom"), "error line")

	output := buf.String()
	if strings.Contains(output, "debug line") || strings.Contains(output, "info line") {
		t.Errorf("lines below WARN should be filtered, got %q", output)
	}
	if !strings.Contains(output, "warn line") {
		t.Error("expected warn line")
	}
	if !strings.Contains(output, "error line") || !strings.Contains(output, "boom") {
		t.Error("expected error line with error attribute")
	}
}

func TestFileSink(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelInfo, &buf)

	path := filepath.Join(t.TempDir(), "campaign.log")
	if err := AddFileSink(path); err != nil {
		t.Fatalf("AddFileSink: %v", err)
	}
	Info("CampaignEngine", "written to both")
	CloseFileSink()
	Info("CampaignEngine", "console only")

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read sink: %v", err)
	}
	if !strings.Contains(string(data), "written to both") {
		t.Errorf("file sink missing record: %q", data)
	}
	if strings.Contains(string(data), "console only") {
		t.Error("record written after CloseFileSink leaked into file")
	}
	if !strings.Contains(buf.String(), "console only") {
		t.Error("console output missing record")
	}
}

func TestNewComponentLogger(t *testing.T) {
	var buf bytes.Buffer
	InitForCLI(LevelDebug, &buf)

	NewComponentLogger("LiveReportingMetrics").Info("request", "action", "start_campaign")
	if !strings.Contains(buf.String(), "component=LiveReportingMetrics") {
		t.Errorf("component attribute missing: %q", buf.String())
	}
}
