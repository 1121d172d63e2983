package events

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"strings"
	"testing"
)

func TestSinkEmitsPrefixedEvents(t *testing.T) {
	var buf bytes.Buffer
	sink := NewSink(slog.New(slog.NewJSONHandler(&buf, nil)), "acme", "employee-sync")

	sink.Info("phase_1_starting", "phase_1_starting")
	sink.Error("employee_not_found", "employee_not_found", "employee_id", "1001")
	sink.Success("pipeline_complete", "pipeline_complete")

	lines := strings.Split(strings.TrimSpace(buf.String()), "\n")
	if len(lines) != 3 {
		t.Fatalf("expected 3 log lines, got %d", len(lines))
	}

	var first map[string]any
	if err := json.Unmarshal([]byte(lines[0]), &first); err != nil {
		t.Fatalf("unmarshal first line: %v", err)
	}
	if first["event"] != "new_employees_sync.phase_1_starting" {
		t.Errorf("event = %v", first["event"])
	}
	if first["client"] != "acme" {
		t.Errorf("client = %v", first["client"])
	}

	var second map[string]any
	if err := json.Unmarshal([]byte(lines[1]), &second); err != nil {
		t.Fatalf("unmarshal second line: %v", err)
	}
	if second["level"] != "ERROR" {
		t.Errorf("level = %v", second["level"])
	}
	if second["employee_id"] != "1001" {
		t.Errorf("employee_id = %v", second["employee_id"])
	}

	var third map[string]any
	if err := json.Unmarshal([]byte(lines[2]), &third); err != nil {
		t.Fatalf("unmarshal third line: %v", err)
	}
	if third["outcome"] != "success" {
		t.Errorf("outcome = %v", third["outcome"])
	}
}

func TestNilSinkIsSafe(t *testing.T) {
	var sink *Sink
	sink.Info("x", "x")
	sink.Error("x", "x")
	sink.Success("x", "x")
}
