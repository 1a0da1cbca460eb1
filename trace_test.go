package mplsverify

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gopkg.in/yaml.v3"
)

func TestTraceManagerInactive(t *testing.T) {
	tm := CreateTraceManager("idle", false)
	if tm.Active() {
		t.Error("inactive manager reports active")
	}
	tm.AddTrace(0, TraceInst{TraceStep: "1", TraceType: "hop"})
	if len(tm.Traces) != 0 {
		t.Error("inactive manager stored a record")
	}
	tm.AddName(3, "S1", "router")
	if len(tm.NameByID) != 0 {
		t.Error("inactive manager stored a name")
	}
	if tm.WriteToFile(filepath.Join(t.TempDir(), "t.yaml"), false) {
		t.Error("inactive manager wrote a file")
	}
}

func TestTraceManagerRecords(t *testing.T) {
	tm := CreateTraceManager("exp", true)
	AddHopTrace(tm, 4, 1, "S2", "to1", "to2", []string{"20"}, "forward")
	AddHopTrace(tm, 4, 2, "S3", "to2", "to3", []string{"21"}, "forward")
	AddHopTrace(tm, 9, 1, "S2", "to1", "to2", []string{"20"}, "forward")

	if len(tm.Traces[4]) != 2 || len(tm.Traces[9]) != 1 {
		t.Fatalf("records misfiled: %d under 4, %d under 9",
			len(tm.Traces[4]), len(tm.Traces[9]))
	}

	// the serialized record round-trips through yaml
	var ht HopTrace
	err := yaml.Unmarshal([]byte(tm.Traces[4][0].TraceStr), &ht)
	if err != nil {
		t.Fatalf("hop record does not parse: %v", err)
	}
	if ht.Router != "S2" || ht.Step != 1 || len(ht.Labels) != 1 || ht.Labels[0] != "20" {
		t.Errorf("unexpected hop record %+v", ht)
	}
}

func TestTraceManagerNoteNetwork(t *testing.T) {
	net := linearNetwork(t)
	tm := CreateTraceManager("exp", true)
	tm.NoteNetwork(net)

	if len(tm.NameByID) != len(net.Routers)+len(net.Links) {
		t.Fatalf("expected %d dictionary entries, got %d",
			len(net.Routers)+len(net.Links), len(tm.NameByID))
	}
	nt := tm.NameByID[net.RouterByName("S2").Number]
	if nt.Name != "S2" || nt.Type != "router" {
		t.Errorf("unexpected dictionary entry %+v", nt)
	}
}

func TestTraceManagerWriteToFile(t *testing.T) {
	tm := CreateTraceManager("exp", true)
	AddHopTrace(tm, 0, 2, "S3", "to2", "to3", []string{"21"}, "forward")
	AddHopTrace(tm, 0, 1, "S2", "to1", "to2", []string{"20"}, "forward")

	filename := filepath.Join(t.TempDir(), "trace.yaml")
	if !tm.WriteToFile(filename, true) {
		t.Fatal("active manager refused to write")
	}

	dict, err := os.ReadFile(filename)
	if err != nil {
		t.Fatalf("cannot read trace file: %v", err)
	}
	loaded := TraceManager{}
	err = yaml.Unmarshal(dict, &loaded)
	if err != nil {
		t.Fatalf("trace file does not parse: %v", err)
	}
	merged := loaded.Traces[0]
	if len(merged) != 2 {
		t.Fatalf("expected 2 merged records, got %d", len(merged))
	}
	// global order sorts by step
	if merged[0].TraceStep != "1" || merged[1].TraceStep != "2" {
		t.Errorf("records not in step order: %v", merged)
	}
	if !strings.Contains(merged[0].TraceStr, "S2") {
		t.Errorf("first record does not mention S2: %s", merged[0].TraceStr)
	}
}
