package mplsverify

import (
	"path/filepath"
	"reflect"
	"testing"
)

func TestReadEvalConfigDefaults(t *testing.T) {
	cfg := DefaultEvalConfig()
	if cfg.MaxHops != DefaultMaxHops || cfg.ScenarioCap != 1<<20 {
		t.Errorf("unexpected defaults %+v", cfg)
	}
	if cfg.LogLevel != "info" || cfg.LogFormat != "text" {
		t.Errorf("unexpected logging defaults %+v", cfg)
	}
}

func TestReadEvalConfigPartial(t *testing.T) {
	// fields absent from the document keep their defaults
	cfg, err := ReadEvalConfig("", true, []byte("workers: 3\nsamplecount: 100\n"))
	if err != nil {
		t.Fatalf("ReadEvalConfig failed: %v", err)
	}
	if cfg.Workers != 3 || cfg.SampleCount != 100 {
		t.Errorf("overridden fields wrong: %+v", cfg)
	}
	if cfg.MaxHops != DefaultMaxHops {
		t.Errorf("untouched field lost its default: %+v", cfg)
	}
}

func TestEvalConfigRoundTrip(t *testing.T) {
	cfg := DefaultEvalConfig()
	cfg.Workers = 7
	cfg.TimeoutSecs = 2.5
	cfg.TraceFile = "out.yaml"

	for _, name := range []string{"cfg.yaml", "cfg.json"} {
		filename := filepath.Join(t.TempDir(), name)
		err := cfg.WriteToFile(filename)
		if err != nil {
			t.Fatalf("WriteToFile(%s) failed: %v", name, err)
		}
		useYAML := filepath.Ext(name) == ".yaml"
		loaded, err := ReadEvalConfig(filename, useYAML, []byte{})
		if err != nil {
			t.Fatalf("ReadEvalConfig(%s) failed: %v", name, err)
		}
		if !reflect.DeepEqual(cfg, loaded) {
			t.Errorf("%s round trip changed the config: %+v vs %+v", name, cfg, loaded)
		}
	}
}

func TestTopoDescRoundTrip(t *testing.T) {
	td, rd := linearDescs()

	topoFile := filepath.Join(t.TempDir(), "topo.yaml")
	err := td.WriteToFile(topoFile)
	if err != nil {
		t.Fatalf("topology WriteToFile failed: %v", err)
	}
	routeFile := filepath.Join(t.TempDir(), "routes.json")
	err = rd.WriteToFile(routeFile)
	if err != nil {
		t.Fatalf("routing WriteToFile failed: %v", err)
	}

	err = (&GraphDesc{Name: "g"}).WriteToFile(filepath.Join(t.TempDir(), "g.noext"))
	if err == nil {
		t.Error("unrecognized extension accepted")
	}
}
