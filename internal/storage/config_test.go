package storage

import (
	"os"
	"path/filepath"
	"testing"
)

func TestParseDeviceConfigDefaults(t *testing.T) {
	cfg, err := ParseDeviceConfig("")
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Parallelism != 1 || cfg.ReclaimThreshold != defaultReclaimThresholdBytes {
		t.Fatalf("unexpected defaults: %+v", cfg)
	}
}

func TestParseDeviceConfigFields(t *testing.T) {
	cfg, err := ParseDeviceConfig("kvs_devices=/a;/b,kvs_parallelism=4,kvs_open_o_debug=true,kvs_reclaim_period=5s")
	if err != nil {
		t.Fatal(err)
	}
	if len(cfg.Devices) != 2 || cfg.Devices[0] != "/a" || cfg.Devices[1] != "/b" {
		t.Fatalf("devices: %+v", cfg.Devices)
	}
	if cfg.Parallelism != 4 {
		t.Fatalf("parallelism: %d", cfg.Parallelism)
	}
	if !cfg.OpenDebug {
		t.Fatal("expected OpenDebug=true")
	}
	if cfg.ReclaimPeriod != "5s" {
		t.Fatalf("reclaim period: %q", cfg.ReclaimPeriod)
	}
}

func TestParseDeviceConfigUnknownKey(t *testing.T) {
	_, err := ParseDeviceConfig("bogus_key=1")
	if Code(err) != KindInvalidArgument {
		t.Fatalf("expected invalid-argument, got %v", err)
	}
}

func TestParseDeviceConfigBadInt(t *testing.T) {
	_, err := ParseDeviceConfig("kvs_parallelism=notanumber")
	if Code(err) != KindInvalidArgument {
		t.Fatalf("expected invalid-argument, got %v", err)
	}
}

func TestParseCursorConfig(t *testing.T) {
	cfg, err := ParseCursorConfig("append=true,overwrite=false")
	if err != nil {
		t.Fatal(err)
	}
	if !cfg.Append || cfg.Overwrite {
		t.Fatalf("unexpected cursor config: %+v", cfg)
	}
	if cfg.Collator == nil {
		t.Fatal("expected default collator to be set")
	}
}

func TestParseCursorConfigUnknownKey(t *testing.T) {
	_, err := ParseCursorConfig("frobnicate=1")
	if Code(err) != KindInvalidArgument {
		t.Fatalf("expected invalid-argument, got %v", err)
	}
}

func TestLoadDeviceConfigFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "devices.yaml")
	content := "devices:\n  dev1: \"kvs_devices=/data/dev1,kvs_parallelism=4\"\n  dev2: \"kvs_devices=/data/dev2\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	cfgs, err := LoadDeviceConfigFile(path)
	if err != nil {
		t.Fatal(err)
	}
	if len(cfgs) != 2 {
		t.Fatalf("expected 2 devices, got %d", len(cfgs))
	}
	if cfgs["dev1"].Parallelism != 4 {
		t.Fatalf("dev1 parallelism: %+v", cfgs["dev1"])
	}
	if len(cfgs["dev2"].Devices) != 1 || cfgs["dev2"].Devices[0] != "/data/dev2" {
		t.Fatalf("dev2 devices: %+v", cfgs["dev2"])
	}
}
