package storage

import (
	"os"
	"strconv"
	"strings"

	"gopkg.in/yaml.v3"
)

// ───────────────────────────────────────────────────────────────────────────
// Device and cursor configuration (§6)
// ───────────────────────────────────────────────────────────────────────────
//
// Device-open and cursor-open configuration both arrive as a string-typed
// key/value list (the host's extension-registration surface is out of
// scope, §1 — this just parses what it hands us). Parsing is a hand-rolled
// switch, matching the teacher's ParseStorageMode/DefaultStorageConfig
// style: no reflection, no struct tags.

// Default cleaner thresholds (§4.6): 10 MiB of cache bytes, or
// BYTELIMIT/(2*20) ops, whichever comes first.
const (
	defaultReclaimThresholdBytes = 10 * 1024 * 1024
	defaultReclaimOpsThreshold   = defaultReclaimThresholdBytes / (2 * 20)
)

// DeviceConfig holds the parsed device-open configuration.
type DeviceConfig struct {
	Devices          []string // kvs_devices: backing paths
	Parallelism      int
	Granularity      int
	AvgKeyLen        int
	AvgValLen        int
	WriteBufs        int
	ReadBufs         int
	CommitTimeout    int
	ReclaimThreshold int    // bytes; 0 = defaultReclaimThresholdBytes
	ReclaimPeriod    string // (domain stack) a 5-field cron expression; other values are stored but unused
	OpenDebug        bool
	OpenTruncate     bool
}

// DefaultDeviceConfig returns the configuration used when a key is absent.
func DefaultDeviceConfig() DeviceConfig {
	return DeviceConfig{
		Parallelism:      1,
		Granularity:      16 * 1024 * 1024,
		AvgKeyLen:        16,
		AvgValLen:        64,
		WriteBufs:        4,
		ReadBufs:         4,
		CommitTimeout:    0,
		ReclaimThreshold: defaultReclaimThresholdBytes,
	}
}

// ParseDeviceConfig parses the comma-separated key=value list §6 defines
// for device open. kvs_devices' value is itself semicolon-separated (commas
// are reserved for separating top-level key=value pairs). Unknown keys
// fail with invalid-argument.
func ParseDeviceConfig(s string) (DeviceConfig, error) {
	cfg := DefaultDeviceConfig()
	if strings.TrimSpace(s) == "" {
		return cfg, nil
	}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return cfg, invalidArgf("malformed device configuration entry %q", pair)
		}
		key, val := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])

		switch key {
		case "kvs_devices":
			cfg.Devices = strings.Split(val, ";")
		case "kvs_parallelism":
			n, err := strconv.Atoi(val)
			if err != nil {
				return cfg, invalidArgf("kvs_parallelism: %v", err)
			}
			cfg.Parallelism = n
		case "kvs_granularity":
			n, err := strconv.Atoi(val)
			if err != nil {
				return cfg, invalidArgf("kvs_granularity: %v", err)
			}
			cfg.Granularity = n
		case "kvs_avg_key_len":
			n, err := strconv.Atoi(val)
			if err != nil {
				return cfg, invalidArgf("kvs_avg_key_len: %v", err)
			}
			cfg.AvgKeyLen = n
		case "kvs_avg_val_len":
			n, err := strconv.Atoi(val)
			if err != nil {
				return cfg, invalidArgf("kvs_avg_val_len: %v", err)
			}
			cfg.AvgValLen = n
		case "kvs_write_bufs":
			n, err := strconv.Atoi(val)
			if err != nil {
				return cfg, invalidArgf("kvs_write_bufs: %v", err)
			}
			cfg.WriteBufs = n
		case "kvs_read_bufs":
			n, err := strconv.Atoi(val)
			if err != nil {
				return cfg, invalidArgf("kvs_read_bufs: %v", err)
			}
			cfg.ReadBufs = n
		case "kvs_commit_timeout":
			n, err := strconv.Atoi(val)
			if err != nil {
				return cfg, invalidArgf("kvs_commit_timeout: %v", err)
			}
			cfg.CommitTimeout = n
		case "kvs_reclaim_threshold":
			n, err := strconv.Atoi(val)
			if err != nil {
				return cfg, invalidArgf("kvs_reclaim_threshold: %v", err)
			}
			cfg.ReclaimThreshold = n
		case "kvs_reclaim_period":
			cfg.ReclaimPeriod = val
		case "kvs_open_o_debug":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return cfg, invalidArgf("kvs_open_o_debug: %v", err)
			}
			cfg.OpenDebug = b
		case "kvs_open_o_truncate":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return cfg, invalidArgf("kvs_open_o_truncate: %v", err)
			}
			cfg.OpenTruncate = b
		default:
			return cfg, invalidArgf("unknown device configuration key %q", key)
		}
	}
	return cfg, nil
}

// CursorConfig holds the parsed cursor-open configuration.
type CursorConfig struct {
	Append    bool // record-number objects only
	Overwrite bool
	Collator  Collator
}

// DefaultCursorConfig returns the configuration used when a key is absent.
func DefaultCursorConfig() CursorConfig {
	return CursorConfig{Collator: defaultCollator}
}

// ParseCursorConfig parses the comma-separated key=value list §6 defines
// for cursor open: append, overwrite. Collator is not string-configurable
// and must be set by the caller after parsing, if a non-default one is
// wanted.
func ParseCursorConfig(s string) (CursorConfig, error) {
	cfg := DefaultCursorConfig()
	if strings.TrimSpace(s) == "" {
		return cfg, nil
	}
	for _, pair := range strings.Split(s, ",") {
		pair = strings.TrimSpace(pair)
		if pair == "" {
			continue
		}
		kv := strings.SplitN(pair, "=", 2)
		if len(kv) != 2 {
			return cfg, invalidArgf("malformed cursor configuration entry %q", pair)
		}
		key, val := strings.TrimSpace(kv[0]), strings.TrimSpace(kv[1])

		switch key {
		case "append":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return cfg, invalidArgf("append: %v", err)
			}
			cfg.Append = b
		case "overwrite":
			b, err := strconv.ParseBool(val)
			if err != nil {
				return cfg, invalidArgf("overwrite: %v", err)
			}
			cfg.Overwrite = b
		default:
			return cfg, invalidArgf("unknown cursor configuration key %q", key)
		}
	}
	return cfg, nil
}

// ── Device-config-file loader [domain stack] ──────────────────────────────

// deviceConfigFile is the on-disk shape of a multi-device YAML fixture:
//
//	devices:
//	  dev1: "kvs_devices=/data/dev1,kvs_parallelism=4"
//	  dev2: "kvs_devices=/data/dev2,kvs_reclaim_period=*/5 * * * *"
type deviceConfigFile struct {
	Devices map[string]string `yaml:"devices"`
}

// LoadDeviceConfigFile reads a YAML file of named device configuration
// strings and parses each through ParseDeviceConfig. Useful for multi-device
// test fixtures and cmd/kvsctl, avoiding hand-written kvs_devices=... strings
// for every device in a deployment.
func LoadDeviceConfigFile(path string) (map[string]DeviceConfig, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, ioErrorf("read device config file %s: %v", path, err)
	}
	var raw deviceConfigFile
	if err := yaml.Unmarshal(data, &raw); err != nil {
		return nil, invalidArgf("parse device config file %s: %v", path, err)
	}
	out := make(map[string]DeviceConfig, len(raw.Devices))
	for name, kvList := range raw.Devices {
		cfg, err := ParseDeviceConfig(kvList)
		if err != nil {
			return nil, invalidArgf("device %q: %v", name, err)
		}
		out[name] = cfg
	}
	return out, nil
}
