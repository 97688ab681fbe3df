package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/smazurov/edgelatency/internal/actuation"
	"github.com/smazurov/edgelatency/internal/transport"
)

func defaultOptions() *Options {
	return &Options{
		TransportKind:     "tcp",
		TCPPort:           5000,
		TCPWriteTimeoutMs: 50,
		BLEDeviceName:     "EDGE_LED",
		BLEMTU:            23,
		BroadcastChannel:  5,
		BroadcastBasePort: 47000,
		TriggerIntervalMs: 500,
		ClockHz:           160_000_000,
		TelemetryFormat:   "short",
		LEDBrightness:     32,
		LoggingLevel:      "info",
		LoggingFormat:     "text",
	}
}

func TestFirmwareConfig_Defaults(t *testing.T) {
	cfg, err := firmwareConfig(defaultOptions())
	if err != nil {
		t.Fatalf("firmwareConfig: %v", err)
	}
	if cfg.Transport != transport.KindTCP || cfg.Format != actuation.StyleShort {
		t.Errorf("kind/format = %q/%q", cfg.Transport, cfg.Format)
	}
	if cfg.TriggerInterval != 500*time.Millisecond || cfg.TCPWriteTimeout != 50*time.Millisecond {
		t.Errorf("durations = %v/%v", cfg.TriggerInterval, cfg.TCPWriteTimeout)
	}
	if cfg.BroadcastChannel != 5 || cfg.LEDBrightness != 32 || cfg.ClockHz != 160_000_000 {
		t.Errorf("numeric fields = %+v", cfg)
	}
}

func TestFirmwareConfig_Invalid(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Options)
		want   string
	}{
		{"kind", func(o *Options) { o.TransportKind = "zigbee" }, "zigbee"},
		{"format", func(o *Options) { o.TelemetryFormat = "csv" }, "csv"},
		{"port", func(o *Options) { o.TCPPort = 70000 }, "tcp.port"},
		{"mtu", func(o *Options) { o.BLEMTU = 10 }, "ble.mtu"},
		{"channel", func(o *Options) { o.BroadcastChannel = 256 }, "broadcast.channel"},
		{"base port", func(o *Options) { o.BroadcastBasePort = 65535 }, "broadcast.base_port"},
		{"interval", func(o *Options) { o.TriggerIntervalMs = -1 }, "trigger.interval_ms"},
		{"brightness", func(o *Options) { o.LEDBrightness = 0 }, "led.brightness"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			opts := defaultOptions()
			tt.mutate(opts)
			_, err := firmwareConfig(opts)
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want mention of %q", err, tt.want)
			}
		})
	}
}

func TestFirmwareConfig_BroadcastAliases(t *testing.T) {
	opts := defaultOptions()
	opts.TransportKind = "espnow"
	cfg, err := firmwareConfig(opts)
	if err != nil {
		t.Fatal(err)
	}
	if cfg.Transport != transport.KindBroadcast {
		t.Errorf("kind = %q, want broadcast", cfg.Transport)
	}
}

func TestLoggingConfig_MergesModules(t *testing.T) {
	path := filepath.Join(t.TempDir(), "edgelatency.toml")
	content := "[logging]\nlevel = \"error\"\n\n[logging.modules]\ntcp = \"debug\"\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	opts := defaultOptions()
	opts.Config = path
	opts.LoggingLevel = "warn"

	cfg := loggingConfig(opts)
	if cfg.Level != "warn" {
		t.Errorf("Level = %q, want resolved option value", cfg.Level)
	}
	if cfg.Modules["tcp"] != "debug" {
		t.Errorf("Modules = %v", cfg.Modules)
	}
}
