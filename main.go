package main

import (
	"context"
	"errors"
	"fmt"
	"math"
	"os"
	"time"

	"github.com/danielgtaylor/huma/v2/humacli"
	"github.com/smazurov/edgelatency/cmd"
	"github.com/smazurov/edgelatency/internal/actuation"
	"github.com/smazurov/edgelatency/internal/api"
	"github.com/smazurov/edgelatency/internal/config"
	"github.com/smazurov/edgelatency/internal/events"
	"github.com/smazurov/edgelatency/internal/firmware"
	"github.com/smazurov/edgelatency/internal/logging"
	"github.com/smazurov/edgelatency/internal/metrics"
	"github.com/smazurov/edgelatency/internal/metrics/collectors"
	"github.com/smazurov/edgelatency/internal/metrics/exporters"
	"github.com/smazurov/edgelatency/internal/systemd"
	"github.com/smazurov/edgelatency/internal/transport"
	"github.com/smazurov/edgelatency/internal/version"
)

// Options for the CLI - flat structure with toml mapping.
type Options struct {
	Config string `help:"Path to configuration file" short:"c" default:"edgelatency.toml"`

	// Transport selection, fixed for the lifetime of the process
	TransportKind string `help:"Telemetry transport (tcp, ble, broadcast)" short:"t" default:"tcp" toml:"transport.kind" env:"TRANSPORT_KIND"`

	TCPPort           int `help:"TCP listen port" default:"5000" toml:"tcp.port" env:"TCP_PORT"`
	TCPWriteTimeoutMs int `help:"TCP send deadline in milliseconds" default:"50" toml:"tcp.write_timeout_ms" env:"TCP_WRITE_TIMEOUT_MS"`

	BLEDeviceName string `help:"BLE advertised device name" default:"EDGE_LED" toml:"ble.device_name" env:"BLE_DEVICE_NAME"`
	BLEMTU        int    `help:"BLE ATT MTU assumed until negotiated" default:"23" toml:"ble.mtu" env:"BLE_MTU"`

	BroadcastChannel  int    `help:"Broadcast radio channel" default:"5" toml:"broadcast.channel" env:"BROADCAST_CHANNEL"`
	BroadcastBasePort int    `help:"UDP port of channel 0" default:"47000" toml:"broadcast.base_port" env:"BROADCAST_BASE_PORT"`
	BroadcastHost     string `help:"Broadcast destination (default 255.255.255.255)" default:"" toml:"broadcast.host" env:"BROADCAST_HOST"`

	// Edge sources
	GPIOPin           string `help:"Input pin name, or manual for API-triggered edges only; empty disables the physical input" default:"" toml:"gpio.pin" env:"GPIO_PIN"`
	TriggerIntervalMs int    `help:"Periodic self-trigger interval in milliseconds, 0 disables" default:"500" toml:"trigger.interval_ms" env:"TRIGGER_INTERVAL_MS"`
	ClockHz           int    `help:"Cycle counter frequency" default:"160000000" toml:"clock.hz" env:"CLOCK_HZ"`

	TelemetryFormat string `help:"Telemetry line format (short, latency)" default:"short" toml:"telemetry.format" env:"TELEMETRY_FORMAT"`

	// Indicator
	LEDName       string `help:"Indicator LED under /sys/class/leds, empty autodetects" default:"" toml:"led.name" env:"LED_NAME"`
	LEDBrightness int    `help:"Indicator red level when on (1-255)" default:"32" toml:"led.brightness" env:"LED_BRIGHTNESS"`
	LEDStatusName string `help:"Optional LED showing recipient presence" default:"" toml:"led.status_name" env:"LED_STATUS_NAME"`

	// HTTP API
	APIEnabled  bool   `help:"Serve the HTTP API" default:"true" toml:"api.enabled" env:"API_ENABLED"`
	APIPort     string `help:"HTTP API listen address" short:"p" default:":8090" toml:"api.port" env:"API_PORT"`
	APIUsername string `help:"Basic auth username, empty disables auth" default:"" toml:"api.username" env:"API_USERNAME"`
	APIPassword string `help:"Basic auth password" default:"" toml:"api.password" env:"API_PASSWORD"`

	// systemd
	SystemdUnit    string `help:"Unit name for the service control endpoints, empty disables them" default:"edgelatency.service" toml:"systemd.unit" env:"SYSTEMD_UNIT"`
	SystemdUserBus bool   `help:"Use the user bus instead of the system bus" default:"false" toml:"systemd.user" env:"SYSTEMD_USER"`

	// Logging
	LoggingLevel  string `help:"Global logging level (debug, info, warn, error)" default:"info" toml:"logging.level" env:"LOGGING_LEVEL"`
	LoggingFormat string `help:"Logging format (text, json)" default:"text" toml:"logging.format" env:"LOGGING_FORMAT"`
}

// firmwareConfig validates opts and converts them.
func firmwareConfig(opts *Options) (firmware.Config, error) {
	var cfg firmware.Config

	kind, err := transport.ParseKind(opts.TransportKind)
	if err != nil {
		return cfg, err
	}
	style, err := actuation.ParseStyle(opts.TelemetryFormat)
	if err != nil {
		return cfg, err
	}

	switch {
	case opts.TCPPort < 1 || opts.TCPPort > math.MaxUint16:
		return cfg, fmt.Errorf("tcp.port %d out of range", opts.TCPPort)
	case opts.TCPWriteTimeoutMs < 0:
		return cfg, fmt.Errorf("tcp.write_timeout_ms must not be negative")
	case opts.BLEMTU != 0 && opts.BLEMTU < 23:
		return cfg, fmt.Errorf("ble.mtu %d below the ATT minimum of 23", opts.BLEMTU)
	case opts.BroadcastChannel < 0 || opts.BroadcastChannel > math.MaxUint8:
		return cfg, fmt.Errorf("broadcast.channel %d out of range", opts.BroadcastChannel)
	case opts.BroadcastBasePort < 1 || opts.BroadcastBasePort+opts.BroadcastChannel > math.MaxUint16:
		return cfg, fmt.Errorf("broadcast.base_port %d out of range", opts.BroadcastBasePort)
	case opts.TriggerIntervalMs < 0:
		return cfg, fmt.Errorf("trigger.interval_ms must not be negative")
	case opts.ClockHz < 0 || int64(opts.ClockHz) > math.MaxUint32:
		return cfg, fmt.Errorf("clock.hz %d out of range", opts.ClockHz)
	case opts.LEDBrightness < 1 || opts.LEDBrightness > math.MaxUint8:
		return cfg, fmt.Errorf("led.brightness %d out of range", opts.LEDBrightness)
	}

	return firmware.Config{
		Transport:         kind,
		TCPPort:           opts.TCPPort,
		TCPWriteTimeout:   time.Duration(opts.TCPWriteTimeoutMs) * time.Millisecond,
		BLEDeviceName:     opts.BLEDeviceName,
		BLEMTU:            opts.BLEMTU,
		BroadcastChannel:  uint8(opts.BroadcastChannel),
		BroadcastBasePort: opts.BroadcastBasePort,
		BroadcastHost:     opts.BroadcastHost,
		GPIOPin:           opts.GPIOPin,
		TriggerInterval:   time.Duration(opts.TriggerIntervalMs) * time.Millisecond,
		ClockHz:           uint32(opts.ClockHz),
		Format:            style,
		LEDName:           opts.LEDName,
		LEDBrightness:     uint8(opts.LEDBrightness),
		StatusLEDName:     opts.LEDStatusName,
	}, nil
}

// loggingConfig merges module levels from the file with the resolved
// global level and format.
func loggingConfig(opts *Options) logging.Config {
	cfg, err := config.LoadLoggingConfig(opts.Config)
	if err != nil {
		cfg = logging.Config{Modules: map[string]string{}}
	}
	cfg.Level = opts.LoggingLevel
	cfg.Format = opts.LoggingFormat
	return cfg
}

func main() {
	var cli humacli.CLI
	cli = humacli.New(func(hooks humacli.Hooks, opts *Options) {
		loadErr := config.LoadConfig(opts, cli.Root())

		logging.Initialize(loggingConfig(opts))
		logging.SetLogCallback(func(entry logging.LogEntry) {
			metrics.IncLogEntry(entry.Level)
		})
		logger := logging.GetLogger("main")

		if loadErr != nil {
			logger.Error("Failed to load configuration", "config", opts.Config, "error", loadErr)
			os.Exit(1)
		}

		fwCfg, err := firmwareConfig(opts)
		if err != nil {
			logger.Error("Invalid configuration", "error", err)
			os.Exit(1)
		}

		bus := events.New()

		fw, err := firmware.Build(fwCfg, firmware.Deps{Bus: bus})
		if err != nil {
			logger.Error("Failed to assemble firmware", "error", err)
			os.Exit(1)
		}

		recorder := metrics.NewRecorder(bus, logging.GetLogger("metrics"))
		edgeCollector := collectors.NewEdgeCollector(fw.Notifier(), 5*time.Second)
		notifier := systemd.NewNotifier(logging.GetLogger("systemd"))

		var watcher *config.Watcher[logging.Config]
		if _, statErr := os.Stat(opts.Config); statErr == nil {
			watcher = config.NewConfigWatcher(opts.Config, config.LoadLoggingConfig, logging.GetLogger("config"))
			watcher.OnReload(func(cfg logging.Config) {
				logging.SetLevels(cfg)
				logger.Info("Logging levels reloaded", "level", cfg.Level, "modules", len(cfg.Modules))
			})
		}

		var sdManager *systemd.Manager
		var server *api.Server
		if opts.APIEnabled {
			apiOpts := api.Options{
				AuthUsername:   opts.APIUsername,
				AuthPassword:   opts.APIPassword,
				Firmware:       fw,
				Events:         recorder,
				MetricsHandler: exporters.HTTPHandler(),
			}
			if opts.SystemdUnit != "" {
				m, sdErr := systemd.NewManager(context.Background(), opts.SystemdUserBus)
				if sdErr != nil {
					logger.Warn("systemd D-Bus unavailable, service endpoints disabled", "error", sdErr)
				} else {
					sdManager = m
					apiOpts.Systemd = m
					apiOpts.ServiceUnit = opts.SystemdUnit
				}
			}
			server = api.NewServer(apiOpts)
		}

		ctx, cancel := context.WithCancel(context.Background())

		hooks.OnStart(func() {
			logger.Info("Starting edgelatency", "version", version.Get().Long(), "transport", fwCfg.Transport)

			recorder.Start()
			if startErr := fw.Start(ctx); startErr != nil {
				logger.Error("Failed to start firmware", "error", startErr)
				os.Exit(1)
			}
			if startErr := edgeCollector.Start(ctx); startErr != nil {
				logger.Warn("Failed to start edge collector", "error", startErr)
			}
			if watcher != nil {
				if startErr := watcher.Start(ctx); startErr != nil {
					logger.Warn("Failed to watch config file", "error", startErr)
				}
			}

			notifier.Ready()
			notifier.Status(fmt.Sprintf("transport %s", fwCfg.Transport))
			go notifier.RunWatchdog(ctx)

			if server == nil {
				<-ctx.Done()
				return
			}
			logger.Info("Starting HTTP server", "addr", opts.APIPort)
			if startErr := server.Start(opts.APIPort); startErr != nil {
				logger.Error("Failed to start HTTP server", "error", startErr)
				os.Exit(1)
			}
		})

		hooks.OnStop(func() {
			logger.Info("Shutting down")
			notifier.Stopping()

			if server != nil {
				if stopErr := server.Stop(); stopErr != nil {
					logger.Error("Error stopping HTTP server", "error", stopErr)
				}
			}
			cancel()

			if stopErr := fw.Stop(); stopErr != nil && !errors.Is(stopErr, context.Canceled) {
				logger.Error("Error stopping firmware", "error", stopErr)
			}
			if watcher != nil {
				_ = watcher.Stop()
			}
			_ = edgeCollector.Stop()
			recorder.Stop()
			if sdManager != nil {
				sdManager.Close()
			}
		})
	})

	cli.Root().AddCommand(cmd.CreateListenCmd())
	cli.Root().AddCommand(cmd.CreateVersionCmd())

	cli.Run()
}
