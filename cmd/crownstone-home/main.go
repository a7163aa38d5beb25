package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"gopkg.in/yaml.v3"

	"crownstone-home/internal/behaviour"
	"crownstone-home/internal/bus"
	"crownstone-home/internal/daytime"
	"crownstone-home/internal/hw"
	"crownstone-home/internal/presence"
	"crownstone-home/internal/store"
	"crownstone-home/internal/switching"
	"crownstone-home/internal/uart"
	"crownstone-home/internal/web"
)

// version is set at build time via -ldflags "-X main.version=..."
var version = "dev"

type Config struct {
	Hardware struct {
		Driver          string `yaml:"driver"` // "gpio" or "fake"
		RelayPin        int    `yaml:"relay_pin"`
		DimmerPin       int    `yaml:"dimmer_pin"`   // negative = no dimmer wired
		ThermalZone     string `yaml:"thermal_zone"` // empty disables the temperature guard
		OverheatCelsius int    `yaml:"overheat_celsius"`
	} `yaml:"hardware"`
	Presence struct {
		TimeoutSeconds uint32 `yaml:"timeout_seconds"`
	} `yaml:"presence"`
	Web struct {
		Listen         string   `yaml:"listen"`
		APIKey         string   `yaml:"api_key"`
		AllowedOrigins []string `yaml:"allowed_origins"`
	} `yaml:"web"`
	Store struct {
		Path string `yaml:"path"`
	} `yaml:"store"`
	MQTT struct {
		Enabled     bool   `yaml:"enabled"`
		Broker      string `yaml:"broker"`
		Username    string `yaml:"username"`
		Password    string `yaml:"password"`
		TopicPrefix string `yaml:"topic_prefix"`
		DeviceName  string `yaml:"device_name"`
	} `yaml:"mqtt"`
	UART struct {
		Enabled bool   `yaml:"enabled"`
		Port    string `yaml:"port"`
		Baud    int    `yaml:"baud"`
	} `yaml:"uart"`
	Log struct {
		Level  string `yaml:"level"`
		Format string `yaml:"format"`
	} `yaml:"log"`
}

func (c *Config) validate() error {
	switch c.Hardware.Driver {
	case "gpio", "fake":
	default:
		return fmt.Errorf("hardware.driver must be gpio or fake, got %q", c.Hardware.Driver)
	}
	if c.MQTT.Enabled && c.MQTT.Broker == "" {
		return fmt.Errorf("mqtt.broker is required when mqtt is enabled")
	}
	if c.UART.Enabled && c.UART.Port == "" {
		return fmt.Errorf("uart.port is required when uart is enabled")
	}
	return nil
}

func main() {
	// Temporary logger for config loading errors.
	bootLogger := slog.New(slog.NewTextHandler(os.Stderr, nil))

	cfgPath := "config.yaml"
	if len(os.Args) > 1 {
		cfgPath = os.Args[1]
	}

	cfg, err := loadConfig(cfgPath)
	if err != nil {
		bootLogger.Error("load config", "err", err)
		os.Exit(1)
	}

	if err := cfg.validate(); err != nil {
		bootLogger.Error("invalid config", "err", err)
		os.Exit(1)
	}

	// Create configured logger.
	logger := newLogger(cfg)
	slog.SetDefault(logger)
	logger.Info("crownstone-home starting", "version", version)

	// Open store and restore persisted flags.
	db, err := store.NewBoltStore(cfg.Store.Path)
	if err != nil {
		logger.Error("open store", "err", err)
		os.Exit(1)
	}
	defer db.Close()

	settings, err := db.GetSettings()
	if errors.Is(err, store.ErrNotFound) {
		settings = store.DefaultSettings()
	} else if err != nil {
		logger.Error("load settings", "err", err)
		os.Exit(1)
	}
	logger.Info("settings restored",
		"dimming_allowed", settings.DimmingAllowed,
		"switch_locked", settings.SwitchLocked,
		"behaviour_enabled", settings.BehaviourEnabled)

	b := bus.New(logger)
	systime := daytime.NewSystemTime(b, logger)

	// The tracker must see ticks and sightings before the aggregator runs its
	// own tick handler, so these subscriptions happen before the aggregator
	// is initialized.
	tracker := presence.NewTracker(b, cfg.Presence.TimeoutSeconds, logger)
	b.On(bus.EventTick, func(ev bus.Event) {
		if p, ok := ev.Data.(bus.TickPayload); ok {
			tracker.Tick(p.Uptime)
		}
	})
	b.On(bus.EventPresenceReport, func(ev bus.Event) {
		if p, ok := ev.Data.(bus.PresenceReportPayload); ok {
			tracker.Report(p.Profile, p.Present)
		}
	})

	rules := behaviour.NewStore(b, db, logger)
	if err := rules.Load(); err != nil {
		logger.Error("load behaviours", "err", err)
		os.Exit(1)
	}

	bh := behaviour.NewHandler(rules, systime, tracker, settings.BehaviourEnabled, logger)
	tw := behaviour.NewTwilightHandler(rules, systime, settings.BehaviourEnabled, logger)

	hwSwitch, err := createSwitch(cfg, logger)
	if err != nil {
		logger.Error("open switch hardware", "err", err)
		os.Exit(1)
	}
	defer hwSwitch.Close()

	smart := switching.NewSmartSwitch(hwSwitch, db, settings.DimmingAllowed, settings.SwitchLocked, logger)
	restoreSwitchState(db, smart, logger)

	agg := switching.NewAggregator(b, smart, bh, tw, systime, settings.SwitchLocked, logger)
	agg.Init()
	defer agg.Close()

	if cfg.Hardware.ThermalZone != "" {
		thermal := hw.NewThermalMonitor(b, cfg.Hardware.ThermalZone, cfg.Hardware.OverheatCelsius, logger)
		thermal.Start()
		defer thermal.Close()
	}

	// Seed the clock from the host; absolute corrections may still arrive
	// over the API.
	now := time.Now()
	_, offset := now.Zone()
	systime.SetTime(now.Unix() + int64(offset))

	// Start web server
	var webOpts []web.ServerOption
	if cfg.Web.APIKey != "" {
		webOpts = append(webOpts, web.WithAPIKey(cfg.Web.APIKey))
	}
	if len(cfg.Web.AllowedOrigins) > 0 {
		webOpts = append(webOpts, web.WithAllowedOrigins(cfg.Web.AllowedOrigins))
	}
	webOpts = append(webOpts, web.WithVersion(version))

	webServer := web.NewServer(web.Deps{
		Bus:        b,
		Rules:      rules,
		Aggregator: agg,
		Smart:      smart,
		Tracker:    tracker,
		Time:       systime,
		Settings:   db,
	}, logger, webOpts...)

	httpServer := &http.Server{
		Addr:         cfg.Web.Listen,
		Handler:      webServer,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  120 * time.Second,
	}

	go func() {
		logger.Info("web server starting", "addr", cfg.Web.Listen)
		if err := httpServer.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			logger.Error("http server", "err", err)
		}
	}()

	// Start MQTT bridge (no-op when built with no_mqtt tag).
	mqtt := initMQTT(b, cfg, logger)

	uartReporter := initUART(b, cfg, logger)

	// Second heartbeat drives time, presence timeouts and behaviour
	// re-evaluation.
	tickDone := make(chan struct{})
	go func() {
		ticker := time.NewTicker(time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ticker.C:
				systime.Tick()
			case <-tickDone:
				return
			}
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	sig := <-sigCh
	signal.Stop(sigCh)
	logger.Info("shutting down", "signal", sig)

	close(tickDone)
	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	mqtt.Stop()
	uartReporter.Stop()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		logger.Error("http server shutdown", "err", err)
	}
	webServer.Stop()

	logger.Info("goodbye")
}

func createSwitch(cfg *Config, logger *slog.Logger) (hw.Switch, error) {
	switch cfg.Hardware.Driver {
	case "fake":
		logger.Info("using fake switch hardware")
		return hw.NewFakeSwitch(), nil
	default:
		logger.Info("using gpio switch hardware",
			"relay_pin", cfg.Hardware.RelayPin, "dimmer_pin", cfg.Hardware.DimmerPin)
		sw, err := hw.NewGpiodSwitch(cfg.Hardware.RelayPin, cfg.Hardware.DimmerPin)
		if err != nil {
			return nil, err
		}
		return sw, nil
	}
}

// restoreSwitchState replays the last commanded intensity so the plug comes
// back in the state it was left in. A locked switch keeps the restored value
// as its pending intent.
func restoreSwitchState(db store.Store, smart *switching.SmartSwitch, logger *slog.Logger) {
	state, err := db.GetSwitchState()
	if errors.Is(err, store.ErrNotFound) {
		return
	}
	if err != nil {
		logger.Warn("load switch state", "err", err)
		return
	}
	if _, err := smart.Set(state.Intensity); err != nil && !errors.Is(err, switching.ErrSwitchLocked) {
		logger.Warn("restore switch state", "err", err)
	}
}

type uartStopper struct {
	reporter *uart.Reporter
}

func (u *uartStopper) Stop() {
	if u.reporter != nil {
		if err := u.reporter.Stop(); err != nil {
			slog.Warn("uart reporter stop", "err", err)
		}
	}
}

func initUART(b *bus.Bus, cfg *Config, logger *slog.Logger) *uartStopper {
	if !cfg.UART.Enabled {
		return &uartStopper{}
	}
	reporter, err := uart.NewReporter(uart.Config{
		Port:     cfg.UART.Port,
		BaudRate: cfg.UART.Baud,
	}, b, logger)
	if err != nil {
		logger.Error("uart reporter", "err", err)
		return &uartStopper{}
	}
	reporter.Start()
	return &uartStopper{reporter: reporter}
}

func loadConfig(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parse config: %w", err)
	}
	if cfg.Hardware.Driver == "" {
		cfg.Hardware.Driver = "gpio"
	}
	if cfg.Hardware.RelayPin == 0 {
		cfg.Hardware.RelayPin = hw.PinRelay
	}
	if cfg.Hardware.DimmerPin == 0 {
		cfg.Hardware.DimmerPin = hw.PinDimmer
	}
	if cfg.Hardware.ThermalZone == "" && cfg.Hardware.Driver == "gpio" {
		cfg.Hardware.ThermalZone = "/sys/class/thermal/thermal_zone0/temp"
	}
	if cfg.Web.Listen == "" {
		cfg.Web.Listen = "127.0.0.1:8080"
	}
	if cfg.Store.Path == "" {
		cfg.Store.Path = "crownstone-home.db"
	}
	if cfg.MQTT.TopicPrefix == "" {
		cfg.MQTT.TopicPrefix = "crownstone"
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = "info"
	}
	if cfg.Log.Format == "" {
		cfg.Log.Format = "text"
	}
	return &cfg, nil
}

func newLogger(cfg *Config) *slog.Logger {
	var level slog.Level
	switch strings.ToLower(cfg.Log.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	default:
		level = slog.LevelInfo
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	switch strings.ToLower(cfg.Log.Format) {
	case "json":
		handler = slog.NewJSONHandler(os.Stdout, opts)
	default:
		handler = slog.NewTextHandler(os.Stdout, opts)
	}
	return slog.New(handler)
}
