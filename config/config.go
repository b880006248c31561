// Package config loads settings from defaults, an optional YAML file and
// the environment, in that order.
// file: config/config.go
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"go-button-wars/engine"
	"go-button-wars/hal"
	"go-button-wars/watchdog"
	"gopkg.in/yaml.v3"
)

// Pins are BCM GPIO numbers.
type Pins struct {
	ButtonP1   int `yaml:"button_p1"`
	ButtonP2   int `yaml:"button_p2"`
	LedOnboard int `yaml:"led_onboard"`
	LedP1      int `yaml:"led_p1"`
	LedP2      int `yaml:"led_p2"`
}

// Config is the full runtime configuration.
type Config struct {
	Environment    string `yaml:"environment"`
	LogDir         string `yaml:"log_dir"`
	LogLevel       string `yaml:"log_level"`
	ListenAddr     string `yaml:"listen_addr"`
	ApplicationURL string `yaml:"application_url"`
	WebsocketURL   string `yaml:"websocket_url"`

	HALBackend     string `yaml:"hal_backend"`
	SimBots        bool   `yaml:"sim_bots"`
	Pins           Pins   `yaml:"pins"`
	WatchdogDevice string `yaml:"watchdog_device"`

	TotalRounds           int           `yaml:"total_rounds"`
	Debounce              time.Duration `yaml:"debounce"`
	CalibrateDebounce     bool          `yaml:"calibrate_debounce"`
	CalibrationWindow     time.Duration `yaml:"calibration_window"`
	CalibrationIterations int           `yaml:"calibration_iterations"`
	RandomDelayMin        time.Duration `yaml:"random_delay_min"`
	RandomDelayMax        time.Duration `yaml:"random_delay_max"`
	InterRoundDelay       time.Duration `yaml:"inter_round_delay"`
	StartTimeout          time.Duration `yaml:"start_timeout"`

	WatchdogTimeout    time.Duration `yaml:"watchdog_timeout"`
	FeedInterval       time.Duration `yaml:"feed_interval"`
	MonitorTick        time.Duration `yaml:"monitor_tick"`
	MonitorLockTimeout time.Duration `yaml:"monitor_lock_timeout"`
	LongPressWarn      time.Duration `yaml:"long_press_warn"`
	LongPressReset     time.Duration `yaml:"long_press_reset"`

	NATSURL          string `yaml:"nats_url"`
	NATSSubject      string `yaml:"nats_subject"`
	MetricsEnabled   bool   `yaml:"metrics_enabled"`
	MetricsNamespace string `yaml:"metrics_namespace"`
	XRayEnabled      bool   `yaml:"xray_enabled"`
}

// Default returns the built-in configuration.
func Default() Config {
	return Config{
		Environment:    "development",
		LogDir:         "./logs",
		LogLevel:       "",
		ListenAddr:     ":8080",
		ApplicationURL: "http://localhost:8080",

		HALBackend: "sim",
		SimBots:    true,
		Pins: Pins{
			ButtonP1:   17,
			ButtonP2:   27,
			LedOnboard: 22,
			LedP1:      5,
			LedP2:      6,
		},
		WatchdogDevice: "/dev/watchdog",

		TotalRounds:           5,
		Debounce:              150 * time.Millisecond,
		CalibrationWindow:     100 * time.Millisecond,
		CalibrationIterations: 10,
		RandomDelayMin:        2000 * time.Millisecond,
		RandomDelayMax:        5000 * time.Millisecond,
		InterRoundDelay:       2 * time.Second,
		StartTimeout:          10 * time.Second,

		WatchdogTimeout:    3 * time.Second,
		FeedInterval:       500 * time.Millisecond,
		MonitorTick:        50 * time.Millisecond,
		MonitorLockTimeout: 10 * time.Millisecond,
		LongPressWarn:      time.Second,
		LongPressReset:     3 * time.Second,

		NATSSubject:      "buttonwars",
		MetricsNamespace: "ButtonWars",
	}
}

// Path returns the config file location from BUTTON_WARS_CONFIG, default config.yaml.
func Path() string {
	return getEnv("BUTTON_WARS_CONFIG", "config.yaml")
}

// Load builds the configuration: defaults, then the YAML file at path (a
// missing file is fine), then environment overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config %s: %w", path, err)
		default:
			if err := yaml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

func (c *Config) applyEnv() error {
	c.Environment = getEnv("APP_ENV", c.Environment)
	c.LogDir = getEnv("LOG_DIR", c.LogDir)
	c.LogLevel = getEnv("LOG_LEVEL", c.LogLevel)
	c.ListenAddr = getEnv("LISTEN_ADDR", c.ListenAddr)
	c.ApplicationURL = getEnv("APPLICATION_URL", c.ApplicationURL)
	c.WebsocketURL = getEnv("WEBSOCKET_URL", c.WebsocketURL)
	c.HALBackend = getEnv("HAL_BACKEND", c.HALBackend)
	c.WatchdogDevice = getEnv("WATCHDOG_DEVICE", c.WatchdogDevice)
	c.NATSURL = getEnv("NATS_URL", c.NATSURL)
	c.NATSSubject = getEnv("NATS_SUBJECT", c.NATSSubject)
	c.MetricsNamespace = getEnv("METRICS_NAMESPACE", c.MetricsNamespace)

	var err error
	if c.SimBots, err = getEnvAsBool("SIM_BOTS", c.SimBots); err != nil {
		return err
	}
	if c.MetricsEnabled, err = getEnvAsBool("METRICS_ENABLED", c.MetricsEnabled); err != nil {
		return err
	}
	if c.XRayEnabled, err = getEnvAsBool("XRAY_ENABLED", c.XRayEnabled); err != nil {
		return err
	}
	if c.CalibrateDebounce, err = getEnvAsBool("CALIBRATE_DEBOUNCE", c.CalibrateDebounce); err != nil {
		return err
	}
	if c.TotalRounds, err = getEnvAsInt("TOTAL_ROUNDS", c.TotalRounds); err != nil {
		return err
	}
	if c.Debounce, err = getEnvAsDuration("DEBOUNCE", c.Debounce); err != nil {
		return err
	}
	if c.WatchdogTimeout, err = getEnvAsDuration("WATCHDOG_TIMEOUT", c.WatchdogTimeout); err != nil {
		return err
	}
	return nil
}

// Validate rejects configurations the game cannot run with.
func (c Config) Validate() error {
	var problems []string
	positive := map[string]time.Duration{
		"debounce":             c.Debounce,
		"start_timeout":        c.StartTimeout,
		"watchdog_timeout":     c.WatchdogTimeout,
		"feed_interval":        c.FeedInterval,
		"monitor_tick":         c.MonitorTick,
		"monitor_lock_timeout": c.MonitorLockTimeout,
		"long_press_warn":      c.LongPressWarn,
		"long_press_reset":     c.LongPressReset,
	}
	for name, d := range positive {
		if d <= 0 {
			problems = append(problems, fmt.Sprintf("%s must be positive, got %v", name, d))
		}
	}
	if c.TotalRounds < 1 {
		problems = append(problems, fmt.Sprintf("total_rounds must be >= 1, got %d", c.TotalRounds))
	}
	if c.RandomDelayMin < 0 || c.RandomDelayMin > c.RandomDelayMax {
		problems = append(problems, fmt.Sprintf("random delay range [%v, %v] is invalid", c.RandomDelayMin, c.RandomDelayMax))
	}
	if c.InterRoundDelay < 0 {
		problems = append(problems, "inter_round_delay must not be negative")
	}
	if c.FeedInterval >= c.WatchdogTimeout {
		problems = append(problems, "feed_interval must be shorter than watchdog_timeout")
	}
	if c.LongPressWarn > c.LongPressReset {
		problems = append(problems, "long_press_warn must not exceed long_press_reset")
	}
	if c.CalibrateDebounce && (c.CalibrationWindow <= 0 || c.CalibrationIterations < 1) {
		problems = append(problems, "calibration needs a positive window and at least one iteration")
	}
	switch c.HALBackend {
	case "sim", "rpio":
	default:
		problems = append(problems, fmt.Sprintf("unknown hal_backend %q", c.HALBackend))
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid config: %s", strings.Join(problems, "; "))
	}
	return nil
}

// HALOptions maps the config onto hal.Open options.
func (c Config) HALOptions() hal.Options {
	return hal.Options{
		Backend: c.HALBackend,
		Pins: hal.Pins{
			ButtonP1:   c.Pins.ButtonP1,
			ButtonP2:   c.Pins.ButtonP2,
			LedOnboard: c.Pins.LedOnboard,
			LedP1:      c.Pins.LedP1,
			LedP2:      c.Pins.LedP2,
		},
		WatchdogDevice: c.WatchdogDevice,
	}
}

// EngineSettings maps the config onto the match timings.
func (c Config) EngineSettings() engine.Settings {
	return engine.Settings{
		TotalRounds:     c.TotalRounds,
		RandomDelayMin:  c.RandomDelayMin,
		RandomDelayMax:  c.RandomDelayMax,
		InterRoundDelay: c.InterRoundDelay,
		StartTimeout:    c.StartTimeout,
	}
}

// MonitorConfig maps the config onto the long-press monitor.
func (c Config) MonitorConfig() watchdog.MonitorConfig {
	return watchdog.MonitorConfig{
		Tick:       c.MonitorTick,
		LockBudget: c.MonitorLockTimeout,
		WarnAfter:  c.LongPressWarn,
		ResetAfter: c.LongPressReset,
	}
}

// --------------- env helpers -----------------

func getEnv(key, fallback string) string {
	if v, ok := os.LookupEnv(key); ok && v != "" {
		return v
	}
	return fallback
}

func getEnvAsInt(key string, fallback int) (int, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return n, nil
}

func getEnvAsBool(key string, fallback bool) (bool, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return b, nil
}

func getEnvAsDuration(key string, fallback time.Duration) (time.Duration, error) {
	v := getEnv(key, "")
	if v == "" {
		return fallback, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fallback, fmt.Errorf("%s: %w", key, err)
	}
	return d, nil
}
