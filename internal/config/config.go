// Package config loads the device's YAML configuration, grounded on
// the teacher's internal/config/config.go + manager.go split: a
// single LoadConfig(path) plus a Manager overlaying per-device
// overrides on a global config — here, "tenant override" becomes
// "device-local override" since a Uniot device has no tenants.
package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v2"
)

// StorageConfig configures the flash-storage-as-directory mount (C).
type StorageConfig struct {
	BaseDir string `yaml:"base_dir"`
}

// MQTTConfig configures the MQTT bridge (L).
type MQTTConfig struct {
	Broker string `yaml:"broker"`
}

// NetworkConfig configures the network state machine (I).
type NetworkConfig struct {
	MaxRetries    int    `yaml:"max_retries"`
	APIPAddress   string `yaml:"ap_ip_address"`
	ScanPeriodSec int    `yaml:"scan_period_sec"`
}

// SchedulerConfig configures the main loop's tick rate.
type SchedulerConfig struct {
	TickMS int `yaml:"tick_ms"`
}

// Config is the top-level device configuration.
type Config struct {
	CreatorID string          `yaml:"creator_id"`
	Storage   StorageConfig   `yaml:"storage"`
	MQTT      MQTTConfig      `yaml:"mqtt"`
	Network   NetworkConfig   `yaml:"network"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
}

// Default returns the spec's documented defaults (§4.I/§6): 3 STA
// connect retries, 10s scan period, mqtt.uniot.io:1883, 10ms scheduler
// tick.
func Default() Config {
	return Config{
		CreatorID: "uniot-build",
		Storage:   StorageConfig{BaseDir: "./uniot-data"},
		MQTT:      MQTTConfig{Broker: "tcp://mqtt.uniot.io:1883"},
		Network:   NetworkConfig{MaxRetries: 3, APIPAddress: "1.1.1.1/24", ScanPeriodSec: 10},
		Scheduler: SchedulerConfig{TickMS: 10},
	}
}

// LoadConfig reads and parses a YAML file at path, overlaying it onto
// Default() so a partial file only needs to name what it overrides. A
// missing file is not an error — it simply means "use the defaults."
func LoadConfig(path string) (*Config, error) {
	cfg := Default()

	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return &cfg, nil
		}
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()

	if err := yaml.NewDecoder(f).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("config: decode %s: %w", path, err)
	}
	return &cfg, nil
}
