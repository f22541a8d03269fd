package config

import (
	"os"
	"sync"

	"gopkg.in/yaml.v2"
)

// OverridesConfig holds a map of device-local overrides, keyed by
// device short ID. Grounded on the teacher's TenantsConfig: the same
// "global config + named overrides" shape, with "tenant" narrowed to
// "device" since a Uniot device has no multi-tenancy concept.
type OverridesConfig struct {
	Devices map[string]Config `yaml:"devices"`
}

// Manager resolves the effective config for a device: the global
// config with that device's override fields layered on top.
type Manager struct {
	globalConfig *Config
	overrides    map[string]Config
	mu           sync.RWMutex
}

// NewManager loads the global config from masterPath and the optional
// per-device overrides from overridesPath. A missing overrides file is
// not an error — it just means no device has an override.
func NewManager(masterPath, overridesPath string) (*Manager, error) {
	global, err := LoadConfig(masterPath)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(overridesPath)
	if err != nil {
		if os.IsNotExist(err) {
			return &Manager{globalConfig: global, overrides: make(map[string]Config)}, nil
		}
		return nil, err
	}
	defer f.Close()

	var oc OverridesConfig
	if err := yaml.NewDecoder(f).Decode(&oc); err != nil {
		return nil, err
	}

	return &Manager{globalConfig: global, overrides: oc.Devices}, nil
}

// Get returns the effective config for deviceID: the global config
// with any non-zero override fields applied on top.
func (m *Manager) Get(deviceID string) *Config {
	m.mu.RLock()
	defer m.mu.RUnlock()

	effective := *m.globalConfig

	override, ok := m.overrides[deviceID]
	if !ok {
		return &effective
	}

	if override.CreatorID != "" {
		effective.CreatorID = override.CreatorID
	}
	if override.Storage.BaseDir != "" {
		effective.Storage.BaseDir = override.Storage.BaseDir
	}
	if override.MQTT.Broker != "" {
		effective.MQTT.Broker = override.MQTT.Broker
	}
	if override.Network.MaxRetries != 0 {
		effective.Network.MaxRetries = override.Network.MaxRetries
	}
	if override.Network.APIPAddress != "" {
		effective.Network.APIPAddress = override.Network.APIPAddress
	}
	if override.Network.ScanPeriodSec != 0 {
		effective.Network.ScanPeriodSec = override.Network.ScanPeriodSec
	}
	if override.Scheduler.TickMS != 0 {
		effective.Scheduler.TickMS = override.Scheduler.TickMS
	}

	return &effective
}
