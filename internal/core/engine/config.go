package engine

import (
	"encoding/json"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jinzhu/copier"
	"gopkg.in/yaml.v3"
)

// Config describes an engine context: where resources live, scene update
// pacing and the optional replication endpoint. YAML is the primary format,
// JSON is accepted for tooling that generates configs.
type Config struct {
	LogLevel       string   `json:"log_level,omitempty" yaml:"log_level,omitempty"`
	ResourceDirs   []string `json:"resource_dirs,omitempty" yaml:"resource_dirs,omitempty"`
	AutoReload     bool     `json:"auto_reload,omitempty" yaml:"auto_reload,omitempty"`
	AsyncLoadingMs int      `json:"async_loading_ms,omitempty" yaml:"async_loading_ms,omitempty"`

	Network NetworkConfig `json:"network,omitempty" yaml:"network,omitempty"`
}

// NetworkConfig configures the replication server and client.
type NetworkConfig struct {
	Transport      string `json:"transport,omitempty" yaml:"transport,omitempty"`
	Address        string `json:"address,omitempty" yaml:"address,omitempty"`
	TickIntervalMs int    `json:"tick_interval_ms,omitempty" yaml:"tick_interval_ms,omitempty"`
}

// TickInterval returns the replication tick period.
func (c NetworkConfig) TickInterval() time.Duration {
	if c.TickIntervalMs <= 0 {
		return 50 * time.Millisecond
	}
	return time.Duration(c.TickIntervalMs) * time.Millisecond
}

// DefaultConfig returns the development defaults.
func DefaultConfig() Config {
	return Config{
		LogLevel:       "info",
		ResourceDirs:   []string{"data"},
		AsyncLoadingMs: 5,
		Network: NetworkConfig{
			Transport:      "ws",
			Address:        "127.0.0.1:7777",
			TickIntervalMs: 50,
		},
	}
}

// LoadConfig reads a config file, YAML or JSON by extension, overlaid on
// the defaults so partial files stay valid.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, err
	}
	var loaded Config
	if strings.ToLower(filepath.Ext(path)) == ".json" {
		if err := json.Unmarshal(data, &loaded); err != nil {
			return Config{}, err
		}
	} else if err := yaml.Unmarshal(data, &loaded); err != nil {
		return Config{}, err
	}
	return mergeOverDefaults(loaded)
}

// ReadConfig decodes YAML config from a reader, overlaid on the defaults.
func ReadConfig(r io.Reader) (Config, error) {
	var loaded Config
	dec := yaml.NewDecoder(r)
	if err := dec.Decode(&loaded); err != nil && err != io.EOF {
		return Config{}, err
	}
	return mergeOverDefaults(loaded)
}

// mergeOverDefaults copies the set fields of loaded over the defaults,
// leaving untouched keys at their default values.
func mergeOverDefaults(loaded Config) (Config, error) {
	cfg := DefaultConfig()
	if err := copier.CopyWithOption(&cfg, &loaded, copier.Option{IgnoreEmpty: true, DeepCopy: true}); err != nil {
		return Config{}, err
	}
	return cfg, nil
}
