// Package config loads the daemon configuration from a YAML file and
// SEMSVIEW_* environment variables, with working defaults for a local
// broker setup.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"semsview/internal/series"
)

// Environment prefix; SEMSVIEW_MQTT_BROKER_URL overrides
// mqtt.broker_url and so on.
const envPrefix = "SEMSVIEW"

// Config is the daemon's full configuration tree.
type Config struct {
	Server struct {
		Addr string `mapstructure:"addr"`
	} `mapstructure:"server"`

	MQTT struct {
		BrokerURL        string `mapstructure:"broker_url"`
		ClientID         string `mapstructure:"client_id"`
		Username         string `mapstructure:"username"`
		Password         string `mapstructure:"password"`
		ReconnectSeconds int    `mapstructure:"reconnect_seconds"`
	} `mapstructure:"mqtt"`

	Storage struct {
		Path string `mapstructure:"path"`
	} `mapstructure:"storage"`

	Rooms struct {
		Names   []string `mapstructure:"names"`
		Default string   `mapstructure:"default"`
		// Live names the rooms with real hardware; the rest are
		// simulated and never see MQTT publishes.
		Live []string `mapstructure:"live"`
	} `mapstructure:"rooms"`

	Charts struct {
		Capacity int `mapstructure:"capacity"`
	} `mapstructure:"charts"`

	Control struct {
		DebounceMillis int `mapstructure:"debounce_millis"`
	} `mapstructure:"control"`

	Time struct {
		// Location is an IANA zone name for chart labels; empty means
		// the host's local zone.
		Location string `mapstructure:"location"`
	} `mapstructure:"time"`
}

// Load reads config.yaml from path (a directory), applies environment
// overrides and validates the result. A missing file is not an error;
// the defaults describe a localhost broker with one live room.
func Load(path string) (*Config, error) {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.addr", ":8080")
	v.SetDefault("mqtt.broker_url", "tcp://localhost:1883")
	v.SetDefault("mqtt.reconnect_seconds", 5)
	v.SetDefault("storage.path", "semsview.db")
	v.SetDefault("rooms.names", []string{"livingroom", "bedroom", "kitchen"})
	v.SetDefault("rooms.default", "livingroom")
	v.SetDefault("rooms.live", []string{"livingroom"})
	v.SetDefault("charts.capacity", series.DefaultCapacity)
	v.SetDefault("control.debounce_millis", 300)
}

func (c *Config) validate() error {
	if len(c.Rooms.Names) == 0 {
		return fmt.Errorf("config: rooms.names must not be empty")
	}
	if c.Rooms.Default == "" {
		c.Rooms.Default = c.Rooms.Names[0]
	}
	if !c.hasRoom(c.Rooms.Default) {
		return fmt.Errorf("config: default room %q is not in rooms.names", c.Rooms.Default)
	}
	for _, r := range c.Rooms.Live {
		if !c.hasRoom(r) {
			return fmt.Errorf("config: live room %q is not in rooms.names", r)
		}
	}
	if c.MQTT.BrokerURL == "" {
		return fmt.Errorf("config: mqtt.broker_url must not be empty")
	}
	if c.Charts.Capacity < 1 {
		return fmt.Errorf("config: charts.capacity must be positive")
	}
	if c.Control.DebounceMillis < 0 {
		return fmt.Errorf("config: control.debounce_millis must not be negative")
	}
	if c.Time.Location != "" {
		if _, err := time.LoadLocation(c.Time.Location); err != nil {
			return fmt.Errorf("config: bad time.location: %w", err)
		}
	}
	return nil
}

func (c *Config) hasRoom(room string) bool {
	for _, r := range c.Rooms.Names {
		if r == room {
			return true
		}
	}
	return false
}

// ReconnectDelay returns the broker retry interval.
func (c *Config) ReconnectDelay() time.Duration {
	return time.Duration(c.MQTT.ReconnectSeconds) * time.Second
}

// Debounce returns the slider command settle window.
func (c *Config) Debounce() time.Duration {
	return time.Duration(c.Control.DebounceMillis) * time.Millisecond
}

// Location resolves the configured chart label zone. Validation has
// already checked the name, so a resolve failure falls back to local.
func (c *Config) Location() *time.Location {
	if c.Time.Location == "" {
		return time.Local
	}
	loc, err := time.LoadLocation(c.Time.Location)
	if err != nil {
		return time.Local
	}
	return loc
}
