package trackgw

/*------------------------------------------------------------------
 *
 * Purpose:	Gateway configuration.
 *
 * Description:	Loaded once at startup from a YAML file. Each enabled
 *		protocol gets a section with its transport and port
 *		plus the handful of knobs the decoders consume.
 *
 *---------------------------------------------------------------*/

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

type ProtocolConfig struct {
	Transport     string `yaml:"transport"` // tcp, udp or http
	Port          int    `yaml:"port"`
	Alternative   bool   `yaml:"alternative"`     // 0xE7 framing and command layouts
	Timezone      string `yaml:"timezone"`        // e.g. "GMT+08:00"
	IgnoreFixTime bool   `yaml:"ignore_fix_time"` // replace fix time with server time
	IdleTimeout   int    `yaml:"idle_timeout"`    // seconds, 0 disables
}

type PositionLogConfig struct {
	Path            string `yaml:"path"`
	TimestampFormat string `yaml:"timestamp_format"` // strftime format
}

type Config struct {
	LogLevel      string                    `yaml:"log_level"`
	AutoRegister  bool                      `yaml:"auto_register"`
	Devices       string                    `yaml:"devices"` // path to the device roster
	DefaultMcc    int                       `yaml:"default_mcc"`
	DefaultMnc    int                       `yaml:"default_mnc"`
	SessionExpiry int                       `yaml:"session_expiry"` // seconds, 0 keeps sessions forever
	PositionLog   PositionLogConfig         `yaml:"position_log"`
	Protocols     map[string]ProtocolConfig `yaml:"protocols"`
}

func LoadConfig(path string) (*Config, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config: %w", err)
	}
	var config Config
	if err := yaml.Unmarshal(raw, &config); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	for name, pc := range config.Protocols {
		if pc.Transport == "" {
			pc.Transport = "tcp"
			config.Protocols[name] = pc
		}
		if pc.Timezone != "" {
			if _, err := parseTimezone(pc.Timezone); err != nil {
				return nil, fmt.Errorf("protocol %s: %w", name, err)
			}
		}
	}
	return &config, nil
}

func (c *Config) Protocol(name string) ProtocolConfig {
	if c == nil {
		return ProtocolConfig{}
	}
	return c.Protocols[name]
}

func (c *Config) Alternative(protocol string) bool {
	return c.Protocol(protocol).Alternative
}

// ProtocolTimezone returns the configured default zone for a
// protocol, or nil when none is set and the decoder should fall back
// to its own default.
func (c *Config) ProtocolTimezone(protocol string) *time.Location {
	tz := c.Protocol(protocol).Timezone
	if tz == "" {
		return nil
	}
	loc, err := parseTimezone(tz)
	if err != nil {
		return nil
	}
	return loc
}

func (c *Config) IdleTimeout(protocol string) time.Duration {
	return time.Duration(c.Protocol(protocol).IdleTimeout) * time.Second
}

// parseTimezone accepts IANA names ("Asia/Shanghai") and the
// "GMT+08:00" style offsets devices are usually configured with.
func parseTimezone(value string) (*time.Location, error) {
	if strings.HasPrefix(value, "GMT") || strings.HasPrefix(value, "UTC") {
		offset := strings.TrimPrefix(strings.TrimPrefix(value, "GMT"), "UTC")
		if offset == "" {
			return time.UTC, nil
		}
		sign := 1
		switch offset[0] {
		case '+':
		case '-':
			sign = -1
		default:
			return nil, fmt.Errorf("bad timezone %q", value)
		}
		parts := strings.SplitN(offset[1:], ":", 2)
		hours, err := strconv.Atoi(parts[0])
		if err != nil {
			return nil, fmt.Errorf("bad timezone %q", value)
		}
		minutes := 0
		if len(parts) == 2 {
			minutes, err = strconv.Atoi(parts[1])
			if err != nil {
				return nil, fmt.Errorf("bad timezone %q", value)
			}
		}
		return time.FixedZone(value, sign*(hours*3600+minutes*60)), nil
	}
	loc, err := time.LoadLocation(value)
	if err != nil {
		return nil, fmt.Errorf("bad timezone %q: %w", value, err)
	}
	return loc, nil
}
