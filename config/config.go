// Package config loads and validates the simulation harness
// configuration from YAML. Values missing from the file keep their
// defaults, so a minimal file only overrides what it cares about.
package config

import (
	"net"
	"os"
	"strconv"
	"strings"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"

	sarq "github.com/nicosta1132/sarq-go"
	"github.com/nicosta1132/sarq-go/emulator"
)

// Config is the root of the harness configuration file.
type Config struct {
	Protocol ProtocolConfig `yaml:"protocol"`
	Channel  ChannelConfig  `yaml:"channel"`
	Harness  HarnessConfig  `yaml:"harness"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Feed     FeedConfig     `yaml:"feed"`
}

// ProtocolConfig fixes the window geometry and timer both endpoints
// share.
type ProtocolConfig struct {
	WindowSize int32   `yaml:"window_size"`
	SeqSpace   int32   `yaml:"seq_space"`
	Timeout    float64 `yaml:"timeout"`
}

// ChannelConfig describes the simulated medium.
type ChannelConfig struct {
	LossProb         float64 `yaml:"loss_prob"`
	CorruptProb      float64 `yaml:"corrupt_prob"`
	MeanInterarrival float64 `yaml:"mean_interarrival"`
}

// HarnessConfig sizes the workload.
type HarnessConfig struct {
	// Messages per trial.
	Messages int `yaml:"messages"`
	// Trials run concurrently, each with its own seed derived from
	// Seed.
	Trials int `yaml:"trials"`
	Seed   uint64 `yaml:"seed"`
	// MaxSimTime bounds each trial's clock; zero disables the bound.
	MaxSimTime float64 `yaml:"max_sim_time"`
	// RealTime paces each trial against the wall clock, in seconds per
	// simulated time unit. Zero runs unpaced.
	RealTime float64 `yaml:"realtime_factor"`
	// Trace is the console verbosity, 0 to 3.
	Trace int `yaml:"trace"`
}

// MetricsConfig controls the Prometheus endpoint.
type MetricsConfig struct {
	Enabled    bool   `yaml:"enabled"`
	Listen     string `yaml:"listen"`
	Path       string `yaml:"path"`
	HealthPath string `yaml:"health_path"`
}

// FeedConfig controls the websocket event feed.
type FeedConfig struct {
	Enabled bool   `yaml:"enabled"`
	Listen  string `yaml:"listen"`
	Path    string `yaml:"path"`
}

// DefaultConfig returns the configuration used when no file is given:
// the textbook protocol constants, a clean channel and a single trial.
func DefaultConfig() *Config {
	return &Config{
		Protocol: ProtocolConfig{
			WindowSize: 6,
			SeqSpace:   12,
			Timeout:    16.0,
		},
		Channel: ChannelConfig{
			LossProb:         0.1,
			CorruptProb:      0.1,
			MeanInterarrival: 50,
		},
		Harness: HarnessConfig{
			Messages:   100,
			Trials:     1,
			Seed:       1,
			MaxSimTime: 1e6,
		},
		Metrics: MetricsConfig{
			Enabled:    false,
			Listen:     ":9100",
			Path:       "/metrics",
			HealthPath: "/health",
		},
		Feed: FeedConfig{
			Enabled: false,
			Listen:  ":8080",
			Path:    "/events",
		},
	}
}

// Load reads a YAML file over the defaults and validates the result.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrap(err, "read config")
	}
	cfg := DefaultConfig()
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, errors.Wrap(err, "parse config")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks every section, including the cross-section port
// clash between the metrics and feed listeners.
func (c *Config) Validate() error {
	if err := c.Params().Validate(); err != nil {
		return errors.Wrap(err, "protocol")
	}
	if c.Channel.LossProb < 0 || c.Channel.LossProb > 1 {
		return errors.Errorf("channel: loss_prob %v out of range", c.Channel.LossProb)
	}
	if c.Channel.CorruptProb < 0 || c.Channel.CorruptProb > 1 {
		return errors.Errorf("channel: corrupt_prob %v out of range", c.Channel.CorruptProb)
	}
	if c.Channel.MeanInterarrival <= 0 {
		return errors.New("channel: mean_interarrival must be positive")
	}
	if c.Harness.Messages < 1 {
		return errors.New("harness: messages must be at least 1")
	}
	if c.Harness.Trials < 1 {
		return errors.New("harness: trials must be at least 1")
	}
	if c.Harness.RealTime < 0 {
		return errors.Errorf("harness: realtime_factor %v must not be negative", c.Harness.RealTime)
	}
	if c.Harness.Trace < 0 || c.Harness.Trace > 3 {
		return errors.Errorf("harness: trace %d out of range, want 0 to 3", c.Harness.Trace)
	}
	if c.Metrics.Enabled {
		if _, err := parsePort(c.Metrics.Listen); err != nil {
			return errors.Wrap(err, "metrics: listen")
		}
		if !strings.HasPrefix(c.Metrics.Path, "/") {
			return errors.New("metrics: path must start with /")
		}
		if !strings.HasPrefix(c.Metrics.HealthPath, "/") {
			return errors.New("metrics: health_path must start with /")
		}
	}
	if c.Feed.Enabled {
		if _, err := parsePort(c.Feed.Listen); err != nil {
			return errors.Wrap(err, "feed: listen")
		}
		if !strings.HasPrefix(c.Feed.Path, "/") {
			return errors.New("feed: path must start with /")
		}
	}
	if c.Metrics.Enabled && c.Feed.Enabled {
		mp, _ := parsePort(c.Metrics.Listen)
		fp, _ := parsePort(c.Feed.Listen)
		if mp == fp {
			return errors.Errorf("metrics and feed both listen on port %d", mp)
		}
	}
	return nil
}

// Params maps the protocol section onto the endpoint parameters.
func (c *Config) Params() sarq.Params {
	return sarq.Params{
		WindowSize: c.Protocol.WindowSize,
		SeqSpace:   c.Protocol.SeqSpace,
		Timeout:    c.Protocol.Timeout,
	}
}

// EmulatorConfig builds the per-run emulator configuration with the
// harness base seed; callers running several trials derive their own
// seeds from it.
func (c *Config) EmulatorConfig() emulator.Config {
	return emulator.Config{
		Protocol:         c.Params(),
		MaxMessages:      c.Harness.Messages,
		MeanInterarrival: c.Channel.MeanInterarrival,
		LossProb:         c.Channel.LossProb,
		CorruptProb:      c.Channel.CorruptProb,
		Seed:             c.Harness.Seed,
		MaxSimTime:       c.Harness.MaxSimTime,
		RealTime:         c.Harness.RealTime,
	}
}

// TraceLevel maps the harness trace number onto the endpoint tracer
// levels.
func (c *Config) TraceLevel() sarq.TraceLevel {
	return sarq.TraceLevel(c.Harness.Trace)
}

func parsePort(addr string) (int, error) {
	if strings.HasPrefix(addr, ":") {
		return strconv.Atoi(addr[1:])
	}
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return strconv.Atoi(addr)
	}
	return strconv.Atoi(portStr)
}

// GenerateExampleConfig returns a commented configuration file with
// every knob at its default.
func GenerateExampleConfig() string {
	return `# Selective repeat simulation harness configuration.

# Protocol constants shared by sender and receiver.
protocol:
  window_size: 6        # unacknowledged packets kept in flight
  seq_space: 12         # distinct sequence numbers, at least 2x window
  timeout: 16.0         # retransmission timer in simulated time units

# Channel behavior between the endpoints.
channel:
  loss_prob: 0.1        # chance a transmission vanishes
  corrupt_prob: 0.1     # chance a transmission is mangled
  mean_interarrival: 50 # average time between application messages

# Workload for one invocation.
harness:
  messages: 100         # messages offered per trial
  trials: 1             # concurrent trials, seeds derived from seed
  seed: 1
  max_sim_time: 1000000 # abort a trial whose clock passes this
  realtime_factor: 0    # wall seconds per simulated time unit, 0 = unpaced
  trace: 0              # console verbosity, 0 to 3

# Prometheus endpoint.
metrics:
  enabled: false
  listen: ":9100"
  path: "/metrics"
  health_path: "/health"

# Websocket event feed.
feed:
  enabled: false
  listen: ":8080"
  path: "/events"
`
}

// WriteExampleConfig writes GenerateExampleConfig to path.
func WriteExampleConfig(path string) error {
	return os.WriteFile(path, []byte(GenerateExampleConfig()), 0644)
}
