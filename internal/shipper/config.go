package shipper

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/providers/structs"
	"github.com/knadh/koanf/v2"

	"github.com/flowguard/flowguard/internal/sink"
)

// Sync modes. Real-time ships each entry as it is processed, batch
// accumulates entries and drains them on a timer, hybrid does both.
const (
	ModeRealTime = "real-time"
	ModeBatch    = "batch"
	ModeHybrid   = "hybrid"
)

const envPrefix = "FLOWGUARD_"

// Config drives the aggregation pipeline. Values resolve in three
// layers: built-in defaults, then the YAML file, then FLOWGUARD_*
// environment variables (double underscore nests, so
// FLOWGUARD_DESTINATION__KIND sets destination.kind).
type Config struct {
	// Root is the directory whose logs, sessions, shell-snapshots,
	// and projects subdirectories are aggregated.
	Root string `koanf:"root"`
	Mode string `koanf:"mode"`

	BatchInterval time.Duration `koanf:"batch_interval"`
	BatchSize     int           `koanf:"batch_size"`
	QueueCap      int           `koanf:"queue_cap"`
	Workers       int           `koanf:"workers"`

	Sanitize        bool   `koanf:"sanitize"`
	ComplianceLevel string `koanf:"compliance_level"`
	RetentionDays   int    `koanf:"retention_days"`

	UserID      string `koanf:"user_id"`
	TeamID      string `koanf:"team_id"`
	ToolVersion string `koanf:"tool_version"`
	Region      string `koanf:"region"`

	// Poll switches the tailer from inotify to interval rescans, for
	// roots on filesystems that do not deliver change events.
	Poll         bool          `koanf:"poll"`
	PollInterval time.Duration `koanf:"poll_interval"`
	Debounce     time.Duration `koanf:"debounce"`

	Destination sink.Config `koanf:"destination"`
}

// DefaultConfig returns the built-in defaults: batch mode against the
// assistant's home directory, sanitization on.
func DefaultConfig() Config {
	return Config{
		Root:            defaultRoot(),
		Mode:            ModeBatch,
		BatchInterval:   time.Minute,
		BatchSize:       100,
		QueueCap:        10000,
		Workers:         4,
		Sanitize:        true,
		ComplianceLevel: "standard",
		RetentionDays:   90,
		PollInterval:    defaultPollInterval,
		Debounce:        defaultDebounce,
		Destination: sink.Config{
			CallTimeout: 30 * time.Second,
		},
	}
}

func defaultRoot() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return "."
	}
	return filepath.Join(home, ".claude")
}

// DefaultPath is where LoadConfig looks when no file is named.
func DefaultPath() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".flowguard", "shipper.yaml")
}

// LoadConfig layers defaults, the YAML file, and the environment. A
// missing file is an error only when the path was given explicitly.
func LoadConfig(path string) (Config, error) {
	k := koanf.New(".")
	if err := k.Load(structs.Provider(DefaultConfig(), "koanf"), nil); err != nil {
		return Config{}, fmt.Errorf("shipper: load defaults: %w", err)
	}

	explicit := path != ""
	if path == "" {
		path = DefaultPath()
	}
	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return Config{}, fmt.Errorf("shipper: load config %s: %w", path, err)
			}
		} else if explicit {
			return Config{}, fmt.Errorf("shipper: config file %s: %w", path, err)
		}
	}

	if err := k.Load(env.Provider(envPrefix, ".", envKey), nil); err != nil {
		return Config{}, fmt.Errorf("shipper: load environment: %w", err)
	}

	var cfg Config
	if err := k.Unmarshal("", &cfg); err != nil {
		return Config{}, fmt.Errorf("shipper: unmarshal config: %w", err)
	}
	return cfg, nil
}

func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, envPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

// DefaultYAML returns a commented YAML document for init.
func DefaultYAML() string {
	return `# flowguard shipper configuration
#
# Directory whose logs, sessions, shell-snapshots, and projects
# subdirectories are aggregated. Defaults to ~/.claude.
# root: /home/me/.claude

# real-time | batch | hybrid
mode: batch

batch_interval: 60s
batch_size: 100
queue_cap: 10000
workers: 4

# Strip PII and secret-shaped tokens before entries leave the machine.
sanitize: true

compliance_level: standard
retention_days: 90

# Identity stamped on entries that do not carry their own.
# user_id: me@example.com
# team_id: platform

# Where entries go. Exactly one destination kind.
destination:
  kind: s3
  region: us-east-1
  call_timeout: 30s
  s3:
    bucket: my-governance-logs
    prefix: flowguard
    # kms_key_id: alias/governance
  # cloudwatch:
  #   log_group: /flowguard/assistant-logs
  # kinesis:
  #   stream: governance-log-stream
`
}

// Validate rejects configurations the pipeline cannot run with.
func (c *Config) Validate() error {
	switch c.Mode {
	case ModeRealTime, ModeBatch, ModeHybrid:
	default:
		return fmt.Errorf("shipper: unknown sync mode %q", c.Mode)
	}
	if c.BatchSize <= 0 {
		return fmt.Errorf("shipper: batch size must be positive, got %d", c.BatchSize)
	}
	if c.BatchInterval <= 0 {
		return fmt.Errorf("shipper: batch interval must be positive, got %s", c.BatchInterval)
	}
	if c.Workers <= 0 {
		return fmt.Errorf("shipper: worker count must be positive, got %d", c.Workers)
	}
	return nil
}
