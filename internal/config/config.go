// ABOUTME: Configuration loading and parsing for coven-contactcenter
// ABOUTME: Supports YAML or TOML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/robfig/cron/v3"
	"gopkg.in/yaml.v3"

	"github.com/2389/coven-contactcenter/internal/agent"
	"github.com/2389/coven-contactcenter/internal/skill"
)

// Defaults applied when a field is left empty.
const (
	DefaultPollInterval  = 2 * time.Second
	DefaultDedupeTTL     = 5 * time.Minute
	DefaultDedupeSize    = 10000
	DefaultPruneSchedule = "@hourly"
	DefaultRateBurst     = 10
)

// Config represents the complete coven-contactcenter configuration
type Config struct {
	Server    ServerConfig    `yaml:"server" toml:"server"`
	Database  DatabaseConfig  `yaml:"database" toml:"database"`
	Auth      AuthConfig      `yaml:"auth" toml:"auth"`
	Routing   RoutingConfig   `yaml:"routing" toml:"routing"`
	Dashboard DashboardConfig `yaml:"dashboard" toml:"dashboard"`
	Presence  PresenceConfig  `yaml:"presence" toml:"presence"`
	Logging   LoggingConfig   `yaml:"logging" toml:"logging"`
	Directory DirectoryConfig `yaml:"directory" toml:"directory"`
}

// ServerConfig holds server address and request limiting configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr" toml:"http_addr"`

	// RateLimitPerMin caps write requests per client IP. 0 disables limiting.
	RateLimitPerMin int `yaml:"rate_limit_per_min" toml:"rate_limit_per_min"`
	RateBurst       int `yaml:"rate_burst" toml:"rate_burst"`
}

// DatabaseConfig holds database, history retention and write breaker configuration
type DatabaseConfig struct {
	Path string `yaml:"path" toml:"path"`

	// Retention is how long allocation history is kept. 0 keeps it forever.
	Retention     time.Duration `yaml:"-" toml:"-"`
	RetentionRaw  string        `yaml:"retention" toml:"retention"`
	PruneSchedule string        `yaml:"prune_schedule" toml:"prune_schedule"`

	BreakerFailures   uint32        `yaml:"breaker_failures" toml:"breaker_failures"`
	BreakerTimeout    time.Duration `yaml:"-" toml:"-"`
	BreakerTimeoutRaw string        `yaml:"breaker_timeout" toml:"breaker_timeout"`
}

// AuthConfig holds authentication configuration.
// An empty JWTSecret leaves the API unauthenticated.
type AuthConfig struct {
	JWTSecret string `yaml:"jwt_secret" toml:"jwt_secret"`
}

// RoutingConfig controls agent selection
type RoutingConfig struct {
	Strategy    string `yaml:"strategy" toml:"strategy"` // longest_idle, round_robin
	MaxAttempts int    `yaml:"max_attempts" toml:"max_attempts"`
}

// DashboardConfig holds change-polling configuration
type DashboardConfig struct {
	PollInterval time.Duration `yaml:"-" toml:"-"`

	// Raw string value for unmarshaling
	PollIntervalRaw string `yaml:"poll_interval" toml:"poll_interval"`
}

// PresenceConfig holds presence event deduplication settings
type PresenceConfig struct {
	DedupeTTL    time.Duration `yaml:"-" toml:"-"`
	DedupeTTLRaw string        `yaml:"dedupe_ttl" toml:"dedupe_ttl"`
	DedupeSize   int           `yaml:"dedupe_size" toml:"dedupe_size"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level" toml:"level"`
	Format string `yaml:"format" toml:"format"`
}

// DirectoryConfig describes the skills, supervisors and agents loaded at startup
type DirectoryConfig struct {
	Skills      []SkillConfig      `yaml:"skills" toml:"skills"`
	Supervisors []SupervisorConfig `yaml:"supervisors" toml:"supervisors"`
	Agents      []AgentConfig      `yaml:"agents" toml:"agents"`
}

// SkillConfig defines one skill and its valid values
type SkillConfig struct {
	Name    string        `yaml:"name" toml:"name"`
	Values  []string      `yaml:"values" toml:"values"`
	Prompts skill.Prompts `yaml:"prompts" toml:"prompts"`
}

// SupervisorConfig defines one supervisor
type SupervisorConfig struct {
	SignInAddress       string `yaml:"sign_in_address" toml:"sign_in_address"`
	PublicName          string `yaml:"public_name" toml:"public_name"`
	InstantMessageColor string `yaml:"instant_message_color" toml:"instant_message_color"`
}

// AgentConfig defines one agent. Skills maps skill name to value.
type AgentConfig struct {
	SignInAddress string            `yaml:"sign_in_address" toml:"sign_in_address"`
	PublicName    string            `yaml:"public_name" toml:"public_name"`
	Supervisor    string            `yaml:"supervisor" toml:"supervisor"`
	Skills        map[string]string `yaml:"skills" toml:"skills"`
	Online        bool              `yaml:"online" toml:"online"`
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Files ending in .toml are parsed as TOML, everything else as YAML.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}
	return Parse(data, path)
}

// Parse decodes configuration content. The path only selects the format.
func Parse(data []byte, path string) (*Config, error) {
	// Expand environment variables in the raw content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if strings.EqualFold(filepath.Ext(path), ".toml") {
		if _, err := toml.Decode(expandedData, &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	} else {
		if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	}

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	cfg.applyDefaults()

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

var envVarPattern = regexp.MustCompile(`\$\{([^}]+)\}`)

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	return envVarPattern.ReplaceAllStringFunc(s, func(match string) string {
		varName := envVarPattern.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

func (c *Config) applyDefaults() {
	if c.Routing.Strategy == "" {
		c.Routing.Strategy = string(agent.StrategyLongestIdle)
	}
	if c.Dashboard.PollInterval == 0 {
		c.Dashboard.PollInterval = DefaultPollInterval
	}
	if c.Presence.DedupeTTL == 0 {
		c.Presence.DedupeTTL = DefaultDedupeTTL
	}
	if c.Presence.DedupeSize == 0 {
		c.Presence.DedupeSize = DefaultDedupeSize
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Database.PruneSchedule == "" {
		c.Database.PruneSchedule = DefaultPruneSchedule
	}
	if c.Server.RateLimitPerMin > 0 && c.Server.RateBurst == 0 {
		c.Server.RateBurst = DefaultRateBurst
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	if c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required")
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Database.Retention < 0 {
		return fmt.Errorf("database.retention must not be negative")
	}
	if spec := c.Database.PruneSchedule; spec != "" {
		if _, err := cron.ParseStandard(spec); err != nil {
			return fmt.Errorf("database.prune_schedule %q: %w", spec, err)
		}
	}

	if c.Server.RateLimitPerMin < 0 || c.Server.RateBurst < 0 {
		return fmt.Errorf("server.rate_limit_per_min and server.rate_burst must not be negative")
	}

	if c.Auth.JWTSecret != "" && len(c.Auth.JWTSecret) < 32 {
		return fmt.Errorf("auth.jwt_secret must be at least 32 bytes")
	}

	if _, err := agent.ParseStrategy(c.Routing.Strategy); err != nil {
		return fmt.Errorf("routing.strategy: %w", err)
	}
	if c.Routing.MaxAttempts < 0 {
		return fmt.Errorf("routing.max_attempts must not be negative")
	}

	if c.Presence.DedupeSize < 0 {
		return fmt.Errorf("presence.dedupe_size must not be negative")
	}

	switch c.Logging.Format {
	case "", "text", "json":
	default:
		return fmt.Errorf("logging.format %q is not one of text, json", c.Logging.Format)
	}

	return c.Directory.Validate()
}

// Validate checks the directory for duplicate names and dangling references.
func (d *DirectoryConfig) Validate() error {
	skills := make(map[string]*skill.Skill, len(d.Skills))
	for i, s := range d.Skills {
		if s.Name == "" {
			return fmt.Errorf("directory.skills[%d]: name is required", i)
		}
		if _, dup := skills[s.Name]; dup {
			return fmt.Errorf("directory.skills[%d]: duplicate skill %q", i, s.Name)
		}
		if len(s.Values) == 0 {
			return fmt.Errorf("directory.skills[%d]: skill %q has no values", i, s.Name)
		}
		skills[s.Name] = skill.New(s.Name, s.Values, s.Prompts)
	}

	supervisors := make(map[string]bool, len(d.Supervisors))
	for i, s := range d.Supervisors {
		key := agent.NormalizeURI(s.SignInAddress)
		if key == "" {
			return fmt.Errorf("directory.supervisors[%d]: sign_in_address is required", i)
		}
		if supervisors[key] {
			return fmt.Errorf("directory.supervisors[%d]: duplicate supervisor %q", i, s.SignInAddress)
		}
		supervisors[key] = true
	}

	agents := make(map[string]bool, len(d.Agents))
	for i, a := range d.Agents {
		key := agent.NormalizeURI(a.SignInAddress)
		if key == "" {
			return fmt.Errorf("directory.agents[%d]: sign_in_address is required", i)
		}
		if agents[key] {
			return fmt.Errorf("directory.agents[%d]: duplicate agent %q", i, a.SignInAddress)
		}
		agents[key] = true

		if a.Supervisor != "" && !supervisors[agent.NormalizeURI(a.Supervisor)] {
			return fmt.Errorf("directory.agents[%d]: unknown supervisor %q", i, a.Supervisor)
		}
		for name, value := range a.Skills {
			sk, ok := skills[name]
			if !ok {
				return fmt.Errorf("directory.agents[%d]: unknown skill %q", i, name)
			}
			if _, err := skill.NewAgentSkill(sk, value); err != nil {
				return fmt.Errorf("directory.agents[%d]: %w", i, err)
			}
		}
	}

	return nil
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Dashboard.PollIntervalRaw != "" {
		cfg.Dashboard.PollInterval, err = time.ParseDuration(cfg.Dashboard.PollIntervalRaw)
		if err != nil {
			return fmt.Errorf("parsing poll_interval %q: %w", cfg.Dashboard.PollIntervalRaw, err)
		}
		if cfg.Dashboard.PollInterval <= 0 {
			return fmt.Errorf("poll_interval must be positive, got %q", cfg.Dashboard.PollIntervalRaw)
		}
	}

	if cfg.Database.RetentionRaw != "" {
		cfg.Database.Retention, err = time.ParseDuration(cfg.Database.RetentionRaw)
		if err != nil {
			return fmt.Errorf("parsing retention %q: %w", cfg.Database.RetentionRaw, err)
		}
	}

	if cfg.Database.BreakerTimeoutRaw != "" {
		cfg.Database.BreakerTimeout, err = time.ParseDuration(cfg.Database.BreakerTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing breaker_timeout %q: %w", cfg.Database.BreakerTimeoutRaw, err)
		}
	}

	if cfg.Presence.DedupeTTLRaw != "" {
		cfg.Presence.DedupeTTL, err = time.ParseDuration(cfg.Presence.DedupeTTLRaw)
		if err != nil {
			return fmt.Errorf("parsing dedupe_ttl %q: %w", cfg.Presence.DedupeTTLRaw, err)
		}
	}

	return nil
}
