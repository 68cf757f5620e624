// ABOUTME: Configuration loading and parsing for senpai-gateway
// ABOUTME: Supports YAML files with environment variable expansion and duration parsing

package config

import (
	"fmt"
	"os"
	"regexp"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/2389/senpai-gateway/internal/conversation"
	"github.com/2389/senpai-gateway/internal/session"
)

// Config represents the complete senpai-gateway configuration
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Tailscale TailscaleConfig `yaml:"tailscale"`
	AWS       AWSConfig       `yaml:"aws"`
	Agent     AgentConfig     `yaml:"agent"`
	Session   SessionConfig   `yaml:"session"`
	Mentors   []MentorConfig  `yaml:"mentors"`
	Logging   LoggingConfig   `yaml:"logging"`
}

// ServerConfig holds server address configuration
type ServerConfig struct {
	HTTPAddr string `yaml:"http_addr"`
}

// TailscaleConfig holds Tailscale tsnet configuration
type TailscaleConfig struct {
	Enabled   bool   `yaml:"enabled"`
	Hostname  string `yaml:"hostname"`
	AuthKey   string `yaml:"auth_key"`
	StateDir  string `yaml:"state_dir"`
	Ephemeral bool   `yaml:"ephemeral"`
	CertFile  string `yaml:"cert_file"` // TLS cert file (generate via: tailscale cert <hostname>)
	KeyFile   string `yaml:"key_file"`  // TLS key file
	Funnel    bool   `yaml:"funnel"`    // Enable public Funnel (implies HTTPS)
}

// AWSConfig holds the region and Cognito identifiers used to exchange the
// user's ID token for short-lived AWS credentials.
type AWSConfig struct {
	Region         string `yaml:"region"`
	UserPoolID     string `yaml:"user_pool_id"`
	IdentityPoolID string `yaml:"identity_pool_id"`

	// IDToken is the Cognito user-pool ID token. Usually supplied via
	// ${SENPAI_ID_TOKEN} rather than written into the file.
	IDToken string `yaml:"id_token"`
}

// AgentConfig holds agent runtime invocation configuration
type AgentConfig struct {
	Qualifier     string        `yaml:"qualifier"`
	InvokeTimeout time.Duration `yaml:"-"`

	// Raw string value for YAML unmarshaling
	InvokeTimeoutRaw string `yaml:"invoke_timeout"`
}

// SessionConfig holds runtime session token configuration
type SessionConfig struct {
	MinTokenLength int `yaml:"min_token_length"`
}

// MentorConfig declares one mentor domain and its agent runtime endpoint.
type MentorConfig struct {
	Name         string `yaml:"name"`
	Endpoint     string `yaml:"endpoint"`
	ContextLabel string `yaml:"context_label"`
	FallbackText string `yaml:"fallback_text"`
}

// LoggingConfig holds logging configuration
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// mentorDefaults fills in the label and fallback wording for the well-known
// mentor names when the file leaves them blank.
var mentorDefaults = map[string]MentorConfig{
	conversation.MentorGeneral:  {},
	conversation.MentorLearning: {},
	conversation.MentorCommunication: {
		ContextLabel: "Role",
	},
	conversation.MentorCounseling: {
		ContextLabel: "Emotion",
		FallbackText: "I'm here for you. Sometimes technology has hiccups, but my support for you remains constant. Please try sharing again.",
	},
}

// Load reads a configuration file from the given path and returns a parsed Config.
// Environment variables in the format ${VAR_NAME} are expanded.
// Duration strings are parsed into time.Duration values.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	// Expand environment variables in the raw YAML content
	expandedData := expandEnvVars(string(data))

	var cfg Config
	if err := yaml.Unmarshal([]byte(expandedData), &cfg); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}

	cfg.applyDefaults()

	// Parse duration fields
	if err := parseDurations(&cfg); err != nil {
		return nil, fmt.Errorf("parsing durations: %w", err)
	}

	// Validate required fields
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return &cfg, nil
}

// expandEnvVars replaces ${VAR_NAME} patterns with the corresponding environment variable values.
// If the environment variable is not set, it is replaced with an empty string.
func expandEnvVars(s string) string {
	// Match ${VAR_NAME} pattern
	re := regexp.MustCompile(`\$\{([^}]+)\}`)

	return re.ReplaceAllStringFunc(s, func(match string) string {
		// Extract variable name from ${VAR_NAME}
		varName := re.FindStringSubmatch(match)[1]
		return os.Getenv(varName)
	})
}

// applyDefaults fills in values the file may omit.
func (c *Config) applyDefaults() {
	if c.Agent.Qualifier == "" {
		c.Agent.Qualifier = "DEFAULT"
	}
	if c.Session.MinTokenLength == 0 {
		c.Session.MinTokenLength = session.DefaultMinLength
	}
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "text"
	}
	for i, m := range c.Mentors {
		def, ok := mentorDefaults[m.Name]
		if !ok {
			continue
		}
		if m.ContextLabel == "" {
			c.Mentors[i].ContextLabel = def.ContextLabel
		}
		if m.FallbackText == "" {
			c.Mentors[i].FallbackText = def.FallbackText
		}
	}
}

// Validate checks that all required configuration fields are present and valid.
// Returns an error describing the first validation failure encountered.
func (c *Config) Validate() error {
	// The server address is required unless Tailscale is enabled
	if !c.Tailscale.Enabled && c.Server.HTTPAddr == "" {
		return fmt.Errorf("server.http_addr is required (or enable tailscale)")
	}

	// Tailscale requires a hostname
	if c.Tailscale.Enabled && c.Tailscale.Hostname == "" {
		return fmt.Errorf("tailscale.hostname is required when tailscale is enabled")
	}

	if c.AWS.Region == "" {
		return fmt.Errorf("aws.region is required")
	}
	if c.AWS.UserPoolID == "" {
		return fmt.Errorf("aws.user_pool_id is required")
	}
	if c.AWS.IdentityPoolID == "" {
		return fmt.Errorf("aws.identity_pool_id is required")
	}

	if len(c.Mentors) == 0 {
		return fmt.Errorf("at least one mentor is required")
	}
	seen := make(map[string]bool, len(c.Mentors))
	for _, m := range c.Mentors {
		if m.Name == "" {
			return fmt.Errorf("mentor with empty name")
		}
		if m.Endpoint == "" {
			return fmt.Errorf("mentor %q: endpoint is required", m.Name)
		}
		if seen[m.Name] {
			return fmt.Errorf("mentor %q: declared twice", m.Name)
		}
		seen[m.Name] = true
	}

	return nil
}

// MentorList converts the configured mentors into the orchestrator's form.
func (c *Config) MentorList() []conversation.Mentor {
	mentors := make([]conversation.Mentor, 0, len(c.Mentors))
	for _, m := range c.Mentors {
		mentors = append(mentors, conversation.Mentor{
			Name:         m.Name,
			Endpoint:     m.Endpoint,
			ContextLabel: m.ContextLabel,
			FallbackText: m.FallbackText,
		})
	}
	return mentors
}

// parseDurations converts the raw duration strings into time.Duration values
func parseDurations(cfg *Config) error {
	var err error

	if cfg.Agent.InvokeTimeoutRaw != "" {
		cfg.Agent.InvokeTimeout, err = time.ParseDuration(cfg.Agent.InvokeTimeoutRaw)
		if err != nil {
			return fmt.Errorf("parsing invoke_timeout %q: %w", cfg.Agent.InvokeTimeoutRaw, err)
		}
	}

	return nil
}
