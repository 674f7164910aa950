package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/bmatcuk/doublestar/v4"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
	yamlv3 "gopkg.in/yaml.v3"
)

// EnvPrefix is the prefix of environment overrides. A double underscore
// separates nested keys: DRIVENOTIFY_GRAPH__ACCESS_TOKEN -> graph.access_token.
const EnvPrefix = "DRIVENOTIFY_"

// Load reads configuration from the given YAML file, then overlays
// environment variable overrides (DRIVENOTIFY_*) and the conventional
// provider credential variables.
func Load(path string) (*Config, error) {
	k := koanf.New(".")

	// Start from defaults.
	cfg := DefaultConfig()

	// Load YAML file if it exists.
	if _, err := os.Stat(path); err == nil {
		if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
			return nil, fmt.Errorf("reading config %s: %w", path, err)
		}
	} else if !os.IsNotExist(err) {
		return nil, fmt.Errorf("accessing config %s: %w", path, err)
	}

	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading env overrides: %w", err)
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	applyCredentialEnv(cfg)
	return cfg, nil
}

// envKey maps DRIVENOTIFY_DELIVERY__QUEUE_SIZE to delivery.queue_size.
func envKey(s string) string {
	key := strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(key, "__", ".")
}

// credentialEnvVars maps the provider's own variable names onto config fields.
// They only fill values that are still empty after file and prefix overrides.
var credentialEnvVars = []struct {
	name  string
	field func(*Config) *string
}{
	{"WHATSAPP_ACCESS_TOKEN", func(c *Config) *string { return &c.Graph.AccessToken }},
	{"WHATSAPP_PHONE_NUMBER_ID", func(c *Config) *string { return &c.Graph.PhoneNumberID }},
	{"WHATSAPP_BUSINESS_ACCOUNT_ID", func(c *Config) *string { return &c.Graph.BusinessAccountID }},
	{"TWILIO_ACCOUNT_SID", func(c *Config) *string { return &c.Twilio.AccountSID }},
	{"TWILIO_AUTH_TOKEN", func(c *Config) *string { return &c.Twilio.AuthToken }},
	{"TWILIO_WHATSAPP_NUMBER", func(c *Config) *string { return &c.Twilio.WhatsAppNumber }},
	{"API_KEY", func(c *Config) *string { return &c.Server.APIKey }},
}

func applyCredentialEnv(cfg *Config) {
	for _, v := range credentialEnvVars {
		dst := v.field(cfg)
		if *dst != "" {
			continue
		}
		if val := strings.TrimSpace(os.Getenv(v.name)); val != "" {
			*dst = val
		}
	}
	if strings.EqualFold(os.Getenv("USE_TWILIO"), "true") {
		cfg.Channel = ChannelTwilio
	}
}

// Save writes the configuration to the given YAML file path.
func (c *Config) Save(path string) error {
	data, err := yamlv3.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshalling config: %w", err)
	}
	if err := os.WriteFile(path, data, 0600); err != nil {
		return fmt.Errorf("writing config to %s: %w", path, err)
	}
	return nil
}

// validChannels is the set of recognized channel values.
var validChannels = map[ChannelType]bool{
	ChannelGraph:  true,
	ChannelTwilio: true,
}

// validPolicies is the set of recognized recipient policies.
var validPolicies = map[RecipientPolicy]bool{
	PolicyStatic:        true,
	PolicyCollaborators: true,
	PolicyOwner:         true,
}

// Validate checks that the configuration contains valid values.
// Missing provider credentials are deliberately not checked here: they are
// reported per recipient when the first send is attempted.
func (c *Config) Validate() error {
	if !validChannels[c.Channel] {
		return fmt.Errorf("invalid channel %q: must be one of graph, twilio", c.Channel)
	}

	if c.Server.Port < 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port %d out of range", c.Server.Port)
	}

	if c.Database.Path == "" {
		return fmt.Errorf("database.path is required")
	}

	if c.Delivery.PacingInterval < 0 {
		return fmt.Errorf("delivery.pacing_interval must be non-negative")
	}
	if c.Delivery.QueueSize <= 0 {
		return fmt.Errorf("delivery.queue_size must be positive")
	}
	if c.Delivery.Workers <= 0 {
		return fmt.Errorf("delivery.workers must be positive")
	}

	if !validPolicies[c.Recipients.Policy] {
		return fmt.Errorf("invalid recipients.policy %q: must be one of static, collaborators, owner", c.Recipients.Policy)
	}
	for i, rule := range c.Recipients.Rules {
		if rule.Pattern != "" && !doublestar.ValidatePattern(rule.Pattern) {
			return fmt.Errorf("recipients.rules[%d]: invalid pattern %q", i, rule.Pattern)
		}
		if len(rule.Recipients) == 0 {
			return fmt.Errorf("recipients.rules[%d]: at least one recipient is required", i)
		}
	}

	if c.Message.Timezone != "" {
		if _, err := time.LoadLocation(c.Message.Timezone); err != nil {
			return fmt.Errorf("invalid message.timezone %q: %w", c.Message.Timezone, err)
		}
	}

	if c.Retention.Days < 0 {
		return fmt.Errorf("retention.days must be non-negative")
	}
	if c.Retention.Days > 0 && c.Retention.Interval <= 0 {
		return fmt.Errorf("retention.interval must be positive when retention.days is set")
	}

	return nil
}

// HasCredentials reports whether the selected channel has everything it
// needs to authenticate.
func (c *Config) HasCredentials() bool {
	switch c.Channel {
	case ChannelTwilio:
		return c.Twilio.AccountSID != "" && c.Twilio.AuthToken != "" && c.Twilio.WhatsAppNumber != ""
	default:
		return c.Graph.AccessToken != "" && c.Graph.PhoneNumberID != ""
	}
}
