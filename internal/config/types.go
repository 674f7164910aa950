package config

import "time"

// ChannelType identifies the messaging backend used to deliver notifications.
type ChannelType string

const (
	ChannelGraph  ChannelType = "graph"
	ChannelTwilio ChannelType = "twilio"
)

// RecipientPolicy decides whose phone numbers an event is delivered to.
type RecipientPolicy string

const (
	// PolicyStatic sends every event to the configured default list.
	PolicyStatic RecipientPolicy = "static"
	// PolicyCollaborators sends to the event's editors followed by its viewers.
	PolicyCollaborators RecipientPolicy = "collaborators"
	// PolicyOwner sends only to the file owner.
	PolicyOwner RecipientPolicy = "owner"
)

// Config is the top-level drivenotify configuration, corresponding to drivenotify.yml.
type Config struct {
	Server     ServerConfig      `yaml:"server" koanf:"server"`
	Database   DatabaseConfig    `yaml:"database" koanf:"database"`
	Log        LogConfig         `yaml:"log" koanf:"log"`
	Channel    ChannelType       `yaml:"channel" koanf:"channel"`
	Graph      GraphConfig       `yaml:"graph" koanf:"graph"`
	Twilio     TwilioConfig      `yaml:"twilio" koanf:"twilio"`
	Delivery   DeliveryConfig    `yaml:"delivery" koanf:"delivery"`
	Recipients RecipientsConfig  `yaml:"recipients" koanf:"recipients"`
	Message    MessageConfig     `yaml:"message" koanf:"message"`
	Templates  map[string]string `yaml:"templates,omitempty" koanf:"templates"`
	Retention  RetentionConfig   `yaml:"retention" koanf:"retention"`
}

// ServerConfig holds HTTP listener settings.
type ServerConfig struct {
	Port            int           `yaml:"port" koanf:"port"`
	APIKey          string        `yaml:"api_key,omitempty" koanf:"api_key"`
	AllowAllOrigins bool          `yaml:"allow_all_origins" koanf:"allow_all_origins"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" koanf:"shutdown_timeout"`
}

// DatabaseConfig locates the notification log database.
type DatabaseConfig struct {
	Path string `yaml:"path" koanf:"path"`
}

// LogConfig controls the process logger.
type LogConfig struct {
	Level  string `yaml:"level" koanf:"level"`
	Format string `yaml:"format" koanf:"format"` // json or console
}

// GraphConfig holds Meta WhatsApp Cloud API credentials.
type GraphConfig struct {
	BaseURL           string        `yaml:"base_url" koanf:"base_url"`
	APIVersion        string        `yaml:"api_version" koanf:"api_version"`
	AccessToken       string        `yaml:"access_token,omitempty" koanf:"access_token"`
	PhoneNumberID     string        `yaml:"phone_number_id,omitempty" koanf:"phone_number_id"`
	BusinessAccountID string        `yaml:"business_account_id,omitempty" koanf:"business_account_id"`
	Timeout           time.Duration `yaml:"timeout" koanf:"timeout"`
}

// TwilioConfig holds Twilio WhatsApp credentials.
type TwilioConfig struct {
	BaseURL        string        `yaml:"base_url" koanf:"base_url"`
	AccountSID     string        `yaml:"account_sid,omitempty" koanf:"account_sid"`
	AuthToken      string        `yaml:"auth_token,omitempty" koanf:"auth_token"`
	WhatsAppNumber string        `yaml:"whatsapp_number,omitempty" koanf:"whatsapp_number"`
	Timeout        time.Duration `yaml:"timeout" koanf:"timeout"`
}

// DeliveryConfig tunes the background dispatcher.
type DeliveryConfig struct {
	PacingInterval  time.Duration `yaml:"pacing_interval" koanf:"pacing_interval"`
	QueueSize       int           `yaml:"queue_size" koanf:"queue_size"`
	Workers         int           `yaml:"workers" koanf:"workers"`
	AttachThumbnail bool          `yaml:"attach_thumbnail" koanf:"attach_thumbnail"`
}

// RecipientsConfig describes who receives event notifications.
type RecipientsConfig struct {
	Policy     RecipientPolicy   `yaml:"policy" koanf:"policy"`
	Default    []string          `yaml:"default,omitempty" koanf:"default"`
	Directory  map[string]string `yaml:"directory,omitempty" koanf:"directory"`
	Rules      []RuleConfig      `yaml:"rules,omitempty" koanf:"rules"`
	TestNumber string            `yaml:"test_number,omitempty" koanf:"test_number"`
}

// RuleConfig adds recipients for events matching every non-empty condition.
type RuleConfig struct {
	Name       string   `yaml:"name" koanf:"name"`
	Pattern    string   `yaml:"pattern,omitempty" koanf:"pattern"`       // doublestar glob on the file name
	FileType   string   `yaml:"file_type,omitempty" koanf:"file_type"`   // substring of the MIME type
	EventTypes []string `yaml:"event_types,omitempty" koanf:"event_types"`
	Recipients []string `yaml:"recipients" koanf:"recipients"`
}

// MessageConfig controls message rendering.
type MessageConfig struct {
	Timezone string `yaml:"timezone" koanf:"timezone"`
}

// RetentionConfig drives the periodic purge of old log records.
type RetentionConfig struct {
	Days     int           `yaml:"days" koanf:"days"`
	Interval time.Duration `yaml:"interval" koanf:"interval"`
}
