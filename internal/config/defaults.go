package config

import "time"

// DefaultGraphBaseURL is the Meta Graph API host.
const DefaultGraphBaseURL = "https://graph.facebook.com"

// DefaultTwilioBaseURL is the Twilio REST API root.
const DefaultTwilioBaseURL = "https://api.twilio.com/2010-04-01"

// DefaultConfig returns a Config with sensible defaults.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Port:            8000,
			AllowAllOrigins: true,
			ShutdownTimeout: 30 * time.Second,
		},
		Database: DatabaseConfig{
			Path: "data/drivenotify.db",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
		Channel: ChannelGraph,
		Graph: GraphConfig{
			BaseURL:    DefaultGraphBaseURL,
			APIVersion: "v18.0",
			Timeout:    30 * time.Second,
		},
		Twilio: TwilioConfig{
			BaseURL: DefaultTwilioBaseURL,
			Timeout: 30 * time.Second,
		},
		Delivery: DeliveryConfig{
			PacingInterval:  time.Second,
			QueueSize:       100,
			Workers:         1,
			AttachThumbnail: true,
		},
		Recipients: RecipientsConfig{
			Policy: PolicyStatic,
		},
		Message: MessageConfig{
			Timezone: "Asia/Seoul",
		},
		Retention: RetentionConfig{
			Days:     0,
			Interval: 24 * time.Hour,
		},
	}
}
