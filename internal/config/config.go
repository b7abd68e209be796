package config

import "github.com/kelseyhightower/envconfig"

// Config holds application configuration loaded from environment variables.
type Config struct {
	ServerPort string `envconfig:"SERVER_PORT" default:"8080"`
	LogLevel   string `envconfig:"LOG_LEVEL" default:"info"` // debug|info|warn|error

	DBHost     string `envconfig:"DB_HOST" default:"localhost"`
	DBPort     string `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" default:"courtside"`
	DBPassword string `envconfig:"DB_PASSWORD" default:"courtside_dev_password"`
	DBName     string `envconfig:"DB_NAME" default:"courtside"`

	JWTSecret string `envconfig:"JWT_SECRET" default:"dev-secret-change-me"`

	// All wall-clock scheduling is interpreted in this one timezone.
	LeagueTimezone string `envconfig:"LEAGUE_TIMEZONE" default:"America/New_York"`

	TwilioAccountSID  string `envconfig:"TWILIO_ACCOUNT_SID"`
	TwilioAuthToken   string `envconfig:"TWILIO_AUTH_TOKEN"`
	TwilioPhoneNumber string `envconfig:"TWILIO_PHONE_NUMBER"`

	SendGridAPIKey    string `envconfig:"SENDGRID_API_KEY"`
	SendGridFromEmail string `envconfig:"SENDGRID_FROM_EMAIL" default:"noreply@courtside.app"`
	SendGridFromName  string `envconfig:"SENDGRID_FROM_NAME" default:"Courtside League"`
}

// Load reads environment variables into Config.
func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}
