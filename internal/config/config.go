package config

import (
	"fmt"
	"time"

	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port        string `envconfig:"PORT" default:"8080"`
	Environment string `envconfig:"ENV" default:"development"`

	DBHost     string `envconfig:"DB_HOST" required:"true"`
	DBPort     int    `envconfig:"DB_PORT" default:"5432"`
	DBUser     string `envconfig:"DB_USER" required:"true"`
	DBPassword string `envconfig:"DB_PASSWORD"`
	DBName     string `envconfig:"DB_NAME" required:"true"`
	// DBPasswordSecretName, when set, overrides DB_PASSWORD with the secret's
	// latest version from GCP Secret Manager.
	DBPasswordSecretName string `envconfig:"DB_PASSWORD_SECRET_NAME"`

	// Session settings
	SessionTTLHours int `envconfig:"SESSION_TTL_HOURS" default:"720"`

	// Plan catalog quotas (units per calendar month). Enterprise is
	// unlimited and carries no knob.
	FreeMonthlyQuota int64 `envconfig:"FREE_MONTHLY_QUOTA" default:"100"`
	ProMonthlyQuota  int64 `envconfig:"PRO_MONTHLY_QUOTA" default:"10000"`
	TeamMonthlyQuota int64 `envconfig:"TEAM_MONTHLY_QUOTA" default:"100000"`

	// Event publishing & billing push settings
	GCPProjectID                   string `envconfig:"GCP_PROJECT_ID"`
	AccountEventsTopic             string `envconfig:"ACCOUNT_EVENTS_TOPIC" default:"account-events"`
	PubSubEmulatorHost             string `envconfig:"PUBSUB_EMULATOR_HOST"`
	BillingPushEndpointURL         string `envconfig:"BILLING_PUSH_ENDPOINT_URL"`
	BillingPushServiceAccountEmail string `envconfig:"BILLING_PUSH_SERVICE_ACCOUNT_EMAIL"`
	BillingRetryQueue              string `envconfig:"BILLING_RETRY_QUEUE" default:"billing_events_retry"`

	// Usage export object storage
	S3URL       string `envconfig:"S3_URL"`
	S3Bucket    string `envconfig:"S3_BUCKET" default:"usage-exports"`
	S3Region    string `envconfig:"S3_REGION" default:"us-east-1"`
	S3AccessKey string `envconfig:"S3_ACCESS_KEY"`
	S3SecretKey string `envconfig:"S3_SECRET_KEY"`
}

func Load() (*Config, error) {
	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// SessionTTL returns the fixed session lifetime.
func (c *Config) SessionTTL() time.Duration {
	return time.Duration(c.SessionTTLHours) * time.Hour
}

// DatabaseDSN builds the postgres connection string. Development disables
// SSL for local stacks; production connection settings come from the
// deployment environment.
func (c *Config) DatabaseDSN() string {
	dsn := fmt.Sprintf("postgres://%s:%s@%s:%d/%s", c.DBUser, c.DBPassword, c.DBHost, c.DBPort, c.DBName)
	if c.Environment == "development" {
		dsn += "?sslmode=disable"
	}
	return dsn
}
