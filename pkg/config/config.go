package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

const (
	ProviderGmail = "gmail"
	ProviderIMAP  = "imap"
)

type Config struct {
	Port           string `envconfig:"PORT" default:"8080"`
	DatabaseURL    string `envconfig:"DATABASE_URL" required:"true"`
	APITokenSecret string `envconfig:"API_TOKEN_SECRET"`
	MaxUploadBytes int64  `envconfig:"MAX_UPLOAD_BYTES" default:"26214400"`

	Mailbox  MailboxConfig
	Google   GoogleConfig
	Firebase FirebaseConfig
	IMAP     IMAPConfig
	SMTP     SMTPConfig
	Sync     SyncConfig
	Archive  ArchiveConfig
}

type MailboxConfig struct {
	Address  string `envconfig:"MAILBOX_ADDRESS"`
	Name     string `envconfig:"MAILBOX_NAME"`
	Provider string `envconfig:"MAIL_PROVIDER" default:"gmail"`
}

type GoogleConfig struct {
	ClientID        string `envconfig:"GOOGLE_CLIENT_ID"`
	ClientSecret    string `envconfig:"GOOGLE_CLIENT_SECRET"`
	RefreshToken    string `envconfig:"GOOGLE_REFRESH_TOKEN"`
	ProjectID       string `envconfig:"GOOGLE_PROJECT_ID"`
	PubSubTopic     string `envconfig:"GOOGLE_PUBSUB_TOPIC"`
	CredentialsFile string `envconfig:"GOOGLE_APPLICATION_CREDENTIALS"`
}

type FirebaseConfig struct {
	CredentialsFile string `envconfig:"FIREBASE_CREDENTIALS"`
	ProjectID       string `envconfig:"FIREBASE_PROJECT_ID"`
	FCMTopic        string `envconfig:"FCM_TOPIC"`
}

type IMAPConfig struct {
	Host     string `envconfig:"IMAP_HOST"`
	Port     int    `envconfig:"IMAP_PORT" default:"993"`
	Username string `envconfig:"IMAP_USERNAME"`
	Password string `envconfig:"IMAP_PASSWORD"`
	UseTLS   bool   `envconfig:"IMAP_TLS" default:"true"`
	Mailbox  string `envconfig:"IMAP_MAILBOX" default:"INBOX"`
}

type SMTPConfig struct {
	Host     string `envconfig:"SMTP_HOST"`
	Port     int    `envconfig:"SMTP_PORT" default:"587"`
	Username string `envconfig:"SMTP_USERNAME"`
	Password string `envconfig:"SMTP_PASSWORD"`
}

// SyncConfig holds the sync engine tunables
type SyncConfig struct {
	FallbackWindow   time.Duration `envconfig:"SYNC_FALLBACK_WINDOW" default:"168h"`
	PageSize         int           `envconfig:"SYNC_PAGE_SIZE" default:"100"`
	Interval         time.Duration `envconfig:"SYNC_INTERVAL" default:"0"`
	FetchConcurrency int           `envconfig:"FEED_FETCH_CONCURRENCY" default:"10"`
	StoreAttempts    int           `envconfig:"STORE_WRITE_ATTEMPTS" default:"2"`
}

type ArchiveConfig struct {
	Endpoint  string `envconfig:"ARCHIVE_S3_ENDPOINT"`
	Region    string `envconfig:"ARCHIVE_S3_REGION" default:"us-east-1"`
	Bucket    string `envconfig:"ARCHIVE_S3_BUCKET"`
	AccessKey string `envconfig:"ARCHIVE_S3_ACCESS_KEY"`
	SecretKey string `envconfig:"ARCHIVE_S3_SECRET_KEY"`
}

func Load() (*Config, error) {
	// Load .env file if it exists
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings the selected provider needs
func (c *Config) Validate() error {
	c.Mailbox.Provider = strings.ToLower(strings.TrimSpace(c.Mailbox.Provider))

	switch c.Mailbox.Provider {
	case ProviderGmail:
		if c.Google.ClientID == "" || c.Google.ClientSecret == "" || c.Google.RefreshToken == "" {
			return fmt.Errorf("gmail provider requires GOOGLE_CLIENT_ID, GOOGLE_CLIENT_SECRET and GOOGLE_REFRESH_TOKEN")
		}
	case ProviderIMAP:
		if c.IMAP.Host == "" || c.SMTP.Host == "" {
			return fmt.Errorf("imap provider requires IMAP_HOST and SMTP_HOST")
		}
		if c.Mailbox.Address == "" {
			return fmt.Errorf("imap provider requires MAILBOX_ADDRESS")
		}
	default:
		return fmt.Errorf("unknown MAIL_PROVIDER %q", c.Mailbox.Provider)
	}

	if c.Sync.FallbackWindow <= 0 {
		return fmt.Errorf("SYNC_FALLBACK_WINDOW must be positive")
	}
	if c.Sync.PageSize <= 0 {
		return fmt.Errorf("SYNC_PAGE_SIZE must be positive")
	}
	return nil
}
