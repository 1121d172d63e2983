package config

import (
	"errors"
	"fmt"

	"github.com/caarlos0/env/v11"
)

// SourceConfig holds the payroll/ERP ("Costpoint") API connection settings,
// decoded from the per-client secret.
type SourceConfig struct {
	BaseURL          string
	System           string
	Company          string
	Username         string
	Password         string
	FilterNotesValue string
}

// SourceFromSecret builds a SourceConfig from the secret's key/value pairs.
func SourceFromSecret(secret map[string]string) SourceConfig {
	cfg := SourceConfig{
		BaseURL:          secret["base_url"],
		System:           secret["system"],
		Company:          secret["cp_company"],
		Username:         secret["username"],
		Password:         secret["password"],
		FilterNotesValue: secret["filter_notes_value"],
	}
	if cfg.FilterNotesValue == "" {
		cfg.FilterNotesValue = "CT"
	}
	return cfg
}

func (c SourceConfig) Validate() error {
	if c.BaseURL == "" || c.System == "" || c.Company == "" || c.Username == "" || c.Password == "" {
		return errors.New("source config: base_url, system, cp_company, username and password are all required")
	}
	return nil
}

// FullURL is the query endpoint with the tenant identifiers attached.
func (c SourceConfig) FullURL() string {
	return fmt.Sprintf("%s?system=%s&company=%s", c.BaseURL, c.System, c.Company)
}

const defaultUsersURL = "https://api.connecteam.com/users/v1/users"

// TargetConfig holds the workforce-management ("Connecteam") API settings.
type TargetConfig struct {
	APIKey       string
	UsersBaseURL string
}

// TargetFromSecret builds a TargetConfig from the secret's key/value pairs.
// The API key is mandatory.
func TargetFromSecret(secret map[string]string) (TargetConfig, error) {
	key := secret["key"]
	if key == "" {
		return TargetConfig{}, errors.New("target config: API key not found in secret")
	}
	url := secret["users_base_url"]
	if url == "" {
		url = defaultUsersURL
	}
	return TargetConfig{APIKey: key, UsersBaseURL: url}, nil
}

// Settings are run-level knobs taken from the environment.
type Settings struct {
	AWSRegion      string   `env:"AWS_REGION" envDefault:"us-gov-east-1"`
	MailRegion     string   `env:"SES_REGION" envDefault:"us-east-1"`
	SnapshotBucket string   `env:"SNAPSHOT_BUCKET" envDefault:"gardaworld"`
	SnapshotPrefix string   `env:"SNAPSHOT_PREFIX" envDefault:"new-employees"`
	MailFrom       string   `env:"SES_FROM_EMAIL" envDefault:"noreply@pci-federal.com"`
	MailTo         []string `env:"SES_TO_EMAILS"`
	FunctionName   string   `env:"AWS_LAMBDA_FUNCTION_NAME" envDefault:"connectteam-to-costpoint-new-employees"`

	// Optional SFTP mirror for audit snapshots. Enabled when Host is set.
	SFTPHost      string `env:"SFTP_HOST"`
	SFTPPort      int    `env:"SFTP_PORT" envDefault:"22"`
	SFTPUser      string `env:"SFTP_USER"`
	SFTPPass      string `env:"SFTP_PASS"`
	SFTPRemoteDir string `env:"SFTP_REMOTE_DIR" envDefault:"/"`
}

// LoadSettings parses Settings from environment variables.
func LoadSettings() (Settings, error) {
	var s Settings
	if err := env.Parse(&s); err != nil {
		return Settings{}, fmt.Errorf("parse env: %w", err)
	}
	return s, nil
}
