package config

import (
	"errors"
	"fmt"
	"os"

	"matchwell/internal/models"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

type Config struct {
	App        AppConfig          `yaml:"app"`
	Server     ServerConfig       `yaml:"server"`
	Database   DatabaseConfig     `yaml:"database"`
	Redis      RedisConfig        `yaml:"redis"`
	Backup     BackupConfig       `yaml:"backup"`
	Monitoring MonitoringConfig   `yaml:"monitoring"`
	Logging    LoggingConfig      `yaml:"logging"`
	Admin      AdminConfig        `yaml:"admin"`
	Intake     IntakeConfig       `yaml:"intake"`
	Matching   MatchingConfig     `yaml:"matching"`
	Verify     VerifyConfig       `yaml:"verify"`
	Notify     NotifyConfig       `yaml:"notify"`
	Exports    ExportConfig       `yaml:"exports"`
	Therapists []models.Therapist `yaml:"therapists"`
}

type AppConfig struct {
	Name        string `yaml:"name"`
	Environment string `yaml:"environment"`
	Version     string `yaml:"version"`
}

type ServerConfig struct {
	Port              int     `yaml:"port"`
	ReadHeaderTimeout int     `yaml:"read_header_timeout"` // seconds
	WriteTimeout      int     `yaml:"write_timeout"`       // seconds
	PublicRPS         float64 `yaml:"public_rps"`
	PublicBurst       int     `yaml:"public_burst"`
}

type DatabaseConfig struct {
	Path string `yaml:"path"`
}

type RedisConfig struct {
	Address  string `yaml:"address"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	PoolSize int    `yaml:"pool_size"`
}

type BackupConfig struct {
	Enabled       bool   `yaml:"enabled"`
	Schedule      string `yaml:"schedule"`
	RetentionDays int    `yaml:"retention_days"`
	StoragePath   string `yaml:"storage_path"`
}

type MonitoringConfig struct {
	PrometheusEnabled bool `yaml:"prometheus_enabled"`
	PrometheusPort    int  `yaml:"prometheus_port"`
}

type LoggingConfig struct {
	Level    string `yaml:"level"`
	Format   string `yaml:"format"`
	Output   string `yaml:"output"`
	FilePath string `yaml:"file_path"`
}

// AdminConfig covers API-key auth and rate limiting for the admin endpoints.
type AdminConfig struct {
	Enabled      bool           `yaml:"enabled"`
	HeaderAPIKey string         `yaml:"header_api_key"`
	HeaderExtra  string         `yaml:"header_extra"`
	APIKeys      []APIClientKey `yaml:"api_keys"`
	RPS          float64        `yaml:"rps"`
	Burst        int            `yaml:"burst"`
}

type APIClientKey struct {
	Key         string   `yaml:"key"`
	Extra       string   `yaml:"extra"`
	Name        string   `yaml:"name"`
	Permissions []string `yaml:"permissions"`
}

type IntakeConfig struct {
	SessionTTL     int `yaml:"session_ttl"` // seconds
	MaxBookingDays int `yaml:"max_booking_days"`
}

// MatchingConfig tunes the sweep that expires unanswered match proposals.
type MatchingConfig struct {
	ProposalTTL   int `yaml:"proposal_ttl"`   // seconds
	SweepInterval int `yaml:"sweep_interval"` // seconds
}

type VerifyConfig struct {
	CodeTTL      int `yaml:"code_ttl"` // seconds
	MaxAttempts  int `yaml:"max_attempts"`
	ResendLimit  int `yaml:"resend_limit"`
	ResendWindow int `yaml:"resend_window"` // seconds
}

// NotifyConfig configures the outbound message senders.
type NotifyConfig struct {
	SMTP SMTPConfig       `yaml:"smtp"`
	SMS  SMSGatewayConfig `yaml:"sms"`
}

type SMTPConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	From     string `yaml:"from"`
}

// SMSGatewayConfig points at a generic JSON SMS gateway.
type SMSGatewayConfig struct {
	URL    string `yaml:"url"`
	APIKey string `yaml:"api_key"`
	Sender string `yaml:"sender"`
}

type ExportConfig struct {
	Path string `yaml:"path"`
}

func Load(configPath string) (*Config, error) {
	// .env is optional outside of local development.
	_ = godotenv.Load(".env")

	data, err := os.ReadFile(configPath)
	if err != nil {
		return nil, err
	}

	// Expand ${VAR} references before parsing.
	expandedData := []byte(os.ExpandEnv(string(data)))

	var config Config
	if err := yaml.Unmarshal(expandedData, &config); err != nil {
		return nil, err
	}

	config.applyDefaults()

	if err := config.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	return &config, nil
}

func (c *Config) Validate() error {
	if c.Database.Path == "" {
		return errors.New("database path is required")
	}

	if c.Admin.Enabled && len(c.Admin.APIKeys) == 0 {
		return errors.New("admin auth enabled but no api_keys configured")
	}

	return ValidateTherapists(c.Therapists)
}

// ValidateTherapists rejects duplicate or zero ids and non-positive capacity.
func ValidateTherapists(therapists []models.Therapist) error {
	seen := make(map[int64]bool)
	for _, t := range therapists {
		if t.ID == 0 {
			return fmt.Errorf("therapist '%s' has invalid ID 0", t.Name)
		}
		if seen[t.ID] {
			return fmt.Errorf("duplicate therapist ID found: %d", t.ID)
		}
		seen[t.ID] = true
		if t.DailyCapacity <= 0 {
			return fmt.Errorf("therapist '%s' has non-positive daily capacity", t.Name)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Server.Port == 0 {
		c.Server.Port = 8080
	}
	if c.Server.ReadHeaderTimeout == 0 {
		c.Server.ReadHeaderTimeout = 5
	}
	if c.Server.WriteTimeout == 0 {
		c.Server.WriteTimeout = 15
	}
	if c.Server.PublicRPS == 0 {
		c.Server.PublicRPS = 10
	}
	if c.Server.PublicBurst == 0 {
		c.Server.PublicBurst = 20
	}
	if c.Monitoring.PrometheusEnabled && c.Monitoring.PrometheusPort == 0 {
		c.Monitoring.PrometheusPort = 9090
	}
	if c.Admin.HeaderAPIKey == "" {
		c.Admin.HeaderAPIKey = "x-api-key"
	}
	if c.Admin.HeaderExtra == "" {
		c.Admin.HeaderExtra = "x-api-extra"
	}
	if c.Admin.RPS == 0 {
		c.Admin.RPS = 5
	}
	if c.Admin.Burst == 0 {
		c.Admin.Burst = 10
	}

	if c.Intake.SessionTTL == 0 {
		c.Intake.SessionTTL = models.DefaultSessionTTL
	}
	if c.Intake.MaxBookingDays == 0 {
		c.Intake.MaxBookingDays = 90
	}

	if c.Matching.ProposalTTL == 0 {
		c.Matching.ProposalTTL = models.DefaultProposalTTL
	}
	if c.Matching.SweepInterval == 0 {
		c.Matching.SweepInterval = 3600
	}

	if c.Verify.CodeTTL == 0 {
		c.Verify.CodeTTL = models.VerificationCodeTTL
	}
	if c.Verify.MaxAttempts == 0 {
		c.Verify.MaxAttempts = models.VerificationMaxAttempts
	}
	if c.Verify.ResendLimit == 0 {
		c.Verify.ResendLimit = models.VerificationResendLimit
	}
	if c.Verify.ResendWindow == 0 {
		c.Verify.ResendWindow = models.VerificationResendWindow
	}

	if c.Exports.Path == "" {
		c.Exports.Path = "exports"
	}
}
