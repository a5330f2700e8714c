package config

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/cobra"
)

// Config captures all options required to run one report pass.
type Config struct {
	OrgID              string
	DirectoryToken     string
	ClientID           string
	ClientSecret       string
	IMAPHost           string
	IMAPPort           int
	InsecureSkipVerify bool
	Timeout            time.Duration
	MaxSessions        int
	OutputPath         string
	LogLevel           string
	LogDir             string
	IncludeEmail       []string
	ExcludeEmail       []string
}

// RegisterFlags attaches all CLI flags to the provided command.
func RegisterFlags(cmd *cobra.Command) {
	flags := cmd.Flags()
	flags.String("org-id", "", "Organization id in the directory (falls back to ORG_ID env var)")
	flags.String("directory-token", "", "Bearer token for the directory API (falls back to TOKEN env var)")
	flags.String("client-id", "", "OAuth client id for per-user token exchange (falls back to CLIENT_ID env var)")
	flags.String("client-secret", "", "OAuth client secret (falls back to CLIENT_SECRET env var)")
	flags.String("imap-host", "imap.yandex.ru", "IMAP server hostname")
	flags.Int("imap-port", 993, "IMAP server port")
	flags.Bool("insecure-skip-verify", false, "Skip TLS certificate verification (not recommended)")
	flags.Duration("timeout", 60*time.Second, "Timeout for a single network operation")
	flags.Int("max-sessions", 30, "Maximum number of concurrently open IMAP sessions")
	flags.String("output", "", "Report CSV path (default mailbox_sizes_<unix time>.csv)")
	flags.String("log-level", "info", "Logging level: debug, info, warn, error")
	flags.String("log-dir", "", "Directory for log files (stdout only when empty)")
	flags.StringArray("include-email", nil, "Regex allow-list applied to user emails (mutually exclusive with --exclude-email)")
	flags.StringArray("exclude-email", nil, "Regex block-list applied to user emails (mutually exclusive with --include-email)")
}

// LoadConfig converts the parsed Cobra flags into a Config struct with
// validation. Credentials left unset fall back to the environment, which
// godotenv may have populated from a .env file.
func LoadConfig(cmd *cobra.Command) (Config, error) {
	flags := cmd.Flags()

	orgID, err := flags.GetString("org-id")
	if err != nil {
		return Config{}, err
	}
	directoryToken, err := flags.GetString("directory-token")
	if err != nil {
		return Config{}, err
	}
	clientID, err := flags.GetString("client-id")
	if err != nil {
		return Config{}, err
	}
	clientSecret, err := flags.GetString("client-secret")
	if err != nil {
		return Config{}, err
	}
	imapHost, err := flags.GetString("imap-host")
	if err != nil {
		return Config{}, err
	}
	imapPort, err := flags.GetInt("imap-port")
	if err != nil {
		return Config{}, err
	}
	insecureSkipVerify, err := flags.GetBool("insecure-skip-verify")
	if err != nil {
		return Config{}, err
	}
	timeout, err := flags.GetDuration("timeout")
	if err != nil {
		return Config{}, err
	}
	maxSessions, err := flags.GetInt("max-sessions")
	if err != nil {
		return Config{}, err
	}
	outputPath, err := flags.GetString("output")
	if err != nil {
		return Config{}, err
	}
	logLevel, err := flags.GetString("log-level")
	if err != nil {
		return Config{}, err
	}
	logDir, err := flags.GetString("log-dir")
	if err != nil {
		return Config{}, err
	}
	includeEmail, err := flags.GetStringArray("include-email")
	if err != nil {
		return Config{}, err
	}
	excludeEmail, err := flags.GetStringArray("exclude-email")
	if err != nil {
		return Config{}, err
	}

	if orgID == "" {
		orgID = os.Getenv("ORG_ID")
	}
	if directoryToken == "" {
		directoryToken = os.Getenv("TOKEN")
	}
	if clientID == "" {
		clientID = os.Getenv("CLIENT_ID")
	}
	if clientSecret == "" {
		clientSecret = os.Getenv("CLIENT_SECRET")
	}

	if outputPath == "" {
		outputPath = fmt.Sprintf("mailbox_sizes_%d.csv", time.Now().Unix())
	}

	logLevel = strings.ToLower(logLevel)
	if logLevel == "warning" {
		logLevel = "warn"
	}

	cfg := Config{
		OrgID:              orgID,
		DirectoryToken:     directoryToken,
		ClientID:           clientID,
		ClientSecret:       clientSecret,
		IMAPHost:           imapHost,
		IMAPPort:           imapPort,
		InsecureSkipVerify: insecureSkipVerify,
		Timeout:            timeout,
		MaxSessions:        maxSessions,
		OutputPath:         outputPath,
		LogLevel:           logLevel,
		LogDir:             logDir,
		IncludeEmail:       includeEmail,
		ExcludeEmail:       excludeEmail,
	}

	if err := validateConfig(cfg); err != nil {
		return Config{}, err
	}

	return cfg, nil
}

func validateConfig(cfg Config) error {
	if cfg.OrgID == "" {
		return fmt.Errorf("organization id must be provided via --org-id or ORG_ID env var")
	}
	if cfg.DirectoryToken == "" {
		return fmt.Errorf("directory token must be provided via --directory-token or TOKEN env var")
	}
	if cfg.ClientID == "" {
		return fmt.Errorf("OAuth client id must be provided via --client-id or CLIENT_ID env var")
	}
	if cfg.ClientSecret == "" {
		return fmt.Errorf("OAuth client secret must be provided via --client-secret or CLIENT_SECRET env var")
	}
	if cfg.IMAPHost == "" {
		return fmt.Errorf("--imap-host is required")
	}
	if cfg.IMAPPort <= 0 || cfg.IMAPPort > 65535 {
		return fmt.Errorf("--imap-port must be between 1 and 65535")
	}
	if cfg.MaxSessions <= 0 {
		return fmt.Errorf("--max-sessions must be positive")
	}
	if cfg.Timeout <= 0 {
		return fmt.Errorf("--timeout must be positive")
	}

	switch cfg.LogLevel {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid --log-level: %s", cfg.LogLevel)
	}

	return nil
}
