package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
	"github.com/subosito/gotenv"
)

// Config holds all application configuration. Loaded once at startup;
// changing access lists requires a restart.
type Config struct {
	Telegram TelegramConfig `mapstructure:"telegram"`
	Server   ServerConfig   `mapstructure:"server"`
	Database DatabaseConfig `mapstructure:"database"`
	Logger   LoggerConfig   `mapstructure:"logger"`
	Wizard   WizardConfig   `mapstructure:"wizard"`
	Access   AccessConfig   `mapstructure:"access"`
	Catalog  CatalogConfig  `mapstructure:"catalog"`
	Storage  StorageConfig  `mapstructure:"storage"`
	Export   ExportConfig   `mapstructure:"export"`
}

// TelegramConfig holds Telegram Bot API configuration
type TelegramConfig struct {
	Token       string        `mapstructure:"token"`
	PollTimeout time.Duration `mapstructure:"poll_timeout"`
}

// ServerConfig holds the HTTP health server configuration
type ServerConfig struct {
	Host         string        `mapstructure:"host"`
	Port         int           `mapstructure:"port"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path            string        `mapstructure:"path"`
	MaxOpenConns    int           `mapstructure:"max_open_conns"`
	MaxIdleConns    int           `mapstructure:"max_idle_conns"`
	ConnMaxLifetime time.Duration `mapstructure:"conn_max_lifetime"`
	MigrationsDir   string        `mapstructure:"migrations_dir"`
}

// LoggerConfig holds logger configuration
type LoggerConfig struct {
	Level      string `mapstructure:"level"`
	OutputPath string `mapstructure:"output_path"`
	Format     string `mapstructure:"format"`
}

// WizardConfig holds request-creation wizard configuration
type WizardConfig struct {
	IdleTimeout time.Duration `mapstructure:"idle_timeout"`
	MaxRetries  int           `mapstructure:"max_retries"`
}

// AccessConfig holds the role and scoping tables of the permission model.
// Source and project scoping map an identifier to the user ids authorized
// to act on requests carrying it.
type AccessConfig struct {
	AdminIDs          []int64            `mapstructure:"admin_ids"`
	FinControlIDs     []int64            `mapstructure:"fincontrol_ids"`
	AllAccessAdminIDs []int64            `mapstructure:"all_access_admin_ids"`
	AllowAdminCreate  bool               `mapstructure:"allow_admin_create"`
	SourceAdmins      map[string][]int64 `mapstructure:"source_admins"`
	ProjectAdmins     map[string][]int64 `mapstructure:"project_admins"`
}

// CatalogConfig holds the selectable value sets presented by the wizard
type CatalogConfig struct {
	Projects    map[string]string `mapstructure:"projects"`
	Currencies  []string          `mapstructure:"currencies"`
	Sources     map[string]string `mapstructure:"sources"`
	NoteOptions []string          `mapstructure:"note_options"`
}

// StorageConfig holds document storage configuration
type StorageConfig struct {
	DocumentsDir string `mapstructure:"documents_dir"`
}

// ExportConfig holds export configuration. Format selects the report
// writer, xlsx or csv.
type ExportConfig struct {
	OutputDir string `mapstructure:"output_dir"`
	Format    string `mapstructure:"format"`
}

// Load loads configuration from file and environment variables. An
// optional bot.env file is read into the environment first.
func Load(configPath string) (*Config, error) {
	_ = gotenv.Load("bot.env")

	viper.SetConfigFile(configPath)
	viper.SetConfigType("yaml")
	viper.AutomaticEnv()

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	bindEnvVars()

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	applyAccessEnvOverrides(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return &cfg, nil
}

// setDefaults sets default configuration values
func setDefaults() {
	// Telegram defaults
	viper.SetDefault("telegram.poll_timeout", 30*time.Second)

	// Server defaults
	viper.SetDefault("server.host", "0.0.0.0")
	viper.SetDefault("server.port", 8080)
	viper.SetDefault("server.read_timeout", 30*time.Second)
	viper.SetDefault("server.write_timeout", 30*time.Second)

	// Database defaults
	viper.SetDefault("database.path", "data/bot.db")
	viper.SetDefault("database.max_open_conns", 25)
	viper.SetDefault("database.max_idle_conns", 5)
	viper.SetDefault("database.conn_max_lifetime", 5*time.Minute)
	viper.SetDefault("database.migrations_dir", "migrations")

	// Logger defaults
	viper.SetDefault("logger.level", "info")
	viper.SetDefault("logger.output_path", "stdout")
	viper.SetDefault("logger.format", "json")

	// Wizard defaults
	viper.SetDefault("wizard.idle_timeout", 30*time.Minute)
	viper.SetDefault("wizard.max_retries", 5)

	// Access defaults
	viper.SetDefault("access.allow_admin_create", false)

	// Catalog defaults mirror the deployed value sets
	viper.SetDefault("catalog.projects", map[string]string{
		"mf_rf":    "MF RF",
		"mf_kz":    "MF KZ",
		"mf_am":    "MF AM",
		"mf_world": "MF World",
	})
	viper.SetDefault("catalog.currencies", []string{"RUB", "KZT", "AMD", "USD", "EUR", "USDT"})
	viper.SetDefault("catalog.sources", map[string]string{
		"rs_rf":         "Account RF",
		"rs_too_kz":     "Account TOO KZ",
		"rs_ip_kz":      "Account IP KZ",
		"card_too_kz":   "Card TOO KZ",
		"card_ip_kz":    "Card IP KZ",
		"rs_ooo_am":     "Account OOO AM",
		"rs_ooo_am_eur": "Account OOO AM EUR",
		"card_ooo_am":   "Card OOO AM",
		"crypto":        "Crypto",
		"cash":          "Cash",
	})
	viper.SetDefault("catalog.note_options", []string{
		"Advertising",
		"Campaign support",
		"Communications. SMS",
		"Communications. Autodial",
		"Communications. Mailouts",
		"Communications. Telephony",
		"Communications. Online",
	})

	// Storage and export defaults
	viper.SetDefault("storage.documents_dir", "documents")
	viper.SetDefault("export.output_dir", "exports")
	viper.SetDefault("export.format", "xlsx")
}

// bindEnvVars binds environment variables to configuration
func bindEnvVars() {
	viper.BindEnv("telegram.token", "TELEGRAM_TOKEN")
	viper.BindEnv("database.path", "DATABASE_PATH")
	viper.BindEnv("access.allow_admin_create", "ALLOW_ADMIN_CREATE")
}

// applyAccessEnvOverrides overlays the id-list environment variables the
// deployment sets on top of the file configuration: ADMIN_IDS,
// FINCONTROL_IDS, ALL_ACCESS_ADMIN_IDS, ADMIN_SOURCE_<SOURCE> and
// ADMIN_CRYPTO_<PROJECT>, each a comma-separated list of user ids.
// ADMIN_PROJECT_<PROJECT> is accepted as an alias of ADMIN_CRYPTO_<PROJECT>
// for deployments that prefer the plainer name.
func applyAccessEnvOverrides(cfg *Config) {
	if ids := parseIDList(os.Getenv("ADMIN_IDS")); ids != nil {
		cfg.Access.AdminIDs = ids
	}
	if ids := parseIDList(os.Getenv("FINCONTROL_IDS")); ids != nil {
		cfg.Access.FinControlIDs = ids
	}
	if ids := parseIDList(os.Getenv("ALL_ACCESS_ADMIN_IDS")); ids != nil {
		cfg.Access.AllAccessAdminIDs = ids
	}

	for source := range cfg.Catalog.Sources {
		envVar := "ADMIN_SOURCE_" + strings.ToUpper(source)
		if ids := parseIDList(os.Getenv(envVar)); ids != nil {
			if cfg.Access.SourceAdmins == nil {
				cfg.Access.SourceAdmins = make(map[string][]int64)
			}
			cfg.Access.SourceAdmins[source] = ids
		}
	}

	for project := range cfg.Catalog.Projects {
		suffix := strings.ToUpper(project)
		raw := os.Getenv("ADMIN_CRYPTO_" + suffix)
		if raw == "" {
			raw = os.Getenv("ADMIN_PROJECT_" + suffix)
		}
		if ids := parseIDList(raw); ids != nil {
			if cfg.Access.ProjectAdmins == nil {
				cfg.Access.ProjectAdmins = make(map[string][]int64)
			}
			cfg.Access.ProjectAdmins[project] = ids
		}
	}
}

// parseIDList parses a comma-separated id list, skipping blanks and
// malformed entries
func parseIDList(raw string) []int64 {
	if raw == "" {
		return nil
	}

	var ids []int64
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		id, err := strconv.ParseInt(part, 10, 64)
		if err != nil {
			continue
		}
		ids = append(ids, id)
	}
	return ids
}

// Validate validates the configuration
func (c *Config) Validate() error {
	if c.Telegram.Token == "" {
		return fmt.Errorf("telegram.token is required")
	}

	if len(c.Catalog.Projects) == 0 {
		return fmt.Errorf("catalog.projects must not be empty")
	}
	if len(c.Catalog.Currencies) == 0 {
		return fmt.Errorf("catalog.currencies must not be empty")
	}
	if len(c.Catalog.Sources) == 0 {
		return fmt.Errorf("catalog.sources must not be empty")
	}

	if c.Wizard.MaxRetries <= 0 {
		return fmt.Errorf("wizard.max_retries must be positive")
	}
	if c.Wizard.IdleTimeout <= 0 {
		return fmt.Errorf("wizard.idle_timeout must be positive")
	}

	for source := range c.Access.SourceAdmins {
		if _, ok := c.Catalog.Sources[source]; !ok {
			return fmt.Errorf("access.source_admins references unknown source %q", source)
		}
	}
	for project := range c.Access.ProjectAdmins {
		if _, ok := c.Catalog.Projects[project]; !ok {
			return fmt.Errorf("access.project_admins references unknown project %q", project)
		}
	}

	switch c.Export.Format {
	case "xlsx", "csv":
	default:
		return fmt.Errorf("export.format must be xlsx or csv, got %q", c.Export.Format)
	}

	return nil
}
