package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// DatabaseConfig holds Postgres connection settings.
type DatabaseConfig struct {
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
}

// DSN returns the connection string for the GORM postgres driver.
func (c DatabaseConfig) DSN() string {
	return fmt.Sprintf("host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
		c.Host, c.Port, c.User, c.Password, c.DBName, c.SSLMode)
}

// KafkaConfig holds broker settings.
type KafkaConfig struct {
	Brokers []string
	Enabled bool
}

// RoutingConfig points at the routing backend.
type RoutingConfig struct {
	BaseURL string
	Timeout time.Duration
}

// PlacesConfig configures the place resolution adapter.
type PlacesConfig struct {
	BaseURL  string
	APIKey   string
	Language string
	Timeout  time.Duration
}

// MapsConfig configures the map providers.
type MapsConfig struct {
	GoogleStaticURL     string
	GoogleKey           string
	GeoapifyStaticURL   string
	GeoapifyKey         string
	PreferInteractive   bool
	Width               int
	Height              int
	LoadTimeout         time.Duration
	DisplayRouteTimeout time.Duration
}

// WizardConfig configures wizard sessions.
type WizardConfig struct {
	SessionTTL           time.Duration
	SweepInterval        time.Duration
	AutocompleteDebounce time.Duration
}

// ServiceConfig holds all configuration for the mileage service.
type ServiceConfig struct {
	Port           string
	AppEnv         string
	AllowedOrigins []string
	DBConfig       DatabaseConfig
	KafkaConfig    KafkaConfig
	RoutingConfig  RoutingConfig
	PlacesConfig   PlacesConfig
	MapsConfig     MapsConfig
	WizardConfig   WizardConfig
}

// Load reads configuration from MILEAGE_* environment variables and an optional
// mileage.yaml in the working directory or /etc/mileage.
func Load() (*ServiceConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("MILEAGE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetConfigName("mileage")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("/etc/mileage")
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	cfg := &ServiceConfig{
		Port:           ":" + strings.TrimPrefix(v.GetString("server.port"), ":"),
		AppEnv:         v.GetString("app.env"),
		AllowedOrigins: stringList(v, "server.allowed_origins"),
		DBConfig: DatabaseConfig{
			Host:     v.GetString("db.host"),
			Port:     v.GetInt("db.port"),
			User:     v.GetString("db.user"),
			Password: v.GetString("db.password"),
			DBName:   v.GetString("db.name"),
			SSLMode:  v.GetString("db.sslmode"),
		},
		KafkaConfig: KafkaConfig{
			Brokers: stringList(v, "kafka.brokers"),
			Enabled: v.GetBool("kafka.enabled"),
		},
		RoutingConfig: RoutingConfig{
			BaseURL: v.GetString("routing.base_url"),
			Timeout: v.GetDuration("routing.timeout"),
		},
		PlacesConfig: PlacesConfig{
			BaseURL:  v.GetString("places.base_url"),
			APIKey:   v.GetString("places.api_key"),
			Language: v.GetString("places.language"),
			Timeout:  v.GetDuration("places.timeout"),
		},
		MapsConfig: MapsConfig{
			GoogleStaticURL:     v.GetString("maps.google_static_url"),
			GoogleKey:           v.GetString("maps.google_key"),
			GeoapifyStaticURL:   v.GetString("maps.geoapify_static_url"),
			GeoapifyKey:         v.GetString("maps.geoapify_key"),
			PreferInteractive:   v.GetBool("maps.prefer_interactive"),
			Width:               v.GetInt("maps.width"),
			Height:              v.GetInt("maps.height"),
			LoadTimeout:         v.GetDuration("maps.load_timeout"),
			DisplayRouteTimeout: v.GetDuration("maps.display_route_timeout"),
		},
		WizardConfig: WizardConfig{
			SessionTTL:           v.GetDuration("wizard.session_ttl"),
			SweepInterval:        v.GetDuration("wizard.sweep_interval"),
			AutocompleteDebounce: v.GetDuration("wizard.autocomplete_debounce"),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("app.env", "development")
	v.SetDefault("server.port", "8086")
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})

	v.SetDefault("db.host", "localhost")
	v.SetDefault("db.port", 5432)
	v.SetDefault("db.user", "postgres")
	v.SetDefault("db.password", "postgres")
	v.SetDefault("db.name", "mileage_db")
	v.SetDefault("db.sslmode", "disable")

	v.SetDefault("kafka.brokers", []string{"localhost:9092"})
	v.SetDefault("kafka.enabled", true)

	v.SetDefault("routing.base_url", "http://localhost:8080/api/v1")
	v.SetDefault("routing.timeout", 15*time.Second)

	v.SetDefault("places.base_url", "https://maps.googleapis.com/maps/api")
	v.SetDefault("places.language", "en")
	v.SetDefault("places.timeout", 5*time.Second)

	v.SetDefault("maps.google_static_url", "https://maps.googleapis.com/maps/api/staticmap")
	v.SetDefault("maps.geoapify_static_url", "https://maps.geoapify.com/v1/staticmap")
	v.SetDefault("maps.prefer_interactive", false)
	v.SetDefault("maps.width", 640)
	v.SetDefault("maps.height", 400)
	v.SetDefault("maps.load_timeout", 5*time.Second)
	v.SetDefault("maps.display_route_timeout", 5*time.Second)

	v.SetDefault("wizard.session_ttl", 2*time.Hour)
	v.SetDefault("wizard.sweep_interval", 5*time.Minute)
	v.SetDefault("wizard.autocomplete_debounce", 300*time.Millisecond)
}

// stringList reads a list that may come from YAML or from a comma separated env variable.
func stringList(v *viper.Viper, key string) []string {
	var out []string
	for _, item := range v.GetStringSlice(key) {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

func (c *ServiceConfig) validate() error {
	var errs []error
	if c.RoutingConfig.BaseURL == "" {
		errs = append(errs, errors.New("routing.base_url is required"))
	}
	if c.KafkaConfig.Enabled && len(c.KafkaConfig.Brokers) == 0 {
		errs = append(errs, errors.New("kafka.brokers is required when kafka is enabled"))
	}
	if c.MapsConfig.Width <= 0 || c.MapsConfig.Height <= 0 {
		errs = append(errs, fmt.Errorf("maps size must be positive, got %dx%d", c.MapsConfig.Width, c.MapsConfig.Height))
	}
	if c.WizardConfig.SweepInterval <= 0 {
		errs = append(errs, errors.New("wizard.sweep_interval must be positive"))
	}
	return errors.Join(errs...)
}
