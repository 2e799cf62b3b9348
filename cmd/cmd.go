package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"github.com/frahmantamala/rbac-admin/internal"
	"github.com/frahmantamala/rbac-admin/pkg/logger"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"
)

var configPath string

var rootCmd = &cobra.Command{
	Use:   "rbac-admin",
	Short: "RBAC Admin",
	Long:  `User, role and permission management API.`,
}

func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Println(err)
		os.Exit(1)
	}
}

func loadConfig(path string) (*internal.Config, error) {
	// Check if we're running in Docker environment
	if os.Getenv("APP_ENV") == "production" || os.Getenv("DOCKER_ENV") == "true" {
		cfg := internal.LoadConfigFromEnv()
		if err := cfg.Validate(); err != nil {
			return nil, fmt.Errorf("error validating config from environment: %w", err)
		}
		return cfg, nil
	}

	// Load configuration from file (development)
	v := viper.New()
	v.AddConfigPath(path)
	v.SetConfigName("config")
	v.SetConfigType("yml")
	v.SetEnvPrefix("ENV")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("error reading config: %w", err)
	}

	var cfg internal.Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("error validating config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("env", "development")
	v.SetDefault("http_server.port", 8080)
	v.SetDefault("http_server.read_header_timeout", "5s")
	v.SetDefault("http_server.read_timeout", "15s")
	v.SetDefault("http_server.write_timeout", "15s")
	v.SetDefault("http_server.idle_timeout", "60s")
	v.SetDefault("database.max_open_conns", 25)
	v.SetDefault("database.max_idle_conns", 5)
	v.SetDefault("database.conn_max_lifetime", "30m")
	v.SetDefault("database.conn_max_idle_time", "5m")
	v.SetDefault("database.query_timeout", "5s")
	v.SetDefault("redis.addr", "localhost:6379")
	v.SetDefault("security.access_token_duration", "15m")
	v.SetDefault("security.refresh_token_duration", "168h")
	v.SetDefault("security.bcrypt_cost", 12)
	v.SetDefault("security.enforce_permissions", true)
	v.SetDefault("security.login_rate_limit", 10)
	v.SetDefault("observability.metrics.enabled", true)
	v.SetDefault("observability.metrics.path", "/metrics")
	v.SetDefault("observability.logging.level", "info")
	v.SetDefault("observability.logging.format", "text")
	v.SetDefault("seed.admin_role", "admin")
	v.SetDefault("seed.admin_name", "Super Admin")
	v.SetDefault("seed.admin_email", "admin@example.com")
}

// bootstrap loads the config and initialises the process logger from it.
func bootstrap() (*internal.Config, *slog.Logger, error) {
	cfg, err := loadConfig(configPath)
	if err != nil {
		return nil, nil, err
	}
	logger.Init(cfg.Env,
		logger.WithLevel(cfg.Observability.Logging.Level),
		logger.WithFormat(cfg.Observability.Logging.Format),
	)
	return cfg, logger.LoggerWrapper(), nil
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", ".", "directory containing config.yml")

	rootCmd.AddCommand(httpServerCmd)
	rootCmd.AddCommand(migrateCmd)
	rootCmd.AddCommand(seedCmd)
}
