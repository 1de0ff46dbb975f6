package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// EnvPrefix prefixes every environment variable read by LoadServerConfig.
const EnvPrefix = "STEPBYSTEP"

// LoadServerConfig loads the server config from the toml file at configPath, or from
// STEPBYSTEP_* environment variables when configPath is nil.
func LoadServerConfig(configPath *string) (*ServerConfig, error) {
	v := viper.New()
	setDefaults(v)

	if configPath == nil {
		config, err := loadEnv(v)
		if err != nil {
			return nil, fmt.Errorf("failed to load env config: %w", err)
		}
		return config, nil
	}
	config, err := loadFile(v, *configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load file config: %w", err)
	}
	return config, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("host", "0.0.0.0")
	v.SetDefault("port", 9010)
	v.SetDefault("allowed_origins", []string{"*"})
	v.SetDefault("rate_per_minute", 120)
	v.SetDefault("max_concurrent_requests", 64)
	v.SetDefault("service_name", "stepbystep")
	v.SetDefault("service_version", "dev")
	v.SetDefault("environment", "LOCAL")
}

func loadEnv(v *viper.Viper) (*ServerConfig, error) {
	// a missing .env is fine, the variables may come from docker or systemd
	_ = godotenv.Load()
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	var config ServerConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal env config: %w", err)
	}
	if err := verifyConfig(&config); err != nil {
		return nil, fmt.Errorf("failed to verify config: %w", err)
	}
	return &config, nil
}

// bindEnvKeys binds each config key to its env var so Unmarshal sees env values
// when no config file is loaded.
func bindEnvKeys(v *viper.Viper) {
	keys := []string{
		"port", "host", "allowed_origins",
		"rate_per_minute", "max_concurrent_requests",
		"service_name", "service_version", "environment",
		"enable_tracing", "use_otlp_traces", "otlp_traces_url",
		"enable_metrics", "use_prometheus", "use_otlp_metrics", "otlp_metrics_url",
		"enable_logs", "use_otlp_logs", "otlp_logs_url",
		"insecure_otlp", "otlp_client_cert_file", "otlp_client_key_file", "otlp_ca_cert_file",
		"development_mode", "genesis_path", "lcd_urls",
	}
	for _, k := range keys {
		_ = v.BindEnv(k)
	}
}

func loadFile(v *viper.Viper, configPath string) (*ServerConfig, error) {
	if !strings.HasSuffix(configPath, ".toml") {
		return nil, fmt.Errorf("config file must be a toml file")
	}
	v.SetConfigFile(configPath)
	v.SetConfigType("toml")
	if err := v.ReadInConfig(); err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var config ServerConfig
	if err := v.Unmarshal(&config); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}
	if err := verifyConfig(&config); err != nil {
		return nil, fmt.Errorf("failed to verify config: %w", err)
	}
	return &config, nil
}

func verifyConfig(config *ServerConfig) error {
	if config.Port <= 0 || config.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535")
	}
	if config.Host == "" {
		return fmt.Errorf("host is required")
	}
	if len(config.AllowedOrigins) == 0 {
		return fmt.Errorf("allowed_origins is required")
	}
	if config.RatePerMinute < 0 || config.MaxConcurrentRequests < 0 {
		return fmt.Errorf("rate_per_minute and max_concurrent_requests must not be negative")
	}
	if config.UseOTLPTraces && config.OTLPTracesURL == "" {
		return fmt.Errorf("otlp_traces_url is required when use_otlp_traces is set")
	}
	if config.UseOTLPMetrics && config.OTLPMetricsURL == "" {
		return fmt.Errorf("otlp_metrics_url is required when use_otlp_metrics is set")
	}
	if config.UseOTLPLogs && config.OTLPLogsURL == "" {
		return fmt.Errorf("otlp_logs_url is required when use_otlp_logs is set")
	}
	if (config.OTLPClientCertFile == "") != (config.OTLPClientKeyFile == "") {
		return fmt.Errorf("otlp_client_cert_file and otlp_client_key_file must be set together")
	}
	for _, u := range config.LCDURLs {
		if _, err := url.ParseRequestURI(u); err != nil {
			return fmt.Errorf("invalid lcd url %q: %w", u, err)
		}
	}
	return nil
}
