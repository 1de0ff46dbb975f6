package config

// ServerConfig configures the stepbystep API server.
type ServerConfig struct {
	// rpc configs
	Port int    `mapstructure:"port" toml:"port" json:"port"`
	Host string `mapstructure:"host" toml:"host" json:"host"`

	// CORS configs
	AllowedOrigins []string `mapstructure:"allowed_origins" toml:"allowed_origins" json:"allowed_origins"`

	// rate limiting configs
	RatePerMinute         int `mapstructure:"rate_per_minute" toml:"rate_per_minute" json:"rate_per_minute"`
	MaxConcurrentRequests int `mapstructure:"max_concurrent_requests" toml:"max_concurrent_requests" json:"max_concurrent_requests"`

	// OpenTelemetry configs
	ServiceName    string `mapstructure:"service_name" toml:"service_name" json:"service_name"`
	ServiceVersion string `mapstructure:"service_version" toml:"service_version" json:"service_version"`
	Environment    string `mapstructure:"environment" toml:"environment" json:"environment"` // PROD, DEV, TEST, LOCAL
	EnableTracing  bool   `mapstructure:"enable_tracing" toml:"enable_tracing" json:"enable_tracing"`
	UseOTLPTraces  bool   `mapstructure:"use_otlp_traces" toml:"use_otlp_traces" json:"use_otlp_traces"`
	OTLPTracesURL  string `mapstructure:"otlp_traces_url" toml:"otlp_traces_url" json:"otlp_traces_url"`
	EnableMetrics  bool   `mapstructure:"enable_metrics" toml:"enable_metrics" json:"enable_metrics"`
	UsePrometheus  bool   `mapstructure:"use_prometheus" toml:"use_prometheus" json:"use_prometheus"`
	UseOTLPMetrics bool   `mapstructure:"use_otlp_metrics" toml:"use_otlp_metrics" json:"use_otlp_metrics"`
	OTLPMetricsURL string `mapstructure:"otlp_metrics_url" toml:"otlp_metrics_url" json:"otlp_metrics_url"`

	EnableLogs  bool   `mapstructure:"enable_logs" toml:"enable_logs" json:"enable_logs"`
	UseOTLPLogs bool   `mapstructure:"use_otlp_logs" toml:"use_otlp_logs" json:"use_otlp_logs"`
	OTLPLogsURL string `mapstructure:"otlp_logs_url" toml:"otlp_logs_url" json:"otlp_logs_url"`

	InsecureOTLP bool `mapstructure:"insecure_otlp" toml:"insecure_otlp" json:"insecure_otlp"`

	// Optional mTLS material for the OTLP exporters
	OTLPClientCertFile string `mapstructure:"otlp_client_cert_file" toml:"otlp_client_cert_file" json:"otlp_client_cert_file"`
	OTLPClientKeyFile  string `mapstructure:"otlp_client_key_file" toml:"otlp_client_key_file" json:"otlp_client_key_file"`
	OTLPCACertFile     string `mapstructure:"otlp_ca_cert_file" toml:"otlp_ca_cert_file" json:"otlp_ca_cert_file"`

	// Development mode uses stdout exporters
	DevelopmentMode bool `mapstructure:"development_mode" toml:"development_mode" json:"development_mode"`

	// Genesis of the in-memory chain the server runs strategies on
	GenesisPath string `mapstructure:"genesis_path" toml:"genesis_path" json:"genesis_path"`

	// Optional LCD endpoints, the first is primary; used to serve live balances
	LCDURLs []string `mapstructure:"lcd_urls" toml:"lcd_urls" json:"lcd_urls"`
}

// Genesis describes the initial state of the in-memory chain: funded accounts, cw20 tokens,
// terraswap pairs with their liquidity, the factory and the strategy contract.
type Genesis struct {
	ChainID       string            `toml:"chain_id" json:"chain_id"`
	Prefix        string            `toml:"prefix" json:"prefix"`
	Admin         string            `toml:"admin" json:"admin"`
	TaxRate       string            `toml:"tax_rate" json:"tax_rate"`
	TaxCaps       map[string]string `toml:"tax_caps" json:"tax_caps"`
	ExchangeRates map[string]string `toml:"exchange_rates" json:"exchange_rates"`
	MarketSpread  string            `toml:"market_spread" json:"market_spread"`
	MaxDepth      int               `toml:"max_depth" json:"max_depth"`

	Accounts []GenesisAccount `toml:"accounts" json:"accounts"`
	Tokens   []GenesisToken   `toml:"tokens" json:"tokens"`
	Pairs    []GenesisPair    `toml:"pairs" json:"pairs"`
	Factory  GenesisContract  `toml:"factory" json:"factory"`
	Strategy GenesisStrategy  `toml:"strategy" json:"strategy"`
}

// GenesisAccount funds an account. Address may be a bech32 address or a label to derive one from.
type GenesisAccount struct {
	Address string            `toml:"address" json:"address"`
	Coins   map[string]string `toml:"coins" json:"coins"`
}

type GenesisToken struct {
	Label    string            `toml:"label" json:"label"`
	Name     string            `toml:"name" json:"name"`
	Symbol   string            `toml:"symbol" json:"symbol"`
	Decimals uint8             `toml:"decimals" json:"decimals"`
	Minter   string            `toml:"minter" json:"minter"`
	Balances map[string]string `toml:"balances" json:"balances"`
}

// GenesisPair creates a pair. Assets are native denoms or "token:<label>", Liquidity holds the
// initial pool amount of each asset in the same order.
type GenesisPair struct {
	Label      string    `toml:"label" json:"label"`
	Assets     [2]string `toml:"assets" json:"assets"`
	Liquidity  [2]string `toml:"liquidity" json:"liquidity"`
	Commission string    `toml:"commission" json:"commission"`
}

type GenesisContract struct {
	Label string `toml:"label" json:"label"`
}

type GenesisStrategy struct {
	Label      string `toml:"label" json:"label"`
	Commission int    `toml:"commission" json:"commission"`
}
