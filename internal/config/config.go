package config

import (
	"fmt"
	"net/url"
	"os"

	"github.com/sirupsen/logrus"
	"gopkg.in/yaml.v3"
)

// Config holds the overall configuration for the service.
type Config struct {
	Server     ServerConfig     `yaml:"server"`
	API        APIConfig        `yaml:"api"`
	Mongo      MongoConfig      `yaml:"mongodb"`
	Encryption EncryptionConfig `yaml:"encryption"`
	Exchanges  ExchangesConfig  `yaml:"exchanges"`
	Chains     []ChainConfig    `yaml:"chains"`
	Pricing    PricingConfig    `yaml:"pricing"`
	Logging    LoggingConfig    `yaml:"logging"`
	Swagger    SwaggerConfig    `yaml:"swagger"`
}

// ServerConfig holds the HTTP server configuration.
type ServerConfig struct {
	Port         string `yaml:"port"`
	ReadTimeout  int    `yaml:"readTimeout"`
	WriteTimeout int    `yaml:"writeTimeout"`
	IdleTimeout  int    `yaml:"idleTimeout"`
}

// APIConfig holds the service metadata and the static bearer token.
type APIConfig struct {
	Title     string `yaml:"title"`
	Version   string `yaml:"version"`
	AuthToken string `yaml:"authToken"`
}

// MongoConfig holds the credential-store connection settings.
type MongoConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	Username   string `yaml:"username"`
	Password   string `yaml:"password"`
	AuthSource string `yaml:"authSource"`
	Database   string `yaml:"database"`
	Collection string `yaml:"collection"`
}

// URI builds the connection string. Username and password are URL-escaped to
// survive special characters.
func (m MongoConfig) URI() string {
	return fmt.Sprintf("mongodb://%s:%s@%s:%d/?authSource=%s",
		url.QueryEscape(m.Username), url.QueryEscape(m.Password), m.Host, m.Port, m.AuthSource)
}

// EncryptionConfig holds the symmetric secret used to decrypt stored API
// credentials.
type EncryptionConfig struct {
	SecretKey string `yaml:"secretKey"`
}

// ExchangesConfig holds exchange fetcher settings. DriverMapping maps
// canonical exchange names to driver identifiers; PlaceholderAssets are the
// symbols zeroed out on a failed account.
type ExchangesConfig struct {
	TimeoutMs         int64             `yaml:"timeoutMs"`
	RetryAttempts     int               `yaml:"retryAttempts"`
	RetryDelayMs      int64             `yaml:"retryDelayMs"`
	RateLimit         bool              `yaml:"rateLimit"`
	WorkerPoolSize    int               `yaml:"workerPoolSize"`
	DriverMapping     map[string]string `yaml:"driverMapping"`
	PlaceholderAssets []string          `yaml:"placeholderAssets"`
}

// TokenConfig describes one asset tracked on a chain. Address is the contract
// (or mint) address; native assets leave it empty or set Native. FixedPrice
// pins a USD price without an oracle lookup; PriceID keys the oracle request.
// AccountMap maps Solana wallet labels to SPL token account addresses so no
// on-chain lookup is required.
type TokenConfig struct {
	Address    string            `yaml:"address,omitempty"`
	Decimals   int32             `yaml:"decimals"`
	Native     bool              `yaml:"native,omitempty"`
	FixedPrice float64           `yaml:"fixedPrice,omitempty"`
	PriceID    string            `yaml:"priceID,omitempty"`
	AccountMap map[string]string `yaml:"accountMap,omitempty"`
}

// ChainConfig holds per-chain RPC and wallet settings. Kind is "evm" or
// "solana".
type ChainConfig struct {
	Name         string                 `yaml:"name"`
	Kind         string                 `yaml:"kind"`
	RPCURL       string                 `yaml:"rpcURL"`
	RPCTimeoutMs int64                  `yaml:"rpcTimeoutMs"`
	RateLimit    int                    `yaml:"rateLimit"`
	BurstLimit   int                    `yaml:"burstLimit"`
	Wallets      map[string]string      `yaml:"wallets"`
	Tokens       map[string]TokenConfig `yaml:"tokens"`
}

// CoinGeckoConfig holds the price oracle settings.
type CoinGeckoConfig struct {
	Enabled              bool   `yaml:"enabled"`
	BaseURL              string `yaml:"baseURL"`
	APIKey               string `yaml:"apiKey"`
	VsCurrency           string `yaml:"vsCurrency"`
	RequestTimeoutMillis int64  `yaml:"requestTimeoutMillis"`
	CacheTTLMinutes      int    `yaml:"cacheTTLMinutes"`
}

// PricingConfig groups price oracle providers.
type PricingConfig struct {
	CoinGecko CoinGeckoConfig `yaml:"coingecko"`
}

// LoggingConfig holds the configuration for logging.
type LoggingConfig struct {
	Level string `yaml:"level"`
	File  string `yaml:"file"`
}

// SwaggerConfig holds configuration for Swagger UI.
type SwaggerConfig struct {
	Enabled bool   `yaml:"enabled"`
	Path    string `yaml:"path"`
}

// LoadConfig loads configuration from a YAML file and applies defaults.
func LoadConfig(path string) (*Config, error) {
	logrus.Infof("Loading configuration from path: %s", path)
	data, err := os.ReadFile(path)
	if err != nil {
		logrus.Errorf("Failed to read config file %s: %v", path, err)
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		logrus.Errorf("Failed to unmarshal config data from %s: %v", path, err)
		return nil, fmt.Errorf("failed to unmarshal config data from %s: %w", path, err)
	}

	if cfg.Server.Port == "" {
		cfg.Server.Port = ":8080"
	}
	if cfg.API.Title == "" {
		cfg.API.Title = "CEX Balance Service"
	}
	if cfg.API.Version == "" {
		cfg.API.Version = "1.0.0"
	}

	if cfg.Exchanges.TimeoutMs == 0 {
		cfg.Exchanges.TimeoutMs = 30000
		logrus.Infof("Exchanges.TimeoutMs not set, defaulting to %d ms", cfg.Exchanges.TimeoutMs)
	}
	if cfg.Exchanges.RetryAttempts == 0 {
		cfg.Exchanges.RetryAttempts = 3
		logrus.Infof("Exchanges.RetryAttempts not set, defaulting to %d", cfg.Exchanges.RetryAttempts)
	}
	if cfg.Exchanges.RetryDelayMs == 0 {
		cfg.Exchanges.RetryDelayMs = 100
	}
	if cfg.Exchanges.WorkerPoolSize <= 0 {
		cfg.Exchanges.WorkerPoolSize = 10
		logrus.Infof("Exchanges.WorkerPoolSize not set, defaulting to %d workers", cfg.Exchanges.WorkerPoolSize)
	}
	if len(cfg.Exchanges.PlaceholderAssets) == 0 {
		cfg.Exchanges.PlaceholderAssets = []string{"USDT", "ALI"}
	}

	for i, chain := range cfg.Chains {
		if chain.Kind == "" {
			cfg.Chains[i].Kind = "evm"
		}
		if chain.RPCTimeoutMs == 0 {
			cfg.Chains[i].RPCTimeoutMs = 15000
		}
		if chain.RateLimit <= 0 {
			cfg.Chains[i].RateLimit = 10
		}
		if chain.BurstLimit <= 0 {
			cfg.Chains[i].BurstLimit = 5
		}
		if chain.RPCURL == "" {
			logrus.Warnf("Chain '%s' has no RPC endpoint configured; it will yield empty results", chain.Name)
		}
	}

	if cfg.Pricing.CoinGecko.BaseURL == "" {
		cfg.Pricing.CoinGecko.BaseURL = "https://pro-api.coingecko.com/api/v3"
	}
	if cfg.Pricing.CoinGecko.VsCurrency == "" {
		cfg.Pricing.CoinGecko.VsCurrency = "usd"
	}
	if cfg.Pricing.CoinGecko.RequestTimeoutMillis == 0 {
		cfg.Pricing.CoinGecko.RequestTimeoutMillis = 5000
	}
	if cfg.Pricing.CoinGecko.CacheTTLMinutes == 0 {
		cfg.Pricing.CoinGecko.CacheTTLMinutes = 1
	}

	logrus.Info("Configuration loaded successfully.")
	return &cfg, nil
}
