package app

import (
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"
)

const (
	BackendCSV      = "csv"
	BackendPostgres = "postgres"
)

type Config struct {
	Collector      string `env:"COLLECTOR" envDefault:"mock"`
	AlertThreshold int    `env:"SCORE_ALERT_THRESHOLD" envDefault:"50"`
	ChainName      string `env:"CHAIN_NAME" envDefault:"ETH"`
	MaxTx          int    `env:"ETH_MAX_TX" envDefault:"100"`
	BlocksBack     uint64 `env:"ETH_BLOCKS_BACK" envDefault:"20"`

	Etherscan EtherscanConfig
	RPC       RPCConfig
	Filter    FilterConfig
	Scoring   ScoringConfig
	Storage   StorageConfig
	Telegram  TelegramConfig
	Kafka     KafkaConfig
	Log       LogConfig
}

type EtherscanConfig struct {
	APIKey        string        `env:"ETHERSCAN_API_KEY"`
	Addresses     []string      `env:"ETHERSCAN_ADDRESSES" envSeparator:","`
	URLs          []string      `env:"ETHERSCAN_URLS" envSeparator:"," envDefault:"https://api.etherscan.io/v2/api"`
	ChainID       int64         `env:"ETHERSCAN_CHAIN_ID" envDefault:"1"`
	MaxPerAddress int           `env:"ETHERSCAN_MAX_TX_PER_ADDR" envDefault:"100"`
	AddressDelay  time.Duration `env:"ETHERSCAN_ADDRESS_DELAY" envDefault:"250ms"`
}

type RPCConfig struct {
	URLs    []string      `env:"ETH_RPC_URL" envSeparator:"," envDefault:"https://ethereum.publicnode.com,https://eth.llamarpc.com,https://cloudflare-eth.com"`
	Timeout time.Duration `env:"ETH_RPC_TIMEOUT" envDefault:"25s"`
	Retries int           `env:"ETH_RPC_RETRIES" envDefault:"2"`
	Backoff time.Duration `env:"ETH_RPC_BACKOFF" envDefault:"800ms"`
}

type FilterConfig struct {
	MinValue     decimal.Decimal `env:"ETH_INCLUDE_ETH_VALUE_MIN" envDefault:"0"`
	From         []string        `env:"ETH_FILTER_FROM" envSeparator:","`
	To           []string        `env:"ETH_FILTER_TO" envSeparator:","`
	Monitor      []string        `env:"ETH_MONITOR_ADDRESSES" envSeparator:","`
	RequireMatch bool            `env:"REQUIRE_MATCH" envDefault:"false"`
}

type ScoringConfig struct {
	AmountThreshold   decimal.Decimal `env:"AMOUNT_THRESHOLD" envDefault:"10000"`
	VelocityWindowMin int             `env:"VELOCITY_WINDOW_MIN" envDefault:"10"`
	VelocityMaxTx     int             `env:"VELOCITY_MAX_TX" envDefault:"5"`
	WeightsPath       string          `env:"WEIGHTS_OVERRIDE_PATH"`
}

type StorageConfig struct {
	Backend     string `env:"STORAGE_BACKEND" envDefault:"csv"`
	DataDir     string `env:"DATA_DIR" envDefault:"data"`
	PostgresURL string `env:"POSTGRES_URL"`
}

type TelegramConfig struct {
	Token     string        `env:"TELEGRAM_TOKEN"`
	ChatID    string        `env:"TELEGRAM_CHAT_ID"`
	ServerURL string        `env:"TELEGRAM_SERVER_URL"`
	Timeout   time.Duration `env:"TELEGRAM_TIMEOUT" envDefault:"6s"`
}

type KafkaConfig struct {
	Brokers []string `env:"KAFKA_BROKERS" envSeparator:","`
	Topic   string   `env:"KAFKA_TOPIC" envDefault:"safescore.scored"`
}

type LogConfig struct {
	Level  string `env:"LOG_LEVEL" envDefault:"info"`
	Format string `env:"LOG_FORMAT" envDefault:"console"`
}

func LoadConfig() (Config, error) {
	err := godotenv.Load()
	if err != nil {
		fmt.Println("Warning: .env file not found, relying on environment variables")
	}
	return parseConfig()
}

func parseConfig() (Config, error) {
	var config Config
	if err := env.Parse(&config); err != nil {
		return Config{}, err
	}

	config.Collector = strings.ToLower(strings.TrimSpace(config.Collector))
	config.Storage.Backend = strings.ToLower(strings.TrimSpace(config.Storage.Backend))
	config.Etherscan.Addresses = compact(config.Etherscan.Addresses)
	config.Etherscan.URLs = compact(config.Etherscan.URLs)
	config.RPC.URLs = compact(config.RPC.URLs)

	if err := config.validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c Config) validate() error {
	switch c.Storage.Backend {
	case BackendCSV:
	case BackendPostgres:
		if c.Storage.PostgresURL == "" {
			return fmt.Errorf("POSTGRES_URL is required for STORAGE_BACKEND=%s", BackendPostgres)
		}
	default:
		return fmt.Errorf("unknown STORAGE_BACKEND %q", c.Storage.Backend)
	}
	if c.MaxTx <= 0 {
		return fmt.Errorf("ETH_MAX_TX must be positive, got %d", c.MaxTx)
	}
	if c.Scoring.AmountThreshold.IsNegative() {
		return fmt.Errorf("AMOUNT_THRESHOLD must not be negative")
	}
	return nil
}

// compact trims entries and drops empty ones ("a, ,b" -> [a b]).
func compact(in []string) []string {
	out := in[:0]
	for _, s := range in {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	if len(out) == 0 {
		return nil
	}
	return out
}
