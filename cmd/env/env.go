package env

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/joho/godotenv"

	"github.com/sig-0/p2prates/config"
)

const (
	// Prefix is the prefix of every p2prates environment variable
	Prefix = "P2PRATES_"

	// CoinGeckoAPIKeySuffix names the CoinGecko demo API key variable
	CoinGeckoAPIKeySuffix = "COINGECKO_API_KEY"
)

// LoadConfig reads the service configuration from the given path, if any,
// and applies the secrets found in the environment (or a .env file)
func LoadConfig(path string, logger *slog.Logger) (*config.Config, error) {
	cfg := config.DefaultConfig()

	if path != "" {
		fileCfg, err := config.Read(path)
		if err != nil {
			return nil, fmt.Errorf("unable to read config, %w", err)
		}

		cfg = fileCfg
	}

	// Load .env
	if err := godotenv.Load(); err != nil {
		logger.Debug("unable to load .env file")
	}

	if key := os.Getenv(Prefix + CoinGeckoAPIKeySuffix); key != "" {
		cfg.Upstreams.CoinGeckoAPIKey = key
	}

	return cfg, nil
}
