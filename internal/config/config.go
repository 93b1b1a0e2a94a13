package config

import (
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"kasparro-backend/internal/domain"
	"kasparro-backend/internal/provider"
)

type Config struct {
	TelegramBotToken string
	DatabaseURL      string
	RedisURL         string
	HTTPAddr         string

	ETLPollSecs           int
	ETLAdapterTimeoutSecs int
	ETLStaleAfterSecs     int
	ETLSources            []string

	CoinGeckoBaseURL   string
	CoinGeckoPerPage   int
	CoinGeckoAPIKey    string
	CoinPaprikaBaseURL string
	CoinPaprikaLimit   int
	CoinCapBaseURL     string
	CoinCapLimit       int
	CoinCapAPIKey      string

	QueryCacheTTLSecs int
}

func Load() *Config {
	cfg := &Config{
		TelegramBotToken:   os.Getenv("TELEGRAM_BOT_TOKEN"),
		DatabaseURL:        strings.TrimSpace(os.Getenv("DATABASE_URL")),
		RedisURL:           strings.TrimSpace(os.Getenv("REDIS_URL")),
		HTTPAddr:           strings.TrimSpace(os.Getenv("HTTP_ADDR")),
		CoinGeckoBaseURL:   strings.TrimSpace(os.Getenv("COINGECKO_BASE_URL")),
		CoinGeckoAPIKey:    strings.TrimSpace(os.Getenv("COINGECKO_API_KEY")),
		CoinPaprikaBaseURL: strings.TrimSpace(os.Getenv("COINPAPRIKA_BASE_URL")),
		CoinCapBaseURL:     strings.TrimSpace(os.Getenv("COINCAP_BASE_URL")),
		CoinCapAPIKey:      strings.TrimSpace(os.Getenv("COINCAP_API_KEY")),
	}

	if cfg.TelegramBotToken == "" {
		log.Println("Warning: TELEGRAM_BOT_TOKEN not set, bot disabled")
	}
	if cfg.DatabaseURL == "" {
		log.Println("Warning: DATABASE_URL not set")
	}
	if cfg.RedisURL == "" {
		log.Println("Warning: REDIS_URL not set, defaulting to localhost:6379")
		cfg.RedisURL = "localhost:6379"
	}
	if cfg.HTTPAddr == "" {
		cfg.HTTPAddr = ":8080"
	}

	cfg.ETLPollSecs = positiveInt("ETL_POLL_SECS", 300)
	cfg.ETLAdapterTimeoutSecs = positiveInt("ETL_ADAPTER_TIMEOUT_SECS", 10)
	cfg.ETLStaleAfterSecs = positiveInt("ETL_STALE_AFTER_SECS", 3*cfg.ETLPollSecs)

	cfg.ETLSources = append([]string(nil), provider.KnownSources...)
	if v := strings.TrimSpace(os.Getenv("ETL_SOURCES")); v != "" {
		var sources []string
		for _, s := range strings.Split(v, ",") {
			if s = strings.ToLower(strings.TrimSpace(s)); s != "" {
				sources = append(sources, s)
			}
		}
		if len(sources) > 0 {
			cfg.ETLSources = sources
		} else {
			log.Printf("Warning: ETL_SOURCES=%q has no entries, using all sources", v)
		}
	}

	cfg.CoinGeckoPerPage = positiveInt("COINGECKO_PER_PAGE", 100)
	cfg.CoinPaprikaLimit = positiveInt("COINPAPRIKA_LIMIT", 100)
	cfg.CoinCapLimit = positiveInt("COINCAP_LIMIT", 100)

	cfg.QueryCacheTTLSecs = 30
	if v := strings.TrimSpace(os.Getenv("QUERY_CACHE_TTL_SECS")); v != "" {
		// 0 disables the page cache
		if n, err := strconv.Atoi(v); err == nil && n >= 0 {
			cfg.QueryCacheTTLSecs = n
		}
	}

	return cfg
}

// Validate reports missing connection parameters. It is fatal at process start.
func (c *Config) Validate() error {
	if c.DatabaseURL == "" {
		return &domain.ConfigurationError{Field: "DATABASE_URL", Reason: "is required"}
	}
	if len(c.ETLSources) == 0 {
		return &domain.ConfigurationError{Field: "ETL_SOURCES", Reason: "must name at least one source"}
	}
	return nil
}

func (c *Config) AdapterTimeout() time.Duration {
	return time.Duration(c.ETLAdapterTimeoutSecs) * time.Second
}

func (c *Config) PollInterval() time.Duration {
	return time.Duration(c.ETLPollSecs) * time.Second
}

func (c *Config) StaleAfter() time.Duration {
	return time.Duration(c.ETLStaleAfterSecs) * time.Second
}

func (c *Config) QueryCacheTTL() time.Duration {
	return time.Duration(c.QueryCacheTTLSecs) * time.Second
}

// ProviderConfigs returns request settings keyed by source name.
func (c *Config) ProviderConfigs() map[string]provider.SourceConfig {
	return map[string]provider.SourceConfig{
		provider.SourceCoinGecko: {
			BaseURL: c.CoinGeckoBaseURL,
			APIKey:  c.CoinGeckoAPIKey,
			Limit:   c.CoinGeckoPerPage,
		},
		provider.SourceCoinPaprika: {
			BaseURL: c.CoinPaprikaBaseURL,
			Limit:   c.CoinPaprikaLimit,
		},
		provider.SourceCoinCap: {
			BaseURL: c.CoinCapBaseURL,
			APIKey:  c.CoinCapAPIKey,
			Limit:   c.CoinCapLimit,
		},
	}
}

func positiveInt(key string, def int) int {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil || n <= 0 {
		log.Printf("Warning: invalid %s=%q, using %d", key, v, def)
		return def
	}
	return n
}
