package config

import (
	"encoding/json"
	"log/slog"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

const (
	defaultBaseURL        = "https://danryoku.com"
	defaultUserAgent      = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 Chrome/120 Safari/537.36"
	defaultAcceptLanguage = "ja,en;q=0.9"
	defaultProxyPath      = "config/proxy.json"
)

// UpstreamConfig describes how the scraped site is reached.
type UpstreamConfig struct {
	BaseURL        string
	UserAgent      string
	AcceptLanguage string
	Referer        string
	ConnectTimeout time.Duration
	ReadTimeout    time.Duration
	// Proxies maps a URL scheme ("http", "https" or "all") to a proxy URL.
	// Nil means no explicit proxy.
	Proxies map[string]string
}

type Config struct {
	ServerPort string
	LogLevel   string

	Upstream UpstreamConfig

	DetailRetryBudget  int
	DetailRetryBackoff time.Duration
	DetailMaxPages     int

	BreakerFailureThreshold int
	BreakerOpenTimeout      time.Duration

	MongoURI    string
	MongoDBName string
	MongoColl   string

	KafkaBrokers []string
	KafkaTopic   string

	OTELEnabled     bool
	OTELEndpoint    string
	OTELServiceName string

	ProxyConfigPath string
}

func Load() *Config {
	// Load .env file if it exists
	_ = godotenv.Load()

	baseURL := strings.TrimRight(getEnv("UPSTREAM_BASE_URL", defaultBaseURL), "/")

	cfg := &Config{
		ServerPort: getEnv("SERVER_PORT", "5000"),
		LogLevel:   getEnv("LOG_LEVEL", "info"),
		Upstream: UpstreamConfig{
			BaseURL:        baseURL,
			UserAgent:      getEnv("UPSTREAM_USER_AGENT", defaultUserAgent),
			AcceptLanguage: getEnv("UPSTREAM_ACCEPT_LANGUAGE", defaultAcceptLanguage),
			Referer:        getEnv("UPSTREAM_REFERER", baseURL+"/"),
			ConnectTimeout: getDurationEnv("CONNECT_TIMEOUT", 10*time.Second),
			ReadTimeout:    getDurationEnv("READ_TIMEOUT", 60*time.Second),
		},
		DetailRetryBudget:       getIntEnv("DETAIL_RETRY_BUDGET", 3),
		DetailRetryBackoff:      getDurationEnv("DETAIL_RETRY_BACKOFF", 0),
		DetailMaxPages:          getIntEnv("DETAIL_MAX_PAGES", 0),
		BreakerFailureThreshold: getIntEnv("BREAKER_FAILURE_THRESHOLD", 5),
		BreakerOpenTimeout:      getDurationEnv("BREAKER_OPEN_TIMEOUT", 30*time.Second),
		MongoURI:                getEnv("MONGO_URI", ""),
		MongoDBName:             getEnv("MONGO_DB_NAME", "photobook_scraper"),
		MongoColl:               getEnv("MONGO_COLLECTION", "scrape_records"),
		KafkaBrokers:            splitList(getEnv("KAFKA_BROKERS", "")),
		KafkaTopic:              getEnv("KAFKA_TOPIC", "gallery_scrapes"),
		OTELEnabled:             getBoolEnv("OTEL_ENABLED", false),
		OTELEndpoint:            getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", "localhost:4317"),
		OTELServiceName:         getEnv("OTEL_SERVICE_NAME", "photobook-scraper"),
		ProxyConfigPath:         getEnv("PROXY_CONFIG_PATH", defaultProxyPath),
	}
	cfg.Upstream.Proxies = loadProxies(cfg.ProxyConfigPath)
	return cfg
}

// SlogLevel maps LogLevel onto a slog level, defaulting to info.
func (c *Config) SlogLevel() slog.Level {
	switch strings.ToLower(c.LogLevel) {
	case "debug":
		return slog.LevelDebug
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// loadProxies reads the optional proxy map. A missing file means direct connections.
func loadProxies(path string) map[string]string {
	if path == "" {
		return nil
	}

	file, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			slog.Info("No proxy configuration found, connecting directly", "path", path)
		} else {
			slog.Warn("Could not open proxy configuration, connecting directly", "path", path, "error", err)
		}
		return nil
	}
	defer func() {
		if err := file.Close(); err != nil {
			slog.Warn("Failed to close proxy config file", "error", err)
		}
	}()

	var proxies map[string]string
	if err := json.NewDecoder(file).Decode(&proxies); err != nil {
		slog.Error("Error decoding proxy configuration", "path", path, "error", err)
		return nil
	}

	cleaned := make(map[string]string, len(proxies))
	for scheme, proxyURL := range proxies {
		if proxyURL = strings.TrimSpace(proxyURL); proxyURL != "" {
			cleaned[strings.ToLower(strings.TrimSpace(scheme))] = proxyURL
		}
	}
	if len(cleaned) == 0 {
		return nil
	}

	slog.Info("Using local proxy", "path", path, "schemes", len(cleaned))
	return cleaned
}

func splitList(value string) []string {
	var out []string
	for _, part := range strings.Split(value, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getEnv(key, fallback string) string {
	if value, ok := os.LookupEnv(key); ok {
		return value
	}
	return fallback
}

func getIntEnv(key string, fallback int) int {
	if value, ok := os.LookupEnv(key); ok {
		i, err := strconv.Atoi(value)
		if err == nil {
			return i
		}
	}
	return fallback
}

func getBoolEnv(key string, fallback bool) bool {
	if value, ok := os.LookupEnv(key); ok {
		b, err := strconv.ParseBool(value)
		if err == nil {
			return b
		}
	}
	return fallback
}

func getDurationEnv(key string, fallback time.Duration) time.Duration {
	if value, ok := os.LookupEnv(key); ok {
		// Try parsing as duration string (e.g. "1m", "60s")
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
		// Try parsing as integer seconds
		if i, err := strconv.Atoi(value); err == nil {
			return time.Duration(i) * time.Second
		}
	}
	return fallback
}
