package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds all service settings, populated from environment variables
// (optionally via a .env file).
type Config struct {
	DatabaseURL     string
	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration

	// Outbound HTTP behavior shared by all source adapters.
	RequestTimeout time.Duration
	RequestRPS     float64

	// Scheduler envelope.
	Workers       int
	RetryAttempts int
	RetryBackoff  time.Duration

	// Upstream endpoints. Defaults point at the production sources; tests
	// and staging override them.
	TideGaugeURL         string
	BuoyBaseURL          string
	BuoyStationCode      string
	TideForecastURL      string
	TideForecastLocality string
	WeatherLinkBaseURL   string
	OpenAlexURL          string
	OpenAlexFilter       string

	// WeatherLink API credentials and station ids, one set per station.
	PuertoStationID string
	PuertoAPIKey    string
	PuertoAPISecret string
	MuelleStationID string
	MuelleAPIKey    string
	MuelleAPISecret string

	// Optional inserted-measurement event feed. Disabled when no brokers
	// are configured.
	KafkaBrokers []string
	KafkaTopic   string
}

// EventsEnabled reports whether the Kafka event feed is configured.
func (c *Config) EventsEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from environment variables, applying defaults
// where unset.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")

	shutdownTimeout, err := envDuration("SHUTDOWN_TIMEOUT", 10*time.Second)
	if err != nil {
		return nil, err
	}
	requestTimeout, err := envDuration("REQUEST_TIMEOUT", 15*time.Second)
	if err != nil {
		return nil, err
	}
	retryBackoff, err := envDuration("RETRY_BACKOFF", 60*time.Second)
	if err != nil {
		return nil, err
	}
	workers, err := envInt("WORKERS", 4)
	if err != nil {
		return nil, err
	}
	retryAttempts, err := envInt("RETRY_ATTEMPTS", 3)
	if err != nil {
		return nil, err
	}
	requestRPS, err := envFloat("REQUEST_RPS", 2)
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		DatabaseURL:     strings.TrimSpace(os.Getenv("DATABASE_URL")),
		HTTPAddr:        envString("HTTP_ADDR", ":8080"),
		LogLevel:        envString("LOG_LEVEL", "info"),
		LogFormat:       envString("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,

		RequestTimeout: requestTimeout,
		RequestRPS:     requestRPS,

		Workers:       workers,
		RetryAttempts: retryAttempts,
		RetryBackoff:  retryBackoff,

		TideGaugeURL:         envString("TIDE_GAUGE_URL", "http://tidesud.com/Data/Data_Comodoro%20Rivadavia_Comodoro%20Rivadavia.html"),
		BuoyBaseURL:          envString("BUOY_BASE_URL", "http://emac.criba.edu.ar/servicios/getHistoryValues.php"),
		BuoyStationCode:      envString("BUOY_STATION_CODE", "EACC"),
		TideForecastURL:      envString("TIDE_FORECAST_URL", "https://www.hidro.gov.ar/oceanografia/Tmareas/RE_TablasDeMarea.asp"),
		TideForecastLocality: envString("TIDE_FORECAST_LOCALITY", "COMO"),
		WeatherLinkBaseURL:   envString("WEATHERLINK_BASE_URL", "https://api.weatherlink.com/v2"),
		OpenAlexURL:          envString("OPENALEX_URL", "https://api.openalex.org/works"),
		OpenAlexFilter:       envString("OPENALEX_FILTER", `title.search:"golfo san jorge"`),

		PuertoStationID: envString("STATION_ID_PUERTO", "191512"),
		PuertoAPIKey:    os.Getenv("API_KEY_PUERTO"),
		PuertoAPISecret: os.Getenv("API_SECRET_PUERTO"),
		MuelleStationID: envString("STATION_ID_MUELLE", "187316"),
		MuelleAPIKey:    os.Getenv("API_KEY_MUELLE"),
		MuelleAPISecret: os.Getenv("API_SECRET_MUELLE"),

		KafkaBrokers: splitList(os.Getenv("KAFKA_BROKERS")),
		KafkaTopic:   envString("KAFKA_TOPIC", "measurement-events"),
	}

	if cfg.DatabaseURL == "" {
		return nil, errors.New("DATABASE_URL is required")
	}
	if cfg.ShutdownTimeout <= 0 {
		return nil, errors.New("invalid SHUTDOWN_TIMEOUT: must be positive")
	}
	if cfg.Workers <= 0 {
		return nil, errors.New("invalid WORKERS: must be positive")
	}
	if cfg.RetryAttempts <= 0 {
		return nil, errors.New("invalid RETRY_ATTEMPTS: must be positive")
	}
	if cfg.EventsEnabled() && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_BROKERS is set but KAFKA_TOPIC is empty")
	}

	return cfg, nil
}

func envString(key, def string) string {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def
	}
	return v
}

func envInt(key string, def int) (int, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return n, nil
}

func envFloat(key string, def float64) (float64, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return f, nil
}

func envDuration(key string, def time.Duration) (time.Duration, error) {
	v := strings.TrimSpace(os.Getenv(key))
	if v == "" {
		return def, nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return 0, fmt.Errorf("invalid %s: %w", key, err)
	}
	return d, nil
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
