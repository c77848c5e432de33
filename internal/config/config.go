package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"time"

	sharedcfg "github.com/couchcryptid/storm-data-shared/config"

	"github.com/couchcryptid/borehole-data-service/internal/domain"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	KafkaBrokers     []string
	KafkaSourceTopic string
	KafkaSinkTopic   string
	KafkaGroupID     string
	HTTPAddr         string
	LogLevel         string
	LogFormat        string
	ShutdownTimeout  time.Duration

	BatchSize          int
	BatchFlushInterval time.Duration

	// Circuit breaker around the sink writer.
	SinkBreakerFailures int
	SinkBreakerTimeout  time.Duration

	// SeedFile is an optional JSON array of points loaded at startup.
	SeedFile string

	// Profile plot rendering.
	PlotWidth     int
	PlotHeight    int
	PlotFontPath  string
	PlotFontSize  float64
	PlotCacheSize int

	Policy domain.ValidationPolicy
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	batchSize, err := sharedcfg.ParseBatchSize()
	if err != nil {
		return nil, err
	}

	flushInterval, err := sharedcfg.ParseBatchFlushInterval()
	if err != nil {
		return nil, err
	}

	breakerFailures, err := parsePositiveInt("SINK_BREAKER_FAILURES", 5)
	if err != nil {
		return nil, err
	}
	breakerTimeout, err := parseDuration("SINK_BREAKER_TIMEOUT", 30*time.Second)
	if err != nil {
		return nil, err
	}

	plotWidth, err := parsePositiveInt("PLOT_WIDTH", 800)
	if err != nil {
		return nil, err
	}
	plotHeight, err := parsePositiveInt("PLOT_HEIGHT", 600)
	if err != nil {
		return nil, err
	}
	plotCacheSize, err := parsePositiveInt("PLOT_CACHE_SIZE", 256)
	if err != nil {
		return nil, err
	}

	plotFontSize, err := strconv.ParseFloat(sharedcfg.EnvOrDefault("PLOT_FONT_SIZE", "12"), 64)
	if err != nil || plotFontSize <= 0 {
		return nil, errors.New("invalid PLOT_FONT_SIZE")
	}

	policy, err := parsePolicy()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		KafkaBrokers:       sharedcfg.ParseBrokers(sharedcfg.EnvOrDefault("KAFKA_BROKERS", "localhost:9092")),
		KafkaSourceTopic:   sharedcfg.EnvOrDefault("KAFKA_SOURCE_TOPIC", "spt-readings"),
		KafkaSinkTopic:     sharedcfg.EnvOrDefault("KAFKA_SINK_TOPIC", "spt-blow-counts"),
		KafkaGroupID:       sharedcfg.EnvOrDefault("KAFKA_GROUP_ID", "borehole-data-service"),
		HTTPAddr:           sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:           sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:          sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout:    shutdownTimeout,
		BatchSize:          batchSize,
		BatchFlushInterval: flushInterval,

		SinkBreakerFailures: breakerFailures,
		SinkBreakerTimeout:  breakerTimeout,

		SeedFile: os.Getenv("SEED_FILE"),

		PlotWidth:     plotWidth,
		PlotHeight:    plotHeight,
		PlotFontPath:  os.Getenv("PLOT_FONT"),
		PlotFontSize:  plotFontSize,
		PlotCacheSize: plotCacheSize,

		Policy: policy,
	}

	if len(cfg.KafkaBrokers) == 0 {
		return nil, errors.New("KAFKA_BROKERS is required")
	}
	if cfg.KafkaSourceTopic == "" {
		return nil, errors.New("KAFKA_SOURCE_TOPIC is required")
	}
	if cfg.KafkaSinkTopic == "" {
		return nil, errors.New("KAFKA_SINK_TOPIC is required")
	}

	return cfg, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive integer", key)
	}
	return n, nil
}

func parseDuration(key string, def time.Duration) (time.Duration, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s: must be a positive duration", key)
	}
	return d, nil
}

func parseBool(key string) (bool, error) {
	s := os.Getenv(key)
	if s == "" {
		return false, nil
	}
	v, err := strconv.ParseBool(s)
	if err != nil {
		return false, fmt.Errorf("invalid %s: %w", key, err)
	}
	return v, nil
}

func parsePolicy() (domain.ValidationPolicy, error) {
	var p domain.ValidationPolicy
	var err error
	if p.RejectNegativeDepth, err = parseBool("REJECT_NEGATIVE_DEPTH"); err != nil {
		return p, err
	}
	if p.RejectNegativeBlows, err = parseBool("REJECT_NEGATIVE_BLOWS"); err != nil {
		return p, err
	}
	if p.RequireUniqueBoreholeID, err = parseBool("REQUIRE_UNIQUE_BOREHOLE_ID"); err != nil {
		return p, err
	}
	return p, nil
}
