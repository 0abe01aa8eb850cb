package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/couchcryptid/inmet-alerts/internal/domain"
	sharedcfg "github.com/couchcryptid/storm-data-shared/config"
)

// Config holds all service settings, populated from environment variables.
type Config struct {
	// Regions are the monitored municipalities, one poller each. Only Code is
	// required; missing names and coordinates are looked up at startup.
	Regions []domain.City

	AlertsURL string
	CityURL   string
	DetailURL string

	PollInterval    time.Duration
	MinPollInterval time.Duration
	FetchTimeout    time.Duration
	CityCacheSize   int

	// Home is the optional reference point for alert distances.
	Home *Point

	KafkaBrokers []string
	KafkaTopic   string

	HTTPAddr        string
	LogLevel        string
	LogFormat       string
	ShutdownTimeout time.Duration
}

// Point is a WGS84 coordinate pair.
type Point struct {
	Latitude  float64
	Longitude float64
}

// KafkaEnabled reports whether transitions should be published to Kafka.
func (c *Config) KafkaEnabled() bool {
	return len(c.KafkaBrokers) > 0
}

// Load reads configuration from environment variables, applying defaults where unset.
func Load() (*Config, error) {
	shutdownTimeout, err := sharedcfg.ParseShutdownTimeout()
	if err != nil {
		return nil, err
	}

	pollInterval, err := parseDuration("POLL_INTERVAL", "30m")
	if err != nil {
		return nil, err
	}
	minPollInterval, err := parseDuration("MIN_POLL_INTERVAL", "1m")
	if err != nil {
		return nil, err
	}
	fetchTimeout, err := parseDuration("FETCH_TIMEOUT", "15s")
	if err != nil {
		return nil, err
	}

	cacheSize, err := parsePositiveInt("CITY_CACHE_SIZE", 100)
	if err != nil {
		return nil, err
	}

	regions, err := loadRegions()
	if err != nil {
		return nil, err
	}

	home, err := parseHome()
	if err != nil {
		return nil, err
	}

	cfg := &Config{
		Regions:         regions,
		AlertsURL:       sharedcfg.EnvOrDefault("INMET_ALERTS_URL", "https://apiprevmet3.inmet.gov.br/avisos/ativos"),
		CityURL:         sharedcfg.EnvOrDefault("INMET_CITY_URL", "https://apiprevmet3.inmet.gov.br/buscar/cidade"),
		DetailURL:       strings.TrimRight(sharedcfg.EnvOrDefault("INMET_DETAIL_URL", "https://alertas2.inmet.gov.br"), "/"),
		PollInterval:    pollInterval,
		MinPollInterval: minPollInterval,
		FetchTimeout:    fetchTimeout,
		CityCacheSize:   cacheSize,
		Home:            home,
		KafkaTopic:      sharedcfg.EnvOrDefault("KAFKA_TOPIC", "inmet-alert-transitions"),
		HTTPAddr:        sharedcfg.EnvOrDefault("HTTP_ADDR", ":8080"),
		LogLevel:        sharedcfg.EnvOrDefault("LOG_LEVEL", "info"),
		LogFormat:       sharedcfg.EnvOrDefault("LOG_FORMAT", "json"),
		ShutdownTimeout: shutdownTimeout,
	}

	if brokers := strings.TrimSpace(os.Getenv("KAFKA_BROKERS")); brokers != "" {
		cfg.KafkaBrokers = sharedcfg.ParseBrokers(brokers)
	}

	if cfg.AlertsURL == "" {
		return nil, errors.New("INMET_ALERTS_URL is required")
	}
	if cfg.CityURL == "" {
		return nil, errors.New("INMET_CITY_URL is required")
	}
	if cfg.KafkaEnabled() && cfg.KafkaTopic == "" {
		return nil, errors.New("KAFKA_TOPIC is required when KAFKA_BROKERS is set")
	}

	return cfg, nil
}

// loadRegions reads INMET_REGIONS_FILE when set, INMET_CITY_CODES otherwise.
func loadRegions() ([]domain.City, error) {
	if path := os.Getenv("INMET_REGIONS_FILE"); path != "" {
		regions, err := LoadRegionsFile(path)
		if err != nil {
			return nil, fmt.Errorf("INMET_REGIONS_FILE: %w", err)
		}
		return regions, nil
	}

	var regions []domain.City
	for _, code := range strings.Split(sharedcfg.EnvOrDefault("INMET_CITY_CODES", "3509502"), ",") {
		code = strings.TrimSpace(code)
		if code == "" {
			continue
		}
		regions = append(regions, domain.City{Code: code})
	}
	if err := validateRegions(regions); err != nil {
		return nil, fmt.Errorf("INMET_CITY_CODES: %w", err)
	}
	return regions, nil
}

func validateRegions(regions []domain.City) error {
	if len(regions) == 0 {
		return &domain.ConfigurationError{Field: "regions", Err: errors.New("at least one city code is required")}
	}
	seen := make(map[string]bool, len(regions))
	for _, r := range regions {
		if err := domain.ValidateCityCode(r.Code); err != nil {
			return err
		}
		if seen[r.Code] {
			return &domain.ConfigurationError{Field: "city code", Value: r.Code, Err: errors.New("listed more than once")}
		}
		seen[r.Code] = true
	}
	return nil
}

func parseHome() (*Point, error) {
	lat, latSet := os.LookupEnv("HOME_LATITUDE")
	lon, lonSet := os.LookupEnv("HOME_LONGITUDE")
	if !latSet && !lonSet {
		return nil, nil
	}
	if !latSet || !lonSet {
		return nil, errors.New("HOME_LATITUDE and HOME_LONGITUDE must be set together")
	}

	p := &Point{}
	var err error
	if p.Latitude, err = strconv.ParseFloat(strings.TrimSpace(lat), 64); err != nil || p.Latitude < -90 || p.Latitude > 90 {
		return nil, fmt.Errorf("invalid HOME_LATITUDE %q", lat)
	}
	if p.Longitude, err = strconv.ParseFloat(strings.TrimSpace(lon), 64); err != nil || p.Longitude < -180 || p.Longitude > 180 {
		return nil, fmt.Errorf("invalid HOME_LONGITUDE %q", lon)
	}
	return p, nil
}

func parseDuration(key, def string) (time.Duration, error) {
	s := sharedcfg.EnvOrDefault(key, def)
	d, err := time.ParseDuration(s)
	if err != nil || d <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive duration", key, s)
	}
	return d, nil
}

func parsePositiveInt(key string, def int) (int, error) {
	s := os.Getenv(key)
	if s == "" {
		return def, nil
	}
	n, err := strconv.Atoi(s)
	if err != nil || n <= 0 {
		return 0, fmt.Errorf("invalid %s %q: must be a positive integer", key, s)
	}
	return n, nil
}
