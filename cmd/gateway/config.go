package main

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"bulkhead-gateway/middleware/bulkhead/application"
	"bulkhead-gateway/middleware/bulkhead/infra"

	"gopkg.in/yaml.v3"
)

type config struct {
	listenAddr  string
	upstreamURL string
	metricsAddr string
	logLevel    string
	logFormat   string

	bulkhead     application.Config
	excludePaths []string
	pool         string
	idleTTL      time.Duration

	statsEnabled       bool
	statsRedisAddr     string
	statsRedisPassword string
	statsRedisDB       int
	statsPrefix        string
	statsTTL           time.Duration
	statsBucket        string
	statsTrackPaths    bool
}

// fileConfig é o formato do arquivo YAML opcional (BULKHEAD_CONFIG_FILE).
// Campos ausentes mantêm o padrão; variáveis de ambiente sobrescrevem o arquivo.
type fileConfig struct {
	Bulkhead struct {
		MaxConcurrent *int           `yaml:"max_concurrent"`
		MaxWaiting    *int           `yaml:"max_waiting"`
		Timeout       *Duration      `yaml:"timeout"`
		PerPath       *bool          `yaml:"per_path"`
		PathLimits    map[string]int `yaml:"path_limits"`
		ExcludePaths  []string       `yaml:"exclude_paths"`
		Pool          string         `yaml:"pool"`
		IdleTTL       *Duration      `yaml:"idle_ttl"`
	} `yaml:"bulkhead"`
}

// Duration aceita "30s", "500ms", "1m" no YAML.
type Duration time.Duration

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return err
	}
	if s == "" {
		*d = 0
		return nil
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return err
	}
	*d = Duration(parsed)
	return nil
}

func readConfig() (config, error) {
	cfg := config{bulkhead: application.DefaultConfig(), pool: "channel"}

	if path := os.Getenv("BULKHEAD_CONFIG_FILE"); path != "" {
		if err := loadFile(path, &cfg); err != nil {
			return config{}, err
		}
	}

	cfg.listenAddr = getenvDefault("LISTEN_ADDR", ":8080")
	cfg.upstreamURL = os.Getenv("UPSTREAM_URL")
	cfg.metricsAddr = getenvDefault("METRICS_ADDR", ":9090")
	cfg.logLevel = getenvDefault("LOG_LEVEL", "info")
	cfg.logFormat = getenvDefault("LOG_FORMAT", "json")

	cfg.bulkhead.MaxConcurrent = getenvIntDefault("BULKHEAD_MAX_CONCURRENT", cfg.bulkhead.MaxConcurrent)
	cfg.bulkhead.MaxWaiting = getenvIntDefault("BULKHEAD_MAX_WAITING", cfg.bulkhead.MaxWaiting)
	cfg.bulkhead.Timeout = getenvDurationDefault("BULKHEAD_TIMEOUT", cfg.bulkhead.Timeout)
	cfg.bulkhead.PerPath = getenvBoolDefault("BULKHEAD_PER_PATH", cfg.bulkhead.PerPath)
	if v := os.Getenv("BULKHEAD_PATH_LIMITS"); v != "" {
		limits, err := parsePathLimits(v)
		if err != nil {
			return config{}, fmt.Errorf("BULKHEAD_PATH_LIMITS: %w", err)
		}
		cfg.bulkhead.PathLimits = limits
	}
	if v := os.Getenv("BULKHEAD_EXCLUDE_PATHS"); v != "" {
		cfg.excludePaths = splitList(v)
	}
	cfg.pool = getenvDefault("BULKHEAD_POOL", cfg.pool)
	cfg.idleTTL = getenvDurationDefault("BULKHEAD_IDLE_TTL", cfg.idleTTL)

	cfg.statsEnabled = getenvBoolDefault("STATS_ENABLED", false)
	cfg.statsRedisAddr = getenvDefault("STATS_REDIS_ADDR", "")
	cfg.statsRedisPassword = os.Getenv("STATS_REDIS_PASSWORD")
	cfg.statsRedisDB = getenvIntDefault("STATS_REDIS_DB", 0)
	cfg.statsPrefix = getenvDefault("STATS_PREFIX", "bulkhead:stats")
	cfg.statsTTL = getenvDurationDefault("STATS_TTL", 24*time.Hour)
	cfg.statsBucket = getenvDefault("STATS_BUCKET", "minute")
	cfg.statsTrackPaths = getenvBoolDefault("STATS_TRACK_PATHS", false)

	if cfg.upstreamURL == "" {
		return config{}, errors.New("UPSTREAM_URL is required")
	}
	if cfg.statsEnabled && strings.TrimSpace(cfg.statsRedisAddr) == "" {
		return config{}, errors.New("STATS_REDIS_ADDR is required when STATS_ENABLED=true")
	}
	if _, ok := infra.PoolFactoryByName(cfg.pool); !ok {
		return config{}, fmt.Errorf("BULKHEAD_POOL must be channel or fifo, got %q", cfg.pool)
	}
	if cfg.idleTTL < 0 {
		return config{}, errors.New("BULKHEAD_IDLE_TTL must be >= 0")
	}
	if err := cfg.bulkhead.Validate(); err != nil {
		return config{}, err
	}
	return cfg, nil
}

func loadFile(path string, cfg *config) error {
	data, err := os.ReadFile(path) //nolint:gosec // caminho vem da configuração do operador
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	var fc fileConfig
	if err := yaml.Unmarshal(data, &fc); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}

	b := fc.Bulkhead
	if b.MaxConcurrent != nil {
		cfg.bulkhead.MaxConcurrent = *b.MaxConcurrent
	}
	if b.MaxWaiting != nil {
		cfg.bulkhead.MaxWaiting = *b.MaxWaiting
	}
	if b.Timeout != nil {
		cfg.bulkhead.Timeout = time.Duration(*b.Timeout)
	}
	if b.PerPath != nil {
		cfg.bulkhead.PerPath = *b.PerPath
	}
	if len(b.PathLimits) > 0 {
		cfg.bulkhead.PathLimits = b.PathLimits
	}
	if len(b.ExcludePaths) > 0 {
		cfg.excludePaths = b.ExcludePaths
	}
	if b.Pool != "" {
		cfg.pool = b.Pool
	}
	if b.IdleTTL != nil {
		cfg.idleTTL = time.Duration(*b.IdleTTL)
	}
	return nil
}

// parsePathLimits lê "/a=1,/b=2".
func parsePathLimits(v string) (map[string]int, error) {
	out := make(map[string]int)
	for _, item := range splitList(v) {
		path, raw, ok := strings.Cut(item, "=")
		path = strings.TrimSpace(path)
		if !ok || path == "" {
			return nil, fmt.Errorf("invalid entry %q, expected path=limit", item)
		}
		limit, err := strconv.Atoi(strings.TrimSpace(raw))
		if err != nil {
			return nil, fmt.Errorf("invalid limit for %q: %w", path, err)
		}
		out[path] = limit
	}
	return out, nil
}

func splitList(v string) []string {
	var out []string
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

func getenvDefault(k, def string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return def
}

func getenvIntDefault(k string, def int) int {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return def
	}
	return i
}

func getenvBoolDefault(k string, def bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		return def
	}
	return b
}

func getenvDurationDefault(k string, def time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return def
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return def
	}
	return d
}
