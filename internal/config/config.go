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

const defaultUserAgent = "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/122.0.0.0 Safari/537.36"

// Thresholds is the read-only tuning of a run. It is built once before
// scheduling starts and passed by value afterwards.
type Thresholds struct {
	DecreaseAlert     float64
	IncreaseAlert     float64
	MinDelay          time.Duration
	MaxDelay          time.Duration
	BatchMinDelay     time.Duration
	BatchMaxDelay     time.Duration
	RetryDelay        time.Duration
	RateLimitCooldown time.Duration
	FetchTimeout      time.Duration
	MaxAttempts       int
	WindowSize        int
}

type Config struct {
	Input         string
	Output        string
	AlertLogFile  string
	Thresholds    Thresholds
	Proxies       []string
	UserAgent     string
	RedisURL      string
	AlertRedisKey string
	HistoryDBURL  string
	MetricsPort   string
	LogLevel      string
	LogPretty     bool
	WatchInterval time.Duration

	envErrs []error
}

func Load() *Config {
	// Carrega .env da raiz do projeto
	_ = godotenv.Load("../../.env")
	// Se não encontrar, tenta no diretório atual
	_ = godotenv.Load()

	env := &envReader{}
	minDelay := env.getDuration("MIN_DELAY", 2*time.Second)
	maxDelay := env.getDuration("MAX_DELAY", 5*time.Second)
	input := getEnv("TRACKER_INPUT", "products.csv")

	c := &Config{
		Input:        input,
		Output:       getEnv("TRACKER_OUTPUT", input),
		AlertLogFile: getEnv("ALERT_LOG_FILE", "price_alerts.log"),
		Thresholds: Thresholds{
			DecreaseAlert:     env.getFloat("PRICE_DECREASE_ALERT_THRESHOLD", 0.1),
			IncreaseAlert:     env.getFloat("PRICE_INCREASE_ALERT_THRESHOLD", 0.2),
			MinDelay:          minDelay,
			MaxDelay:          maxDelay,
			BatchMinDelay:     env.getDuration("BATCH_MIN_DELAY", minDelay),
			BatchMaxDelay:     env.getDuration("BATCH_MAX_DELAY", maxDelay),
			RetryDelay:        env.getDuration("RETRY_DELAY", 5*time.Second),
			RateLimitCooldown: env.getDuration("RATE_LIMIT_DELAY", time.Minute),
			FetchTimeout:      env.getDuration("FETCH_TIMEOUT", time.Minute),
			MaxAttempts:       env.getInt("MAX_ATTEMPTS", 3),
			WindowSize:        env.getInt("WINDOW_SIZE", 8),
		},
		Proxies:       getEnvList("PROXY_LIST"),
		UserAgent:     getEnv("USER_AGENT", defaultUserAgent),
		RedisURL:      os.Getenv("REDIS_URL"),
		AlertRedisKey: getEnv("ALERT_REDIS_KEY", "price_alerts"),
		HistoryDBURL:  os.Getenv("HISTORY_DATABASE_URL"),
		MetricsPort:   os.Getenv("METRICS_PORT"),
		LogLevel:      getEnv("LOG_LEVEL", "info"),
		LogPretty:     env.getBool("LOG_PRETTY", false),
		WatchInterval: env.getDuration("WATCH_INTERVAL", 6*time.Hour),
	}
	c.envErrs = env.errs
	return c
}

// Validate rejects settings the scheduler cannot run with.
func (c *Config) Validate() error {
	errs := append([]error(nil), c.envErrs...)
	t := c.Thresholds
	if t.WindowSize < 1 {
		errs = append(errs, fmt.Errorf("window size must be positive, got %d", t.WindowSize))
	}
	if t.MaxAttempts < 1 {
		errs = append(errs, fmt.Errorf("max attempts must be positive, got %d", t.MaxAttempts))
	}
	if t.MinDelay < 0 || t.MaxDelay < t.MinDelay {
		errs = append(errs, fmt.Errorf("invalid jitter bounds [%s, %s]", t.MinDelay, t.MaxDelay))
	}
	if t.BatchMinDelay < 0 || t.BatchMaxDelay < t.BatchMinDelay {
		errs = append(errs, fmt.Errorf("invalid batch jitter bounds [%s, %s]", t.BatchMinDelay, t.BatchMaxDelay))
	}
	if t.RetryDelay < 0 || t.RateLimitCooldown < 0 {
		errs = append(errs, errors.New("retry delays must not be negative"))
	}
	if t.FetchTimeout <= 0 {
		errs = append(errs, fmt.Errorf("fetch timeout must be positive, got %s", t.FetchTimeout))
	}
	if t.DecreaseAlert < 0 || t.IncreaseAlert < 0 {
		errs = append(errs, errors.New("alert thresholds must not be negative"))
	}
	if c.Input == "" {
		errs = append(errs, errors.New("input location is required"))
	}
	return errors.Join(errs...)
}

func getEnv(k, d string) string {
	if v := os.Getenv(k); v != "" {
		return v
	}
	return d
}

// envReader parses typed variables. A malformed value keeps the default
// and is remembered so Validate can report it.
type envReader struct {
	errs []error
}

func (r *envReader) bad(k, v, want string) {
	r.errs = append(r.errs, fmt.Errorf("%s=%q is not a valid %s", k, v, want))
}

func (r *envReader) getInt(k string, d int) int {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		r.bad(k, v, "integer")
		return d
	}
	return n
}

func (r *envReader) getFloat(k string, d float64) float64 {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		r.bad(k, v, "number")
		return d
	}
	return f
}

func (r *envReader) getBool(k string, d bool) bool {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		r.bad(k, v, "boolean")
		return d
	}
	return b
}

// Durations accept Go syntax ("90s") or plain milliseconds ("5000").
func (r *envReader) getDuration(k string, d time.Duration) time.Duration {
	v := os.Getenv(k)
	if v == "" {
		return d
	}
	if dur, err := time.ParseDuration(v); err == nil {
		return dur
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	r.bad(k, v, "duration")
	return d
}

func getEnvList(k string) []string {
	var out []string
	for _, p := range strings.Split(os.Getenv(k), ",") {
		if p = strings.TrimSpace(p); p != "" {
			out = append(out, p)
		}
	}
	return out
}
