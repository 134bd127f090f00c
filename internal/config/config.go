package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends selectable with CARDSYNC_STORE.
const (
	StoreRedis  = "redis"
	StoreMemory = "memory"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	Store string // "redis" | "memory"

	// Firehose
	JetstreamURL    string // websocket endpoint, empty disables the live source
	FirehoseShards  int    // number of per-curator shards
	FirehoseBuffer  int    // queued events per shard
	IngestBurst     int    // token bucket size for POST /firehose/events
	IngestRefillMin int    // tokens refilled per minute

	// Workers
	ImportFile        string        // path to the library import YAML (optional, empty = importer disabled)
	ImportInterval    time.Duration // interval to re-run the import file (default: 24h)
	OrphanGCInterval  time.Duration // interval to collect cards left without memberships
	OrphanGCThreshold time.Duration // minimum age of an orphaned card before deletion

	// Redis
	RedisAddr             string        // ex: "localhost:6379"
	RedisUser             string        // optional
	RedisPassword         string        // optional
	RedisPasswordRequired bool          // true => require password, false => allow empty password
	RedisDB               int           // Redis DB number
	RedisDT               time.Duration // Redis dial timeout (ex: 5s)
	RedisRT               time.Duration // Redis read timeout (ex: 3s)
	RedisWT               time.Duration // Redis write timeout (ex: 3s)
	RedisMaxWait          time.Duration // max wait between retries (ex: 10s)
	RedisPingTimeout      time.Duration // timeout for each ping attempt (ex: 5s)
	RedisPoolSize         int           // Redis connection pool size
	RedisConnectTimeout   time.Duration // Total time to retry connecting (ex: 30s)
	RedisRetryInterval    time.Duration // Initial wait between retries (ex: 2s, grows exponentially)
	RedisWarnThreshold    int           // warn after this many attempts

	AllowedHosts []string // optional, restrict access to specific Host headers
	AllowedCIDRS []string // optional, restrict ops endpoints to specific IPs or CIDRs
	TrustProxy   bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("CARDSYNC_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("CARDSYNC_SHUTDOWN_TIMEOUT", 5*time.Second),

		// Logging
		LogLevel:  getenv("CARDSYNC_LOG_LEVEL", "info"),
		PrettyLog: mustBool("CARDSYNC_PRETTY_LOG", true),

		Store: strings.ToLower(getenv("CARDSYNC_STORE", StoreRedis)),

		// Firehose
		JetstreamURL:    getenv("CARDSYNC_JETSTREAM_URL", ""),
		FirehoseShards:  getenvInt("CARDSYNC_FIREHOSE_SHARDS", 4),
		FirehoseBuffer:  getenvInt("CARDSYNC_FIREHOSE_BUFFER", 64),
		IngestBurst:     getenvInt("CARDSYNC_INGEST_BURST", 50),
		IngestRefillMin: getenvInt("CARDSYNC_INGEST_REFILL_PER_MIN", 600),

		// Workers
		ImportFile:        getenv("CARDSYNC_IMPORT_FILE", ""),
		ImportInterval:    mustDuration("CARDSYNC_IMPORT_INTERVAL", 24*time.Hour),
		OrphanGCInterval:  mustDuration("CARDSYNC_ORPHAN_GC_INTERVAL", time.Hour),
		OrphanGCThreshold: mustDuration("CARDSYNC_ORPHAN_GC_THRESHOLD", 24*time.Hour),

		// Access restrictions
		AllowedHosts: splitAndTrim(getenv("CARDSYNC_ALLOWED_HOSTS", "")),
		AllowedCIDRS: splitAndTrim(getenv("CARDSYNC_ALLOWED_CIDRS", "")),
		TrustProxy:   mustBool("CARDSYNC_TRUST_PROXY", true),
	}

	switch cfg.Store {
	case StoreMemory:
	case StoreRedis:
		loadRedis(cfg)
	default:
		panic(fmt.Sprintf("❌ FATAL: CARDSYNC_STORE must be %q or %q, got %q", StoreRedis, StoreMemory, cfg.Store))
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		cfgCopy := *cfg
		cfgCopy.RedisPassword = "***REDACTED***"
		if cfg.RedisUser != "" {
			cfgCopy.RedisUser = "***REDACTED***"
		}
		log.Printf("[DEBUG] cfg: %+v\n", cfgCopy)
	}

	return cfg
}

func loadRedis(cfg *Config) {
	cfg.RedisAddr = requireEnv("CARDSYNC_REDIS_ADDR")
	cfg.RedisUser = getenv("CARDSYNC_REDIS_USERNAME", "default")
	cfg.RedisPasswordRequired = mustBool("CARDSYNC_REDIS_PASSWORD_REQUIRED", true)
	cfg.RedisPassword = getenv("CARDSYNC_REDIS_PASSWORD", "")
	cfg.RedisDB = requireEnvInt("CARDSYNC_REDIS_DB")
	cfg.RedisDT = mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second)
	cfg.RedisRT = mustDuration("REDIS_READ_TIMEOUT", 3*time.Second)
	cfg.RedisWT = mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second)
	cfg.RedisMaxWait = mustDuration("REDIS_MAX_WAIT", 10*time.Second)
	cfg.RedisPingTimeout = mustDuration("REDIS_PING_TIMEOUT", 5*time.Second)
	cfg.RedisPoolSize = getenvInt("REDIS_POOL_SIZE", 10)
	cfg.RedisConnectTimeout = mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second)
	cfg.RedisRetryInterval = mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second)
	cfg.RedisWarnThreshold = getenvInt("REDIS_WARN_THRESHOLD", 3)

	if cfg.RedisPasswordRequired && cfg.RedisPassword == "" {
		panic("❌ FATAL: CARDSYNC_REDIS_PASSWORD is required when CARDSYNC_REDIS_PASSWORD_REQUIRED=true")
	}
}

// helpers
func getenv(key, def string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return def
}

func requireEnv(key string) string {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	return v
}

func requireEnvInt(key string) int {
	v := os.Getenv(key)
	if v == "" {
		panic(fmt.Sprintf("❌ FATAL: Required environment variable %s is not set", key))
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		panic(fmt.Sprintf("❌ FATAL: Invalid integer value for %s: %s", key, v))
	}
	return i
}

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func mustBool(key string, def bool) bool {
	if v := os.Getenv(key); v != "" {
		b, err := strconv.ParseBool(v)
		if err == nil {
			return b
		}
	}
	return def
}

func mustDuration(key string, def time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return def
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		if trimmed := strings.Trim(strings.TrimSpace(part), `"'`); trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
