package config

import (
	"fmt"
	"log"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	ListenPort      string        // ex: ":8080"
	ShutdownTimeout time.Duration // ex: 5s
	RequestTimeout  time.Duration // per-request timeout for regular endpoints

	LogLevel  string // "debug" | "info" | "warn" | "error"
	PrettyLog bool   // true => zap dev (color), false => zap prod (JSON)

	// Storage
	DBPath string // sqlite database file (":memory:" for a throwaway db)

	// Auth
	JWTSecret     string        // HS256 signing secret (required)
	JWTExpire     time.Duration // token lifetime (default: 720h)
	AdminEmail    string        // optional bootstrap admin account
	AdminPassword string        // required when AdminEmail is set

	// Sync
	MaxSnapshotSize int           // max bookmarks in one sync request (default: 10000)
	MaxBodyBytes    int64         // max request body size in bytes (default: 16MiB)
	LockTTL         time.Duration // redis merge lock expiry (default: 30s)
	LockWait        time.Duration // max wait for the per-user merge lock (default: 10s)

	// Analyze
	MaxAnalyzeURLs     int           // max urls per batch-analyze call (default: 100)
	AnalyzeConcurrency int           // in-flight fetch+classify tasks (default: 10)
	AnalyzeTimeout     time.Duration // whole batch-analyze request (default: 5m)
	FetchTimeout       time.Duration // one page fetch (default: 10s)
	ClassifyTimeout    time.Duration // one model call (default: 30s)
	PageCacheTTL       time.Duration // redis page extract cache (default: 24h)

	// Background jobs
	StatsInterval    time.Duration // admin stats refresh interval (default: 5m)
	HomepageFile     string        // optional Homepage yaml merged periodically
	HomepageKind     string        // "bookmarks" | "services"
	HomepageUser     string        // email of the account receiving the import
	HomepageInterval time.Duration // re-import interval (default: 24h, 0 = once)

	// Redis (optional, empty RedisAddr => in-process locks and no page cache)
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

	// Access restrictions
	AllowedHosts      []string // optional, restrict access to specific Host headers
	AllowedCIDRS      []string // optional, restrict /infra to specific IP (e.g. "1.2.3.4, 10.0.0.0/8")
	TrustProxy        bool     // true => trust X-Forwarded-For headers (e.g. cloudflared)
	CORSOrigins       []string // allowed origins, "*" for any
	LoginBurst        int      // login attempts allowed at once per IP
	LoginRefillPerMin int      // login attempts regained per minute per IP
}

func Load() *Config {
	cfg := &Config{
		// Server settings
		ListenPort:      getenv("MARKSYNC_LISTEN_PORT", ":8080"),
		ShutdownTimeout: mustDuration("MARKSYNC_SHUTDOWN_TIMEOUT", 5*time.Second),
		RequestTimeout:  mustDuration("MARKSYNC_REQUEST_TIMEOUT", 30*time.Second),

		// Logging
		LogLevel:  getenv("MARKSYNC_LOG_LEVEL", "info"),
		PrettyLog: mustBool("MARKSYNC_PRETTY_LOG", true),

		// Storage
		DBPath: getenv("MARKSYNC_DB_PATH", "/data/marksync.db"),

		// Auth
		JWTSecret:     requireEnv("MARKSYNC_JWT_SECRET"),
		JWTExpire:     mustDuration("MARKSYNC_JWT_EXPIRE", 720*time.Hour),
		AdminEmail:    getenv("MARKSYNC_ADMIN_EMAIL", ""),
		AdminPassword: getenv("MARKSYNC_ADMIN_PASSWORD", ""),

		// Sync
		MaxSnapshotSize: getenvInt("MARKSYNC_MAX_SNAPSHOT_SIZE", 10000),
		MaxBodyBytes:    getenvInt64("MARKSYNC_MAX_BODY_BYTES", 16<<20),
		LockTTL:         mustDuration("MARKSYNC_LOCK_TTL", 30*time.Second),
		LockWait:        mustDuration("MARKSYNC_LOCK_WAIT", 10*time.Second),

		// Analyze
		MaxAnalyzeURLs:     getenvInt("MARKSYNC_MAX_ANALYZE_URLS", 100),
		AnalyzeConcurrency: getenvInt("MARKSYNC_ANALYZE_CONCURRENCY", 10),
		AnalyzeTimeout:     mustDuration("MARKSYNC_ANALYZE_TIMEOUT", 5*time.Minute),
		FetchTimeout:       mustDuration("MARKSYNC_FETCH_TIMEOUT", 10*time.Second),
		ClassifyTimeout:    mustDuration("MARKSYNC_CLASSIFY_TIMEOUT", 30*time.Second),
		PageCacheTTL:       mustDuration("MARKSYNC_PAGE_CACHE_TTL", 24*time.Hour),

		// Background jobs
		StatsInterval:    mustDuration("MARKSYNC_STATS_INTERVAL", 5*time.Minute),
		HomepageFile:     getenv("MARKSYNC_HOMEPAGE_FILE", ""),
		HomepageKind:     getenv("MARKSYNC_HOMEPAGE_KIND", "bookmarks"),
		HomepageUser:     getenv("MARKSYNC_HOMEPAGE_USER", ""),
		HomepageInterval: mustDuration("MARKSYNC_HOMEPAGE_INTERVAL", 24*time.Hour),

		// Redis settings
		RedisAddr:             getenv("MARKSYNC_REDIS_ADDR", ""),
		RedisUser:             getenv("MARKSYNC_REDIS_USERNAME", ""),
		RedisPasswordRequired: mustBool("MARKSYNC_REDIS_PASSWORD_REQUIRED", false),
		RedisPassword:         getenv("MARKSYNC_REDIS_PASSWORD", ""),
		RedisDB:               getenvInt("MARKSYNC_REDIS_DB", 0),
		RedisDT:               mustDuration("REDIS_DIAL_TIMEOUT", 5*time.Second),
		RedisRT:               mustDuration("REDIS_READ_TIMEOUT", 3*time.Second),
		RedisWT:               mustDuration("REDIS_WRITE_TIMEOUT", 3*time.Second),
		RedisMaxWait:          mustDuration("REDIS_MAX_WAIT", 10*time.Second),
		RedisPingTimeout:      mustDuration("REDIS_PING_TIMEOUT", 5*time.Second),
		RedisPoolSize:         getenvInt("REDIS_POOL_SIZE", 10),
		RedisConnectTimeout:   mustDuration("REDIS_CONNECT_TIMEOUT", 30*time.Second),
		RedisRetryInterval:    mustDuration("REDIS_RETRY_INTERVAL", 2*time.Second),
		RedisWarnThreshold:    getenvInt("REDIS_WARN_THRESHOLD", 3),

		// Access restrictions
		AllowedHosts:      splitAndTrim(getenv("MARKSYNC_ALLOWED_HOSTS", "")),
		AllowedCIDRS:      parseAllowedIPs(getenv("MARKSYNC_ALLOWED_CIDRS", "")),
		TrustProxy:        mustBool("MARKSYNC_TRUST_PROXY", false),
		CORSOrigins:       splitAndTrim(getenv("MARKSYNC_CORS_ORIGINS", "*")),
		LoginBurst:        getenvInt("MARKSYNC_LOGIN_BURST", 10),
		LoginRefillPerMin: getenvInt("MARKSYNC_LOGIN_REFILL_PER_MIN", 10),
	}

	if err := cfg.validate(); err != nil {
		panic("❌ FATAL: " + err.Error())
	}

	// Log config only in debug mode with redacted sensitive fields
	if cfg.LogLevel == "debug" {
		log.Printf("[DEBUG] cfg: %+v\n", cfg.Redacted())
	}

	return cfg
}

// RedisEnabled reports whether a Redis address was configured.
func (c *Config) RedisEnabled() bool {
	return c.RedisAddr != ""
}

// Redacted returns a copy safe to print.
func (c *Config) Redacted() Config {
	cp := *c
	cp.JWTSecret = "***REDACTED***"
	if cp.AdminPassword != "" {
		cp.AdminPassword = "***REDACTED***"
	}
	if cp.RedisPassword != "" {
		cp.RedisPassword = "***REDACTED***"
	}
	if cp.RedisUser != "" {
		cp.RedisUser = "***REDACTED***"
	}
	return cp
}

func (c *Config) validate() error {
	if c.RedisEnabled() && c.RedisPasswordRequired && c.RedisPassword == "" {
		return fmt.Errorf("MARKSYNC_REDIS_PASSWORD is required when MARKSYNC_REDIS_PASSWORD_REQUIRED=true")
	}
	if c.AdminEmail != "" && c.AdminPassword == "" {
		return fmt.Errorf("MARKSYNC_ADMIN_PASSWORD is required when MARKSYNC_ADMIN_EMAIL is set")
	}
	if c.HomepageFile != "" && c.HomepageUser == "" {
		return fmt.Errorf("MARKSYNC_HOMEPAGE_USER is required when MARKSYNC_HOMEPAGE_FILE is set")
	}
	if c.HomepageKind != "bookmarks" && c.HomepageKind != "services" {
		return fmt.Errorf("MARKSYNC_HOMEPAGE_KIND must be bookmarks or services, got %q", c.HomepageKind)
	}
	if c.MaxSnapshotSize < 1 {
		return fmt.Errorf("MARKSYNC_MAX_SNAPSHOT_SIZE must be > 0, got %d", c.MaxSnapshotSize)
	}
	if c.MaxAnalyzeURLs < 1 {
		return fmt.Errorf("MARKSYNC_MAX_ANALYZE_URLS must be > 0, got %d", c.MaxAnalyzeURLs)
	}
	return nil
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

func getenvInt(key string, def int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return def
}

func getenvInt64(key string, def int64) int64 {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.ParseInt(v, 10, 64); err == nil {
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

func parseAllowedIPs(allowed string) []string {
	if allowed == "" {
		return nil
	}
	ips := make([]string, 0, 4)
	for _, ip := range splitAndTrim(allowed) {
		if ip != "" {
			ips = append(ips, ip)
		}
	}
	return ips
}

func splitAndTrim(s string) []string {
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	parts := make([]string, 0, len(raw))
	for _, part := range raw {
		trimmed := strings.TrimSpace(part)
		// Remove surrounding quotes if present
		trimmed = strings.Trim(trimmed, `"'`)
		if trimmed != "" {
			parts = append(parts, trimmed)
		}
	}
	return parts
}
