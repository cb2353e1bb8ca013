package config

import (
	"fmt"
	"log"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Store drivers.
const (
	StorePostgres = "postgres"
	StoreMemory   = "memory"
)

type Tables struct {
	Schema       string
	Orders       string
	Products     string
	OrderProduct string
	Invoices     string
	Transactions string
}

// Qualified returns schema.table, or table alone when no schema is set.
func (t Tables) Qualified(table string) string {
	if t.Schema == "" {
		return table
	}
	return t.Schema + "." + table
}

type Postgres struct {
	Host     string
	Port     string
	DB       string
	User     string
	Password string
	SSLMode  string
	MaxConns int32
	// LogQueries routes every pgx query through the zap tracer at debug level.
	LogQueries bool
}

type Cache struct {
	Cap int
	TTL time.Duration
	// WarmOrders is how many recent orders are loaded into the cache on start.
	WarmOrders int
}

type Kafka struct {
	Enabled     bool
	Brokers     []string
	Topic       string
	Group       string
	EnsureTopic bool
	Partitions  int
}

type Breaker struct {
	Threshold   uint32
	OpenTimeout time.Duration
	MaxHalfOpen uint32
}

type Retry struct {
	Attempts     int
	Base         time.Duration
	Max          time.Duration
	JitterFactor float64
}

type Config struct {
	AppEnv          string
	LogLevel        string
	HTTPAddr        string
	ShutdownTimeout time.Duration
	Store           string

	Cache   Cache
	Pg      Postgres
	Tables  Tables
	Kafka   Kafka
	Breaker Breaker
	Retry   Retry
}

// Load reads env/.env and the environment and fatals on invalid config.
func Load() Config {
	cfg, err := load()
	if err != nil {
		log.Fatalf("config load error: %v", err)
	}
	return cfg
}

func load() (Config, error) {
	_ = godotenv.Load("env/.env")

	cfg := Config{
		AppEnv:          envDefault("APP_ENV", "local"),
		LogLevel:        envDefault("LOG_LEVEL", "info"),
		HTTPAddr:        envDefault("HTTP_ADDR", ":8081"),
		ShutdownTimeout: envDuration("SHUTDOWN_TIMEOUT", 5*time.Second),
		Store:           strings.ToLower(envDefault("STORE_DRIVER", StorePostgres)),

		Cache: Cache{
			Cap:        envInt("CACHE_CAP", 10000),
			TTL:        envDuration("CACHE_TTL", 1440*time.Minute),
			WarmOrders: envInt("CACHE_WARM_ORDERS", 0),
		},

		Pg: Postgres{
			Host:       strings.TrimSpace(os.Getenv("PG_HOST")),
			Port:       envDefault("PG_PORT", "5432"),
			DB:         strings.TrimSpace(os.Getenv("PG_DB")),
			User:       strings.TrimSpace(os.Getenv("PG_USER")),
			Password:   strings.TrimSpace(os.Getenv("PG_PASSWORD")),
			SSLMode:    envDefault("PG_SSLMODE", "disable"),
			MaxConns:   int32(envInt("PG_MAX_CONNS", 10)),
			LogQueries: envBool("PG_LOG_QUERIES", false),
		},

		Tables: Tables{
			Schema:       strings.TrimSpace(os.Getenv("DB_SCHEMA")),
			Orders:       envDefault("TBL_ORDERS", "orders"),
			Products:     envDefault("TBL_PRODUCTS", "products"),
			OrderProduct: envDefault("TBL_ORDER_PRODUCT", "order_product"),
			Invoices:     envDefault("TBL_INVOICES", "invoices"),
			Transactions: envDefault("TBL_TRANSACTIONS", "transactions"),
		},

		Kafka: Kafka{
			Enabled:     envBool("KAFKA_ENABLED", false),
			Brokers:     splitCSV(os.Getenv("KAFKA_BROKERS")),
			Topic:       envDefault("KAFKA_TOPIC", "transactions"),
			Group:       envDefault("KAFKA_GROUP", "order-desk"),
			EnsureTopic: envBool("KAFKA_ENSURE_TOPIC", false),
			Partitions:  envInt("KAFKA_PARTITIONS", 3),
		},

		Breaker: Breaker{
			Threshold:   envUint32("BREAKER_THRESHOLD", 5),
			OpenTimeout: envDuration("BREAKER_OPENTIMEOUT", 10*time.Second),
			MaxHalfOpen: envUint32("BREAKER_MAXHALFOPEN", 3),
		},

		Retry: Retry{
			Attempts:     envInt("RETRY_ATTEMPTS", 5),
			Base:         envDuration("RETRY_BASE", 100*time.Millisecond),
			Max:          envDuration("RETRY_MAX", 5*time.Second),
			JitterFactor: envFloat64("RETRY_JITTERFACTOR", 0.3),
		},
	}

	if err := cfg.validate(); err != nil {
		return Config{}, err
	}
	cfg.normalize()
	return cfg, nil
}

// validate checks only what the selected store and the feed need.
func (c Config) validate() error {
	switch c.Store {
	case StorePostgres, StoreMemory:
	default:
		return fmt.Errorf("unknown STORE_DRIVER %q, want %s or %s", c.Store, StorePostgres, StoreMemory)
	}

	var missing []string
	require := func(key, value string) {
		if strings.TrimSpace(value) == "" {
			missing = append(missing, key)
		}
	}
	if c.Store == StorePostgres {
		require("PG_HOST", c.Pg.Host)
		require("PG_DB", c.Pg.DB)
		require("PG_USER", c.Pg.User)
		require("PG_PASSWORD", c.Pg.Password)
	}
	if c.Kafka.Enabled {
		require("KAFKA_BROKERS", strings.Join(c.Kafka.Brokers, ","))
		require("KAFKA_TOPIC", c.Kafka.Topic)
		require("KAFKA_GROUP", c.Kafka.Group)
	}
	if len(missing) > 0 {
		return &missingEnvError{Keys: missing}
	}
	return nil
}

func (c *Config) normalize() {
	if c.Cache.Cap <= 0 {
		log.Printf("CACHE_CAP is %d, adjusting to 1", c.Cache.Cap)
		c.Cache.Cap = 1
	}
	if c.Cache.TTL <= 0 {
		log.Printf("CACHE_TTL is %v, adjusting to 1440m", c.Cache.TTL)
		c.Cache.TTL = 1440 * time.Minute
	}
	if c.Retry.Attempts < 1 {
		log.Printf("RETRY_ATTEMPTS is %d, adjusting to 1", c.Retry.Attempts)
		c.Retry.Attempts = 1
	}
	if c.Retry.Base <= 0 {
		log.Printf("RETRY_BASE is %v, adjusting to 100ms", c.Retry.Base)
		c.Retry.Base = 100 * time.Millisecond
	}
	if c.Retry.Max < c.Retry.Base {
		log.Printf("RETRY_MAX (%v) < RETRY_BASE (%v), adjusting max to base", c.Retry.Max, c.Retry.Base)
		c.Retry.Max = c.Retry.Base
	}
}

type missingEnvError struct{ Keys []string }

func (e *missingEnvError) Error() string {
	return "missing required envs: " + strings.Join(e.Keys, ", ")
}

// DSN builds a Postgres URL with user, password and query escaped.
func (c Config) DSN() string {
	u := &url.URL{
		Scheme: "postgres",
		User:   url.UserPassword(c.Pg.User, c.Pg.Password),
		Host:   net.JoinHostPort(c.Pg.Host, c.Pg.Port),
		Path:   "/" + c.Pg.DB,
	}
	q := url.Values{}
	if c.Pg.SSLMode != "" {
		q.Set("sslmode", c.Pg.SSLMode)
	}
	if c.Pg.MaxConns > 0 {
		q.Set("pool_max_conns", strconv.Itoa(int(c.Pg.MaxConns)))
	}
	u.RawQuery = q.Encode()
	return u.String()
}

func envDefault(k, def string) string {
	if v := strings.TrimSpace(os.Getenv(k)); v != "" {
		return v
	}
	return def
}

func envInt(k string, def int) int {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		log.Printf("invalid %s=%q, using default %d: %v", k, v, def, err)
		return def
	}
	return n
}

func envBool(k string, def bool) bool {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	b, err := strconv.ParseBool(v)
	if err != nil {
		log.Printf("invalid %s=%q, using default %t: %v", k, v, def, err)
		return def
	}
	return b
}

func envUint32(k string, def uint32) uint32 {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	u, err := strconv.ParseUint(v, 10, 32)
	if err != nil {
		log.Printf("invalid %s=%q, using default %d: %v", k, v, def, err)
		return def
	}
	return uint32(u)
}

func envFloat64(k string, def float64) float64 {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	f, err := strconv.ParseFloat(v, 64)
	if err != nil {
		log.Printf("invalid %s=%q, using default %.3f: %v", k, v, def, err)
		return def
	}
	return f
}

// envDuration accepts Go duration strings ("1.5s", "2m") or plain
// milliseconds ("1500").
func envDuration(k string, def time.Duration) time.Duration {
	v := strings.TrimSpace(os.Getenv(k))
	if v == "" {
		return def
	}
	if ms, err := strconv.Atoi(v); err == nil {
		return time.Duration(ms) * time.Millisecond
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		log.Printf("invalid %s=%q, using default %v: %v", k, v, def, err)
		return def
	}
	return d
}

func splitCSV(s string) []string {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil
	}
	raw := strings.Split(s, ",")
	out := make([]string, 0, len(raw))
	for _, p := range raw {
		if t := strings.TrimSpace(p); t != "" {
			out = append(out, t)
		}
	}
	return out
}
