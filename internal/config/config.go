package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// Store backends.
const (
	BackendSQLite   = "sqlite"
	BackendFirebase = "firebase"
	BackendSupabase = "supabase"
)

// Identity backends.
const (
	IdentityLocal    = "local"
	IdentityFirebase = "firebase"
)

// Config holds all application configuration.
// Values come from environment variables, falling back to the optional
// YAML file (CONFIG_FILE) and then to built-in defaults.
type Config struct {
	// Server
	Port           int
	LogLevel       string
	ServiceName    string
	AllowedOrigins []string

	// HTTP client
	HTTPTimeout time.Duration

	// Resilience. MaxRetries defaults to 0: store and identity calls are not
	// retried unless an operator opts in.
	MaxRetries     int
	InitialBackoff time.Duration
	MaxConcurrency int

	// Cache
	CacheTTL time.Duration

	// Observability
	OTLPEndpoint string

	// Store
	StoreBackend  string
	SQLitePath    string
	WatchInterval time.Duration

	// Firebase (Realtime Database + Identity Toolkit)
	FirebaseDatabaseURL     string
	FirebaseProjectID       string
	FirebaseCredentialsFile string
	FirebaseAPIKey          string

	// Supabase
	SupabaseURL        string
	SupabaseAnonKey    string
	SupabaseServiceKey string
	SupabaseTable      string

	// Identity / sessions
	IdentityBackend string
	JWTSecret       string
	JWTAccessTTL    time.Duration

	// Usage computation
	Timezone     string
	PaymentDelay time.Duration

	// MQTT alert publishing
	MQTTEnabled     bool
	MQTTBroker      string
	MQTTUsername    string
	MQTTPassword    string
	MQTTClientID    string
	MQTTTopicPrefix string

	// Dev mode
	DevTools bool // DEV_TOOLS=true exposes /v1/dev seeding routes
}

// Load reads configuration from environment variables with defaults.
func Load() *Config {
	return fromEnv(&File{})
}

// LoadWithFile reads the YAML file at path and layers environment variables
// on top of it. An empty path behaves like Load.
func LoadWithFile(path string) (*Config, error) {
	if path == "" {
		return Load(), nil
	}
	f, err := ReadFile(path)
	if err != nil {
		return nil, err
	}
	return fromEnv(f), nil
}

func fromEnv(f *File) *Config {
	return &Config{
		Port:           getEnvInt("PORT", orInt(f.Server.Port, 8080)),
		LogLevel:       getEnv("LOG_LEVEL", or(f.Server.LogLevel, "info")),
		ServiceName:    getEnv("SERVICE_NAME", or(f.Server.ServiceName, "electritrack-bfa")),
		AllowedOrigins: getEnvList("ALLOWED_ORIGINS", orList(f.Server.AllowedOrigins, []string{"*"})),

		HTTPTimeout: getEnvDuration("HTTP_TIMEOUT", orDuration(f.Server.HTTPTimeout, 10*time.Second)),

		MaxRetries:     getEnvInt("MAX_RETRIES", 0),
		InitialBackoff: getEnvDuration("INITIAL_BACKOFF", 100*time.Millisecond),
		MaxConcurrency: getEnvInt("MAX_CONCURRENCY", 50),

		CacheTTL: getEnvDuration("CACHE_TTL", 5*time.Minute),

		OTLPEndpoint: getEnv("OTEL_EXPORTER_OTLP_ENDPOINT", ""),

		StoreBackend:  getEnv("STORE_BACKEND", or(f.Store.Backend, BackendSQLite)),
		SQLitePath:    getEnv("SQLITE_PATH", or(f.Store.SQLitePath, "electritrack.db")),
		WatchInterval: getEnvDuration("WATCH_INTERVAL", orDuration(f.Store.WatchInterval, 2*time.Second)),

		FirebaseDatabaseURL:     getEnv("FIREBASE_DATABASE_URL", f.Firebase.DatabaseURL),
		FirebaseProjectID:       getEnv("FIREBASE_PROJECT_ID", f.Firebase.ProjectID),
		FirebaseCredentialsFile: getEnv("GOOGLE_APPLICATION_CREDENTIALS", f.Firebase.CredentialsFile),
		FirebaseAPIKey:          getEnv("FIREBASE_API_KEY", f.Firebase.APIKey),

		SupabaseURL:        getEnv("SUPABASE_URL", f.Supabase.URL),
		SupabaseAnonKey:    getEnv("SUPABASE_ANON_KEY", f.Supabase.AnonKey),
		SupabaseServiceKey: getEnv("SUPABASE_SERVICE_ROLE_KEY", f.Supabase.ServiceRoleKey),
		SupabaseTable:      getEnv("SUPABASE_TABLE", or(f.Supabase.Table, "kv_nodes")),

		IdentityBackend: getEnv("IDENTITY_BACKEND", or(f.Identity.Backend, IdentityLocal)),
		JWTSecret:       getEnv("JWT_SECRET", "electritrack-dev-secret-change-me"),
		JWTAccessTTL:    getEnvDuration("JWT_ACCESS_TTL", orDuration(f.Identity.SessionTTL, 12*time.Hour)),

		Timezone:     getEnv("TIMEZONE", or(f.Usage.Timezone, "UTC")),
		PaymentDelay: getEnvDuration("PAYMENT_DELAY", orDuration(f.Usage.PaymentDelay, 0)),

		MQTTEnabled:     getEnvBool("MQTT_ENABLED", f.MQTT.Enabled),
		MQTTBroker:      getEnv("MQTT_BROKER", f.MQTT.Broker),
		MQTTUsername:    getEnv("MQTT_USERNAME", f.MQTT.Username),
		MQTTPassword:    getEnv("MQTT_PASSWORD", f.MQTT.Password),
		MQTTClientID:    getEnv("MQTT_CLIENT_ID", or(f.MQTT.ClientID, "electritrack-bfa")),
		MQTTTopicPrefix: getEnv("MQTT_TOPIC_PREFIX", or(f.MQTT.TopicPrefix, "electritrack")),

		DevTools: getEnvBool("DEV_TOOLS", false),
	}
}

// Location resolves Timezone, falling back to UTC for unknown names.
func (c *Config) Location() *time.Location {
	loc, err := time.LoadLocation(c.Timezone)
	if err != nil {
		return time.UTC
	}
	return loc
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if i, err := strconv.Atoi(v); err == nil {
			return i
		}
	}
	return fallback
}

func getEnvBool(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			return b
		}
	}
	return fallback
}

func getEnvDuration(key string, fallback time.Duration) time.Duration {
	if v := os.Getenv(key); v != "" {
		if d, err := time.ParseDuration(v); err == nil {
			return d
		}
	}
	return fallback
}

func getEnvList(key string, fallback []string) []string {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	var out []string
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			out = append(out, s)
		}
	}
	return out
}

func or(v, fallback string) string {
	if v != "" {
		return v
	}
	return fallback
}

func orInt(v, fallback int) int {
	if v != 0 {
		return v
	}
	return fallback
}

func orList(v, fallback []string) []string {
	if len(v) > 0 {
		return v
	}
	return fallback
}

func orDuration(v string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(v); err == nil {
		return d
	}
	return fallback
}
