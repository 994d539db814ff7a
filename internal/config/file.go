package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

// File is the optional YAML configuration file. Every value can be
// overridden by the matching environment variable.
type File struct {
	Server   ServerSection   `yaml:"server"`
	Store    StoreSection    `yaml:"store"`
	Firebase FirebaseSection `yaml:"firebase"`
	Supabase SupabaseSection `yaml:"supabase"`
	Identity IdentitySection `yaml:"identity"`
	Usage    UsageSection    `yaml:"usage"`
	MQTT     MQTTSection     `yaml:"mqtt"`
}

type ServerSection struct {
	Port           int      `yaml:"port,omitempty"`
	LogLevel       string   `yaml:"log_level,omitempty"`
	ServiceName    string   `yaml:"service_name,omitempty"`
	AllowedOrigins []string `yaml:"allowed_origins,omitempty"`
	HTTPTimeout    string   `yaml:"http_timeout,omitempty"`
}

type StoreSection struct {
	Backend       string `yaml:"backend,omitempty"` // sqlite, firebase or supabase
	SQLitePath    string `yaml:"sqlite_path,omitempty"`
	WatchInterval string `yaml:"watch_interval,omitempty"`
}

type FirebaseSection struct {
	DatabaseURL     string `yaml:"database_url,omitempty"`
	ProjectID       string `yaml:"project_id,omitempty"`
	CredentialsFile string `yaml:"credentials_file,omitempty"`
	APIKey          string `yaml:"api_key,omitempty"`
}

type SupabaseSection struct {
	URL            string `yaml:"url,omitempty"`
	AnonKey        string `yaml:"anon_key,omitempty"`
	ServiceRoleKey string `yaml:"service_role_key,omitempty"`
	Table          string `yaml:"table,omitempty"`
}

type IdentitySection struct {
	Backend    string `yaml:"backend,omitempty"` // local or firebase
	SessionTTL string `yaml:"session_ttl,omitempty"`
}

type UsageSection struct {
	Timezone     string `yaml:"timezone,omitempty"`
	PaymentDelay string `yaml:"payment_delay,omitempty"`
}

type MQTTSection struct {
	Enabled     bool   `yaml:"enabled"`
	Broker      string `yaml:"broker,omitempty"` // host:port
	Username    string `yaml:"username,omitempty"`
	Password    string `yaml:"password,omitempty"`
	ClientID    string `yaml:"client_id,omitempty"`
	TopicPrefix string `yaml:"topic_prefix,omitempty"`
}

// ReadFile parses a YAML configuration file.
func ReadFile(path string) (*File, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	var f File
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parsing config file: %w", err)
	}
	return &f, nil
}
