package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

const (
	// DefaultConfigPath is used when --config is not provided.
	DefaultConfigPath = "config.yml"

	defaultPort        = 3000
	defaultEnv         = "development"
	defaultDBHost      = "127.0.0.1"
	defaultDBPort      = 3306
	defaultDBUser      = "root"
	defaultDBPassword  = "password"
	defaultDBName      = "paperchain"
	defaultDBCharset   = "utf8mb4"
	defaultDBLoc       = "Local"
	defaultRedisHost   = "localhost"
	defaultRedisPort   = 6379
	defaultChunkSize   = 12000
	defaultMaxTokens   = 1000
	defaultAITimeout   = 120
	defaultOpenAIModel = "gpt-4o"

	StoreMemory = "memory"
	StoreMySQL  = "mysql"
)

// AppConfig holds runtime startup configuration loaded from YAML.
type AppConfig struct {
	Port           int                `yaml:"port"`
	Env            string             `yaml:"env"` // "development" | "production"
	AllowedOrigins []string           `yaml:"allowed_origins"`
	Store          string             `yaml:"store"` // "memory" | "mysql"
	Database       DatabaseConfig     `yaml:"database"`
	Redis          RedisConfig        `yaml:"redis"`
	IPFS           IPFSConfig         `yaml:"ipfs"`
	AI             AIConfig           `yaml:"ai"`
	Paths          RuntimePathsConfig `yaml:"paths"`
}

type DatabaseConfig struct {
	DSN       string            `yaml:"dsn"`
	Host      string            `yaml:"host"`
	Port      int               `yaml:"port"`
	User      string            `yaml:"user"`
	Password  string            `yaml:"password"`
	Name      string            `yaml:"name"`
	Charset   string            `yaml:"charset"`
	ParseTime bool              `yaml:"parse_time"`
	Loc       string            `yaml:"loc"`
	Params    map[string]string `yaml:"params"`
}

// RedisConfig is optional; when disabled background task states are not mirrored.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	URL      string `yaml:"url"`
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	Username string `yaml:"username"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
	TLS      bool   `yaml:"tls"`
}

type IPFSConfig struct {
	Provider string        `yaml:"provider"` // "pinata" | "s3"
	Pinata   PinataOptions `yaml:"pinata"`
	S3       S3Options     `yaml:"s3"`
}

type PinataOptions struct {
	APIURL         string `yaml:"api_url"`
	GatewayURL     string `yaml:"gateway_url"`
	JWT            string `yaml:"jwt"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

type S3Options struct {
	Endpoint        string `yaml:"endpoint"`
	AccessKeyID     string `yaml:"access_key_id"`
	SecretAccessKey string `yaml:"secret_access_key"`
	Bucket          string `yaml:"bucket"`
	Region          string `yaml:"region"`
	Prefix          string `yaml:"prefix"`
	PathStyleAccess bool   `yaml:"path_style_access"`
}

type AIConfig struct {
	Providers       []AIProvider `yaml:"providers"`
	ProviderID      string       `yaml:"provider_id"`
	Model           string       `yaml:"model"`
	ChunkSize       int          `yaml:"chunk_size"`
	MaxOutputTokens int          `yaml:"max_output_tokens"`
	TimeoutSeconds  int          `yaml:"timeout_seconds"`
}

type AIProvider struct {
	ID           string `yaml:"id"`
	Name         string `yaml:"name"`
	Type         string `yaml:"type"` // OpenAI | OpenAI-Compatible | Anthropic
	APIKey       string `yaml:"api_key"`
	Endpoint     string `yaml:"endpoint,omitempty"`
	DefaultModel string `yaml:"default_model"`
	Enabled      bool   `yaml:"enabled"`
}

type RuntimePathsConfig struct {
	Logs string `yaml:"logs"`
}

// Load reads the YAML file at configPath, then applies environment overrides.
// A .env file next to the config file is loaded first when present.
func Load(configPath string) (*AppConfig, error) {
	path := strings.TrimSpace(configPath)
	if path == "" {
		path = DefaultConfigPath
	}

	content, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file %q: %w", path, err)
	}

	cfg := defaultAppConfig()
	decoder := yaml.NewDecoder(bytes.NewReader(content))
	decoder.KnownFields(true)
	if err := decoder.Decode(&cfg); err != nil && !errors.Is(err, io.EOF) {
		return nil, fmt.Errorf("parse config file %q: %w", path, err)
	}

	if err := loadDotEnv(path); err != nil {
		return nil, err
	}
	applyEnv(&cfg)
	normalize(&cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("%w in %q", err, path)
	}
	return &cfg, nil
}

// Default returns the configuration used when no file is provided.
func Default() *AppConfig {
	cfg := defaultAppConfig()
	applyEnv(&cfg)
	normalize(&cfg)
	return &cfg
}

// FromEnv builds the configuration from defaults, a .env file in the working
// directory and the process environment. It is used when no config file exists.
func FromEnv() (*AppConfig, error) {
	if err := loadDotEnv(DefaultConfigPath); err != nil {
		return nil, err
	}
	cfg := Default()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func defaultAppConfig() AppConfig {
	return AppConfig{
		Port:  defaultPort,
		Env:   defaultEnv,
		Store: StoreMemory,
		Database: DatabaseConfig{
			Host:      defaultDBHost,
			Port:      defaultDBPort,
			User:      defaultDBUser,
			Password:  defaultDBPassword,
			Name:      defaultDBName,
			Charset:   defaultDBCharset,
			ParseTime: true,
			Loc:       defaultDBLoc,
		},
		Redis: RedisConfig{
			Host: defaultRedisHost,
			Port: defaultRedisPort,
		},
		IPFS: IPFSConfig{Provider: "pinata"},
		AI: AIConfig{
			ChunkSize:       defaultChunkSize,
			MaxOutputTokens: defaultMaxTokens,
			TimeoutSeconds:  defaultAITimeout,
		},
	}
}

func normalize(cfg *AppConfig) {
	cfg.Env = strings.TrimSpace(cfg.Env)
	cfg.Store = strings.ToLower(strings.TrimSpace(cfg.Store))
	if cfg.Store == "" {
		cfg.Store = StoreMemory
	}
	cfg.IPFS.Provider = strings.ToLower(strings.TrimSpace(cfg.IPFS.Provider))
	if cfg.AI.ChunkSize <= 0 {
		cfg.AI.ChunkSize = defaultChunkSize
	}
	if cfg.AI.MaxOutputTokens <= 0 {
		cfg.AI.MaxOutputTokens = defaultMaxTokens
	}
	if cfg.AI.TimeoutSeconds <= 0 {
		cfg.AI.TimeoutSeconds = defaultAITimeout
	}

	origins := make([]string, 0, len(cfg.AllowedOrigins))
	for _, o := range cfg.AllowedOrigins {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	cfg.AllowedOrigins = origins
}

// Validate reports the first invalid setting.
func (c *AppConfig) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d, expected 1-65535", c.Port)
	}
	switch c.Store {
	case StoreMemory:
	case StoreMySQL:
		if c.Database.DSN == "" && (c.Database.Port < 1 || c.Database.Port > 65535) {
			return fmt.Errorf("invalid database.port %d, expected 1-65535", c.Database.Port)
		}
	default:
		return fmt.Errorf("invalid store %q, expected memory or mysql", c.Store)
	}
	if c.Redis.Enabled && c.Redis.URL == "" && (c.Redis.Port < 1 || c.Redis.Port > 65535) {
		return fmt.Errorf("invalid redis.port %d, expected 1-65535", c.Redis.Port)
	}
	if c.Redis.DB < 0 {
		return fmt.Errorf("invalid redis.db %d, expected >= 0", c.Redis.DB)
	}
	switch c.IPFS.Provider {
	case "", "pinata", "s3":
	default:
		return fmt.Errorf("invalid ipfs.provider %q, expected pinata or s3", c.IPFS.Provider)
	}
	return nil
}

// IsProduction reports whether the service runs in production mode.
func (c *AppConfig) IsProduction() bool {
	return strings.EqualFold(c.Env, "production")
}
