package domain

// Config holds the complete Kestrel configuration.
type Config struct {
	// Server settings
	Server ServerConfig `json:"server"`

	// Tier determines backing-store selection
	Tier Tier `json:"tier"`

	// Component configurations
	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`
	Models     ModelConfig      `json:"models"`
	Chat       ChatConfig       `json:"chat"`
	GeoIP      GeoIPConfig      `json:"geoip"`
	Auth       AuthConfig       `json:"auth"`

	// Observability
	Logging LoggingConfig `json:"logging"`
	Tracing TracingConfig `json:"tracing"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// ModelConfig holds fraud-model training and artifact settings.
type ModelConfig struct {
	// ArtifactDir is the local directory for serialized model artifacts.
	ArtifactDir string `json:"artifactDir"`

	// TrainingSamples is the synthetic dataset size used when no
	// artifacts exist at startup.
	TrainingSamples int `json:"trainingSamples"`

	// Trees is the ensemble size shared by both models.
	Trees int `json:"trees"`

	// Seed makes the synthetic bootstrap reproducible across restarts.
	Seed int64 `json:"seed"`
}

// ChatConfig holds chat-generation settings.
type ChatConfig struct {
	// OpenAIKey enables the hosted LLM backend. Empty key falls back to
	// the canned responder (useful for tests and offline development).
	OpenAIKey   string  `json:"-"`
	Model       string  `json:"model"`
	MaxTokens   int     `json:"maxTokens"`
	Temperature float32 `json:"temperature"`
}

// GeoIPConfig holds optional MaxMind enrichment settings.
type GeoIPConfig struct {
	// CityDBPath points at a GeoLite2-City mmdb. Empty disables enrichment.
	CityDBPath string `json:"cityDbPath"`
}

// AuthConfig holds bearer-token verification settings.
type AuthConfig struct {
	// Secret signs and verifies HMAC tokens. Empty secret disables
	// verification (development mode).
	Secret string `json:"-"`

	// AdminToken guards the model-management endpoints.
	AdminToken string `json:"-"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// TracingConfig holds OpenTelemetry settings.
type TracingConfig struct {
	Enabled     bool   `json:"enabled"`
	ServiceName string `json:"serviceName"`
}

// Tier represents the deployment tier.
type Tier string

const (
	// TierCommunity runs on SQLite + in-memory cache + channel bus.
	TierCommunity Tier = "community"

	// TierPro runs on PostgreSQL + Redis + NATS.
	TierPro Tier = "pro"
)

// DefaultConfig returns a default configuration for Community tier.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8001,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Tier: TierCommunity,
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./kestrel.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Models: ModelConfig{
			ArtifactDir:     "./models",
			TrainingSamples: 10000,
			Trees:           100,
			Seed:            42,
		},
		Chat: ChatConfig{
			Model:       "gpt-3.5-turbo",
			MaxTokens:   500,
			Temperature: 0.7,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
		Tracing: TracingConfig{
			Enabled:     false,
			ServiceName: "kestrel",
		},
	}
}

// ProConfig returns a configuration for Pro tier.
func ProConfig() *Config {
	cfg := DefaultConfig()
	cfg.Tier = TierPro
	cfg.Repository = RepositoryConfig{
		Driver:       "postgres",
		PostgresHost: "localhost",
		PostgresPort: 5432,
		PostgresDB:   "kestrel",
	}
	cfg.Cache = CacheConfig{
		Type:           "redis",
		RedisAddr:      "localhost:6379",
		EnableTwoPhase: true,
		LocalMaxSize:   1000,
	}
	cfg.EventBus = EventBusConfig{
		Type:              "nats",
		NATSUrl:           "nats://localhost:4222",
		NATSMaxReconnects: 10,
		NATSReconnectWait: 5,
	}
	cfg.Tracing.Enabled = true
	return cfg
}
