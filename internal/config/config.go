package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"
)

// Config holds all configuration for ycc-assist
type Config struct {
	Server   ServerConfig   `mapstructure:"server"`
	Admin    AdminConfig    `mapstructure:"admin"`
	Auth     AuthConfig     `mapstructure:"auth"`
	Database DatabaseConfig `mapstructure:"database"`
	Vector   VectorConfig   `mapstructure:"vector"`
	LLM      LLMConfig      `mapstructure:"llm"`
	Chat     ChatConfig     `mapstructure:"chat"`
	SMTP     SMTPConfig     `mapstructure:"smtp"`
	Logging  LoggingConfig  `mapstructure:"logging"`
}

// ServerConfig holds server configuration
type ServerConfig struct {
	Host string `mapstructure:"host"`
	Port int    `mapstructure:"port"`
}

// AdminConfig holds admin authentication configuration
type AdminConfig struct {
	APIKey string `mapstructure:"api_key"`
}

// AuthConfig holds JWT verification configuration for chat callers
type AuthConfig struct {
	JWTSecret string `mapstructure:"jwt_secret"`
}

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	Path string `mapstructure:"path"`
}

// VectorConfig holds vector index and knowledge corpus configuration
type VectorConfig struct {
	Dir           string `mapstructure:"dir"`
	KnowledgePath string `mapstructure:"knowledge_path"`
	TopK          int    `mapstructure:"top_k"`
	ChunkSize     int    `mapstructure:"chunk_size"`
}

// LLMConfig holds model provider configuration (OpenAI-compatible)
type LLMConfig struct {
	BaseURL        string `mapstructure:"base_url"`
	APIKey         string `mapstructure:"api_key"`
	ChatModel      string `mapstructure:"chat_model"`
	EmbeddingModel string `mapstructure:"embedding_model"`
}

// ChatConfig holds orchestration configuration
type ChatConfig struct {
	HistoryLimit  int    `mapstructure:"history_limit"`
	RetentionDays int    `mapstructure:"retention_days"`
	SupportEmail  string `mapstructure:"support_email"`
}

// SMTPConfig holds escalation mail delivery configuration
type SMTPConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
}

// LoggingConfig holds log output configuration
type LoggingConfig struct {
	Dir string `mapstructure:"dir"`
}

// Load loads configuration from file and environment
func Load(configPath string) (*Config, error) {
	v := viper.New()

	setDefaults(v)

	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.SetConfigName("config")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		v.AddConfigPath("./config")
	}

	v.SetEnvPrefix("YCC")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config: %w", err)
		}
		// Config file not found, use defaults
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)

	v.SetDefault("admin.api_key", "")
	v.SetDefault("auth.jwt_secret", "")

	v.SetDefault("database.path", "./data/ycc-assist.db")

	v.SetDefault("vector.dir", "./data/vectorstore")
	v.SetDefault("vector.knowledge_path", "./data/knowledge.md")
	v.SetDefault("vector.top_k", 3)
	v.SetDefault("vector.chunk_size", 1000)

	v.SetDefault("llm.base_url", "https://api.openai.com/v1")
	v.SetDefault("llm.api_key", "")
	v.SetDefault("llm.chat_model", "gpt-4o-mini")
	v.SetDefault("llm.embedding_model", "text-embedding-3-small")

	v.SetDefault("chat.history_limit", 10)
	v.SetDefault("chat.retention_days", 30)
	v.SetDefault("chat.support_email", "support@yachtcrewcenter.com")

	v.SetDefault("smtp.host", "")
	v.SetDefault("smtp.port", 587)
	v.SetDefault("smtp.username", "")
	v.SetDefault("smtp.password", "")
	v.SetDefault("smtp.from", "noreply@yachtcrewcenter.com")

	v.SetDefault("logging.dir", "./logs")
}

// Address returns the server address
func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}

// Retention returns the history retention window as a duration.
func (c *Config) Retention() time.Duration {
	return time.Duration(c.Chat.RetentionDays) * 24 * time.Hour
}
