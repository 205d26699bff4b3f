// Package config 负责加载和管理应用程序的配置。
package config

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/spf13/viper"

	"docchat-go/internal/apperr"
)

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Log           LogConfig           `mapstructure:"log"`
	Session       SessionConfig       `mapstructure:"session"`
	Pipeline      PipelineConfig      `mapstructure:"pipeline"`
	Document      DocumentConfig      `mapstructure:"document"`
	Chat          ChatConfig          `mapstructure:"chat"`
	Extractor     ExtractorConfig     `mapstructure:"extractor"`
	Tika          TikaConfig          `mapstructure:"tika"`
	Index         IndexConfig         `mapstructure:"index"`
	Embedding     EmbeddingConfig     `mapstructure:"embedding"`
	LLM           LLMConfig           `mapstructure:"llm"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	Database      DatabaseConfig      `mapstructure:"database"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port            string        `mapstructure:"port"`
	Mode            string        `mapstructure:"mode"`
	MaxUploadMB     int64         `mapstructure:"max_upload_mb"`
	AllowedOrigins  []string      `mapstructure:"allowed_origins"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// SessionConfig 控制会话存储的容量、过期与会话令牌。
type SessionConfig struct {
	IdleTTL       time.Duration `mapstructure:"idle_ttl"`
	MaxSessions   int           `mapstructure:"max_sessions"`
	SweepInterval time.Duration `mapstructure:"sweep_interval"`
	Secret        string        `mapstructure:"secret"`
	TokenTTL      time.Duration `mapstructure:"token_ttl"`
}

// PipelineConfig 存储分块与分类参数。
type PipelineConfig struct {
	ChunkSize       int `mapstructure:"chunk_size"`
	ChunkOverlap    int `mapstructure:"chunk_overlap"`
	ResumeThreshold int `mapstructure:"resume_threshold"`
}

// DocumentConfig 决定 /upload-document 的行为："extract" 直接返回文本，"index" 建立索引。
type DocumentConfig struct {
	Mode string `mapstructure:"mode"`
}

type ChatConfig struct {
	TopK         int `mapstructure:"top_k"`
	HistoryLimit int `mapstructure:"history_limit"`
}

// ExtractorConfig 选择文本抽取后端："pdf"（内置）或 "tika"。
type ExtractorConfig struct {
	Backend string `mapstructure:"backend"`
}

// TikaConfig 存储 Tika 服务器相关的配置。
type TikaConfig struct {
	ServerURL string `mapstructure:"server_url"`
}

// IndexConfig 选择向量索引后端："memory" 或 "elasticsearch"。
type IndexConfig struct {
	Backend string `mapstructure:"backend"`
}

// EmbeddingConfig 存储 Embedding 模型相关的配置。
type EmbeddingConfig struct {
	Provider           string        `mapstructure:"provider"`
	APIKey             string        `mapstructure:"api_key"`
	BaseURL            string        `mapstructure:"base_url"`
	Model              string        `mapstructure:"model"`
	Dimensions         int           `mapstructure:"dimensions"`
	Timeout            time.Duration `mapstructure:"timeout"`
	MaxRetries         int           `mapstructure:"max_retries"`
	RateLimitPerSecond float64       `mapstructure:"rate_limit_per_second"`
	RateLimitBurst     int           `mapstructure:"rate_limit_burst"`
}

// LLMConfig 存储大语言模型相关的配置。
type LLMConfig struct {
	Provider   string              `mapstructure:"provider"`
	APIKey     string              `mapstructure:"api_key"`
	BaseURL    string              `mapstructure:"base_url"`
	Model      string              `mapstructure:"model"`
	Timeout    time.Duration       `mapstructure:"timeout"`
	MaxRetries int                 `mapstructure:"max_retries"`
	Generation LLMGenerationConfig `mapstructure:"generation"`
	Prompt     LLMPromptConfig     `mapstructure:"prompt"`
}

// LLMGenerationConfig 配置生成相关参数。
type LLMGenerationConfig struct {
	Temperature float64 `mapstructure:"temperature"`
	TopP        float64 `mapstructure:"top_p"`
	MaxTokens   int     `mapstructure:"max_tokens"`
}

// LLMPromptConfig 配置系统提示与上下文包裹格式。
type LLMPromptConfig struct {
	Rules        string `mapstructure:"rules"`
	RefStart     string `mapstructure:"ref_start"`
	RefEnd       string `mapstructure:"ref_end"`
	NoResultText string `mapstructure:"no_result_text"`
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// DatabaseConfig 存储所有数据库连接的配置。为空表示使用内存实现。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MinIOConfig 存储 MinIO 对象存储的配置。Endpoint 为空时不归档上传文件。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
}

// KafkaConfig 存储 Kafka 相关的配置。Brokers 为空时不发布事件。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
}

const defaultRules = `你是一个文档问答助手。请严格遵守以下规则：
1. 优先依据 <<REF>> 与 <<END>> 之间的参考内容作答；
2. 参考内容不足以回答时，明确说明，不要编造；
3. 使用与用户提问相同的语言回答。`

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("server.max_upload_mb", 20)
	v.SetDefault("server.allowed_origins", []string{"http://localhost:3000"})
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.output_path", "")

	v.SetDefault("session.idle_ttl", "2h")
	v.SetDefault("session.max_sessions", 1000)
	v.SetDefault("session.sweep_interval", "5m")
	v.SetDefault("session.secret", "")
	v.SetDefault("session.token_ttl", "24h")

	v.SetDefault("pipeline.chunk_size", 1000)
	v.SetDefault("pipeline.chunk_overlap", 200)
	v.SetDefault("pipeline.resume_threshold", 3)

	v.SetDefault("document.mode", "extract")

	v.SetDefault("chat.top_k", 4)
	v.SetDefault("chat.history_limit", 20)

	v.SetDefault("extractor.backend", "pdf")
	v.SetDefault("tika.server_url", "http://localhost:9998")
	v.SetDefault("index.backend", "memory")

	v.SetDefault("embedding.provider", "gemini")
	v.SetDefault("embedding.api_key", "")
	v.SetDefault("embedding.base_url", "")
	v.SetDefault("embedding.model", "embedding-001")
	v.SetDefault("embedding.dimensions", 0)
	v.SetDefault("embedding.timeout", "30s")
	v.SetDefault("embedding.max_retries", 3)
	v.SetDefault("embedding.rate_limit_per_second", 10)
	v.SetDefault("embedding.rate_limit_burst", 5)

	v.SetDefault("llm.provider", "gemini")
	v.SetDefault("llm.base_url", "")
	v.SetDefault("llm.model", "gemini-1.5-flash")
	v.SetDefault("llm.timeout", "30s")
	v.SetDefault("llm.max_retries", 3)
	v.SetDefault("llm.generation.temperature", 0.7)
	v.SetDefault("llm.generation.top_p", 0.9)
	v.SetDefault("llm.generation.max_tokens", 2048)
	v.SetDefault("llm.prompt.rules", defaultRules)
	v.SetDefault("llm.prompt.ref_start", "<<REF>>")
	v.SetDefault("llm.prompt.ref_end", "<<END>>")
	v.SetDefault("llm.prompt.no_result_text", "（本轮没有检索到相关内容）")

	v.SetDefault("elasticsearch.addresses", "http://localhost:9200")
	v.SetDefault("elasticsearch.username", "")
	v.SetDefault("elasticsearch.password", "")
	v.SetDefault("elasticsearch.index_name", "docchat_chunks")

	v.SetDefault("database.mysql.dsn", "")
	v.SetDefault("database.redis.addr", "")
	v.SetDefault("database.redis.password", "")
	v.SetDefault("database.redis.db", 0)

	v.SetDefault("minio.endpoint", "")
	v.SetDefault("minio.access_key_id", "")
	v.SetDefault("minio.secret_access_key", "")
	v.SetDefault("minio.use_ssl", false)
	v.SetDefault("minio.bucket_name", "docchat-uploads")

	v.SetDefault("kafka.brokers", "")
	v.SetDefault("kafka.topic", "docchat-events")
}

// Load 读取 YAML 配置文件并叠加环境变量（例如 SERVER_PORT、LLM_MODEL）。
// 配置文件不存在时只使用默认值与环境变量。
func Load(configPath string) (*Config, error) {
	v := viper.New()
	setDefaults(v)

	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// 兼容各家 SDK 的常用环境变量名
	if err := v.BindEnv("llm.api_key", "LLM_API_KEY", "GOOGLE_API_KEY", "OPENAI_API_KEY"); err != nil {
		return nil, err
	}

	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			v.SetConfigFile(configPath)
			v.SetConfigType("yaml")
			if err := v.ReadInConfig(); err != nil {
				return nil, fmt.Errorf("读取配置文件失败: %w", err)
			}
		} else if !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var conf Config
	if err := v.Unmarshal(&conf); err != nil {
		return nil, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	if conf.Embedding.APIKey == "" {
		conf.Embedding.APIKey = conf.LLM.APIKey
	}
	return &conf, nil
}

// Validate 检查启动所必需的配置项，返回 apperr.KindConfig 类错误。
func (c *Config) Validate() error {
	if c.LLM.APIKey == "" {
		return apperr.Config("missing provider API key: set llm.api_key or one of LLM_API_KEY, GOOGLE_API_KEY, OPENAI_API_KEY")
	}
	if !validProvider(c.LLM.Provider) {
		return apperr.Config("unknown llm provider %q", c.LLM.Provider)
	}
	if !validProvider(c.Embedding.Provider) {
		return apperr.Config("unknown embedding provider %q", c.Embedding.Provider)
	}
	if c.Pipeline.ChunkSize <= 0 || c.Pipeline.ChunkOverlap < 0 || c.Pipeline.ChunkOverlap >= c.Pipeline.ChunkSize {
		return apperr.Wrap(apperr.KindConfig, fmt.Sprintf("invalid chunking (size=%d, overlap=%d)",
			c.Pipeline.ChunkSize, c.Pipeline.ChunkOverlap), apperr.ErrInvalidChunkParams)
	}
	switch c.Document.Mode {
	case "extract", "index":
	default:
		return apperr.Config("document.mode must be extract or index, got %q", c.Document.Mode)
	}
	switch c.Extractor.Backend {
	case "pdf":
	case "tika":
		if c.Tika.ServerURL == "" {
			return apperr.Config("extractor.backend is tika but tika.server_url is empty")
		}
	default:
		return apperr.Config("unknown extractor backend %q", c.Extractor.Backend)
	}
	switch c.Index.Backend {
	case "memory":
	case "elasticsearch":
		if c.Embedding.Dimensions <= 0 {
			return apperr.Config("index.backend elasticsearch requires embedding.dimensions")
		}
		if c.Elasticsearch.Addresses == "" || c.Elasticsearch.IndexName == "" {
			return apperr.Config("index.backend elasticsearch requires elasticsearch.addresses and index_name")
		}
	default:
		return apperr.Config("unknown index backend %q", c.Index.Backend)
	}
	if c.Chat.TopK <= 0 {
		return apperr.Config("chat.top_k must be positive")
	}
	if c.Session.MaxSessions <= 0 {
		return apperr.Config("session.max_sessions must be positive")
	}
	return nil
}

func validProvider(p string) bool {
	return p == "gemini" || p == "openai"
}
