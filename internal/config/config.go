// Package config 负责加载和管理应用程序的配置。
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

// 全局配置变量，存储从配置文件加载的所有设置。
var Conf Config

// Config 是整个应用程序的配置结构体，与 config.yaml 文件结构对应。
type Config struct {
	Server        ServerConfig        `mapstructure:"server"`
	Database      DatabaseConfig      `mapstructure:"database"`
	JWT           JWTConfig           `mapstructure:"jwt"`
	Log           LogConfig           `mapstructure:"log"`
	Kafka         KafkaConfig         `mapstructure:"kafka"`
	Elasticsearch ElasticsearchConfig `mapstructure:"elasticsearch"`
	MinIO         MinIOConfig         `mapstructure:"minio"`
	AI            AIConfig            `mapstructure:"ai"`
}

// ServerConfig 存储服务器相关的配置。
type ServerConfig struct {
	Port string `mapstructure:"port"`
	Mode string `mapstructure:"mode"`
	// CORSOrigins 以逗号分隔的允许来源列表
	CORSOrigins string `mapstructure:"cors_origins"`
}

// AllowedOrigins 将 CORSOrigins 拆分为去空白后的列表。
func (s ServerConfig) AllowedOrigins() []string {
	var origins []string
	for _, o := range strings.Split(s.CORSOrigins, ",") {
		if o = strings.TrimSpace(o); o != "" {
			origins = append(origins, o)
		}
	}
	return origins
}

// DatabaseConfig 存储所有数据库连接的配置。
type DatabaseConfig struct {
	MySQL MySQLConfig `mapstructure:"mysql"`
	Redis RedisConfig `mapstructure:"redis"`
}

// MySQLConfig 存储 MySQL 数据库的配置。
type MySQLConfig struct {
	DSN string `mapstructure:"dsn"`
}

// RedisConfig 存储 Redis 的配置。
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// JWTConfig 存储 JWT 相关的配置。
type JWTConfig struct {
	Secret                 string `mapstructure:"secret"`
	AccessTokenExpireHours int    `mapstructure:"access_token_expire_hours"`
	RefreshTokenExpireDays int    `mapstructure:"refresh_token_expire_days"`
}

// LogConfig 存储日志相关的配置。
type LogConfig struct {
	Level      string `mapstructure:"level"`
	Format     string `mapstructure:"format"`
	OutputPath string `mapstructure:"output_path"`
}

// KafkaConfig 存储 Kafka 相关的配置。Brokers 为空时不启用聊天事件投递。
type KafkaConfig struct {
	Brokers string `mapstructure:"brokers"`
	Topic   string `mapstructure:"topic"`
	GroupID string `mapstructure:"group_id"`
}

// Enabled 表示是否配置了 Kafka。
func (k KafkaConfig) Enabled() bool {
	return strings.TrimSpace(k.Brokers) != ""
}

// ElasticsearchConfig 存储 Elasticsearch 相关的配置。
type ElasticsearchConfig struct {
	Addresses string `mapstructure:"addresses"`
	Username  string `mapstructure:"username"`
	Password  string `mapstructure:"password"`
	IndexName string `mapstructure:"index_name"`
}

// Enabled 表示是否配置了 Elasticsearch。
func (e ElasticsearchConfig) Enabled() bool {
	return strings.TrimSpace(e.Addresses) != ""
}

// MinIOConfig 存储 MinIO 对象存储的配置。
type MinIOConfig struct {
	Endpoint        string `mapstructure:"endpoint"`
	AccessKeyID     string `mapstructure:"access_key_id"`
	SecretAccessKey string `mapstructure:"secret_access_key"`
	UseSSL          bool   `mapstructure:"use_ssl"`
	BucketName      string `mapstructure:"bucket_name"`
	Region          string `mapstructure:"region"`
}

// Enabled 表示是否配置了 MinIO。
func (m MinIOConfig) Enabled() bool {
	return strings.TrimSpace(m.Endpoint) != ""
}

// AIConfig 存储回复提供方的配置。各提供方是否启用取决于对应的地址/密钥是否为空。
type AIConfig struct {
	// TimeoutMS 是每次提供方调用的默认超时（毫秒）。
	TimeoutMS  int                `mapstructure:"timeout_ms"`
	Service    AIServiceConfig    `mapstructure:"service"`
	OpenAI     OpenAIConfig       `mapstructure:"openai"`
	Generation AIGenerationConfig `mapstructure:"generation"`
}

// AIServiceConfig 是通用外部回复服务的配置。
type AIServiceConfig struct {
	URL       string `mapstructure:"url"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

// OpenAIConfig 是 Chat Completions 提供方的配置。
type OpenAIConfig struct {
	APIKey    string `mapstructure:"api_key"`
	BaseURL   string `mapstructure:"base_url"`
	Model     string `mapstructure:"model"`
	TimeoutMS int    `mapstructure:"timeout_ms"`
}

// AIGenerationConfig 配置生成相关参数。
type AIGenerationConfig struct {
	MaxTokens int `mapstructure:"max_tokens"`
}

// ServiceTimeout 返回外部回复服务的单次调用超时。
func (a AIConfig) ServiceTimeout() time.Duration {
	return pickTimeout(a.Service.TimeoutMS, a.TimeoutMS)
}

// OpenAITimeout 返回 Chat Completions 的单次调用超时。
func (a AIConfig) OpenAITimeout() time.Duration {
	return pickTimeout(a.OpenAI.TimeoutMS, a.TimeoutMS)
}

func pickTimeout(ms, fallbackMS int) time.Duration {
	if ms <= 0 {
		ms = fallbackMS
	}
	if ms <= 0 {
		ms = DefaultAITimeoutMS
	}
	return time.Duration(ms) * time.Millisecond
}

const (
	DefaultAITimeoutMS = 30000
	DefaultOpenAIModel = "gpt-3.5-turbo"
)

// envBindings 保留原有部署使用的环境变量名。
var envBindings = map[string]string{
	"server.port":                   "PORT",
	"server.mode":                   "GIN_MODE",
	"server.cors_origins":           "CORS_ORIGIN",
	"database.mysql.dsn":            "DATABASE_URL",
	"database.redis.addr":           "REDIS_ADDR",
	"database.redis.password":       "REDIS_PASSWORD",
	"jwt.secret":                    "JWT_SECRET",
	"jwt.access_token_expire_hours": "JWT_EXPIRES_IN_HOURS",
	"kafka.brokers":                 "KAFKA_BROKERS",
	"elasticsearch.addresses":       "ES_ADDRESSES",
	"minio.endpoint":                "MINIO_ENDPOINT",
	"minio.access_key_id":           "MINIO_ACCESS_KEY",
	"minio.secret_access_key":       "MINIO_SECRET_KEY",
	"ai.timeout_ms":                 "AI_TIMEOUT_MS",
	"ai.service.url":                "AI_SERVICE_URL",
	"ai.openai.api_key":             "OPENAI_API_KEY",
	"ai.openai.model":               "OPENAI_MODEL",
	"ai.openai.base_url":            "OPENAI_BASE_URL",
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.port", "4000")
	v.SetDefault("server.mode", "debug")
	v.SetDefault("server.cors_origins", "http://localhost:5174")
	v.SetDefault("jwt.secret", "fallback-secret")
	v.SetDefault("jwt.access_token_expire_hours", 24)
	v.SetDefault("jwt.refresh_token_expire_days", 7)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "json")
	v.SetDefault("kafka.topic", "chat-turns")
	v.SetDefault("kafka.group_id", "clinic-chat-indexer")
	v.SetDefault("elasticsearch.index_name", "chat_turns")
	v.SetDefault("minio.bucket_name", "transcripts")
	v.SetDefault("minio.region", "us-east-1")
	v.SetDefault("ai.timeout_ms", DefaultAITimeoutMS)
	v.SetDefault("ai.openai.base_url", "https://api.openai.com/v1")
	v.SetDefault("ai.openai.model", DefaultOpenAIModel)
	v.SetDefault("ai.generation.max_tokens", 500)
}

// Load 读取 YAML 配置文件并叠加环境变量，返回解析后的 Config。
// configPath 为空时只使用默认值与环境变量。
func Load(configPath string) (Config, error) {
	// .env 文件是可选的
	_ = godotenv.Load()

	v := viper.New()
	setDefaults(v)
	for key, env := range envBindings {
		if err := v.BindEnv(key, env); err != nil {
			return Config{}, fmt.Errorf("绑定环境变量 %s 失败: %w", env, err)
		}
	}

	if configPath != "" {
		v.SetConfigFile(configPath)
		v.SetConfigType("yaml")
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("读取配置文件失败: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("无法将配置解析到结构体中: %w", err)
	}
	return cfg, nil
}

// Init 初始化配置加载，从指定的路径读取 YAML 文件并解析到 Conf 变量中。
func Init(configPath string) {
	cfg, err := Load(configPath)
	if err != nil {
		panic(err)
	}
	Conf = cfg
}
