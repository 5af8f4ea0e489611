package config

import (
	"strings"
	"time"

	"github.com/spf13/viper"
)

type AppConfig struct {
	ServerName  string          `mapstructure:"server_name" yaml:"server_name"`
	Version     string          `mapstructure:"version" yaml:"version"`
	Environment string          `mapstructure:"environment" yaml:"environment"`
	Port        int             `mapstructure:"port" yaml:"port"`
	Postgres    PostgresConfig  `mapstructure:"postgres" yaml:"postgres"`
	Redis       RedisConfig     `mapstructure:"redis" yaml:"redis"`
	Consul      ConsulConfig    `mapstructure:"consul" yaml:"consul"`
	RocketMQ    RocketMQConfig  `mapstructure:"rocketmq" yaml:"rocketmq"`
	Auth        AuthConfig      `mapstructure:"auth" yaml:"auth"`
	LLM         LLMConfig       `mapstructure:"llm" yaml:"llm"`
	Quota       QuotaConfig     `mapstructure:"quota" yaml:"quota"`
	Retrieval   RetrievalConfig `mapstructure:"retrieval" yaml:"retrieval"`
}

type PostgresConfig struct {
	Address  string        `mapstructure:"address" yaml:"address"`
	Port     int           `mapstructure:"port" yaml:"port"`
	User     string        `mapstructure:"user" yaml:"user"`
	Password string        `mapstructure:"password" yaml:"password"`
	DBName   string        `mapstructure:"db_name" yaml:"db_name"`
	MaxIdle  int           `mapstructure:"max_idle" yaml:"max_idle"`
	MaxOpen  int           `mapstructure:"max_open" yaml:"max_open"`
	MaxLife  time.Duration `mapstructure:"max_life" yaml:"max_life"`
}

type RedisConfig struct {
	Address      string        `mapstructure:"address" yaml:"address"`
	Port         int           `mapstructure:"port" yaml:"port"`
	Password     string        `mapstructure:"password" yaml:"password"`
	Database     int           `mapstructure:"database" yaml:"database"`
	DialTimeout  time.Duration `mapstructure:"dial_timeout" yaml:"dial_timeout"`
	ReadTimeout  time.Duration `mapstructure:"read_timeout" yaml:"read_timeout"`
	WriteTimeout time.Duration `mapstructure:"write_timeout" yaml:"write_timeout"`
	MaxRetries   int           `mapstructure:"max_retries" yaml:"max_retries"`
	PoolSize     int           `mapstructure:"pool_size" yaml:"pool_size"`
	MinIdleConns int           `mapstructure:"min_idle_conns" yaml:"min_idle_conns"`
	RateLimitQPS int           `mapstructure:"rate_limit_qps" yaml:"rate_limit_qps"`
}

type ConsulConfig struct {
	Enabled    bool   `mapstructure:"enabled" yaml:"enabled"`
	Address    string `mapstructure:"address" yaml:"address"`
	Scheme     string `mapstructure:"scheme" yaml:"scheme"`
	Datacenter string `mapstructure:"datacenter" yaml:"datacenter"`
}

type RocketMQConfig struct {
	Enabled     bool     `mapstructure:"enabled" yaml:"enabled"`
	NameServers []string `mapstructure:"name_servers" yaml:"name_servers"`
	MaxRetries  int      `mapstructure:"max_retries" yaml:"max_retries"`
	GroupName   string   `mapstructure:"group_name" yaml:"group_name"`
	Topics      struct {
		QueryEvent string `mapstructure:"query_event" yaml:"query_event"`
	} `mapstructure:"topics" yaml:"topics"`
}

type AuthConfig struct {
	JwtSecret   string `mapstructure:"jwt_secret" yaml:"jwt_secret"`
	ExpireHours int    `mapstructure:"expire_hours" yaml:"expire_hours"`
	AdminAPIKey string `mapstructure:"admin_api_key" yaml:"admin_api_key"`
}

type LLMConfig struct {
	BaseURL     string  `mapstructure:"base_url" yaml:"base_url"`
	Model       string  `mapstructure:"model" yaml:"model"`
	APIKeys     string  `mapstructure:"api_keys" yaml:"api_keys"`
	Temperature float32 `mapstructure:"temperature" yaml:"temperature"`
	MaxTokens   int     `mapstructure:"max_tokens" yaml:"max_tokens"`
	MaxAttempts int     `mapstructure:"max_attempts" yaml:"max_attempts"`
}

// Credentials splits the comma-separated key list into the ordered pool.
func (c LLMConfig) Credentials() []string {
	var keys []string
	for _, k := range strings.Split(c.APIKeys, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys = append(keys, k)
		}
	}
	return keys
}

type QuotaConfig struct {
	RegisteredLimit int           `mapstructure:"registered_limit" yaml:"registered_limit"`
	AnonymousLimit  int           `mapstructure:"anonymous_limit" yaml:"anonymous_limit"`
	ResetWindow     time.Duration `mapstructure:"reset_window" yaml:"reset_window"`
}

type RetrievalConfig struct {
	DataDir  string `mapstructure:"data_dir" yaml:"data_dir"`
	DefaultK int    `mapstructure:"default_k" yaml:"default_k"`
}

func LoadConfig() (*AppConfig, error) {
	var config AppConfig

	viper.SetConfigFile("config/config.yml")
	viper.SetConfigType("yaml")

	viper.AutomaticEnv()
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	setDefaults()

	if err := viper.ReadInConfig(); err != nil {
		return &config, err
	}
	if err := viper.Unmarshal(&config); err != nil {
		return &config, err
	}
	return &config, nil
}

func setDefaults() {
	viper.SetDefault("server_name", "ragchat")
	viper.SetDefault("port", 8000)
	viper.SetDefault("quota.registered_limit", 5)
	viper.SetDefault("quota.anonymous_limit", 3)
	viper.SetDefault("quota.reset_window", 24*time.Hour)
	viper.SetDefault("auth.expire_hours", 24*7)
	viper.SetDefault("llm.model", "gemini-2.5-flash")
	viper.SetDefault("llm.temperature", 0.3)
	viper.SetDefault("llm.max_tokens", 2048)
	viper.SetDefault("retrieval.data_dir", "data")
	viper.SetDefault("retrieval.default_k", 1)
	viper.SetDefault("redis.rate_limit_qps", 20)
}
