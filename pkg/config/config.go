package config

import (
	"os"
	"strconv"
	"strings"
	"time"
)

// DBConfig 数据库配置
type DBConfig struct {
	Host     string `yaml:"host"`
	Port     int    `yaml:"port"`
	User     string `yaml:"user"`
	Password string `yaml:"password"`
	Name     string `yaml:"name"`
	MaxConns int32  `yaml:"max_conns"`
	MinConns int32  `yaml:"min_conns"`
	// 慢查询阈值（毫秒）
	SlowQueryMS int `yaml:"slow_query_ms"`
}

// MQConfig 消息队列配置
type MQConfig struct {
	URL string `yaml:"url"`
}

// RedisConfig Redis配置
type RedisConfig struct {
	Addr     string `yaml:"addr"`
	Password string `yaml:"password"`
	DB       int    `yaml:"db"`
}

// JWTConfig JWT配置
type JWTConfig struct {
	Secret   string `yaml:"secret"`
	TTLHours int    `yaml:"ttl_hours"`
}

// ServerConfig 服务器配置
type ServerConfig struct {
	Port string `yaml:"port"`
}

// LLMConfig 大模型配置
type LLMConfig struct {
	// openai（任何 OpenAI 兼容接口，默认 Groq）或 anthropic
	Provider       string  `yaml:"provider"`
	APIKey         string  `yaml:"api_key"`
	BaseURL        string  `yaml:"base_url"`
	Model          string  `yaml:"model"`
	Temperature    float64 `yaml:"temperature"`
	MaxTokens      int     `yaml:"max_tokens"`
	MaxBodyChars   int     `yaml:"max_body_chars"`
	ReplyBodyChars int     `yaml:"reply_body_chars"`
	TimeoutSeconds int     `yaml:"timeout_seconds"`
	MaxRetries     int     `yaml:"max_retries"`
}

// GoogleConfig OAuth 客户端配置
type GoogleConfig struct {
	ClientID     string `yaml:"client_id"`
	ClientSecret string `yaml:"client_secret"`
	RedirectURL  string `yaml:"redirect_url"`
}

// CalendarConfig 日历集成配置
type CalendarConfig struct {
	Enabled        bool   `yaml:"enabled"`
	CalendarID     string `yaml:"calendar_id"`
	TimeZone       string `yaml:"time_zone"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
}

// TelegramConfig 通知配置
type TelegramConfig struct {
	Enabled        bool   `yaml:"enabled"`
	BotToken       string `yaml:"bot_token"`
	ChatID         int64  `yaml:"chat_id"`
	TimeoutSeconds int    `yaml:"timeout_seconds"`
	// 是否响应聊天命令（/status、/sync 等），只接受 ChatID 的消息
	Commands bool `yaml:"commands"`
	// 命令操作的邮箱所有者
	OwnerEmail         string `yaml:"owner_email"`
	PollTimeoutSeconds int    `yaml:"poll_timeout_seconds"`
}

// PipelineConfig 邮件增强流水线配置
type PipelineConfig struct {
	CacheTTLSeconds        int `yaml:"cache_ttl_seconds"`
	SummaryCacheTTLSeconds int `yaml:"summary_cache_ttl_seconds"`
	BatchConcurrency       int `yaml:"batch_concurrency"`
	// inline 或 queued
	DispatchMode string `yaml:"dispatch_mode"`
	CachePrefix  string `yaml:"cache_prefix"`
}

// MailConfig 邮件来源配置
type MailConfig struct {
	// gmail 或 imap
	Provider     string `yaml:"provider"`
	MaxResults   int    `yaml:"max_results"`
	MaxBodyChars int    `yaml:"max_body_chars"`
	IMAPAddr     string `yaml:"imap_addr"`
	IMAPUser     string `yaml:"imap_user"`
	IMAPPassword string `yaml:"imap_password"`
	IMAPMailbox  string `yaml:"imap_mailbox"`
}

// SchedulerConfig 定时任务配置
type SchedulerConfig struct {
	Enabled    bool   `yaml:"enabled"`
	SyncSpec   string `yaml:"sync_spec"`
	DigestSpec string `yaml:"digest_spec"`
}

// OtelConfig OpenTelemetry 配置
type OtelConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Endpoint string `yaml:"endpoint"`
}

// SecurityConfig 令牌加密配置
type SecurityConfig struct {
	// 32 字节密钥的 hex 编码
	TokenKey string `yaml:"token_key"`
	// 具有 admin 角色的邮箱
	AdminEmails []string `yaml:"admin_emails"`
}

// Config 服务整体配置
type Config struct {
	DB        DBConfig        `yaml:"db"`
	MQ        MQConfig        `yaml:"mq"`
	Redis     RedisConfig     `yaml:"redis"`
	JWT       JWTConfig       `yaml:"jwt"`
	Server    ServerConfig    `yaml:"server"`
	LLM       LLMConfig       `yaml:"llm"`
	Google    GoogleConfig    `yaml:"google"`
	Calendar  CalendarConfig  `yaml:"calendar"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Pipeline  PipelineConfig  `yaml:"pipeline"`
	Mail      MailConfig      `yaml:"mail"`
	Scheduler SchedulerConfig `yaml:"scheduler"`
	Otel      OtelConfig      `yaml:"otel"`
	Security  SecurityConfig  `yaml:"security"`
}

// ApplyDefaults 为未配置的字段填充默认值
func (c *Config) ApplyDefaults() {
	if c.Server.Port == "" {
		c.Server.Port = ":8080"
	}
	if c.DB.MaxConns == 0 {
		c.DB.MaxConns = 10
	}
	if c.DB.MinConns == 0 {
		c.DB.MinConns = 2
	}
	if c.JWT.TTLHours == 0 {
		c.JWT.TTLHours = 24
	}
	if c.LLM.Provider == "" {
		c.LLM.Provider = "openai"
	}
	if c.LLM.Model == "" {
		c.LLM.Model = "llama-3.3-70b-versatile"
	}
	if c.LLM.Temperature == 0 {
		c.LLM.Temperature = 0.3
	}
	if c.LLM.MaxTokens == 0 {
		c.LLM.MaxTokens = 1024
	}
	if c.LLM.MaxBodyChars == 0 {
		c.LLM.MaxBodyChars = 4000
	}
	if c.LLM.ReplyBodyChars == 0 {
		c.LLM.ReplyBodyChars = 2000
	}
	if c.LLM.TimeoutSeconds == 0 {
		c.LLM.TimeoutSeconds = 30
	}
	if c.Calendar.CalendarID == "" {
		c.Calendar.CalendarID = "primary"
	}
	if c.Calendar.TimeZone == "" {
		c.Calendar.TimeZone = "UTC"
	}
	if c.Calendar.TimeoutSeconds == 0 {
		c.Calendar.TimeoutSeconds = 15
	}
	if c.Telegram.TimeoutSeconds == 0 {
		c.Telegram.TimeoutSeconds = 10
	}
	if c.Telegram.PollTimeoutSeconds == 0 {
		c.Telegram.PollTimeoutSeconds = 30
	}
	if c.Pipeline.CacheTTLSeconds == 0 {
		c.Pipeline.CacheTTLSeconds = 3600
	}
	if c.Pipeline.SummaryCacheTTLSeconds == 0 {
		c.Pipeline.SummaryCacheTTLSeconds = 3600
	}
	if c.Pipeline.BatchConcurrency == 0 {
		c.Pipeline.BatchConcurrency = 1
	}
	if c.Pipeline.DispatchMode == "" {
		c.Pipeline.DispatchMode = "inline"
	}
	if c.Pipeline.CachePrefix == "" {
		c.Pipeline.CachePrefix = "mailpilot:"
	}
	if c.Mail.Provider == "" {
		c.Mail.Provider = "gmail"
	}
	if c.Mail.MaxResults == 0 {
		c.Mail.MaxResults = 10
	}
	if c.Mail.MaxBodyChars == 0 {
		c.Mail.MaxBodyChars = 5000
	}
	if c.Mail.IMAPMailbox == "" {
		c.Mail.IMAPMailbox = "INBOX"
	}
	if c.Scheduler.SyncSpec == "" {
		c.Scheduler.SyncSpec = "@every 15m"
	}
	if c.Scheduler.DigestSpec == "" {
		c.Scheduler.DigestSpec = "0 8 * * *"
	}
}

// Seconds 把整数秒转换为 time.Duration
func Seconds(n int) time.Duration {
	return time.Duration(n) * time.Second
}

// OverrideDBFromEnv 从环境变量覆盖数据库配置
func OverrideDBFromEnv(cfg *DBConfig) {
	if host := os.Getenv("DB_HOST"); host != "" {
		cfg.Host = host
	}
	if port := os.Getenv("DB_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			cfg.Port = p
		}
	}
	if user := os.Getenv("DB_USER"); user != "" {
		cfg.User = user
	}
	if password := os.Getenv("DB_PASSWORD"); password != "" {
		cfg.Password = password
	}
	if name := os.Getenv("DB_NAME"); name != "" {
		cfg.Name = name
	}
}

// OverrideMQFromEnv 从环境变量覆盖MQ配置
func OverrideMQFromEnv(cfg *MQConfig) {
	if url := os.Getenv("MQ_URL"); url != "" {
		cfg.URL = url
	}
}

// OverrideRedisFromEnv 从环境变量覆盖Redis配置
func OverrideRedisFromEnv(cfg *RedisConfig) {
	if addr := os.Getenv("REDIS_ADDR"); addr != "" {
		cfg.Addr = addr
	}
	if password := os.Getenv("REDIS_PASSWORD"); password != "" {
		cfg.Password = password
	}
}

// OverrideJWTFromEnv 从环境变量覆盖JWT配置
func OverrideJWTFromEnv(cfg *JWTConfig) {
	if secret := os.Getenv("JWT_SECRET"); secret != "" {
		cfg.Secret = secret
	}
}

// OverrideServerFromEnv 从环境变量覆盖服务器配置
func OverrideServerFromEnv(cfg *ServerConfig) {
	if port := os.Getenv("SERVER_PORT"); port != "" {
		cfg.Port = port
	}
}

// OverrideLLMFromEnv 从环境变量覆盖大模型配置
func OverrideLLMFromEnv(cfg *LLMConfig) {
	if provider := os.Getenv("LLM_PROVIDER"); provider != "" {
		cfg.Provider = provider
	}
	if key := os.Getenv("LLM_API_KEY"); key != "" {
		cfg.APIKey = key
	}
	if baseURL := os.Getenv("LLM_BASE_URL"); baseURL != "" {
		cfg.BaseURL = baseURL
	}
	if model := os.Getenv("LLM_MODEL"); model != "" {
		cfg.Model = model
	}
}

// OverrideGoogleFromEnv 从环境变量覆盖 Google OAuth 配置
func OverrideGoogleFromEnv(cfg *GoogleConfig) {
	if id := os.Getenv("GOOGLE_CLIENT_ID"); id != "" {
		cfg.ClientID = id
	}
	if secret := os.Getenv("GOOGLE_CLIENT_SECRET"); secret != "" {
		cfg.ClientSecret = secret
	}
	if redirect := os.Getenv("GOOGLE_REDIRECT_URL"); redirect != "" {
		cfg.RedirectURL = redirect
	}
}

// OverrideTelegramFromEnv 从环境变量覆盖 Telegram 配置
func OverrideTelegramFromEnv(cfg *TelegramConfig) {
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		cfg.BotToken = token
	}
	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		if id, err := strconv.ParseInt(chatID, 10, 64); err == nil {
			cfg.ChatID = id
		}
	}
	if enabled := os.Getenv("TELEGRAM_ENABLED"); enabled != "" {
		if b, err := strconv.ParseBool(enabled); err == nil {
			cfg.Enabled = b
		}
	}
	if commands := os.Getenv("TELEGRAM_COMMANDS"); commands != "" {
		if b, err := strconv.ParseBool(commands); err == nil {
			cfg.Commands = b
		}
	}
	if owner := os.Getenv("TELEGRAM_OWNER_EMAIL"); owner != "" {
		cfg.OwnerEmail = owner
	}
}

// OverrideSecurityFromEnv 从环境变量覆盖加密密钥
func OverrideSecurityFromEnv(cfg *SecurityConfig) {
	if key := os.Getenv("TOKEN_KEY"); key != "" {
		cfg.TokenKey = key
	}
	if admins := os.Getenv("ADMIN_EMAILS"); admins != "" {
		cfg.AdminEmails = strings.Split(admins, ",")
	}
}
