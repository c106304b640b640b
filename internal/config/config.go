package config

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino/components/model"
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server   ServerConfig
	Game     GameConfig
	AI       AIConfig
	Database DatabaseConfig
	Log      LogConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	var cfg Config
	if err := env.Parse(&cfg); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}

	addr, err := normalizeAddr(cfg.Server.Port)
	if err != nil {
		return nil, err
	}
	cfg.Server.Addr = addr

	if err := cfg.Game.validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Port           string   `env:"PORT" envDefault:"8080"`
	AllowedOrigins []string `env:"CORS_ALLOWED_ORIGINS" envSeparator:"," envDefault:"*"`
	Addr           string
}

// normalizeAddr 解析服务器监听地址。
func normalizeAddr(port string) (string, error) {
	port = strings.TrimSpace(port)
	if port == "" {
		port = "8080"
	}

	if strings.Contains(port, " ") {
		return "", fmt.Errorf("invalid PORT value: %q", port)
	}

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return port, nil
	}

	return ":" + port, nil
}

// GameConfig 描述对局节奏与容量。
type GameConfig struct {
	JoinTimeout   time.Duration `env:"MAFIA_JOIN_TIMEOUT" envDefault:"120s"`
	NightTimeout  time.Duration `env:"MAFIA_NIGHT_TIMEOUT" envDefault:"30s"`
	DayTimeout    time.Duration `env:"MAFIA_DAY_TIMEOUT" envDefault:"30s"`
	MaxPlayers    int           `env:"MAFIA_MAX_PLAYERS" envDefault:"10"`
	MaxSessionAge time.Duration `env:"MAFIA_MAX_SESSION_AGE" envDefault:"2h"`
	SweepSpec     string        `env:"MAFIA_SWEEP_SPEC" envDefault:"@every 1m"`
	QueueSize     int           `env:"MAFIA_QUEUE_SIZE" envDefault:"64"`
}

func (c GameConfig) validate() error {
	for name, d := range map[string]time.Duration{
		"MAFIA_JOIN_TIMEOUT":    c.JoinTimeout,
		"MAFIA_NIGHT_TIMEOUT":   c.NightTimeout,
		"MAFIA_DAY_TIMEOUT":     c.DayTimeout,
		"MAFIA_MAX_SESSION_AGE": c.MaxSessionAge,
	} {
		if d <= 0 {
			return fmt.Errorf("invalid %s value %q: must be positive", name, d)
		}
	}
	// 至少三人才能开局。
	if c.MaxPlayers < 3 {
		return fmt.Errorf("invalid MAFIA_MAX_PLAYERS value %d: must be at least 3", c.MaxPlayers)
	}
	return nil
}

// AIConfig 描述大模型相关配置，用于可选的旁白生成。
type AIConfig struct {
	APIKey      string   `env:"ARK_API_KEY"`
	AccessKey   string   `env:"ARK_ACCESS_KEY"`
	SecretKey   string   `env:"ARK_SECRET_KEY"`
	Model       string   `env:"ARK_MODEL"`
	BaseURL     string   `env:"ARK_BASE_URL" envDefault:"https://ark.cn-beijing.volces.com/api/v3"`
	Region      string   `env:"ARK_REGION" envDefault:"cn-beijing"`
	Temperature *float64 `env:"ARK_TEMPERATURE"`
	TopP        *float64 `env:"ARK_TOP_P"`
	MaxTokens   *int     `env:"ARK_MAX_TOKENS"`
	Language    string   `env:"NARRATOR_LANGUAGE" envDefault:"English"`
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
}

// NewChatModel 使用配置创建一个模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("ark credentials or model missing: set ARK_MODEL with ARK_API_KEY or an AK/SK pair")
	}

	var temperature *float32
	if c.Temperature != nil {
		val := float32(*c.Temperature)
		temperature = &val
	}

	var topP *float32
	if c.TopP != nil {
		val := float32(*c.TopP)
		topP = &val
	}

	cfg := &ark.ChatModelConfig{
		BaseURL:     c.BaseURL,
		Region:      c.Region,
		APIKey:      c.APIKey,
		AccessKey:   c.AccessKey,
		SecretKey:   c.SecretKey,
		Model:       c.Model,
		MaxTokens:   c.MaxTokens,
		Temperature: temperature,
		TopP:        topP,
	}

	return ark.NewChatModel(ctx, cfg)
}

// DatabaseConfig 描述玩家档案存储。DSN 为空时使用内存存储。
type DatabaseConfig struct {
	DSN string `env:"DATABASE_DSN"`
}

// Enabled 表示是否配置了数据库。
func (c DatabaseConfig) Enabled() bool {
	return strings.TrimSpace(c.DSN) != ""
}

// LogConfig 描述日志输出。
type LogConfig struct {
	Level       string `env:"LOG_LEVEL" envDefault:"info"`
	Development bool   `env:"LOG_DEVELOPMENT" envDefault:"false"`
}
