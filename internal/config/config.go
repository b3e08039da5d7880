package config

import (
	"context"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/ark"
	"github.com/cloudwego/eino-ext/components/model/claude"
	"github.com/cloudwego/eino-ext/components/model/gemini"
	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

// 支持的模型提供方。
const (
	ProviderArk    = "ark"
	ProviderOpenAI = "openai"
	ProviderGemini = "gemini"
	ProviderClaude = "claude"
)

const (
	defaultGeminiModel     = "gemini-2.0-flash"
	defaultClaudeMaxTokens = 4096
	defaultMaxUploadSize   = 5 << 20
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server  ServerConfig
	Session SessionConfig
	Upload  UploadConfig
	AI      AIConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	session, err := loadSessionConfig()
	if err != nil {
		return nil, err
	}

	upload, err := loadUploadConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, Session: session, Upload: upload, AI: ai}, nil
}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr        string
	FrontendURL string
	Environment string
	StaticDir   string
	Debug       bool
}

// Production 表示是否运行在生产环境，决定 Cookie 是否带 Secure。
func (c ServerConfig) Production() bool {
	return strings.EqualFold(c.Environment, "production")
}

// loadServerConfig 解析服务器监听地址与前端来源。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	debug, err := parseBoolEnv("DEBUG", false)
	if err != nil {
		return ServerConfig{}, err
	}

	cfg := ServerConfig{
		FrontendURL: getEnvOrDefault("FRONTEND_URL", "*"),
		Environment: strings.ToLower(getEnvOrDefault("ENVIRONMENT", "development")),
		StaticDir:   strings.TrimSpace(os.Getenv("STATIC_DIR")),
		Debug:       debug,
	}

	switch {
	case strings.Contains(port, ":"):
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		cfg.Addr = port
	case strings.Contains(port, " "):
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	default:
		cfg.Addr = ":" + port
	}
	return cfg, nil
}

// SessionConfig 描述会话生命周期与实时通道参数。
type SessionConfig struct {
	Timeout           time.Duration
	CleanupInterval   time.Duration
	MaxResumes        int
	CookieMaxAge      int
	QueueSize         int
	GenerationTimeout time.Duration
}

func loadSessionConfig() (SessionConfig, error) {
	timeout, err := parsePositiveIntEnv("SESSION_TIMEOUT", 1800)
	if err != nil {
		return SessionConfig{}, err
	}

	cleanup, err := parsePositiveIntEnv("SESSION_CLEANUP_INTERVAL", 300)
	if err != nil {
		return SessionConfig{}, err
	}

	maxResumes, err := parsePositiveIntEnv("MAX_RESUMES_PER_SESSION", 5)
	if err != nil {
		return SessionConfig{}, err
	}

	// Cookie 默认与会话超时保持一致。
	cookieMaxAge, err := parsePositiveIntEnv("SESSION_COOKIE_MAX_AGE", timeout)
	if err != nil {
		return SessionConfig{}, err
	}

	queueSize, err := parsePositiveIntEnv("CHANNEL_QUEUE_SIZE", 8)
	if err != nil {
		return SessionConfig{}, err
	}

	generation, err := parsePositiveIntEnv("GENERATION_TIMEOUT", 180)
	if err != nil {
		return SessionConfig{}, err
	}

	return SessionConfig{
		Timeout:           time.Duration(timeout) * time.Second,
		CleanupInterval:   time.Duration(cleanup) * time.Second,
		MaxResumes:        maxResumes,
		CookieMaxAge:      cookieMaxAge,
		QueueSize:         queueSize,
		GenerationTimeout: time.Duration(generation) * time.Second,
	}, nil
}

// UploadConfig 描述简历上传限制。
type UploadConfig struct {
	MaxSize int64
}

func loadUploadConfig() (UploadConfig, error) {
	size, err := parsePositiveIntEnv("MAX_UPLOAD_SIZE", defaultMaxUploadSize)
	if err != nil {
		return UploadConfig{}, err
	}
	return UploadConfig{MaxSize: int64(size)}, nil
}

// AIConfig 描述大模型相关配置。
type AIConfig struct {
	Provider    string
	Model       string
	APIKey      string
	AccessKey   string
	SecretKey   string
	BaseURL     string
	Region      string
	Temperature *float64
	TopP        *float64
	MaxTokens   *int
	MaxSteps    int
}

// Enabled 表示是否提供了必需的密钥。
func (c AIConfig) Enabled() bool {
	switch c.Provider {
	case ProviderArk:
		return c.Model != "" && (c.APIKey != "" || (c.AccessKey != "" && c.SecretKey != ""))
	case ProviderOpenAI:
		// LM Studio 等本地兼容服务不需要密钥，只需要地址。
		return c.Model != "" && (c.APIKey != "" || c.BaseURL != "")
	case ProviderGemini, ProviderClaude:
		return c.Model != "" && c.APIKey != ""
	default:
		return false
	}
}

// NewChatModel 使用配置创建一个支持工具调用的模型实例。
func (c AIConfig) NewChatModel(ctx context.Context) (model.ToolCallingChatModel, error) {
	if !c.Enabled() {
		return nil, fmt.Errorf("%s 凭证或模型配置缺失，请检查 AGENTS_MODEL_ID 与 API Key", c.Provider)
	}

	var (
		chatModel any
		err       error
	)

	switch c.Provider {
	case ProviderArk:
		chatModel, err = ark.NewChatModel(ctx, &ark.ChatModelConfig{
			BaseURL:     c.BaseURL,
			Region:      c.Region,
			APIKey:      c.APIKey,
			AccessKey:   c.AccessKey,
			SecretKey:   c.SecretKey,
			Model:       c.Model,
			MaxTokens:   c.MaxTokens,
			Temperature: c.float32Ptr(c.Temperature),
			TopP:        c.float32Ptr(c.TopP),
		})
	case ProviderOpenAI:
		chatModel, err = openai.NewChatModel(ctx, &openai.ChatModelConfig{
			BaseURL:     c.BaseURL,
			APIKey:      c.APIKey,
			Model:       c.Model,
			MaxTokens:   c.MaxTokens,
			Temperature: c.float32Ptr(c.Temperature),
			TopP:        c.float32Ptr(c.TopP),
		})
	case ProviderGemini:
		client, clientErr := genai.NewClient(ctx, &genai.ClientConfig{
			APIKey:  c.APIKey,
			Backend: genai.BackendGeminiAPI,
		})
		if clientErr != nil {
			return nil, fmt.Errorf("create gemini client: %w", clientErr)
		}
		chatModel, err = gemini.NewChatModel(ctx, &gemini.Config{
			Client:      client,
			Model:       c.Model,
			MaxTokens:   c.MaxTokens,
			Temperature: c.float32Ptr(c.Temperature),
			TopP:        c.float32Ptr(c.TopP),
		})
	case ProviderClaude:
		var baseURL *string
		if c.BaseURL != "" {
			baseURL = &c.BaseURL
		}
		maxTokens := defaultClaudeMaxTokens
		if c.MaxTokens != nil {
			maxTokens = *c.MaxTokens
		}
		chatModel, err = claude.NewChatModel(ctx, &claude.Config{
			APIKey:      c.APIKey,
			BaseURL:     baseURL,
			Model:       c.Model,
			MaxTokens:   maxTokens,
			Temperature: c.float32Ptr(c.Temperature),
			TopP:        c.float32Ptr(c.TopP),
		})
	default:
		return nil, fmt.Errorf("unsupported AGENTS_MODEL_PROVIDER: %q", c.Provider)
	}
	if err != nil {
		return nil, fmt.Errorf("create %s chat model: %w", c.Provider, err)
	}

	toolCalling, ok := chatModel.(model.ToolCallingChatModel)
	if !ok {
		return nil, fmt.Errorf("%s chat model does not support tool calling", c.Provider)
	}
	return toolCalling, nil
}

func (c AIConfig) float32Ptr(v *float64) *float32 {
	if v == nil {
		return nil
	}
	val := float32(*v)
	return &val
}

func loadAIConfig() (AIConfig, error) {
	provider, err := normalizeProvider(getEnvOrDefault("AGENTS_MODEL_PROVIDER", ProviderGemini))
	if err != nil {
		return AIConfig{}, err
	}

	temperature, err := parseOptionalFloatEnv("AGENTS_TEMPERATURE")
	if err != nil {
		return AIConfig{}, err
	}

	topP, err := parseOptionalFloatEnv("AGENTS_TOP_P")
	if err != nil {
		return AIConfig{}, err
	}

	maxTokens, err := parseOptionalIntEnv("AGENTS_MAX_TOKENS")
	if err != nil {
		return AIConfig{}, err
	}

	maxSteps, err := parsePositiveIntEnv("AGENTS_MAX_STEPS", 12)
	if err != nil {
		return AIConfig{}, err
	}

	cfg := AIConfig{
		Provider:    provider,
		Model:       strings.TrimSpace(os.Getenv("AGENTS_MODEL_ID")),
		APIKey:      strings.TrimSpace(os.Getenv("AGENTS_API_KEY")),
		BaseURL:     strings.TrimSpace(os.Getenv("AGENTS_BASE_URL")),
		Temperature: temperature,
		TopP:        topP,
		MaxTokens:   maxTokens,
		MaxSteps:    maxSteps,
	}

	switch provider {
	case ProviderArk:
		// 兼容原有的 ARK_* 变量。
		if cfg.APIKey == "" {
			cfg.APIKey = strings.TrimSpace(os.Getenv("ARK_API_KEY"))
		}
		if cfg.BaseURL == "" {
			cfg.BaseURL = getEnvOrDefault("ARK_BASE_URL", "https://ark.cn-beijing.volces.com/api/v3")
		}
		cfg.AccessKey = strings.TrimSpace(os.Getenv("ARK_ACCESS_KEY"))
		cfg.SecretKey = strings.TrimSpace(os.Getenv("ARK_SECRET_KEY"))
		cfg.Region = getEnvOrDefault("ARK_REGION", "cn-beijing")
	case ProviderGemini:
		if cfg.APIKey == "" {
			cfg.APIKey = strings.TrimSpace(os.Getenv("GOOGLE_API_KEY"))
		}
		if cfg.Model == "" {
			cfg.Model = defaultGeminiModel
		}
	}

	return cfg, nil
}

// normalizeProvider 统一大小写，并把 LMStudio 映射为 OpenAI 兼容接口。
func normalizeProvider(raw string) (string, error) {
	switch strings.ToLower(strings.TrimSpace(raw)) {
	case ProviderArk:
		return ProviderArk, nil
	case ProviderOpenAI, "lmstudio":
		return ProviderOpenAI, nil
	case ProviderGemini:
		return ProviderGemini, nil
	case ProviderClaude:
		return ProviderClaude, nil
	default:
		return "", fmt.Errorf("invalid AGENTS_MODEL_PROVIDER value: %q", raw)
	}
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

func parseBoolEnv(key string, defaultValue bool) (bool, error) {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return defaultValue, nil
	}

	val, err := strconv.ParseBool(raw)
	if err != nil {
		return false, fmt.Errorf("invalid %s value %q: %w", key, raw, err)
	}
	return val, nil
}

func parseOptionalFloatEnv(key string) (*float64, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.ParseFloat(value, 64)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

func parseOptionalIntEnv(key string) (*int, error) {
	raw, ok := os.LookupEnv(key)
	if !ok {
		return nil, nil
	}

	value := strings.TrimSpace(raw)
	if value == "" {
		return nil, nil
	}

	val, err := strconv.Atoi(value)
	if err != nil {
		return nil, fmt.Errorf("invalid %s value %q: %w", key, value, err)
	}
	return &val, nil
}

// parsePositiveIntEnv 读取正整数，未设置时返回默认值。
func parsePositiveIntEnv(key string, defaultValue int) (int, error) {
	val, err := parseOptionalIntEnv(key)
	if err != nil {
		return 0, err
	}
	if val == nil {
		return defaultValue, nil
	}
	if *val <= 0 {
		return 0, fmt.Errorf("invalid %s value %d: must be positive", key, *val)
	}
	return *val, nil
}
