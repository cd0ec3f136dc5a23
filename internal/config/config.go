package config

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/cloudwego/eino-ext/components/model/openai"
	"github.com/cloudwego/eino/components/model"
	"google.golang.org/genai"
)

// 固定的生成参数。
const (
	Temperature = 0.7
	TopK        = 40
)

// Config 聚合整个服务的配置项。
type Config struct {
	Server ServerConfig
	AI     AIConfig
	Speech SpeechConfig
}

// Load 从环境变量加载配置。
func Load() (*Config, error) {
	server, err := loadServerConfig()
	if err != nil {
		return nil, err
	}

	ai, err := loadAIConfig()
	if err != nil {
		return nil, err
	}

	speech, err := loadSpeechConfig()
	if err != nil {
		return nil, err
	}

	return &Config{Server: server, AI: ai, Speech: speech}, nil
}

// DefaultAllowedOrigins 只放行本机页面。
var DefaultAllowedOrigins = []string{"http://localhost:*", "http://127.0.0.1:*", "http://[::1]:*"}

// ServerConfig 描述 HTTP 服务配置。
type ServerConfig struct {
	Addr           string
	AllowedOrigins []string
}

// loadServerConfig 解析服务器监听地址。
func loadServerConfig() (ServerConfig, error) {
	port := strings.TrimSpace(os.Getenv("PORT"))
	if port == "" {
		port = "8080"
	}

	origins := parseListEnv("ALLOWED_ORIGINS", DefaultAllowedOrigins)

	if strings.Contains(port, ":") {
		// 允许用户直接传入 ":8080" 或 "127.0.0.1:8080"。
		return ServerConfig{Addr: port, AllowedOrigins: origins}, nil
	}

	if strings.Contains(port, " ") {
		return ServerConfig{}, fmt.Errorf("invalid PORT value: %q", port)
	}

	// 代理会注入 API 密钥，默认只监听回环地址。
	return ServerConfig{Addr: "127.0.0.1:" + port, AllowedOrigins: origins}, nil
}

// AIConfig 描述两个对话后端的凭证与模型配置。
type AIConfig struct {
	GeminiAPIKey   string
	GeminiModel    string
	GeminiTTSModel string
	GeminiVoice    string

	RESTAPIKey  string
	RESTBaseURL string
	RESTModel   string

	Timeout time.Duration
}

// UseREST 仅当 REST 凭证存在且 Gemini 凭证缺失时选择 REST 后端。
func (c AIConfig) UseREST() bool {
	return c.RESTAPIKey != "" && c.GeminiAPIKey == ""
}

// NewGeminiClient 创建托管 SDK 客户端。
func (c AIConfig) NewGeminiClient(ctx context.Context) (*genai.Client, error) {
	if c.GeminiAPIKey == "" {
		return nil, fmt.Errorf("GEMINI_API_KEY 未配置")
	}

	cfg := &genai.ClientConfig{
		APIKey:  c.GeminiAPIKey,
		Backend: genai.BackendGeminiAPI,
	}
	if c.Timeout > 0 {
		cfg.HTTPClient = &http.Client{Timeout: c.Timeout}
	}

	return genai.NewClient(ctx, cfg)
}

// NewRESTChatModel 使用配置创建一个 OpenAI 兼容的对话模型。
func (c AIConfig) NewRESTChatModel(ctx context.Context) (model.BaseChatModel, error) {
	if c.RESTAPIKey == "" {
		return nil, fmt.Errorf("DEEPSEEK_API_KEY 未配置")
	}

	temperature := float32(Temperature)
	return openai.NewChatModel(ctx, &openai.ChatModelConfig{
		BaseURL:     c.RESTBaseURL,
		APIKey:      c.RESTAPIKey,
		Model:       c.RESTModel,
		Timeout:     c.Timeout,
		Temperature: &temperature,
	})
}

func loadAIConfig() (AIConfig, error) {
	timeout, err := parseOptionalIntEnv("AI_TIMEOUT")
	if err != nil {
		return AIConfig{}, err
	}
	timeoutSeconds := 60
	if timeout != nil && *timeout > 0 {
		timeoutSeconds = *timeout
	}

	geminiKey := strings.TrimSpace(os.Getenv("GEMINI_API_KEY"))
	if geminiKey == "" {
		geminiKey = strings.TrimSpace(os.Getenv("API_KEY"))
	}

	return AIConfig{
		GeminiAPIKey:   geminiKey,
		GeminiModel:    getEnvOrDefault("GEMINI_MODEL", "gemini-2.5-flash"),
		GeminiTTSModel: getEnvOrDefault("GEMINI_TTS_MODEL", "gemini-2.5-flash-preview-tts"),
		GeminiVoice:    getEnvOrDefault("GEMINI_TTS_VOICE", "Kore"),
		RESTAPIKey:     strings.TrimSpace(os.Getenv("DEEPSEEK_API_KEY")),
		RESTBaseURL:    strings.TrimRight(getEnvOrDefault("DEEPSEEK_BASE_URL", "https://api.deepseek.com/v1"), "/"),
		RESTModel:      getEnvOrDefault("DEEPSEEK_MODEL", "deepseek-chat"),
		Timeout:        time.Duration(timeoutSeconds) * time.Second,
	}, nil
}

// SpeechConfig 描述本机朗读后备方案的配置。
type SpeechConfig struct {
	NativeEnabled bool
	NativeCommand string
}

func loadSpeechConfig() (SpeechConfig, error) {
	enabled, err := parseBoolEnv("NATIVE_TTS_ENABLED", true)
	if err != nil {
		return SpeechConfig{}, err
	}

	return SpeechConfig{
		NativeEnabled: enabled,
		NativeCommand: strings.TrimSpace(os.Getenv("NATIVE_TTS_COMMAND")),
	}, nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := strings.TrimSpace(os.Getenv(key)); value != "" {
		return value
	}
	return defaultValue
}

// parseListEnv 解析逗号分隔的列表。
func parseListEnv(key string, defaultValue []string) []string {
	raw := strings.TrimSpace(os.Getenv(key))
	if raw == "" {
		return append([]string(nil), defaultValue...)
	}

	var values []string
	for _, item := range strings.Split(raw, ",") {
		if item = strings.TrimSpace(item); item != "" {
			values = append(values, item)
		}
	}
	return values
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
