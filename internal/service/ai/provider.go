package ai

import (
	"context"
	"log"

	"github.com/zhouzirui/parent-coach/backend/internal/config"
	"github.com/zhouzirui/parent-coach/backend/internal/model/profile"
)

// Backend names the AI provider variant selected at startup.
type Backend string

const (
	BackendGemini Backend = "gemini"
	BackendREST   Backend = "rest"
)

// Provider is the backend-agnostic contract used by the conversation service.
//
// SendMessage always returns displayable text when err is a transport or
// malformed-response failure; it returns an empty string only when the
// adapter is used out of sequence or without a credential.
type Provider interface {
	Backend() Backend
	SupportsSpeech() bool
	InitializeSession(ctx context.Context, child profile.Profile)
	SendMessage(ctx context.Context, text string) (string, error)
	SynthesizeSpeech(ctx context.Context, text string) ([]float32, error)
}

// SelectBackend picks REST only when its credential is present and Gemini's is absent.
func SelectBackend(cfg config.AIConfig) Backend {
	if cfg.UseREST() {
		return BackendREST
	}
	return BackendGemini
}

// New constructs the provider for the configured backend. A missing credential
// does not fail construction; the provider reports it on first use.
func New(ctx context.Context, cfg config.AIConfig) Provider {
	switch SelectBackend(cfg) {
	case BackendREST:
		chatModel, err := cfg.NewRESTChatModel(ctx)
		if err != nil {
			log.Printf("[ai] REST chat model unavailable: %v", err)
			chatModel = nil
		}
		return NewRESTProvider(chatModel)
	default:
		var client geminiClient
		if cfg.GeminiAPIKey == "" {
			log.Println("[ai] GEMINI_API_KEY 與 DEEPSEEK_API_KEY 皆未設定，AI 對話將無法使用")
		} else if sdk, err := cfg.NewGeminiClient(ctx); err != nil {
			log.Printf("[ai] Gemini client unavailable: %v", err)
		} else {
			client = newSDKClient(sdk)
		}
		return NewGeminiProvider(client, GeminiOptions{
			Model:    cfg.GeminiModel,
			TTSModel: cfg.GeminiTTSModel,
			Voice:    cfg.GeminiVoice,
		})
	}
}
