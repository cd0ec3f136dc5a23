package ai

import (
	"context"
	"log"
	"strings"
	"sync"

	"google.golang.org/genai"

	"github.com/zhouzirui/parent-coach/backend/internal/audio"
	"github.com/zhouzirui/parent-coach/backend/internal/config"
	"github.com/zhouzirui/parent-coach/backend/internal/model/profile"
)

// chatSession is the part of *genai.Chat the provider relies on.
type chatSession interface {
	SendMessage(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// geminiClient narrows *genai.Client to the calls the provider makes.
type geminiClient interface {
	CreateChat(ctx context.Context, model string, cfg *genai.GenerateContentConfig) (chatSession, error)
	GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error)
}

type sdkClient struct {
	client *genai.Client
}

func newSDKClient(client *genai.Client) *sdkClient {
	return &sdkClient{client: client}
}

func (c *sdkClient) CreateChat(ctx context.Context, model string, cfg *genai.GenerateContentConfig) (chatSession, error) {
	chat, err := c.client.Chats.Create(ctx, model, cfg, nil)
	if err != nil {
		return nil, err
	}
	return chat, nil
}

func (c *sdkClient) GenerateContent(ctx context.Context, model string, contents []*genai.Content, cfg *genai.GenerateContentConfig) (*genai.GenerateContentResponse, error) {
	return c.client.Models.GenerateContent(ctx, model, contents, cfg)
}

// GeminiOptions selects models and the preset voice for the managed backend.
type GeminiOptions struct {
	Model    string
	TTSModel string
	Voice    string
}

// GeminiProvider talks to the managed chat + speech SDK. The SDK chat object
// keeps the conversation history; the provider only swaps it per child.
type GeminiProvider struct {
	client  geminiClient
	opts    GeminiOptions
	prompts *PersonaPromptManager

	mu      sync.Mutex
	chat    chatSession
	childID string
	epoch   uint64
}

// NewGeminiProvider creates the managed-SDK provider. A nil client means the credential is missing.
func NewGeminiProvider(client geminiClient, opts GeminiOptions) *GeminiProvider {
	if opts.Model == "" {
		opts.Model = "gemini-2.5-flash"
	}
	if opts.TTSModel == "" {
		opts.TTSModel = "gemini-2.5-flash-preview-tts"
	}
	if opts.Voice == "" {
		opts.Voice = "Kore"
	}

	return &GeminiProvider{
		client:  client,
		opts:    opts,
		prompts: NewPersonaPromptManager(),
	}
}

func (p *GeminiProvider) Backend() Backend { return BackendGemini }

func (p *GeminiProvider) SupportsSpeech() bool { return true }

// InitializeSession discards any previous chat and starts a new one for child.
func (p *GeminiProvider) InitializeSession(ctx context.Context, child profile.Profile) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.chat = nil
	p.childID = child.ID
	p.epoch++

	if p.client == nil {
		log.Printf("[ai] gemini session for child=%s not created: %v", child.ID, ErrMissingCredential)
		return
	}

	instruction, err := p.prompts.BuildSystemPrompt(ctx, child)
	if err != nil {
		log.Printf("[ai] gemini session for child=%s not created: %v", child.ID, err)
		return
	}

	chat, err := p.client.CreateChat(ctx, p.opts.Model, &genai.GenerateContentConfig{
		SystemInstruction: &genai.Content{Parts: []*genai.Part{{Text: instruction}}},
		Temperature:       ptr(float32(config.Temperature)),
		TopK:              ptr(float32(config.TopK)),
	})
	if err != nil {
		log.Printf("[ai] gemini session for child=%s not created: %v", child.ID, err)
		return
	}

	p.chat = chat
	log.Printf("[ai] gemini session initialized for child=%s model=%s", child.ID, p.opts.Model)
}

// SendMessage forwards text to the active SDK chat.
func (p *GeminiProvider) SendMessage(ctx context.Context, text string) (string, error) {
	p.mu.Lock()
	if p.client == nil {
		p.mu.Unlock()
		return "", newError(KindConfig, BackendGemini, "send", ErrMissingCredential)
	}
	chat := p.chat
	childID := p.childID
	epoch := p.epoch
	p.mu.Unlock()

	if chat == nil {
		return "", newError(KindSequence, BackendGemini, "send", ErrSessionNotInitialized)
	}

	resp, err := chat.SendMessage(ctx, genai.Part{Text: text})
	if p.stale(epoch) {
		log.Printf("[ai] gemini reply for child=%s arrived after session switch", childID)
	}
	if err != nil {
		log.Printf("[ai] gemini send failed child=%s: %v", childID, err)
		return ApologyMessage, newError(KindTransport, BackendGemini, "send", err)
	}

	reply := strings.TrimSpace(responseText(resp))
	if reply == "" {
		log.Printf("[ai] gemini returned empty reply child=%s", childID)
		return ApologyMessage, newError(KindMalformed, BackendGemini, "send", ErrEmptyReply)
	}

	log.Printf("[ai] gemini reply child=%s length=%d", childID, len(reply))
	return reply, nil
}

// SynthesizeSpeech requests 24 kHz mono PCM16 audio for text and decodes it to samples.
func (p *GeminiProvider) SynthesizeSpeech(ctx context.Context, text string) ([]float32, error) {
	if p.client == nil {
		return nil, newError(KindConfig, BackendGemini, "speech", ErrMissingCredential)
	}
	if strings.TrimSpace(text) == "" {
		return nil, newError(KindMalformed, BackendGemini, "speech", ErrEmptySpeechText)
	}

	resp, err := p.client.GenerateContent(ctx, p.opts.TTSModel, genai.Text(text), &genai.GenerateContentConfig{
		ResponseModalities: []string{"AUDIO"},
		SpeechConfig: &genai.SpeechConfig{
			VoiceConfig: &genai.VoiceConfig{
				PrebuiltVoiceConfig: &genai.PrebuiltVoiceConfig{VoiceName: p.opts.Voice},
			},
		},
	})
	if err != nil {
		log.Printf("[ai] gemini speech failed: %v", err)
		return nil, newError(KindTransport, BackendGemini, "speech", err)
	}

	blob := responseAudio(resp)
	if blob == nil || len(blob.Data) == 0 {
		return nil, newError(KindMalformed, BackendGemini, "speech", ErrNoAudio)
	}
	if rate, ok := audio.SampleRateFromMIME(blob.MIMEType); ok && rate != audio.SampleRate {
		log.Printf("[ai] gemini speech sample rate %d differs from expected %d", rate, audio.SampleRate)
	}

	return audio.DecodePCM16(blob.Data), nil
}

func (p *GeminiProvider) stale(epoch uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.epoch != epoch
}

func responseText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	candidate := resp.Candidates[0]
	if candidate == nil || candidate.Content == nil {
		return ""
	}

	var builder strings.Builder
	for _, part := range candidate.Content.Parts {
		if part != nil && !part.Thought {
			builder.WriteString(part.Text)
		}
	}
	return builder.String()
}

func responseAudio(resp *genai.GenerateContentResponse) *genai.Blob {
	if resp == nil {
		return nil
	}
	for _, candidate := range resp.Candidates {
		if candidate == nil || candidate.Content == nil {
			continue
		}
		for _, part := range candidate.Content.Parts {
			if part != nil && part.InlineData != nil {
				return part.InlineData
			}
		}
	}
	return nil
}

func ptr[T any](v T) *T {
	return &v
}
