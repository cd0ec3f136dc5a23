package ai

import (
	"context"
	"log"
	"strings"
	"sync"

	"github.com/cloudwego/eino/components/model"
	"github.com/cloudwego/eino/schema"

	"github.com/zhouzirui/parent-coach/backend/internal/model/profile"
)

// RESTProvider talks to an OpenAI-compatible chat-completions endpoint. It has
// no server-side session, so it keeps the full role-tagged history locally and
// posts all of it on every turn.
type RESTProvider struct {
	chatModel model.BaseChatModel
	prompts   *PersonaPromptManager

	mu      sync.Mutex
	history []*schema.Message
	childID string
	epoch   uint64
}

// NewRESTProvider creates the REST provider. A nil chat model means the credential is missing.
func NewRESTProvider(chatModel model.BaseChatModel) *RESTProvider {
	return &RESTProvider{
		chatModel: chatModel,
		prompts:   NewPersonaPromptManager(),
	}
}

func (p *RESTProvider) Backend() Backend { return BackendREST }

func (p *RESTProvider) SupportsSpeech() bool { return false }

// InitializeSession replaces the history with a single system message for child.
func (p *RESTProvider) InitializeSession(ctx context.Context, child profile.Profile) {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.history = nil
	p.childID = child.ID
	p.epoch++

	if p.chatModel == nil {
		log.Printf("[ai] rest session for child=%s not created: %v", child.ID, ErrMissingCredential)
		return
	}

	instruction, err := p.prompts.BuildSystemPrompt(ctx, child)
	if err != nil {
		log.Printf("[ai] rest session for child=%s not created: %v", child.ID, err)
		return
	}

	p.history = []*schema.Message{schema.SystemMessage(instruction)}
	log.Printf("[ai] rest session initialized for child=%s", child.ID)
}

// SendMessage appends text, posts the whole history and records the reply.
// On failure the apology is recorded as the assistant turn so the next
// request still alternates user and assistant roles.
func (p *RESTProvider) SendMessage(ctx context.Context, text string) (string, error) {
	p.mu.Lock()
	if p.chatModel == nil {
		p.mu.Unlock()
		return "", newError(KindConfig, BackendREST, "send", ErrMissingCredential)
	}
	if p.history == nil {
		p.mu.Unlock()
		return "", newError(KindSequence, BackendREST, "send", ErrSessionNotInitialized)
	}

	p.history = append(p.history, schema.UserMessage(text))
	request := append([]*schema.Message(nil), p.history...)
	childID := p.childID
	epoch := p.epoch
	p.mu.Unlock()

	reply, sendErr := p.generate(ctx, request)
	if sendErr != nil {
		log.Printf("[ai] rest send failed child=%s: %v", childID, sendErr)
		reply = UserMessage(sendErr)
	}

	p.mu.Lock()
	if p.epoch == epoch {
		p.history = append(p.history, schema.AssistantMessage(reply, nil))
	} else {
		log.Printf("[ai] rest reply for child=%s dropped after session switch", childID)
	}
	p.mu.Unlock()

	if sendErr != nil {
		return reply, sendErr
	}
	log.Printf("[ai] rest reply child=%s length=%d", childID, len(reply))
	return reply, nil
}

func (p *RESTProvider) generate(ctx context.Context, messages []*schema.Message) (string, error) {
	resp, err := p.chatModel.Generate(ctx, messages)
	if err != nil {
		return "", newError(KindTransport, BackendREST, "send", err)
	}
	if resp == nil || strings.TrimSpace(resp.Content) == "" {
		return "", newError(KindMalformed, BackendREST, "send", ErrEmptyReply)
	}
	return strings.TrimSpace(resp.Content), nil
}

// SynthesizeSpeech always fails: the REST provider offers no speech endpoint.
func (p *RESTProvider) SynthesizeSpeech(context.Context, string) ([]float32, error) {
	return nil, newError(KindConfig, BackendREST, "speech", ErrSpeechUnsupported)
}

// History returns a copy of the locally held conversation.
func (p *RESTProvider) History() []*schema.Message {
	p.mu.Lock()
	defer p.mu.Unlock()

	copied := make([]*schema.Message, len(p.history))
	for i, msg := range p.history {
		clone := *msg
		copied[i] = &clone
	}
	return copied
}
