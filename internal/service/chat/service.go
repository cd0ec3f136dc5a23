package chat

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/zhouzirui/parent-coach/backend/internal/model/chat"
	"github.com/zhouzirui/parent-coach/backend/internal/model/profile"
	"github.com/zhouzirui/parent-coach/backend/internal/service/ai"
)

var (
	ErrEmptyMessage    = errors.New("message text is required")
	ErrNoActiveProfile = errors.New("no child profile is active")
	ErrProfileNotFound = errors.New("profile not found")
	ErrBusy            = errors.New("a reply is already pending")
	ErrStaleReply      = errors.New("reply belongs to a previous conversation")
	ErrMessageNotFound = errors.New("message not found")
)

// Service 维护当前孩子档案、对话记录与请求状态。
type Service struct {
	profiles profile.Store
	provider ai.Provider

	mu         sync.Mutex
	activeID   string
	transcript []chat.Message
	loading    bool
	lastErr    string
	generation uint64
	speech     bool
}

// NewService wires the conversation state to a profile store and provider.
func NewService(profiles profile.Store, provider ai.Provider) *Service {
	if profiles == nil {
		profiles = profile.NewMemoryStore()
	}
	return &Service{
		profiles:   profiles,
		provider:   provider,
		transcript: make([]chat.Message, 0, 16),
		speech:     provider != nil && provider.SupportsSpeech(),
	}
}

// SetSpeechAvailable overrides the speech flag reported in snapshots,
// e.g. when a native narrator covers a backend without synthesis.
func (s *Service) SetSpeechAvailable(available bool) {
	s.mu.Lock()
	s.speech = available
	s.mu.Unlock()
}

// AddProfile validates and stores a new child profile, then makes it active.
func (s *Service) AddProfile(ctx context.Context, in profile.Input) (profile.Profile, error) {
	p, err := profile.New(in)
	if err != nil {
		return profile.Profile{}, err
	}

	s.profiles.Add(p)
	log.Printf("[chat] profile added id=%s", p.ID)

	if _, err := s.SelectProfile(ctx, p.ID); err != nil {
		return profile.Profile{}, err
	}
	return p, nil
}

// Profiles lists stored profiles in creation order.
func (s *Service) Profiles() []profile.Profile {
	return s.profiles.List()
}

// SelectProfile switches the active child and starts a fresh conversation.
func (s *Service) SelectProfile(ctx context.Context, id string) (chat.State, error) {
	p, ok := s.profiles.FindByID(strings.TrimSpace(id))
	if !ok {
		return chat.State{}, ErrProfileNotFound
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.activeID = p.ID
	s.resetLocked(ctx, p)
	log.Printf("[chat] active profile id=%s generation=%d", p.ID, s.generation)
	return s.snapshotLocked(), nil
}

// Clear restarts the conversation for the active child.
func (s *Service) Clear(ctx context.Context) (chat.State, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.activeLocked()
	if !ok {
		return chat.State{}, ErrNoActiveProfile
	}

	s.resetLocked(ctx, p)
	log.Printf("[chat] conversation cleared id=%s generation=%d", p.ID, s.generation)
	return s.snapshotLocked(), nil
}

// SendMessage records the parent's turn, asks the provider and records the reply.
// The returned message is the assistant turn; it is marked Failed when the
// provider fell back to an error text.
func (s *Service) SendMessage(ctx context.Context, text string) (chat.Message, error) {
	return s.SendMessageNotify(ctx, text, nil)
}

// SendMessageNotify behaves like SendMessage and calls pending with the
// snapshot taken right after the parent's turn was recorded.
func (s *Service) SendMessageNotify(ctx context.Context, text string, pending func(chat.State)) (chat.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return chat.Message{}, ErrEmptyMessage
	}

	if s.provider == nil {
		return chat.Message{}, ai.ErrMissingCredential
	}

	s.mu.Lock()
	if _, ok := s.activeLocked(); !ok {
		s.mu.Unlock()
		return chat.Message{}, ErrNoActiveProfile
	}
	if s.loading {
		s.mu.Unlock()
		return chat.Message{}, ErrBusy
	}
	s.transcript = append(s.transcript, newMessage(chat.RoleUser, text))
	s.loading = true
	s.lastErr = ""
	generation := s.generation
	snapshot := s.snapshotLocked()
	s.mu.Unlock()

	if pending != nil {
		pending(snapshot)
	}

	reply, err := s.provider.SendMessage(ctx, text)

	s.mu.Lock()
	defer s.mu.Unlock()

	if generation != s.generation {
		log.Printf("[chat] dropping reply from generation=%d, current=%d", generation, s.generation)
		return chat.Message{}, ErrStaleReply
	}

	s.loading = false
	message := newMessage(chat.RoleAssistant, reply)
	if err != nil {
		log.Printf("[chat] provider failed kind=%s: %v", ai.KindOf(err), err)
		message.Content = ai.UserMessage(err)
		message.Failed = true
		s.lastErr = message.Content
	}
	s.transcript = append(s.transcript, message)
	return message, nil
}

// Snapshot returns a copy of the current conversation state.
func (s *Service) Snapshot() chat.State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.snapshotLocked()
}

// FindMessage looks up a transcript turn by identifier.
func (s *Service) FindMessage(id string) (chat.Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, message := range s.transcript {
		if message.ID == id {
			return message, nil
		}
	}
	return chat.Message{}, ErrMessageNotFound
}

// Provider exposes the adapter the conversation is bound to.
func (s *Service) Provider() ai.Provider {
	return s.provider
}

func (s *Service) activeLocked() (profile.Profile, bool) {
	if s.activeID == "" {
		return profile.Profile{}, false
	}
	return s.profiles.FindByID(s.activeID)
}

// resetLocked 重建会话并以问候语开始新的记录。调用方需持有锁。
func (s *Service) resetLocked(ctx context.Context, p profile.Profile) {
	s.generation++
	s.loading = false
	s.lastErr = ""
	if s.provider != nil {
		s.provider.InitializeSession(ctx, p)
	}
	s.transcript = []chat.Message{newMessage(chat.RoleAssistant, ai.Greeting(p))}
}

func (s *Service) snapshotLocked() chat.State {
	state := chat.State{
		Messages: append([]chat.Message(nil), s.transcript...),
		Loading:  s.loading,
		Error:    s.lastErr,
		Speech:   s.speech,
	}
	if s.provider != nil {
		state.Backend = string(s.provider.Backend())
	}
	if p, ok := s.activeLocked(); ok {
		state.ActiveProfile = &p
	}
	return state
}

func newMessage(role chat.Role, content string) chat.Message {
	return chat.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: time.Now().UTC(),
	}
}
