package chat_test

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	modelchat "github.com/zhouzirui/parent-coach/backend/internal/model/chat"
	"github.com/zhouzirui/parent-coach/backend/internal/model/profile"
	"github.com/zhouzirui/parent-coach/backend/internal/service/ai"
	chat "github.com/zhouzirui/parent-coach/backend/internal/service/chat"
)

type fakeProvider struct {
	mu       sync.Mutex
	sessions []string
	sent     []string
	reply    string
	err      error
	block    chan struct{}
	entered  chan struct{}
}

func (f *fakeProvider) Backend() ai.Backend  { return ai.BackendREST }
func (f *fakeProvider) SupportsSpeech() bool { return false }

func (f *fakeProvider) InitializeSession(_ context.Context, child profile.Profile) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.sessions = append(f.sessions, child.ID)
}

func (f *fakeProvider) SendMessage(_ context.Context, text string) (string, error) {
	f.mu.Lock()
	f.sent = append(f.sent, text)
	f.mu.Unlock()

	if f.entered != nil {
		f.entered <- struct{}{}
	}
	if f.block != nil {
		<-f.block
	}
	if f.err != nil {
		return ai.UserMessage(f.err), f.err
	}
	return f.reply, nil
}

func (f *fakeProvider) SynthesizeSpeech(context.Context, string) ([]float32, error) {
	return nil, ai.ErrSpeechUnsupported
}

func newServiceWithChild(t *testing.T, provider *fakeProvider) (*chat.Service, profile.Profile) {
	t.Helper()
	svc := chat.NewService(profile.NewMemoryStore(), provider)
	child, err := svc.AddProfile(context.Background(), profile.Input{Name: "小明", Age: 5, Gender: profile.GenderBoy})
	if err != nil {
		t.Fatalf("AddProfile err: %v", err)
	}
	return svc, child
}

func TestAddProfileActivatesAndGreets(t *testing.T) {
	provider := &fakeProvider{}
	svc, child := newServiceWithChild(t, provider)

	state := svc.Snapshot()
	if state.ActiveProfile == nil || state.ActiveProfile.ID != child.ID {
		t.Fatalf("expected %s to be active, got %+v", child.ID, state.ActiveProfile)
	}
	if len(state.Messages) != 1 || state.Messages[0].Role != modelchat.RoleAssistant {
		t.Fatalf("expected a single greeting, got %+v", state.Messages)
	}
	if !strings.Contains(state.Messages[0].Content, "小明") {
		t.Fatalf("greeting should name the child: %q", state.Messages[0].Content)
	}
	if len(provider.sessions) != 1 || provider.sessions[0] != child.ID {
		t.Fatalf("provider not initialized for child: %v", provider.sessions)
	}
	if state.Backend != "rest" || state.Speech {
		t.Fatalf("unexpected backend flags: %+v", state)
	}
}

func TestAddProfileRejectsInvalidInput(t *testing.T) {
	svc := chat.NewService(nil, &fakeProvider{})
	_, err := svc.AddProfile(context.Background(), profile.Input{Name: "小美", Age: 19, Gender: profile.GenderGirl})
	if !errors.Is(err, profile.ErrAgeOutOfRange) {
		t.Fatalf("expected ErrAgeOutOfRange, got %v", err)
	}
	if len(svc.Profiles()) != 0 {
		t.Fatal("invalid profile must not be stored")
	}
}

func TestSendMessageAppendsBothTurns(t *testing.T) {
	provider := &fakeProvider{reply: "試著先蹲下來和他平視。"}
	svc, _ := newServiceWithChild(t, provider)

	reply, err := svc.SendMessage(context.Background(), "  他一直哭怎麼辦？ ")
	if err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}
	if reply.Content != provider.reply || reply.Failed {
		t.Fatalf("unexpected reply: %+v", reply)
	}

	state := svc.Snapshot()
	if len(state.Messages) != 3 {
		t.Fatalf("expected greeting + 2 turns, got %d", len(state.Messages))
	}
	if state.Messages[1].Role != modelchat.RoleUser || state.Messages[1].Content != "他一直哭怎麼辦？" {
		t.Fatalf("unexpected user turn: %+v", state.Messages[1])
	}
	if state.Loading || state.Error != "" {
		t.Fatalf("unexpected status: loading=%v error=%q", state.Loading, state.Error)
	}

	found, err := svc.FindMessage(reply.ID)
	if err != nil || found.Content != reply.Content {
		t.Fatalf("FindMessage mismatch: %+v %v", found, err)
	}
}

func TestSendMessageRecordsFallbackAsFailedTurn(t *testing.T) {
	provider := &fakeProvider{err: errors.New("503 service unavailable")}
	svc, _ := newServiceWithChild(t, provider)

	reply, err := svc.SendMessage(context.Background(), "哈囉")
	if err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}
	if !reply.Failed || reply.Content != ai.ApologyMessage {
		t.Fatalf("expected failed apology turn, got %+v", reply)
	}
	if state := svc.Snapshot(); state.Error != ai.ApologyMessage {
		t.Fatalf("expected error text recorded, got %q", state.Error)
	}
}

func TestSendMessageValidation(t *testing.T) {
	svc := chat.NewService(nil, &fakeProvider{})
	ctx := context.Background()

	if _, err := svc.SendMessage(ctx, "   "); !errors.Is(err, chat.ErrEmptyMessage) {
		t.Fatalf("expected ErrEmptyMessage, got %v", err)
	}
	if _, err := svc.SendMessage(ctx, "hi"); !errors.Is(err, chat.ErrNoActiveProfile) {
		t.Fatalf("expected ErrNoActiveProfile, got %v", err)
	}
	if _, err := svc.Clear(ctx); !errors.Is(err, chat.ErrNoActiveProfile) {
		t.Fatalf("expected ErrNoActiveProfile from Clear, got %v", err)
	}
	if _, err := svc.SelectProfile(ctx, "missing"); !errors.Is(err, chat.ErrProfileNotFound) {
		t.Fatalf("expected ErrProfileNotFound, got %v", err)
	}
}

func TestSendMessageRejectsWhileBusy(t *testing.T) {
	provider := &fakeProvider{reply: "好的", block: make(chan struct{}), entered: make(chan struct{}, 1)}
	svc, _ := newServiceWithChild(t, provider)

	done := make(chan error, 1)
	go func() {
		_, err := svc.SendMessage(context.Background(), "第一則")
		done <- err
	}()
	<-provider.entered

	if !svc.Snapshot().Loading {
		t.Fatal("expected loading while reply pending")
	}
	if _, err := svc.SendMessage(context.Background(), "第二則"); !errors.Is(err, chat.ErrBusy) {
		t.Fatalf("expected ErrBusy, got %v", err)
	}

	close(provider.block)
	if err := <-done; err != nil {
		t.Fatalf("first send err: %v", err)
	}
	if len(provider.sent) != 1 {
		t.Fatalf("busy request must not reach provider: %v", provider.sent)
	}
}

func TestReplyAfterProfileSwitchIsDropped(t *testing.T) {
	provider := &fakeProvider{reply: "給小明的建議", block: make(chan struct{}), entered: make(chan struct{}, 1)}
	svc, _ := newServiceWithChild(t, provider)

	done := make(chan error, 1)
	go func() {
		_, err := svc.SendMessage(context.Background(), "小明不睡覺")
		done <- err
	}()
	<-provider.entered

	other, err := svc.AddProfile(context.Background(), profile.Input{Name: "小美", Age: 3, Gender: profile.GenderGirl})
	if err != nil {
		t.Fatalf("AddProfile err: %v", err)
	}

	close(provider.block)
	if err := <-done; !errors.Is(err, chat.ErrStaleReply) {
		t.Fatalf("expected ErrStaleReply, got %v", err)
	}

	state := svc.Snapshot()
	if state.ActiveProfile.ID != other.ID {
		t.Fatalf("expected second child active")
	}
	if len(state.Messages) != 1 || !strings.Contains(state.Messages[0].Content, "小美") {
		t.Fatalf("stale reply leaked into new transcript: %+v", state.Messages)
	}
}

func TestClearResetsTranscript(t *testing.T) {
	provider := &fakeProvider{reply: "ok"}
	svc, child := newServiceWithChild(t, provider)

	if _, err := svc.SendMessage(context.Background(), "hi"); err != nil {
		t.Fatalf("SendMessage err: %v", err)
	}
	state, err := svc.Clear(context.Background())
	if err != nil {
		t.Fatalf("Clear err: %v", err)
	}
	if len(state.Messages) != 1 {
		t.Fatalf("expected only greeting after clear, got %d", len(state.Messages))
	}
	if len(provider.sessions) != 2 || provider.sessions[1] != child.ID {
		t.Fatalf("expected session re-initialized for same child: %v", provider.sessions)
	}
	if _, err := svc.FindMessage("nope"); !errors.Is(err, chat.ErrMessageNotFound) {
		t.Fatalf("expected ErrMessageNotFound, got %v", err)
	}
}
