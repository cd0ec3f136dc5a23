package speech

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/zhouzirui/parent-coach/backend/internal/audio"
	"github.com/zhouzirui/parent-coach/backend/internal/service/ai"
)

var (
	ErrNothingToSay      = errors.New("nothing left to speak after sanitizing")
	ErrSpeechUnavailable = errors.New("no speech synthesis available for this backend")
)

// Result describes one playback request. Samples is set when the provider
// synthesized audio; Narrated is set when the native narrator took over.
type Result struct {
	Text       string
	Samples    []float32
	SampleRate int
	Narrated   bool
}

// Service 语音服务：清洗文本后交给后端合成，或回退到系统朗读。
type Service struct {
	provider ai.Provider
	narrator Narrator
}

// NewService creates the speech service. narrator may be nil.
func NewService(provider ai.Provider, narrator Narrator) *Service {
	return &Service{provider: provider, narrator: narrator}
}

// Available reports whether any speech path exists.
func (s *Service) Available() bool {
	if s == nil {
		return false
	}
	return (s.provider != nil && s.provider.SupportsSpeech()) || s.narrator != nil
}

// Speak sanitizes text and plays it through the best available path.
// done is only used by the native narrator.
func (s *Service) Speak(ctx context.Context, text string, done func(error)) (*Result, error) {
	clean := Sanitize(text)
	if clean == "" {
		return nil, ErrNothingToSay
	}

	if s.provider != nil && s.provider.SupportsSpeech() {
		samples, err := s.provider.SynthesizeSpeech(ctx, clean)
		if err != nil {
			return nil, fmt.Errorf("synthesize speech: %w", err)
		}
		log.Printf("[speech] synthesized %d samples via %s", len(samples), s.provider.Backend())
		return &Result{Text: clean, Samples: samples, SampleRate: audio.SampleRate}, nil
	}

	if s.narrator != nil {
		if err := s.narrator.Speak(ctx, clean, done); err != nil {
			return nil, fmt.Errorf("native narration: %w", err)
		}
		log.Printf("[speech] native narration started, length=%d", len(clean))
		return &Result{Text: clean, Narrated: true}, nil
	}

	return nil, ErrSpeechUnavailable
}
