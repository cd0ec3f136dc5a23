package ai

import (
	"errors"
	"fmt"
)

var (
	ErrSessionNotInitialized = errors.New("ai session not initialized")
	ErrMissingCredential     = errors.New("ai credential missing")
	ErrSpeechUnsupported     = errors.New("speech synthesis not supported by backend")
	ErrEmptyReply            = errors.New("ai reply is empty")
	ErrNoAudio               = errors.New("speech response carried no audio")
	ErrEmptySpeechText       = errors.New("speech text is empty")
)

// 面向用户的固定提示文案。
const (
	ApologyMessage     = "抱歉，我現在無法回覆，請稍後再試一次。"
	ConfigErrorMessage = "系統設定有誤，目前無法連線到 AI 服務，請聯絡管理員。"
	NoSessionMessage   = "請先選擇或新增一位孩子的檔案，再開始對話。"
)

// Kind classifies adapter failures.
type Kind int

const (
	KindUnknown Kind = iota
	KindConfig
	KindTransport
	KindMalformed
	KindSequence
)

func (k Kind) String() string {
	switch k {
	case KindConfig:
		return "config"
	case KindTransport:
		return "transport"
	case KindMalformed:
		return "malformed"
	case KindSequence:
		return "sequence"
	default:
		return "unknown"
	}
}

// Error wraps a backend failure with its kind.
type Error struct {
	Kind    Kind
	Backend Backend
	Op      string
	Err     error
}

func (e *Error) Error() string {
	return fmt.Sprintf("%s %s (%s): %v", e.Backend, e.Op, e.Kind, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}

func newError(kind Kind, backend Backend, op string, err error) *Error {
	return &Error{Kind: kind, Backend: backend, Op: op, Err: err}
}

// KindOf reports the failure kind carried by err.
func KindOf(err error) Kind {
	if err == nil {
		return KindUnknown
	}

	var aiErr *Error
	if errors.As(err, &aiErr) && aiErr.Kind != KindUnknown {
		return aiErr.Kind
	}

	switch {
	case errors.Is(err, ErrMissingCredential), errors.Is(err, ErrSpeechUnsupported):
		return KindConfig
	case errors.Is(err, ErrSessionNotInitialized):
		return KindSequence
	case errors.Is(err, ErrEmptyReply), errors.Is(err, ErrNoAudio), errors.Is(err, ErrEmptySpeechText):
		return KindMalformed
	default:
		return KindTransport
	}
}

// UserMessage maps any adapter error to the text shown in the transcript.
func UserMessage(err error) string {
	switch KindOf(err) {
	case KindConfig:
		return ConfigErrorMessage
	case KindSequence:
		return NoSessionMessage
	default:
		return ApologyMessage
	}
}
