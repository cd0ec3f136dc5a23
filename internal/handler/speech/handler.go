package speech

import (
	"context"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/parent-coach/backend/internal/audio"
	"github.com/zhouzirui/parent-coach/backend/internal/service/ai"
	chatservice "github.com/zhouzirui/parent-coach/backend/internal/service/chat"
	speechsvc "github.com/zhouzirui/parent-coach/backend/internal/service/speech"
	"github.com/zhouzirui/parent-coach/backend/pkg/utils"
)

// SpeechService 抽象语音业务，便于测试与替换实现
type SpeechService interface {
	Available() bool
	Speak(ctx context.Context, text string, done func(error)) (*speechsvc.Result, error)
}

// Handler 语音服务的HTTP处理器
type Handler struct {
	speechSvc SpeechService
	chatSvc   *chatservice.Service
}

// New 创建语音处理器
func New(speechSvc SpeechService, chatSvc *chatservice.Service) *Handler {
	return &Handler{
		speechSvc: speechSvc,
		chatSvc:   chatSvc,
	}
}

// RegisterRoutes 注册语音相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/speech", h.handleSpeak)
}

type speakRequest struct {
	Text      string `json:"text"`
	MessageID string `json:"messageId"`
}

// handleSpeak 朗读指定文本或对话中的某条消息
func (h *Handler) handleSpeak(w http.ResponseWriter, r *http.Request) {
	if h.speechSvc == nil || !h.speechSvc.Available() {
		utils.RespondError(w, http.StatusNotImplemented, speechsvc.ErrSpeechUnavailable.Error())
		return
	}

	var req speakRequest
	if err := utils.DecodeJSON(r, &req); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	text, err := ResolveText(h.chatSvc, req.Text, req.MessageID)
	if err != nil {
		utils.RespondError(w, StatusFor(err), err.Error())
		return
	}

	// 本机朗读在响应结束后继续播放，不能跟随请求取消。
	ctx := context.WithoutCancel(r.Context())
	result, err := h.speechSvc.Speak(ctx, text, func(err error) {
		if err != nil {
			log.Printf("[speech] narration finished with error: %v", err)
		}
	})
	if err != nil {
		log.Printf("[speech] speak failed: %v", err)
		utils.RespondError(w, StatusFor(err), MessageFor(err))
		return
	}

	if result.Narrated {
		utils.RespondJSON(w, http.StatusAccepted, map[string]string{"status": "narrating"})
		return
	}

	utils.RespondBinary(w, "audio/wav", "speech.wav", audio.EncodeWAV(result.Samples, result.SampleRate))
}

// ResolveText picks the explicit text, or the content of messageID in the transcript.
func ResolveText(chatSvc *chatservice.Service, text, messageID string) (string, error) {
	if strings.TrimSpace(text) != "" {
		return text, nil
	}
	if messageID == "" || chatSvc == nil {
		return "", speechsvc.ErrNothingToSay
	}

	message, err := chatSvc.FindMessage(messageID)
	if err != nil {
		return "", err
	}
	return message.Content, nil
}

// StatusFor maps speech failures to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, speechsvc.ErrNothingToSay):
		return http.StatusBadRequest
	case errors.Is(err, chatservice.ErrMessageNotFound):
		return http.StatusNotFound
	case errors.Is(err, speechsvc.ErrSpeechUnavailable),
		errors.Is(err, speechsvc.ErrNarratorUnavailable):
		return http.StatusNotImplemented
	}

	switch ai.KindOf(err) {
	case ai.KindConfig:
		return http.StatusServiceUnavailable
	default:
		return http.StatusBadGateway
	}
}

// MessageFor returns the text shown to the parent for a speech failure.
func MessageFor(err error) string {
	var aiErr *ai.Error
	if errors.As(err, &aiErr) {
		return ai.UserMessage(err)
	}
	return err.Error()
}
