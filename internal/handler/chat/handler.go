package chat

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	chatservice "github.com/zhouzirui/parent-coach/backend/internal/service/chat"
	"github.com/zhouzirui/parent-coach/backend/pkg/utils"
)

// Handler 对话服务的HTTP处理器
type Handler struct {
	chatSvc *chatservice.Service
}

// New 创建对话处理器
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes 注册对话相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/conversation", h.handleSnapshot)
	r.Post("/conversation/messages", h.handleSendMessage)
	r.Delete("/conversation", h.handleClear)
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, _ *http.Request) {
	utils.RespondJSON(w, http.StatusOK, h.chatSvc.Snapshot())
}

// handleSendMessage 发送一条家长消息并等待教练回复
func (h *Handler) handleSendMessage(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Text string `json:"text"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	reply, err := h.chatSvc.SendMessage(r.Context(), payload.Text)
	if err != nil {
		utils.RespondError(w, StatusFor(err), err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"reply":        reply,
		"conversation": h.chatSvc.Snapshot(),
	})
}

func (h *Handler) handleClear(w http.ResponseWriter, r *http.Request) {
	state, err := h.chatSvc.Clear(r.Context())
	if err != nil {
		utils.RespondError(w, StatusFor(err), err.Error())
		return
	}
	utils.RespondJSON(w, http.StatusOK, state)
}

// StatusFor maps conversation errors to HTTP status codes.
func StatusFor(err error) int {
	switch {
	case errors.Is(err, chatservice.ErrEmptyMessage):
		return http.StatusBadRequest
	case errors.Is(err, chatservice.ErrNoActiveProfile),
		errors.Is(err, chatservice.ErrBusy),
		errors.Is(err, chatservice.ErrStaleReply):
		return http.StatusConflict
	case errors.Is(err, chatservice.ErrProfileNotFound),
		errors.Is(err, chatservice.ErrMessageNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
