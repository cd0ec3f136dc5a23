package profile

import (
	"errors"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/parent-coach/backend/internal/model/profile"
	chatservice "github.com/zhouzirui/parent-coach/backend/internal/service/chat"
	"github.com/zhouzirui/parent-coach/backend/pkg/utils"
)

// Handler 孩子档案的HTTP处理器
type Handler struct {
	chatSvc *chatservice.Service
}

// New 创建档案处理器
func New(chatSvc *chatservice.Service) *Handler {
	return &Handler{chatSvc: chatSvc}
}

// RegisterRoutes 注册档案相关的路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/profiles", h.handleListProfiles)
	r.Post("/profiles", h.handleCreateProfile)
	r.Put("/profiles/active", h.handleSelectProfile)
}

func (h *Handler) handleListProfiles(w http.ResponseWriter, _ *http.Request) {
	snapshot := h.chatSvc.Snapshot()
	activeID := ""
	if snapshot.ActiveProfile != nil {
		activeID = snapshot.ActiveProfile.ID
	}

	utils.RespondJSON(w, http.StatusOK, map[string]any{
		"profiles": h.chatSvc.Profiles(),
		"activeId": activeID,
	})
}

// handleCreateProfile 新增档案并立即切换到该孩子
func (h *Handler) handleCreateProfile(w http.ResponseWriter, r *http.Request) {
	var input profile.Input
	if err := utils.DecodeJSON(r, &input); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	created, err := h.chatSvc.AddProfile(r.Context(), input)
	if err != nil {
		utils.RespondError(w, statusFor(err), err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusCreated, map[string]any{
		"profile":      created,
		"conversation": h.chatSvc.Snapshot(),
	})
}

func (h *Handler) handleSelectProfile(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		ID string `json:"id"`
	}
	if err := utils.DecodeJSON(r, &payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}
	if payload.ID == "" {
		utils.RespondError(w, http.StatusBadRequest, "id is required")
		return
	}

	state, err := h.chatSvc.SelectProfile(r.Context(), payload.ID)
	if err != nil {
		utils.RespondError(w, statusFor(err), err.Error())
		return
	}

	utils.RespondJSON(w, http.StatusOK, state)
}

func statusFor(err error) int {
	switch {
	case errors.Is(err, profile.ErrNameRequired),
		errors.Is(err, profile.ErrAgeOutOfRange),
		errors.Is(err, profile.ErrInvalidGender):
		return http.StatusBadRequest
	case errors.Is(err, chatservice.ErrProfileNotFound):
		return http.StatusNotFound
	default:
		return http.StatusInternalServerError
	}
}
