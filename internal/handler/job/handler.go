package job

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"

	sessionModel "github.com/zhouzirui/resume-studio/backend/internal/model/session"
	sessionService "github.com/zhouzirui/resume-studio/backend/internal/service/session"
	"github.com/zhouzirui/resume-studio/backend/pkg/utils"
)

// Sessions 是职位描述流程依赖的会话操作
type Sessions interface {
	CreateIfNeeded(token string) (string, error)
	UpdateJobDescription(token, text string) error
}

// Handler 处理职位描述提交
type Handler struct {
	sessions Sessions
	cookie   utils.SessionCookie
}

// New 创建职位描述处理器
func New(sessions Sessions, cookie utils.SessionCookie) *Handler {
	return &Handler{sessions: sessions, cookie: cookie}
}

// RegisterRoutes 注册职位描述路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/job-description", h.handleSubmit)
}

func (h *Handler) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Description string `json:"description"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	// 先校验再建会话，避免为非法输入创建空会话。
	description, err := sessionService.NormalizeJobDescription(payload.Description)
	switch {
	case errors.Is(err, sessionService.ErrEmptyInput):
		utils.RespondError(w, http.StatusBadRequest, "Job description cannot be empty")
		return
	case errors.Is(err, sessionService.ErrInputTooLong):
		utils.RespondError(w, http.StatusBadRequest, "Job description is too long. Maximum allowed is 10,000 characters")
		return
	case err != nil:
		utils.RespondError(w, http.StatusBadRequest, err.Error())
		return
	}

	token, err := h.sessions.CreateIfNeeded(utils.SessionToken(r))
	if err != nil {
		log.Printf("[job] create session failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	if err := h.sessions.UpdateJobDescription(token, description); err != nil {
		log.Printf("[job] store job description for session=%s failed: %v", token, err)
		utils.RespondError(w, http.StatusInternalServerError, "Failed to store job description")
		return
	}

	h.cookie.Set(w, token)
	utils.RespondJSON(w, http.StatusOK, sessionModel.Response{
		SessionID: token,
		Message:   "Job description stored successfully",
	})
}
