package session

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/zhouzirui/resume-studio/backend/pkg/utils"
)

// Validator 判断会话令牌是否有效
type Validator interface {
	IsValid(token string) bool
}

// Handler 提供会话校验与健康检查
type Handler struct {
	sessions Validator
}

// New 创建会话处理器
func New(sessions Validator) *Handler {
	return &Handler{sessions: sessions}
}

// RegisterRoutes 注册会话相关路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Get("/ping", h.handlePing)
	r.Get("/session/validate", h.handleValidate)
}

func (h *Handler) handlePing(w http.ResponseWriter, r *http.Request) {
	utils.RespondJSON(w, http.StatusOK, map[string]bool{"ok": true})
}

type validateResponse struct {
	Valid     bool   `json:"valid"`
	SessionID string `json:"session_id,omitempty"`
	Message   string `json:"message,omitempty"`
}

func (h *Handler) handleValidate(w http.ResponseWriter, r *http.Request) {
	token := utils.SessionToken(r)
	if token == "" {
		utils.RespondJSON(w, http.StatusOK, validateResponse{Message: "No session ID provided"})
		return
	}
	if !h.sessions.IsValid(token) {
		utils.RespondJSON(w, http.StatusOK, validateResponse{Message: "Session not found"})
		return
	}
	utils.RespondJSON(w, http.StatusOK, validateResponse{Valid: true, SessionID: token})
}
