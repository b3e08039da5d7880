package profile

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/go-chi/chi/v5"

	sessionModel "github.com/zhouzirui/resume-studio/backend/internal/model/session"
	"github.com/zhouzirui/resume-studio/backend/internal/service/parser"
	"github.com/zhouzirui/resume-studio/backend/pkg/utils"
)

// 表单字段与 multipart 头部预留空间
const (
	formField         = "file"
	multipartOverhead = 1 << 20

	typeNotAllowed = "File type not allowed. Please upload one of: " + parser.AllowedExtensions
)

// Parser 将上传文件解析为纯文本
type Parser interface {
	Parse(ctx context.Context, filename string, r io.Reader) (string, error)
}

// Sessions 是上传流程依赖的会话操作
type Sessions interface {
	CreateIfNeeded(token string) (string, error)
	UpdateProfile(token string, profile sessionModel.Profile) error
}

// Handler 处理简历文件上传
type Handler struct {
	sessions Sessions
	parser   Parser
	maxSize  int64
	cookie   utils.SessionCookie
}

// New 创建上传处理器
func New(sessions Sessions, p Parser, maxSize int64, cookie utils.SessionCookie) *Handler {
	return &Handler{
		sessions: sessions,
		parser:   p,
		maxSize:  maxSize,
		cookie:   cookie,
	}
}

// RegisterRoutes 注册上传路由
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/user-profile/upload", h.handleUpload)
}

func (h *Handler) handleUpload(w http.ResponseWriter, r *http.Request) {
	tooLarge := fmt.Sprintf("File too large. Maximum size is %s", humanize.IBytes(uint64(h.maxSize)))

	r.Body = http.MaxBytesReader(w, r.Body, h.maxSize+multipartOverhead)
	file, header, err := r.FormFile(formField)
	if err != nil {
		var maxErr *http.MaxBytesError
		if errors.As(err, &maxErr) {
			utils.RespondError(w, http.StatusBadRequest, tooLarge)
			return
		}
		utils.RespondError(w, http.StatusBadRequest, "file is required")
		return
	}
	defer file.Close()

	if !parser.Allowed(header.Filename) {
		utils.RespondError(w, http.StatusBadRequest, typeNotAllowed)
		return
	}

	data, err := io.ReadAll(io.LimitReader(file, h.maxSize+1))
	if err != nil {
		log.Printf("[upload] read file failed: %v", err)
		utils.RespondError(w, http.StatusBadRequest, "failed to read uploaded file")
		return
	}
	if int64(len(data)) > h.maxSize {
		utils.RespondError(w, http.StatusBadRequest, tooLarge)
		return
	}

	text, err := h.parser.Parse(r.Context(), header.Filename, bytes.NewReader(data))
	switch {
	case errors.Is(err, parser.ErrUnsupportedType):
		utils.RespondError(w, http.StatusBadRequest, typeNotAllowed)
		return
	case errors.Is(err, parser.ErrEmptyContent):
		utils.RespondError(w, http.StatusBadRequest, "Uploaded file contains no readable text content")
		return
	case err != nil:
		log.Printf("[upload] parse %s failed: %v", header.Filename, err)
		utils.RespondError(w, http.StatusInternalServerError, "Failed to parse file content")
		return
	}

	token, err := h.sessions.CreateIfNeeded(utils.SessionToken(r))
	if err != nil {
		log.Printf("[upload] create session failed: %v", err)
		utils.RespondError(w, http.StatusInternalServerError, "Failed to create session")
		return
	}

	profile := sessionModel.Profile{
		Filename:    header.Filename,
		ContentType: header.Header.Get("Content-Type"),
		Size:        int64(len(data)),
		Text:        text,
		ParsedAt:    time.Now().UTC(),
	}
	if err := h.sessions.UpdateProfile(token, profile); err != nil {
		log.Printf("[upload] store profile for session=%s failed: %v", token, err)
		utils.RespondError(w, http.StatusInternalServerError, "Failed to store resume data")
		return
	}

	h.cookie.Set(w, token)
	utils.RespondJSON(w, http.StatusOK, sessionModel.Response{
		SessionID: token,
		Message:   "File uploaded and parsed successfully",
	})
}
