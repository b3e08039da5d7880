package handler

import (
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/zhouzirui/resume-studio/backend/internal/config"
	"github.com/zhouzirui/resume-studio/backend/internal/handler/job"
	"github.com/zhouzirui/resume-studio/backend/internal/handler/profile"
	sessionHandler "github.com/zhouzirui/resume-studio/backend/internal/handler/session"
	"github.com/zhouzirui/resume-studio/backend/internal/handler/ws"
	middlewarePkg "github.com/zhouzirui/resume-studio/backend/internal/middleware"
	sessionService "github.com/zhouzirui/resume-studio/backend/internal/service/session"
	"github.com/zhouzirui/resume-studio/backend/pkg/utils"
)

// NewRouter wires HTTP routes to core services.
func NewRouter(cfg *config.Config, sessions *sessionService.Registry, parser profile.Parser) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	r.Use(middlewarePkg.CORS(cfg.Server.FrontendURL))

	cookie := utils.SessionCookie{
		MaxAge: cfg.Session.CookieMaxAge,
		Secure: cfg.Server.Production(),
	}

	r.Route("/api", func(api chi.Router) {
		sessionHandler.New(sessions).RegisterRoutes(api)
		profile.New(sessions, parser, cfg.Upload.MaxSize, cookie).RegisterRoutes(api)
		job.New(sessions, cookie).RegisterRoutes(api)
	})

	ws.New(sessions).RegisterRoutes(r)

	if cfg.Server.StaticDir != "" {
		mountStatic(r, cfg.Server.StaticDir)
	}

	return r
}

// mountStatic serves the built frontend, falling back to index.html for
// client-side routes.
func mountStatic(r chi.Router, dir string) {
	fileServer := http.FileServer(http.Dir(dir))
	index := filepath.Join(dir, "index.html")

	r.Get("/*", func(w http.ResponseWriter, req *http.Request) {
		path := filepath.Join(dir, filepath.FromSlash(strings.TrimPrefix(req.URL.Path, "/")))
		if info, err := os.Stat(path); err == nil && !info.IsDir() {
			fileServer.ServeHTTP(w, req)
			return
		}
		http.ServeFile(w, req, index)
	})
}
