package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/resume-studio/backend/internal/config"
	"github.com/zhouzirui/resume-studio/backend/internal/handler"
	"github.com/zhouzirui/resume-studio/backend/internal/service/channel"
	"github.com/zhouzirui/resume-studio/backend/internal/service/orchestration"
	"github.com/zhouzirui/resume-studio/backend/internal/service/parser"
	"github.com/zhouzirui/resume-studio/backend/internal/service/session"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// Load .env file
	if err := godotenv.Load(); err != nil {
		log.Printf("warning: failed to load .env file: %v", err)
		log.Println("continuing with system environment variables only")
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("failed to load configuration: %v", err)
	}
	if cfg.Server.Debug {
		log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	}

	engine := newEngine(ctx, cfg.AI)

	docParser, err := parser.New(ctx)
	if err != nil {
		log.Fatalf("failed to initialize document parser: %v", err)
	}

	channelOpts := channel.Options{
		QueueSize:         cfg.Session.QueueSize,
		GenerationTimeout: cfg.Session.GenerationTimeout,
	}
	wire := func(r *session.Registry, token string) (session.Channel, session.Orchestrator) {
		binding := orchestration.NewBinding(token, r, engine)
		return channel.NewHandler(token, r, binding, channelOpts), binding
	}

	registry := session.NewRegistry(session.Config{
		Timeout:             cfg.Session.Timeout,
		CleanupInterval:     cfg.Session.CleanupInterval,
		MaxDocumentVersions: cfg.Session.MaxResumes,
	}, wire)
	go registry.Run(ctx)

	router := handler.NewRouter(cfg, registry, docParser)

	startServer(ctx, cfg.Server, router)
}

// newEngine returns nil when no model is configured; sessions still work but
// generation requests report an error to the client.
func newEngine(ctx context.Context, aiCfg config.AIConfig) orchestration.Engine {
	if !aiCfg.Enabled() {
		log.Printf("%s 模型凭证未配置，跳过 AI 功能初始化", aiCfg.Provider)
		return nil
	}

	chatModel, err := aiCfg.NewChatModel(ctx)
	if err != nil {
		log.Printf("warning: failed to initialize chat model: %v", err)
		log.Println("continuing without AI functionality - 请检查 AGENTS_* 相关环境变量")
		return nil
	}

	engine, err := orchestration.NewAgentEngine(chatModel, aiCfg.MaxSteps)
	if err != nil {
		log.Printf("warning: failed to initialize agent engine: %v", err)
		return nil
	}

	log.Printf("AI engine initialized provider=%s model=%s", aiCfg.Provider, aiCfg.Model)
	return engine
}

func startServer(ctx context.Context, serverCfg config.ServerConfig, router http.Handler) {
	addr := serverCfg.Addr
	srv := &http.Server{
		Addr:              addr,
		Handler:           router,
		ReadHeaderTimeout: 5 * time.Second,
		IdleTimeout:       120 * time.Second,
	}

	log.Printf("Resume Studio backend listening on %s (environment=%s)", addr, serverCfg.Environment)
	if err := runServer(ctx, srv); err != nil {
		log.Fatalf("server error: %v", err)
	}
}

func runServer(ctx context.Context, srv *http.Server) error {
	errCh := make(chan error, 1)
	go func() {
		errCh <- srv.ListenAndServe()
	}()

	select {
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
		err := <-errCh
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	}
}
