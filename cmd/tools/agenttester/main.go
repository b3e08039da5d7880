package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/zhouzirui/resume-studio/backend/internal/config"
	channelModel "github.com/zhouzirui/resume-studio/backend/internal/model/channel"
	sessionModel "github.com/zhouzirui/resume-studio/backend/internal/model/session"
	"github.com/zhouzirui/resume-studio/backend/internal/service/orchestration"
	"github.com/zhouzirui/resume-studio/backend/internal/service/parser"
	"github.com/zhouzirui/resume-studio/backend/internal/service/session"
)

// consoleChannel 把推送给客户端的事件打印到终端
type consoleChannel struct{}

func (consoleChannel) Attach(session.Conn) {}
func (consoleChannel) Detach(session.Conn) {}
func (consoleChannel) Close()              {}

func (consoleChannel) Emit(event channelModel.Outbound) {
	switch event.Type {
	case channelModel.EventResumeUpdated:
		log.Printf("[event] %s (%d bytes)", event.Type, len(event.Data))
	default:
		log.Printf("[event] %s %s", event.Type, event.Message)
	}
}

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds)

	if err := godotenv.Load(); err != nil {
		log.Printf("[WARN] 无法加载 .env，改用系统环境变量: %v", err)
	}

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("配置加载失败: %v", err)
	}

	profilePath := flag.String("profile", "", "简历文件路径 (.txt/.md/.docx)")
	jdPath := flag.String("jd", "", "职位描述文本文件路径")
	message := flag.String("message", "", "生成后追加的修改意见，留空则只生成一次")
	outputPath := flag.String("out", "", "输出 HTML 文件路径 (默认自动生成)")
	timeout := flag.Duration("timeout", 5*time.Minute, "整体超时时间")

	flag.Parse()

	if *profilePath == "" || *jdPath == "" {
		flag.Usage()
		log.Fatal("请通过 -profile 与 -jd 指定输入文件")
	}

	if !cfg.AI.Enabled() {
		log.Fatalf("%s 模型未配置，请先设置 AGENTS_MODEL_ID 与 AGENTS_API_KEY", cfg.AI.Provider)
	}

	ctx, cancel := context.WithTimeout(context.Background(), *timeout)
	defer cancel()

	chatModel, err := cfg.AI.NewChatModel(ctx)
	if err != nil {
		log.Fatalf("模型初始化失败: %v", err)
	}
	engine, err := orchestration.NewAgentEngine(chatModel, cfg.AI.MaxSteps)
	if err != nil {
		log.Fatalf("引擎初始化失败: %v", err)
	}

	var binding *orchestration.Binding
	registry := session.NewRegistry(session.Config{MaxDocumentVersions: cfg.Session.MaxResumes},
		func(r *session.Registry, token string) (session.Channel, session.Orchestrator) {
			binding = orchestration.NewBinding(token, r, engine)
			return consoleChannel{}, binding
		})

	token, err := registry.Create()
	if err != nil {
		log.Fatalf("创建会话失败: %v", err)
	}

	if err := loadInputs(ctx, registry, token, *profilePath, *jdPath); err != nil {
		log.Fatalf("读取输入失败: %v", err)
	}

	log.Printf("开始生成简历: session=%s provider=%s model=%s", token, cfg.AI.Provider, cfg.AI.Model)
	start := time.Now()
	if _, err := binding.Generate(ctx); err != nil {
		log.Fatalf("生成失败: %v", err)
	}
	log.Printf("生成完成，用时 %s", time.Since(start).Round(time.Millisecond))

	if strings.TrimSpace(*message) != "" {
		log.Printf("提交修改意见: %q", *message)
		if _, err := binding.ProcessUserMessage(ctx, *message); err != nil {
			log.Fatalf("修改失败: %v", err)
		}
	}

	writeLatest(registry, token, *outputPath)
}

func loadInputs(ctx context.Context, registry *session.Registry, token, profilePath, jdPath string) error {
	docParser, err := parser.New(ctx)
	if err != nil {
		return err
	}

	file, err := os.Open(profilePath)
	if err != nil {
		return fmt.Errorf("open profile: %w", err)
	}
	defer file.Close()

	text, err := docParser.Parse(ctx, filepath.Base(profilePath), file)
	if err != nil {
		return err
	}
	if err := registry.UpdateProfile(token, sessionModel.Profile{Filename: filepath.Base(profilePath), Text: text}); err != nil {
		return err
	}

	jd, err := os.ReadFile(jdPath)
	if err != nil {
		return fmt.Errorf("read job description: %w", err)
	}
	return registry.UpdateJobDescription(token, string(jd))
}

func writeLatest(registry *session.Registry, token, outputPath string) {
	versions, err := registry.Versions(token)
	if err != nil {
		log.Fatalf("读取版本失败: %v", err)
	}
	content, err := registry.Document(token, 0)
	if err != nil {
		log.Fatalf("模型没有保存任何简历: %v", err)
	}

	if outputPath == "" {
		outputPath = fmt.Sprintf("resume-%d.html", time.Now().Unix())
	}
	if err := os.WriteFile(outputPath, []byte(content), 0o644); err != nil {
		log.Fatalf("写入文件失败: %v", err)
	}
	log.Printf("已保存版本 %v，最新版本写入 %s", versions, outputPath)
}
