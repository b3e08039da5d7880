package orchestration

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	channelModel "github.com/zhouzirui/resume-studio/backend/internal/model/channel"
	"github.com/zhouzirui/resume-studio/backend/internal/service/session"
)

// DefaultHistoryLimit bounds the turns replayed to the engine.
const DefaultHistoryLimit = 10

// ErrNoEngine is returned by the entry points when no engine is configured.
var ErrNoEngine = errors.New("generation engine unavailable")

// Sessions is the registry view the binding reads and writes through.
type Sessions interface {
	Profile(token string) (string, error)
	JobDescription(token string) (string, error)
	Document(token string, version int) (string, error)
	PutDocument(token, content string, version int) (int, error)
	Versions(token string) ([]int, error)
	Channel(token string) (session.Channel, bool)
}

// Tools is the operation set the engine may call while running. Results are
// plain text; failures are reported as "Error: ..." strings, never as faults.
type Tools interface {
	ReadProfile(ctx context.Context) string
	ReadJobDescription(ctx context.Context) string
	ReadDocument(ctx context.Context, version int) string
	WriteDocument(ctx context.Context, content string, version int) string
	ListDocumentVersions(ctx context.Context) string
	PushDocumentUpdate(ctx context.Context, version int)
	NotifyUser(ctx context.Context, message string)
}

// Turn is one exchange kept in the binding's conversation history.
type Turn struct {
	Role    string
	Content string
}

const (
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

// Request is what the engine is asked to do.
type Request struct {
	Task    string
	History []Turn
}

// Engine produces or refines a document, calling tools zero or more times
// before returning its final text.
type Engine interface {
	Run(ctx context.Context, req Request, tools Tools) (string, error)
}

// Binding is the per-session seam between the channel handler and the engine.
type Binding struct {
	token        string
	sessions     Sessions
	engine       Engine
	historyLimit int

	mu      sync.Mutex
	history []Turn
}

var (
	_ Tools                = (*Binding)(nil)
	_ session.Orchestrator = (*Binding)(nil)
)

// NewBinding creates the binding for token.
func NewBinding(token string, sessions Sessions, engine Engine) *Binding {
	return &Binding{
		token:        token,
		sessions:     sessions,
		engine:       engine,
		historyLimit: DefaultHistoryLimit,
	}
}

// Generate asks the engine to build a new resume. The engine is expected to
// call WriteDocument, PushDocumentUpdate and NotifyUser, in that order.
func (b *Binding) Generate(ctx context.Context) (string, error) {
	return b.run(ctx, generateTask, "Build my resume")
}

// ProcessUserMessage asks the engine to either refine the resume based on
// text or simply reply through NotifyUser.
func (b *Binding) ProcessUserMessage(ctx context.Context, text string) (string, error) {
	return b.run(ctx, fmt.Sprintf(userMessageTask, text), text)
}

func (b *Binding) run(ctx context.Context, task, userTurn string) (string, error) {
	if b.engine == nil {
		return "", ErrNoEngine
	}

	result, err := b.engine.Run(ctx, Request{Task: task, History: b.History()}, b)
	if err != nil {
		return "", fmt.Errorf("engine run: %w", err)
	}

	b.appendHistory(Turn{Role: RoleUser, Content: userTurn}, Turn{Role: RoleAssistant, Content: result})
	log.Printf("[orchestration] session=%s engine returned %d chars", b.token, len(result))
	return result, nil
}

// History returns a copy of the retained conversation turns.
func (b *Binding) History() []Turn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]Turn(nil), b.history...)
}

func (b *Binding) appendHistory(turns ...Turn) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.history = append(b.history, turns...)
	if over := len(b.history) - b.historyLimit; over > 0 {
		b.history = append([]Turn(nil), b.history[over:]...)
	}
}

func (b *Binding) ReadProfile(_ context.Context) string {
	text, err := b.sessions.Profile(b.token)
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return "Error: Session not found"
	case err != nil:
		return "Error: No profile found in session"
	}
	return text
}

func (b *Binding) ReadJobDescription(_ context.Context) string {
	text, err := b.sessions.JobDescription(b.token)
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return "Error: Session not found"
	case err != nil:
		return "Error: No job description found in session"
	}
	return text
}

func (b *Binding) ReadDocument(_ context.Context, version int) string {
	content, err := b.sessions.Document(b.token, version)
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return "Error: Session not found"
	case err != nil || content == "":
		return "Error: No resume found for the session"
	}
	return content
}

func (b *Binding) WriteDocument(_ context.Context, content string, version int) string {
	content = stripCodeFence(content)
	if strings.TrimSpace(content) == "" {
		return "Error: Resume cannot be empty"
	}

	assigned, err := b.sessions.PutDocument(b.token, content, version)
	switch {
	case errors.Is(err, session.ErrSessionNotFound):
		return "Error: Session not found"
	case err != nil:
		log.Printf("[orchestration] session=%s save resume failed: %v", b.token, err)
		return "Error: Failed to save resume"
	}
	return fmt.Sprintf("Success: Resume saved as version %d", assigned)
}

func (b *Binding) ListDocumentVersions(_ context.Context) string {
	versions, err := b.sessions.Versions(b.token)
	if err != nil {
		return "[]"
	}
	parts := make([]string, 0, len(versions))
	for _, v := range versions {
		parts = append(parts, fmt.Sprint(v))
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func (b *Binding) PushDocumentUpdate(_ context.Context, version int) {
	content, err := b.sessions.Document(b.token, version)
	if err != nil || content == "" {
		return
	}
	ch, ok := b.sessions.Channel(b.token)
	if !ok {
		return
	}
	ch.Emit(channelModel.ResumeUpdated(content))
}

func (b *Binding) NotifyUser(_ context.Context, message string) {
	if strings.TrimSpace(message) == "" {
		return
	}
	ch, ok := b.sessions.Channel(b.token)
	if !ok {
		return
	}
	ch.Emit(channelModel.AgentResponse(message))
}

// stripCodeFence removes a surrounding ``` block, e.g. ```html ... ```.
func stripCodeFence(content string) string {
	trimmed := strings.TrimSpace(content)
	if !strings.HasPrefix(trimmed, "```") {
		return content
	}

	body := trimmed[3:]
	if idx := strings.IndexByte(body, '\n'); idx >= 0 {
		body = body[idx+1:]
	} else {
		body = ""
	}
	body = strings.TrimSpace(body)
	body = strings.TrimSuffix(body, "```")
	return strings.TrimSpace(body)
}
