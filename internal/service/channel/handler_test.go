package channel

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	channelModel "github.com/zhouzirui/resume-studio/backend/internal/model/channel"
	sessionModel "github.com/zhouzirui/resume-studio/backend/internal/model/session"
	"github.com/zhouzirui/resume-studio/backend/internal/service/session"
)

type recordingConn struct {
	mu     sync.Mutex
	events []channelModel.Outbound
	notify chan channelModel.Outbound
	err    error
}

func newRecordingConn() *recordingConn {
	return &recordingConn{notify: make(chan channelModel.Outbound, 64)}
}

func (c *recordingConn) WriteJSON(v any) error {
	event, ok := v.(channelModel.Outbound)
	if !ok {
		return errors.New("unexpected payload")
	}
	c.mu.Lock()
	c.events = append(c.events, event)
	c.mu.Unlock()
	c.notify <- event
	return c.err
}

func (c *recordingConn) types() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, 0, len(c.events))
	for _, e := range c.events {
		out = append(out, e.Type)
	}
	return out
}

func (c *recordingConn) waitFor(t *testing.T, eventType string) channelModel.Outbound {
	t.Helper()
	timeout := time.After(2 * time.Second)
	for {
		select {
		case e := <-c.notify:
			if e.Type == eventType {
				return e
			}
		case <-timeout:
			t.Fatalf("timed out waiting for %s, got %v", eventType, c.types())
		}
	}
}

type fakeOrchestrator struct {
	mu       sync.Mutex
	calls    int
	messages []string
	generate func(ctx context.Context) (string, error)
	process  func(ctx context.Context, text string) (string, error)
}

func (f *fakeOrchestrator) Generate(ctx context.Context) (string, error) {
	f.mu.Lock()
	f.calls++
	f.mu.Unlock()
	if f.generate != nil {
		return f.generate(ctx)
	}
	return "done", nil
}

func (f *fakeOrchestrator) ProcessUserMessage(ctx context.Context, text string) (string, error) {
	f.mu.Lock()
	f.calls++
	f.messages = append(f.messages, text)
	f.mu.Unlock()
	if f.process != nil {
		return f.process(ctx, text)
	}
	return "ok", nil
}

func (f *fakeOrchestrator) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func setup(t *testing.T, orch *fakeOrchestrator, opts Options) (*Handler, *session.Registry, string, *recordingConn) {
	t.Helper()
	reg := session.NewRegistry(session.DefaultConfig(), nil)
	token, err := reg.Create()
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}
	h := NewHandler(token, reg, orch, opts)
	t.Cleanup(h.Close)
	conn := newRecordingConn()
	h.Attach(conn)
	return h, reg, token, conn
}

func makeReady(t *testing.T, reg *session.Registry, token string) {
	t.Helper()
	if err := reg.UpdateProfile(token, sessionModel.Profile{Filename: "cv.txt", Text: "Go developer"}); err != nil {
		t.Fatalf("UpdateProfile err: %v", err)
	}
	if err := reg.UpdateJobDescription(token, "Backend engineer"); err != nil {
		t.Fatalf("UpdateJobDescription err: %v", err)
	}
}

func equalTypes(got, want []string) bool {
	if len(got) != len(want) {
		return false
	}
	for i := range got {
		if got[i] != want[i] {
			return false
		}
	}
	return true
}

func TestConnectAcknowledges(t *testing.T) {
	h, _, token, conn := setup(t, &fakeOrchestrator{}, Options{})

	if err := h.Submit(channelModel.Inbound{Type: "connect"}); err != nil {
		t.Fatalf("Submit err: %v", err)
	}
	event := conn.waitFor(t, channelModel.EventConnected)
	if event.SessionID != token {
		t.Fatalf("expected session id %s, got %s", token, event.SessionID)
	}
	if h.State() != StateBound {
		t.Fatalf("expected bound, got %s", h.State())
	}
}

func TestGenerateWithoutInputsEmitsSingleError(t *testing.T) {
	orch := &fakeOrchestrator{}
	h, _, _, conn := setup(t, orch, Options{})

	h.process(channelModel.Inbound{Type: "generate"})

	if got := conn.types(); !equalTypes(got, []string{channelModel.EventError}) {
		t.Fatalf("expected single error event, got %v", got)
	}
	if orch.callCount() != 0 {
		t.Fatal("expected engine not invoked")
	}
}

func TestGenerateSuccessEnvelope(t *testing.T) {
	orch := &fakeOrchestrator{}
	h, reg, token, conn := setup(t, orch, Options{})
	makeReady(t, reg, token)

	orch.generate = func(context.Context) (string, error) {
		if h.State() != StateBusy {
			t.Errorf("expected busy during generation, got %s", h.State())
		}
		return "done", nil
	}

	h.process(channelModel.Inbound{Type: "generate"})

	want := []string{channelModel.EventInProgress, channelModel.EventCompleted}
	if got := conn.types(); !equalTypes(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if h.State() != StateBound {
		t.Fatalf("expected bound after completion, got %s", h.State())
	}
}

func TestGenerateFailureHidesDetail(t *testing.T) {
	orch := &fakeOrchestrator{generate: func(context.Context) (string, error) {
		return "", errors.New("upstream 500: secret stack trace")
	}}
	h, reg, token, conn := setup(t, orch, Options{})
	makeReady(t, reg, token)

	h.process(channelModel.Inbound{Type: "generate"})

	want := []string{channelModel.EventInProgress, channelModel.EventError, channelModel.EventCompleted}
	if got := conn.types(); !equalTypes(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if msg := conn.events[1].Message; strings.Contains(msg, "secret") {
		t.Fatalf("internal detail leaked to client: %q", msg)
	}
}

func TestGeneratePanicStillCompletes(t *testing.T) {
	orch := &fakeOrchestrator{generate: func(context.Context) (string, error) {
		panic("engine exploded")
	}}
	h, reg, token, conn := setup(t, orch, Options{})
	makeReady(t, reg, token)

	h.process(channelModel.Inbound{Type: "generate"})

	want := []string{channelModel.EventInProgress, channelModel.EventError, channelModel.EventCompleted}
	if got := conn.types(); !equalTypes(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if h.State() == StateBusy {
		t.Fatal("expected handler to leave busy state")
	}
}

func TestGenerationTimeout(t *testing.T) {
	orch := &fakeOrchestrator{generate: func(ctx context.Context) (string, error) {
		<-ctx.Done()
		return "", ctx.Err()
	}}
	h, reg, token, conn := setup(t, orch, Options{GenerationTimeout: 20 * time.Millisecond})
	makeReady(t, reg, token)

	h.process(channelModel.Inbound{Type: "generate"})

	want := []string{channelModel.EventInProgress, channelModel.EventError, channelModel.EventCompleted}
	if got := conn.types(); !equalTypes(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestEmptyUserMessageRejectedImmediately(t *testing.T) {
	orch := &fakeOrchestrator{}
	h, _, _, conn := setup(t, orch, Options{})

	for _, text := range []string{"", "   \n\t"} {
		if err := h.Submit(channelModel.Inbound{Type: "user_message", Message: text}); err != nil {
			t.Fatalf("Submit err: %v", err)
		}
	}

	want := []string{channelModel.EventError, channelModel.EventError}
	if got := conn.types(); !equalTypes(got, want) {
		t.Fatalf("expected %v, got %v", want, got)
	}
	if orch.callCount() != 0 {
		t.Fatal("expected engine never invoked")
	}
}

func TestUserMessageQueuedAndProcessed(t *testing.T) {
	orch := &fakeOrchestrator{}
	h, _, _, conn := setup(t, orch, Options{})

	if err := h.Submit(channelModel.Inbound{Type: "user_message", Message: "  make it shorter  "}); err != nil {
		t.Fatalf("Submit err: %v", err)
	}
	conn.waitFor(t, channelModel.EventCompleted)

	if len(orch.messages) != 1 || orch.messages[0] != "make it shorter" {
		t.Fatalf("expected trimmed message forwarded, got %v", orch.messages)
	}
}

func TestUnknownMessageIgnored(t *testing.T) {
	h, _, _, conn := setup(t, &fakeOrchestrator{}, Options{})

	if err := h.Submit(channelModel.Inbound{Type: "dance"}); !errors.Is(err, ErrUnknownMessage) {
		t.Fatalf("expected ErrUnknownMessage, got %v", err)
	}
	if got := conn.types(); len(got) != 0 {
		t.Fatalf("expected no events, got %v", got)
	}
}

func TestRebindRoutesToNewestConnection(t *testing.T) {
	h, _, _, first := setup(t, &fakeOrchestrator{}, Options{})
	second := newRecordingConn()
	h.Attach(second)

	h.Emit(channelModel.AgentResponse("hello"))

	if got := first.types(); len(got) != 0 {
		t.Fatalf("expected superseded connection to receive nothing, got %v", got)
	}
	if got := second.types(); !equalTypes(got, []string{channelModel.EventAgentResponse}) {
		t.Fatalf("expected event on new connection, got %v", got)
	}

	h.Detach(first)
	if h.State() != StateBound {
		t.Fatal("detaching a stale connection must not unbind")
	}
	h.Detach(second)
	if h.State() != StateUnbound {
		t.Fatalf("expected unbound, got %s", h.State())
	}
}

func TestSendFailuresAreSwallowed(t *testing.T) {
	orch := &fakeOrchestrator{}
	h, reg, token, conn := setup(t, orch, Options{})
	makeReady(t, reg, token)
	conn.err = errors.New("broken pipe")

	h.process(channelModel.Inbound{Type: "generate"})

	if orch.callCount() != 1 {
		t.Fatalf("expected generation despite send failures, got %d calls", orch.callCount())
	}
}

func TestRequestsAreSequencedAndBounded(t *testing.T) {
	started := make(chan struct{}, 4)
	release := make(chan struct{})
	orch := &fakeOrchestrator{process: func(ctx context.Context, text string) (string, error) {
		started <- struct{}{}
		<-release
		return "ok", nil
	}}
	h, _, _, conn := setup(t, orch, Options{QueueSize: 1})

	_ = h.Submit(channelModel.Inbound{Type: "user_message", Message: "one"})
	select {
	case <-started:
	case <-time.After(2 * time.Second):
		t.Fatal("first request never started")
	}

	_ = h.Submit(channelModel.Inbound{Type: "user_message", Message: "two"})
	_ = h.Submit(channelModel.Inbound{Type: "user_message", Message: "three"})

	if e := conn.waitFor(t, channelModel.EventError); e.Message != msgQueueFull {
		t.Fatalf("expected queue full error, got %q", e.Message)
	}
	if orch.callCount() != 1 {
		t.Fatalf("expected one in-flight call, got %d", orch.callCount())
	}

	close(release)
	conn.waitFor(t, channelModel.EventCompleted)
	conn.waitFor(t, channelModel.EventCompleted)

	if got := orch.messages; len(got) != 2 || got[0] != "one" || got[1] != "two" {
		t.Fatalf("expected sequential processing of one, two; got %v", got)
	}
}

func TestSubmitAfterClose(t *testing.T) {
	h, _, _, _ := setup(t, &fakeOrchestrator{}, Options{})
	h.Close()

	if err := h.Submit(channelModel.Inbound{Type: "connect"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed, got %v", err)
	}
	if h.State() != StateUnbound {
		t.Fatalf("expected unbound after close, got %s", h.State())
	}
}

func TestDeleteMidGenerationStillCompletes(t *testing.T) {
	started := make(chan struct{})
	orch := &fakeOrchestrator{generate: func(ctx context.Context) (string, error) {
		close(started)
		<-ctx.Done()
		return "", ctx.Err()
	}}

	var h *Handler
	wire := func(r *session.Registry, token string) (session.Channel, session.Orchestrator) {
		h = NewHandler(token, r, orch, Options{})
		return h, orch
	}
	reg := session.NewRegistry(session.DefaultConfig(), wire)
	token, err := reg.Create()
	if err != nil {
		t.Fatalf("Create err: %v", err)
	}
	makeReady(t, reg, token)

	conn := newRecordingConn()
	if err := reg.Bind(token, conn); err != nil {
		t.Fatalf("Bind err: %v", err)
	}
	if err := h.Submit(channelModel.Inbound{Type: "generate"}); err != nil {
		t.Fatalf("Submit err: %v", err)
	}
	conn.waitFor(t, channelModel.EventInProgress)
	<-started

	if !reg.Delete(token) {
		t.Fatal("expected delete to remove the session")
	}

	conn.waitFor(t, channelModel.EventCompleted)
	if h.State() != StateUnbound {
		t.Fatalf("expected unbound once the cancelled request completed, got %s", h.State())
	}
	if err := h.Submit(channelModel.Inbound{Type: "generate"}); !errors.Is(err, ErrClosed) {
		t.Fatalf("expected ErrClosed after delete, got %v", err)
	}
}
