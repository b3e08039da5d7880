package channel

import (
	"context"
	"errors"
	"log"
	"strings"
	"sync"
	"time"

	channelModel "github.com/zhouzirui/resume-studio/backend/internal/model/channel"
	"github.com/zhouzirui/resume-studio/backend/internal/service/session"
)

const (
	DefaultQueueSize         = 8
	DefaultGenerationTimeout = 3 * time.Minute
)

// Client-facing messages. Internal failure detail is never sent.
const (
	msgSessionMissing = "Something went wrong. Please refresh."
	msgInputsMissing  = "Missing user profile or job description. Please upload again."
	msgEmptyMessage   = "No message found. Please enter some message"
	msgGenerateFailed = "Something went wrong while generating resume. Please try again"
	msgMessageFailed  = "Something went wrong while processing your request. Please try again"
	msgQueueFull      = "Still working on your previous requests. Please wait a moment and try again"
)

var (
	ErrUnknownMessage = errors.New("unknown message type")
	ErrClosed         = errors.New("channel handler closed")
)

// State describes where the handler is in its lifecycle.
type State int

const (
	StateUnbound State = iota
	StateBound
	StateBusy
)

func (s State) String() string {
	switch s {
	case StateBound:
		return "bound"
	case StateBusy:
		return "busy"
	default:
		return "unbound"
	}
}

// Sessions is the registry view the handler needs.
type Sessions interface {
	Get(token string) (*session.Record, error)
}

// Options tunes request sequencing.
type Options struct {
	QueueSize         int
	GenerationTimeout time.Duration
}

var _ session.Channel = (*Handler)(nil)

// Handler routes client messages of one session to its orchestrator and
// relays events back over whichever connection is currently attached.
type Handler struct {
	token    string
	sessions Sessions
	orch     session.Orchestrator
	opts     Options

	mu     sync.Mutex
	conn   session.Conn
	busy   bool
	closed bool

	queue     chan channelModel.Inbound
	ctx       context.Context
	cancel    context.CancelFunc
	startOnce sync.Once
	closeOnce sync.Once
}

// NewHandler creates an unbound handler for token.
func NewHandler(token string, sessions Sessions, orch session.Orchestrator, opts Options) *Handler {
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	if opts.GenerationTimeout <= 0 {
		opts.GenerationTimeout = DefaultGenerationTimeout
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &Handler{
		token:    token,
		sessions: sessions,
		orch:     orch,
		opts:     opts,
		queue:    make(chan channelModel.Inbound, opts.QueueSize),
		ctx:      ctx,
		cancel:   cancel,
	}
}

// Attach binds conn, silently replacing any previous connection.
func (h *Handler) Attach(conn session.Conn) {
	h.mu.Lock()
	h.conn = conn
	h.mu.Unlock()
}

// Detach unbinds conn if it is still the current connection.
func (h *Handler) Detach(conn session.Conn) {
	h.mu.Lock()
	if h.conn == conn {
		h.conn = nil
	}
	h.mu.Unlock()
}

// State reports the current lifecycle state.
func (h *Handler) State() State {
	h.mu.Lock()
	defer h.mu.Unlock()

	switch {
	case h.busy:
		return StateBusy
	case h.conn != nil:
		return StateBound
	default:
		return StateUnbound
	}
}

// Emit writes an event to the current connection. Send failures are logged
// and dropped; nothing is sent while unbound.
func (h *Handler) Emit(event channelModel.Outbound) {
	h.mu.Lock()
	conn := h.conn
	h.mu.Unlock()

	if conn == nil {
		return
	}
	if err := conn.WriteJSON(event); err != nil {
		log.Printf("[channel] session=%s send %s failed: %v", h.token, event.Type, err)
	}
}

// Submit accepts an inbound message. Generation requests are queued and run
// one at a time; connect and validation failures are answered immediately.
func (h *Handler) Submit(msg channelModel.Inbound) error {
	if h.ctx.Err() != nil {
		return ErrClosed
	}

	switch msg.Kind() {
	case channelModel.KindConnect:
		h.Emit(channelModel.Connected(h.token))
		return nil
	case channelModel.KindUserMessage:
		if strings.TrimSpace(msg.Message) == "" {
			h.Emit(channelModel.Error(msgEmptyMessage))
			return nil
		}
		return h.enqueue(msg)
	case channelModel.KindGenerate:
		return h.enqueue(msg)
	default:
		log.Printf("[channel] session=%s ignoring message type %q", h.token, msg.Type)
		return ErrUnknownMessage
	}
}

// Close stops the worker. Requests in flight see their context cancelled
// and keep the connection until their completed event has been sent.
func (h *Handler) Close() {
	h.closeOnce.Do(func() {
		h.cancel()
		h.mu.Lock()
		h.closed = true
		if !h.busy {
			h.conn = nil
		}
		h.mu.Unlock()
	})
}

func (h *Handler) enqueue(msg channelModel.Inbound) error {
	h.startOnce.Do(func() { go h.run() })

	select {
	case h.queue <- msg:
		return nil
	default:
		log.Printf("[channel] session=%s queue full, rejecting %s", h.token, msg.Kind())
		h.Emit(channelModel.Error(msgQueueFull))
		return nil
	}
}

func (h *Handler) run() {
	for {
		select {
		case <-h.ctx.Done():
			return
		case msg := <-h.queue:
			h.process(msg)
		}
	}
}

func (h *Handler) process(msg channelModel.Inbound) {
	switch msg.Kind() {
	case channelModel.KindGenerate:
		h.handleGenerate()
	case channelModel.KindUserMessage:
		h.handleUserMessage(strings.TrimSpace(msg.Message))
	}
}

func (h *Handler) handleGenerate() {
	record, err := h.sessions.Get(h.token)
	if err != nil {
		h.Emit(channelModel.Error(msgSessionMissing))
		return
	}
	if !record.Ready() {
		h.Emit(channelModel.Error(msgInputsMissing))
		return
	}

	h.invoke("generate", msgGenerateFailed, func(ctx context.Context) error {
		_, err := h.orch.Generate(ctx)
		return err
	})
}

func (h *Handler) handleUserMessage(text string) {
	if text == "" {
		h.Emit(channelModel.Error(msgEmptyMessage))
		return
	}
	if _, err := h.sessions.Get(h.token); err != nil {
		h.Emit(channelModel.Error(msgSessionMissing))
		return
	}

	h.invoke("user_message", msgMessageFailed, func(ctx context.Context) error {
		_, err := h.orch.ProcessUserMessage(ctx, text)
		return err
	})
}

// invoke wraps one engine call in the in_progress/completed envelope.
// completed is always emitted, including after a panic.
func (h *Handler) invoke(op, failure string, call func(ctx context.Context) error) {
	h.Emit(channelModel.InProgress())
	h.setBusy(true)

	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[channel] session=%s %s panicked: %v", h.token, op, rec)
			h.Emit(channelModel.Error(failure))
		}
		h.finish()
	}()

	if h.orch == nil {
		log.Printf("[channel] session=%s %s failed: no orchestrator bound", h.token, op)
		h.Emit(channelModel.Error(failure))
		return
	}

	ctx, cancel := context.WithTimeout(h.ctx, h.opts.GenerationTimeout)
	defer cancel()

	start := time.Now()
	if err := call(ctx); err != nil {
		log.Printf("[channel] session=%s %s failed after %s: %v", h.token, op, time.Since(start).Round(time.Millisecond), err)
		h.Emit(channelModel.Error(failure))
		return
	}
	log.Printf("[channel] session=%s %s completed in %s", h.token, op, time.Since(start).Round(time.Millisecond))
}

func (h *Handler) setBusy(busy bool) {
	h.mu.Lock()
	h.busy = busy
	h.mu.Unlock()
}

// finish leaves the busy state and sends completed to the connection that
// saw the request start. A Close that arrived meanwhile unbinds it after.
func (h *Handler) finish() {
	h.mu.Lock()
	h.busy = false
	conn := h.conn
	if h.closed {
		h.conn = nil
	}
	h.mu.Unlock()

	if conn == nil {
		return
	}
	if err := conn.WriteJSON(channelModel.Completed()); err != nil {
		log.Printf("[channel] session=%s send %s failed: %v", h.token, channelModel.EventCompleted, err)
	}
}
