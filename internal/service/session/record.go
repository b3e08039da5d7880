package session

import (
	"context"
	"sync"
	"time"

	channelModel "github.com/zhouzirui/resume-studio/backend/internal/model/channel"
	sessionModel "github.com/zhouzirui/resume-studio/backend/internal/model/session"
	"github.com/zhouzirui/resume-studio/backend/internal/service/document"
)

// Conn is a live client connection events are written to.
type Conn interface {
	WriteJSON(v any) error
}

// Channel is the per-session real-time handler owned by a record.
type Channel interface {
	Attach(conn Conn)
	Detach(conn Conn)
	Emit(event channelModel.Outbound)
	Close()
}

// Orchestrator exposes the generation entry points bound to a session.
type Orchestrator interface {
	Generate(ctx context.Context) (string, error)
	ProcessUserMessage(ctx context.Context, text string) (string, error)
}

// WireFunc builds the channel handler and orchestration binding for a new session.
type WireFunc func(r *Registry, token string) (Channel, Orchestrator)

// Record is the unit of isolation for one session.
type Record struct {
	Token        string
	CreatedAt    time.Time
	Documents    *document.Store
	Channel      Channel
	Orchestrator Orchestrator

	mu             sync.RWMutex
	lastActivity   time.Time
	profile        *sessionModel.Profile
	jobDescription string
}

func newRecord(token string, now time.Time, capacity int) *Record {
	return &Record{
		Token:        token,
		CreatedAt:    now,
		Documents:    document.NewStore(capacity),
		lastActivity: now,
	}
}

// LastActivity returns the time of the last successful mutation or rebind.
func (r *Record) LastActivity() time.Time {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.lastActivity
}

// Profile returns a copy of the uploaded profile, if any.
func (r *Record) Profile() (sessionModel.Profile, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	if r.profile == nil {
		return sessionModel.Profile{}, false
	}
	return *r.profile, true
}

// JobDescription returns the stored job description, if any.
func (r *Record) JobDescription() (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.jobDescription, r.jobDescription != ""
}

// Ready reports whether both profile text and job description are present.
func (r *Record) Ready() bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.profile != nil && r.profile.Text != "" && r.jobDescription != ""
}

func (r *Record) touch(now time.Time) {
	r.mu.Lock()
	r.lastActivity = now
	r.mu.Unlock()
}

func (r *Record) expired(now time.Time, timeout time.Duration) bool {
	return now.Sub(r.LastActivity()) > timeout
}
