package session

import (
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	sessionModel "github.com/zhouzirui/resume-studio/backend/internal/model/session"
	"github.com/zhouzirui/resume-studio/backend/internal/service/document"
)

// MaxJobDescriptionLength bounds the accepted job description, in characters.
const MaxJobDescriptionLength = 10000

var (
	ErrSessionNotFound        = errors.New("session not found")
	ErrEmptyInput             = errors.New("input cannot be empty")
	ErrInputTooLong           = errors.New("input is too long")
	ErrProfileMissing         = errors.New("no profile found in session")
	ErrJobDescriptionMissing  = errors.New("no job description found in session")
	errTokenCollisionExceeded = errors.New("could not allocate a unique session token")
)

// Config controls expiry and retention.
type Config struct {
	Timeout             time.Duration
	CleanupInterval     time.Duration
	MaxDocumentVersions int
}

// DefaultConfig mirrors the documented defaults.
func DefaultConfig() Config {
	return Config{
		Timeout:             30 * time.Minute,
		CleanupInterval:     5 * time.Minute,
		MaxDocumentVersions: document.DefaultCapacity,
	}
}

// Option customises a Registry.
type Option func(*Registry)

// WithClock replaces time.Now, mostly for tests.
func WithClock(now func() time.Time) Option {
	return func(r *Registry) {
		if now != nil {
			r.now = now
		}
	}
}

// Registry is the process-wide set of live sessions.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Record
	cfg      Config
	wire     WireFunc
	now      func() time.Time
}

// NewRegistry creates an empty registry. wire may be nil, in which case
// sessions are created without channel or orchestration handles.
func NewRegistry(cfg Config, wire WireFunc, opts ...Option) *Registry {
	defaults := DefaultConfig()
	if cfg.Timeout <= 0 {
		cfg.Timeout = defaults.Timeout
	}
	if cfg.CleanupInterval <= 0 {
		cfg.CleanupInterval = defaults.CleanupInterval
	}
	if cfg.MaxDocumentVersions <= 0 {
		cfg.MaxDocumentVersions = defaults.MaxDocumentVersions
	}

	r := &Registry{
		sessions: make(map[string]*Record),
		cfg:      cfg,
		wire:     wire,
		now:      func() time.Time { return time.Now().UTC() },
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

// Config returns the effective configuration.
func (r *Registry) Config() Config {
	return r.cfg
}

// Create provisions a new session and returns its token.
func (r *Registry) Create() (string, error) {
	const maxAttempts = 3

	for attempt := 0; attempt < maxAttempts; attempt++ {
		token := uuid.NewString()
		record := newRecord(token, r.now(), r.cfg.MaxDocumentVersions)
		if r.wire != nil {
			record.Channel, record.Orchestrator = r.wire(r, token)
		}

		r.mu.Lock()
		if _, exists := r.sessions[token]; exists {
			r.mu.Unlock()
			closeChannel(record)
			continue
		}
		r.sessions[token] = record
		r.mu.Unlock()

		log.Printf("[session] created session=%s", token)
		return token, nil
	}
	return "", errTokenCollisionExceeded
}

// CreateIfNeeded returns token when it names a valid session, otherwise a fresh one.
func (r *Registry) CreateIfNeeded(token string) (string, error) {
	if token != "" && r.IsValid(token) {
		return token, nil
	}
	return r.Create()
}

// Get looks up a session record, expired or not.
func (r *Registry) Get(token string) (*Record, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.sessions[token]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return record, nil
}

// update runs fn against a live record while holding the registry read
// lock, so Sweep and Delete cannot drop the record mid-write. fn must not
// call back into the registry.
func (r *Registry) update(token string, fn func(record *Record) error) error {
	r.mu.RLock()
	defer r.mu.RUnlock()

	record, ok := r.sessions[token]
	if !ok {
		return ErrSessionNotFound
	}
	return fn(record)
}

// IsValid reports whether the session exists and has not expired.
func (r *Registry) IsValid(token string) bool {
	record, err := r.Get(token)
	if err != nil {
		return false
	}
	return !record.expired(r.now(), r.cfg.Timeout)
}

// Len returns the number of registered sessions.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// UpdateProfile stores the parsed profile for a session.
func (r *Registry) UpdateProfile(token string, profile sessionModel.Profile) error {
	if strings.TrimSpace(profile.Text) == "" {
		return fmt.Errorf("profile text: %w", ErrEmptyInput)
	}

	if profile.ParsedAt.IsZero() {
		profile.ParsedAt = r.now()
	}

	return r.update(token, func(record *Record) error {
		record.mu.Lock()
		record.profile = &profile
		record.lastActivity = r.now()
		record.mu.Unlock()
		return nil
	})
}

// UpdateJobDescription stores the trimmed job description for a session.
func (r *Registry) UpdateJobDescription(token, text string) error {
	trimmed, err := NormalizeJobDescription(text)
	if err != nil {
		return err
	}

	return r.update(token, func(record *Record) error {
		record.mu.Lock()
		record.jobDescription = trimmed
		record.lastActivity = r.now()
		record.mu.Unlock()
		return nil
	})
}

// NormalizeJobDescription trims text and enforces the accepted bounds.
func NormalizeJobDescription(text string) (string, error) {
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return "", fmt.Errorf("job description: %w", ErrEmptyInput)
	}
	if utf8.RuneCountInString(trimmed) > MaxJobDescriptionLength {
		return "", fmt.Errorf("job description exceeds %d characters: %w", MaxJobDescriptionLength, ErrInputTooLong)
	}
	return trimmed, nil
}

// Profile returns the profile text of a session.
func (r *Registry) Profile(token string) (string, error) {
	record, err := r.Get(token)
	if err != nil {
		return "", err
	}
	profile, ok := record.Profile()
	if !ok || profile.Text == "" {
		return "", ErrProfileMissing
	}
	return profile.Text, nil
}

// JobDescription returns the job description of a session.
func (r *Registry) JobDescription(token string) (string, error) {
	record, err := r.Get(token)
	if err != nil {
		return "", err
	}
	text, ok := record.JobDescription()
	if !ok {
		return "", ErrJobDescriptionMissing
	}
	return text, nil
}

// PutDocument saves a document version. version <= 0 assigns the next version.
func (r *Registry) PutDocument(token, content string, version int) (int, error) {
	if content == "" {
		return 0, fmt.Errorf("document: %w", ErrEmptyInput)
	}

	var assigned int
	err := r.update(token, func(record *Record) error {
		assigned = record.Documents.Put(content, version)
		record.touch(r.now())
		return nil
	})
	if err != nil {
		return 0, err
	}
	return assigned, nil
}

// Document reads a document version. version <= 0 reads the latest.
func (r *Registry) Document(token string, version int) (string, error) {
	record, err := r.Get(token)
	if err != nil {
		return "", err
	}
	return record.Documents.Get(version)
}

// Versions lists the retained document versions of a session.
func (r *Registry) Versions(token string) ([]int, error) {
	record, err := r.Get(token)
	if err != nil {
		return nil, err
	}
	return record.Documents.Versions(), nil
}

// Channel returns the channel handler of a session.
func (r *Registry) Channel(token string) (Channel, bool) {
	record, err := r.Get(token)
	if err != nil || record.Channel == nil {
		return nil, false
	}
	return record.Channel, true
}

// Bind attaches a live connection to the session's channel handler.
// A previously bound connection is replaced without notification.
func (r *Registry) Bind(token string, conn Conn) error {
	return r.update(token, func(record *Record) error {
		if record.Channel == nil {
			return fmt.Errorf("session %s has no channel handler", token)
		}
		record.Channel.Attach(conn)
		record.touch(r.now())
		return nil
	})
}

// Delete removes a session and releases its handles. It reports whether a
// session was removed.
func (r *Registry) Delete(token string) bool {
	r.mu.Lock()
	record, ok := r.sessions[token]
	if ok {
		delete(r.sessions, token)
	}
	r.mu.Unlock()

	if !ok {
		return false
	}
	r.release(record)
	return true
}

func closeChannel(record *Record) {
	if record.Channel != nil {
		record.Channel.Close()
	}
}
