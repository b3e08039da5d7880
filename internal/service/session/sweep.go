package session

import (
	"context"
	"log"
	"time"
)

// Sweep removes every expired session and returns how many were removed.
func (r *Registry) Sweep() int {
	now := r.now()

	r.mu.Lock()
	expired := make([]*Record, 0)
	for token, record := range r.sessions {
		if record.expired(now, r.cfg.Timeout) {
			expired = append(expired, record)
			delete(r.sessions, token)
		}
	}
	r.mu.Unlock()

	for _, record := range expired {
		r.release(record)
	}
	return len(expired)
}

func (r *Registry) release(record *Record) {
	defer func() {
		if rec := recover(); rec != nil {
			log.Printf("[session] error releasing session=%s: %v", record.Token, rec)
		}
	}()
	closeChannel(record)
}

// Run sweeps expired sessions every cleanup interval until ctx is done.
func (r *Registry) Run(ctx context.Context) {
	ticker := time.NewTicker(r.cfg.CleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if cleaned := r.Sweep(); cleaned > 0 {
				log.Printf("[session] cleaned up %d expired sessions", cleaned)
			}
		}
	}
}
