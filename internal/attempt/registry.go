package attempt

import (
	"sync"
	"time"
)

// Registry keeps live sessions in memory. Nothing survives a restart.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

func NewRegistry() *Registry {
	return &Registry{sessions: map[string]*Session{}}
}

func (r *Registry) Put(s *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.sessions[s.ID] = s
}

func (r *Registry) Get(id string) (*Session, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[id]
	if !ok {
		return nil, ErrSessionNotFound
	}
	return s, nil
}

// Lookup is Get plus an ownership check.
func (r *Registry) Lookup(id, owner string) (*Session, error) {
	s, err := r.Get(id)
	if err != nil {
		return nil, err
	}
	if s.Owner != owner {
		return nil, ErrForbidden
	}
	return s, nil
}

func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, id)
}

func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ForAssignment returns the owner's sessions for an assignment, any state.
func (r *Registry) ForAssignment(owner, assignmentID string) []*Session {
	r.mu.RLock()
	defer r.mu.RUnlock()
	var out []*Session
	for _, s := range r.sessions {
		if s.Owner == owner && s.AssignmentID == assignmentID {
			out = append(out, s)
		}
	}
	return out
}

// Sweep drops sessions not touched since cutoff and returns how many went.
// Sessions mid-submit are kept until their evaluation returns.
func (r *Registry) Sweep(cutoff time.Time) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	n := 0
	for id, s := range r.sessions {
		if s.State() == StateSubmitting {
			continue
		}
		if s.lastTouched().Before(cutoff) {
			delete(r.sessions, id)
			n++
		}
	}
	return n
}
