package attempt

import (
	"sync"
	"time"
)

// Session is one student's pass through an assignment. Every exported
// method takes the session lock, so operations on a session are applied one
// at a time; remote calls are made by the Orchestrator without the lock.
type Session struct {
	ID           string
	Owner        string
	AssignmentID string
	ClassroomID  string
	CreatedAt    time.Time

	mu        sync.Mutex
	now       Clock
	touched   time.Time
	attemptID string
	questions []Question
	store     *AnswerStore
	nav       *Navigator
	summary   *Summary
}

func newSession(id, owner string, req StartRequest, now Clock) *Session {
	t := now()
	return &Session{
		ID:           id,
		Owner:        owner,
		AssignmentID: req.AssignmentID,
		ClassroomID:  req.ClassroomID,
		CreatedAt:    t,
		now:          now,
		touched:      t,
		store:        NewAnswerStore(nil),
		nav:          NewNavigator(),
	}
}

// View is a read-only copy of the session for display.
type View struct {
	ID           string                  `json:"id"`
	AssignmentID string                  `json:"assignment_id"`
	ClassroomID  string                  `json:"classroom_id"`
	State        State                   `json:"state"`
	AttemptReady bool                    `json:"attempt_ready"`
	Index        int                     `json:"index"`
	Total        int                     `json:"total"`
	Current      *Question               `json:"current,omitempty"`
	Answered     []bool                  `json:"answered"`
	Answers      map[string]AnswerRecord `json:"answers"`
	IsLast       bool                    `json:"is_last"`
	CanSubmit    bool                    `json:"can_submit"`
	Error        string                  `json:"error,omitempty"`
	Retryable    bool                    `json:"retryable"`
}

func (s *Session) View() View {
	s.mu.Lock()
	defer s.mu.Unlock()
	v := View{
		ID:           s.ID,
		AssignmentID: s.AssignmentID,
		ClassroomID:  s.ClassroomID,
		State:        s.nav.State(),
		AttemptReady: s.attemptID != "",
		Index:        s.nav.Index(),
		Total:        s.nav.Total(),
		Answered:     make([]bool, len(s.questions)),
		Answers:      s.store.snapshot(),
		IsLast:       s.nav.IsLast(),
		CanSubmit:    s.nav.CanSubmit() && s.attemptID != "",
		Retryable:    s.nav.Recoverable(),
	}
	if q, ok := s.nav.Current(); ok {
		v.Current = &q
	}
	for i, q := range s.questions {
		v.Answered[i] = s.store.IsAnswered(q.ID)
	}
	if err := s.nav.Failure(); err != nil {
		v.Error = err.Error()
	}
	return v
}

func (s *Session) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav.State()
}

func (s *Session) AllAnswered() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.nav.AllAnswered()
}

func (s *Session) IsAnswered(questionID string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.store.IsAnswered(questionID)
}

// Summary returns the rendered result once the attempt is submitted.
func (s *Session) Summary() (Summary, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.summary == nil {
		return Summary{}, false
	}
	return *s.summary, true
}

// Payload builds the evaluation body from the current answers.
func (s *Session) Payload() []PayloadItem {
	s.mu.Lock()
	defer s.mu.Unlock()
	return BuildPayload(s.questions, s.store)
}

func (s *Session) SetChoiceAnswer(questionID string, idx int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(); err != nil {
		return err
	}
	s.touch()
	return s.store.SetChoiceAnswer(questionID, idx)
}

func (s *Session) SetTextAnswer(questionID, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.editable(); err != nil {
		return err
	}
	s.touch()
	return s.store.SetTextAnswer(questionID, text)
}

func (s *Session) GoTo(i int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.nav.GoTo(i)
}

func (s *Session) Next() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.nav.Next()
}

func (s *Session) Previous() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.nav.Previous()
}

func (s *Session) Dismiss() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.nav.Dismiss()
}

func (s *Session) editable() error {
	switch st := s.nav.State(); {
	case st == StateReady:
		return nil
	case st.Terminal():
		return ErrSessionClosed
	}
	return ErrInvalidState
}

func (s *Session) touch() { s.touched = s.now() }

func (s *Session) lastTouched() time.Time {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.touched
}

// ---- transitions driven by the Orchestrator ----

func (s *Session) loaded(qs []Question, attemptID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	store := NewAnswerStore(qs)
	if err := s.nav.Loaded(qs, store); err != nil {
		return err
	}
	s.questions = qs
	s.store = store
	s.attemptID = attemptID
	return nil
}

func (s *Session) failLoad(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.nav.FailLoad(err)
}

func (s *Session) block() {
	s.mu.Lock()
	defer s.mu.Unlock()
	_ = s.nav.Block()
}

// beginSubmit passes the completeness gate and returns what the evaluate
// call needs. The session is submitting when it returns nil.
func (s *Session) beginSubmit() (string, []PayloadItem, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.attemptID == "" && !s.nav.State().Terminal() && s.nav.State() != StateSubmitting {
		return "", nil, ErrNotReady
	}
	if err := s.nav.BeginSubmit(); err != nil {
		return "", nil, err
	}
	s.touch()
	return s.attemptID, BuildPayload(s.questions, s.store), nil
}

// finishSubmit records the evaluation outcome. It reports false when the
// session was abandoned while the call was in flight; the outcome is then
// dropped.
func (s *Session) finishSubmit(sum *Summary, evalErr error) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.nav.State() != StateSubmitting {
		return false
	}
	s.touch()
	if evalErr != nil {
		_ = s.nav.FailSubmit(evalErr)
		return true
	}
	s.summary = sum
	_ = s.nav.Succeed()
	return true
}

func (s *Session) abandon() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.touch()
	return s.nav.Abandon()
}
