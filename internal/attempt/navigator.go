package attempt

type State string

const (
	StateLoading    State = "loading"
	StateReady      State = "ready"
	StateSubmitting State = "submitting"
	StateSubmitted  State = "submitted"
	StateError      State = "error"
	StateBlocked    State = "blocked"
	StateAbandoned  State = "abandoned"
)

// Terminal reports whether no further transition can leave s.
func (s State) Terminal() bool {
	return s == StateSubmitted || s == StateBlocked || s == StateAbandoned
}

// Navigator is the attempt state machine: it owns the current question
// index and guards every transition.
//
//	loading    -> ready | error | blocked
//	ready      -> submitting (only when every question has a response)
//	submitting -> submitted | error
//	error      -> ready (only after a failed evaluation)
//	*          -> abandoned (unless already terminal)
type Navigator struct {
	state       State
	index       int
	questions   []Question
	store       *AnswerStore
	failure     error
	recoverable bool
}

func NewNavigator() *Navigator {
	return &Navigator{state: StateLoading}
}

func (n *Navigator) State() State   { return n.state }
func (n *Navigator) Index() int     { return n.index }
func (n *Navigator) Total() int     { return len(n.questions) }
func (n *Navigator) Failure() error { return n.failure }

// Recoverable reports whether the current error state allows going back
// to ready.
func (n *Navigator) Recoverable() bool { return n.state == StateError && n.recoverable }

func (n *Navigator) Current() (Question, bool) {
	if n.index < 0 || n.index >= len(n.questions) {
		return Question{}, false
	}
	return n.questions[n.index], true
}

func (n *Navigator) IsLast() bool { return n.index >= len(n.questions)-1 }

// Loaded moves loading -> ready once the questions and the attempt id have
// both arrived.
func (n *Navigator) Loaded(qs []Question, store *AnswerStore) error {
	if n.state != StateLoading {
		return ErrInvalidState
	}
	n.questions = qs
	n.store = store
	n.index = 0
	n.state = StateReady
	return nil
}

func (n *Navigator) FailLoad(err error) error {
	if n.state != StateLoading {
		return ErrInvalidState
	}
	n.state = StateError
	n.failure = err
	n.recoverable = false
	return nil
}

// Block marks the attempt as already taken. The navigator never leaves
// blocked.
func (n *Navigator) Block() error {
	if n.state != StateLoading {
		return ErrInvalidState
	}
	n.state = StateBlocked
	n.failure = ErrAlreadyAttempted
	return nil
}

func (n *Navigator) GoTo(i int) error {
	if n.state != StateReady {
		return ErrInvalidState
	}
	if i < 0 || i >= len(n.questions) {
		return ErrIndexOutOfRange
	}
	n.index = i
	return nil
}

// Next is disabled on the last question; submitting is the only way on.
func (n *Navigator) Next() error {
	if n.state != StateReady {
		return ErrInvalidState
	}
	if n.IsLast() {
		return ErrLastQuestion
	}
	n.index++
	return nil
}

// Previous clamps at the first question.
func (n *Navigator) Previous() error {
	if n.state != StateReady {
		return ErrInvalidState
	}
	if n.index > 0 {
		n.index--
	}
	return nil
}

// AllAnswered is true iff every question id has a record. It holds
// vacuously for an empty question set.
func (n *Navigator) AllAnswered() bool {
	for _, q := range n.questions {
		if !n.store.IsAnswered(q.ID) {
			return false
		}
	}
	return true
}

// Missing lists, in question order, the ids that would fail the
// completeness gate.
func (n *Navigator) Missing() []string {
	var out []string
	for _, q := range n.questions {
		if !n.store.hasResponse(q.ID) {
			out = append(out, q.ID)
		}
	}
	return out
}

// CanSubmit mirrors BeginSubmit without changing state.
func (n *Navigator) CanSubmit() bool {
	switch {
	case n.state == StateReady, n.Recoverable():
		return len(n.Missing()) == 0
	}
	return false
}

// BeginSubmit moves ready -> submitting. A recoverable error state counts
// as ready so a failed evaluation can be retried directly.
func (n *Navigator) BeginSubmit() error {
	switch {
	case n.state == StateSubmitting:
		return ErrSubmitInProgress
	case n.state.Terminal():
		return ErrSessionClosed
	case n.state == StateLoading, n.state == StateError && !n.recoverable:
		return ErrNotReady
	}
	if missing := n.Missing(); len(missing) > 0 {
		return &MissingAnswersError{QuestionIDs: missing}
	}
	n.state = StateSubmitting
	n.failure = nil
	return nil
}

func (n *Navigator) Succeed() error {
	if n.state != StateSubmitting {
		return ErrInvalidState
	}
	n.state = StateSubmitted
	return nil
}

func (n *Navigator) FailSubmit(err error) error {
	if n.state != StateSubmitting {
		return ErrInvalidState
	}
	n.state = StateError
	n.failure = err
	n.recoverable = true
	return nil
}

// Dismiss returns a failed submission to ready so answers can be edited.
func (n *Navigator) Dismiss() error {
	if !n.Recoverable() {
		return ErrInvalidState
	}
	n.state = StateReady
	n.failure = nil
	return nil
}

func (n *Navigator) Abandon() error {
	if n.state.Terminal() {
		return ErrSessionClosed
	}
	n.state = StateAbandoned
	return nil
}
