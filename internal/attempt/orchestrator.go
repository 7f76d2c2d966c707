package attempt

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/singleflight"

	auth "github.com/mind-engage/mindengage-attempts/internal/auth/middleware"
	"github.com/mind-engage/mindengage-attempts/internal/metrics"
)

// Client is the classroom API as the attempt flow sees it.
type Client interface {
	FetchQuestions(ctx context.Context, caller auth.Caller, assignmentID string) (Assignment, error)
	FetchAttemptID(ctx context.Context, caller auth.Caller, assignmentID string) (string, error)
	Evaluate(ctx context.Context, caller auth.Caller, attemptID string, payload []PayloadItem) (EvaluationResult, error)
	IsAlreadyAttempted(ctx context.Context, caller auth.Caller, classroomID, assignmentID string) (bool, error)
}

type Orchestrator struct {
	Client          Client
	Sessions        *Registry
	Log             *zap.Logger
	Now             Clock
	LoadTimeout     time.Duration
	EvaluateTimeout time.Duration

	// starts collapses concurrent Start calls per owner and assignment.
	starts singleflight.Group
}

func New(client Client, sessions *Registry, log *zap.Logger, now Clock) *Orchestrator {
	if now == nil {
		now = time.Now
	}
	if log == nil {
		log = zap.NewNop()
	}
	if sessions == nil {
		sessions = NewRegistry()
	}
	return &Orchestrator{
		Client:          client,
		Sessions:        sessions,
		Log:             log,
		Now:             now,
		LoadTimeout:     15 * time.Second,
		EvaluateTimeout: 2 * time.Minute,
	}
}

// Start opens an attempt. An assignment already attempted is refused before
// any question is fetched; the returned session is then blocked and not
// registered. A caller with a live session for the same assignment gets
// that session back instead of a second one, including callers racing the
// first Start for it.
func (o *Orchestrator) Start(ctx context.Context, caller auth.Caller, req StartRequest) (*Session, error) {
	if err := ValidateStart(req); err != nil {
		return nil, err
	}
	v, err, shared := o.starts.Do(caller.Subject+"\x00"+req.AssignmentID, func() (interface{}, error) {
		return o.start(ctx, caller, req)
	})
	if shared {
		o.Log.Debug("start shared with a concurrent caller",
			zap.String("subject", caller.Subject), zap.String("assignment_id", req.AssignmentID))
	}
	s, _ := v.(*Session)
	return s, err
}

func (o *Orchestrator) start(ctx context.Context, caller auth.Caller, req StartRequest) (*Session, error) {
	log := o.Log.With(zap.String("subject", caller.Subject), zap.String("assignment_id", req.AssignmentID))

	for _, prev := range o.Sessions.ForAssignment(caller.Subject, req.AssignmentID) {
		switch st := prev.State(); {
		case st == StateSubmitted:
			log.Info("attempt refused: submitted in this gateway", zap.String("session_id", prev.ID))
			metrics.SessionsStarted.WithLabelValues(string(StateBlocked)).Inc()
			return o.blocked(caller, req), ErrAlreadyAttempted
		case st == StateReady, st == StateSubmitting, st == StateLoading,
			st == StateError && prev.View().Retryable:
			log.Debug("resuming live session", zap.String("session_id", prev.ID))
			metrics.SessionsStarted.WithLabelValues("resumed").Inc()
			return prev, nil
		case st == StateError:
			o.Sessions.Remove(prev.ID)
		}
	}

	attempted, err := o.Client.IsAlreadyAttempted(ctx, caller, req.ClassroomID, req.AssignmentID)
	if err != nil {
		// a failed lookup is treated as an empty attempted list
		log.Warn("attempted-assignments lookup failed", zap.Error(err))
	}
	if attempted {
		log.Info("attempt refused: already attempted")
		metrics.SessionsStarted.WithLabelValues(string(StateBlocked)).Inc()
		return o.blocked(caller, req), ErrAlreadyAttempted
	}

	s := newSession(uuid.NewString(), caller.Subject, req, o.Now)
	o.Sessions.Put(s)
	log = log.With(zap.String("session_id", s.ID))

	if err := o.load(ctx, caller, s, log); err != nil {
		metrics.SessionsStarted.WithLabelValues(string(StateError)).Inc()
		return s, err
	}
	metrics.SessionsStarted.WithLabelValues(string(StateReady)).Inc()
	log.Info("attempt session ready", zap.Int("questions", s.View().Total))
	return s, nil
}

func (o *Orchestrator) blocked(caller auth.Caller, req StartRequest) *Session {
	s := newSession(uuid.NewString(), caller.Subject, req, o.Now)
	s.block()
	return s
}

// load fetches the questions and the attempt id concurrently. Both must
// succeed before the session leaves loading; each failure is logged on its
// own.
func (o *Orchestrator) load(ctx context.Context, caller auth.Caller, s *Session, log *zap.Logger) error {
	if o.LoadTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.LoadTimeout)
		defer cancel()
	}

	var (
		asg       Assignment
		attemptID string
		qErr      error
		aErr      error
		wg        sync.WaitGroup
	)
	wg.Add(2)
	go func() {
		defer wg.Done()
		asg, qErr = o.Client.FetchQuestions(ctx, caller, s.AssignmentID)
		if qErr != nil {
			log.Error("loading questions failed", zap.Error(qErr))
		}
	}()
	go func() {
		defer wg.Done()
		attemptID, aErr = o.Client.FetchAttemptID(ctx, caller, s.AssignmentID)
		if aErr != nil {
			log.Error("loading attempt id failed", zap.Error(aErr))
		}
	}()
	wg.Wait()

	if qErr == nil {
		qErr = ValidateQuestions(asg.Questions)
		if qErr != nil {
			log.Error("question set rejected", zap.Error(qErr))
		}
	}
	if attemptID == "" && asg.AttemptID != "" {
		log.Info("using attempt id embedded in assignment")
		attemptID, aErr = asg.AttemptID, nil
	}
	if aErr == nil && attemptID == "" {
		aErr = ErrNotReady
	}
	if qErr != nil || aErr != nil {
		lerr := &LoadError{Questions: qErr, AttemptID: aErr}
		s.failLoad(lerr)
		return lerr
	}
	return s.loaded(asg.Questions, attemptID)
}

// Submit evaluates the attempt. A call made while another submit for the
// same session is in flight returns ErrSubmitInProgress without touching
// the network. Failures leave every answer in place; nothing is retried
// automatically.
func (o *Orchestrator) Submit(ctx context.Context, caller auth.Caller, s *Session) (Summary, error) {
	log := o.Log.With(zap.String("session_id", s.ID), zap.String("assignment_id", s.AssignmentID))

	attemptID, payload, err := s.beginSubmit()
	if err != nil {
		var missing *MissingAnswersError
		switch {
		case errors.As(err, &missing):
			metrics.Submissions.WithLabelValues("incomplete").Inc()
		case errors.Is(err, ErrSubmitInProgress):
			metrics.Submissions.WithLabelValues("ignored").Inc()
		}
		log.Debug("submit rejected", zap.Error(err))
		return Summary{}, err
	}

	// the evaluation outlives the request that triggered it
	ctx = context.WithoutCancel(ctx)
	if o.EvaluateTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, o.EvaluateTimeout)
		defer cancel()
	}

	log.Info("submitting attempt", zap.String("attempt_id", attemptID), zap.Int("answers", len(payload)))
	res, evalErr := o.Client.Evaluate(ctx, caller, attemptID, payload)
	if evalErr != nil {
		log.Error("evaluation failed", zap.Error(evalErr))
		if !s.finishSubmit(nil, evalErr) {
			metrics.Submissions.WithLabelValues("discarded").Inc()
			return Summary{}, ErrSessionClosed
		}
		metrics.Submissions.WithLabelValues("failed").Inc()
		return Summary{}, &EvaluationError{Err: evalErr}
	}

	sum := Summarize(res)
	if !s.finishSubmit(&sum, nil) {
		log.Info("evaluation arrived after session was abandoned; dropped")
		metrics.Submissions.WithLabelValues("discarded").Inc()
		return Summary{}, ErrSessionClosed
	}
	metrics.Submissions.WithLabelValues("submitted").Inc()
	log.Info("attempt evaluated",
		zap.Int("correct", sum.CorrectCount),
		zap.Int("total", sum.Total),
		zap.Int("accuracy", sum.AccuracyPercent))
	return sum, nil
}

// Abandon makes the session read-only. An evaluation already in flight is
// allowed to finish and its result is dropped.
func (o *Orchestrator) Abandon(s *Session) error {
	if err := s.abandon(); err != nil {
		return err
	}
	o.Log.Info("attempt session abandoned", zap.String("session_id", s.ID))
	return nil
}

// Sweep removes sessions idle for longer than ttl.
func (o *Orchestrator) Sweep(ttl time.Duration) int {
	n := o.Sessions.Sweep(o.Now().Add(-ttl))
	if n > 0 {
		o.Log.Debug("swept idle sessions", zap.Int("count", n))
	}
	return n
}
