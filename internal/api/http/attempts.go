package http

import (
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/pkg/errors"
	"go.uber.org/zap"

	"github.com/mind-engage/mindengage-attempts/internal/attempt"
	auth "github.com/mind-engage/mindengage-attempts/internal/auth/middleware"
	"github.com/mind-engage/mindengage-attempts/internal/rbac"
)

// MountAttempts registers the attempt routes on r. r must already carry the
// JWT middleware so every request has a Caller.
func MountAttempts(r chi.Router, o *attempt.Orchestrator) {
	r.With(rbac.Require(rbac.PermAttemptStart)).
		Post("/sessions", StartSessionHandler(o))
	r.With(rbac.Require(rbac.PermAttemptView)).
		Get("/sessions/{sessionID}", GetSessionHandler(o))
	r.With(rbac.Require(rbac.PermAttemptAnswer)).
		Put("/sessions/{sessionID}/answers/{questionID}", SetAnswerHandler(o))
	r.With(rbac.Require(rbac.PermAttemptAnswer)).
		Post("/sessions/{sessionID}/navigate", NavigateHandler(o))
	r.With(rbac.Require(rbac.PermAttemptSubmit)).
		Post("/sessions/{sessionID}/submit", SubmitHandler(o))
	r.With(rbac.Require(rbac.PermAttemptAnswer)).
		Post("/sessions/{sessionID}/dismiss", DismissHandler(o))
	r.With(rbac.Require(rbac.PermAttemptView)).
		Get("/sessions/{sessionID}/result", ResultHandler(o))
	r.With(rbac.RequireAny(rbac.PermAttemptAnswer, rbac.PermAttemptSubmit)).
		Delete("/sessions/{sessionID}", AbandonHandler(o))
}

// POST /sessions {assignment_id, classroom_id}
// 201 with the session view; 409 when already attempted (the view is then
// blocked); 502 when a load call failed.
func StartSessionHandler(o *attempt.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, ok := auth.CallerFromContext(r.Context())
		if !ok {
			http.Error(w, "unauthorized", http.StatusUnauthorized)
			return
		}
		var req attempt.StartRequest
		if err := bind(r, &req); err != nil {
			writeError(w, o.Log, err, nil)
			return
		}
		s, err := o.Start(r.Context(), caller, req)
		if err != nil {
			var view *attempt.View
			if s != nil {
				v := s.View()
				view = &v
			}
			writeError(w, o.Log, err, view)
			return
		}
		writeJSON(w, http.StatusCreated, s.View())
	}
}

func GetSessionHandler(o *attempt.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := sessionFor(r, o)
		if err != nil {
			writeError(w, o.Log, err, nil)
			return
		}
		writeJSON(w, http.StatusOK, s.View())
	}
}

// PUT /sessions/{sessionID}/answers/{questionID} {option_index} | {text}
func SetAnswerHandler(o *attempt.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := sessionFor(r, o)
		if err != nil {
			writeError(w, o.Log, err, nil)
			return
		}
		var req answerReq
		if err := bind(r, &req); err != nil {
			writeError(w, o.Log, err, nil)
			return
		}
		qid := chi.URLParam(r, "questionID")
		if req.OptionIndex != nil {
			err = s.SetChoiceAnswer(qid, *req.OptionIndex)
		} else {
			err = s.SetTextAnswer(qid, *req.Text)
		}
		if err != nil {
			v := s.View()
			writeError(w, o.Log, err, &v)
			return
		}
		writeJSON(w, http.StatusOK, s.View())
	}
}

// POST /sessions/{sessionID}/navigate {action: next|previous|goto, index}
func NavigateHandler(o *attempt.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := sessionFor(r, o)
		if err != nil {
			writeError(w, o.Log, err, nil)
			return
		}
		var req navigateReq
		if err := bind(r, &req); err != nil {
			writeError(w, o.Log, err, nil)
			return
		}
		switch req.Action {
		case navNext:
			err = s.Next()
		case navPrevious:
			err = s.Previous()
		case navGoTo:
			err = s.GoTo(*req.Index)
		}
		if err != nil {
			v := s.View()
			writeError(w, o.Log, err, &v)
			return
		}
		writeJSON(w, http.StatusOK, s.View())
	}
}

// POST /sessions/{sessionID}/submit
// 200 with the summary; 422 listing unanswered questions; 409 while another
// submit is in flight; 502 when evaluation failed (answers are kept).
func SubmitHandler(o *attempt.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		caller, _ := auth.CallerFromContext(r.Context())
		s, err := sessionFor(r, o)
		if err != nil {
			writeError(w, o.Log, err, nil)
			return
		}
		sum, err := o.Submit(r.Context(), caller, s)
		if err != nil {
			v := s.View()
			writeError(w, o.Log, err, &v)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

func DismissHandler(o *attempt.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := sessionFor(r, o)
		if err != nil {
			writeError(w, o.Log, err, nil)
			return
		}
		if err := s.Dismiss(); err != nil {
			v := s.View()
			writeError(w, o.Log, err, &v)
			return
		}
		writeJSON(w, http.StatusOK, s.View())
	}
}

func ResultHandler(o *attempt.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := sessionFor(r, o)
		if err != nil {
			writeError(w, o.Log, err, nil)
			return
		}
		sum, ok := s.Summary()
		if !ok {
			v := s.View()
			writeError(w, o.Log, errNoResult, &v)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

func AbandonHandler(o *attempt.Orchestrator) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		s, err := sessionFor(r, o)
		if err != nil {
			writeError(w, o.Log, err, nil)
			return
		}
		if err := o.Abandon(s); err != nil {
			v := s.View()
			writeError(w, o.Log, err, &v)
			return
		}
		w.WriteHeader(http.StatusNoContent)
	}
}

var errNoResult = errors.New("attempt has no result yet")

func sessionFor(r *http.Request, o *attempt.Orchestrator) (*attempt.Session, error) {
	return o.Sessions.Lookup(chi.URLParam(r, "sessionID"), auth.SubjectFromContext(r.Context()))
}

type errorBody struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Missing []string          `json:"missing,omitempty"`
	Fields  map[string]string `json:"fields,omitempty"`
	Session *attempt.View     `json:"session,omitempty"`
}

// writeError maps attempt errors onto HTTP statuses. view, when given, lets
// the client redraw the session without a second request.
func writeError(w http.ResponseWriter, log *zap.Logger, err error, view *attempt.View) {
	body := errorBody{Error: err.Error(), Session: view}
	status := http.StatusInternalServerError

	var (
		missing *attempt.MissingAnswersError
		loadErr *attempt.LoadError
		evalErr *attempt.EvaluationError
	)
	switch {
	case errors.Is(err, errBadJSON):
		status, body.Code = http.StatusBadRequest, "bad_json"
	case fieldErrors(err) != nil:
		status, body.Code = http.StatusBadRequest, "validation"
		body.Fields = fieldErrors(err)
	case errors.As(err, &missing):
		status, body.Code = http.StatusUnprocessableEntity, "missing_answers"
		body.Missing = missing.QuestionIDs
	case errors.As(err, &loadErr):
		status, body.Code = http.StatusBadGateway, "load_failed"
	case errors.As(err, &evalErr):
		status, body.Code = http.StatusBadGateway, "evaluation_failed"
	case errors.Is(err, attempt.ErrAlreadyAttempted):
		status, body.Code = http.StatusConflict, "already_attempted"
	case errors.Is(err, attempt.ErrNotReady):
		status, body.Code = http.StatusConflict, "not_ready"
	case errors.Is(err, attempt.ErrSubmitInProgress):
		status, body.Code = http.StatusConflict, "submit_in_progress"
	case errors.Is(err, attempt.ErrSessionClosed):
		status, body.Code = http.StatusConflict, "session_closed"
	case errors.Is(err, attempt.ErrInvalidState), errors.Is(err, errNoResult):
		status, body.Code = http.StatusConflict, "invalid_state"
	case errors.Is(err, attempt.ErrLastQuestion):
		status, body.Code = http.StatusConflict, "last_question"
	case errors.Is(err, attempt.ErrWrongKind),
		errors.Is(err, attempt.ErrInvalidOption),
		errors.Is(err, attempt.ErrIndexOutOfRange):
		status, body.Code = http.StatusBadRequest, "invalid_request"
	case errors.Is(err, attempt.ErrUnknownQuestion):
		status, body.Code = http.StatusNotFound, "unknown_question"
	case errors.Is(err, attempt.ErrSessionNotFound):
		status, body.Code = http.StatusNotFound, "not_found"
	case errors.Is(err, attempt.ErrForbidden):
		status, body.Code = http.StatusForbidden, "forbidden"
	default:
		body.Code = "internal"
		body.Error = "internal error"
		log.Error("unhandled attempt error", zap.Error(err))
	}
	writeJSON(w, status, body)
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
