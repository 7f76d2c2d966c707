package http_test

import (
	"bytes"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	api "github.com/mind-engage/mindengage-attempts/internal/api/http"
	"github.com/mind-engage/mindengage-attempts/internal/attempt"
	auth "github.com/mind-engage/mindengage-attempts/internal/auth/middleware"
	"github.com/mind-engage/mindengage-attempts/internal/upstream"
)

const secret = "0123456789abcdef0123456789abcdef"

// classroom is a stand-in for the classroom API.
type classroom struct {
	mu          sync.Mutex
	attempted   string
	failEval    bool
	evalCalls   int
	lastPayload []map[string]interface{}
	authHeaders []string
}

func (c *classroom) handler() http.Handler {
	r := chi.NewRouter()
	r.Use(func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			c.mu.Lock()
			c.authHeaders = append(c.authHeaders, r.Header.Get("Authorization"))
			c.mu.Unlock()
			next.ServeHTTP(w, r)
		})
	})
	r.Get("/api/assignment/classroom/{cid}/attempted-assignments", func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		defer c.mu.Unlock()
		if c.attempted == "" {
			_, _ = io.WriteString(w, `[]`)
			return
		}
		_, _ = io.WriteString(w, `[{"id": 1, "asgnId": "`+c.attempted+`"}]`)
	})
	r.Get("/api/assignment/test/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `314`)
	})
	r.Get("/api/assignment/{id}", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, `{"questions": [
			{"qid": 11, "text": "2+2?", "type": "MCQ", "mcq": {"option1": "3", "option2": "4", "option3": "5", "option4": "22"}},
			{"qid": 12, "text": "Explain photosynthesis.", "type": "PARAGRAPH"},
			{"qid": 13, "text": "Capital of France?", "type": "MCQ", "mcq": {"option1": "Rome", "option2": "Paris", "option3": "Oslo", "option4": "Bern"}}
		]}`)
	})
	r.Post("/api/evaluate/{tid}", func(w http.ResponseWriter, r *http.Request) {
		c.mu.Lock()
		defer c.mu.Unlock()
		c.evalCalls++
		c.lastPayload = nil
		_ = json.NewDecoder(r.Body).Decode(&c.lastPayload)
		if c.failEval {
			http.Error(w, "evaluator unavailable", http.StatusServiceUnavailable)
			return
		}
		_, _ = io.WriteString(w, `{"questionResults": [
			{"questionId": 11, "questionText": "2+2?", "correct": true, "studentAnswer": "4", "correctAnswer": "4", "type": "MCQ"},
			{"questionId": 12, "questionText": "Explain photosynthesis.", "correct": false, "studentParagraph": "Light becomes sugar.", "type": "Paragraph", "paragraphEvaluation": "Mentions light only"},
			{"questionId": 13, "questionText": "Capital of France?", "correct": true, "studentAnswer": "Paris", "correctAnswer": "Paris", "type": "MCQ"}
		]}`)
	})
	return r
}

type harness struct {
	t        *testing.T
	gateway  *httptest.Server
	upstream *classroom
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	cls := &classroom{}
	up := httptest.NewServer(cls.handler())
	t.Cleanup(up.Close)

	client, err := upstream.New(upstream.Config{BaseURL: up.URL + "/api", Timeout: 5 * time.Second}, nil)
	require.NoError(t, err)
	orch := attempt.New(client, attempt.NewRegistry(), nil, nil)

	r := chi.NewRouter()
	r.Route("/api", func(ar chi.Router) {
		ar.Use(auth.JWTMiddleware(auth.NewAuthService(secret, "student")))
		api.MountAttempts(ar, orch)
	})
	gw := httptest.NewServer(r)
	t.Cleanup(gw.Close)
	return &harness{t: t, gateway: gw, upstream: cls}
}

func token(t *testing.T, sub, role string) string {
	t.Helper()
	tok, err := jwt.NewWithClaims(jwt.SigningMethodHS256, auth.Claims{
		Role:             role,
		RegisteredClaims: jwt.RegisteredClaims{Subject: sub, ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte(secret))
	require.NoError(t, err)
	return tok
}

func (h *harness) do(tok, method, path string, body interface{}, out interface{}) int {
	h.t.Helper()
	var rdr io.Reader
	if body != nil {
		b, err := json.Marshal(body)
		require.NoError(h.t, err)
		rdr = bytes.NewReader(b)
	}
	req, err := http.NewRequest(method, h.gateway.URL+"/api"+path, rdr)
	require.NoError(h.t, err)
	req.Header.Set("Authorization", "Bearer "+tok)
	req.Header.Set("Content-Type", "application/json")
	res, err := http.DefaultClient.Do(req)
	require.NoError(h.t, err)
	defer res.Body.Close()
	if out != nil {
		require.NoError(h.t, json.NewDecoder(res.Body).Decode(out))
	}
	return res.StatusCode
}

type errorBody struct {
	Error   string            `json:"error"`
	Code    string            `json:"code"`
	Missing []string          `json:"missing"`
	Fields  map[string]string `json:"fields"`
	Session *attempt.View     `json:"session"`
}

func startBody() map[string]string {
	return map[string]string{"assignment_id": "77", "classroom_id": "5"}
}

func TestAttemptRoundTrip(t *testing.T) {
	h := newHarness(t)
	tok := token(t, "alice", "student")

	var v attempt.View
	require.Equal(t, http.StatusCreated, h.do(tok, http.MethodPost, "/sessions", startBody(), &v))
	assert.Equal(t, attempt.StateReady, v.State)
	assert.Equal(t, 3, v.Total)
	require.NotNil(t, v.Current)
	assert.Equal(t, "11", v.Current.ID)
	base := "/sessions/" + v.ID

	// submitting early is refused locally
	var eb errorBody
	require.Equal(t, http.StatusUnprocessableEntity, h.do(tok, http.MethodPost, base+"/submit", nil, &eb))
	assert.Equal(t, "missing_answers", eb.Code)
	assert.Equal(t, []string{"11", "12", "13"}, eb.Missing)

	require.Equal(t, http.StatusOK, h.do(tok, http.MethodPut, base+"/answers/11", map[string]int{"option_index": 1}, &v))
	assert.Equal(t, []bool{true, false, false}, v.Answered)

	require.Equal(t, http.StatusOK, h.do(tok, http.MethodPost, base+"/navigate", map[string]string{"action": "next"}, &v))
	assert.Equal(t, 1, v.Index)
	require.Equal(t, http.StatusOK, h.do(tok, http.MethodPut, base+"/answers/12", map[string]string{"text": "Light becomes sugar."}, &v))

	require.Equal(t, http.StatusOK, h.do(tok, http.MethodPost, base+"/navigate", map[string]interface{}{"action": "goto", "index": 2}, &v))
	assert.True(t, v.IsLast)
	eb = errorBody{}
	require.Equal(t, http.StatusConflict, h.do(tok, http.MethodPost, base+"/navigate", map[string]string{"action": "next"}, &eb))
	assert.Equal(t, "last_question", eb.Code)

	require.Equal(t, http.StatusOK, h.do(tok, http.MethodPut, base+"/answers/13", map[string]int{"option_index": 1}, &v))
	assert.True(t, v.CanSubmit)

	var sum attempt.Summary
	require.Equal(t, http.StatusOK, h.do(tok, http.MethodPost, base+"/submit", nil, &sum))
	assert.Equal(t, 2, sum.CorrectCount)
	assert.Equal(t, 3, sum.Total)
	assert.Equal(t, 67, sum.AccuracyPercent)
	require.Len(t, sum.Items, 3)
	assert.Equal(t, "Mentions light only", sum.Items[1].Evaluation)
	assert.Equal(t, attempt.NoCorrectAnswer, sum.Items[1].CorrectAnswer)

	h.upstream.mu.Lock()
	assert.Equal(t, 1, h.upstream.evalCalls)
	assert.Equal(t, []map[string]interface{}{
		{"questionId": float64(11), "answer": "4"},
		{"questionId": float64(12), "answer": "Light becomes sugar."},
		{"questionId": float64(13), "answer": "Paris"},
	}, h.upstream.lastPayload)
	for _, hdr := range h.upstream.authHeaders {
		assert.Equal(t, "Bearer "+tok, hdr)
	}
	h.upstream.mu.Unlock()

	var again attempt.Summary
	require.Equal(t, http.StatusOK, h.do(tok, http.MethodGet, base+"/result", nil, &again))
	assert.Equal(t, sum, again)

	// the same student cannot start the assignment a second time
	eb = errorBody{}
	require.Equal(t, http.StatusConflict, h.do(tok, http.MethodPost, "/sessions", startBody(), &eb))
	assert.Equal(t, "already_attempted", eb.Code)
	require.NotNil(t, eb.Session)
	assert.Equal(t, attempt.StateBlocked, eb.Session.State)
}

func TestStart_AlreadyAttemptedUpstream(t *testing.T) {
	h := newHarness(t)
	h.upstream.attempted = "77"

	var eb errorBody
	require.Equal(t, http.StatusConflict, h.do(token(t, "alice", "student"), http.MethodPost, "/sessions", startBody(), &eb))
	assert.Equal(t, "already_attempted", eb.Code)
}

func TestStart_Validation(t *testing.T) {
	h := newHarness(t)

	var eb errorBody
	require.Equal(t, http.StatusBadRequest, h.do(token(t, "alice", "student"), http.MethodPost, "/sessions",
		map[string]string{"assignment_id": "77"}, &eb))
	assert.Equal(t, "validation", eb.Code)
	assert.Equal(t, "required", eb.Fields["classroom_id"])
}

func TestEvaluationFailureKeepsAnswers(t *testing.T) {
	h := newHarness(t)
	h.upstream.failEval = true
	tok := token(t, "alice", "student")

	var v attempt.View
	require.Equal(t, http.StatusCreated, h.do(tok, http.MethodPost, "/sessions", startBody(), &v))
	base := "/sessions/" + v.ID
	h.do(tok, http.MethodPut, base+"/answers/11", map[string]int{"option_index": 1}, nil)
	h.do(tok, http.MethodPut, base+"/answers/12", map[string]string{"text": "Light."}, nil)
	h.do(tok, http.MethodPut, base+"/answers/13", map[string]int{"option_index": 1}, nil)

	var eb errorBody
	require.Equal(t, http.StatusBadGateway, h.do(tok, http.MethodPost, base+"/submit", nil, &eb))
	assert.Equal(t, "evaluation_failed", eb.Code)
	require.NotNil(t, eb.Session)
	assert.Equal(t, attempt.StateError, eb.Session.State)
	assert.True(t, eb.Session.Retryable)
	assert.Len(t, eb.Session.Answers, 3)

	require.Equal(t, http.StatusOK, h.do(tok, http.MethodPost, base+"/dismiss", nil, &v))
	assert.Equal(t, attempt.StateReady, v.State)

	h.upstream.mu.Lock()
	h.upstream.failEval = false
	h.upstream.mu.Unlock()

	var sum attempt.Summary
	require.Equal(t, http.StatusOK, h.do(tok, http.MethodPost, base+"/submit", nil, &sum))
	assert.Equal(t, 67, sum.AccuracyPercent)

	h.upstream.mu.Lock()
	assert.Equal(t, 2, h.upstream.evalCalls)
	h.upstream.mu.Unlock()
}

func TestAnswerErrors(t *testing.T) {
	h := newHarness(t)
	tok := token(t, "alice", "student")

	var v attempt.View
	require.Equal(t, http.StatusCreated, h.do(tok, http.MethodPost, "/sessions", startBody(), &v))
	base := "/sessions/" + v.ID

	tests := []struct {
		name   string
		path   string
		body   interface{}
		status int
		code   string
	}{
		{"unknown question", base + "/answers/99", map[string]int{"option_index": 0}, http.StatusNotFound, "unknown_question"},
		{"text on choice", base + "/answers/11", map[string]string{"text": "4"}, http.StatusBadRequest, "invalid_request"},
		{"option out of range", base + "/answers/11", map[string]int{"option_index": 4}, http.StatusBadRequest, "invalid_request"},
		{"both fields", base + "/answers/11", map[string]interface{}{"option_index": 1, "text": "4"}, http.StatusBadRequest, "validation"},
		{"neither field", base + "/answers/11", map[string]interface{}{}, http.StatusBadRequest, "validation"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var eb errorBody
			require.Equal(t, tt.status, h.do(tok, http.MethodPut, tt.path, tt.body, &eb))
			assert.Equal(t, tt.code, eb.Code)
		})
	}
}

func TestSessionOwnership(t *testing.T) {
	h := newHarness(t)

	var v attempt.View
	require.Equal(t, http.StatusCreated, h.do(token(t, "alice", "student"), http.MethodPost, "/sessions", startBody(), &v))

	var eb errorBody
	require.Equal(t, http.StatusForbidden, h.do(token(t, "bob", "student"), http.MethodGet, "/sessions/"+v.ID, nil, &eb))
	assert.Equal(t, "forbidden", eb.Code)

	require.Equal(t, http.StatusNotFound, h.do(token(t, "alice", "student"), http.MethodGet, "/sessions/nope", nil, &eb))
}

func TestTeacherCannotSubmit(t *testing.T) {
	h := newHarness(t)
	tok := token(t, "tess", "teacher")

	var v attempt.View
	require.Equal(t, http.StatusCreated, h.do(tok, http.MethodPost, "/sessions", startBody(), &v))
	require.Equal(t, http.StatusForbidden, h.do(tok, http.MethodPost, "/sessions/"+v.ID+"/submit", nil, nil))
}

func TestAbandon(t *testing.T) {
	h := newHarness(t)
	tok := token(t, "alice", "student")

	var v attempt.View
	require.Equal(t, http.StatusCreated, h.do(tok, http.MethodPost, "/sessions", startBody(), &v))
	require.Equal(t, http.StatusNoContent, h.do(tok, http.MethodDelete, "/sessions/"+v.ID, nil, nil))

	require.Equal(t, http.StatusOK, h.do(tok, http.MethodGet, "/sessions/"+v.ID, nil, &v))
	assert.Equal(t, attempt.StateAbandoned, v.State)

	var eb errorBody
	require.Equal(t, http.StatusConflict, h.do(tok, http.MethodPut, "/sessions/"+v.ID+"/answers/11",
		map[string]int{"option_index": 0}, &eb))
	assert.Equal(t, "session_closed", eb.Code)
	assert.True(t, strings.Contains(eb.Error, "closed"))
}
