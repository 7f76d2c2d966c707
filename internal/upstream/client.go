package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/mind-engage/mindengage-attempts/internal/attempt"
	auth "github.com/mind-engage/mindengage-attempts/internal/auth/middleware"
	"github.com/mind-engage/mindengage-attempts/internal/metrics"
)

// maxErrorBody bounds how much of a failed response is kept for the error.
const maxErrorBody = 512

type Config struct {
	BaseURL string
	Timeout time.Duration
	// RatePerSec paces outgoing calls; zero disables pacing.
	RatePerSec float64
	Burst      int
}

// Client talks to the classroom API. The caller's bearer token is passed per
// call and never stored.
type Client struct {
	base    *url.URL
	http    *http.Client
	limiter *rate.Limiter
	log     *zap.Logger
}

// StatusError is a non-2xx response from the classroom API.
type StatusError struct {
	Call   string
	Status int
	Body   string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s: %d %s", e.Call, e.Status, http.StatusText(e.Status))
	}
	return fmt.Sprintf("%s: %d %s: %s", e.Call, e.Status, http.StatusText(e.Status), e.Body)
}

func New(cfg Config, log *zap.Logger) (*Client, error) {
	base, err := url.Parse(strings.TrimSuffix(cfg.BaseURL, "/") + "/")
	if err != nil {
		return nil, errors.Wrap(err, "parse upstream base url")
	}
	if base.Scheme == "" || base.Host == "" {
		return nil, errors.Errorf("upstream base url %q must be absolute", cfg.BaseURL)
	}
	h := &http.Client{Timeout: cfg.Timeout}
	limiter := rate.NewLimiter(rate.Inf, 0)
	if cfg.RatePerSec > 0 {
		burst := cfg.Burst
		if burst <= 0 {
			burst = 1
		}
		limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), burst)
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Client{base: base, http: h, limiter: limiter, log: log.Named("upstream")}, nil
}

var _ attempt.Client = (*Client)(nil)

// GET {base}/assignment/{assignmentID}
func (c *Client) FetchQuestions(ctx context.Context, caller auth.Caller, assignmentID string) (attempt.Assignment, error) {
	var aw assignmentWire
	body, err := c.do(ctx, caller, "fetch questions", http.MethodGet, "assignment/"+url.PathEscape(assignmentID), nil)
	if err != nil {
		return attempt.Assignment{}, err
	}
	if err := json.Unmarshal(body, &aw); err != nil {
		return attempt.Assignment{}, errors.Wrap(err, "decode assignment")
	}
	return aw.toAssignment(assignmentID), nil
}

// GET {base}/assignment/test/{assignmentID}
func (c *Client) FetchAttemptID(ctx context.Context, caller auth.Caller, assignmentID string) (string, error) {
	body, err := c.do(ctx, caller, "fetch attempt id", http.MethodGet, "assignment/test/"+url.PathEscape(assignmentID), nil)
	if err != nil {
		return "", err
	}
	id := parseAttemptID(body)
	if id == "" {
		return "", errors.New("fetch attempt id: empty response")
	}
	return id, nil
}

// POST {base}/evaluate/{attemptID}
func (c *Client) Evaluate(ctx context.Context, caller auth.Caller, attemptID string, payload []attempt.PayloadItem) (attempt.EvaluationResult, error) {
	reqBody, err := json.Marshal(toPayloadWire(payload))
	if err != nil {
		return attempt.EvaluationResult{}, errors.Wrap(err, "encode payload")
	}
	body, err := c.do(ctx, caller, "evaluate", http.MethodPost, "evaluate/"+url.PathEscape(attemptID), reqBody)
	if err != nil {
		return attempt.EvaluationResult{}, err
	}
	var ew evaluationWire
	if err := json.Unmarshal(body, &ew); err != nil {
		return attempt.EvaluationResult{}, errors.Wrap(err, "decode evaluation")
	}
	return ew.toResult(), nil
}

// IsAlreadyAttempted matches the assignment against either id field of the
// caller's attempted list for the classroom.
// GET {base}/assignment/classroom/{classroomID}/attempted-assignments
func (c *Client) IsAlreadyAttempted(ctx context.Context, caller auth.Caller, classroomID, assignmentID string) (bool, error) {
	path := "assignment/classroom/" + url.PathEscape(classroomID) + "/attempted-assignments"
	body, err := c.do(ctx, caller, "attempted assignments", http.MethodGet, path, nil)
	if err != nil {
		return false, err
	}
	var list []attemptedWire
	if len(bytes.TrimSpace(body)) > 0 {
		if err := json.Unmarshal(body, &list); err != nil {
			return false, errors.Wrap(err, "decode attempted assignments")
		}
	}
	for _, a := range list {
		if a.matches(assignmentID) {
			return true, nil
		}
	}
	return false, nil
}

func (c *Client) do(ctx context.Context, caller auth.Caller, call, method, path string, body []byte) ([]byte, error) {
	if err := c.limiter.Wait(ctx); err != nil {
		return nil, errors.Wrap(err, call)
	}
	u := c.base.ResolveReference(&url.URL{Path: path})

	var rdr io.Reader
	if body != nil {
		rdr = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, u.String(), rdr)
	if err != nil {
		return nil, errors.Wrap(err, call)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if caller.Token != "" {
		req.Header.Set("Authorization", "Bearer "+caller.Token)
	}

	start := time.Now()
	res, err := c.http.Do(req)
	if err != nil {
		metrics.UpstreamDuration.WithLabelValues(call, "error").Observe(time.Since(start).Seconds())
		return nil, errors.Wrap(err, call)
	}
	defer res.Body.Close()
	metrics.UpstreamDuration.WithLabelValues(call, strconv.Itoa(res.StatusCode)).Observe(time.Since(start).Seconds())

	data, err := io.ReadAll(res.Body)
	if err != nil {
		return nil, errors.Wrapf(err, "%s: read body", call)
	}
	c.log.Debug("upstream call",
		zap.String("call", call),
		zap.String("url", u.String()),
		zap.Int("status", res.StatusCode),
		zap.Duration("took", time.Since(start)))

	if res.StatusCode/100 != 2 {
		msg := strings.TrimSpace(string(data))
		if len(msg) > maxErrorBody {
			msg = msg[:maxErrorBody]
		}
		return nil, &StatusError{Call: call, Status: res.StatusCode, Body: msg}
	}
	return data, nil
}
