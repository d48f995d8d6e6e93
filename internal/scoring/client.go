// Package scoring talks to the external assessment engine. Item selection,
// scoring, and percentile math all live behind that API; this service only
// orchestrates sessions around it.
package scoring

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/gioe/aiq-sub010/internal/model"
	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// ErrUnavailable wraps transport failures and engine 5xx responses. Callers
// may retry these; nothing in this package retries automatically.
var ErrUnavailable = errors.New("scoring engine unavailable")

// APIError is a non-retryable rejection from the engine (4xx).
type APIError struct {
	Status int
	Body   string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("scoring engine rejected request: status %d: %s", e.Status, e.Body)
}

// Retryable reports whether an error is worth retrying: transport trouble
// or an engine-side failure. Rejections and decode errors are not.
func Retryable(err error) bool {
	return errors.Is(err, ErrUnavailable)
}

// Config carries the engine endpoint settings.
type Config struct {
	BaseURL string
	APIKey  string
	Timeout time.Duration
}

// Client is the HTTP client for the assessment engine.
type Client struct {
	httpClient *http.Client
	baseURL    string
	apiKey     string
	log        zerolog.Logger
}

// New builds a Client. A zero timeout defaults to 15 seconds.
func New(cfg Config, log zerolog.Logger) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		apiKey:     cfg.APIKey,
		log:        log.With().Str("component", "scoring").Logger(),
	}
}

// FormRequest asks the engine to assemble a fixed-form question set.
type FormRequest struct {
	SessionID uuid.UUID `json:"session_id"`
	UserID    uuid.UUID `json:"user_id"`
}

type formResponse struct {
	Questions []model.Question `json:"questions"`
}

// FetchForm assembles the fixed-form question list for a new session.
func (c *Client) FetchForm(ctx context.Context, req FormRequest) ([]model.Question, error) {
	var out formResponse
	if err := c.post(ctx, "/v1/forms", req, &out); err != nil {
		return nil, err
	}
	return out.Questions, nil
}

// NextQuestionRequest asks for the next adaptive item given the answers so far.
type NextQuestionRequest struct {
	SessionID uuid.UUID            `json:"session_id"`
	Answers   []model.AnswerRecord `json:"answers"`
}

type nextQuestionResponse struct {
	Done     bool            `json:"done"`
	Question *model.Question `json:"question,omitempty"`
}

// NextQuestion returns the next adaptive item, or done=true when the engine
// has converged and the attempt should be submitted.
func (c *Client) NextQuestion(ctx context.Context, req NextQuestionRequest) (*model.Question, bool, error) {
	var out nextQuestionResponse
	if err := c.post(ctx, "/v1/sessions/next-question", req, &out); err != nil {
		return nil, false, err
	}
	if out.Done {
		return nil, true, nil
	}
	if out.Question == nil {
		return nil, false, errors.New("decode next-question response: missing question")
	}
	return out.Question, false, nil
}

// Score submits the answers for scoring and returns the final result.
func (c *Client) Score(ctx context.Context, payload model.SubmissionPayload) (*model.SubmittedTestResult, error) {
	var out model.SubmittedTestResult
	if err := c.post(ctx, "/v1/score", payload, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// AbandonRequest tells the engine to discard its session-side state.
type AbandonRequest struct {
	SessionID uuid.UUID `json:"session_id"`
}

// Abandon discards the engine's state for a session.
func (c *Client) Abandon(ctx context.Context, sessionID uuid.UUID) error {
	return c.post(ctx, "/v1/sessions/abandon", AbandonRequest{SessionID: sessionID}, nil)
}

func (c *Client) post(ctx context.Context, path string, in, out any) error {
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("encode request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		c.log.Error().Err(err).Str("path", path).Msg("engine request failed")
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer resp.Body.Close()

	c.log.Debug().
		Str("path", path).
		Int("status", resp.StatusCode).
		Dur("elapsed", time.Since(start)).
		Msg("engine response")

	switch {
	case resp.StatusCode >= 500:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("%w: status %d: %s", ErrUnavailable, resp.StatusCode, string(snippet))
	case resp.StatusCode >= 400:
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return &APIError{Status: resp.StatusCode, Body: string(snippet)}
	}

	if out == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
