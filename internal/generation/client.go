// Package generation calls the hosted generation endpoint that turns an
// incident description into a structured playbook.
package generation

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hpungsan/playbook/internal/errors"
	"github.com/hpungsan/playbook/internal/playbook"
)

// Path is the generation function route, relative to the base URL.
const Path = "/functions/v1/generate-playbook"

// AIGeneratedTag marks entries produced by the generator.
const AIGeneratedTag = "AI Generated"

// maxErrorBody bounds how much of a failure response is read.
const maxErrorBody = 64 << 10

// Request is the incident sent for generation.
type Request struct {
	Title     string `json:"title"`
	Category  string `json:"category"`
	Summary   string `json:"summary"`
	RootCause string `json:"rootCause,omitempty"`
	Impact    string `json:"impact,omitempty"`
	Industry  string `json:"industry"`
}

// Result is the generated playbook content.
type Result struct {
	RootCause           string   `json:"rootCause"`
	Impact              string   `json:"impact"`
	Recommendation      string   `json:"recommendation"`
	DoList              []string `json:"doList"`
	DontList            []string `json:"dontList"`
	PreventionChecklist []string `json:"preventionChecklist"`
}

type errorResponse struct {
	Error string `json:"error"`
}

// Client posts incidents to the generation endpoint. It sets no timeout and
// never retries: a hung request lasts until ctx is done.
type Client struct {
	baseURL string
	anonKey string
	client  *http.Client
	logger  *zap.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default http.Client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.client = hc }
}

// WithLogger sets the client's logger.
func WithLogger(l *zap.Logger) Option {
	return func(c *Client) { c.logger = l }
}

// NewClient creates a client for the endpoint at baseURL + Path.
func NewClient(baseURL, anonKey string, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		anonKey: anonKey,
		client:  &http.Client{},
		logger:  zap.NewNop(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Generate sends req and returns the generated content. Any non-2xx response
// becomes a GENERATION_FAILED error carrying the server's message verbatim,
// or "Generation failed" when it sent none.
func (c *Client) Generate(ctx context.Context, req Request) (*Result, error) {
	body, err := json.Marshal(req)
	if err != nil {
		return nil, errors.NewInternal(fmt.Errorf("failed to marshal request: %w", err))
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+Path, bytes.NewReader(body))
	if err != nil {
		return nil, errors.NewGenerationFailed("", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Authorization", "Bearer "+c.anonKey)

	start := time.Now()
	resp, err := c.client.Do(httpReq)
	if err != nil {
		c.logger.Warn("generation request failed", zap.Error(err))
		return nil, errors.NewGenerationFailed("", err)
	}
	defer resp.Body.Close()

	c.logger.Debug("generation response",
		zap.Int("status", resp.StatusCode),
		zap.Duration("elapsed", time.Since(start)))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		var errResp errorResponse
		_ = json.Unmarshal(raw, &errResp)
		c.logger.Warn("generation rejected",
			zap.Int("status", resp.StatusCode),
			zap.String("error", errResp.Error))
		return nil, errors.NewGenerationFailed(errResp.Error, fmt.Errorf("status %d", resp.StatusCode))
	}

	var result Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, errors.NewGenerationFailed("", fmt.Errorf("failed to decode response: %w", err))
	}
	return &result, nil
}

// NewEntry builds the Draft entry for a generated result: input fields are
// kept as typed, the rest comes from res, and tags are
// [industry, category, "AI Generated"].
func NewEntry(in Request, res *Result, now time.Time) (playbook.Entry, error) {
	id, err := playbook.NewID()
	if err != nil {
		return playbook.Entry{}, errors.NewInternal(err)
	}
	ts := playbook.NowMillis(now)

	e := playbook.Entry{
		ID:          id,
		Title:       strings.TrimSpace(in.Title),
		Industry:    in.Industry,
		Category:    in.Category,
		Status:      playbook.StatusDraft,
		DateCreated: ts,
		LastUpdated: ts,
		Summary:     strings.TrimSpace(in.Summary),
		Tags:        []string{in.Industry, in.Category, AIGeneratedTag},
	}
	if res != nil {
		e.RootCause = res.RootCause
		e.Impact = res.Impact
		e.Recommendation = res.Recommendation
		e.DoList = nonNil(res.DoList)
		e.DontList = nonNil(res.DontList)
		e.PreventionChecklist = nonNil(res.PreventionChecklist)
	}
	return e, nil
}

func nonNil(s []string) []string {
	if s == nil {
		return []string{}
	}
	return s
}
