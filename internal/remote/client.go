// Package remote is the HTTP persistence client: it loads and saves
// progress trees and submits assessments to the prepcoach API.
package remote

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/abhisek/prepcoach/internal/assessment"
	"github.com/abhisek/prepcoach/internal/logger"
	"github.com/abhisek/prepcoach/internal/progress"
	"github.com/abhisek/prepcoach/internal/tokencache"
)

// StatusError reports a non-success HTTP response.
type StatusError struct {
	Code int
	Body string
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("remote returned %d: %s", e.Code, e.Body)
}

// IsUnauthorized reports whether err is a 401 from the server.
func IsUnauthorized(err error) bool {
	var se *StatusError
	return errors.As(err, &se) && se.Code == http.StatusUnauthorized
}

// Client talks to the API. It implements progress.Repository and
// assessment.Submitter.
type Client struct {
	baseURL string
	http    *http.Client
	tokens  tokencache.Store
	log     *logger.Logger
}

var (
	_ progress.Repository  = (*Client)(nil)
	_ assessment.Submitter = (*Client)(nil)
)

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.http = hc }
}

// WithLogger sets the logger.
func WithLogger(l *logger.Logger) Option {
	return func(c *Client) { c.log = l }
}

// New creates a client for baseURL. tokens holds the bearer token under
// tokencache.TokenKey.
func New(baseURL string, tokens tokencache.Store, opts ...Option) *Client {
	c := &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: 30 * time.Second},
		tokens:  tokens,
	}
	for _, o := range opts {
		o(c)
	}
	c.log = logger.OrNop(c.log).With("component", "remote")
	return c
}

// LoadProgress fetches a journey's progress. A 404 means none exists and
// returns nil, nil.
func (c *Client) LoadProgress(ctx context.Context, journeyID string) (*progress.JourneyProgress, error) {
	var p progress.JourneyProgress
	err := c.do(ctx, http.MethodGet, "/v1/journeys/"+url.PathEscape(journeyID)+"/progress", nil, &p)
	var se *StatusError
	if errors.As(err, &se) && se.Code == http.StatusNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &p, nil
}

// SaveProgress uploads a journey's progress.
func (c *Client) SaveProgress(ctx context.Context, p *progress.JourneyProgress) error {
	return c.do(ctx, http.MethodPut, "/v1/journeys/"+url.PathEscape(p.JourneyID)+"/progress", p, nil)
}

// SubmitAssessment posts a finished assessment and returns the server's
// grading.
func (c *Client) SubmitAssessment(ctx context.Context, sub *assessment.Submission) (*assessment.Result, error) {
	var res assessment.Result
	if err := c.do(ctx, http.MethodPost, "/v1/stages/"+url.PathEscape(sub.StageID)+"/assessments", sub, &res); err != nil {
		return nil, err
	}
	return &res, nil
}

func (c *Client) do(ctx context.Context, method, path string, in, out any) error {
	var body io.Reader
	if in != nil {
		data, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("encode request: %w", err)
		}
		body = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if err := c.authorize(ctx, req); err != nil {
		return err
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		serr := &StatusError{Code: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
		if resp.StatusCode == http.StatusUnauthorized && c.tokens != nil {
			// Drop the rejected token.
			if err := c.tokens.Clear(ctx, tokencache.TokenKey); err != nil {
				c.log.Warn("clear rejected token", "error", err)
			}
		}
		c.log.Debug("remote call failed", "method", method, "path", path, "status", resp.StatusCode)
		return serr
	}

	if out == nil || resp.StatusCode == http.StatusNoContent {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}

func (c *Client) authorize(ctx context.Context, req *http.Request) error {
	if c.tokens == nil {
		return nil
	}
	tok, err := c.tokens.Get(ctx, tokencache.TokenKey)
	if errors.Is(err, tokencache.ErrNotFound) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read token: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+tok)
	return nil
}
