//
// Copyright 2020 Google LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.
//

package protocol

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

	log "github.com/golang/glog"
	"github.com/google/differential-privacy/quorum/task"
)

var (
	// ErrTransport is wrapped by the error a Client returns once every
	// attempt failed to reach the server.
	ErrTransport = errors.New("transport failure")
	// ErrNotFound is returned when the server does not know a task.
	ErrNotFound = errors.New("task not found")
)

// ClientOptions configures a Client. The zero value is usable.
type ClientOptions struct {
	// HTTPClient sends the requests. Defaults to a client with a 30s timeout.
	HTTPClient *http.Client
	// Attempts is the number of tries per call. Defaults to 3.
	Attempts int
	// Backoff is multiplied by the attempt number to get the pause after a
	// failed attempt. Defaults to 100ms.
	Backoff time.Duration
}

// Client calls a protocol Server. Calls that cannot reach the server are
// retried with a linear backoff.
type Client struct {
	base     string
	http     *http.Client
	attempts int
	backoff  time.Duration
}

// NewClient returns a Client for the server at baseURL.
func NewClient(baseURL string, opts *ClientOptions) *Client {
	if opts == nil {
		opts = &ClientOptions{}
	}
	c := &Client{
		base:     strings.TrimRight(baseURL, "/"),
		http:     opts.HTTPClient,
		attempts: opts.Attempts,
		backoff:  opts.Backoff,
	}
	if c.http == nil {
		c.http = &http.Client{Timeout: 30 * time.Second}
	}
	if c.attempts <= 0 {
		c.attempts = 3
	}
	if c.backoff <= 0 {
		c.backoff = 100 * time.Millisecond
	}
	return c
}

// Create creates a task and returns its id.
func (c *Client) Create(ctx context.Context, spec task.Spec) (string, error) {
	var resp CreateResponse
	if err := c.do(ctx, http.MethodPost, "/tasks", spec, &resp); err != nil {
		return "", err
	}
	return resp.ID, nil
}

// Tasks lists every task, or only the Pending ones.
func (c *Client) Tasks(ctx context.Context, onlyPending bool) (map[string]task.Task, error) {
	path := "/tasks"
	if onlyPending {
		path += "?pending=true"
	}
	var resp map[string]task.Task
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return nil, err
	}
	return resp, nil
}

// Fetch returns task id, or an error wrapping ErrNotFound.
func (c *Client) Fetch(ctx context.Context, id string) (task.Task, error) {
	var resp task.Task
	if err := c.do(ctx, http.MethodGet, "/tasks/"+url.PathEscape(id), nil, &resp); err != nil {
		return task.Task{}, err
	}
	return resp, nil
}

// Submit sends a contribution to task id and reports whether it was accepted.
func (c *Client) Submit(ctx context.Context, id string, contribution task.Contribution) (bool, error) {
	var resp SubmitResponse
	if err := c.do(ctx, http.MethodPost, "/tasks/"+url.PathEscape(id)+"/contributions", contribution, &resp); err != nil {
		return false, err
	}
	return resp.Accepted, nil
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	var payload []byte
	if body != nil {
		var err error
		if payload, err = json.Marshal(body); err != nil {
			return fmt.Errorf("encoding request: %w", err)
		}
	}
	var lastErr error
	for attempt := 1; attempt <= c.attempts; attempt++ {
		resp, err := c.send(ctx, method, path, payload)
		if err == nil {
			defer resp.Body.Close()
			return decodeResponse(resp, out)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		lastErr = err
		if attempt == c.attempts {
			break
		}
		log.V(1).Infof("%s %s failed (attempt %d of %d): %v", method, path, attempt, c.attempts, err)
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(c.backoff * time.Duration(attempt)):
		}
	}
	return fmt.Errorf("%w: %s %s after %d attempts: %w", ErrTransport, method, path, c.attempts, lastErr)
}

func (c *Client) send(ctx context.Context, method, path string, payload []byte) (*http.Response, error) {
	var body io.Reader
	if payload != nil {
		body = bytes.NewReader(payload)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.base+path, body)
	if err != nil {
		return nil, err
	}
	if payload != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	return c.http.Do(req)
}

func decodeResponse(resp *http.Response, out any) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return fmt.Errorf("decoding response: %w", err)
		}
		return nil
	}
	if resp.StatusCode == http.StatusNotFound {
		return ErrNotFound
	}
	var e ErrorResponse
	if err := json.NewDecoder(resp.Body).Decode(&e); err != nil || e.Error == "" {
		e.Error = http.StatusText(resp.StatusCode)
	}
	if resp.StatusCode == http.StatusBadRequest {
		return fmt.Errorf("%w: %s", task.ErrMalformedInput, e.Error)
	}
	return fmt.Errorf("server returned %d: %s", resp.StatusCode, e.Error)
}
