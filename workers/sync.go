// Package workers mirrors identity and program data from the platform's
// sync service into the local database.
package workers

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"sync"
	"time"

	"bounty-platform/logging"
)

const (
	ProfilesPath = "/api/v1/public/profiles"
	ProgramsPath = "/api/v1/public/programs"
)

// syncClient fetches incremental changes from the sync service.
type syncClient struct {
	baseURL      string
	serviceToken string
	httpClient   *http.Client
}

func newSyncClient(baseURL, serviceToken string) *syncClient {
	return &syncClient{
		baseURL:      baseURL,
		serviceToken: serviceToken,
		httpClient:   &http.Client{Timeout: 30 * time.Second},
	}
}

// fetch GETs path?since=<RFC3339> and decodes the JSON body into out.
func (c *syncClient) fetch(ctx context.Context, path string, since time.Time, out any) error {
	base, err := url.Parse(c.baseURL)
	if err != nil {
		return fmt.Errorf("invalid sync service URL %q: %w", c.baseURL, err)
	}
	endpoint := base.JoinPath(path)
	q := endpoint.Query()
	q.Set("since", since.UTC().Format(time.RFC3339))
	endpoint.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, endpoint.String(), nil)
	if err != nil {
		return fmt.Errorf("failed to create request to %s: %w", endpoint, err)
	}
	req.Header.Set("X-Service-Token", c.serviceToken)
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request to sync service failed: %w", err)
	}
	defer func() {
		_, _ = io.Copy(io.Discard, resp.Body)
		_ = resp.Body.Close()
	}()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return fmt.Errorf("sync service returned %d: %s", resp.StatusCode, body)
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode sync service response: %w", err)
	}
	return nil
}

// cursor is the high-water mark of remote updated_at values already applied.
type cursor struct {
	mu sync.Mutex
	at time.Time
}

func (c *cursor) get() time.Time {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.at
}

func (c *cursor) advance(t time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if t.After(c.at) {
		c.at = t
	}
}

// batch collects the outcome of one sync pass. The cursor moves to the newest
// applied change that is older than every failed one, so a failed row is
// fetched again on the next pass.
type batch struct {
	applied  []time.Time
	ceiling  time.Time
	failed   bool
	failures []error
}

func (b *batch) ok(updatedAt time.Time) {
	b.applied = append(b.applied, updatedAt)
}

func (b *batch) fail(updatedAt time.Time, err error) {
	if !b.failed || updatedAt.Before(b.ceiling) {
		b.ceiling = updatedAt
	}
	b.failed = true
	b.failures = append(b.failures, err)
}

// commit advances c and returns every failure of the pass, joined.
func (b *batch) commit(c *cursor) error {
	for _, t := range b.applied {
		if b.failed && !t.Before(b.ceiling) {
			continue
		}
		c.advance(t)
	}
	return errors.Join(b.failures...)
}

// poll runs sync once immediately and then every interval until ctx is done.
func poll(ctx context.Context, log logging.Logger, name string, interval time.Duration, syncFn func(context.Context) (int, error)) {
	log.Info(ctx, "sync worker started", "worker", name, "interval", interval)

	run := func() {
		n, err := syncFn(ctx)
		if err != nil {
			log.Error(ctx, "sync batch failed", "worker", name, "rows", n, "error", err)
			return
		}
		if n > 0 {
			log.Info(ctx, "sync batch applied", "worker", name, "rows", n)
		}
	}
	run()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			run()
		case <-ctx.Done():
			log.Info(ctx, "sync worker stopped", "worker", name)
			return
		}
	}
}
