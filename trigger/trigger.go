// trigger fires the exploration server's one-shot endpoints. Responses are
// ignored, and failures are only logged.
package trigger

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

// Server endpoints.
const (
	StartPath = "/start"
	FSPPath   = "/fsp"
)

const requestTimeout = 10 * time.Second

// Trigger issues GET requests against a base url such as http://localhost:8881.
type Trigger struct {
	base   string
	client *http.Client
}

// New returns a Trigger for the server at base. A nil client gets a default one with a timeout.
func New(base string, client *http.Client) *Trigger {
	if client == nil {
		client = &http.Client{Timeout: requestTimeout}
	}
	return &Trigger{
		base:   strings.TrimRight(base, "/"),
		client: client,
	}
}

// Do sends GET base+path and waits for the response, which is discarded.
// Non-2xx statuses are reported as errors for logging purposes only.
func (tr *Trigger) Do(ctx context.Context, path string) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, tr.base+path, nil)
	if err != nil {
		return fmt.Errorf("build request: %w", err)
	}

	resp, err := tr.client.Do(req)
	if err != nil {
		return fmt.Errorf("GET %s: %w", path, err)
	}
	defer resp.Body.Close()
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return fmt.Errorf("GET %s: unexpected status %s", path, resp.Status)
	}
	return nil
}

// Fire sends the request in the background and returns immediately.
// There is no retry, and nothing is reported to the caller.
func (tr *Trigger) Fire(path string) {
	go func() {
		if err := tr.Do(context.Background(), path); err != nil {
			log.Debug().Err(err).Str("path", path).Msg("trigger failed")
			return
		}
		log.Debug().Str("path", path).Msg("trigger sent")
	}()
}

// Start fires the exploration start endpoint.
func (tr *Trigger) Start() {
	tr.Fire(StartPath)
}

// FSP fires the fastest-path endpoint.
func (tr *Trigger) FSP() {
	tr.Fire(FSPPath)
}
