// File: internal/analysis/client.go
package analysis

import (
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"io"
	"net/http"
	"sync"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/fdmtools/printdoctor-cli/api/schemas"
	"github.com/fdmtools/printdoctor-cli/internal/config"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// StatusPoller fetches the state of one background analysis job.
type StatusPoller interface {
	PollStatus(ctx context.Context, analysisID string) (*schemas.PollResponse, error)
}

// Client submits G-code content to the remote analysis service and
// drives the poll-until-terminal lifecycle of background jobs.
//
// At most one job is active per content fingerprint: a second
// submission of identical content while the first is still in flight is
// coalesced onto the running job rather than run in parallel.
type Client struct {
	cfg    config.AnalysisConfig
	httpc  *http.Client
	logger *zap.Logger

	mu       sync.Mutex
	inFlight map[string]*JobController
}

// NewClient creates an analysis service client.
func NewClient(cfg config.AnalysisConfig, logger *zap.Logger) *Client {
	return &Client{
		cfg:      cfg,
		httpc:    &http.Client{Timeout: cfg.HTTPTimeout},
		logger:   logger.Named("analysis-client"),
		inFlight: make(map[string]*JobController),
	}
}

// submitRequest is the wire shape of a submission.
type submitRequest struct {
	FileName string `json:"file_name"`
	Content  string `json:"content"`
}

// Fingerprint identifies file content for the single-flight guard.
func Fingerprint(content []byte) string {
	sum := sha256.Sum256(content)
	return hex.EncodeToString(sum[:])
}

// Submit sends content to the analysis service. The returned
// SubmitResult always carries the synchronous portion of the response;
// when the server starts a background job the returned JobController
// owns its polling lifecycle.
//
// Submitting content whose fingerprint is already in flight returns the
// running job's controller and its original submit result.
func (c *Client) Submit(ctx context.Context, fileName string, content []byte) (*JobController, *schemas.SubmitResult, error) {
	fp := Fingerprint(content)

	c.mu.Lock()
	if running, ok := c.inFlight[fp]; ok {
		c.mu.Unlock()
		c.logger.Info("Submission coalesced onto in-flight job",
			zap.String("fingerprint", fp), zap.String("job_id", running.Snapshot().ID))
		return running, running.SubmitResult(), nil
	}
	c.mu.Unlock()

	body, err := json.Marshal(submitRequest{FileName: fileName, Content: string(content)})
	if err != nil {
		return nil, nil, fmt.Errorf("failed to encode submission: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.Endpoint+"/analyses", bytes.NewReader(body))
	if err != nil {
		return nil, nil, fmt.Errorf("failed to build submit request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, nil, &schemas.NetworkError{Op: "submit", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK && resp.StatusCode != http.StatusAccepted {
		return nil, nil, &schemas.NetworkError{
			Op:  "submit",
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, &schemas.NetworkError{Op: "submit", Err: err}
	}

	var result schemas.SubmitResult
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, nil, fmt.Errorf("failed to decode submit response: %w", err)
	}

	controller := newJobController(jobParams{
		AnalysisID:   result.AnalysisID,
		Fingerprint:  fp,
		Submit:       &result,
		Poller:       c,
		PollInterval: c.cfg.PollInterval,
		PollTimeout:  c.cfg.PollTimeout,
		Logger:       c.logger,
		OnTerminal:   func() { c.release(fp) },
	})

	if result.BackgroundAnalysisStarted && result.AnalysisID != "" {
		c.mu.Lock()
		c.inFlight[fp] = controller
		c.mu.Unlock()
		controller.start()
		c.logger.Info("Background analysis started",
			zap.String("analysis_id", result.AnalysisID), zap.String("fingerprint", fp))
	} else {
		// Synchronous result: the job is born terminal.
		controller.resolveSync(result.Result)
	}

	return controller, &result, nil
}

// PollStatus implements StatusPoller over the service's HTTP API.
func (c *Client) PollStatus(ctx context.Context, analysisID string) (*schemas.PollResponse, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.cfg.Endpoint+"/analyses/"+analysisID, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build poll request: %w", err)
	}
	if c.cfg.APIKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)
	}

	resp, err := c.httpc.Do(req)
	if err != nil {
		return nil, &schemas.NetworkError{Op: "poll", Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, &schemas.NetworkError{
			Op:  "poll",
			Err: fmt.Errorf("unexpected status %d", resp.StatusCode),
		}
	}

	var poll schemas.PollResponse
	if err := json.NewDecoder(resp.Body).Decode(&poll); err != nil {
		return nil, fmt.Errorf("failed to decode poll response: %w", err)
	}
	return &poll, nil
}

// release drops a fingerprint from the single-flight table once its job
// reaches a terminal state, allowing a fresh submission.
func (c *Client) release(fp string) {
	c.mu.Lock()
	delete(c.inFlight, fp)
	c.mu.Unlock()
}
