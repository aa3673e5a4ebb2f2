// Package solver is the client of the external LCIA solver service.
package solver

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/OFFIS-RIT/lcaexport/backend/pkg/common"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/logger"
	"github.com/OFFIS-RIT/lcaexport/backend/pkg/metrics"
)

const DefaultEndpoint = "http://127.0.0.1:8000/v1/lcia"

// maxErrorBody bounds how much of a failed response is kept in the error.
const maxErrorBody = 64 << 10

// RequestError is returned for non-2xx solver responses.
type RequestError struct {
	StatusCode int
	Body       string
}

func (e *RequestError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("LCIA solver request failed (%d)", e.StatusCode)
	}
	return fmt.Sprintf("LCIA solver request failed (%d): %s", e.StatusCode, e.Body)
}

// SnapshotBuilder builds the snapshot that is sent to the solver.
type SnapshotBuilder interface {
	Build(ctx context.Context, modelID, version, commit string) (*common.Snapshot, error)
}

type Client struct {
	endpoint string
	http     *http.Client
}

type NewClientParams struct {
	// Endpoint defaults to DefaultEndpoint when blank.
	Endpoint string
	// Timeout applies to one solver call. Zero means no timeout.
	Timeout    time.Duration
	HTTPClient *http.Client
}

func NewClient(params NewClientParams) *Client {
	endpoint := strings.TrimSpace(params.Endpoint)
	if endpoint == "" {
		endpoint = DefaultEndpoint
	}
	httpClient := params.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{Timeout: params.Timeout}
	}
	return &Client{endpoint: endpoint, http: httpClient}
}

// Endpoint returns the URL requests are posted to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Run posts the snapshot and decodes the indicator-by-process matrix.
func (c *Client) Run(ctx context.Context, snap *common.Snapshot) (*common.SolverResult, error) {
	result, err := c.run(ctx, snap)
	if err != nil {
		metrics.SolverRequestsTotal.WithLabelValues(metrics.StatusFailed).Inc()
		return nil, err
	}
	metrics.SolverRequestsTotal.WithLabelValues(metrics.StatusOK).Inc()
	return result, nil
}

func (c *Client) run(ctx context.Context, snap *common.Snapshot) (*common.SolverResult, error) {
	body, err := json.Marshal(common.SolverRequest{Snapshot: snap})
	if err != nil {
		return nil, fmt.Errorf("failed to encode solver request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to create solver request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	start := time.Now()
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to call LCIA solver: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		detail, readErr := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		if readErr != nil {
			logger.Warn("Failed to read solver error response", "status", resp.StatusCode, "err", readErr)
		}
		return nil, &RequestError{StatusCode: resp.StatusCode, Body: string(detail)}
	}

	var result common.SolverResult
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return nil, fmt.Errorf("failed to decode solver response: %w", err)
	}

	logger.Debug("[Solver] Request finished",
		"indicators", len(result.IndicatorIndex),
		"processes", len(result.ProcessIndex),
		"issues", len(result.Issues),
		"duration", time.Since(start),
	)
	return &result, nil
}

// RunForModel builds the snapshot of a model and solves it. The snapshot is
// returned alongside the result so callers can resolve labels.
func (c *Client) RunForModel(ctx context.Context, builder SnapshotBuilder, modelID, version, commit string) (*common.Snapshot, *common.SolverResult, error) {
	snap, err := builder.Build(ctx, modelID, version, commit)
	if err != nil {
		return nil, nil, err
	}
	result, err := c.Run(ctx, snap)
	if err != nil {
		return nil, nil, err
	}
	return snap, result, nil
}
