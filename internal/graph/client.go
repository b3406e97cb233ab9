// Package graph is a small Microsoft Graph client built around the JSON $batch
// endpoint. A batch round may hold any number of sub-requests; the client
// splits it into chunks Graph accepts, sends the chunks concurrently and hands
// back the sub-responses keyed by the caller's correlation keys.
package graph

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/team-roster/team-roster/internal/safego"
	"github.com/team-roster/team-roster/internal/telemetry"
)

const (
	// DefaultBaseURL is the versioned Graph root used when none is configured.
	DefaultBaseURL = "https://graph.microsoft.com/v1.0"
	// maxBatchSize is the sub-request limit Graph enforces per $batch call.
	maxBatchSize = 20
	// maxResponseBytes caps how much of a Graph response body is read.
	maxResponseBytes = 16 << 20
)

// Client sends requests to Microsoft Graph. Authentication is the concern of
// the supplied http.Client's transport.
type Client struct {
	httpClient *http.Client
	baseURL    string
	chunkSize  int
}

// NewClient creates a Graph client. A chunkSize outside 1..20 is clamped to 20.
func NewClient(httpClient *http.Client, baseURL string, chunkSize int) *Client {
	if httpClient == nil {
		httpClient = http.DefaultClient
	}
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if chunkSize <= 0 || chunkSize > maxBatchSize {
		chunkSize = maxBatchSize
	}
	return &Client{
		httpClient: httpClient,
		baseURL:    strings.TrimRight(baseURL, "/"),
		chunkSize:  chunkSize,
	}
}

type batchRequestItem struct {
	ID      string            `json:"id"`
	Method  string            `json:"method"`
	URL     string            `json:"url"`
	Body    any               `json:"body,omitempty"`
	Headers map[string]string `json:"headers,omitempty"`
}

type batchRequest struct {
	Requests []batchRequestItem `json:"requests"`
}

type batchResponseItem struct {
	ID     string          `json:"id"`
	Status int             `json:"status"`
	Body   json.RawMessage `json:"body"`
}

type batchResponse struct {
	Responses []batchResponseItem `json:"responses"`
}

// Batch executes reqs as one logical round. When every chunk succeeds the
// error is nil. When a chunk fails, Batch returns the sub-responses of the
// chunks that did succeed together with the first chunk error. Sub-requests
// that Graph answered with a non-2xx status are present in the result with
// that status.
func (c *Client) Batch(ctx context.Context, reqs []Request) (Responses, error) {
	out := make(Responses, len(reqs))
	if len(reqs) == 0 {
		return out, nil
	}

	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	for start := 0; start < len(reqs); start += c.chunkSize {
		chunk := reqs[start:min(start+c.chunkSize, len(reqs))]
		g.Go(func() error {
			return safego.Do(func() error {
				got, err := c.sendChunk(ctx, chunk)
				telemetry.GraphBatchRequestsTotal.WithLabelValues(outcomeLabel(err)).Inc()
				if err != nil {
					return err
				}
				mu.Lock()
				for k, v := range got {
					out[k] = v
				}
				mu.Unlock()
				return nil
			})
		})
	}

	return out, g.Wait()
}

func outcomeLabel(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}

// sendChunk performs a single $batch exchange. Wire ids are the positions of
// the sub-requests within the chunk.
func (c *Client) sendChunk(ctx context.Context, chunk []Request) (Responses, error) {
	keys := make(map[string]Key, len(chunk))
	payload := batchRequest{Requests: make([]batchRequestItem, 0, len(chunk))}
	for i, r := range chunk {
		id := strconv.Itoa(i)
		keys[id] = r.Key

		method := r.Method
		if method == "" {
			method = http.MethodGet
		}
		headers := r.Headers
		if r.Body != nil {
			if _, ok := headers["Content-Type"]; !ok {
				headers = make(map[string]string, len(r.Headers)+1)
				for k, v := range r.Headers {
					headers[k] = v
				}
				headers["Content-Type"] = "application/json"
			}
		}
		payload.Requests = append(payload.Requests, batchRequestItem{
			ID:      id,
			Method:  method,
			URL:     r.URL,
			Body:    r.Body,
			Headers: headers,
		})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("failed to encode batch request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/$batch", bytes.NewReader(body))
	if err != nil {
		return nil, err
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("batch request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read batch response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, apiErrorFromBody(resp.StatusCode, raw)
	}

	var decoded batchResponse
	if err := json.Unmarshal(raw, &decoded); err != nil {
		return nil, fmt.Errorf("failed to decode batch response: %w", err)
	}

	out := make(Responses, len(decoded.Responses))
	for _, item := range decoded.Responses {
		key, ok := keys[item.ID]
		if !ok {
			slog.Debug("ignoring batch response with unknown id", "id", item.ID)
			continue
		}
		out[key] = Response{Status: item.Status, Body: item.Body}
		telemetry.GraphSubrequestsTotal.WithLabelValues(string(key.Kind), statusClass(item.Status)).Inc()
		delete(keys, item.ID)
	}
	for _, key := range keys {
		telemetry.GraphSubrequestsTotal.WithLabelValues(string(key.Kind), "missing").Inc()
	}
	return out, nil
}

// Get performs a single GET against path (relative to the Graph root) and
// decodes the JSON body into out. A non-2xx answer is returned as *APIError;
// a 404 additionally matches ErrNotFound.
func (c *Client) Get(ctx context.Context, path string, out any) error {
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	httpReq.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return fmt.Errorf("graph request failed: %w", err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return fmt.Errorf("failed to read graph response: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return apiErrorFromBody(resp.StatusCode, raw)
	}
	if out == nil {
		return nil
	}
	if err := json.Unmarshal(raw, out); err != nil {
		return fmt.Errorf("failed to decode graph response: %w", err)
	}
	return nil
}
