// Package inference is the HTTP consumer of the external emotion
// classification service. The contract is request/response only:
// image in, {emotion, confidence} out.
package inference

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"classpulse/pkg/types"
)

// ErrUnavailable covers every upstream failure mode: unreachable
// service, timeout, non-200 status, and malformed responses. Callers
// report it to the originating connection and mutate nothing.
var ErrUnavailable = errors.New("inference service unavailable")

// DefaultTimeout bounds a classification round trip. A slow service
// delays only the submitting student's pipeline, never the hub.
const DefaultTimeout = 10 * time.Second

const maxResponseBytes = 1 << 20

type predictRequest struct {
	Image string `json:"image"`
}

type predictResponse struct {
	Emotion    string   `json:"emotion"`
	Confidence *float64 `json:"confidence"`
}

// Client calls the inference service's predict endpoint.
type Client struct {
	url        string
	httpClient *http.Client
}

// NewClient creates a client for the service at baseURL. A timeout <= 0
// falls back to DefaultTimeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		url:        baseURL + "/predict",
		httpClient: &http.Client{Timeout: timeout},
	}
}

// Predict classifies one image payload. Every failure wraps
// ErrUnavailable so the pipeline has a single upstream taxonomy.
func (c *Client) Predict(ctx context.Context, imagePayload string) (*types.Prediction, error) {
	body, err := json.Marshal(predictRequest{Image: imagePayload})
	if err != nil {
		return nil, fmt.Errorf("%w: encode request: %v", ErrUnavailable, err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("%w: build request: %v", ErrUnavailable, err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: status %d", ErrUnavailable, resp.StatusCode)
	}

	var decoded predictResponse
	if err := json.NewDecoder(io.LimitReader(resp.Body, maxResponseBytes)).Decode(&decoded); err != nil {
		return nil, fmt.Errorf("%w: decode response: %v", ErrUnavailable, err)
	}
	if decoded.Emotion == "" || decoded.Confidence == nil {
		return nil, fmt.Errorf("%w: malformed response: missing emotion or confidence", ErrUnavailable)
	}
	if *decoded.Confidence < 0 || *decoded.Confidence > 1 {
		return nil, fmt.Errorf("%w: malformed response: confidence %v outside [0,1]", ErrUnavailable, *decoded.Confidence)
	}

	return &types.Prediction{Emotion: decoded.Emotion, Confidence: *decoded.Confidence}, nil
}
