package models

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/tidwall/gjson"
)

// DefaultScorePath is the gjson path of the scores array in a BYOM response.
const DefaultScorePath = "scores"

// BYOMScorer implements a scorer that delegates to an external HTTP service.
// This allows plugging in any anomaly model (a retrained forest, an
// autoencoder, a hosted endpoint) as long as the service accepts
//
//	POST {"instances": [[f0, f1, ...], ...]}
//
// and answers with one decision value per instance at ScorePath.
type BYOMScorer struct {
	endpoint  string
	scorePath string
	client    *http.Client
}

type byomRequest struct {
	Instances [][]float64 `json:"instances"`
}

// NewBYOMScorer creates a scorer that calls endpoint. An empty scorePath
// selects DefaultScorePath; a nil client selects a pooled client with a 30s
// timeout.
func NewBYOMScorer(endpoint, scorePath string, client *http.Client) *BYOMScorer {
	if scorePath == "" {
		scorePath = DefaultScorePath
	}
	if client == nil {
		client = NewBYOMClient(30*time.Second, nil)
	}
	return &BYOMScorer{
		endpoint:  endpoint,
		scorePath: scorePath,
		client:    client,
	}
}

// NewBYOMClient returns the HTTP client used for BYOM calls. transport may
// be nil; otherwise its TLS settings are kept and pooling is tuned.
func NewBYOMClient(timeout time.Duration, transport *http.Transport) *http.Client {
	if transport == nil {
		transport = &http.Transport{}
	}
	transport.MaxIdleConns = 10
	transport.IdleConnTimeout = 90 * time.Second
	transport.MaxIdleConnsPerHost = 2
	return &http.Client{
		Timeout:   timeout,
		Transport: transport,
	}
}

// Name returns the scorer identifier.
func (s *BYOMScorer) Name() string {
	return "byom"
}

// DecisionFunction posts the batch to the external service and returns its
// decision values.
func (s *BYOMScorer) DecisionFunction(ctx context.Context, batch [][]float64) ([]float64, error) {
	if len(batch) == 0 {
		return []float64{}, nil
	}

	body, err := json.Marshal(byomRequest{Instances: batch})
	if err != nil {
		return nil, fmt.Errorf("byom: marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, s.endpoint, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("byom: create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")

	resp, err := s.client.Do(httpReq)
	if err != nil {
		return nil, fmt.Errorf("byom: http request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		bodyBytes, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, fmt.Errorf("byom: http %d: %s", resp.StatusCode, string(bodyBytes))
	}

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("byom: read response: %w", err)
	}

	return s.extract(respBody, len(batch))
}

func (s *BYOMScorer) extract(body []byte, want int) ([]float64, error) {
	if !gjson.ValidBytes(body) {
		return nil, fmt.Errorf("byom: response is not valid JSON")
	}

	result := gjson.GetBytes(body, s.scorePath)
	if !result.Exists() {
		return nil, fmt.Errorf("byom: response has no %q field", s.scorePath)
	}
	if !result.IsArray() {
		return nil, fmt.Errorf("byom: %q is not an array", s.scorePath)
	}

	items := result.Array()
	if len(items) != want {
		return nil, fmt.Errorf("byom: expected %d scores, got %d", want, len(items))
	}

	scores := make([]float64, len(items))
	for i, item := range items {
		if item.Type != gjson.Number {
			return nil, fmt.Errorf("byom: score %d is not a number: %s", i, item.Raw)
		}
		scores[i] = item.Float()
	}
	return scores, nil
}
