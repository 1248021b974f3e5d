package classify

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/cleancity/cleancity/internal/config"
)

// ModelVersion is the classifier build this client is tested against.
const ModelVersion = "mobilenetv3-1.0"

// testPixel is a 1x1 transparent PNG used for health probes.
const testPixel = "iVBORw0KGgoAAAANSUhEUgAAAAEAAAABCAYAAAAfFcSJAAAADUlEQVR42mNkYPhfDwAChwGA60e6kgAAAABJRU5ErkJggg=="

// GradioClient speaks the two-step Gradio call protocol of the hosted
// waste classification model.
type GradioClient struct {
	baseURL  string
	apiToken string
	timeout  time.Duration
	policy   RetryPolicy
	http     *http.Client
	logger   *slog.Logger
}

// NewGradioClient builds a client for the configured model endpoint.
func NewGradioClient(cfg config.ClassifierConfig, logger *slog.Logger) *GradioClient {
	return &GradioClient{
		baseURL:  strings.TrimRight(cfg.BaseURL, "/"),
		apiToken: cfg.APIToken,
		timeout:  cfg.Timeout,
		policy:   DefaultRetryPolicy(),
		http:     &http.Client{},
		logger:   logger,
	}
}

// Classify submits the image and polls for the verdict. Transient upstream
// failures are retried per the client's policy; the configured timeout bounds
// the whole exchange.
func (c *GradioClient) Classify(ctx context.Context, imageBase64 string) (Result, error) {
	if c.baseURL == "" {
		return Result{}, ErrServiceUnavailable
	}

	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	var result Result
	err := Retry(ctx, c.policy, func() error {
		eventID, err := c.submit(ctx, imageBase64)
		if err != nil {
			return err
		}

		result, err = c.poll(ctx, eventID)
		return err
	})

	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) || errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return Result{}, ErrTimeout
		}
		c.logger.Warn("classification failed", "error", err)
		return Result{}, unwrapRetryable(err)
	}

	result.ModelVersion = ModelVersion
	return result, nil
}

// Health classifies a known test image to probe the model service.
func (c *GradioClient) Health(ctx context.Context) (HealthStatus, error) {
	result, err := c.Classify(ctx, testPixel)
	if err != nil {
		return HealthStatus{Reachable: false, Message: err.Error()}, err
	}

	return HealthStatus{
		Reachable:    true,
		ModelVersion: result.ModelVersion,
	}, nil
}

// submit performs step one of the Gradio protocol and returns the event id.
func (c *GradioClient) submit(ctx context.Context, imageBase64 string) (string, error) {
	body, err := json.Marshal(map[string]interface{}{
		"data": []string{imageBase64},
	})
	if err != nil {
		return "", fmt.Errorf("marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/call/predict", bytes.NewReader(body))
	if err != nil {
		return "", fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return "", ctx.Err()
		}
		return "", NewRetryableError(fmt.Errorf("%w: %v", ErrServiceUnavailable, err))
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return "", err
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", NewRetryableError(fmt.Errorf("%w: %v", ErrServiceUnavailable, err))
	}

	// The endpoint normally returns {"event_id": "..."} but some deployments
	// reply with the bare id as text.
	var payload struct {
		EventID string `json:"event_id"`
	}
	if err := json.Unmarshal(raw, &payload); err == nil && payload.EventID != "" {
		return payload.EventID, nil
	}

	id := strings.TrimSpace(string(raw))
	if id == "" || strings.ContainsAny(id, "{}\n") {
		return "", ErrInvalidUpstreamResponse
	}
	return id, nil
}

// poll performs step two and parses the verdict out of the event stream.
func (c *GradioClient) poll(ctx context.Context, eventID string) (Result, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/call/predict/"+eventID, nil)
	if err != nil {
		return Result{}, fmt.Errorf("build request: %w", err)
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return Result{}, ctx.Err()
		}
		return Result{}, NewRetryableError(fmt.Errorf("%w: %v", ErrServiceUnavailable, err))
	}
	defer resp.Body.Close()

	if err := checkStatus(resp); err != nil {
		return Result{}, err
	}

	raw, err := io.ReadAll(resp.Body)
	if err != nil {
		return Result{}, NewRetryableError(fmt.Errorf("%w: %v", ErrServiceUnavailable, err))
	}

	return parseVerdict(raw)
}

// parseVerdict accepts the two response shapes the model service produces:
// an SSE-style body whose final data line is [[label, confidence]], or a
// flat JSON object with label and confidence fields.
func parseVerdict(raw []byte) (Result, error) {
	// Flat object shape first.
	var flat struct {
		Label      string           `json:"label"`
		Confidence *float64         `json:"confidence"`
		Data       [][2]interface{} `json:"data"`
	}
	if err := json.Unmarshal(raw, &flat); err == nil {
		if flat.Label != "" && flat.Confidence != nil {
			return Result{Label: flat.Label, Confidence: *flat.Confidence}, nil
		}
		if len(flat.Data) > 0 {
			return pairToResult(flat.Data[0])
		}
	}

	// SSE-style body: take the last non-empty data: line.
	var dataLine string
	for _, line := range strings.Split(string(raw), "\n") {
		line = strings.TrimSpace(line)
		if strings.HasPrefix(line, "data:") {
			if payload := strings.TrimSpace(strings.TrimPrefix(line, "data:")); payload != "" && payload != "null" {
				dataLine = payload
			}
		}
	}
	if dataLine == "" {
		return Result{}, ErrInvalidUpstreamResponse
	}

	var pairs [][2]interface{}
	if err := json.Unmarshal([]byte(dataLine), &pairs); err != nil || len(pairs) == 0 {
		return Result{}, ErrInvalidUpstreamResponse
	}

	return pairToResult(pairs[0])
}

func pairToResult(pair [2]interface{}) (Result, error) {
	label, ok := pair[0].(string)
	if !ok {
		return Result{}, ErrInvalidUpstreamResponse
	}
	confidence, ok := pair[1].(float64)
	if !ok {
		return Result{}, ErrInvalidUpstreamResponse
	}
	return Result{Label: label, Confidence: confidence}, nil
}

// checkStatus maps upstream HTTP status codes onto the error taxonomy.
// 429 and 5xx responses are retryable; auth failures and other client errors
// are not.
func checkStatus(resp *http.Response) error {
	switch {
	case resp.StatusCode == http.StatusOK:
		return nil
	case resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden:
		return ErrUnauthorized
	case resp.StatusCode == http.StatusTooManyRequests:
		retryAfter := time.Second
		if v := resp.Header.Get("Retry-After"); v != "" {
			if d, err := time.ParseDuration(v + "s"); err == nil {
				retryAfter = d
			}
		}
		return NewRetryableErrorWithDelay(fmt.Errorf("%w: rate limited", ErrServiceUnavailable), retryAfter)
	case resp.StatusCode >= 500:
		return NewRetryableError(fmt.Errorf("%w: upstream status %d", ErrServiceUnavailable, resp.StatusCode))
	default:
		return fmt.Errorf("%w: status %d", ErrInvalidUpstreamResponse, resp.StatusCode)
	}
}

// unwrapRetryable strips retry wrapping so callers see the taxonomy error.
func unwrapRetryable(err error) error {
	for _, target := range []error{ErrServiceUnavailable, ErrUnauthorized, ErrInvalidUpstreamResponse, ErrTimeout} {
		if errors.Is(err, target) {
			return target
		}
	}
	return err
}
