package classify

import (
	"context"
	"encoding/base64"
	"errors"
	"strings"
)

// Error taxonomy for the classification gate. Handlers map these onto HTTP
// status codes, so new failure modes should extend this set rather than
// returning ad-hoc errors.
var (
	ErrInvalidImageEncoding    = errors.New("image is not valid base64")
	ErrPayloadTooLarge         = errors.New("decoded image exceeds size limit")
	ErrServiceUnavailable      = errors.New("classification service unavailable")
	ErrTimeout                 = errors.New("classification timed out")
	ErrInvalidUpstreamResponse = errors.New("unexpected classifier response")
	ErrUnauthorized            = errors.New("classifier rejected credentials")
)

// MaxImageBytes caps the decoded submission image at 5 MiB.
const MaxImageBytes = 5 << 20

// Decision thresholds. Acceptance and rejection are asymmetric: a confident
// waste label passes at 0.65, but a non-waste label must reach 0.75 before
// the submission is turned away outright.
const (
	WasteAcceptThreshold    = 0.65
	NonWasteRejectThreshold = 0.75
)

// Classifier decides whether a submitted photo actually shows waste.
type Classifier interface {
	// Classify runs the model on a bare base64-encoded image.
	Classify(ctx context.Context, imageBase64 string) (Result, error)
}

// HealthChecker is implemented by classifiers that can probe the upstream
// model service.
type HealthChecker interface {
	Health(ctx context.Context) (HealthStatus, error)
}

// Result is a single classification verdict.
type Result struct {
	Label        string  `json:"label"`
	Confidence   float64 `json:"confidence"`
	ModelVersion string  `json:"model_version,omitempty"`
}

// IsWaste reports whether the label identifies the image as waste.
// Matching is a case-insensitive substring check so model label variants
// ("Waste", "waste_pile") all count.
func (r Result) IsWaste() bool {
	return strings.Contains(strings.ToLower(r.Label), "waste")
}

// Outcome is the gate's decision for a submission.
type Outcome string

const (
	OutcomeAccepted      Outcome = "accepted"
	OutcomeNotWaste      Outcome = "not_waste"
	OutcomeLowConfidence Outcome = "low_confidence"
)

// Decide applies the asymmetric thresholds to a classification result.
func Decide(r Result) Outcome {
	if r.IsWaste() {
		if r.Confidence >= WasteAcceptThreshold {
			return OutcomeAccepted
		}
		return OutcomeLowConfidence
	}

	if r.Confidence >= NonWasteRejectThreshold {
		return OutcomeNotWaste
	}
	return OutcomeLowConfidence
}

// HealthStatus describes reachability of the upstream model.
type HealthStatus struct {
	Reachable    bool   `json:"reachable"`
	ModelVersion string `json:"model_version,omitempty"`
	Message      string `json:"message,omitempty"`
}

// NormalizeImage strips an optional data-URI prefix, validates the base64
// payload, and enforces the decoded size limit. It returns the bare base64
// string ready for upstream calls.
func NormalizeImage(imageBase64 string) (string, error) {
	raw := StripDataURI(imageBase64)
	if raw == "" {
		return "", ErrInvalidImageEncoding
	}

	decoded, err := base64.StdEncoding.DecodeString(raw)
	if err != nil {
		return "", ErrInvalidImageEncoding
	}

	if len(decoded) > MaxImageBytes {
		return "", ErrPayloadTooLarge
	}

	return raw, nil
}

// StripDataURI removes a leading "data:image/...;base64," prefix if present.
func StripDataURI(s string) string {
	if !strings.HasPrefix(s, "data:") {
		return s
	}

	idx := strings.Index(s, "base64,")
	if idx < 0 {
		return s
	}
	return s[idx+len("base64,"):]
}
