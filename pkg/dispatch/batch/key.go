package batch

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Model-parameter defaults assumed by upstream completion APIs. Requests
// that carry a parameter at its default value are interchangeable with
// requests that omit it.
const (
	defaultTemperature = 0.7
	defaultTopP        = 1.0
)

// Params are the canonical batching parameters of a completion request.
// Nil pointer fields mean "absent or at the API default" and are excluded
// from the batch key.
type Params struct {
	// Model is the requested model identifier. Always present.
	Model string

	// Temperature, when non-nil, differs from the 0.7 default.
	Temperature *float64

	// MaxTokens, when non-nil, was present in the request.
	MaxTokens *int

	// TopP, when non-nil, differs from the 1.0 default.
	TopP *float64
}

// requestBody is the subset of a completion request body relevant to
// batch-key derivation.
type requestBody struct {
	Model       string   `json:"model"`
	Temperature *float64 `json:"temperature"`
	MaxTokens   *int     `json:"max_tokens"`
	TopP        *float64 `json:"top_p"`
}

// ParseParams extracts canonical batching parameters from a request body.
// It returns false when the body is not valid JSON or has no model field,
// in which case the request is not batchable.
func ParseParams(body []byte) (*Params, bool) {
	var rb requestBody
	if err := json.Unmarshal(body, &rb); err != nil {
		return nil, false
	}
	if rb.Model == "" {
		return nil, false
	}

	p := &Params{Model: rb.Model, MaxTokens: rb.MaxTokens}
	if rb.Temperature != nil && *rb.Temperature != defaultTemperature {
		p.Temperature = rb.Temperature
	}
	if rb.TopP != nil && *rb.TopP != defaultTopP {
		p.TopP = rb.TopP
	}
	return p, true
}

// Key returns the canonical batch key. Requests with equal keys are
// interchangeable for batching purposes.
func (p *Params) Key() string {
	var b strings.Builder
	b.WriteString("model=")
	b.WriteString(p.Model)
	if p.Temperature != nil {
		fmt.Fprintf(&b, "|temperature=%g", *p.Temperature)
	}
	if p.MaxTokens != nil {
		fmt.Fprintf(&b, "|max_tokens=%d", *p.MaxTokens)
	}
	if p.TopP != nil {
		fmt.Fprintf(&b, "|top_p=%g", *p.TopP)
	}
	return b.String()
}
