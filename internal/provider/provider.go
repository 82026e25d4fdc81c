// Package provider implements the provider driver contract (C2), the retry
// policy shared by every driver family, and the provider registry/router
// (C3) that picks a driver for a model name.
package provider

import (
	"context"
	"fmt"

	"github.com/zenmcp/zen/internal/capability"
)

// ThinkingMode is a per-request hint selecting a token budget reserved for
// model-internal reasoning (spec.md glossary). Only applied to models that
// advertise SupportsExtendedThink; silently ignored otherwise (spec.md §4.2).
type ThinkingMode string

const (
	ThinkingMinimal ThinkingMode = "minimal"
	ThinkingLow     ThinkingMode = "low"
	ThinkingMedium  ThinkingMode = "medium"
	ThinkingHigh    ThinkingMode = "high"
	ThinkingMax     ThinkingMode = "max"
)

// Image is a single attached image, already loaded into memory by the file
// embedder (C6) — drivers never read from disk themselves.
type Image struct {
	Data     []byte
	MimeType string
}

// Request is the normalized input to Driver.Generate.
type Request struct {
	CanonicalModel  string
	Prompt          string
	SystemPrompt    string
	Temperature     float64
	ThinkingMode     ThinkingMode
	Images          []Image
	MaxOutputTokens int
}

// Usage reports token accounting for one Generate call. Drivers must
// normalize provider-reported figures so InputTokens+OutputTokens ==
// TotalTokens always holds (spec.md §8, invariant 7).
type Usage struct {
	InputTokens  int
	OutputTokens int
	TotalTokens  int
}

// NewUsage builds a Usage from input/output token counts, computing the
// total itself so callers can never construct an inconsistent value.
func NewUsage(input, output int) Usage {
	return Usage{InputTokens: input, OutputTokens: output, TotalTokens: input + output}
}

// Response is the normalized output of Driver.Generate.
type Response struct {
	Content        string
	Usage          Usage
	CanonicalModel string
	ProviderTag    string
	Metadata       map[string]string
}

// Driver is the uniform contract every provider backend implements
// (spec.md §4.2).
type Driver interface {
	// Generate issues one model call and returns a normalized Response.
	Generate(ctx context.Context, req Request) (Response, error)

	// CountTokens estimates or exactly counts tokens for text under the
	// given canonical model name. Must be monotone in len(text).
	CountTokens(text string, canonicalModel string) (int, error)

	// SupportsModel reports whether this driver owns the given canonical
	// model name.
	SupportsModel(canonicalModel string) bool

	// Capabilities returns the ModelCapability for a canonical name owned
	// by this driver.
	Capabilities(canonicalModel string) (capability.ModelCapability, error)

	// ProviderTag identifies this driver's backend family.
	ProviderTag() string
}

// --- Error taxonomy (spec.md §4.2) ---

// AuthError is non-retryable; the credential itself is invalid/expired.
type AuthError struct {
	Provider string
	Err      error
}

func (e *AuthError) Error() string {
	return fmt.Sprintf("provider %s: authentication failed: %v", e.Provider, e.Err)
}
func (e *AuthError) Unwrap() error { return e.Err }

// RateLimitedError is retried inside the driver up to the retry policy's
// limit, then propagated as retryable.
type RateLimitedError struct {
	Provider   string
	RetryAfter int // seconds; 0 if the provider did not say
	Err        error
}

func (e *RateLimitedError) Error() string {
	return fmt.Sprintf("provider %s: rate limited (retry_after=%ds): %v", e.Provider, e.RetryAfter, e.Err)
}
func (e *RateLimitedError) Unwrap() error { return e.Err }

// TransientError is retried the same way as RateLimitedError.
type TransientError struct {
	Provider string
	Err      error
}

func (e *TransientError) Error() string {
	return fmt.Sprintf("provider %s: transient error: %v", e.Provider, e.Err)
}
func (e *TransientError) Unwrap() error { return e.Err }

// InvalidRequestError is non-retryable; the request itself was malformed.
type InvalidRequestError struct {
	Provider string
	Err      error
}

func (e *InvalidRequestError) Error() string {
	return fmt.Sprintf("provider %s: invalid request: %v", e.Provider, e.Err)
}
func (e *InvalidRequestError) Unwrap() error { return e.Err }

// SafetyBlockedError surfaces the provider's stated reason verbatim.
type SafetyBlockedError struct {
	Provider string
	Reason   string
}

func (e *SafetyBlockedError) Error() string {
	return fmt.Sprintf("provider %s: safety blocked: %s", e.Provider, e.Reason)
}

// UnsupportedCapabilityError is returned e.g. when images are supplied for a
// non-vision model.
type UnsupportedCapabilityError struct {
	Provider string
	Feature  string
}

func (e *UnsupportedCapabilityError) Error() string {
	return fmt.Sprintf("provider %s: unsupported capability: %s", e.Provider, e.Feature)
}

// TimeoutError is treated as transient for retry purposes but reported
// distinctly (spec.md §7).
type TimeoutError struct {
	Provider string
	Err      error
}

func (e *TimeoutError) Error() string {
	return fmt.Sprintf("provider %s: timed out: %v", e.Provider, e.Err)
}
func (e *TimeoutError) Unwrap() error { return e.Err }
