// Package dispatch implements the Request Dispatcher (C9): tool lookup,
// error taxonomy, and JSON envelope construction behind the MCP boundary.
package dispatch

import "fmt"

// Kind is the stable, machine-readable error classification spec.md §7
// requires every surfaced error to carry.
type Kind string

const (
	KindUnknownTool               Kind = "UnknownTool"
	KindValidationError           Kind = "ValidationError"
	KindFilePathNotAbsolute       Kind = "FilePathNotAbsolute"
	KindFileAccessDenied          Kind = "FileAccessDenied"
	KindFileNotFound              Kind = "FileNotFound"
	KindContinuationNotAvailable  Kind = "ContinuationNotAvailable"
	KindThreadCapReached          Kind = "ThreadCapReached"
	KindContextOverflow           Kind = "ContextOverflow"
	KindNoProviderForModel        Kind = "NoProviderForModel"
	KindModelRestricted           Kind = "ModelRestricted"
	KindProviderAuthError         Kind = "ProviderAuthError"
	KindProviderRateLimited       Kind = "ProviderRateLimited"
	KindProviderTransientError    Kind = "ProviderTransientError"
	KindProviderSafetyBlocked     Kind = "ProviderSafetyBlocked"
	KindProviderUnsupportedCap    Kind = "ProviderUnsupportedCapability"
	KindProviderTimeout           Kind = "ProviderTimeout"
	KindLargePromptEscape         Kind = "LargePromptEscape"
	KindWorkflowPreconditionViolated Kind = "WorkflowPreconditionViolated"
)

// ZenError is the one error type every component surfaces to the
// Dispatcher, satisfying spec.md §7's "stable machine-readable kind" and
// "metadata map (provider, model, thread-id when relevant)" requirement.
type ZenError struct {
	Kind     Kind
	Message  string
	Metadata map[string]string
}

func (e *ZenError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("%s: %s", e.Kind, e.Message)
	}
	return string(e.Kind)
}

// New builds a ZenError with the given kind, message, and metadata pairs
// (alternating key, value — an odd final argument is dropped).
func New(kind Kind, message string, kv ...string) *ZenError {
	meta := make(map[string]string, len(kv)/2)
	for i := 0; i+1 < len(kv); i += 2 {
		meta[kv[i]] = kv[i+1]
	}
	return &ZenError{Kind: kind, Message: message, Metadata: meta}
}
