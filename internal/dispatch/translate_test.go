package dispatch

import (
	"errors"
	"testing"

	"github.com/zenmcp/zen/internal/conversation"
	"github.com/zenmcp/zen/internal/provider"
)

func TestFromProviderError_MapsAuthError(t *testing.T) {
	err := &provider.AuthError{Provider: "anthropic", Err: errors.New("bad key")}
	ze := FromProviderError(err)
	if ze.Kind != KindProviderAuthError {
		t.Errorf("expected KindProviderAuthError, got %v", ze.Kind)
	}
	if ze.Metadata["provider"] != "anthropic" {
		t.Errorf("expected provider metadata, got %v", ze.Metadata)
	}
}

func TestFromProviderError_MapsUnsupportedCapability(t *testing.T) {
	err := &provider.UnsupportedCapabilityError{Provider: "openai", Feature: "vision"}
	ze := FromProviderError(err)
	if ze.Kind != KindProviderUnsupportedCap {
		t.Errorf("expected KindProviderUnsupportedCap, got %v", ze.Kind)
	}
	if ze.Metadata["feature"] != "vision" {
		t.Errorf("expected feature metadata, got %v", ze.Metadata)
	}
}

func TestFromProviderError_PassesThroughExistingZenError(t *testing.T) {
	orig := New(KindWorkflowPreconditionViolated, "bad state")
	got := FromProviderError(orig)
	if got != orig {
		t.Errorf("expected passthrough of existing ZenError")
	}
}

func TestFromProviderError_UnknownErrorFallsBackToValidationError(t *testing.T) {
	ze := FromProviderError(errors.New("something else"))
	if ze.Kind != KindValidationError {
		t.Errorf("expected fallback to KindValidationError, got %v", ze.Kind)
	}
}

func TestFromConversationError_MapsExpiredAndUnknown(t *testing.T) {
	if ze := FromConversationError(conversation.ErrExpired); ze.Kind != KindContinuationNotAvailable {
		t.Errorf("expected ContinuationNotAvailable for expired, got %v", ze.Kind)
	}
	if ze := FromConversationError(conversation.ErrUnknown); ze.Kind != KindContinuationNotAvailable {
		t.Errorf("expected ContinuationNotAvailable for unknown, got %v", ze.Kind)
	}
}

func TestFromConversationError_MapsThreadCapReached(t *testing.T) {
	ze := FromConversationError(conversation.ErrThreadCapReached)
	if ze.Kind != KindThreadCapReached {
		t.Errorf("expected KindThreadCapReached, got %v", ze.Kind)
	}
}
