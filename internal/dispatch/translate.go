package dispatch

import (
	"errors"

	"github.com/zenmcp/zen/internal/conversation"
	"github.com/zenmcp/zen/internal/provider"
)

// FromProviderError maps a provider.Driver or provider.Router error to its
// ZenError kind (spec.md §7's provider-related entries). Errors already
// packaged as *ZenError (e.g. from the runtimes below) pass through
// unchanged.
func FromProviderError(err error) *ZenError {
	if err == nil {
		return nil
	}
	var ze *ZenError
	if errors.As(err, &ze) {
		return ze
	}

	var authErr *provider.AuthError
	if errors.As(err, &authErr) {
		return New(KindProviderAuthError, authErr.Error(), "provider", authErr.Provider)
	}
	var rateErr *provider.RateLimitedError
	if errors.As(err, &rateErr) {
		return New(KindProviderRateLimited, rateErr.Error(), "provider", rateErr.Provider)
	}
	var transientErr *provider.TransientError
	if errors.As(err, &transientErr) {
		return New(KindProviderTransientError, transientErr.Error(), "provider", transientErr.Provider)
	}
	var safetyErr *provider.SafetyBlockedError
	if errors.As(err, &safetyErr) {
		return New(KindProviderSafetyBlocked, safetyErr.Reason, "provider", safetyErr.Provider)
	}
	var capErr *provider.UnsupportedCapabilityError
	if errors.As(err, &capErr) {
		return New(KindProviderUnsupportedCap, capErr.Error(), "provider", capErr.Provider, "feature", capErr.Feature)
	}
	var timeoutErr *provider.TimeoutError
	if errors.As(err, &timeoutErr) {
		return New(KindProviderTimeout, timeoutErr.Error(), "provider", timeoutErr.Provider)
	}
	var invalidErr *provider.InvalidRequestError
	if errors.As(err, &invalidErr) {
		return New(KindValidationError, invalidErr.Error(), "provider", invalidErr.Provider)
	}
	var noProviderErr *provider.NoProviderForModelError
	if errors.As(err, &noProviderErr) {
		return New(KindNoProviderForModel, noProviderErr.Error())
	}
	var restrictedErr *provider.ModelRestrictedError
	if errors.As(err, &restrictedErr) {
		return New(KindModelRestricted, restrictedErr.Error())
	}

	return New(KindValidationError, err.Error())
}

// FromConversationError maps a conversation.Store error to its ZenError
// kind (spec.md §4.7 step 2: "on Expired/Unknown, fail with
// ContinuationNotAvailable").
func FromConversationError(err error) *ZenError {
	switch {
	case errors.Is(err, conversation.ErrExpired), errors.Is(err, conversation.ErrUnknown):
		return New(KindContinuationNotAvailable, err.Error())
	case errors.Is(err, conversation.ErrThreadCapReached):
		return New(KindThreadCapReached, err.Error())
	default:
		return New(KindValidationError, err.Error())
	}
}
