package youtube

import (
	"context"
	"errors"
	"strings"

	"google.golang.org/api/googleapi"
)

// Sentinel errors classifying fetch outcomes.
var (
	// ErrUnchanged reports a conditional fetch where the cached validator
	// still matches. It is a valid outcome, not a failure.
	ErrUnchanged = errors.New("youtube: not modified")

	// ErrRateLimited reports a quota or rate-limit rejection. It is terminal
	// for the current operation: stop, do not retry.
	ErrRateLimited = errors.New("youtube: rate limited")

	// ErrItemNotFound reports that the provider knows no item with that id.
	ErrItemNotFound = errors.New("youtube: item not found")

	// ErrChannelNotFound reports that the configured handle resolves to no
	// channel.
	ErrChannelNotFound = errors.New("youtube: channel not found")

	// ErrConfiguration reports missing credentials or settings. It fails the
	// operation that needs them, not the whole process.
	ErrConfiguration = errors.New("youtube: missing configuration")
)

// rateLimitReasons are the provider's error-body markers for quota
// rejections. The provider may pair them with a generic 403, so both the
// status code and the body have to be inspected.
var rateLimitReasons = map[string]bool{
	"quotaExceeded":         true,
	"rateLimitExceeded":     true,
	"dailyLimitExceeded":    true,
	"userRateLimitExceeded": true,
}

// IsRateLimited classifies an error as a quota/rate-limit rejection, checking
// both the transport status and the provider's error-body reasons.
func IsRateLimited(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, ErrRateLimited) {
		return true
	}

	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		if apiErr.Code == 429 {
			return true
		}
		for _, item := range apiErr.Errors {
			if rateLimitReasons[item.Reason] {
				return true
			}
		}
		if apiErr.Code == 403 && strings.Contains(strings.ToLower(apiErr.Message), "quota") {
			return true
		}
	}
	return false
}

// IsTransient classifies an error as transient: logged and skipped, the run
// continues with remaining items. Rate limits, not-modified outcomes, and
// permanent lookups are not transient.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	switch {
	case errors.Is(err, ErrUnchanged),
		errors.Is(err, ErrRateLimited),
		errors.Is(err, ErrItemNotFound),
		errors.Is(err, ErrChannelNotFound),
		errors.Is(err, ErrConfiguration),
		errors.Is(err, context.Canceled):
		return false
	}
	return !IsRateLimited(err)
}

// retryable reports whether a single call is worth one more attempt before
// being classified transient. Deadline overruns and 5xx responses qualify;
// rate limits never do, a retried call would only burn more budget.
func retryable(err error) bool {
	if err == nil || IsRateLimited(err) {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) {
		return apiErr.Code >= 500
	}
	return false
}
