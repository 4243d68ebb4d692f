package service

import (
	goerrors "errors"
	"net/http"

	"rosterhub/core/errors"

	"golang.org/x/oauth2"
	"google.golang.org/api/googleapi"
)

// classifyProviderError translates raw provider failures into the error
// policy: transient (retryable), calendar-gone (self-healing), re-auth
// (terminal), or permanent.
func classifyProviderError(err error) errors.ErrorCode {
	if err == nil {
		return ""
	}

	var retrieveErr *oauth2.RetrieveError
	if goerrors.As(err, &retrieveErr) {
		if isInvalidGrant(retrieveErr) {
			return errors.ErrReauthRequired
		}
		if retrieveErr.Response != nil && retrieveErr.Response.StatusCode >= 500 {
			return errors.ErrProviderUnavailable
		}
		return errors.ErrInternalServer
	}

	var apiErr *googleapi.Error
	if goerrors.As(err, &apiErr) {
		switch {
		case apiErr.Code == http.StatusNotFound || apiErr.Code == http.StatusGone:
			return errors.ErrCalendarNotFound
		case apiErr.Code == http.StatusUnauthorized:
			return errors.ErrReauthRequired
		case apiErr.Code == http.StatusTooManyRequests || apiErr.Code >= 500:
			return errors.ErrProviderUnavailable
		case apiErr.Code == http.StatusForbidden && isRateLimited(apiErr):
			return errors.ErrProviderUnavailable
		default:
			return errors.ErrInternalServer
		}
	}

	// Plain transport errors (timeouts, connection resets) are transient.
	return errors.ErrProviderUnavailable
}

func isInvalidGrant(err *oauth2.RetrieveError) bool {
	switch err.ErrorCode {
	case "invalid_grant", "unauthorized_client", "invalid_client":
		return true
	}
	return err.Response != nil &&
		(err.Response.StatusCode == http.StatusBadRequest || err.Response.StatusCode == http.StatusUnauthorized) &&
		err.ErrorCode == ""
}

// Google signals quota exhaustion as 403 with specific reasons.
func isRateLimited(err *googleapi.Error) bool {
	for _, item := range err.Errors {
		switch item.Reason {
		case "rateLimitExceeded", "userRateLimitExceeded", "quotaExceeded":
			return true
		}
	}
	return false
}

// isRetryable reports whether the classified code is worth another attempt.
func isRetryable(code errors.ErrorCode) bool {
	return code == errors.ErrProviderUnavailable
}
