package awsclient

import (
	"errors"
	"strings"

	"github.com/aws/smithy-go"
)

// APIErrorCode returns the service error code of err, or "" when err is not
// an AWS API error.
func APIErrorCode(err error) string {
	var apiErr smithy.APIError
	if errors.As(err, &apiErr) {
		return apiErr.ErrorCode()
	}
	return ""
}

// IsAPIError reports whether err is an API error with the given code whose
// message contains fragment (ignored when empty). Some services only
// distinguish conditions by message text under a shared code.
func IsAPIError(err error, code, fragment string) bool {
	var apiErr smithy.APIError
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.ErrorCode() != code {
		return false
	}
	if fragment == "" {
		return true
	}
	return strings.Contains(apiErr.ErrorMessage(), fragment)
}
