package stack

import (
	"errors"

	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/awsclient"
	"github.com/ThreeVenturesTechnology/apache-airflow-aws/internal/waiter"
)

var (
	// ErrWaitTimeout is returned when a stack never settled within the wait policy.
	ErrWaitTimeout = waiter.ErrTimeout
	// ErrStackFailed is returned when a stack settles in a failure state.
	ErrStackFailed = errors.New("stack operation failed")
	// ErrStackBlocked is returned when a create targets a stack that still
	// exists in a failed or in-progress state.
	ErrStackBlocked = errors.New("stack is blocked by a previous operation")
	// ErrInvalidTemplate is returned by Validate.
	ErrInvalidTemplate = errors.New("invalid template")
)

const (
	codeValidation  = "ValidationError"
	msgNoUpdates    = "No updates are to be performed"
	msgDoesNotExist = "does not exist"
)

// CloudFormation reports both conditions as a ValidationError; only the
// message tells them apart.
func isNoUpdates(err error) bool {
	return awsclient.IsAPIError(err, codeValidation, msgNoUpdates)
}

func isNotFound(err error) bool {
	return awsclient.IsAPIError(err, codeValidation, msgDoesNotExist)
}
