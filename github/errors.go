package github

import (
	"errors"
	"fmt"

	"github.com/google/go-github/v56/github"
)

// RemoteFetchError is returned by every Client method when the remote call
// fails: transport errors, non-2xx responses, rate limiting and undecodable
// bodies all end up here.
type RemoteFetchError struct {
	Endpoint   string
	StatusCode int
	Message    string
	Cause      error
}

func (e *RemoteFetchError) Error() string {
	if e.StatusCode != 0 {
		return fmt.Sprintf("%s: remote returned %d: %s", e.Endpoint, e.StatusCode, e.Message)
	}
	return fmt.Sprintf("%s: %v", e.Endpoint, e.Cause)
}

func (e *RemoteFetchError) Unwrap() error {
	return e.Cause
}

func fetchError(endpoint string, err error) error {
	rfe := &RemoteFetchError{Endpoint: endpoint, Message: err.Error(), Cause: err}

	var rateErr *github.RateLimitError
	var abuseErr *github.AbuseRateLimitError
	var respErr *github.ErrorResponse
	switch {
	case errors.As(err, &rateErr):
		rfe.Message = rateErr.Message
		if rateErr.Response != nil {
			rfe.StatusCode = rateErr.Response.StatusCode
		}
	case errors.As(err, &abuseErr):
		rfe.Message = abuseErr.Message
		if abuseErr.Response != nil {
			rfe.StatusCode = abuseErr.Response.StatusCode
		}
	case errors.As(err, &respErr):
		rfe.Message = respErr.Message
		if respErr.Response != nil {
			rfe.StatusCode = respErr.Response.StatusCode
		}
	}
	return rfe
}
