package types

import (
	"errors"
	"fmt"
)

// Sentinel errors for common failure modes.
var (
	ErrNotFound       = errors.New("not found")
	ErrAlreadyExists  = errors.New("already exists")
	ErrInvalidURL     = errors.New("invalid URL")
	ErrEmptyResponse  = errors.New("empty response body")
	ErrBodyTooLarge   = errors.New("response body exceeds size limit")
	ErrCycleLocked    = errors.New("ingestion cycle held by another worker")
	ErrBrowserClosed  = errors.New("browser is not running")
	ErrGeneratorEmpty = errors.New("empty completion")
)

// FetchCode is a stable classification of a fetch failure.
type FetchCode string

const (
	CodeUnreachable FetchCode = "unreachable"
	CodeTimeout     FetchCode = "timeout"
	CodeHTTPStatus  FetchCode = "http_status"
	CodeInvalidURL  FetchCode = "invalid_url"
	CodeRender      FetchCode = "render"
	CodeInternal    FetchCode = "internal"
)

// FetchError wraps errors that occur during fetching.
type FetchError struct {
	URL        string
	StatusCode int
	Code       FetchCode
	Err        error
	Retryable  bool
}

func (e *FetchError) Error() string {
	if e.StatusCode > 0 {
		return fmt.Sprintf("fetch error for %s (status %d, %s): %v", e.URL, e.StatusCode, e.Code, e.Err)
	}
	return fmt.Sprintf("fetch error for %s (%s): %v", e.URL, e.Code, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

func (e *FetchError) IsRetryable() bool { return e.Retryable }

// IsClientError reports whether the failure is caused by the requested
// target rather than by this service.
func (e *FetchError) IsClientError() bool {
	switch e.Code {
	case CodeUnreachable, CodeTimeout, CodeHTTPStatus, CodeInvalidURL:
		return true
	}
	return false
}

// Message returns a short human readable reason for API responses.
func (e *FetchError) Message() string {
	switch e.Code {
	case CodeUnreachable:
		return "Domain not found or connection refused"
	case CodeTimeout:
		return "Request timeout"
	case CodeHTTPStatus:
		return fmt.Sprintf("Upstream responded with HTTP %d", e.StatusCode)
	case CodeInvalidURL:
		return "Invalid URL"
	case CodeRender:
		return "Failed to render page"
	}
	return "Failed to crawl URL"
}

// AsFetchError extracts a *FetchError from an error chain.
func AsFetchError(err error) (*FetchError, bool) {
	var fe *FetchError
	if errors.As(err, &fe) {
		return fe, true
	}
	return nil, false
}

// ParseError wraps errors that occur during parsing.
type ParseError struct {
	URL      string
	Selector string
	Err      error
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse error for %s (selector=%q): %v", e.URL, e.Selector, e.Err)
}

func (e *ParseError) Unwrap() error { return e.Err }

// StorageError wraps errors that occur during storage/export.
type StorageError struct {
	Backend string
	Err     error
}

func (e *StorageError) Error() string {
	return fmt.Sprintf("storage error (%s): %v", e.Backend, e.Err)
}

func (e *StorageError) Unwrap() error { return e.Err }

// PipelineError wraps errors that occur in the teaser pipeline.
type PipelineError struct {
	Stage  string
	Teaser *Teaser
	Err    error
}

func (e *PipelineError) Error() string {
	return fmt.Sprintf("pipeline error at stage %q: %v", e.Stage, e.Err)
}

func (e *PipelineError) Unwrap() error { return e.Err }
