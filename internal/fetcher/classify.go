package fetcher

import (
	"context"
	"errors"
	"net"
	"strings"
	"syscall"

	"github.com/go-rod/rod"

	"github.com/IshaanNene/newsdesk/internal/types"
)

// Classify maps a raw fetch failure onto a FetchError with a stable code.
// Errors that already are FetchErrors pass through unchanged.
func Classify(rawURL string, err error) *types.FetchError {
	if err == nil {
		return nil
	}
	if fe, ok := types.AsFetchError(err); ok {
		return fe
	}
	fe := &types.FetchError{URL: rawURL, Err: err, Code: types.CodeInternal}

	var dnsErr *net.DNSError
	var navErr *rod.NavigationError
	var netErr net.Error
	switch {
	case errors.As(err, &dnsErr):
		fe.Code = types.CodeUnreachable
		if dnsErr.IsTimeout {
			fe.Code = types.CodeTimeout
		}
	case errors.Is(err, syscall.ECONNREFUSED),
		errors.Is(err, syscall.EHOSTUNREACH),
		errors.Is(err, syscall.ENETUNREACH):
		fe.Code = types.CodeUnreachable
	case errors.Is(err, context.DeadlineExceeded):
		fe.Code = types.CodeTimeout
	case errors.As(err, &navErr):
		fe.Code = navigationCode(navErr.Reason)
	case errors.As(err, &netErr) && netErr.Timeout():
		fe.Code = types.CodeTimeout
	}
	fe.Retryable = fe.Code == types.CodeTimeout || fe.Code == types.CodeRender
	return fe
}

// navigationCode maps Chromium net error names.
func navigationCode(reason string) types.FetchCode {
	switch {
	case strings.Contains(reason, "ERR_NAME_NOT_RESOLVED"),
		strings.Contains(reason, "ERR_NAME_RESOLUTION_FAILED"),
		strings.Contains(reason, "ERR_CONNECTION_REFUSED"),
		strings.Contains(reason, "ERR_ADDRESS_UNREACHABLE"),
		strings.Contains(reason, "ERR_INTERNET_DISCONNECTED"):
		return types.CodeUnreachable
	case strings.Contains(reason, "ERR_TIMED_OUT"),
		strings.Contains(reason, "ERR_CONNECTION_TIMED_OUT"):
		return types.CodeTimeout
	}
	return types.CodeRender
}
