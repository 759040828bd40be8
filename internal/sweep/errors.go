package sweep

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"strconv"
	"strings"
)

var (
	// ErrTransient marks failures worth retrying: rate limits, server errors, network trouble
	ErrTransient = errors.New("transient platform error")
	// ErrPermission marks failures caused by missing rights; they fail the affected action only
	ErrPermission = errors.New("permission denied")
	// ErrNotFound marks entities (or branches) that disappeared; acting on them is a no-op
	ErrNotFound = errors.New("not found")
)

var (
	statusCode = regexp.MustCompile(`status code:? (\d{3})\b`)

	notFoundPatterns = []string{
		"not found",
		"does not exist",
	}

	rateLimitPatterns = []string{
		"rate limit",
		"too many requests",
		"abuse detection",
	}

	transientPatterns = append([]string{
		"timeout",
		"deadline exceeded",
		"connection refused",
		"connection reset",
		"broken pipe",
		"eof",
		"temporary",
	}, rateLimitPatterns...)

	permissionPatterns = []string{
		"unauthorized",
		"forbidden",
		"permission",
		"resource not accessible",
	}
)

// Classify wraps a raw platform error into the sweeper's error taxonomy. It must be
// given the error as the client returned it, before names of entities, labels or
// branches are added to the message. Errors that already carry a classification
// and context errors are returned as they are. Anything unrecognized is treated
// as a permanent failure of the action.
func Classify(err error) error {
	if err == nil || classified(err) {
		return err
	}

	msg := strings.ToLower(err.Error())
	if match := statusCode.FindStringSubmatch(msg); match != nil {
		code, _ := strconv.Atoi(match[1])
		return ClassifyStatus(code, err)
	}

	switch {
	case containsAny(msg, notFoundPatterns):
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case containsAny(msg, transientPatterns):
		return fmt.Errorf("%w: %w", ErrTransient, err)
	case containsAny(msg, permissionPatterns):
		return fmt.Errorf("%w: %w", ErrPermission, err)
	}
	return err
}

// ClassifyStatus wraps a platform error whose HTTP status code is known
func ClassifyStatus(code int, err error) error {
	if err == nil || classified(err) {
		return err
	}

	switch {
	case code == http.StatusNotFound || code == http.StatusGone:
		return fmt.Errorf("%w: %w", ErrNotFound, err)
	case code == http.StatusTooManyRequests || code >= http.StatusInternalServerError:
		return fmt.Errorf("%w: %w", ErrTransient, err)
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		// GitHub reports secondary rate limits as 403
		if containsAny(strings.ToLower(err.Error()), rateLimitPatterns) {
			return fmt.Errorf("%w: %w", ErrTransient, err)
		}
		return fmt.Errorf("%w: %w", ErrPermission, err)
	}
	return err
}

func classified(err error) bool {
	return errors.Is(err, ErrTransient) || errors.Is(err, ErrPermission) || errors.Is(err, ErrNotFound) ||
		errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}

// IsTransient returns true if the error should be retried
func IsTransient(err error) bool {
	return errors.Is(err, ErrTransient)
}

func containsAny(s string, patterns []string) bool {
	for _, pattern := range patterns {
		if strings.Contains(s, pattern) {
			return true
		}
	}
	return false
}
