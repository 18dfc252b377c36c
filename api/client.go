package api

import (
	"fmt"
	"net/http"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/sirupsen/logrus"
)

// DefaultTimeout bounds every lifecycle request. Lifecycle calls sit
// on the call-setup critical path; a slow server should fail the
// operation, not hang it.
const DefaultTimeout = 10 * time.Second

// newClient builds the shared resty client for one API surface.
func newClient(baseURL, token string, timeout time.Duration) *resty.Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return resty.New().
		SetBaseURL(baseURL).
		SetAuthToken(token).
		SetTimeout(timeout).
		SetHeader("Content-Type", "application/json")
}

// checkResponse maps a non-2xx response to the package's error set.
func checkResponse(resp *resty.Response, err error) error {
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	if !resp.IsError() {
		return nil
	}

	logrus.WithFields(logrus.Fields{
		"function": "checkResponse",
		"status":   resp.StatusCode(),
		"url":      resp.Request.URL,
	}).Warn("Lifecycle request rejected")

	switch resp.StatusCode() {
	case http.StatusUnauthorized, http.StatusForbidden:
		return fmt.Errorf("%w: status %d", ErrUnauthorized, resp.StatusCode())
	case http.StatusNotFound:
		return fmt.Errorf("%w: status %d", ErrNotFound, resp.StatusCode())
	default:
		return fmt.Errorf("%w: status %d", ErrServerRejected, resp.StatusCode())
	}
}
