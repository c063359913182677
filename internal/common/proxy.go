package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
)

const (
	OK                     int = 200
	BAD_REQUEST            int = 400
	UNAUTHORIZED           int = 401
	FORBIDDEN              int = 403
	DATA_NOT_FOUND         int = 404
	METHOD_NOT_ALLOWED     int = 405
	UNSUPPORTED_MEDIA_TYPE int = 415
	RATE_LIMIT_EXCEEDED    int = 429
	INTERNAL_SERVER_ERROR  int = 500
	BAD_GATEWAY            int = 502
	SERVICE_UNAVAILABLE    int = 503
	GATEWAY_TIMEOUT        int = 504
)

var messages = map[int]string{
	OK:                     "OK",
	BAD_REQUEST:            "Bad request",
	UNAUTHORIZED:           "Unauthorized",
	FORBIDDEN:              "Forbidden",
	DATA_NOT_FOUND:         "Data not found",
	METHOD_NOT_ALLOWED:     "Method not allowed",
	UNSUPPORTED_MEDIA_TYPE: "Unsupported media type",
	RATE_LIMIT_EXCEEDED:    "Rate limit exceeded",
	INTERNAL_SERVER_ERROR:  "Internal server error",
	BAD_GATEWAY:            "Bad gateway",
	SERVICE_UNAVAILABLE:    "Service unavailable",
	GATEWAY_TIMEOUT:        "Gateway timeout",
}

// Error returned for any answer other than 200
type StatusError struct {
	Code int
	URL  string
}

func (e *StatusError) Error() string {
	message, ok := messages[e.Code]
	if !ok {
		message = "status not understood"
	}
	return fmt.Sprintf("request to %s failed: %d %s", e.URL, e.Code, message)
}

var ErrRateLimited = errors.New("rate limiter is not allowing the request")

type Proxy struct {
	header      map[string]string
	client      *http.Client
	rateLimiter *RateLimiter
}

func NewProxy(header map[string]string, restrictions []Restriction, clock Clock) *Proxy {
	return &Proxy{
		header:      header,
		client:      &http.Client{Timeout: 15 * time.Second},
		rateLimiter: NewRateLimiter(restrictions, clock),
	}
}

// Make a request to the provided url, indicating if it is vital.
// The request will be performed depending on the status of the rate limiter.
// secret is the key carried by the url; it never shows up in the returned errors
func (proxy *Proxy) Request(ctx context.Context, target string, secret string, vital bool) ([]byte, error) {

	// ask for permission to execute the request
	// and wait if necessary
	if !proxy.rateLimiter.Allowed(ctx, vital) {
		return nil, ErrRateLimited
	}

	// Create the request and add the header
	request, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("could not create request: %w", scrub(err, secret))
	}
	for key, value := range proxy.header {
		request.Header.Set(key, value)
	}

	// Perform the request
	res, err := proxy.client.Do(request)
	if err != nil {
		return nil, fmt.Errorf("could not perform request: %w", scrub(err, secret))
	}
	defer res.Body.Close()

	log.Debug().Int("status", res.StatusCode).Msg(messages[res.StatusCode])

	switch res.StatusCode {
	case OK:
		// Read the response
		stream, err := io.ReadAll(res.Body)
		if err != nil {
			return nil, fmt.Errorf("could not read response: %w", err)
		}
		return stream, nil
	case RATE_LIMIT_EXCEEDED:
		proxy.rateLimiter.ReceivedRateLimit()
		return nil, &StatusError{Code: res.StatusCode, URL: redact(target, secret)}
	default:
		return nil, &StatusError{Code: res.StatusCode, URL: redact(target, secret)}
	}
}

// Transport errors quote the whole url
func scrub(err error, secret string) error {
	var urlErr *url.Error
	if errors.As(err, &urlErr) {
		urlErr.URL = redact(urlErr.URL, secret)
		return err
	}
	if secret != "" && strings.Contains(err.Error(), secret) {
		return errors.New(strings.ReplaceAll(err.Error(), secret, redacted))
	}
	return err
}
