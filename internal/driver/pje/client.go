package pje

import (
	"context"
	"encoding/json"
	"fmt"
	"mime"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/JustJay7/pje-capture/internal/driver"
	"github.com/go-resty/resty/v2"
)

const apiPrefix = "/pje-comum-api/api"

// apiClient calls the portal's JSON API with the tokens of an authenticated session
type apiClient struct {
	http    *resty.Client
	court   string
	backoff time.Duration
	sleep   driver.SleepFunc
}

func newAPIClient(court driver.CourtConfig, tokens *Tokens, backoff time.Duration, sleep driver.SleepFunc) *apiClient {
	base := court.APIURL
	if base == "" {
		base = court.BaseURL
	}

	client := resty.New()
	client.SetBaseURL(strings.TrimRight(base, "/") + apiPrefix)
	client.SetHeader("Accept", "application/json")
	if tokens.AccessToken != "" {
		client.SetAuthToken(tokens.AccessToken)
	}
	if tokens.XSRFToken != "" {
		client.SetHeader("X-XSRF-Token", tokens.XSRFToken)
	}
	client.SetCookies(tokens.Cookies)
	if court.Timeout > 0 {
		client.SetTimeout(court.Timeout)
	}

	return &apiClient{http: client, court: court.Code, backoff: backoff, sleep: sleep}
}

// get performs a GET and returns the response once its status is a success
func (c *apiClient) get(ctx context.Context, endpoint string, query map[string]string, allow ...int) (*resty.Response, error) {
	return driver.RetryRateLimited(ctx, c.backoff, c.sleep, func() (*resty.Response, error) {
		resp, err := c.http.R().
			SetContext(ctx).
			SetQueryParams(query).
			Get(endpoint)
		if err != nil {
			return nil, fmt.Errorf("GET %s: %w", endpoint, err)
		}
		for _, code := range allow {
			if resp.StatusCode() == code {
				return resp, nil
			}
		}
		return resp, c.checkStatus(endpoint, resp)
	})
}

func (c *apiClient) checkStatus(endpoint string, resp *resty.Response) error {
	code := resp.StatusCode()
	switch {
	case resp.IsSuccess():
		return nil
	case code == http.StatusTooManyRequests:
		return &driver.RateLimitedError{Endpoint: endpoint, RetryAfter: retryAfter(resp.Header().Get("Retry-After"))}
	case code == http.StatusBadRequest || code == http.StatusUnprocessableEntity:
		return &driver.ValidationError{Endpoint: endpoint, Status: code, Body: truncate(resp.String(), 300)}
	case code == http.StatusUnauthorized || code == http.StatusForbidden:
		return &driver.AuthenticationError{Court: c.court, Err: fmt.Errorf("GET %s returned status %d", endpoint, code)}
	default:
		return fmt.Errorf("GET %s: unexpected status %d", endpoint, code)
	}
}

func (c *apiClient) getJSON(ctx context.Context, endpoint string, query map[string]string, out any) error {
	resp, err := c.get(ctx, endpoint, query)
	if err != nil {
		return err
	}
	if err := json.Unmarshal(resp.Body(), out); err != nil {
		return fmt.Errorf("decode %s: %w", endpoint, err)
	}
	return nil
}

func retryAfter(header string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || secs <= 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n]
}

// fileName reads the file name from a Content-Disposition header
func fileName(disposition, fallback string) string {
	if disposition == "" {
		return fallback
	}
	_, params, err := mime.ParseMediaType(disposition)
	if err != nil || params["filename"] == "" {
		return fallback
	}
	return params["filename"]
}
