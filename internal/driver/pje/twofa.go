package pje

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
)

// OTPCodes is the code valid now plus the one that follows it
type OTPCodes struct {
	Current string `json:"password"`
	Next    string `json:"next_password"`
}

// OTPSource hands out one-time codes for the SSO second factor
type OTPSource interface {
	Codes(ctx context.Context) (OTPCodes, error)
}

// TwoFAuthClient reads codes from a 2FAuth relay account
type TwoFAuthClient struct {
	http      *resty.Client
	accountID string
}

func NewTwoFAuthClient(baseURL, token, accountID string) *TwoFAuthClient {
	client := resty.New()
	client.SetBaseURL(strings.TrimRight(baseURL, "/"))
	client.SetAuthToken(token)
	client.SetHeader("Accept", "application/json")
	client.SetTimeout(15 * time.Second)

	return &TwoFAuthClient{http: client, accountID: accountID}
}

func (c *TwoFAuthClient) Codes(ctx context.Context) (OTPCodes, error) {
	var codes OTPCodes
	resp, err := c.http.R().
		SetContext(ctx).
		SetPathParam("account", c.accountID).
		SetResult(&codes).
		Get("/api/v1/twofaccounts/{account}/otp")
	if err != nil {
		return OTPCodes{}, fmt.Errorf("2fauth request: %w", err)
	}
	if !resp.IsSuccess() {
		return OTPCodes{}, fmt.Errorf("2fauth returned status %d", resp.StatusCode())
	}
	if codes.Current == "" {
		return OTPCodes{}, errors.New("2fauth returned an empty code")
	}
	return codes, nil
}
