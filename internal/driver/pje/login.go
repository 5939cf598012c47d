package pje

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/JustJay7/pje-capture/internal/driver"
	"github.com/JustJay7/pje-capture/pkg/logger"
	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/launcher"
	"github.com/go-rod/rod/lib/proto"
)

const (
	accessTokenCookie = "access_token"
	xsrfTokenCookie   = "Xsrf-Token"

	invalidCodeSelector = ".kc-feedback-text, [role=alert]"

	redirectPollInterval = 500 * time.Millisecond
)

// DefaultTimeout bounds portal calls when neither the court nor the options set one
const DefaultTimeout = 60 * time.Second

// Tokens is what a successful login leaves behind
type Tokens struct {
	AccessToken string
	XSRFToken   string
	Cookies     []*http.Cookie
	Attorney    driver.Attorney

	// Closer releases the browser that holds the portal session, if any
	Closer io.Closer
}

// Authenticator performs the portal login
type Authenticator interface {
	Authenticate(ctx context.Context, cred driver.Credential, court driver.CourtConfig) (*Tokens, error)
}

// BrowserAuthenticator logs in through the SSO pages in a headless browser
type BrowserAuthenticator struct {
	OTP         OTPSource
	Headless    bool
	UserAgent   string
	BrowserPath string
	Logger      *logger.Logger
}

func (a *BrowserAuthenticator) log() *logger.Logger {
	if a.Logger == nil {
		return logger.NewNop()
	}
	return a.Logger
}

func (a *BrowserAuthenticator) Authenticate(ctx context.Context, cred driver.Credential, court driver.CourtConfig) (*Tokens, error) {
	l := launcher.New().
		Context(ctx).
		Headless(a.Headless).
		Set("disable-blink-features", "AutomationControlled").
		Delete("enable-automation")
	if a.UserAgent != "" {
		l = l.Set("user-agent", a.UserAgent)
	}
	if a.BrowserPath != "" {
		l = l.Bin(a.BrowserPath)
	}

	controlURL, err := l.Launch()
	if err != nil {
		return nil, fmt.Errorf("failed to launch browser: %w", err)
	}

	browser := rod.New().ControlURL(controlURL).Context(ctx)
	if err := browser.Connect(); err != nil {
		l.Kill()
		return nil, fmt.Errorf("failed to connect to browser: %w", err)
	}

	tokens, err := a.login(ctx, browser, cred, court)
	if err != nil {
		_ = browser.Close()
		return nil, &driver.AuthenticationError{Court: court.Code, Err: err}
	}
	tokens.Closer = closerFunc(browser.Close)
	return tokens, nil
}

type closerFunc func() error

func (f closerFunc) Close() error { return f() }

func (a *BrowserAuthenticator) login(ctx context.Context, browser *rod.Browser, cred driver.Credential, court driver.CourtConfig) (*Tokens, error) {
	timeout := court.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	log := a.log()

	loginURL := court.LoginURL
	if loginURL == "" {
		loginURL = court.BaseURL
	}
	log.Info("Opening portal login", "court", court.Code, "url", loginURL)

	page, err := browser.Page(proto.TargetCreateTarget{URL: loginURL})
	if err != nil {
		return nil, fmt.Errorf("open login page: %w", err)
	}
	page = page.Timeout(timeout)
	if err := page.WaitLoad(); err != nil {
		log.Warn("Login page load timeout", "court", court.Code, "error", err)
	}

	if err := click(page, "#btnSsoPdpj"); err != nil {
		return nil, err
	}
	if err := fill(page, "#username", cred.Login); err != nil {
		return nil, err
	}
	if err := fill(page, "#password", cred.Secret); err != nil {
		return nil, err
	}
	if err := click(page, "#kc-login"); err != nil {
		return nil, err
	}

	if _, err := page.Element("#otp"); err != nil {
		return nil, fmt.Errorf("otp field not found: %w", err)
	}
	if a.OTP == nil {
		return nil, errors.New("no otp source configured")
	}
	codes, err := a.OTP.Codes(ctx)
	if err != nil {
		return nil, fmt.Errorf("fetch otp: %w", err)
	}

	invalid, err := submitCode(ctx, page, codes.Current, timeout)
	if err != nil {
		return nil, err
	}
	if invalid {
		if codes.Next == "" {
			return nil, errors.New("otp rejected and no next code available")
		}
		log.Warn("OTP rejected, retrying with next code", "court", court.Code)
		invalid, err = submitCode(ctx, page, codes.Next, timeout)
		if err != nil {
			return nil, err
		}
		if invalid {
			return nil, errors.New("otp rejected twice")
		}
	}

	cookies, err := page.Cookies(nil)
	if err != nil {
		return nil, fmt.Errorf("read cookies: %w", err)
	}
	tokens := tokensFromCookies(cookies)
	if tokens.AccessToken == "" {
		return nil, errors.New("access token cookie not found after login")
	}
	attorney, err := attorneyFromJWT(tokens.AccessToken)
	if err != nil {
		return nil, err
	}
	tokens.Attorney = attorney

	log.Info("Portal login succeeded", "court", court.Code, "attorney_id", attorney.ExternalID)
	return tokens, nil
}

func click(page *rod.Page, selector string) error {
	el, err := page.Element(selector)
	if err != nil {
		return fmt.Errorf("%s not found: %w", selector, err)
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("click %s: %w", selector, err)
	}
	return nil
}

func fill(page *rod.Page, selector, value string) error {
	el, err := page.Element(selector)
	if err != nil {
		return fmt.Errorf("%s not found: %w", selector, err)
	}
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("clear %s: %w", selector, err)
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("fill %s: %w", selector, err)
	}
	return nil
}

// submitCode enters an otp and waits, at most timeout, until the browser
// leaves the SSO host or the page shows an invalid-code message
func submitCode(ctx context.Context, page *rod.Page, code string, timeout time.Duration) (bool, error) {
	if err := fill(page, "#otp", code); err != nil {
		return false, err
	}
	if err := click(page, "#kc-login"); err != nil {
		return false, err
	}

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	return pollLoginResult(ctx, redirectPollInterval, func() (bool, bool) {
		info, err := page.Info()
		if err == nil && !onSSOHost(info.URL) {
			return true, false
		}
		has, _, _ := page.Has(invalidCodeSelector)
		return false, has
	})
}

// pollLoginResult calls check every interval until it reports a redirect or a
// rejected code, or ctx ends
func pollLoginResult(ctx context.Context, interval time.Duration, check func() (redirected, rejected bool)) (bool, error) {
	for {
		redirected, rejected := check()
		if redirected {
			return false, nil
		}
		if rejected {
			return true, nil
		}
		if err := driver.Sleep(ctx, interval); err != nil {
			return false, fmt.Errorf("waiting for login redirect: %w", err)
		}
	}
}

func onSSOHost(raw string) bool {
	u, err := url.Parse(raw)
	if err != nil {
		return true
	}
	return strings.HasPrefix(u.Hostname(), "sso.")
}

func tokensFromCookies(cookies []*proto.NetworkCookie) *Tokens {
	t := &Tokens{}
	for _, c := range cookies {
		switch c.Name {
		case accessTokenCookie:
			t.AccessToken = c.Value
		case xsrfTokenCookie:
			t.XSRFToken = c.Value
		}
		t.Cookies = append(t.Cookies, &http.Cookie{Name: c.Name, Value: c.Value, Domain: c.Domain, Path: c.Path})
	}
	return t
}

// attorneyFromJWT reads the id, cpf and name claims of the access token
func attorneyFromJWT(token string) (driver.Attorney, error) {
	parts := strings.Split(token, ".")
	if len(parts) != 3 {
		return driver.Attorney{}, errors.New("access token is not a JWT")
	}
	payload, err := base64.RawURLEncoding.DecodeString(strings.TrimRight(parts[1], "="))
	if err != nil {
		return driver.Attorney{}, fmt.Errorf("decode token payload: %w", err)
	}

	dec := json.NewDecoder(bytes.NewReader(payload))
	dec.UseNumber()
	var claims map[string]any
	if err := dec.Decode(&claims); err != nil {
		return driver.Attorney{}, fmt.Errorf("decode token claims: %w", err)
	}

	a := driver.Attorney{
		ExternalID: claimString(claims["id"]),
		TaxID:      claimString(claims["cpf"]),
		Name:       claimString(claims["name"]),
	}
	if a.ExternalID == "" {
		return driver.Attorney{}, errors.New("token has no id claim")
	}
	return a, nil
}

func claimString(v any) string {
	switch c := v.(type) {
	case string:
		return c
	case json.Number:
		return c.String()
	default:
		return ""
	}
}
