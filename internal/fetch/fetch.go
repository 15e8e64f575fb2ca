// Package fetch retrieves subscription text over HTTP with a size cap,
// redirect limits and retry with exponential backoff.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/John-Robertt/submerge/internal/b64"
	"github.com/John-Robertt/submerge/internal/model"
)

const (
	DefaultTimeout      = 15 * time.Second
	DefaultMaxBytes     = 5 * 1024 * 1024
	DefaultMaxRedirects = 5
	DefaultAttempts     = 3
	DefaultBaseDelay    = time.Second
	DefaultUserAgent    = "clash.meta"
)

type Options struct {
	Timeout      time.Duration // per attempt; default 15s
	MaxBytes     int64         // default 5 MiB
	MaxRedirects int           // default 5
	Attempts     int           // default 3
	BaseDelay    time.Duration // doubled after every failed attempt; default 1s
	UserAgent    string

	// Sleep waits between attempts. Nil means a timer honouring ctx.
	Sleep func(ctx context.Context, d time.Duration) error
}

func (o Options) withDefaults() Options {
	if o.Timeout == 0 {
		o.Timeout = DefaultTimeout
	}
	if o.MaxBytes == 0 {
		o.MaxBytes = DefaultMaxBytes
	}
	if o.MaxRedirects == 0 {
		o.MaxRedirects = DefaultMaxRedirects
	}
	if o.Attempts <= 0 {
		o.Attempts = DefaultAttempts
	}
	if o.BaseDelay == 0 {
		o.BaseDelay = DefaultBaseDelay
	}
	if o.UserAgent == "" {
		o.UserAgent = DefaultUserAgent
	}
	if o.Sleep == nil {
		o.Sleep = sleepCtx
	}
	return o
}

type FetchError struct {
	Status    int // HTTP status this error maps to when surfaced by the API
	Upstream  int // upstream HTTP status, 0 when no response was received
	Attempts  int
	Retryable bool
	AppError  model.AppError
	Cause     error
}

func (e *FetchError) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Cause == nil {
		return fmt.Sprintf("%s: %s", e.AppError.Code, e.AppError.Message)
	}
	return fmt.Sprintf("%s: %s: %v", e.AppError.Code, e.AppError.Message, e.Cause)
}

func (e *FetchError) Unwrap() error { return e.Cause }

// Reason is the short failure description used in outcome reports.
func (e *FetchError) Reason() string {
	if e == nil {
		return ""
	}
	return e.AppError.Message
}

var (
	errTooManyRedirects   = errors.New("too many redirects")
	errRedirectBadScheme  = errors.New("redirect target scheme is not http/https")
	errInvalidURLOrScheme = errors.New("invalid url or scheme")
)

// Result is a successful fetch.
type Result struct {
	Text     string
	Attempts int
}

type Client struct {
	opt  Options
	http *http.Client
	log  logrus.FieldLogger
}

func New(opt Options, log logrus.FieldLogger) *Client {
	opt = opt.withDefaults()
	if log == nil {
		log = logrus.StandardLogger()
	}
	maxRedirects := opt.MaxRedirects
	return &Client{
		opt: opt,
		log: log,
		http: &http.Client{
			Timeout:   opt.Timeout,
			Transport: http.DefaultTransport,
			CheckRedirect: func(req *http.Request, via []*http.Request) error {
				// 1st redirect => len(via)==1.
				if len(via) > maxRedirects {
					return errTooManyRedirects
				}
				if req.URL.Scheme != "http" && req.URL.Scheme != "https" {
					return errRedirectBadScheme
				}
				return nil
			},
		},
	}
}

// Fetch GETs rawURL, retrying timeouts, connection failures and 5xx
// responses up to Attempts times. The delay before retry n (1-based) is
// BaseDelay * 2^(n-1). The returned error is always a *FetchError.
func (c *Client) Fetch(ctx context.Context, rawURL string) (Result, error) {
	log := c.log.WithField("source", Redact(rawURL))
	for attempt := 1; ; attempt++ {
		text, err := c.once(ctx, rawURL)
		if err == nil {
			return Result{Text: text, Attempts: attempt}, nil
		}
		var fe *FetchError
		if !errors.As(err, &fe) {
			fe = newFetchError(http.StatusBadGateway, 0, "FETCH_FAILED", "拉取远程资源失败", rawURL, false, err)
		}
		fe.Attempts = attempt
		if !fe.Retryable || attempt >= c.opt.Attempts || ctx.Err() != nil {
			return Result{}, fe
		}
		delay := c.opt.BaseDelay << (attempt - 1)
		log.WithFields(logrus.Fields{
			"attempt": attempt,
			"delay":   delay,
			"reason":  fe.Reason(),
		}).Warn("fetch failed, retrying")
		if err := c.opt.Sleep(ctx, delay); err != nil {
			return Result{}, fe
		}
	}
}

func (c *Client) once(ctx context.Context, rawURL string) (string, error) {
	maxBytes := c.opt.MaxBytes
	if maxBytes <= 0 {
		return "", newFetchError(http.StatusBadRequest, 0, "INVALID_ARGUMENT", "响应大小上限必须大于 0", rawURL, false, nil)
	}

	u, err := url.Parse(rawURL)
	if err != nil || u == nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", newFetchError(http.StatusBadRequest, 0, "INVALID_ARGUMENT", "仅允许 http/https URL", rawURL, false, errors.Join(errInvalidURLOrScheme, err))
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return "", newFetchError(http.StatusBadRequest, 0, "INVALID_ARGUMENT", "请求 URL 不合法", rawURL, false, err)
	}
	req.Header.Set("User-Agent", c.opt.UserAgent)

	resp, err := c.http.Do(req)
	if err != nil {
		if resp != nil && resp.Body != nil {
			_ = resp.Body.Close()
		}
		switch {
		case errors.Is(err, errTooManyRedirects):
			return "", newFetchError(http.StatusBadGateway, 0, "FETCH_FAILED", fmt.Sprintf("重定向次数超过上限（>%d）", c.opt.MaxRedirects), rawURL, false, err)
		case errors.Is(err, errRedirectBadScheme):
			return "", newFetchError(http.StatusBadRequest, 0, "INVALID_ARGUMENT", "重定向目标仅允许 http/https", rawURL, false, err)
		case errors.Is(err, context.Canceled):
			return "", newFetchError(http.StatusBadGateway, 0, "FETCH_CANCELED", "请求已取消", rawURL, false, err)
		case isTimeout(err):
			return "", newFetchError(http.StatusGatewayTimeout, 0, "FETCH_TIMEOUT", "拉取远程资源超时", rawURL, true, err)
		}
		return "", newFetchError(http.StatusBadGateway, 0, "FETCH_FAILED", "连接远程资源失败", rawURL, true, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", newFetchError(http.StatusBadGateway, resp.StatusCode, "FETCH_FAILED",
			fmt.Sprintf("上游返回非 2xx 状态码：%d", resp.StatusCode), rawURL, resp.StatusCode >= 500, nil)
	}

	// Read at most maxBytes+1 to detect overflow deterministically.
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBytes+1))
	if err != nil {
		if isTimeout(err) {
			return "", newFetchError(http.StatusGatewayTimeout, resp.StatusCode, "FETCH_TIMEOUT", "拉取远程资源超时", rawURL, true, err)
		}
		return "", newFetchError(http.StatusBadGateway, resp.StatusCode, "FETCH_FAILED", "读取上游响应失败", rawURL, true, err)
	}
	if int64(len(body)) > maxBytes {
		return "", newFetchError(http.StatusUnprocessableEntity, resp.StatusCode, "TOO_LARGE", fmt.Sprintf("远程资源过大（>%d bytes）", maxBytes), rawURL, false, nil)
	}
	text := b64.Text(body)
	if len(text) == 0 {
		return "", newFetchError(http.StatusUnprocessableEntity, resp.StatusCode, "FETCH_EMPTY", "上游返回空内容", rawURL, false, nil)
	}
	return text, nil
}

func isTimeout(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func newFetchError(status, upstream int, code, message, rawURL string, retryable bool, cause error) *FetchError {
	return &FetchError{
		Status:    status,
		Upstream:  upstream,
		Retryable: retryable,
		AppError: model.AppError{
			Code:    code,
			Message: message,
			Stage:   model.StageFetch,
			URL:     rawURL,
		},
		Cause: cause,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// Redact reduces rawURL to scheme://host. Subscription URLs usually carry
// access tokens in the path or query.
func Redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u == nil || u.Host == "" {
		return "<invalid url>"
	}
	return u.Scheme + "://" + u.Host
}
