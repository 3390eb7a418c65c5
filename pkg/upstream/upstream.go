// Package upstream holds the pieces shared by the news and market provider clients:
// the {code,data,message} envelope, request plumbing and failure classification.
package upstream

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// Soft failures: the provider answered but had nothing usable.
// They never trip a breaker.
var (
	ErrStatus    = errors.New("upstream: non-success status")
	ErrEmptyBody = errors.New("upstream: empty body")
	ErrEnvelope  = errors.New("upstream: unsuccessful envelope")
)

// CodeOK is the only application-level success code.
const CodeOK = 200

// DefaultTimeout applies when a client is built without one.
const DefaultTimeout = 5 * time.Second

// Envelope is the common response wrapper of both providers.
type Envelope[T any] struct {
	Code    int    `json:"code"`
	Data    T      `json:"data"`
	Message string `json:"message"`
}

// IsHard reports whether err is a transport or decode failure rather than
// a well-formed "no data" answer.
func IsHard(err error) bool {
	if err == nil {
		return false
	}
	return !errors.Is(err, ErrStatus) && !errors.Is(err, ErrEmptyBody) && !errors.Is(err, ErrEnvelope)
}

// Base carries what every provider client needs.
type Base struct {
	BaseURL    string
	HTTPClient *http.Client
}

// NewBase trims the base URL and applies the timeout (DefaultTimeout when <= 0).
func NewBase(baseURL string, timeout time.Duration) Base {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return Base{
		BaseURL:    strings.TrimRight(strings.TrimSpace(baseURL), "/"),
		HTTPClient: &http.Client{Timeout: timeout},
	}
}

// Get issues GET base+path?params and unwraps the envelope into T.
// A code other than CodeOK yields ErrEnvelope; emptiness of Data is left to the caller.
func Get[T any](ctx context.Context, b Base, path string, params url.Values) (T, error) {
	var zero T

	u := b.BaseURL + path
	if len(params) > 0 {
		u += "?" + params.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return zero, fmt.Errorf("build request %s: %w", path, err)
	}
	req.Header.Set("Accept", "application/json")

	hc := b.HTTPClient
	if hc == nil {
		hc = &http.Client{Timeout: DefaultTimeout}
	}
	res, err := hc.Do(req)
	if err != nil {
		return zero, fmt.Errorf("GET %s: %w", path, err)
	}
	defer res.Body.Close()

	if res.StatusCode < 200 || res.StatusCode > 299 {
		return zero, fmt.Errorf("GET %s status %d: %w", path, res.StatusCode, ErrStatus)
	}

	body, err := io.ReadAll(res.Body)
	if err != nil {
		return zero, fmt.Errorf("read %s: %w", path, err)
	}
	if len(bytes.TrimSpace(body)) == 0 {
		return zero, fmt.Errorf("GET %s: %w", path, ErrEmptyBody)
	}

	var env Envelope[T]
	if err := json.Unmarshal(body, &env); err != nil {
		return zero, fmt.Errorf("decode %s: %w", path, err)
	}
	if env.Code != CodeOK {
		return zero, fmt.Errorf("GET %s code %d (%s): %w", path, env.Code, env.Message, ErrEnvelope)
	}
	return env.Data, nil
}

// NoData wraps ErrEnvelope for a successful envelope that carried nothing.
func NoData(path string) error {
	return fmt.Errorf("GET %s: empty data: %w", path, ErrEnvelope)
}

// Number decodes a JSON number, a numeric string or null into a float64.
// NaN and infinities are rejected: they cannot be re-encoded as JSON.
type Number float64

func (n *Number) UnmarshalJSON(b []byte) error {
	s := strings.TrimSpace(string(b))
	if s == "null" || s == `""` {
		*n = 0
		return nil
	}
	if strings.HasPrefix(s, `"`) {
		unq, err := strconv.Unquote(s)
		if err != nil {
			return err
		}
		s = strings.TrimSpace(unq)
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("number %q: %w", s, err)
	}
	if math.IsNaN(f) || math.IsInf(f, 0) {
		return fmt.Errorf("number %q: not finite", s)
	}
	*n = Number(f)
	return nil
}

// Float returns the plain value.
func (n Number) Float() float64 { return float64(n) }
