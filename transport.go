package threads

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	stealth "github.com/anatolykoptev/go-stealth"
)

// Request is a single API call handed to a Transport.
type Request struct {
	Method  string
	URL     string
	Params  url.Values        // query string
	Form    url.Values        // form-encoded body, POST only
	Headers map[string]string // lower-case names
}

// fullURL returns URL with Params appended.
func (r *Request) fullURL() string {
	if len(r.Params) == 0 {
		return r.URL
	}
	sep := "?"
	if strings.Contains(r.URL, "?") {
		sep = "&"
	}
	return r.URL + sep + r.Params.Encode()
}

// body returns the encoded form, or nil when the request has none.
func (r *Request) body() io.Reader {
	if len(r.Form) == 0 {
		return nil
	}
	return strings.NewReader(r.Form.Encode())
}

// Response is a fully read HTTP response.
type Response struct {
	StatusCode int
	Body       []byte
	Header     map[string]string
}

// Transport executes one HTTP request. Implementations must read and close
// the response body before returning and must not retry.
type Transport interface {
	Do(ctx context.Context, req *Request) (*Response, error)
}

// StealthTransport sends requests through a go-stealth browser client so the
// TLS fingerprint and header order match a real browser.
type StealthTransport struct {
	client    *stealth.BrowserClient
	userAgent string
}

// NewStealthTransport builds a transport with the built-in browser profile at
// index profileIdx (wrapping around), optionally through proxy.
func NewStealthTransport(proxy string, profileIdx int) (*StealthTransport, error) {
	profile := browserProfile(profileIdx)
	opts := []stealth.ClientOption{
		stealth.WithProfile(profile.TLSProfile),
		stealth.WithHeaderOrder(threadsHeaderOrder),
	}
	if proxy != "" {
		opts = append(opts, stealth.WithProxy(proxy))
		slog.Debug("stealth transport via proxy", slog.String("proxy", stealth.MaskProxy(proxy)))
	}
	bc, err := stealth.NewClient(opts...)
	if err != nil {
		return nil, fmt.Errorf("stealth client: %w", err)
	}
	return &StealthTransport{client: bc, userAgent: profile.UserAgent}, nil
}

// browserProfile picks a built-in profile by index.
func browserProfile(idx int) stealth.BrowserProfile {
	n := len(stealth.BuiltinProfiles)
	return stealth.BuiltinProfiles[((idx%n)+n)%n]
}

// Do implements Transport. The stealth client is not context-aware, so
// cancellation is only observed before the request starts.
func (t *StealthTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	headers := withBrowserHeaders(req.Headers, t.userAgent)
	if req.Form != nil {
		headers["content-type"] = "application/x-www-form-urlencoded"
	}
	body, respHdrs, status, err := t.client.DoWithHeaderOrder(req.Method, req.fullURL(), headers, req.body(), threadsHeaderOrder)
	if err != nil {
		return nil, err
	}
	return &Response{StatusCode: status, Body: body, Header: respHdrs}, nil
}

// HTTPTransport sends requests with a plain net/http client.
type HTTPTransport struct {
	Client *http.Client
}

// NewHTTPTransport wraps client, or http.DefaultClient when nil.
func NewHTTPTransport(client *http.Client) *HTTPTransport {
	if client == nil {
		client = http.DefaultClient
	}
	return &HTTPTransport{Client: client}
}

// Do implements Transport.
func (t *HTTPTransport) Do(ctx context.Context, req *Request) (*Response, error) {
	httpReq, err := http.NewRequestWithContext(ctx, req.Method, req.fullURL(), req.body())
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	for k, v := range req.Headers {
		httpReq.Header.Set(k, v)
	}
	if req.Form != nil {
		httpReq.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	}

	resp, err := t.Client.Do(httpReq)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read body: %w", err)
	}
	hdrs := make(map[string]string, len(resp.Header))
	for k := range resp.Header {
		hdrs[strings.ToLower(k)] = resp.Header.Get(k)
	}
	return &Response{StatusCode: resp.StatusCode, Body: body, Header: hdrs}, nil
}
