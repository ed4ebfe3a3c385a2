package threads

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	stealth "github.com/anatolykoptev/go-stealth"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHTTPTransport_Do(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "Bearer tok", r.Header.Get("Authorization"))
		assert.Equal(t, "views", r.URL.Query().Get("metric"))
		if r.Method == http.MethodPost {
			assert.Equal(t, "application/x-www-form-urlencoded", r.Header.Get("Content-Type"))
			body, _ := io.ReadAll(r.Body)
			assert.Equal(t, "code=abc", string(body))
		}
		w.Header().Set("X-App-Usage", `{"call_count":1}`)
		w.WriteHeader(http.StatusCreated)
		w.Write([]byte(`{"ok":true}`))
	}))
	defer srv.Close()

	tr := NewHTTPTransport(srv.Client())
	for _, method := range []string{http.MethodGet, http.MethodPost} {
		req := &Request{
			Method:  method,
			URL:     srv.URL + "/me",
			Params:  url.Values{"metric": {"views"}},
			Headers: apiHeaders("tok"),
		}
		if method == http.MethodPost {
			req.Form = url.Values{"code": {"abc"}}
		}
		resp, err := tr.Do(context.Background(), req)
		require.NoError(t, err)
		assert.Equal(t, http.StatusCreated, resp.StatusCode)
		assert.JSONEq(t, `{"ok":true}`, string(resp.Body))
		assert.Equal(t, `{"call_count":1}`, resp.Header["x-app-usage"])
	}
}

func TestHTTPTransport_Canceled(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))
	defer srv.Close()

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := NewHTTPTransport(nil).Do(ctx, &Request{Method: http.MethodGet, URL: srv.URL})
	assert.ErrorIs(t, err, context.Canceled)
}

func TestRequestFullURL(t *testing.T) {
	r := &Request{URL: "https://graph.threads.net/me/threads"}
	assert.Equal(t, "https://graph.threads.net/me/threads", r.fullURL())

	r.Params = url.Values{"limit": {"5"}}
	assert.Equal(t, "https://graph.threads.net/me/threads?limit=5", r.fullURL())

	r.URL += "?fields=id"
	assert.Equal(t, "https://graph.threads.net/me/threads?fields=id&limit=5", r.fullURL())
}

func TestWithBrowserHeaders(t *testing.T) {
	in := apiHeaders("tok")
	out := withBrowserHeaders(in, "")

	assert.Equal(t, defaultUserAgent, out["user-agent"])
	assert.Equal(t, "Bearer tok", out["authorization"])
	assert.NotContains(t, in, "user-agent", "input is copied, not modified")

	noAuth := apiHeaders("")
	assert.NotContains(t, noAuth, "authorization")
}

func TestBrowserProfile_Wraps(t *testing.T) {
	n := len(stealth.BuiltinProfiles)
	assert.Equal(t, browserProfile(0).UserAgent, browserProfile(n).UserAgent)
	assert.Equal(t, browserProfile(n-1).UserAgent, browserProfile(-1).UserAgent)
}
