package threads

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// fakeTransport answers requests from a handler and records them.
type fakeTransport struct {
	mu      sync.Mutex
	handler func(req *Request) (*Response, error)
	reqs    []*Request
}

func (f *fakeTransport) Do(_ context.Context, req *Request) (*Response, error) {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	return f.handler(req)
}

func (f *fakeTransport) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

func jsonResponse(status int, body string) *Response {
	return &Response{StatusCode: status, Body: []byte(body)}
}

// pagedServer serves n pages with cursors c1..c(n-1).
func pagedServer(n int) *fakeTransport {
	return &fakeTransport{handler: func(req *Request) (*Response, error) {
		i := 0
		if after := req.Params.Get("after"); after != "" {
			fmt.Sscanf(after, "c%d", &i)
		}
		if i >= n {
			return jsonResponse(400, `{"error":{"message":"bad cursor","code":100}}`), nil
		}
		paging := ""
		if i+1 < n {
			paging = fmt.Sprintf(`,"paging":{"cursors":{"after":"c%d"},"next":"https://graph.threads.net/me/threads?after=c%d"}`, i+1, i+1)
		}
		return jsonResponse(200, fmt.Sprintf(`{"data":[{"id":"%d","timestamp":"2024-06-01T12:00:00+0000"}]%s}`, i, paging)), nil
	}}
}

// windowServer pages insights by time the way the Graph API does: no
// cursors, only previous/next links one day either side of the request.
func windowServer() *fakeTransport {
	return &fakeTransport{handler: func(req *Request) (*Response, error) {
		since, _ := strconv.ParseInt(req.Params.Get("since"), 10, 64)
		until := since + 86400
		link := func(s int64) string {
			return fmt.Sprintf("https://graph.threads.net/v1.0/me/threads_insights?metric=views&since=%d&until=%d", s, s+86400)
		}
		return jsonResponse(200, fmt.Sprintf(
			`{"data":[{"name":"views","period":"day","values":[{"value":%d}]}],"paging":{"previous":%q,"next":%q}}`,
			since, link(since), link(until))), nil
	}}
}

func newTestClient(t *testing.T, tr Transport) *Client {
	t.Helper()
	c, err := NewClient(ClientConfig{ClientID: "app", ClientSecret: "secret", Transport: tr})
	require.NoError(t, err)
	return c
}

func TestPaginator_AllPages(t *testing.T) {
	tr := pagedServer(3)
	c := newTestClient(t, tr)

	pages, err := c.Paginate("tok", PageRequest{Path: pathUserThreads}).Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, pages, 3)
	for i, p := range pages {
		assert.Equal(t, i, p.Index)
		assert.Len(t, p.Items, 1)
	}
	assert.Equal(t, 3, tr.count())
	assert.Empty(t, tr.reqs[0].Params.Get("after"))
	assert.Equal(t, "c1", tr.reqs[1].Params.Get("after"))
	assert.Equal(t, "Bearer tok", tr.reqs[0].Headers["authorization"])
}

func TestPaginator_PageLimit(t *testing.T) {
	tr := pagedServer(5)
	c := newTestClient(t, tr)

	pages, err := c.Paginate("tok", PageRequest{Path: pathUserThreads, PageLimit: 2}).Collect(context.Background())
	require.NoError(t, err)
	assert.Len(t, pages, 2)
	assert.Equal(t, 2, tr.count(), "no request for the page after the limit")
}

func TestPaginator_EmptyFirstPage(t *testing.T) {
	tr := &fakeTransport{handler: func(*Request) (*Response, error) {
		return jsonResponse(200, `{"data":[]}`), nil
	}}
	c := newTestClient(t, tr)

	p := c.Paginate("tok", PageRequest{Path: pathUserThreads})
	page, err := p.Next(context.Background())
	require.NoError(t, err)
	assert.Empty(t, page.Items)

	_, err = p.Next(context.Background())
	assert.ErrorIs(t, err, ErrDone)
	assert.Equal(t, 1, tr.count())
}

func TestPaginator_FetchErrorMidStream(t *testing.T) {
	tr := &fakeTransport{handler: func(req *Request) (*Response, error) {
		if req.Params.Get("after") == "" {
			return jsonResponse(200, `{"data":[{"id":"1"}],"paging":{"cursors":{"after":"c1"},"next":"n"}}`), nil
		}
		return jsonResponse(500, `{"error":{"message":"An unknown error has occurred.","code":1}}`), nil
	}}
	c := newTestClient(t, tr)

	pages, err := c.Paginate("tok", PageRequest{Path: pathUserThreads}).Collect(context.Background())
	require.Len(t, pages, 1, "pages before the failure are kept")

	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, 1, fe.Page)
	assert.Equal(t, 500, fe.StatusCode)
	assert.Equal(t, "1", fe.Code)
	assert.Equal(t, "An unknown error has occurred.", fe.Message)
}

func TestPaginator_TransportError(t *testing.T) {
	cause := errors.New("dial tcp: connection refused")
	tr := &fakeTransport{handler: func(*Request) (*Response, error) { return nil, cause }}
	c := newTestClient(t, tr)

	p := c.Paginate("tok", PageRequest{Path: pathUserThreads})
	_, err := p.Next(context.Background())
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, CodeRequestFailed, fe.Code)
	assert.ErrorIs(t, err, cause)

	_, again := p.Next(context.Background())
	assert.Same(t, err, again, "error is sticky")
	assert.Equal(t, 1, tr.count())
}

func TestPaginator_MalformedPage(t *testing.T) {
	tr := &fakeTransport{handler: func(*Request) (*Response, error) {
		return jsonResponse(200, `{"paging":{}}`), nil
	}}
	c := newTestClient(t, tr)

	_, err := c.Paginate("tok", PageRequest{Path: pathUserThreads}).Collect(context.Background())
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, CodeMalformedPage, se.Code)
}

func TestPaginator_CursorLoop(t *testing.T) {
	tr := &fakeTransport{handler: func(*Request) (*Response, error) {
		return jsonResponse(200, `{"data":[{"id":"1"}],"paging":{"cursors":{"after":"same"},"next":"n"}}`), nil
	}}
	c := newTestClient(t, tr)

	pages, err := c.Paginate("tok", PageRequest{Path: pathUserThreads}).Collect(context.Background())
	assert.Len(t, pages, 2)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, CodeCursorLoop, fe.Code)
	assert.Equal(t, 2, tr.count())
}

func TestPaginator_FollowsNextWindow(t *testing.T) {
	tr := windowServer()
	c := newTestClient(t, tr)

	pages, err := c.Paginate("tok", PageRequest{
		Path:      pathUserInsights,
		Params:    url.Values{"metric": {"views"}, "since": {"1000"}},
		PageLimit: 3,
	}).Collect(context.Background())
	require.NoError(t, err)
	require.Len(t, pages, 3)
	assert.Equal(t, 3, tr.count())

	for i, want := range []string{"1000", "87400", "173800"} {
		q := tr.reqs[i].Params
		assert.Equal(t, want, q.Get("since"))
		assert.Equal(t, "views", q.Get("metric"))
		assert.Empty(t, q.Get("after"))
	}
	assert.Equal(t, "173800", tr.reqs[2].Params.Get("since"))
	assert.Equal(t, "260200", tr.reqs[2].Params.Get("until"))
	assert.Equal(t, time.Unix(87400, 0).UTC(), *pages[1].Since)
}

func TestPaginator_WindowLoop(t *testing.T) {
	tr := &fakeTransport{handler: func(*Request) (*Response, error) {
		return jsonResponse(200, `{"data":[],"paging":{"next":"https://graph.threads.net/me/threads_insights?since=5&until=6"}}`), nil
	}}
	c := newTestClient(t, tr)

	pages, err := c.Paginate("tok", PageRequest{Path: pathUserInsights}).Collect(context.Background())
	assert.Len(t, pages, 2)
	var fe *FetchError
	require.ErrorAs(t, err, &fe)
	assert.Equal(t, CodeCursorLoop, fe.Code)
}

func TestPaginator_Close(t *testing.T) {
	tr := pagedServer(3)
	c := newTestClient(t, tr)

	p := c.Paginate("tok", PageRequest{Path: pathUserThreads})
	_, err := p.Next(context.Background())
	require.NoError(t, err)
	p.Close()
	p.Close()

	_, err = p.Next(context.Background())
	assert.ErrorIs(t, err, ErrDone)
	assert.Equal(t, 1, tr.count())
	assert.NoError(t, p.Err())
}

func TestPaginator_BreakStopsFetching(t *testing.T) {
	tr := pagedServer(5)
	c := newTestClient(t, tr)

	p := c.Paginate("tok", PageRequest{Path: pathUserThreads})
	for page, err := range p.All(context.Background()) {
		require.NoError(t, err)
		if page.Index == 1 {
			break
		}
	}
	assert.Equal(t, 2, tr.count())
	_, err := p.Next(context.Background())
	assert.ErrorIs(t, err, ErrDone)
}

func TestPaginator_CanceledContext(t *testing.T) {
	tr := pagedServer(3)
	c := newTestClient(t, tr)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := c.Paginate("tok", PageRequest{Path: pathUserThreads}).Next(ctx)
	assert.ErrorIs(t, err, context.Canceled)
	assert.Zero(t, tr.count())
}

func TestPaginator_ParamsNotShared(t *testing.T) {
	tr := pagedServer(2)
	c := newTestClient(t, tr)
	params := url.Values{"fields": {"id,timestamp"}}

	_, err := c.Paginate("tok", PageRequest{Path: pathUserThreads, Params: params}).Collect(context.Background())
	require.NoError(t, err)
	assert.Empty(t, params.Get("after"), "caller params are not mutated")
	assert.True(t, strings.HasSuffix(tr.reqs[0].URL, pathUserThreads))
	assert.Equal(t, "id,timestamp", tr.reqs[1].Params.Get("fields"))
}
