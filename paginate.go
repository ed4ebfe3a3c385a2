package threads

import (
	"context"
	"errors"
	"iter"
	"log/slog"
	"net/url"
)

// PageRequest describes the first request of a paginated collection.
type PageRequest struct {
	// Operation names the request in logs and spans.
	Operation string
	// Path is the API path, e.g. /me/threads.
	Path string
	// Params are sent with every page; the paginator adds "after", or the
	// since/until of the next link when the server pages by time.
	Params url.Values
	// PageLimit stops after this many pages. Zero means no limit.
	PageLimit int
}

// Paginator walks a paginated collection one page at a time. Collections
// that send an "after" cursor are followed by cursor; insight collections,
// which only send next links carrying since/until, are followed by window.
//
// It is lazy and not restartable: pages are requested only when Next is
// called, and once exhausted, failed or closed it stays that way. Call
// Paginate again to start over. A Paginator must be used from one
// goroutine.
type Paginator struct {
	client  *Client
	req     PageRequest
	token   string
	cursor  string
	window  url.Values
	yielded int
	done    bool
	err     error
}

// Paginate returns a paginator for req authenticated with accessToken.
// No request is issued until the first call to Next.
func (c *Client) Paginate(accessToken string, req PageRequest) *Paginator {
	if req.Operation == "" {
		req.Operation = req.Path
	}
	return &Paginator{client: c, req: req, token: accessToken}
}

// Next fetches the next page. It returns ErrDone when the previous page had
// nothing to follow, the page limit was reached or Close was called. A
// failure is returned as *FetchError or *SchemaError and every later call
// returns the same error; pages returned before it remain valid.
func (p *Paginator) Next(ctx context.Context) (*RawPage, error) {
	if p.err != nil {
		return nil, p.err
	}
	if p.done {
		return nil, ErrDone
	}
	if p.req.PageLimit > 0 && p.yielded >= p.req.PageLimit {
		p.finish()
		return nil, ErrDone
	}
	if err := ctx.Err(); err != nil {
		return nil, p.fail(&FetchError{Code: CodeRequestFailed, Message: "context done", Page: p.yielded, Err: err})
	}

	params := url.Values{}
	for k, v := range p.req.Params {
		params[k] = append([]string(nil), v...)
	}
	if p.cursor != "" {
		params.Set("after", p.cursor)
	}
	for k, v := range p.window {
		params[k] = v
	}

	body, err := p.client.doGET(ctx, p.req.Operation, p.req.Path, params, p.token, p.yielded)
	if err != nil {
		return nil, p.fail(err)
	}
	page, err := parsePage(body, p.yielded)
	if err != nil {
		return nil, p.fail(err)
	}

	sentCursor, sentWindow := p.cursor, p.window
	p.yielded++
	p.cursor, p.window = page.NextCursor, nil
	if p.cursor == "" {
		p.window = nextWindow(page.Next)
	}
	slog.Debug("page fetched",
		slog.String("operation", p.req.Operation),
		slog.Int("page", page.Index),
		slog.Int("items", len(page.Items)),
		slog.Bool("has_next", p.cursor != "" || p.window != nil))

	switch {
	case p.cursor == "" && p.window == nil:
		p.finish()
	case p.cursor != "" && p.cursor == sentCursor,
		p.window != nil && sentWindow != nil && p.window.Encode() == sentWindow.Encode():
		// The server handed back the cursor it was given; following it
		// would loop forever. This page is still good.
		p.err = &FetchError{
			Code:    CodeCursorLoop,
			Message: "server returned the cursor or window that was just sent",
			Page:    page.Index + 1,
		}
		p.finish()
	}
	return page, nil
}

// Close ends the sequence. Later calls to Next return ErrDone without a
// request. Close is idempotent.
func (p *Paginator) Close() {
	p.finish()
}

// Err returns the error that ended the sequence, if any.
func (p *Paginator) Err() error {
	return p.err
}

// Pages returns the number of pages yielded so far.
func (p *Paginator) Pages() int {
	return p.yielded
}

// All returns the remaining pages as a range-over-func sequence. Breaking
// out of the loop closes the paginator. A failure is yielded once as
// (nil, err) and ends the sequence.
func (p *Paginator) All(ctx context.Context) iter.Seq2[*RawPage, error] {
	return func(yield func(*RawPage, error) bool) {
		defer p.Close()
		for {
			page, err := p.Next(ctx)
			if errors.Is(err, ErrDone) {
				return
			}
			if err != nil {
				yield(nil, err)
				return
			}
			if !yield(page, nil) {
				return
			}
		}
	}
}

// Collect drains the paginator. On failure it returns the pages fetched
// before the error together with the error.
func (p *Paginator) Collect(ctx context.Context) ([]*RawPage, error) {
	var pages []*RawPage
	for page, err := range p.All(ctx) {
		if err != nil {
			return pages, err
		}
		pages = append(pages, page)
	}
	return pages, nil
}

func (p *Paginator) fail(err error) error {
	p.err = err
	p.finish()
	slog.Warn("pagination stopped", slog.String("operation", p.req.Operation), slog.Int("pages", p.yielded), slog.Any("error", err))
	return err
}

func (p *Paginator) finish() {
	p.done = true
	p.cursor = ""
	p.window = nil
}

// nextWindow returns the since/until of a next link, or nil when the link
// carries neither.
func nextWindow(next string) url.Values {
	if next == "" {
		return nil
	}
	u, err := url.Parse(next)
	if err != nil {
		return nil
	}
	q := u.Query()
	w := url.Values{}
	for _, k := range []string{"since", "until"} {
		if v := q.Get(k); v != "" {
			w.Set(k, v)
		}
	}
	if len(w) == 0 {
		return nil
	}
	return w
}
