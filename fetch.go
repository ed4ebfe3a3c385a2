package threads

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/anatolykoptev/go-threads/table"
)

// InsightsQuery selects account-level insights.
type InsightsQuery struct {
	Metrics   []string
	Since     *time.Time
	Until     *time.Time
	Breakdown string // one of Breakdowns; empty for none
	// PageLimit bounds how many reporting windows are walked. Insight
	// paging links move through time without end, so zero means one page.
	PageLimit int
	Options   NormalizeOptions
}

// ThreadsQuery selects the user's threads.
type ThreadsQuery struct {
	Fields    []string
	Since     *time.Time
	Until     *time.Time
	Limit     int // page size; zero uses ClientConfig.PageSize
	PageLimit int // zero means all pages
	Options   NormalizeOptions
}

// ReportQuery drives FetchThreadsWithInsights.
type ReportQuery struct {
	Fields     []string
	Metrics    []string
	ClientName string
	Since      *time.Time
	Until      *time.Time
	PageLimit  int
}

// Report is the joined threads-and-insights table.
type Report struct {
	RunID      string
	CapturedAt time.Time
	Table      *table.Table
	Threads    *ThreadTable
	// MediaErrors holds the media ids whose insights could not be fetched.
	MediaErrors map[string]error
}

// UserInsights fetches and normalizes account-level insights. When a page
// after the first fails, the pages before it are still normalized and the
// failure is returned in InsightTable.Err.
func (c *Client) UserInsights(ctx context.Context, accessToken string, q InsightsQuery) (*InsightTable, error) {
	if err := validateNames("metric", q.Metrics, c.cfg.UserMetrics); err != nil {
		return nil, err
	}
	params := url.Values{"metric": {strings.Join(q.Metrics, ",")}}
	if q.Breakdown != "" {
		if err := validateNames("breakdown", []string{q.Breakdown}, c.cfg.Breakdowns); err != nil {
			return nil, err
		}
		params.Set("breakdown", q.Breakdown)
	}
	setWindow(params, q.Since, q.Until)

	limit := q.PageLimit
	if limit <= 0 {
		limit = 1
	}
	pages, err := c.Paginate(accessToken, PageRequest{
		Operation: "UserInsights",
		Path:      pathUserInsights,
		Params:    params,
		PageLimit: limit,
	}).Collect(ctx)
	if err != nil && len(pages) == 0 {
		return nil, fmt.Errorf("UserInsights: %w", err)
	}
	it, nerr := NormalizeInsights(pages, "me", q.Options)
	if nerr != nil {
		return nil, nerr
	}
	if err != nil {
		it.Err = fmt.Errorf("UserInsights: %w", err)
		slog.Warn("insights incomplete", slog.Int("pages", len(pages)), slog.Any("error", err))
	}
	return it, nil
}

// MediaInsights fetches and normalizes the insights of one media object.
func (c *Client) MediaInsights(ctx context.Context, accessToken, mediaID string, metrics []string) (*InsightTable, error) {
	if mediaID == "" {
		return nil, &InputError{Code: CodeInvalidInput, Message: "media id is required"}
	}
	if err := validateNames("metric", metrics, c.cfg.MediaMetrics); err != nil {
		return nil, err
	}
	pages, err := c.Paginate(accessToken, PageRequest{
		Operation: "MediaInsights",
		Path:      c.mediaInsightsPath(mediaID),
		Params:    url.Values{"metric": {strings.Join(metrics, ",")}},
		PageLimit: 1,
	}).Collect(ctx)
	if err != nil {
		return nil, fmt.Errorf("MediaInsights %s: %w", mediaID, err)
	}
	return NormalizeInsights(pages, mediaID, NormalizeOptions{})
}

// ListThreads returns a paginator over the user's threads. Invalid field
// names are reported before any request is made.
func (c *Client) ListThreads(accessToken string, q ThreadsQuery) (*Paginator, error) {
	fields := q.Fields
	if len(fields) == 0 {
		fields = []string{"id", "text", "timestamp"}
	}
	if err := validateNames("field", fields, c.cfg.ThreadFields); err != nil {
		return nil, err
	}
	params := url.Values{"fields": {strings.Join(fields, ",")}}
	setWindow(params, q.Since, q.Until)
	limit := q.Limit
	if limit <= 0 {
		limit = c.cfg.PageSize
	}
	params.Set("limit", strconv.Itoa(limit))

	return c.Paginate(accessToken, PageRequest{
		Operation: "ListThreads",
		Path:      pathUserThreads,
		Params:    params,
		PageLimit: q.PageLimit,
	}), nil
}

// FetchThreads walks every page of the user's threads and normalizes them,
// keeping the records inside window. When a page after the first fails, the
// pages before it are still normalized and the failure is returned in
// ThreadTable.Err.
func (c *Client) FetchThreads(ctx context.Context, accessToken string, q ThreadsQuery, window TimeWindow) (*ThreadTable, error) {
	p, err := c.ListThreads(accessToken, q)
	if err != nil {
		return nil, err
	}
	pages, err := p.Collect(ctx)
	if err != nil && len(pages) == 0 {
		return nil, fmt.Errorf("FetchThreads: %w", err)
	}
	tt, nerr := NormalizeThreads(pages, window, q.Options)
	if nerr != nil {
		return nil, nerr
	}
	if err != nil {
		tt.Err = fmt.Errorf("FetchThreads: %w", err)
		slog.Warn("threads incomplete", slog.Int("pages", len(pages)), slog.Any("error", err))
	}
	return tt, nil
}

// FetchThreadsWithInsights fetches threads in [Since, Until], fetches the
// insights of each one concurrently and left-joins them as one column per
// metric. The client name and capture time are prepended to every row.
// A failed media fetch leaves that row's metric cells missing and is
// reported in MediaErrors. Threads pages lost to a mid-stream failure are
// reported in Threads.Err.
func (c *Client) FetchThreadsWithInsights(ctx context.Context, accessToken string, q ReportQuery) (*Report, error) {
	if err := validateNames("metric", q.Metrics, c.cfg.MediaMetrics); err != nil {
		return nil, err
	}
	if q.ClientName == "" {
		return nil, &InputError{Code: CodeInvalidInput, Message: "client name is required"}
	}

	rep := &Report{
		RunID:       uuid.NewString(),
		CapturedAt:  c.cfg.Now().UTC(),
		MediaErrors: make(map[string]error),
	}
	log := slog.With(slog.String("run_id", rep.RunID), slog.String("client", q.ClientName))

	threads, err := c.FetchThreads(ctx, accessToken, ThreadsQuery{
		Fields:    q.Fields,
		Since:     q.Since,
		Until:     q.Until,
		PageLimit: q.PageLimit,
	}, TimeWindow{Since: q.Since, Until: q.Until})
	if err != nil {
		return nil, err
	}
	rep.Threads = threads
	log.Info("threads fetched", slog.Int("count", len(threads.Records)), slog.Bool("complete", threads.Err == nil))

	results := make([]*InsightTable, len(threads.Records))
	var (
		mu sync.Mutex
		g  errgroup.Group
	)
	g.SetLimit(c.cfg.InsightsConcurrency)
	for i, rec := range threads.Records {
		g.Go(func() error {
			it, err := c.MediaInsights(ctx, accessToken, rec.ID, q.Metrics)
			if err != nil {
				mu.Lock()
				rep.MediaErrors[rec.ID] = err
				mu.Unlock()
				log.Warn("media insights failed", slog.String("media_id", rec.ID), slog.Any("error", err))
				return nil
			}
			results[i] = it
			return nil
		})
	}
	// Workers record failures in MediaErrors and always return nil.
	g.Wait()
	if err := ctx.Err(); err != nil {
		return nil, fmt.Errorf("FetchThreadsWithInsights: %w", err)
	}

	var rows []table.Row
	for i, rec := range threads.Records {
		if results[i] == nil {
			continue
		}
		rows = append(rows, firstValueRow(rec.ID, results[i].Observations))
	}
	joined := table.LeftJoin(threads.Table, table.Build(rows), "id", "media_id")
	rep.Table = table.Prepend(joined,
		table.Field{Name: "client", Value: q.ClientName},
		table.Field{Name: "captured_at", Value: rep.CapturedAt},
	)
	log.Info("report built",
		slog.Int("rows", rep.Table.Len()),
		slog.Int("media_errors", len(rep.MediaErrors)))
	return rep, nil
}

// firstValueRow keeps the first observation of each metric for one media id.
func firstValueRow(mediaID string, obs []MetricObservation) table.Row {
	row := table.Row{{Name: "media_id", Value: mediaID}}
	seen := make(map[string]bool)
	for _, o := range obs {
		if seen[o.Metric] {
			continue
		}
		seen[o.Metric] = true
		row = append(row, table.Field{Name: o.Metric, Value: o.Value})
	}
	return row
}

// setWindow adds since/until as unix seconds.
func setWindow(params url.Values, since, until *time.Time) {
	if since != nil {
		params.Set("since", strconv.FormatInt(since.Unix(), 10))
	}
	if until != nil {
		params.Set("until", strconv.FormatInt(until.Unix(), 10))
	}
}
