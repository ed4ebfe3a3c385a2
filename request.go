package threads

import (
	"context"
	"log/slog"
	"net/http"
	"net/url"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
)

// doGET executes one authenticated GET. There is no retry: a transport
// failure or non-2xx status becomes a *FetchError tagged with page.
func (c *Client) doGET(ctx context.Context, operation, path string, params url.Values, accessToken string, page int) ([]byte, error) {
	req := &Request{
		Method:  http.MethodGet,
		URL:     c.url(path),
		Params:  params,
		Headers: apiHeaders(accessToken),
	}

	ctx, span := c.tracer.Start(ctx, "threads."+operation, trace.WithAttributes(
		attribute.String("threads.path", path),
		attribute.Int("threads.page", page),
	))
	defer span.End()

	resp, err := c.transport.Do(ctx, req)
	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, &FetchError{
			Code:    CodeRequestFailed,
			Message: "request failed",
			Page:    page,
			URL:     req.URL,
			Err:     err,
		}
	}
	span.SetAttributes(attribute.Int("http.status_code", resp.StatusCode))

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		fe := &FetchError{
			Code:       CodeHTTPStatus,
			Message:    truncateBytes(resp.Body, 200),
			Page:       page,
			StatusCode: resp.StatusCode,
			URL:        req.URL,
		}
		if ge := parseGraphError(resp.Body); ge != nil {
			fe.Code = ge.code(CodeHTTPStatus)
			fe.Message = ge.Message
		}
		slog.Warn("threads non-2xx",
			slog.String("operation", operation),
			slog.Int("status", resp.StatusCode),
			slog.Int("page", page),
			slog.String("class", classifyError(resp.Body).String()),
			slog.String("body", truncateBytes(resp.Body, 500)))
		span.SetStatus(codes.Error, fe.Message)
		return nil, fe
	}
	return resp.Body, nil
}
