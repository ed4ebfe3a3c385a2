package threads

import (
	"bytes"
	"encoding/json"
	"fmt"
	"math"
	"net/url"
	"strconv"
	"strings"
	"time"
)

// threadsTimeLayout is the timestamp layout used by the Graph API.
const threadsTimeLayout = "2006-01-02T15:04:05-0700"

// pageEnvelope is the outer shape shared by every collection response.
type pageEnvelope struct {
	Data   json.RawMessage `json:"data"`
	Paging *struct {
		Cursors struct {
			Before string `json:"before"`
			After  string `json:"after"`
		} `json:"cursors"`
		Next     string `json:"next"`
		Previous string `json:"previous"`
	} `json:"paging"`
}

// parsePage decodes one collection response. The next cursor is kept only
// when the server also sent a next link: the Graph API omits "next" on the
// last page even when it still sends an "after" cursor.
func parsePage(body []byte, index int) (*RawPage, error) {
	if ge := parseGraphError(body); ge != nil {
		return nil, &FetchError{Code: ge.code(CodeHTTPStatus), Message: ge.Message, Page: index}
	}

	var env pageEnvelope
	if err := json.Unmarshal(body, &env); err != nil {
		return nil, &SchemaError{Code: CodeMalformedPage, Message: err.Error(), Page: index, Record: -1}
	}
	d := bytes.TrimSpace(env.Data)
	if len(d) == 0 || bytes.Equal(d, []byte("null")) {
		return nil, &SchemaError{Code: CodeMalformedPage, Message: "missing data array", Page: index, Record: -1, Field: "data"}
	}
	var items []json.RawMessage
	if err := json.Unmarshal(d, &items); err != nil {
		return nil, &SchemaError{Code: CodeMalformedPage, Message: "data is not an array", Page: index, Record: -1, Field: "data"}
	}

	page := &RawPage{Index: index, Items: items}
	if env.Paging != nil {
		page.Previous = env.Paging.Previous
		page.Next = env.Paging.Next
		if env.Paging.Next != "" {
			page.NextCursor = env.Paging.Cursors.After
		}
		page.Since, page.Until = windowFromURL(env.Paging.Previous)
	}
	return page, nil
}

// windowFromURL reads the since/until unix-second parameters of a paging URL.
func windowFromURL(raw string) (since, until *time.Time) {
	if raw == "" {
		return nil, nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, nil
	}
	q := u.Query()
	return parseUnix(q.Get("since")), parseUnix(q.Get("until"))
}

func parseUnix(s string) *time.Time {
	if s == "" {
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		return nil
	}
	t := time.Unix(n, 0).UTC()
	return &t
}

// parseTimestamp accepts the Graph API layout and RFC 3339.
func parseTimestamp(s string) (time.Time, error) {
	if t, err := time.Parse(threadsTimeLayout, s); err == nil {
		return t.UTC(), nil
	}
	t, err := time.Parse(time.RFC3339, s)
	if err != nil {
		return time.Time{}, fmt.Errorf("unrecognized timestamp %q", s)
	}
	return t.UTC(), nil
}

// coerceNumber converts a decoded JSON value to float64. Numbers and numeric
// strings are accepted; everything else, including null, is rejected.
func coerceNumber(raw json.RawMessage) (float64, error) {
	var v any
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	if err := dec.Decode(&v); err != nil {
		return 0, fmt.Errorf("undecodable value: %w", err)
	}
	switch n := v.(type) {
	case json.Number:
		return n.Float64()
	case string:
		f, err := strconv.ParseFloat(strings.TrimSpace(n), 64)
		if err != nil || math.IsNaN(f) || math.IsInf(f, 0) {
			return 0, fmt.Errorf("non-numeric string %q", n)
		}
		return f, nil
	case nil:
		return 0, fmt.Errorf("null value")
	default:
		return 0, fmt.Errorf("non-numeric %T value", v)
	}
}
