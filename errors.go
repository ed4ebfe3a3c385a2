package threads

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Error codes carried by the error types below. Remote errors carry the
// numeric Graph API code instead when one is present.
const (
	CodeMissingCode       = "MISSING_CODE"
	CodeMissingEnv        = "MISSING_ENV"
	CodeMissingToken      = "MISSING_TOKEN"
	CodeTokenExpired      = "TOKEN_EXPIRED"
	CodeTokenExchange     = "TOKEN_EXCHANGE_FAILED"
	CodeLongTokenExchange = "LONG_TOKEN_EXCHANGE_FAILED"
	CodeRequestFailed     = "REQUEST_FAILED"
	CodeHTTPStatus        = "HTTP_STATUS"
	CodeCursorLoop        = "CURSOR_LOOP"
	CodeInvalidInput      = "INVALID_INPUT"
	CodeMalformedPage     = "MALFORMED_PAGE"
	CodeMalformedRecord   = "MALFORMED_RECORD"
	CodeMissingField      = "MISSING_FIELD"
	CodeMissingValue      = "MISSING_VALUE"
	CodeNonNumericValue   = "NON_NUMERIC_VALUE"
	CodeInvalidTimestamp  = "INVALID_TIMESTAMP"
)

// ErrDone is returned by Paginator.Next once the sequence is exhausted or closed.
var ErrDone = errors.New("threads: no more pages")

// AuthError reports a rejected or impossible token exchange.
type AuthError struct {
	Code       string
	Message    string
	StatusCode int
	Err        error
}

func (e *AuthError) Error() string {
	msg := fmt.Sprintf("auth error %s: %s", e.Code, e.Message)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *AuthError) Unwrap() error { return e.Err }

// FetchError reports a transport failure or a non-2xx response while
// fetching a page. Pages yielded before it remain valid.
type FetchError struct {
	Code       string
	Message    string
	Page       int
	StatusCode int
	URL        string
	Err        error
}

func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch error %s on page %d: %s", e.Code, e.Page, e.Message)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *FetchError) Unwrap() error { return e.Err }

// SchemaError reports a payload that does not have the expected shape.
// Record is the index within the page, or -1 for page-level problems.
type SchemaError struct {
	Code    string
	Message string
	Page    int
	Record  int
	Field   string
}

func (e *SchemaError) Error() string {
	loc := fmt.Sprintf("page %d", e.Page)
	if e.Record >= 0 {
		loc += fmt.Sprintf(" record %d", e.Record)
	}
	if e.Field != "" {
		loc += " field " + e.Field
	}
	return fmt.Sprintf("schema error %s at %s: %s", e.Code, loc, e.Message)
}

// InputError reports an invalid argument, e.g. an unsupported metric name.
type InputError struct {
	Code    string
	Message string
}

func (e *InputError) Error() string {
	return fmt.Sprintf("input error %s: %s", e.Code, e.Message)
}

// errorClass categorizes Graph API error responses.
type errorClass int

const (
	errNone        errorClass = iota
	errAuthExpired            // 190: invalid or expired access token
	errRateLimited            // 4, 17, 32, 613: throttled
	errPermission             // 10, 200-299: missing permission
	errParameter              // 100: invalid parameter
	errInternal               // 1, 2: transient server error
	errOther
)

func (c errorClass) String() string {
	switch c {
	case errAuthExpired:
		return "auth_expired"
	case errRateLimited:
		return "rate_limited"
	case errPermission:
		return "permission"
	case errParameter:
		return "parameter"
	case errInternal:
		return "internal"
	case errOther:
		return "other"
	}
	return "none"
}

// graphError is the error object of a Graph API response body.
type graphError struct {
	Message   string `json:"message"`
	Type      string `json:"type"`
	Code      int    `json:"code"`
	Subcode   int    `json:"error_subcode"`
	FBTraceID string `json:"fbtrace_id"`
}

// parseGraphError extracts the error object from a response body.
// Returns nil when the body holds no error object.
func parseGraphError(body []byte) *graphError {
	var raw struct {
		Error json.RawMessage `json:"error"`
	}
	if json.Unmarshal(body, &raw) != nil || len(raw.Error) == 0 {
		return nil
	}
	var ge graphError
	if json.Unmarshal(raw.Error, &ge) != nil {
		// OAuth endpoints sometimes send "error" as a bare string.
		var s string
		if json.Unmarshal(raw.Error, &s) != nil || s == "" {
			return nil
		}
		return &graphError{Message: s}
	}
	if ge.Message == "" && ge.Code == 0 {
		return nil
	}
	return &ge
}

// code returns the remote error code as a string, or fallback when absent.
func (ge *graphError) code(fallback string) string {
	if ge == nil || ge.Code == 0 {
		return fallback
	}
	return strconv.Itoa(ge.Code)
}

// classifyError inspects a response body for known Graph API error codes.
func classifyError(body []byte) errorClass {
	ge := parseGraphError(body)
	if ge == nil {
		return errNone
	}
	switch {
	case ge.Code == 190:
		return errAuthExpired
	case ge.Code == 4 || ge.Code == 17 || ge.Code == 32 || ge.Code == 613:
		return errRateLimited
	case ge.Code == 10 || (ge.Code >= 200 && ge.Code < 300):
		return errPermission
	case ge.Code == 100:
		return errParameter
	case ge.Code == 1 || ge.Code == 2:
		return errInternal
	}
	return errOther
}

func truncateBytes(b []byte, n int) string {
	if len(b) <= n {
		return string(b)
	}
	return string(b[:n]) + "..."
}
