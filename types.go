package threads

import (
	"encoding/json"
	"time"
)

// TokenKind distinguishes short-lived from long-lived access tokens.
type TokenKind string

const (
	ShortLived TokenKind = "short_lived"
	LongLived  TokenKind = "long_lived"
)

// Token is an access token issued by the Threads API. It is never refreshed
// automatically.
type Token struct {
	Value     string    `json:"access_token"`
	Kind      TokenKind `json:"kind"`
	TokenType string    `json:"token_type,omitempty"`
	UserID    string    `json:"user_id,omitempty"`
	ExpiresAt time.Time `json:"expires_at,omitzero"` // zero when the server sent no expiry
}

// Expired reports whether the token has a known expiry at or before now.
func (t *Token) Expired(now time.Time) bool {
	return !t.ExpiresAt.IsZero() && !now.Before(t.ExpiresAt)
}

// RawPage is one page of a paginated collection, as returned by the server.
type RawPage struct {
	Index      int
	Items      []json.RawMessage
	NextCursor string // empty when this is the last page
	Previous   string // paging.previous URL, if any
	Next       string // paging.next URL, if any

	// Since and Until are the reporting window encoded in the paging URLs.
	Since *time.Time
	Until *time.Time
}

// ObservationKind tags the payload shape an observation came from.
type ObservationKind string

const (
	KindSeries    ObservationKind = "series"    // one entry of values[]
	KindTotal     ObservationKind = "total"     // total_value.value
	KindBreakdown ObservationKind = "breakdown" // one result of total_value.breakdowns[]
)

// Breakdown is a dimensional split of a metric value, e.g. country=US.
type Breakdown struct {
	Key   string
	Value string
}

// MetricObservation is one normalized insight value. A nil Breakdown means
// an unbroken-down total or series point.
type MetricObservation struct {
	EntityID    string
	RecordID    string
	Metric      string
	Period      string
	Title       string
	Description string
	Kind        ObservationKind
	Breakdown   *Breakdown
	Timestamp   *time.Time
	Since       *time.Time
	Until       *time.Time
	Value       float64
}

// clone copies o so that no pointer field is shared with the original.
func (o MetricObservation) clone() MetricObservation {
	if o.Breakdown != nil {
		b := *o.Breakdown
		o.Breakdown = &b
	}
	o.Timestamp = cloneTime(o.Timestamp)
	o.Since = cloneTime(o.Since)
	o.Until = cloneTime(o.Until)
	return o
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	c := *t
	return &c
}

// ThreadRecord is one validated thread with its flattened attributes.
type ThreadRecord struct {
	ID         string
	Text       *string
	Timestamp  time.Time
	Attributes []Attribute // flattened scalar fields in payload order
}

// Attribute is a flattened scalar field of a thread, e.g. owner.id.
type Attribute struct {
	Key   string
	Value any
}

// TimeWindow bounds thread timestamps inclusively. Nil bounds are open.
type TimeWindow struct {
	Since *time.Time
	Until *time.Time
}

// Contains reports whether ts lies within the window.
func (w TimeWindow) Contains(ts time.Time) bool {
	if w.Since != nil && ts.Before(*w.Since) {
		return false
	}
	if w.Until != nil && ts.After(*w.Until) {
		return false
	}
	return true
}
