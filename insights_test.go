package threads

import (
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/anatolykoptev/go-threads/table"
)

func rawPage(t *testing.T, index int, body string) *RawPage {
	t.Helper()
	p, err := parsePage([]byte(body), index)
	require.NoError(t, err)
	return p
}

func TestNormalizeInsights_Breakdown(t *testing.T) {
	page := rawPage(t, 0, `{"data":[{
		"name": "follower_demographics",
		"period": "lifetime",
		"title": "Follower demographics",
		"id": "123/insights/follower_demographics/lifetime",
		"total_value": {"breakdowns": [{
			"dimension_keys": ["country"],
			"results": [
				{"dimension_values": ["US"], "value": 10},
				{"dimension_values": ["BR"], "value": 4}
			]
		}]}
	}]}`)

	it, err := NormalizeInsights([]*RawPage{page}, "123", NormalizeOptions{})
	require.NoError(t, err)
	require.Len(t, it.Observations, 2)
	assert.Empty(t, it.Errors)

	us := it.Observations[0]
	assert.Equal(t, KindBreakdown, us.Kind)
	assert.Equal(t, &Breakdown{Key: "country", Value: "US"}, us.Breakdown)
	assert.Equal(t, 10.0, us.Value)
	assert.Nil(t, us.Timestamp)

	tb := it.Table
	assert.Equal(t, 2, tb.Len())
	assert.Equal(t, table.Of("BR"), tb.Cell(1, "breakdown_value"))
	assert.Equal(t, table.Of(4.0), tb.Cell(1, "value"))
	assert.Equal(t, table.Missing, tb.Cell(0, "end_time"))
	assert.NotContains(t, tb.Columns(), "description")
}

func TestNormalizeInsights_SeriesAndTotal(t *testing.T) {
	page := rawPage(t, 0, `{
		"data": [
			{"name": "views", "period": "day", "values": [
				{"value": 5, "end_time": "2024-06-01T07:00:00+0000"},
				{"value": "6", "end_time": "2024-06-02T07:00:00+0000"}
			]},
			{"name": "likes", "period": "day", "total_value": {"value": 0}}
		],
		"paging": {"previous": "https://graph.threads.net/me/threads_insights?since=1717200000&until=1717459200"}
	}`)

	it, err := NormalizeInsights([]*RawPage{page}, "me", NormalizeOptions{})
	require.NoError(t, err)
	require.Len(t, it.Observations, 3)

	assert.Equal(t, KindSeries, it.Observations[1].Kind)
	assert.Equal(t, 6.0, it.Observations[1].Value)
	assert.Equal(t, time.Date(2024, 6, 2, 7, 0, 0, 0, time.UTC), *it.Observations[1].Timestamp)

	likes := it.Observations[2]
	assert.Equal(t, KindTotal, likes.Kind)
	assert.Nil(t, likes.Breakdown)
	assert.Equal(t, 0.0, likes.Value, "zero is a value, not missing")
	require.NotNil(t, likes.Timestamp, "falls back to the page window end")
	assert.Equal(t, time.Unix(1717459200, 0).UTC(), *likes.Timestamp)

	assert.Equal(t, table.Of(0.0), it.Table.Cell(2, "value"))
	assert.Equal(t, table.Missing, it.Table.Cell(2, "breakdown_key"))
}

func TestNormalizeInsights_DuplicatesRetained(t *testing.T) {
	body := `{"data":[{"name":"likes","values":[{"value":3,"end_time":"2024-06-01T07:00:00+0000"}]}]}`
	pages := []*RawPage{rawPage(t, 0, body), rawPage(t, 1, body)}

	it, err := NormalizeInsights(pages, "me", NormalizeOptions{})
	require.NoError(t, err)
	assert.Len(t, it.Observations, 2)
	assert.Equal(t, 2, it.Table.Len())
}

func TestNormalizeInsights_Deterministic(t *testing.T) {
	pages := []*RawPage{rawPage(t, 0, `{"data":[
		{"name":"views","values":[{"value":1},{"value":2}]},
		{"name":"follower_demographics","total_value":{"breakdowns":[{"dimension_keys":["age"],"results":[{"dimension_values":["18-24"],"value":7}]}]}}
	]}`)}

	a, err := NormalizeInsights(pages, "me", NormalizeOptions{})
	require.NoError(t, err)
	b, err := NormalizeInsights(pages, "me", NormalizeOptions{})
	require.NoError(t, err)
	assert.Equal(t, a.Table.Records(), b.Table.Records())
	assert.Equal(t, a.Observations, b.Observations)
}

func TestNormalizeInsights_InvalidObservations(t *testing.T) {
	page := rawPage(t, 2, `{"data":[
		{"name":"views","values":[{"value":1},{"value":"lots"},{"value":null}]},
		{"period":"day","values":[{"value":1}]},
		{"name":"quotes"},
		{"name":"likes","values":[{"value":1,"end_time":"not a time"}]},
		"oops"
	]}`)

	it, err := NormalizeInsights([]*RawPage{page}, "me", NormalizeOptions{})
	require.NoError(t, err)
	require.Len(t, it.Observations, 1)
	assert.Equal(t, 1.0, it.Observations[0].Value)

	codes := make([]string, len(it.Errors))
	for i, e := range it.Errors {
		codes[i] = e.Code
		assert.Equal(t, 2, e.Page)
	}
	assert.Equal(t, []string{
		CodeNonNumericValue,
		CodeNonNumericValue,
		CodeMissingField,
		CodeMissingValue,
		CodeInvalidTimestamp,
		CodeMalformedRecord,
	}, codes)
	assert.Equal(t, "values[1].value", it.Errors[0].Field)
	assert.Equal(t, 4, it.Errors[5].Record)
}

func TestNormalizeInsights_Strict(t *testing.T) {
	page := rawPage(t, 0, `{"data":[{"name":"views","values":[{"value":1},{"value":"x"}]}]}`)

	it, err := NormalizeInsights([]*RawPage{page}, "me", NormalizeOptions{Strict: true})
	assert.Nil(t, it)
	var se *SchemaError
	require.ErrorAs(t, err, &se)
	assert.Equal(t, CodeNonNumericValue, se.Code)
}

func TestNormalizeInsights_Empty(t *testing.T) {
	it, err := NormalizeInsights(nil, "me", NormalizeOptions{})
	require.NoError(t, err)
	assert.Zero(t, it.Table.Len())
	assert.Empty(t, it.Table.Columns())
}

func TestObservationValue_Absent(t *testing.T) {
	_, se := observationValue(json.RawMessage(nil))
	require.NotNil(t, se)
	assert.Equal(t, CodeMissingValue, se.Code)
}

func TestNormalizeInsights_ObservationsDoNotShareTimes(t *testing.T) {
	page := rawPage(t, 0, `{
		"data": [{"name": "views", "total_value": {"value": 1}}, {"name": "likes", "total_value": {"value": 2}}],
		"paging": {"previous": "https://graph.threads.net/me/threads_insights?since=1717200000&until=1717286400"}
	}`)
	it, err := NormalizeInsights([]*RawPage{page}, "me", NormalizeOptions{})
	require.NoError(t, err)
	require.Len(t, it.Observations, 2)
	want := time.Unix(1717286400, 0).UTC()

	*it.Observations[0].Until = time.Time{}
	*it.Observations[0].Timestamp = time.Time{}
	assert.Equal(t, want, *it.Observations[1].Until)
	assert.Equal(t, want, *it.Observations[1].Timestamp)
	assert.Equal(t, want, *page.Until)
}
