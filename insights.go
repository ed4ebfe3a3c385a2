package threads

import (
	"encoding/json"
	"log/slog"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go-threads/table"
)

// NormalizeOptions controls how normalizers treat malformed records.
type NormalizeOptions struct {
	// Strict makes normalization stop at the first SchemaError instead of
	// skipping the offending record.
	Strict bool
}

// InsightTable is the result of NormalizeInsights.
type InsightTable struct {
	Table        *table.Table
	Observations []MetricObservation
	// Errors lists the observations that were dropped, in encounter order.
	Errors []*SchemaError
	// Err is set by fetchers when pagination failed after some pages were
	// fetched. The table holds those pages only.
	Err error
}

type insightRecord struct {
	Name        string         `json:"name"`
	Period      string         `json:"period"`
	Title       string         `json:"title"`
	Description string         `json:"description"`
	ID          string         `json:"id"`
	Values      []insightValue `json:"values"`
	TotalValue  *struct {
		Value      json.RawMessage `json:"value"`
		Breakdowns []struct {
			DimensionKeys []string `json:"dimension_keys"`
			Results       []struct {
				DimensionValues []string        `json:"dimension_values"`
				Value           json.RawMessage `json:"value"`
			} `json:"results"`
		} `json:"breakdowns"`
	} `json:"total_value"`
}

type insightValue struct {
	Value   json.RawMessage `json:"value"`
	EndTime string          `json:"end_time"`
}

// NormalizeInsights flattens insight pages into one row per observation.
//
// A metric record with total_value.breakdowns yields one observation per
// breakdown result; otherwise one per entry of values; otherwise exactly one
// from total_value.value. An observation's timestamp is its own end_time,
// else the page's reporting window end, else absent.
//
// Observations are kept in page order, then payload order, and are never
// deduplicated: the same tuple arriving on two overlapping pages yields two
// rows. Aggregation is left to the caller.
//
// Malformed observations are dropped and listed in Errors unless
// opts.Strict is set, in which case the first one is returned as the error.
func NormalizeInsights(pages []*RawPage, entityID string, opts NormalizeOptions) (*InsightTable, error) {
	out := &InsightTable{}
	for _, page := range pages {
		for i, item := range page.Items {
			obs, errs := parseInsightRecord(item, page, i, entityID)
			if len(errs) > 0 {
				if opts.Strict {
					return nil, errs[0]
				}
				for _, e := range errs {
					slog.Debug("insight observation dropped", slog.Any("error", e))
				}
				out.Errors = append(out.Errors, errs...)
			}
			out.Observations = append(out.Observations, obs...)
		}
	}

	rows := make([]table.Row, len(out.Observations))
	for i, o := range out.Observations {
		rows[i] = observationRow(o)
	}
	out.Table = table.Build(rows)

	if len(out.Errors) > 0 {
		slog.Warn("insight observations dropped",
			slog.String("entity", entityID),
			slog.Int("kept", len(out.Observations)),
			slog.Int("dropped", len(out.Errors)))
	}
	return out, nil
}

// parseInsightRecord validates one metric record. It returns every valid
// observation plus one SchemaError per invalid observation.
func parseInsightRecord(item json.RawMessage, page *RawPage, idx int, entityID string) ([]MetricObservation, []*SchemaError) {
	schemaErr := func(code, field, msg string) *SchemaError {
		return &SchemaError{Code: code, Message: msg, Page: page.Index, Record: idx, Field: field}
	}

	var rec insightRecord
	if err := json.Unmarshal(item, &rec); err != nil {
		return nil, []*SchemaError{schemaErr(CodeMalformedRecord, "", err.Error())}
	}
	if rec.Name == "" {
		return nil, []*SchemaError{schemaErr(CodeMissingField, "name", "metric record has no name")}
	}

	base := MetricObservation{
		EntityID:    entityID,
		RecordID:    rec.ID,
		Metric:      rec.Name,
		Period:      rec.Period,
		Title:       rec.Title,
		Description: rec.Description,
		Since:       page.Since,
		Until:       page.Until,
		Timestamp:   page.Until,
	}

	var (
		obs  []MetricObservation
		errs []*SchemaError
	)

	switch {
	case rec.TotalValue != nil && len(rec.TotalValue.Breakdowns) > 0:
		for b, bd := range rec.TotalValue.Breakdowns {
			key := strings.Join(bd.DimensionKeys, ",")
			for r, res := range bd.Results {
				field := "total_value.breakdowns[" + strconv.Itoa(b) + "].results[" + strconv.Itoa(r) + "]"
				value := strings.Join(res.DimensionValues, ",")
				if key == "" || value == "" {
					errs = append(errs, schemaErr(CodeMissingField, field, "breakdown needs both dimension keys and values"))
					continue
				}
				v, err := observationValue(res.Value)
				if err != nil {
					errs = append(errs, schemaErr(err.Code, field+".value", err.Message))
					continue
				}
				o := base.clone()
				o.Kind = KindBreakdown
				o.Breakdown = &Breakdown{Key: key, Value: value}
				o.Value = v
				obs = append(obs, o)
			}
		}

	case len(rec.Values) > 0:
		for j, val := range rec.Values {
			field := "values[" + strconv.Itoa(j) + "]"
			v, err := observationValue(val.Value)
			if err != nil {
				errs = append(errs, schemaErr(err.Code, field+".value", err.Message))
				continue
			}
			o := base.clone()
			o.Kind = KindSeries
			o.Value = v
			if val.EndTime != "" {
				ts, perr := parseTimestamp(val.EndTime)
				if perr != nil {
					errs = append(errs, schemaErr(CodeInvalidTimestamp, field+".end_time", perr.Error()))
					continue
				}
				o.Timestamp = &ts
			}
			obs = append(obs, o)
		}

	case rec.TotalValue != nil && len(rec.TotalValue.Value) > 0:
		v, err := observationValue(rec.TotalValue.Value)
		if err != nil {
			errs = append(errs, schemaErr(err.Code, "total_value.value", err.Message))
			break
		}
		o := base.clone()
		o.Kind = KindTotal
		o.Value = v
		obs = append(obs, o)

	default:
		errs = append(errs, schemaErr(CodeMissingValue, "values", "metric record carries no values, total or breakdowns"))
	}
	return obs, errs
}

// observationValue coerces a raw value, distinguishing absent from invalid.
func observationValue(raw json.RawMessage) (float64, *SchemaError) {
	if len(raw) == 0 {
		return 0, &SchemaError{Code: CodeMissingValue, Message: "value is absent"}
	}
	v, err := coerceNumber(raw)
	if err != nil {
		return 0, &SchemaError{Code: CodeNonNumericValue, Message: err.Error()}
	}
	return v, nil
}

// observationRow lays out one observation. Absent optional fields are left
// out so the table marks them missing.
func observationRow(o MetricObservation) table.Row {
	row := table.Row{
		{Name: "entity_id", Value: o.EntityID},
		{Name: "metric", Value: o.Metric},
	}
	if o.Period != "" {
		row = append(row, table.Field{Name: "period", Value: o.Period})
	}
	if o.Title != "" {
		row = append(row, table.Field{Name: "title", Value: o.Title})
	}
	if o.Description != "" {
		row = append(row, table.Field{Name: "description", Value: o.Description})
	}
	if o.Breakdown != nil {
		row = append(row,
			table.Field{Name: "breakdown_key", Value: o.Breakdown.Key},
			table.Field{Name: "breakdown_value", Value: o.Breakdown.Value})
	}
	if o.Since != nil {
		row = append(row, table.Field{Name: "since", Value: *o.Since})
	}
	if o.Until != nil {
		row = append(row, table.Field{Name: "until", Value: *o.Until})
	}
	if o.Timestamp != nil {
		row = append(row, table.Field{Name: "end_time", Value: *o.Timestamp})
	}
	row = append(row, table.Field{Name: "value", Value: o.Value})
	if o.RecordID != "" {
		row = append(row, table.Field{Name: "id", Value: o.RecordID})
	}
	return row
}
