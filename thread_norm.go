package threads

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"slices"
	"strconv"
	"strings"

	"github.com/anatolykoptev/go-threads/table"
)

// ThreadTable is the result of NormalizeThreads.
type ThreadTable struct {
	Table   *table.Table
	Records []ThreadRecord
	// Errors lists the records that were dropped, in encounter order.
	Errors []*SchemaError
	// Excluded lists the dotted paths of array fields left out of the
	// table, in first-seen order.
	Excluded []string
	// Filtered counts valid records outside the time window.
	Filtered int
	// Err is set by fetchers when pagination failed after some pages were
	// fetched. The table holds those pages only.
	Err error
}

// NormalizeThreads flattens thread pages into one row per thread.
//
// Nested objects become dotted columns (owner.id). Arrays cannot be
// represented in a flat row, so they are left out and their paths listed in
// Excluded. Nulls are treated as absent. Every record needs an id and a
// parseable timestamp; records without them are dropped (or returned as the
// error in strict mode). Records outside window are filtered out. Order is
// preserved.
func NormalizeThreads(pages []*RawPage, window TimeWindow, opts NormalizeOptions) (*ThreadTable, error) {
	out := &ThreadTable{}
	var rows []table.Row
	for _, page := range pages {
		for i, item := range page.Items {
			rec, excluded, serr := parseThreadRecord(item, page.Index, i)
			if serr != nil {
				if opts.Strict {
					return nil, serr
				}
				slog.Debug("thread record dropped", slog.Any("error", serr))
				out.Errors = append(out.Errors, serr)
				continue
			}
			for _, p := range excluded {
				if !slices.Contains(out.Excluded, p) {
					out.Excluded = append(out.Excluded, p)
				}
			}
			if !window.Contains(rec.Timestamp) {
				out.Filtered++
				continue
			}
			out.Records = append(out.Records, rec)
			rows = append(rows, threadRow(rec))
		}
	}
	out.Table = table.Build(rows)

	if len(out.Errors) > 0 {
		slog.Warn("thread records dropped",
			slog.Int("kept", len(out.Records)),
			slog.Int("dropped", len(out.Errors)))
	}
	return out, nil
}

func parseThreadRecord(item json.RawMessage, page, idx int) (ThreadRecord, []string, *SchemaError) {
	schemaErr := func(code, field, msg string) *SchemaError {
		return &SchemaError{Code: code, Message: msg, Page: page, Record: idx, Field: field}
	}

	attrs, excluded, err := flattenObject(item)
	if err != nil {
		return ThreadRecord{}, nil, schemaErr(CodeMalformedRecord, "", err.Error())
	}

	rec := ThreadRecord{Attributes: attrs}
	var rawTS any
	for _, a := range attrs {
		switch a.Key {
		case "id":
			rec.ID = scalarString(a.Value)
		case "text":
			if s, ok := a.Value.(string); ok {
				rec.Text = &s
			}
		case "timestamp":
			rawTS = a.Value
		}
	}
	if rec.ID == "" {
		return ThreadRecord{}, nil, schemaErr(CodeMissingField, "id", "thread has no id")
	}
	if rawTS == nil {
		return ThreadRecord{}, nil, schemaErr(CodeMissingField, "timestamp", "thread has no timestamp")
	}
	s, ok := rawTS.(string)
	if !ok {
		return ThreadRecord{}, nil, schemaErr(CodeInvalidTimestamp, "timestamp", fmt.Sprintf("timestamp is %T, not a string", rawTS))
	}
	ts, perr := parseTimestamp(s)
	if perr != nil {
		return ThreadRecord{}, nil, schemaErr(CodeInvalidTimestamp, "timestamp", perr.Error())
	}
	rec.Timestamp = ts
	return rec, excluded, nil
}

// threadRow lays out a thread. The timestamp column carries the parsed time.
func threadRow(rec ThreadRecord) table.Row {
	row := make(table.Row, 0, len(rec.Attributes))
	for _, a := range rec.Attributes {
		v := a.Value
		if a.Key == "timestamp" {
			v = rec.Timestamp
		}
		row = append(row, table.Field{Name: a.Key, Value: v})
	}
	return row
}

func scalarString(v any) string {
	switch s := v.(type) {
	case string:
		return s
	case int64:
		return strconv.FormatInt(s, 10)
	case float64:
		return strconv.FormatFloat(s, 'f', -1, 64)
	}
	return ""
}

// flattenObject walks a JSON object in document order and returns its
// scalar leaves keyed by dotted path. Array paths are returned separately.
func flattenObject(raw json.RawMessage) ([]Attribute, []string, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, nil, fmt.Errorf("undecodable record: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, nil, errors.New("record is not a JSON object")
	}

	f := &flattener{dec: dec}
	if err := f.object(""); err != nil {
		return nil, nil, err
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, nil, errors.New("trailing data after record")
	}
	return f.attrs, f.excluded, nil
}

type flattener struct {
	dec      *json.Decoder
	attrs    []Attribute
	excluded []string
}

// object consumes the members of an object whose '{' was already read.
func (f *flattener) object(prefix string) error {
	for f.dec.More() {
		tok, err := f.dec.Token()
		if err != nil {
			return err
		}
		key, ok := tok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v", tok)
		}
		path := key
		if prefix != "" {
			path = prefix + "." + key
		}
		if err := f.value(path); err != nil {
			return err
		}
	}
	_, err := f.dec.Token() // closing '}'
	return err
}

func (f *flattener) value(path string) error {
	tok, err := f.dec.Token()
	if err != nil {
		return err
	}
	switch v := tok.(type) {
	case json.Delim:
		if v == '{' {
			return f.object(path)
		}
		f.excluded = append(f.excluded, path)
		return f.skipArray()
	case nil:
		return nil
	case json.Number:
		f.set(path, numberValue(v))
	default:
		f.set(path, v)
	}
	return nil
}

// numberValue keeps integers exact: int64 when they fit, their digits as a
// string when they do not. Fractional numbers become float64.
func numberValue(n json.Number) any {
	if i, err := n.Int64(); err == nil {
		return i
	}
	if !strings.ContainsAny(n.String(), ".eE") {
		return n.String()
	}
	if x, err := n.Float64(); err == nil {
		return x
	}
	return n.String()
}

// set records a leaf. A repeated key replaces the earlier value in place.
func (f *flattener) set(path string, v any) {
	for i := range f.attrs {
		if f.attrs[i].Key == path {
			f.attrs[i].Value = v
			return
		}
	}
	f.attrs = append(f.attrs, Attribute{Key: path, Value: v})
}

// skipArray consumes the rest of an array whose '[' was already read.
func (f *flattener) skipArray() error {
	depth := 1
	for depth > 0 {
		tok, err := f.dec.Token()
		if err != nil {
			return err
		}
		if d, ok := tok.(json.Delim); ok {
			switch d {
			case '[', '{':
				depth++
			case ']', '}':
				depth--
			}
		}
	}
	return nil
}
