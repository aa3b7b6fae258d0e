package feed

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"
)

// Positions of the fields read from each upstream record. Everything else
// in the array is carried untouched in Record.Raw.
const (
	PosName      = 0
	PosPrice     = 5
	PosRAP       = 8
	PosDemand    = 17
	PosTrend     = 18
	PosProjected = 19
	PosThumbnail = 24

	// MinRecordLen is the shortest array that still holds every read position.
	MinRecordLen = PosThumbnail + 1
)

// Catalog is one parsed item table. Items keep upstream order.
type Catalog struct {
	Items     []Record
	FetchedAt time.Time
}

func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.Items)
}

// Record is a single item entry.
type Record struct {
	ID        string
	Name      string
	Price     *float64 // nil when upstream has no price
	RAP       *float64
	Demand    json.RawMessage // nil when null
	Trend     json.RawMessage // nil when null
	Projected json.RawMessage // nil when null
	Thumbnail string

	Raw []json.RawMessage
}

// IsProjected reports whether upstream flagged the item as projected.
func (r Record) IsProjected() bool { return r.Projected != nil }

func (r Record) HasDemand() bool { return r.Demand != nil }

// decodeCatalog decodes a JSON object of id -> array, keeping key order.
func decodeCatalog(data []byte) ([]Record, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return nil, parseErr("item table is not valid JSON", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil, parseErr("item table is not a JSON object", nil)
	}

	var out []Record
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, parseErr("item table is not valid JSON", err)
		}
		id, ok := tok.(string)
		if !ok {
			return nil, parseErr("item table key is not a string", nil)
		}
		var raw json.RawMessage
		if err := dec.Decode(&raw); err != nil {
			return nil, &ParseError{Reason: "invalid record", ItemID: id, Position: -1, Err: err}
		}
		rec, err := decodeRecord(id, raw)
		if err != nil {
			return nil, err
		}
		out = append(out, rec)
	}
	if _, err := dec.Token(); err != nil {
		return nil, parseErr("item table is not valid JSON", err)
	}
	if _, err := dec.Token(); !errors.Is(err, io.EOF) {
		return nil, parseErr("trailing data after item table", err)
	}
	return out, nil
}

func decodeRecord(id string, raw json.RawMessage) (Record, error) {
	var fields []json.RawMessage
	if err := json.Unmarshal(raw, &fields); err != nil {
		return Record{}, &ParseError{Reason: "record is not an array", ItemID: id, Position: -1, Err: err}
	}
	if len(fields) < MinRecordLen {
		return Record{}, &ParseError{
			Reason:   fmt.Sprintf("record has %d fields, want at least %d", len(fields), MinRecordLen),
			ItemID:   id,
			Position: len(fields),
		}
	}

	rec := Record{ID: id, Raw: fields}

	if err := json.Unmarshal(fields[PosName], &rec.Name); err != nil {
		return Record{}, fieldErr(id, PosName, "name is not a string", err)
	}
	var err error
	if rec.Price, err = optNumber(fields[PosPrice]); err != nil {
		return Record{}, fieldErr(id, PosPrice, "price is not a number", err)
	}
	if rec.RAP, err = optNumber(fields[PosRAP]); err != nil {
		return Record{}, fieldErr(id, PosRAP, "rap is not a number", err)
	}
	rec.Demand = optRaw(fields[PosDemand])
	rec.Trend = optRaw(fields[PosTrend])
	rec.Projected = optRaw(fields[PosProjected])

	if v := optRaw(fields[PosThumbnail]); v != nil {
		if err := json.Unmarshal(v, &rec.Thumbnail); err != nil {
			return Record{}, fieldErr(id, PosThumbnail, "thumbnail is not a string", err)
		}
	}
	return rec, nil
}

func fieldErr(id string, pos int, reason string, err error) *ParseError {
	return &ParseError{Reason: reason, ItemID: id, Position: pos, Err: err}
}

func isNull(v json.RawMessage) bool {
	return len(v) == 0 || bytes.Equal(bytes.TrimSpace(v), []byte("null"))
}

func optRaw(v json.RawMessage) json.RawMessage {
	if isNull(v) {
		return nil
	}
	return v
}

func optNumber(v json.RawMessage) (*float64, error) {
	if isNull(v) {
		return nil, nil
	}
	var f float64
	if err := json.Unmarshal(v, &f); err != nil {
		return nil, err
	}
	return &f, nil
}
