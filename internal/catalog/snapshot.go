// Package catalog provides instrument identity sources: a read-only local
// snapshot and the remote Investing.com search and instrument endpoints.
package catalog

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/ounols/jekyll-news/internal/domain"
	"github.com/ounols/jekyll-news/internal/logger"
)

// Snapshot is an immutable symbol to instrument map loaded once per run.
type Snapshot struct {
	records map[string]domain.InstrumentRecord
}

// NewSnapshot builds a Snapshot from records keyed by SYM or EXCH:SYM.
func NewSnapshot(records map[string]domain.InstrumentRecord) *Snapshot {
	s := &Snapshot{records: make(map[string]domain.InstrumentRecord, len(records))}
	for key, rec := range records {
		s.add(key, rec)
	}
	return s
}

func (s *Snapshot) add(key string, rec domain.InstrumentRecord) {
	key = strings.ToUpper(strings.TrimSpace(key))
	if key == "" || rec.InstrumentID == "" {
		return
	}
	if rec.Symbol == "" {
		rec.Symbol = key
		if exch, sym, ok := strings.Cut(key, ":"); ok {
			rec.Symbol = sym
			if rec.Exchange == "" {
				rec.Exchange = exch
			}
		}
	}
	s.records[key] = rec
}

// Lookup returns the record stored under key. A nil Snapshot is empty.
func (s *Snapshot) Lookup(key string) (domain.InstrumentRecord, bool) {
	if s == nil {
		return domain.InstrumentRecord{}, false
	}
	rec, ok := s.records[strings.ToUpper(key)]
	return rec, ok
}

// Len returns the number of entries.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.records)
}

// ErrMalformedSnapshot is returned for documents that are not a JSON object.
var ErrMalformedSnapshot = errors.New("malformed ticker snapshot")

// ParseSnapshot reads {"tickers": {SYM: entry}} where an entry is an id
// (string or number) or an object with instrument_id or id. A document
// without the "tickers" wrapper is read as the map itself.
func ParseSnapshot(r io.Reader) (*Snapshot, error) {
	dec := json.NewDecoder(r)
	dec.UseNumber()

	var doc map[string]json.RawMessage
	if err := dec.Decode(&doc); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrMalformedSnapshot, err)
	}

	entries := doc
	if raw, ok := doc["tickers"]; ok {
		entries = nil
		if err := decodeNumbers(raw, &entries); err != nil {
			return nil, fmt.Errorf("%w: tickers: %w", ErrMalformedSnapshot, err)
		}
	}

	s := &Snapshot{records: make(map[string]domain.InstrumentRecord, len(entries))}
	for key, raw := range entries {
		var value any
		if err := decodeNumbers(raw, &value); err != nil {
			continue
		}
		s.add(key, recordFrom(value))
	}
	return s, nil
}

// LoadSnapshot reads the snapshot at path. Any failure yields an empty
// snapshot and a warning, so linking degrades to remote search only.
func LoadSnapshot(path string, log logger.Logger) *Snapshot {
	empty := &Snapshot{records: map[string]domain.InstrumentRecord{}}
	if path == "" {
		return empty
	}

	f, err := os.Open(path)
	if err != nil {
		log.Warn("Ticker cache unavailable, continuing without it",
			logger.String("path", path),
			logger.Error(err),
		)
		return empty
	}
	defer f.Close()

	s, err := ParseSnapshot(f)
	if err != nil {
		log.Warn("Ticker cache unreadable, continuing without it",
			logger.String("path", path),
			logger.Error(err),
		)
		return empty
	}

	log.Info("Loaded ticker cache", logger.String("path", path), logger.Int("entries", s.Len()))
	return s
}

func decodeNumbers(raw json.RawMessage, v any) error {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	return dec.Decode(v)
}

func recordFrom(value any) domain.InstrumentRecord {
	switch v := value.(type) {
	case map[string]any:
		id := idString(v["instrument_id"])
		if id == "" {
			id = idString(v["id"])
		}
		return domain.InstrumentRecord{
			Symbol:       idString(v["symbol"]),
			InstrumentID: id,
			ExchangeID:   idString(v["exchange_id"]),
			Exchange:     idString(v["exchange"]),
			Name:         idString(v["name"]),
		}
	default:
		return domain.InstrumentRecord{InstrumentID: idString(v)}
	}
}

// flexID decodes an identifier sent either as a JSON string or number.
type flexID string

func (f *flexID) UnmarshalJSON(b []byte) error {
	var v any
	if err := decodeNumbers(b, &v); err != nil {
		return err
	}
	*f = flexID(idString(v))
	return nil
}

// idString renders JSON scalars that carry identifiers.
func idString(v any) string {
	switch x := v.(type) {
	case string:
		return strings.TrimSpace(x)
	case json.Number:
		return x.String()
	case float64:
		return strconv.FormatFloat(x, 'f', -1, 64)
	default:
		return ""
	}
}
