package io

import (
	"time"
)

// Record is the capability surface the engine needs from a stored record.
// The engine is agnostic to record content beyond these three projections.
type Record interface {
	// Time returns the absolute instant of the record. The zero value is
	// treated as "unset" and rejected by Save.
	Time() time.Time
	// SecurityID returns the owning instrument identity. The zero value
	// means the record carries no identity and inherits the storage's.
	SecurityID() SecurityID
	// Identity returns an opaque key used only during delete
	// reconciliation. It must be a comparable value (map-key safe).
	Identity() interface{}
}

// RecordScanner is a lazily-decoded record sequence, in the style of
// bufio.Scanner. Close must be called exactly once on every path.
type RecordScanner interface {
	// Next advances to the next record. It returns false when the
	// sequence is exhausted or decoding fails; Err disambiguates.
	Next() bool
	// Record returns the record produced by the last successful Next.
	Record() Record
	// Err returns the first decoding error, or nil on clean exhaustion.
	Err() error
	Close() error
}

// SliceScanner adapts an in-memory batch to the RecordScanner contract.
// Codecs that decode eagerly return one of these.
type SliceScanner struct {
	records []Record
	idx     int
}

func NewSliceScanner(records []Record) *SliceScanner {
	return &SliceScanner{records: records, idx: -1}
}

func (s *SliceScanner) Next() bool {
	if s.idx+1 >= len(s.records) {
		return false
	}
	s.idx++
	return true
}

func (s *SliceScanner) Record() Record {
	return s.records[s.idx]
}

func (s *SliceScanner) Err() error { return nil }

func (s *SliceScanner) Close() error { return nil }

// errScanner is a scanner that failed before producing anything.
type errScanner struct{ err error }

// NewErrScanner returns a RecordScanner that yields no records and
// reports err. Codecs use it when decoding fails before iteration.
func NewErrScanner(err error) RecordScanner {
	return &errScanner{err: err}
}

func (s *errScanner) Next() bool     { return false }
func (s *errScanner) Record() Record { return nil }
func (s *errScanner) Err() error     { return s.err }
func (s *errScanner) Close() error   { return nil }

// Drain consumes a scanner to completion, closes it, and returns the
// materialized records. Close is guaranteed even when decoding fails.
func Drain(scanner RecordScanner) (records []Record, err error) {
	defer func() {
		if cerr := scanner.Close(); cerr != nil && err == nil {
			err = cerr
		}
	}()
	for scanner.Next() {
		records = append(records, scanner.Record())
	}
	if serr := scanner.Err(); serr != nil {
		return nil, serr
	}
	return records, nil
}
