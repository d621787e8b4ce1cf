package io

import (
	stdio "io"
	"time"
)

// Format tags a codec's serialization family. It drives the engine's
// metadata caching policy: text-format metadata is cached per date once
// read, binary-format metadata is re-read from the stream on every call.
type Format int

const (
	FormatText Format = iota
	FormatBinary
)

func (f Format) String() string {
	switch f {
	case FormatText:
		return "Text"
	case FormatBinary:
		return "Binary"
	}
	return "Unknown"
}

// Codec serializes record batches against a partition metadata object.
// The byte layout of both header and payload is owned by the codec; the
// engine only composes "header bytes followed by payload bytes".
type Codec interface {
	// CreateMetadata returns a fresh metadata object for the date,
	// count 0, with format-specific defaults filled in.
	CreateMetadata(date time.Time) PartitionMetadata
	// Serialize encodes the batch as payload bytes. It may update the
	// metadata's time bounds and format-specific fields when encoding
	// into an empty partition, but never the record count.
	Serialize(w stdio.Writer, records []Record, meta PartitionMetadata) error
	// Deserialize returns a lazy sequence over the payload.
	Deserialize(r stdio.Reader, meta PartitionMetadata) RecordScanner
	// TimePrecision is the floor applied to record instants before
	// bucketing and comparison.
	TimePrecision() time.Duration
	Format() Format
}

// PartitionStore loads, saves and deletes the raw byte stream of one
// date-named partition.
type PartitionStore interface {
	// LoadStream returns the partition's stream, or (nil, nil) when the
	// partition does not exist. Absence is never an error.
	LoadStream(date time.Time) (stdio.ReadCloser, error)
	// SaveStream replaces the partition's bytes with the reader's
	// contents.
	SaveStream(date time.Time, r stdio.Reader) error
	// Delete removes the partition. Deleting an absent partition is a
	// no-op.
	Delete(date time.Time) error
	// Dates lists the dates that currently have a partition, ascending.
	Dates() ([]time.Time, error)
}
