// Package tradebin is the binary-family trade codec: a fixed-size
// little-endian metadata header followed by a msgpack record stream.
package tradebin

import (
	stdio "io"
	"time"

	"github.com/pkg/errors"
	msgpack "github.com/vmihailenco/msgpack"

	"github.com/quantarc/tickstore/models"
	"github.com/quantarc/tickstore/utils/io"
)

// Codec serializes models.Trade batches as a msgpack stream.
type Codec struct {
	priceStep float64
}

// New creates a binary trade codec. priceStep is recorded in each new
// partition's metadata.
func New(priceStep float64) *Codec {
	return &Codec{priceStep: priceStep}
}

func (c *Codec) TimePrecision() time.Duration { return time.Millisecond }

func (c *Codec) Format() io.Format { return io.FormatBinary }

func (c *Codec) CreateMetadata(date time.Time) io.PartitionMetadata {
	return &Metadata{MetadataFields: io.MetadataFields{
		PartitionDate: date,
		Step:          c.priceStep,
	}}
}

// Serialize encodes one msgpack value per record. Records must be
// *models.Trade.
func (c *Codec) Serialize(w stdio.Writer, records []io.Record, meta io.PartitionMetadata) error {
	enc := msgpack.NewEncoder(w)
	for _, rec := range records {
		trade, ok := rec.(*models.Trade)
		if !ok {
			return errors.Errorf("tradebin: unsupported record type %T", rec)
		}
		if err := enc.Encode(rowFromTrade(trade)); err != nil {
			return errors.Wrap(err, "tradebin: encode record")
		}
	}
	return nil
}

// Deserialize returns a streaming scanner over the msgpack payload;
// records are decoded one Next at a time.
func (c *Codec) Deserialize(r stdio.Reader, meta io.PartitionMetadata) io.RecordScanner {
	return &scanner{dec: msgpack.NewDecoder(r)}
}

// Metadata is the binary-family partition header; the byte layout is
// the shared fixed header from utils/io.
type Metadata struct {
	io.MetadataFields
}

func (m *Metadata) Read(r stdio.Reader) error  { return m.ReadBinary(r) }
func (m *Metadata) Write(w stdio.Writer) error { return m.WriteBinary(w) }

type tradeRow struct {
	ID     string  `msgpack:"id"`
	Code   string  `msgpack:"c"`
	Board  string  `msgpack:"b"`
	Price  float64 `msgpack:"p"`
	Volume float64 `msgpack:"v"`
	Nanos  int64   `msgpack:"t"`
}

func rowFromTrade(trade *models.Trade) *tradeRow {
	return &tradeRow{
		ID:     trade.ID,
		Code:   trade.Security.Code,
		Board:  trade.Security.Board,
		Price:  trade.Price,
		Volume: trade.Volume,
		Nanos:  trade.Timestamp.UTC().UnixNano(),
	}
}

func (row *tradeRow) toTrade() *models.Trade {
	return &models.Trade{
		ID:        row.ID,
		Security:  io.NewSecurityID(row.Code, row.Board),
		Price:     row.Price,
		Volume:    row.Volume,
		Timestamp: time.Unix(0, row.Nanos).UTC(),
	}
}

type scanner struct {
	dec     *msgpack.Decoder
	current io.Record
	err     error
	done    bool
}

func (s *scanner) Next() bool {
	if s.done {
		return false
	}
	var row tradeRow
	if err := s.dec.Decode(&row); err != nil {
		s.done = true
		if err != stdio.EOF {
			s.err = errors.Wrap(err, "tradebin: decode record")
		}
		return false
	}
	s.current = row.toTrade()
	return true
}

func (s *scanner) Record() io.Record { return s.current }

func (s *scanner) Err() error { return s.err }

func (s *scanner) Close() error {
	s.done = true
	return nil
}
