package tradecsv

import (
	"time"

	"github.com/pkg/errors"

	"github.com/quantarc/tickstore/models"
	"github.com/quantarc/tickstore/utils/io"
)

// tradeRow is the gocsv row shape for one trade. Field order defines
// the column order (no per-file header row is written).
type tradeRow struct {
	ID     string  `csv:"id"`
	Code   string  `csv:"code"`
	Board  string  `csv:"board"`
	Price  float64 `csv:"price"`
	Volume float64 `csv:"volume"`
	Time   csvTime `csv:"time"`
}

func rowFromRecord(rec io.Record) (*tradeRow, error) {
	trade, ok := rec.(*models.Trade)
	if !ok {
		return nil, errors.Errorf("tradecsv: unsupported record type %T", rec)
	}
	return &tradeRow{
		ID:     trade.ID,
		Code:   trade.Security.Code,
		Board:  trade.Security.Board,
		Price:  trade.Price,
		Volume: trade.Volume,
		Time:   csvTime{trade.Timestamp.UTC()},
	}, nil
}

func (row *tradeRow) toRecord() io.Record {
	return &models.Trade{
		ID:        row.ID,
		Security:  io.NewSecurityID(row.Code, row.Board),
		Price:     row.Price,
		Volume:    row.Volume,
		Timestamp: row.Time.Time,
	}
}

// csvTime round-trips a timestamp through RFC3339Nano for gocsv.
type csvTime struct {
	time.Time
}

func (t *csvTime) MarshalCSV() (string, error) {
	return t.UTC().Format(timeLayout), nil
}

func (t *csvTime) UnmarshalCSV(s string) error {
	parsed, err := time.Parse(timeLayout, s)
	if err != nil {
		return err
	}
	t.Time = parsed
	return nil
}
