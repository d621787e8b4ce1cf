// Package tradecsv is the text-family trade codec: a one-line CSV
// metadata header followed by one CSV row per trade.
package tradecsv

import (
	"fmt"
	stdio "io"
	"strconv"
	"strings"
	"time"

	"github.com/gocarina/gocsv"
	"github.com/pkg/errors"

	"github.com/quantarc/tickstore/utils/io"
)

const (
	headerVersion = 1
	timeLayout    = time.RFC3339Nano
)

// Codec serializes models.Trade batches as CSV.
type Codec struct {
	priceStep float64
}

// New creates a CSV trade codec. priceStep is recorded in each new
// partition's metadata.
func New(priceStep float64) *Codec {
	return &Codec{priceStep: priceStep}
}

func (c *Codec) TimePrecision() time.Duration { return time.Second }

func (c *Codec) Format() io.Format { return io.FormatText }

func (c *Codec) CreateMetadata(date time.Time) io.PartitionMetadata {
	return &Metadata{MetadataFields: io.MetadataFields{
		PartitionDate: date,
		Step:          c.priceStep,
	}}
}

// Serialize appends one CSV row per record. Records must be
// *models.Trade.
func (c *Codec) Serialize(w stdio.Writer, records []io.Record, meta io.PartitionMetadata) error {
	rows := make([]*tradeRow, 0, len(records))
	for _, rec := range records {
		row, err := rowFromRecord(rec)
		if err != nil {
			return err
		}
		rows = append(rows, row)
	}
	return errors.Wrap(gocsv.MarshalWithoutHeaders(&rows, w), "tradecsv: marshal")
}

// Deserialize parses the remaining rows eagerly and returns a
// slice-backed scanner over them.
func (c *Codec) Deserialize(r stdio.Reader, meta io.PartitionMetadata) io.RecordScanner {
	var rows []*tradeRow
	if err := gocsv.UnmarshalWithoutHeaders(r, &rows); err != nil {
		if errors.Cause(err) == gocsv.ErrEmptyCSVFile {
			return io.NewSliceScanner(nil)
		}
		return io.NewErrScanner(errors.Wrap(err, "tradecsv: unmarshal"))
	}
	records := make([]io.Record, len(rows))
	for i, row := range rows {
		records[i] = row.toRecord()
	}
	return io.NewSliceScanner(records)
}

// Metadata is the CSV-family partition header: a single comma-separated
// line terminated by '\n'.
type Metadata struct {
	io.MetadataFields
}

func (m *Metadata) Write(w stdio.Writer) error {
	override := 0
	if m.FullRewrite {
		override = 1
	}
	_, err := fmt.Fprintf(w, "%d,%d,%s,%s,%s,%d\n",
		headerVersion,
		m.RecordCount,
		formatTime(m.First),
		formatTime(m.Last),
		strconv.FormatFloat(m.Step, 'f', -1, 64),
		override)
	return errors.Wrap(err, "tradecsv: write header")
}

func (m *Metadata) Read(r stdio.Reader) error {
	line, err := readLine(r)
	if err != nil {
		return err
	}
	fields := strings.Split(line, ",")
	if len(fields) != 6 {
		return errors.Errorf("tradecsv: malformed header %q", line)
	}
	version, err := strconv.Atoi(fields[0])
	if err != nil || version != headerVersion {
		return errors.Errorf("tradecsv: unsupported header version %q", fields[0])
	}
	if m.RecordCount, err = strconv.Atoi(fields[1]); err != nil {
		return errors.Wrap(err, "tradecsv: header count")
	}
	if m.First, err = parseTime(fields[2]); err != nil {
		return errors.Wrap(err, "tradecsv: header first time")
	}
	if m.Last, err = parseTime(fields[3]); err != nil {
		return errors.Wrap(err, "tradecsv: header last time")
	}
	if m.Step, err = strconv.ParseFloat(fields[4], 64); err != nil {
		return errors.Wrap(err, "tradecsv: header price step")
	}
	m.FullRewrite = fields[5] == "1"
	return nil
}

// readLine consumes bytes up to and including '\n', one byte at a time,
// so the reader stays positioned at the payload start. Returns io.EOF
// untouched on an empty stream so callers can treat it as absence.
func readLine(r stdio.Reader) (string, error) {
	var sb strings.Builder
	buf := make([]byte, 1)
	for {
		n, err := r.Read(buf)
		if n > 0 {
			if buf[0] == '\n' {
				return sb.String(), nil
			}
			sb.WriteByte(buf[0])
		}
		if err != nil {
			if err == stdio.EOF && sb.Len() == 0 {
				return "", stdio.EOF
			}
			return "", errors.Wrap(err, "tradecsv: read header line")
		}
	}
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}
	return t.UTC().Format(timeLayout)
}

func parseTime(s string) (time.Time, error) {
	if s == "-" {
		return time.Time{}, nil
	}
	return time.Parse(timeLayout, s)
}
