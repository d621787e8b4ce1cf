package io

import (
	"encoding/binary"
	stdio "io"
	"math"
	"time"

	"github.com/pkg/errors"
)

const MetadataVersion = int64(1)

// PartitionMetadata is the per-date header object describing one
// partition: record count, time bounds, format-specific fields, and the
// override flag that switches persistence from append to full rewrite.
// A metadata object is never shared across dates.
type PartitionMetadata interface {
	Date() time.Time
	Count() int
	SetCount(count int)
	FirstTime() time.Time
	SetFirstTime(t time.Time)
	LastTime() time.Time
	SetLastTime(t time.Time)
	// PriceStep is the minimal price increment recorded with the
	// partition; format-specific, zero when the codec does not track it.
	PriceStep() float64
	SetPriceStep(step float64)
	// Override reports whether the next persist replaces the partition
	// wholesale instead of appending after the existing payload.
	Override() bool
	SetOverride(override bool)

	Read(r stdio.Reader) error
	Write(w stdio.Writer) error
}

// MetadataFields is the common state behind PartitionMetadata. Codecs
// embed it and supply their own Read/Write for the header encoding.
type MetadataFields struct {
	PartitionDate time.Time
	RecordCount   int
	First         time.Time
	Last          time.Time
	Step          float64
	FullRewrite   bool
}

func (m *MetadataFields) Date() time.Time          { return m.PartitionDate }
func (m *MetadataFields) Count() int               { return m.RecordCount }
func (m *MetadataFields) SetCount(count int)       { m.RecordCount = count }
func (m *MetadataFields) FirstTime() time.Time     { return m.First }
func (m *MetadataFields) SetFirstTime(t time.Time) { m.First = t }
func (m *MetadataFields) LastTime() time.Time      { return m.Last }
func (m *MetadataFields) SetLastTime(t time.Time)  { m.Last = t }
func (m *MetadataFields) PriceStep() float64       { return m.Step }
func (m *MetadataFields) SetPriceStep(step float64) {
	m.Step = step
}
func (m *MetadataFields) Override() bool            { return m.FullRewrite }
func (m *MetadataFields) SetOverride(override bool) { m.FullRewrite = override }

// binaryHeader is the fixed little-endian header layout shared by the
// binary codec family.
type binaryHeader struct {
	Version   int64
	Count     int64
	FirstNano int64
	LastNano  int64
	StepBits  uint64
	Override  uint8
	_         [7]byte
}

// BinaryHeaderSize is the on-disk size of the fixed binary header.
const BinaryHeaderSize = 48

// ReadBinary decodes the fixed binary header form into m.
func (m *MetadataFields) ReadBinary(r stdio.Reader) error {
	var hdr binaryHeader
	if err := binary.Read(r, binary.LittleEndian, &hdr); err != nil {
		return errors.Wrap(err, "read partition header")
	}
	if hdr.Version != MetadataVersion {
		return errors.Errorf("unsupported partition header version %d", hdr.Version)
	}
	m.RecordCount = int(hdr.Count)
	m.First = fromUnixNano(hdr.FirstNano)
	m.Last = fromUnixNano(hdr.LastNano)
	m.Step = math.Float64frombits(hdr.StepBits)
	m.FullRewrite = hdr.Override != 0
	return nil
}

// WriteBinary encodes m in the fixed binary header form.
func (m *MetadataFields) WriteBinary(w stdio.Writer) error {
	hdr := binaryHeader{
		Version:   MetadataVersion,
		Count:     int64(m.RecordCount),
		FirstNano: toUnixNano(m.First),
		LastNano:  toUnixNano(m.Last),
		StepBits:  math.Float64bits(m.Step),
	}
	if m.FullRewrite {
		hdr.Override = 1
	}
	if err := binary.Write(w, binary.LittleEndian, &hdr); err != nil {
		return errors.Wrap(err, "write partition header")
	}
	return nil
}

func toUnixNano(t time.Time) int64 {
	if t.IsZero() {
		return 0
	}
	return t.UnixNano()
}

func fromUnixNano(nanos int64) time.Time {
	if nanos == 0 {
		return time.Time{}
	}
	return time.Unix(0, nanos).UTC()
}
