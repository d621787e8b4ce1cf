// Package catalog implements the filesystem partition store: one
// directory per storage (instrument identity plus optional argument),
// one date-named file per partition.
package catalog

import (
	"bytes"
	stdio "io"
	"os"
	"path/filepath"
	"sort"
	"time"

	"github.com/klauspost/compress/snappy"
	"github.com/pkg/errors"
	try "gopkg.in/matryer/try.v1"

	"github.com/quantarc/tickstore/utils/io"
	"github.com/quantarc/tickstore/utils/log"
)

const (
	dateLayout    = "2006-01-02"
	plainExt      = ".bin"
	compressedExt = ".sz"

	dirMode  = 0o770
	fileMode = 0o660

	saveAttempts = 3
)

// PartitionDir is a filesystem-backed io.PartitionStore rooted at
// <root>/<instrument>/<arg>/. Saves go through a temp file renamed into
// place, so readers never observe a half-written partition.
type PartitionDir struct {
	dir      string
	compress bool
}

// NewPartitionDir creates (if needed) and opens the partition directory
// for one storage. When compress is set, partition bytes are snappy
// framed on disk.
func NewPartitionDir(root string, securityID io.SecurityID, arg string, compress bool) (*PartitionDir, error) {
	if securityID.IsEmpty() {
		return nil, errors.New("catalog: empty security id")
	}
	dir := filepath.Join(root, securityID.String(), arg)
	if err := os.MkdirAll(dir, dirMode); err != nil {
		return nil, errors.Wrapf(err, "create partition dir %s", dir)
	}
	return &PartitionDir{dir: dir, compress: compress}, nil
}

// Path returns the directory holding this store's partitions.
func (d *PartitionDir) Path() string { return d.dir }

func (d *PartitionDir) ext() string {
	if d.compress {
		return compressedExt
	}
	return plainExt
}

func (d *PartitionDir) partitionPath(date time.Time) string {
	return filepath.Join(d.dir, date.UTC().Format(dateLayout)+d.ext())
}

// LoadStream opens the date's partition for reading. An absent
// partition yields (nil, nil).
func (d *PartitionDir) LoadStream(date time.Time) (stdio.ReadCloser, error) {
	f, err := os.Open(d.partitionPath(date))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, errors.Wrap(err, "open partition")
	}
	if !d.compress {
		return f, nil
	}
	return &snappyReadCloser{Reader: snappy.NewReader(f), file: f}, nil
}

// SaveStream replaces the date's partition with the reader's contents.
// The payload is buffered up front so every retry attempt writes the
// full content; the write lands in a temp file first and is renamed
// into place. Transient failures are retried a few times before giving
// up.
func (d *PartitionDir) SaveStream(date time.Time, r stdio.Reader) error {
	payload, err := stdio.ReadAll(r)
	if err != nil {
		return errors.Wrap(err, "buffer partition payload")
	}
	final := d.partitionPath(date)
	tmp := final + ".tmp"
	return try.Do(func(attempt int) (bool, error) {
		err := d.writeFile(tmp, final, bytes.NewReader(payload))
		if err != nil && attempt < saveAttempts {
			log.Warn("catalog: save %s attempt %d failed: %v", final, attempt, err)
		}
		return attempt < saveAttempts, err
	})
}

func (d *PartitionDir) writeFile(tmp, final string, r stdio.Reader) error {
	f, err := os.OpenFile(tmp, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, fileMode)
	if err != nil {
		return errors.Wrap(err, "create temp partition")
	}
	var w stdio.Writer = f
	var sw *snappy.Writer
	if d.compress {
		sw = snappy.NewBufferedWriter(f)
		w = sw
	}
	if _, err = stdio.Copy(w, r); err == nil && sw != nil {
		err = sw.Close()
	}
	if cerr := f.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "write partition")
	}
	if err := os.Rename(tmp, final); err != nil {
		os.Remove(tmp)
		return errors.Wrap(err, "rename partition into place")
	}
	return nil
}

// Delete removes the date's partition; deleting an absent partition is
// a no-op.
func (d *PartitionDir) Delete(date time.Time) error {
	err := os.Remove(d.partitionPath(date))
	if err != nil && !os.IsNotExist(err) {
		return errors.Wrap(err, "delete partition")
	}
	return nil
}

// Dates lists existing partition dates, ascending.
func (d *PartitionDir) Dates() ([]time.Time, error) {
	entries, err := os.ReadDir(d.dir)
	if err != nil {
		return nil, errors.Wrap(err, "list partitions")
	}
	var dates []time.Time
	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}
		name := entry.Name()
		if filepath.Ext(name) != d.ext() {
			continue
		}
		date, err := time.ParseInLocation(dateLayout, name[:len(name)-len(d.ext())], time.UTC)
		if err != nil {
			continue
		}
		dates = append(dates, date)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

type snappyReadCloser struct {
	*snappy.Reader
	file *os.File
}

func (rc *snappyReadCloser) Close() error {
	return rc.file.Close()
}

// ListInstruments returns the instrument directory names under root
// (one per stored instrument identity), sorted.
func ListInstruments(root string) ([]string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return nil, errors.Wrap(err, "list instruments")
	}
	var names []string
	for _, entry := range entries {
		if entry.IsDir() {
			names = append(names, entry.Name())
		}
	}
	sort.Strings(names)
	return names, nil
}
