package storage

import (
	"bytes"
	stdio "io"
	"sync"
	"time"

	"github.com/pkg/errors"

	"github.com/quantarc/tickstore/utils/io"
)

const day = 24 * time.Hour

// Storage is the write/read/delete engine for one instrument's
// time-partitioned record sequence. Each calendar date maps to one
// partition: a metadata header followed by a codec-owned payload.
//
// Storage is safe for concurrent use. Operations on distinct dates
// proceed in parallel; operations on the same date are serialized by a
// per-date lock.
type Storage struct {
	securityID io.SecurityID
	arg        string
	codec      io.Codec
	store      io.PartitionStore

	locks lockTable

	// metaCache holds per-date metadata for the text format only; the
	// binary format re-reads the header on every access. Entries are
	// refreshed on rewrite and dropped on partition removal.
	metaCache sync.Map // unix seconds of UTC midnight -> io.PartitionMetadata

	mu            sync.RWMutex
	appendOnlyNew bool
}

// New binds a storage to one instrument identity and an optional
// disambiguating argument (e.g. a candle period string). The identity
// must not be empty and both collaborators are required.
func New(securityID io.SecurityID, arg string, codec io.Codec, store io.PartitionStore) (*Storage, error) {
	if securityID.IsEmpty() {
		return nil, EmptySecurityIDError(securityID.String())
	}
	if codec == nil {
		return nil, NilCodecError(securityID.String())
	}
	if store == nil {
		return nil, NilStoreError(securityID.String())
	}
	return &Storage{
		securityID:    securityID,
		arg:           arg,
		codec:         codec,
		store:         store,
		appendOnlyNew: true,
	}, nil
}

// SecurityID returns the bound instrument identity.
func (s *Storage) SecurityID() io.SecurityID { return s.securityID }

// Arg returns the disambiguating argument the storage was bound with.
func (s *Storage) Arg() string { return s.arg }

// AppendOnlyNew reports whether Save filters out records older than the
// partition's last recorded instant. Defaults to true.
func (s *Storage) AppendOnlyNew() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.appendOnlyNew
}

func (s *Storage) SetAppendOnlyNew(enabled bool) {
	s.mu.Lock()
	s.appendOnlyNew = enabled
	s.mu.Unlock()
}

// Dates lists the dates that currently have a partition.
func (s *Storage) Dates() ([]time.Time, error) {
	return s.store.Dates()
}

// truncate is the single authority for which partition a record belongs
// to: the instant is floored to the codec's time precision in UTC, and
// the bucket date is that instant's UTC calendar date.
func (s *Storage) truncate(rec io.Record) (bucketDate, instant time.Time) {
	instant = rec.Time().UTC().Truncate(s.codec.TimePrecision())
	return instant.Truncate(day), instant
}

func bucketDate(t time.Time) time.Time {
	return t.UTC().Truncate(day)
}

// Load returns the date's full record sequence, ascending by instant.
// An absent partition yields an empty sequence, not an error.
func (s *Storage) Load(date time.Time) ([]io.Record, error) {
	date = bucketDate(date)
	mu := s.locks.lockFor(date)
	mu.Lock()
	defer mu.Unlock()

	stream, err := s.store.LoadStream(date)
	if err != nil {
		return nil, err
	}
	if stream == nil {
		return nil, nil
	}
	defer stream.Close()

	meta := s.codec.CreateMetadata(date)
	if err := meta.Read(stream); err != nil {
		if errors.Cause(err) == stdio.EOF {
			return nil, nil
		}
		return nil, err
	}
	return io.Drain(s.codec.Deserialize(stream, meta))
}

// GetMetadata returns the date's partition metadata, or nil when the
// partition (or its header) is absent. Never mutates stored bytes. The
// returned value is the caller's own copy; mutating it does not touch
// the cache or the partition.
func (s *Storage) GetMetadata(date time.Time) (io.PartitionMetadata, error) {
	date = bucketDate(date)
	if s.codec.Format() == io.FormatText {
		if cached, ok := s.metaCache.Load(date.Unix()); ok {
			return s.cloneMetadata(cached.(io.PartitionMetadata)), nil
		}
	}

	mu := s.locks.lockFor(date)
	mu.Lock()
	defer mu.Unlock()

	meta, err := s.readMetadata(date)
	if err != nil || meta == nil {
		return nil, err
	}
	s.cacheMetadata(date, meta)
	return s.cloneMetadata(meta), nil
}

// cloneMetadata builds an independent copy of meta through the codec,
// so handing metadata out never aliases the cache.
func (s *Storage) cloneMetadata(meta io.PartitionMetadata) io.PartitionMetadata {
	clone := s.codec.CreateMetadata(meta.Date())
	clone.SetCount(meta.Count())
	clone.SetFirstTime(meta.FirstTime())
	clone.SetLastTime(meta.LastTime())
	clone.SetPriceStep(meta.PriceStep())
	clone.SetOverride(meta.Override())
	return clone
}

// readMetadata reads just the header of the date's partition under the
// caller-held lock. Returns (nil, nil) when the partition or header is
// absent.
func (s *Storage) readMetadata(date time.Time) (io.PartitionMetadata, error) {
	stream, err := s.store.LoadStream(date)
	if err != nil {
		return nil, err
	}
	if stream == nil {
		return nil, nil
	}
	defer stream.Close()

	meta := s.codec.CreateMetadata(date)
	if err := meta.Read(stream); err != nil {
		if errors.Cause(err) == stdio.EOF {
			return nil, nil
		}
		return nil, err
	}
	return meta, nil
}

// readPartition reads the header and the trailing payload bytes of the
// date's partition under the caller-held lock. A missing partition or
// header yields (nil, nil, nil).
func (s *Storage) readPartition(date time.Time) (io.PartitionMetadata, []byte, error) {
	stream, err := s.store.LoadStream(date)
	if err != nil {
		return nil, nil, err
	}
	if stream == nil {
		return nil, nil, nil
	}
	defer stream.Close()

	meta := s.codec.CreateMetadata(date)
	if err := meta.Read(stream); err != nil {
		if errors.Cause(err) == stdio.EOF {
			return nil, nil, nil
		}
		return nil, nil, err
	}
	payload, err := stdio.ReadAll(stream)
	if err != nil {
		return nil, nil, errors.Wrap(err, "read partition payload")
	}
	return meta, payload, nil
}

// persist writes "header bytes followed by payload bytes" back through
// the partition store. In override mode the new payload replaces the
// partition wholesale; otherwise it is appended after the existing
// payload under the rewritten header.
func (s *Storage) persist(date time.Time, meta io.PartitionMetadata, existingPayload, payload []byte) error {
	var out bytes.Buffer
	if err := meta.Write(&out); err != nil {
		return err
	}
	if !meta.Override() {
		out.Write(existingPayload)
	}
	out.Write(payload)
	if err := s.store.SaveStream(date, &out); err != nil {
		return err
	}
	s.cacheMetadata(date, meta)
	return nil
}

func (s *Storage) cacheMetadata(date time.Time, meta io.PartitionMetadata) {
	if s.codec.Format() == io.FormatText {
		s.metaCache.Store(date.Unix(), meta)
	}
}

func (s *Storage) dropCachedMetadata(date time.Time) {
	s.metaCache.Delete(date.Unix())
}
