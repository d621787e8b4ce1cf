package storage

import (
	stdio "io"
	"time"

	"github.com/pkg/errors"

	"github.com/quantarc/tickstore/utils/io"
	"github.com/quantarc/tickstore/utils/log"
)

// Delete removes stored records matching the batch's record identities,
// reconciling one date partition at a time. Unmatched identities and
// absent partitions are ignored. An emptied partition is removed from
// the store.
func (s *Storage) Delete(records []io.Record) error {
	if len(records) == 0 {
		return nil
	}
	groups, dates := s.groupByDate(records)
	for _, date := range dates {
		if err := s.deleteDate(date, groups[date.Unix()]); err != nil {
			return errors.Wrapf(err, "delete %s %s", s.securityID, date.Format("2006-01-02"))
		}
	}
	return nil
}

func (s *Storage) deleteDate(date time.Time, batch []io.Record) error {
	mu := s.locks.lockFor(date)
	mu.Lock()
	defer mu.Unlock()

	stream, err := s.store.LoadStream(date)
	if err != nil {
		return err
	}
	if stream == nil {
		return nil
	}

	meta := s.codec.CreateMetadata(date)
	if err := meta.Read(stream); err != nil {
		stream.Close()
		if errors.Cause(err) == stdio.EOF {
			return nil
		}
		return err
	}

	// Fast path: a deletion set sized equal to the stored count covers
	// the whole partition; drop it without deserializing.
	if meta.Count() == len(batch) {
		stream.Close()
		return s.removePartition(date)
	}

	stored, err := io.Drain(s.codec.Deserialize(stream, meta))
	if cerr := stream.Close(); cerr != nil && err == nil {
		err = cerr
	}
	if err != nil {
		return err
	}

	// Index stored records by identity, one-to-many, preserving arrival
	// order for identity collisions, then remove every identity in the
	// deletion set.
	index := make(map[interface{}][]io.Record, len(stored))
	for _, rec := range stored {
		id := rec.Identity()
		index[id] = append(index[id], rec)
	}
	for _, rec := range batch {
		delete(index, rec.Identity())
	}
	if len(index) == 0 {
		return s.removePartition(date)
	}

	// Flatten the survivors in stored order so the rewrite stays
	// deterministic, then rewrite the partition from scratch against a
	// fresh metadata object.
	var survivors []io.Record
	for _, rec := range stored {
		if _, ok := index[rec.Identity()]; ok {
			survivors = append(survivors, rec)
		}
	}
	if len(survivors) == len(stored) {
		// Nothing matched; the partition is already in the target state.
		return nil
	}
	log.Debug("delete %s %s: rewriting %d of %d records",
		s.securityID, date.Format("2006-01-02"), len(survivors), len(stored))
	fresh := s.codec.CreateMetadata(date)
	return s.serializeAndPersist(date, fresh, nil, survivors)
}

// DeleteAll removes the date's partition wholesale.
func (s *Storage) DeleteAll(date time.Time) error {
	date = bucketDate(date)
	mu := s.locks.lockFor(date)
	mu.Lock()
	defer mu.Unlock()
	return s.removePartition(date)
}

// removePartition deletes the partition bytes and the cached metadata
// under the caller-held lock.
func (s *Storage) removePartition(date time.Time) error {
	if err := s.store.Delete(date); err != nil {
		return err
	}
	s.dropCachedMetadata(date)
	return nil
}
