package storage

import (
	"bytes"
	"sort"
	"time"

	"github.com/pkg/errors"

	"github.com/quantarc/tickstore/utils/io"
	"github.com/quantarc/tickstore/utils/log"
)

// Save validates, groups, deduplicates and persists the batch, one date
// partition at a time. It returns the number of records actually
// written. An empty batch is a no-op.
//
// Validation runs before any I/O and fails the whole call. After that,
// each date group is an independent unit of work: a failing group aborts
// the call, but groups already written stay written.
func (s *Storage) Save(records []io.Record) (int, error) {
	if len(records) == 0 {
		return 0, nil
	}
	for _, rec := range records {
		if id := rec.SecurityID(); !id.IsEmpty() && !id.EqualFold(s.securityID) {
			return 0, MismatchedInstrumentError(id.String() + " vs " + s.securityID.String())
		}
		if rec.Time().IsZero() {
			return 0, InvalidTimestampError(s.securityID.String())
		}
	}

	groups, dates := s.groupByDate(records)
	total := 0
	for _, date := range dates {
		n, err := s.saveDate(date, groups[date.Unix()])
		if err != nil {
			return total, errors.Wrapf(err, "save %s %s", s.securityID, date.Format("2006-01-02"))
		}
		total += n
	}
	return total, nil
}

// groupByDate buckets records by truncated date. Dates come back sorted
// ascending so multi-date batches commit in a deterministic order.
func (s *Storage) groupByDate(records []io.Record) (map[int64][]io.Record, []time.Time) {
	groups := make(map[int64][]io.Record)
	var dates []time.Time
	for _, rec := range records {
		date, _ := s.truncate(rec)
		key := date.Unix()
		if _, ok := groups[key]; !ok {
			dates = append(dates, date)
		}
		groups[key] = append(groups[key], rec)
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return groups, dates
}

func (s *Storage) saveDate(date time.Time, batch []io.Record) (int, error) {
	// Stable sort keeps the originating sequence order for equal
	// instants, making the stored order deterministic.
	sort.SliceStable(batch, func(i, j int) bool {
		_, ti := s.truncate(batch[i])
		_, tj := s.truncate(batch[j])
		return ti.Before(tj)
	})

	mu := s.locks.lockFor(date)
	mu.Lock()
	defer mu.Unlock()

	meta, existingPayload, err := s.readPartition(date)
	if err != nil {
		return 0, err
	}
	if meta == nil {
		meta = s.codec.CreateMetadata(date)
	}

	if meta.Count() > 0 && s.AppendOnlyNew() {
		batch = appendFilter(batch, meta.LastTime(), s.truncateInstant)
	}
	if len(batch) == 0 {
		log.Debug("save %s %s: nothing newer than %v, skipping",
			s.securityID, date.Format("2006-01-02"), meta.LastTime())
		return 0, nil
	}

	return len(batch), s.serializeAndPersist(date, meta, existingPayload, batch)
}

// serializeAndPersist runs the shared serialize-then-persist step for
// Save appends and Delete rewrites. The batch must be non-empty and
// sorted ascending by truncated instant.
func (s *Storage) serializeAndPersist(date time.Time, meta io.PartitionMetadata, existingPayload []byte, batch []io.Record) error {
	var payload bytes.Buffer
	if err := s.codec.Serialize(&payload, batch, meta); err != nil {
		return errors.Wrap(err, "serialize batch")
	}

	first := s.truncateInstant(batch[0])
	last := s.truncateInstant(batch[len(batch)-1])
	if meta.Count() == 0 || meta.Override() {
		meta.SetCount(len(batch))
		meta.SetFirstTime(first)
		meta.SetLastTime(last)
	} else {
		meta.SetCount(meta.Count() + len(batch))
		if first.Before(meta.FirstTime()) {
			meta.SetFirstTime(first)
		}
		if last.After(meta.LastTime()) {
			meta.SetLastTime(last)
		}
	}

	return s.persist(date, meta, existingPayload, payload.Bytes())
}

func (s *Storage) truncateInstant(rec io.Record) time.Time {
	_, instant := s.truncate(rec)
	return instant
}

// appendFilter implements the append-only-new policy: scanning in
// ascending time order, a record strictly older than the running
// watermark is dropped; a kept record raises the watermark. Records at
// exactly the watermark are kept (duplicate timestamps are not detected
// here).
func appendFilter(batch []io.Record, watermark time.Time, instant func(io.Record) time.Time) []io.Record {
	kept := batch[:0]
	for _, rec := range batch {
		t := instant(rec)
		if t.Before(watermark) {
			continue
		}
		kept = append(kept, rec)
		watermark = t
	}
	return kept
}
