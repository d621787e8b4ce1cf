package storage_test

import (
	"bytes"
	"errors"
	stdio "io"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/quantarc/tickstore/codec/tradebin"
	"github.com/quantarc/tickstore/codec/tradecsv"
	"github.com/quantarc/tickstore/models"
	"github.com/quantarc/tickstore/storage"
	"github.com/quantarc/tickstore/utils/io"
)

var testID = io.NewSecurityID("SBER", "TQBR")

// memStore is an in-memory PartitionStore double.
type memStore struct {
	mu         sync.Mutex
	partitions map[int64][]byte
}

func newMemStore() *memStore {
	return &memStore{partitions: make(map[int64][]byte)}
}

func (m *memStore) LoadStream(date time.Time) (stdio.ReadCloser, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	b, ok := m.partitions[date.Unix()]
	if !ok {
		return nil, nil
	}
	return stdio.NopCloser(bytes.NewReader(b)), nil
}

func (m *memStore) SaveStream(date time.Time, r stdio.Reader) error {
	b, err := stdio.ReadAll(r)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.partitions[date.Unix()] = b
	m.mu.Unlock()
	return nil
}

func (m *memStore) Delete(date time.Time) error {
	m.mu.Lock()
	delete(m.partitions, date.Unix())
	m.mu.Unlock()
	return nil
}

func (m *memStore) Dates() ([]time.Time, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	var dates []time.Time
	for key := range m.partitions {
		dates = append(dates, time.Unix(key, 0).UTC())
	}
	sort.Slice(dates, func(i, j int) bool { return dates[i].Before(dates[j]) })
	return dates, nil
}

func (m *memStore) bytesFor(date time.Time) []byte {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.partitions[date.Unix()]
}

// failingStore rejects writes for one date and delegates the rest.
type failingStore struct {
	*memStore
	failDate int64
}

func (f *failingStore) SaveStream(date time.Time, r stdio.Reader) error {
	if date.Unix() == f.failDate {
		return errors.New("disk full")
	}
	return f.memStore.SaveStream(date, r)
}

func setup(t *testing.T) (*storage.Storage, *memStore) {
	t.Helper()
	store := newMemStore()
	stg, err := storage.New(testID, "", tradebin.New(0.01), store)
	require.NoError(t, err)
	return stg, store
}

func trade(t time.Time) *models.Trade {
	return models.NewTrade(testID, 100.5, 10, t)
}

func ts(s string) time.Time {
	parsed, err := time.Parse(time.RFC3339, s)
	if err != nil {
		panic(err)
	}
	return parsed
}

func TestNewValidation(t *testing.T) {
	store := newMemStore()
	codec := tradebin.New(0.01)

	_, err := storage.New(io.SecurityID{}, "", codec, store)
	assert.IsType(t, storage.EmptySecurityIDError(""), err)

	_, err = storage.New(testID, "", nil, store)
	assert.IsType(t, storage.NilCodecError(""), err)

	_, err = storage.New(testID, "", codec, nil)
	assert.IsType(t, storage.NilStoreError(""), err)

	stg, err := storage.New(testID, "5Min", codec, store)
	require.NoError(t, err)
	assert.Equal(t, testID, stg.SecurityID())
	assert.Equal(t, "5Min", stg.Arg())
	assert.True(t, stg.AppendOnlyNew())
}

func TestSaveEmptyBatchIsNoop(t *testing.T) {
	stg, store := setup(t)

	n, err := stg.Save(nil)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Empty(t, store.partitions)
}

func TestSaveLoadRoundTrip(t *testing.T) {
	stg, _ := setup(t)

	batch := []io.Record{
		trade(ts("2024-01-02T10:00:02Z")),
		trade(ts("2024-01-02T10:00:00Z")),
		trade(ts("2024-01-02T10:00:01Z")),
	}
	n, err := stg.Save(batch)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	loaded, err := stg.Load(ts("2024-01-02T00:00:00Z"))
	require.NoError(t, err)
	require.Len(t, loaded, 3)
	// Records come back ascending by instant regardless of save order.
	for i := 1; i < len(loaded); i++ {
		assert.False(t, loaded[i].Time().Before(loaded[i-1].Time()))
	}
}

func TestLoadAbsentPartition(t *testing.T) {
	stg, _ := setup(t)

	loaded, err := stg.Load(ts("2024-01-02T00:00:00Z"))
	require.NoError(t, err)
	assert.Empty(t, loaded)
}

func TestDateGrouping(t *testing.T) {
	stg, _ := setup(t)

	first := trade(ts("2024-01-01T23:59:59Z"))
	second := trade(ts("2024-01-02T00:00:01Z"))
	n, err := stg.Save([]io.Record{first, second})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	day1, err := stg.Load(ts("2024-01-01T00:00:00Z"))
	require.NoError(t, err)
	require.Len(t, day1, 1)
	assert.Equal(t, first.ID, day1[0].Identity())

	day2, err := stg.Load(ts("2024-01-02T00:00:00Z"))
	require.NoError(t, err)
	require.Len(t, day2, 1)
	assert.Equal(t, second.ID, day2[0].Identity())

	dates, err := stg.Dates()
	require.NoError(t, err)
	assert.Len(t, dates, 2)
}

// A failing date group aborts the call, but groups committed before it
// stay written and count toward the returned total.
func TestSavePartialCommitAcrossDates(t *testing.T) {
	store := &failingStore{
		memStore: newMemStore(),
		failDate: ts("2024-01-02T00:00:00Z").Unix(),
	}
	stg, err := storage.New(testID, "", tradebin.New(0.01), store)
	require.NoError(t, err)

	n, err := stg.Save([]io.Record{
		trade(ts("2024-01-01T10:00:00Z")),
		trade(ts("2024-01-02T10:00:00Z")),
	})
	require.Error(t, err)
	assert.Equal(t, 1, n)

	day1, err := stg.Load(ts("2024-01-01T00:00:00Z"))
	require.NoError(t, err)
	assert.Len(t, day1, 1)

	day2, err := stg.Load(ts("2024-01-02T00:00:00Z"))
	require.NoError(t, err)
	assert.Empty(t, day2)
}

func TestAppendMonotonicity(t *testing.T) {
	stg, _ := setup(t)

	n, err := stg.Save([]io.Record{
		trade(ts("2024-01-02T10:00:00Z")),
		trade(ts("2024-01-02T11:00:00Z")),
	})
	require.NoError(t, err)
	require.Equal(t, 2, n)

	// A batch straddling the watermark keeps only the non-older part.
	n, err = stg.Save([]io.Record{
		trade(ts("2024-01-02T09:00:00Z")),
		trade(ts("2024-01-02T11:00:00Z")),
		trade(ts("2024-01-02T12:00:00Z")),
	})
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	loaded, err := stg.Load(ts("2024-01-02T00:00:00Z"))
	require.NoError(t, err)
	require.Len(t, loaded, 4)
	watermark := loaded[0].Time()
	for _, rec := range loaded {
		assert.False(t, rec.Time().Before(watermark))
		watermark = rec.Time()
	}
}

func TestIdempotentResave(t *testing.T) {
	stg, store := setup(t)

	n, err := stg.Save([]io.Record{trade(ts("2024-01-02T12:00:00Z"))})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	date := ts("2024-01-02T00:00:00Z")
	before := store.bytesFor(date)

	n, err = stg.Save([]io.Record{trade(ts("2024-01-02T11:00:00Z"))})
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, before, store.bytesFor(date), "a fully-filtered batch must not touch stored bytes")
}

func TestAppendOnlyNewDisabled(t *testing.T) {
	stg, _ := setup(t)
	stg.SetAppendOnlyNew(false)

	n, err := stg.Save([]io.Record{trade(ts("2024-01-02T12:00:00Z"))})
	require.NoError(t, err)
	require.Equal(t, 1, n)

	n, err = stg.Save([]io.Record{trade(ts("2024-01-02T11:00:00Z"))})
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	loaded, err := stg.Load(ts("2024-01-02T00:00:00Z"))
	require.NoError(t, err)
	assert.Len(t, loaded, 2)
}

// With the append filter off, an appended older record must widen the
// partition's time bounds downward as well as upward.
func TestAppendLowersFirstTime(t *testing.T) {
	stg, _ := setup(t)
	stg.SetAppendOnlyNew(false)

	_, err := stg.Save([]io.Record{trade(ts("2024-01-02T12:00:00Z"))})
	require.NoError(t, err)
	_, err = stg.Save([]io.Record{trade(ts("2024-01-02T11:00:00Z"))})
	require.NoError(t, err)

	meta, err := stg.GetMetadata(ts("2024-01-02T00:00:00Z"))
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, 2, meta.Count())
	assert.True(t, meta.FirstTime().Equal(ts("2024-01-02T11:00:00Z")))
	assert.True(t, meta.LastTime().Equal(ts("2024-01-02T12:00:00Z")))
}

func TestInstrumentMismatchRejected(t *testing.T) {
	stg, store := setup(t)

	foreign := models.NewTrade(io.NewSecurityID("GAZP", "TQBR"), 1, 1, ts("2024-01-02T10:00:00Z"))
	n, err := stg.Save([]io.Record{trade(ts("2024-01-02T09:00:00Z")), foreign})
	assert.Zero(t, n)
	require.Error(t, err)
	assert.IsType(t, storage.MismatchedInstrumentError(""), err)
	assert.Empty(t, store.partitions, "validation failure must commit nothing")
}

func TestInstrumentMatchIsCaseInsensitive(t *testing.T) {
	stg, _ := setup(t)

	rec := models.NewTrade(io.NewSecurityID("sber", "tqbr"), 1, 1, ts("2024-01-02T10:00:00Z"))
	n, err := stg.Save([]io.Record{rec})
	require.NoError(t, err)
	assert.Equal(t, 1, n)
}

func TestUnsetTimestampRejected(t *testing.T) {
	stg, store := setup(t)

	rec := &models.Trade{ID: uuid.NewString(), Security: testID}
	n, err := stg.Save([]io.Record{rec})
	assert.Zero(t, n)
	require.Error(t, err)
	assert.IsType(t, storage.InvalidTimestampError(""), err)
	assert.Empty(t, store.partitions)
}

func TestGetMetadata(t *testing.T) {
	stg, _ := setup(t)

	meta, err := stg.GetMetadata(ts("2024-01-02T00:00:00Z"))
	require.NoError(t, err)
	assert.Nil(t, meta)

	_, err = stg.Save([]io.Record{
		trade(ts("2024-01-02T10:00:00Z")),
		trade(ts("2024-01-02T11:00:00Z")),
	})
	require.NoError(t, err)

	meta, err = stg.GetMetadata(ts("2024-01-02T00:00:00Z"))
	require.NoError(t, err)
	require.NotNil(t, meta)
	assert.Equal(t, 2, meta.Count())
	assert.True(t, meta.FirstTime().Equal(ts("2024-01-02T10:00:00Z")))
	assert.True(t, meta.LastTime().Equal(ts("2024-01-02T11:00:00Z")))
}

// Text-format metadata is served from the cache on repeat calls, and
// the cache entry is refreshed by a rewrite rather than left stale.
func TestTextMetadataCacheRefreshedOnSave(t *testing.T) {
	store := newMemStore()
	stg, err := storage.New(testID, "", tradecsv.New(0.01), store)
	require.NoError(t, err)

	_, err = stg.Save([]io.Record{trade(ts("2024-01-02T10:00:00Z"))})
	require.NoError(t, err)

	meta, err := stg.GetMetadata(ts("2024-01-02T00:00:00Z"))
	require.NoError(t, err)
	require.Equal(t, 1, meta.Count())

	_, err = stg.Save([]io.Record{trade(ts("2024-01-02T11:00:00Z"))})
	require.NoError(t, err)

	meta, err = stg.GetMetadata(ts("2024-01-02T00:00:00Z"))
	require.NoError(t, err)
	assert.Equal(t, 2, meta.Count(), "cached metadata must reflect the rewrite")

	require.NoError(t, stg.DeleteAll(ts("2024-01-02T00:00:00Z")))
	meta, err = stg.GetMetadata(ts("2024-01-02T00:00:00Z"))
	require.NoError(t, err)
	assert.Nil(t, meta, "cache entry must be dropped with the partition")
}

// Metadata handed to a caller is a copy; mutating it must not leak into
// later reads through the cache.
func TestGetMetadataReturnsCopy(t *testing.T) {
	store := newMemStore()
	stg, err := storage.New(testID, "", tradecsv.New(0.01), store)
	require.NoError(t, err)

	_, err = stg.Save([]io.Record{trade(ts("2024-01-02T10:00:00Z"))})
	require.NoError(t, err)

	meta, err := stg.GetMetadata(ts("2024-01-02T00:00:00Z"))
	require.NoError(t, err)
	require.NotNil(t, meta)
	meta.SetCount(999)
	meta.SetOverride(true)

	again, err := stg.GetMetadata(ts("2024-01-02T00:00:00Z"))
	require.NoError(t, err)
	require.NotNil(t, again)
	assert.Equal(t, 1, again.Count())
	assert.False(t, again.Override())
}

func TestConcurrentSavesSameDate(t *testing.T) {
	stg, _ := setup(t)

	const writers = 8
	const perWriter = 20
	base := ts("2024-01-02T10:00:00Z")

	var wg sync.WaitGroup
	for w := 0; w < writers; w++ {
		wg.Add(1)
		go func(w int) {
			defer wg.Done()
			for i := 0; i < perWriter; i++ {
				// Monotonically increasing instants so no record is
				// dropped by the append filter.
				_, err := stg.Save([]io.Record{trade(base.Add(time.Duration(w*perWriter+i) * time.Hour / 1000))})
				assert.NoError(t, err)
			}
		}(w)
	}
	wg.Wait()

	meta, err := stg.GetMetadata(base)
	require.NoError(t, err)
	require.NotNil(t, meta)
	loaded, err := stg.Load(base)
	require.NoError(t, err)
	assert.Equal(t, meta.Count(), len(loaded),
		"metadata count and stored records must agree after concurrent writes")
}

func TestConcurrentSavesDisjointDates(t *testing.T) {
	stg, _ := setup(t)

	var wg sync.WaitGroup
	days := []string{"2024-01-01", "2024-01-02", "2024-01-03", "2024-01-04"}
	for _, day := range days {
		wg.Add(1)
		go func(day string) {
			defer wg.Done()
			for i := 0; i < 25; i++ {
				_, err := stg.Save([]io.Record{trade(ts(day + "T10:00:00Z").Add(time.Duration(i) * time.Second))})
				assert.NoError(t, err)
			}
		}(day)
	}
	wg.Wait()

	for _, day := range days {
		loaded, err := stg.Load(ts(day + "T00:00:00Z"))
		require.NoError(t, err)
		assert.Len(t, loaded, 25)
	}
}
