package storage_test

import (
	"testing"
	"time"

	. "gopkg.in/check.v1"

	"github.com/quantarc/tickstore/codec/tradebin"
	"github.com/quantarc/tickstore/models"
	"github.com/quantarc/tickstore/storage"
	"github.com/quantarc/tickstore/utils/io"
)

func Test(t *testing.T) { TestingT(t) }

type DeleteSuite struct {
	stg   *storage.Storage
	store *memStore
	date  time.Time
	a     *models.Trade
	b     *models.Trade
	c     *models.Trade
}

var _ = Suite(&DeleteSuite{})

func (s *DeleteSuite) SetUpTest(c *C) {
	s.store = newMemStore()
	stg, err := storage.New(testID, "", tradebin.New(0.01), s.store)
	c.Assert(err, IsNil)
	s.stg = stg

	s.date = ts("2024-01-02T00:00:00Z")
	s.a = trade(ts("2024-01-02T10:00:00Z"))
	s.b = trade(ts("2024-01-02T11:00:00Z"))
	s.c = trade(ts("2024-01-02T12:00:00Z"))
	n, err := stg.Save([]io.Record{s.a, s.b, s.c})
	c.Assert(err, IsNil)
	c.Assert(n, Equals, 3)
}

func (s *DeleteSuite) TestDeleteCompleteness(c *C) {
	err := s.stg.Delete([]io.Record{s.a, s.b, s.c})
	c.Assert(err, IsNil)

	loaded, err := s.stg.Load(s.date)
	c.Assert(err, IsNil)
	c.Assert(loaded, HasLen, 0)

	meta, err := s.stg.GetMetadata(s.date)
	c.Assert(err, IsNil)
	c.Assert(meta, IsNil)
}

func (s *DeleteSuite) TestPartialReconciliation(c *C) {
	err := s.stg.Delete([]io.Record{s.b})
	c.Assert(err, IsNil)

	loaded, err := s.stg.Load(s.date)
	c.Assert(err, IsNil)
	c.Assert(loaded, HasLen, 2)
	c.Check(loaded[0].Identity(), Equals, s.a.ID)
	c.Check(loaded[1].Identity(), Equals, s.c.ID)

	meta, err := s.stg.GetMetadata(s.date)
	c.Assert(err, IsNil)
	c.Assert(meta, NotNil)
	c.Check(meta.Count(), Equals, 2)
	c.Check(meta.FirstTime().Equal(s.a.Timestamp), Equals, true)
	c.Check(meta.LastTime().Equal(s.c.Timestamp), Equals, true)
}

func (s *DeleteSuite) TestDeleteAbsentDateIsNoop(c *C) {
	ghost := trade(ts("2024-03-01T10:00:00Z"))
	c.Assert(s.stg.Delete([]io.Record{ghost}), IsNil)

	loaded, err := s.stg.Load(s.date)
	c.Assert(err, IsNil)
	c.Assert(loaded, HasLen, 3)
}

func (s *DeleteSuite) TestDeleteUnmatchedIdentityLeavesPartition(c *C) {
	// Same date, unknown identity; counts differ so the slow path runs
	// and finds nothing to remove.
	ghost := trade(ts("2024-01-02T13:00:00Z"))
	before := s.store.bytesFor(s.date)
	c.Assert(s.stg.Delete([]io.Record{ghost}), IsNil)

	c.Check(s.store.bytesFor(s.date), DeepEquals, before)
	loaded, err := s.stg.Load(s.date)
	c.Assert(err, IsNil)
	c.Assert(loaded, HasLen, 3)
}

func (s *DeleteSuite) TestFastPathDropsWholePartition(c *C) {
	// Three deletions against a count of three hits the fast path: the
	// partition is removed without deserializing.
	ghosts := []io.Record{
		trade(ts("2024-01-02T01:00:00Z")),
		trade(ts("2024-01-02T02:00:00Z")),
		trade(ts("2024-01-02T03:00:00Z")),
	}
	c.Assert(s.stg.Delete(ghosts), IsNil)
	c.Check(s.store.bytesFor(s.date), IsNil)
}

func (s *DeleteSuite) TestDeleteEmptyBatchIsNoop(c *C) {
	c.Assert(s.stg.Delete(nil), IsNil)
	loaded, err := s.stg.Load(s.date)
	c.Assert(err, IsNil)
	c.Assert(loaded, HasLen, 3)
}

func (s *DeleteSuite) TestDeleteAll(c *C) {
	c.Assert(s.stg.DeleteAll(s.date), IsNil)

	loaded, err := s.stg.Load(s.date)
	c.Assert(err, IsNil)
	c.Assert(loaded, HasLen, 0)

	dates, err := s.stg.Dates()
	c.Assert(err, IsNil)
	c.Assert(dates, HasLen, 0)
}

func (s *DeleteSuite) TestDeleteSpanningDates(c *C) {
	other := trade(ts("2024-01-03T10:00:00Z"))
	n, err := s.stg.Save([]io.Record{other})
	c.Assert(err, IsNil)
	c.Assert(n, Equals, 1)

	c.Assert(s.stg.Delete([]io.Record{s.b, other}), IsNil)

	day1, err := s.stg.Load(s.date)
	c.Assert(err, IsNil)
	c.Assert(day1, HasLen, 2)

	day2, err := s.stg.Load(ts("2024-01-03T00:00:00Z"))
	c.Assert(err, IsNil)
	c.Assert(day2, HasLen, 0)
}
