package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/quantarc/tickstore/utils/io"
)

// Quote is a top-of-book bid/ask snapshot.
type Quote struct {
	ID        string
	Security  io.SecurityID
	Bid       float64
	BidSize   float64
	Ask       float64
	AskSize   float64
	Timestamp time.Time
}

// NewQuote creates a quote with a generated identity.
func NewQuote(securityID io.SecurityID, bid, bidSize, ask, askSize float64, t time.Time) *Quote {
	return &Quote{
		ID:        uuid.NewString(),
		Security:  securityID,
		Bid:       bid,
		BidSize:   bidSize,
		Ask:       ask,
		AskSize:   askSize,
		Timestamp: t,
	}
}

func (q *Quote) Time() time.Time           { return q.Timestamp }
func (q *Quote) SecurityID() io.SecurityID { return q.Security }
func (q *Quote) Identity() interface{}     { return q.ID }
