// Package models defines the concrete record schemas stored by the
// engine. Each model implements io.Record; the engine itself only ever
// sees the three projections.
package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/quantarc/tickstore/utils/io"
)

// Trade is a single executed trade.
type Trade struct {
	ID        string
	Security  io.SecurityID
	Price     float64
	Volume    float64
	Timestamp time.Time
}

// NewTrade creates a trade with a generated identity.
func NewTrade(securityID io.SecurityID, price, volume float64, t time.Time) *Trade {
	return &Trade{
		ID:        uuid.NewString(),
		Security:  securityID,
		Price:     price,
		Volume:    volume,
		Timestamp: t,
	}
}

func (t *Trade) Time() time.Time           { return t.Timestamp }
func (t *Trade) SecurityID() io.SecurityID { return t.Security }
func (t *Trade) Identity() interface{}     { return t.ID }
