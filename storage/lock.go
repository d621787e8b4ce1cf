package storage

import (
	"sync"
	"time"
)

// lockTable maps a partition date to its mutex. Entries are created on
// first access and retained for the process lifetime; the table only
// grows by one entry per distinct date ever touched.
type lockTable struct {
	locks sync.Map // unix seconds of UTC midnight -> *sync.Mutex
}

// lockFor returns the mutex serializing all operations on the date.
// Safe for concurrent callers; all callers for the same date observe the
// same mutex.
func (lt *lockTable) lockFor(date time.Time) *sync.Mutex {
	key := date.Unix()
	if mu, ok := lt.locks.Load(key); ok {
		return mu.(*sync.Mutex)
	}
	mu, _ := lt.locks.LoadOrStore(key, &sync.Mutex{})
	return mu.(*sync.Mutex)
}
