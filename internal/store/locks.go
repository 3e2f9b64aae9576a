package store

import (
	"sync"

	"github.com/google/uuid"
)

// ParcelLocks serializes mutations per parcel. Two concurrent transfers on
// the same parcel must not both observe the same open interval; operations
// on different parcels proceed fully in parallel. Reporting reads never take
// these locks.
type ParcelLocks struct {
	locks sync.Map // uuid.UUID -> *sync.Mutex
}

// NewParcelLocks creates an empty lock table.
func NewParcelLocks() *ParcelLocks {
	return &ParcelLocks{}
}

// Lock acquires the mutex for the given parcel, creating it on first use.
// The returned function releases it.
func (p *ParcelLocks) Lock(parcelID uuid.UUID) func() {
	v, _ := p.locks.LoadOrStore(parcelID, &sync.Mutex{})
	mu := v.(*sync.Mutex)
	mu.Lock()
	return mu.Unlock
}
