package services

import "sync"

const stripeCount = 64

// stripedMutex serializes work per conversation id without a lock per room.
type stripedMutex struct {
	locks [stripeCount]sync.Mutex
}

func (s *stripedMutex) Lock(id int64) func() {
	m := &s.locks[uint64(id)%stripeCount]
	m.Lock()
	return m.Unlock
}
