package store

import "sync/atomic"

// buildLock provides non-blocking writer exclusion per root. A second
// builder must observe the conflict immediately instead of queueing behind
// the first, so this deliberately has no blocking acquire.
type buildLock struct {
	state atomic.Int32 // 0 = unlocked, 1 = locked
}

// tryAcquire attempts to take the lock without blocking.
func (l *buildLock) tryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// release unlocks. Must only be called by the holder.
func (l *buildLock) release() {
	l.state.Store(0)
}
