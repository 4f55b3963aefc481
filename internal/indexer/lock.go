package indexer

import "sync/atomic"

// IndexLock is a non-blocking guard that keeps bulk imports and re-embeds
// from overlapping. A caller that fails to acquire it gets
// ErrIndexingInProgress instead of waiting.
type IndexLock struct {
	state atomic.Int32 // 0 = free, 1 = held
}

// TryAcquire takes the lock if it is free and reports whether it did
func (l *IndexLock) TryAcquire() bool {
	return l.state.CompareAndSwap(0, 1)
}

// Release frees the lock. Only the holder may call it.
func (l *IndexLock) Release() {
	l.state.Store(0)
}
