package pipeline

import "sync/atomic"

// RunFlag is the single authority on whether the pipeline is running.
// Every Raise starts a new epoch; workers hold the epoch they were
// started with, so a stop followed by a quick restart never revives a
// worker or an in-flight result from the previous run.
type RunFlag struct {
	// epoch<<1 | running
	state atomic.Uint64
}

// Raise sets the flag and returns the new epoch. It returns false if the
// flag was already set.
func (f *RunFlag) Raise() (uint64, bool) {
	for {
		old := f.state.Load()
		if old&1 == 1 {
			return old >> 1, false
		}
		epoch := old>>1 + 1
		if f.state.CompareAndSwap(old, epoch<<1|1) {
			return epoch, true
		}
	}
}

// Lower clears the flag. It returns false if the flag was already clear.
func (f *RunFlag) Lower() bool {
	for {
		old := f.state.Load()
		if old&1 == 0 {
			return false
		}
		if f.state.CompareAndSwap(old, old&^1) {
			return true
		}
	}
}

func (f *RunFlag) Running() bool {
	return f.state.Load()&1 == 1
}

// Active reports whether the run started at epoch is still the current,
// running one.
func (f *RunFlag) Active(epoch uint64) bool {
	return f.state.Load() == epoch<<1|1
}
