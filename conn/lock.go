package conn

import (
	"time"

	"github.com/ValentinKolb/stcp/common"
)

// lockPollInterval bounds how long an acquisition attempt waits before
// re-checking the teardown and cancel signals
const lockPollInterval = 25 * time.Millisecond

// --------------------------------------------------------------------------
// Direction lock
// --------------------------------------------------------------------------

// dirLock is the exclusive-access lock for one transfer direction. It is a
// channel semaphore with a single slot; acquisition polls instead of blocking
// indefinitely so a concurrent disconnect is observed within one interval.
type dirLock struct {
	slot chan struct{}
}

func newDirLock() *dirLock {
	return &dirLock{slot: make(chan struct{}, 1)}
}

// acquire takes the lock. It resolves StatusDisconnected when the
// connection's lifetime signal fires while waiting and StatusCanceled when
// the caller-supplied cancel signal fires first. A nil cancel never fires.
func (l *dirLock) acquire(lifetime <-chan struct{}, cancel <-chan struct{}) common.Status {
	for {
		select {
		case l.slot <- struct{}{}:
			return common.StatusSuccess
		case <-lifetime:
			return common.StatusDisconnected
		case <-cancel:
			return common.StatusCanceled
		case <-time.After(lockPollInterval):
		}
	}
}

// release frees the lock. Must be called exactly once per successful acquire.
func (l *dirLock) release() {
	<-l.slot
}
