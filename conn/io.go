package conn

import (
	"fmt"
	"time"

	"github.com/ValentinKolb/stcp/common"
)

// --------------------------------------------------------------------------
// Executor entry points
// --------------------------------------------------------------------------

// transferOutcome is the terminal state of one chunked transfer
type transferOutcome struct {
	n   int
	err error
}

// Send transfers exactly len(data) bytes to the peer. A timeout of zero means
// unbounded; a positive timeout races the transfer against a deadline timer.
// A nil cancel signal never fires. Network conditions resolve as a Result
// status; only programmer errors (empty data, negative timeout) return an
// error.
func (c *Connection) Send(data []byte, timeout time.Duration, cancel <-chan struct{}) (common.Result, error) {
	if len(data) == 0 {
		return common.Result{}, fmt.Errorf("send requires at least one byte")
	}
	if timeout < 0 {
		return common.Result{}, fmt.Errorf("timeout must be positive or omitted, got %v", timeout)
	}

	if !c.IsAlive() {
		return common.Result{Status: common.StatusDisconnected}, nil
	}

	if status := c.writeLock.acquire(c.Done(), cancel); status != common.StatusSuccess {
		return common.Result{Status: status}, nil
	}

	done := make(chan transferOutcome, 1)
	go func() {
		n, err := c.sendChunks(data)
		done <- transferOutcome{n, err}
	}()

	return c.await(done, c.writeLock, true, timeout, cancel), nil
}

// Receive transfers exactly count bytes from the peer into a fresh buffer.
// Timing modes match Send. The received bytes are only present on
// StatusSuccess.
func (c *Connection) Receive(count int, timeout time.Duration, cancel <-chan struct{}) (common.Result, error) {
	if count < 1 {
		return common.Result{}, fmt.Errorf("receive count must be at least 1, got %d", count)
	}
	if timeout < 0 {
		return common.Result{}, fmt.Errorf("timeout must be positive or omitted, got %v", timeout)
	}

	if !c.IsAlive() {
		return common.Result{Status: common.StatusDisconnected}, nil
	}

	if status := c.readLock.acquire(c.Done(), cancel); status != common.StatusSuccess {
		return common.Result{Status: status}, nil
	}

	out := make([]byte, count)
	done := make(chan transferOutcome, 1)
	go func() {
		n, err := c.receiveChunks(out)
		done <- transferOutcome{n, err}
	}()

	result := c.await(done, c.readLock, false, timeout, cancel)
	if result.Status == common.StatusSuccess {
		result.Data = out
	}
	return result, nil
}

// --------------------------------------------------------------------------
// Deadline-by-race
// --------------------------------------------------------------------------

// await resolves a running transfer against the deadline timer, the
// caller-supplied cancel signal and the connection lifetime - whichever
// fires first determines the outcome. The direction lock is released on
// every path so the connection stays usable after a timeout.
func (c *Connection) await(done chan transferOutcome, lock *dirLock, write bool, timeout time.Duration, cancel <-chan struct{}) common.Result {
	var deadline <-chan time.Time
	if timeout > 0 {
		timer := time.NewTimer(timeout)
		defer timer.Stop()
		deadline = timer.C
	}

	select {
	case out := <-done:
		lock.release()
		if out.err != nil {
			// Stream level fault: reset, broken pipe, closed handle
			c.markDead()
			Logger.Debugf("transfer on %s failed after %d bytes: %v", c.id, out.n, out.err)
			return common.Result{Status: common.StatusDisconnected, BytesTransferred: out.n}
		}
		return common.SuccessResult(out.n, nil)

	case <-deadline:
		return c.abandon(done, lock, write, common.StatusTimeout)

	case <-cancel:
		return c.abandon(done, lock, write, common.StatusCanceled)

	case <-c.Done():
		// Teardown closed the stream, the transfer errors out promptly
		out := <-done
		lock.release()
		return common.Result{Status: common.StatusDisconnected, BytesTransferred: out.n}
	}
}

// abandon stops the losing transfer by expiring the stream deadline, drains
// it and restores the connection for the next call. A timed-out operation
// does not assume the connection is dead; the abandoned transfer's buffer
// position is undefined for the caller.
func (c *Connection) abandon(done chan transferOutcome, lock *dirLock, write bool, status common.Status) common.Result {
	stream := c.Stream()
	if write {
		_ = stream.SetWriteDeadline(time.Now())
	} else {
		_ = stream.SetReadDeadline(time.Now())
	}

	out := <-done

	if write {
		_ = stream.SetWriteDeadline(time.Time{})
	} else {
		_ = stream.SetReadDeadline(time.Time{})
	}
	lock.release()

	return common.Result{Status: status, BytesTransferred: out.n}
}

// --------------------------------------------------------------------------
// Chunked transfers
// --------------------------------------------------------------------------

// sendChunks writes data in chunks no larger than the configured buffer
// size, updating the transferred-byte statistics as each chunk completes
func (c *Connection) sendChunks(data []byte) (int, error) {
	stream := c.Stream()
	sent := 0

	for sent < len(data) {
		chunk := min(len(data)-sent, c.bufferSize)

		written := 0
		for written < chunk {
			n, err := stream.Write(data[sent+written : sent+chunk])
			if n > 0 {
				written += n
				c.stats.AddBytesSent(n)
			}
			if err != nil {
				return sent + written, err
			}
		}
		sent += chunk
	}

	return sent, nil
}

// receiveChunks reads len(out) bytes in chunks no larger than the configured
// buffer size, accumulating into out. Partial chunks are retried until the
// full count is satisfied or an error interrupts.
func (c *Connection) receiveChunks(out []byte) (int, error) {
	stream := c.Stream()
	buf := c.pool.Get().([]byte)
	defer c.pool.Put(buf)

	received := 0
	for received < len(out) {
		chunk := min(len(out)-received, c.bufferSize)

		n, err := stream.Read(buf[:chunk])
		if n > 0 {
			copy(out[received:], buf[:n])
			received += n
			c.stats.AddBytesReceived(n)
		}
		if err != nil {
			return received, err
		}
	}

	return received, nil
}
