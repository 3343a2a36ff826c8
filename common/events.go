package common

import (
	"sync/atomic"

	"github.com/lni/dragonboat/v4/logger"
	"github.com/puzpuzpuz/xsync/v3"
)

var eventsLogger = logger.GetLogger("common")

// --------------------------------------------------------------------------
// Handler types
// --------------------------------------------------------------------------

// ConnectedHandler is invoked after a connection becomes usable
type ConnectedHandler func(info ConnectionInfo)

// DisconnectedHandler is invoked exactly once per torn down connection
type DisconnectedHandler func(info ConnectionInfo, reason DisconnectReason)

// ExceptionHandler is invoked for unexpected internal faults, in addition to
// whatever operation-level status applies
type ExceptionHandler func(context string, err error)

// Subscription identifies one registered handler. Closing it deregisters
// the handler; a closed subscription is inert.
type Subscription struct {
	cancel func()
}

// Close deregisters the handler. Safe to call multiple times.
func (s Subscription) Close() {
	if s.cancel != nil {
		s.cancel()
	}
}

// --------------------------------------------------------------------------
// Events hub
// --------------------------------------------------------------------------

// Events is the notification hub shared by the client and server facades.
// Every registered handler is invoked once per event, in no particular
// order; a panicking handler is logged and swallowed so it can neither
// interrupt the remaining handlers nor propagate into the core.
type Events struct {
	nextID       uint64
	connected    *xsync.MapOf[uint64, ConnectedHandler]
	disconnected *xsync.MapOf[uint64, DisconnectedHandler]
	exception    *xsync.MapOf[uint64, ExceptionHandler]
}

// NewEvents creates an empty notification hub
func NewEvents() *Events {
	return &Events{
		connected:    xsync.NewMapOf[uint64, ConnectedHandler](),
		disconnected: xsync.NewMapOf[uint64, DisconnectedHandler](),
		exception:    xsync.NewMapOf[uint64, ExceptionHandler](),
	}
}

// OnConnected registers a handler for the connected notification
func (e *Events) OnConnected(h ConnectedHandler) Subscription {
	id := atomic.AddUint64(&e.nextID, 1)
	e.connected.Store(id, h)
	return Subscription{cancel: func() { e.connected.Delete(id) }}
}

// OnDisconnected registers a handler for the disconnected notification
func (e *Events) OnDisconnected(h DisconnectedHandler) Subscription {
	id := atomic.AddUint64(&e.nextID, 1)
	e.disconnected.Store(id, h)
	return Subscription{cancel: func() { e.disconnected.Delete(id) }}
}

// OnException registers a handler for the exception notification
func (e *Events) OnException(h ExceptionHandler) Subscription {
	id := atomic.AddUint64(&e.nextID, 1)
	e.exception.Store(id, h)
	return Subscription{cancel: func() { e.exception.Delete(id) }}
}

// --------------------------------------------------------------------------
// Dispatch
// --------------------------------------------------------------------------

// FireConnected notifies all connected handlers
func (e *Events) FireConnected(info ConnectionInfo) {
	e.connected.Range(func(id uint64, h ConnectedHandler) bool {
		invoke(func() { h(info) })
		return true
	})
}

// FireDisconnected notifies all disconnected handlers
func (e *Events) FireDisconnected(info ConnectionInfo, reason DisconnectReason) {
	e.disconnected.Range(func(id uint64, h DisconnectedHandler) bool {
		invoke(func() { h(info, reason) })
		return true
	})
}

// FireException notifies all exception handlers
func (e *Events) FireException(context string, err error) {
	e.exception.Range(func(id uint64, h ExceptionHandler) bool {
		invoke(func() { h(context, err) })
		return true
	})
}

// invoke runs a handler inside a protective boundary. A handler failure is
// logged and swallowed.
func invoke(f func()) {
	defer func() {
		if r := recover(); r != nil {
			eventsLogger.Errorf("notification handler panicked: %v", r)
		}
	}()
	f()
}
