package saga

import (
	"sync"
	"time"
)

// SignalName identifies an external signal kind.
type SignalName string

const (
	SignalCancelOrder  SignalName = "cancelOrder"
	SignalUpdateStatus SignalName = "updateStatus"
	SignalSuspendUser  SignalName = "suspendUser"
	SignalUpdateEmail  SignalName = "updateEmail"
)

// Signal is an asynchronous message delivered to a running saga. Signals
// are only actioned at step boundaries; a step in flight is never
// interrupted.
type Signal struct {
	Name       SignalName
	Value      string
	ReceivedAt time.Time
}

// SignalChannel carries signals from external callers to a single saga
// execution. One writer side (HTTP handlers, queue consumers), one reader
// side (the coordinator polling between steps). Polling never blocks.
type SignalChannel struct {
	mu          sync.Mutex
	pending     []Signal
	cancelSeen  bool
	suspendSeen bool
}

// NewSignalChannel creates an empty signal channel.
func NewSignalChannel() *SignalChannel {
	return &SignalChannel{}
}

// Raise delivers a signal. Cancellation and suspension are delivered at
// most once: the first signal of the kind wins and later ones are dropped.
// Returns whether the signal was accepted.
func (c *SignalChannel) Raise(name SignalName, value string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	switch name {
	case SignalCancelOrder:
		if c.cancelSeen {
			return false
		}
		c.cancelSeen = true
	case SignalSuspendUser:
		if c.suspendSeen {
			return false
		}
		c.suspendSeen = true
	}

	c.pending = append(c.pending, Signal{Name: name, Value: value, ReceivedAt: time.Now()})
	return true
}

// Poll removes and returns the oldest pending signal, if any. It never
// blocks waiting for a signal to arrive.
func (c *SignalChannel) Poll() (Signal, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if len(c.pending) == 0 {
		return Signal{}, false
	}

	sig := c.pending[0]
	c.pending = c.pending[1:]
	return sig, true
}

// Drain removes and returns all pending signals in delivery order.
func (c *SignalChannel) Drain() []Signal {
	c.mu.Lock()
	defer c.mu.Unlock()

	drained := c.pending
	c.pending = nil
	return drained
}
