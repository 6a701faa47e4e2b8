// Package dispatch decouples protocol processing from decision logic. A
// Dispatcher is itself a battle.Listener: the connection notifies it inline,
// it enqueues the notification and returns immediately, and a bounded pool
// of workers delivers the call to whichever listener is attached under the
// state's battle ID.
package dispatch

import (
	"errors"
	"fmt"
	"sync"

	"showdown-engine/battle"
	"showdown-engine/internal/log"
)

var (
	// ErrInvalidID rejects battle identifier 0, which is reserved.
	ErrInvalidID = errors.New("battle identifier 0 is reserved")
	// ErrDuplicateListener rejects attaching an identifier twice.
	ErrDuplicateListener = errors.New("listener already attached for identifier")
	// ErrTooManyListeners rejects attaches beyond capacity, reserved slots
	// included.
	ErrTooManyListeners = errors.New("listener capacity exhausted")
	// ErrNotAttached rejects removal or notification of an unknown
	// identifier.
	ErrNotAttached = errors.New("no listener attached for identifier")
	// ErrQueueFull reports a notification dropped because the queue is at
	// capacity. Enqueue never blocks; blocking here could deadlock the
	// protocol goroutine against a stalled worker.
	ErrQueueFull = errors.New("dispatch queue is full")
	// ErrClosed reports use after Close.
	ErrClosed = errors.New("dispatcher is closed")
	// ErrNoSlots reports freeing more reserved slots than are held.
	ErrNoSlots = errors.New("fewer slots reserved than freed")
)

type taskKind int

const (
	taskOrders taskKind = iota
	taskCorrected
	taskEnd
	taskMessage
)

type task struct {
	id   uint64
	kind taskKind
	st   *battle.State
	errs [3]string
	line string
}

// Dispatcher routes battle notifications to attached listeners through a
// worker pool. All methods are safe for concurrent use.
type Dispatcher struct {
	mu        sync.Mutex
	cond      *sync.Cond
	listeners map[uint64]battle.Listener
	reserved  int
	capacity  int
	queue     []task
	queueCap  int
	closed    bool
	wg        sync.WaitGroup
}

// New starts a dispatcher with the given worker count, listener capacity and
// queue capacity.
func New(workers, maxListeners, queueCapacity int) *Dispatcher {
	if workers < 1 {
		workers = 1
	}
	if queueCapacity < 1 {
		queueCapacity = 1
	}
	d := &Dispatcher{
		listeners: make(map[uint64]battle.Listener),
		capacity:  maxListeners,
		queueCap:  queueCapacity,
	}
	d.cond = sync.NewCond(&d.mu)
	d.wg.Add(workers)
	for i := 0; i < workers; i++ {
		go d.worker()
	}
	return d
}

// Close stops accepting work, lets queued notifications drain and waits for
// the workers to exit.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.cond.Broadcast()
	d.wg.Wait()
}

// Attach registers a listener under a battle identifier.
func (d *Dispatcher) Attach(id uint64, l battle.Listener) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.attachLocked(id, l)
}

func (d *Dispatcher) attachLocked(id uint64, l battle.Listener) error {
	if d.closed {
		return ErrClosed
	}
	if id == 0 {
		return ErrInvalidID
	}
	if _, dup := d.listeners[id]; dup {
		return fmt.Errorf("%w: %d", ErrDuplicateListener, id)
	}
	if len(d.listeners)+d.reserved >= d.capacity {
		return ErrTooManyListeners
	}
	d.listeners[id] = l
	return nil
}

// AttachMany registers several listeners atomically: either all ids attach
// or none do.
func (d *Dispatcher) AttachMany(ids []uint64, ls []battle.Listener) error {
	if len(ids) != len(ls) {
		return fmt.Errorf("got %d ids for %d listeners", len(ids), len(ls))
	}
	d.mu.Lock()
	defer d.mu.Unlock()
	for i, id := range ids {
		if err := d.attachLocked(id, ls[i]); err != nil {
			for _, attached := range ids[:i] {
				delete(d.listeners, attached)
			}
			return err
		}
	}
	return nil
}

// Remove detaches the listener for an identifier. Queued notifications for
// it are dropped at delivery time.
func (d *Dispatcher) Remove(id uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if _, ok := d.listeners[id]; !ok {
		return fmt.Errorf("%w: %d", ErrNotAttached, id)
	}
	delete(d.listeners, id)
	return nil
}

// RemoveMany detaches a batch atomically: if any identifier is not
// attached, none are removed.
func (d *Dispatcher) RemoveMany(ids []uint64) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	for _, id := range ids {
		if _, ok := d.listeners[id]; !ok {
			return fmt.Errorf("%w: %d", ErrNotAttached, id)
		}
	}
	for _, id := range ids {
		delete(d.listeners, id)
	}
	return nil
}

// ReserveSlots holds capacity for listeners that will attach later, so a
// batch of battles can be guaranteed room before any of them starts.
func (d *Dispatcher) ReserveSlots(n int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if len(d.listeners)+d.reserved+n > d.capacity {
		return ErrTooManyListeners
	}
	d.reserved += n
	return nil
}

// FreeSlots releases previously reserved capacity.
func (d *Dispatcher) FreeSlots(n int) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if n > d.reserved {
		return ErrNoSlots
	}
	d.reserved -= n
	return nil
}

// Attached reports whether an identifier currently has a listener.
func (d *Dispatcher) Attached(id uint64) bool {
	d.mu.Lock()
	defer d.mu.Unlock()
	_, ok := d.listeners[id]
	return ok
}

// enqueue adds a task, placing corrected-orders notifications ahead of any
// queued work for the same battle identifier.
func (d *Dispatcher) enqueue(t task) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	if d.closed {
		return ErrClosed
	}
	if _, ok := d.listeners[t.id]; !ok {
		return fmt.Errorf("%w: %d", ErrNotAttached, t.id)
	}
	if len(d.queue) >= d.queueCap {
		return ErrQueueFull
	}
	if t.kind == taskCorrected {
		at := len(d.queue)
		for i, queued := range d.queue {
			if queued.id == t.id && queued.kind != taskCorrected {
				at = i
				break
			}
		}
		d.queue = append(d.queue, task{})
		copy(d.queue[at+1:], d.queue[at:])
		d.queue[at] = t
	} else {
		d.queue = append(d.queue, t)
	}
	d.cond.Signal()
	return nil
}

func (d *Dispatcher) worker() {
	defer d.wg.Done()
	for {
		d.mu.Lock()
		for len(d.queue) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.queue) == 0 && d.closed {
			d.mu.Unlock()
			return
		}
		t := d.queue[0]
		d.queue = d.queue[1:]
		l := d.listeners[t.id]
		d.mu.Unlock()
		if l == nil {
			continue
		}
		var err error
		switch t.kind {
		case taskOrders:
			err = l.RequestOrders(t.st)
		case taskCorrected:
			err = l.RequestCorrectedOrders(t.st, t.errs)
		case taskEnd:
			err = l.EndBattle(t.st)
		case taskMessage:
			if ml, ok := l.(battle.MessageListener); ok {
				err = ml.Message(t.id, t.line)
			}
		}
		if err != nil {
			log.Error("listener notification failed", "id", t.id, "kind", int(t.kind), "err", err)
		}
	}
}

// RequestOrders enqueues a decision notification for the state's battle.
// The queued task carries its own copy of the state: the caller may keep
// mutating st after the call without sharing memory with a worker.
func (d *Dispatcher) RequestOrders(st *battle.State) error {
	return d.enqueue(task{id: st.ID(), kind: taskOrders, st: st.Clone()})
}

// RequestCorrectedOrders enqueues a correction, serviced before any queued
// RequestOrders or EndBattle for the same battle. The task carries its own
// copy of the state, like RequestOrders.
func (d *Dispatcher) RequestCorrectedOrders(st *battle.State, errs [3]string) error {
	return d.enqueue(task{id: st.ID(), kind: taskCorrected, st: st.Clone(), errs: errs})
}

// EndBattle enqueues the final notification for the state's battle. The task
// carries its own copy of the state, like RequestOrders.
func (d *Dispatcher) EndBattle(st *battle.State) error {
	return d.enqueue(task{id: st.ID(), kind: taskEnd, st: st.Clone()})
}

// Message enqueues a raw log line for listeners that want them.
func (d *Dispatcher) Message(battleID uint64, line string) error {
	err := d.enqueue(task{id: battleID, kind: taskMessage, line: line})
	if errors.Is(err, ErrNotAttached) {
		return nil
	}
	return err
}
