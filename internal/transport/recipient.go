package transport

import "sync/atomic"

// Handle identifies the current recipient: None or Active(id).
type Handle uint32

// None is the handle value when no recipient is known.
const None Handle = 0

// Active reports whether h refers to a recipient.
func (h Handle) Active() bool { return h != None }

// ID returns the recipient identifier, 0 for None.
func (h Handle) ID() uint32 { return uint32(h) }

// Peer is one recipient tracked by a Recipient slot.
type Peer[C any] struct {
	ID   uint32
	Conn C
}

// Recipient is the connection manager embedded in connection-oriented
// transports. It holds at most one peer, written by link-event callbacks and
// read by the send path. Every update and read is a single atomic pointer
// operation, so no reader can observe a half-written handle.
type Recipient[C any] struct {
	cur    atomic.Pointer[Peer[C]]
	nextID atomic.Uint32
}

// Attach makes conn the current recipient and returns the peer it superseded,
// or nil when there was none.
func (r *Recipient[C]) Attach(conn C) (cur, prev *Peer[C]) {
	id := r.nextID.Add(1)
	if id == 0 {
		id = r.nextID.Add(1)
	}
	p := &Peer[C]{ID: id, Conn: conn}
	return p, r.cur.Swap(p)
}

// Detach clears the slot only if p is still the current recipient.
// A stale peer can therefore never evict a newer one.
func (r *Recipient[C]) Detach(p *Peer[C]) bool {
	if p == nil {
		return false
	}
	return r.cur.CompareAndSwap(p, nil)
}

// Clear drops whatever recipient is current and returns it.
func (r *Recipient[C]) Clear() *Peer[C] {
	return r.cur.Swap(nil)
}

// Current returns the current peer or nil.
func (r *Recipient[C]) Current() *Peer[C] {
	return r.cur.Load()
}

// Handle returns the current recipient as a tagged value.
func (r *Recipient[C]) Handle() Handle {
	if p := r.cur.Load(); p != nil {
		return Handle(p.ID)
	}
	return None
}
