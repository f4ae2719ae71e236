package event

import "sync/atomic"

// ring is a fixed-size multi-producer, single-consumer queue of events.
//
// Producers never block: a full ring rejects the push. Each slot carries a
// sequence number so the consumer only reads slots whose write completed.
type ring struct {
	_     [0]func() // prevent accidental copying.
	head  atomic.Uint64
	tail  atomic.Uint64
	mask  uint64
	slots []ringSlot
}

type ringSlot struct {
	seq atomic.Uint64
	ev  SchedEvent
}

func newRing(size int) *ring {
	n := uint64(1)
	for n < uint64(size) {
		n <<= 1
	}
	r := &ring{mask: n - 1, slots: make([]ringSlot, n)}
	for i := range r.slots {
		r.slots[i].seq.Store(uint64(i))
	}
	return r
}

func (r *ring) capacity() int { return len(r.slots) }

// tryPush enqueues ev, returning false if the ring is full.
func (r *ring) tryPush(ev SchedEvent) bool {
	for {
		pos := r.head.Load()
		slot := &r.slots[pos&r.mask]
		dif := int64(slot.seq.Load()) - int64(pos)
		switch {
		case dif == 0:
			// Reserve the slot, then publish it by bumping its sequence.
			if r.head.CompareAndSwap(pos, pos+1) {
				slot.ev = ev
				slot.seq.Store(pos + 1)
				return true
			}
		case dif < 0:
			return false
		}
	}
}

// tryPop dequeues one event. It must only be called by the single consumer.
func (r *ring) tryPop() (SchedEvent, bool) {
	pos := r.tail.Load()
	slot := &r.slots[pos&r.mask]
	if slot.seq.Load() != pos+1 {
		return SchedEvent{}, false
	}
	ev := slot.ev
	slot.seq.Store(pos + uint64(len(r.slots)))
	r.tail.Store(pos + 1)
	return ev, true
}

// len is approximate while producers are active.
func (r *ring) len() int {
	return int(r.head.Load() - r.tail.Load())
}
