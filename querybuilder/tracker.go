package querybuilder

import (
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"

	"github.com/roach88/eqb/schema"
)

// Clock provides the time used to age tracker entries.
type Clock interface {
	Now() time.Time
}

type systemClock struct{}

func (systemClock) Now() time.Time { return time.Now() }

// Tracker remembers the database ids of entities returned by earlier
// queries so later statements can refer to them by id.
//
// Entries live in an arena of slots. An entity holds a handle of slot and
// generation; releasing or sweeping a slot bumps its generation so stale
// handles stop resolving. The entity itself is never retained.
//
// Handles carry the id of the tracker that issued them, so an entity
// tracked by one tracker is unknown to every other.
//
// Thread-safety: all methods are safe for concurrent use.
type Tracker struct {
	id    uint64
	mu    sync.Mutex
	clock Clock
	slots []slot
	free  []uint32
	live  int
}

type slot struct {
	id         uuid.UUID
	generation uint32
	tracked    time.Time
	used       bool
}

var trackerIDs atomic.Uint64

// TrackerOption configures a Tracker.
type TrackerOption func(*Tracker)

// WithClock sets the clock used to age entries.
func WithClock(c Clock) TrackerOption {
	return func(t *Tracker) { t.clock = c }
}

// NewTracker returns an empty tracker.
func NewTracker(opts ...TrackerOption) *Tracker {
	t := &Tracker{id: trackerIDs.Add(1), clock: systemClock{}}
	for _, opt := range opts {
		opt(t)
	}
	return t
}

// Track associates e with id, replacing any earlier association made by
// this tracker. A handle issued by another tracker is replaced.
func (t *Tracker) Track(e schema.Entity, id uuid.UUID) {
	obj := schema.ObjectOf(e)

	t.mu.Lock()
	defer t.mu.Unlock()

	if h, ok := obj.TrackerHandle(); ok && t.valid(h) {
		s := &t.slots[h.Slot]
		s.id = id
		s.tracked = t.clock.Now()
		return
	}

	var index uint32
	if n := len(t.free); n > 0 {
		index = t.free[n-1]
		t.free = t.free[:n-1]
	} else {
		index = uint32(len(t.slots))
		t.slots = append(t.slots, slot{})
	}
	s := &t.slots[index]
	s.id = id
	s.tracked = t.clock.Now()
	s.used = true
	t.live++
	obj.SetTrackerHandle(schema.Handle{Owner: t.id, Slot: index, Generation: s.generation})
}

// Lookup returns the id tracked for obj.
func (t *Tracker) Lookup(obj *schema.Object) (uuid.UUID, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := obj.TrackerHandle()
	if !ok || !t.valid(h) {
		return uuid.Nil, false
	}
	return t.slots[h.Slot].id, true
}

// Release forgets e. Entities tracked by another tracker are left alone.
func (t *Tracker) Release(e schema.Entity) {
	obj := schema.ObjectOf(e)

	t.mu.Lock()
	defer t.mu.Unlock()

	h, ok := obj.TrackerHandle()
	if !ok || h.Owner != t.id {
		return
	}
	obj.ClearTrackerHandle()
	if t.valid(h) {
		t.expire(h.Slot)
	}
}

// Sweep expires entries tracked longer than olderThan ago and returns how
// many it expired.
func (t *Tracker) Sweep(olderThan time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()

	cutoff := t.clock.Now().Add(-olderThan)
	n := 0
	for i := range t.slots {
		if t.slots[i].used && t.slots[i].tracked.Before(cutoff) {
			t.expire(uint32(i))
			n++
		}
	}
	return n
}

// Len is the number of live entries.
func (t *Tracker) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.live
}

func (t *Tracker) valid(h schema.Handle) bool {
	if h.Owner != t.id || int(h.Slot) >= len(t.slots) {
		return false
	}
	s := t.slots[h.Slot]
	return s.used && s.generation == h.Generation
}

func (t *Tracker) expire(index uint32) {
	s := &t.slots[index]
	s.used = false
	s.id = uuid.Nil
	s.generation++
	t.free = append(t.free, index)
	t.live--
}
