package task

import (
	"sync"

	"github.com/phrazzld/taskflow/internal/substrate"
)

// producerState is shared by every producer of a run. producing only ever
// goes from true to false.
type producerState struct {
	nextID    uint64
	producing bool
	limit     uint64
}

// IDCounter hands out task ids to concurrent producers and carries the
// shutdown flag they observe. The flag and the counter live behind the same
// guard so that checking the flag and reserving an id are one atomic step.
type IDCounter struct {
	state *substrate.Guarded[producerState]
}

// NewIDCounter creates a counter starting at id 0. A non-zero limit stops
// production once limit ids have been issued.
func NewIDCounter(mu sync.Locker, limit uint64) *IDCounter {
	return &IDCounter{
		state: substrate.NewGuarded(mu, producerState{producing: true, limit: limit}),
	}
}

// TryReserveNext reserves the next id. ok is false once production has been
// stopped, in which case the caller must stop producing.
func (c *IDCounter) TryReserveNext() (id uint64, ok bool, err error) {
	err = c.state.With(func(s *producerState) {
		if !s.producing {
			return
		}
		if s.limit > 0 && s.nextID >= s.limit {
			s.producing = false
			return
		}
		id = s.nextID
		s.nextID++
		ok = true
	})
	return id, ok, err
}

// RequestStop stops production. changed is true only for the call that
// actually flipped the flag.
func (c *IDCounter) RequestStop() (changed bool, err error) {
	err = c.state.With(func(s *producerState) {
		changed = s.producing
		s.producing = false
	})
	return changed, err
}

// Producing reports whether ids are still being issued.
func (c *IDCounter) Producing() (producing bool, err error) {
	err = c.state.With(func(s *producerState) {
		producing = s.producing
	})
	return producing, err
}

// Issued returns how many ids have been reserved so far.
func (c *IDCounter) Issued() (issued uint64, err error) {
	err = c.state.With(func(s *producerState) {
		issued = s.nextID
	})
	return issued, err
}
