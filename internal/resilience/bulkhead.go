package resilience

import (
	"os"
	"sync"
	"time"
)

// Bulkhead limits how many speedviz processes talk to a host at once.
// Slots are tracked by PID so slots held by dead processes are reclaimed.
// Goroutines of one process share that process's slot.
type Bulkhead struct {
	config BulkheadConfig
	store  *Store
	host   string
	now    func() time.Time
	pid    int

	mu   sync.Mutex
	refs int
}

// NewBulkhead returns a bulkhead for host.
func NewBulkhead(store *Store, host string, config BulkheadConfig) *Bulkhead {
	if config.MaxConcurrent <= 0 {
		config.MaxConcurrent = 10
	}
	return &Bulkhead{config: config, store: store, host: host, now: time.Now, pid: os.Getpid()}
}

func reapSlots(b *BulkheadState) {
	alive := make([]int, 0, len(b.ActivePIDs))
	for _, pid := range b.ActivePIDs {
		if isProcessAlive(pid) {
			alive = append(alive, pid)
		}
	}
	b.ActivePIDs = alive
}

// Acquire takes a slot for this process. It returns false when every slot
// is held by another live process.
func (b *Bulkhead) Acquire() (bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.refs > 0 {
		b.refs++
		return true, nil
	}

	acquired := false
	err := b.store.Update(func(s *State) error {
		bh := &s.Host(b.host).Bulkhead
		reapSlots(bh)
		if !bh.HasPID(b.pid) && bh.Count() >= b.config.MaxConcurrent {
			return nil
		}
		bh.AddPID(b.pid)
		s.UpdatedAt = b.now()
		acquired = true
		return nil
	})
	if err != nil {
		acquired = true // fail open
	}
	if acquired {
		b.refs++
	}
	return acquired, nil
}

// Release gives back one hold on the slot. The slot itself is freed when
// the last in-process holder releases.
func (b *Bulkhead) Release() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.refs > 1 {
		b.refs--
		return nil
	}
	b.refs = 0
	return b.store.Update(func(s *State) error {
		s.Host(b.host).Bulkhead.RemovePID(b.pid)
		s.UpdatedAt = b.now()
		return nil
	})
}

// InUse returns the number of live processes holding a slot.
func (b *Bulkhead) InUse() (int, error) {
	state, err := b.store.Load()
	if err != nil {
		return 0, err
	}
	bh := state.Peek(b.host).Bulkhead
	reapSlots(&bh)
	return bh.Count(), nil
}

// Available returns free slots, clamped to [0, MaxConcurrent].
func (b *Bulkhead) Available() (int, error) {
	n, err := b.InUse()
	if err != nil {
		return b.config.MaxConcurrent, err
	}
	return max(0, b.config.MaxConcurrent-n), nil
}

// Reset frees every slot.
func (b *Bulkhead) Reset() error {
	b.mu.Lock()
	b.refs = 0
	b.mu.Unlock()
	return b.store.Update(func(s *State) error {
		s.Host(b.host).Bulkhead = BulkheadState{ActivePIDs: []int{}}
		s.UpdatedAt = b.now()
		return nil
	})
}
