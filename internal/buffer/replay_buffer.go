package buffer

import (
	"sort"
	"sync"

	v1 "github.com/marovole/HearthBulter/pkg/api/v1"
)

// ReplayBuffer keeps the most recent diff events in a ring so a stream
// client that reconnects can catch up from its last seen record id
// instead of refetching. Record ids are database-assigned and grow
// monotonically, which GetSince relies on.
type ReplayBuffer struct {
	mu     sync.RWMutex
	events []v1.DiffEvent
	size   int
	head   int
	isFull bool
}

func NewReplayBuffer(size int) *ReplayBuffer {
	if size <= 0 {
		size = 1000
	}
	return &ReplayBuffer{
		events: make([]v1.DiffEvent, size),
		size:   size,
	}
}

func (b *ReplayBuffer) Add(ev v1.DiffEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.events[b.head] = ev
	b.head = (b.head + 1) % b.size
	if b.head == 0 {
		b.isFull = true
	}
}

// GetSince returns the events with id > lastID. ok=false means lastID has
// already fallen out of the ring and the client needs a full resync.
func (b *ReplayBuffer) GetSince(lastID int64) ([]v1.DiffEvent, bool) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	count := b.head
	start := 0
	if b.isFull {
		count = b.size
		start = b.head
	}

	if count == 0 {
		return nil, true
	}

	// Anything older than the oldest retained event is unrecoverable here.
	if lastID < b.events[start].ID {
		return nil, false
	}

	// Logical index i maps to physical (start + i) % size.
	idx := sort.Search(count, func(i int) bool {
		return b.events[(start+i)%b.size].ID > lastID
	})
	if idx == count {
		return nil, true
	}

	result := make([]v1.DiffEvent, 0, count-idx)
	for i := idx; i < count; i++ {
		result = append(result, b.events[(start+i)%b.size])
	}
	return result, true
}
