package reminder

import (
	"context"
	"sync"
)

// MemoryDirectory is a Directory backed by a map.
type MemoryDirectory struct {
	mu         sync.RWMutex
	recipients map[int64]Recipient
}

func NewMemoryDirectory() *MemoryDirectory {
	return &MemoryDirectory{recipients: make(map[int64]Recipient)}
}

func (d *MemoryDirectory) Put(uid int64, r Recipient) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.recipients[uid] = r
}

func (d *MemoryDirectory) Lookup(_ context.Context, uid int64) (Recipient, error) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	r, ok := d.recipients[uid]
	if !ok {
		return Recipient{}, ErrRecipientNotFound
	}
	return r, nil
}
