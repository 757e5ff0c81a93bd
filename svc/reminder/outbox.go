package reminder

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// Entry is a reminder that was sent and has not been cleared by a renewal.
type Entry struct {
	ID        string    `json:"id"`
	UID       int64     `json:"uid"`
	Email     string    `json:"email"`
	Subject   string    `json:"subject"`
	Expires   time.Time `json:"expires"`
	CreatedAt time.Time `json:"created_at"`
}

// Outbox keeps the pending reminders of each account.
type Outbox interface {
	Record(ctx context.Context, e *Entry) error
	List(ctx context.Context, uid int64) ([]*Entry, error)
	Clear(ctx context.Context, uid int64) error
}

// MemoryOutbox is an in-process Outbox.
type MemoryOutbox struct {
	mu      sync.RWMutex
	entries map[int64][]*Entry
	now     func() time.Time
}

func NewMemoryOutbox() *MemoryOutbox {
	return &MemoryOutbox{entries: make(map[int64][]*Entry), now: time.Now}
}

func (o *MemoryOutbox) Record(_ context.Context, e *Entry) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	prepare(e, o.now)
	c := *e
	o.entries[e.UID] = append(o.entries[e.UID], &c)
	return nil
}

func (o *MemoryOutbox) List(_ context.Context, uid int64) ([]*Entry, error) {
	o.mu.RLock()
	defer o.mu.RUnlock()
	out := make([]*Entry, 0, len(o.entries[uid]))
	for _, e := range o.entries[uid] {
		c := *e
		out = append(out, &c)
	}
	slices.SortFunc(out, func(a, b *Entry) int { return a.CreatedAt.Compare(b.CreatedAt) })
	return out, nil
}

func (o *MemoryOutbox) Clear(_ context.Context, uid int64) error {
	o.mu.Lock()
	defer o.mu.Unlock()
	delete(o.entries, uid)
	return nil
}

func prepare(e *Entry, now func() time.Time) {
	if e.ID == "" {
		e.ID = uuid.NewString()
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = now().UTC()
	}
}
