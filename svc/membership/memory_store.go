package membership

import (
	"cmp"
	"context"
	"fmt"
	"slices"
	"sync"

	"github.com/google/uuid"
)

// MemoryStore keeps everything in process memory. It implements PlanStore,
// MemberStore, TransactionStore and PositionStore.
type MemoryStore struct {
	mu           sync.RWMutex
	plans        map[string]*Plan
	members      map[int64]*Membership
	transactions []*Transaction
	positions    map[int64]*Position
	nextPosition int64

	// failSave makes SaveMembers fail for the listed uids. Test hook.
	failSave map[int64]error
	// failRecord makes RecordTransaction fail. Test hook.
	failRecord error
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		plans:     make(map[string]*Plan),
		members:   make(map[int64]*Membership),
		positions: make(map[int64]*Position),
		failSave:  make(map[int64]error),
	}
}

// FailSaveFor makes every SaveMembers call that includes uid fail with err.
// Pass a nil error to clear it.
func (s *MemoryStore) FailSaveFor(uid int64, err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err == nil {
		delete(s.failSave, uid)
		return
	}
	s.failSave[uid] = err
}

func (s *MemoryStore) GetPlan(_ context.Context, id string) (*Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.plans[id]
	if !ok {
		return nil, ErrPlanNotFound
	}
	return p.Clone(), nil
}

func (s *MemoryStore) ListPlans(_ context.Context) ([]*Plan, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]*Plan, 0, len(s.plans))
	for _, p := range s.plans {
		out = append(out, p.Clone())
	}
	slices.SortFunc(out, func(a, b *Plan) int { return cmp.Compare(a.ID, b.ID) })
	return out, nil
}

func (s *MemoryStore) SavePlan(_ context.Context, plan *Plan) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.plans[plan.ID] = plan.Clone()
	return nil
}

func (s *MemoryStore) DeletePlan(_ context.Context, id, transferTo string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.plans[id]; !ok {
		return ErrPlanNotFound
	}
	if transferTo != "" {
		if _, ok := s.plans[transferTo]; !ok {
			return ErrPlanNotFound
		}
		for _, m := range s.members {
			if m.PlanID == id {
				m.PlanID = transferTo
			}
		}
	}
	delete(s.plans, id)
	return nil
}

func (s *MemoryStore) CountMembers(_ context.Context, planID string) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n := 0
	for _, m := range s.members {
		if m.PlanID == planID {
			n++
		}
	}
	return n, nil
}

func (s *MemoryStore) GetMember(_ context.Context, uid int64) (*Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	m, ok := s.members[uid]
	if !ok {
		return nil, ErrMemberNotFound
	}
	return m.Clone(), nil
}

func (s *MemoryStore) SaveMembers(_ context.Context, members ...*Membership) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, m := range members {
		if err, ok := s.failSave[m.UID]; ok {
			return err
		}
	}
	for _, m := range members {
		c := m.Clone()
		c.isNew = false
		s.members[m.UID] = c
	}
	return nil
}

func (s *MemoryStore) DeleteMember(_ context.Context, uid int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.members[uid]; !ok {
		return ErrMemberNotFound
	}
	delete(s.members, uid)
	return nil
}

func (s *MemoryStore) ListFamily(_ context.Context, guid string) ([]*Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Membership
	for _, m := range s.members {
		if m.GUID == guid {
			out = append(out, m.Clone())
		}
	}
	sortByUID(out)
	return out, nil
}

func (s *MemoryStore) ListMembers(_ context.Context, filter MemberFilter) ([]*Membership, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Membership
	for _, m := range s.members {
		if filter.Match(m) {
			out = append(out, m.Clone())
		}
	}
	sortByUID(out)
	return out, nil
}

func (s *MemoryStore) DecrementNotified(_ context.Context, uids ...int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, uid := range uids {
		if m, ok := s.members[uid]; ok && m.Notified > 0 {
			m.Notified--
		}
	}
	return nil
}

// FailRecordTransaction makes RecordTransaction fail with err until it is
// called again with nil.
func (s *MemoryStore) FailRecordTransaction(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failRecord = err
}

func (s *MemoryStore) RecordTransaction(_ context.Context, tx *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failRecord != nil {
		return s.failRecord
	}
	if tx.ExternalID != "" {
		for _, existing := range s.transactions {
			if existing.Gateway == tx.Gateway && existing.ExternalID == tx.ExternalID {
				return fmt.Errorf("duplicate transaction %s/%s", tx.Gateway, tx.ExternalID)
			}
		}
	}
	if tx.ID == "" {
		tx.ID = uuid.NewString()
	}
	c := *tx
	s.transactions = append(s.transactions, &c)
	return nil
}

func (s *MemoryStore) GetTransaction(_ context.Context, id string) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tx := range s.transactions {
		if tx.ID == id {
			c := *tx
			return &c, nil
		}
	}
	return nil, ErrTransactionNotFound
}

func (s *MemoryStore) FindTransaction(_ context.Context, gateway, externalID string) (*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, tx := range s.transactions {
		if externalID != "" && tx.Gateway == gateway && tx.ExternalID == externalID {
			c := *tx
			return &c, nil
		}
	}
	return nil, ErrTransactionNotFound
}

func (s *MemoryStore) ListTransactions(_ context.Context, uid int64) ([]*Transaction, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Transaction
	for _, tx := range s.transactions {
		if tx.UID == uid {
			c := *tx
			out = append(out, &c)
		}
	}
	slices.SortStableFunc(out, func(a, b *Transaction) int { return a.Date.Compare(b.Date) })
	return out, nil
}

func (s *MemoryStore) UpdateTransaction(_ context.Context, tx *Transaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i, existing := range s.transactions {
		if existing.ID == tx.ID {
			c := *tx
			s.transactions[i] = &c
			return nil
		}
	}
	return ErrTransactionNotFound
}

func (s *MemoryStore) GetPosition(_ context.Context, id int64) (*Position, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.positions[id]
	if !ok {
		return nil, ErrPositionNotFound
	}
	c := *p
	return &c, nil
}

func (s *MemoryStore) SavePosition(_ context.Context, p *Position) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if p.ID == 0 {
		s.nextPosition++
		p.ID = s.nextPosition
	} else if p.ID > s.nextPosition {
		s.nextPosition = p.ID
	}
	c := *p
	s.positions[p.ID] = &c
	return nil
}

func (s *MemoryStore) ListPositions(_ context.Context, groupTag string) ([]*Position, error) {
	return s.listPositions(func(p *Position) bool { return groupTag == "" || p.GroupTag == groupTag }), nil
}

func (s *MemoryStore) ListPositionsByOccupant(_ context.Context, uid int64) ([]*Position, error) {
	return s.listPositions(func(p *Position) bool { return p.OccupantUID == uid }), nil
}

func (s *MemoryStore) listPositions(keep func(*Position) bool) []*Position {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []*Position
	for _, p := range s.positions {
		if keep(p) {
			c := *p
			out = append(out, &c)
		}
	}
	slices.SortFunc(out, func(a, b *Position) int {
		if c := cmp.Compare(a.Order, b.Order); c != 0 {
			return c
		}
		return cmp.Compare(a.ID, b.ID)
	})
	return out
}

func sortByUID(ms []*Membership) {
	slices.SortFunc(ms, func(a, b *Membership) int { return cmp.Compare(a.UID, b.UID) })
}
