package store

import (
	"context"
	"sync"
	"time"

	"receiptledger/internal/ledger/models"
	"receiptledger/internal/ledger/ports"
	"receiptledger/pkg/domain"
	dErrors "receiptledger/pkg/domain-errors"
	"receiptledger/pkg/platform/sentinel"
)

// InMemory is the single-process ledger backend. One writer at a time holds the
// lock for a whole RunInTx; writes are journaled and undone if the unit of work fails.
type InMemory struct {
	mu    sync.RWMutex
	state memState

	published uint64
}

type memState struct {
	businesses  map[domain.Account]*models.Business
	receipts    []*models.Receipt
	byRecipient map[domain.Account][]domain.ReceiptID
	byIssuer    map[domain.Account][]domain.ReceiptID
	governance  *models.Governance
	events      []*models.Event
}

// NewInMemory creates an empty ledger governed by owner.
func NewInMemory(owner domain.Account, now time.Time) *InMemory {
	return &InMemory{
		state: memState{
			businesses:  make(map[domain.Account]*models.Business),
			byRecipient: make(map[domain.Account][]domain.ReceiptID),
			byIssuer:    make(map[domain.Account][]domain.ReceiptID),
			governance:  models.NewGovernance(owner, now),
		},
	}
}

// RunInTx runs fn as the only writer. On error every write fn made is undone.
func (m *InMemory) RunInTx(ctx context.Context, fn func(ctx context.Context, stores ports.Stores) error) error {
	if err := ctx.Err(); err != nil {
		return dErrors.Wrap(err, dErrors.CodeTimeout, "transaction aborted: context cancelled")
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	j := &journal{}
	if err := fn(ctx, m.stores(j)); err != nil {
		j.rollback()
		return err
	}
	return nil
}

// Stores returns lock-per-call stores for reads outside a transaction.
func (m *InMemory) Stores() ports.Stores {
	return m.stores(nil)
}

func (m *InMemory) stores(j *journal) ports.Stores {
	v := &memView{m: m, j: j}
	return ports.Stores{
		Businesses: &memBusinesses{v},
		Receipts:   &memReceipts{v},
		Governance: &memGovernance{v},
		Events:     &memEvents{v},
	}
}

// Unpublished returns events after the publish cursor, in sequence order.
func (m *InMemory) Unpublished(_ context.Context, limit int) ([]*models.Event, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	start := int(m.published)
	end := len(m.state.events)
	if limit > 0 && end-start > limit {
		end = start + limit
	}
	out := make([]*models.Event, 0, end-start)
	for _, ev := range m.state.events[start:end] {
		c := *ev
		out = append(out, &c)
	}
	return out, nil
}

// MarkPublished advances the publish cursor.
func (m *InMemory) MarkPublished(_ context.Context, through uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if through > uint64(len(m.state.events)) {
		return sentinel.ErrInvalidState
	}
	if through > m.published {
		m.published = through
	}
	return nil
}

// journal records undo steps for one unit of work.
type journal struct {
	undo []func()
}

func (j *journal) record(fn func()) {
	j.undo = append(j.undo, fn)
}

func (j *journal) rollback() {
	for i := len(j.undo) - 1; i >= 0; i-- {
		j.undo[i]()
	}
	j.undo = nil
}

// memView either runs inside RunInTx (j != nil, lock already held) or takes the
// lock per call.
type memView struct {
	m *InMemory
	j *journal
}

func (v *memView) read() func() {
	if v.j != nil {
		return func() {}
	}
	v.m.mu.RLock()
	return v.m.mu.RUnlock
}

func (v *memView) write() func() {
	if v.j != nil {
		return func() {}
	}
	v.m.mu.Lock()
	return v.m.mu.Unlock
}

func (v *memView) record(fn func()) {
	if v.j != nil {
		v.j.record(fn)
	}
}

type memBusinesses struct{ *memView }

func (s *memBusinesses) Create(_ context.Context, b *models.Business) error {
	defer s.write()()
	st := &s.m.state
	if _, ok := st.businesses[b.Owner]; ok {
		return sentinel.ErrAlreadyUsed
	}
	st.businesses[b.Owner] = b.Clone()
	s.record(func() { delete(st.businesses, b.Owner) })
	return nil
}

func (s *memBusinesses) FindByOwner(_ context.Context, owner domain.Account) (*models.Business, error) {
	defer s.read()()
	b, ok := s.m.state.businesses[owner]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	return b.Clone(), nil
}

func (s *memBusinesses) Update(_ context.Context, b *models.Business) error {
	defer s.write()()
	st := &s.m.state
	prev, ok := st.businesses[b.Owner]
	if !ok {
		return sentinel.ErrNotFound
	}
	st.businesses[b.Owner] = b.Clone()
	s.record(func() { st.businesses[b.Owner] = prev })
	return nil
}

type memReceipts struct{ *memView }

func (s *memReceipts) NextID(_ context.Context) (domain.ReceiptID, error) {
	defer s.read()()
	return domain.ReceiptID(len(s.m.state.receipts) + 1), nil
}

func (s *memReceipts) Create(_ context.Context, r *models.Receipt) error {
	defer s.write()()
	st := &s.m.state
	if r.ID != domain.ReceiptID(len(st.receipts)+1) {
		return sentinel.ErrInvalidState
	}
	st.receipts = append(st.receipts, r.Clone())
	st.byRecipient[r.Recipient] = append(st.byRecipient[r.Recipient], r.ID)
	st.byIssuer[r.Issuer] = append(st.byIssuer[r.Issuer], r.ID)
	s.record(func() {
		st.receipts = st.receipts[:len(st.receipts)-1]
		st.byRecipient[r.Recipient] = dropLast(st.byRecipient[r.Recipient])
		st.byIssuer[r.Issuer] = dropLast(st.byIssuer[r.Issuer])
	})
	return nil
}

func (s *memReceipts) FindByID(_ context.Context, id domain.ReceiptID) (*models.Receipt, error) {
	defer s.read()()
	r := s.m.state.receipt(id)
	if r == nil {
		return nil, sentinel.ErrNotFound
	}
	return r.Clone(), nil
}

func (s *memReceipts) Update(_ context.Context, r *models.Receipt) error {
	defer s.write()()
	st := &s.m.state
	prev := st.receipt(r.ID)
	if prev == nil {
		return sentinel.ErrNotFound
	}
	idx := int(r.ID) - 1
	st.receipts[idx] = r.Clone()
	s.record(func() { st.receipts[idx] = prev })
	return nil
}

func (s *memReceipts) ListIDs(_ context.Context, party models.Party, account domain.Account) ([]domain.ReceiptID, error) {
	defer s.read()()
	var ids []domain.ReceiptID
	switch party {
	case models.PartyRecipient:
		ids = s.m.state.byRecipient[account]
	case models.PartyIssuer:
		ids = s.m.state.byIssuer[account]
	default:
		return nil, dErrors.New(dErrors.CodeInvalidInput, "unknown party")
	}
	return append([]domain.ReceiptID(nil), ids...), nil
}

func (s *memReceipts) PendingIDs(_ context.Context, issuer domain.Account) ([]domain.ReceiptID, error) {
	defer s.read()()
	var out []domain.ReceiptID
	for _, id := range s.m.state.byIssuer[issuer] {
		if r := s.m.state.receipt(id); r != nil && r.Status == models.StatusRequested {
			out = append(out, id)
		}
	}
	return out, nil
}

func (s *memReceipts) Count(_ context.Context) (uint64, error) {
	defer s.read()()
	return uint64(len(s.m.state.receipts)), nil
}

type memGovernance struct{ *memView }

func (s *memGovernance) Load(_ context.Context) (*models.Governance, error) {
	defer s.read()()
	return s.m.state.governance.Clone(), nil
}

func (s *memGovernance) Save(_ context.Context, g *models.Governance) error {
	defer s.write()()
	st := &s.m.state
	prev := st.governance
	st.governance = g.Clone()
	s.record(func() { st.governance = prev })
	return nil
}

type memEvents struct{ *memView }

func (s *memEvents) Append(_ context.Context, ev *models.Event) error {
	defer s.write()()
	st := &s.m.state
	ev.Sequence = uint64(len(st.events) + 1)
	c := *ev
	st.events = append(st.events, &c)
	s.record(func() {
		st.events = st.events[:len(st.events)-1]
		ev.Sequence = 0
	})
	return nil
}

func (st *memState) receipt(id domain.ReceiptID) *models.Receipt {
	if id == 0 || int(id) > len(st.receipts) {
		return nil
	}
	return st.receipts[id-1]
}

func dropLast(ids []domain.ReceiptID) []domain.ReceiptID {
	if len(ids) == 0 {
		return ids
	}
	return ids[:len(ids)-1]
}
