// Package store persists outstanding sign-in challenges.
//
// Error contract: Consume returns sentinel.ErrNotFound for unknown or already
// consumed nonces; Save returns sentinel.ErrAlreadyUsed when the nonce exists.
package store

import (
	"container/heap"
	"context"
	"sync"
	"time"

	"receiptledger/internal/identity/models"
	"receiptledger/pkg/domain"
	"receiptledger/pkg/platform/sentinel"
)

type challengeKey struct {
	account domain.Account
	nonce   string
}

// InMemory keeps challenges in process for tests and single-instance deployments.
// Expiries are kept in a min-heap so a save only visits challenges that lapsed.
type InMemory struct {
	mu         sync.Mutex
	challenges map[challengeKey]*models.Challenge
	expiries   expiryQueue
}

func NewInMemory() *InMemory {
	return &InMemory{challenges: make(map[challengeKey]*models.Challenge)}
}

func (s *InMemory) Save(_ context.Context, c *models.Challenge) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := challengeKey{account: c.Account, nonce: c.Nonce}
	if _, exists := s.challenges[key]; exists {
		return sentinel.ErrAlreadyUsed
	}
	stored := *c
	s.challenges[key] = &stored
	heap.Push(&s.expiries, expiry{key: key, at: c.ExpiresAt})
	s.sweep(c.IssuedAt)
	return nil
}

// Consume removes and returns the challenge so it can be used once.
func (s *InMemory) Consume(_ context.Context, account domain.Account, nonce string) (*models.Challenge, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	key := challengeKey{account: account, nonce: nonce}
	c, ok := s.challenges[key]
	if !ok {
		return nil, sentinel.ErrNotFound
	}
	delete(s.challenges, key)
	return c, nil
}

// sweep drops challenges that expired before now. Entries left behind by
// consumed or re-saved challenges are discarded as they surface. Caller holds mu.
func (s *InMemory) sweep(now time.Time) {
	for s.expiries.Len() > 0 && !now.Before(s.expiries[0].at) {
		e := heap.Pop(&s.expiries).(expiry)
		if c, ok := s.challenges[e.key]; ok && c.ExpiresAt.Equal(e.at) {
			delete(s.challenges, e.key)
		}
	}
}

func (s *InMemory) len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.challenges)
}

type expiry struct {
	key challengeKey
	at  time.Time
}

// expiryQueue implements heap.Interface ordered by expiry time.
type expiryQueue []expiry

func (q expiryQueue) Len() int           { return len(q) }
func (q expiryQueue) Less(i, j int) bool { return q[i].at.Before(q[j].at) }
func (q expiryQueue) Swap(i, j int)      { q[i], q[j] = q[j], q[i] }

func (q *expiryQueue) Push(x any) {
	*q = append(*q, x.(expiry))
}

func (q *expiryQueue) Pop() any {
	old := *q
	n := len(old)
	e := old[n-1]
	*q = old[:n-1]
	return e
}
