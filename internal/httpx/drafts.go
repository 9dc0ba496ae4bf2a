package httpx

import (
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/ariefcatur/go-storefront-orders/internal/builder"
	"github.com/ariefcatur/go-storefront-orders/internal/catalog"
)

var (
	errDraftNotFound = errors.New("draft not found")
	errLineNotFound  = errors.New("draft line not found")
)

// draft is one admin manual-order session. It lives only in memory and is
// dropped on submit or discard.
type draft struct {
	mu      sync.Mutex
	id      string
	b       *builder.Builder
	created time.Time
}

type DraftStore struct {
	mu     sync.Mutex
	drafts map[string]*draft
	ttl    time.Duration
	now    func() time.Time
}

// NewDraftStore keeps drafts for at most ttl; older ones are dropped lazily.
func NewDraftStore(ttl time.Duration) *DraftStore {
	return &DraftStore{drafts: map[string]*draft{}, ttl: ttl, now: time.Now}
}

func (s *DraftStore) open(snap *catalog.Snapshot) *draft {
	d := &draft{id: uuid.NewString(), b: builder.New(snap), created: s.now()}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()
	s.drafts[d.id] = d
	return d
}

func (s *DraftStore) get(id string) (*draft, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.expireLocked()
	d, ok := s.drafts[id]
	if !ok {
		return nil, errDraftNotFound
	}
	return d, nil
}

func (s *DraftStore) drop(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.drafts[id]
	delete(s.drafts, id)
	return ok
}

func (s *DraftStore) expireLocked() {
	if s.ttl <= 0 {
		return
	}
	cutoff := s.now().Add(-s.ttl)
	for id, d := range s.drafts {
		if d.created.Before(cutoff) {
			delete(s.drafts, id)
		}
	}
}
