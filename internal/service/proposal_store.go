package service

import (
	"sync"
	"time"

	"github.com/noah-isme/uni-timetable-api/internal/models"
	"github.com/noah-isme/uni-timetable-api/internal/timetable"
)

// scheduleProposal is an unsaved run result kept in memory until saved or expired.
type scheduleProposal struct {
	ProposalID  string
	Semester    int
	Input       models.SchedulingInput
	Options     timetable.Options
	Result      timetable.Result
	Cached      bool
	RequestedAt time.Time
}

func (p scheduleProposal) expiresAt(ttl time.Duration) time.Time {
	return p.RequestedAt.Add(ttl)
}

type proposalStore struct {
	ttl   time.Duration
	now   func() time.Time
	mu    sync.RWMutex
	items map[string]scheduleProposal
}

func newProposalStore(ttl time.Duration) *proposalStore {
	return &proposalStore{
		ttl:   ttl,
		now:   time.Now,
		items: make(map[string]scheduleProposal),
	}
}

func (s *proposalStore) Save(proposal scheduleProposal) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.items[proposal.ProposalID] = proposal
}

func (s *proposalStore) Get(id string) (scheduleProposal, bool) {
	s.mu.RLock()
	proposal, ok := s.items[id]
	s.mu.RUnlock()
	if !ok {
		return scheduleProposal{}, false
	}
	if s.expired(proposal) {
		s.Delete(id)
		return scheduleProposal{}, false
	}
	return proposal, true
}

// Update applies fn to a live proposal under the write lock. Edits to the same
// proposal are therefore serialised; fn's error aborts the update.
func (s *proposalStore) Update(id string, fn func(*scheduleProposal) error) (scheduleProposal, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	proposal, ok := s.items[id]
	if !ok || s.expired(proposal) {
		delete(s.items, id)
		return scheduleProposal{}, false, nil
	}
	if err := fn(&proposal); err != nil {
		return scheduleProposal{}, true, err
	}
	s.items[id] = proposal
	return proposal, true, nil
}

func (s *proposalStore) Delete(id string) {
	s.mu.Lock()
	delete(s.items, id)
	s.mu.Unlock()
}

func (s *proposalStore) expired(p scheduleProposal) bool {
	return s.now().After(p.expiresAt(s.ttl))
}
