package accounts

import (
	"sort"
	"sync"

	"driftexport/pkg/drift"
)

// Store indexes UserStats by authority and by account address, and Users by authority.
type Store struct {
	mu          sync.RWMutex
	byAuthority map[string]drift.UserStats
	byAddress   map[string]string // stats address -> authority
	users       map[string][]drift.User
}

func NewStore() *Store {
	return &Store{
		byAuthority: make(map[string]drift.UserStats),
		byAddress:   make(map[string]string),
		users:       make(map[string][]drift.User),
	}
}

// NewStoreFromSets builds a store from fetched datasets. Either set may be nil.
func NewStoreFromSets(stats *UserStatsSet, users *UserSet) *Store {
	s := NewStore()
	if stats != nil {
		for _, us := range stats.Accounts {
			s.Put(us)
		}
	}
	if users != nil {
		for _, u := range users.Accounts {
			s.AddUser(u)
		}
	}
	return s
}

// Put inserts or replaces the UserStats of s.Authority.
func (s *Store) Put(us drift.UserStats) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if prev, ok := s.byAuthority[us.Authority]; ok && prev.Address != us.Address {
		delete(s.byAddress, prev.Address)
	}
	s.byAuthority[us.Authority] = us
	s.byAddress[us.Address] = us.Authority
}

func (s *Store) AddUser(u drift.User) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.users[u.Authority] = append(s.users[u.Authority], u)
}

func (s *Store) GetByAuthority(authority string) (drift.UserStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	us, ok := s.byAuthority[authority]
	return us, ok
}

func (s *Store) GetByAddress(address string) (drift.UserStats, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	authority, ok := s.byAddress[address]
	if !ok {
		return drift.UserStats{}, false
	}
	us, ok := s.byAuthority[authority]
	return us, ok
}

// UsersOf returns the sub-accounts of authority ordered by sub-account id.
func (s *Store) UsersOf(authority string) []drift.User {
	s.mu.RLock()
	defer s.mu.RUnlock()
	cp := make([]drift.User, len(s.users[authority]))
	copy(cp, s.users[authority])
	sort.Slice(cp, func(i, j int) bool { return cp[i].SubAccountID < cp[j].SubAccountID })
	return cp
}

// All returns every UserStats ordered by account address.
func (s *Store) All() []drift.UserStats {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]drift.UserStats, 0, len(s.byAuthority))
	for _, us := range s.byAuthority {
		out = append(out, us)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Address < out[j].Address })
	return out
}

// Count returns the number of UserStats stored.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.byAuthority)
}
