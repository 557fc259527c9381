package session

import (
	"sort"
	"sync"
	"time"
)

// Record is the control plane's bookkeeping for one stream session.
type Record struct {
	Info
	StreamGroupID            string
	ApplicationID            string
	UserID                   string
	Regions                  []string
	ConnectionTimeoutSeconds int
	CreatedAt                time.Time
	ActivateAt               time.Time
	Connections              int
}

type Store struct {
	mu       sync.RWMutex
	sessions map[string]*Record
}

func NewStore() *Store {
	return &Store{
		sessions: make(map[string]*Record),
	}
}

func (s *Store) Get(arn string) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.sessions[arn]
	if !ok {
		return nil, false
	}
	copy := cloneRecord(rec)
	return copy, true
}

// GetAll returns copies of every record, oldest first.
func (s *Store) GetAll() []*Record {
	s.mu.RLock()
	defer s.mu.RUnlock()
	result := make([]*Record, 0, len(s.sessions))
	for _, rec := range s.sessions {
		result = append(result, cloneRecord(rec))
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].CreatedAt.Before(result[j].CreatedAt)
	})
	return result
}

func (s *Store) Put(rec *Record) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sessions[rec.ARN] = cloneRecord(rec)
}

// Modify applies fn to the stored record under the write lock and returns a
// copy of the result. It reports false if no record exists for arn.
func (s *Store) Modify(arn string, fn func(*Record)) (*Record, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.sessions[arn]
	if !ok {
		return nil, false
	}
	fn(rec)
	return cloneRecord(rec), true
}

func (s *Store) Remove(arn string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.sessions, arn)
}

func (s *Store) ActiveCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	count := 0
	for _, rec := range s.sessions {
		if !rec.Status.IsTerminal() {
			count++
		}
	}
	return count
}

func cloneRecord(rec *Record) *Record {
	copy := *rec
	if rec.Regions != nil {
		copy.Regions = append([]string(nil), rec.Regions...)
	}
	return &copy
}
