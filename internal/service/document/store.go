package document

import (
	"errors"
	"sort"
	"sync"
)

// DefaultCapacity is the number of versions a store keeps before evicting.
const DefaultCapacity = 5

// ErrNotFound is returned when the requested version is not present.
var ErrNotFound = errors.New("document version not found")

// Store keeps the versioned resume documents of one session.
//
// Versions are positive integers. When no version is given the store assigns
// max+1; once more than capacity entries are held the smallest key is dropped.
type Store struct {
	mu       sync.RWMutex
	capacity int
	versions map[int]string
}

// NewStore creates an empty store. Non-positive capacity falls back to DefaultCapacity.
func NewStore(capacity int) *Store {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Store{
		capacity: capacity,
		versions: make(map[int]string, capacity+1),
	}
}

// Put stores content and returns the version it was saved under.
// A version <= 0 means "next version".
func (s *Store) Put(content string, version int) int {
	s.mu.Lock()
	defer s.mu.Unlock()

	if version <= 0 {
		version = s.maxLocked() + 1
	}
	s.versions[version] = content

	if len(s.versions) > s.capacity {
		delete(s.versions, s.minLocked())
	}
	return version
}

// Get returns the content at version, or at the latest version when version <= 0.
func (s *Store) Get(version int) (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if version <= 0 {
		version = s.maxLocked()
	}
	content, ok := s.versions[version]
	if !ok {
		return "", ErrNotFound
	}
	return content, nil
}

// Versions lists the stored version numbers in ascending order.
func (s *Store) Versions() []int {
	s.mu.RLock()
	defer s.mu.RUnlock()

	keys := make([]int, 0, len(s.versions))
	for v := range s.versions {
		keys = append(keys, v)
	}
	sort.Ints(keys)
	return keys
}

// Len reports how many versions are currently retained.
func (s *Store) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.versions)
}

// Capacity reports the retention window.
func (s *Store) Capacity() int {
	return s.capacity
}

func (s *Store) maxLocked() int {
	max := 0
	for v := range s.versions {
		if v > max {
			max = v
		}
	}
	return max
}

func (s *Store) minLocked() int {
	first := true
	min := 0
	for v := range s.versions {
		if first || v < min {
			min = v
			first = false
		}
	}
	return min
}
