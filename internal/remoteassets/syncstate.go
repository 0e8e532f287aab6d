package remoteassets

import (
	"slices"

	mapset "github.com/deckarep/golang-set/v2"
)

// SyncState is the process wide set of asset paths with a sync in flight.
//
// Every method is safe for concurrent use, but callers guard a sync with Contains
// followed by Add, which is not atomic: two callers may both see a path as absent and
// both start a sync. Duplicate syncs only repeat work.
type SyncState struct {
	paths mapset.Set[string]
}

func NewSyncState() *SyncState {
	return &SyncState{paths: mapset.NewSet[string]()}
}

// Add marks p as in flight. Adding a path twice is a no-op.
func (s *SyncState) Add(p string) {
	s.paths.Add(p)
}

func (s *SyncState) Contains(p string) bool {
	return s.paths.Contains(p)
}

func (s *SyncState) Remove(p string) {
	s.paths.Remove(p)
}

func (s *SyncState) Len() int {
	return s.paths.Cardinality()
}

// Paths returns the in flight paths, sorted
func (s *SyncState) Paths() []string {
	out := s.paths.ToSlice()
	slices.Sort(out)
	return out
}
