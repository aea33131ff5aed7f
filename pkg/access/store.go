package access

import (
	"slices"
	"sync"

	"github.com/matzehuels/pinaccess/pkg/db"
)

// PinSet maps the signal pins of a master to their access sets under one
// pin-access index.
type PinSet map[PinRef]*PinAccess

// Refs returns the pins of the set in (term, pin) order.
func (ps PinSet) Refs() []PinRef {
	refs := make([]PinRef, 0, len(ps))
	for r := range ps {
		refs = append(refs, r)
	}
	slices.SortFunc(refs, func(a, b PinRef) int {
		if a.Term != b.Term {
			return a.Term - b.Term
		}
		return a.Pin - b.Pin
	})
	return refs
}

// Points returns the total number of access points in the set.
func (ps PinSet) Points() int {
	n := 0
	for _, pa := range ps {
		n += len(pa.Points)
	}
	return n
}

// Store owns every PinAccess set of a design. A master carries one set per
// unique class built on it, addressed by the class's pin-access index.
// Indices are never reused, so an instance's PinAccessIdx stays valid for as
// long as its class lives.
//
// Store is safe for concurrent use. Workers write disjoint (master, index)
// slots.
type Store struct {
	mu   sync.RWMutex
	sets map[db.MasterID][]PinSet
	io   map[db.IOTermID]*PinAccess
}

// NewStore returns an empty store.
func NewStore() *Store {
	return &Store{
		sets: make(map[db.MasterID][]PinSet),
		io:   make(map[db.IOTermID]*PinAccess),
	}
}

// Alloc reserves the next pin-access index of master m.
func (s *Store) Alloc(m db.MasterID) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.sets[m] = append(s.sets[m], nil)
	return len(s.sets[m]) - 1
}

// Put stores the pin sets for (m, idx), replacing any previous content.
func (s *Store) Put(m db.MasterID, idx int, ps PinSet) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for len(s.sets[m]) <= idx {
		s.sets[m] = append(s.sets[m], nil)
	}
	s.sets[m][idx] = ps
}

// Get returns the pin sets for (m, idx), or nil when none were generated.
func (s *Store) Get(m db.MasterID, idx int) PinSet {
	s.mu.RLock()
	defer s.mu.RUnlock()
	all := s.sets[m]
	if idx < 0 || idx >= len(all) {
		return nil
	}
	return all[idx]
}

// Release drops the content of (m, idx). The index itself is not reused.
func (s *Store) Release(m db.MasterID, idx int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if all := s.sets[m]; idx >= 0 && idx < len(all) {
		all[idx] = nil
	}
}

// Indices returns the number of pin-access indices allocated for m.
func (s *Store) Indices(m db.MasterID) int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.sets[m])
}

// PutIO stores the access set of a block terminal.
func (s *Store) PutIO(id db.IOTermID, pa *PinAccess) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.io[id] = pa
}

// IO returns the access set of a block terminal.
func (s *Store) IO(id db.IOTermID) (*PinAccess, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	pa, ok := s.io[id]
	return pa, ok
}

// Table is the resolved access point of every pin. It is indexed by
// instance handle; workers that own disjoint instances may write
// concurrently. Grow must not race with writers.
type Table struct {
	insts [][]Resolved
	io    map[db.IOTermID]Resolved
}

// NewTable sizes a table for nInst instances.
func NewTable(nInst int) *Table {
	return &Table{insts: make([][]Resolved, nInst), io: make(map[db.IOTermID]Resolved)}
}

// Grow extends the table to nInst instances.
func (t *Table) Grow(nInst int) {
	for len(t.insts) < nInst {
		t.insts = append(t.insts, nil)
	}
}

// Set replaces the resolved pins of inst.
func (t *Table) Set(inst db.InstID, rs []Resolved) { t.insts[inst] = rs }

// Get returns the resolved pins of inst.
func (t *Table) Get(inst db.InstID) []Resolved {
	if int(inst) >= len(t.insts) {
		return nil
	}
	return t.insts[inst]
}

// Clear forgets inst.
func (t *Table) Clear(inst db.InstID) {
	if int(inst) < len(t.insts) {
		t.insts[inst] = nil
	}
}

// SetIO records the resolved point of a block terminal. It is not safe for
// concurrent use.
func (t *Table) SetIO(id db.IOTermID, r Resolved) { t.io[id] = r }

// IO returns the resolved block terminals in handle order.
func (t *Table) IO() []Resolved {
	out := make([]Resolved, 0, len(t.io))
	for _, r := range t.io {
		out = append(out, r)
	}
	slices.SortFunc(out, func(a, b Resolved) int { return int(a.IO - b.IO) })
	return out
}

// All returns every resolved instance pin in instance order.
func (t *Table) All() []Resolved {
	var out []Resolved
	for _, rs := range t.insts {
		out = append(out, rs...)
	}
	return out
}

// Covered returns the number of instances with at least one resolved pin.
func (t *Table) Covered() int {
	n := 0
	for _, rs := range t.insts {
		if len(rs) > 0 {
			n++
		}
	}
	return n
}
