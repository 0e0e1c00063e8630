// Copyright 2015 Google Inc. All Rights Reserved.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package tuplespace

import (
	"container/list"
	"fmt"

	"github.com/jacobsa/syncutil"
)

// PutOutcome reports whether a Store.Put call created a new tuple or
// replaced one that was already present.
type PutOutcome int

const (
	Inserted PutOutcome = iota
	Replaced
)

// Store holds the live tuples of the space. It is safe for concurrent use.
//
// Tuples are kept in a doubly linked insertion-ordered list so that
// FindBest's priority tie-break ("earliest inserted wins") falls out of a
// simple forward scan, plus a name index for the O(1) exact-name lookup
// that Put and Remove-by-name need. Invariant 1 (at most one live tuple per
// name) is enforced by routing every insert through the index.
type Store struct {
	mu syncutil.InvariantMutex

	order  list.List // GUARDED_BY(mu); element type *Tuple
	byName map[string]*list.Element
}

// NewStore returns an empty Store.
func NewStore() *Store {
	s := &Store{
		byName: make(map[string]*list.Element),
	}
	s.order.Init()
	s.mu = syncutil.NewInvariantMutex(s.checkInvariants)
	return s
}

func (s *Store) checkInvariants() {
	if len(s.byName) != s.order.Len() {
		panic(fmt.Sprintf(
			"tuplespace.Store: index has %d entries but list has %d",
			len(s.byName), s.order.Len()))
	}
	for name, e := range s.byName {
		t := e.Value.(*Tuple)
		if t.Name != name {
			panic(fmt.Sprintf(
				"tuplespace.Store: index entry %q points at tuple named %q",
				name, t.Name))
		}
	}
}

// Put inserts t, or replaces the existing tuple of the same name.
//
// LOCKS_EXCLUDED(s.mu)
func (s *Store) Put(t *Tuple) PutOutcome {
	s.mu.Lock()
	defer s.mu.Unlock()

	if e, ok := s.byName[t.Name]; ok {
		e.Value = t
		return Replaced
	}

	e := s.order.PushBack(t)
	s.byName[t.Name] = e
	return Inserted
}

// FindBest returns the highest-priority live tuple whose name matches expr,
// breaking priority ties in favor of whichever tuple has been present
// longest. ok is false if nothing matches.
//
// LOCKS_EXCLUDED(s.mu)
func (s *Store) FindBest(expr string) (t *Tuple, ok bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	for e := s.order.Front(); e != nil; e = e.Next() {
		cand := e.Value.(*Tuple)
		if !Match(expr, cand.Name) {
			continue
		}
		if !ok || cand.Priority > t.Priority {
			t = cand
			ok = true
		}
	}
	return
}

// Remove deletes the named tuple, if present, and reports whether it was.
//
// LOCKS_EXCLUDED(s.mu)
func (s *Store) Remove(name string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.byName[name]
	if !ok {
		return false
	}
	s.order.Remove(e)
	delete(s.byName, name)
	return true
}

// Len reports the number of live tuples. Intended for tests and metrics.
//
// LOCKS_EXCLUDED(s.mu)
func (s *Store) Len() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.order.Len()
}
