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

	"github.com/jacobsa/syncutil"
)

// PendingRequest is a read/get that found no matching tuple at the time it
// was issued, and is waiting for a future Put to satisfy it.
type PendingRequest struct {
	Expression string
	Kind       RequestKind
	Origin     Origin
}

// Queue is the server-wide FIFO of PendingRequests. Unlike Store, lookups
// are always by pattern match rather than exact name, so there is no name
// index here: satisfying a Put means a single linear scan in insertion
// order, which is also what gives pending reads/gets their FIFO fairness
// (Invariant: among requests whose expression matches a given name, the one
// that arrived first is satisfied first).
//
// Safe for concurrent use.
type Queue struct {
	mu syncutil.InvariantMutex

	pending list.List // GUARDED_BY(mu); element type *PendingRequest
}

// NewQueue returns an empty Queue.
func NewQueue() *Queue {
	q := &Queue{}
	q.pending.Init()
	q.mu = syncutil.NewInvariantMutex(q.checkInvariants)
	return q
}

func (q *Queue) checkInvariants() {
	// No cross-field invariant beyond "the list is a list"; checkInvariants
	// exists so InvariantMutex's lock/unlock checking is exercised the same
	// way Store's is.
}

// PushBack enqueues req at the tail of the FIFO.
//
// LOCKS_EXCLUDED(q.mu)
func (q *Queue) PushBack(req *PendingRequest) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.pending.PushBack(req)
}

// PopFirstMatching removes and returns the earliest-enqueued request whose
// Expression matches name, or ok==false if none does.
//
// LOCKS_EXCLUDED(q.mu)
func (q *Queue) PopFirstMatching(name string) (req *PendingRequest, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()

	for e := q.pending.Front(); e != nil; e = e.Next() {
		cand := e.Value.(*PendingRequest)
		if Match(cand.Expression, name) {
			q.pending.Remove(e)
			return cand, true
		}
	}
	return nil, false
}

// DrainAll removes and returns every pending request, in FIFO order. Used
// at EXIT to free queue state the way the source's deleteQueue does.
//
// LOCKS_EXCLUDED(q.mu)
func (q *Queue) DrainAll() []*PendingRequest {
	q.mu.Lock()
	defer q.mu.Unlock()

	out := make([]*PendingRequest, 0, q.pending.Len())
	for e := q.pending.Front(); e != nil; e = e.Next() {
		out = append(out, e.Value.(*PendingRequest))
	}
	q.pending.Init()
	return out
}

// Len reports the number of pending requests. Intended for tests/metrics.
//
// LOCKS_EXCLUDED(q.mu)
func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.pending.Len()
}
