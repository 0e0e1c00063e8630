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

import "sync"

// RetainedDelivery records the last tuple destructively delivered to a
// particular (host, procID) pair, so a client that suspects it missed a
// reply (or duplicated a request) has something to reconcile against.
//
// Fault is a guard flag read by RetainedDeliveries.Guarded before honoring
// a Put/Get/Read from a given (host, procID): if set, the request is
// rejected outright. No code path in this package ever sets it true; it is
// preserved as an extension point, exactly as in the source, where
// guardf's fault check exists but nothing ever assigns fault = 1.
type RetainedDelivery struct {
	Tuple Tuple
	Fault bool
}

type retainedKey struct {
	host   uint32
	procID int32
}

// RetainedDeliveries is the process-wide table of RetainedDelivery records,
// keyed by (host, procID). Safe for concurrent use.
type RetainedDeliveries struct {
	mu      sync.Mutex
	records map[retainedKey]*RetainedDelivery
}

// NewRetainedDeliveries returns an empty table.
func NewRetainedDeliveries() *RetainedDeliveries {
	return &RetainedDeliveries{
		records: make(map[retainedKey]*RetainedDelivery),
	}
}

// Record stores t as the most recent destructive delivery to (host, procID),
// reporting whether a prior record for that pair already existed.
func (r *RetainedDeliveries) Record(host uint32, procID int32, t Tuple) (existed bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	k := retainedKey{host, procID}
	_, existed = r.records[k]
	r.records[k] = &RetainedDelivery{Tuple: t}
	return
}

// Guarded reports whether (host, procID) is currently fault-flagged, in
// which case the server must silently refuse to act on its request, the
// way guardf does in the source.
func (r *RetainedDeliveries) Guarded(host uint32, procID int32) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	rec, ok := r.records[retainedKey{host, procID}]
	return ok && rec.Fault
}
