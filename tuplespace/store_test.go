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

package tuplespace_test

import (
	"testing"

	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"

	"github.com/cis5512/tupled/tuplespace"
)

func TestStore(t *testing.T) { RunTests(t) }

type StoreTest struct {
	store *tuplespace.Store
}

func init() { RegisterTestSuite(&StoreTest{}) }

func (t *StoreTest) SetUp(ti *TestInfo) {
	t.store = tuplespace.NewStore()
}

func (t *StoreTest) PutReportsInsertedThenReplaced() {
	outcome := t.store.Put(&tuplespace.Tuple{Name: "x", Priority: 1})
	ExpectEq(tuplespace.Inserted, outcome)

	outcome = t.store.Put(&tuplespace.Tuple{Name: "x", Priority: 2})
	ExpectEq(tuplespace.Replaced, outcome)

	ExpectEq(1, t.store.Len())
}

func (t *StoreTest) FindBestNoMatch() {
	t.store.Put(&tuplespace.Tuple{Name: "foo", Priority: 1})

	_, ok := t.store.FindBest("bar")
	ExpectFalse(ok)
}

func (t *StoreTest) FindBestPrefersHigherPriority() {
	t.store.Put(&tuplespace.Tuple{Name: "work_chunk_0", Priority: 1})
	t.store.Put(&tuplespace.Tuple{Name: "work_chunk_1", Priority: 5})
	t.store.Put(&tuplespace.Tuple{Name: "work_chunk_2", Priority: 3})

	best, ok := t.store.FindBest("work_chunk_*")
	AssertTrue(ok)
	ExpectEq("work_chunk_1", best.Name)
}

func (t *StoreTest) FindBestBreaksTiesByInsertionOrder() {
	t.store.Put(&tuplespace.Tuple{Name: "a", Priority: 1})
	t.store.Put(&tuplespace.Tuple{Name: "b", Priority: 1})
	t.store.Put(&tuplespace.Tuple{Name: "c", Priority: 1})

	best, ok := t.store.FindBest("?")
	AssertTrue(ok)
	ExpectEq("a", best.Name)
}

func (t *StoreTest) RemoveDeletesAndReportsPresence() {
	t.store.Put(&tuplespace.Tuple{Name: "x", Priority: 1})

	ExpectTrue(t.store.Remove("x"))
	ExpectFalse(t.store.Remove("x"))
	ExpectEq(0, t.store.Len())

	_, ok := t.store.FindBest("x")
	ExpectFalse(ok)
}

func (t *StoreTest) PayloadRoundTrips() {
	payload := []byte("hello")
	t.store.Put(&tuplespace.Tuple{Name: "msg", Priority: 1, Payload: payload})

	got, ok := t.store.FindBest("msg")
	AssertTrue(ok)
	ExpectThat(got.Payload, DeepEquals(payload))
}
