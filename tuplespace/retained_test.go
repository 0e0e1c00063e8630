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

	. "github.com/jacobsa/ogletest"

	"github.com/cis5512/tupled/tuplespace"
)

func TestRetainedDeliveries(t *testing.T) { RunTests(t) }

type RetainedDeliveriesTest struct {
	table *tuplespace.RetainedDeliveries
}

func init() { RegisterTestSuite(&RetainedDeliveriesTest{}) }

func (t *RetainedDeliveriesTest) SetUp(ti *TestInfo) {
	t.table = tuplespace.NewRetainedDeliveries()
}

func (t *RetainedDeliveriesTest) RecordReportsWhetherPriorExisted() {
	existed := t.table.Record(1, 100, tuplespace.Tuple{Name: "x"})
	ExpectFalse(existed)

	existed = t.table.Record(1, 100, tuplespace.Tuple{Name: "y"})
	ExpectTrue(existed)
}

func (t *RetainedDeliveriesTest) UnguardedByDefault() {
	t.table.Record(1, 100, tuplespace.Tuple{Name: "x"})
	ExpectFalse(t.table.Guarded(1, 100))
	ExpectFalse(t.table.Guarded(2, 200))
}
