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

func TestMatch(t *testing.T) { RunTests(t) }

type MatchTest struct {
}

func init() { RegisterTestSuite(&MatchTest{}) }

func (t *MatchTest) ExactLiteral() {
	ExpectTrue(tuplespace.Match("foo", "foo"))
	ExpectFalse(tuplespace.Match("foo", "bar"))
	ExpectFalse(tuplespace.Match("foo", "foobar"))
}

func (t *MatchTest) QuestionMarkMatchesOneChar() {
	ExpectTrue(tuplespace.Match("C_row_?", "C_row_5"))
	ExpectFalse(tuplespace.Match("C_row_?", "C_row_55"))
	ExpectFalse(tuplespace.Match("C_row_?", "C_row_"))
}

func (t *MatchTest) StarMatchesZeroOrMore() {
	ExpectTrue(tuplespace.Match("C_row_*", "C_row_"))
	ExpectTrue(tuplespace.Match("C_row_*", "C_row_5"))
	ExpectTrue(tuplespace.Match("C_row_*", "C_row_512"))
	ExpectTrue(tuplespace.Match("*", "anything"))
	ExpectTrue(tuplespace.Match("*", ""))
}

func (t *MatchTest) StarRequiresBacktracking() {
	ExpectTrue(tuplespace.Match("*_row_5", "C_row_5"))
	ExpectTrue(tuplespace.Match("a*b*c", "aXXbYYc"))
	ExpectFalse(tuplespace.Match("a*b*c", "aXXbYY"))
}

func (t *MatchTest) LiteralRegexMetacharactersAreNotSpecial() {
	// A literal dot and plus must match only themselves, unlike the
	// POSIX-regex-based matcher this one replaces.
	ExpectTrue(tuplespace.Match("C.1", "C.1"))
	ExpectFalse(tuplespace.Match("C.1", "CX1"))
	ExpectTrue(tuplespace.Match("a+b", "a+b"))
	ExpectFalse(tuplespace.Match("a+b", "aab"))
}
