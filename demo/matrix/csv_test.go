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

package matrix_test

import (
	"io/ioutil"
	"os"
	"path/filepath"
	"strings"
	"testing"

	. "github.com/jacobsa/ogletest"

	"github.com/cis5512/tupled/demo/matrix"
)

func TestCSV(t *testing.T) { RunTests(t) }

type CSVTest struct {
	dir string
}

func init() { RegisterTestSuite(&CSVTest{}) }

func (t *CSVTest) SetUp(ti *TestInfo) {
	var err error
	t.dir, err = ioutil.TempDir("", "csv_test")
	AssertEq(nil, err)
}

func (t *CSVTest) TearDown() {
	os.RemoveAll(t.dir)
}

func (t *CSVTest) FirstWriteIncludesHeader() {
	path := filepath.Join(t.dir, "perf.csv")
	AssertEq(nil, matrix.SaveResultsToCSV(path, matrix.PerformanceRecord{
		Size: 8192, Granularity: 4, TotalSeconds: 1.5, MultSeconds: 0.25,
	}))

	contents, err := ioutil.ReadFile(path)
	AssertEq(nil, err)
	lines := strings.Split(strings.TrimRight(string(contents), "\n"), "\n")
	AssertEq(2, len(lines))
	ExpectEq("size,granularity,total_seconds,mult_seconds", lines[0])
	ExpectEq("8192,4,1.500,0.250000", lines[1])
}

func (t *CSVTest) SubsequentWritesAppendWithoutHeader() {
	path := filepath.Join(t.dir, "perf.csv")
	AssertEq(nil, matrix.SaveResultsToCSV(path, matrix.PerformanceRecord{Size: 1, Granularity: 1}))
	AssertEq(nil, matrix.SaveResultsToCSV(path, matrix.PerformanceRecord{Size: 2, Granularity: 1}))

	contents, err := ioutil.ReadFile(path)
	AssertEq(nil, err)
	lines := strings.Split(strings.TrimRight(string(contents), "\n"), "\n")
	AssertEq(3, len(lines))
}
