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

package wire_test

import (
	"bytes"
	"io"
	"testing"

	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"

	"github.com/cis5512/tupled/internal/wire"
	"github.com/cis5512/tupled/tuplespace/proto"
)

func TestWire(t *testing.T) { RunTests(t) }

type WireTest struct {
}

func init() { RegisterTestSuite(&WireTest{}) }

func (t *WireTest) WriteThenReadStructRoundTrips() {
	var buf bytes.Buffer

	hdr := proto.GetTupleHeader{
		Name:     proto.PutNameBytes("C_row_5"),
		Length:   16,
		Priority: 3,
	}

	AssertEq(nil, wire.WriteStruct(&buf, &hdr))

	var got proto.GetTupleHeader
	AssertEq(nil, wire.ReadStruct(&buf, &got))

	ExpectEq("C_row_5", proto.GoString(got.Name))
	ExpectEq(hdr.Length, got.Length)
	ExpectEq(hdr.Priority, got.Priority)
}

func (t *WireTest) ReadFullReturnsEOFOnShortInput() {
	r := bytes.NewReader([]byte{1, 2, 3})
	buf := make([]byte, 4)
	err := wire.ReadFull(r, buf)
	ExpectTrue(err == io.ErrUnexpectedEOF || err == io.EOF)
}

func (t *WireTest) WriteFullLoopsPastShortWrites() {
	var buf bytes.Buffer
	sw := &shortWriter{w: &buf, max: 3}

	payload := []byte("hello world, this is a longer payload")
	AssertEq(nil, wire.WriteFull(sw, payload))
	ExpectThat(buf.Bytes(), DeepEquals(payload))
}

// shortWriter writes at most max bytes per call, forcing WriteFull to loop.
type shortWriter struct {
	w   io.Writer
	max int
}

func (s *shortWriter) Write(p []byte) (int, error) {
	if len(p) > s.max {
		p = p[:s.max]
	}
	return s.w.Write(p)
}
