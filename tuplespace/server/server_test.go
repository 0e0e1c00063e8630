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

package server_test

import (
	"context"
	"net"
	"testing"
	"time"

	. "github.com/jacobsa/oglematchers"
	. "github.com/jacobsa/ogletest"

	"github.com/cis5512/tupled/internal/wire"
	"github.com/cis5512/tupled/tshclient"
	"github.com/cis5512/tupled/tuplespace"
	"github.com/cis5512/tupled/tuplespace/proto"
	"github.com/cis5512/tupled/tuplespace/server"
)

func TestServer(t *testing.T) { RunTests(t) }

type ServerTest struct {
	srv  *server.Server
	addr string
}

func init() { RegisterTestSuite(&ServerTest{}) }

func (t *ServerTest) SetUp(ti *TestInfo) {
	t.srv = server.New(nil)
	AssertEq(nil, t.srv.Listen(context.Background(), 0))
	t.addr = t.srv.Addr().String()
	go t.srv.Serve()
}

func (t *ServerTest) TearDown() {
	t.srv.Close()
}

func (t *ServerTest) connect() *tshclient.Conn {
	conn, err := tshclient.Connect(t.addr)
	AssertEq(nil, err)
	return conn
}

func (t *ServerTest) PutThenReadLeavesTupleInPlace() {
	c := t.connect()
	defer c.Close()

	AssertEq(nil, c.Put("greeting", 1, []byte("hello")))

	got, err := c.ReadAsync("greeting")
	AssertEq(nil, err)
	ExpectThat(got, DeepEquals([]byte("hello")))

	got, err = c.ReadAsync("greeting")
	AssertEq(nil, err)
	ExpectThat(got, DeepEquals([]byte("hello")))
}

func (t *ServerTest) GetAsyncConsumesTheTuple() {
	c := t.connect()
	defer c.Close()

	AssertEq(nil, c.Put("claim_me", 1, []byte("payload")))

	got, err := c.GetAsync("claim_me")
	AssertEq(nil, err)
	ExpectThat(got, DeepEquals([]byte("payload")))

	_, err = c.ReadAsync("claim_me")
	ExpectNe(nil, err)
}

func (t *ServerTest) GetAsyncOnMissReturnsErrImmediately() {
	c := t.connect()
	defer c.Close()

	_, err := c.GetAsync("nonexistent")
	ExpectNe(nil, err)
}

func (t *ServerTest) PutSatisfiesAPendingGetAsynchronously() {
	waiter := t.connect()
	defer waiter.Close()

	resultCh := make(chan []byte, 1)
	errCh := make(chan error, 1)
	go func() {
		buf, err := waiter.Get("delayed_tuple")
		resultCh <- buf
		errCh <- err
	}()

	// Give the GET request a moment to register as pending before the PUT
	// arrives, so the delayed-delivery path (not the immediate-match path)
	// is what's exercised.
	time.Sleep(50 * time.Millisecond)

	putter := t.connect()
	defer putter.Close()
	AssertEq(nil, putter.Put("delayed_tuple", 1, []byte("arrived late")))

	select {
	case err := <-errCh:
		AssertEq(nil, err)
		ExpectThat(<-resultCh, DeepEquals([]byte("arrived late")))
	case <-time.After(5 * time.Second):
		panic("timed out waiting for delayed delivery")
	}
}

func (t *ServerTest) HigherPriorityTupleWinsOnMatch() {
	c := t.connect()
	defer c.Close()

	AssertEq(nil, c.Put("work_chunk_0", 1, []byte("low")))
	AssertEq(nil, c.Put("work_chunk_1", 9, []byte("high")))

	got, err := c.GetAsync("work_chunk_*")
	AssertEq(nil, err)
	ExpectThat(got, DeepEquals([]byte("high")))
}

// rawQueuedGet issues a GET that is guaranteed to miss (no such tuple
// exists yet) and be queued as a pending request under the given origin,
// bypassing tshclient.Conn so the test controls Host/ProcID directly
// rather than inheriting os.Getpid() and a hardcoded localhost constant.
func rawQueuedGet(addr, expr string, host uint32, procID int32) {
	conn, err := net.Dial("tcp", addr)
	AssertEq(nil, err)
	defer conn.Close()

	AssertEq(nil, wire.WriteStruct(conn, uint16(proto.OpGet)))

	hdr := proto.GetRequestHeader{
		Expr:          proto.PutNameBytes(expr),
		Host:          host,
		Port:          1, // nothing listens on port 1; the delayed-delivery dial fails and is swallowed
		CIDPort:       0,
		ProcID:        procID,
		RequestLength: 0,
	}
	AssertEq(nil, wire.WriteStruct(conn, hdr))

	var reply proto.GetImmediateReply
	AssertEq(nil, wire.ReadStruct(conn, &reply))
	AssertEq(int16(tuplespace.StatusFailure), reply.Status)
	AssertEq(int16(tuplespace.ErrNoTuple), reply.Error)

	// The server enqueues the pending request immediately after writing
	// this miss reply, on the same goroutine; give it a moment to land
	// before a PUT that's meant to satisfy it is issued.
	time.Sleep(20 * time.Millisecond)
}

// rawPut issues a PUT directly over the wire so the test can read
// proto.PutReply.Error, which tshclient.Conn.Put never exposes (it only
// reports whether Status indicates failure).
func rawPut(addr, name string, priority uint16, payload []byte, host uint32, procID uint32) proto.PutReply {
	conn, err := net.Dial("tcp", addr)
	AssertEq(nil, err)
	defer conn.Close()

	AssertEq(nil, wire.WriteStruct(conn, uint16(proto.OpPut)))

	hdr := proto.PutRequestHeader{
		Name:     proto.PutNameBytes(name),
		Priority: priority,
		Length:   uint32(len(payload)),
		Host:     host,
		ProcID:   procID,
	}
	AssertEq(nil, wire.WriteStruct(conn, hdr))
	AssertEq(nil, wire.WriteFull(conn, payload))

	var reply proto.PutReply
	AssertEq(nil, wire.ReadStruct(conn, &reply))
	return reply
}

// PutConsumedByPendingGetReportsOverwriteOnExistingRetainedDelivery drives
// two GET-then-PUT rounds from the same (host, procID) origin. The first
// PUT is claimed by a pending GET with no prior retained delivery for that
// origin, so it must not report overwrite; the second PUT is claimed by a
// second pending GET from the same origin, which does have a prior
// retained delivery recorded, so it must report overwrite.
func (t *ServerTest) PutConsumedByPendingGetReportsOverwriteOnExistingRetainedDelivery() {
	const host = 0x7F000001
	const procID = int32(4242)

	rawQueuedGet(t.addr, "overwrite_target", host, procID)
	firstReply := rawPut(t.addr, "overwrite_target", 1, []byte("first"), host, uint32(procID))
	ExpectEq(int16(tuplespace.StatusSuccess), firstReply.Status)
	ExpectEq(int16(tuplespace.ErrNone), firstReply.Error)

	rawQueuedGet(t.addr, "overwrite_target", host, procID)
	secondReply := rawPut(t.addr, "overwrite_target", 1, []byte("second"), host, uint32(procID))
	ExpectEq(int16(tuplespace.StatusSuccess), secondReply.Status)
	ExpectEq(int16(tuplespace.ErrOverwrite), secondReply.Error)
}
