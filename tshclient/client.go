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

// Package tshclient is the client transport library for a tuplespace
// server: Connect to establish a session, then Put, Read, and Get to
// exercise the tuple space. It is the Go counterpart of tshlib.c's
// tsh_connect/tsh_put/tsh_get/tsh_read.
package tshclient

import (
	"encoding/binary"
	"fmt"
	"io"
	"net"
	"os"
	"time"

	"github.com/cis5512/tupled/internal/wire"
	"github.com/cis5512/tupled/tuplespace"
	"github.com/cis5512/tupled/tuplespace/proto"
)

// localhostHost is the network-byte-order-equivalent uint32 for 127.0.0.1,
// matching tsh_connect's hard-coded inet_addr("127.0.0.1").
const localhostHost = 0x7F000001

// returnListenTimeout bounds how long Get/Read will wait on its return
// listener for a delayed delivery after the server reports NOTUPLE and
// queues the request. The source has no such bound (the test harness
// blocked forever); a library meant to be called by automated callers
// needs one so a lost delayed delivery (see server/delivery.go) doesn't
// hang the caller permanently.
var returnListenTimeout = 30 * time.Second

// Conn is a connection to a tuplespace server. Put uses it directly;
// Get and Read additionally open a return listener lazily, on the first
// blocking Get or Read, since the request header carries the port a
// delayed delivery is sent to. GetAsync and ReadAsync never open one.
type Conn struct {
	conn net.Conn
	host uint32
	port uint16 // this client's own listen address, once opened
	ln   net.Listener

	procID int32
}

// Connect dials addr (a host:port tuplespace server address) and returns a
// ready-to-use Conn.
func Connect(addr string) (*Conn, error) {
	conn, err := net.Dial("tcp", addr)
	if err != nil {
		return nil, fmt.Errorf("tshclient: connect %s: %v", addr, err)
	}

	return &Conn{
		conn:   conn,
		host:   localhostHost,
		procID: int32(os.Getpid()),
	}, nil
}

// Close ends the session, closing both the primary connection and any
// return listener that was opened for delayed delivery.
func (c *Conn) Close() error {
	if c.ln != nil {
		c.ln.Close()
	}
	return c.conn.Close()
}

// Put stores name=payload with the given priority. An error wraps the
// server's reported tuplespace.ErrorCode when the failure was protocol-
// level (currently Put cannot itself fail at the protocol level beyond
// ErrOverwrite, which Put does not treat as an error — matching
// tsh_put, which only checks for SUCCESS/FAILURE, and the requirements'
// statement that the first PUT reports NOERROR and the second OVERWRITE
// with neither being a client-visible failure).
func (c *Conn) Put(name string, priority uint16, payload []byte) error {
	if err := writeOp(c.conn, proto.OpPut); err != nil {
		return fmt.Errorf("tshclient: put %q: send op: %v", name, err)
	}

	hdr := proto.PutRequestHeader{
		Name:     proto.PutNameBytes(name),
		Priority: priority,
		Length:   uint32(len(payload)),
		Host:     c.host,
		ProcID:   uint32(c.procID),
	}
	if err := wire.WriteStruct(c.conn, hdr); err != nil {
		return fmt.Errorf("tshclient: put %q: send header: %v", name, err)
	}
	if err := wire.WriteFull(c.conn, payload); err != nil {
		return fmt.Errorf("tshclient: put %q: send payload: %v", name, err)
	}

	var reply proto.PutReply
	if err := wire.ReadStruct(c.conn, &reply); err != nil {
		return fmt.Errorf("tshclient: put %q: read reply: %v", name, err)
	}
	if tuplespace.Status(reply.Status) != tuplespace.StatusSuccess {
		return fmt.Errorf("tshclient: put %q: %v", name, &tuplespace.Error{Code: tuplespace.ErrorCode(reply.Error)})
	}
	return nil
}

// Get destructively claims a tuple matching expr, blocking (subject to
// returnListenTimeout) for a delayed delivery if none is available yet.
func (c *Conn) Get(expr string) ([]byte, error) {
	return c.getOrRead(expr, proto.OpGet)
}

// Read non-destructively peeks a tuple matching expr, with the same
// blocking behavior as Get.
func (c *Conn) Read(expr string) ([]byte, error) {
	return c.getOrRead(expr, proto.OpRead)
}

// GetAsync is the -1-length variant of Get: it never queues on a miss, so
// it returns a *tuplespace.Error with Code ErrNoTuple immediately instead
// of waiting.
func (c *Conn) GetAsync(expr string) ([]byte, error) {
	return c.getOrReadLen(expr, proto.OpGet, -1)
}

// ReadAsync is the -1-length variant of Read.
func (c *Conn) ReadAsync(expr string) ([]byte, error) {
	return c.getOrReadLen(expr, proto.OpRead, -1)
}

func (c *Conn) getOrRead(expr string, op proto.Op) ([]byte, error) {
	return c.getOrReadLen(expr, op, 0)
}

func (c *Conn) getOrReadLen(expr string, op proto.Op, requestLength int32) ([]byte, error) {
	if err := writeOp(c.conn, op); err != nil {
		return nil, fmt.Errorf("tshclient: %s: send op: %v", opName(op), err)
	}

	port, cidport, err := c.returnPortIfNeeded(requestLength)
	if err != nil {
		return nil, err
	}

	hdr := proto.GetRequestHeader{
		Expr:          proto.PutNameBytes(expr),
		Host:          c.host,
		Port:          port,
		CIDPort:       cidport,
		ProcID:        c.procID,
		RequestLength: requestLength,
	}
	if err := wire.WriteStruct(c.conn, hdr); err != nil {
		return nil, fmt.Errorf("tshclient: %s %q: send header: %v", opName(op), expr, err)
	}

	var reply proto.GetImmediateReply
	if err := wire.ReadStruct(c.conn, &reply); err != nil {
		return nil, fmt.Errorf("tshclient: %s %q: read reply: %v", opName(op), expr, err)
	}

	if tuplespace.Status(reply.Status) == tuplespace.StatusSuccess {
		return readTuplePayload(c.conn)
	}

	code := tuplespace.ErrorCode(reply.Error)
	if code != tuplespace.ErrNoTuple || requestLength == -1 || c.ln == nil {
		return nil, &tuplespace.Error{Code: code}
	}

	return c.awaitDelayedDelivery()
}

// returnPortIfNeeded lazily opens c.ln (a loopback listener for delayed
// delivery) the first time a blocking Get/Read is attempted. It is opened
// before the request is sent, because its port goes in the request header,
// whether or not the server then reports a miss; async requests
// (requestLength == -1) send port 0 and open nothing. Once opened, it is
// reused for the lifetime of the Conn.
func (c *Conn) returnPortIfNeeded(requestLength int32) (port, cidport uint16, err error) {
	if requestLength == -1 {
		return 0, 0, nil
	}
	if c.ln == nil {
		ln, lerr := net.Listen("tcp", "127.0.0.1:0")
		if lerr != nil {
			return 0, 0, fmt.Errorf("tshclient: open return listener: %v", lerr)
		}
		c.ln = ln
		c.port = uint16(ln.Addr().(*net.TCPAddr).Port)
	}
	return c.port, c.port, nil
}

func (c *Conn) awaitDelayedDelivery() ([]byte, error) {
	c.ln.(*net.TCPListener).SetDeadline(time.Now().Add(returnListenTimeout))
	conn, err := c.ln.Accept()
	if err != nil {
		return nil, fmt.Errorf("tshclient: await delayed delivery: %v", err)
	}
	defer conn.Close()

	return readTuplePayload(conn)
}

func readTuplePayload(r io.Reader) ([]byte, error) {
	var hdr proto.GetTupleHeader
	if err := wire.ReadStruct(r, &hdr); err != nil {
		return nil, fmt.Errorf("tshclient: read tuple header: %v", err)
	}

	payload := make([]byte, hdr.Length)
	if err := wire.ReadFull(r, payload); err != nil {
		return nil, fmt.Errorf("tshclient: read tuple payload: %v", err)
	}
	return payload, nil
}

func writeOp(w io.Writer, op proto.Op) error {
	var buf [2]byte
	binary.BigEndian.PutUint16(buf[:], uint16(op))
	return wire.WriteFull(w, buf[:])
}

func opName(op proto.Op) string {
	switch op {
	case proto.OpGet:
		return "get"
	case proto.OpRead:
		return "read"
	default:
		return fmt.Sprintf("op(%d)", op)
	}
}
